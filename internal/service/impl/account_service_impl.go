package impl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"accountd/internal/domain"
	"accountd/internal/dto"
	"accountd/internal/observability/metrics"
	"accountd/internal/observability/middleware"
	"accountd/internal/service"
	"accountd/internal/store"

	"github.com/google/uuid"
)

const minPasswordLength = 8

type AccountServiceImpl struct {
	Store           dataStore
	PasswordService service.PasswordService
	TService        service.TokenService
	Mailer          service.Mailer

	// EnforceCodeExpiry controls whether validation rejects codes past
	// their expiry. The record lifetime is always written either way.
	EnforceCodeExpiry bool
}

func NewAccountServiceImpl(st *store.Store, passwordService service.PasswordService, tokenService service.TokenService, mailer service.Mailer, enforceExpiry bool) *AccountServiceImpl {
	return &AccountServiceImpl{
		Store:             gormStoreAdapter{store: st},
		PasswordService:   passwordService,
		TService:          tokenService,
		Mailer:            mailer,
		EnforceCodeExpiry: enforceExpiry,
	}
}

// Narrow store interfaces so tests can swap in memory fakes.

type dataStore interface {
	WithTx(ctx context.Context, fn func(tx storeTx) error) error
	// Audit writes outside any transaction. Failure rows go through here:
	// recorded inside WithTx they would roll back with the flow that
	// produced them.
	Audit() auditStore
}

type storeTx interface {
	Users() userStore
	Credentials() credentialStore
	Verifications() verificationStore
	Sessions() sessionStore
	Audit() auditStore
}

type userStore interface {
	Create(ctx context.Context, usr *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	SetActive(ctx context.Context, userID uuid.UUID, active bool) error
	UpdateProfile(ctx context.Context, userID uuid.UUID, name, surname string) error
}

type credentialStore interface {
	UpsertPassword(ctx context.Context, c *domain.PasswordCredential) error
	GetPasswordByUserID(ctx context.Context, userID uuid.UUID) (*domain.PasswordCredential, error)
}

type verificationStore interface {
	Create(ctx context.Context, userID domain.UserID, purpose domain.Purpose) (*domain.VerificationCode, error)
	GetByCode(ctx context.Context, code string) (*domain.VerificationCode, error)
	Consume(ctx context.Context, code string) error
}

type sessionStore interface {
	RevokeAllForUser(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}

func nowUTC() time.Time { return time.Now().UTC() }

type auditStore interface {
	Record(ctx context.Context, userID *domain.UserID, action, ip, ua string, metadata map[string]any) error
}

type gormStoreAdapter struct {
	store *store.Store
}

func (g gormStoreAdapter) WithTx(ctx context.Context, fn func(tx storeTx) error) error {
	if g.store == nil {
		return errors.New("nil store")
	}
	return g.store.WithTx(ctx, func(tx *store.Store) error {
		return fn(gormTxAdapter{tx: tx})
	})
}

func (g gormStoreAdapter) Audit() auditStore { return g.store.Audit() }

type gormTxAdapter struct {
	tx *store.Store
}

func (g gormTxAdapter) Users() userStore                 { return g.tx.Users() }
func (g gormTxAdapter) Credentials() credentialStore     { return g.tx.Credentials() }
func (g gormTxAdapter) Verifications() verificationStore { return g.tx.Verifications() }
func (g gormTxAdapter) Sessions() sessionStore           { return g.tx.Sessions() }
func (g gormTxAdapter) Audit() auditStore                { return g.tx.Audit() }

// Register creates an inactive user plus password credential in one
// transaction, issues an activation code, and dispatches the verification
// email after commit. A failed send never rolls the record back; the
// reverification endpoint is the recovery path.
func (a *AccountServiceImpl) Register(ctx context.Context, r dto.RegisterRequest, ip, ua string) (*dto.UserResponse, error) {
	email, err := normalizeEmail(r.Email)
	if err != nil {
		return nil, err
	}
	if err := validateName(r.Name, "name"); err != nil {
		return nil, err
	}
	if err := validateName(r.Surname, "surname"); err != nil {
		return nil, err
	}
	if r.Password == "" {
		return nil, fmt.Errorf("%w: password required", domain.ErrValidation)
	}
	if len(r.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, ErrPasswordLength)
	}

	var (
		out  *dto.UserResponse
		code *domain.VerificationCode
	)

	err = a.Store.WithTx(ctx, func(tx storeTx) error {
		u := &domain.User{
			ID:      uuid.New(),
			Email:   email,
			Name:    strings.TrimSpace(r.Name),
			Surname: strings.TrimSpace(r.Surname),
			// Stays false until the activation code is validated.
			IsActive: false,
		}
		if err := tx.Users().Create(ctx, u); err != nil {
			return err
		}

		hash, salt, paramsJSON, algo, ver, err := a.PasswordService.Hash(r.Password)
		if err != nil {
			return err
		}
		cred := &domain.PasswordCredential{
			ID:          uuid.New(),
			UserID:      u.ID,
			Algo:        algo,
			Hash:        hash,
			Salt:        salt,
			ParamsJSON:  paramsJSON,
			PasswordVer: ver,
		}
		if err := tx.Credentials().UpsertPassword(ctx, cred); err != nil {
			return err
		}

		code, err = tx.Verifications().Create(ctx, u.ID, domain.PurposeActivate)
		if err != nil {
			return err
		}

		if err := tx.Audit().Record(ctx, &u.ID, domain.AuditRegistrationOK, ip, ua, nil); err != nil {
			return err
		}

		out = userResponse(u)
		return nil
	})
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("failure").Inc()
		if errors.Is(err, domain.ErrEmailTaken) {
			a.recordAudit(ctx, nil, domain.AuditRegistrationDupe, ip, ua, map[string]any{"email": email})
		}
		return nil, err
	}

	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	metrics.CodesIssuedTotal.WithLabelValues(string(domain.PurposeActivate)).Inc()
	a.dispatchMail(ctx, domain.PurposeActivate, email, code.Code)

	return out, nil
}

// VerifyEmail consumes an activation code and flips the owning user to
// active. Lookup, delete and the mutation share one transaction: of two
// concurrent validations exactly one sees the record, and a crash cannot
// leave an activated user with a still-valid code.
func (a *AccountServiceImpl) VerifyEmail(ctx context.Context, code string, ip, ua string) error {
	return a.validateCode(ctx, code, domain.PurposeActivate, ip, ua, func(tx storeTx, rec *domain.VerificationCode) error {
		if err := tx.Users().SetActive(ctx, rec.UserID, true); err != nil {
			return err
		}
		return tx.Audit().Record(ctx, &rec.UserID, domain.AuditAccountActivated, ip, ua, nil)
	})
}

// RestorePassword consumes a restore code and replaces the user's password
// credential. All refresh sessions die with the old credential.
func (a *AccountServiceImpl) RestorePassword(ctx context.Context, code, password string, ip, ua string) error {
	if password == "" {
		return fmt.Errorf("%w: password required", domain.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: %v", domain.ErrValidation, ErrPasswordLength)
	}
	return a.validateCode(ctx, code, domain.PurposeRestore, ip, ua, func(tx storeTx, rec *domain.VerificationCode) error {
		if err := a.setPassword(ctx, tx, rec.UserID, password); err != nil {
			return err
		}
		if _, err := tx.Sessions().RevokeAllForUser(ctx, rec.UserID, nowUTC()); err != nil {
			return err
		}
		return tx.Audit().Record(ctx, &rec.UserID, domain.AuditPasswordRestored, ip, ua, nil)
	})
}

// validateCode is the shared ISSUED -> CONSUMED transition. mutate runs only
// after the record has been consumed, inside the same transaction.
func (a *AccountServiceImpl) validateCode(ctx context.Context, code string, purpose domain.Purpose, ip, ua string, mutate func(tx storeTx, rec *domain.VerificationCode) error) error {
	if code == "" {
		return fmt.Errorf("%w: code required", domain.ErrValidation)
	}

	result := "success"
	defer func() {
		metrics.VerificationAttemptsTotal.WithLabelValues(string(purpose), result).Inc()
	}()

	var expiredUser *domain.UserID
	err := a.Store.WithTx(ctx, func(tx storeTx) error {
		rec, err := tx.Verifications().GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, domain.ErrCodeNotFound) {
				// Wrong code and unknown user are indistinguishable
				// to the caller, matching the external contract.
				return domain.ErrUserNotFound
			}
			return err
		}
		if rec.Purpose != purpose {
			return domain.ErrUserNotFound
		}
		if a.EnforceCodeExpiry && rec.Expired(nowUTC()) {
			uid := rec.UserID
			expiredUser = &uid
			return domain.ErrCodeExpired
		}

		if err := tx.Verifications().Consume(ctx, rec.Code); err != nil {
			if errors.Is(err, domain.ErrCodeNotFound) {
				// Lost the race against a concurrent validation.
				return domain.ErrUserNotFound
			}
			return err
		}
		if err := tx.Audit().Record(ctx, &rec.UserID, domain.AuditCodeConsumed, ip, ua, map[string]any{"purpose": string(purpose)}); err != nil {
			return err
		}

		return mutate(tx, rec)
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrCodeExpired):
			result = "expired"
			a.recordAudit(ctx, expiredUser, domain.AuditCodeExpired, ip, ua, nil)
		case errors.Is(err, domain.ErrUserNotFound):
			result = "not_found"
		default:
			result = "error"
		}
		return err
	}
	return nil
}

// Reverify issues a fresh activation code for a lost or expired one.
func (a *AccountServiceImpl) Reverify(ctx context.Context, email string) error {
	return a.reissue(ctx, email, domain.PurposeActivate)
}

// RequestPasswordRestore issues a restore code for a known email. Unknown
// emails fail with not-found and create no record.
func (a *AccountServiceImpl) RequestPasswordRestore(ctx context.Context, email string) error {
	return a.reissue(ctx, email, domain.PurposeRestore)
}

func (a *AccountServiceImpl) reissue(ctx context.Context, email string, purpose domain.Purpose) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	var code *domain.VerificationCode
	err = a.Store.WithTx(ctx, func(tx storeTx) error {
		user, err := tx.Users().GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		code, err = tx.Verifications().Create(ctx, user.ID, purpose)
		return err
	})
	if err != nil {
		return err
	}

	metrics.CodesIssuedTotal.WithLabelValues(string(purpose)).Inc()
	a.dispatchMail(ctx, purpose, email, code.Code)
	return nil
}

// Authenticate checks credentials and issues a token pair. Unknown user and
// wrong password stay distinct internally (audit + metrics) but both
// surface as not-found.
func (a *AccountServiceImpl) Authenticate(ctx context.Context, r dto.AuthRequest, ip, ua string) (*dto.TokenResponse, error) {
	email, err := normalizeEmail(r.Email)
	if err != nil {
		return nil, err
	}
	if r.Password == "" {
		return nil, fmt.Errorf("%w: password required", domain.ErrValidation)
	}

	var (
		tokens     *dto.TokenResponse
		failAction string
		failUser   *domain.UserID
		failMeta   map[string]any
	)
	err = a.Store.WithTx(ctx, func(tx storeTx) error {
		user, err := tx.Users().GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				metrics.LoginsTotal.WithLabelValues("unknown_user").Inc()
				failAction = domain.AuditLoginUnknownUser
				failMeta = map[string]any{"email": email}
				return domain.ErrUserNotFound
			}
			return err
		}

		cred, err := tx.Credentials().GetPasswordByUserID(ctx, user.ID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				metrics.LoginsTotal.WithLabelValues("bad_password").Inc()
				return domain.ErrInvalidCredentials
			}
			return err
		}

		rehashNeeded, ok := a.PasswordService.Verify(r.Password, cred)
		if !ok {
			metrics.LoginsTotal.WithLabelValues("bad_password").Inc()
			uid := user.ID
			failAction, failUser = domain.AuditLoginBadPassword, &uid
			return domain.ErrInvalidCredentials
		}

		if !user.IsActive {
			metrics.LoginsTotal.WithLabelValues("inactive").Inc()
			uid := user.ID
			failAction, failUser = domain.AuditLoginInactive, &uid
			return domain.ErrUserInactive
		}

		// Transparent rehash on policy upgrade.
		if rehashNeeded {
			hash, salt, paramsJSON, algo, ver, err := a.PasswordService.Hash(r.Password)
			if err != nil {
				return err
			}
			cred.Algo = algo
			cred.Hash = hash
			cred.Salt = salt
			cred.ParamsJSON = paramsJSON
			cred.PasswordVer = ver
			if err := tx.Credentials().UpsertPassword(ctx, cred); err != nil {
				return err
			}
		}

		tr, err := a.TService.Issue(ctx, user, ip, ua)
		if err != nil {
			return err
		}
		tokens = tr

		metrics.LoginsTotal.WithLabelValues("success").Inc()
		return tx.Audit().Record(ctx, &user.ID, domain.AuditLoginSucceeded, ip, ua, nil)
	})
	if err != nil {
		if failAction != "" {
			a.recordAudit(ctx, failUser, failAction, ip, ua, failMeta)
		}
		return nil, err
	}
	return tokens, nil
}

// ChangePassword requires re-proof of the current password. A wrong current
// password is a conflict, not a not-found: the caller is authenticated, the
// secret is just wrong.
func (a *AccountServiceImpl) ChangePassword(ctx context.Context, userID domain.UserID, current, password string, ip, ua string) error {
	if current == "" || password == "" {
		return fmt.Errorf("%w: current_password and password required", domain.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: %v", domain.ErrValidation, ErrPasswordLength)
	}

	return a.Store.WithTx(ctx, func(tx storeTx) error {
		cred, err := tx.Credentials().GetPasswordByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		if _, ok := a.PasswordService.Verify(current, cred); !ok {
			return domain.ErrPasswordIncorrect
		}
		if err := a.setPassword(ctx, tx, userID, password); err != nil {
			return err
		}
		if _, err := tx.Sessions().RevokeAllForUser(ctx, userID, nowUTC()); err != nil {
			return err
		}
		return tx.Audit().Record(ctx, &userID, domain.AuditPasswordChanged, ip, ua, nil)
	})
}

func (a *AccountServiceImpl) Profile(ctx context.Context, userID domain.UserID) (*dto.UserResponse, error) {
	var out *dto.UserResponse
	err := a.Store.WithTx(ctx, func(tx storeTx) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		out = userResponse(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateProfile applies a partial update; omitted fields keep their value.
func (a *AccountServiceImpl) UpdateProfile(ctx context.Context, userID domain.UserID, r dto.ProfileUpdateRequest) (*dto.UserResponse, error) {
	if r.Name != "" {
		if err := validateName(r.Name, "name"); err != nil {
			return nil, err
		}
	}
	if r.Surname != "" {
		if err := validateName(r.Surname, "surname"); err != nil {
			return nil, err
		}
	}

	var out *dto.UserResponse
	err := a.Store.WithTx(ctx, func(tx storeTx) error {
		if _, err := tx.Users().GetByID(ctx, userID); err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		if err := tx.Users().UpdateProfile(ctx, userID, strings.TrimSpace(r.Name), strings.TrimSpace(r.Surname)); err != nil {
			return err
		}
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		out = userResponse(user)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ====== Helpers ======

// recordAudit writes a failure row after its transaction has already rolled
// back. Best effort: a failed write is logged, never surfaced.
func (a *AccountServiceImpl) recordAudit(ctx context.Context, userID *domain.UserID, action, ip, ua string, metadata map[string]any) {
	if err := a.Store.Audit().Record(ctx, userID, action, ip, ua, metadata); err != nil {
		slog.Error("audit write failed",
			"action", action,
			"error", err,
			"request_id", middleware.RequestIDFromContext(ctx))
	}
}

func (a *AccountServiceImpl) setPassword(ctx context.Context, tx storeTx, userID domain.UserID, password string) error {
	hash, salt, paramsJSON, algo, ver, err := a.PasswordService.Hash(password)
	if err != nil {
		return err
	}
	return tx.Credentials().UpsertPassword(ctx, &domain.PasswordCredential{
		ID:          uuid.New(),
		UserID:      userID,
		Algo:        algo,
		Hash:        hash,
		Salt:        salt,
		ParamsJSON:  paramsJSON,
		PasswordVer: ver,
	})
}

func (a *AccountServiceImpl) dispatchMail(ctx context.Context, purpose domain.Purpose, email, code string) {
	if a.Mailer == nil {
		return
	}
	var err error
	template := "verification"
	switch purpose {
	case domain.PurposeRestore:
		template = "restore_password"
		err = a.Mailer.SendPasswordRestore(ctx, email, code)
	default:
		err = a.Mailer.SendVerification(ctx, email, code)
	}
	if err != nil {
		metrics.MailDispatchTotal.WithLabelValues(template, "failure").Inc()
		slog.Error("mail dispatch failed",
			"template", template,
			"error", err,
			"request_id", middleware.RequestIDFromContext(ctx))
		return
	}
	metrics.MailDispatchTotal.WithLabelValues(template, "success").Inc()
}

func userResponse(u *domain.User) *dto.UserResponse {
	return &dto.UserResponse{
		ID:      u.ID.String(),
		Email:   u.Email,
		Name:    u.Name,
		Surname: u.Surname,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email required", domain.ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email", domain.ErrValidation)
	}
	return email, nil
}

func validateName(v, field string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return fmt.Errorf("%w: %s required", domain.ErrValidation, field)
	}
	if len(v) > domain.MaxNameLength {
		return fmt.Errorf("%w: %s too long", domain.ErrValidation, field)
	}
	return nil
}
