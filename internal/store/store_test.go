package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"accountd/internal/codes"
	"accountd/internal/domain"
	"accountd/pkg/db"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	gdb, err := db.OpenGorm(db.Config{
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		Driver: "sqlite",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	st := New(gdb)
	if err := st.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func seedUser(t *testing.T, st *Store, email string) *domain.User {
	t.Helper()
	u := &domain.User{ID: uuid.New(), Email: email, Name: "Test", Surname: "User"}
	if err := st.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestUserStoreCreateAndLookup(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, st, "alice@example.com")

	got, err := st.Users().GetByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("id mismatch: %v vs %v", got.ID, u.ID)
	}
	if got.IsActive {
		t.Fatalf("new user must default to inactive")
	}

	// Lookups are exact: lowercasing happens before the store is called.
	if _, err := st.Users().GetByEmail(ctx, "Alice@example.com"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected exact-match lookup to miss, got %v", err)
	}
	if _, err := st.Users().GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected record-not-found, got %v", err)
	}
	if _, err := st.Users().GetByID(ctx, uuid.New()); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected record-not-found, got %v", err)
	}
}

func TestUserStoreDuplicateEmail(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	seedUser(t, st, "dupe@example.com")
	err := st.Users().Create(ctx, &domain.User{ID: uuid.New(), Email: "dupe@example.com"})
	if !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected email-taken, got %v", err)
	}
}

func TestUserStoreSetActiveAndUpdateProfile(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, st, "bob@example.com")

	if err := st.Users().SetActive(ctx, u.ID, true); err != nil {
		t.Fatalf("set active: %v", err)
	}
	got, _ := st.Users().GetByID(ctx, u.ID)
	if !got.IsActive {
		t.Fatalf("user not activated")
	}

	// Partial update: empty surname keeps the stored value.
	if err := st.Users().UpdateProfile(ctx, u.ID, "Robert", ""); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	got, _ = st.Users().GetByID(ctx, u.ID)
	if got.Name != "Robert" || got.Surname != "User" {
		t.Fatalf("partial update wrong: %q %q", got.Name, got.Surname)
	}
}

func TestVerificationLifecycle(t *testing.T) {
	st := newTestStore(t)
	st.ConfigureVerifications(codes.NewGenerator(6, codes.DefaultAlphabet), time.Hour)
	ctx := context.Background()

	u := seedUser(t, st, "carol@example.com")

	rec, err := st.Verifications().Create(ctx, u.ID, domain.PurposeActivate)
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	if len(rec.Code) != 6 {
		t.Fatalf("unexpected code length: %q", rec.Code)
	}
	if got := rec.ExpiresAt.Sub(rec.CreatedAt); got != time.Hour {
		t.Fatalf("lifetime %v, want 1h", got)
	}

	got, err := st.Verifications().GetByCode(ctx, rec.Code)
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if got.UserID != u.ID || got.Purpose != domain.PurposeActivate {
		t.Fatalf("unexpected record: %+v", got)
	}

	if err := st.Verifications().Consume(ctx, rec.Code); err != nil {
		t.Fatalf("consume: %v", err)
	}
	// Single use: the second consume and any lookup must miss.
	if err := st.Verifications().Consume(ctx, rec.Code); !errors.Is(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected code-not-found on reuse, got %v", err)
	}
	if _, err := st.Verifications().GetByCode(ctx, rec.Code); !errors.Is(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected code-not-found after consume, got %v", err)
	}
}

func TestVerificationCreateExhaustsOnSaturation(t *testing.T) {
	st := newTestStore(t)
	// One possible value, so the second create can never find a free code.
	st.ConfigureVerifications(codes.NewGenerator(1, "A"), time.Hour)
	ctx := context.Background()

	u := seedUser(t, st, "dave@example.com")

	if _, err := st.Verifications().Create(ctx, u.ID, domain.PurposeActivate); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := st.Verifications().Create(ctx, u.ID, domain.PurposeActivate); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on saturation, got %v", err)
	}
}

// Two concurrent validations race on the same code: the delete commits for
// exactly one of them, the other sees zero rows affected.
func TestVerificationConsumeConcurrent(t *testing.T) {
	st := newTestStore(t)
	st.ConfigureVerifications(codes.NewGenerator(6, codes.DefaultAlphabet), time.Hour)
	ctx := context.Background()

	// One pooled connection so the racing transactions queue in database/sql
	// instead of tripping sqlite's shared-cache table locks.
	sqlDB, err := st.DB.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	u := seedUser(t, st, "race@example.com")
	rec, err := st.Verifications().Create(ctx, u.ID, domain.PurposeActivate)
	if err != nil {
		t.Fatalf("create code: %v", err)
	}

	start := make(chan struct{})
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			results <- st.WithTx(ctx, func(tx *Store) error {
				return tx.Verifications().Consume(ctx, rec.Code)
			})
		}()
	}
	close(start)

	var wins, misses int
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			wins++
		case errors.Is(err, domain.ErrCodeNotFound):
			misses++
		default:
			t.Fatalf("unexpected consume error: %v", err)
		}
	}
	if wins != 1 || misses != 1 {
		t.Fatalf("exactly one consume must win, got wins=%d misses=%d", wins, misses)
	}
}

func TestVerificationActiveForUserSkipsExpired(t *testing.T) {
	st := newTestStore(t)
	st.ConfigureVerifications(codes.NewGenerator(6, codes.DefaultAlphabet), time.Hour)
	ctx := context.Background()

	u := seedUser(t, st, "erin@example.com")
	live, err := st.Verifications().Create(ctx, u.ID, domain.PurposeRestore)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	stale := &domain.VerificationCode{
		ID:        uuid.New(),
		UserID:    u.ID,
		Code:      "STALE1",
		Purpose:   domain.PurposeRestore,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
	}
	if err := st.DB.WithContext(ctx).Create(stale).Error; err != nil {
		t.Fatalf("seed stale code: %v", err)
	}

	recs, err := st.Verifications().ActiveForUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("active for user: %v", err)
	}
	if len(recs) != 1 || recs[0].Code != live.Code {
		t.Fatalf("expected only the live code, got %+v", recs)
	}
}

func TestCredentialUpsert(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, st, "frank@example.com")

	first := &domain.PasswordCredential{
		UserID:      u.ID,
		Algo:        "argon2id",
		Hash:        []byte("h1"),
		Salt:        []byte("s1"),
		ParamsJSON:  []byte(`{"v":1}`),
		PasswordVer: 1,
	}
	if err := st.Credentials().UpsertPassword(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}

	second := &domain.PasswordCredential{
		UserID:      u.ID,
		Algo:        "argon2id",
		Hash:        []byte("h2"),
		Salt:        []byte("s2"),
		ParamsJSON:  []byte(`{"v":2}`),
		PasswordVer: 2,
	}
	if err := st.Credentials().UpsertPassword(ctx, second); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := st.Credentials().GetPasswordByUserID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Hash) != "h2" || got.PasswordVer != 2 {
		t.Fatalf("upsert did not replace: %+v", got)
	}

	var count int64
	if err := st.DB.Model(&domain.PasswordCredential{}).Where("user_id = ?", u.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one credential row, got %d", count)
	}
}

func TestSessionRevocation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, st, "grace@example.com")
	now := time.Now().UTC()

	var sessions []*domain.Session
	for i := 0; i < 3; i++ {
		s := &domain.Session{UserID: u.ID, ExpiresAt: now.Add(time.Hour)}
		if err := st.Sessions().Create(ctx, s); err != nil {
			t.Fatalf("create session: %v", err)
		}
		sessions = append(sessions, s)
	}

	if err := st.Sessions().Revoke(ctx, sessions[0].ID, now); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// Only the two still-live sessions count.
	n, err := st.Sessions().RevokeAllForUser(ctx, u.ID, now)
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 revoked, got %d", n)
	}

	got, err := st.Sessions().GetByRefreshID(ctx, sessions[1].RefreshID)
	if err != nil {
		t.Fatalf("get by refresh id: %v", err)
	}
	if got.RevokedAt == nil {
		t.Fatalf("session not revoked")
	}
}

func TestSessionRotate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, st, "henry@example.com")
	s := &domain.Session{UserID: u.ID, ExpiresAt: time.Now().UTC().Add(time.Hour)}
	if err := st.Sessions().Create(ctx, s); err != nil {
		t.Fatalf("create: %v", err)
	}

	oldRefresh := s.RefreshID
	newRefresh := uuid.New()
	if err := st.Sessions().Rotate(ctx, s.ID, newRefresh, time.Now().UTC().Add(2*time.Hour), "10.0.0.1", "agent"); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := st.Sessions().GetByRefreshID(ctx, oldRefresh); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("old refresh id still resolves: %v", err)
	}
	got, err := st.Sessions().GetByRefreshID(ctx, newRefresh)
	if err != nil {
		t.Fatalf("new refresh id missing: %v", err)
	}
	if got.ID != s.ID || got.IP != "10.0.0.1" {
		t.Fatalf("rotated session wrong: %+v", got)
	}
}

func TestAuditRecordAndList(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u := seedUser(t, st, "iris@example.com")

	if err := st.Audit().Record(ctx, &u.ID, domain.AuditLoginSucceeded, "10.0.0.1", "agent", map[string]any{"k": "v"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := st.Audit().Record(ctx, nil, domain.AuditLoginUnknownUser, "10.0.0.2", "agent", nil); err != nil {
		t.Fatalf("record anonymous: %v", err)
	}

	rows, err := st.Audit().ListForUser(ctx, u.ID, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Action != domain.AuditLoginSucceeded {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestDeleteUserDataRemovesEverything(t *testing.T) {
	st := newTestStore(t)
	st.ConfigureVerifications(codes.NewGenerator(6, codes.DefaultAlphabet), time.Hour)
	ctx := context.Background()

	u := seedUser(t, st, "judy@example.com")
	if _, err := st.Verifications().Create(ctx, u.ID, domain.PurposeActivate); err != nil {
		t.Fatalf("create code: %v", err)
	}
	if err := st.Credentials().UpsertPassword(ctx, &domain.PasswordCredential{
		UserID: u.ID, Algo: "argon2id", Hash: []byte("h"), Salt: []byte("s"), ParamsJSON: []byte("{}"),
	}); err != nil {
		t.Fatalf("create credential: %v", err)
	}
	if err := st.Sessions().Create(ctx, &domain.Session{UserID: u.ID, ExpiresAt: time.Now().UTC().Add(time.Hour)}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := st.Audit().Record(ctx, &u.ID, domain.AuditLoginSucceeded, "", "", nil); err != nil {
		t.Fatalf("record audit: %v", err)
	}

	deleted, err := st.DeleteUserData(ctx, u.ID)
	if err != nil {
		t.Fatalf("delete user data: %v", err)
	}
	want := map[string]int64{
		"users":               1,
		"verificationCodes":   1,
		"passwordCredentials": 1,
		"sessions":            1,
		"auditLogs":           1,
	}
	for k, v := range want {
		if deleted[k] != v {
			t.Fatalf("deleted[%s] = %d, want %d", k, deleted[k], v)
		}
	}

	if _, err := st.Users().GetByID(ctx, u.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("user survived deletion: %v", err)
	}
	recs, err := st.Verifications().ActiveForUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("active for user: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("verification codes outlived their user")
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx *Store) error {
		if err := tx.Users().Create(ctx, &domain.User{ID: uuid.New(), Email: "tx@example.com"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := st.Users().GetByEmail(ctx, "tx@example.com"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("rollback did not discard the user: %v", err)
	}
}
