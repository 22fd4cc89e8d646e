package store

import (
	"context"
	"errors"
	"time"

	"accountd/internal/codes"
	"accountd/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// maxCodeAttempts bounds the retry-until-unique loop. Six decimal digits
// give a million values, so exhausting this means the table is effectively
// saturated and the request should fail rather than spin.
const maxCodeAttempts = 5

type VerificationStore struct {
	db  *gorm.DB
	gen codes.Generator
	ttl time.Duration
}

type verificationOpts struct {
	gen codes.Generator
	ttl time.Duration
}

// Verifications returns the verification-code store. Generator and lifetime
// are fixed at Store construction via ConfigureVerifications; zero values
// fall back to the reference defaults (6 digits, 7 days).
func (s *Store) Verifications() *VerificationStore {
	o := s.verification
	if o.ttl == 0 {
		o.ttl = 7 * 24 * time.Hour
	}
	if o.gen.Length == 0 {
		o.gen = codes.NewGenerator(codes.DefaultLength, codes.DefaultAlphabet)
	}
	return &VerificationStore{db: s.DB, gen: o.gen, ttl: o.ttl}
}

// Create generates a fresh code for the user, retrying on collision with any
// live record, and persists it with expiry = now + lifetime. The unique index
// on code is the backstop against a concurrent insert of the same value;
// hitting it counts as a failed attempt.
func (vs *VerificationStore) Create(ctx context.Context, userID domain.UserID, purpose domain.Purpose) (*domain.VerificationCode, error) {
	now := time.Now().UTC()
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := vs.gen.Generate()
		if err != nil {
			return nil, err
		}

		var count int64
		if err := vs.db.WithContext(ctx).Model(&domain.VerificationCode{}).
			Where("code = ?", code).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			continue
		}

		rec := &domain.VerificationCode{
			ID:        uuid.New(),
			UserID:    userID,
			Code:      code,
			Purpose:   purpose,
			ExpiresAt: now.Add(vs.ttl),
			CreatedAt: now,
		}
		if err := vs.db.WithContext(ctx).Create(rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return nil, err
		}
		return rec, nil
	}
	return nil, domain.ErrConflict
}

func (vs *VerificationStore) GetByCode(ctx context.Context, code string) (*domain.VerificationCode, error) {
	var rec domain.VerificationCode
	if err := vs.db.WithContext(ctx).First(&rec, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCodeNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// ActiveForUser lists the user's records whose expiry is still in the future.
func (vs *VerificationStore) ActiveForUser(ctx context.Context, userID domain.UserID) ([]domain.VerificationCode, error) {
	var recs []domain.VerificationCode
	err := vs.db.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, time.Now().UTC()).
		Order("created_at").
		Find(&recs).Error
	return recs, err
}

// Consume deletes the record for code. The delete is the single-use guard:
// of two concurrent validations only one observes RowsAffected == 1, the
// other gets ErrCodeNotFound.
func (vs *VerificationStore) Consume(ctx context.Context, code string) error {
	res := vs.db.WithContext(ctx).Where("code = ?", code).Delete(&domain.VerificationCode{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrCodeNotFound
	}
	return nil
}

// DeleteForUser drops all outstanding codes for a user. Reissuing does not
// call this; older codes stay valid until they expire. The account deletion
// path is the only production caller.
func (vs *VerificationStore) DeleteForUser(ctx context.Context, userID domain.UserID) (int64, error) {
	res := vs.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.VerificationCode{})
	return res.RowsAffected, res.Error
}
