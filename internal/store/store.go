package store

import (
	"context"
	"errors"
	"time"

	"accountd/internal/codes"
	"accountd/internal/domain"

	"gorm.io/gorm"
)

var ErrRecordNotFound = errors.New("record not found")

type Store struct {
	DB *gorm.DB

	verification verificationOpts
}

func New(db *gorm.DB) *Store { return &Store{DB: db} }

// ConfigureVerifications sets the code generator and record lifetime used by
// Verifications(). Call once at startup, before any transaction is opened.
func (s *Store) ConfigureVerifications(gen codes.Generator, ttl time.Duration) {
	s.verification = verificationOpts{gen: gen, ttl: ttl}
}

// AutoMigrate creates or updates the tables for every model the store owns.
func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.DB.WithContext(ctx).AutoMigrate(
		&domain.User{},
		&domain.PasswordCredential{},
		&domain.VerificationCode{},
		&domain.Session{},
		&domain.AuditLog{},
	)
}

// WithTx runs fn inside a database transaction. Validation flows rely on
// this so the delete-on-consume and the account mutation commit together.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Store) error) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{DB: tx, verification: s.verification})
	})
}
