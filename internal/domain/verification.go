package domain

import "time"

// Purpose selects the account mutation a verification code unlocks.
type Purpose string

const (
	PurposeActivate Purpose = "activate"
	PurposeRestore  Purpose = "restore"
)

// VerificationCode is a single-use, time-bound proof of email ownership.
// Records are created on registration, reverification and password-restore
// requests, and deleted exactly once when validated. They are never updated
// in place.
type VerificationCode struct {
	ID        VerificationID `gorm:"type:uuid;primaryKey" db:"id"`
	UserID    UserID         `gorm:"type:uuid;index;uniqueIndex:ux_verifications_user_code" db:"user_id"`
	Code      string         `gorm:"type:text;uniqueIndex:ux_verifications_code;uniqueIndex:ux_verifications_user_code" db:"code"`
	Purpose   Purpose        `gorm:"type:text;not null" db:"purpose"`
	ExpiresAt time.Time      `gorm:"not null" db:"expires_at"`
	CreatedAt time.Time      `gorm:"not null" db:"created_at"`

	User User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
}

func (VerificationCode) TableName() string { return "verification_codes" }

func (v *VerificationCode) Expired(now time.Time) bool { return now.After(v.ExpiresAt) }
