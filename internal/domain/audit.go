package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog keeps a per-request trace of account events. The login flow
// records the internal failure reason here even though the HTTP boundary
// collapses "unknown user" and "wrong password" into a single 404.
type AuditLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" db:"id"`
	UserID    *UserID   `gorm:"type:uuid" db:"user_id"`
	Action    string    `gorm:"type:text;not null" db:"action"`
	Metadata  []byte    `gorm:"type:jsonb" db:"metadata"`
	IP        string    `gorm:"type:text" db:"ip"`
	UserAgent string    `gorm:"type:text" db:"user_agent"`
	CreatedAt time.Time `gorm:"not null" db:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

const (
	AuditLoginSucceeded   = "login.succeeded"
	AuditLoginUnknownUser = "login.unknown_user"
	AuditLoginBadPassword = "login.bad_password"
	AuditLoginInactive    = "login.inactive"
	AuditCodeConsumed     = "verification.consumed"
	AuditCodeExpired      = "verification.expired"
	AuditPasswordChanged  = "password.changed"
	AuditPasswordRestored = "password.restored"
	AuditAccountActivated = "account.activated"
	AuditRegistrationOK   = "registration.succeeded"
	AuditRegistrationDupe = "registration.duplicate_email"
)
