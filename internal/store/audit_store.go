package store

import (
	"context"
	"encoding/json"
	"time"

	"accountd/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditStore struct{ db *gorm.DB }

func (s *Store) Audit() *AuditStore { return &AuditStore{s.DB} }

// Record writes an audit row. Metadata is marshalled best-effort; audit
// failures are surfaced to the caller, which typically only logs them.
func (as *AuditStore) Record(ctx context.Context, userID *domain.UserID, action, ip, ua string, metadata map[string]any) error {
	var meta []byte
	if len(metadata) > 0 {
		meta, _ = json.Marshal(metadata)
	}
	entry := &domain.AuditLog{
		ID:        uuid.New(),
		UserID:    userID,
		Action:    action,
		Metadata:  meta,
		IP:        ip,
		UserAgent: ua,
		CreatedAt: time.Now().UTC(),
	}
	return as.db.WithContext(ctx).Create(entry).Error
}

func (as *AuditStore) ListForUser(ctx context.Context, userID domain.UserID, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []domain.AuditLog
	err := as.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
