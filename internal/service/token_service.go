package service

import (
	"context"

	"accountd/internal/domain"
	"accountd/internal/dto"
)

type TokenService interface {
	Issue(ctx context.Context, user *domain.User, ip, ua string) (*dto.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string, ip, ua string) (*dto.TokenResponse, error)
	Revoke(ctx context.Context, refreshToken string) error
	// VerifyAccess parses a bearer access token and returns the subject.
	VerifyAccess(ctx context.Context, token string) (domain.UserID, error)
}
