package service

import (
	"context"

	"accountd/internal/domain"
	"accountd/internal/dto"
)

// AccountService drives the verification-code lifecycle and the account
// state transitions it unlocks. The ip/ua pair feeds session bookkeeping and
// the audit trail only.
type AccountService interface {
	Register(ctx context.Context, r dto.RegisterRequest, ip, ua string) (*dto.UserResponse, error)
	VerifyEmail(ctx context.Context, code string, ip, ua string) error
	Reverify(ctx context.Context, email string) error
	RequestPasswordRestore(ctx context.Context, email string) error
	RestorePassword(ctx context.Context, code, password string, ip, ua string) error
	Authenticate(ctx context.Context, r dto.AuthRequest, ip, ua string) (*dto.TokenResponse, error)
	ChangePassword(ctx context.Context, userID domain.UserID, current, password string, ip, ua string) error
	Profile(ctx context.Context, userID domain.UserID) (*dto.UserResponse, error)
	UpdateProfile(ctx context.Context, userID domain.UserID, r dto.ProfileUpdateRequest) (*dto.UserResponse, error)
}
