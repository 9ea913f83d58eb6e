package repository

import (
	"context"
	"errors"

	"social-connect/internal/auth/domain/model"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailExists     = errors.New("email already registered")
)

// AccountRepository persists accounts and revoked token ids
type AccountRepository interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByID(ctx context.Context, id string) (*model.Account, error)
	// UpdatePasswordHash stores hash and bumps the credential version
	UpdatePasswordHash(ctx context.Context, id, hash string) error

	RevokeToken(ctx context.Context, token *model.RevokedToken) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// ResetMailer delivers password reset tokens out of band
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}
