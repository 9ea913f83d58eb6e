package repository

import (
	"context"

	"social-connect/internal/auth/domain/model"

	"github.com/golang-jwt/jwt/v5"
)

// TokenService defines the interface for token operations
type TokenService interface {
	GenerateToken(ctx context.Context, account *model.Account, purpose model.TokenPurpose) (string, *Claims, error)
	ValidateToken(ctx context.Context, tokenString string, purpose model.TokenPurpose) (*Claims, error)
}

// Claims represents JWT claims
type Claims struct {
	IdentityID string             `json:"identityId"`
	Email      string             `json:"email"`
	Purpose    model.TokenPurpose `json:"purpose"`
	Version    int                `json:"cv"`
	jwt.RegisteredClaims
}
