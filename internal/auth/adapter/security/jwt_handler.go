package security

import (
	"context"
	"errors"
	"time"

	"social-connect/internal/auth/config"
	"social-connect/internal/auth/domain/model"
	"social-connect/internal/auth/domain/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenInvalid          = errors.New("token is invalid")
	ErrTokenExpired          = errors.New("token is expired")
	ErrTokenSignatureInvalid = errors.New("token signature is invalid")
	ErrTokenWrongPurpose     = errors.New("token issued for another purpose")
)

// JWTokenService implements JWT token generation and validation
type JWTokenService struct {
	secretKey []byte
	issuer    string
	ttl       map[model.TokenPurpose]time.Duration
	now       func() time.Time
}

// NewJWTokenService creates a new JWT token service
func NewJWTokenService(cfg *config.Config) (*JWTokenService, error) {
	if cfg.JWTSecretKey == "" {
		return nil, errors.New("jwt secret key cannot be empty")
	}
	if cfg.JWTIssuer == "" {
		return nil, errors.New("jwt issuer cannot be empty")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.ResetTokenTTL <= 0 {
		return nil, errors.New("jwt token TTLs must be positive")
	}

	return &JWTokenService{
		secretKey: []byte(cfg.JWTSecretKey),
		issuer:    cfg.JWTIssuer,
		ttl: map[model.TokenPurpose]time.Duration{
			model.PurposeAccess: cfg.AccessTokenTTL,
			model.PurposeReset:  cfg.ResetTokenTTL,
		},
		now: time.Now,
	}, nil
}

// GenerateToken signs a token for the account. Every token carries a unique id so it can be revoked,
// and the account's credential version so a password change retires it.
func (s *JWTokenService) GenerateToken(ctx context.Context, account *model.Account, purpose model.TokenPurpose) (string, *repository.Claims, error) {
	ttl, ok := s.ttl[purpose]
	if !ok {
		return "", nil, ErrTokenWrongPurpose
	}
	now := s.now()
	claims := &repository.Claims{
		IdentityID: account.ID,
		Email:      account.Email,
		Purpose:    purpose,
		Version:    account.CredentialVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   account.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *JWTokenService) ValidateToken(ctx context.Context, tokenString string, purpose model.TokenPurpose) (*repository.Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	token, err := jwt.ParseWithClaims(tokenString, &repository.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenSignatureInvalid
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignatureInvalid
		default:
			return nil, ErrTokenInvalid
		}
	}

	claims, ok := token.Claims.(*repository.Claims)
	if !ok || !token.Valid || claims.IdentityID == "" {
		return nil, ErrTokenInvalid
	}
	if claims.Purpose != purpose {
		return nil, ErrTokenWrongPurpose
	}
	return claims, nil
}
