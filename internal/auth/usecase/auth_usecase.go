package usecase

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"social-connect/internal/auth/config"
	"social-connect/internal/auth/domain/model"
	"social-connect/internal/auth/domain/repository"
	"social-connect/internal/shared/errors"
	"social-connect/internal/shared/logger"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Password validation constants
const (
	minPasswordLength = 6
	maxPasswordLength = 128
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Provider is the authentication collaborator of the sync core. The local
// AuthUsecase and the remote identity REST client both implement it.
type Provider interface {
	SignUp(ctx context.Context, req SignUpRequest) (*model.Identity, string, error)
	SignIn(ctx context.Context, req SignInRequest) (*model.Identity, string, error)
	SignOut(ctx context.Context, token string) error
	// CurrentIdentity resolves the identity behind an access token
	CurrentIdentity(ctx context.Context, token string) (*model.Identity, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
}

// SignUpRequest represents the registration request
type SignUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// SignInRequest represents the login request
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthUsecase is the local Provider: bcrypt hashed accounts and signed JWTs.
type AuthUsecase struct {
	repo     repository.AccountRepository
	tokenSvc repository.TokenService
	mailer   repository.ResetMailer
	cost     int
	log      logger.Logger
}

var _ Provider = (*AuthUsecase)(nil)

// NewAuthUsecase creates a new instance of AuthUsecase.
func NewAuthUsecase(
	repo repository.AccountRepository,
	tokenSvc repository.TokenService,
	mailer repository.ResetMailer,
	cfg *config.Config,
	log logger.Logger,
) *AuthUsecase {
	if log == nil {
		log = logger.NewNopLogger()
	}
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &AuthUsecase{
		repo:     repo,
		tokenSvc: tokenSvc,
		mailer:   mailer,
		cost:     cost,
		log:      log.WithComponent("auth"),
	}
}

func validateEmail(email string) error {
	if email == "" {
		return errors.NewValidationError("email is required").WithDetail("field", "email")
	}
	if !emailRegex.MatchString(email) {
		return errors.NewValidationError("invalid email format").WithDetail("field", "email")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return errors.NewValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength)).
			WithDetail("field", "password")
	}
	if len(password) > maxPasswordLength {
		return errors.NewValidationError(fmt.Sprintf("password must be at most %d characters", maxPasswordLength)).
			WithDetail("field", "password")
	}
	return nil
}

func unknownFailure(action string, err error) error {
	return errors.NewRemoteError(action + " failed").WithCode(errors.CodeUnknown).WithCause(err)
}

// SignUp registers a new account and returns its identity with an access token
func (uc *AuthUsecase) SignUp(ctx context.Context, req SignUpRequest) (*model.Identity, string, error) {
	email := model.NormalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		return nil, "", err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, "", err
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		return nil, "", errors.NewValidationError("display name is required").WithDetail("field", "displayName")
	}

	existing, err := uc.repo.GetAccountByEmail(ctx, email)
	if err != nil && !stderrors.Is(err, repository.ErrAccountNotFound) {
		return nil, "", unknownFailure("sign up", err)
	}
	if existing != nil {
		return nil, "", errors.NewAuthError("email is already registered").WithCode(errors.CodeEmailTaken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), uc.cost)
	if err != nil {
		return nil, "", unknownFailure("sign up", err)
	}

	account := &model.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
	}
	if err := uc.repo.CreateAccount(ctx, account); err != nil {
		if stderrors.Is(err, repository.ErrEmailExists) {
			return nil, "", errors.NewAuthError("email is already registered").WithCode(errors.CodeEmailTaken)
		}
		return nil, "", unknownFailure("sign up", err)
	}

	token, _, err := uc.tokenSvc.GenerateToken(ctx, account, model.PurposeAccess)
	if err != nil {
		return nil, "", unknownFailure("sign up", err)
	}
	uc.log.WithFields(map[string]interface{}{"identity_id": account.ID}).Info("account created")
	return account.Identity(), token, nil
}

// SignIn verifies credentials. Failures are AuthErrors coded not-registered
// or invalid-credentials; anything else is a RemoteError coded unknown.
func (uc *AuthUsecase) SignIn(ctx context.Context, req SignInRequest) (*model.Identity, string, error) {
	email := model.NormalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		return nil, "", err
	}

	account, err := uc.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		if stderrors.Is(err, repository.ErrAccountNotFound) {
			return nil, "", errors.NewAuthError("no account is registered for this email").WithCode(errors.CodeNotRegistered)
		}
		return nil, "", unknownFailure("sign in", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", errors.NewAuthError("invalid email or password").WithCode(errors.CodeInvalidCredentials)
	}

	token, _, err := uc.tokenSvc.GenerateToken(ctx, account, model.PurposeAccess)
	if err != nil {
		return nil, "", unknownFailure("sign in", err)
	}
	return account.Identity(), token, nil
}

// SignOut revokes the access token until it would have expired
func (uc *AuthUsecase) SignOut(ctx context.Context, token string) error {
	claims, err := uc.tokenSvc.ValidateToken(ctx, token, model.PurposeAccess)
	if err != nil {
		return errors.NewAuthError("invalid token").WithCause(err)
	}
	return uc.revoke(ctx, claims)
}

func (uc *AuthUsecase) revoke(ctx context.Context, claims *repository.Claims) error {
	expires := time.Now().Add(time.Hour)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	err := uc.repo.RevokeToken(ctx, &model.RevokedToken{
		ID:         claims.ID,
		IdentityID: claims.IdentityID,
		ExpiresAt:  expires,
		RevokedAt:  time.Now().UTC(),
	})
	if err != nil {
		return unknownFailure("revoke token", err)
	}
	return nil
}

func (uc *AuthUsecase) validClaims(ctx context.Context, token string, purpose model.TokenPurpose) (*repository.Claims, error) {
	claims, err := uc.tokenSvc.ValidateToken(ctx, token, purpose)
	if err != nil {
		return nil, errors.NewAuthError("invalid token").WithCause(errors.ErrInvalidToken)
	}
	revoked, err := uc.repo.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		return nil, unknownFailure("check token", err)
	}
	if revoked {
		return nil, errors.NewAuthError("token has been revoked").WithCause(errors.ErrInvalidToken)
	}
	return claims, nil
}

// CurrentIdentity resolves an access token to its identity
func (uc *AuthUsecase) CurrentIdentity(ctx context.Context, token string) (*model.Identity, error) {
	claims, err := uc.validClaims(ctx, token, model.PurposeAccess)
	if err != nil {
		return nil, err
	}
	account, err := uc.repo.GetAccountByID(ctx, claims.IdentityID)
	if err != nil {
		if stderrors.Is(err, repository.ErrAccountNotFound) {
			return nil, errors.NewAuthError("account no longer exists").WithCode(errors.CodeNotRegistered)
		}
		return nil, unknownFailure("resolve identity", err)
	}
	if claims.Version != account.CredentialVersion {
		return nil, errors.NewAuthError("token was issued before a password change").WithCause(errors.ErrInvalidToken)
	}
	return account.Identity(), nil
}

// RequestPasswordReset mails a short-lived single-use reset token
func (uc *AuthUsecase) RequestPasswordReset(ctx context.Context, email string) error {
	email = model.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	account, err := uc.repo.GetAccountByEmail(ctx, email)
	if err != nil {
		if stderrors.Is(err, repository.ErrAccountNotFound) {
			return errors.NewAuthError("no account is registered for this email").WithCode(errors.CodeNotRegistered)
		}
		return unknownFailure("password reset", err)
	}

	token, _, err := uc.tokenSvc.GenerateToken(ctx, account, model.PurposeReset)
	if err != nil {
		return unknownFailure("password reset", err)
	}
	if err := uc.mailer.SendPasswordReset(ctx, account.Email, token); err != nil {
		return unknownFailure("password reset", err)
	}
	return nil
}

// ResetPassword applies a reset token once
func (uc *AuthUsecase) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	claims, err := uc.validClaims(ctx, resetToken, model.PurposeReset)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), uc.cost)
	if err != nil {
		return unknownFailure("password reset", err)
	}
	if err := uc.repo.UpdatePasswordHash(ctx, claims.IdentityID, string(hash)); err != nil {
		if stderrors.Is(err, repository.ErrAccountNotFound) {
			return errors.NewAuthError("account no longer exists").WithCode(errors.CodeNotRegistered)
		}
		return unknownFailure("password reset", err)
	}
	return uc.revoke(ctx, claims)
}
