package auth

import (
	"context"
	"fmt"

	authhttp "social-connect/internal/auth/adapter/http"
	"social-connect/internal/auth/adapter/mailer"
	"social-connect/internal/auth/adapter/persistence/memory"
	"social-connect/internal/auth/adapter/persistence/mongodb"
	"social-connect/internal/auth/adapter/restclient"
	"social-connect/internal/auth/adapter/security"
	"social-connect/internal/auth/config"
	"social-connect/internal/auth/domain/repository"
	"social-connect/internal/auth/usecase"
	"social-connect/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/mongo"
)

// AuthModule represents the complete authentication module
type AuthModule struct {
	repository repository.AccountRepository
	tokenSvc   repository.TokenService
	provider   usecase.Provider
	config     *config.Config
}

// Option customises module construction
type Option func(*moduleOptions)

type moduleOptions struct {
	db     *mongo.Database
	mailer repository.ResetMailer
}

// WithDatabase stores accounts in MongoDB instead of process memory
func WithDatabase(db *mongo.Database) Option {
	return func(o *moduleOptions) { o.db = db }
}

// WithMailer replaces the logging reset mailer
func WithMailer(m repository.ResetMailer) Option {
	return func(o *moduleOptions) { o.mailer = m }
}

// NewAuthModule builds the local or remote provider selected by cfg.Provider
func NewAuthModule(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*AuthModule, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	o := &moduleOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if cfg.Provider == config.ProviderRemote {
		return &AuthModule{provider: restclient.New(cfg, log), config: cfg}, nil
	}

	var accounts repository.AccountRepository
	if o.db != nil {
		repo, err := mongodb.NewMongoAccountRepository(ctx, o.db)
		if err != nil {
			return nil, fmt.Errorf("failed to create account repository: %w", err)
		}
		accounts = repo
	} else {
		accounts = memory.NewAccountRepository()
	}

	tokenSvc, err := security.NewJWTokenService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	resetMailer := o.mailer
	if resetMailer == nil {
		resetMailer = mailer.NewLogMailer(log)
	}

	return &AuthModule{
		repository: accounts,
		tokenSvc:   tokenSvc,
		provider:   usecase.NewAuthUsecase(accounts, tokenSvc, resetMailer, cfg, log),
		config:     cfg,
	}, nil
}

// RegisterRoutes mounts the auth endpoints. provider is normally the session
// manager wrapping Provider() so that sign-in opens a session.
func (am *AuthModule) RegisterRoutes(router fiber.Router, provider usecase.Provider) {
	handler := authhttp.NewAuthHTTPHandler(
		provider,
		am.config.CookieName,
		am.config.CookiePath,
		am.config.CookieDomain,
		int(am.config.AccessTokenTTL.Seconds()),
		am.config.CookieSecure,
		am.config.CookieHTTPOnly,
		am.config.CookieSameSite,
	)
	handler.SetupAuthRoutesWithMiddleware(router, am.Middleware(provider))
}

// Provider returns the configured identity provider
func (am *AuthModule) Provider() usecase.Provider {
	return am.provider
}

// Repository returns the local account store, nil for the remote provider
func (am *AuthModule) Repository() repository.AccountRepository {
	return am.repository
}

// Middleware returns auth middleware resolving tokens through resolver
func (am *AuthModule) Middleware(resolver authhttp.IdentityResolver) *authhttp.AuthMiddleware {
	return authhttp.NewAuthMiddleware(resolver, am.config.CookieName)
}

// Stop performs cleanup when the module is shut down
func (am *AuthModule) Stop() error {
	return nil
}
