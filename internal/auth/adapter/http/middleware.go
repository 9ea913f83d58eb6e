package http

import (
	"context"
	"strings"
	"time"

	"social-connect/internal/auth/domain/model"
	"social-connect/internal/shared/contextkeys"
	"social-connect/internal/shared/errors"
	"social-connect/internal/shared/respond"
	"social-connect/internal/shared/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

const identityLocal = "identity"

// IdentityResolver turns an access token into the identity behind it
type IdentityResolver interface {
	CurrentIdentity(ctx context.Context, token string) (*model.Identity, error)
}

// AuthMiddleware provides authentication middleware for Fiber
type AuthMiddleware struct {
	resolver   IdentityResolver
	cookieName string
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(resolver IdentityResolver, cookieName string) *AuthMiddleware {
	return &AuthMiddleware{
		resolver:   resolver,
		cookieName: cookieName,
	}
}

// CORS middleware. origins is a comma separated allow list.
func (m *AuthMiddleware) CORS(origins string) fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With,X-Request-ID",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	})
}

// SecurityHeaders adds security headers
func (m *AuthMiddleware) SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		return c.Next()
	}
}

// RateLimiter throttles credential endpoints per client address
func (m *AuthMiddleware) RateLimiter(max int, window time.Duration) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        window,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.Get("X-Forwarded-For", c.IP())
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   "rate_limited",
				"message": "Rate limit exceeded. Please try again later.",
			})
		},
	})
}

// RequestID assigns X-Request-ID and copies it into the user context for logging
func (m *AuthMiddleware) RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		ContextKey: string(contextkeys.RequestIDKey),
	})
}

// Protect requires a valid access token. The resolved identity is stored in
// the locals and the user context.
func (m *AuthMiddleware) Protect() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := m.extractToken(c)
		if token == "" {
			return respond.Error(c, errors.NotSignedIn())
		}

		identity, err := m.resolver.CurrentIdentity(c.UserContext(), token)
		if err != nil {
			if errors.IsAuth(err) {
				return respond.Error(c, err)
			}
			return respond.Error(c, errors.Wrap(err, "resolve identity"))
		}

		m.attach(c, identity, token)
		return c.Next()
	}
}

// OptionalAuth attaches the identity when a valid token is present and carries on otherwise
func (m *AuthMiddleware) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := m.extractToken(c)
		if token == "" {
			return c.Next()
		}
		if identity, err := m.resolver.CurrentIdentity(c.UserContext(), token); err == nil {
			m.attach(c, identity, token)
		}
		return c.Next()
	}
}

func (m *AuthMiddleware) attach(c *fiber.Ctx, identity *model.Identity, token string) {
	ctx := c.UserContext()
	ctx = utils.WithIdentityID(ctx, identity.ID)
	ctx = context.WithValue(ctx, contextkeys.TokenKey, token)
	if rid, ok := c.Locals(string(contextkeys.RequestIDKey)).(string); ok && rid != "" {
		ctx = utils.WithRequestID(ctx, rid)
	}
	c.SetUserContext(ctx)
	c.Locals(identityLocal, identity)
}

// extractToken reads the Authorization header, then the cookie, then the
// token query parameter used by WebSocket clients
func (m *AuthMiddleware) extractToken(c *fiber.Ctx) string {
	if authHeader := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if token := c.Cookies(m.cookieName); token != "" {
		return token
	}
	return c.Query("token")
}

// GetIdentity returns the identity attached by Protect
func GetIdentity(c *fiber.Ctx) (*model.Identity, bool) {
	identity, ok := c.Locals(identityLocal).(*model.Identity)
	return identity, ok
}

// GetToken returns the access token attached by Protect
func GetToken(c *fiber.Ctx) (string, bool) {
	token, ok := c.UserContext().Value(contextkeys.TokenKey).(string)
	return token, ok && token != ""
}
