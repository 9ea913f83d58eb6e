// Package http exposes the sync components over REST and a WebSocket listen
// endpoint. Every call runs on behalf of the session behind the access token.
package http

import (
	"context"
	"time"

	"social-connect/internal/auth"
	authhttp "social-connect/internal/auth/adapter/http"
	"social-connect/internal/metrics"
	"social-connect/internal/session"
	"social-connect/internal/shared/errors"
	"social-connect/internal/shared/logger"
	"social-connect/internal/shared/respond"
	"social-connect/internal/social"
	"social-connect/internal/social/notify"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

const (
	clientLocal  = "social-client"
	sessionLocal = "session"

	defaultSnapshotWait = 5 * time.Second
)

// Config tunes the gateway
type Config struct {
	WebSocketPath  string
	SendBuffer     int
	WriteRPS       float64
	WriteBurst     int
	CORSOrigins    string
	AuthRateMax    int
	AuthRateWindow time.Duration
	// SnapshotWait bounds how long a REST read waits for the first snapshot
	SnapshotWait time.Duration
}

// Deps are the modules the gateway serves
type Deps struct {
	Sessions *session.Manager
	Social   *social.SocialModule
	Auth     *auth.AuthModule
	Inbox    *notify.Inbox
	Metrics  *metrics.Registry
	Log      logger.Logger
}

// Handler mounts every route of the gateway
type Handler struct {
	cfg      Config
	sessions *session.Manager
	auth     *auth.AuthModule
	inbox    *notify.Inbox
	metrics  *metrics.Registry
	log      logger.Logger

	clients *clientRegistry
	writes  *limiterPool
}

// NewHandler creates a Handler
func NewHandler(cfg Config, deps Deps) *Handler {
	if deps.Log == nil {
		deps.Log = logger.NewNopLogger()
	}
	if deps.Inbox == nil {
		deps.Inbox = notify.NewInbox()
	}
	if cfg.WebSocketPath == "" {
		cfg.WebSocketPath = "/ws/listen"
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}
	if cfg.SnapshotWait <= 0 {
		cfg.SnapshotWait = defaultSnapshotWait
	}
	if cfg.CORSOrigins == "" {
		cfg.CORSOrigins = "*"
	}
	return &Handler{
		cfg:      cfg,
		sessions: deps.Sessions,
		auth:     deps.Auth,
		inbox:    deps.Inbox,
		metrics:  deps.Metrics,
		log:      deps.Log.WithComponent("gateway"),
		clients:  newClientRegistry(deps.Social, deps.Metrics),
		writes:   newLimiterPool(cfg.WriteRPS, cfg.WriteBurst),
	}
}

// RegisterRoutes mounts health, metrics, auth, REST and WebSocket routes on app
func (h *Handler) RegisterRoutes(app *fiber.App) {
	mw := h.auth.Middleware(h.sessions)

	app.Use(mw.RequestID(), mw.SecurityHeaders(), mw.CORS(h.cfg.CORSOrigins))
	app.Get("/health", h.health)
	app.Get("/metrics", adaptor.HTTPHandler(h.metrics.Handler()))

	authGroup := app.Group("/api/v1/auth")
	if h.cfg.AuthRateMax > 0 {
		authGroup.Use(mw.RateLimiter(h.cfg.AuthRateMax, h.cfg.AuthRateWindow))
	}
	h.auth.RegisterRoutes(authGroup, h.sessions)

	api := app.Group("/api/v1", mw.Protect(), h.withClient())
	h.registerSocialRoutes(api)

	app.Use(h.cfg.WebSocketPath, mw.Protect(), h.withClient(), fiber.Handler(h.requireUpgrade))
	app.Get(h.cfg.WebSocketPath, h.listenHandler())
}

func (h *Handler) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "HEALTHY",
		"sessions":  h.sessions.Active(),
		"timestamp": time.Now().UTC(),
	})
}

// withClient resumes the session behind the token and attaches its client
func (h *Handler) withClient() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := authhttp.GetToken(c)
		if !ok {
			return respond.Error(c, errors.NotSignedIn())
		}
		sess, err := h.sessions.Resume(c.UserContext(), token)
		if err != nil {
			return respond.Error(c, errors.Wrap(err, "resume session"))
		}
		c.Locals(sessionLocal, sess)
		c.Locals(clientLocal, h.clients.get(sess))
		return c.Next()
	}
}

func clientOf(c *fiber.Ctx) *social.Client {
	client, _ := c.Locals(clientLocal).(*social.Client)
	return client
}

func identityOf(c *fiber.Ctx) string {
	sess, ok := c.Locals(sessionLocal).(*session.Session)
	if !ok {
		return ""
	}
	id, _ := sess.IdentityID()
	return id
}

// limitWrites rejects writes above the per-identity rate
func (h *Handler) limitWrites(c *fiber.Ctx) error {
	if h.writes.Allow(identityOf(c)) {
		return c.Next()
	}
	h.metrics.RequestLimited()
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"error":   "rate_limited",
		"message": "Too many writes. Please slow down.",
	})
}

// Close drops every client and stops the limiter cleanup
func (h *Handler) Close() {
	h.writes.Stop()
	h.clients.clear()
}

func (h *Handler) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.cfg.SnapshotWait)
}
