package di

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"social-connect/internal/auth"
	"social-connect/internal/config"
	gateway "social-connect/internal/gateway/http"
	"social-connect/internal/metrics"
	"social-connect/internal/session"
	"social-connect/internal/shared/eventbus"
	"social-connect/internal/shared/logger"
	"social-connect/internal/social"
	"social-connect/internal/social/notify"
	"social-connect/internal/store"
	"social-connect/internal/store/domain/repository"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Container owns every long-lived component and shuts them down in reverse order
type Container struct {
	mu       sync.RWMutex
	services map[reflect.Type]interface{}

	Config  *config.Config
	Logger  logger.Logger
	Bus     *eventbus.EventBus
	Metrics *metrics.Registry
	Store   repository.DocumentStore
	Inbox   *notify.Inbox

	AuthModule   *auth.AuthModule
	Sessions     *session.Manager
	SocialModule *social.SocialModule
	Gateway      *gateway.Handler

	// MongoDB holds accounts when the mongodb backend is selected
	mongoClient *mongo.Client
	MongoDB     *mongo.Database
}

// NewContainer creates an empty container
func NewContainer(log logger.Logger) *Container {
	if log == nil {
		log = logger.NewLogger()
	}
	return &Container{
		services: make(map[reflect.Type]interface{}),
		Logger:   log,
	}
}

// Initialize builds every module from cfg. Order: store, auth, social, sessions, gateway.
func (c *Container) Initialize(ctx context.Context, cfg *config.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Config = cfg

	c.Bus = eventbus.NewEventBus(c.Logger)
	c.Metrics = metrics.New()

	storeOpts := cfg.StoreOptions()
	storeOpts.Observer = c.Metrics
	docs, err := store.Open(ctx, storeOpts, c.Bus, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	c.Store = docs

	var authOpts []auth.Option
	if cfg.Store.Backend == store.BackendMongoDB {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Store.MongoURI))
		if err != nil {
			return fmt.Errorf("failed to connect account database: %w", err)
		}
		c.mongoClient = client
		c.MongoDB = client.Database(cfg.Store.MongoDatabase)
		authOpts = append(authOpts, auth.WithDatabase(c.MongoDB))
	}
	authModule, err := auth.NewAuthModule(ctx, &cfg.Auth, c.Logger, authOpts...)
	if err != nil {
		return fmt.Errorf("failed to create auth module: %w", err)
	}
	c.AuthModule = authModule

	c.Inbox = notify.NewInbox()
	socialModule, err := social.NewSocialModule(docs, c.Logger,
		social.WithNotifier(notify.Multi{notify.NewLogNotifier(c.Logger), c.Inbox}),
		social.WithMetrics(c.Metrics),
		social.WithRetryPolicy(cfg.RetryPolicy()),
		social.WithBackoff(cfg.BackoffPolicy()),
		social.WithFanOut(cfg.Sync.FanOut),
		social.WithReconcileSchedule(cfg.Sync.ReconcileCron, cfg.Sync.ReconcileWindow),
	)
	if err != nil {
		return fmt.Errorf("failed to create social module: %w", err)
	}
	c.SocialModule = socialModule

	c.Sessions = session.NewManager(authModule.Provider(), docs, c.Logger,
		session.WithEventBus(c.Bus),
		session.WithRetryPolicy(cfg.RetryPolicy()),
		session.WithReconciler(socialModule.Reconciler()),
	)

	c.Gateway = gateway.NewHandler(gateway.Config{
		WebSocketPath:  cfg.Realtime.WebSocketPath,
		SendBuffer:     cfg.Realtime.ClientSendChannelBuffer,
		WriteRPS:       cfg.RateLimit.WriteRPS,
		WriteBurst:     cfg.RateLimit.WriteBurst,
		CORSOrigins:    cfg.Server.CORSOrigins,
		AuthRateMax:    cfg.RateLimit.AuthMax,
		AuthRateWindow: cfg.RateLimit.AuthWindow,
	}, gateway.Deps{
		Sessions: c.Sessions,
		Social:   socialModule,
		Auth:     authModule,
		Inbox:    c.Inbox,
		Metrics:  c.Metrics,
		Log:      c.Logger,
	})

	for _, svc := range []interface{}{c.Store, c.AuthModule, c.SocialModule, c.Sessions, c.Gateway, c.Metrics} {
		c.register(svc)
	}
	return nil
}

// Start runs background work: reconcile scheduling and session observation
func (c *Container) Start(ctx context.Context) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.SocialModule.Start(ctx, c.Bus)
}

func (c *Container) register(service interface{}) {
	serviceType := reflect.TypeOf(service)
	if serviceType.Kind() == reflect.Ptr {
		serviceType = serviceType.Elem()
	}
	c.services[serviceType] = service
}

// Register registers a service instance
func (c *Container) Register(service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.register(service)
}

// Resolve resolves a service by type
func (c *Container) Resolve(serviceType reflect.Type) (interface{}, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if serviceType.Kind() == reflect.Ptr {
		serviceType = serviceType.Elem()
	}
	if service, exists := c.services[serviceType]; exists {
		return service, nil
	}
	return nil, fmt.Errorf("service of type %v not registered", serviceType)
}

// GetService is a generic helper for resolving services
func GetService[T any](c *Container) (T, error) {
	var zero T
	service, err := c.Resolve(reflect.TypeOf(&zero).Elem())
	if err != nil {
		return zero, err
	}
	if typedService, ok := service.(T); ok {
		return typedService, nil
	}
	return zero, fmt.Errorf("service is not of expected type %T", zero)
}

// HealthCheck pings the account database when one is connected
func (c *Container) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Store == nil {
		return fmt.Errorf("container not initialized")
	}
	if c.mongoClient != nil {
		if err := c.mongoClient.Ping(ctx, nil); err != nil {
			return fmt.Errorf("MongoDB health check failed: %w", err)
		}
	}
	return nil
}

// Cleanup shuts components down in reverse order of initialization
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.Gateway != nil {
		c.Gateway.Close()
	}
	if c.Sessions != nil {
		c.Sessions.Close()
	}
	if c.AuthModule != nil {
		if err := c.AuthModule.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store: %w", err))
		}
	}
	if c.mongoClient != nil {
		if err := c.mongoClient.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect MongoDB: %w", err))
		}
	}
	c.services = make(map[reflect.Type]interface{})

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// Close cleans up with a 30 second deadline
func (c *Container) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return c.Cleanup(ctx)
}
