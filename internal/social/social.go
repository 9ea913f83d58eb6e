package social

import (
	"context"
	"time"

	"social-connect/internal/session"
	"social-connect/internal/shared/eventbus"
	"social-connect/internal/shared/logger"
	"social-connect/internal/shared/retry"
	"social-connect/internal/social/guard"
	"social-connect/internal/social/notify"
	"social-connect/internal/social/optimistic"
	"social-connect/internal/social/usecase"
	"social-connect/internal/store/domain/repository"
)

// Client bundles the sync components of one session. Likes and follows
// share optimistic state between the feed and the reaction engine.
type Client struct {
	Session       *session.Session
	Profile       usecase.ProfileSync
	Feed          usecase.FeedAssembler
	Reactions     usecase.ReactionEngine
	Comments      usecase.CommentThread
	Conversations usecase.ConversationDirectory
	Messages      usecase.MessageStream
}

// SocialModule wires the sync components to a store
type SocialModule struct {
	deps       usecase.Deps
	reconciler *usecase.FollowReconciler
	scheduler  *usecase.ReconcileScheduler
	log        logger.Logger
}

// Option customises module construction
type Option func(*moduleOptions)

type moduleOptions struct {
	deps   usecase.Deps
	rules  []guard.Rule
	cron   string
	window time.Duration
}

// WithNotifier routes failure notifications to n
func WithNotifier(n notify.Notifier) Option {
	return func(o *moduleOptions) { o.deps.Notifier = n }
}

// WithMetrics reports component activity to m
func WithMetrics(m usecase.Metrics) Option {
	return func(o *moduleOptions) { o.deps.Metrics = m }
}

// WithRetryPolicy bounds second-step writes
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *moduleOptions) { o.deps.Retry = p }
}

// WithBackoff bounds subscription re-establishment
func WithBackoff(p retry.Policy) Option {
	return func(o *moduleOptions) { o.deps.Backoff = p }
}

// WithFanOut caps concurrent comment count reads per feed assembly
func WithFanOut(n int) Option {
	return func(o *moduleOptions) { o.deps.FanOut = n }
}

// WithRules replaces the default write rules
func WithRules(rules ...guard.Rule) Option {
	return func(o *moduleOptions) { o.rules = rules }
}

// WithReconcileSchedule sets the sweep cron expression and activity window
func WithReconcileSchedule(cron string, window time.Duration) Option {
	return func(o *moduleOptions) {
		o.cron = cron
		o.window = window
	}
}

// NewSocialModule compiles the write rules and builds the follow reconciler
func NewSocialModule(store repository.DocumentStore, log logger.Logger, opts ...Option) (*SocialModule, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	o := &moduleOptions{}
	for _, opt := range opts {
		opt(o)
	}

	g, err := guard.New(o.rules...)
	if err != nil {
		return nil, err
	}
	deps := o.deps
	deps.Store = store
	deps.Guard = g
	deps.Log = log

	reconciler := usecase.NewFollowReconciler(store, log)
	scheduler, err := usecase.NewReconcileScheduler(reconciler, o.cron, o.window, log)
	if err != nil {
		return nil, err
	}

	return &SocialModule{
		deps:       deps,
		reconciler: reconciler,
		scheduler:  scheduler,
		log:        log.WithComponent("social"),
	}, nil
}

// Client builds the components of sess with fresh optimistic state
func (m *SocialModule) Client(sess *session.Session) *Client {
	deps := m.deps
	deps.Likes = optimistic.NewTracker[string, bool]()
	deps.Follows = optimistic.NewTracker[string, bool]()

	return &Client{
		Session:       sess,
		Profile:       usecase.NewProfileSync(sess, deps),
		Feed:          usecase.NewFeedAssembler(sess, deps),
		Reactions:     usecase.NewReactionEngine(sess, deps, m.reconciler),
		Comments:      usecase.NewCommentThread(sess, deps),
		Conversations: usecase.NewConversationDirectory(sess, deps),
		Messages:      usecase.NewMessageStream(sess, deps),
	}
}

// Reconciler repairs follow edges; install it on the session manager
func (m *SocialModule) Reconciler() *usecase.FollowReconciler {
	return m.reconciler
}

// Scheduler returns the periodic reconciliation sweep
func (m *SocialModule) Scheduler() *usecase.ReconcileScheduler {
	return m.scheduler
}

// Start records session activity from bus and runs the reconciliation
// schedule until ctx is done
func (m *SocialModule) Start(ctx context.Context, bus eventbus.EventBusInterface) {
	if bus != nil {
		stop := m.scheduler.Observe(bus)
		go func() {
			<-ctx.Done()
			stop()
		}()
	}
	go m.scheduler.Run(ctx)
	m.log.Info("social module started")
}
