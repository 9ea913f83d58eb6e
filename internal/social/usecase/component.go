package usecase

import (
	"context"
	"time"

	"social-connect/internal/session"
	"social-connect/internal/shared/errors"
	"social-connect/internal/shared/logger"
	"social-connect/internal/shared/retry"
	"social-connect/internal/shared/utils"
	"social-connect/internal/social/guard"
	"social-connect/internal/social/notify"
	"social-connect/internal/social/optimistic"
	storemodel "social-connect/internal/store/domain/model"
	"social-connect/internal/store/domain/repository"
)

// Metrics receives component activity. Implemented by the metrics registry.
type Metrics interface {
	WriteFailed(action string)
	WriteRetried(action string)
	StaleDiscarded(component string)
	SnapshotPublished(component string)
}

type nopMetrics struct{}

func (nopMetrics) WriteFailed(string)       {}
func (nopMetrics) WriteRetried(string)      {}
func (nopMetrics) StaleDiscarded(string)    {}
func (nopMetrics) SnapshotPublished(string) {}

// Deps are the collaborators shared by every component of one session
type Deps struct {
	Store    repository.DocumentStore
	Guard    *guard.Guard
	Notifier notify.Notifier
	Log      logger.Logger
	Metrics  Metrics

	// Retry bounds second-step writes (follow mirror, conversation summary)
	Retry retry.Policy
	// Backoff bounds re-establishing a failed subscription
	Backoff retry.Policy
	// FanOut caps concurrent comment count reads per feed assembly
	FanOut int

	Likes   *optimistic.Tracker[string, bool]
	Follows *optimistic.Tracker[string, bool]
}

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logger.NewNopLogger()
	}
	if d.Guard == nil {
		d.Guard = guard.MustNew()
	}
	if d.Notifier == nil {
		d.Notifier = notify.NewLogNotifier(d.Log)
	}
	if d.Metrics == nil {
		d.Metrics = nopMetrics{}
	}
	if d.Retry.MaxAttempts == 0 {
		d.Retry = retry.DefaultPolicy()
	}
	if d.Backoff.MaxAttempts == 0 && d.Backoff.Delay == 0 {
		d.Backoff = retry.Policy{Delay: 200 * time.Millisecond, MaxDelay: 10 * time.Second}
	}
	if d.FanOut <= 0 {
		d.FanOut = 8
	}
	if d.Likes == nil {
		d.Likes = optimistic.NewTracker[string, bool]()
	}
	if d.Follows == nil {
		d.Follows = optimistic.NewTracker[string, bool]()
	}
	return d
}

// component is embedded by every usecase; it binds the session to the shared deps
type component struct {
	name string
	sess *session.Session
	deps Deps
	log  logger.Logger
}

func newComponent(name string, sess *session.Session, deps Deps) component {
	deps = deps.withDefaults()
	return component{
		name: name,
		sess: sess,
		deps: deps,
		log:  deps.Log.WithComponent(name),
	}
}

// actor resolves the signed-in identity and tags ctx with it and the operation name
func (c *component) actor(ctx context.Context, operation string) (string, context.Context, error) {
	if c.sess == nil {
		return "", ctx, errors.NotSignedIn()
	}
	id, err := c.sess.IdentityID()
	if err != nil {
		return "", ctx, err
	}
	ctx = utils.WithIdentityID(ctx, id)
	ctx = utils.WithComponent(ctx, c.name)
	ctx = utils.WithOperation(ctx, operation)
	return id, ctx, nil
}

// fail classifies err, reports it to the user and returns the classified error
func (c *component) fail(ctx context.Context, action string, err error) error {
	classified := errors.Wrap(err, action+" failed")
	c.deps.Metrics.WriteFailed(action)
	c.log.WithContext(ctx).Warnf("%s: %v", action, classified)
	c.deps.Notifier.Notify(ctx, notify.Failure(ctx, action, classified))
	return classified
}

// read fetches a document, mapping absence to a NotFoundError naming what
func (c *component) read(ctx context.Context, path, what string) (*storemodel.Document, error) {
	doc, err := c.deps.Store.GetDocument(ctx, path)
	if err != nil {
		return nil, errors.Wrap(err, what)
	}
	return doc, nil
}

// exists reports whether path holds a document
func (c *component) exists(ctx context.Context, path string) (bool, error) {
	_, err := c.deps.Store.GetDocument(ctx, path)
	switch {
	case err == nil:
		return true, nil
	case errors.IsNotFound(err):
		return false, nil
	default:
		return false, errors.Wrap(err, "read "+path)
	}
}

func (c *component) check(actor string, op guard.Operation, path string, fields, resource map[string]interface{}) error {
	return c.deps.Guard.Check(guard.Request{
		Actor:    actor,
		Op:       op,
		Path:     path,
		Fields:   fields,
		Resource: resource,
	})
}

// retried runs fn under the retry policy and counts every extra attempt
func (c *component) retried(ctx context.Context, action string, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, c.deps.Retry, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			c.deps.Metrics.WriteRetried(action)
		}
		err := fn(ctx)
		if err != nil && (errors.IsValidation(err) || errors.IsAuth(err)) {
			return &retry.Permanent{Err: err}
		}
		return err
	})
}

// canceler is the part of a live stream the session tracks
type canceler interface {
	Cancel()
	OnCancel(fn func())
}

// attach ties s to the session so sign-out cancels it
func (c *component) attach(s canceler) {
	untrack := c.sess.Track(s)
	s.OnCancel(untrack)
}
