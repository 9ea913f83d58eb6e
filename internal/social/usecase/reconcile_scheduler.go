package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"social-connect/internal/shared/eventbus"
	"social-connect/internal/shared/logger"

	"github.com/adhocore/gronx"
)

// DefaultReconcileCron runs the sweep every fifteen minutes
const DefaultReconcileCron = "*/15 * * * *"

// ReconcileScheduler periodically reconciles the follow edges of identities
// that started a session within the activity window.
type ReconcileScheduler struct {
	reconciler *FollowReconciler
	cron       string
	window     time.Duration
	log        logger.Logger
	now        func() time.Time

	mu     sync.Mutex
	active map[string]time.Time
}

// NewReconcileScheduler validates cron and creates a scheduler. An empty cron
// selects DefaultReconcileCron.
func NewReconcileScheduler(reconciler *FollowReconciler, cron string, window time.Duration, log logger.Logger) (*ReconcileScheduler, error) {
	if cron == "" {
		cron = DefaultReconcileCron
	}
	if !gronx.IsValid(cron) {
		return nil, fmt.Errorf("invalid reconcile cron expression: %s", cron)
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ReconcileScheduler{
		reconciler: reconciler,
		cron:       cron,
		window:     window,
		log:        log.WithComponent("reconcile-scheduler"),
		now:        time.Now,
		active:     make(map[string]time.Time),
	}, nil
}

// Observe records every identity that starts a session on bus until the
// returned func is called
func (s *ReconcileScheduler) Observe(bus eventbus.EventBusInterface) (stop func()) {
	return bus.Subscribe(eventbus.EventTypeSessionStarted, func(ctx context.Context, event eventbus.Event) error {
		if id, ok := eventbus.IdentityID(event); ok {
			s.Touch(id)
		}
		return nil
	})
}

// Touch marks identityID as recently active
func (s *ReconcileScheduler) Touch(identityID string) {
	s.mu.Lock()
	s.active[identityID] = s.now()
	s.mu.Unlock()
}

// Recent returns the identities active within the window and forgets the rest
func (s *ReconcileScheduler) Recent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.window)
	ids := make([]string, 0, len(s.active))
	for id, at := range s.active {
		if at.Before(cutoff) {
			delete(s.active, id)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Sweep reconciles every recent identity once and returns the summed report
func (s *ReconcileScheduler) Sweep(ctx context.Context) ReconcileReport {
	var total ReconcileReport
	for _, id := range s.Recent() {
		report, err := s.reconciler.Run(ctx, id)
		if err != nil {
			s.log.WithContext(ctx).Warnf("reconcile %s: %v", id, err)
		}
		total.Recreated += report.Recreated
		total.Removed += report.Removed
	}
	return total
}

// Run sweeps at every tick of the cron expression until ctx is done
func (s *ReconcileScheduler) Run(ctx context.Context) {
	s.log.Infof("follow reconciliation scheduled (%s)", s.cron)
	for {
		next, err := gronx.NextTickAfter(s.cron, s.now().UTC(), false)
		if err != nil {
			s.log.Errorf("next reconcile tick for %q: %v", s.cron, err)
			next = s.now().Add(time.Minute)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("follow reconciliation stopped")
			return
		case <-timer.C:
		}

		report := s.Sweep(ctx)
		s.log.Debugf("reconcile sweep done (recreated=%d, removed=%d)", report.Recreated, report.Removed)
	}
}
