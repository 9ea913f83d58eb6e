package usecase

import (
	"context"
	stderrors "errors"
	"sync"

	"social-connect/internal/shared/docpath"
	"social-connect/internal/shared/errors"
	"social-connect/internal/shared/logger"
	storemodel "social-connect/internal/store/domain/model"
	"social-connect/internal/store/domain/repository"
)

// ReconcileReport counts the repairs of one reconciliation
type ReconcileReport struct {
	Recreated int `json:"recreated"`
	Removed   int `json:"removed"`
}

// FollowReconciler repairs follow edges whose mirrors disagree. The
// following marker is ground truth: a missing followers mirror is recreated
// and a followers record without its marker is deleted.
type FollowReconciler struct {
	store repository.DocumentStore
	log   logger.Logger

	mu       sync.Mutex
	suspects map[followPair]struct{}
}

// NewFollowReconciler creates a FollowReconciler
func NewFollowReconciler(store repository.DocumentStore, log logger.Logger) *FollowReconciler {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &FollowReconciler{
		store:    store,
		log:      log.WithComponent("follow-reconciler"),
		suspects: make(map[followPair]struct{}),
	}
}

// MarkInconsistent queues a pair for repair on the next reconciliation of either side
func (r *FollowReconciler) MarkInconsistent(follower, followee string) {
	r.mu.Lock()
	r.suspects[followPair{follower: follower, followee: followee}] = struct{}{}
	r.mu.Unlock()
}

// Suspects returns the number of queued pairs
func (r *FollowReconciler) Suspects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.suspects)
}

// Reconcile implements session.Reconciler
func (r *FollowReconciler) Reconcile(ctx context.Context, identityID string) error {
	_, err := r.Run(ctx, identityID)
	return err
}

// Run repairs the queued pairs involving identityID, then both of its follow collections
func (r *FollowReconciler) Run(ctx context.Context, identityID string) (ReconcileReport, error) {
	var (
		report ReconcileReport
		errs   []error
	)

	for _, pair := range r.suspectsOf(identityID) {
		if err := r.repairPair(ctx, pair, &report); err != nil {
			errs = append(errs, err)
			continue
		}
		r.mu.Lock()
		delete(r.suspects, pair)
		r.mu.Unlock()
	}

	following, err := r.store.RunQuery(ctx, storemodel.NewQuery(docpath.Following(identityID)))
	if err != nil {
		errs = append(errs, errors.Wrap(err, "list following of "+identityID))
	}
	for _, doc := range following {
		if err := r.repairPair(ctx, followPair{follower: identityID, followee: doc.ID}, &report); err != nil {
			errs = append(errs, err)
		}
	}

	followers, err := r.store.RunQuery(ctx, storemodel.NewQuery(docpath.Followers(identityID)))
	if err != nil {
		errs = append(errs, errors.Wrap(err, "list followers of "+identityID))
	}
	for _, doc := range followers {
		if err := r.repairPair(ctx, followPair{follower: doc.ID, followee: identityID}, &report); err != nil {
			errs = append(errs, err)
		}
	}

	if report.Recreated > 0 || report.Removed > 0 {
		r.log.WithContext(ctx).WithFields(map[string]interface{}{
			"identity_id": identityID,
			"recreated":   report.Recreated,
			"removed":     report.Removed,
		}).Info("follow edges repaired")
	}
	return report, stderrors.Join(errs...)
}

func (r *FollowReconciler) suspectsOf(identityID string) []followPair {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []followPair
	for pair := range r.suspects {
		if pair.follower == identityID || pair.followee == identityID {
			out = append(out, pair)
		}
	}
	return out
}

// repairPair makes the followers mirror agree with the following marker
func (r *FollowReconciler) repairPair(ctx context.Context, pair followPair, report *ReconcileReport) error {
	marker, err := r.lookup(ctx, docpath.FollowingMarker(pair.follower, pair.followee))
	if err != nil {
		return err
	}
	mirrorPath := docpath.FollowerMarker(pair.followee, pair.follower)
	mirror, err := r.lookup(ctx, mirrorPath)
	if err != nil {
		return err
	}

	switch {
	case marker != nil && mirror == nil:
		fields := markerFields()
		if at, ok := marker.Data["followedAt"]; ok {
			fields["followedAt"] = at
		}
		if err := r.store.SetDocument(ctx, mirrorPath, fields, storemodel.SetOptions{}); err != nil {
			return errors.Wrap(err, "recreate "+mirrorPath)
		}
		report.Recreated++
	case marker == nil && mirror != nil:
		if err := r.store.DeleteDocument(ctx, mirrorPath); err != nil {
			return errors.Wrap(err, "remove "+mirrorPath)
		}
		report.Removed++
	}
	return nil
}

func (r *FollowReconciler) lookup(ctx context.Context, path string) (*storemodel.Document, error) {
	doc, err := r.store.GetDocument(ctx, path)
	switch {
	case err == nil:
		return doc, nil
	case errors.IsNotFound(err):
		return nil, nil
	default:
		return nil, errors.Wrap(err, "read "+path)
	}
}
