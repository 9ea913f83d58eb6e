package usecase

import (
	"context"

	"social-connect/internal/session"
	"social-connect/internal/shared/docpath"
	"social-connect/internal/shared/errors"
	"social-connect/internal/social/domain/model"
	"social-connect/internal/social/guard"
	storemodel "social-connect/internal/store/domain/model"

	"golang.org/x/sync/errgroup"
)

// ReactionEngine toggles likes and follows
type ReactionEngine interface {
	// ToggleLike flips the actor's like on a post and returns the new state
	ToggleLike(ctx context.Context, postID string) (bool, error)
	// ToggleFollow flips the actor's follow of target and returns the new state
	ToggleFollow(ctx context.Context, targetID string) (bool, error)
	IsFollowing(ctx context.Context, targetID string) (bool, error)
	FollowCounts(ctx context.Context, identityID string) (model.FollowCounts, error)
}

// InconsistencyReporter is told about follow pairs left with one mirror missing
type InconsistencyReporter interface {
	MarkInconsistent(follower, followee string)
}

type reactionEngine struct {
	component
	reporter InconsistencyReporter
}

// NewReactionEngine creates the reaction component of sess. reporter may be nil.
func NewReactionEngine(sess *session.Session, deps Deps, reporter InconsistencyReporter) ReactionEngine {
	return &reactionEngine{component: newComponent("reaction-engine", sess, deps), reporter: reporter}
}

func (r *reactionEngine) ToggleLike(ctx context.Context, postID string) (bool, error) {
	const action = "toggle-like"
	me, ctx, err := r.actor(ctx, action)
	if err != nil {
		return false, err
	}
	if !docpath.IsValidID(postID) {
		return false, errors.NewValidationError("invalid post id")
	}

	path := docpath.Post(postID)
	doc, err := r.read(ctx, path, "post "+postID)
	if err != nil {
		return false, r.fail(ctx, action, err)
	}
	post, err := model.PostFromDocument(doc)
	if err != nil {
		return false, r.fail(ctx, action, err)
	}

	liked := !post.LikedBy(me)
	var change interface{} = storemodel.ArrayRemove(me)
	if liked {
		change = storemodel.ArrayUnion(me)
	}
	fields := map[string]interface{}{"likerIds": change}
	if err := r.check(me, guard.OpUpdate, path, fields, doc.Data); err != nil {
		return false, r.fail(ctx, action, err)
	}

	err = r.deps.Likes.Run(ctx, postID, liked, func(ctx context.Context) error {
		return r.deps.Store.UpdateFields(ctx, path, fields)
	})
	if err != nil {
		return !liked, r.fail(ctx, action, err)
	}
	return liked, nil
}

func (r *reactionEngine) ToggleFollow(ctx context.Context, targetID string) (bool, error) {
	const action = "toggle-follow"
	me, ctx, err := r.actor(ctx, action)
	if err != nil {
		return false, err
	}
	if !docpath.IsValidID(targetID) {
		return false, errors.NewValidationError("invalid identity id")
	}
	if targetID == me {
		return false, errors.NewValidationError("cannot follow yourself")
	}
	if _, err := r.read(ctx, docpath.User(targetID), "profile "+targetID); err != nil {
		return false, r.fail(ctx, action, err)
	}
	following, err := r.exists(ctx, docpath.FollowingMarker(me, targetID))
	if err != nil {
		return false, r.fail(ctx, action, err)
	}

	pair := followPair{follower: me, followee: targetID}
	steps := pair.follow()
	if following {
		steps = pair.unfollow()
	}
	for _, s := range steps {
		if err := r.check(me, s.op, s.path, s.fields, nil); err != nil {
			return following, r.fail(ctx, action, err)
		}
	}

	err = r.deps.Follows.Run(ctx, targetID, !following, func(ctx context.Context) error {
		return r.applyPair(ctx, action, pair, steps)
	})
	if err != nil {
		return following, r.fail(ctx, action, err)
	}
	return !following, nil
}

// applyPair writes the following marker, then the followers mirror. A failed
// mirror write is retried, then the marker write is undone. When the undo
// fails too the pair is reported for reconciliation.
func (r *reactionEngine) applyPair(ctx context.Context, action string, pair followPair, steps [2]followStep) error {
	first, second := steps[0], steps[1]
	if err := r.apply(ctx, first); err != nil {
		return errors.Wrap(err, "write following marker")
	}

	err := r.retried(ctx, action, func(ctx context.Context) error { return r.apply(ctx, second) })
	if err == nil {
		return nil
	}
	log := r.log.WithContext(ctx).WithFields(map[string]interface{}{
		"follower": pair.follower,
		"followee": pair.followee,
	})
	log.Warnf("followers mirror write failed, compensating: %v", err)

	undo := first.inverse()
	if cerr := r.retried(ctx, action+"-compensate", func(ctx context.Context) error { return r.apply(ctx, undo) }); cerr != nil {
		log.Errorf("compensation failed, follow edge left inconsistent: %v", cerr)
		if r.reporter != nil {
			r.reporter.MarkInconsistent(pair.follower, pair.followee)
		}
		return errors.NewRemoteError("follow edge left inconsistent").
			WithCode(errors.CodeFollowEdgeInconsistent).
			WithCause(err).
			WithDetail("follower", pair.follower).
			WithDetail("followee", pair.followee)
	}
	return errors.NewRemoteError("write followers mirror").WithCode(errors.CodeUnknown).WithCause(err)
}

func (r *reactionEngine) apply(ctx context.Context, s followStep) error {
	if s.op == guard.OpDelete {
		return r.deps.Store.DeleteDocument(ctx, s.path)
	}
	return r.deps.Store.SetDocument(ctx, s.path, s.fields, storemodel.SetOptions{})
}

func (r *reactionEngine) IsFollowing(ctx context.Context, targetID string) (bool, error) {
	me, ctx, err := r.actor(ctx, "is-following")
	if err != nil {
		return false, err
	}
	if !docpath.IsValidID(targetID) {
		return false, errors.NewValidationError("invalid identity id")
	}
	following, err := r.exists(ctx, docpath.FollowingMarker(me, targetID))
	if err != nil {
		return false, err
	}
	r.deps.Follows.Settle(targetID, following)
	return r.deps.Follows.Resolve(targetID, following), nil
}

func (r *reactionEngine) FollowCounts(ctx context.Context, identityID string) (model.FollowCounts, error) {
	_, ctx, err := r.actor(ctx, "follow-counts")
	if err != nil {
		return model.FollowCounts{}, err
	}
	if !docpath.IsValidID(identityID) {
		return model.FollowCounts{}, errors.NewValidationError("invalid identity id")
	}

	var counts model.FollowCounts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counts.Followers, err = r.deps.Store.CountDocuments(gctx, docpath.Followers(identityID))
		return err
	})
	g.Go(func() (err error) {
		counts.Following, err = r.deps.Store.CountDocuments(gctx, docpath.Following(identityID))
		return err
	})
	if err := g.Wait(); err != nil {
		return model.FollowCounts{}, errors.Wrap(err, "count follows of "+identityID)
	}
	return counts, nil
}

type followPair struct {
	follower string
	followee string
}

type followStep struct {
	op     guard.Operation
	path   string
	fields map[string]interface{}
}

func (s followStep) inverse() followStep {
	if s.op == guard.OpDelete {
		return followStep{op: guard.OpCreate, path: s.path, fields: markerFields()}
	}
	return followStep{op: guard.OpDelete, path: s.path}
}

func markerFields() map[string]interface{} {
	return map[string]interface{}{"followedAt": storemodel.ServerTimestamp}
}

// follow and unfollow start with the follower's own following marker, which
// reconciliation treats as ground truth
func (p followPair) follow() [2]followStep {
	return [2]followStep{
		{op: guard.OpCreate, path: docpath.FollowingMarker(p.follower, p.followee), fields: markerFields()},
		{op: guard.OpCreate, path: docpath.FollowerMarker(p.followee, p.follower), fields: markerFields()},
	}
}

func (p followPair) unfollow() [2]followStep {
	return [2]followStep{
		{op: guard.OpDelete, path: docpath.FollowingMarker(p.follower, p.followee)},
		{op: guard.OpDelete, path: docpath.FollowerMarker(p.followee, p.follower)},
	}
}
