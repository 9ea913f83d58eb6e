package usecase

import (
	"context"
	"strings"

	"social-connect/internal/session"
	"social-connect/internal/shared/docpath"
	"social-connect/internal/shared/errors"
	"social-connect/internal/social/domain/model"
	"social-connect/internal/social/guard"
	"social-connect/internal/social/live"
	storemodel "social-connect/internal/store/domain/model"
	"social-connect/internal/store/domain/repository"
)

// CommentThread syncs the comments of a post
type CommentThread interface {
	// Watch streams the comments of postID in arrival order
	Watch(ctx context.Context, postID string) (*live.Stream[[]model.Comment], error)
	AddComment(ctx context.Context, postID, text string) (string, error)
}

type commentThread struct {
	component
}

// NewCommentThread creates the comment component of sess
func NewCommentThread(sess *session.Session, deps Deps) CommentThread {
	return &commentThread{component: newComponent("comment-thread", sess, deps)}
}

func commentsQuery(postID string) storemodel.Query {
	return storemodel.NewQuery(docpath.Comments(postID)).OrderBy("createdAt", storemodel.DirectionAscending)
}

func (c *commentThread) Watch(ctx context.Context, postID string) (*live.Stream[[]model.Comment], error) {
	_, ctx, err := c.actor(ctx, "watch-comments")
	if err != nil {
		return nil, err
	}
	if !docpath.IsValidID(postID) {
		return nil, errors.NewValidationError("invalid post id")
	}

	stream := live.NewStream[[]model.Comment](ctx)
	c.attach(stream)
	query := commentsQuery(postID)

	go func() {
		defer stream.Close()
		c.listen(stream.Context(), query.Collection, func(ctx context.Context) (repository.Subscription, error) {
			return c.deps.Store.Subscribe(ctx, query)
		}, func(ctx context.Context, snap storemodel.Snapshot) {
			comments := make([]model.Comment, 0, len(snap.Documents))
			for _, doc := range snap.Documents {
				comment, err := model.CommentFromDocument(doc)
				if err != nil {
					c.log.WithContext(ctx).Errorf("excluding comment: %v", err)
					continue
				}
				comments = append(comments, *comment)
			}
			if stream.Publish(comments) {
				c.deps.Metrics.SnapshotPublished(c.name)
			}
		})
	}()
	return stream, nil
}

func (c *commentThread) AddComment(ctx context.Context, postID, text string) (string, error) {
	const action = "add-comment"
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.NewValidationError("comment must not be empty").WithCode(errors.CodeEmptyText)
	}
	me, ctx, err := c.actor(ctx, action)
	if err != nil {
		return "", err
	}
	if !docpath.IsValidID(postID) {
		return "", errors.NewValidationError("invalid post id")
	}

	if _, err := c.read(ctx, docpath.Post(postID), "post "+postID); err != nil {
		return "", c.fail(ctx, action, err)
	}
	author, err := authorSnapshot(ctx, c.deps.Store, c.sess, me)
	if err != nil {
		return "", c.fail(ctx, action, err)
	}

	fields := map[string]interface{}{
		"authorId":     me,
		"authorName":   author.Name,
		"authorAvatar": author.Avatar,
		"text":         text,
		"createdAt":    storemodel.ServerTimestamp,
	}
	collection := docpath.Comments(postID)
	if err := c.check(me, guard.OpCreate, docpath.Join(collection, guard.PendingID), fields, nil); err != nil {
		return "", c.fail(ctx, action, err)
	}
	id, err := c.deps.Store.AddDocument(ctx, collection, fields)
	if err != nil {
		return "", c.fail(ctx, action, err)
	}
	return id, nil
}
