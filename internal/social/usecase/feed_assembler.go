package usecase

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"

	"social-connect/internal/session"
	"social-connect/internal/shared/docpath"
	"social-connect/internal/shared/errors"
	"social-connect/internal/social/domain/model"
	"social-connect/internal/social/guard"
	"social-connect/internal/social/live"
	storemodel "social-connect/internal/store/domain/model"
	"social-connect/internal/store/domain/repository"

	"golang.org/x/sync/errgroup"
)

// FeedAssembler builds the home feed from the posts collection
type FeedAssembler interface {
	// Watch streams the complete, ordered feed after every change to posts
	Watch(ctx context.Context) (*live.Stream[[]model.FeedItem], error)
	// PostsByAuthor assembles the posts of one identity once
	PostsByAuthor(ctx context.Context, authorID string) ([]model.FeedItem, error)
	CreatePost(ctx context.Context, text, imageURL string) (string, error)
	DeletePost(ctx context.Context, postID string) error
}

type feedAssembler struct {
	component

	// countComments is replaceable in tests to control assembly timing
	countComments func(ctx context.Context, postID string) (int, error)
}

// NewFeedAssembler creates the feed component of sess
func NewFeedAssembler(sess *session.Session, deps Deps) FeedAssembler {
	f := &feedAssembler{component: newComponent("feed-assembler", sess, deps)}
	f.countComments = func(ctx context.Context, postID string) (int, error) {
		return f.deps.Store.CountDocuments(ctx, docpath.Comments(postID))
	}
	return f
}

func (f *feedAssembler) Watch(ctx context.Context) (*live.Stream[[]model.FeedItem], error) {
	me, ctx, err := f.actor(ctx, "watch-feed")
	if err != nil {
		return nil, err
	}

	stream := live.NewStream[[]model.FeedItem](ctx)
	f.attach(stream)
	run := &feedRun{
		f:      f,
		me:     me,
		stream: stream,
		reducer: live.NewReducer[[]model.FeedItem](live.WithStaleHook[[]model.FeedItem](func() {
			f.deps.Metrics.StaleDiscarded(f.name)
		})),
	}
	unregister := f.deps.Likes.OnChange(func(string) { run.refresh() })

	go func() {
		defer stream.Close()
		defer unregister()
		defer run.stop()
		f.listen(stream.Context(), docpath.CollectionPosts, func(ctx context.Context) (repository.Subscription, error) {
			return f.deps.Store.Subscribe(ctx, storemodel.NewQuery(docpath.CollectionPosts))
		}, run.onSnapshot)
	}()
	return stream, nil
}

// feedRun is the state of one Watch
type feedRun struct {
	f       *feedAssembler
	me      string
	stream  *live.Stream[[]model.FeedItem]
	reducer *live.Reducer[[]model.FeedItem]

	mu       sync.Mutex
	inFlight context.CancelFunc
	wg       sync.WaitGroup

	pubMu   sync.Mutex
	base    []model.FeedItem
	last    []model.FeedItem
	hasLast bool
}

// onSnapshot starts an assembly for snap and cancels the one still running
// for an older snapshot
func (r *feedRun) onSnapshot(ctx context.Context, snap storemodel.Snapshot) {
	gen := r.reducer.Next()
	actx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if r.inFlight != nil {
		r.inFlight()
	}
	r.inFlight = cancel
	r.mu.Unlock()

	posts := r.f.decodePosts(ctx, snap.Documents)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		items, err := r.f.assemble(actx, r.me, posts)
		if err != nil {
			if actx.Err() == nil {
				r.f.log.WithContext(ctx).Warnf("feed assembly %d dropped: %v", gen, err)
			}
			return
		}
		r.reducer.Apply(gen, items, r.publish)
	}()
}

func (r *feedRun) stop() {
	r.mu.Lock()
	if r.inFlight != nil {
		r.inFlight()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// publish installs a new assembled list; called under the reducer lock
func (r *feedRun) publish(items []model.FeedItem) {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	r.base = items
	r.emit()
}

// refresh re-applies pending optimistic likes to the current list
func (r *feedRun) refresh() {
	r.pubMu.Lock()
	defer r.pubMu.Unlock()
	if r.base != nil {
		r.emit()
	}
}

func (r *feedRun) emit() {
	view := r.f.overlay(r.base)
	if r.hasLast && reflect.DeepEqual(view, r.last) {
		return
	}
	if r.stream.Publish(view) {
		r.last = view
		r.hasLast = true
		r.f.deps.Metrics.SnapshotPublished(r.f.name)
	}
}

// overlay shows pending like toggles on top of the stored liker sets
func (f *feedAssembler) overlay(base []model.FeedItem) []model.FeedItem {
	out := make([]model.FeedItem, len(base))
	for i, item := range base {
		liked := f.deps.Likes.Resolve(item.ID, item.LikedByMe)
		if liked != item.LikedByMe {
			item.LikedByMe = liked
			if liked {
				item.LikeCount++
			} else {
				item.LikeCount--
			}
		}
		out[i] = item
	}
	return out
}

// decodePosts drops and logs documents that are not valid posts
func (f *feedAssembler) decodePosts(ctx context.Context, docs []*storemodel.Document) []*model.Post {
	posts := make([]*model.Post, 0, len(docs))
	for _, doc := range docs {
		post, err := model.PostFromDocument(doc)
		if err != nil {
			f.log.WithContext(ctx).Errorf("excluding post: %v", err)
			continue
		}
		posts = append(posts, post)
	}
	return posts
}

// assemble reads every comment count and returns the sorted feed. A single
// failed read fails the whole assembly.
func (f *feedAssembler) assemble(ctx context.Context, me string, posts []*model.Post) ([]model.FeedItem, error) {
	items := make([]model.FeedItem, len(posts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.deps.FanOut)
	for i, post := range posts {
		g.Go(func() error {
			count, err := f.countComments(gctx, post.ID)
			if err != nil {
				return errors.Wrap(err, "count comments of "+post.ID)
			}
			liked := post.LikedBy(me)
			f.deps.Likes.Settle(post.ID, liked)
			items[i] = model.FeedItem{
				Post:         *post,
				CommentCount: count,
				LikeCount:    len(post.LikerIDs),
				LikedByMe:    liked,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(a, b int) bool {
		if !items[a].CreatedAt.Equal(items[b].CreatedAt) {
			return items[a].CreatedAt.After(items[b].CreatedAt)
		}
		return items[a].ID > items[b].ID
	})
	return items, nil
}

func (f *feedAssembler) PostsByAuthor(ctx context.Context, authorID string) ([]model.FeedItem, error) {
	me, ctx, err := f.actor(ctx, "posts-by-author")
	if err != nil {
		return nil, err
	}
	if !docpath.IsValidID(authorID) {
		return nil, errors.NewValidationError("invalid identity id")
	}
	docs, err := f.deps.Store.RunQuery(ctx, storemodel.NewQuery(docpath.CollectionPosts).
		Where("authorId", storemodel.OperatorEqual, authorID))
	if err != nil {
		return nil, errors.Wrap(err, "query posts of "+authorID)
	}
	items, err := f.assemble(ctx, me, f.decodePosts(ctx, docs))
	if err != nil {
		return nil, err
	}
	return f.overlay(items), nil
}

func (f *feedAssembler) CreatePost(ctx context.Context, text, imageURL string) (string, error) {
	const action = "create-post"
	me, ctx, err := f.actor(ctx, action)
	if err != nil {
		return "", err
	}
	text, imageURL = strings.TrimSpace(text), strings.TrimSpace(imageURL)
	if text == "" && imageURL == "" {
		return "", errors.NewValidationError("a post needs text or an image").WithCode(errors.CodeEmptyText)
	}

	author, err := authorSnapshot(ctx, f.deps.Store, f.sess, me)
	if err != nil {
		return "", f.fail(ctx, action, err)
	}
	fields := map[string]interface{}{
		"authorId":     me,
		"authorName":   author.Name,
		"authorAvatar": author.Avatar,
		"text":         text,
		"imageUrl":     imageURL,
		"createdAt":    storemodel.ServerTimestamp,
		"likerIds":     []interface{}{},
	}
	if err := f.check(me, guard.OpCreate, docpath.Join(docpath.CollectionPosts, guard.PendingID), fields, nil); err != nil {
		return "", f.fail(ctx, action, err)
	}
	id, err := f.deps.Store.AddDocument(ctx, docpath.CollectionPosts, fields)
	if err != nil {
		return "", f.fail(ctx, action, err)
	}
	f.log.WithContext(ctx).Infof("post %s created", id)
	return id, nil
}

func (f *feedAssembler) DeletePost(ctx context.Context, postID string) error {
	const action = "delete-post"
	me, ctx, err := f.actor(ctx, action)
	if err != nil {
		return err
	}
	if !docpath.IsValidID(postID) {
		return errors.NewValidationError("invalid post id")
	}
	path := docpath.Post(postID)
	doc, err := f.read(ctx, path, "post "+postID)
	if err != nil {
		return f.fail(ctx, action, err)
	}
	if err := f.check(me, guard.OpDelete, path, nil, doc.Data); err != nil {
		return f.fail(ctx, action, err)
	}
	if err := f.deps.Store.DeleteDocument(ctx, path); err != nil {
		return f.fail(ctx, action, err)
	}
	return nil
}

// authorSnapshot copies the actor's current profile for denormalized records.
// A missing profile falls back to the session's display name.
func authorSnapshot(ctx context.Context, store repository.DocumentStore, sess *session.Session, me string) (model.ParticipantSnapshot, error) {
	doc, err := store.GetDocument(ctx, docpath.User(me))
	if err == nil {
		profile, perr := model.ProfileFromDocument(doc)
		if perr == nil {
			return profile.Snapshot(), nil
		}
	} else if !errors.IsNotFound(err) {
		return model.ParticipantSnapshot{}, errors.Wrap(err, "read profile "+me)
	}
	identity, err := sess.Identity()
	if err != nil {
		return model.ParticipantSnapshot{}, err
	}
	return model.ParticipantSnapshot{ID: me, Name: identity.DisplayName}, nil
}
