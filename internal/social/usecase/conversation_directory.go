package usecase

import (
	"context"
	"sort"
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

// ConversationDirectory lists and opens the signed-in identity's conversations
type ConversationDirectory interface {
	// Watch streams the conversations the identity takes part in, most recent first
	Watch(ctx context.Context) (*live.Stream[[]model.ConversationEntry], error)
	// Search finds identities whose display name starts with term
	Search(ctx context.Context, term string) ([]model.Profile, error)
	OpenOrCreate(ctx context.Context, targetID string) (*model.OpenResult, error)
}

// ConversationID derives the id of the conversation between a and b. It does
// not depend on argument order.
func ConversationID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "_" + b
}

type conversationDirectory struct {
	component
}

// NewConversationDirectory creates the conversation directory of sess
func NewConversationDirectory(sess *session.Session, deps Deps) ConversationDirectory {
	return &conversationDirectory{component: newComponent("conversation-directory", sess, deps)}
}

func (d *conversationDirectory) Watch(ctx context.Context) (*live.Stream[[]model.ConversationEntry], error) {
	me, ctx, err := d.actor(ctx, "watch-conversations")
	if err != nil {
		return nil, err
	}

	stream := live.NewStream[[]model.ConversationEntry](ctx)
	d.attach(stream)
	query := storemodel.NewQuery(docpath.CollectionChats).
		Where("participantIds", storemodel.OperatorArrayContains, me)

	go func() {
		defer stream.Close()
		d.listen(stream.Context(), query.Collection, func(ctx context.Context) (repository.Subscription, error) {
			return d.deps.Store.Subscribe(ctx, query)
		}, func(ctx context.Context, snap storemodel.Snapshot) {
			entries := make([]model.ConversationEntry, 0, len(snap.Documents))
			for _, doc := range snap.Documents {
				conv, err := model.ConversationFromDocument(doc)
				if err != nil {
					d.log.WithContext(ctx).Errorf("excluding conversation: %v", err)
					continue
				}
				entries = append(entries, model.ConversationEntry{Conversation: *conv, With: conv.Other(me)})
			}
			sortConversations(entries)
			if stream.Publish(entries) {
				d.deps.Metrics.SnapshotPublished(d.name)
			}
		})
	}()
	return stream, nil
}

// sortConversations orders by lastMessageAt descending; conversations without
// messages go last, ties by id
func sortConversations(entries []model.ConversationEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].LastMessageAt, entries[j].LastMessageAt
		switch {
		case a.IsZero() != b.IsZero():
			return b.IsZero()
		case !a.Equal(b):
			return a.After(b)
		default:
			return entries[i].ID < entries[j].ID
		}
	})
}

func (d *conversationDirectory) Search(ctx context.Context, term string) ([]model.Profile, error) {
	me, ctx, err := d.actor(ctx, "search-profiles")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(term) == "" {
		return []model.Profile{}, nil
	}

	query := storemodel.NewQuery(docpath.CollectionUsers).
		StartsWith("displayName", term).
		OrderBy("displayName", storemodel.DirectionAscending)
	docs, err := d.deps.Store.RunQuery(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "search profiles")
	}

	out := make([]model.Profile, 0, len(docs))
	for _, doc := range docs {
		if doc.ID == me {
			continue
		}
		profile, err := model.ProfileFromDocument(doc)
		if err != nil {
			d.log.WithContext(ctx).Errorf("excluding profile: %v", err)
			continue
		}
		out = append(out, *profile)
	}
	return out, nil
}

func (d *conversationDirectory) OpenOrCreate(ctx context.Context, targetID string) (*model.OpenResult, error) {
	const action = "open-conversation"
	me, ctx, err := d.actor(ctx, action)
	if err != nil {
		return nil, err
	}
	if !docpath.IsValidID(targetID) {
		return nil, errors.NewValidationError("invalid identity id")
	}
	if targetID == me {
		return nil, errors.NewValidationError("cannot open a conversation with yourself")
	}

	id := ConversationID(me, targetID)
	path := docpath.Chat(id)
	doc, err := d.deps.Store.GetDocument(ctx, path)
	if err == nil {
		conv, err := model.ConversationFromDocument(doc)
		if err != nil {
			return nil, d.fail(ctx, action, err)
		}
		other := conv.Other(me)
		return &model.OpenResult{ConversationID: id, TargetID: targetID, TargetName: other.Name}, nil
	}
	if !errors.IsNotFound(err) {
		return nil, d.fail(ctx, action, err)
	}

	targetDoc, err := d.read(ctx, docpath.User(targetID), "profile "+targetID)
	if err != nil {
		return nil, d.fail(ctx, action, err)
	}
	target, err := model.ProfileFromDocument(targetDoc)
	if err != nil {
		return nil, d.fail(ctx, action, err)
	}
	actor, err := authorSnapshot(ctx, d.deps.Store, d.sess, me)
	if err != nil {
		return nil, d.fail(ctx, action, err)
	}

	ids := []interface{}{me, targetID}
	if targetID < me {
		ids = []interface{}{targetID, me}
	}
	fields := map[string]interface{}{
		"participantIds": ids,
		"participantSnapshot": []interface{}{
			actor.SnapshotData(),
			target.Snapshot().SnapshotData(),
		},
		"lastMessage": "",
	}
	if err := d.check(me, guard.OpCreate, path, fields, nil); err != nil {
		return nil, d.fail(ctx, action, err)
	}
	// concurrent creators write identical participant data
	if err := d.deps.Store.SetDocument(ctx, path, fields, storemodel.SetOptions{}); err != nil {
		return nil, d.fail(ctx, action, err)
	}
	d.log.WithContext(ctx).Infof("conversation %s created", id)
	return &model.OpenResult{ConversationID: id, TargetID: targetID, TargetName: target.DisplayName}, nil
}
