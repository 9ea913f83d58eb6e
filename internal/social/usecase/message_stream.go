package usecase

import (
	"context"
	"strings"
	"sync"

	"social-connect/internal/session"
	"social-connect/internal/shared/docpath"
	"social-connect/internal/shared/errors"
	"social-connect/internal/social/domain/model"
	"social-connect/internal/social/guard"
	"social-connect/internal/social/live"
	"social-connect/internal/social/notify"
	storemodel "social-connect/internal/store/domain/model"
	"social-connect/internal/store/domain/repository"
)

// MessageStream syncs the messages of one conversation
type MessageStream interface {
	// Watch streams the messages of conversationID ordered by send time
	Watch(ctx context.Context, conversationID string) (*live.Stream[[]model.Message], error)
	SendMessage(ctx context.Context, conversationID, text string) (string, error)
}

type messageStream struct {
	component
}

// NewMessageStream creates the message component of sess
func NewMessageStream(sess *session.Session, deps Deps) MessageStream {
	return &messageStream{component: newComponent("message-stream", sess, deps)}
}

func messagesQuery(conversationID string) storemodel.Query {
	return storemodel.NewQuery(docpath.Messages(conversationID)).OrderBy("createdAt", storemodel.DirectionAscending)
}

// participantOf loads the conversation and checks me takes part in it
func (m *messageStream) participantOf(ctx context.Context, me, conversationID string) (*storemodel.Document, *model.Conversation, error) {
	doc, err := m.read(ctx, docpath.Chat(conversationID), "conversation "+conversationID)
	if err != nil {
		return nil, nil, err
	}
	conv, err := model.ConversationFromDocument(doc)
	if err != nil {
		return nil, nil, err
	}
	if !conv.HasParticipant(me) {
		return nil, nil, errors.NewForbiddenError("not a participant of conversation " + conversationID)
	}
	return doc, conv, nil
}

func (m *messageStream) Watch(ctx context.Context, conversationID string) (*live.Stream[[]model.Message], error) {
	me, ctx, err := m.actor(ctx, "watch-messages")
	if err != nil {
		return nil, err
	}
	if !docpath.IsValidID(conversationID) {
		return nil, errors.NewValidationError("invalid conversation id")
	}
	if _, _, err := m.participantOf(ctx, me, conversationID); err != nil {
		return nil, err
	}

	stream := live.NewStream[[]model.Message](ctx)
	m.attach(stream)
	query := messagesQuery(conversationID)
	var repairOnce sync.Once

	go func() {
		defer stream.Close()
		m.listen(stream.Context(), query.Collection, func(ctx context.Context) (repository.Subscription, error) {
			return m.deps.Store.Subscribe(ctx, query)
		}, func(ctx context.Context, snap storemodel.Snapshot) {
			messages := make([]model.Message, 0, len(snap.Documents))
			for _, doc := range snap.Documents {
				msg, err := model.MessageFromDocument(doc)
				if err != nil {
					m.log.WithContext(ctx).Errorf("excluding message: %v", err)
					continue
				}
				messages = append(messages, *msg)
			}
			if stream.Publish(messages) {
				m.deps.Metrics.SnapshotPublished(m.name)
			}
			repairOnce.Do(func() { m.repairSummary(ctx, me, conversationID, messages) })
		})
	}()
	return stream, nil
}

// repairSummary rewrites a parent summary that lags behind the newest message
func (m *messageStream) repairSummary(ctx context.Context, me, conversationID string, messages []model.Message) {
	if len(messages) == 0 {
		return
	}
	newest := messages[len(messages)-1]
	doc, conv, err := m.participantOf(ctx, me, conversationID)
	if err != nil {
		m.log.WithContext(ctx).Warnf("summary check of %s: %v", conversationID, err)
		return
	}
	// a summary at or past the newest message we saw may come from a peer's
	// later send; only an older one is stale
	if !conv.LastMessageAt.Before(newest.CreatedAt) {
		return
	}

	fields := map[string]interface{}{"lastMessage": newest.Text, "lastMessageAt": newest.CreatedAt}
	path := docpath.Chat(conversationID)
	if err := m.check(me, guard.OpUpdate, path, fields, doc.Data); err != nil {
		m.log.WithContext(ctx).Warnf("summary repair of %s rejected: %v", conversationID, err)
		return
	}
	if err := m.deps.Store.SetDocument(ctx, path, fields, storemodel.SetOptions{Merge: true}); err != nil {
		m.log.WithContext(ctx).Warnf("summary repair of %s: %v", conversationID, err)
		return
	}
	m.log.WithContext(ctx).Infof("stale summary of %s repaired", conversationID)
}

func (m *messageStream) SendMessage(ctx context.Context, conversationID, text string) (string, error) {
	const action = "send-message"
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.NewValidationError("message must not be empty").WithCode(errors.CodeEmptyText)
	}
	me, ctx, err := m.actor(ctx, action)
	if err != nil {
		return "", err
	}
	if !docpath.IsValidID(conversationID) {
		return "", errors.NewValidationError("invalid conversation id")
	}

	chat, _, err := m.participantOf(ctx, me, conversationID)
	if err != nil {
		return "", m.fail(ctx, action, err)
	}

	fields := map[string]interface{}{
		"senderId":  me,
		"text":      text,
		"createdAt": storemodel.ServerTimestamp,
	}
	collection := docpath.Messages(conversationID)
	if err := m.check(me, guard.OpCreate, docpath.Join(collection, guard.PendingID), fields, chat.Data); err != nil {
		return "", m.fail(ctx, action, err)
	}
	id, err := m.deps.Store.AddDocument(ctx, collection, fields)
	if err != nil {
		return "", m.fail(ctx, action, err)
	}

	// the message is delivered from here on; a lagging summary is repaired by Watch
	summary := map[string]interface{}{"lastMessage": text, "lastMessageAt": storemodel.ServerTimestamp}
	path := docpath.Chat(conversationID)
	err = m.retried(ctx, action, func(ctx context.Context) error {
		return m.deps.Store.SetDocument(ctx, path, summary, storemodel.SetOptions{Merge: true})
	})
	if err != nil {
		classified := errors.Wrap(err, "update conversation summary")
		m.deps.Metrics.WriteFailed("update-summary")
		m.log.WithContext(ctx).Warnf("message %s sent but summary of %s is stale: %v", id, conversationID, classified)
		m.deps.Notifier.Notify(ctx, notify.Failure(ctx, "update-summary", classified))
	}
	return id, nil
}
