package mongodb

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "social-connect/internal/shared/errors"
	"social-connect/internal/store/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

type recordingFeed struct {
	mu     sync.Mutex
	events []model.ChangeEvent
}

func (f *recordingFeed) Publish(_ context.Context, ev model.ChangeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *recordingFeed) Listen(context.Context, func(model.ChangeEvent)) error { return nil }

func (f *recordingFeed) Close() error { return nil }

func (f *recordingFeed) recorded() []model.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ChangeEvent(nil), f.events...)
}

var storeClock = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// newMockStore opens a Store on the mock deployment with a fixed clock. The
// index creation response is consumed here and its command event discarded.
func newMockStore(mt *mtest.T) (*Store, *recordingFeed) {
	mt.AddMockResponses(mtest.CreateSuccessResponse())
	feed := &recordingFeed{}
	s, err := NewStore(context.Background(), nil, mt.DB, feed, nil)
	require.NoError(mt, err)
	s.clock = func() time.Time { return storeClock }
	mt.Cleanup(func() { _ = s.Close() })
	mt.ClearEvents()
	return s, feed
}

func documentsNS(mt *mtest.T) string {
	return fmt.Sprintf("%s.%s", mt.DB.Name(), documentsCollection)
}

func lookupM(mt *mtest.T, raw bson.Raw, key ...string) bson.M {
	var out bson.M
	require.NoError(mt, raw.Lookup(key...).Unmarshal(&out))
	return out
}

func TestStore_GetDocument(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		s, _ := newMockStore(mt)
		created := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, documentsNS(mt), mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "chats/u1_u2"},
			{Key: "collection", Value: "chats"},
			{Key: "docId", Value: "u1_u2"},
			{Key: "data", Value: bson.D{
				{Key: "participantIds", Value: bson.A{"u1", "u2"}},
				{Key: "lastMessage", Value: "hi"},
				{Key: "lastMessageAt", Value: created},
			}},
			{Key: "createTime", Value: created},
			{Key: "updateTime", Value: created},
		}))

		doc, err := s.GetDocument(context.Background(), "chats/u1_u2")
		require.NoError(t, err)
		assert.Equal(t, "u1_u2", doc.ID)
		assert.Equal(t, "chats/u1_u2", doc.Path)
		assert.Equal(t, []interface{}{"u1", "u2"}, doc.Data["participantIds"])
		assert.Equal(t, created, doc.Data["lastMessageAt"])
		assert.Equal(t, created, doc.CreateTime)

		evt := mt.GetStartedEvent()
		assert.Equal(t, "find", evt.CommandName)
		assert.Equal(t, bson.M{"_id": "chats/u1_u2"}, lookupM(mt, evt.Command, "filter"))
	})

	mt.Run("not found", func(mt *mtest.T) {
		s, _ := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, documentsNS(mt), mtest.FirstBatch))

		_, err := s.GetDocument(context.Background(), "chats/u1_u2")
		assert.True(t, apperrors.IsNotFound(err))
	})

	mt.Run("invalid path", func(mt *mtest.T) {
		s, _ := newMockStore(mt)
		_, err := s.GetDocument(context.Background(), "chats")
		assert.Error(t, err)
		assert.Nil(t, mt.GetStartedEvent())
	})
}

func TestStore_SetDocument(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	at := primitive.NewDateTimeFromTime(storeClock)

	mt.Run("replace creates", func(mt *mtest.T) {
		s, feed := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: "posts/p1"}}}},
		))

		err := s.SetDocument(context.Background(), "posts/p1", map[string]interface{}{
			"text":      "hello",
			"createdAt": model.ServerTimestamp,
		}, model.SetOptions{})
		require.NoError(t, err)

		evt := mt.GetStartedEvent()
		assert.Equal(t, "update", evt.CommandName)
		assert.True(t, evt.Command.Lookup("updates", "0", "upsert").Boolean())
		update := lookupM(mt, evt.Command, "updates", "0", "u")
		assert.NotContains(t, update, "$currentDate")
		assert.Equal(t, bson.M{
			"data":       bson.M{"text": "hello", "createdAt": at},
			"updateTime": at,
		}, update["$set"])
		assert.Equal(t, bson.M{"collection": "posts", "docId": "p1", "createTime": at}, update["$setOnInsert"])

		events := feed.recorded()
		require.Len(t, events, 1)
		assert.Equal(t, model.ChangeCreated, events[0].Type)
		assert.Equal(t, "posts", events[0].Collection)
		assert.Equal(t, storeClock, events[0].At)
	})

	mt.Run("merge updates", func(mt *mtest.T) {
		s, feed := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		err := s.SetDocument(context.Background(), "chats/u1_u2", map[string]interface{}{
			"lastMessage":   "hey",
			"lastMessageAt": model.ServerTimestamp,
		}, model.SetOptions{Merge: true})
		require.NoError(t, err)

		update := lookupM(mt, mt.GetStartedEvent().Command, "updates", "0", "u")
		assert.Equal(t, bson.M{
			"data.lastMessage":   "hey",
			"data.lastMessageAt": at,
			"updateTime":         at,
		}, update["$set"])

		events := feed.recorded()
		require.Len(t, events, 1)
		assert.Equal(t, model.ChangeUpdated, events[0].Type)
	})

	mt.Run("server error is not published", func(mt *mtest.T) {
		s, feed := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad value"}))

		err := s.SetDocument(context.Background(), "posts/p1", map[string]interface{}{"text": "x"}, model.SetOptions{})
		assert.Error(t, err)
		assert.Empty(t, feed.recorded())
	})
}

func TestStore_UpdateFields(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("array transforms", func(mt *mtest.T) {
		s, feed := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}))

		err := s.UpdateFields(context.Background(), "posts/p1", map[string]interface{}{
			"likerIds": model.ArrayUnion("u1"),
		})
		require.NoError(t, err)

		evt := mt.GetStartedEvent()
		upsert, _ := evt.Command.Lookup("updates", "0", "upsert").BooleanOK()
		assert.False(t, upsert)
		update := lookupM(mt, evt.Command, "updates", "0", "u")
		assert.Equal(t, bson.M{"data.likerIds": bson.M{"$each": bson.A{"u1"}}}, update["$addToSet"])
		require.Len(t, feed.recorded(), 1)
	})

	mt.Run("missing document", func(mt *mtest.T) {
		s, feed := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}))

		err := s.UpdateFields(context.Background(), "posts/missing", map[string]interface{}{"text": "x"})
		assert.True(t, apperrors.IsNotFound(err))
		assert.Empty(t, feed.recorded())
	})
}

func TestStore_DeleteDocument(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deleted", func(mt *mtest.T) {
		s, feed := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		require.NoError(t, s.DeleteDocument(context.Background(), "user/u1/following/u2"))
		events := feed.recorded()
		require.Len(t, events, 1)
		assert.Equal(t, model.ChangeDeleted, events[0].Type)
		assert.Equal(t, "user/u1/following", events[0].Collection)
	})

	mt.Run("already gone", func(mt *mtest.T) {
		s, feed := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		require.NoError(t, s.DeleteDocument(context.Background(), "user/u1/following/u2"))
		assert.Empty(t, feed.recorded())
	})
}

func TestStore_AddDocument(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("insert", func(mt *mtest.T) {
		s, feed := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		id, err := s.AddDocument(context.Background(), "chats/u1_u2/messages", map[string]interface{}{
			"text":      "hi",
			"createdAt": model.ServerTimestamp,
		})
		require.NoError(t, err)
		require.NotEmpty(t, id)

		evt := mt.GetStartedEvent()
		assert.Equal(t, "insert", evt.CommandName)
		var stored storedDocument
		require.NoError(t, evt.Command.Lookup("documents", "0").Unmarshal(&stored))
		assert.Equal(t, "chats/u1_u2/messages/"+id, stored.Path)
		assert.Equal(t, "chats/u1_u2/messages", stored.Collection)
		assert.Equal(t, storeClock, stored.CreateTime.UTC())
		assert.Equal(t, stored.CreateTime, stored.UpdateTime)
		assert.Equal(t, primitive.NewDateTimeFromTime(storeClock), stored.Data["createdAt"])

		events := feed.recorded()
		require.Len(t, events, 1)
		assert.Equal(t, model.ChangeCreated, events[0].Type)
	})
}

func TestStore_RunQuery(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("filter sort and limit", func(mt *mtest.T) {
		s, _ := newMockStore(mt)
		newer := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
		older := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, documentsNS(mt), mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "chats/u1_u2"}, {Key: "collection", Value: "chats"}, {Key: "docId", Value: "u1_u2"},
				{Key: "data", Value: bson.D{{Key: "lastMessageAt", Value: newer}}},
			},
			bson.D{
				{Key: "_id", Value: "chats/u1_u3"}, {Key: "collection", Value: "chats"}, {Key: "docId", Value: "u1_u3"},
				{Key: "data", Value: bson.D{{Key: "lastMessageAt", Value: older}}},
			},
		))

		q := model.NewQuery("chats").
			Where("participantIds", model.OperatorArrayContains, "u1").
			OrderBy("lastMessageAt", model.DirectionDescending).
			WithLimit(20)
		docs, err := s.RunQuery(context.Background(), q)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "u1_u2", docs[0].ID)
		assert.Equal(t, older, docs[1].Data["lastMessageAt"])

		evt := mt.GetStartedEvent()
		filter := lookupM(mt, evt.Command, "filter")
		assert.Equal(t, "chats", filter["collection"])
		assert.Equal(t, bson.M{"$elemMatch": bson.M{"$eq": "u1"}}, filter["data.participantIds"])
		var sort bson.D
		require.NoError(t, evt.Command.Lookup("sort").Unmarshal(&sort))
		assert.Equal(t, bson.D{{Key: "data.lastMessageAt", Value: int32(-1)}, {Key: "docId", Value: int32(1)}}, sort)
		assert.Equal(t, int64(20), evt.Command.Lookup("limit").Int64())
	})

	mt.Run("find error", func(mt *mtest.T) {
		s, _ := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad query"}))

		_, err := s.RunQuery(context.Background(), model.NewQuery("chats"))
		assert.Error(t, err)
	})
}

func TestStore_CountDocuments(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("count", func(mt *mtest.T) {
		s, _ := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, documentsNS(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int64(3)}}))

		n, err := s.CountDocuments(context.Background(), "user/u1/followers")
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, "aggregate", mt.GetStartedEvent().CommandName)
	})
}

func TestStore_ClockStrictlyIncreases(t *testing.T) {
	s := &Store{clock: func() time.Time { return storeClock.Add(300 * time.Microsecond) }}
	first := s.now()
	second := s.now()

	assert.Equal(t, storeClock, first)
	assert.Equal(t, storeClock.Add(time.Millisecond), second)
}
