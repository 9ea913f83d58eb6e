package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"social-connect/internal/shared/docpath"
	"social-connect/internal/shared/errors"
	"social-connect/internal/shared/logger"
	"social-connect/internal/store/domain/model"
	"social-connect/internal/store/domain/repository"
	"social-connect/internal/store/usecase"

	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const documentsCollection = "documents"

// storedDocument is the on-disk layout: one Mongo document per store document,
// keyed by its full path.
type storedDocument struct {
	Path       string    `bson:"_id"`
	Collection string    `bson:"collection"`
	DocID      string    `bson:"docId"`
	Data       bson.M    `bson:"data"`
	CreateTime time.Time `bson:"createTime"`
	UpdateTime time.Time `bson:"updateTime"`
}

func (d *storedDocument) toModel() *model.Document {
	data, _ := normalizeValue(d.Data).(map[string]interface{})
	if data == nil {
		data = map[string]interface{}{}
	}
	return &model.Document{
		ID:         d.DocID,
		Path:       d.Path,
		Data:       data,
		CreateTime: d.CreateTime.UTC(),
		UpdateTime: d.UpdateTime.UTC(),
	}
}

// Store is a DocumentStore persisted in a single MongoDB collection
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	feed   repository.ChangeFeed
	hub    *usecase.ListenerHub
	log    logger.Logger

	clockMu sync.Mutex
	lastTS  time.Time
	clock   func() time.Time
}

var _ repository.DocumentStore = (*Store)(nil)

// Connect dials uri and opens the store on database
func Connect(ctx context.Context, uri, database string, feed repository.ChangeFeed, log logger.Logger, opts ...usecase.HubOption) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "connect mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping mongodb")
	}
	return NewStore(ctx, client, client.Database(database), feed, log, opts...)
}

// NewStore opens the store on an existing database handle and ensures its indexes
func NewStore(ctx context.Context, client *mongo.Client, db *mongo.Database, feed repository.ChangeFeed, log logger.Logger, opts ...usecase.HubOption) (*Store, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	s := &Store{
		client: client,
		coll:   db.Collection(documentsCollection),
		feed:   feed,
		log:    log.WithComponent("mongodb-store"),
		clock:  time.Now,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	hub, err := usecase.NewListenerHub(s, feed, log, opts...)
	if err != nil {
		return nil, err
	}
	s.hub = hub
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "collection", Value: 1}, {Key: "docId", Value: 1}}},
		{Keys: bson.D{{Key: "collection", Value: 1}, {Key: "data.createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "data.participantIds", Value: 1}}},
		{Keys: bson.D{{Key: "collection", Value: 1}, {Key: "data.displayName", Value: 1}}},
	})
	if err != nil {
		return errors.Wrap(err, "create document indexes")
	}
	return nil
}

// now returns the timestamp for the next write. Every stored time comes from
// here, truncated to the millisecond BSON keeps and strictly increasing.
func (s *Store) now() time.Time {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	t := s.clock().UTC().Truncate(time.Millisecond)
	if !t.After(s.lastTS) {
		t = s.lastTS.Add(time.Millisecond)
	}
	s.lastTS = t
	return t
}

func (s *Store) GetDocument(ctx context.Context, path string) (*model.Document, error) {
	if err := docpath.ValidateDocumentPath(path); err != nil {
		return nil, err
	}
	var stored storedDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": path}).Decode(&stored)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%s: %w", path, errors.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return stored.toModel(), nil
}

func (s *Store) SetDocument(ctx context.Context, path string, data map[string]interface{}, opts model.SetOptions) error {
	if err := docpath.ValidateDocumentPath(path); err != nil {
		return err
	}
	now := s.now()

	var update bson.M
	if opts.Merge {
		update = buildMergeUpdate(data, now)
	} else {
		update = bson.M{"$set": bson.M{"data": model.ApplyWrite(nil, data, now), "updateTime": now}}
	}
	addSetOnInsert(update, path, now)

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": path}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return s.publish(ctx, changeTypeOf(res), path, now)
}

func (s *Store) UpdateFields(ctx context.Context, path string, fields map[string]interface{}) error {
	if err := docpath.ValidateDocumentPath(path); err != nil {
		return err
	}
	now := s.now()
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": path}, buildMergeUpdate(fields, now))
	if err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%s: %w", path, errors.ErrDocumentNotFound)
	}
	return s.publish(ctx, model.ChangeUpdated, path, now)
}

func (s *Store) DeleteDocument(ctx context.Context, path string) error {
	if err := docpath.ValidateDocumentPath(path); err != nil {
		return err
	}
	now := s.now()
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": path})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	if res.DeletedCount == 0 {
		return nil
	}
	return s.publish(ctx, model.ChangeDeleted, path, now)
}

func (s *Store) AddDocument(ctx context.Context, collectionPath string, data map[string]interface{}) (string, error) {
	if err := docpath.ValidateCollectionPath(collectionPath); err != nil {
		return "", err
	}
	now := s.now()
	id := ulid.Make().String()
	path := docpath.Join(collectionPath, id)

	_, err := s.coll.InsertOne(ctx, storedDocument{
		Path:       path,
		Collection: collectionPath,
		DocID:      id,
		Data:       bson.M(model.ApplyWrite(nil, data, now)),
		CreateTime: now,
		UpdateTime: now,
	})
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collectionPath, err)
	}
	return id, s.publish(ctx, model.ChangeCreated, path, now)
}

func (s *Store) RunQuery(ctx context.Context, query model.Query) ([]*model.Document, error) {
	if err := query.Validate(); err != nil {
		return nil, errors.NewValidationError(err.Error())
	}
	if err := docpath.ValidateCollectionPath(query.Collection); err != nil {
		return nil, err
	}

	findOpts := options.Find().SetSort(buildSort(query))
	if query.Limit > 0 {
		findOpts.SetLimit(int64(query.Limit))
	}
	cursor, err := s.coll.Find(ctx, buildFilter(query), findOpts)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", query.Collection, err)
	}
	defer cursor.Close(ctx)

	var stored []storedDocument
	if err := cursor.All(ctx, &stored); err != nil {
		return nil, fmt.Errorf("decode %s: %w", query.Collection, err)
	}
	docs := make([]*model.Document, 0, len(stored))
	for i := range stored {
		docs = append(docs, stored[i].toModel())
	}
	return docs, nil
}

func (s *Store) CountDocuments(ctx context.Context, collectionPath string) (int, error) {
	if err := docpath.ValidateCollectionPath(collectionPath); err != nil {
		return 0, err
	}
	n, err := s.coll.CountDocuments(ctx, bson.M{"collection": collectionPath})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", collectionPath, err)
	}
	return int(n), nil
}

func (s *Store) Subscribe(ctx context.Context, query model.Query) (repository.Subscription, error) {
	return s.hub.Subscribe(ctx, query)
}

func (s *Store) SubscribeDocument(ctx context.Context, path string) (repository.Subscription, error) {
	return s.hub.SubscribeDocument(ctx, path)
}

// Close cancels every subscription and disconnects the client
func (s *Store) Close() error {
	s.hub.Close()
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *Store) publish(ctx context.Context, changeType model.ChangeType, path string, at time.Time) error {
	ev := model.ChangeEvent{Type: changeType, Path: path, Collection: docpath.Parent(path), At: at}
	if err := s.feed.Publish(ctx, ev); err != nil {
		s.log.Warnf("publish change %s %s: %v", changeType, path, err)
	}
	return nil
}

func changeTypeOf(res *mongo.UpdateResult) model.ChangeType {
	if res != nil && res.UpsertedCount > 0 {
		return model.ChangeCreated
	}
	return model.ChangeUpdated
}
