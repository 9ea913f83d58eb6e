package repository

import (
	"context"

	"social-connect/internal/store/domain/model"
)

// DocumentStore is the remote document database consumed by the sync core.
// Reads of absent documents fail with errors.ErrDocumentNotFound.
type DocumentStore interface {
	GetDocument(ctx context.Context, path string) (*model.Document, error)
	SetDocument(ctx context.Context, path string, data map[string]interface{}, opts model.SetOptions) error
	// UpdateFields applies a partial update to an existing document
	UpdateFields(ctx context.Context, path string, fields map[string]interface{}) error
	DeleteDocument(ctx context.Context, path string) error
	// AddDocument creates a document with a store-assigned, insertion-ordered id
	AddDocument(ctx context.Context, collectionPath string, data map[string]interface{}) (string, error)
	RunQuery(ctx context.Context, query model.Query) ([]*model.Document, error)
	CountDocuments(ctx context.Context, collectionPath string) (int, error)

	Subscribe(ctx context.Context, query model.Query) (Subscription, error)
	SubscribeDocument(ctx context.Context, path string) (Subscription, error)

	Close() error
}

// Subscription delivers full snapshots until cancelled. The channel is closed
// after Cancel or when the subscribing context ends.
type Subscription interface {
	ID() string
	Snapshots() <-chan model.Snapshot
	Cancel()
}

// ChangeFeed fans committed writes out to listeners, in-process or across processes
type ChangeFeed interface {
	Publish(ctx context.Context, event model.ChangeEvent) error
	// Listen registers fn until ctx is done
	Listen(ctx context.Context, fn func(model.ChangeEvent)) error
	Close() error
}
