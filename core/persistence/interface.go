package persistence

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is a single record as stored in, or read from, the store.
type Document map[string]any

// Driver is the minimal CRUD surface of a document store collection. Filters
// and updates are native documents produced by the query package.
type Driver interface {
	// Find returns a cursor over every document matching filter.
	Find(ctx context.Context, filter bson.M) (Cursor, error)

	// FindOne returns the first document matching filter, or ErrNotFound.
	FindOne(ctx context.Context, filter bson.M) (Document, error)

	// Insert writes a new document. A violated uniqueness constraint is
	// reported as ErrKeyExists.
	Insert(ctx context.Context, doc Document) error

	// Update applies update to the documents matching filter. An update made
	// of "$" operators is applied to every match; a plain document replaces
	// the first match. It returns the number of matched documents.
	Update(ctx context.Context, filter bson.M, update bson.M) (int64, error)

	// Remove deletes every document matching filter and returns the count.
	Remove(ctx context.Context, filter bson.M) (int64, error)
}

// Cursor iterates over query results.
type Cursor interface {
	Next(ctx context.Context) bool
	Document() Document
	Err() error
	Close(ctx context.Context) error
}

// KeyedSchema is the part of a schema the storage layer depends on.
type KeyedSchema interface {
	PrimaryKey() string
}

// namedSchema is implemented by schemas that know their collection name.
type namedSchema interface {
	CollectionName() string
}

// EventCallbackFunction receives storage events.
type EventCallbackFunction func(ctx context.Context, event StorageEvent) error

// SubscriptionInfo describes a registered subscription.
type SubscriptionInfo struct {
	ID          string           `json:"id"`
	Event       StorageEventType `json:"event"`
	Label       *string          `json:"label,omitempty"`
	Unsubscribe func()           `json:"-"`
}

// RegisterSubscriptionOptions defines options for registering a subscription.
type RegisterSubscriptionOptions struct {
	Event    StorageEventType
	Label    *string
	Callback EventCallbackFunction
}
