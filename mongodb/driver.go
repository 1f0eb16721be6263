// Package mongodb implements persistence.Driver on top of the official
// MongoDB driver. Filters and updates produced by the query package are
// handed to the server unchanged.
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/asaidimu/go-odm/core/persistence"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Collection is the subset of *mongo.Collection used by the driver.
type Collection interface {
	Name() string
	Find(ctx context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error)
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult
	InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	ReplaceOne(ctx context.Context, filter any, replacement any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteMany(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

var _ Collection = (*mongo.Collection)(nil)

// Driver stores documents in a MongoDB collection.
type Driver struct {
	collection Collection
	logger     *zap.Logger
}

var _ persistence.Driver = (*Driver)(nil)

// NewDriver creates a driver over collection.
func NewDriver(collection Collection, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		collection: collection,
		logger:     logger.With(zap.String("collection", collection.Name())),
	}
}

// Find returns a cursor over the documents matching filter.
func (d *Driver) Find(ctx context.Context, filter bson.M) (persistence.Cursor, error) {
	d.logger.Debug("find", zap.Any("filter", filter))
	cur, err := d.collection.Find(ctx, filter)
	if err != nil {
		return nil, d.mapError("find", err)
	}
	return &cursor{inner: cur}, nil
}

// FindOne returns the first document matching filter.
func (d *Driver) FindOne(ctx context.Context, filter bson.M) (persistence.Document, error) {
	d.logger.Debug("find one", zap.Any("filter", filter))
	var doc persistence.Document
	if err := d.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, d.mapError("find one", err)
	}
	return doc, nil
}

// Insert writes doc. The server assigns an ObjectID when doc has no "_id".
func (d *Driver) Insert(ctx context.Context, doc persistence.Document) error {
	d.logger.Debug("insert", zap.Int("fields", len(doc)))
	if _, err := d.collection.InsertOne(ctx, doc); err != nil {
		return d.mapError("insert", err)
	}
	return nil
}

// Update replaces the first match with a plain document, or applies an
// operator document to every match. It returns the matched count.
func (d *Driver) Update(ctx context.Context, filter bson.M, update bson.M) (int64, error) {
	var (
		result *mongo.UpdateResult
		err    error
	)
	if persistence.IsOperatorDocument(update) {
		d.logger.Debug("update many", zap.Any("filter", filter), zap.Any("update", update))
		result, err = d.collection.UpdateMany(ctx, filter, update)
	} else {
		d.logger.Debug("replace one", zap.Any("filter", filter))
		result, err = d.collection.ReplaceOne(ctx, filter, update)
	}
	if err != nil {
		return 0, d.mapError("update", err)
	}
	return result.MatchedCount, nil
}

// Remove deletes every document matching filter.
func (d *Driver) Remove(ctx context.Context, filter bson.M) (int64, error) {
	d.logger.Debug("delete many", zap.Any("filter", filter))
	result, err := d.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, d.mapError("remove", err)
	}
	return result.DeletedCount, nil
}

// mapError translates server errors into the persistence sentinels.
func (d *Driver) mapError(operation string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return persistence.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", persistence.ErrKeyExists, err)
	default:
		d.logger.Error("MongoDB operation failed", zap.String("operation", operation), zap.Error(err))
		return fmt.Errorf("mongodb %s failed: %w", operation, err)
	}
}

// cursor adapts *mongo.Cursor to persistence.Cursor.
type cursor struct {
	inner   *mongo.Cursor
	current persistence.Document
	err     error
}

func (c *cursor) Next(ctx context.Context) bool {
	c.current = nil
	if c.err != nil || !c.inner.Next(ctx) {
		return false
	}
	var doc persistence.Document
	if err := c.inner.Decode(&doc); err != nil {
		c.err = fmt.Errorf("failed to decode document: %w", err)
		return false
	}
	c.current = doc
	return true
}

func (c *cursor) Document() persistence.Document {
	return c.current
}

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.inner.Err()
}

func (c *cursor) Close(ctx context.Context) error {
	return c.inner.Close(ctx)
}
