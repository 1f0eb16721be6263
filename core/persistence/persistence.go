// Package persistence mediates CRUD operations against a document store. It
// translates predicate sequences into native filters, addresses single
// records through the schema's primary key, and emits lifecycle events for
// every operation.
package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/asaidimu/go-events"
	"github.com/asaidimu/go-odm/core/query"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Options configures a Storage.
type Options struct {
	Logger     *zap.Logger
	Translator *query.TranslatorOptions
}

// Storage is the storage adapter: it composes a Driver with the query
// translator and the primary key of a schema. It is safe for concurrent use
// as long as the driver is.
type Storage struct {
	driver     Driver
	schema     KeyedSchema
	collection string
	translator *query.Translator
	logger     *zap.Logger

	bus           *events.TypedEventBus[StorageEvent]
	subscriptions map[string]*SubscriptionInfo
	subMu         sync.RWMutex
}

// New creates a Storage over driver for records described by schema.
func New(driver Driver, schema KeyedSchema, options *Options) (*Storage, error) {
	if driver == nil {
		return nil, ErrNilDriver
	}
	if schema == nil {
		return nil, ErrNilSchema
	}
	if options == nil {
		options = &Options{}
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bus, err := events.NewTypedEventBus[StorageEvent](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	var collection string
	if named, ok := schema.(namedSchema); ok {
		collection = named.CollectionName()
	}

	return &Storage{
		driver:        driver,
		schema:        schema,
		collection:    collection,
		translator:    query.NewTranslator(logger, options.Translator),
		logger:        logger,
		bus:           bus,
		subscriptions: make(map[string]*SubscriptionInfo),
	}, nil
}

// Translator returns the translator used for predicate sequences.
func (s *Storage) Translator() *query.Translator {
	return s.translator
}

// keyFilter is the single-predicate equality filter on the primary key.
func (s *Storage) keyFilter(key any) bson.M {
	return bson.M{s.schema.PrimaryKey(): key}
}

// FindAll returns a cursor over every document in the collection.
func (s *Storage) FindAll(ctx context.Context) (Cursor, error) {
	filter := bson.M{}
	result, err := s.withEventEmission("find_all", readEvents, nil, filter, func() (any, error) {
		return s.driver.Find(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	cursor, _ := result.(Cursor)
	return cursor, nil
}

// Find returns a cursor over the documents matching every predicate.
func (s *Storage) Find(ctx context.Context, predicates ...query.Predicate) (Cursor, error) {
	filter, err := s.translator.Translate(predicates...)
	if err != nil {
		return nil, fmt.Errorf("failed to translate find predicates: %w", err)
	}
	result, err := s.withEventEmission("find", readEvents, predicates, filter, func() (any, error) {
		return s.driver.Find(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	cursor, _ := result.(Cursor)
	return cursor, nil
}

// FindOne returns the first document matching every predicate, or ErrNotFound.
func (s *Storage) FindOne(ctx context.Context, predicates ...query.Predicate) (Document, error) {
	filter, err := s.translator.Translate(predicates...)
	if err != nil {
		return nil, fmt.Errorf("failed to translate find_one predicates: %w", err)
	}
	result, err := s.withEventEmission("find_one", readEvents, predicates, filter, func() (any, error) {
		return s.driver.FindOne(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	doc, _ := result.(Document)
	return doc, nil
}

// Get returns the document whose primary key equals key, or ErrNotFound.
func (s *Storage) Get(ctx context.Context, key any) (Document, error) {
	filter := s.keyFilter(key)
	result, err := s.withEventEmission("get", readEvents, key, filter, func() (any, error) {
		return s.driver.FindOne(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	doc, _ := result.(Document)
	return doc, nil
}

// Insert writes record under key. When the record lacks the primary-key
// attribute a copy carrying it is written instead; record itself is never
// modified. A duplicate key is reported as ErrKeyExists.
func (s *Storage) Insert(ctx context.Context, key any, record Document) error {
	pk := s.schema.PrimaryKey()
	doc := record
	if _, ok := record[pk]; !ok {
		doc = copyDocument(record)
		doc[pk] = key
	}

	_, err := s.withEventEmission("insert", createEvents, doc, nil, func() (any, error) {
		return nil, s.driver.Insert(ctx, doc)
	})
	if err != nil {
		s.logger.Debug("Insert failed", zap.Any("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Update replaces the document whose primary key equals key with record.
// It returns ErrNotFound when no document has that key.
func (s *Storage) Update(ctx context.Context, key any, record Document) error {
	filter := s.keyFilter(key)
	replacement := bson.M(record)
	if !IsOperatorDocument(record) {
		pk := s.schema.PrimaryKey()
		if _, ok := record[pk]; !ok {
			replacement = bson.M(copyDocument(record))
			replacement[pk] = key
		}
	}

	_, err := s.withEventEmission("update", updateEvents, record, filter, func() (any, error) {
		matched, err := s.driver.Update(ctx, filter, replacement)
		if err != nil {
			return nil, err
		}
		if matched == 0 {
			return nil, fmt.Errorf("%w: %s=%v", ErrNotFound, s.schema.PrimaryKey(), key)
		}
		return matched, nil
	})
	return err
}

// Modify applies directives to every document matching predicates and
// returns the number of matched documents.
func (s *Storage) Modify(ctx context.Context, predicates []query.Predicate, directives []query.Directive) (int64, error) {
	filter, err := s.translator.Translate(predicates...)
	if err != nil {
		return 0, fmt.Errorf("failed to translate modify predicates: %w", err)
	}
	update, err := s.translator.TranslateUpdate(directives...)
	if err != nil {
		return 0, fmt.Errorf("failed to translate modify directives: %w", err)
	}
	if len(update) == 0 {
		return 0, nil
	}

	result, err := s.withEventEmission("modify", updateEvents, update, filter, func() (any, error) {
		return s.driver.Update(ctx, filter, update)
	})
	if err != nil {
		return 0, err
	}
	count, _ := result.(int64)
	return count, nil
}

// Remove deletes every document matching predicates. With no predicates
// every document in the collection is removed.
func (s *Storage) Remove(ctx context.Context, predicates ...query.Predicate) (int64, error) {
	filter, err := s.translator.Translate(predicates...)
	if err != nil {
		return 0, fmt.Errorf("failed to translate remove predicates: %w", err)
	}
	result, err := s.withEventEmission("remove", deleteEvents, predicates, filter, func() (any, error) {
		return s.driver.Remove(ctx, filter)
	})
	if err != nil {
		return 0, err
	}
	count, _ := result.(int64)
	return count, nil
}

// RegisterSubscription registers a callback for a storage event type and
// returns the subscription id.
func (s *Storage) RegisterSubscription(options RegisterSubscriptionOptions) string {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	callback := options.Callback
	unsubscribe := s.bus.Subscribe(string(options.Event), func(ctx context.Context, event StorageEvent) error {
		return callback(ctx, event)
	})
	id := uuid.New().String()
	s.subscriptions[id] = &SubscriptionInfo{
		ID:          id,
		Event:       options.Event,
		Label:       options.Label,
		Unsubscribe: unsubscribe,
	}
	return id
}

// UnregisterSubscription removes a subscription by id.
func (s *Storage) UnregisterSubscription(id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if info := s.subscriptions[id]; info != nil {
		info.Unsubscribe()
		delete(s.subscriptions, id)
	}
}

// Subscriptions returns the registered subscriptions.
func (s *Storage) Subscriptions() []SubscriptionInfo {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	out := make([]SubscriptionInfo, 0, len(s.subscriptions))
	for _, info := range s.subscriptions {
		out = append(out, *info)
	}
	return out
}
