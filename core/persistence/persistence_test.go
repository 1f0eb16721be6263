package persistence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asaidimu/go-odm/core/query"
	"github.com/asaidimu/go-odm/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type call struct {
	verb   string
	filter bson.M
	doc    any
}

// recordingDriver stores the calls it receives and answers from canned values.
type recordingDriver struct {
	mu        sync.Mutex
	calls     []call
	docs      []Document
	findOne   Document
	matched   int64
	insertErr error
}

func (d *recordingDriver) record(c call) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
}

func (d *recordingDriver) last() call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[len(d.calls)-1]
}

func (d *recordingDriver) Find(ctx context.Context, filter bson.M) (Cursor, error) {
	d.record(call{verb: "find", filter: filter})
	return NewSliceCursor(d.docs), nil
}

func (d *recordingDriver) FindOne(ctx context.Context, filter bson.M) (Document, error) {
	d.record(call{verb: "find_one", filter: filter})
	if d.findOne == nil {
		return nil, ErrNotFound
	}
	return d.findOne, nil
}

func (d *recordingDriver) Insert(ctx context.Context, doc Document) error {
	d.record(call{verb: "insert", doc: doc})
	return d.insertErr
}

func (d *recordingDriver) Update(ctx context.Context, filter bson.M, update bson.M) (int64, error) {
	d.record(call{verb: "update", filter: filter, doc: update})
	return d.matched, nil
}

func (d *recordingDriver) Remove(ctx context.Context, filter bson.M) (int64, error) {
	d.record(call{verb: "remove", filter: filter})
	return d.matched, nil
}

func newTestStorage(t *testing.T, driver Driver) *Storage {
	t.Helper()
	sc := &schema.SchemaDefinition{
		Name:    "users",
		Indexes: []schema.IndexDefinition{{Name: "pk", Fields: []string{"email"}, Type: schema.IndexTypePrimary}},
	}
	s, err := New(driver, sc, nil)
	require.NoError(t, err)
	return s
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, &schema.SchemaDefinition{Name: "x"}, nil)
	assert.ErrorIs(t, err, ErrNilDriver)

	_, err = New(&recordingDriver{}, nil, nil)
	assert.ErrorIs(t, err, ErrNilSchema)
}

func TestStorage_InsertDoesNotMutateRecord(t *testing.T) {
	driver := &recordingDriver{}
	s := newTestStorage(t, driver)

	record := Document{"name": "ann"}
	require.NoError(t, s.Insert(context.Background(), "ann@example.com", record))

	assert.Equal(t, Document{"name": "ann"}, record)
	assert.NotContains(t, record, "email")

	sent := driver.last()
	assert.Equal(t, "insert", sent.verb)
	assert.Equal(t, Document{"name": "ann", "email": "ann@example.com"}, sent.doc)
}

func TestStorage_InsertKeepsExistingKey(t *testing.T) {
	driver := &recordingDriver{}
	s := newTestStorage(t, driver)

	record := Document{"email": "own@example.com"}
	require.NoError(t, s.Insert(context.Background(), "other@example.com", record))
	assert.Equal(t, Document{"email": "own@example.com"}, driver.last().doc)
}

func TestStorage_InsertPropagatesKeyExists(t *testing.T) {
	driver := &recordingDriver{insertErr: ErrKeyExists}
	s := newTestStorage(t, driver)

	err := s.Insert(context.Background(), "a@example.com", Document{})
	assert.ErrorIs(t, err, ErrKeyExists)
}

func TestStorage_GetUsesPrimaryKeyFilter(t *testing.T) {
	driver := &recordingDriver{findOne: Document{"email": "a@example.com"}}
	s := newTestStorage(t, driver)

	doc, err := s.Get(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, Document{"email": "a@example.com"}, doc)
	assert.Equal(t, bson.M{"email": "a@example.com"}, driver.last().filter)
}

func TestStorage_GetNotFound(t *testing.T) {
	s := newTestStorage(t, &recordingDriver{})
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_Update(t *testing.T) {
	driver := &recordingDriver{matched: 1}
	s := newTestStorage(t, driver)

	record := Document{"name": "bea"}
	require.NoError(t, s.Update(context.Background(), "b@example.com", record))

	sent := driver.last()
	assert.Equal(t, bson.M{"email": "b@example.com"}, sent.filter)
	assert.Equal(t, bson.M{"name": "bea", "email": "b@example.com"}, sent.doc)
	assert.Equal(t, Document{"name": "bea"}, record)
}

func TestStorage_UpdateOperatorDocumentPassesThrough(t *testing.T) {
	driver := &recordingDriver{matched: 1}
	s := newTestStorage(t, driver)

	require.NoError(t, s.Update(context.Background(), "b@example.com", Document{"$set": bson.M{"n": 1}}))
	assert.Equal(t, bson.M{"$set": bson.M{"n": 1}}, driver.last().doc)
}

func TestStorage_UpdateNotFound(t *testing.T) {
	s := newTestStorage(t, &recordingDriver{matched: 0})
	err := s.Update(context.Background(), "none", Document{"a": 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_FindTranslatesPredicates(t *testing.T) {
	driver := &recordingDriver{docs: []Document{{"email": "a"}, {"email": "b"}}}
	s := newTestStorage(t, driver)
	ctx := context.Background()

	cursor, err := s.Find(ctx,
		query.NewPredicate("age", query.OperatorGte, 18),
		query.NewPredicate("name", query.OperatorIContains, "Jo"),
	)
	require.NoError(t, err)

	docs, err := All(ctx, cursor)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, bson.M{
		"age":  bson.M{"$gte": 18},
		"name": bson.M{"$regex": primitive.Regex{Pattern: "Jo", Options: "i"}},
	}, driver.last().filter)
}

func TestStorage_FindRejectsUnknownOperator(t *testing.T) {
	driver := &recordingDriver{}
	s := newTestStorage(t, driver)

	_, err := s.Find(context.Background(), query.NewPredicate("a", query.Operator("like"), "x"))
	assert.ErrorIs(t, err, query.ErrUnknownOperator)
	assert.Empty(t, driver.calls)
}

func TestStorage_FindAll(t *testing.T) {
	driver := &recordingDriver{docs: []Document{{"email": "a"}}}
	s := newTestStorage(t, driver)

	cursor, err := s.FindAll(context.Background())
	require.NoError(t, err)
	docs, err := All(context.Background(), cursor)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, bson.M{}, driver.last().filter)
}

func TestStorage_FindOne(t *testing.T) {
	driver := &recordingDriver{findOne: Document{"email": "a"}}
	s := newTestStorage(t, driver)

	doc, err := s.FindOne(context.Background(), query.NewPredicate("email", query.OperatorEq, "a"))
	require.NoError(t, err)
	assert.Equal(t, "a", doc["email"])
	assert.Equal(t, bson.M{"email": "a"}, driver.last().filter)
}

func TestStorage_Modify(t *testing.T) {
	driver := &recordingDriver{matched: 3}
	s := newTestStorage(t, driver)

	n, err := s.Modify(context.Background(),
		[]query.Predicate{query.NewPredicate("active", query.OperatorEq, true)},
		query.NewUpdateBuilder().Inc("visits", 1).Build(),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	sent := driver.last()
	assert.Equal(t, bson.M{"active": true}, sent.filter)
	assert.Equal(t, bson.M{"$inc": bson.M{"visits": 1}}, sent.doc)
}

func TestStorage_ModifyRejectsFilterOperator(t *testing.T) {
	s := newTestStorage(t, &recordingDriver{})
	_, err := s.Modify(context.Background(), nil, []query.Directive{query.NewDirective("a", query.OperatorEq, 1)})
	assert.ErrorIs(t, err, query.ErrFilterOperatorInUpdate)
}

func TestStorage_Remove(t *testing.T) {
	driver := &recordingDriver{matched: 2}
	s := newTestStorage(t, driver)

	n, err := s.Remove(context.Background(), query.NewPredicate("age", query.OperatorLt, 13))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, bson.M{"age": bson.M{"$lt": 13}}, driver.last().filter)
}

func TestStorage_Events(t *testing.T) {
	driver := &recordingDriver{}
	s := newTestStorage(t, driver)

	var mu sync.Mutex
	var received []StorageEvent
	id := s.RegisterSubscription(RegisterSubscriptionOptions{
		Event: DocumentReadFailed,
		Callback: func(ctx context.Context, event StorageEvent) error {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, event)
			return nil
		},
	})
	require.NotEmpty(t, id)
	require.Len(t, s.Subscriptions(), 1)

	_, err := s.Get(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrNotFound))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	event := received[0]
	mu.Unlock()
	assert.Equal(t, "get", event.Operation)
	assert.Equal(t, "users", event.Collection)
	require.NotNil(t, event.Error)
	assert.Contains(t, *event.Error, "not found")

	s.UnregisterSubscription(id)
	assert.Empty(t, s.Subscriptions())
}

func TestIsOperatorDocument(t *testing.T) {
	assert.True(t, IsOperatorDocument(bson.M{"$set": bson.M{}}))
	assert.False(t, IsOperatorDocument(bson.M{"$set": bson.M{}, "a": 1}))
	assert.False(t, IsOperatorDocument(Document{}))
	assert.False(t, IsOperatorDocument(Document{"a": 1}))
}

func TestSliceCursor(t *testing.T) {
	ctx := context.Background()
	c := NewSliceCursor([]Document{{"a": 1}, {"a": 2}})

	require.True(t, c.Next(ctx))
	assert.Equal(t, Document{"a": 1}, c.Document())
	require.True(t, c.Next(ctx))
	assert.False(t, c.Next(ctx))
	assert.Nil(t, c.Document())
	assert.NoError(t, c.Close(ctx))
	assert.False(t, c.Next(ctx))
}
