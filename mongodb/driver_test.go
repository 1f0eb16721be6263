package mongodb

import (
	"context"
	"errors"
	"testing"

	"github.com/asaidimu/go-odm/core/persistence"
	"github.com/asaidimu/go-odm/core/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeCollection answers from canned documents and records what it was sent.
type fakeCollection struct {
	docs       []any
	findOneErr error
	insertErr  error
	matched    int64
	deleted    int64

	lastFilter any
	lastUpdate any
	lastVerb   string
}

func (f *fakeCollection) Name() string { return "users" }

func (f *fakeCollection) Find(ctx context.Context, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	f.lastVerb, f.lastFilter = "find", filter
	return mongo.NewCursorFromDocuments(f.docs, nil, nil)
}

func (f *fakeCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult {
	f.lastVerb, f.lastFilter = "find_one", filter
	if f.findOneErr != nil {
		return mongo.NewSingleResultFromDocument(bson.D{}, f.findOneErr, nil)
	}
	return mongo.NewSingleResultFromDocument(f.docs[0], nil, nil)
}

func (f *fakeCollection) InsertOne(ctx context.Context, document any, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	f.lastVerb, f.lastUpdate = "insert", document
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	return &mongo.InsertOneResult{}, nil
}

func (f *fakeCollection) ReplaceOne(ctx context.Context, filter any, replacement any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error) {
	f.lastVerb, f.lastFilter, f.lastUpdate = "replace", filter, replacement
	return &mongo.UpdateResult{MatchedCount: f.matched}, nil
}

func (f *fakeCollection) UpdateMany(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	f.lastVerb, f.lastFilter, f.lastUpdate = "update_many", filter, update
	return &mongo.UpdateResult{MatchedCount: f.matched}, nil
}

func (f *fakeCollection) DeleteMany(ctx context.Context, filter any, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error) {
	f.lastVerb, f.lastFilter = "delete", filter
	return &mongo.DeleteResult{DeletedCount: f.deleted}, nil
}

func TestDriver_Find(t *testing.T) {
	coll := &fakeCollection{docs: []any{bson.M{"name": "ann"}, bson.M{"name": "bob"}}}
	d := NewDriver(coll, nil)
	ctx := context.Background()

	cur, err := d.Find(ctx, bson.M{"age": bson.M{"$gte": 18}})
	require.NoError(t, err)
	docs, err := persistence.All(ctx, cur)
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "ann", docs[0]["name"])
	assert.Equal(t, "bob", docs[1]["name"])
	assert.Equal(t, bson.M{"age": bson.M{"$gte": 18}}, coll.lastFilter)
}

func TestDriver_FindOne(t *testing.T) {
	coll := &fakeCollection{docs: []any{bson.M{"_id": "k", "n": int32(1)}}}
	d := NewDriver(coll, nil)

	doc, err := d.FindOne(context.Background(), bson.M{"_id": "k"})
	require.NoError(t, err)
	assert.Equal(t, "k", doc["_id"])
	assert.Equal(t, int32(1), doc["n"])
}

func TestDriver_FindOneNotFound(t *testing.T) {
	d := NewDriver(&fakeCollection{findOneErr: mongo.ErrNoDocuments}, nil)

	_, err := d.FindOne(context.Background(), bson.M{"_id": "missing"})
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestDriver_InsertDuplicateKey(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	d := NewDriver(&fakeCollection{insertErr: dup}, nil)

	err := d.Insert(context.Background(), persistence.Document{"_id": "k"})
	assert.ErrorIs(t, err, persistence.ErrKeyExists)
}

func TestDriver_InsertOtherError(t *testing.T) {
	boom := errors.New("connection reset")
	d := NewDriver(&fakeCollection{insertErr: boom}, nil)

	err := d.Insert(context.Background(), persistence.Document{"_id": "k"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, persistence.ErrKeyExists)
}

func TestDriver_InsertLogsWithoutAssumingKey(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	coll := &fakeCollection{}
	d := NewDriver(coll, zap.New(core))

	doc := persistence.Document{"email": "a@example.com", "name": "A"}
	require.NoError(t, d.Insert(context.Background(), doc))
	assert.Equal(t, doc, coll.lastUpdate)

	entries := logs.FilterMessage("insert").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.NotContains(t, fields, "id")
	assert.EqualValues(t, 2, fields["fields"])
	assert.Equal(t, "users", fields["collection"])
}

func TestDriver_Update(t *testing.T) {
	coll := &fakeCollection{matched: 1}
	d := NewDriver(coll, nil)
	ctx := context.Background()

	n, err := d.Update(ctx, bson.M{"_id": "k"}, bson.M{"_id": "k", "name": "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, "replace", coll.lastVerb)

	_, err = d.Update(ctx, bson.M{"age": bson.M{"$lt": 18}}, bson.M{"$inc": bson.M{"age": 1}})
	require.NoError(t, err)
	assert.Equal(t, "update_many", coll.lastVerb)
	assert.Equal(t, bson.M{"$inc": bson.M{"age": 1}}, coll.lastUpdate)
}

func TestDriver_Remove(t *testing.T) {
	coll := &fakeCollection{deleted: 4}
	d := NewDriver(coll, nil)

	n, err := d.Remove(context.Background(), bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, "delete", coll.lastVerb)
}

func TestStorageOverDriver(t *testing.T) {
	coll := &fakeCollection{}
	s, err := persistence.New(NewDriver(coll, nil), &schema.SchemaDefinition{Name: "users"}, nil)
	require.NoError(t, err)

	record := persistence.Document{"name": "ann"}
	require.NoError(t, s.Insert(context.Background(), "a1", record))
	assert.Equal(t, persistence.Document{"name": "ann", "_id": "a1"}, coll.lastUpdate)
	assert.NotContains(t, record, "_id")
}

func TestIndexModels(t *testing.T) {
	sc := &schema.SchemaDefinition{
		Name: "places",
		Indexes: []schema.IndexDefinition{
			{Name: "pk", Fields: []string{"_id"}, Type: schema.IndexTypePrimary},
			{Name: "by_email", Fields: []string{"email"}, Type: schema.IndexTypeUnique},
			{Name: "by_loc", Fields: []string{"loc"}, Type: schema.IndexTypeSpatial},
			{Name: "by_city_age", Fields: []string{"city", "age"}, Type: schema.IndexTypeNormal},
		},
	}

	models := IndexModels(sc)
	require.Len(t, models, 3)

	assert.Equal(t, bson.D{{Key: "email", Value: 1}}, models[0].Keys)
	require.NotNil(t, models[0].Options.Unique)
	assert.True(t, *models[0].Options.Unique)

	assert.Equal(t, bson.D{{Key: "loc", Value: "2dsphere"}}, models[1].Keys)
	assert.Nil(t, models[1].Options.Unique)

	assert.Equal(t, bson.D{{Key: "city", Value: 1}, {Key: "age", Value: 1}}, models[2].Keys)
	require.NotNil(t, models[2].Options.Name)
	assert.Equal(t, "by_city_age", *models[2].Options.Name)
}

func TestIndexModels_FieldFlags(t *testing.T) {
	yes := true
	sc := &schema.SchemaDefinition{
		Name: "shops",
		Fields: map[string]*schema.FieldDefinition{
			"email": {Name: "email", Type: schema.FieldTypeString, Unique: &yes},
			"slug":  {Name: "slug", Type: schema.FieldTypeString, Unique: &yes},
			"code":  {Name: "code", Type: schema.FieldTypeString, Unique: &yes},
			"where": {Name: "where", Type: schema.FieldTypeGeo},
		},
		Indexes: []schema.IndexDefinition{
			{Name: "pk", Fields: []string{"code"}, Type: schema.IndexTypePrimary},
			{Name: "by_where", Fields: []string{"where"}, Type: schema.IndexTypeNormal},
		},
	}

	models := IndexModels(sc)
	require.Len(t, models, 4)

	assert.Equal(t, bson.D{{Key: "code", Value: 1}}, models[0].Keys)
	assert.Equal(t, bson.D{{Key: "where", Value: "2dsphere"}}, models[1].Keys)

	assert.Equal(t, bson.D{{Key: "email", Value: 1}}, models[2].Keys)
	require.NotNil(t, models[2].Options.Name)
	assert.Equal(t, "shops_email_unique", *models[2].Options.Name)
	assert.True(t, *models[2].Options.Unique)
	assert.Equal(t, bson.D{{Key: "slug", Value: 1}}, models[3].Keys)
}

func TestConfig(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.ErrorIs(t, Config{Database: "x"}.Validate(), ErrMissingConfig)
	assert.ErrorIs(t, Config{URI: "mongodb://h"}.Validate(), ErrMissingConfig)

	opts := DefaultConfig().ClientOptions()
	require.NotNil(t, opts.BSONOptions)
	assert.True(t, opts.BSONOptions.DefaultDocumentM)
}
