package mongodb

import (
	"context"
	"fmt"
	"sort"

	"github.com/asaidimu/go-odm/core/schema"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IndexModels converts the schema's index definitions into index models.
// A primary index on "_id" is skipped since the server always maintains it.
// Fields of type geo are indexed as "2dsphere", and fields flagged unique
// without a unique index of their own get one.
func IndexModels(sc *schema.SchemaDefinition) []mongo.IndexModel {
	var models []mongo.IndexModel
	uniqueCovered := map[string]bool{schema.DefaultPrimaryKey: true}

	for _, index := range sc.Indexes {
		if len(index.Fields) == 0 {
			continue
		}
		unique := index.Type == schema.IndexTypeUnique || index.Type == schema.IndexTypePrimary
		if unique && len(index.Fields) == 1 {
			uniqueCovered[index.Fields[0]] = true
		}
		if index.Type == schema.IndexTypePrimary && index.Fields[0] == schema.DefaultPrimaryKey {
			continue
		}

		keys := bson.D{}
		for _, field := range index.Fields {
			var direction any = 1
			if index.Type == schema.IndexTypeSpatial {
				direction = "2dsphere"
			} else if def := sc.FindField(field); def != nil && def.Type == schema.FieldTypeGeo {
				direction = "2dsphere"
			}
			keys = append(keys, bson.E{Key: field, Value: direction})
		}

		opts := options.Index()
		if index.Name != "" {
			opts.SetName(index.Name)
		}
		if unique {
			opts.SetUnique(true)
		}
		models = append(models, mongo.IndexModel{Keys: keys, Options: opts})
	}

	names := make([]string, 0, len(sc.Fields))
	for key := range sc.Fields {
		names = append(names, key)
	}
	sort.Strings(names)
	for _, key := range names {
		def := sc.FindField(key)
		if def == nil || def.Unique == nil || !*def.Unique {
			continue
		}
		name := def.Name
		if name == "" {
			name = key
		}
		if uniqueCovered[name] {
			continue
		}
		uniqueCovered[name] = true
		models = append(models, mongo.IndexModel{
			Keys:    bson.D{{Key: name, Value: 1}},
			Options: options.Index().SetName(fmt.Sprintf("%s_%s_unique", sc.CollectionName(), name)).SetUnique(true),
		})
	}
	return models
}

// EnsureIndexes creates the schema's indexes on collection.
func EnsureIndexes(ctx context.Context, collection *mongo.Collection, sc *schema.SchemaDefinition) error {
	models := IndexModels(sc)
	if len(models) == 0 {
		return nil
	}
	if _, err := collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create indexes for %s: %w", sc.CollectionName(), err)
	}
	return nil
}
