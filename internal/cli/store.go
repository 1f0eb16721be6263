package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/asaidimu/go-odm/core/persistence"
	"github.com/asaidimu/go-odm/core/query"
	"github.com/asaidimu/go-odm/core/schema"
	"github.com/asaidimu/go-odm/mongodb"
	"github.com/asaidimu/go-odm/sqlite"
	"go.uber.org/zap"
)

// LoadSchema reads the configured schema, or describes a bare collection
// keyed by "_id" when no schema file is set.
func LoadSchema(cfg *Config) (*schema.SchemaDefinition, error) {
	sc := &schema.SchemaDefinition{Name: cfg.Collection}
	if cfg.Schema != "" {
		data, err := os.ReadFile(cfg.Schema)
		if err != nil {
			return nil, fmt.Errorf("failed to read schema: %w", err)
		}
		if sc, err = schema.FromJSON(data); err != nil {
			return nil, err
		}
		if cfg.Collection != "" {
			sc.Name = cfg.Collection
		}
	}
	if sc.CollectionName() == "" {
		return nil, fmt.Errorf("a collection name is required: set --collection or --schema")
	}
	return sc, nil
}

// OpenStorage connects the configured driver and returns a storage adapter
// along with a function releasing the connection.
func OpenStorage(ctx context.Context, cfg *Config, logger *zap.Logger) (*persistence.Storage, func() error, error) {
	sc, err := LoadSchema(cfg)
	if err != nil {
		return nil, nil, err
	}

	var (
		driver persistence.Driver
		closer func() error
	)
	switch cfg.Driver {
	case DriverSQLite:
		db, err := sql.Open("sqlite3", cfg.SQLite.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		d := sqlite.NewDriver(db, sc.CollectionName(), sc.PrimaryKey(), logger, &sqlite.Options{CollectionPrefix: cfg.SQLite.Prefix})
		if err := d.EnsureCollection(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		driver, closer = d, db.Close
	case DriverMongoDB:
		client, err := mongodb.Connect(ctx, cfg.MongoDB, logger)
		if err != nil {
			return nil, nil, err
		}
		collection := client.Database(cfg.MongoDB.Database).Collection(sc.CollectionName())
		if err := mongodb.EnsureIndexes(ctx, collection, sc); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		driver = mongodb.NewDriver(collection, logger)
		closer = func() error { return client.Disconnect(context.Background()) }
	default:
		return nil, nil, fmt.Errorf("invalid driver %q", cfg.Driver)
	}

	storage, err := persistence.New(driver, sc, &persistence.Options{
		Logger:     logger,
		Translator: &query.TranslatorOptions{OverwriteDuplicates: cfg.OverwriteDuplicates},
	})
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return storage, closer, nil
}
