package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ErrMissingConfig is returned by Connect when a required setting is empty.
var ErrMissingConfig = errors.New("mongodb: incomplete configuration")

// Config holds the connection settings of a MongoDB collection.
type Config struct {
	URI            string        `mapstructure:"uri" yaml:"uri"`
	Database       string        `mapstructure:"database" yaml:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

// DefaultConfig returns settings for a local server.
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "odm",
		ConnectTimeout: 10 * time.Second,
	}
}

// Validate checks that the required settings are present.
func (c Config) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("%w: uri is required", ErrMissingConfig)
	}
	if c.Database == "" {
		return fmt.Errorf("%w: database is required", ErrMissingConfig)
	}
	return nil
}

// ClientOptions builds the client options for cfg. Embedded documents
// decode as maps so results look like the documents that were written.
func (c Config) ClientOptions() *options.ClientOptions {
	opts := options.Client().
		ApplyURI(c.URI).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	if c.ConnectTimeout > 0 {
		opts.SetConnectTimeout(c.ConnectTimeout)
	}
	return opts
}

// Connect opens a client and verifies the server is reachable.
func Connect(ctx context.Context, cfg Config, logger *zap.Logger) (*mongo.Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := mongo.Connect(ctx, cfg.ClientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logger.Info("Connected to MongoDB", zap.String("database", cfg.Database))
	return client, nil
}
