package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Options configures how collections map onto tables.
type Options struct {
	// CollectionPrefix is prepended to every table name.
	CollectionPrefix string
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{}
}

// quoteIdentifier safely quotes an identifier, such as a table or column name,
// to prevent SQL injection and to handle names that might be keywords or contain
// special characters.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// tableName returns the quoted table name of the driver's collection.
func (d *Driver) tableName() string {
	return quoteIdentifier(d.options.CollectionPrefix + d.collection)
}

// EnsureCollection creates the collection's table if it does not exist.
func (d *Driver) EnsureCollection(ctx context.Context) error {
	stmt := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (doc_key TEXT PRIMARY KEY NOT NULL, body TEXT NOT NULL);",
		d.tableName(),
	)
	d.logger.Debug("Executing SQL DDL", zap.String("sql", stmt))
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", d.tableName(), err)
	}
	return nil
}

// DropCollection drops the collection's table.
func (d *Driver) DropCollection(ctx context.Context) error {
	stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.tableName())
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", d.tableName(), err)
	}
	return nil
}

// CollectionExists checks if the collection's table exists.
func (d *Driver) CollectionExists(ctx context.Context) (bool, error) {
	query := "SELECT name FROM sqlite_master WHERE type='table' AND name = ?;"

	var name string
	err := d.db.QueryRowContext(ctx, query, d.options.CollectionPrefix+d.collection).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
