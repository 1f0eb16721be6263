// Package sqlite provides an embedded implementation of persistence.Driver
// backed by SQLite. Each collection is a table of JSON bodies keyed by the
// encoded primary key; native filter and update documents are evaluated in
// process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-odm/core/persistence"
	"github.com/asaidimu/go-odm/core/query"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// dbRunner is an interface that abstracts the common methods of *sql.DB and *sql.Tx,
// allowing for the same code to be used for both transactional and non-transactional
// database operations.
type dbRunner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Driver stores one collection in a SQLite table.
type Driver struct {
	db         *sql.DB
	collection string
	primaryKey string
	logger     *zap.Logger
	options    *Options
}

// Ensure Driver implements the persistence.Driver interface.
var _ persistence.Driver = (*Driver)(nil)

// NewDriver creates a driver for collection. Documents are keyed by the
// primaryKey attribute.
func NewDriver(db *sql.DB, collection, primaryKey string, logger *zap.Logger, options *Options) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultOptions()
	}
	return &Driver{
		db:         db,
		collection: collection,
		primaryKey: primaryKey,
		logger:     logger.With(zap.String("collection", collection)),
		options:    options,
	}
}

// storedDocument is a decoded row.
type storedDocument struct {
	key string
	doc persistence.Document
}

// encodeKey returns the column value for a primary key.
func encodeKey(value any) (string, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to encode primary key: %w", err)
	}
	return string(b), nil
}

// decodeBody decodes a stored document. Integral numbers come back as int64
// so they survive being written again; other numbers are float64.
func decodeBody(body string) (persistence.Document, error) {
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var doc persistence.Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	for k, v := range doc {
		doc[k] = restoreNumbers(v)
	}
	return doc, nil
}

// restoreNumbers replaces the json.Number values of a decoded body.
func restoreNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		for k, e := range val {
			val[k] = restoreNumbers(e)
		}
		return val
	case []any:
		for i, e := range val {
			val[i] = restoreNumbers(e)
		}
		return val
	default:
		return v
	}
}

// load reads every row of the collection, in insertion order, and keeps the
// ones matching filter.
func (d *Driver) load(ctx context.Context, r dbRunner, filter bson.M) ([]storedDocument, error) {
	sqlQuery := fmt.Sprintf("SELECT doc_key, body FROM %s ORDER BY rowid;", d.tableName())
	d.logger.Debug("Executing SQL SELECT", zap.String("sql", sqlQuery), zap.Any("filter", filter))

	rows, err := r.QueryContext(ctx, sqlQuery)
	if err != nil {
		d.logger.Error("Failed to execute SELECT query", zap.Error(err), zap.String("sql", sqlQuery))
		return nil, fmt.Errorf("failed to execute SELECT query: %w", err)
	}
	defer rows.Close()

	var results []storedDocument
	for rows.Next() {
		var key, body string
		if err := rows.Scan(&key, &body); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		doc, err := decodeBody(body)
		if err != nil {
			return nil, err
		}
		ok, err := Match(doc, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			results = append(results, storedDocument{key: key, doc: doc})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}

// keyLookup returns the key when filter is a plain equality on the primary
// key, which can be answered from the table's index.
func (d *Driver) keyLookup(filter bson.M) (any, bool) {
	if len(filter) != 1 {
		return nil, false
	}
	value, ok := filter[d.primaryKey]
	if !ok || value == nil {
		return nil, false
	}
	if _, isDoc := toDocument(value); isDoc {
		return nil, false
	}
	if _, isSlice := toSlice(value); isSlice {
		return nil, false
	}
	switch value.(type) {
	case string, bool:
		return value, true
	}
	if query.IsNumber(value) {
		return value, true
	}
	return nil, false
}

// Find returns a cursor over the documents matching filter.
func (d *Driver) Find(ctx context.Context, filter bson.M) (persistence.Cursor, error) {
	matches, err := d.load(ctx, d.db, filter)
	if err != nil {
		return nil, err
	}
	docs := make([]persistence.Document, len(matches))
	for i, m := range matches {
		docs[i] = m.doc
	}
	return persistence.NewSliceCursor(docs), nil
}

// FindOne returns the first document matching filter.
func (d *Driver) FindOne(ctx context.Context, filter bson.M) (persistence.Document, error) {
	if key, ok := d.keyLookup(filter); ok {
		return d.get(ctx, key)
	}
	matches, err := d.load(ctx, d.db, filter)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, persistence.ErrNotFound
	}
	return matches[0].doc, nil
}

func (d *Driver) get(ctx context.Context, key any) (persistence.Document, error) {
	encoded, err := encodeKey(key)
	if err != nil {
		return nil, err
	}
	sqlQuery := fmt.Sprintf("SELECT body FROM %s WHERE doc_key = ?;", d.tableName())
	d.logger.Debug("Executing SQL SELECT", zap.String("sql", sqlQuery), zap.String("key", encoded))

	var body string
	err = d.db.QueryRowContext(ctx, sqlQuery, encoded).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to execute SELECT query: %w", err)
	}
	return decodeBody(body)
}

// Insert writes doc. A document without a primary key is stored under a
// generated UUID; doc itself is left untouched.
func (d *Driver) Insert(ctx context.Context, doc persistence.Document) error {
	key, ok := doc[d.primaryKey]
	if !ok {
		withKey := make(persistence.Document, len(doc)+1)
		for k, v := range doc {
			withKey[k] = v
		}
		key = uuid.NewString()
		withKey[d.primaryKey] = key
		doc = withKey
	}

	encoded, err := encodeKey(key)
	if err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	sqlQuery := fmt.Sprintf("INSERT INTO %s (doc_key, body) VALUES (?, ?);", d.tableName())
	d.logger.Debug("Executing SQL INSERT", zap.String("sql", sqlQuery), zap.String("key", encoded))

	if _, err := d.db.ExecContext(ctx, sqlQuery, encoded, string(body)); err != nil {
		return d.mapError("INSERT", err)
	}
	return nil
}

// Update applies update to the matching documents. An operator document is
// applied to every match; a plain document replaces the first match and
// keeps its primary key.
func (d *Driver) Update(ctx context.Context, filter bson.M, update bson.M) (int64, error) {
	operators := persistence.IsOperatorDocument(update)
	var matched int64

	err := d.withTransaction(ctx, func(tx *sql.Tx) error {
		matched = 0
		matches, err := d.load(ctx, tx, filter)
		if err != nil {
			return err
		}
		if !operators && len(matches) > 1 {
			matches = matches[:1]
		}

		sqlQuery := fmt.Sprintf("UPDATE %s SET body = ? WHERE doc_key = ?;", d.tableName())
		for _, m := range matches {
			next := m.doc
			if operators {
				if err := applyUpdate(next, update); err != nil {
					return err
				}
			} else {
				next = make(persistence.Document, len(update)+1)
				for k, v := range update {
					next[k] = v
				}
				if _, ok := next[d.primaryKey]; !ok {
					next[d.primaryKey] = m.doc[d.primaryKey]
				}
			}
			if !valuesEqual(next[d.primaryKey], m.doc[d.primaryKey]) {
				return fmt.Errorf("%w: %s", ErrImmutableKey, d.primaryKey)
			}

			body, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("failed to encode document: %w", err)
			}
			d.logger.Debug("Executing SQL UPDATE", zap.String("sql", sqlQuery), zap.String("key", m.key))
			if _, err := tx.ExecContext(ctx, sqlQuery, string(body), m.key); err != nil {
				return d.mapError("UPDATE", err)
			}
			matched++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return matched, nil
}

// Remove deletes the matching documents.
func (d *Driver) Remove(ctx context.Context, filter bson.M) (int64, error) {
	var removed int64

	err := d.withTransaction(ctx, func(tx *sql.Tx) error {
		removed = 0
		matches, err := d.load(ctx, tx, filter)
		if err != nil {
			return err
		}

		sqlQuery := fmt.Sprintf("DELETE FROM %s WHERE doc_key = ?;", d.tableName())
		for _, m := range matches {
			d.logger.Debug("Executing SQL DELETE", zap.String("sql", sqlQuery), zap.String("key", m.key))
			result, err := tx.ExecContext(ctx, sqlQuery, m.key)
			if err != nil {
				return d.mapError("DELETE", err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			removed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// withTransaction runs fn in a transaction, committing when it returns nil.
func (d *Driver) withTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		d.logger.Debug("Rolling back transaction", zap.Error(err))
		if rbErr := tx.Rollback(); rbErr != nil {
			d.logger.Error("Rollback failed", zap.Error(rbErr))
		}
		return err
	}
	d.logger.Debug("Committing transaction")
	return tx.Commit()
}

// mapError converts constraint violations into persistence.ErrKeyExists.
func (d *Driver) mapError(statement string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", persistence.ErrKeyExists, err)
	}
	d.logger.Error("Failed to execute "+statement+" query", zap.Error(err))
	return fmt.Errorf("failed to execute %s query: %w", statement, err)
}
