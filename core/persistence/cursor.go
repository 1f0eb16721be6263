package persistence

import (
	"context"
	"fmt"
)

// SliceCursor is a Cursor over documents already held in memory.
type SliceCursor struct {
	docs    []Document
	pos     int
	current Document
	closed  bool
}

// NewSliceCursor returns a cursor over docs.
func NewSliceCursor(docs []Document) *SliceCursor {
	return &SliceCursor{docs: docs}
}

// Next advances the cursor. It returns false once the documents are
// exhausted, the cursor is closed or ctx is done.
func (c *SliceCursor) Next(ctx context.Context) bool {
	if c.closed || ctx.Err() != nil || c.pos >= len(c.docs) {
		c.current = nil
		return false
	}
	c.current = c.docs[c.pos]
	c.pos++
	return true
}

// Document returns the document under the cursor.
func (c *SliceCursor) Document() Document {
	return c.current
}

// Err always returns nil; all documents were loaded up front.
func (c *SliceCursor) Err() error {
	return nil
}

// Close releases the documents.
func (c *SliceCursor) Close(ctx context.Context) error {
	c.closed = true
	c.docs = nil
	return nil
}

// All drains the cursor into a slice and closes it.
func All(ctx context.Context, cursor Cursor) ([]Document, error) {
	defer cursor.Close(ctx)

	var docs []Document
	for cursor.Next(ctx) {
		docs = append(docs, cursor.Document())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor iteration failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
