package persistence

import (
	"strings"
	"time"
)

func createEvent(
	eventType StorageEventType,
	operation string,
	collection string,
	input any,
	output any,
	filter any,
	err *string,
	startTime time.Time,
) StorageEvent {
	var duration *int64
	if !startTime.IsZero() {
		d := time.Since(startTime).Milliseconds()
		duration = &d
	}

	return StorageEvent{
		Type:       eventType,
		Timestamp:  time.Now().UnixMilli(),
		Operation:  operation,
		Collection: collection,
		Input:      input,
		Output:     output,
		Filter:     filter,
		Error:      err,
		Duration:   duration,
	}
}

// copyDocument returns a shallow copy of doc.
func copyDocument(doc Document) Document {
	out := make(Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// IsOperatorDocument reports whether every top-level key of doc is a "$"
// operator. Empty documents are not operator documents.
func IsOperatorDocument[M ~map[string]any](doc M) bool {
	if len(doc) == 0 {
		return false
	}
	for k := range doc {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}
