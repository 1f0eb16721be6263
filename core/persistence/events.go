package persistence

import (
	"time"
)

// StorageEventType defines the possible event types for storage operations.
type StorageEventType string

const (
	DocumentCreateStart   StorageEventType = "document:create:start"
	DocumentCreateSuccess StorageEventType = "document:create:success"
	DocumentCreateFailed  StorageEventType = "document:create:failed"
	DocumentReadStart     StorageEventType = "document:read:start"
	DocumentReadSuccess   StorageEventType = "document:read:success"
	DocumentReadFailed    StorageEventType = "document:read:failed"
	DocumentUpdateStart   StorageEventType = "document:update:start"
	DocumentUpdateSuccess StorageEventType = "document:update:success"
	DocumentUpdateFailed  StorageEventType = "document:update:failed"
	DocumentDeleteStart   StorageEventType = "document:delete:start"
	DocumentDeleteSuccess StorageEventType = "document:delete:success"
	DocumentDeleteFailed  StorageEventType = "document:delete:failed"
)

// StorageEvent is emitted around every storage operation.
type StorageEvent struct {
	Type       StorageEventType `json:"type"`
	Timestamp  int64            `json:"timestamp"` // Unix milliseconds
	Operation  string           `json:"operation"` // find, find_one, get, insert, update, modify, remove
	Collection string           `json:"collection,omitempty"`
	Input      any              `json:"input,omitempty"`
	Output     any              `json:"output,omitempty"`
	Filter     any              `json:"filter,omitempty"`
	Error      *string          `json:"error,omitempty"`
	Duration   *int64           `json:"duration,omitempty"` // milliseconds
}

// eventPhases groups the start, success and failure events of an operation kind.
type eventPhases struct {
	start, success, failed StorageEventType
}

var (
	readEvents   = eventPhases{DocumentReadStart, DocumentReadSuccess, DocumentReadFailed}
	createEvents = eventPhases{DocumentCreateStart, DocumentCreateSuccess, DocumentCreateFailed}
	updateEvents = eventPhases{DocumentUpdateStart, DocumentUpdateSuccess, DocumentUpdateFailed}
	deleteEvents = eventPhases{DocumentDeleteStart, DocumentDeleteSuccess, DocumentDeleteFailed}
)

// emitEvent is a helper method to emit events
func (s *Storage) emitEvent(event StorageEvent) {
	if s.bus != nil {
		s.bus.Emit(string(event.Type), event)
	}
}

// withEventEmission wraps an operation with start, success, and failure events.
func (s *Storage) withEventEmission(
	operation string,
	phases eventPhases,
	input any,
	filter any,
	fn func() (any, error),
) (any, error) {
	startTime := time.Now()
	s.emitEvent(createEvent(phases.start, operation, s.collection, input, nil, filter, nil, startTime))

	result, err := fn()
	if err != nil {
		errStr := err.Error()
		s.emitEvent(createEvent(phases.failed, operation, s.collection, input, nil, filter, &errStr, startTime))
		return nil, err
	}

	s.emitEvent(createEvent(phases.success, operation, s.collection, input, result, filter, nil, startTime))
	return result, nil
}
