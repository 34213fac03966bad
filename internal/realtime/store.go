// Package realtime provides the push-based document store the chat layer runs
// on: path-addressed JSON values, subscriptions that deliver the current value
// immediately and again on every change, and connection-scoped disconnect
// fallbacks. The in-process MemoryStore is the store of record; Bridge
// replicates its changes between server instances over Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
)

// ValueHandler receives the JSON value at a watched path.
// A nil value means the path holds nothing.
type ValueHandler func(value json.RawMessage)

// ChildrenHandler receives all direct child values under a watched path,
// keyed by the last path segment.
type ChildrenHandler func(children map[string]json.RawMessage)

// Subscription is the cancellation token returned by every subscribe call.
// Cancel is idempotent; no further callbacks are delivered for events that
// arrive after Cancel returns.
type Subscription interface {
	Cancel()
}

// Store is the minimal realtime contract the chat core consumes. All writes
// are last-write-wins on the written keys; there is no optimistic locking
// because every path has a single writer-of-record.
type Store interface {
	// Get returns the value at path, or nil when absent.
	Get(path string) (json.RawMessage, error)
	// GetChildren returns the direct child values under path.
	GetChildren(path string) (map[string]json.RawMessage, error)

	// Write overwrites the value at path.
	Write(ctx context.Context, path string, value any) error
	// Update shallow-merges fields into the object at path.
	Update(ctx context.Context, path string, fields map[string]any) error
	// BatchUpdate applies several shallow merges as one write: all paths are
	// mutated under a single lock and watchers observe the combined result.
	BatchUpdate(ctx context.Context, updates map[string]map[string]any) error
	// Delete removes the value at path. Deleting an absent path is a no-op.
	Delete(ctx context.Context, path string) error

	// Subscribe watches the value at path. The handler fires once with the
	// current value before this call returns control flow to the store, and
	// again on every change, in order.
	Subscribe(path string, fn ValueHandler) Subscription
	// SubscribeChildren watches the direct children of path and redelivers
	// the full child map on any child change.
	SubscribeChildren(path string, fn ChildrenHandler) Subscription

	// NewID returns a collision-resistant, lexicographically time-ordered id.
	NewID() string

	// Connect opens a connection scope for disconnect fallbacks.
	Connect() Conn
}

// Conn represents one client's connection to the store. Fallback writes
// registered here fire exactly once if the connection drops without the
// client cancelling them first.
type Conn interface {
	// OnDisconnectWrite registers a fallback write for path.
	// A later registration for the same path replaces the earlier one.
	OnDisconnectWrite(path string, value any) error
	// CancelDisconnect removes the fallback registered for path, if any.
	CancelDisconnect(path string)
	// Disconnect simulates/records an ungraceful connection loss and fires
	// every pending fallback. Subsequent calls do nothing.
	Disconnect()
}

// Change describes one committed local mutation, as seen by OnChange hooks.
type Change struct {
	Path string
	// Value is the new JSON value, or nil when the path was deleted.
	Value json.RawMessage
}

// serverTimestamp is the marker type behind ServerTimestamp.
type serverTimestamp struct{}

// ServerTimestamp is a placeholder value. When it appears inside a written
// object it is replaced with the store's wall clock (milliseconds since the
// epoch) at the moment the write executes, including when the write is a
// disconnect fallback firing long after registration.
var ServerTimestamp = serverTimestamp{}
