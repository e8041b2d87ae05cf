// Package storage defines the durable key-value store backing the record
// queues, the sign-in status cache and the tracker markers. The store
// survives restarts, is shared by every component in the process, and
// publishes a change event for every committed write so listeners can react
// the way other browser tabs react to storage notifications.
package storage

import (
	"context"

	"github.com/ecodata/fieldsync/internal/client/event"
)

// EventChanged is published on the event bus after every committed write.
// Event.Data is a Change.
const EventChanged event.Type = "storage.changed"

// Change names the key that was written or deleted.
type Change struct {
	Key string
}

// KV is origin-scoped durable key-value persistence.
//
// Get returns (nil, nil) when the key is absent. Update runs fn atomically
// against the current value (nil when absent); the value fn returns replaces
// the stored one, and returning nil deletes the key. Update is the only safe
// way to read-modify-write a key that other interleaved operations may also
// touch.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Update(ctx context.Context, key string, fn func(old []byte) ([]byte, error)) error
}
