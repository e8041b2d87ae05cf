// Package status derives the user-facing state of the app: how many records
// each queue holds and whether today's site sign-in has gone through. The
// sign-in answer degrades gracefully: a fresh server answer when reachable,
// the cached one otherwise, and never an error to the caller.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ecodata/fieldsync/internal/client/event"
	"github.com/ecodata/fieldsync/internal/client/models"
	"github.com/ecodata/fieldsync/internal/client/queue"
	"github.com/ecodata/fieldsync/internal/client/storage"
	"github.com/ecodata/fieldsync/internal/logging"
)

// FetchFunc asks the remote endpoint for the authoritative sign-in state.
type FetchFunc func(ctx context.Context, username string) (*models.SignInStatus, error)

// Gate is the reachability predicate; offline means the cache is the answer.
type Gate interface {
	Online() bool
}

type Deriver struct {
	queues *queue.Store
	kv     storage.KV
	gate   Gate
	fetch  FetchFunc
	log    logging.Logger

	mu         sync.Mutex
	lastCounts map[models.FormType]int
}

func NewDeriver(queues *queue.Store, kv storage.KV, gate Gate, fetch FetchFunc, log logging.Logger) *Deriver {
	return &Deriver{
		queues: queues,
		kv:     kv,
		gate:   gate,
		fetch:  fetch,
		log:    log.With("component", "status"),
	}
}

// PendingCounts reports how many records each form type has waiting.
func (d *Deriver) PendingCounts(ctx context.Context) (map[models.FormType]int, error) {
	return d.queues.Counts(ctx)
}

// SignInStatus answers "has the user signed in to a site today". Without
// forceRefresh a cached answer is returned as-is. With forceRefresh the
// server is asked when reachable; a failed or impossible fetch falls back to
// the cache, and an empty cache means not signed in. It never returns an
// error: the answer is advisory and the forms must stay usable offline.
func (d *Deriver) SignInStatus(ctx context.Context, forceRefresh bool) *models.SignInStatus {
	cached := d.cached(ctx)
	if !forceRefresh && cached != nil {
		return cached
	}

	if !d.gate.Online() || d.fetch == nil {
		return d.fallback(cached)
	}

	username, err := d.username(ctx)
	if err != nil || username == "" {
		return d.fallback(cached)
	}

	fresh, err := d.fetch(ctx, username)
	if err != nil {
		d.log.Warn(ctx, "sign-in status fetch failed, using cache", "error", err)
		return d.fallback(cached)
	}

	if err := d.SetLocal(ctx, fresh); err != nil {
		d.log.Error(ctx, "caching sign-in status", "error", err)
	}
	return fresh
}

// SetLocal overwrites the cached sign-in status, e.g. right after the user
// submits a sign-in or sign-out locally.
func (d *Deriver) SetLocal(ctx context.Context, st *models.SignInStatus) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode sign-in status: %w", err)
	}
	return d.kv.Set(ctx, storage.KeySignInStatus, raw)
}

// LastCounts returns the snapshot maintained by Watch, nil before the first
// storage change.
func (d *Deriver) LastCounts() map[models.FormType]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastCounts
}

// Watch recomputes the pending counts whenever storage changes, until ctx is
// done. Run it in its own goroutine.
func (d *Deriver) Watch(ctx context.Context, bus *event.Bus) {
	id, ch := bus.Subscribe(storage.EventChanged)
	defer bus.Unsubscribe(storage.EventChanged, id)

	for {
		select {
		case <-ch:
			counts, err := d.queues.Counts(ctx)
			if err != nil {
				d.log.Error(ctx, "recomputing pending counts", "error", err)
				continue
			}
			d.mu.Lock()
			d.lastCounts = counts
			d.mu.Unlock()

		case <-ctx.Done():
			return
		}
	}
}

func (d *Deriver) cached(ctx context.Context) *models.SignInStatus {
	raw, err := d.kv.Get(ctx, storage.KeySignInStatus)
	if err != nil || len(raw) == 0 {
		return nil
	}
	var st models.SignInStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		d.log.Warn(ctx, "corrupt cached sign-in status dropped", "error", err)
		return nil
	}
	return &st
}

// fallback degrades to the cache, or to "not signed in" with nothing cached.
func (d *Deriver) fallback(cached *models.SignInStatus) *models.SignInStatus {
	if cached != nil {
		return cached
	}
	return &models.SignInStatus{}
}

func (d *Deriver) username(ctx context.Context) (string, error) {
	raw, err := d.kv.Get(ctx, storage.KeyUsername)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
