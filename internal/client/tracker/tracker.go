// Package tracker samples the device position on an interval while a site
// visit is active and folds the samples into the visit's record. While the
// record is still queued the trail is updated in place; once it has been
// delivered, later samples become location-update patches for the server.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ecodata/fieldsync/internal/client/models"
	"github.com/ecodata/fieldsync/internal/client/queue"
	"github.com/ecodata/fieldsync/internal/client/storage"
	"github.com/ecodata/fieldsync/internal/logging"
)

var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrUnavailable      = errors.New("location unavailable")
)

// Provider produces position fixes. Implementations wrap whatever positioning
// source the platform offers (gpsd, a serial NMEA feed, a fake in tests).
type Provider interface {
	CurrentSample(ctx context.Context) (models.LocationSample, error)
}

// Gate is the reachability predicate consulted before patching the server.
type Gate interface {
	Online() bool
}

// PatchFunc pushes one location update to the remote endpoint.
type PatchFunc func(ctx context.Context, upd models.PendingLocationUpdate) error

type Tracker struct {
	kv       storage.KV
	queues   *queue.Store
	pending  *PendingStore
	gate     Gate
	provider Provider
	patch    PatchFunc
	log      logging.Logger
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	formID string
}

func New(kv storage.KV, queues *queue.Store, pending *PendingStore, gate Gate,
	provider Provider, patch PatchFunc, interval time.Duration, log logging.Logger) *Tracker {
	return &Tracker{
		kv:       kv,
		queues:   queues,
		pending:  pending,
		gate:     gate,
		provider: provider,
		patch:    patch,
		log:      log.With("component", "tracker"),
		interval: interval,
	}
}

// TrackingFormID returns the form id being tracked, or "" when idle.
func (t *Tracker) TrackingFormID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.formID
}

// Start begins a tracking session for the record. The form id is persisted so
// tracking survives a restart, the previous session's trail is discarded, and
// the first sample is taken immediately rather than one interval later.
// Starting the session that is already running is a no-op.
func (t *Tracker) Start(ctx context.Context, formID string) error {
	t.mu.Lock()
	if t.formID == formID {
		t.mu.Unlock()
		return nil
	}
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.mu.Unlock()

	if err := t.kv.Set(ctx, storage.KeyTrackingFormID, []byte(formID)); err != nil {
		return fmt.Errorf("persist tracking marker: %w", err)
	}
	if err := t.kv.Delete(ctx, storage.KeyLocationHistory); err != nil {
		return fmt.Errorf("reset location history: %w", err)
	}
	t.run(formID)
	return nil
}

// Resume restarts tracking after a process restart if a session marker was
// left behind. The accumulated trail is kept.
func (t *Tracker) Resume(ctx context.Context) error {
	raw, err := t.kv.Get(ctx, storage.KeyTrackingFormID)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	t.log.Info(ctx, "resuming tracking session", "formId", string(raw))
	t.run(string(raw))
	return nil
}

// Stop ends the tracking session and removes the restart marker. The trail
// collected so far stays in storage until the next Start.
func (t *Tracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.formID = ""
	t.mu.Unlock()

	return t.kv.Delete(ctx, storage.KeyTrackingFormID)
}

// Trail returns the samples collected so far for the current session.
func (t *Tracker) Trail(ctx context.Context) ([]models.LocationSample, error) {
	raw, err := t.kv.Get(ctx, storage.KeyLocationHistory)
	if err != nil {
		return nil, err
	}
	return decodeTrail(raw)
}

func (t *Tracker) run(formID string) {
	loopCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.cancel = cancel
	t.formID = formID
	t.mu.Unlock()

	go t.loop(loopCtx, formID)
}

func (t *Tracker) loop(ctx context.Context, formID string) {
	t.sampleOnce(ctx, formID)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.sampleOnce(ctx, formID)
		case <-ctx.Done():
			return
		}
	}
}

// sampleOnce takes one fix and folds it in. A failed fix is logged and
// skipped; the session keeps running and the next tick tries again.
func (t *Tracker) sampleOnce(ctx context.Context, formID string) {
	if t.provider == nil {
		return
	}
	sample, err := t.provider.CurrentSample(ctx)
	if err != nil {
		t.log.Warn(ctx, "location sample failed", "formId", formID, "error", err)
		return
	}

	trail, err := t.appendHistory(ctx, sample)
	if err != nil {
		t.log.Error(ctx, "appending location history", "formId", formID, "error", err)
		return
	}

	stillQueued, err := t.queues.SetTrail(ctx, formID, trail)
	if err != nil {
		t.log.Error(ctx, "updating queued record trail", "formId", formID, "error", err)
		return
	}
	if stillQueued {
		// The record has not been delivered yet, the trail rides along
		// with it.
		return
	}

	upd := models.PendingLocationUpdate{
		FormID:        formID,
		LocationTrail: models.EncodeTrail(trail),
		QueuedAt:      time.Now(),
	}
	if err := t.pending.Upsert(ctx, upd); err != nil {
		t.log.Error(ctx, "queueing location update", "formId", formID, "error", err)
		return
	}

	if t.patch == nil || !t.gate.Online() {
		return
	}
	if err := t.patch(ctx, upd); err != nil {
		t.log.Warn(ctx, "location patch failed, update kept pending", "formId", formID, "error", err)
		return
	}
	if err := t.pending.Remove(ctx, formID); err != nil {
		t.log.Error(ctx, "removing patched location update", "formId", formID, "error", err)
	}
}

func (t *Tracker) appendHistory(ctx context.Context, sample models.LocationSample) ([]models.LocationSample, error) {
	var trail []models.LocationSample
	err := t.kv.Update(ctx, storage.KeyLocationHistory, func(old []byte) ([]byte, error) {
		var err error
		trail, err = decodeTrail(old)
		if err != nil {
			return nil, err
		}
		trail = append(trail, sample)
		return json.Marshal(trail)
	})
	if err != nil {
		return nil, err
	}
	return trail, nil
}

func decodeTrail(raw []byte) ([]models.LocationSample, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var trail []models.LocationSample
	if err := json.Unmarshal(raw, &trail); err != nil {
		return nil, fmt.Errorf("corrupt location history: %w", err)
	}
	return trail, nil
}
