// Package syncer drains the pending-submission queues through a delivery
// function. A pass snapshots one queue, attempts every record oldest-first,
// and commits by removing exactly the delivered records from the queue as it
// exists at commit time, so records enqueued mid-pass are never lost.
package syncer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ecodata/fieldsync/internal/client/models"
	"github.com/ecodata/fieldsync/internal/client/queue"
	"github.com/ecodata/fieldsync/internal/common"
	"github.com/ecodata/fieldsync/internal/logging"
)

// Receipt is what a delivery function reports back for an accepted record.
// Sign-in deliveries carry the server's view of the sign-in state.
type Receipt struct {
	HasSignedIn  bool
	PropertyName string
}

// DeliverFunc attempts delivery of one record's outbound fields. A nil error
// means the remote endpoint accepted the record; any error (transport,
// application, or otherwise) keeps the record queued for a later pass.
type DeliverFunc func(ctx context.Context, fields map[string]string) (*Receipt, error)

// BlobStore is the slice of the attachment store the engine needs.
type BlobStore interface {
	Get(ctx context.Context, id uint64) ([]byte, error)
	Delete(ctx context.Context, id uint64) error
}

// Gate is the reachability predicate consulted before a pass starts.
type Gate interface {
	Online() bool
}

// Result summarizes one queue's sync pass. Partial delivery is the normal
// case, not an error state.
type Result struct {
	Delivered     int
	FailedRecords []models.Record
}

func (r *Result) Failed() int {
	return len(r.FailedRecords)
}

type Option func(*Engine)

// WithStamp registers a hook that contributes extra outbound fields (the
// stored username, the signed-in property name). Fields already present on
// the record are not overwritten.
func WithStamp(fn func(ctx context.Context) map[string]string) Option {
	return func(e *Engine) { e.stamp = fn }
}

// WithOnDelivered registers a hook invoked after each accepted record, e.g.
// to refresh the sign-in status cache from a sign-in receipt.
func WithOnDelivered(fn func(ctx context.Context, rec models.Record, receipt *Receipt)) Option {
	return func(e *Engine) { e.onDelivered = fn }
}

// WithAfterSync registers a hook invoked once after a SyncAll pass, used to
// revalidate the sign-in status and drain pending location updates.
func WithAfterSync(fn func(ctx context.Context)) Option {
	return func(e *Engine) { e.afterSync = fn }
}

type Engine struct {
	queues *queue.Store
	blobs  BlobStore
	gate   Gate
	log    logging.Logger

	stamp       func(ctx context.Context) map[string]string
	onDelivered func(ctx context.Context, rec models.Record, receipt *Receipt)
	afterSync   func(ctx context.Context)
}

func New(queues *queue.Store, blobs BlobStore, gate Gate, log logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		queues: queues,
		blobs:  blobs,
		gate:   gate,
		log:    log.With("component", "syncer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncOne attempts delivery of every record currently queued for the form
// type. Records are attempted sequentially, oldest-first; one record's
// failure never aborts the rest of the pass. Returns common.ErrOffline
// without touching anything when the reachability gate says offline.
func (e *Engine) SyncOne(ctx context.Context, formType models.FormType, deliver DeliverFunc) (*Result, error) {
	if !e.gate.Online() {
		return nil, common.ErrOffline
	}

	snapshot, err := e.queues.List(ctx, formType)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s queue: %w", formType, err)
	}
	if len(snapshot) == 0 {
		return &Result{}, nil
	}

	result := &Result{}
	deliveredIDs := make([]string, 0, len(snapshot))

	for _, rec := range snapshot {
		fields, err := e.outboundFields(ctx, rec)
		if err != nil {
			// Could not assemble the payload (blob store trouble other
			// than a missing attachment): keep the record, original
			// attachment ids intact, for the next pass.
			e.log.Warn(ctx, "payload assembly failed, record kept",
				"form", formType, "formId", rec.FormID, "error", err)
			result.FailedRecords = append(result.FailedRecords, rec)
			continue
		}

		receipt, err := deliver(ctx, fields)
		if err != nil {
			e.log.Warn(ctx, "delivery failed, record kept",
				"form", formType, "formId", rec.FormID, "error", err)
			result.FailedRecords = append(result.FailedRecords, rec)
			continue
		}

		result.Delivered++
		deliveredIDs = append(deliveredIDs, rec.FormID)
		e.cleanupBlobs(ctx, rec)
		if e.onDelivered != nil {
			e.onDelivered(ctx, rec, receipt)
		}
	}

	// Commit against the live queue, not the snapshot: anything enqueued
	// while deliveries were in flight must survive.
	if err := e.queues.RemoveDelivered(ctx, formType, deliveredIDs); err != nil {
		return nil, fmt.Errorf("commit %s queue: %w", formType, err)
	}

	e.log.Info(ctx, "sync pass finished",
		"form", formType, "delivered", result.Delivered, "failed", result.Failed())
	return result, nil
}

// SyncAll runs SyncOne for every form type with a registered delivery
// function, concurrently; the queues are independent and no cross-type
// ordering is guaranteed. After all passes complete the after-sync hook
// fires (sign-in status revalidation, pending location updates).
func (e *Engine) SyncAll(ctx context.Context, delivers map[models.FormType]DeliverFunc) (map[models.FormType]*Result, error) {
	if !e.gate.Online() {
		return nil, common.ErrOffline
	}

	var mu sync.Mutex
	results := make(map[models.FormType]*Result, len(delivers))

	g, gctx := errgroup.WithContext(ctx)
	for formType, deliver := range delivers {
		formType, deliver := formType, deliver
		g.Go(func() error {
			res, err := e.SyncOne(gctx, formType, deliver)
			if err != nil {
				return err
			}
			mu.Lock()
			results[formType] = res
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	if e.afterSync != nil {
		e.afterSync(ctx)
	}
	return results, err
}

// outboundFields flattens a record into the string map the delivery function
// sends: the form answers plus form id, creation timestamp, the encoded
// location trail, inlined photo payloads, and any stamped session fields.
func (e *Engine) outboundFields(ctx context.Context, rec models.Record) (map[string]string, error) {
	fields := make(map[string]string, len(rec.Fields)+5)
	for k, v := range rec.Fields {
		fields[k] = v
	}
	fields["formId"] = rec.FormID
	if _, ok := fields["timestamp"]; !ok {
		fields["timestamp"] = rec.CreatedAt.Format(time.RFC3339)
	}
	fields["locationHistory"] = models.EncodeTrail(rec.LocationTrail)

	photos, err := e.inlineBlobs(ctx, rec)
	if err != nil {
		return nil, err
	}
	fields["photos"] = photos

	if e.stamp != nil {
		for k, v := range e.stamp(ctx) {
			if _, ok := fields[k]; !ok && v != "" {
				fields[k] = v
			}
		}
	}
	return fields, nil
}

// inlineBlobs resolves the record's attachment ids into a JSON array of
// base64 payloads. A missing blob is data loss for that attachment only and
// does not fail the record; any other blob store error does.
func (e *Engine) inlineBlobs(ctx context.Context, rec models.Record) (string, error) {
	payloads := make([]string, 0, len(rec.AttachmentIDs))
	for _, id := range rec.AttachmentIDs {
		data, err := e.blobs.Get(ctx, id)
		if errors.Is(err, common.ErrNotFound) {
			e.log.Warn(ctx, "attachment missing, sending record without it",
				"formId", rec.FormID, "blob", id)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("resolve attachment %d: %w", id, err)
		}
		payloads = append(payloads, base64.StdEncoding.EncodeToString(data))
	}

	encoded, err := json.Marshal(payloads)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// cleanupBlobs drops a delivered record's attachments. Failures are logged
// and ignored: the payload already reached the server, an undeleted blob is
// an orphan, not a correctness problem.
func (e *Engine) cleanupBlobs(ctx context.Context, rec models.Record) {
	for _, id := range rec.AttachmentIDs {
		if err := e.blobs.Delete(ctx, id); err != nil {
			e.log.Warn(ctx, "blob cleanup failed", "formId", rec.FormID, "blob", id, "error", err)
		}
	}
}
