package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecodata/fieldsync/internal/client/models"
	"github.com/ecodata/fieldsync/internal/client/tracker"
	"github.com/ecodata/fieldsync/internal/common"
	"github.com/ecodata/fieldsync/internal/filex"
)

// captureTrail acquires one position fix for a fresh submission. No provider
// or no fix means the record goes out without a location rather than being
// blocked on GPS.
func (a *App) captureTrail(ctx context.Context) []models.LocationSample {
	if a.provider == nil {
		return nil
	}
	fmt.Fprintln(a.out, "Acquiring position fix...")
	fix, err := tracker.AcquireFix(ctx, a.provider,
		a.cfg.GPSAccuracyTargetMeters, a.cfg.GPSAcquireTimeout, time.Second, a.log)
	if err != nil {
		fmt.Fprintln(a.out, "No position fix, submitting without location")
		return nil
	}
	return []models.LocationSample{fix}
}

// attachPhotos prompts for photo file paths and stores each one in the blob
// store. Unreadable files are reported and skipped; a full disk aborts the
// whole submission because nothing more can be saved.
func (a *App) attachPhotos(ctx context.Context) ([]uint64, error) {
	paths, err := GetLines(a.reader, "Photo paths", a.cfg.MaxPhotos, a.out)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(paths))
	for _, path := range paths {
		data, err := filex.ReadMax(path, a.cfg.MaxPhotoBytes)
		if err != nil {
			fmt.Fprintf(a.out, "Skipping photo: %v\n", err)
			continue
		}
		id, err := a.blobs.Put(ctx, data)
		if errors.Is(err, common.ErrQuotaExceeded) {
			return nil, fmt.Errorf("device storage is full, free up space before submitting: %w", err)
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// submit persists the record locally and, when reachable, tries to deliver
// its queue straight away. Local persistence is the success criterion; a
// failed delivery just leaves the record pending.
func (a *App) submit(ctx context.Context, rec *models.Record) error {
	if err := a.queues.Enqueue(ctx, rec); err != nil {
		if errors.Is(err, common.ErrQuotaExceeded) {
			fmt.Fprintln(a.out, "Device storage is full, the record could NOT be saved.")
		}
		a.rememberOutcome(ctx, rec.FormType, "save failed: "+err.Error())
		return err
	}
	fmt.Fprintln(a.out, "Saved locally.")

	if !a.gate.Online() {
		a.rememberOutcome(ctx, rec.FormType, "queued, waiting for connectivity")
		fmt.Fprintln(a.out, "Offline: the record will be sent when connectivity returns.")
		return nil
	}

	res, err := a.engine.SyncOne(ctx, rec.FormType, a.deliverFuncs()[rec.FormType])
	if err != nil {
		a.rememberOutcome(ctx, rec.FormType, "queued, sync failed: "+err.Error())
		fmt.Fprintf(a.out, "Sync failed (%v), the record stays queued.\n", err)
		return nil
	}

	msg := fmt.Sprintf("%d delivered, %d pending", res.Delivered, res.Failed())
	a.rememberOutcome(ctx, rec.FormType, msg)
	fmt.Fprintln(a.out, msg)
	return nil
}
