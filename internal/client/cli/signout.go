package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ecodata/fieldsync/internal/client/models"
	"github.com/ecodata/fieldsync/internal/client/storage"
)

// SignOut ends the site visit: it stops the tracking session, queues a
// sign-out record referencing the visit, and flips the local sign-in cache.
func (a *App) SignOut(ctx context.Context) error {
	st := a.deriver.SignInStatus(ctx, false)
	if !st.HasSignedIn {
		fmt.Fprintln(a.out, "You are not signed in to a site.")
		return nil
	}

	visitID := a.trk.TrackingFormID()
	trail, err := a.trk.Trail(ctx)
	if err != nil {
		a.log.Error(ctx, "reading session trail", "error", err)
	}
	if err := a.trk.Stop(ctx); err != nil {
		a.log.Error(ctx, "stopping tracking", "error", err)
	}
	if err := a.kv.Delete(ctx, storage.KeyLocationHistory); err != nil {
		a.log.Error(ctx, "clearing session trail", "error", err)
	}

	fields := map[string]string{"propertyName": st.PropertyName}
	if visitID != "" {
		fields["signInFormId"] = visitID
	}
	rec := models.NewRecord(models.FormSignOut, fields)
	// The sign-out carries the whole visit's trail; with none recorded it
	// falls back to a single fresh fix.
	rec.LocationTrail = trail
	if len(rec.LocationTrail) == 0 {
		rec.LocationTrail = a.captureTrail(ctx)
	}

	if err := a.submit(ctx, rec); err != nil {
		return err
	}

	err = a.deriver.SetLocal(ctx, &models.SignInStatus{FetchedAt: time.Now()})
	if err != nil {
		a.log.Error(ctx, "caching sign-out status", "error", err)
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}
