package cli

import (
	"context"

	"github.com/ecodata/fieldsync/internal/client/models"
)

// Observation collects a free-form field observation with optional photos.
func (a *App) Observation(ctx context.Context) error {
	obsType, err := GetSimpleText(a.reader, "Observation type (pest/weed/habitat/other)", a.out)
	if err != nil {
		return err
	}
	notes, err := GetMultiline(a.reader, "Notes", a.out)
	if err != nil {
		return err
	}

	attachments, err := a.attachPhotos(ctx)
	if err != nil {
		return err
	}

	rec := models.NewRecord(models.FormObservations, map[string]string{
		"observationType": obsType,
		"notes":           notes,
	})
	rec.AttachmentIDs = attachments
	rec.LocationTrail = a.captureTrail(ctx)

	return a.submit(ctx, rec)
}
