package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ecodata/fieldsync/internal/client/models"
)

// Cull records one deer-cull entry with optional photos of the animal.
func (a *App) Cull(ctx context.Context) error {
	species, err := GetSimpleText(a.reader, "Species (red/fallow/sika/other)", a.out)
	if err != nil {
		return err
	}
	sex, err := GetSimpleText(a.reader, "Sex (male/female/unknown)", a.out)
	if err != nil {
		return err
	}
	age, err := GetSimpleText(a.reader, "Age class (adult/yearling/fawn/unknown)", a.out)
	if err != nil {
		return err
	}
	countText, err := GetSimpleText(a.reader, "Number of animals", a.out)
	if err != nil {
		return err
	}
	count, err := strconv.Atoi(countText)
	if err != nil || count < 1 {
		fmt.Fprintln(a.out, "Number of animals must be a positive number.")
		return nil
	}

	attachments, err := a.attachPhotos(ctx)
	if err != nil {
		return err
	}

	rec := models.NewRecord(models.FormDeerCull, map[string]string{
		"species":  species,
		"sex":      sex,
		"ageClass": age,
		"count":    strconv.Itoa(count),
	})
	rec.AttachmentIDs = attachments
	rec.LocationTrail = a.captureTrail(ctx)

	return a.submit(ctx, rec)
}
