package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ecodata/fieldsync/internal/client/models"
)

// SignIn records arrival at a site and starts the location tracking session
// for the visit. The local sign-in cache flips immediately so the rest of the
// app treats the user as signed in even before delivery.
func (a *App) SignIn(ctx context.Context) error {
	st := a.deriver.SignInStatus(ctx, false)
	if st.HasSignedIn {
		fmt.Fprintf(a.out, "Already signed in at %s. Sign out first.\n", st.PropertyName)
		return nil
	}

	property, err := GetSimpleText(a.reader, "Property name", a.out)
	if err != nil {
		return err
	}
	if property == "" {
		fmt.Fprintln(a.out, "Property name cannot be empty.")
		return nil
	}
	activity, err := GetSimpleText(a.reader, "Planned activity", a.out)
	if err != nil {
		return err
	}

	rec := models.NewRecord(models.FormSiteSignIn, map[string]string{
		"propertyName": property,
		"activity":     activity,
	})
	rec.LocationTrail = a.captureTrail(ctx)

	if err := a.submit(ctx, rec); err != nil {
		return err
	}

	err = a.deriver.SetLocal(ctx, &models.SignInStatus{
		HasSignedIn:  true,
		PropertyName: property,
		FetchedAt:    time.Now(),
	})
	if err != nil {
		a.log.Error(ctx, "caching sign-in status", "error", err)
	}

	if err := a.trk.Start(ctx, rec.FormID); err != nil {
		a.log.Error(ctx, "starting tracking", "formId", rec.FormID, "error", err)
		fmt.Fprintln(a.out, "Warning: location tracking could not be started.")
	} else {
		fmt.Fprintln(a.out, "Location tracking started for this visit.")
	}
	return nil
}
