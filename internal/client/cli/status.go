package cli

import (
	"context"
	"fmt"

	"github.com/ecodata/fieldsync/internal/client/models"
	"github.com/ecodata/fieldsync/internal/client/storage"
)

// Status reports connectivity, the sign-in answer, pending counts, and the
// last delivery outcome per form.
func (a *App) Status(ctx context.Context) error {
	if a.gate.Online() {
		fmt.Fprintln(a.out, "Connectivity: online")
	} else {
		fmt.Fprintln(a.out, "Connectivity: offline")
	}

	st := a.deriver.SignInStatus(ctx, true)
	if st.HasSignedIn {
		fmt.Fprintf(a.out, "Signed in at: %s\n", st.PropertyName)
	} else {
		fmt.Fprintln(a.out, "Not signed in to a site today.")
	}

	if id := a.trk.TrackingFormID(); id != "" {
		fmt.Fprintf(a.out, "Tracking visit: %s\n", id)
	}

	counts, err := a.deriver.PendingCounts(ctx)
	if err != nil {
		return err
	}
	for _, ft := range models.AllFormTypes {
		if counts[ft] == 0 {
			continue
		}
		fmt.Fprintf(a.out, "%s: %d pending", ft, counts[ft])
		if raw, err := a.kv.Get(ctx, storage.LatestStatusKey(ft)); err == nil && len(raw) > 0 {
			fmt.Fprintf(a.out, " (last: %s)", raw)
		}
		fmt.Fprintln(a.out)
	}
	return nil
}
