package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecodata/fieldsync/internal/common"
)

// Sync drains every queue now instead of waiting for the next recovery event.
func (a *App) Sync(ctx context.Context) error {
	results, err := a.engine.SyncAll(ctx, a.deliverFuncs())
	if errors.Is(err, common.ErrOffline) {
		fmt.Fprintln(a.out, "Offline: nothing was attempted.")
		return nil
	}
	if err != nil {
		fmt.Fprintf(a.out, "Sync finished with errors: %v\n", err)
	}

	for ft, res := range results {
		if res.Delivered == 0 && res.Failed() == 0 {
			continue
		}
		msg := fmt.Sprintf("%d delivered, %d pending", res.Delivered, res.Failed())
		fmt.Fprintf(a.out, "%s: %s\n", ft, msg)
		a.rememberOutcome(ctx, ft, msg)
	}
	return nil
}
