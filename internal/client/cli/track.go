package cli

import (
	"context"
	"fmt"
)

// Track inspects or controls the tracking session by hand. "track" shows the
// state, "track stop" ends the session without signing out, "track start"
// resumes a session whose marker is still persisted (e.g. after an answered
// "are you sure" that stopped it).
func (a *App) Track(ctx context.Context, args []string) error {
	if len(args) == 0 {
		if id := a.trk.TrackingFormID(); id != "" {
			trail, err := a.trk.Trail(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Tracking visit %s, %d samples so far.\n", id, len(trail))
		} else {
			fmt.Fprintln(a.out, "Not tracking. Tracking starts with signin.")
		}
		return nil
	}

	switch args[0] {
	case "stop":
		if err := a.trk.Stop(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Tracking stopped.")
	case "start":
		if err := a.trk.Resume(ctx); err != nil {
			return err
		}
		if id := a.trk.TrackingFormID(); id != "" {
			fmt.Fprintf(a.out, "Tracking visit %s.\n", id)
		} else {
			fmt.Fprintln(a.out, "No visit to resume. Tracking starts with signin.")
		}
	default:
		fmt.Fprintln(a.out, "Usage: track [start|stop]")
	}
	return nil
}
