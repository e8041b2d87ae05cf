package cli

import (
	"context"
	"fmt"

	"github.com/ecodata/fieldsync/internal/client/storage"
)

// Login stores the username used to attribute every outbound record. There is
// no password: the endpoint trusts the name, same as the paper form it
// replaced.
func (a *App) Login(ctx context.Context) error {
	username, err := GetSimpleText(a.reader, "Enter your name", a.out)
	if err != nil {
		return err
	}
	if username == "" {
		fmt.Fprintln(a.out, "Name cannot be empty.")
		return nil
	}

	if err := a.kv.Set(ctx, storage.KeyUsername, []byte(username)); err != nil {
		fmt.Fprintf(a.out, "Could not save name: %v\n", err)
		return err
	}

	// A fresh identity invalidates the previous user's sign-in answer.
	st := a.deriver.SignInStatus(ctx, true)
	if st.HasSignedIn {
		fmt.Fprintf(a.out, "Welcome %s, you are signed in at %s.\n", username, st.PropertyName)
	} else {
		fmt.Fprintf(a.out, "Welcome %s, you have not signed in to a site today.\n", username)
	}
	return nil
}

// Logout clears the identity and the cached sign-in answer. Queued records
// stay queued; they were stamped at submit or will be at delivery.
func (a *App) Logout(ctx context.Context) error {
	if err := a.kv.Delete(ctx, storage.KeyUsername); err != nil {
		return err
	}
	if err := a.kv.Delete(ctx, storage.KeySignInStatus); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}
