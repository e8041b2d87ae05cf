package models

import "time"

// SignInStatus is the locally cached answer to "has this user completed the
// site sign-in". It is derived from the server but kept for offline reads;
// it is advisory and overwritten whenever a fresh server read succeeds or a
// local sign-in/sign-out completes.
type SignInStatus struct {
	HasSignedIn  bool      `json:"hasSignedIn"`
	PropertyName string    `json:"propertyName"`
	FetchedAt    time.Time `json:"fetchedAt"`
}
