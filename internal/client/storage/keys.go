package storage

import (
	"strings"

	"github.com/ecodata/fieldsync/internal/client/models"
)

// Well-known keys. Kept in one place so the logout/cleanup path can name
// everything it removes.
const (
	KeySignInStatus           = "site_sign_in_status"
	KeyTrackingFormID         = "current_tracking_form_id"
	KeyLocationHistory        = "location_history"
	KeyPendingLocationUpdates = "pending_location_updates"
	KeyUsername               = "username"
)

// QueueKey is the key holding the pending-submission queue for a form type,
// e.g. "site_sign_in_responses".
func QueueKey(formType models.FormType) string {
	return strings.ReplaceAll(string(formType), "-", "_") + "_responses"
}

// LatestStatusKey holds the last user-facing status message for a form type
// so it survives restarts.
func LatestStatusKey(formType models.FormType) string {
	return strings.ReplaceAll(string(formType), "-", "_") + "_latest_status"
}
