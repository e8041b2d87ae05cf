// Package models defines the record types shared by the queue, sync engine,
// tracker and status layers.
package models

import (
	"time"

	"github.com/google/uuid"
)

// FormType identifies one of the data-collection forms. Each form type owns
// its own pending queue and remote action.
type FormType string

const (
	FormSiteSignIn   FormType = "site-sign-in"
	FormDeerCull     FormType = "deer-cull"
	FormObservations FormType = "observations"
	FormSignOut      FormType = "sign-out"
)

// AllFormTypes lists every queue the sync engine drains.
var AllFormTypes = []FormType{FormSiteSignIn, FormDeerCull, FormObservations, FormSignOut}

// Action is the application-level action name the remote endpoint expects
// for submissions of this form type.
func (f FormType) Action() string {
	switch f {
	case FormSiteSignIn:
		return "site_sign_in"
	case FormDeerCull:
		return "deer_cull"
	case FormObservations:
		return "observation"
	case FormSignOut:
		return "site_sign_out"
	default:
		return string(f)
	}
}

// Record is one user submission awaiting delivery.
//
// A record is created at submit time, enqueued, and attempted by the sync
// engine. On success it is removed from the queue and its attachments are
// deleted from the blob store; on failure it stays queued and is retried on
// the next pass. While a record is in flight the tracker never touches it:
// later location samples go through a PendingLocationUpdate keyed by FormID.
type Record struct {
	FormID        string            `json:"formId"`
	FormType      FormType          `json:"formType"`
	Fields        map[string]string `json:"fields"`
	AttachmentIDs []uint64          `json:"attachmentIds,omitempty"`
	LocationTrail []LocationSample  `json:"locationTrail,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// NewRecord assigns a fresh form id and stamps the creation time.
func NewRecord(formType FormType, fields map[string]string) *Record {
	if fields == nil {
		fields = map[string]string{}
	}
	return &Record{
		FormID:    uuid.NewString(),
		FormType:  formType,
		Fields:    fields,
		CreatedAt: time.Now(),
	}
}
