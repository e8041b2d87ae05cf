// Package common defines shared constants and sentinel errors used across
// FieldSync components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrNotFound      = errors.New("not found")
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// Delivery errors. ErrOffline means a sync pass was not attempted at
	// all; the other two classify a single record's failed attempt.
	ErrOffline     = errors.New("device is offline")
	ErrTransport   = errors.New("transport failure")
	ErrApplication = errors.New("rejected by remote endpoint")
)
