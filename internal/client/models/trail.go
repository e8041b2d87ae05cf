package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LocationSample is one position fix taken by the tracker.
type LocationSample struct {
	Lat            float64   `json:"lat"`
	Lon            float64   `json:"lon"`
	AccuracyMeters float64   `json:"accuracyMeters"`
	SampledAt      time.Time `json:"sampledAt"`
}

// EncodeTrail renders a location trail in the wire format the spreadsheet
// endpoint expects: "lat1,lon1;lat2,lon2". Accuracy and timestamps are local
// bookkeeping only and are not sent.
func EncodeTrail(trail []LocationSample) string {
	if len(trail) == 0 {
		return ""
	}
	parts := make([]string, 0, len(trail))
	for _, s := range trail {
		parts = append(parts, fmt.Sprintf("%s,%s",
			strconv.FormatFloat(s.Lat, 'f', -1, 64),
			strconv.FormatFloat(s.Lon, 'f', -1, 64)))
	}
	return strings.Join(parts, ";")
}

// PendingLocationUpdate is a location-trail patch for a record that was
// already delivered before tracking produced more samples. A newer update
// for the same form id supersedes the older one, it is never duplicated.
type PendingLocationUpdate struct {
	FormID        string    `json:"formId"`
	LocationTrail string    `json:"locationHistory"`
	QueuedAt      time.Time `json:"queuedAt"`
}
