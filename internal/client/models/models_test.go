package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord_AssignsIDAndTimestamp(t *testing.T) {
	r1 := NewRecord(FormObservations, map[string]string{"observedNumbers": "4"})
	r2 := NewRecord(FormObservations, nil)

	require.NotEmpty(t, r1.FormID)
	require.NotEmpty(t, r2.FormID)
	assert.NotEqual(t, r1.FormID, r2.FormID)
	assert.False(t, r1.CreatedAt.IsZero())
	assert.NotNil(t, r2.Fields)
	assert.Equal(t, FormObservations, r1.FormType)
}

func TestRecord_JSONRoundTrip(t *testing.T) {
	r := NewRecord(FormDeerCull, map[string]string{"cullCount": "2"})
	r.AttachmentIDs = []uint64{1, 2, 3}
	r.LocationTrail = []LocationSample{
		{Lat: -41.3, Lon: 174.8, AccuracyMeters: 6.5, SampledAt: time.Now().UTC()},
	}

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var got Record
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, r.FormID, got.FormID)
	assert.Equal(t, r.Fields, got.Fields)
	assert.Equal(t, r.AttachmentIDs, got.AttachmentIDs)
	assert.Len(t, got.LocationTrail, 1)
}

func TestEncodeTrail(t *testing.T) {
	tests := []struct {
		name  string
		trail []LocationSample
		want  string
	}{
		{"empty", nil, ""},
		{
			"single",
			[]LocationSample{{Lat: -41.5, Lon: 174.25}},
			"-41.5,174.25",
		},
		{
			"multiple in order",
			[]LocationSample{
				{Lat: 1, Lon: 2},
				{Lat: 3.5, Lon: -4.75},
			},
			"1,2;3.5,-4.75",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EncodeTrail(tc.trail))
		})
	}
}

func TestFormType_Action(t *testing.T) {
	assert.Equal(t, "site_sign_in", FormSiteSignIn.Action())
	assert.Equal(t, "deer_cull", FormDeerCull.Action())
	assert.Equal(t, "observation", FormObservations.Action())
	assert.Equal(t, "site_sign_out", FormSignOut.Action())
}
