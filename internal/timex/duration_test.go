package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Duration
		wantErr bool
	}{
		{"string form", `"10m"`, 10 * time.Minute, false},
		{"seconds string", `"3s"`, 3 * time.Second, false},
		{"integer nanoseconds", `600000000000`, 10 * time.Minute, false},
		{"bad string", `"never"`, 0, true},
		{"bad type", `true`, 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tc.input), &d)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, d.Duration)
		})
	}
}

func TestDuration_MarshalJSON_RoundTrip(t *testing.T) {
	d := Duration{Duration: 90 * time.Second}
	b, err := json.Marshal(d)
	require.NoError(t, err)

	var got Duration
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, d.Duration, got.Duration)
}
