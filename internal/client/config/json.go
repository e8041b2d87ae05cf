package config

import (
	"encoding/json"
	"os"

	"github.com/ecodata/fieldsync/internal/flagx"
	"github.com/ecodata/fieldsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can spell intervals either as strings like "10m" or
// as integer nanoseconds. After parsing, values are copied into the runtime
// Config (which uses time.Duration).
type JsonConfig struct {
	EndpointURL             string          `json:"endpoint_url"`
	DataDir                 string          `json:"data_dir"`
	OnlineCheckInterval     *timex.Duration `json:"online_check_interval"`
	TrackingInterval        *timex.Duration `json:"tracking_interval"`
	DeliveryTimeout         *timex.Duration `json:"delivery_timeout"`
	GPSAccuracyTargetMeters *float64        `json:"gps_accuracy_target_meters"`
	GPSAcquireTimeout       *timex.Duration `json:"gps_acquire_timeout"`
	MaxPhotos               *int            `json:"max_photos"`
	MaxPhotoBytes           *int64          `json:"max_photo_bytes"`
	GPSDAddr                string          `json:"gpsd_addr"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// the -c/-config flags. Absent file path means no JSON is loaded; absent
// fields keep their earlier values. Read or unmarshal errors panic, startup
// cannot proceed on a broken config file.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.EndpointURL != "" {
		cfg.EndpointURL = jc.EndpointURL
	}
	if jc.DataDir != "" {
		cfg.DataDir = jc.DataDir
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = jc.OnlineCheckInterval.Duration
	}
	if jc.TrackingInterval != nil {
		cfg.TrackingInterval = jc.TrackingInterval.Duration
	}
	if jc.DeliveryTimeout != nil {
		cfg.DeliveryTimeout = jc.DeliveryTimeout.Duration
	}
	if jc.GPSAccuracyTargetMeters != nil {
		cfg.GPSAccuracyTargetMeters = *jc.GPSAccuracyTargetMeters
	}
	if jc.GPSAcquireTimeout != nil {
		cfg.GPSAcquireTimeout = jc.GPSAcquireTimeout.Duration
	}
	if jc.MaxPhotos != nil {
		cfg.MaxPhotos = *jc.MaxPhotos
	}
	if jc.MaxPhotoBytes != nil {
		cfg.MaxPhotoBytes = *jc.MaxPhotoBytes
	}
	if jc.GPSDAddr != "" {
		cfg.GPSDAddr = jc.GPSDAddr
	}
}
