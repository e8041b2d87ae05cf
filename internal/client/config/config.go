package config

import "time"

// Config holds runtime settings for the fieldsync CLI.
type Config struct {
	// EndpointURL is the spreadsheet-backed form endpoint all submissions
	// go to.
	EndpointURL string
	// DataDir holds the record database and the photo store.
	DataDir string
	// OnlineCheckInterval is how often reachability is probed.
	OnlineCheckInterval time.Duration
	// TrackingInterval is how often the tracker samples the position
	// during a site visit.
	TrackingInterval time.Duration
	// DeliveryTimeout bounds a single delivery attempt.
	DeliveryTimeout time.Duration
	// GPSAccuracyTargetMeters is the fix accuracy a submission waits for.
	GPSAccuracyTargetMeters float64
	// GPSAcquireTimeout is how long a submission waits for that accuracy
	// before settling for the best fix seen.
	GPSAcquireTimeout time.Duration
	// MaxPhotos caps attachments per record.
	MaxPhotos int
	// MaxPhotoBytes caps a single attachment's size.
	MaxPhotoBytes int64
	// GPSDAddr is the gpsd daemon the position provider connects to.
	GPSDAddr string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.EndpointURL = "http://127.0.0.1:8080"
	c.DataDir = "./fieldsync-data"
	c.OnlineCheckInterval = 30 * time.Second
	c.TrackingInterval = 10 * time.Minute
	c.DeliveryTimeout = 30 * time.Second
	c.GPSAccuracyTargetMeters = 10
	c.GPSAcquireTimeout = 180 * time.Second
	c.MaxPhotos = 5
	c.MaxPhotoBytes = 15_000_000
	c.GPSDAddr = "127.0.0.1:2947"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
