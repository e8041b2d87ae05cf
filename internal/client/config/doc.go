// Package config loads runtime configuration for the fieldsync CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-e string   URL of the spreadsheet-backed form endpoint
//	-d string   data directory for the local databases
//	-i int      online status check interval (seconds)
//	-t int      location tracking interval (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for intervals, so values can be either
// strings like "10m" or integer nanoseconds:
//
//	{
//	  "endpoint_url": "https://example.org/forms",
//	  "data_dir": "/var/lib/fieldsync",
//	  "online_check_interval": "30s",
//	  "tracking_interval": "10m",
//	  "delivery_timeout": "30s",
//	  "gps_accuracy_target_meters": 10,
//	  "gps_acquire_timeout": "180s",
//	  "max_photos": 5,
//	  "max_photo_bytes": 15000000,
//	  "gpsd_addr": "127.0.0.1:2947"
//	}
package config
