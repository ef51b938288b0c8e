// Package config loads runtime configuration for the mbank terminal client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with -c / -config, or $MBANK_CONFIG.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   backend base URL
//	-i int      inactivity timeout (seconds)
//	-d string   data directory
//	-l string   log level
//
// # JSON schema
//
// Durations may be strings like "30s" or integer nanoseconds. Omitted fields
// keep their defaults:
//
//	{
//	  "server_base_url": "http://127.0.0.1:8080",
//	  "request_timeout": "15s",
//	  "data_dir": ".mbank",
//	  "log_level": "warn",
//	  "refresh_buffer": "5m",
//	  "inactivity_timeout": "5m",
//	  "activity_check_interval": "15s",
//	  "background_lock_after": "30s",
//	  "max_pin_attempts": 5,
//	  "lockout_duration": "30s",
//	  "max_lockout_duration": "30m",
//	  "biometric": "terminal"
//	}
package config
