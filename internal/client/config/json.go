package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/mbank/internal/flagx"
	"github.com/dmitrijs2005/mbank/internal/timex"
)

// EnvConfigFile names the environment variable consulted when no -c/-config
// flag is given.
const EnvConfigFile = "MBANK_CONFIG"

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations use
// timex.Duration so they may be written as "30s" or as integer nanoseconds.
// Absent fields keep the value already in Config.
type JsonConfig struct {
	ServerBaseURL  string         `json:"server_base_url"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	DataDir        string         `json:"data_dir"`
	LogLevel       string         `json:"log_level"`

	RefreshBuffer timex.Duration `json:"refresh_buffer"`

	InactivityTimeout     timex.Duration `json:"inactivity_timeout"`
	ActivityCheckInterval timex.Duration `json:"activity_check_interval"`
	BackgroundLockAfter   timex.Duration `json:"background_lock_after"`

	MaxPINAttempts     int            `json:"max_pin_attempts"`
	LockoutDuration    timex.Duration `json:"lockout_duration"`
	MaxLockoutDuration timex.Duration `json:"max_lockout_duration"`

	Biometric string `json:"biometric"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// The path comes from -c/-config, or from $MBANK_CONFIG when neither flag is
// present. Without a path nothing is loaded. Read or unmarshal errors panic,
// like flag errors do.
func parseJson(cfg *Config) {
	path := flagx.ConfigPath(os.Args[1:], EnvConfigFile)
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}
	jc.apply(cfg)
}

func (jc *JsonConfig) apply(cfg *Config) {
	setString(&cfg.ServerBaseURL, jc.ServerBaseURL)
	setString(&cfg.DataDir, jc.DataDir)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.Biometric, jc.Biometric)

	setDuration(&cfg.RequestTimeout, jc.RequestTimeout)
	setDuration(&cfg.RefreshBuffer, jc.RefreshBuffer)
	setDuration(&cfg.InactivityTimeout, jc.InactivityTimeout)
	setDuration(&cfg.ActivityCheckInterval, jc.ActivityCheckInterval)
	setDuration(&cfg.BackgroundLockAfter, jc.BackgroundLockAfter)
	setDuration(&cfg.LockoutDuration, jc.LockoutDuration)
	setDuration(&cfg.MaxLockoutDuration, jc.MaxLockoutDuration)

	if jc.MaxPINAttempts > 0 {
		cfg.MaxPINAttempts = jc.MaxPINAttempts
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = v.Duration
	}
}
