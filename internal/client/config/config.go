package config

import "time"

// Config holds runtime settings for the mbank terminal client.
//
// Durations are time.Duration; the JSON loader accepts "30s" style strings.
type Config struct {
	ServerBaseURL  string
	RequestTimeout time.Duration
	DataDir        string
	LogLevel       string

	RefreshBuffer time.Duration

	InactivityTimeout     time.Duration
	ActivityCheckInterval time.Duration
	BackgroundLockAfter   time.Duration

	MaxPINAttempts     int
	LockoutDuration    time.Duration
	MaxLockoutDuration time.Duration

	// Biometric selects the prompt: "terminal" or "none".
	Biometric string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 15 * time.Second
	c.DataDir = ".mbank"
	c.LogLevel = "warn"

	c.RefreshBuffer = 5 * time.Minute

	c.InactivityTimeout = 5 * time.Minute
	c.ActivityCheckInterval = 15 * time.Second
	c.BackgroundLockAfter = 30 * time.Second

	c.MaxPINAttempts = 5
	c.LockoutDuration = 30 * time.Second
	c.MaxLockoutDuration = 30 * time.Minute

	c.Biometric = "terminal"
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
