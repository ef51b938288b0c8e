// Package devauth is a small development backend implementing the auth
// contract the client expects: login, refresh in either body shape,
// logout with refresh revocation, a protected profile endpoint and health.
package devauth

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/mbank/internal/common"
	"github.com/joho/godotenv"
)

// Accepted refresh body shapes.
const (
	ShapeBoth  = "both"
	ShapeSnake = "refresh_token"
	ShapeCamel = "refreshToken"
)

const minSecretLen = 32

type Config struct {
	Addr               string
	JWTSecret          string
	GeneratedSecret    bool
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	RateLimitPerMinute int
	RefreshShape       string
	Users              map[string]string
	LogLevel           string
}

// Load reads the configuration from the environment, after loading a .env
// file from the working directory when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:               getEnv("DEVAUTH_ADDR", ":8080"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
		RefreshTokenExpiry: getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 10),
		RefreshShape:       getEnv("REFRESH_SHAPE", ShapeBoth),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	users, err := parseUsers(getEnv("DEVAUTH_USERS", "demo:demo1234"))
	if err != nil {
		return nil, err
	}
	cfg.Users = users

	if cfg.JWTSecret == "" {
		secret, err := common.MakeRandHexString(minSecretLen)
		if err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		cfg.JWTSecret = secret
		cfg.GeneratedSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if len(c.JWTSecret) < minSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLen)
	}
	if c.AccessTokenExpiry <= 0 || c.RefreshTokenExpiry <= 0 {
		return fmt.Errorf("token expiry must be positive")
	}
	if c.AccessTokenExpiry >= c.RefreshTokenExpiry {
		return fmt.Errorf("ACCESS_TOKEN_EXPIRY must be shorter than REFRESH_TOKEN_EXPIRY")
	}
	switch c.RefreshShape {
	case ShapeBoth, ShapeSnake, ShapeCamel:
	default:
		return fmt.Errorf("REFRESH_SHAPE must be one of %s, %s, %s", ShapeBoth, ShapeSnake, ShapeCamel)
	}
	if len(c.Users) == 0 {
		return fmt.Errorf("at least one user is required")
	}
	return nil
}

// parseUsers reads "name:password,name:password".
func parseUsers(s string) (map[string]string, error) {
	users := make(map[string]string)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, password, ok := strings.Cut(item, ":")
		if !ok || name == "" || password == "" {
			return nil, fmt.Errorf("DEVAUTH_USERS entry %q must be name:password", item)
		}
		users[name] = password
	}
	return users, nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}
