// Package common contains the storage key namespace, shared sentinel errors and
// small byte helpers used across the client and the development backend.
package common

// Storage keys. Every key lives under the "mbank." namespace; Sensitive reports
// which of them must be kept in the encrypted store.
const (
	KeyAccessToken      = "mbank.access_token"
	KeyRefreshToken     = "mbank.refresh_token"
	KeyCSRFToken        = "mbank.csrf_token"
	KeyCSRFSecret       = "mbank.csrf_secret"
	KeyPINHash          = "mbank.pin_hash"
	KeyPINSalt          = "mbank.pin_salt"
	KeyPINFailed        = "mbank.pin_failed_attempts"
	KeyPINLockoutUntil  = "mbank.pin_lockout_until"
	KeyBiometricEnabled = "mbank.biometric_enabled"

	KeyLastLoginAt = "mbank.last_login_at"
	KeyUsername    = "mbank.username"
	KeyDeviceID    = "mbank.device_id"
)

// AuthorizationHeader is the header carrying the bearer access token.
const AuthorizationHeader = "Authorization"

var sensitiveKeys = map[string]struct{}{
	KeyAccessToken:      {},
	KeyRefreshToken:     {},
	KeyCSRFToken:        {},
	KeyCSRFSecret:       {},
	KeyPINHash:          {},
	KeyPINSalt:          {},
	KeyPINFailed:        {},
	KeyPINLockoutUntil:  {},
	KeyBiometricEnabled: {},
}

// Sensitive reports whether key must be stored encrypted.
func Sensitive(key string) bool {
	_, ok := sensitiveKeys[key]
	return ok
}
