package pinlock

import "errors"

var (
	ErrNoPIN                = errors.New("no PIN configured")
	ErrPINExists            = errors.New("PIN already configured")
	ErrInvalidPIN           = errors.New("PIN must be 4 to 6 digits")
	ErrIncorrectPIN         = errors.New("incorrect PIN")
	ErrLockedOut            = errors.New("too many attempts, try again later")
	ErrCancelNotAllowed     = errors.New("app unlock cannot be cancelled")
	ErrBiometricUnavailable = errors.New("biometric authentication not available")
	ErrBiometricDisabled    = errors.New("biometric unlock is disabled")
)
