// Package biometric describes the platform biometric prompt used to unlock the
// app without a PIN, plus two implementations usable outside a phone: one that
// reports no hardware and a terminal confirmation prompt.
package biometric

import (
	"context"
	"errors"
)

// Type is a supported authenticator kind.
type Type string

const (
	TypeFingerprint Type = "fingerprint"
	TypeFace        Type = "face"
	TypeIris        Type = "iris"
)

// ErrorCode classifies a failed Authenticate call.
type ErrorCode string

const (
	ErrUserCancel           ErrorCode = "user_cancel"
	ErrUserFallback         ErrorCode = "user_fallback"
	ErrAuthenticationFailed ErrorCode = "authentication_failed"
	ErrOther                ErrorCode = "other"
)

// ErrNoHardware is returned by prompts that cannot authenticate at all.
var ErrNoHardware = errors.New("biometric hardware not available")

// Capabilities reports what the device supports.
type Capabilities struct {
	HasHardware    bool
	IsEnrolled     bool
	SupportedTypes []Type
}

// Usable is true when a prompt can be shown.
func (c Capabilities) Usable() bool {
	return c.HasHardware && c.IsEnrolled
}

// Options configure one prompt.
type Options struct {
	PromptMessage         string
	CancelLabel           string
	FallbackLabel         string
	DisableDeviceFallback bool
}

// Result is the outcome of a prompt. Error is empty on success.
type Result struct {
	Success bool
	Error   ErrorCode
}

// Prompt is the platform contract.
type Prompt interface {
	Capabilities(ctx context.Context) (Capabilities, error)
	Authenticate(ctx context.Context, opts Options) (Result, error)
}

// Unavailable is a Prompt for devices without biometric hardware.
type Unavailable struct{}

func (Unavailable) Capabilities(context.Context) (Capabilities, error) {
	return Capabilities{}, nil
}

func (Unavailable) Authenticate(context.Context, Options) (Result, error) {
	return Result{Error: ErrOther}, ErrNoHardware
}
