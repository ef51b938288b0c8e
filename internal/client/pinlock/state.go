package pinlock

import (
	"fmt"
	"time"
)

type State int

const (
	StateUnlocked State = iota
	StateLocked
	StateCoolingDown
)

func (s State) String() string {
	switch s {
	case StateUnlocked:
		return "unlocked"
	case StateLocked:
		return "locked"
	case StateCoolingDown:
		return "cooling_down"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// LockReason says why the app was locked.
type LockReason string

const (
	ReasonLaunch     LockReason = "launch"
	ReasonInactivity LockReason = "inactivity"
	ReasonBackground LockReason = "background"
	ReasonManual     LockReason = "manual"
	ReasonLockout    LockReason = "lockout"
)

// UnlockMethod says how the app was unlocked.
type UnlockMethod string

const (
	MethodPIN       UnlockMethod = "pin"
	MethodBiometric UnlockMethod = "biometric"
)

// PromptKind distinguishes the blocking app-unlock screen from optional
// re-verification before a sensitive action.
type PromptKind int

const (
	PromptAppUnlock PromptKind = iota
	PromptSensitiveAction
)

// Outcome of a PIN verification.
type Outcome int

const (
	OutcomeUnlocked Outcome = iota
	OutcomeIncorrect
	OutcomeLockedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnlocked:
		return "unlocked"
	case OutcomeIncorrect:
		return "incorrect"
	case OutcomeLockedOut:
		return "locked_out"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// VerifyResult is returned by Verify. RemainingAttempts is meaningful for
// OutcomeIncorrect, LockoutRemaining for OutcomeLockedOut.
type VerifyResult struct {
	Outcome           Outcome
	RemainingAttempts int
	LockoutRemaining  time.Duration
}

// BiometricOutcome of UnlockWithBiometric.
type BiometricOutcome int

const (
	BiometricUnlocked BiometricOutcome = iota
	// BiometricFallback means the user cancelled or asked for the PIN pad.
	BiometricFallback
	BiometricFailed
)

func (o BiometricOutcome) String() string {
	switch o {
	case BiometricUnlocked:
		return "unlocked"
	case BiometricFallback:
		return "fallback"
	case BiometricFailed:
		return "failed"
	}
	return fmt.Sprintf("BiometricOutcome(%d)", int(o))
}

// Status is a point-in-time snapshot for display.
type Status struct {
	State             State
	HasPIN            bool
	BiometricEnabled  bool
	FailedAttempts    int
	RemainingAttempts int
	LockoutRemaining  time.Duration
	LockReason        LockReason
}

type EventKind string

const (
	EventLocked         EventKind = "locked"
	EventUnlocked       EventKind = "unlocked"
	EventLockoutStarted EventKind = "lockoutStarted"
)

type Event struct {
	Kind         EventKind
	Reason       LockReason
	Method       UnlockMethod
	LockoutUntil time.Time
}
