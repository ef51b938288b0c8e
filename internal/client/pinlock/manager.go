// Package pinlock is the app-lock state machine: PIN verification against a
// stored argon2id hash, failed-attempt counting with escalating cooldowns,
// biometric unlock and automatic locking on inactivity or backgrounding.
//
// Without a configured PIN the manager is inert and always reports Unlocked.
package pinlock

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/mbank/internal/client/biometric"
	"github.com/dmitrijs2005/mbank/internal/client/storage"
	"github.com/dmitrijs2005/mbank/internal/common"
	"github.com/dmitrijs2005/mbank/internal/cryptox"
	"github.com/dmitrijs2005/mbank/internal/eventbus"
	"github.com/dmitrijs2005/mbank/internal/logging"
)

// Activity is the read side of the activity monitor plus the reset done on
// every unlock.
type Activity interface {
	IsInactive() bool
	Reset()
}

// Policy holds the lockout and auto-lock thresholds.
type Policy struct {
	MaxAttempts         int
	LockoutDuration     time.Duration
	MaxLockoutDuration  time.Duration
	BackgroundLockAfter time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:         5,
		LockoutDuration:     30 * time.Second,
		MaxLockoutDuration:  30 * time.Minute,
		BackgroundLockAfter: 30 * time.Second,
	}
}

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

// ValidPIN reports whether pin is 4 to 6 ASCII digits.
func ValidPIN(pin string) bool {
	return pinPattern.MatchString(pin)
}

type Manager struct {
	store    storage.Store
	prompt   biometric.Prompt
	activity Activity
	policy   Policy
	log      logging.Logger
	events   *eventbus.Bus[EventKind, Event]
	now      func() time.Time

	mu           sync.Mutex
	hash         []byte
	salt         []byte
	failed       int
	lockoutUntil time.Time
	bioEnabled   bool
	locked       bool
	lockReason   LockReason
	backgroundAt time.Time
	bioFailures  int
}

func NewManager(store storage.Store, prompt biometric.Prompt, activity Activity, policy Policy, log logging.Logger) *Manager {
	if prompt == nil {
		prompt = biometric.Unavailable{}
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultPolicy().MaxAttempts
	}
	if policy.LockoutDuration <= 0 {
		policy.LockoutDuration = DefaultPolicy().LockoutDuration
	}
	if policy.MaxLockoutDuration < policy.LockoutDuration {
		policy.MaxLockoutDuration = policy.LockoutDuration
	}
	log = log.With("component", "pinlock")
	return &Manager{
		store:    store,
		prompt:   prompt,
		activity: activity,
		policy:   policy,
		log:      log,
		events:   eventbus.New[EventKind, Event](log),
		now:      time.Now,
	}
}

func (m *Manager) Subscribe(kind EventKind, fn func(ctx context.Context, e Event)) func() {
	return m.events.Subscribe(kind, fn)
}

// Init loads the persisted PIN state. When a PIN is configured the app starts
// locked.
func (m *Manager) Init(ctx context.Context) error {
	vals, err := m.store.MultiGet(ctx,
		common.KeyPINHash,
		common.KeyPINSalt,
		common.KeyPINFailed,
		common.KeyPINLockoutUntil,
		common.KeyBiometricEnabled,
	)
	if err != nil {
		return fmt.Errorf("load pin state: %w", err)
	}

	hash, err := decodeBytes(vals[common.KeyPINHash])
	if err != nil {
		return fmt.Errorf("load pin state: hash: %w", err)
	}
	salt, err := decodeBytes(vals[common.KeyPINSalt])
	if err != nil {
		return fmt.Errorf("load pin state: salt: %w", err)
	}

	m.mu.Lock()
	m.hash, m.salt = hash, salt
	m.failed = atoiOrZero(vals[common.KeyPINFailed])
	m.lockoutUntil = unixMilliOrZero(vals[common.KeyPINLockoutUntil])
	m.bioEnabled = vals[common.KeyBiometricEnabled] == "true"
	hasPIN := m.hasPINLocked()
	m.mu.Unlock()

	if hasPIN {
		m.Lock(ctx, ReasonLaunch)
	}
	return nil
}

func (m *Manager) HasPIN() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasPINLocked()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Manager) IsLocked() bool {
	return m.State() != StateUnlocked
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Status{
		State:             m.stateLocked(),
		HasPIN:            m.hasPINLocked(),
		BiometricEnabled:  m.bioEnabled,
		FailedAttempts:    m.failed,
		RemainingAttempts: m.remainingLocked(),
	}
	if st.State != StateUnlocked {
		st.LockReason = m.lockReason
	}
	if st.State == StateCoolingDown {
		st.LockoutRemaining = m.lockoutUntil.Sub(m.now())
	}
	return st
}

// Lock forces the locked state. It is a no-op without a PIN or when already
// locked.
func (m *Manager) Lock(ctx context.Context, reason LockReason) {
	m.mu.Lock()
	if !m.hasPINLocked() || m.locked {
		m.mu.Unlock()
		return
	}
	m.locked = true
	m.lockReason = reason
	m.mu.Unlock()

	m.log.Info(ctx, "app locked", "reason", reason)
	m.events.Publish(ctx, EventLocked, Event{Kind: EventLocked, Reason: reason})
}

// CheckInactivity locks the app when the activity monitor reports the user
// idle. It reports whether the app is locked afterwards.
func (m *Manager) CheckInactivity(ctx context.Context) bool {
	if m.activity != nil && m.activity.IsInactive() {
		m.Lock(ctx, ReasonInactivity)
	}
	return m.IsLocked()
}

// OnBackground records when the app left the foreground.
func (m *Manager) OnBackground() {
	m.mu.Lock()
	m.backgroundAt = m.now()
	m.mu.Unlock()
}

// OnForeground locks the app if it stayed in the background longer than the
// policy allows, then evaluates inactivity.
func (m *Manager) OnForeground(ctx context.Context) bool {
	m.mu.Lock()
	since := time.Duration(0)
	if !m.backgroundAt.IsZero() {
		since = m.now().Sub(m.backgroundAt)
	}
	m.backgroundAt = time.Time{}
	m.mu.Unlock()

	if since > m.policy.BackgroundLockAfter {
		m.Lock(ctx, ReasonBackground)
	}
	return m.CheckInactivity(ctx)
}

// Verify checks pin against the stored hash. During a cooldown the attempt is
// rejected without hashing the candidate.
func (m *Manager) Verify(ctx context.Context, pin string) (VerifyResult, error) {
	m.mu.Lock()

	if !m.hasPINLocked() {
		m.mu.Unlock()
		return VerifyResult{}, ErrNoPIN
	}

	now := m.now()
	if m.lockoutUntil.After(now) {
		res := VerifyResult{Outcome: OutcomeLockedOut, LockoutRemaining: m.lockoutUntil.Sub(now)}
		m.mu.Unlock()
		m.log.Debug(ctx, "pin rejected during cooldown", "remaining", res.LockoutRemaining)
		return res, nil
	}

	if cryptox.VerifyPIN([]byte(pin), m.salt, m.hash) {
		if err := m.saveCounters(ctx, 0, time.Time{}); err != nil {
			m.mu.Unlock()
			return VerifyResult{}, err
		}
		m.unlockLocked()
		m.mu.Unlock()

		m.afterUnlock(ctx, MethodPIN)
		return VerifyResult{Outcome: OutcomeUnlocked}, nil
	}

	m.failed++
	var res VerifyResult
	wasLocked := m.locked
	if m.failed >= m.policy.MaxAttempts {
		m.lockoutUntil = now.Add(m.backoff(m.failed))
		m.locked = true
		m.lockReason = ReasonLockout
		res = VerifyResult{Outcome: OutcomeLockedOut, LockoutRemaining: m.lockoutUntil.Sub(now)}
	} else {
		res = VerifyResult{Outcome: OutcomeIncorrect, RemainingAttempts: m.remainingLocked()}
	}
	failed, until := m.failed, m.lockoutUntil
	err := m.saveCounters(ctx, failed, until)
	m.mu.Unlock()

	m.log.Warn(ctx, "incorrect pin", "failed_attempts", failed)
	if res.Outcome == OutcomeLockedOut {
		m.log.Warn(ctx, "pin lockout started", "until", until)
		if !wasLocked {
			m.events.Publish(ctx, EventLocked, Event{Kind: EventLocked, Reason: ReasonLockout})
		}
		m.events.Publish(ctx, EventLockoutStarted, Event{Kind: EventLockoutStarted, Reason: ReasonLockout, LockoutUntil: until})
	}
	return res, err
}

// UnlockWithBiometric shows the platform prompt. Success unlocks exactly like
// a correct PIN, including clearing an active cooldown. Cancel and fallback
// return BiometricFallback; platform errors return BiometricFailed. Neither
// touches the PIN attempt counter.
func (m *Manager) UnlockWithBiometric(ctx context.Context) (BiometricOutcome, error) {
	m.mu.Lock()
	hasPIN, enabled := m.hasPINLocked(), m.bioEnabled
	m.mu.Unlock()

	if !hasPIN {
		return BiometricFailed, ErrNoPIN
	}
	if !enabled {
		return BiometricFailed, ErrBiometricDisabled
	}

	caps, err := m.prompt.Capabilities(ctx)
	if err != nil || !caps.Usable() {
		return BiometricFailed, ErrBiometricUnavailable
	}

	res, err := m.prompt.Authenticate(ctx, biometric.Options{
		PromptMessage: "Unlock mbank",
		CancelLabel:   "Cancel",
		FallbackLabel: "Use PIN",
	})
	if err != nil {
		m.biometricFailed(ctx, string(biometric.ErrOther))
		return BiometricFailed, fmt.Errorf("biometric prompt: %w", err)
	}

	if !res.Success {
		switch res.Error {
		case biometric.ErrUserCancel, biometric.ErrUserFallback:
			m.log.Debug(ctx, "biometric prompt dismissed", "reason", res.Error)
			return BiometricFallback, nil
		default:
			m.biometricFailed(ctx, string(res.Error))
			return BiometricFailed, nil
		}
	}

	m.mu.Lock()
	if err := m.saveCounters(ctx, 0, time.Time{}); err != nil {
		m.mu.Unlock()
		return BiometricFailed, err
	}
	m.unlockLocked()
	m.mu.Unlock()

	m.afterUnlock(ctx, MethodBiometric)
	return BiometricUnlocked, nil
}

// BiometricFailures is the number of failed biometric scans since the last
// unlock. It is kept apart from the PIN counter and never persisted.
func (m *Manager) BiometricFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bioFailures
}

// Cancel reports whether a PIN prompt of the given kind may be dismissed.
// The app-unlock prompt never can be.
func (m *Manager) Cancel(kind PromptKind) error {
	if kind == PromptAppUnlock {
		return ErrCancelNotAllowed
	}
	return nil
}

// SetupPIN configures the first PIN. The app stays unlocked.
func (m *Manager) SetupPIN(ctx context.Context, pin string) error {
	if !ValidPIN(pin) {
		return ErrInvalidPIN
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasPINLocked() {
		return ErrPINExists
	}
	return m.writePINLocked(ctx, pin)
}

// ChangePIN replaces the PIN after verifying the current one. A wrong current
// PIN counts as a failed attempt.
func (m *Manager) ChangePIN(ctx context.Context, current, next string) error {
	if !ValidPIN(next) {
		return ErrInvalidPIN
	}
	if err := m.reverify(ctx, current); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writePINLocked(ctx, next)
}

// RemovePIN verifies the current PIN and deletes all PIN state, which also
// disables biometric unlock.
func (m *Manager) RemovePIN(ctx context.Context, current string) error {
	if err := m.reverify(ctx, current); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	err := m.store.MultiRemove(ctx,
		common.KeyPINHash,
		common.KeyPINSalt,
		common.KeyPINFailed,
		common.KeyPINLockoutUntil,
		common.KeyBiometricEnabled,
	)
	if err != nil {
		return fmt.Errorf("remove pin: %w", err)
	}

	common.WipeByteArray(m.hash)
	m.hash, m.salt = nil, nil
	m.failed, m.lockoutUntil = 0, time.Time{}
	m.bioEnabled, m.locked = false, false
	m.bioFailures = 0
	m.log.Info(ctx, "pin removed")
	return nil
}

func (m *Manager) EnableBiometric(ctx context.Context) error {
	if !m.HasPIN() {
		return ErrNoPIN
	}
	caps, err := m.prompt.Capabilities(ctx)
	if err != nil || !caps.Usable() {
		return ErrBiometricUnavailable
	}
	return m.setBiometric(ctx, true)
}

func (m *Manager) DisableBiometric(ctx context.Context) error {
	return m.setBiometric(ctx, false)
}

func (m *Manager) setBiometric(ctx context.Context, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(ctx, common.KeyBiometricEnabled, strconv.FormatBool(on)); err != nil {
		return fmt.Errorf("save biometric flag: %w", err)
	}
	m.bioEnabled = on
	return nil
}

func (m *Manager) reverify(ctx context.Context, pin string) error {
	res, err := m.Verify(ctx, pin)
	if err != nil {
		return err
	}
	switch res.Outcome {
	case OutcomeIncorrect:
		return ErrIncorrectPIN
	case OutcomeLockedOut:
		return ErrLockedOut
	}
	return nil
}

func (m *Manager) writePINLocked(ctx context.Context, pin string) error {
	salt := cryptox.NewSalt()
	hash := cryptox.HashPIN([]byte(pin), salt)

	err := m.store.MultiSet(ctx, map[string]string{
		common.KeyPINHash:         encodeBytes(hash),
		common.KeyPINSalt:         encodeBytes(salt),
		common.KeyPINFailed:       "0",
		common.KeyPINLockoutUntil: "0",
	})
	if err != nil {
		return fmt.Errorf("save pin: %w", err)
	}

	common.WipeByteArray(m.hash)
	m.hash, m.salt = hash, salt
	m.failed, m.lockoutUntil = 0, time.Time{}
	return nil
}

// saveCounters persists the attempt counter and lockout deadline together.
// Caller holds m.mu.
func (m *Manager) saveCounters(ctx context.Context, failed int, until time.Time) error {
	lockout := "0"
	if !until.IsZero() {
		lockout = strconv.FormatInt(until.UnixMilli(), 10)
	}
	err := m.store.MultiSet(ctx, map[string]string{
		common.KeyPINFailed:       strconv.Itoa(failed),
		common.KeyPINLockoutUntil: lockout,
	})
	if err != nil {
		return fmt.Errorf("save pin attempts: %w", err)
	}
	return nil
}

func (m *Manager) unlockLocked() {
	m.failed = 0
	m.lockoutUntil = time.Time{}
	m.bioFailures = 0
	m.locked = false
	m.lockReason = ""
}

func (m *Manager) afterUnlock(ctx context.Context, method UnlockMethod) {
	if m.activity != nil {
		m.activity.Reset()
	}
	m.log.Info(ctx, "app unlocked", "method", method)
	m.events.Publish(ctx, EventUnlocked, Event{Kind: EventUnlocked, Method: method})
}

func (m *Manager) biometricFailed(ctx context.Context, code string) {
	m.mu.Lock()
	m.bioFailures++
	n := m.bioFailures
	m.mu.Unlock()
	m.log.Warn(ctx, "biometric authentication failed", "code", code, "failures", n)
}

// backoff doubles LockoutDuration for every failure past MaxAttempts, capped
// at MaxLockoutDuration.
func (m *Manager) backoff(failed int) time.Duration {
	d := m.policy.LockoutDuration
	for i := m.policy.MaxAttempts; i < failed && d < m.policy.MaxLockoutDuration; i++ {
		d *= 2
	}
	return min(d, m.policy.MaxLockoutDuration)
}

func (m *Manager) hasPINLocked() bool {
	return len(m.hash) > 0 && len(m.salt) > 0
}

func (m *Manager) stateLocked() State {
	if !m.hasPINLocked() || !m.locked {
		return StateUnlocked
	}
	if m.lockoutUntil.After(m.now()) {
		return StateCoolingDown
	}
	return StateLocked
}

func (m *Manager) remainingLocked() int {
	return max(m.policy.MaxAttempts-m.failed, 0)
}

func encodeBytes(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decodeBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func unixMilliOrZero(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
