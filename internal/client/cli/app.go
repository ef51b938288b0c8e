package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/mbank/internal/client/activity"
	"github.com/dmitrijs2005/mbank/internal/client/biometric"
	"github.com/dmitrijs2005/mbank/internal/client/client"
	"github.com/dmitrijs2005/mbank/internal/client/config"
	"github.com/dmitrijs2005/mbank/internal/client/pinlock"
	"github.com/dmitrijs2005/mbank/internal/client/services"
	"github.com/dmitrijs2005/mbank/internal/client/storage"
	"github.com/dmitrijs2005/mbank/internal/client/tokens"
	"github.com/dmitrijs2005/mbank/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// session is the part of the token manager the terminal needs directly.
type session interface {
	RefreshTokens(ctx context.Context) *tokens.RefreshResult
}

// lockManager is the part of pinlock.Manager the terminal drives.
type lockManager interface {
	Init(ctx context.Context) error
	Status() pinlock.Status
	IsLocked() bool
	Lock(ctx context.Context, reason pinlock.LockReason)
	CheckInactivity(ctx context.Context) bool
	OnBackground()
	OnForeground(ctx context.Context) bool
	Verify(ctx context.Context, pin string) (pinlock.VerifyResult, error)
	UnlockWithBiometric(ctx context.Context) (pinlock.BiometricOutcome, error)
	Cancel(kind pinlock.PromptKind) error
	SetupPIN(ctx context.Context, pin string) error
	ChangePIN(ctx context.Context, current, next string) error
	RemovePIN(ctx context.Context, current string) error
	EnableBiometric(ctx context.Context) error
	DisableBiometric(ctx context.Context) error
}

type App struct {
	config   *config.Config
	log      logging.Logger
	auth     services.AuthService
	session  session
	lock     lockManager
	activity *activity.Monitor
	closer   io.Closer
	Mode     Mode
	reader   *bufio.Reader
	out      io.Writer
}

// NewApp opens the local store and wires the client core: API client, token
// manager, activity monitor, PIN lock and auth service.
func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	store, err := storage.Open(ctx, c.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	api := client.NewHTTPClient(c.ServerBaseURL, c.RequestTimeout, log)
	tm := tokens.NewManager(store, api, log, c.RefreshBuffer)
	mon := activity.NewMonitor(c.InactivityTimeout)
	api.UseAuth(tm, mon)

	reader := bufio.NewReader(os.Stdin)
	prompt := newBiometricPrompt(c.Biometric, reader, os.Stdout)

	lock := pinlock.NewManager(store, prompt, mon, pinlock.Policy{
		MaxAttempts:         c.MaxPINAttempts,
		LockoutDuration:     c.LockoutDuration,
		MaxLockoutDuration:  c.MaxLockoutDuration,
		BackgroundLockAfter: c.BackgroundLockAfter,
	}, log)

	a := &App{
		config:   c,
		log:      log,
		auth:     services.NewAuthService(api, tm, store, log),
		session:  tm,
		lock:     lock,
		activity: mon,
		closer:   store,
		reader:   reader,
		out:      os.Stdout,
	}

	tm.Subscribe(tokens.EventLoginRequired, func(context.Context, tokens.Event) {
		printlnFn("Your session has expired. Please log in again.")
	})
	lock.Subscribe(pinlock.EventLocked, func(_ context.Context, e pinlock.Event) {
		printlnFn(fmt.Sprintf("App locked (%s). Type 'unlock' to continue.", e.Reason))
	})
	lock.Subscribe(pinlock.EventLockoutStarted, func(_ context.Context, e pinlock.Event) {
		printlnFn(fmt.Sprintf("Too many attempts. Try again in %s.", time.Until(e.LockoutUntil).Round(time.Second)))
	})

	return a, nil
}

// newBiometricPrompt picks the biometric collaborator. The terminal prompt
// reads from the REPL's own reader so neither side buffers the other's lines.
func newBiometricPrompt(kind string, in *bufio.Reader, out io.Writer) biometric.Prompt {
	if kind == "terminal" {
		return biometric.NewTerminal(in, out)
	}
	return biometric.Unavailable{}
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		printlnFn(fmt.Sprintf("Switched to %s mode", mode))
	}
}

// Run blocks until the user exits the REPL or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	defer a.closer.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.lock.Init(ctx); err != nil {
		return err
	}

	go a.StartOnlineStatusWatcher(ctx, a.config.ActivityCheckInterval)
	go a.activity.Watch(ctx, a.config.ActivityCheckInterval, func(ctx context.Context) {
		a.lock.CheckInactivity(ctx)
	})

	printlnFn("Welcome to mbank (type 'help' for commands)")
	if a.lock.IsLocked() {
		_ = a.Unlock(ctx)
	}

	runREPL(ctx, a, a.getStatus, a.reader)
	return nil
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	return a.auth.IsAuthenticated(ctx)
}

func (a *App) isLocked() bool {
	return a.lock.IsLocked()
}

// touch evaluates inactivity first, so a user returning after the timeout is
// locked out before the keystroke counts as fresh activity.
func (a *App) touch(ctx context.Context) {
	a.lock.CheckInactivity(ctx)
	a.activity.Record(activity.KindKeyboard)
}

func (a *App) getStatus(ctx context.Context) string {
	s := "guest"
	if sess := a.auth.Session(ctx); sess.Authenticated && sess.Username != "" {
		s = sess.Username
	}
	if a.lock.IsLocked() {
		s += " locked"
	}
	if a.Mode != "" {
		s += " " + string(a.Mode)
	}
	return "(" + s + ")"
}

func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			err := a.auth.Ping(ctx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
