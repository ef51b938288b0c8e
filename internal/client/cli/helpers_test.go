package cli

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/mbank/internal/client/activity"
	"github.com/dmitrijs2005/mbank/internal/client/biometric"
	"github.com/dmitrijs2005/mbank/internal/client/config"
	"github.com/dmitrijs2005/mbank/internal/client/models"
	"github.com/dmitrijs2005/mbank/internal/client/pinlock"
	"github.com/dmitrijs2005/mbank/internal/client/services"
	"github.com/dmitrijs2005/mbank/internal/client/storage"
	"github.com/dmitrijs2005/mbank/internal/client/tokens"
	"github.com/dmitrijs2005/mbank/internal/logging"
	"github.com/stretchr/testify/require"
)

// ------------ fakes ------------

type fakeAuth struct {
	loginUser string
	loginPass string
	loginErr  error

	logoutCalled bool
	logoutErr    error

	authenticated bool
	session       services.Session

	profile    *models.Profile
	profileErr error

	pingErr error
}

func (f *fakeAuth) Login(_ context.Context, user, pass string) error {
	f.loginUser, f.loginPass = user, pass
	if f.loginErr == nil {
		f.authenticated = true
	}
	return f.loginErr
}

func (f *fakeAuth) Logout(context.Context) error {
	f.logoutCalled = true
	f.authenticated = false
	return f.logoutErr
}

func (f *fakeAuth) IsAuthenticated(context.Context) bool { return f.authenticated }

func (f *fakeAuth) Session(context.Context) services.Session {
	s := f.session
	s.Authenticated = f.authenticated
	return s
}

func (f *fakeAuth) Profile(context.Context) (*models.Profile, error) { return f.profile, f.profileErr }

func (f *fakeAuth) Ping(context.Context) error { return f.pingErr }

type fakeSession struct {
	res   *tokens.RefreshResult
	calls int
}

func (f *fakeSession) RefreshTokens(context.Context) *tokens.RefreshResult {
	f.calls++
	return f.res
}

type fakePrompt struct {
	result biometric.Result
	calls  int
}

func (p *fakePrompt) Capabilities(context.Context) (biometric.Capabilities, error) {
	return biometric.Capabilities{HasHardware: true, IsEnrolled: true}, nil
}

func (p *fakePrompt) Authenticate(context.Context, biometric.Options) (biometric.Result, error) {
	p.calls++
	return p.result, nil
}

// ------------ helpers ------------

type testApp struct {
	*App
	auth    *fakeAuth
	session *fakeSession
	pins    *pinlock.Manager
	prompt  *fakePrompt
}

func newTestApp(t *testing.T, input ...string) *testApp {
	t.Helper()

	store, err := storage.Open(context.Background(), t.TempDir())
	require.NoError(t, err)

	var cfg config.Config
	cfg.LoadDefaults()

	mon := activity.NewMonitor(time.Minute)
	prompt := &fakePrompt{}
	pins := pinlock.NewManager(store, prompt, mon, pinlock.Policy{
		MaxAttempts:         3,
		LockoutDuration:     time.Minute,
		BackgroundLockAfter: time.Minute,
	}, logging.NewNop())
	require.NoError(t, pins.Init(context.Background()))

	ta := &testApp{
		auth:    &fakeAuth{},
		session: &fakeSession{res: &tokens.RefreshResult{Success: true}},
		pins:    pins,
		prompt:  prompt,
	}
	ta.App = &App{
		config:   &cfg,
		log:      logging.NewNop(),
		auth:     ta.auth,
		session:  ta.session,
		lock:     pins,
		activity: mon,
		closer:   store,
		reader:   bufio.NewReader(strings.NewReader(strings.Join(input, "\n"))),
		out:      io.Discard,
	}
	t.Cleanup(func() { _ = store.Close() })
	return ta
}

// stubPINs feeds answers to getPIN in order.
func stubPINs(t *testing.T, pins ...string) {
	t.Helper()
	orig := getPIN
	getPIN = func(io.Writer, string) (string, error) {
		require.NotEmpty(t, pins, "unexpected PIN prompt")
		p := pins[0]
		pins = pins[1:]
		return p, nil
	}
	t.Cleanup(func() { getPIN = orig })
}

func stubInputs(t *testing.T, username string, password []byte) {
	t.Helper()
	origST, origGP := getSimpleText, getPassword
	getSimpleText = func(_ *bufio.Reader, _ string, _ io.Writer) (string, error) { return username, nil }
	getPassword = func(_ io.Writer) ([]byte, error) { return password, nil }
	t.Cleanup(func() {
		getSimpleText = origST
		getPassword = origGP
	})
}
