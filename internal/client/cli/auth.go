package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mbank/internal/client/client"
	"github.com/dmitrijs2005/mbank/internal/common"
)

// getSimpleText, getPassword and getPIN are indirections used to facilitate
// testing. They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword
var getPIN = GetPIN

// Login prompts for credentials and authenticates against the server. The
// password is wiped before returning.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Login(ctx, userName, string(password)); err != nil {
		switch {
		case errors.Is(err, client.ErrUnauthorized):
			printlnFn("Invalid username or password")
		case errors.Is(err, client.ErrRateLimited):
			printlnFn(fmt.Sprintf("Too many attempts, retry in %s", client.RetryAfter(err)))
		case errors.Is(err, client.ErrUnavailable):
			printlnFn("Server unavailable, try again later")
			a.setMode(ModeOffline)
		default:
			printlnFn("Login unsuccessful:", err.Error())
		}
		return err
	}

	printlnFn("Login successful")
	a.setMode(ModeOnline)
	return nil
}

// Logout revokes the session on the server (best effort) and clears local
// tokens.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		printlnFn("Logout failed:", err.Error())
		return err
	}
	printlnFn("Logged out")
	return nil
}

// Status prints the local session and lock state without touching the
// network.
func (a *App) Status(ctx context.Context) error {
	s := a.auth.Session(ctx)
	l := a.lock.Status()

	if s.Authenticated {
		printlnFn("Session:   signed in as", s.Username)
		if !s.LastLoginAt.IsZero() {
			printlnFn("Last login:", s.LastLoginAt.Format(time.RFC1123))
		}
		if !s.AccessExpiresAt.IsZero() {
			printlnFn("Access token expires in", time.Until(s.AccessExpiresAt).Round(time.Second))
		}
	} else {
		printlnFn("Session:   signed out")
	}

	if !l.HasPIN {
		printlnFn("App lock:  no PIN configured")
		return nil
	}
	printlnFn("App lock: ", l.State.String())
	printlnFn("Biometric:", onOff(l.BiometricEnabled))
	if l.FailedAttempts > 0 {
		printlnFn("Failed PIN attempts:", l.FailedAttempts)
	}
	if l.LockoutRemaining > 0 {
		printlnFn("Locked out for", l.LockoutRemaining.Round(time.Second))
	}
	return nil
}

// Profile fetches /me through the authenticated transport.
func (a *App) Profile(ctx context.Context) error {
	p, err := a.auth.Profile(ctx)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrLoginRequired):
			printlnFn("Please log in first")
		case errors.Is(err, common.ErrNoValidToken):
			printlnFn("Could not renew the session right now, try again later")
		default:
			printlnFn("Request failed:", err.Error())
		}
		return err
	}
	printlnFn(fmt.Sprintf("User %s (%s)", p.Username, p.UserID))
	return nil
}

// Refresh forces a token refresh.
func (a *App) Refresh(ctx context.Context) error {
	res := a.session.RefreshTokens(ctx)
	switch {
	case res.Success:
		printlnFn("Tokens refreshed")
		return nil
	case res.RequiresLogin:
		// the loginRequired subscriber already told the user
		return res.Err
	case res.RetryAfter > 0:
		printlnFn(fmt.Sprintf("Refresh rate limited, retry in %s", res.RetryAfter))
	default:
		printlnFn("Refresh failed:", res.Err)
	}
	return res.Err
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
