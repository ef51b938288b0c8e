package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mbank/internal/client/pinlock"
)

// Unlock runs one round of the app-unlock prompt: biometric first when it is
// enabled, then the PIN pad. An empty PIN cannot dismiss this prompt.
func (a *App) Unlock(ctx context.Context) error {
	if !a.lock.IsLocked() {
		printlnFn("App is not locked")
		return nil
	}

	if a.lock.Status().BiometricEnabled {
		out, err := a.lock.UnlockWithBiometric(ctx)
		switch {
		case err == nil && out == pinlock.BiometricUnlocked:
			printlnFn("Unlocked")
			return nil
		case err != nil:
			a.log.Debug(ctx, "biometric unlock unavailable", "error", err)
		case out == pinlock.BiometricFailed:
			printlnFn("Biometric authentication failed, use your PIN")
		}
	}

	pin, err := getPIN(a.out, "Enter PIN")
	if err != nil {
		return err
	}
	if pin == "" {
		err := a.lock.Cancel(pinlock.PromptAppUnlock)
		if err != nil {
			printlnFn("A PIN is required to unlock the app")
		}
		return err
	}

	return a.verify(ctx, pin)
}

func (a *App) verify(ctx context.Context, pin string) error {
	res, err := a.lock.Verify(ctx, pin)
	if err != nil {
		printlnFn("PIN check failed:", err.Error())
		return err
	}

	switch res.Outcome {
	case pinlock.OutcomeUnlocked:
		printlnFn("Unlocked")
		return nil
	case pinlock.OutcomeIncorrect:
		printlnFn(fmt.Sprintf("Incorrect PIN, %d attempt(s) left", res.RemainingAttempts))
		return pinlock.ErrIncorrectPIN
	default:
		printlnFn(fmt.Sprintf("Locked out, try again in %s", res.LockoutRemaining.Round(time.Second)))
		return pinlock.ErrLockedOut
	}
}

// LockNow locks the app immediately.
func (a *App) LockNow(ctx context.Context) error {
	if !a.lock.Status().HasPIN {
		printlnFn("Set up a PIN first: pin setup")
		return pinlock.ErrNoPIN
	}
	a.lock.Lock(ctx, pinlock.ReasonManual)
	return nil
}

// PIN handles "pin setup|change|remove".
func (a *App) PIN(ctx context.Context, sub string) error {
	var err error
	switch sub {
	case "setup":
		err = a.pinSetup(ctx)
	case "change":
		err = a.pinChange(ctx)
	case "remove":
		err = a.pinRemove(ctx)
	default:
		printlnFn("Usage: pin setup|change|remove")
		return nil
	}

	if err != nil && !errors.Is(err, errCancelled) {
		printlnFn("PIN update failed:", err.Error())
	}
	return err
}

var errCancelled = errors.New("cancelled")

func (a *App) pinSetup(ctx context.Context) error {
	next, err := a.newPIN()
	if err != nil {
		return err
	}
	if err := a.lock.SetupPIN(ctx, next); err != nil {
		return err
	}
	printlnFn("PIN set. The app will lock on launch and after inactivity.")
	return nil
}

func (a *App) pinChange(ctx context.Context) error {
	current, err := a.currentPIN()
	if err != nil {
		return err
	}
	next, err := a.newPIN()
	if err != nil {
		return err
	}
	if err := a.lock.ChangePIN(ctx, current, next); err != nil {
		return err
	}
	printlnFn("PIN changed")
	return nil
}

func (a *App) pinRemove(ctx context.Context) error {
	current, err := a.currentPIN()
	if err != nil {
		return err
	}
	if err := a.lock.RemovePIN(ctx, current); err != nil {
		return err
	}
	printlnFn("PIN removed, app lock disabled")
	return nil
}

// currentPIN asks for the PIN before a sensitive change. An empty answer
// cancels.
func (a *App) currentPIN() (string, error) {
	pin, err := getPIN(a.out, "Current PIN")
	if err != nil {
		return "", err
	}
	if pin == "" {
		if err := a.lock.Cancel(pinlock.PromptSensitiveAction); err != nil {
			return "", err
		}
		printlnFn("Cancelled")
		return "", errCancelled
	}
	return pin, nil
}

func (a *App) newPIN() (string, error) {
	first, err := getPIN(a.out, "New PIN (4-6 digits)")
	if err != nil {
		return "", err
	}
	if !pinlock.ValidPIN(first) {
		return "", pinlock.ErrInvalidPIN
	}
	second, err := getPIN(a.out, "Repeat new PIN")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("PINs do not match")
	}
	return first, nil
}

// Biometric handles "biometric on|off".
func (a *App) Biometric(ctx context.Context, sub string) error {
	var err error
	switch sub {
	case "on":
		if err = a.lock.EnableBiometric(ctx); err == nil {
			printlnFn("Biometric unlock enabled")
		}
	case "off":
		if err = a.lock.DisableBiometric(ctx); err == nil {
			printlnFn("Biometric unlock disabled")
		}
	default:
		printlnFn("Usage: biometric on|off")
		return nil
	}
	if err != nil {
		printlnFn("Biometric:", err.Error())
	}
	return err
}

// Background and Foreground simulate the app leaving and returning to the
// foreground.
func (a *App) Background(ctx context.Context) error {
	a.lock.OnBackground()
	printlnFn("App in background")
	return nil
}

func (a *App) Foreground(ctx context.Context) error {
	a.lock.OnForeground(ctx)
	return nil
}
