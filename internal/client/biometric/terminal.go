package biometric

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Terminal simulates a fingerprint sensor with a y/n/p confirmation on a
// terminal: "y" succeeds, "n" fails, "p" asks for the PIN instead and an empty
// line cancels.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal reads answers from in. Passing a *bufio.Reader shares it with
// the caller instead of adding a second buffer over the same input.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

func (t *Terminal) Capabilities(context.Context) (Capabilities, error) {
	return Capabilities{HasHardware: true, IsEnrolled: true, SupportedTypes: []Type{TypeFingerprint}}, nil
}

func (t *Terminal) Authenticate(ctx context.Context, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{Error: ErrOther}, err
	}

	msg := opts.PromptMessage
	if msg == "" {
		msg = "Confirm your identity"
	}
	hint := "[y]es / [n]o / [enter] cancel"
	if !opts.DisableDeviceFallback {
		hint = "[y]es / [n]o / [p]in / [enter] cancel"
	}
	if _, err := fmt.Fprintf(t.out, "%s %s: ", msg, hint); err != nil {
		return Result{Error: ErrOther}, err
	}

	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return Result{Error: ErrUserCancel}, nil
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return Result{Success: true}, nil
	case "n", "no":
		return Result{Error: ErrAuthenticationFailed}, nil
	case "p", "pin":
		if opts.DisableDeviceFallback {
			return Result{Error: ErrAuthenticationFailed}, nil
		}
		return Result{Error: ErrUserFallback}, nil
	case "":
		return Result{Error: ErrUserCancel}, nil
	default:
		return Result{Error: ErrOther}, nil
	}
}
