package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn(ctx context.Context) bool
	isLocked() bool
	touch(ctx context.Context)
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	Profile(ctx context.Context) error
	Refresh(ctx context.Context) error
	Unlock(ctx context.Context) error
	LockNow(ctx context.Context) error
	PIN(ctx context.Context, sub string) error
	Biometric(ctx context.Context, sub string) error
	Background(ctx context.Context) error
	Foreground(ctx context.Context) error
}

// whileLocked lists the commands accepted while the app is locked.
var whileLocked = map[string]bool{
	"help": true, "unlock": true, "status": true, "exit": true, "quit": true,
}

// runREPL starts a simple read–eval–print loop for the mbank client.
//
// Every line counts as keyboard activity. While the app is locked only the
// commands in whileLocked are dispatched; everything else asks the user to
// unlock first. The loop exits on EOF, ctx cancellation, "exit" or "quit".
//
// Prompt & Commands
//
//	Always:
//	  - help                     show available commands
//	  - status                   session and lock state
//	  - unlock                   unlock with biometric or PIN
//	  - exit | quit              leave the program
//
//	Unlocked:
//	  - login | logout           sign in / out
//	  - me                       fetch the profile (authenticated request)
//	  - refresh                  force a token refresh
//	  - lock                     lock now
//	  - pin setup|change|remove
//	  - biometric on|off
//	  - bg | fg                  simulate backgrounding the app
//
// Errors returned by command handlers are ignored here; handlers report
// their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func(ctx context.Context) string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("mbank %s > ", statusFn(ctx)))

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, sub := parts[0], ""
		if len(parts) > 1 {
			sub = parts[1]
		}

		a.touch(ctx)
		if a.isLocked() && !whileLocked[cmd] {
			printlnFn("App is locked. Type 'unlock' to continue.")
			continue
		}

		switch cmd {
		case "help":
			switch {
			case a.isLocked():
				printlnFn("Available commands: unlock, status, exit")
			case a.isLoggedIn(ctx):
				printlnFn("Available commands: status, me, refresh, logout, lock, pin, biometric, bg, fg, exit")
			default:
				printlnFn("Available commands: login, status, lock, pin, biometric, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "status":
			_ = a.Status(ctx)

		case "me":
			_ = a.Profile(ctx)

		case "refresh":
			_ = a.Refresh(ctx)

		case "unlock":
			_ = a.Unlock(ctx)

		case "lock":
			_ = a.LockNow(ctx)

		case "pin":
			_ = a.PIN(ctx, sub)

		case "biometric":
			_ = a.Biometric(ctx, sub)

		case "bg":
			_ = a.Background(ctx)

		case "fg":
			_ = a.Foreground(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
