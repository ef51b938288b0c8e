// Package cli provides the interactive mbank terminal client.
//
// It wires configuration, the encrypted local store, the API client and the
// session-security core (token manager, PIN lock, activity monitor) behind a
// small REPL that stands in for the mobile UI.
//
// Key features:
//   - Login / Logout / Status / profile fetch
//   - Forced token refresh
//   - PIN setup, change and removal; biometric toggle
//   - Launch lock, inactivity auto-lock and background lock
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
