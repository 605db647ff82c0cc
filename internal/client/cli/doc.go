// Package cli provides the interactive taskkeeper command-line client.
//
// It wires configuration, the local key-value store, the API client and the
// two services, then runs a REPL. Startup resolves the stored session before
// the first prompt; the prompt shows who is signed in.
//
// Key features:
//   - register / login / logout, password reset
//   - add, list, pending, completed, done, edit, rm, clear-completed
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
