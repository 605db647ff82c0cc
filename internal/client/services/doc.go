// Package services contains the client application services: the
// SessionManager that owns the authentication state machine and the
// TaskStore that persists the local task list.
//
// Both serialize their mutating operations with an internal mutex so
// overlapping calls are applied one at a time, in the order they acquire it.
package services
