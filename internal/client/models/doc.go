// Package models defines the client-side domain types: the signed-in User,
// the derived Session and the locally persisted Task.
package models
