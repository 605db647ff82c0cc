// Package client talks to the taskkeeper backend.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface):
//     Login, Register, RequestPasswordReset, ResetPassword, Profile,
//     CheckUsername and Ping.
//  2. A REST/JSON implementation (see HTTPClient) that bounds every request
//     with a timeout, attaches the current token from a TokenSource and maps
//     HTTP statuses to sentinel errors.
//
// # Error Handling
//
// Every failure matches exactly one of ErrNetwork, ErrServer, ErrValidation,
// ErrInvalidCredentials, ErrConflict, ErrSessionExpired or
// ErrInvalidOrExpiredToken with errors.Is. Server supplied details are
// available through errors.As with *APIError.
//
// # Session expiry
//
// A 401 on an authenticated call is returned as ErrSessionExpired and the
// handler registered with OnSessionExpired is invoked with the rejected token.
// The client never reads or writes local storage.
package client
