package client

import (
	"context"

	"github.com/dmitrijs2005/taskkeeper/internal/client/models"
)

type Client interface {
	Login(ctx context.Context, identifier, password string) (models.Credential, error)
	Register(ctx context.Context, req RegisterRequest) (models.Credential, error)
	RequestPasswordReset(ctx context.Context, identifier string) (ResetAccepted, error)
	ResetPassword(ctx context.Context, resetToken, newPassword string) error
	Profile(ctx context.Context) (models.User, error)
	CheckUsername(ctx context.Context, username string) (bool, error)
	Ping(ctx context.Context) error
}

// RegisterRequest is the sign-up payload. An empty Username is derived from
// the local part of Email.
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// ResetAccepted is returned for every password reset request that reached
// the server, whether or not the account exists.
type ResetAccepted struct {
	Accepted bool
	Message  string
}

// TokenSource yields the token to attach to authenticated calls.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() string

func (f TokenSourceFunc) Token() string { return f() }

// SessionExpiredHandler is told which token the server rejected.
type SessionExpiredHandler func(ctx context.Context, rejectedToken string)
