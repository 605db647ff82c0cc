package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/taskkeeper/internal/client/client"
	"github.com/dmitrijs2005/taskkeeper/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for the account fields and signs in on success. An empty
// username is derived from the email by the client.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	username, err := getSimpleText(a.reader, "Enter username (empty to use the email name)", a.out)
	if err != nil {
		return err
	}
	if username != "" {
		available, err := a.session.CheckUsername(ctx, username)
		if err != nil {
			a.log.Debug(ctx, "username check failed", "error", err)
		} else if !available {
			return fmt.Errorf("username %q: %w", username, client.ErrConflict)
		}
	}
	firstName, err := getSimpleText(a.reader, "Enter first name", a.out)
	if err != nil {
		return err
	}
	lastName, err := getSimpleText(a.reader, "Enter last name", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.reader, "Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	err = a.session.Register(ctx, client.RegisterRequest{
		Username:  username,
		Email:     email,
		Password:  string(password),
		FirstName: firstName,
		LastName:  lastName,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Welcome, %s!\n", a.getStatus())
	return nil
}

func (a *App) Login(ctx context.Context) error {
	identifier, err := getSimpleText(a.reader, "Enter username or email", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.reader, "Enter password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.session.Login(ctx, identifier, string(password)); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Signed in as %s\n", a.getStatus())
	return nil
}

// Logout always signs out locally; a storage error is still reported.
func (a *App) Logout(ctx context.Context) error {
	return a.session.Logout(ctx)
}

func (a *App) ForgotPassword(ctx context.Context) error {
	identifier, err := getSimpleText(a.reader, "Enter username or email", a.out)
	if err != nil {
		return err
	}
	res, err := a.session.RequestPasswordReset(ctx, identifier)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, res.Message)
	return nil
}

func (a *App) ResetPassword(ctx context.Context) error {
	token, err := getSimpleText(a.reader, "Enter the reset token from the email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, "Enter new password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.session.ResetPassword(ctx, strings.TrimSpace(token), string(password)); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Password changed, you can log in now.")
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	u, err := a.session.RefreshProfile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (username: %s, email: %s, id: %d)\n", u.DisplayName(), u.Username, u.Email, u.ID)
	return nil
}
