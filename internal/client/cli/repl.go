package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/taskkeeper/internal/client/client"
	"github.com/dmitrijs2005/taskkeeper/internal/common"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	ForgotPassword(ctx context.Context) error
	ResetPassword(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	AddTask(ctx context.Context) error
	List(ctx context.Context) error
	Pending(ctx context.Context) error
	Completed(ctx context.Context) error
	Done(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error
	ClearCompleted(ctx context.Context) error
}

const (
	helpSignedOut = "Available commands: register, login, forgot, reset, exit"
	helpSignedIn  = "Available commands: add, (l)ist, pending, completed, done <id>, edit <id>, rm <id>, clear-completed, whoami, logout, exit"
)

// runREPL starts a simple read–eval–print loop for the taskkeeper CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Task commands and whoami require
// a signed-in session. Handler errors are printed and the loop continues.
// The loop exits at end of input or when the user types "exit" or "quit".
// Commands read their prompts from the same reader.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("tk (%s)> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		err = nil
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpSignedIn)
			} else {
				printlnFn(helpSignedOut)
			}

		case "register":
			err = a.Register(ctx)
		case "login":
			err = a.Login(ctx)
		case "forgot":
			err = a.ForgotPassword(ctx)
		case "reset":
			err = a.ResetPassword(ctx)

		case "logout", "whoami", "add", "l", "list", "pending", "completed", "done", "edit", "rm", "clear-completed":
			if !a.isLoggedIn() {
				printlnFn("Please login first")
				continue
			}
			err = dispatchSignedIn(ctx, a, cmd, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", describeError(err))
		}
	}
}

func dispatchSignedIn(ctx context.Context, a execIface, cmd string, args []string) error {
	switch cmd {
	case "logout":
		return a.Logout(ctx)
	case "whoami":
		return a.WhoAmI(ctx)
	case "add":
		return a.AddTask(ctx)
	case "l", "list":
		return a.List(ctx)
	case "pending":
		return a.Pending(ctx)
	case "completed":
		return a.Completed(ctx)
	case "done":
		return a.Done(ctx, args)
	case "edit":
		return a.Edit(ctx, args)
	case "rm":
		return a.Remove(ctx, args)
	case "clear-completed":
		return a.ClearCompleted(ctx)
	}
	return nil
}

// describeError turns an error into a line for the user.
func describeError(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, client.ErrNetwork):
		return "server unreachable, try again later"
	case errors.Is(err, client.ErrSessionExpired):
		return "your session has expired, please login again"
	case errors.Is(err, client.ErrInvalidCredentials):
		return "invalid username or password"
	case errors.Is(err, client.ErrInvalidOrExpiredToken):
		return "the reset token is invalid or has expired"
	case errors.Is(err, common.ErrNotFound):
		return "no such task"
	case errors.Is(err, common.ErrPersistence):
		return "could not access local storage: " + err.Error()
	case errors.As(err, &apiErr):
		return apiErr.Error()
	default:
		return err.Error()
	}
}
