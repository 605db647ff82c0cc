package client

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
)

var (
	ErrNetwork               = errors.New("network error")
	ErrServer                = errors.New("server error")
	ErrValidation            = common.ErrValidation
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrConflict              = errors.New("already registered")
	ErrSessionExpired        = errors.New("session expired")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
)

// APIError is a non-2xx response. Kind is one of the package sentinels.
type APIError struct {
	Kind    error
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for f := range e.Fields {
			names = append(names, f)
		}
		sort.Strings(names)
		for _, f := range names {
			fmt.Fprintf(&b, "; %s: %s", f, e.Fields[f])
		}
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Kind }

func networkError(err error) error {
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
