package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/client/models"
	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultPlatform = "cli"

	// ResetAcceptedMessage is reported for every reset request so the answer
	// does not reveal whether the account exists.
	ResetAcceptedMessage = "If this account is registered, you will receive a password reset link"
)

const (
	pathLogin          = "/api/auth/login/"
	pathRegister       = "/api/auth/register/"
	pathForgotPassword = "/api/auth/forgot-password/"
	pathResetPassword  = "/api/auth/reset-password/"
	pathCheckUsername  = "/api/auth/check-username/"
	pathProfile        = "/api/profile/"
	pathPing           = "/api/test/"

	maxBodySize = 1 << 20
)

type HTTPClient struct {
	baseURL  string
	http     *http.Client
	timeout  time.Duration
	platform string
	log      logging.Logger

	mu        sync.RWMutex
	tokens    TokenSource
	onExpired SessionExpiredHandler
}

type Option func(*HTTPClient)

func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *HTTPClient) { c.http = h }
}

func WithLogger(l logging.Logger) Option {
	return func(c *HTTPClient) { c.log = l }
}

func WithPlatform(p string) Option {
	return func(c *HTTPClient) { c.platform = p }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *HTTPClient) { c.tokens = ts }
}

func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{},
		timeout:  DefaultTimeout,
		platform: DefaultPlatform,
		log:      logging.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetTokenSource replaces the source consulted by authenticated calls.
func (c *HTTPClient) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// OnSessionExpired registers the handler invoked after a 401 on an
// authenticated call. The handler runs synchronously before the call returns.
func (c *HTTPClient) OnSessionExpired(h SessionExpiredHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpired = h
}

func (c *HTTPClient) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *HTTPClient) expiredHandler() SessionExpiredHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onExpired
}

// request describes one call. statusKinds overrides the default mapping of
// a response status to a sentinel.
type request struct {
	method      string
	path        string
	body        any
	auth        bool
	statusKinds map[int]error
}

func (c *HTTPClient) do(ctx context.Context, r request, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", r.path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return networkError(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.platform != "" {
		req.Header.Set(common.PlatformHeaderName, c.platform)
	}

	var token string
	if r.auth {
		token = c.currentToken()
		if token != "" {
			req.Header.Set(common.AuthorizationHeaderName, common.TokenScheme+" "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug(ctx, "request failed", "method", r.method, "path", r.path, "error", err)
		return networkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return networkError(err)
	}
	c.log.Debug(ctx, "request done", "method", r.method, "path", r.path, "status", resp.StatusCode)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return &APIError{Kind: ErrServer, Status: resp.StatusCode, Message: "malformed response"}
		}
		return nil
	}

	apiErr := parseErrorBody(resp.StatusCode, raw)
	apiErr.Kind = c.kindFor(r, resp.StatusCode)

	if r.auth && resp.StatusCode == http.StatusUnauthorized {
		if h := c.expiredHandler(); h != nil {
			h(context.WithoutCancel(ctx), token)
		}
	}
	return apiErr
}

func (c *HTTPClient) kindFor(r request, status int) error {
	if k, ok := r.statusKinds[status]; ok {
		return k
	}
	switch {
	case status == http.StatusUnauthorized && r.auth:
		return ErrSessionExpired
	case status == http.StatusUnauthorized:
		return ErrInvalidCredentials
	case status == http.StatusConflict:
		return ErrConflict
	case status >= 500:
		return ErrServer
	default:
		return ErrValidation
	}
}

// parseErrorBody understands the shapes the backend uses for errors:
// {"error": "..."}, {"detail": "..."}, {"message": "..."},
// {"non_field_errors": [...]} and {"field": ["..."]}.
func parseErrorBody(status int, raw []byte) *APIError {
	e := &APIError{Status: status}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		e.Message = strings.TrimSpace(string(raw))
		if len(e.Message) > 200 || strings.HasPrefix(e.Message, "<") {
			e.Message = http.StatusText(status)
		}
		return e
	}

	var general []string
	for k, v := range m {
		msg := flattenMessage(v)
		if msg == "" {
			continue
		}
		switch k {
		case "error", "detail", "message", "non_field_errors":
			general = append(general, msg)
		default:
			if e.Fields == nil {
				e.Fields = make(map[string]string)
			}
			e.Fields[k] = msg
		}
	}
	if len(general) > 0 {
		// map order is random; keep messages stable
		sort.Strings(general)
		e.Message = strings.Join(general, "; ")
	}
	return e
}

func flattenMessage(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(v, &list); err == nil {
		return strings.Join(list, " ")
	}
	return ""
}

func (c *HTTPClient) Login(ctx context.Context, identifier, password string) (models.Credential, error) {
	var cred models.Credential
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   pathLogin,
		body:   map[string]string{"username": identifier, "password": password},
		statusKinds: map[int]error{
			http.StatusUnauthorized: ErrInvalidCredentials,
		},
	}, &cred)
	if err != nil {
		return models.Credential{}, err
	}
	if cred.Token == "" {
		return models.Credential{}, &APIError{Kind: ErrServer, Status: http.StatusOK, Message: "response has no token"}
	}
	return cred, nil
}

func (c *HTTPClient) Register(ctx context.Context, r RegisterRequest) (models.Credential, error) {
	if r.Username == "" {
		r.Username, _, _ = strings.Cut(r.Email, "@")
	}
	var cred models.Credential
	if err := c.do(ctx, request{method: http.MethodPost, path: pathRegister, body: r}, &cred); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest && reportsDuplicate(apiErr) {
			apiErr.Kind = ErrConflict
		}
		return models.Credential{}, err
	}
	if cred.Token == "" {
		return models.Credential{}, &APIError{Kind: ErrServer, Status: http.StatusCreated, Message: "response has no token"}
	}
	return cred, nil
}

// duplicateMarkers are the phrases the backend uses when a username or email
// is taken. It answers those with 400, not 409.
var duplicateMarkers = []string{"already exists", "already registered", "already taken", "já existe", "já está cadastrado"}

func reportsDuplicate(e *APIError) bool {
	texts := []string{e.Message}
	for _, v := range e.Fields {
		texts = append(texts, v)
	}
	for _, t := range texts {
		t = strings.ToLower(t)
		for _, m := range duplicateMarkers {
			if strings.Contains(t, m) {
				return true
			}
		}
	}
	return false
}

// RequestPasswordReset reports the same ResetAccepted for every response the
// server gives. Only a transport failure is returned as an error.
func (c *HTTPClient) RequestPasswordReset(ctx context.Context, identifier string) (ResetAccepted, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ResetAccepted{}, common.NewFieldError("identifier", "must not be blank")
	}

	body := map[string]string{"username": identifier}
	if strings.Contains(identifier, "@") {
		body = map[string]string{"email": strings.ToLower(identifier)}
	}

	err := c.do(ctx, request{method: http.MethodPost, path: pathForgotPassword, body: body}, nil)
	if errors.Is(err, ErrNetwork) {
		return ResetAccepted{}, err
	}
	if err != nil {
		c.log.Debug(ctx, "password reset request rejected by server", "error", err)
	}
	return ResetAccepted{Accepted: true, Message: ResetAcceptedMessage}, nil
}

func (c *HTTPClient) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   pathResetPassword,
		body:   map[string]string{"token": resetToken, "password": newPassword},
	}, nil)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest && !hasFieldBesides(apiErr, "token") {
		apiErr.Kind = ErrInvalidOrExpiredToken
	}
	return err
}

func hasFieldBesides(e *APIError, name string) bool {
	for f := range e.Fields {
		if f != name {
			return true
		}
	}
	return false
}

func (c *HTTPClient) Profile(ctx context.Context) (models.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, path: pathProfile, auth: true}, &raw); err != nil {
		return models.User{}, err
	}

	var wrapped struct {
		User *models.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return *wrapped.User, nil
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return models.User{}, &APIError{Kind: ErrServer, Status: http.StatusOK, Message: "malformed profile"}
	}
	return u, nil
}

func (c *HTTPClient) CheckUsername(ctx context.Context, username string) (bool, error) {
	var resp struct {
		Available bool `json:"available"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   pathCheckUsername,
		body:   map[string]string{"username": username},
	}, &resp)
	if err != nil {
		return false, err
	}
	return resp.Available, nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	return c.do(ctx, request{method: http.MethodGet, path: pathPing}, &resp)
}
