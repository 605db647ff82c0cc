package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/client/client"
	"github.com/dmitrijs2005/taskkeeper/internal/client/models"
	"github.com/dmitrijs2005/taskkeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/logging"
)

// Storage keys owned by the SessionManager.
const (
	KeyAuthToken = "auth-token"
	KeyAuthUser  = "auth-user"
)

var ErrNotAuthenticated = errors.New("not authenticated")

// SessionManager owns the authentication state machine
// Loading -> Authenticated | Unauthenticated.
//
// Transitions (storage writes followed by publication) are serialized by
// opMu. Network calls run outside it; a generation counter lets a slow call
// notice that a later transition superseded it. Subscribers are invoked
// synchronously while opMu is held, so they may read Current or Token but
// must not call the mutating methods.
type SessionManager struct {
	api   client.Client
	store kv.Store
	log   logging.Logger
	now   func() time.Time

	opMu sync.Mutex

	stateMu   sync.RWMutex
	state     models.Session
	candidate string
	gen       uint64

	subMu   sync.Mutex
	subs    map[int]func(models.Session)
	nextSub int
}

type SessionOption func(*SessionManager)

// WithSessionClock sets the clock used to check token expiry.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(m *SessionManager) { m.now = now }
}

func NewSessionManager(api client.Client, store kv.Store, log logging.Logger, opts ...SessionOption) *SessionManager {
	if log == nil {
		log = logging.Nop()
	}
	m := &SessionManager{
		api:   api,
		store: store,
		log:   log.With("component", "session"),
		now:   time.Now,
		state: models.Session{Status: models.SessionLoading},
		subs:  make(map[int]func(models.Session)),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Current returns a snapshot of the session.
func (m *SessionManager) Current() models.Session {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return copySession(m.state)
}

// Token implements client.TokenSource. While Loading it returns the stored
// token being validated.
func (m *SessionManager) Token() string {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	switch m.state.Status {
	case models.SessionLoading:
		return m.candidate
	case models.SessionAuthenticated:
		return m.state.Token
	default:
		return ""
	}
}

// Subscribe registers fn for every published transition and returns a
// function that removes it.
func (m *SessionManager) Subscribe(fn func(models.Session)) (unsubscribe func()) {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

func copySession(s models.Session) models.Session {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func (m *SessionManager) generation() uint64 {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.gen
}

// publish must be called with opMu held.
func (m *SessionManager) publish(s models.Session) {
	m.stateMu.Lock()
	m.state = copySession(s)
	m.candidate = ""
	m.gen++
	m.stateMu.Unlock()

	m.subMu.Lock()
	fns := make([]func(models.Session), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.subMu.Unlock()

	for _, fn := range fns {
		fn(copySession(s))
	}
}

func (m *SessionManager) publishAuthenticated(token string, user models.User) {
	m.publish(models.Session{Status: models.SessionAuthenticated, Token: token, User: &user})
	m.log.Info(context.Background(), "session authenticated", "user_id", user.ID)
}

func (m *SessionManager) publishUnauthenticated(reason string) {
	m.publish(models.Session{Status: models.SessionUnauthenticated})
	m.log.Info(context.Background(), "session cleared", "reason", reason)
}

func (m *SessionManager) loadCredential(ctx context.Context) (string, *models.User, error) {
	rawToken, ok, err := m.store.Get(ctx, KeyAuthToken)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", KeyAuthToken, err)
	}
	if !ok || len(rawToken) == 0 {
		return "", nil, nil
	}

	rawUser, ok, err := m.store.Get(ctx, KeyAuthUser)
	if err != nil || !ok {
		// user entry is optional once the server has confirmed the token
		return string(rawToken), nil, nil
	}
	var u models.User
	if err := json.Unmarshal(rawUser, &u); err != nil {
		m.log.Warn(ctx, "stored user unreadable", "error", fmt.Errorf("%w: %w", common.ErrCorruptData, err))
		return string(rawToken), nil, nil
	}
	return string(rawToken), &u, nil
}

// clearStorage removes both credential entries, logging instead of failing.
func (m *SessionManager) clearStorage(ctx context.Context) {
	if err := m.store.MultiRemove(context.WithoutCancel(ctx), KeyAuthToken, KeyAuthUser); err != nil {
		m.log.Warn(ctx, "failed to clear stored credentials", "error", err)
	}
}

// Start resolves the Loading state. A stored token is kept only if the
// server accepts it; any failure ends in Unauthenticated with the stored
// entries removed. Start returns an error only when ctx is done; if that
// happens during validation the session stays Loading and storage is untouched.
func (m *SessionManager) Start(ctx context.Context) error {
	m.opMu.Lock()
	if m.Current().Status != models.SessionLoading {
		m.opMu.Unlock()
		return nil
	}

	token, stored, err := m.loadCredential(ctx)
	if err != nil {
		m.log.Warn(ctx, "stored credentials unreadable", "error", err)
		m.clearStorage(ctx)
		m.publishUnauthenticated("storage")
		m.opMu.Unlock()
		return ctx.Err()
	}
	if token == "" {
		m.clearStorage(ctx)
		m.publishUnauthenticated("no token")
		m.opMu.Unlock()
		return ctx.Err()
	}
	if tokenExpired(token, m.now()) {
		m.clearStorage(ctx)
		m.publishUnauthenticated("token expired")
		m.opMu.Unlock()
		return ctx.Err()
	}

	m.stateMu.Lock()
	m.candidate = token
	gen := m.gen
	m.stateMu.Unlock()
	m.opMu.Unlock()

	user, err := m.api.Profile(ctx)

	m.opMu.Lock()
	defer m.opMu.Unlock()

	if m.generation() != gen {
		// a login or logout finished while the token was being validated
		return ctx.Err()
	}

	if err != nil {
		if ctx.Err() != nil {
			// still Loading; a later Start validates the token again
			m.stateMu.Lock()
			m.candidate = ""
			m.stateMu.Unlock()
			return ctx.Err()
		}
		m.log.Info(ctx, "stored token rejected", "error", err)
		m.clearStorage(ctx)
		m.publishUnauthenticated("validation failed")
		return nil
	}

	if user.ID == 0 && stored != nil {
		user = *stored
	}
	if raw, err := json.Marshal(user); err == nil {
		if err := m.store.Set(ctx, KeyAuthUser, raw); err != nil {
			m.log.Warn(ctx, "failed to refresh stored user", "error", err)
		}
	}
	m.publishAuthenticated(token, user)
	return nil
}

// establish persists cred and publishes Authenticated. Nothing is published
// unless both entries were written; on failure both storage and memory keep
// the session that was active before.
func (m *SessionManager) establish(ctx context.Context, cred models.Credential) error {
	rawUser, err := json.Marshal(cred.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	err = m.store.MultiSet(ctx, map[string][]byte{
		KeyAuthToken: []byte(cred.Token),
		KeyAuthUser:  rawUser,
	})
	if err != nil {
		// MultiSet is all-or-nothing: the previous entries, if any, are intact.
		return fmt.Errorf("save credentials: %w: %w", common.ErrPersistence, err)
	}

	m.publishAuthenticated(cred.Token, cred.User)
	return nil
}

func (m *SessionManager) Login(ctx context.Context, identifier, password string) error {
	cred, err := m.api.Login(ctx, identifier, password)
	if err != nil {
		return err
	}
	return m.establish(ctx, cred)
}

// Register creates the account and signs in with the returned credential.
func (m *SessionManager) Register(ctx context.Context, req client.RegisterRequest) error {
	cred, err := m.api.Register(ctx, req)
	if err != nil {
		return err
	}
	return m.establish(ctx, cred)
}

// Logout always leaves the session Unauthenticated. A storage failure is
// returned but does not keep the session alive.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	return m.logoutLocked(ctx, "logout")
}

func (m *SessionManager) logoutLocked(ctx context.Context, reason string) error {
	err := m.store.MultiRemove(ctx, KeyAuthToken, KeyAuthUser)
	m.publishUnauthenticated(reason)
	if err != nil {
		m.log.Warn(ctx, "failed to remove stored credentials", "error", err)
		return fmt.Errorf("remove credentials: %w: %w", common.ErrPersistence, err)
	}
	return nil
}

// HandleSessionExpired signs out when rejectedToken is the token currently
// published. It is a no-op while Loading and for tokens already replaced.
func (m *SessionManager) HandleSessionExpired(ctx context.Context, rejectedToken string) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	s := m.Current()
	if s.Status != models.SessionAuthenticated || s.Token != rejectedToken {
		m.log.Debug(ctx, "ignoring expiry of inactive token", "status", string(s.Status))
		return
	}
	if err := m.logoutLocked(ctx, "session expired"); err != nil {
		m.log.Error(ctx, "forced logout left stored credentials", "error", err)
	}
}

// RefreshProfile fetches the signed-in user and updates the session.
func (m *SessionManager) RefreshProfile(ctx context.Context) (models.User, error) {
	s := m.Current()
	if !s.IsAuthenticated() {
		return models.User{}, ErrNotAuthenticated
	}
	gen := m.generation()

	user, err := m.api.Profile(ctx)
	if errors.Is(err, client.ErrSessionExpired) {
		m.HandleSessionExpired(ctx, s.Token)
		return models.User{}, err
	}
	if err != nil {
		return models.User{}, err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()
	if m.generation() != gen {
		return user, nil
	}
	if raw, err := json.Marshal(user); err == nil {
		if err := m.store.Set(ctx, KeyAuthUser, raw); err != nil {
			m.log.Warn(ctx, "failed to store refreshed user", "error", err)
		}
	}
	m.publish(models.Session{Status: models.SessionAuthenticated, Token: s.Token, User: &user})
	return user, nil
}

func (m *SessionManager) RequestPasswordReset(ctx context.Context, identifier string) (client.ResetAccepted, error) {
	return m.api.RequestPasswordReset(ctx, identifier)
}

func (m *SessionManager) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	return m.api.ResetPassword(ctx, resetToken, newPassword)
}

func (m *SessionManager) CheckUsername(ctx context.Context, username string) (bool, error) {
	return m.api.CheckUsername(ctx, username)
}
