package services

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dmitrijs2005/taskkeeper/internal/client/client"
	"github.com/dmitrijs2005/taskkeeper/internal/client/models"
)

// ---- fake api client ----

type fakeClient struct {
	mu sync.Mutex

	LoginRet models.Credential
	LoginErr error

	RegisterRet models.Credential
	RegisterErr error

	ProfileRet models.User
	ProfileErr error
	// ProfileGate, when set, blocks Profile until it is closed.
	ProfileGate chan struct{}

	ResetRet      client.ResetAccepted
	ResetErr      error
	ResetPassErr  error
	CheckRet      bool
	CheckErr      error
	PingErr       error
	Tokens        client.TokenSource
	OnExpired     client.SessionExpiredHandler
	ProfileCalls  int
	ProfileTokens []string
	LastRegister  client.RegisterRequest
	LastIdentity  string
}

var _ client.Client = (*fakeClient)(nil)

func (f *fakeClient) Login(ctx context.Context, identifier, password string) (models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastIdentity = identifier
	return f.LoginRet, f.LoginErr
}

func (f *fakeClient) Register(ctx context.Context, req client.RegisterRequest) (models.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastRegister = req
	return f.RegisterRet, f.RegisterErr
}

func (f *fakeClient) RequestPasswordReset(ctx context.Context, identifier string) (client.ResetAccepted, error) {
	return f.ResetRet, f.ResetErr
}

func (f *fakeClient) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	return f.ResetPassErr
}

// Profile behaves like HTTPClient: a session expiry is reported to the
// registered handler before returning.
func (f *fakeClient) Profile(ctx context.Context) (models.User, error) {
	f.mu.Lock()
	gate := f.ProfileGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	f.ProfileCalls++
	var token string
	if f.Tokens != nil {
		token = f.Tokens.Token()
	}
	f.ProfileTokens = append(f.ProfileTokens, token)
	user, err, onExpired := f.ProfileRet, f.ProfileErr, f.OnExpired
	f.mu.Unlock()

	if errors.Is(err, client.ErrSessionExpired) && onExpired != nil {
		onExpired(ctx, token)
	}
	return user, err
}

func (f *fakeClient) CheckUsername(ctx context.Context, username string) (bool, error) {
	return f.CheckRet, f.CheckErr
}

func (f *fakeClient) Ping(ctx context.Context) error { return f.PingErr }

func (f *fakeClient) profileCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ProfileCalls
}

// ---- in-memory kv store with failure injection ----

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte

	GetErr         error
	SetErr         error
	MultiSetErr    error
	MultiRemoveErr error
	// RemoveThenFail makes MultiRemove delete the keys and still return MultiRemoveErr.
	RemoveThenFail bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	v, ok := m.data[key]
	return append([]byte(nil), v...), ok, nil
}

func (m *memStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memStore) Remove(ctx context.Context, key string) error {
	return m.MultiRemove(ctx, key)
}

func (m *memStore) MultiSet(ctx context.Context, pairs map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MultiSetErr != nil {
		return m.MultiSetErr
	}
	for k, v := range pairs {
		m.data[k] = append([]byte(nil), v...)
	}
	return nil
}

func (m *memStore) MultiRemove(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MultiRemoveErr != nil && !m.RemoveThenFail {
		return m.MultiRemoveErr
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return m.MultiRemoveErr
}

func (m *memStore) Keys(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *memStore) raw(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data[key]...)
}
