package kv

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/cryptox"
)

// SaltKey holds the per-device salt used to derive the sealing key. It is
// stored unsealed in the wrapped store and hidden from Keys.
const SaltKey = "__seal_salt"

// SealedStore encrypts every value before handing it to the wrapped Store.
type SealedStore struct {
	inner  Store
	secret []byte

	mu  sync.Mutex
	key []byte
}

func NewSealedStore(inner Store, secret []byte) *SealedStore {
	return &SealedStore{inner: inner, secret: append([]byte(nil), secret...)}
}

func (s *SealedStore) sealingKey(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		return s.key, nil
	}

	salt, ok, err := s.inner.Get(ctx, SaltKey)
	if err != nil {
		return nil, err
	}
	if !ok || len(salt) == 0 {
		salt = common.GenerateRandByteArray(cryptox.SaltSize)
		if err := s.inner.Set(ctx, SaltKey, salt); err != nil {
			return nil, err
		}
	}

	s.key = cryptox.DeriveKey(s.secret, salt)
	return s.key, nil
}

func (s *SealedStore) seal(ctx context.Context, key string, value []byte) ([]byte, error) {
	k, err := s.sealingKey(ctx)
	if err != nil {
		return nil, err
	}
	sealed, err := cryptox.Seal(value, k)
	if err != nil {
		return nil, fmt.Errorf("failed to seal kv[%s]: %w", key, err)
	}
	return sealed, nil
}

func (s *SealedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	k, err := s.sealingKey(ctx)
	if err != nil {
		return nil, false, err
	}
	plain, err := cryptox.Open(raw, k)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open kv[%s]: %w: %w", key, common.ErrCorruptData, err)
	}
	return plain, true, nil
}

func (s *SealedStore) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := s.seal(ctx, key, value)
	if err != nil {
		return err
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *SealedStore) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

func (s *SealedStore) MultiSet(ctx context.Context, pairs map[string][]byte) error {
	sealed := make(map[string][]byte, len(pairs))
	for k, v := range pairs {
		sv, err := s.seal(ctx, k, v)
		if err != nil {
			return err
		}
		sealed[k] = sv
	}
	return s.inner.MultiSet(ctx, sealed)
}

func (s *SealedStore) MultiRemove(ctx context.Context, keys ...string) error {
	return s.inner.MultiRemove(ctx, keys...)
}

func (s *SealedStore) Keys(ctx context.Context) ([]string, error) {
	all, err := s.inner.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(all))
	for _, k := range all {
		if k != SaltKey {
			out = append(out, k)
		}
	}
	return out, nil
}

// Clear removes every value but keeps the salt, so a cached key stays valid.
func (s *SealedStore) Clear(ctx context.Context) error {
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}
	return s.inner.MultiRemove(ctx, keys...)
}
