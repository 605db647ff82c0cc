package kv

import (
	"bytes"
	"context"
	"testing"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/cryptox"
	"github.com/stretchr/testify/require"
)

func TestSealedStore_RoundTripAndCiphertextAtRest(t *testing.T) {
	inner := NewSQLiteStore(setupDB(t))
	s := NewSealedStore(inner, []byte("device-secret"))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "auth-token", []byte("abc123")))

	v, ok, err := s.Get(ctx, "auth-token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("abc123"), v)

	raw, ok, err := inner.Get(ctx, "auth-token")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, bytes.Contains(raw, []byte("abc123")), "value must not be stored in clear")

	salt, ok, err := inner.Get(ctx, SaltKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, salt, cryptox.SaltSize)
}

func TestSealedStore_SurvivesNewInstanceWithSameSecret(t *testing.T) {
	inner := NewSQLiteStore(setupDB(t))
	ctx := context.Background()

	require.NoError(t, NewSealedStore(inner, []byte("s1")).MultiSet(ctx, map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}))

	v, ok, err := NewSealedStore(inner, []byte("s1")).Get(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("2"), v)
}

func TestSealedStore_WrongSecretIsCorruptData(t *testing.T) {
	inner := NewSQLiteStore(setupDB(t))
	ctx := context.Background()

	require.NoError(t, NewSealedStore(inner, []byte("right")).Set(ctx, "k", []byte("v")))

	_, _, err := NewSealedStore(inner, []byte("wrong")).Get(ctx, "k")
	require.ErrorIs(t, err, common.ErrCorruptData)
	require.ErrorIs(t, err, cryptox.ErrOpen)
}

func TestSealedStore_KeysAndClearHideSalt(t *testing.T) {
	inner := NewSQLiteStore(setupDB(t))
	s := NewSealedStore(inner, []byte("x"))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "tasks", []byte("[]")))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"tasks"}, keys)

	require.NoError(t, s.Clear(ctx))

	keys, err = s.Keys(ctx)
	require.NoError(t, err)
	require.Empty(t, keys)

	// salt survives Clear so later writes stay readable after restart
	_, ok, err := inner.Get(ctx, SaltKey)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Set(ctx, "tasks", []byte("[1]")))
	v, _, err := NewSealedStore(inner, []byte("x")).Get(ctx, "tasks")
	require.NoError(t, err)
	require.Equal(t, []byte("[1]"), v)
}

func TestSealedStore_AbsentAndRemove(t *testing.T) {
	s := NewSealedStore(NewSQLiteStore(setupDB(t)), []byte("x"))
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Remove(ctx, "k"))
	require.NoError(t, s.MultiRemove(ctx, "k", "other"))

	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}
