package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_LoadMissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "session.yaml"))

	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestFileStore_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.yaml")
	s := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Slot{Token: "tok-file"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	slot, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Slot{Token: "tok-file"}, slot)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// clearing twice is fine
	require.NoError(t, s.Clear(ctx))
}

func TestFileStore_SessionCookieSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	ctx := context.Background()

	require.NoError(t, NewFileStore(path).Save(ctx, Slot{SessionCookie: "sess_abc"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "session_cookie: sess_abc")
	assert.NotContains(t, string(data), "token:")

	slot, err := NewFileStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sess_abc", slot.SessionCookie)
	assert.Empty(t, slot.Token)
}

func TestFileStore_Overwrite(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "session.yaml"))
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Slot{Token: "first", SessionCookie: "sess_1"}))
	require.NoError(t, s.Save(ctx, Slot{Token: "second"}))

	slot, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Slot{Token: "second"}, slot)
}

func TestFileStore_EmptySlotReadsAsMissing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "session.yaml"))
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Slot{}))

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte("token: [unterminated"), 0o600))

	_, err := NewFileStore(path).Load(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "parsing token file")
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, s.Save(ctx, Slot{Token: "tok", SessionCookie: "sess"}))
	slot, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, Slot{Token: "tok", SessionCookie: "sess"}, slot)

	require.NoError(t, s.Clear(ctx))
	_, err = s.Load(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
