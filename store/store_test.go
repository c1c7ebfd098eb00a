package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	file, err := NewFile(t.TempDir(), testLogger())
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rds, err := NewRedis(ctx, "redis://"+mr.Addr(), testLogger())
	require.NoError(t, err)

	lite, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "saves.db"), testLogger())
	require.NoError(t, err)

	all := map[string]Store{"file": file, "redis": rds, "sqlite": lite}
	t.Cleanup(func() {
		for _, s := range all {
			s.Close()
		}
	})
	return all
}

func TestStore_SaveLoadListDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			slots, err := s.List(ctx, "Test Game")
			require.NoError(t, err)
			assert.Empty(t, slots)

			require.NoError(t, s.Save(ctx, "Test Game", "beta", []byte(`{"n":1}`)))
			require.NoError(t, s.Save(ctx, "Test Game", "alpha", []byte(`{"n":2}`)))
			require.NoError(t, s.Save(ctx, "Other Game", "alpha", []byte(`{"n":3}`)))

			data, err := s.Load(ctx, "Test Game", "beta")
			require.NoError(t, err)
			assert.JSONEq(t, `{"n":1}`, string(data))

			slots, err = s.List(ctx, "Test Game")
			require.NoError(t, err)
			assert.Equal(t, []string{"alpha", "beta"}, slots)

			require.NoError(t, s.Delete(ctx, "Test Game", "beta"))
			_, err = s.Load(ctx, "Test Game", "beta")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, s.Delete(ctx, "Test Game", "beta"), ErrNotFound)

			slots, err = s.List(ctx, "Test Game")
			require.NoError(t, err)
			assert.Equal(t, []string{"alpha"}, slots)

			data, err = s.Load(ctx, "Other Game", "alpha")
			require.NoError(t, err)
			assert.JSONEq(t, `{"n":3}`, string(data))
		})
	}
}

func TestStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, "g", "slot", []byte("first")))
			require.NoError(t, s.Save(ctx, "g", "slot", []byte("second")))

			data, err := s.Load(ctx, "g", "slot")
			require.NoError(t, err)
			assert.Equal(t, "second", string(data))

			slots, err := s.List(ctx, "g")
			require.NoError(t, err)
			assert.Equal(t, []string{"slot"}, slots)
		})
	}
}

func TestStore_DefaultSlot(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Save(ctx, "g", "", []byte("quick")))
			data, err := s.Load(ctx, "g", DefaultSlot)
			require.NoError(t, err)
			assert.Equal(t, "quick", string(data))
		})
	}
}

func TestStore_MissingSlot(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Load(ctx, "g", "nothing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRedis_KeyLayout(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s, err := NewRedis(ctx, "redis://"+mr.Addr(), testLogger())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, "The Cave", "Slot 1", []byte("data")))

	got, err := mr.Get("fablecore:the-cave:save:slot-1")
	require.NoError(t, err)
	assert.Equal(t, "data", got)
	members, err := mr.Members("fablecore:the-cave:saves")
	require.NoError(t, err)
	assert.Equal(t, []string{"slot-1"}, members)
}

func TestNewRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedis(context.Background(), "redis://"+addr, testLogger())
	assert.Error(t, err)
}

func TestConstructors_NilLogger(t *testing.T) {
	ctx := context.Background()

	file, err := NewFile(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, file.Save(ctx, "game", "a", []byte("x")))

	mr := miniredis.RunT(t)
	rds, err := NewRedis(ctx, "redis://"+mr.Addr(), nil)
	require.NoError(t, err)
	defer rds.Close()
	require.NoError(t, rds.Save(ctx, "game", "a", []byte("x")))

	lite, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "saves.db"), nil)
	require.NoError(t, err)
	defer lite.Close()
	require.NoError(t, lite.Save(ctx, "game", "a", []byte("x")))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Kind: "file", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &File{}, s)

	s, err = Open(ctx, Options{Kind: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "x.db"), Logger: testLogger()})
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	s.Close()

	_, err = Open(ctx, Options{Kind: "floppy"})
	assert.ErrorContains(t, err, "unknown store kind")
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"The Cave of Echoes": "the-cave-of-echoes",
		"  slot_1 ":          "slot_1",
		"Save #2!":           "save-2",
		"../etc/passwd":      "etc-passwd",
		"!!!":                "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), "Slug(%q)", in)
	}
}
