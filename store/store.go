// Package store persists engine snapshots in named save slots. Backends
// hold opaque snapshot bytes; encoding belongs to engine/save.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

// DefaultSlot is used when the player saves without naming a slot.
const DefaultSlot = "quicksave"

// ErrNotFound is returned when a slot holds no snapshot.
var ErrNotFound = errors.New("save slot not found")

// Store saves and loads snapshots by game and slot.
type Store interface {
	Save(ctx context.Context, game, slot string, data []byte) error
	Load(ctx context.Context, game, slot string) ([]byte, error)
	List(ctx context.Context, game string) ([]string, error)
	Delete(ctx context.Context, game, slot string) error
	Close() error
}

// Options selects and configures a backend for Open.
type Options struct {
	Kind       string // "file", "redis" or "sqlite"
	Dir        string
	RedisURL   string
	SQLitePath string
	Logger     *slog.Logger
}

// Open creates the backend named by opts.Kind. An empty kind means "file".
func Open(ctx context.Context, opts Options) (Store, error) {
	logger := orDefault(opts.Logger)
	switch opts.Kind {
	case "", "file":
		return NewFile(opts.Dir, logger)
	case "redis":
		return NewRedis(ctx, opts.RedisURL, logger)
	case "sqlite":
		return NewSQLite(ctx, opts.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown store kind %q", opts.Kind)
	}
}

// Slug turns a title or slot name into a key-safe identifier:
// lowercase letters, digits, '-' and '_', with runs of anything else
// collapsed to '-'.
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) && r < unicode.MaxASCII, unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// slotKey normalizes a slot name, falling back to DefaultSlot.
func slotKey(slot string) string {
	if s := Slug(slot); s != "" {
		return s
	}
	return DefaultSlot
}

func gameKey(game string) (string, error) {
	g := Slug(game)
	if g == "" {
		return "", fmt.Errorf("game name %q has no usable characters", game)
	}
	return g, nil
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
