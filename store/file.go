package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const fileExt = ".json"

// File keeps one snapshot per file under dir/<game>/<slot>.json.
type File struct {
	dir    string
	logger *slog.Logger
}

var _ Store = (*File)(nil)

// NewFile creates a file store rooted at dir, creating it if needed.
func NewFile(dir string, logger *slog.Logger) (*File, error) {
	if dir == "" {
		dir = "saves"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating save directory %s: %w", dir, err)
	}
	return &File{dir: dir, logger: orDefault(logger)}, nil
}

func (f *File) path(game, slot string) (string, error) {
	g, err := gameKey(game)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.dir, g, slotKey(slot)+fileExt), nil
}

// Save writes the snapshot through a temp file so a crash never leaves a
// half-written slot.
func (f *File) Save(_ context.Context, game, slot string, data []byte) error {
	path, err := f.path(game, slot)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating game save directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".save-*")
	if err != nil {
		return fmt.Errorf("creating temp save: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing save: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing save: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing save: %w", err)
	}
	f.logger.Debug("snapshot saved", "store", "file", "path", path, "bytes", len(data))
	return nil
}

func (f *File) Load(_ context.Context, game, slot string) ([]byte, error) {
	path, err := f.path(game, slot)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading save %s: %w", path, err)
	}
	return data, nil
}

func (f *File) List(_ context.Context, game string) ([]string, error) {
	g, err := gameKey(game)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(f.dir, g))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing saves: %w", err)
	}
	slots := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) || strings.HasPrefix(name, ".") {
			continue
		}
		slots = append(slots, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(slots)
	return slots, nil
}

func (f *File) Delete(_ context.Context, game, slot string) error {
	path, err := f.path(game, slot)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting save: %w", err)
	}
	return nil
}

func (f *File) Close() error { return nil }
