package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS saves (
	game     TEXT    NOT NULL,
	slot     TEXT    NOT NULL,
	data     BLOB    NOT NULL,
	saved_at INTEGER NOT NULL,
	PRIMARY KEY (game, slot)
)`

// SQLite keeps snapshots in the saves table of a single database file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if path == "" {
		path = "fablecore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// One writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating saves table: %w", err)
	}
	logger = orDefault(logger)
	logger.Info("opened sqlite save store", "path", path)
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Save(ctx context.Context, game, slot string, data []byte) error {
	g, err := gameKey(game)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO saves (game, slot, data, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (game, slot) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`,
		g, slotKey(slot), data, time.Now().Unix())
	if err != nil {
		s.logger.Error("sqlite save failed", "game", g, "slot", slot, "error", err)
		return fmt.Errorf("sqlite save failed: %w", err)
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context, game, slot string) ([]byte, error) {
	g, err := gameKey(game)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.db.QueryRowContext(ctx, `SELECT data FROM saves WHERE game = ? AND slot = ?`, g, slotKey(slot)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite load failed: %w", err)
	}
	return data, nil
}

func (s *SQLite) List(ctx context.Context, game string) ([]string, error) {
	g, err := gameKey(game)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT slot FROM saves WHERE game = ? ORDER BY slot`, g)
	if err != nil {
		return nil, fmt.Errorf("sqlite list failed: %w", err)
	}
	defer rows.Close()

	slots := []string{}
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("sqlite list failed: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

func (s *SQLite) Delete(ctx context.Context, game, slot string) error {
	g, err := gameKey(game)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM saves WHERE game = ? AND slot = ?`, g, slotKey(slot))
	if err != nil {
		return fmt.Errorf("sqlite delete failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Close() error { return s.db.Close() }
