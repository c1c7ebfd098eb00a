// Package session binds an engine to the host services around it: the
// snapshot store, the transcript and the wall clock. The cli and tui
// hosts drive the game through a Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nathoo/fablecore/engine"
	"github.com/nathoo/fablecore/store"
	"github.com/nathoo/fablecore/transcript"
	"github.com/nathoo/fablecore/types"
)

// Session is one play-through. It is not safe for concurrent use; hosts
// call it from their single input loop.
type Session struct {
	Engine     *engine.Engine
	Store      store.Store
	Transcript *transcript.Transcript
	logger     *slog.Logger
	last       time.Time
	now        func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// New creates a session. st may be nil, in which case saving is refused.
func New(eng *engine.Engine, st store.Store, opts ...Option) *Session {
	s := &Session{
		Engine:     eng,
		Store:      st,
		Transcript: transcript.New(eng.Defs.Game.Title),
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.last = s.now()
	return s
}

// Game is the title used to key save slots.
func (s *Session) Game() string { return s.Engine.Defs.Game.Title }

// Intro returns and records the opening text.
func (s *Session) Intro() []types.Message {
	out := s.Engine.Intro()
	s.Transcript.Append(out...)
	return out
}

// Advance ticks the game clock by the wall time since the previous call.
func (s *Session) Advance() types.Result {
	now := s.now()
	dt := now.Sub(s.last)
	s.last = now
	res := s.Engine.Tick(dt)
	s.Transcript.Record("", res)
	return res
}

// Step runs one player command.
func (s *Session) Step(ctx context.Context, input string) types.Result {
	before := s.Engine.State.SessionID
	res := s.Engine.StepContext(ctx, input)
	if s.Engine.State.SessionID != before {
		// Restarted: the log starts over with the new intro.
		s.Transcript.Reset()
	}
	s.Transcript.Record(input, res)
	return res
}

// Save writes a snapshot to slot and returns the normalized slot name.
func (s *Session) Save(ctx context.Context, slot string) (string, error) {
	if s.Store == nil {
		return "", errors.New("no save store configured")
	}
	data, err := s.Engine.Snapshot()
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	name := slotName(slot)
	if err := s.Store.Save(ctx, s.Game(), name, data); err != nil {
		return "", err
	}
	s.logger.Info("game saved", "slot", name, "session", s.Engine.State.SessionID, "turn", s.Engine.State.TurnCount)
	return name, nil
}

// Load restores slot and returns a look at the restored room.
func (s *Session) Load(ctx context.Context, slot string) (types.Result, error) {
	if s.Store == nil {
		return types.Result{}, errors.New("no save store configured")
	}
	data, err := s.Store.Load(ctx, s.Game(), slotName(slot))
	if err != nil {
		return types.Result{}, err
	}
	if err := s.Engine.Restore(data); err != nil {
		return types.Result{}, err
	}
	s.last = s.now()
	res := types.Result{Output: s.Engine.Look()}
	s.Transcript.Record("", res)
	return res, nil
}

// Saves lists the slots for this game.
func (s *Session) Saves(ctx context.Context) ([]string, error) {
	if s.Store == nil {
		return nil, errors.New("no save store configured")
	}
	return s.Store.List(ctx, s.Game())
}

// Export writes the transcript as a PDF.
func (s *Session) Export(path string) error {
	if err := s.Transcript.ExportPDF(path); err != nil {
		return err
	}
	s.logger.Info("transcript exported", "path", path)
	return nil
}

func slotName(slot string) string {
	if name := store.Slug(slot); name != "" {
		return name
	}
	return store.DefaultSlot
}
