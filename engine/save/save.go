// Package save implements JSON serialization and deserialization of game state.
package save

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/types"
)

// FormatVersion is bumped whenever the snapshot layout changes incompatibly.
const FormatVersion = 1

// ErrWrongGame is returned when a snapshot belongs to another game.
var ErrWrongGame = errors.New("save belongs to a different game")

// SaveData is the JSON-serializable save format. It holds everything a
// session needs to resume: flags, puzzle states, achievements, the
// scheduled-action queue and the parser's conversational context.
type SaveData struct {
	Format  int          `json:"format"`
	Game    string       `json:"game"`
	Version string       `json:"version"`
	State   *types.State `json:"state"`
}

// Save serializes game state to JSON bytes.
func Save(s *types.State, defs *state.Defs) ([]byte, error) {
	data := SaveData{
		Format:  FormatVersion,
		Game:    defs.Game.Title,
		Version: defs.Game.Version,
		State:   s,
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding save: %w", err)
	}
	return out, nil
}

// Load deserializes JSON bytes into SaveData.
func Load(data []byte) (*SaveData, error) {
	var sd SaveData
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("decoding save: %w", err)
	}
	if sd.Format > FormatVersion {
		return nil, fmt.Errorf("save format %d is newer than supported %d", sd.Format, FormatVersion)
	}
	if sd.State == nil {
		return nil, errors.New("save has no state")
	}
	normalize(sd.State)
	return &sd, nil
}

// Check verifies the snapshot was written by the same game.
func (sd *SaveData) Check(defs *state.Defs) error {
	if sd.Game != defs.Game.Title {
		return fmt.Errorf("%w: %q, playing %q", ErrWrongGame, sd.Game, defs.Game.Title)
	}
	return nil
}

// ApplySave applies loaded save data onto a state.
func ApplySave(s *types.State, sd *SaveData) {
	*s = *sd.State
}

// normalize makes sure maps and slices are never nil after load.
func normalize(s *types.State) {
	if s.Flags == nil {
		s.Flags = map[string]any{}
	}
	if s.Entities == nil {
		s.Entities = map[string]types.EntityState{}
	}
	if s.Factors == nil {
		s.Factors = map[string]float64{}
	}
	if s.Puzzles == nil {
		s.Puzzles = map[string]types.PuzzleState{}
	}
	if s.AchievementProgress == nil {
		s.AchievementProgress = map[string]int{}
	}
	if s.FiredEvents == nil {
		s.FiredEvents = map[string]bool{}
	}
	if s.Achievements == nil {
		s.Achievements = []types.UnlockedAchievement{}
	}
	if s.Scheduled == nil {
		s.Scheduled = []types.ScheduledAction{}
	}
	if s.Player.Inventory == nil {
		s.Player.Inventory = []string{}
	}
	if s.CommandLog == nil {
		s.CommandLog = []string{}
	}
}
