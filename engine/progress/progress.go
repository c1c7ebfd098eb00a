// Package progress keeps score and achievement bookkeeping and decides
// when and how the game ends.
package progress

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/nathoo/fablecore/engine/conditions"
	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/types"
)

// Fallback ending ids used when the game does not name its own.
const (
	DefaultEnding = "default"
	FailureEnding = "failure"
)

// Tracker applies score changes, unlocks achievements and resolves endings.
// Notifications, events and messages accumulate until Drain.
type Tracker struct {
	Defs   *state.Defs
	Logger *slog.Logger

	milestones []types.Milestone

	notifications []types.Notification
	events        []types.Event
	messages      []types.Message
}

// New creates a tracker for the given definitions.
func New(defs *state.Defs, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	ladder := append([]types.Milestone(nil), defs.Game.Milestones...)
	sort.SliceStable(ladder, func(i, j int) bool { return ladder[i].Threshold < ladder[j].Threshold })
	return &Tracker{Defs: defs, Logger: logger, milestones: ladder}
}

// Drain returns and clears everything collected since the last call.
func (t *Tracker) Drain() ([]types.Notification, []types.Event, []types.Message) {
	n, e, m := t.notifications, t.events, t.messages
	t.notifications, t.events, t.messages = nil, nil, nil
	return n, e, m
}

// AddScore changes the score, clamping at zero, then checks the milestone
// ladder and the perfect score.
func (t *Tracker) AddScore(s *types.State, delta int, reason string) {
	old := s.Score
	s.Score = max(0, old+delta)
	if s.Score == old {
		return
	}

	msg := fmt.Sprintf("Your score went up by %d.", s.Score-old)
	if s.Score < old {
		msg = fmt.Sprintf("Your score went down by %d.", old-s.Score)
	}
	t.notifications = append(t.notifications, types.Notification{
		Kind: "score", ID: reason, Message: msg, Points: s.Score - old,
	})

	for _, m := range t.milestones {
		if old < m.Threshold && s.Score >= m.Threshold {
			t.Unlock(s, m.Achievement)
		}
	}

	g := t.Defs.Game
	if g.MaxScore > 0 && g.PerfectScore != "" && s.Score >= g.MaxScore {
		t.Unlock(s, g.PerfectScore)
	}
}

// Unlock grants an achievement. It is idempotent and reports whether the
// achievement was newly unlocked. Unknown ids are a no-op.
func (t *Tracker) Unlock(s *types.State, id string) bool {
	def, ok := t.Defs.Achievements[id]
	if !ok {
		t.Logger.Warn("unknown achievement", "id", id)
		return false
	}
	if state.HasAchievement(s, id) {
		return false
	}

	s.Achievements = append(s.Achievements, types.UnlockedAchievement{ID: id, At: s.Clock, Turn: s.TurnCount})
	t.notifications = append(t.notifications, types.Notification{
		Kind: "achievement", ID: id, Title: def.Title, Message: def.Description, Points: def.Points,
	})
	t.events = append(t.events, types.Event{Type: "achievement_unlocked", Data: map[string]any{"id": id}})
	t.Logger.Info("achievement unlocked", "id", id, "turn", s.TurnCount)

	if def.Points != 0 {
		t.AddScore(s, def.Points, id)
	}
	t.checkMeta(s)
	return true
}

// checkMeta unlocks achievements that require N other achievements.
func (t *Tracker) checkMeta(s *types.State) {
	for _, id := range t.Defs.AchievementOrder {
		def := t.Defs.Achievements[id]
		if def.Meta <= 0 || state.HasAchievement(s, id) {
			continue
		}
		if len(s.Achievements) >= def.Meta {
			t.Unlock(s, id)
		}
	}
}

// AddProgress advances a progressive achievement and unlocks it when the
// target is reached. It reports whether the achievement unlocked.
func (t *Tracker) AddProgress(s *types.State, id string, n int) bool {
	def, ok := t.Defs.Achievements[id]
	if !ok || def.Target <= 0 {
		t.Logger.Warn("progress on non-progressive achievement", "id", id)
		return false
	}
	if state.HasAchievement(s, id) {
		return false
	}
	if s.AchievementProgress == nil {
		s.AchievementProgress = map[string]int{}
	}
	s.AchievementProgress[id] += n
	if s.AchievementProgress[id] >= def.Target {
		return t.Unlock(s, id)
	}
	return false
}

// CheckCompletion evaluates the win condition, then the ordered failure
// conditions. It returns final statistics when the game just ended.
func (t *Tracker) CheckCompletion(s *types.State) *types.FinalStats {
	if s.Ended {
		return nil
	}
	g := t.Defs.Game
	if g.Win != nil && conditions.Eval(*g.Win, s, t.Defs) {
		return t.TriggerEnding(s, t.ResolveEnding(s))
	}
	for _, f := range g.Failures {
		if conditions.Eval(f.Condition, s, t.Defs) {
			if f.Message != "" {
				t.messages = append(t.messages, types.Message{Kind: types.MsgNarrative, Text: f.Message})
			}
			id := g.FailureEnding
			if id == "" {
				id = FailureEnding
			}
			return t.TriggerEnding(s, id)
		}
	}
	return nil
}

// ResolveEnding picks, among endings whose whole condition list holds, the
// one with the highest priority. Ties go to the earlier definition.
func (t *Tracker) ResolveEnding(s *types.State) string {
	best := -1
	for i, e := range t.Defs.Endings {
		if !conditions.All(e.Conditions, s, t.Defs) {
			continue
		}
		if best < 0 || e.Priority > t.Defs.Endings[best].Priority {
			best = i
		}
	}
	if best >= 0 {
		return t.Defs.Endings[best].ID
	}
	if t.Defs.Game.DefaultEnding != "" {
		return t.Defs.Game.DefaultEnding
	}
	return DefaultEnding
}

// EndGame ends the game with a named ending, or resolves one when empty.
func (t *Tracker) EndGame(s *types.State, ending string) {
	if s.Ended {
		return
	}
	if ending == "" {
		ending = t.ResolveEnding(s)
	}
	t.TriggerEnding(s, ending)
}

// TriggerEnding marks the game over, unlocks the ending's achievement and
// returns the final statistics.
func (t *Tracker) TriggerEnding(s *types.State, id string) *types.FinalStats {
	s.Ended = true
	s.Ending = id

	if def, ok := t.ending(id); ok {
		if def.Achievement != "" {
			t.Unlock(s, def.Achievement)
		}
		if def.Text != "" {
			t.messages = append(t.messages, types.Message{Kind: types.MsgNarrative, Text: def.Text})
		}
	}

	stats := t.FinalStats(s)
	t.notifications = append(t.notifications, types.Notification{
		Kind: "ending", ID: id, Title: stats.Title, Message: fmt.Sprintf("Final score: %d", stats.Score),
	})
	t.events = append(t.events, types.Event{Type: "game_ended", Data: map[string]any{"ending": id}})
	t.Logger.Info("game ended", "ending", id, "score", s.Score, "moves", s.Moves)
	return &stats
}

// FinalStats summarizes the session for the current (or given) ending.
func (t *Tracker) FinalStats(s *types.State) types.FinalStats {
	stats := types.FinalStats{
		Ending:        s.Ending,
		Score:         s.Score,
		MaxScore:      t.Defs.Game.MaxScore,
		Moves:         s.Moves,
		ElapsedMS:     s.Clock,
		RoomsVisited:  len(s.Touched.Rooms),
		ItemsFound:    len(s.Touched.Items),
		PuzzlesSolved: len(s.Touched.Puzzles),
		NPCsMet:       len(s.Touched.NPCs),
		Achievements:  make([]string, 0, len(s.Achievements)),
	}
	for _, a := range s.Achievements {
		stats.Achievements = append(stats.Achievements, a.ID)
	}

	if def, ok := t.ending(s.Ending); ok {
		stats.Title = def.Title
		stats.Outcome = def.Outcome
	}
	if stats.Title == "" {
		switch s.Ending {
		case FailureEnding, t.Defs.Game.FailureEnding:
			stats.Title = "Game Over"
		default:
			stats.Title = "The End"
		}
	}
	if stats.Outcome == "" {
		stats.Outcome = "win"
		if s.Ending == FailureEnding || (s.Ending != "" && s.Ending == t.Defs.Game.FailureEnding) {
			stats.Outcome = "lose"
		}
	}
	return stats
}

func (t *Tracker) ending(id string) (types.EndingDef, bool) {
	for _, e := range t.Defs.Endings {
		if e.ID == id {
			return e, true
		}
	}
	return types.EndingDef{}, false
}
