// Package puzzle tracks puzzle progress: solution checking for single and
// multi-step puzzles, attempts, hints with cooldowns, and resets.
//
// Lifecycle per puzzle:
//
//	not started -> started (loops on wrong attempts) -> completed
//	started -> permanently failed, once attempts reach MaxAttempts
//
// Multi-step puzzles nest a per-step machine inside "started".
package puzzle

import (
	"log/slog"
	"strings"

	"github.com/nathoo/fablecore/engine/conditions"
	"github.com/nathoo/fablecore/engine/rules"
	"github.com/nathoo/fablecore/engine/schedule"
	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/types"
)

// Runner executes reward, consequence and reset action lists.
type Runner func(s *types.State, actions []types.Action, source string) ([]types.Event, []types.Message)

// ScoreFunc awards puzzle points through the progression tracker.
type ScoreFunc func(s *types.State, delta int, reason string)

// Tracker checks attempts against static definitions and keeps per-puzzle
// state inside types.State.
type Tracker struct {
	Defs   *state.Defs
	Run    Runner
	Score  ScoreFunc
	Logger *slog.Logger

	// Collected from reward runs since the last Drain.
	events   []types.Event
	messages []types.Message
}

// New creates a tracker. run and score may be nil.
func New(defs *state.Defs, run Runner, score ScoreFunc, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{Defs: defs, Run: run, Score: score, Logger: logger}
}

// Drain returns and clears the events and messages produced by reward,
// consequence and reset actions.
func (t *Tracker) Drain() ([]types.Event, []types.Message) {
	ev, msg := t.events, t.messages
	t.events, t.messages = nil, nil
	return ev, msg
}

// Attempt submits a solution to a puzzle.
func (t *Tracker) Attempt(s *types.State, id string, attempt types.Solution) types.PuzzleResult {
	def, ok := t.Defs.Puzzles[id]
	if !ok {
		return types.PuzzleResult{PuzzleID: id, NoOp: true, Message: "There is no such puzzle."}
	}

	ps := state.PuzzleState(s, id)
	switch {
	case ps.Completed:
		return types.PuzzleResult{PuzzleID: id, NoOp: true, Completed: true, Message: "You've already solved that."}
	case ps.Permanent:
		return types.PuzzleResult{PuzzleID: id, NoOp: true, Permanent: true, Message: "That can no longer be solved."}
	}

	ps.Attempts++
	ps.Started = true

	if len(def.Steps) > 0 {
		return t.attemptStep(s, def, ps, attempt)
	}

	if def.Solution != nil && SolutionMatches(*def.Solution, attempt) {
		return t.complete(s, def, ps, types.PuzzleResult{PuzzleID: id, Success: true})
	}
	return t.fail(s, def, ps, types.PuzzleResult{PuzzleID: id, Message: orDefault(def.Failure, "That doesn't work.")})
}

func (t *Tracker) attemptStep(s *types.State, def types.PuzzleDef, ps types.PuzzleState, attempt types.Solution) types.PuzzleResult {
	step := def.Steps[ps.CurrentStep]
	res := types.PuzzleResult{PuzzleID: def.ID, Steps: len(def.Steps)}

	if !SolutionMatches(step.Solution, attempt) {
		res.Step = len(ps.CompletedSteps)
		res.Message = orDefault(step.Failure, orDefault(def.Failure, "That doesn't work."))
		return t.fail(s, def, ps, res)
	}

	ps.CompletedSteps = append(ps.CompletedSteps, ps.CurrentStep)
	ps.Failed = false
	t.runActions(s, step.Reward, def.ID)
	if step.Points != 0 && t.Score != nil {
		t.Score(s, step.Points, def.ID)
	}
	res.Success = true
	res.Points = step.Points
	res.Step = len(ps.CompletedSteps)

	if ps.CurrentStep == len(def.Steps)-1 {
		res.Message = step.Success
		return t.complete(s, def, ps, res)
	}

	ps.CurrentStep++
	s.Puzzles[def.ID] = ps
	res.Message = orDefault(step.Success, "That seems to be right. There is more to do.")
	return res
}

func (t *Tracker) complete(s *types.State, def types.PuzzleDef, ps types.PuzzleState, res types.PuzzleResult) types.PuzzleResult {
	ps.Completed = true
	ps.Failed = false
	s.Puzzles[def.ID] = ps
	state.Touch(&s.Touched.Puzzles, def.ID)

	t.runActions(s, def.Reward, def.ID)
	if def.Points != 0 && t.Score != nil {
		t.Score(s, def.Points, def.ID)
	}

	res.Success = true
	res.Completed = true
	res.Points += def.Points
	msg := orDefault(def.Success, "Solved!")
	if res.Message != "" && res.Message != msg {
		msg = res.Message + "\n" + msg
	}
	res.Message = msg
	t.events = append(t.events, types.Event{Type: "puzzle_solved", Data: map[string]any{"puzzle": def.ID}})
	t.Logger.Info("puzzle solved", "puzzle", def.ID, "attempts", ps.Attempts)
	return res
}

func (t *Tracker) fail(s *types.State, def types.PuzzleDef, ps types.PuzzleState, res types.PuzzleResult) types.PuzzleResult {
	ps.Failed = true
	s.Puzzles[def.ID] = ps

	// The hint is consumed like a "hint" request, so it obeys the cooldown.
	if h := t.Hint(s, def.ID); !h.OnCooldown && !h.NoHints {
		res.Hint = h.Hint
	}
	ps = state.PuzzleState(s, def.ID)

	if def.MaxAttempts > 0 && ps.Attempts >= def.MaxAttempts {
		ps.Permanent = true
		s.Puzzles[def.ID] = ps
		t.runActions(s, def.FailureConsequence, def.ID)
		res.Permanent = true
		res.Hint = ""
		res.Message += "\nYou have run out of chances with this one."
		t.events = append(t.events, types.Event{Type: "puzzle_failed", Data: map[string]any{"puzzle": def.ID}})
		t.Logger.Info("puzzle permanently failed", "puzzle", def.ID, "attempts", ps.Attempts)
	}
	return res
}

// Hint returns the next hint for a puzzle, or for its current step when
// that step has hints of its own. The index is min(times hinted, last).
func (t *Tracker) Hint(s *types.State, id string) types.HintResult {
	def, ok := t.Defs.Puzzles[id]
	if !ok {
		return types.HintResult{NoHints: true, Index: -1}
	}
	ps := state.PuzzleState(s, id)

	hints, hs, stepKey := def.Hints, ps.Hints, -1
	if len(def.Steps) > 0 && ps.CurrentStep < len(def.Steps) && len(def.Steps[ps.CurrentStep].Hints) > 0 {
		stepKey = ps.CurrentStep
		hints = def.Steps[stepKey].Hints
		hs = types.HintState{LastAt: -1}
		if saved, ok := ps.StepHints[stepKey]; ok {
			hs = saved
		}
	}

	if len(hints) == 0 {
		return types.HintResult{NoHints: true, Index: -1}
	}
	if hs.LastAt >= 0 && def.HintCooldown > 0 && s.Clock-hs.LastAt < def.HintCooldown {
		return types.HintResult{OnCooldown: true, Index: min(max(hs.Given-1, 0), len(hints)-1)}
	}

	idx := min(hs.Given, len(hints)-1)
	hs.Given++
	hs.LastAt = s.Clock

	if stepKey >= 0 {
		if ps.StepHints == nil {
			ps.StepHints = map[int]types.HintState{}
		}
		ps.StepHints[stepKey] = hs
	} else {
		ps.Hints = hs
	}
	s.Puzzles[id] = ps
	return types.HintResult{Hint: hints[idx], Index: idx}
}

// Reset clears a puzzle's progress, drops actions it still has pending
// in the schedule and runs its reset actions. Flags set along the way
// persist. No-reset and permanently failed puzzles refuse.
func (t *Tracker) Reset(s *types.State, id string) types.PuzzleResult {
	def, ok := t.Defs.Puzzles[id]
	if !ok {
		return types.PuzzleResult{PuzzleID: id, NoOp: true, Message: "There is no such puzzle."}
	}
	ps := state.PuzzleState(s, id)
	if def.NoReset {
		return types.PuzzleResult{PuzzleID: id, NoOp: true, Message: "That can't be undone."}
	}
	if ps.Permanent {
		return types.PuzzleResult{PuzzleID: id, NoOp: true, Permanent: true, Message: "That can no longer be solved."}
	}

	s.Puzzles[id] = types.PuzzleState{
		Hints:  types.HintState{LastAt: -1},
		Resets: ps.Resets + 1,
	}
	dropped := schedule.Cancel(s, id)
	t.runActions(s, def.ResetActions, id)
	t.Logger.Debug("puzzle reset", "puzzle", id, "resets", ps.Resets+1, "cancelled", dropped)
	return types.PuzzleResult{PuzzleID: id, Success: true, Message: "Everything is back where it started."}
}

// Start marks a puzzle as started without counting an attempt.
func (t *Tracker) Start(s *types.State, id string) {
	if _, ok := t.Defs.Puzzles[id]; !ok {
		return
	}
	ps := state.PuzzleState(s, id)
	ps.Started = true
	s.Puzzles[id] = ps
}

// Active returns the puzzle the player is most likely working on in a
// room: the first started, unfinished one, else the first unfinished one.
func (t *Tracker) Active(s *types.State, room string) (string, bool) {
	fallback := ""
	for _, id := range t.Defs.PuzzleOrder {
		def := t.Defs.Puzzles[id]
		if def.Room != "" && def.Room != room {
			continue
		}
		ps := state.PuzzleState(s, id)
		if ps.Completed || ps.Permanent {
			continue
		}
		if ps.Started {
			return id, true
		}
		if fallback == "" && def.Room == room {
			fallback = id
		}
	}
	return fallback, fallback != ""
}

// FromCommand finds a puzzle whose trigger matches the command in the
// current room and builds the attempted solution from the command.
func (t *Tracker) FromCommand(s *types.State, cmd types.Command) (string, types.Solution, bool) {
	for _, id := range t.Defs.PuzzleOrder {
		def := t.Defs.Puzzles[id]
		if def.Trigger == (types.Pattern{}) {
			continue
		}
		if def.Room != "" && def.Room != s.Player.Location {
			continue
		}
		if !rules.Matches(def.Trigger, cmd) {
			continue
		}
		if !conditions.All(def.Conditions, s, t.Defs) {
			continue
		}
		return id, SolutionFromCommand(cmd), true
	}
	return "", types.Solution{}, false
}

// SolutionFromCommand maps a command onto the solution shape: bound objects
// become item/target, literal text becomes the value and its sequence.
func SolutionFromCommand(cmd types.Command) types.Solution {
	sol := types.Solution{Verb: cmd.Verb}
	if cmd.Direct.Kind == types.RefBound {
		sol.Item = cmd.Direct.ID
	}
	if cmd.Indirect.Kind == types.RefBound {
		sol.Target = cmd.Indirect.ID
	}
	switch {
	case cmd.Direct.Kind == types.RefLiteral:
		sol.Value = cmd.Direct.Text
	case cmd.Indirect.Kind == types.RefLiteral:
		sol.Value = cmd.Indirect.Text
	}
	if sol.Value != "" {
		sol.Sequence = SplitSequence(sol.Value)
	}
	return sol
}

// SplitSequence splits "1-2-3", "1,2,3" or "1 2 3" into its parts.
func SplitSequence(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == '-' || r == ',' || r == ' '
	})
}

// SolutionMatches compares every field present in expected with the
// attempt. Sequences must match in length and order.
func SolutionMatches(expected, got types.Solution) bool {
	if expected.Verb != "" && expected.Verb != got.Verb {
		return false
	}
	if expected.Item != "" && expected.Item != got.Item {
		return false
	}
	if expected.Target != "" && expected.Target != got.Target {
		return false
	}
	if expected.Value != "" && !strings.EqualFold(strings.TrimSpace(expected.Value), strings.TrimSpace(got.Value)) {
		return false
	}
	if len(expected.Sequence) > 0 {
		if len(expected.Sequence) != len(got.Sequence) {
			return false
		}
		for i := range expected.Sequence {
			if !strings.EqualFold(expected.Sequence[i], got.Sequence[i]) {
				return false
			}
		}
	}
	return true
}

func (t *Tracker) runActions(s *types.State, actions []types.Action, source string) {
	if len(actions) == 0 || t.Run == nil {
		return
	}
	ev, msg := t.Run(s, actions, source)
	t.events = append(t.events, ev...)
	t.messages = append(t.messages, msg...)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
