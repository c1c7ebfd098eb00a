// Package engine provides the Step() orchestrator that wires together
// parsing, triggers, puzzles, effects, events and progression into a
// single turn, plus Tick() for the scheduled-action queue.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nathoo/fablecore/engine/effects"
	"github.com/nathoo/fablecore/engine/events"
	"github.com/nathoo/fablecore/engine/parser"
	"github.com/nathoo/fablecore/engine/progress"
	"github.com/nathoo/fablecore/engine/puzzle"
	"github.com/nathoo/fablecore/engine/rules"
	"github.com/nathoo/fablecore/engine/save"
	"github.com/nathoo/fablecore/engine/schedule"
	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/engine/vocab"
	"github.com/nathoo/fablecore/narrator"
	"github.com/nathoo/fablecore/types"
)

// recentLines is how much display history a narrator sees.
const recentLines = 8

// DefaultNarratorTimeout bounds one narrator call.
const DefaultNarratorTimeout = 10 * time.Second

// Engine holds the game definitions and mutable state.
type Engine struct {
	Defs  *state.Defs
	State *types.State
	RNG   *RNG

	parser   *parser.Parser
	progress *progress.Tracker
	puzzles  *puzzle.Tracker
	narrator narrator.Narrator
	timeout  time.Duration
	logger   *slog.Logger
	seed     int64
	recent   []string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithNarrator delegates unscripted commands to n.
func WithNarrator(n narrator.Narrator) Option {
	return func(e *Engine) { e.narrator = n }
}

// WithNarratorTimeout caps how long a narrator call may take before the
// canned reply is used. Non-positive values keep the default.
func WithNarratorTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithVocabulary replaces the default parser vocabulary.
func WithVocabulary(v *vocab.Vocabulary) Option {
	return func(e *Engine) {
		if v != nil {
			e.parser = parser.New(v)
		}
	}
}

// WithSeed fixes the RNG seed used for canned replies.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.seed = seed }
}

// New creates a new engine from definitions.
func New(defs *state.Defs, opts ...Option) *Engine {
	e := &Engine{
		Defs:    defs,
		parser:  parser.New(vocab.Default()),
		logger:  slog.Default(),
		timeout: DefaultNarratorTimeout,
		seed:    time.Now().UnixNano(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.progress = progress.New(defs, e.logger)
	e.puzzles = puzzle.New(defs, e.run, e.progress.AddScore, e.logger)
	e.reset()
	return e
}

func (e *Engine) reset() {
	e.State = state.NewState(e.Defs)
	e.State.RNGSeed = e.seed
	e.RNG = NewRNG(e.seed)
	e.recent = nil
	e.progress.Drain()
	e.puzzles.Drain()
}

// RestoreRNG re-creates the RNG from seed and advances to the saved position.
func (e *Engine) RestoreRNG(seed int64, position int64) {
	e.RNG = RestoreRNG(seed, position)
}

// Intro returns the opening text: the game's intro and the first room.
func (e *Engine) Intro() []types.Message {
	var out []types.Message
	if e.Defs.Game.Intro != "" {
		out = append(out, narrative(e.Defs.Game.Intro))
	}
	out = append(out, e.describeRoom(e.State.Player.Location)...)
	e.remember(out)
	return out
}

// Look describes the player's current room without taking a turn.
func (e *Engine) Look() []types.Message {
	out := e.describeRoom(e.State.Player.Location)
	e.remember(out)
	return out
}

// Step processes one player command and returns the result.
func (e *Engine) Step(input string) types.Result {
	return e.StepContext(context.Background(), input)
}

// StepContext is Step with a context for the narrator call.
func (e *Engine) StepContext(ctx context.Context, input string) types.Result {
	var res types.Result

	// Game over blocks gameplay; restart is still allowed.
	if e.State.Ended {
		if strings.EqualFold(strings.TrimSpace(input), "restart") {
			return e.Restart()
		}
		res.Output = append(res.Output, system("The game is over. Load a save or type restart."))
		return res
	}

	e.State.CommandLog = append(e.State.CommandLog, input)

	// A pending ambiguity gets first claim on the input.
	var pr parser.Result
	handled := false
	conv := e.State.Conversation
	if conv.Pending != nil {
		pr, conv, handled = e.parser.Clarify(input, conv)
	}
	if !handled {
		pr, conv = e.parser.Parse(input, state.Pools(e.State, e.Defs), conv)
	}
	e.State.Conversation = conv

	if !pr.OK() {
		res.Output = append(res.Output, types.Message{Kind: types.MsgError, Text: pr.Err.Message})
		e.remember(res.Output)
		return res
	}

	cmd := pr.Command
	res.Command = &cmd
	e.State.TurnCount++
	if !metaVerbs[cmd.Verb] {
		e.State.Moves++
	}

	if cmd.Verb == "restart" {
		return e.Restart()
	}

	evs := e.execute(ctx, cmd, &res)
	e.dispatch(evs, e.effectsContext(cmd, "handler"), &res)
	e.settle(&res, false)

	e.State.RNGPosition = e.RNG.Position()
	e.remember(res.Output)
	return res
}

// execute runs one parsed command and returns the events it emitted.
// Precedence: puzzle triggers, scripted events, built-in verbs,
// fallbacks, then the unscripted path.
func (e *Engine) execute(ctx context.Context, cmd types.Command, res *types.Result) []types.Event {
	ectx := e.effectsContext(cmd, "")

	if id, sol, ok := e.puzzles.FromCommand(e.State, cmd); ok {
		pr := e.puzzles.Attempt(e.State, id, sol)
		if !pr.NoOp {
			res.Puzzle = &pr
			if pr.Message != "" {
				res.Output = append(res.Output, narrative(pr.Message))
			}
			if pr.Hint != "" {
				res.Output = append(res.Output, system("Hint: "+pr.Hint))
			}
			return e.drain(res)
		}
	}

	if ev, ok := rules.Match(e.State, e.Defs, cmd); ok {
		rules.MarkFired(e.State, ev)
		ectx.Source = ev.ID
		actions := ev.Actions
		if ev.Response != "" {
			actions = append(append([]types.Action(nil), actions...), types.Action{Type: types.ActSay, Params: map[string]any{"text": ev.Response}})
		}
		e.logger.Debug("event matched", "event", ev.ID, "verb", cmd.Verb)
		return e.apply(actions, ectx, res)
	}

	if evs, ok := e.builtin(cmd, ectx, res); ok {
		return evs
	}

	if cmd.Direct.Kind == types.RefUnknown {
		res.Output = append(res.Output, types.Message{
			Kind: types.MsgError,
			Text: fmt.Sprintf("You don't see any %s here.", cmd.Direct.Text),
		})
		return nil
	}

	if text, ok := rules.Fallback(e.State, e.Defs, cmd.Verb, cmd.Direct.ID); ok {
		res.Output = append(res.Output, narrative(text))
		return nil
	}

	res.Unscripted = true
	res.Output = append(res.Output, narrative(e.unscripted(ctx, cmd)))
	return nil
}

// unscripted asks the narrator, falling back to a canned reply.
func (e *Engine) unscripted(ctx context.Context, cmd types.Command) string {
	if e.narrator != nil {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		text, err := e.narrator.Narrate(ctx, e.scene(), cmd)
		if err == nil && text != "" {
			return text
		}
		e.logger.Warn("narrator unavailable, using canned reply", "error", err, "verb", cmd.Verb)
	}
	return cannedReplies[e.RNG.Pick(len(cannedReplies))]
}

var cannedReplies = []string{
	"Nothing happens.",
	"That doesn't seem to accomplish anything.",
	"You consider it, but think better of it.",
	"Nothing obvious comes of that.",
	"That's not something you can do here.",
}

func (e *Engine) scene() narrator.Scene {
	loc := e.State.Player.Location
	sc := narrator.Scene{
		Game:   e.Defs.Game.Title,
		Room:   e.roomName(loc),
		Score:  e.State.Score,
		Recent: append([]string(nil), e.recent...),
	}
	if room, ok := e.Defs.Rooms[loc]; ok {
		sc.Description = room.Description
	}
	for _, id := range e.visible(loc) {
		sc.Visible = append(sc.Visible, state.EntityName(e.State, e.Defs, id))
	}
	for _, id := range e.State.Player.Inventory {
		sc.Inventory = append(sc.Inventory, state.EntityName(e.State, e.Defs, id))
	}
	return sc
}

// Tick advances the game clock by dt and runs every scheduled action that
// has come due, earliest first.
func (e *Engine) Tick(dt time.Duration) types.Result {
	var res types.Result
	if e.State.Ended {
		return res
	}
	if dt > 0 {
		e.State.Clock += dt.Milliseconds()
	}

	// Entries queued by this drain wait for the next tick.
	bound := e.State.ScheduleSeq
	for {
		entry, ok := schedule.PopDueBefore(e.State, bound)
		if !ok {
			break
		}
		ectx := effects.Context{Source: entry.Source, Progress: progression{e}, Logger: e.logger}
		evs := e.apply(entry.Actions, ectx, &res)
		e.dispatch(evs, ectx, &res)
		if e.State.Ended {
			break
		}
	}
	e.settle(&res, false)
	e.remember(res.Output)
	return res
}

// AttemptPuzzle submits a solution directly, bypassing the parser.
func (e *Engine) AttemptPuzzle(id string, sol types.Solution) types.Result {
	var res types.Result
	wasEnded := e.State.Ended
	pr := e.puzzles.Attempt(e.State, id, sol)
	res.Puzzle = &pr
	if pr.Message != "" {
		res.Output = append(res.Output, narrative(pr.Message))
	}
	evs := e.drain(&res)
	e.dispatch(evs, effects.Context{Source: id}, &res)
	e.settle(&res, wasEnded)
	return res
}

// Hint returns the next hint for a puzzle.
func (e *Engine) Hint(id string) types.HintResult {
	return e.puzzles.Hint(e.State, id)
}

// ResetPuzzle clears a puzzle's progress and runs its reset actions.
func (e *Engine) ResetPuzzle(id string) types.Result {
	var res types.Result
	wasEnded := e.State.Ended
	pr := e.puzzles.Reset(e.State, id)
	res.Puzzle = &pr
	res.Output = append(res.Output, narrative(pr.Message))
	evs := e.drain(&res)
	e.dispatch(evs, effects.Context{Source: id}, &res)
	e.settle(&res, wasEnded)
	return res
}

// Restart throws away the session and starts over.
func (e *Engine) Restart() types.Result {
	e.reset()
	e.logger.Info("game restarted", "session", e.State.SessionID)
	return types.Result{Output: e.Intro()}
}

// FinalStats summarizes the session so far.
func (e *Engine) FinalStats() types.FinalStats {
	return e.progress.FinalStats(e.State)
}

// Snapshot serializes the full game state.
func (e *Engine) Snapshot() ([]byte, error) {
	e.State.RNGPosition = e.RNG.Position()
	return save.Save(e.State, e.Defs)
}

// Restore replaces the game state with a snapshot written by Snapshot.
func (e *Engine) Restore(data []byte) error {
	sd, err := save.Load(data)
	if err != nil {
		return err
	}
	if err := sd.Check(e.Defs); err != nil {
		return err
	}
	save.ApplySave(e.State, sd)
	e.RestoreRNG(e.State.RNGSeed, e.State.RNGPosition)
	e.recent = nil
	e.logger.Info("game restored", "session", e.State.SessionID, "turn", e.State.TurnCount)
	return nil
}

// apply runs actions and collects everything they produced, including
// whatever the progression and puzzle trackers queued meanwhile.
func (e *Engine) apply(actions []types.Action, ectx effects.Context, res *types.Result) []types.Event {
	evs, out := effects.Apply(e.State, e.Defs, actions, ectx)
	res.Actions = append(res.Actions, actions...)
	res.Output = append(res.Output, out...)
	res.Events = append(res.Events, evs...)
	return append(evs, e.drain(res)...)
}

// dispatch runs event handlers once over evs. Events raised by handler
// actions are recorded but not dispatched again.
func (e *Engine) dispatch(evs []types.Event, ectx effects.Context, res *types.Result) {
	actions := events.Dispatch(evs, e.State, e.Defs)
	if len(actions) == 0 {
		return
	}
	ectx.Progress = progression{e}
	ectx.Logger = e.logger
	e.apply(actions, ectx, res)
}

// drain moves tracker output into the result.
func (e *Engine) drain(res *types.Result) []types.Event {
	pevs, pout := e.puzzles.Drain()
	notes, gevs, gout := e.progress.Drain()
	res.Output = append(res.Output, pout...)
	res.Output = append(res.Output, gout...)
	res.Notifications = append(res.Notifications, notes...)
	evs := append(pevs, gevs...)
	res.Events = append(res.Events, evs...)
	return evs
}

// settle checks win and failure conditions and attaches final statistics
// when the game ended during this call.
func (e *Engine) settle(res *types.Result, wasEnded bool) {
	e.progress.CheckCompletion(e.State)
	e.drain(res)
	if !wasEnded && e.State.Ended {
		stats := e.progress.FinalStats(e.State)
		res.Ending = &stats
	}
}

// run executes reward, consequence and reset lists for the puzzle tracker.
func (e *Engine) run(s *types.State, actions []types.Action, source string) ([]types.Event, []types.Message) {
	return effects.Apply(s, e.Defs, actions, effects.Context{Source: source, Progress: progression{e}, Logger: e.logger})
}

func (e *Engine) effectsContext(cmd types.Command, source string) effects.Context {
	return effects.Context{
		Verb:     cmd.Verb,
		ObjectID: cmd.Direct.ID,
		TargetID: cmd.Indirect.ID,
		Source:   source,
		Progress: progression{e},
		Logger:   e.logger,
	}
}

func (e *Engine) remember(out []types.Message) {
	for _, m := range out {
		e.recent = append(e.recent, m.Text)
	}
	if n := len(e.recent); n > recentLines {
		e.recent = append([]string(nil), e.recent[n-recentLines:]...)
	}
}

// progression routes progression actions to the trackers.
type progression struct{ e *Engine }

func (p progression) AddScore(s *types.State, delta int, reason string) {
	p.e.progress.AddScore(s, delta, reason)
}

func (p progression) Unlock(s *types.State, id string) { p.e.progress.Unlock(s, id) }

func (p progression) AddProgress(s *types.State, id string, n int) {
	p.e.progress.AddProgress(s, id, n)
}

func (p progression) StartPuzzle(s *types.State, id string) { p.e.puzzles.Start(s, id) }

func (p progression) ResetPuzzle(s *types.State, id string) { p.e.puzzles.Reset(s, id) }

func (p progression) EndGame(s *types.State, ending string) { p.e.progress.EndGame(s, ending) }

func narrative(text string) types.Message { return types.Message{Kind: types.MsgNarrative, Text: text} }

func system(text string) types.Message { return types.Message{Kind: types.MsgSystem, Text: text} }
