package loader

import (
	"fmt"
	"strings"

	"github.com/nathoo/fablecore/engine/conditions"
	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/engine/vocab"
	"github.com/nathoo/fablecore/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) errorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func (e *ValidationError) warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

var validActionTypes = map[types.ActionKind]bool{
	types.ActSay: true, types.ActSetFlag: true, types.ActClearFlag: true,
	types.ActGiveItem: true, types.ActRemoveItem: true, types.ActAddScore: true,
	types.ActMovePlayer: true, types.ActMoveEntity: true, types.ActSetProp: true,
	types.ActOpenExit: true, types.ActCloseExit: true, types.ActSchedule: true,
	types.ActEndGame: true, types.ActUnlock: true, types.ActProgress: true,
	types.ActSetPath: true, types.ActAddFactor: true, types.ActEmitEvent: true,
	types.ActStartPuzzle: true, types.ActResetPuzzle: true, types.ActStop: true,
}

var validConditionTypes = map[string]bool{
	"": true, "flag": true, "flag_is": true, "score": true, "achievement": true,
	"path": true, "factor": true, "time": true, "has_item": true, "in_room": true,
	"prop_is": true, "puzzle_solved": true, "not": true,
}

var validOps = map[string]bool{
	"": true, ">": true, "gt": true, ">=": true, "gte": true, "at_least": true,
	"<": true, "lt": true, "<=": true, "lte": true, "at_most": true,
	"==": true, "=": true, "eq": true, "!=": true, "~=": true, "ne": true,
}

// validator checks references against one set of definitions.
type validator struct {
	defs  *state.Defs
	vocab *vocab.Vocabulary
	ve    *ValidationError
}

// validate checks the compiled defs for referential integrity and
// consistency. Warnings are returned even when validation succeeds.
func validate(defs *state.Defs) ([]string, error) {
	v := &validator{defs: defs, vocab: vocab.Default(), ve: &ValidationError{}}
	v.game()

	for roomID, room := range defs.Rooms {
		for dir, target := range room.Exits {
			if _, ok := defs.Rooms[target]; !ok {
				v.ve.errorf("room %q exit %q points to undefined room %q", roomID, dir, target)
			}
		}
		for dir, gate := range room.ExitConditions {
			if _, ok := room.Exits[dir]; !ok {
				v.ve.warnf("room %q gates direction %q which has no exit", roomID, dir)
			}
			v.conditions("room "+roomID, []types.Condition{gate})
		}
		v.events(room.Events)
	}
	v.events(defs.GlobalEvents)

	ids := map[string]bool{}
	for _, ev := range allEvents(defs) {
		if ids[ev.ID] {
			v.ve.errorf("duplicate event ID %q", ev.ID)
		}
		ids[ev.ID] = true
	}

	for entityID, entity := range defs.Entities {
		v.events(entity.Events)
		for key, topic := range entity.Topics {
			where := fmt.Sprintf("topic %s:%s", entityID, key)
			v.conditions(where, topic.Requires)
			v.actions(where, topic.Actions)
		}
		if loc, ok := entity.Props["location"].(string); ok && loc != "" {
			if _, ok := defs.Rooms[loc]; !ok {
				v.ve.warnf("entity %q location %q does not match any defined room", entityID, loc)
			}
		}
	}

	for _, h := range defs.Handlers {
		where := "handler " + h.EventType
		v.conditions(where, h.Conditions)
		v.actions(where, h.Actions)
	}

	for _, id := range defs.PuzzleOrder {
		v.puzzle(defs.Puzzles[id])
	}

	for _, id := range defs.AchievementOrder {
		a := defs.Achievements[id]
		if a.Meta > 0 && a.Target > 0 {
			v.ve.errorf("achievement %q cannot be both meta and progressive", id)
		}
	}

	endings := map[string]bool{}
	for _, end := range defs.Endings {
		if endings[end.ID] {
			v.ve.errorf("duplicate ending ID %q", end.ID)
		}
		endings[end.ID] = true
		v.conditions("ending "+end.ID, end.Conditions)
		if end.Achievement != "" {
			v.achievementRef("ending "+end.ID, end.Achievement)
		}
		switch end.Outcome {
		case "", "win", "lose", "neutral":
		default:
			v.ve.errorf("ending %q has unknown outcome %q", end.ID, end.Outcome)
		}
	}
	for _, id := range []string{defs.Game.DefaultEnding, defs.Game.FailureEnding} {
		if id != "" && !endings[id] {
			v.ve.errorf("Game references undefined ending %q", id)
		}
	}

	if len(v.ve.Errors) > 0 {
		return v.ve.Warnings, v.ve
	}
	return v.ve.Warnings, nil
}

func (v *validator) game() {
	g := v.defs.Game
	if g.Title == "" {
		v.ve.errorf("Game.Title is required")
	}
	if g.Start == "" {
		v.ve.errorf("Game.Start is required")
	} else if _, ok := v.defs.Rooms[g.Start]; !ok {
		v.ve.errorf("start room %q not found in defined rooms", g.Start)
	}
	if g.Win != nil {
		v.conditions("Game.win", []types.Condition{*g.Win})
	}
	for i, f := range g.Failures {
		v.conditions(fmt.Sprintf("Game.failures[%d]", i+1), []types.Condition{f.Condition})
	}
	for _, m := range g.Milestones {
		v.achievementRef("milestone", m.Achievement)
	}
	if g.PerfectScore != "" {
		v.achievementRef("perfect_score", g.PerfectScore)
		if g.MaxScore <= 0 {
			v.ve.warnf("perfect_score %q set without max_score", g.PerfectScore)
		}
	}
}

func (v *validator) events(evs []types.EventDef) {
	for _, ev := range evs {
		where := "event " + ev.ID
		v.conditions(where, ev.Conditions)
		v.actions(where, ev.Actions)
		v.verb(where, ev.Pattern.Verb)
		if len(ev.Actions) == 0 && ev.Response == "" {
			v.ve.warnf("%s has no actions and no response", where)
		}
	}
}

func (v *validator) puzzle(p types.PuzzleDef) {
	where := "puzzle " + p.ID
	if p.Room != "" {
		v.roomRef(where, p.Room)
	}
	if p.Solution == nil && len(p.Steps) == 0 {
		v.ve.errorf("%s needs a solution or steps", where)
	}
	if p.Solution != nil && len(p.Steps) > 0 {
		v.ve.errorf("%s cannot have both a solution and steps", where)
	}
	if p.MaxAttempts < 0 {
		v.ve.errorf("%s has negative max_attempts", where)
	}
	v.verb(where, p.Trigger.Verb)
	v.conditions(where, p.Conditions)
	v.actions(where, p.Reward)
	v.actions(where, p.FailureConsequence)
	v.actions(where, p.ResetActions)
	for _, st := range p.Steps {
		v.actions(where, st.Reward)
	}
}

func (v *validator) verb(where, verb string) {
	if verb == "" {
		return
	}
	if _, ok := v.vocab.Canonical(verb); !ok {
		v.ve.warnf("%s uses unrecognized verb %q", where, verb)
	}
}

func (v *validator) conditions(where string, conds []types.Condition) {
	for _, c := range conds {
		if !validConditionTypes[c.Type] {
			v.ve.errorf("%s: unknown condition type %q", where, c.Type)
			continue
		}
		switch c.Type {
		case "", "flag":
			if _, err := conditions.Parse(c.Expr); err != nil {
				v.ve.errorf("%s: bad flag expression %q: %v", where, c.Expr, err)
			}
		case "has_item":
			v.entityRef(where, c.Params["item"])
		case "in_room":
			v.roomRef(where, c.Params["room"])
		case "prop_is":
			v.entityRef(where, c.Params["entity"])
		case "achievement":
			v.achievementRef(where, c.Params["id"])
		case "puzzle_solved":
			v.puzzleRef(where, c.Params["puzzle"])
		case "flag_is":
			if op, ok := c.Params["op"].(string); ok && !validOps[op] {
				v.ve.errorf("%s: flag_is condition has bad operator %q", where, op)
			}
		case "score", "factor", "time":
			if op, _ := c.Params["op"].(string); !validOps[op] {
				v.ve.errorf("%s: %s condition has bad operator %q", where, c.Type, op)
			}
		case "not":
			if c.Inner == nil {
				v.ve.errorf("%s: Not() needs a condition", where)
			} else {
				v.conditions(where, []types.Condition{*c.Inner})
			}
		}
	}
}

func (v *validator) actions(where string, acts []types.Action) {
	for _, a := range acts {
		if !validActionTypes[a.Type] {
			v.ve.errorf("%s: unknown action type %q", where, a.Type)
			continue
		}
		switch a.Type {
		case types.ActGiveItem, types.ActRemoveItem:
			v.entityRef(where, a.Params["item"])
		case types.ActSetProp:
			v.entityRef(where, a.Params["entity"])
		case types.ActMoveEntity:
			v.entityRef(where, a.Params["entity"])
			v.roomRef(where, a.Params["room"])
		case types.ActMovePlayer:
			v.roomRef(where, a.Params["room"])
		case types.ActOpenExit:
			v.roomRef(where, a.Params["room"])
			v.roomRef(where, a.Params["target"])
		case types.ActCloseExit:
			v.roomRef(where, a.Params["room"])
		case types.ActUnlock, types.ActProgress:
			v.achievementRef(where, a.Params["id"])
		case types.ActStartPuzzle, types.ActResetPuzzle:
			v.puzzleRef(where, a.Params["puzzle"])
		case types.ActEndGame:
			if id, ok := a.Params["ending"].(string); ok && !v.hasEnding(id) {
				v.ve.errorf("%s: end_game references undefined ending %q", where, id)
			}
		case types.ActSchedule:
			if conditions.Number(a.Params["delay"]) < 0 {
				v.ve.errorf("%s: schedule delay must not be negative", where)
			}
			if len(a.Actions) == 0 {
				v.ve.warnf("%s: schedule has no actions", where)
			}
			v.actions(where, a.Actions)
		}
	}
}

func (v *validator) entityRef(where string, ref any) {
	if id, ok := ref.(string); ok && !isTemplate(id) {
		if _, ok := v.defs.Entities[id]; !ok {
			v.ve.errorf("%s references undefined entity %q", where, id)
		}
	}
}

func (v *validator) roomRef(where string, ref any) {
	if id, ok := ref.(string); ok && !isTemplate(id) {
		if _, ok := v.defs.Rooms[id]; !ok {
			v.ve.errorf("%s references undefined room %q", where, id)
		}
	}
}

func (v *validator) achievementRef(where string, ref any) {
	if id, ok := ref.(string); ok && !isTemplate(id) {
		if _, ok := v.defs.Achievements[id]; !ok {
			v.ve.errorf("%s references undefined achievement %q", where, id)
		}
	}
}

func (v *validator) puzzleRef(where string, ref any) {
	if id, ok := ref.(string); ok && !isTemplate(id) {
		if _, ok := v.defs.Puzzles[id]; !ok {
			v.ve.errorf("%s references undefined puzzle %q", where, id)
		}
	}
}

func (v *validator) hasEnding(id string) bool {
	for _, e := range v.defs.Endings {
		if e.ID == id {
			return true
		}
	}
	return false
}

// allEvents gathers events from every scope.
func allEvents(defs *state.Defs) []types.EventDef {
	var all []types.EventDef
	all = append(all, defs.GlobalEvents...)
	for _, room := range defs.Rooms {
		all = append(all, room.Events...)
	}
	for _, entity := range defs.Entities {
		all = append(all, entity.Events...)
	}
	return all
}

// isTemplate returns true if the string contains a template variable.
func isTemplate(s string) bool {
	return strings.Contains(s, "{") && strings.Contains(s, "}")
}
