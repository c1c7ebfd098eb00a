// Package effects implements centralized state mutation via the Apply function.
// Every action kind is one atomic operation. No logic in effects.
package effects

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nathoo/fablecore/engine/schedule"
	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/types"
)

// Progression receives the actions that belong to the progression and
// puzzle trackers. The engine supplies it; a nil Progression falls back to
// plain state writes where one exists.
type Progression interface {
	AddScore(s *types.State, delta int, reason string)
	Unlock(s *types.State, id string)
	AddProgress(s *types.State, id string, n int)
	StartPuzzle(s *types.State, id string)
	ResetPuzzle(s *types.State, id string)
	EndGame(s *types.State, ending string)
}

// Context carries the command context needed for template interpolation
// and the collaborators some actions call out to.
type Context struct {
	Verb     string
	ObjectID string
	TargetID string
	Source   string // event or puzzle id, for logs and scheduled entries

	Progress Progression
	Logger   *slog.Logger
}

func (c Context) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// required parameters per action kind; an action missing one is skipped.
var required = map[types.ActionKind][]string{
	types.ActSay:         {"text"},
	types.ActSetFlag:     {"flag"},
	types.ActClearFlag:   {"flag"},
	types.ActGiveItem:    {"item"},
	types.ActRemoveItem:  {"item"},
	types.ActAddScore:    {"points"},
	types.ActMovePlayer:  {"room"},
	types.ActMoveEntity:  {"entity", "room"},
	types.ActSetProp:     {"entity", "prop"},
	types.ActOpenExit:    {"room", "direction", "target"},
	types.ActCloseExit:   {"room", "direction"},
	types.ActUnlock:      {"id"},
	types.ActProgress:    {"id"},
	types.ActSetPath:     {"path"},
	types.ActAddFactor:   {"name"},
	types.ActEmitEvent:   {"event"},
	types.ActStartPuzzle: {"puzzle"},
	types.ActResetPuzzle: {"puzzle"},
}

// Apply runs a list of actions against the game state, in order and in
// full. Unknown or malformed actions are logged and skipped; the rest of
// the list still runs. A stop action ends the list early.
// Returns the events emitted and the messages produced.
func Apply(s *types.State, defs *state.Defs, actions []types.Action, ctx Context) ([]types.Event, []types.Message) {
	var events []types.Event
	var output []types.Message
	log := ctx.logger()

	for _, a := range actions {
		if missing := missingParam(a); missing != "" {
			log.Warn("malformed action skipped", "type", a.Type, "missing", missing, "source", ctx.Source)
			continue
		}

		switch a.Type {
		case types.ActSay:
			text := interpolate(str(a.Params["text"]), s, defs, ctx)
			output = append(output, types.Message{Kind: types.MsgNarrative, Text: text})

		case types.ActGiveItem:
			item := resolveTemplate(str(a.Params["item"]), ctx)
			if !state.HasItem(s, item) {
				s.Player.Inventory = append(s.Player.Inventory, item)
			}
			// Remove from world by setting location to a non-empty "nowhere".
			es := s.Entities[item]
			es.Location = " "
			s.Entities[item] = es
			state.Touch(&s.Touched.Items, item)
			events = append(events, types.Event{
				Type: "item_taken",
				Data: map[string]any{"item": item},
			})

		case types.ActRemoveItem:
			item := resolveTemplate(str(a.Params["item"]), ctx)
			s.Player.Inventory = removeFromSlice(s.Player.Inventory, item)
			events = append(events, types.Event{
				Type: "item_removed",
				Data: map[string]any{"item": item},
			})

		case types.ActSetFlag:
			flag := str(a.Params["flag"])
			value, ok := a.Params["value"]
			if !ok || value == nil {
				value = true
			}
			state.SetFlag(s, flag, value)
			events = append(events, types.Event{
				Type: "flag_changed",
				Data: map[string]any{"flag": flag, "value": value},
			})

		case types.ActClearFlag:
			flag := str(a.Params["flag"])
			state.ClearFlag(s, flag)
			events = append(events, types.Event{
				Type: "flag_changed",
				Data: map[string]any{"flag": flag, "value": nil},
			})

		case types.ActAddScore:
			points := toInt(a.Params["points"])
			reason := str(a.Params["reason"])
			if ctx.Progress != nil {
				ctx.Progress.AddScore(s, points, reason)
			} else {
				s.Score = max(0, s.Score+points)
			}
			events = append(events, types.Event{
				Type: "score_changed",
				Data: map[string]any{"points": points, "score": s.Score},
			})

		case types.ActSetProp:
			entity := resolveTemplate(str(a.Params["entity"]), ctx)
			prop := str(a.Params["prop"])
			es := s.Entities[entity]
			if es.Props == nil {
				es.Props = map[string]any{}
			}
			es.Props[prop] = a.Params["value"]
			s.Entities[entity] = es

		case types.ActMoveEntity:
			entity := resolveTemplate(str(a.Params["entity"]), ctx)
			room := str(a.Params["room"])
			es := s.Entities[entity]
			es.Location = room
			s.Entities[entity] = es
			events = append(events, types.Event{
				Type: "entity_moved",
				Data: map[string]any{"entity": entity, "room": room},
			})

		case types.ActMovePlayer:
			room := str(a.Params["room"])
			if _, ok := defs.Rooms[room]; !ok {
				log.Warn("move_player to unknown room skipped", "room", room, "source", ctx.Source)
				continue
			}
			s.Player.Location = room
			state.Touch(&s.Touched.Rooms, room)
			events = append(events, types.Event{
				Type: "room_entered",
				Data: map[string]any{"room": room},
			})

		case types.ActOpenExit:
			setExit(s, str(a.Params["room"]), str(a.Params["direction"]), str(a.Params["target"]))

		case types.ActCloseExit:
			setExit(s, str(a.Params["room"]), str(a.Params["direction"]), "")

		case types.ActSchedule:
			delay := time.Duration(toFloat(a.Params["delay"]) * float64(time.Second))
			entry := schedule.Push(s, delay, a.Actions, ctx.Source)
			log.Debug("action scheduled", "at", entry.At, "count", len(a.Actions), "source", ctx.Source)

		case types.ActEndGame:
			ending := str(a.Params["ending"])
			if ctx.Progress != nil {
				ctx.Progress.EndGame(s, ending)
			} else {
				s.Ended = true
				s.Ending = ending
			}
			events = append(events, types.Event{
				Type: "game_ended",
				Data: map[string]any{"ending": ending},
			})

		case types.ActUnlock:
			if !callProgress(ctx, log, a) {
				continue
			}
			ctx.Progress.Unlock(s, str(a.Params["id"]))

		case types.ActProgress:
			if !callProgress(ctx, log, a) {
				continue
			}
			n := 1
			if _, ok := a.Params["amount"]; ok {
				n = toInt(a.Params["amount"])
			}
			ctx.Progress.AddProgress(s, str(a.Params["id"]), n)

		case types.ActStartPuzzle:
			if !callProgress(ctx, log, a) {
				continue
			}
			ctx.Progress.StartPuzzle(s, str(a.Params["puzzle"]))

		case types.ActResetPuzzle:
			if !callProgress(ctx, log, a) {
				continue
			}
			ctx.Progress.ResetPuzzle(s, str(a.Params["puzzle"]))

		case types.ActSetPath:
			s.Path = str(a.Params["path"])
			events = append(events, types.Event{
				Type: "path_changed",
				Data: map[string]any{"path": s.Path},
			})

		case types.ActAddFactor:
			if s.Factors == nil {
				s.Factors = map[string]float64{}
			}
			amount := 1.0
			if _, ok := a.Params["amount"]; ok {
				amount = toFloat(a.Params["amount"])
			}
			s.Factors[str(a.Params["name"])] += amount

		case types.ActEmitEvent:
			data, _ := a.Params["data"].(map[string]any)
			if data == nil {
				data = map[string]any{}
			}
			events = append(events, types.Event{Type: str(a.Params["event"]), Data: data})

		case types.ActStop:
			return events, output

		default:
			log.Warn("unknown action skipped", "type", a.Type, "source", ctx.Source)
		}
	}

	return events, output
}

func callProgress(ctx Context, log *slog.Logger, a types.Action) bool {
	if ctx.Progress == nil {
		log.Warn("action needs a progression tracker; skipped", "type", a.Type, "source", ctx.Source)
		return false
	}
	return true
}

func missingParam(a types.Action) string {
	for _, key := range required[a.Type] {
		v, ok := a.Params[key]
		if !ok || v == nil {
			return key
		}
		if sv, isStr := v.(string); isStr && sv == "" && key != "text" && key != "target" {
			return key
		}
	}
	return ""
}

// setExit stores an exit override as an "exit:<direction>" prop on the
// room's pseudo-entity. An empty target closes the exit.
func setExit(s *types.State, room, direction, target string) {
	key := "room:" + room
	es := s.Entities[key]
	if es.Props == nil {
		es.Props = map[string]any{}
	}
	es.Props["exit:"+direction] = target
	s.Entities[key] = es
}

// interpolate replaces template variables in text.
func interpolate(text string, s *types.State, defs *state.Defs, ctx Context) string {
	if !strings.Contains(text, "{") {
		return text
	}
	r := strings.NewReplacer(
		"{verb}", ctx.Verb,
		"{object}", ctx.ObjectID,
		"{target}", ctx.TargetID,
		"{player.location}", s.Player.Location,
		"{score}", fmt.Sprint(s.Score),
		"{moves}", fmt.Sprint(s.Moves),
		"{path}", s.Path,
	)
	text = r.Replace(text)

	if strings.Contains(text, "{player.inventory}") {
		text = strings.ReplaceAll(text, "{player.inventory}", formatInventory(s, defs))
	}

	if strings.Contains(text, "{room.description}") {
		desc := ""
		if room, ok := defs.Rooms[s.Player.Location]; ok {
			desc = room.Description
		}
		text = strings.ReplaceAll(text, "{room.description}", desc)
	}

	text = replaceEntityProp(text, "{object.name}", ctx.ObjectID, "name", s, defs)
	text = replaceEntityProp(text, "{object.description}", ctx.ObjectID, "description", s, defs)
	text = replaceEntityProp(text, "{target.name}", ctx.TargetID, "name", s, defs)

	return text
}

// replaceEntityProp replaces a template variable with an entity property value.
func replaceEntityProp(text, placeholder, entityID, prop string, s *types.State, defs *state.Defs) string {
	if !strings.Contains(text, placeholder) {
		return text
	}
	val := ""
	if entityID != "" {
		if v, ok := state.GetEntityProp(s, defs, entityID, prop); ok {
			val = fmt.Sprintf("%v", v)
		}
	}
	return strings.ReplaceAll(text, placeholder, val)
}

// resolveTemplate handles {object} and {target} in params like GiveItem("{object}").
func resolveTemplate(v string, ctx Context) string {
	v = strings.ReplaceAll(v, "{object}", ctx.ObjectID)
	v = strings.ReplaceAll(v, "{target}", ctx.TargetID)
	return v
}

// formatInventory creates a human-readable inventory list.
func formatInventory(s *types.State, defs *state.Defs) string {
	if len(s.Player.Inventory) == 0 {
		return "You are carrying nothing."
	}
	names := make([]string, 0, len(s.Player.Inventory))
	for _, id := range s.Player.Inventory {
		names = append(names, state.EntityName(s, defs, id))
	}
	return strings.Join(names, ", ")
}

func removeFromSlice(slice []string, item string) []string {
	for i, v := range slice {
		if v == item {
			return append(slice[:i], slice[i+1:]...)
		}
	}
	return slice
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case int64:
		return int(n)
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}
