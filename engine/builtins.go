package engine

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/nathoo/fablecore/engine/conditions"
	"github.com/nathoo/fablecore/engine/dialogue"
	"github.com/nathoo/fablecore/engine/effects"
	"github.com/nathoo/fablecore/engine/rules"
	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/types"
)

// Verbs that talk to the host or the engine rather than the world.
// They never count as moves.
var metaVerbs = map[string]bool{
	"save": true, "load": true, "quit": true, "help": true,
	"score": true, "hint": true, "restart": true, "inventory": true,
}

// builtin provides default verb handling when no event matched. It
// reports false when the verb has no built-in behavior for this command.
func (e *Engine) builtin(cmd types.Command, ectx effects.Context, res *types.Result) ([]types.Event, bool) {
	switch cmd.Verb {
	case "look":
		if cmd.Direct.Kind == types.RefNone {
			res.Output = append(res.Output, e.describeRoom(e.State.Player.Location)...)
			return nil, true
		}
		return e.builtinExamine(cmd, "description", res)
	case "examine", "search":
		return e.builtinExamine(cmd, "description", res)
	case "read":
		return e.builtinExamine(cmd, "text", res)
	case "inventory":
		res.Output = append(res.Output, e.inventory())
		return nil, true
	case "go":
		return e.builtinGo(cmd.Direct.Text, ectx, res)
	case "take":
		return e.builtinTake(cmd, ectx, res)
	case "drop":
		return e.builtinDrop(cmd, ectx, res)
	case "talk":
		return e.builtinTalk(cmd, ectx, res)
	case "wait":
		res.Output = append(res.Output, narrative("Time passes."))
		return nil, true
	case "score":
		res.Output = append(res.Output, system(e.scoreLine()))
		return nil, true
	case "hint":
		res.Output = append(res.Output, system(e.hintLine()))
		return nil, true
	case "save", "load", "quit", "help":
		res.Output = append(res.Output, system(fmt.Sprintf("Type /%s for that.", cmd.Verb)))
		return nil, true
	}
	return nil, false
}

func (e *Engine) builtinExamine(cmd types.Command, prop string, res *types.Result) ([]types.Event, bool) {
	if cmd.Direct.Kind != types.RefBound {
		return nil, false
	}
	id := cmd.Direct.ID
	text := e.prop(id, prop)
	if text == "" && prop != "description" {
		text = e.prop(id, "description")
	}
	if text == "" {
		if e.hasFallback(cmd.Verb, id) {
			return nil, false
		}
		text = fmt.Sprintf("You see nothing special about the %s.", strings.ToLower(state.EntityName(e.State, e.Defs, id)))
	}
	res.Output = append(res.Output, narrative(text))
	return nil, true
}

func (e *Engine) builtinGo(dir string, ectx effects.Context, res *types.Result) ([]types.Event, bool) {
	from := e.State.Player.Location
	exits := state.RoomExits(e.State, e.Defs, from)
	target, ok := exits[dir]
	if !ok {
		res.Output = append(res.Output, types.Message{Kind: types.MsgError, Text: "You can't go that way."})
		return nil, true
	}
	room := e.Defs.Rooms[from]
	if gate, gated := room.ExitConditions[dir]; gated && !conditions.Eval(gate, e.State, e.Defs) {
		msg := room.ExitBlocked[dir]
		if msg == "" {
			msg = fmt.Sprintf("The way %s is blocked.", dir)
		}
		res.Output = append(res.Output, narrative(msg))
		return nil, true
	}

	evs := e.apply([]types.Action{{Type: types.ActMovePlayer, Params: map[string]any{"room": target}}}, ectx, res)
	res.Output = append(res.Output, e.describeRoom(e.State.Player.Location)...)
	return evs, true
}

func (e *Engine) builtinTake(cmd types.Command, ectx effects.Context, res *types.Result) ([]types.Event, bool) {
	switch cmd.Direct.Kind {
	case types.RefSpecial:
		var ids []string
		for _, id := range e.visible(e.State.Player.Location) {
			if e.takeable(id) {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			res.Output = append(res.Output, narrative("There is nothing here to take."))
			return nil, true
		}
		var evs []types.Event
		for _, id := range ids {
			evs = append(evs, e.take(id, ectx, res)...)
		}
		return evs, true
	case types.RefBound:
		id := cmd.Direct.ID
		if state.HasItem(e.State, id) {
			res.Output = append(res.Output, narrative("You already have that."))
			return nil, true
		}
		if !e.takeable(id) {
			if e.hasFallback(cmd.Verb, id) {
				return nil, false
			}
			res.Output = append(res.Output, narrative("You can't take that."))
			return nil, true
		}
		return e.take(id, ectx, res), true
	}
	return nil, false
}

func (e *Engine) take(id string, ectx effects.Context, res *types.Result) []types.Event {
	res.Output = append(res.Output, narrative(fmt.Sprintf("You take the %s.", e.lowerName(id))))
	ectx.ObjectID = id
	return e.apply([]types.Action{{Type: types.ActGiveItem, Params: map[string]any{"item": id}}}, ectx, res)
}

func (e *Engine) builtinDrop(cmd types.Command, ectx effects.Context, res *types.Result) ([]types.Event, bool) {
	var ids []string
	switch cmd.Direct.Kind {
	case types.RefSpecial:
		ids = append(ids, e.State.Player.Inventory...)
		if len(ids) == 0 {
			res.Output = append(res.Output, narrative("You are carrying nothing."))
			return nil, true
		}
	case types.RefBound:
		if !state.HasItem(e.State, cmd.Direct.ID) {
			res.Output = append(res.Output, narrative("You don't have that."))
			return nil, true
		}
		ids = []string{cmd.Direct.ID}
	default:
		return nil, false
	}

	var evs []types.Event
	room := e.State.Player.Location
	for _, id := range ids {
		res.Output = append(res.Output, narrative(fmt.Sprintf("You drop the %s.", e.lowerName(id))))
		evs = append(evs, e.apply([]types.Action{
			{Type: types.ActRemoveItem, Params: map[string]any{"item": id}},
			{Type: types.ActMoveEntity, Params: map[string]any{"entity": id, "room": room}},
		}, ectx, res)...)
	}
	return evs, true
}

func (e *Engine) builtinTalk(cmd types.Command, ectx effects.Context, res *types.Result) ([]types.Event, bool) {
	if cmd.Direct.Kind == types.RefNone {
		res.Output = append(res.Output, narrative("Talk to whom?"))
		return nil, true
	}
	if cmd.Direct.Kind != types.RefBound {
		return nil, false
	}
	npcID := cmd.Direct.ID
	ent, ok := e.Defs.Entities[npcID]
	if !ok || len(ent.Topics) == 0 {
		res.Output = append(res.Output, narrative("You can't talk to that."))
		return nil, true
	}
	state.Touch(&e.State.Touched.NPCs, npcID)
	name := state.EntityName(e.State, e.Defs, npcID)

	available := dialogue.AvailableTopics(npcID, e.State, e.Defs)
	var key string
	if cmd.Indirect.Kind != types.RefNone {
		phrase := cmd.Indirect.Text
		if phrase == "" {
			phrase = cmd.Indirect.ID
		}
		found, ok := dialogue.FindTopic(npcID, phrase, e.State, e.Defs)
		if !ok {
			if len(available) > 0 {
				res.Output = append(res.Output, narrative(fmt.Sprintf(
					"%s has nothing to say about that. You could ask about: %s.",
					name, strings.Join(topicLabels(available), ", "))))
			} else {
				res.Output = append(res.Output, narrative(fmt.Sprintf("%s has nothing to say right now.", name)))
			}
			return nil, true
		}
		key = found
	} else {
		if len(available) == 0 {
			res.Output = append(res.Output, narrative(fmt.Sprintf("%s has nothing to say right now.", name)))
			return nil, true
		}
		key = available[0]
		if slices.Contains(available, "greeting") {
			key = "greeting"
		}
	}

	text, actions := dialogue.SelectTopic(npcID, key, e.State, e.Defs)
	res.Output = append(res.Output, narrative(text))
	ectx.Source = npcID + ":" + key
	return e.apply(actions, ectx, res), true
}

func (e *Engine) scoreLine() string {
	line := fmt.Sprintf("Your score is %d", e.State.Score)
	if e.Defs.Game.MaxScore > 0 {
		line += fmt.Sprintf(" of a possible %d", e.Defs.Game.MaxScore)
	}
	return line + fmt.Sprintf(", in %d moves.", e.State.Moves)
}

func (e *Engine) hintLine() string {
	id, ok := e.puzzles.Active(e.State, e.State.Player.Location)
	if !ok {
		return "There's nothing here you need help with."
	}
	h := e.puzzles.Hint(e.State, id)
	switch {
	case h.OnCooldown:
		return "Give it a little more thought before asking again."
	case h.NoHints:
		return "You're on your own with this one."
	}
	return "Hint: " + h.Hint
}

// describeRoom produces the standard room description output.
func (e *Engine) describeRoom(roomID string) []types.Message {
	room, ok := e.Defs.Rooms[roomID]
	if !ok {
		return []types.Message{narrative("You are somewhere unknown.")}
	}

	var out []types.Message
	if room.Name != "" {
		out = append(out, types.Message{Kind: types.MsgSystem, Text: room.Name})
	}
	out = append(out, narrative(room.Description))

	if ids := e.visible(roomID); len(ids) > 0 {
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			names = append(names, state.EntityName(e.State, e.Defs, id))
		}
		out = append(out, narrative("You see: "+strings.Join(names, ", ")+"."))
	}

	exits := state.RoomExits(e.State, e.Defs, roomID)
	if len(exits) > 0 {
		out = append(out, narrative("Exits: "+strings.Join(sortedKeys(exits), ", ")+"."))
	}
	return out
}

func (e *Engine) inventory() types.Message {
	inv := e.State.Player.Inventory
	if len(inv) == 0 {
		return narrative("You are carrying nothing.")
	}
	names := make([]string, 0, len(inv))
	for _, id := range inv {
		names = append(names, state.EntityName(e.State, e.Defs, id))
	}
	return narrative("You are carrying: " + strings.Join(names, ", ") + ".")
}

// visible lists the non-hidden entities in a room.
func (e *Engine) visible(roomID string) []string {
	var ids []string
	for _, id := range state.EntitiesInRoom(e.State, e.Defs, roomID) {
		if hidden, _ := state.GetEntityProp(e.State, e.Defs, id, "hidden"); hidden == true {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) takeable(id string) bool {
	v, _ := state.GetEntityProp(e.State, e.Defs, id, "takeable")
	return v == true
}

func (e *Engine) prop(id, name string) string {
	v, _ := state.GetEntityProp(e.State, e.Defs, id, name)
	s, _ := v.(string)
	return s
}

func (e *Engine) lowerName(id string) string {
	return strings.ToLower(state.EntityName(e.State, e.Defs, id))
}

func (e *Engine) roomName(id string) string {
	if room, ok := e.Defs.Rooms[id]; ok && room.Name != "" {
		return room.Name
	}
	return id
}

// RoomName is the display name of the player's current room.
func (e *Engine) RoomName() string { return e.roomName(e.State.Player.Location) }

// hasFallback reports whether a scripted fallback exists for verb on id,
// so a built-in refusal does not shadow it.
func (e *Engine) hasFallback(verb, id string) bool {
	_, ok := rules.Fallback(e.State, e.Defs, verb, id)
	return ok
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func topicLabels(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = strings.ReplaceAll(k, "_", " ")
	}
	return out
}
