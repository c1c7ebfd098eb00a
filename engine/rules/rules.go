// Package rules implements the trigger matcher: it finds the scripted
// event that answers a command.
package rules

import (
	"sort"

	"github.com/nathoo/fablecore/engine/conditions"
	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/types"
)

// Match searches the event buckets in strict order and returns the first
// event whose pattern and conditions both hold. The bool is false when no
// event matched; the command is then unscripted.
func Match(s *types.State, defs *state.Defs, cmd types.Command) (*types.EventDef, bool) {
	for _, bucket := range collect(s, defs, cmd) {
		if ev := selectEvent(bucket, s, defs, cmd); ev != nil {
			return ev, true
		}
	}
	return nil, false
}

// collect gathers candidate events in resolution order:
// 1. Current room's events
// 2. Direct object's events
// 3. Global events
func collect(s *types.State, defs *state.Defs, cmd types.Command) [][]types.EventDef {
	var buckets [][]types.EventDef

	if room, ok := defs.Rooms[s.Player.Location]; ok && len(room.Events) > 0 {
		buckets = append(buckets, room.Events)
	}

	if cmd.Direct.Kind == types.RefBound {
		if ent, ok := defs.Entities[cmd.Direct.ID]; ok && len(ent.Events) > 0 {
			buckets = append(buckets, ent.Events)
		}
	}

	if len(defs.GlobalEvents) > 0 {
		buckets = append(buckets, defs.GlobalEvents)
	}

	return buckets
}

// selectEvent filters one bucket and returns its winner, or nil.
func selectEvent(events []types.EventDef, s *types.State, defs *state.Defs, cmd types.Command) *types.EventDef {
	var candidates []types.EventDef
	for _, ev := range events {
		if ev.Once && s.FiredEvents[ev.ID] {
			continue
		}
		if !Matches(ev.Pattern, cmd) {
			continue
		}
		if !conditions.All(ev.Conditions, s, defs) {
			continue
		}
		candidates = append(candidates, ev)
	}

	if len(candidates) == 0 {
		return nil
	}

	// Priority (desc) then definition order (asc).
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].SourceOrder < candidates[j].SourceOrder
	})

	return &candidates[0]
}

// MarkFired records a once-only event so it never matches again.
func MarkFired(s *types.State, ev *types.EventDef) {
	if !ev.Once || ev.ID == "" {
		return
	}
	if s.FiredEvents == nil {
		s.FiredEvents = map[string]bool{}
	}
	s.FiredEvents[ev.ID] = true
}

// Fallback returns scripted refusal text for a verb nobody handled.
// Resolution: entity fallback -> room fallback (verb) -> room fallback (default).
func Fallback(s *types.State, defs *state.Defs, verb, objectID string) (string, bool) {
	if objectID != "" {
		if def, ok := defs.Entities[objectID]; ok {
			if fbMap, ok := def.Props["fallbacks"].(map[string]any); ok {
				if text, ok := fbMap[verb].(string); ok {
					return text, true
				}
				if text, ok := fbMap["default"].(string); ok {
					return text, true
				}
			}
		}
	}

	if room, ok := defs.Rooms[s.Player.Location]; ok {
		if text, ok := room.Fallbacks[verb]; ok {
			return text, true
		}
		if text, ok := room.Fallbacks["default"]; ok {
			return text, true
		}
	}

	return "", false
}
