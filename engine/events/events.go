// Package events implements single-pass event handler dispatch.
// Event handlers produce additional actions but do not recurse.
package events

import (
	"strings"

	"github.com/nathoo/fablecore/engine/conditions"
	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/types"
)

// Data keys consulted, in order, for "type:subject" handler filters.
var subjectKeys = []string{"room", "item", "flag", "id", "puzzle", "ending", "entity", "path"}

// Dispatch runs event handlers against the emitted events. Single pass,
// no recursion. Returns the actions produced by matching handlers.
func Dispatch(evs []types.Event, s *types.State, defs *state.Defs) []types.Action {
	var result []types.Action

	for _, ev := range evs {
		for _, handler := range defs.Handlers {
			if !Matches(handler.EventType, ev) {
				continue
			}
			if !conditions.All(handler.Conditions, s, defs) {
				continue
			}
			result = append(result, handler.Actions...)
		}
	}

	return result
}

// Matches reports whether a handler's event type selects an event.
// "room_entered" matches every room; "room_entered:cellar" only the cellar.
func Matches(handlerType string, ev types.Event) bool {
	typ, subject, filtered := strings.Cut(handlerType, ":")
	if typ != ev.Type {
		return false
	}
	if !filtered {
		return true
	}
	for _, key := range subjectKeys {
		if v, ok := ev.Data[key].(string); ok {
			return v == subject
		}
	}
	return false
}
