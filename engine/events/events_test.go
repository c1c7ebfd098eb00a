package events

import (
	"testing"

	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/types"
)

func sayAction(text string) types.Action {
	return types.Action{Type: types.ActSay, Params: map[string]any{"text": text}}
}

func testDefs() *state.Defs {
	return &state.Defs{
		Game: types.GameDef{Start: "hall"},
		Handlers: []types.EventHandler{
			{
				EventType: "item_taken",
				Actions:   []types.Action{sayAction("You feel richer.")},
			},
			{
				EventType:  "room_entered",
				Conditions: []types.Condition{{Expr: "alarm_armed"}},
				Actions:    []types.Action{sayAction("An alarm sounds!")},
			},
			{
				EventType: "room_entered:cellar",
				Actions:   []types.Action{sayAction("It is damp down here.")},
			},
		},
	}
}

func TestDispatch_MatchesEventType(t *testing.T) {
	defs := testDefs()
	s := state.NewState(defs)
	got := Dispatch([]types.Event{{Type: "item_taken", Data: map[string]any{"item": "coin"}}}, s, defs)
	if len(got) != 1 || got[0].Params["text"] != "You feel richer." {
		t.Errorf("actions = %+v", got)
	}
}

func TestDispatch_SkipsNonMatchingEventType(t *testing.T) {
	defs := testDefs()
	s := state.NewState(defs)
	if got := Dispatch([]types.Event{{Type: "flag_changed"}}, s, defs); len(got) != 0 {
		t.Errorf("actions = %+v, want none", got)
	}
}

func TestDispatch_ConditionGates(t *testing.T) {
	defs := testDefs()
	s := state.NewState(defs)
	ev := []types.Event{{Type: "room_entered", Data: map[string]any{"room": "attic"}}}
	if got := Dispatch(ev, s, defs); len(got) != 0 {
		t.Fatalf("actions with condition false = %+v", got)
	}
	s.Flags["alarm_armed"] = true
	if got := Dispatch(ev, s, defs); len(got) != 1 {
		t.Errorf("actions with condition true = %+v", got)
	}
}

func TestDispatch_SubjectFilter(t *testing.T) {
	defs := testDefs()
	s := state.NewState(defs)
	got := Dispatch([]types.Event{{Type: "room_entered", Data: map[string]any{"room": "cellar"}}}, s, defs)
	if len(got) != 1 || got[0].Params["text"] != "It is damp down here." {
		t.Errorf("actions = %+v", got)
	}
}

func TestDispatch_MultipleEventsSinglePass(t *testing.T) {
	defs := testDefs()
	s := state.NewState(defs)
	evs := []types.Event{
		{Type: "item_taken", Data: map[string]any{"item": "a"}},
		{Type: "item_taken", Data: map[string]any{"item": "b"}},
	}
	if got := Dispatch(evs, s, defs); len(got) != 2 {
		t.Errorf("actions = %d, want 2", len(got))
	}
}

func TestDispatch_NoHandlers(t *testing.T) {
	defs := &state.Defs{}
	s := state.NewState(defs)
	if got := Dispatch([]types.Event{{Type: "item_taken"}}, s, defs); got != nil {
		t.Errorf("actions = %+v", got)
	}
}

func TestMatches(t *testing.T) {
	ev := types.Event{Type: "flag_changed", Data: map[string]any{"flag": "lit"}}
	if !Matches("flag_changed", ev) || !Matches("flag_changed:lit", ev) {
		t.Error("expected match")
	}
	if Matches("flag_changed:dark", ev) || Matches("item_taken", ev) {
		t.Error("unexpected match")
	}
}
