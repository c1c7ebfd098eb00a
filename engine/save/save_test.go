package save

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"

	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/types"
)

func testDefs() *state.Defs {
	return &state.Defs{
		Game: types.GameDef{
			Title:   "Test Game",
			Version: "0.1.0",
			Start:   "hall",
		},
		Rooms: map[string]types.RoomDef{
			"hall": {ID: "hall", Description: "A hall."},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	defs := testDefs()
	s := state.NewState(defs)
	s.Player.Location = "cellar"
	s.Player.Inventory = []string{"lamp", "key"}
	s.Flags["door_open"] = true
	s.Flags["coins"] = 3
	s.Score = 42
	s.Clock = 12_500
	s.Path = "stealth"
	s.Factors["trust"] = 1.5
	s.Puzzles["dial"] = types.PuzzleState{
		Started: true, Attempts: 2, CurrentStep: 1, CompletedSteps: []int{0},
		Hints:     types.HintState{Given: 1, LastAt: 9000},
		StepHints: map[int]types.HintState{1: {Given: 2, LastAt: 11_000}},
	}
	s.Achievements = []types.UnlockedAchievement{{ID: "explorer", At: 5000, Turn: 3}}
	s.AchievementProgress["collector"] = 2
	s.Scheduled = []types.ScheduledAction{{
		At: 20_000, Seq: 4, Source: "bomb",
		Actions: []types.Action{{Type: types.ActSay, Params: map[string]any{"text": "Boom."}}},
	}}
	s.ScheduleSeq = 5
	s.FiredEvents["intro"] = true
	last := types.Command{Verb: "take", Direct: types.Bound("lamp", "lamp")}
	s.Conversation = types.Conversation{
		LastObject:  "lamp",
		LastCommand: &last,
		Pending: &types.PendingAmbiguity{
			Command:    types.Command{Verb: "take"},
			Slot:       "direct",
			Phrase:     "key",
			Candidates: []types.Candidate{{ID: "rk1", Name: "red key"}, {ID: "bk1", Name: "blue key"}},
		},
	}
	s.TurnCount = 7
	s.RNGSeed = 99
	s.RNGPosition = 4

	data, err := Save(s, defs)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	sd, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := sd.Check(defs); err != nil {
		t.Fatalf("Check: %v", err)
	}

	restored := state.NewState(defs)
	ApplySave(restored, sd)

	if restored.SessionID != s.SessionID {
		t.Errorf("SessionID = %q, want %q", restored.SessionID, s.SessionID)
	}
	if restored.Player.Location != "cellar" || len(restored.Player.Inventory) != 2 {
		t.Errorf("Player = %+v", restored.Player)
	}
	if !state.FlagTruthy(restored, "door_open") || state.FlagNumber(restored, "coins") != 3 {
		t.Errorf("Flags = %v", restored.Flags)
	}
	if restored.Score != 42 || restored.Clock != 12_500 || restored.Path != "stealth" || restored.Factors["trust"] != 1.5 {
		t.Errorf("progress fields = %d %d %q %v", restored.Score, restored.Clock, restored.Path, restored.Factors)
	}
	ps := restored.Puzzles["dial"]
	if ps.Attempts != 2 || ps.CurrentStep != 1 || len(ps.CompletedSteps) != 1 || ps.Hints.LastAt != 9000 || ps.StepHints[1].Given != 2 {
		t.Errorf("PuzzleState = %+v", ps)
	}
	if !state.HasAchievement(restored, "explorer") || restored.AchievementProgress["collector"] != 2 {
		t.Errorf("achievements = %+v / %v", restored.Achievements, restored.AchievementProgress)
	}
	if len(restored.Scheduled) != 1 || restored.Scheduled[0].At != 20_000 || restored.ScheduleSeq != 5 {
		t.Errorf("Scheduled = %+v", restored.Scheduled)
	}
	if restored.Scheduled[0].Actions[0].Params["text"] != "Boom." {
		t.Errorf("scheduled action = %+v", restored.Scheduled[0].Actions[0])
	}
	if !restored.FiredEvents["intro"] {
		t.Error("FiredEvents lost")
	}
	conv := restored.Conversation
	if conv.LastObject != "lamp" || conv.LastCommand == nil || conv.LastCommand.Direct.ID != "lamp" {
		t.Errorf("Conversation = %+v", conv)
	}
	if conv.Pending == nil || len(conv.Pending.Candidates) != 2 {
		t.Errorf("Pending = %+v", conv.Pending)
	}
	if restored.TurnCount != 7 || restored.RNGSeed != 99 || restored.RNGPosition != 4 {
		t.Errorf("turn/rng = %d %d %d", restored.TurnCount, restored.RNGSeed, restored.RNGPosition)
	}
}

func TestSave_ProducesValidJSON(t *testing.T) {
	defs := testDefs()
	data, err := Save(state.NewState(defs), defs)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if raw["game"] != "Test Game" || raw["format"] != float64(FormatVersion) {
		t.Errorf("header = %v %v", raw["game"], raw["format"])
	}
}

func TestLoad_MissingOptionalFields(t *testing.T) {
	sd, err := Load([]byte(`{"format":1,"game":"Test Game","state":{"player":{"location":"hall"}}}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := sd.State
	if s.Flags == nil || s.Puzzles == nil || s.FiredEvents == nil || s.Player.Inventory == nil || s.Scheduled == nil {
		t.Errorf("nil collections after load: %+v", s)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"garbage", `not json`},
		{"newer format", `{"format":99,"state":{}}`},
		{"no state", `{"format":1}`},
	}
	for _, tt := range tests {
		if _, err := Load([]byte(tt.data)); err == nil {
			t.Errorf("%s: Load succeeded", tt.name)
		}
	}
}

func TestCheck_WrongGame(t *testing.T) {
	sd := &SaveData{Game: "Other", State: &types.State{}}
	err := sd.Check(testDefs())
	if !errors.Is(err, ErrWrongGame) {
		t.Errorf("Check = %v, want ErrWrongGame", err)
	}
}
