package tui

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/fablecore/engine"
	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/session"
	"github.com/nathoo/fablecore/store"
	"github.com/nathoo/fablecore/types"
)

func TestRoomDisplayName(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"hall", "Hall"},
		{"great_hall", "Great Hall"},
		{"castle_gates", "Castle Gates"},
		{"tower_top", "Tower Top"},
		{"secret_passage", "Secret Passage"},
	}
	for _, tt := range tests {
		got := roomDisplayName(tt.id)
		if got != tt.want {
			t.Errorf("roomDisplayName(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want lineKind
	}{
		{"You see: rusty key, old book.", kindYouSee},
		{"Exits: north, south, east.", kindExits},
		{"[Game saved to test.]", kindSystem},
		{"[trace] Actions: 2", kindTrace},
		{"A grand hall with stone walls.", kindRoomDesc},
		{"Taken.", kindRoomDesc},
		{"", kindRoomDesc},
		{"'Ah, the adventurer. I wondered when they'd send someone competent.'", kindDialogue},
		{`The keeper says, "Mind the third step."`, kindDialogue},
	}
	for _, tt := range tests {
		got := classifyLine(tt.line)
		if got != tt.want {
			t.Errorf("classifyLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		msg  types.Message
		want lineKind
	}{
		{types.Message{Kind: types.MsgError, Text: "You can't go that way."}, kindError},
		{types.Message{Kind: types.MsgSystem, Text: "Great Hall"}, kindRoomTitle},
		{types.Message{Kind: types.MsgNotification, Text: "Achievement unlocked"}, kindNotification},
		{types.Message{Kind: types.MsgNarrative, Text: "Exits: north."}, kindExits},
	}
	for _, tt := range tests {
		if got := kindOf(tt.msg); got != tt.want {
			t.Errorf("kindOf(%+v) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestContainsQuotedSpeech(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"'Hello, adventurer. Welcome to the castle.'", true},
		{"It's a door.", false},
		{"No quotes here.", false},
		{"'Hi'", false},
		{`"Hi"`, false},
		{"She says 'the crown is lost forever, you must find it.'", true},
		{`He mutters "not again" under his breath.`, true},
	}
	for _, tt := range tests {
		got := containsQuotedSpeech(tt.line)
		if got != tt.want {
			t.Errorf("containsQuotedSpeech(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestHistory_PushAndPrev(t *testing.T) {
	h := NewHistory(5)
	h.Push("look")
	h.Push("go north")
	h.Push("take key")

	for _, want := range []string{"take key", "go north", "look", "look"} {
		prev, ok := h.Prev()
		if !ok || prev != want {
			t.Errorf("expected %q, got %q (ok=%v)", want, prev, ok)
		}
	}
}

func TestHistory_Next(t *testing.T) {
	h := NewHistory(5)
	h.Push("look")
	h.Push("go north")

	h.Prev() // "go north"
	h.Prev() // "look"

	next, ok := h.Next()
	if !ok || next != "go north" {
		t.Errorf("expected 'go north', got %q (ok=%v)", next, ok)
	}

	_, ok = h.Next()
	if ok {
		t.Error("expected false when past newest entry")
	}
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(5)
	if _, ok := h.Prev(); ok {
		t.Error("expected false on empty history")
	}
	if _, ok := h.Next(); ok {
		t.Error("expected false on empty history")
	}
}

func TestHistory_MaxSize(t *testing.T) {
	h := NewHistory(2)
	h.Push("a")
	h.Push("b")
	h.Push("c") // "a" evicted

	if h.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", h.Len())
	}
	for _, want := range []string{"c", "b", "b"} {
		if prev, _ := h.Prev(); prev != want {
			t.Errorf("expected %q, got %q", want, prev)
		}
	}
}

func TestHistory_NoDuplicates(t *testing.T) {
	h := NewHistory(5)
	h.Push("look")
	h.Push("look")
	h.Push("look")

	if h.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", h.Len())
	}
}

func TestHistory_PushResetsCursor(t *testing.T) {
	h := NewHistory(5)
	h.Push("look")
	h.Push("go north")

	h.Prev() // "go north"
	h.Prev() // "look"
	h.Push("take key")

	prev, ok := h.Prev()
	if !ok || prev != "take key" {
		t.Errorf("expected 'take key' after push, got %q", prev)
	}
}

// testDefs returns minimal game definitions for TUI testing.
func testDefs() *state.Defs {
	return &state.Defs{
		Game: types.GameDef{
			Title:    "Test Game",
			Author:   "Test",
			Version:  "1.0",
			Start:    "great_hall",
			Intro:    "Welcome to the test.",
			MaxScore: 10,
		},
		Rooms: map[string]types.RoomDef{
			"great_hall": {
				ID:          "great_hall",
				Description: "A grand hall.",
				Exits:       map[string]string{"north": "garden"},
				Events: []types.EventDef{{
					ID:      "clock",
					Scope:   "room:great_hall",
					Pattern: types.Pattern{Verb: "wait"},
					Actions: []types.Action{{
						Type:    types.ActSchedule,
						Params:  map[string]any{"delay": 2},
						Actions: []types.Action{{Type: types.ActSay, Params: map[string]any{"text": "The clock strikes."}}},
					}},
					Response: "You settle in.",
				}},
			},
			"garden": {
				ID:          "garden",
				Name:        "Walled Garden",
				Description: "A peaceful garden.",
				Exits:       map[string]string{"south": "great_hall"},
			},
		},
		Entities: map[string]types.EntityDef{
			"key": {
				ID:   "key",
				Kind: "item",
				Props: map[string]any{
					"name":        "rusty key",
					"description": "An old key.",
					"location":    "great_hall",
					"takeable":    true,
				},
			},
		},
	}
}

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func newTestModel(t *testing.T) (Model, *fakeClock) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.NewFile(t.TempDir(), logger)
	if err != nil {
		t.Fatal(err)
	}
	clock := &fakeClock{t: time.Unix(1000, 0)}
	eng := engine.New(testDefs(), engine.WithLogger(logger))
	s := session.New(eng, st, session.WithClock(clock.Now), session.WithLogger(logger))
	m := New(s, time.Second)
	m.now = clock.Now
	return m, clock
}

func rawText(m Model) string {
	var b strings.Builder
	for _, rl := range m.rawLines {
		b.WriteString(rl.text)
		b.WriteString("\n")
	}
	return b.String()
}

func enter(t *testing.T, m Model, input string) Model {
	t.Helper()
	m.input.SetValue(input)
	next, _ := m.handleEnter()
	return next.(Model)
}

func TestNew_ShowsHeaderAndIntro(t *testing.T) {
	m, _ := newTestModel(t)
	text := rawText(m)
	for _, want := range []string{"Test Game v1.0 by Test", "Welcome to the test.", "A grand hall."} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in scrollback:\n%s", want, text)
		}
	}
}

func TestView_RendersAfterResize(t *testing.T) {
	m, _ := newTestModel(t)
	if m.View() != "Loading..." {
		t.Fatal("expected loading view before first resize")
	}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	view := next.(Model).View()
	if !strings.Contains(view, "Great Hall") {
		t.Errorf("expected room name in status bar:\n%s", view)
	}
	if !strings.Contains(view, "Score: 0/10") {
		t.Errorf("expected score in status bar:\n%s", view)
	}
}

func TestStatusBar_UsesDeclaredRoomName(t *testing.T) {
	m, _ := newTestModel(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = enter(t, next.(Model), "go north")
	if got := m.currentRoomName(); got != "Walled Garden" {
		t.Errorf("currentRoomName = %q, want Walled Garden", got)
	}
}

func TestHandleEnter_StepsGame(t *testing.T) {
	m, _ := newTestModel(t)
	m = enter(t, m, "take key")
	text := rawText(m)
	if !strings.Contains(text, "> take key") {
		t.Error("expected echoed input")
	}
	if !strings.Contains(text, "You take the rusty key.") {
		t.Errorf("expected take response:\n%s", text)
	}
	if m.history.Len() != 1 {
		t.Errorf("expected input in history, got %d entries", m.history.Len())
	}
}

func TestTick_FiresScheduledActions(t *testing.T) {
	m, clock := newTestModel(t)
	m = enter(t, m, "wait")

	clock.t = clock.t.Add(time.Second)
	next, cmd := m.Update(tickMsg(clock.t))
	m = next.(Model)
	if strings.Contains(rawText(m), "The clock strikes.") {
		t.Fatal("scheduled action fired early")
	}
	if cmd == nil {
		t.Fatal("expected the tick to be re-armed")
	}

	clock.t = clock.t.Add(2 * time.Second)
	next, _ = m.Update(tickMsg(clock.t))
	m = next.(Model)
	if !strings.Contains(rawText(m), "The clock strikes.") {
		t.Errorf("expected scheduled output:\n%s", rawText(m))
	}
}

func TestToasts_Expire(t *testing.T) {
	m, clock := newTestModel(t)
	m = m.appendResult("", types.Result{Notifications: []types.Notification{{
		Kind: "achievement", Title: "Explorer", Message: "Achievement unlocked: Explorer", Points: 5,
	}}})

	got, ok := m.activeToast()
	if !ok || got != "Explorer (+5)" {
		t.Errorf("activeToast = %q, %v", got, ok)
	}

	clock.t = clock.t.Add(toastTTL + time.Second)
	if _, ok := m.activeToast(); ok {
		t.Error("expected toast to expire")
	}
	next, _ := m.Update(tickMsg(clock.t))
	if n := len(next.(Model).toasts); n != 0 {
		t.Errorf("expected expired toasts pruned, got %d", n)
	}
}

func TestHandleMeta_Quit(t *testing.T) {
	m, _ := newTestModel(t)
	for _, cmd := range []string{"/quit", "/exit"} {
		if _, quit := m.handleMeta(cmd); !quit {
			t.Errorf("expected quit=true for %s", cmd)
		}
	}
}

func TestHandleMeta_SaveAndLoad(t *testing.T) {
	m, _ := newTestModel(t)
	m = enter(t, m, "take key")

	output, quit := m.handleMeta("/save test")
	if quit {
		t.Error("save should not quit")
	}
	if len(output) == 0 || output[0] != "Game saved to test." {
		t.Errorf("expected save confirmation, got %v", output)
	}

	m = enter(t, m, "drop key")
	output, _ = m.handleMeta("/load test")
	if len(output) == 0 || !strings.Contains(output[0], "Game loaded (turn 1)") {
		t.Errorf("expected load confirmation, got %v", output)
	}
	if !state.HasItem(m.session.Engine.State, "key") {
		t.Error("expected the key back in inventory")
	}

	output, _ = m.handleMeta("/saves")
	if len(output) == 0 || output[0] != "Saved games: test" {
		t.Errorf("expected slot listing, got %v", output)
	}
}

func TestHandleMeta_LoadNonexistent(t *testing.T) {
	m, _ := newTestModel(t)
	output, quit := m.handleMeta("/load nonexistent")
	if quit {
		t.Error("load should not quit")
	}
	if len(output) == 0 || !strings.Contains(output[0], "No save by that name") {
		t.Errorf("expected missing-save message, got %v", output)
	}
}

func TestHandleMeta_Copy(t *testing.T) {
	m, _ := newTestModel(t)
	var copied string
	m.copyFn = func(s string) error {
		copied = s
		return nil
	}
	m = enter(t, m, "examine key")

	output, _ := m.handleMeta("/copy")
	if len(output) == 0 || !strings.Contains(output[0], "Copied") {
		t.Errorf("expected copy confirmation, got %v", output)
	}
	if !strings.Contains(copied, "An old key.") {
		t.Errorf("expected last output on clipboard, got %q", copied)
	}

	m.copyFn = func(string) error { return errors.New("no clipboard") }
	output, _ = m.handleMeta("/copy")
	if len(output) == 0 || !strings.Contains(output[0], "Copy failed") {
		t.Errorf("expected copy failure, got %v", output)
	}
}

func TestHandleMeta_Help(t *testing.T) {
	m, _ := newTestModel(t)
	output, quit := m.handleMeta("/help")
	if quit {
		t.Error("help should not quit")
	}
	joined := strings.Join(output, "\n")
	for _, expected := range []string{"/save", "/load", "/quit", "/copy", "look", "inventory"} {
		if !strings.Contains(joined, expected) {
			t.Errorf("expected %q in help output", expected)
		}
	}
}

func TestHandleMeta_Trace(t *testing.T) {
	m, _ := newTestModel(t)

	output, _ := m.handleMeta("/trace")
	if !m.trace {
		t.Error("expected trace to be enabled")
	}
	if len(output) == 0 || !strings.Contains(output[0], "enabled") {
		t.Errorf("expected enabled message, got %v", output)
	}

	m = enter(t, m, "take key")
	if !strings.Contains(rawText(m), "[trace] Command: take key") {
		t.Errorf("expected trace lines:\n%s", rawText(m))
	}

	output, _ = m.handleMeta("/trace")
	if m.trace {
		t.Error("expected trace to be disabled")
	}
	if len(output) == 0 || !strings.Contains(output[0], "disabled") {
		t.Errorf("expected disabled message, got %v", output)
	}
}

func TestHandleMeta_Unknown(t *testing.T) {
	m, _ := newTestModel(t)
	output, quit := m.handleMeta("/bogus")
	if quit {
		t.Error("unknown command should not quit")
	}
	if len(output) == 0 || !strings.Contains(output[0], "Unknown command") {
		t.Errorf("expected unknown command message, got %v", output)
	}
}

func TestHandleMeta_State(t *testing.T) {
	m, _ := newTestModel(t)
	m = enter(t, m, "wait")

	joined := strings.Join(func() []string { out, _ := m.handleMeta("/state"); return out }(), "\n")
	for _, want := range []string{"Location: great_hall", "Turn:", "Scheduled: 1 pending"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected %q in state output:\n%s", want, joined)
		}
	}
}

func TestHandleMeta_Stats(t *testing.T) {
	m, _ := newTestModel(t)
	output, _ := m.handleMeta("/stats")
	joined := strings.Join(output, "\n")
	if !strings.Contains(joined, "Score: 0 / 10") {
		t.Errorf("expected score line, got:\n%s", joined)
	}
}
