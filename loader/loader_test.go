package loader

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/nathoo/fablecore/types"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const fullGame = `
Game {
    title = "Full Test Game",
    author = "Tester",
    start = "entrance",
    max_score = 50,
    win = Flag("crowned"),
    failures = {
        { when = Flag("poisoned"), message = "The poison takes you." },
    },
    default_ending = "crowned",
    failure_ending = "doom",
    milestones = { [25] = "halfway" },
    perfect_score = "flawless",
}
`

const fullWorld = `
local painting = Event "examine_painting" {
    when = { verb = "examine", object = "painting" },
    response = "The king's eyes follow you.",
}

Room "entrance" {
    name = "Entrance",
    description = "A drafty entrance hall.",
    exits = { north = "throne_room", east = "vault" },
    gates = {
        east = { when = HasItem("rusty_key"), blocked = "The vault door is locked." },
    },
    fallbacks = { push = "Nothing here to push." },
    events = { painting },
}

Room "throne_room" {
    description = "An empty throne.",
    exits = { south = "entrance" },
}

Room "vault" {
    description = "Gold everywhere.",
    exits = { west = "entrance" },
}

Item "rusty_key" {
    description = "A rusty key.",
    location = "entrance",
}

Entity "painting" {
    description = "A portrait of the king.",
    location = "entrance",
    fallbacks = { take = "It is bolted to the wall." },
}

local sit = Event "sit_throne" {
    when = { verb = "use", object = "throne" },
    conditions = { "not crowned", InRoom("throne_room") },
    actions = {
        SetFlag("crowned", true),
        AddScore(25, "claimed the throne"),
        Schedule(5, { Say("Trumpets sound.") }),
    },
    once = true,
    priority = 2,
}

Entity "throne" {
    description = "Carved oak.",
    location = "throne_room",
    takeable = false,
    events = { sit },
}

NPC "herald" {
    name = "Herald",
    location = "throne_room",
    topics = {
        greeting = "Hail!",
        crown = {
            text = "The crown is in the vault.",
            requires = { Not(Flag("crowned")) },
            actions = { SetFlag("told_crown", true) },
        },
    },
}

Event "jump" {
    when = { verb = "jump" },
    response = "You hop.",
}

On("item_taken", {
    conditions = { Flag("told_crown") },
    actions = { Unlock("curious") },
})

Puzzle "vault_dial" {
    name = "Vault Dial",
    room = "vault",
    trigger = { verb = "turn", object = "dial" },
    solution = { value = "1234" },
    hints = { "Count up.", "One, two, three, four." },
    hint_cooldown = 30,
    max_attempts = 3,
    points = 10,
    reward = { SetFlag("vault_open", true) },
    on_fail = { Say("An alarm rings.") },
}

Puzzle "ritual" {
    steps = {
        { solution = { verb = "light", item = "candle" }, success = "The candle flares." },
        { solution = { sequence = { "north", "south" } }, points = 5 },
    },
}

Achievement "halfway" { title = "Halfway There", points = 0 }
Achievement "curious" { title = "Curious", hidden = true }
Achievement "collector" { title = "Collector", target = 3 }
Achievement "flawless" { title = "Flawless", meta = 2 }

Ending "crowned" {
    title = "Long Live the King",
    text = "You rule.",
    outcome = "win",
    conditions = { Flag("crowned") },
    achievement = "curious",
}

Ending "doom" { title = "Doom", text = "It ends badly.", outcome = "lose" }
`

func TestLoad_MinimalGame(t *testing.T) {
	defs, err := Load("testdata/minimal", quiet())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if defs.Game.Title != "Minimal Test Game" {
		t.Errorf("Title = %q, want %q", defs.Game.Title, "Minimal Test Game")
	}
	if defs.Game.Start != "hall" {
		t.Errorf("Start = %q, want %q", defs.Game.Start, "hall")
	}
	if defs.Rooms["hall"].Description != "A grand hall." {
		t.Errorf("hall description = %q", defs.Rooms["hall"].Description)
	}
	if defs.Entities["lamp"].Props["takeable"] != true {
		t.Error("lamp should be takeable by default")
	}
}

func TestLoad_MissingDir(t *testing.T) {
	if _, err := Load("testdata/nope", quiet()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestLoad_SampleGame(t *testing.T) {
	defs, err := Load("../games/lighthouse", quiet())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if defs.Game.Title != "The Keeper's Light" || defs.Game.Start != "shore" {
		t.Errorf("Game = %+v", defs.Game)
	}
	if len(defs.Rooms) != 5 {
		t.Errorf("rooms = %d, want 5", len(defs.Rooms))
	}
	if len(defs.Puzzles) != 2 || len(defs.Puzzles["light_lamp"].Steps) != 2 {
		t.Errorf("puzzles = %+v", defs.Puzzles)
	}
	if len(defs.Handlers) != 2 {
		t.Errorf("handlers = %d, want 2", len(defs.Handlers))
	}
	if got := defs.Endings; len(got) != 3 || got[0].ID != "dawn" {
		t.Errorf("endings = %+v", got)
	}
}

func TestLoadSources_FullGame(t *testing.T) {
	defs, err := LoadSources(map[string]string{"game.lua": fullGame, "world.lua": fullWorld}, quiet())
	if err != nil {
		t.Fatalf("LoadSources failed: %v", err)
	}

	g := defs.Game
	if g.Win == nil || g.Win.Expr != "crowned" {
		t.Errorf("Win = %+v", g.Win)
	}
	if len(g.Failures) != 1 || g.Failures[0].Condition.Expr != "poisoned" {
		t.Errorf("Failures = %+v", g.Failures)
	}
	if len(g.Milestones) != 1 || g.Milestones[0].Threshold != 25 || g.Milestones[0].Achievement != "halfway" {
		t.Errorf("Milestones = %+v", g.Milestones)
	}

	entrance := defs.Rooms["entrance"]
	if entrance.ExitBlocked["east"] != "The vault door is locked." {
		t.Errorf("ExitBlocked = %v", entrance.ExitBlocked)
	}
	if entrance.ExitConditions["east"].Type != "has_item" {
		t.Errorf("ExitConditions = %v", entrance.ExitConditions)
	}
	if len(entrance.Events) != 1 || entrance.Events[0].Scope != "room:entrance" {
		t.Fatalf("entrance events = %+v", entrance.Events)
	}

	throne := defs.Entities["throne"]
	if len(throne.Events) != 1 {
		t.Fatalf("throne events = %+v", throne.Events)
	}
	sit := throne.Events[0]
	if sit.Scope != "entity:throne" || !sit.Once || sit.Priority != 2 {
		t.Errorf("sit_throne = %+v", sit)
	}
	if len(sit.Conditions) != 2 || sit.Conditions[0].Expr != "not crowned" {
		t.Errorf("sit_throne conditions = %+v", sit.Conditions)
	}
	if len(sit.Actions) != 3 || sit.Actions[2].Type != types.ActSchedule || len(sit.Actions[2].Actions) != 1 {
		t.Errorf("sit_throne actions = %+v", sit.Actions)
	}
	if sit.SourceOrder <= entrance.Events[0].SourceOrder {
		t.Errorf("source order not increasing: %d then %d", entrance.Events[0].SourceOrder, sit.SourceOrder)
	}

	if len(defs.GlobalEvents) != 1 || defs.GlobalEvents[0].ID != "jump" {
		t.Errorf("GlobalEvents = %+v", defs.GlobalEvents)
	}

	herald := defs.Entities["herald"]
	if herald.Kind != "npc" || herald.Topics["greeting"].Text != "Hail!" {
		t.Errorf("herald = %+v", herald)
	}
	crown := herald.Topics["crown"]
	if len(crown.Requires) != 1 || crown.Requires[0].Type != "not" || crown.Requires[0].Inner.Expr != "crowned" {
		t.Errorf("crown requires = %+v", crown.Requires)
	}

	if len(defs.Handlers) != 1 || defs.Handlers[0].EventType != "item_taken" {
		t.Errorf("Handlers = %+v", defs.Handlers)
	}

	dial := defs.Puzzles["vault_dial"]
	if dial.Solution == nil || dial.Solution.Value != "1234" {
		t.Errorf("dial solution = %+v", dial.Solution)
	}
	if dial.HintCooldown != 30000 || dial.MaxAttempts != 3 || dial.Points != 10 {
		t.Errorf("dial = %+v", dial)
	}
	if dial.Trigger.Verb != "turn" || len(dial.FailureConsequence) != 1 {
		t.Errorf("dial trigger/on_fail = %+v / %+v", dial.Trigger, dial.FailureConsequence)
	}
	ritual := defs.Puzzles["ritual"]
	if len(ritual.Steps) != 2 || ritual.Steps[1].Solution.Sequence[1] != "south" || ritual.Steps[1].Points != 5 {
		t.Errorf("ritual steps = %+v", ritual.Steps)
	}
	if got := strings.Join(defs.PuzzleOrder, ","); got != "vault_dial,ritual" {
		t.Errorf("PuzzleOrder = %s", got)
	}

	if got := strings.Join(defs.AchievementOrder, ","); got != "halfway,curious,collector,flawless" {
		t.Errorf("AchievementOrder = %s", got)
	}
	if !defs.Achievements["curious"].Hidden || defs.Achievements["collector"].Target != 3 || defs.Achievements["flawless"].Meta != 2 {
		t.Errorf("achievements = %+v", defs.Achievements)
	}

	if len(defs.Endings) != 2 || defs.Endings[0].ID != "crowned" || defs.Endings[1].Outcome != "lose" {
		t.Errorf("Endings = %+v", defs.Endings)
	}
}

func TestLoadSources_InvalidRefs(t *testing.T) {
	src := `
Game { title = "Broken", start = "nowhere" }
Room "hall" { description = "Hall.", exits = { north = "void" } }
Event "give" { when = { verb = "take" }, actions = { GiveItem("ghost") } }
`
	_, err := LoadSources(map[string]string{"game.lua": src}, quiet())
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, want := range []string{`start room "nowhere"`, `undefined room "void"`, `undefined entity "ghost"`} {
		found := false
		for _, e := range ve.Errors {
			if strings.Contains(e, want) {
				found = true
			}
		}
		if !found {
			t.Errorf("missing error containing %s in %v", want, ve.Errors)
		}
	}
}

func TestLoadSources_DuplicateEventIDs(t *testing.T) {
	src := `
Game { title = "Dup", start = "hall" }
Room "hall" { description = "Hall." }
Event "a" { response = "one" }
Event "a" { response = "two" }
`
	_, err := LoadSources(map[string]string{"game.lua": src}, quiet())
	if err == nil || !strings.Contains(err.Error(), `duplicate event ID "a"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadSources_BadLuaSyntax(t *testing.T) {
	_, err := LoadSources(map[string]string{"game.lua": `Game { title = `}, quiet())
	if err == nil || !strings.Contains(err.Error(), "game.lua") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadSources_NoGameDef(t *testing.T) {
	_, err := LoadSources(map[string]string{"rooms.lua": `Room "hall" { description = "x" }`}, quiet())
	if err == nil || !strings.Contains(err.Error(), "no Game{}") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadSources_SandboxEnforced(t *testing.T) {
	for _, src := range []string{
		`os.exit(1)`,
		`io.open("/etc/passwd")`,
		`require("socket")`,
		`dofile("x.lua")`,
		`math.randomseed(42)`,
	} {
		if _, err := LoadSources(map[string]string{"game.lua": src}, quiet()); err == nil {
			t.Errorf("%s: expected sandbox error", src)
		}
	}
}

func TestLoadSources_FileOrdering(t *testing.T) {
	// rooms.lua reads a global that only game.lua defines.
	sources := map[string]string{
		"a_rooms.lua": `Room "hall" { description = START_TEXT }`,
		"game.lua":    `START_TEXT = "Set by game.lua." Game { title = "Order", start = "hall" }`,
	}
	defs, err := LoadSources(sources, quiet())
	if err != nil {
		t.Fatalf("LoadSources failed: %v", err)
	}
	if defs.Rooms["hall"].Description != "Set by game.lua." {
		t.Errorf("description = %q", defs.Rooms["hall"].Description)
	}
}

func TestLoadSources_WarningsLogged(t *testing.T) {
	var buf strings.Builder
	src := `
Game { title = "Warn", start = "hall" }
Room "hall" { description = "Hall." }
Item "coin" { location = "attic" }
`
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	if _, err := LoadSources(map[string]string{"game.lua": src}, WithLogger(logger)); err != nil {
		t.Fatalf("LoadSources failed: %v", err)
	}
	if !strings.Contains(buf.String(), "attic") {
		t.Errorf("expected warning about attic, got %q", buf.String())
	}
}
