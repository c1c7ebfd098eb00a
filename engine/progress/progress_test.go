package progress

import (
	"testing"

	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/types"
)

func testDefs() *state.Defs {
	return &state.Defs{
		Game: types.GameDef{
			Start:    "hall",
			MaxScore: 300,
			Milestones: []types.Milestone{
				{Threshold: 200, Achievement: "score_200"},
				{Threshold: 100, Achievement: "score_100"},
			},
			PerfectScore:  "perfect",
			Win:           &types.Condition{Expr: "crown_taken"},
			Failures:      []types.FailureDef{{Condition: types.Condition{Expr: "eaten"}, Message: "The grue got you."}},
			DefaultEnding: "plain",
		},
		Achievements: map[string]types.AchievementDef{
			"score_100": {ID: "score_100", Title: "Centurion"},
			"score_200": {ID: "score_200", Title: "Double Centurion"},
			"perfect":   {ID: "perfect", Title: "Perfect"},
			"explorer":  {ID: "explorer", Title: "Explorer", Points: 15},
			"collector": {ID: "collector", Title: "Collector", Target: 3},
			"veteran":   {ID: "veteran", Title: "Veteran", Meta: 3},
			"royal":     {ID: "royal", Title: "Royal"},
		},
		AchievementOrder: []string{"score_100", "score_200", "perfect", "explorer", "collector", "veteran", "royal"},
		Endings: []types.EndingDef{
			{ID: "humble", Title: "Humble", Priority: 5, Conditions: []types.Condition{{Expr: "crown_taken"}}},
			{ID: "regal", Title: "Regal", Priority: 10, Achievement: "royal", Outcome: "win",
				Conditions: []types.Condition{{Expr: "crown_taken"}, {Expr: "wearing_robe"}}},
			{ID: "twin", Title: "Twin", Priority: 10, Conditions: []types.Condition{{Expr: "crown_taken"}, {Expr: "wearing_robe"}}},
		},
	}
}

func setup() (*Tracker, *types.State) {
	defs := testDefs()
	return New(defs, nil), state.NewState(defs)
}

func count(s *types.State, id string) int {
	n := 0
	for _, a := range s.Achievements {
		if a.ID == id {
			n++
		}
	}
	return n
}

func TestAddScore_ClampsAtZero(t *testing.T) {
	tr, s := setup()
	tr.AddScore(s, 10, "x")
	tr.AddScore(s, -50, "y")
	if s.Score != 0 {
		t.Errorf("Score = %d, want 0", s.Score)
	}
}

func TestAddScore_MilestoneOnce(t *testing.T) {
	tr, s := setup()
	tr.AddScore(s, 90, "start")
	if state.HasAchievement(s, "score_100") {
		t.Fatal("score_100 unlocked below threshold")
	}
	tr.AddScore(s, 20, "cross") // 90 -> 110
	if count(s, "score_100") != 1 {
		t.Fatalf("score_100 count = %d, want 1", count(s, "score_100"))
	}
	tr.AddScore(s, 40, "more") // 110 -> 150
	tr.AddScore(s, 50, "more") // 150 -> 200
	if count(s, "score_100") != 1 {
		t.Errorf("score_100 re-fired: %d", count(s, "score_100"))
	}
	if count(s, "score_200") != 1 {
		t.Errorf("score_200 count = %d, want 1", count(s, "score_200"))
	}
}

func TestAddScore_OneUpdateCrossesSeveral(t *testing.T) {
	tr, s := setup()
	tr.AddScore(s, 250, "jackpot")
	if !state.HasAchievement(s, "score_100") || !state.HasAchievement(s, "score_200") {
		t.Errorf("achievements = %+v", s.Achievements)
	}
}

func TestAddScore_DropAndRecrossDoesNotRefire(t *testing.T) {
	tr, s := setup()
	tr.AddScore(s, 110, "a")
	tr.AddScore(s, -30, "b")
	tr.AddScore(s, 30, "c")
	if count(s, "score_100") != 1 {
		t.Errorf("score_100 count = %d", count(s, "score_100"))
	}
}

func TestAddScore_PerfectScore(t *testing.T) {
	tr, s := setup()
	tr.AddScore(s, 299, "almost")
	if state.HasAchievement(s, "perfect") {
		t.Fatal("perfect before max")
	}
	tr.AddScore(s, 1, "there")
	if !state.HasAchievement(s, "perfect") {
		t.Error("perfect not unlocked at max score")
	}
}

func TestUnlock_IdempotentAndGrantsPoints(t *testing.T) {
	tr, s := setup()
	if !tr.Unlock(s, "explorer") {
		t.Fatal("first unlock returned false")
	}
	if tr.Unlock(s, "explorer") {
		t.Error("second unlock returned true")
	}
	if s.Score != 15 {
		t.Errorf("Score = %d, want 15", s.Score)
	}
	if tr.Unlock(s, "nonexistent") {
		t.Error("unknown achievement unlocked")
	}

	notes, events, _ := tr.Drain()
	if len(events) != 1 || events[0].Type != "achievement_unlocked" {
		t.Errorf("events = %+v", events)
	}
	if len(notes) != 2 { // achievement + score
		t.Errorf("notifications = %+v", notes)
	}
}

func TestUnlock_PointsTriggerMilestones(t *testing.T) {
	tr, s := setup()
	tr.AddScore(s, 90, "start")
	tr.Unlock(s, "explorer") // +15 crosses 100
	if !state.HasAchievement(s, "score_100") {
		t.Error("milestone not reached through achievement points")
	}
}

func TestMetaAchievement(t *testing.T) {
	tr, s := setup()
	tr.Unlock(s, "explorer")
	tr.Unlock(s, "royal")
	if state.HasAchievement(s, "veteran") {
		t.Fatal("veteran after two")
	}
	tr.Unlock(s, "perfect")
	if !state.HasAchievement(s, "veteran") {
		t.Error("veteran not unlocked after three")
	}
}

func TestAddProgress(t *testing.T) {
	tr, s := setup()
	if tr.AddProgress(s, "collector", 2) {
		t.Fatal("unlocked early")
	}
	if !tr.AddProgress(s, "collector", 1) {
		t.Fatal("not unlocked at target")
	}
	if tr.AddProgress(s, "collector", 1) {
		t.Error("unlocked twice")
	}
	if tr.AddProgress(s, "explorer", 1) {
		t.Error("progress on non-progressive achievement")
	}
}

func TestResolveEnding(t *testing.T) {
	tr, s := setup()
	if got := tr.ResolveEnding(s); got != "plain" {
		t.Errorf("no endings satisfied = %q, want plain", got)
	}
	s.Flags["crown_taken"] = true
	if got := tr.ResolveEnding(s); got != "humble" {
		t.Errorf("ResolveEnding = %q, want humble", got)
	}
	s.Flags["wearing_robe"] = true
	if got := tr.ResolveEnding(s); got != "regal" {
		t.Errorf("priority 10 over 5: got %q, want regal (first of tied)", got)
	}
}

func TestCheckCompletion_Win(t *testing.T) {
	tr, s := setup()
	if tr.CheckCompletion(s) != nil {
		t.Fatal("ended without win condition")
	}
	s.Flags["crown_taken"] = true
	s.Flags["wearing_robe"] = true
	s.Moves = 12
	s.Clock = 60_000
	s.Touched.Items = []string{"crown", "robe"}

	stats := tr.CheckCompletion(s)
	if stats == nil {
		t.Fatal("no final stats")
	}
	if stats.Ending != "regal" || stats.Title != "Regal" || stats.Outcome != "win" {
		t.Errorf("stats = %+v", stats)
	}
	if stats.Moves != 12 || stats.ElapsedMS != 60_000 || stats.ItemsFound != 2 || stats.RoomsVisited != 1 {
		t.Errorf("stats counts = %+v", stats)
	}
	if !s.Ended || !state.HasAchievement(s, "royal") {
		t.Error("ending did not mark state or unlock its achievement")
	}
	if tr.CheckCompletion(s) != nil {
		t.Error("ended twice")
	}
}

func TestCheckCompletion_Failure(t *testing.T) {
	tr, s := setup()
	s.Flags["eaten"] = true
	stats := tr.CheckCompletion(s)
	if stats == nil || stats.Ending != FailureEnding || stats.Outcome != "lose" || stats.Title != "Game Over" {
		t.Fatalf("stats = %+v", stats)
	}
	_, _, msgs := tr.Drain()
	if len(msgs) != 1 || msgs[0].Text != "The grue got you." {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestCheckCompletion_WinBeatsFailure(t *testing.T) {
	tr, s := setup()
	s.Flags["eaten"] = true
	s.Flags["crown_taken"] = true
	if stats := tr.CheckCompletion(s); stats == nil || stats.Ending != "humble" {
		t.Errorf("stats = %+v, want humble", stats)
	}
}

func TestEndGame(t *testing.T) {
	tr, s := setup()
	tr.EndGame(s, "")
	if !s.Ended || s.Ending != "plain" {
		t.Errorf("Ended = %v, Ending = %q", s.Ended, s.Ending)
	}
	tr.EndGame(s, "regal")
	if s.Ending != "plain" {
		t.Error("second EndGame replaced the ending")
	}
}
