package schedule

import (
	"testing"
	"time"

	"github.com/nathoo/fablecore/types"
)

func tag(source string) []types.Action {
	return []types.Action{{Type: types.ActSay, Params: map[string]any{"text": source}}}
}

func TestPush_OrdersByTimestampThenInsertion(t *testing.T) {
	s := &types.State{}
	Push(s, 3*time.Second, tag("c"), "c")
	Push(s, 1*time.Second, tag("a"), "a")
	Push(s, 3*time.Second, tag("d"), "d")
	Push(s, 2*time.Second, tag("b"), "b")

	var got []string
	for _, e := range s.Scheduled {
		got = append(got, e.Source)
	}
	want := []string{"a", "b", "c", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestPopDue(t *testing.T) {
	s := &types.State{}
	Push(s, 500*time.Millisecond, tag("soon"), "soon")
	Push(s, 2*time.Second, tag("later"), "later")

	if _, ok := PopDue(s); ok {
		t.Fatal("popped before anything was due")
	}

	s.Clock = 1000
	e, ok := PopDue(s)
	if !ok || e.Source != "soon" {
		t.Fatalf("PopDue = %+v, %v; want soon", e, ok)
	}
	if _, ok := PopDue(s); ok {
		t.Fatal("popped an entry that is not due")
	}
	if next, ok := Next(s); !ok || next != 2000 {
		t.Errorf("Next = %d, %v; want 2000", next, ok)
	}
}

func TestDrain_ReentrantPush(t *testing.T) {
	s := &types.State{}
	Push(s, 0, tag("first"), "first")
	s.Clock = 100

	var order []string
	for {
		e, ok := PopDue(s)
		if !ok {
			break
		}
		order = append(order, e.Source)
		if e.Source == "first" {
			Push(s, 0, tag("chained"), "chained")
			Push(s, time.Second, tag("future"), "future")
		}
	}
	if len(order) != 2 || order[1] != "chained" {
		t.Errorf("drain order = %v, want [first chained]", order)
	}
	if Len(s) != 1 {
		t.Errorf("Len = %d, want 1 (future)", Len(s))
	}
}

func TestPopDueBefore(t *testing.T) {
	s := &types.State{}
	Push(s, 0, tag("old"), "old")
	bound := s.ScheduleSeq
	Push(s, 0, tag("new"), "new")
	Push(s, time.Second, tag("later"), "later")

	e, ok := PopDueBefore(s, bound)
	if !ok || e.Source != "old" {
		t.Fatalf("PopDueBefore = %+v, %v; want old", e, ok)
	}
	if _, ok := PopDueBefore(s, bound); ok {
		t.Error("popped an entry queued after the bound")
	}
	if Len(s) != 2 || s.Scheduled[0].Source != "new" {
		t.Errorf("remaining = %+v", s.Scheduled)
	}
}

func TestPush_NegativeDelay(t *testing.T) {
	s := &types.State{Clock: 5000}
	e := Push(s, -time.Second, nil, "x")
	if e.At != 5000 {
		t.Errorf("At = %d, want 5000", e.At)
	}
}

func TestCancel(t *testing.T) {
	s := &types.State{}
	Push(s, time.Second, nil, "bomb")
	Push(s, time.Second, nil, "bell")
	Push(s, 2*time.Second, nil, "bomb")
	if n := Cancel(s, "bomb"); n != 2 {
		t.Errorf("Cancel = %d, want 2", n)
	}
	if Len(s) != 1 || s.Scheduled[0].Source != "bell" {
		t.Errorf("remaining = %+v", s.Scheduled)
	}
}
