// Package schedule keeps the deferred-action queue on the game state.
// Entries are ordered by game-clock timestamp, FIFO on ties, and the
// queue lives inside types.State so it survives save and load.
package schedule

import (
	"sort"
	"time"

	"github.com/nathoo/fablecore/types"
)

// Push enqueues actions to run delay after the current game clock.
// Negative delays run on the next drain.
func Push(s *types.State, delay time.Duration, actions []types.Action, source string) types.ScheduledAction {
	if delay < 0 {
		delay = 0
	}
	entry := types.ScheduledAction{
		At:      s.Clock + delay.Milliseconds(),
		Seq:     s.ScheduleSeq,
		Actions: actions,
		Source:  source,
	}
	s.ScheduleSeq++

	i := sort.Search(len(s.Scheduled), func(i int) bool {
		return before(entry, s.Scheduled[i])
	})
	s.Scheduled = append(s.Scheduled, types.ScheduledAction{})
	copy(s.Scheduled[i+1:], s.Scheduled[i:])
	s.Scheduled[i] = entry
	return entry
}

// PopDue removes and returns the earliest entry whose timestamp is at or
// before the game clock.
func PopDue(s *types.State) (types.ScheduledAction, bool) {
	if len(s.Scheduled) == 0 || s.Scheduled[0].At > s.Clock {
		return types.ScheduledAction{}, false
	}
	entry := s.Scheduled[0]
	s.Scheduled = s.Scheduled[1:]
	return entry, true
}

// PopDueBefore is PopDue restricted to entries enqueued before seq, so a
// drain that started at seq ignores entries pushed while it runs.
func PopDueBefore(s *types.State, seq int64) (types.ScheduledAction, bool) {
	for i, e := range s.Scheduled {
		if e.At > s.Clock {
			break
		}
		if e.Seq < seq {
			s.Scheduled = append(s.Scheduled[:i:i], s.Scheduled[i+1:]...)
			return e, true
		}
	}
	return types.ScheduledAction{}, false
}

// Next reports the timestamp of the earliest pending entry.
func Next(s *types.State) (int64, bool) {
	if len(s.Scheduled) == 0 {
		return 0, false
	}
	return s.Scheduled[0].At, true
}

// Len is the number of pending entries.
func Len(s *types.State) int { return len(s.Scheduled) }

// Cancel drops every pending entry scheduled by source.
func Cancel(s *types.State, source string) int {
	kept := s.Scheduled[:0]
	n := 0
	for _, e := range s.Scheduled {
		if e.Source == source {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.Scheduled = kept
	return n
}

func before(a, b types.ScheduledAction) bool {
	if a.At != b.At {
		return a.At < b.At
	}
	return a.Seq < b.Seq
}
