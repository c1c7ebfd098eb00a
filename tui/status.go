package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nathoo/fablecore/engine/state"
)

var titleCase = cases.Title(language.English)

// roomDisplayName derives a readable name from a room ID.
// "great_hall" -> "Great Hall".
func roomDisplayName(id string) string {
	return titleCase.String(strings.ReplaceAll(id, "_", " "))
}

// currentRoomName prefers the room's declared name and falls back to
// a title-cased id.
func (m Model) currentRoomName() string {
	eng := m.session.Engine
	name := eng.RoomName()
	if name == "" || name == eng.State.Player.Location {
		return roomDisplayName(eng.State.Player.Location)
	}
	return name
}

// renderStatusBar produces a full-width inverted status line showing the
// current room, exits, inventory, score and moves. An active toast
// replaces the bar until it expires.
func (m Model) renderStatusBar() string {
	if t, ok := m.activeToast(); ok {
		return styleToastBar.Width(m.width).Render(" " + t)
	}

	eng := m.session.Engine
	s := eng.State

	exits := state.RoomExits(s, eng.Defs, s.Player.Location)
	dirs := make([]string, 0, len(exits))
	for dir := range exits {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	left := fmt.Sprintf(" %s | Exits: %s", m.currentRoomName(), strings.Join(dirs, ","))

	score := fmt.Sprintf("Score: %d", s.Score)
	if maxScore := eng.Defs.Game.MaxScore; maxScore > 0 {
		score = fmt.Sprintf("Score: %d/%d", s.Score, maxScore)
	}
	right := fmt.Sprintf("%s | Moves: %d ", score, s.Moves)

	// Show inventory items if they fit, otherwise just count.
	if n := len(s.Player.Inventory); n > 0 {
		names := make([]string, 0, n)
		for _, id := range s.Player.Inventory {
			names = append(names, state.EntityName(s, eng.Defs, id))
		}
		candidate := fmt.Sprintf("Inv: %s | %s", strings.Join(names, ", "), right)
		if lipgloss.Width(left)+lipgloss.Width(candidate)+2 < m.width {
			right = candidate
		} else {
			right = fmt.Sprintf("Inv: %d | %s", n, right)
		}
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}
