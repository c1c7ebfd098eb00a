package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"

	"github.com/nathoo/fablecore/cli"
	"github.com/nathoo/fablecore/engine/schedule"
	"github.com/nathoo/fablecore/session"
	"github.com/nathoo/fablecore/store"
	"github.com/nathoo/fablecore/transcript"
	"github.com/nathoo/fablecore/types"
)

const toastTTL = 4 * time.Second

// rawLine stores an unstyled output line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool // echoed player input
	isSystem bool // host message, shown in brackets
}

type toast struct {
	text  string
	until time.Time
}

// tickMsg drives the game clock between key presses.
type tickMsg time.Time

// Model is the Bubble Tea model for the fablecore TUI.
type Model struct {
	session *session.Session
	ctx     context.Context

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines   []rawLine // accumulated lines (unstyled, for re-wrapping)
	lastOutput []string  // plain text of the latest game output, for /copy
	toasts     []toast

	copyFn func(string) error
	now    func() time.Time
	tick   time.Duration

	width    int
	height   int
	ready    bool
	trace    bool
	quitting bool
}

// New creates a TUI model for s. The game clock advances every tick;
// a zero tick leaves time to the player's commands.
func New(s *session.Session, tick time.Duration) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	m := Model{
		session: s,
		ctx:     context.Background(),
		input:   ti,
		history: NewHistory(100),
		copyFn:  clipboard.WriteAll,
		now:     time.Now,
		tick:    tick,
	}
	g := s.Engine.Defs.Game
	header := g.Title
	if g.Version != "" {
		header += " v" + g.Version
	}
	if g.Author != "" {
		header += " by " + g.Author
	}
	m.rawLines = append(m.rawLines, rawLine{text: header, kind: kindRoomTitle}, rawLine{})
	return m.appendResult("", types.Result{Output: s.Intro()})
}

// Run starts the Bubble Tea program.
func Run(s *session.Session, tick time.Duration) error {
	p := tea.NewProgram(New(s, tick), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// Init starts the cursor blink and the game clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.tickCmd())
}

func (m Model) tickCmd() tea.Cmd {
	if m.tick <= 0 {
		return nil
	}
	return tea.Tick(m.tick, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles key presses, window resizes and clock ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}

		m.refreshViewport()

	case tickMsg:
		res := m.session.Advance()
		if len(res.Output) > 0 || len(res.Notifications) > 0 || res.Ending != nil {
			m = m.appendResult("", res)
		}
		m.pruneToasts()
		return m, m.tickCmd()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			if prev, ok := m.history.Prev(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.Next(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	return m, inputCmd
}

// handleEnter processes the submitted input line.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if input == "" {
		return m, nil
	}
	m.history.Push(input)

	if strings.HasPrefix(input, "/") {
		lines, quit := m.handleMeta(input)
		m = m.appendSystem(input, lines)
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	res := m.session.Step(m.ctx, input)
	m = m.appendResult(input, res)
	return m, nil
}

// appendResult adds a game result to the scrollback.
func (m Model) appendResult(input string, res types.Result) Model {
	if input != "" {
		m.rawLines = append(m.rawLines, rawLine{text: "> " + input, isInput: true})
	}

	var plain []string
	for _, msg := range res.Output {
		m.rawLines = append(m.rawLines, rawLine{text: msg.Text, kind: kindOf(msg)})
		plain = append(plain, msg.Text)
	}
	for _, n := range res.Notifications {
		m.rawLines = append(m.rawLines, rawLine{text: n.Message, kind: kindNotification})
		plain = append(plain, n.Message)
		m.toasts = append(m.toasts, toast{text: toastText(n), until: m.now().Add(toastTTL)})
	}
	if m.trace {
		for _, line := range traceLines(res) {
			m.rawLines = append(m.rawLines, rawLine{text: line, kind: kindTrace})
		}
	}
	if res.Ending != nil {
		m.rawLines = append(m.rawLines, rawLine{})
		for _, line := range transcript.StatsLines(*res.Ending) {
			m.rawLines = append(m.rawLines, rawLine{text: line})
		}
		m.rawLines = append(m.rawLines, rawLine{text: "Type restart to play again, or /load a save.", isSystem: true})
	}
	if len(plain) > 0 {
		m.lastOutput = plain
	}

	// Blank line separator between turns.
	m.rawLines = append(m.rawLines, rawLine{})
	m.refreshViewport()
	return m
}

// appendSystem adds host output for a meta-command.
func (m Model) appendSystem(input string, lines []string) Model {
	m.rawLines = append(m.rawLines, rawLine{text: "> " + input, isInput: true})
	for _, line := range lines {
		m.rawLines = append(m.rawLines, rawLine{text: line, isSystem: true})
	}
	m.rawLines = append(m.rawLines, rawLine{})
	m.refreshViewport()
	return m
}

func toastText(n types.Notification) string {
	if n.Title == "" {
		return n.Message
	}
	if n.Points > 0 {
		return fmt.Sprintf("%s (+%d)", n.Title, n.Points)
	}
	return n.Title
}

func (m Model) activeToast() (string, bool) {
	now := m.now()
	for i := len(m.toasts) - 1; i >= 0; i-- {
		if m.toasts[i].until.After(now) {
			return m.toasts[i].text, true
		}
	}
	return "", false
}

func (m *Model) pruneToasts() {
	now := m.now()
	var kept []toast
	for _, t := range m.toasts {
		if t.until.After(now) {
			kept = append(kept, t)
		}
	}
	m.toasts = kept
}

// refreshViewport re-wraps and re-styles all raw lines at the current width
// and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	width := m.width
	if width < 10 {
		width = 10
	}

	styled := make([]string, 0, len(m.rawLines))
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}

		switch {
		case rl.isInput:
			styled = append(styled, stylePlayerInput.Render(wordwrap.String(rl.text, width)))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wordwrap.String(rl.text, width-2)))
		case rl.kind == kindNotification:
			// Border and padding take four columns.
			styled = append(styled, renderLineKind(wordwrap.String(rl.text, width-4), rl.kind))
		default:
			styled = append(styled, renderLineKind(wordwrap.String(rl.text, width), rl.kind))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// handleMeta dispatches meta-commands. Returns output lines and quit flag.
func (m *Model) handleMeta(input string) ([]string, bool) {
	parts := strings.Fields(input)
	cmd := parts[0]
	arg := strings.TrimSpace(strings.TrimPrefix(input, cmd))

	switch cmd {
	case "/quit", "/exit":
		return []string{"Goodbye."}, true
	case "/save":
		return m.cmdSave(arg), false
	case "/load":
		return m.cmdLoad(arg), false
	case "/saves":
		return m.cmdSaves(), false
	case "/export":
		return m.cmdExport(arg), false
	case "/copy":
		return m.cmdCopy(), false
	case "/stats":
		return transcript.StatsLines(m.session.Engine.FinalStats()), false
	case "/help":
		return helpLines(), false
	case "/state":
		return m.cmdState(), false
	case "/trace":
		m.trace = !m.trace
		if m.trace {
			return []string{"Trace output enabled."}, false
		}
		return []string{"Trace output disabled."}, false
	default:
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)}, false
	}
}

func (m *Model) cmdSave(slot string) []string {
	name, err := m.session.Save(m.ctx, slot)
	if err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}
	return []string{fmt.Sprintf("Game saved to %s.", name)}
}

func (m *Model) cmdLoad(slot string) []string {
	res, err := m.session.Load(m.ctx, slot)
	if errors.Is(err, store.ErrNotFound) {
		return []string{"No save by that name. Type /saves to list them."}
	}
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}
	out := []string{fmt.Sprintf("Game loaded (turn %d).", m.session.Engine.State.TurnCount)}
	for _, msg := range res.Output {
		out = append(out, msg.Text)
	}
	return out
}

func (m *Model) cmdSaves() []string {
	slots, err := m.session.Saves(m.ctx)
	if err != nil {
		return []string{fmt.Sprintf("Listing saves failed: %v", err)}
	}
	if len(slots) == 0 {
		return []string{"No saved games."}
	}
	return []string{"Saved games: " + strings.Join(slots, ", ")}
}

func (m *Model) cmdExport(path string) []string {
	if path == "" {
		path = store.Slug(m.session.Game()) + "-transcript.pdf"
	}
	if err := m.session.Export(path); err != nil {
		return []string{fmt.Sprintf("Export failed: %v", err)}
	}
	return []string{fmt.Sprintf("Transcript written to %s.", path)}
}

func (m *Model) cmdCopy() []string {
	if len(m.lastOutput) == 0 {
		return []string{"Nothing to copy yet."}
	}
	if err := m.copyFn(strings.Join(m.lastOutput, "\n")); err != nil {
		return []string{fmt.Sprintf("Copy failed: %v", err)}
	}
	return []string{"Copied the last output to the clipboard."}
}

func (m *Model) cmdState() []string {
	s := m.session.Engine.State
	out := []string{
		fmt.Sprintf("Turn: %d  Moves: %d  Clock: %dms", s.TurnCount, s.Moves, s.Clock),
		fmt.Sprintf("Location: %s", s.Player.Location),
		fmt.Sprintf("Inventory: %v", s.Player.Inventory),
		fmt.Sprintf("Score: %d", s.Score),
	}
	if len(s.Flags) > 0 {
		keys := make([]string, 0, len(s.Flags))
		for k := range s.Flags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, s.Flags[k])
		}
		out = append(out, "Flags: "+strings.Join(parts, " "))
	}
	if next, ok := schedule.Next(s); ok {
		out = append(out, fmt.Sprintf("Scheduled: %d pending, next at %dms", schedule.Len(s), next))
	}
	return out
}

func helpLines() []string {
	lines := cli.HelpLines()
	return append(lines,
		"",
		"Terminal:",
		"  /copy           Copy the last output to the clipboard",
		"  PgUp/PgDn       Scroll",
		"  Up/Down         Command history",
	)
}

func traceLines(res types.Result) []string {
	var lines []string
	if res.Command != nil {
		lines = append(lines, fmt.Sprintf("[trace] Command: %s %s", res.Command.Verb, res.Command.Direct.ID))
	}
	if len(res.Actions) > 0 {
		lines = append(lines, fmt.Sprintf("[trace] Actions: %d", len(res.Actions)))
		for _, a := range res.Actions {
			lines = append(lines, fmt.Sprintf("[trace]   %s %v", a.Type, a.Params))
		}
	}
	if len(res.Events) > 0 {
		lines = append(lines, fmt.Sprintf("[trace] Events: %d", len(res.Events)))
		for _, e := range res.Events {
			lines = append(lines, fmt.Sprintf("[trace]   %s", e.Type))
		}
	}
	if res.Unscripted {
		lines = append(lines, "[trace] Unscripted")
	}
	return lines
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
