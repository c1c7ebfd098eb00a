// Package cli provides line-oriented terminal I/O, output formatting, and
// meta-command dispatch for the fablecore engine.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/nathoo/fablecore/engine/schedule"
	"github.com/nathoo/fablecore/session"
	"github.com/nathoo/fablecore/store"
	"github.com/nathoo/fablecore/transcript"
	"github.com/nathoo/fablecore/types"
)

// CLI handles terminal interaction with the player.
type CLI struct {
	Session   *session.Session
	In        io.Reader
	Out       io.Writer
	Trace     bool
	EchoInput bool // echo each input line after the prompt (for script playback)
}

// New creates a CLI wired to the given session.
func New(s *session.Session) *CLI {
	return &CLI{
		Session: s,
		In:      os.Stdin,
		Out:     os.Stdout,
	}
}

// Run shows the intro, then loops: prompt, input, elapsed-time tick,
// dispatch, output. It returns when input ends or the player quits.
func (c *CLI) Run(ctx context.Context) error {
	c.printMessages(c.Session.Intro())

	scanner := bufio.NewScanner(c.In)
	for {
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		// Scheduled actions that came due while the player was typing.
		c.printResult(c.Session.Advance())

		if strings.HasPrefix(input, "/") {
			if c.handleMeta(ctx, input) {
				return nil // /quit
			}
			continue
		}

		result := c.Session.Step(ctx, input)
		c.printResult(result)
		if c.Trace {
			c.printTrace(result)
		}
	}
	return scanner.Err()
}

// handleMeta dispatches meta-commands. Returns true if the game should exit.
func (c *CLI) handleMeta(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	cmd := parts[0]
	arg := strings.TrimSpace(strings.TrimPrefix(input, cmd))

	switch cmd {
	case "/quit", "/exit":
		c.printSystem("Goodbye.")
		return true
	case "/save":
		c.cmdSave(ctx, arg)
	case "/load":
		c.cmdLoad(ctx, arg)
	case "/saves":
		c.cmdSaves(ctx)
	case "/export":
		c.cmdExport(arg)
	case "/stats":
		c.printLines(transcript.StatsLines(c.Session.Engine.FinalStats()))
	case "/help":
		c.printLines(HelpLines())
	case "/state":
		c.cmdState()
	case "/trace":
		c.Trace = !c.Trace
		if c.Trace {
			c.printSystem("Trace output enabled.")
		} else {
			c.printSystem("Trace output disabled.")
		}
	default:
		c.printSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd))
	}
	return false
}

func (c *CLI) cmdSave(ctx context.Context, slot string) {
	name, err := c.Session.Save(ctx, slot)
	if err != nil {
		c.printSystem(fmt.Sprintf("Save failed: %v", err))
		return
	}
	c.printSystem(fmt.Sprintf("Game saved to %s.", name))
}

func (c *CLI) cmdLoad(ctx context.Context, slot string) {
	res, err := c.Session.Load(ctx, slot)
	if errors.Is(err, store.ErrNotFound) {
		c.printSystem("No save by that name. Type /saves to list them.")
		return
	}
	if err != nil {
		c.printSystem(fmt.Sprintf("Load failed: %v", err))
		return
	}
	c.printSystem(fmt.Sprintf("Game loaded (turn %d).", c.Session.Engine.State.TurnCount))
	c.printResult(res)
}

func (c *CLI) cmdSaves(ctx context.Context) {
	slots, err := c.Session.Saves(ctx)
	if err != nil {
		c.printSystem(fmt.Sprintf("Listing saves failed: %v", err))
		return
	}
	if len(slots) == 0 {
		c.printSystem("No saved games.")
		return
	}
	c.printSystem("Saved games: " + strings.Join(slots, ", "))
}

func (c *CLI) cmdExport(path string) {
	if path == "" {
		path = store.Slug(c.Session.Game()) + "-transcript.pdf"
	}
	if err := c.Session.Export(path); err != nil {
		c.printSystem(fmt.Sprintf("Export failed: %v", err))
		return
	}
	c.printSystem(fmt.Sprintf("Transcript written to %s.", path))
}

func (c *CLI) cmdState() {
	s := c.Session.Engine.State
	c.printSystem(fmt.Sprintf("Turn: %d  Moves: %d  Clock: %dms", s.TurnCount, s.Moves, s.Clock))
	c.printSystem(fmt.Sprintf("Location: %s", s.Player.Location))
	c.printSystem(fmt.Sprintf("Inventory: %v", s.Player.Inventory))
	c.printSystem(fmt.Sprintf("Score: %d", s.Score))
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
		c.printSystem("Flags: " + strings.Join(parts, " "))
	}
	if s.Path != "" {
		c.printSystem(fmt.Sprintf("Path: %s", s.Path))
	}
	if next, ok := schedule.Next(s); ok {
		c.printSystem(fmt.Sprintf("Scheduled: %d pending, next at %dms", schedule.Len(s), next))
	}
}

// HelpLines lists the meta-commands and common verbs.
func HelpLines() []string {
	return []string{
		"System:",
		"  /save [slot]    Save game (default: quicksave)",
		"  /load [slot]    Load game (default: quicksave)",
		"  /saves          List saved games",
		"  /export [file]  Write the transcript as a PDF",
		"  /stats          Show score, moves and time",
		"  /quit           Exit game",
		"  /help           Show this help",
		"  /state          Debug: dump current state",
		"  /trace          Toggle debug trace output",
		"",
		"Game commands:",
		"  look (l)              Describe the room",
		"  examine <thing> (x)   Look closely at something",
		"  go <dir>              Move (or just type n/s/e/w/u/d)",
		"  take/get <item>       Pick something up (take all)",
		"  drop <item>           Put something down",
		"  use <item> on <thing> Use an item on something",
		"  talk to <npc>         Talk to someone",
		"  ask <npc> about <topic>",
		"  inventory (i)         Check what you're carrying",
		"  score, hint           How you're doing, and a nudge",
		"  wait (z)              Let time pass",
		"  again (g)             Repeat your last command",
		"  restart               Start over",
	}
}

func (c *CLI) printTrace(result types.Result) {
	if result.Command != nil {
		c.printSystem(fmt.Sprintf("[trace] Command: %s %s", result.Command.Verb, result.Command.Direct.ID))
	}
	if len(result.Actions) > 0 {
		c.printSystem(fmt.Sprintf("[trace] Actions: %d", len(result.Actions)))
		for _, a := range result.Actions {
			c.printSystem(fmt.Sprintf("[trace]   %s %v", a.Type, a.Params))
		}
	}
	if len(result.Events) > 0 {
		c.printSystem(fmt.Sprintf("[trace] Events: %d", len(result.Events)))
		for _, e := range result.Events {
			c.printSystem(fmt.Sprintf("[trace]   %s", e.Type))
		}
	}
	if result.Unscripted {
		c.printSystem("[trace] Unscripted")
	}
}

func (c *CLI) printResult(result types.Result) {
	c.printMessages(result.Output)
	for _, n := range result.Notifications {
		c.printLine("* " + n.Message)
	}
	if result.Ending != nil {
		c.printLine("")
		c.printLines(transcript.StatsLines(*result.Ending))
		c.printSystem("Type restart to play again, or /load a save.")
	}
}

func (c *CLI) printMessages(msgs []types.Message) {
	for _, m := range msgs {
		switch m.Kind {
		case types.MsgSystem:
			c.printSystem(m.Text)
		default:
			c.printLine(m.Text)
		}
	}
}

func (c *CLI) printLines(lines []string) {
	for _, line := range lines {
		c.printLine(line)
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}

func (c *CLI) printSystem(text string) {
	fmt.Fprintf(c.Out, "[%s]\n", text)
}
