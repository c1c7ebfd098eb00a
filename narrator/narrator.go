// Package narrator answers commands the game has no script for.
package narrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/nathoo/fablecore/types"
)

// Scene is the read-only view of the game handed to a narrator.
type Scene struct {
	Game        string
	Room        string
	Description string
	Visible     []string
	Inventory   []string
	Score       int
	Recent      []string // latest display lines, oldest first
}

// Narrator produces display text for an unscripted command.
type Narrator interface {
	Narrate(ctx context.Context, scene Scene, cmd types.Command) (string, error)
}

// Func adapts a plain function to the Narrator interface.
type Func func(ctx context.Context, scene Scene, cmd types.Command) (string, error)

// Narrate calls f.
func (f Func) Narrate(ctx context.Context, scene Scene, cmd types.Command) (string, error) {
	return f(ctx, scene, cmd)
}

// Prompt renders the scene and command as a single instruction block.
func Prompt(scene Scene, cmd types.Command) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You narrate the text adventure %q.\n", scene.Game)
	b.WriteString("Reply in one or two sentences of second-person prose. ")
	b.WriteString("Do not invent items, exits or progress; the command has no effect on the world.\n\n")
	fmt.Fprintf(&b, "Location: %s\n", scene.Room)
	if scene.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", scene.Description)
	}
	if len(scene.Visible) > 0 {
		fmt.Fprintf(&b, "Visible: %s\n", strings.Join(scene.Visible, ", "))
	}
	if len(scene.Inventory) > 0 {
		fmt.Fprintf(&b, "Carrying: %s\n", strings.Join(scene.Inventory, ", "))
	}
	if len(scene.Recent) > 0 {
		b.WriteString("Recent:\n")
		for _, line := range scene.Recent {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	fmt.Fprintf(&b, "\nThe player typed: %s\n", commandText(cmd))
	return b.String()
}

func commandText(cmd types.Command) string {
	if cmd.Raw != "" {
		return cmd.Raw
	}
	parts := []string{cmd.Verb}
	if t := refText(cmd.Direct); t != "" {
		parts = append(parts, t)
	}
	if cmd.Preposition != "" {
		parts = append(parts, cmd.Preposition)
	}
	if t := refText(cmd.Indirect); t != "" {
		parts = append(parts, t)
	}
	return strings.Join(parts, " ")
}

func refText(r types.ObjectRef) string {
	if r.Text != "" {
		return r.Text
	}
	return r.ID
}
