// Package validate enforces per-verb object arity on parsed commands.
package validate

import (
	"fmt"
	"strings"

	"github.com/nathoo/fablecore/engine/resolve"
	"github.com/nathoo/fablecore/types"
)

// Verbs that never need an object.
var noObjectVerbs = map[string]bool{
	"look": true, "inventory": true, "wait": true, "save": true, "load": true,
	"quit": true, "help": true, "score": true, "restart": true, "hint": true,
}

// Verbs that fail without a direct object.
var objectVerbs = map[string]bool{
	"take": true, "drop": true, "examine": true, "use": true, "open": true,
	"close": true, "read": true, "eat": true, "drink": true,
	"give": true, "put": true, "unlock": true, "wear": true, "remove": true,
	"search": true, "throw": true, "push": true, "pull": true,
}

// Verbs whose preposition demands an indirect object.
var twoObjectVerbs = map[string]bool{
	"give": true, "put": true, "use": true,
}

// Validate normalizes special phrasings and checks the command's shape.
// It returns the (possibly rewritten) command or a categorized error.
func Validate(cmd types.Command) (types.Command, *types.ParseError) {
	cmd = normalize(cmd)

	if cmd.Direct.Kind == types.RefAmbiguous {
		return cmd, ambiguous(cmd.Direct)
	}
	if cmd.Indirect.Kind == types.RefAmbiguous {
		return cmd, ambiguous(cmd.Indirect)
	}

	if noObjectVerbs[cmd.Verb] {
		return cmd, nil
	}

	if cmd.Verb == "go" {
		if cmd.Direct.Kind != types.RefLiteral || cmd.Direct.Text == "" {
			return cmd, &types.ParseError{Kind: types.ErrMissingDir, Message: "Go where?"}
		}
		return cmd, nil
	}

	if objectVerbs[cmd.Verb] && cmd.Direct.Kind == types.RefNone {
		return cmd, &types.ParseError{
			Kind:    types.ErrMissingDirect,
			Message: fmt.Sprintf("What do you want to %s?", cmd.Verb),
		}
	}

	if twoObjectVerbs[cmd.Verb] && cmd.Preposition != "" && cmd.Indirect.Kind == types.RefNone {
		return cmd, &types.ParseError{
			Kind: types.ErrMissingIndirect,
			Message: fmt.Sprintf("%s the %s %s what?",
				capitalize(cmd.Verb), refText(cmd.Direct), cmd.Preposition),
		}
	}

	return cmd, nil
}

// normalize rewrites "look at X" (only the indirect slot filled) so that X
// becomes the direct object and the preposition is cleared.
func normalize(cmd types.Command) types.Command {
	if cmd.Verb == "look" && cmd.Preposition == "at" &&
		cmd.Direct.Kind == types.RefNone && cmd.Indirect.Kind != types.RefNone {
		cmd.Direct = cmd.Indirect
		cmd.Indirect = types.ObjectRef{}
		cmd.Preposition = ""
	}
	return cmd
}

func ambiguous(ref types.ObjectRef) *types.ParseError {
	names := resolve.Names(ref.Candidates)
	return &types.ParseError{
		Kind:       types.ErrAmbiguous,
		Message:    "Which do you mean: " + joinOr(names) + "?",
		Candidates: ref.Candidates,
	}
}

func joinOr(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "the " + n
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	case 2:
		return quoted[0] + " or " + quoted[1]
	default:
		return strings.Join(quoted[:len(quoted)-1], ", ") + " or " + quoted[len(quoted)-1]
	}
}

func refText(ref types.ObjectRef) string {
	if ref.Text != "" {
		return ref.Text
	}
	return ref.ID
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
