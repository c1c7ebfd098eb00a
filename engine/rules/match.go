package rules

import (
	"strings"

	"github.com/nathoo/fablecore/types"
)

// Matches checks a trigger pattern against a command. Every pattern field
// is optional; an empty field matches anything.
func Matches(p types.Pattern, cmd types.Command) bool {
	if p.Verb != "" && p.Verb != cmd.Verb {
		return false
	}
	if p.Object != "" && !refMatches(p.Object, cmd.Direct) {
		return false
	}
	if p.Preposition != "" && p.Preposition != cmd.Preposition {
		return false
	}
	if p.Indirect != "" && !refMatches(p.Indirect, cmd.Indirect) {
		return false
	}
	return true
}

// refMatches compares a pattern field with a reference: bound refs match
// by id, literal and special refs by their text.
func refMatches(want string, ref types.ObjectRef) bool {
	switch ref.Kind {
	case types.RefBound:
		return ref.ID == want
	case types.RefLiteral, types.RefSpecial:
		return strings.EqualFold(ref.Text, want)
	default:
		return false
	}
}
