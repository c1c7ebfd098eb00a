// Package resolve maps object phrases from a parsed command to references.
package resolve

import (
	"strings"

	"github.com/nathoo/fablecore/engine/vocab"
	"github.com/nathoo/fablecore/types"
)

// Match tiers, best first.
const (
	tierNone = iota
	tierTokens
	tierPrefix
	tierExact
)

// Resolve turns a phrase into an ObjectRef. Pronouns bind to the last
// resolved object, "all"/"everything" become special(all), and otherwise
// the pools are scanned in order. Pools are expected in the fixed order
// room objects, room items, inventory, room NPCs.
func Resolve(phrase string, pools [][]types.Candidate, v *vocab.Vocabulary, conv types.Conversation) types.ObjectRef {
	phrase = strings.TrimSpace(strings.ToLower(phrase))
	if phrase == "" {
		return types.ObjectRef{}
	}

	if v.IsPronoun(phrase) {
		if conv.LastObject != "" {
			return types.Bound(conv.LastObject, phrase)
		}
		return types.Unknown(phrase)
	}

	if special, ok := v.Special(phrase); ok {
		return types.ObjectRef{Kind: types.RefSpecial, Text: special}
	}

	return classify(phrase, Match(phrase, flatten(pools)))
}

// Clarify resolves a follow-up answer against the stored candidate set only.
// A single match binds; several narrow the ambiguity; none is unknown.
func Clarify(text string, candidates []types.Candidate) types.ObjectRef {
	text = strings.TrimSpace(strings.ToLower(text))
	text = strings.TrimPrefix(text, "the ")
	if text == "" {
		return types.Unknown(text)
	}
	return classify(text, Match(text, candidates))
}

// Match returns the candidates that match phrase at the best tier present.
// Order follows the candidate list; duplicate IDs are dropped.
func Match(phrase string, candidates []types.Candidate) []types.Candidate {
	best := tierNone
	var matches []types.Candidate
	seen := map[string]bool{}
	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		tier := matchTier(phrase, c)
		if tier == tierNone {
			continue
		}
		seen[c.ID] = true
		switch {
		case tier > best:
			best = tier
			matches = []types.Candidate{c}
		case tier == best:
			matches = append(matches, c)
		}
	}
	return matches
}

func classify(phrase string, matches []types.Candidate) types.ObjectRef {
	switch len(matches) {
	case 0:
		return types.Unknown(phrase)
	case 1:
		return types.Bound(matches[0].ID, phrase)
	default:
		return types.ObjectRef{Kind: types.RefAmbiguous, Text: phrase, Candidates: matches}
	}
}

// matchTier scores a single candidate: exact name/id, then name-starts-with,
// then every phrase token prefixing some name token in any order.
func matchTier(phrase string, c types.Candidate) int {
	name := strings.ToLower(c.Name)
	id := strings.ToLower(c.ID)

	// Underscore normalization: "rusty key" matches entity ID "rusty_key".
	if name == phrase || id == phrase || id == strings.ReplaceAll(phrase, " ", "_") {
		return tierExact
	}
	if name != "" && strings.HasPrefix(name, phrase) {
		return tierPrefix
	}

	nameTokens := strings.Fields(name)
	if len(nameTokens) == 0 {
		return tierNone
	}
	for _, tok := range strings.Fields(phrase) {
		if !anyPrefix(nameTokens, tok) {
			return tierNone
		}
	}
	return tierTokens
}

func anyPrefix(words []string, prefix string) bool {
	for _, w := range words {
		if strings.HasPrefix(w, prefix) {
			return true
		}
	}
	return false
}

func flatten(pools [][]types.Candidate) []types.Candidate {
	var all []types.Candidate
	for _, p := range pools {
		all = append(all, p...)
	}
	return all
}

// Names returns the display names of candidates, for "which one?" prompts.
func Names(candidates []types.Candidate) []string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
		if names[i] == "" {
			names[i] = c.ID
		}
	}
	return names
}
