// Package parser converts command strings into structured Commands.
// Intentionally dumb: no NLP, just a fixed verb/object grammar.
//
// The parser holds only static vocabulary. Conversational state (pronoun
// binding, pending ambiguity, last command) is passed in and returned.
package parser

import (
	"fmt"
	"strings"

	"github.com/nathoo/fablecore/engine/resolve"
	"github.com/nathoo/fablecore/engine/validate"
	"github.com/nathoo/fablecore/engine/vocab"
	"github.com/nathoo/fablecore/types"
)

// Verbs whose direct object is plain text rather than a world object.
var literalDirectVerbs = map[string]bool{
	"enter": true, "save": true, "load": true,
}

// Prepositions after which the indirect object is a topic, not a thing.
var topicPrepositions = map[string]bool{
	"about": true,
}

// Result is the tagged outcome of a parse: a Command or an error.
type Result struct {
	Command types.Command
	Err     *types.ParseError
}

// OK reports whether the parse produced a command.
func (r Result) OK() bool { return r.Err == nil }

// Parser is stateless apart from its vocabulary.
type Parser struct {
	Vocab *vocab.Vocabulary
}

// New creates a parser; a nil vocabulary means vocab.Default().
func New(v *vocab.Vocabulary) *Parser {
	if v == nil {
		v = vocab.Default()
	}
	return &Parser{Vocab: v}
}

// Parse converts raw input into a Command, resolving object phrases
// against the given pools. Starting a parse discards any pending ambiguity.
func (p *Parser) Parse(input string, pools [][]types.Candidate, conv types.Conversation) (Result, types.Conversation) {
	conv.Pending = nil

	raw := strings.ToLower(strings.TrimSpace(input))
	if raw == "again" || raw == "g" {
		if conv.LastCommand == nil {
			return fail(types.ErrNoPrevious, "There is no previous command to repeat."), conv
		}
		return Result{Command: cloneCommand(*conv.LastCommand)}, conv
	}

	tokens := p.Vocab.Normalize(input)
	if len(tokens) == 0 {
		return fail(types.ErrEmptyInput, "What do you want to do?"), conv
	}

	tokens, mods := p.extractModifiers(tokens)
	if len(tokens) == 0 {
		return fail(types.ErrEmptyInput, "What do you want to do?"), conv
	}

	// Direction shortcut: bare "north" (or "n", already expanded) -> go north.
	if len(tokens) == 1 && p.Vocab.IsDirection(tokens[0]) {
		tokens = []string{"go", tokens[0]}
	}

	verb, rest, ok := p.extractVerb(tokens)
	if !ok {
		return fail(types.ErrUnknownVerb, fmt.Sprintf("I don't know the word %q.", tokens[0])), conv
	}

	cmd := types.Command{Verb: verb, Modifiers: mods, Raw: strings.TrimSpace(input)}
	rest = p.stripArticles(rest)

	direct, prep, indirect := p.splitOnPreposition(rest)
	cmd.Preposition = prep
	cmd.Direct = p.resolveDirect(verb, direct, pools, conv)
	cmd.Indirect = p.resolveIndirect(prep, indirect, pools, conv)

	cmd, verr := validate.Validate(cmd)
	if verr != nil {
		if verr.Kind == types.ErrAmbiguous {
			conv.Pending = pendingFor(cmd)
		}
		return Result{Command: cmd, Err: verr}, conv
	}

	return Result{Command: cmd}, remember(conv, cmd)
}

// Clarify answers a pending "which one?" question. The answer is matched
// only against the stored candidates. The bool is false when the text did
// not match any of them; the caller should then parse it as a new command.
func (p *Parser) Clarify(input string, conv types.Conversation) (Result, types.Conversation, bool) {
	pending := conv.Pending
	if pending == nil {
		return Result{}, conv, false
	}

	words := p.stripArticles(p.Vocab.Normalize(input))
	words = dropWords(words, "one", "ones")
	ref := resolve.Clarify(strings.Join(words, " "), pending.Candidates)

	switch ref.Kind {
	case types.RefBound:
		cmd := pending.Command
		if pending.Slot == "indirect" {
			cmd.Indirect = ref
		} else {
			cmd.Direct = ref
		}
		conv.Pending = nil
		cmd, verr := validate.Validate(cmd)
		if verr != nil {
			if verr.Kind == types.ErrAmbiguous {
				conv.Pending = pendingFor(cmd)
			}
			return Result{Command: cmd, Err: verr}, conv, true
		}
		return Result{Command: cmd}, remember(conv, cmd), true

	case types.RefAmbiguous:
		narrowed := *pending
		narrowed.Candidates = ref.Candidates
		conv.Pending = &narrowed
		cmd := pending.Command
		if pending.Slot == "indirect" {
			cmd.Indirect = ref
		} else {
			cmd.Direct = ref
		}
		_, verr := validate.Validate(cmd)
		return Result{Command: cmd, Err: verr}, conv, true

	default:
		return Result{}, conv, false
	}
}

// extractVerb tries multi-word verbs longest first, then single words.
func (p *Parser) extractVerb(tokens []string) (string, []string, bool) {
	max := vocab.MaxVerbWords
	if len(tokens) < max {
		max = len(tokens)
	}
	for n := max; n >= 1; n-- {
		phrase := strings.Join(tokens[:n], " ")
		if verb, ok := p.Vocab.Canonical(phrase); ok {
			return verb, tokens[n:], true
		}
	}
	return "", nil, false
}

func (p *Parser) extractModifiers(words []string) ([]string, []string) {
	var kept, mods []string
	for _, w := range words {
		if p.Vocab.IsModifier(w) {
			mods = append(mods, w)
			continue
		}
		kept = append(kept, w)
	}
	return kept, mods
}

// stripArticles removes articles ("the", "a", "an") from the word list.
func (p *Parser) stripArticles(words []string) []string {
	result := make([]string, 0, len(words))
	for _, w := range words {
		if !p.Vocab.IsArticle(w) {
			result = append(result, w)
		}
	}
	return result
}

// splitOnPreposition splits words on the first preposition.
// Words before the preposition become the direct phrase, words after the indirect phrase.
func (p *Parser) splitOnPreposition(words []string) (direct, prep, indirect string) {
	for i, w := range words {
		if p.Vocab.IsPreposition(w) {
			return strings.Join(words[:i], " "), w, strings.Join(words[i+1:], " ")
		}
	}
	return strings.Join(words, " "), "", ""
}

func (p *Parser) resolveDirect(verb, phrase string, pools [][]types.Candidate, conv types.Conversation) types.ObjectRef {
	if phrase == "" {
		return types.ObjectRef{}
	}
	if verb == "go" {
		if p.Vocab.IsDirection(phrase) {
			return types.Literal(phrase)
		}
		return types.Unknown(phrase)
	}
	if literalDirectVerbs[verb] {
		return types.Literal(phrase)
	}
	return resolve.Resolve(phrase, pools, p.Vocab, conv)
}

func (p *Parser) resolveIndirect(prep, phrase string, pools [][]types.Candidate, conv types.Conversation) types.ObjectRef {
	if phrase == "" {
		return types.ObjectRef{}
	}
	if topicPrepositions[prep] {
		return types.Literal(phrase)
	}
	return resolve.Resolve(phrase, pools, p.Vocab, conv)
}

func pendingFor(cmd types.Command) *types.PendingAmbiguity {
	slot, ref := "direct", cmd.Direct
	if ref.Kind != types.RefAmbiguous {
		slot, ref = "indirect", cmd.Indirect
	}
	return &types.PendingAmbiguity{
		Command:    cmd,
		Slot:       slot,
		Phrase:     ref.Text,
		Candidates: ref.Candidates,
	}
}

// remember records a successful parse: the last command for "again" and
// the last bound object for pronouns.
func remember(conv types.Conversation, cmd types.Command) types.Conversation {
	c := cloneCommand(cmd)
	conv.LastCommand = &c
	switch {
	case cmd.Direct.Kind == types.RefBound:
		conv.LastObject = cmd.Direct.ID
	case cmd.Indirect.Kind == types.RefBound:
		conv.LastObject = cmd.Indirect.ID
	}
	return conv
}

func cloneCommand(cmd types.Command) types.Command {
	if cmd.Modifiers != nil {
		cmd.Modifiers = append([]string(nil), cmd.Modifiers...)
	}
	return cmd
}

func dropWords(words []string, drop ...string) []string {
	out := words[:0:0]
	for _, w := range words {
		skip := false
		for _, d := range drop {
			if w == d {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, w)
		}
	}
	return out
}

func fail(kind types.ParseErrorKind, msg string) Result {
	return Result{Err: &types.ParseError{Kind: kind, Message: msg}}
}
