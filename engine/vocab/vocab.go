// Package vocab holds the fixed verb/object grammar vocabulary: canonical
// verbs and their synonyms, abbreviations, prepositions, articles, pronouns,
// filler words and special tokens.
package vocab

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxVerbWords is the widest multi-word verb the extractor will try.
const MaxVerbWords = 3

// Vocabulary is static parser configuration. Build one with Default or
// LoadFile and treat it as read-only afterwards.
type Vocabulary struct {
	Verbs         map[string][]string `yaml:"verbs"`         // canonical -> synonyms (may be multi-word)
	Abbreviations map[string]string   `yaml:"abbreviations"` // single word -> expansion
	Phrases       map[string]string   `yaml:"phrases"`       // whole input -> expansion
	Directions    []string            `yaml:"directions"`
	Prepositions  []string            `yaml:"prepositions"`
	Articles      []string            `yaml:"articles"`
	Pronouns      []string            `yaml:"pronouns"`
	Fillers       []string            `yaml:"fillers"`
	Modifiers     []string            `yaml:"modifiers"`
	Specials      map[string]string   `yaml:"specials"` // "everything" -> "all"

	synonyms     map[string]string
	directions   map[string]bool
	prepositions map[string]bool
	articles     map[string]bool
	pronouns     map[string]bool
	fillers      map[string]bool
	modifiers    map[string]bool
}

// Default returns the built-in English vocabulary.
func Default() *Vocabulary {
	v := &Vocabulary{
		Verbs: map[string][]string{
			"look":       {"l", "look around"},
			"examine":    {"x", "inspect", "check", "study", "observe", "describe"},
			"search":     {"look in", "look under", "look inside", "rummage"},
			"go":         {"walk", "run", "move", "head", "proceed", "travel"},
			"take":       {"get", "grab", "hold", "carry", "catch", "pick up", "snatch"},
			"drop":       {"discard", "put down", "set down"},
			"put":        {"place", "insert"},
			"use":        {"apply", "utilize"},
			"give":       {"offer", "hand", "feed"},
			"open":       {"unseal"},
			"close":      {"shut"},
			"read":       {"peruse"},
			"eat":        {"consume", "devour", "bite"},
			"drink":      {"sip", "swallow", "quaff"},
			"talk":       {"ask", "speak", "chat", "converse", "say", "tell", "talk to", "speak to", "speak with", "chat with"},
			"attack":     {"hit", "fight", "strike", "kill", "punch", "kick", "smash"},
			"push":       {"press", "shove"},
			"pull":       {"drag", "tug", "yank"},
			"throw":      {"toss", "hurl", "lob"},
			"wear":       {"don", "put on"},
			"remove":     {"doff", "take off"},
			"activate":   {"turn on", "switch on"},
			"deactivate": {"turn off", "switch off"},
			"unlock":     {},
			"lock":       {},
			"climb":      {"scale"},
			"jump":       {"leap", "hop"},
			"listen":     {"hear"},
			"smell":      {"sniff"},
			"touch":      {"feel", "rub"},
			"enter":      {"type", "input", "dial"},
			"wait":       {"z"},
			"inventory":  {"i", "inv"},
			"save":       {},
			"load":       {"restore"},
			"quit":       {"q", "exit"},
			"help":       {"?", "commands"},
			"score":      {"points"},
			"restart":    {},
			"hint":       {"hints", "clue"},
		},
		Abbreviations: map[string]string{
			"n": "north", "s": "south", "e": "east", "w": "west",
			"ne": "northeast", "nw": "northwest", "se": "southeast", "sw": "southwest",
			"u": "up", "d": "down",
		},
		Phrases: map[string]string{
			"look around me": "look",
			"what do i have": "inventory",
		},
		Directions: []string{
			"north", "south", "east", "west",
			"northeast", "northwest", "southeast", "southwest",
			"up", "down",
		},
		Prepositions: []string{"on", "onto", "at", "to", "with", "in", "into", "inside", "from", "about", "under", "behind"},
		Articles:     []string{"the", "a", "an"},
		Pronouns:     []string{"it", "them", "him", "her", "that", "this"},
		Fillers:      []string{"please", "just", "now", "then", "kindly", "try", "to"},
		Modifiers:    []string{"quickly", "slowly", "carefully", "quietly", "gently", "firmly"},
		Specials:     map[string]string{"all": "all", "everything": "all"},
	}
	v.index()
	return v
}

// fileVocabulary mirrors Vocabulary for YAML overrides; every field is optional.
type fileVocabulary struct {
	Verbs         map[string][]string `yaml:"verbs"`
	Abbreviations map[string]string   `yaml:"abbreviations"`
	Phrases       map[string]string   `yaml:"phrases"`
	Directions    []string            `yaml:"directions"`
	Prepositions  []string            `yaml:"prepositions"`
	Pronouns      []string            `yaml:"pronouns"`
	Fillers       []string            `yaml:"fillers"`
	Modifiers     []string            `yaml:"modifiers"`
	Specials      map[string]string   `yaml:"specials"`
}

// LoadFile returns the default vocabulary merged with overrides from a YAML file.
func LoadFile(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocabulary %s: %w", path, err)
	}
	return Parse(data)
}

// Parse merges YAML overrides into the default vocabulary.
func Parse(data []byte) (*Vocabulary, error) {
	var fv fileVocabulary
	if err := yaml.Unmarshal(data, &fv); err != nil {
		return nil, fmt.Errorf("parsing vocabulary: %w", err)
	}
	v := Default()
	for verb, syns := range fv.Verbs {
		v.Verbs[lower(verb)] = append(v.Verbs[lower(verb)], syns...)
	}
	for k, val := range fv.Abbreviations {
		v.Abbreviations[lower(k)] = lower(val)
	}
	for k, val := range fv.Phrases {
		v.Phrases[lower(k)] = lower(val)
	}
	for k, val := range fv.Specials {
		v.Specials[lower(k)] = lower(val)
	}
	v.Directions = append(v.Directions, fv.Directions...)
	v.Prepositions = append(v.Prepositions, fv.Prepositions...)
	v.Pronouns = append(v.Pronouns, fv.Pronouns...)
	v.Fillers = append(v.Fillers, fv.Fillers...)
	v.Modifiers = append(v.Modifiers, fv.Modifiers...)
	v.index()
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate checks that expansion is idempotent. No abbreviation may expand
// to another abbreviation, no phrase may expand to another phrase, and no
// phrase key may be reachable by abbreviating some other input.
func (v *Vocabulary) Validate() error {
	var problems []string
	for key, exp := range v.Abbreviations {
		for _, w := range strings.Fields(exp) {
			if _, ok := v.Abbreviations[w]; ok {
				problems = append(problems, fmt.Sprintf("abbreviation %q expands to %q which contains abbreviation %q", key, exp, w))
			}
		}
	}
	targets := map[string]bool{}
	for _, exp := range v.Abbreviations {
		for _, w := range strings.Fields(exp) {
			targets[w] = true
		}
	}
	for key, exp := range v.Phrases {
		if _, ok := v.Phrases[v.abbreviate(exp)]; ok {
			problems = append(problems, fmt.Sprintf("phrase %q expands to another phrase %q", key, exp))
		}
		// "go north" would be produced by expanding "go n" and then match
		// on a second pass.
		for _, w := range strings.Fields(key) {
			if targets[w] {
				problems = append(problems, fmt.Sprintf("phrase %q contains %q, which abbreviations expand to", key, w))
				break
			}
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid vocabulary:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

func (v *Vocabulary) index() {
	v.synonyms = map[string]string{}
	for canonical, syns := range v.Verbs {
		v.synonyms[canonical] = canonical
		for _, s := range syns {
			v.synonyms[lower(s)] = canonical
		}
	}
	v.directions = toSet(v.Directions)
	v.prepositions = toSet(v.Prepositions)
	v.articles = toSet(v.Articles)
	v.pronouns = toSet(v.Pronouns)
	v.fillers = toSet(v.Fillers)
	v.modifiers = toSet(v.Modifiers)
}

// Normalize trims and lowercases input, removes filler words, expands
// whole-phrase then word-by-word abbreviations and splits on whitespace.
func (v *Vocabulary) Normalize(input string) []string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(input)))
	words = stripPunctuation(words)
	kept := make([]string, 0, len(words))
	for i, w := range words {
		// "to" is a filler only in front of a verb ("try to open"), never
		// as the first word of a verb phrase like "talk to".
		if v.fillers[w] && !(w == "to" && i > 0 && !v.fillers[words[i-1]]) {
			continue
		}
		// "walk to the north": after a movement verb "to" is noise.
		if w == "to" && i > 0 && v.synonyms[words[i-1]] == "go" {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Fields(v.Expand(strings.Join(kept, " ")))
}

// Expand applies whole-phrase then word-by-word abbreviations.
// Expand(Expand(x)) == Expand(x) for a validated vocabulary.
func (v *Vocabulary) Expand(phrase string) string {
	if exp, ok := v.Phrases[phrase]; ok {
		phrase = exp
	}
	return v.abbreviate(phrase)
}

func (v *Vocabulary) abbreviate(phrase string) string {
	words := strings.Fields(phrase)
	for i, w := range words {
		if exp, ok := v.Abbreviations[w]; ok {
			words[i] = exp
		}
	}
	return strings.Join(words, " ")
}

// Canonical maps a (possibly multi-word) verb phrase to its canonical verb.
func (v *Vocabulary) Canonical(phrase string) (string, bool) {
	c, ok := v.synonyms[phrase]
	return c, ok
}

// IsDirection reports whether w is a movement direction.
func (v *Vocabulary) IsDirection(w string) bool { return v.directions[w] }

// IsPreposition reports whether w separates the direct and indirect object.
func (v *Vocabulary) IsPreposition(w string) bool { return v.prepositions[w] }

// IsArticle reports whether w is an article.
func (v *Vocabulary) IsArticle(w string) bool { return v.articles[w] }

// IsPronoun reports whether w refers back to the last object.
func (v *Vocabulary) IsPronoun(w string) bool { return v.pronouns[w] }

// IsModifier reports whether w is an adverb carried as a command modifier.
func (v *Vocabulary) IsModifier(w string) bool { return v.modifiers[w] }

// Special returns the special token a phrase stands for ("all").
func (v *Vocabulary) Special(phrase string) (string, bool) {
	s, ok := v.Specials[phrase]
	return s, ok
}

func stripPunctuation(words []string) []string {
	out := words[:0]
	for _, w := range words {
		w = strings.Trim(w, ".,!;:\"")
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func toSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[lower(w)] = true
	}
	return m
}

func lower(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
