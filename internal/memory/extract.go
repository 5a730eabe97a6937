package memory

import (
	"fmt"
	"regexp"
	"strings"
)

// Fact kinds.
const (
	KindAttribute   = "attribute"
	KindPreference  = "preference"
	KindIdentity    = "identity"
	KindInstruction = "instruction"
)

// Fact is a statement worth remembering, rewritten in the third person.
type Fact struct {
	Kind    string
	Text    string
	Pattern string
}

// Pattern turns a matching sentence into a fact. Template is expanded with
// regexp.Expand against the sentence.
type Pattern struct {
	Name     string
	Kind     string
	Regex    string
	Template string
}

// DefaultPatterns recognise first-person statements about the user.
func DefaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:     "call_me",
			Kind:     KindIdentity,
			Regex:    `(?i)^(?:please\s+)?call\s+me\s+(?P<value>.+)$`,
			Template: "The user wants to be called ${value}.",
		},
		{
			Name:     "my_x_is",
			Kind:     KindAttribute,
			Regex:    `(?i)^my\s+(?P<subject>[\w'\- ]{1,40}?)\s+(?P<verb>is|are|was|were)\s+(?P<value>.+)$`,
			Template: "The user's ${subject} ${verb} ${value}.",
		},
		{
			Name:     "i_like",
			Kind:     KindPreference,
			Regex:    `(?i)^i\s+(?:really\s+|also\s+)?(?P<verb>like|love|enjoy|prefer|hate|dislike)\s+(?P<value>.+)$`,
			Template: "The user ${verb}s ${value}.",
		},
		{
			Name:     "i_live_work",
			Kind:     KindAttribute,
			Regex:    `(?i)^i\s+(?P<verb>live|work)\s+(?P<prep>in|at|for|as|on)\s+(?P<value>.+)$`,
			Template: "The user ${verb}s ${prep} ${value}.",
		},
		{
			Name:     "i_am",
			Kind:     KindIdentity,
			Regex:    `(?i)^i(?:\s+am|'m|\x{2019}m)\s+(?P<value>.+)$`,
			Template: "The user is ${value}.",
		},
		{
			Name:     "remember",
			Kind:     KindInstruction,
			Regex:    `(?i)^(?:please\s+)?remember(?:\s+that)?\s+(?P<value>.+)$`,
			Template: "The user asked to remember: ${value}.",
		},
	}
}

type compiledPattern struct {
	Pattern
	re *regexp.Regexp
}

// Extractor finds facts in user messages with an ordered pattern list. The
// first matching pattern wins for each sentence.
type Extractor struct {
	patterns []compiledPattern
}

// NewExtractor compiles patterns. An empty list means DefaultPatterns.
func NewExtractor(patterns []Pattern) (*Extractor, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	e := &Extractor{patterns: make([]compiledPattern, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			return nil, fmt.Errorf("pattern %s: %w", p.Name, err)
		}
		e.patterns = append(e.patterns, compiledPattern{Pattern: p, re: re})
	}
	return e, nil
}

var sentenceRe = regexp.MustCompile(`[^.!?\n]+[.!?]*`)

// Extract returns the facts stated in message. Questions are skipped.
func (e *Extractor) Extract(message string) []Fact {
	var facts []Fact
	seen := make(map[string]struct{})

	for _, raw := range sentenceRe.FindAllString(message, -1) {
		sentence := strings.TrimSpace(raw)
		if sentence == "" || strings.HasSuffix(sentence, "?") {
			continue
		}
		sentence = strings.TrimRight(sentence, ".! ")

		for _, p := range e.patterns {
			idx := p.re.FindStringSubmatchIndex(sentence)
			if idx == nil {
				continue
			}
			text := string(p.re.ExpandString(nil, p.Template, sentence, idx))
			text = strings.Join(strings.Fields(text), " ")
			if _, dup := seen[strings.ToLower(text)]; !dup {
				seen[strings.ToLower(text)] = struct{}{}
				facts = append(facts, Fact{Kind: p.Kind, Text: text, Pattern: p.Name})
			}
			break
		}
	}
	return facts
}
