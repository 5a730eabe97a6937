package secrets

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// DefaultRedaction replaces every detected secret.
const DefaultRedaction = "[REDACTED]"

// Scrubber detects and redacts secrets.
type Scrubber interface {
	// Scrub returns content with every match replaced.
	Scrub(content string) *Result
	// Check reports matches without modifying content.
	Check(content string) *Result
	IsEnabled() bool
}

// Config configures a Scrubber.
type Config struct {
	Enabled   bool     `koanf:"enabled"`
	Rules     []Rule   `koanf:"rules"`
	Redaction string   `koanf:"redaction"`
	AllowList []string `koanf:"allow_list"`
}

// DefaultConfig returns an enabled config with DefaultRules.
func DefaultConfig() *Config {
	return &Config{Enabled: true, Rules: DefaultRules(), Redaction: DefaultRedaction}
}

// Result describes one scrub pass. Matched text is never retained.
type Result struct {
	Scrubbed string
	Findings []Finding
	ByRule   map[string]int
}

// Finding locates a match in the original content.
type Finding struct {
	RuleID string
	Start  int
	End    int
}

// HasFindings reports whether anything matched.
func (r *Result) HasFindings() bool { return len(r.Findings) > 0 }

type compiledRule struct {
	id       string
	pattern  *regexp.Regexp
	keywords []string
}

type scrubber struct {
	enabled   bool
	redaction string
	rules     []compiledRule
	allow     []*regexp.Regexp
}

// New compiles cfg. A nil cfg means DefaultConfig.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enabled {
		return Noop{}, nil
	}

	s := &scrubber{enabled: true, redaction: cfg.Redaction}
	if s.redaction == "" {
		s.redaction = DefaultRedaction
	}

	for i, r := range cfg.Rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule %d: id is required", i)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
		}
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kws = append(kws, strings.ToLower(kw))
		}
		s.rules = append(s.rules, compiledRule{id: r.ID, pattern: re, keywords: kws})
	}

	for i, p := range cfg.AllowList {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("allow_list %d: invalid pattern: %w", i, err)
		}
		s.allow = append(s.allow, re)
	}
	return s, nil
}

// MustNew is New that panics on an invalid config.
func MustNew(cfg *Config) Scrubber {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *scrubber) IsEnabled() bool { return s.enabled }

func (s *scrubber) Check(content string) *Result {
	res := &Result{Scrubbed: content, ByRule: map[string]int{}}
	lower := strings.ToLower(content)

	for _, rule := range s.rules {
		if len(rule.keywords) > 0 && !containsAny(lower, rule.keywords) {
			continue
		}
		for _, loc := range rule.pattern.FindAllStringIndex(content, -1) {
			if s.allowed(content[loc[0]:loc[1]]) {
				continue
			}
			res.Findings = append(res.Findings, Finding{RuleID: rule.id, Start: loc[0], End: loc[1]})
			res.ByRule[rule.id]++
		}
	}
	return res
}

func (s *scrubber) Scrub(content string) *Result {
	res := s.Check(content)
	if !res.HasFindings() {
		return res
	}

	spans := mergeSpans(res.Findings)
	var b strings.Builder
	b.Grow(len(content))
	prev := 0
	for _, sp := range spans {
		b.WriteString(content[prev:sp.Start])
		b.WriteString(s.redaction)
		prev = sp.End
	}
	b.WriteString(content[prev:])
	res.Scrubbed = b.String()
	return res
}

func (s *scrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// mergeSpans returns the findings' ranges sorted and with overlaps folded
// together.
func mergeSpans(findings []Finding) []Finding {
	spans := slices.Clone(findings)
	slices.SortFunc(spans, func(a, b Finding) int { return a.Start - b.Start })

	out := spans[:1]
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if sp.Start <= last.End {
			last.End = max(last.End, sp.End)
			continue
		}
		out = append(out, sp)
	}
	return out
}

// Noop passes content through untouched.
type Noop struct{}

func (Noop) Scrub(content string) *Result { return &Result{Scrubbed: content, ByRule: map[string]int{}} }
func (Noop) Check(content string) *Result { return Noop{}.Scrub(content) }
func (Noop) IsEnabled() bool              { return false }

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = Noop{}
)
