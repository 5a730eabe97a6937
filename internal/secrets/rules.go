package secrets

// Rule is a single detection pattern.
type Rule struct {
	ID      string `koanf:"id"`
	Pattern string `koanf:"pattern"`
	// Keywords gate the rule: when set, at least one must appear
	// (case-insensitive) before the pattern is evaluated.
	Keywords []string `koanf:"keywords"`
}

// DefaultRules covers the credentials a chat user is likely to paste: model
// provider keys, cloud keys, VCS tokens, private keys and generic
// assignments.
func DefaultRules() []Rule {
	return []Rule{
		{ID: "anthropic-api-key", Pattern: `sk-ant-[A-Za-z0-9_\-]{20,}`},
		{ID: "openai-api-key", Pattern: `sk-(?:proj-|svcacct-)?[A-Za-z0-9_\-]{20,}`},
		{ID: "google-api-key", Pattern: `AIza[0-9A-Za-z_\-]{35}`},
		{
			ID:       "aws-access-key-id",
			Pattern:  `(?:A3T[A-Z0-9]|AKIA|ASIA|AGPA|AIDA|AROA)[A-Z0-9]{16}`,
			Keywords: []string{"akia", "asia", "aws", "a3t", "agpa", "aida", "aroa"},
		},
		{ID: "github-token", Pattern: `(?:ghp|gho|ghu|ghs)_[A-Za-z0-9]{36}|github_pat_[A-Za-z0-9_]{22,}`},
		{ID: "slack-token", Pattern: `xox[baprs]-[0-9A-Za-z\-]{10,}`},
		{ID: "private-key", Pattern: `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`},
		{ID: "bearer-token", Pattern: `(?i)bearer\s+[A-Za-z0-9_\-\.=]{16,}`, Keywords: []string{"bearer"}},
		{
			ID:       "generic-assignment",
			Pattern:  `(?i)(?:api[_-]?key|secret|password|passwd|token)\s*(?:[:=]|\bis\b)\s*['"]?[^\s'"]{8,}['"]?`,
			Keywords: []string{"key", "secret", "pass", "token"},
		},
	}
}
