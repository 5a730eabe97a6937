package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	chromem "github.com/philippgille/chromem-go"
)

const (
	// HashDimensions is the vector size produced by HashEmbed.
	HashDimensions = 512

	defaultOpenAIEmbeddingModel = string(chromem.EmbeddingModelOpenAI3Small)
	defaultOllamaEmbeddingModel = "nomic-embed-text"
	defaultOpenAIBaseURL        = "https://api.openai.com/v1"
)

// EmbedSettings selects and configures an embedding function.
type EmbedSettings struct {
	// Kind is hash, openai or ollama.
	Kind          string
	Model         string
	OpenAIKey     string
	OpenAIBaseURL string
	OllamaURL     string
}

// NewEmbedFunc returns the embedding function for s.Kind.
func NewEmbedFunc(s EmbedSettings) (chromem.EmbeddingFunc, error) {
	switch strings.ToLower(s.Kind) {
	case "", "hash":
		return HashEmbed, nil
	case "openai":
		if s.OpenAIKey == "" {
			return nil, fmt.Errorf("openai embedder requires OPENAI_API_KEY")
		}
		model := s.Model
		if model == "" {
			model = defaultOpenAIEmbeddingModel
		}
		base := s.OpenAIBaseURL
		if base == "" {
			base = defaultOpenAIBaseURL
		}
		return chromem.NewEmbeddingFuncOpenAICompat(base, s.OpenAIKey, model, nil), nil
	case "ollama":
		model := s.Model
		if model == "" {
			model = defaultOllamaEmbeddingModel
		}
		return chromem.NewEmbeddingFuncOllama(model, s.OllamaURL), nil
	}
	return nil, fmt.Errorf("unknown embedder %q", s.Kind)
}

// stopwords are dropped before hashing so that questions and statements
// about the same subject share most of their vector mass.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "am": {},
	"my": {}, "me": {}, "i": {}, "you": {}, "your": {}, "what": {}, "whats": {},
	"s": {}, "do": {}, "does": {}, "did": {}, "of": {}, "to": {}, "in": {},
	"and": {}, "or": {}, "it": {}, "that": {}, "this": {}, "for": {}, "on": {},
	"with": {}, "user": {}, "users": {}, "please": {}, "tell": {}, "know": {},
}

// HashEmbed is a local, deterministic bag-of-words embedding. Each
// non-stopword token is hashed to a signed bucket. The result is unit
// length and never the zero vector.
func HashEmbed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, HashDimensions)
	for _, tok := range tokenize(text) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % HashDimensions)
		if sum&(1<<63) != 0 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// chromem normalizes stored vectors; keep empty input well defined.
		vec[0] = 1
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

var apostrophes = strings.NewReplacer("'", "", "\u2019", "")

func tokenize(text string) []string {
	text = apostrophes.Replace(strings.ToLower(text))
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, skip := stopwords[f]; skip {
			continue
		}
		out = append(out, f)
	}
	return out
}
