package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_Extract(t *testing.T) {
	ex, err := NewExtractor(nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		message string
		want    []Fact
	}{
		{
			name:    "attribute",
			message: "My favorite color is blue.",
			want:    []Fact{{Kind: KindAttribute, Text: "The user's favorite color is blue.", Pattern: "my_x_is"}},
		},
		{
			name:    "preference",
			message: "I really love hiking in the Alps!",
			want:    []Fact{{Kind: KindPreference, Text: "The user loves hiking in the Alps.", Pattern: "i_like"}},
		},
		{
			name:    "where",
			message: "I live in Lisbon",
			want:    []Fact{{Kind: KindAttribute, Text: "The user lives in Lisbon.", Pattern: "i_live_work"}},
		},
		{
			name:    "identity",
			message: "I'm a backend engineer.",
			want:    []Fact{{Kind: KindIdentity, Text: "The user is a backend engineer.", Pattern: "i_am"}},
		},
		{
			name:    "question skipped",
			message: "What's my favorite color?",
			want:    nil,
		},
		{
			name:    "small talk",
			message: "Hello there. How are you?",
			want:    nil,
		},
		{
			name:    "several sentences",
			message: "Call me Sam. My dog's name is Rex! Where is Paris?",
			want: []Fact{
				{Kind: KindIdentity, Text: "The user wants to be called Sam.", Pattern: "call_me"},
				{Kind: KindAttribute, Text: "The user's dog's name is Rex.", Pattern: "my_x_is"},
			},
		},
		{
			name:    "duplicates collapse",
			message: "My name is Ana. my name is Ana.",
			want:    []Fact{{Kind: KindAttribute, Text: "The user's name is Ana.", Pattern: "my_x_is"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ex.Extract(tt.message))
		})
	}
}

func TestNewExtractor_InvalidPattern(t *testing.T) {
	_, err := NewExtractor([]Pattern{{Name: "broken", Regex: "("}})
	assert.ErrorContains(t, err, "broken")
}
