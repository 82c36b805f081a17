package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// The dictionary uses specific words to avoid partial collisions (e.g., "he" inside "The")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dictionary := []string{"badger", "snake", "mushroom"}
	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Single word keeps spacing",
			input:    "The badger is here",
			expected: "The ****** is here",
			words:    []string{"badger"},
		},
		{
			name:     "Repeated word",
			input:    "snake snake",
			expected: "***** *****",
			words:    []string{"snake", "snake"},
		},
		{
			name:     "Leet speak with internal punctuation",
			input:    "Look at B.4.d.g.€r !",
			expected: "Look at ********** !",
			words:    []string{"badger"},
		},
		{
			name:     "Uppercase and dashes",
			input:    "M-U-S-H-R-0-0-M soup",
			expected: "*************** soup",
			words:    []string{"mushroom"},
		},
		{
			name:     "Accents are untouched",
			input:    "Un été avec un badger",
			expected: "Un été avec un ******",
			words:    []string{"badger"},
		},
		{
			name:     "Mention is not noise for the rest of the sentence",
			input:    "@bob look at the snake!",
			expected: "@bob look at the *****!",
			words:    []string{"snake"},
		},
		{
			name:     "Nothing to censor",
			input:    "Chat-Hub is amazing",
			expected: "Chat-Hub is amazing",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content, "test=%s,", tt.name)
			req.Equal(tt.words, words)
		})
	}
}

func TestModerator_NoiseOnlyDictionary(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given a dictionary without any usable word
	mod, err := NewModerator([]string{"...", ",,,", ""}, replacementChar, log)
	req.NoError(err)

	// Then nothing is censored
	content, words := mod.Censor("Hello ... badger")
	req.Equal("Hello ... badger", content)
	req.Nil(words)
}
