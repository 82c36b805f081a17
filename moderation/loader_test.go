package moderation

import (
	"chat-hub/errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestCensoredLoader_Embedded(t *testing.T) {
	req := require.New(t)

	data, err := NewEmbeddedLoader().LoadAll("censored")

	req.NoError(err)
	req.ElementsMatch([]string{"en", "fr"}, data.Languages)
	req.Contains(data.Words, "merde")
}

func TestCensoredLoader_DeduplicatesWords(t *testing.T) {
	req := require.New(t)
	files := fstest.MapFS{
		"words/en.txt":    {Data: []byte("badger\r\nsnake\n\n")},
		"words/fr.txt":    {Data: []byte("badger\nblaireau\n")},
		"words/README.md": {Data: []byte("ignored")},
	}

	data, err := NewCensoredLoader(files).LoadAll("words")

	req.NoError(err)
	req.ElementsMatch([]string{"badger", "snake", "blaireau"}, data.Words)
	req.ElementsMatch([]string{"en", "fr"}, data.Languages)
}

func TestCensoredLoader_Empty(t *testing.T) {
	req := require.New(t)
	files := fstest.MapFS{"words/en.txt": {Data: []byte("\n")}}

	_, err := NewCensoredLoader(files).LoadAll("words")

	req.ErrorIs(err, errors.ErrEmptyWords)
}
