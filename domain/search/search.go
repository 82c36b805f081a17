package search

import (
	"strconv"
	"strings"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Query represents the structured parameters of a message search.
// It decouples the raw user input from what the index understands.
type Query struct {
	RawInput string // The original input of the user
	Terms    string // The actual text to match in the index
	Language string // Optional ISO-639-1 filter
	SenderID string // Optional author filter
	Limit    int    // Number of results
}

// NewSearchQuery parses a raw string to extract command-line style arguments.
// Example: deploy plan --lang en --from 42 --limit 5
func NewSearchQuery(input string) Query {
	query := Query{
		RawInput: input,
		Limit:    DefaultLimit,
	}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			val := parts[i+1]

			switch key {
			case "lang":
				query.Language = strings.ToLower(val)
			case "from":
				query.SenderID = val
			case "limit":
				if limit, err := strconv.Atoi(val); err == nil && limit > 0 {
					query.Limit = min(limit, MaxLimit)
				}
			default:
				// Unknown flags are kept as plain terms
				textTerms = append(textTerms, part, val)
			}
			i++ // Skip the value part in next iteration
			continue
		}
		textTerms = append(textTerms, part)
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}

func (q Query) Empty() bool {
	return q.Terms == "" && q.SenderID == ""
}
