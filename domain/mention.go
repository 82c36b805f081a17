package domain

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// A mention starts at the beginning of the text or after a character that
// cannot belong to an address, so "mail@host" is not read as "@host".
var mentionPattern = regexp.MustCompile(`(?:^|[^\w@.])@([A-Za-z0-9_][A-Za-z0-9_.\-]*)`)

// ParseMentions extracts the @handles of a text, lower-cased, in order of
// first appearance and without duplicates. Resolving handles to users is
// left to the identity collaborator.
func ParseMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	handles := lo.FilterMap(matches, func(m []string, _ int) (string, bool) {
		handle := strings.TrimRight(m[1], ".-")
		return strings.ToLower(handle), handle != ""
	})
	return lo.Uniq(handles)
}
