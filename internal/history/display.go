package history

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titleCaser = cases.Title(language.English)

	// Session IDs start with a wall-clock stamp for automatic sessions.
	stampPrefix = regexp.MustCompile(`^\d{8}_\d{6}_?`)
)

// DisplayTitle turns a session ID into a human-readable title for tables:
// the timestamp prefix is dropped and the remaining name is title-cased.
// IDs with no name component come back unchanged.
func DisplayTitle(sessionID string) string {
	name := strings.TrimPrefix(sessionID, "print_")
	name = stampPrefix.ReplaceAllString(name, "")
	name = strings.Trim(strings.ReplaceAll(name, "_", " "), " ")
	if name == "" {
		return sessionID
	}
	return titleCaser.String(name)
}
