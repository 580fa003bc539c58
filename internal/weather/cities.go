package weather

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeCity turns free-form user input into the configured spelling,
// e.g. "  saint   PETERSBURG " becomes "Saint Petersburg".
func NormalizeCity(input string) string {
	joined := strings.Join(strings.Fields(input), " ")
	return cases.Title(language.English).String(joined)
}

// LookupCity returns the supported name matching input after normalization.
func LookupCity(input string, supported []string) (string, bool) {
	name := NormalizeCity(input)
	if name == "" {
		return "", false
	}
	for _, s := range supported {
		if s == name {
			return s, true
		}
	}
	return "", false
}
