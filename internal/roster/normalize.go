package roster

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeIdentifier reduces operator or scanner input to the form
// registration numbers are stored under: surrounding whitespace
// dropped, combining marks stripped, upper case. A hand-typed "š001"
// and a scanned "S001" resolve to the same key.
func NormalizeIdentifier(text string) string {
	text = strings.TrimSpace(text)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, text); err == nil {
		text = stripped
	}
	return strings.ToUpper(text)
}
