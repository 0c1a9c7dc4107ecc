package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func newAccentFolder() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Fold lowercases s, removes accents and collapses every run of characters
// other than letters and digits into one space. Compatibility forms fold too,
// so "Nº" becomes "no". "Fecha  de Pago" and "fecha_de_pago" fold alike.
func Fold(s string) string {
	stripped, _, err := transform.String(newAccentFolder(), s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// NormalizeColumnName turns a header label into a physical column name:
// folded, words joined by underscores, and never starting with a digit.
// It returns "" for a label with no letters or digits.
func NormalizeColumnName(label string) string {
	name := strings.ReplaceAll(Fold(label), " ", "_")
	if name == "" {
		return ""
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "c_" + name
	}
	return name
}
