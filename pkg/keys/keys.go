// Package keys turns the free-text TIPO and ELEMENTO attributes of a drawing
// into stable grouping keys used by the LPP builder.
package keys

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes and drops combining marks, so "ã" becomes "a".
func stripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeType converts a TIPO display value to its key.
//
//	"Betão armado"           -> "BETAO_ARMADO"
//	"Planta de implantação"  -> "PLANTA_DE_IMPLANTACAO"
func NormalizeType(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}
	s = strings.ToUpper(stripMarks(s))
	s = strings.Join(strings.Fields(s), "_")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeElement converts an ELEMENTO value to its key. It is looser than
// NormalizeType: inner spaces and punctuation are kept so short codes such
// as "FUN" or "PIL" pass through unchanged.
func NormalizeElement(text string) string {
	s := strings.TrimSpace(text)
	if s == "" {
		return ""
	}
	return strings.ToUpper(stripMarks(s))
}
