package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/ironsheep/doc-intake-mcp/internal/document"
)

// IdentityRules parse the plain-text OCR of an identity card.
var IdentityRules = Rules{
	newRule(document.FieldIdentityCardNo, `identity\s*card\s*no\.?`, `([A-Z0-9]{5,})`, upper),
	newRule(document.FieldName, `\bname\b`, `([^\n]+)`, CleanName),
	newRule(document.FieldRace, `\brace\b`, `([A-Z][A-Z-]*)`, upper),
	newRule(document.FieldDateOfBirth, `date\s*of\s*birth`, `(\d{2}[-/.]\d{2}[-/.]\d{4})`, nil),
	newRule(document.FieldSex, `\bsex\b`, `([MF])\b`, strings.ToUpper),
	newRule(document.FieldPlaceOfBirth, `country\s*/\s*place\s*of\s*birth`, `([^\n]+)`, upper),
}

var parenthesized = regexp.MustCompile(`\([^)]*\)?`)

// CleanName removes parenthesised alternate-script text and any character
// that is not a letter, space, apostrophe or hyphen.
func CleanName(s string) string {
	s = parenthesized.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), r == '\'', r == '-':
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, s)
	return collapseSpaces(s)
}

func extractIdentity(text string) map[string]string {
	return IdentityRules.Apply(text)
}
