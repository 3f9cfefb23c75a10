package extract

import (
	"regexp"
	"strings"
)

// Rule maps one field to a label-anchored pattern. The pattern's first
// capture group is the raw value; Post, when set, normalises it.
type Rule struct {
	Field   string
	Pattern *regexp.Regexp
	Post    func(string) string

	// Label matches the rule's printed label at the start of a string.
	Label *regexp.Regexp
}

// newRule builds a rule whose value follows labelPattern on the same line or
// on the next one.
func newRule(field, labelPattern, value string, post func(string) string) Rule {
	return Rule{
		Field:   field,
		Pattern: label(labelPattern, value),
		Post:    post,
		Label:   regexp.MustCompile(`(?i)^` + labelPattern),
	}
}

// Apply runs the rule against text. ok is false when the pattern does not
// match or post-processing leaves nothing.
func (r Rule) Apply(text string) (value string, ok bool) {
	value, _, ok = r.match(text)
	return value, ok
}

// match is Apply plus the byte offset of the raw value in text.
func (r Rule) match(text string) (value string, start int, ok bool) {
	m := r.Pattern.FindStringSubmatchIndex(text)
	if len(m) < 4 || m[2] < 0 {
		return "", 0, false
	}
	value = text[m[2]:m[3]]
	if r.Post != nil {
		value = r.Post(value)
	}
	value = strings.TrimSpace(value)
	return value, m[2], value != ""
}

// Rules is an ordered rule table. Rules are independent; a field that no
// rule matches is left out.
type Rules []Rule

// Apply evaluates every rule and collects the matched fields. A value that
// starts with a label from the same table is the next printed label, not
// data, and leaves the field out.
func (rs Rules) Apply(text string) map[string]string {
	out := make(map[string]string, len(rs))
	for _, r := range rs {
		v, start, ok := r.match(text)
		if !ok || rs.labelAt(text[start:]) {
			continue
		}
		out[r.Field] = v
	}
	return out
}

func (rs Rules) labelAt(s string) bool {
	for _, r := range rs {
		if r.Label != nil && r.Label.MatchString(s) {
			return true
		}
	}
	return false
}

// Fields lists the field names covered by the table.
func (rs Rules) Fields() []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Field
	}
	return names
}

// label compiles a case-insensitive pattern that anchors value on a printed
// label. The label may be followed by a colon and blanks, and by at most one
// line break.
func label(labelPattern, value string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + labelPattern + `[ \t]*:?[ \t]*(?:\r?\n[ \t]*)?` + value)
}

var spaceRun = regexp.MustCompile(`\s+`)

func collapseSpaces(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func upper(s string) string {
	return strings.ToUpper(collapseSpaces(s))
}

func stripSpaces(s string) string {
	return spaceRun.ReplaceAllString(s, "")
}
