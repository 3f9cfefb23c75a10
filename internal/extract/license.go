package extract

import (
	"regexp"
	"strings"

	"github.com/ironsheep/doc-intake-mcp/internal/document"
	"github.com/ironsheep/doc-intake-mcp/internal/ocr"
)

var (
	licenseNumberPattern = regexp.MustCompile(`^[A-Za-z0-9]{7,}$`)
	licenseNamePattern   = regexp.MustCompile(`^[A-Z() ]*[A-Z][A-Z() ]*$`)
)

// Label substrings are matched case-sensitively, exactly as printed.
var (
	birthDateLabels = []string{"Birth Date", "Birthdate", "Date of Birth"}
	issueDateLabels = []string{"Issue Date"}
)

// extractLicense classifies every fragment in one pass, in detector order.
//
//   - License_Number: a 7+ character alphanumeric token. A later match
//     replaces an earlier one.
//   - Name: the first all-uppercase letters/space/parenthesis fragment.
//   - Birth_Date, Issue_Date: fragments containing a printed date label,
//     stored without the label.
//
// A fragment may satisfy more than one rule; no further disambiguation is
// attempted.
func extractLicense(anns []ocr.Annotation) map[string]string {
	out := make(map[string]string, 4)
	for _, a := range anns {
		text := strings.TrimSpace(a.Text)
		if text == "" {
			continue
		}

		if licenseNumberPattern.MatchString(text) {
			out[document.FieldLicenseNumber] = strings.ToUpper(text)
		}

		if _, named := out[document.FieldName]; !named && licenseNamePattern.MatchString(text) {
			if name := CleanName(text); name != "" {
				out[document.FieldName] = name
			}
		}

		if v, ok := stripLabel(text, birthDateLabels); ok {
			out[document.FieldBirthDate] = v
		}
		if v, ok := stripLabel(text, issueDateLabels); ok {
			out[document.FieldIssueDate] = v
		}
	}
	return out
}

// stripLabel reports whether text contains one of labels and returns text
// with that label and any separating colon removed.
func stripLabel(text string, labels []string) (string, bool) {
	for _, l := range labels {
		if !strings.Contains(text, l) {
			continue
		}
		v := strings.Replace(text, l, "", 1)
		v = strings.TrimSpace(v)
		v = strings.TrimSpace(strings.TrimPrefix(v, ":"))
		return v, v != ""
	}
	return "", false
}
