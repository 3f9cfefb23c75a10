// Package extract turns raw OCR output into document field sets.
//
// Identity cards and log cards are parsed from whole-page text with
// declarative rule tables (IdentityRules, LogCardRules): each rule pairs a
// field name with a label-anchored pattern and an optional post-processing
// step. Driver's licenses are parsed from annotated fragments with a single
// classification pass.
//
// Extraction never fails because a field is missing; unmatched fields are
// left out of the result. It only fails when there is no OCR output at all.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ironsheep/doc-intake-mcp/internal/document"
	"github.com/ironsheep/doc-intake-mcp/internal/ocr"
)

var (
	// ErrEmptyInput is returned when the OCR output holds no text.
	ErrEmptyInput = errors.New("no OCR output to extract from")

	// ErrUnsupportedKind is returned for kinds without an extractor.
	ErrUnsupportedKind = errors.New("unsupported document kind")
)

// Input is the raw OCR output for one document. Text is used for identity
// cards and log cards, Annotations for driver's licenses.
type Input struct {
	Text        string
	Annotations []ocr.Annotation
}

// Extract parses in according to kind.
func Extract(kind document.Kind, in Input) (document.FieldSet, error) {
	var fields map[string]string

	switch kind {
	case document.KindIdentityCard, document.KindLogCard:
		if strings.TrimSpace(in.Text) == "" {
			return document.FieldSet{}, fmt.Errorf("%s: %w", kind, ErrEmptyInput)
		}
		if kind == document.KindIdentityCard {
			fields = extractIdentity(in.Text)
		} else {
			fields = extractLogCard(in.Text)
		}

	case document.KindDriversLicense:
		if !hasText(in.Annotations) {
			return document.FieldSet{}, fmt.Errorf("%s: %w", kind, ErrEmptyInput)
		}
		fields = extractLicense(in.Annotations)

	default:
		return document.FieldSet{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}

	return document.NewFieldSet(kind, fields), nil
}

// NeedsAnnotations reports whether kind is parsed from annotated fragments
// rather than whole-page text.
func NeedsAnnotations(kind document.Kind) bool {
	return kind == document.KindDriversLicense
}

func hasText(anns []ocr.Annotation) bool {
	for _, a := range anns {
		if strings.TrimSpace(a.Text) != "" {
			return true
		}
	}
	return false
}
