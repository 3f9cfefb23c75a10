package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/ironsheep/doc-intake-mcp/internal/aggregate"
	"github.com/ironsheep/doc-intake-mcp/internal/correlate"
	"github.com/ironsheep/doc-intake-mcp/internal/extract"
	"github.com/ironsheep/doc-intake-mcp/internal/imaging"
	"github.com/ironsheep/doc-intake-mcp/internal/ocr"
)

// Upload failures. Every error returned by Service wraps exactly one of
// these, alongside the lower-layer cause.
var (
	ErrInvalidKind     = errors.New("invalid document kind")
	ErrInvalidInput    = errors.New("invalid input")
	ErrDecode          = errors.New("image could not be decoded")
	ErrEnhancement     = errors.New("image enhancement failed")
	ErrTimeout         = errors.New("processing timed out")
	ErrOCREmpty        = errors.New("no text recognised")
	ErrOCRUnavailable  = errors.New("ocr engine unavailable")
	ErrMissingIdentity = errors.New("identity card required first")
	ErrPersistence     = errors.New("persistence failed")
	ErrExport          = errors.New("workflow export failed")
)

// Record-level failures surfaced by RetryExport.
var (
	ErrNoRecord        = aggregate.ErrNoRecord
	ErrNotComplete     = aggregate.ErrNotComplete
	ErrAlreadyExported = aggregate.ErrAlreadyExported
	ErrExportDisabled  = aggregate.ErrExportDisabled
)

// classify tags err with the upload sentinel for its cause. Timeouts are
// checked first because an enhancement deadline also wraps ErrEnhancement.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var kind error
	switch {
	case errors.Is(err, ocr.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	case errors.Is(err, imaging.ErrDecode):
		kind = ErrDecode
	case errors.Is(err, imaging.ErrEnhancement):
		kind = ErrEnhancement
	case errors.Is(err, ocr.ErrEmptyResult), errors.Is(err, extract.ErrEmptyInput):
		kind = ErrOCREmpty
	case errors.Is(err, ocr.ErrUnavailable):
		kind = ErrOCRUnavailable
	case errors.Is(err, correlate.ErrMissingIdentity):
		kind = ErrMissingIdentity
	case errors.Is(err, correlate.ErrPersistence), errors.Is(err, aggregate.ErrPersistence):
		kind = ErrPersistence
	case errors.Is(err, aggregate.ErrExport):
		kind = ErrExport
	default:
		return err
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Retryable reports whether the same upload may succeed if sent again
// unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrPersistence) || errors.Is(err, ErrOCRUnavailable)
}

// UserMessage returns the text shown to the person who uploaded.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidKind):
		return "Unsupported document type. Please send an identity card, driver's license or vehicle log card."
	case errors.Is(err, ErrInvalidInput):
		return "Some details were missing from the request. Please check and try again."
	case errors.Is(err, ErrDecode):
		return "That file is not an image we can read. Please upload a photo of the document."
	case errors.Is(err, ErrEnhancement):
		return "We could not process that photo. Please upload it again."
	case errors.Is(err, ErrTimeout):
		return "Reading the document took too long. Please try again."
	case errors.Is(err, ErrOCREmpty):
		return "No text could be read from the photo. Please retake it in good light, filling the frame."
	case errors.Is(err, ErrOCRUnavailable):
		return "Document reading is temporarily unavailable. Please try again later."
	case errors.Is(err, ErrMissingIdentity):
		return "Please upload your identity card first. We could not find a readable name for you yet."
	case errors.Is(err, ErrPersistence):
		return "We could not save your document. Please try again shortly."
	case errors.Is(err, ErrExport):
		return "All documents received, but submitting them failed. Our team has been notified."
	case errors.Is(err, ErrNoRecord):
		return "No documents have been received for this person."
	case errors.Is(err, ErrNotComplete):
		return "Documents are still missing for this person."
	case errors.Is(err, ErrAlreadyExported):
		return "These documents have already been submitted."
	case errors.Is(err, ErrExportDisabled):
		return "Submission is switched off. The documents are saved and will be sent once it is enabled."
	case errors.Is(err, context.Canceled):
		return "The upload was cancelled."
	}
	return "Something went wrong. Please try again."
}

// Code returns a short machine-readable label for err, used as a metric
// label and in API error bodies.
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidKind):
		return "invalid_kind"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrEnhancement):
		return "enhancement"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrOCREmpty):
		return "ocr_empty"
	case errors.Is(err, ErrOCRUnavailable):
		return "ocr_unavailable"
	case errors.Is(err, ErrMissingIdentity):
		return "missing_identity"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrExport):
		return "export"
	case errors.Is(err, ErrNoRecord):
		return "no_record"
	case errors.Is(err, ErrNotComplete):
		return "not_complete"
	case errors.Is(err, ErrAlreadyExported):
		return "already_exported"
	case errors.Is(err, ErrExportDisabled):
		return "export_disabled"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "internal"
}
