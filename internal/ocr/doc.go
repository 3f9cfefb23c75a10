// Package ocr provides Optical Character Recognition (OCR) behind two
// capability interfaces.
//
// # Capabilities
//
// Document parsers need one of two output shapes:
//
//   - TextRecognizer: whole-page text, used for identity cards and log cards
//   - AnnotatedRecognizer: (box, text, confidence) fragments in the detector's
//     natural reading order, used for driver's licenses
//
// Callers depend only on these interfaces; no parser branches on which
// engine produced the output.
//
// # Backends
//
//   - Tesseract: native Tesseract via gosseract/v2 (requires cgo). Annotations
//     are produced at text-line level.
//   - Remote: an HTTP sidecar (for example an EasyOCR service) that returns
//     polygon/text/confidence triples as JSON.
//
// # Prerequisites
//
// Tesseract must be installed on the system for the native backend:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// # Deadlines
//
// Bounded wraps any recognizer with a per-call timeout. An expired deadline is
// reported as ErrTimeout, which callers treat as a retryable I/O failure
// rather than as unreadable input.
//
// # Error Handling
//
// Functions return errors for:
//   - Whitespace-only text or zero usable fragments (ErrEmptyResult)
//   - Deadline expiry (ErrTimeout)
//   - Backends that cannot run in this build (ErrUnavailable)
//   - Engine initialisation or transport failures (wrapped)
package ocr
