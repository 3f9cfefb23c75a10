//go:build !cgo

package ocr

import (
	"context"
	"fmt"
	"image"
)

// Tesseract is unavailable without cgo; every call returns ErrUnavailable.
// Set OCR_TEXT_ENGINE=remote and OCR_ANNOTATED_ENGINE=remote with
// OCR_REMOTE_URL instead.
type Tesseract struct {
	Language       string
	TessdataPrefix string
}

// NewTesseract creates a Tesseract engine placeholder.
func NewTesseract(language, tessdataPrefix string) *Tesseract {
	return &Tesseract{Language: language, TessdataPrefix: tessdataPrefix}
}

// Name identifies the engine in logs and metrics.
func (t *Tesseract) Name() string { return "tesseract" }

// RecognizeText always fails in non-cgo builds.
func (t *Tesseract) RecognizeText(context.Context, image.Image) (string, error) {
	return "", fmt.Errorf("%w: tesseract requires cgo", ErrUnavailable)
}

// RecognizeAnnotated always fails in non-cgo builds.
func (t *Tesseract) RecognizeAnnotated(context.Context, image.Image) ([]Annotation, error) {
	return nil, fmt.Errorf("%w: tesseract requires cgo", ErrUnavailable)
}
