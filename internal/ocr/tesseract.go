//go:build cgo

package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/doc-intake-mcp/internal/imaging"
)

// Tesseract recognises text with the native Tesseract library via gosseract.
//
// A fresh gosseract client is created per call because clients are not safe
// for concurrent use. Images are handed over as PNG bytes so no temporary
// files are written.
type Tesseract struct {
	// Language is the Tesseract language code, e.g. "eng".
	Language string

	// TessdataPrefix overrides the tessdata directory when non-empty.
	TessdataPrefix string
}

// NewTesseract creates a Tesseract engine for the given language.
func NewTesseract(language, tessdataPrefix string) *Tesseract {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{Language: language, TessdataPrefix: tessdataPrefix}
}

// Name identifies the engine in logs and metrics.
func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) client(img image.Image) (*gosseract.Client, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, err
	}

	client := gosseract.NewClient()
	if t.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}
	if err := client.SetLanguage(t.Language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImageFromBytes(data); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	return client, nil
}

// RecognizeText returns the whole-page text of img.
func (t *Tesseract) RecognizeText(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client, err := t.client(img)
	if err != nil {
		return "", err
	}
	defer client.Close()

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return checkText(text)
}

// RecognizeAnnotated returns one annotation per detected text line.
//
// Line level (RIL_TEXTLINE) keeps a label and its value together, e.g.
// "Birth Date 01.02.1990", which the license extractor relies on.
// Tesseract reports confidence in 0-100; it is scaled to 0-1.
func (t *Tesseract) RecognizeAnnotated(ctx context.Context, img image.Image) ([]Annotation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	client, err := t.client(img)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("failed to get text lines: %w", err)
	}

	annotations := make([]Annotation, 0, len(boxes))
	for _, box := range boxes {
		annotations = append(annotations, Annotation{
			Box:        boxFromRect(box.Box),
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
		})
	}
	return cleanAnnotations(annotations)
}
