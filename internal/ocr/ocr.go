package ocr

import (
	"context"
	"errors"
	"image"
	"strings"
)

var (
	// ErrEmptyResult is returned when an engine recognises no usable text.
	ErrEmptyResult = errors.New("ocr produced no text")

	// ErrTimeout is returned when recognition exceeds its deadline. It is a
	// retryable I/O condition, not an extraction failure.
	ErrTimeout = errors.New("ocr timed out")

	// ErrUnavailable is returned when a backend cannot run in this build or
	// environment.
	ErrUnavailable = errors.New("ocr engine unavailable")
)

// Box is an axis-aligned bounding box in pixel coordinates.
type Box struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// Annotation is one detected text fragment.
type Annotation struct {
	// Box locates the fragment in the recognised image.
	Box Box `json:"box"`

	// Text is the recognised text content.
	Text string `json:"text"`

	// Confidence is the engine's certainty in [0, 1].
	Confidence float64 `json:"confidence"`
}

// TextRecognizer turns an image into whole-page text.
type TextRecognizer interface {
	RecognizeText(ctx context.Context, img image.Image) (string, error)
}

// AnnotatedRecognizer turns an image into text fragments with boxes and
// confidences, in the detector's natural reading order.
type AnnotatedRecognizer interface {
	RecognizeAnnotated(ctx context.Context, img image.Image) ([]Annotation, error)
}

// Engine is a backend offering both capabilities.
type Engine interface {
	TextRecognizer
	AnnotatedRecognizer
	Name() string
}

// checkText rejects whitespace-only recognition output.
func checkText(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}

// cleanAnnotations drops blank fragments and clamps confidence into [0, 1].
// Order is preserved.
func cleanAnnotations(in []Annotation) ([]Annotation, error) {
	out := make([]Annotation, 0, len(in))
	for _, a := range in {
		a.Text = strings.TrimSpace(a.Text)
		if a.Text == "" {
			continue
		}
		if a.Confidence < 0 {
			a.Confidence = 0
		}
		if a.Confidence > 1 {
			a.Confidence = 1
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, ErrEmptyResult
	}
	return out, nil
}

// boxFromRect converts an image.Rectangle into a Box.
func boxFromRect(r image.Rectangle) Box {
	return Box{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}
