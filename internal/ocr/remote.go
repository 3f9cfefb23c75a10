package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ironsheep/doc-intake-mcp/internal/imaging"
)

// Remote talks to an OCR sidecar over HTTP.
//
// The sidecar accepts a PNG body and answers:
//
//	POST {base}/readtext  ->  [{"coordinates": [[x,y],...], "text": "...", "confidence": 0.93}, ...]
//	POST {base}/text      ->  {"text": "..."}
//
// The readtext shape is the JSON that EasyOCR-style detectors emit: a
// polygon, the text and a 0-1 confidence per fragment, in detection order.
type Remote struct {
	baseURL string
	http    *http.Client
}

// RemoteOption customises a Remote engine.
type RemoteOption func(*Remote)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) { r.http = c }
}

// NewRemote creates a Remote engine rooted at baseURL.
func NewRemote(baseURL string, opts ...RemoteOption) *Remote {
	r := &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name identifies the engine in logs and metrics.
func (r *Remote) Name() string { return "remote" }

type remoteFragment struct {
	Coordinates [][]float64 `json:"coordinates"`
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence"`
}

type remoteText struct {
	Text string `json:"text"`
}

// RecognizeText posts img to {base}/text.
func (r *Remote) RecognizeText(ctx context.Context, img image.Image) (string, error) {
	var out remoteText
	if err := r.post(ctx, "/text", img, &out); err != nil {
		return "", err
	}
	return checkText(out.Text)
}

// RecognizeAnnotated posts img to {base}/readtext. The polygon of each
// fragment is reduced to its bounding box; order is kept as received.
func (r *Remote) RecognizeAnnotated(ctx context.Context, img image.Image) ([]Annotation, error) {
	var frags []remoteFragment
	if err := r.post(ctx, "/readtext", img, &frags); err != nil {
		return nil, err
	}

	annotations := make([]Annotation, 0, len(frags))
	for _, f := range frags {
		annotations = append(annotations, Annotation{
			Box:        polygonBox(f.Coordinates),
			Text:       f.Text,
			Confidence: f.Confidence,
		})
	}
	return cleanAnnotations(annotations)
}

func (r *Remote) post(ctx context.Context, path string, img image.Image, into any) error {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: ocr request failed: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: ocr service returned %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		return fmt.Errorf("decode ocr response: %w", err)
	}
	return nil
}

func polygonBox(points [][]float64) Box {
	var b Box
	seen := false
	for _, p := range points {
		if len(p) < 2 {
			continue
		}
		x, y := int(p[0]), int(p[1])
		if !seen {
			b = Box{X1: x, Y1: y, X2: x, Y2: y}
			seen = true
			continue
		}
		b.X1 = min(b.X1, x)
		b.Y1 = min(b.Y1, y)
		b.X2 = max(b.X2, x)
		b.Y2 = max(b.Y2, y)
	}
	return b
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
