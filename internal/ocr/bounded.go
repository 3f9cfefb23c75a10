package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// Bounded wraps recognizers with a per-call deadline and an optional
// annotation confidence floor.
//
// Native engines such as Tesseract do not observe contexts while they run,
// so each call executes in its own goroutine and Bounded stops waiting once
// the deadline passes. The abandoned call finishes in the background and its
// result is discarded.
type Bounded struct {
	text          TextRecognizer
	annotated     AnnotatedRecognizer
	timeout       time.Duration
	minConfidence float64
}

// NewBounded creates a Bounded adapter. A zero timeout disables the deadline;
// minConfidence of zero keeps every fragment.
func NewBounded(text TextRecognizer, annotated AnnotatedRecognizer, timeout time.Duration, minConfidence float64) *Bounded {
	return &Bounded{text: text, annotated: annotated, timeout: timeout, minConfidence: minConfidence}
}

// RecognizeText runs the wrapped text recognizer under the deadline.
func (b *Bounded) RecognizeText(ctx context.Context, img image.Image) (string, error) {
	if b.text == nil {
		return "", fmt.Errorf("%w: no text recognizer configured", ErrUnavailable)
	}
	return run(ctx, b.timeout, func(ctx context.Context) (string, error) {
		return b.text.RecognizeText(ctx, img)
	})
}

// RecognizeAnnotated runs the wrapped annotated recognizer under the deadline
// and drops fragments below the confidence floor. Dropping every fragment is
// reported as ErrEmptyResult.
func (b *Bounded) RecognizeAnnotated(ctx context.Context, img image.Image) ([]Annotation, error) {
	if b.annotated == nil {
		return nil, fmt.Errorf("%w: no annotated recognizer configured", ErrUnavailable)
	}
	anns, err := run(ctx, b.timeout, func(ctx context.Context) ([]Annotation, error) {
		return b.annotated.RecognizeAnnotated(ctx, img)
	})
	if err != nil {
		return nil, err
	}
	return FilterConfidence(anns, b.minConfidence)
}

// FilterConfidence keeps annotations whose confidence is at least floor,
// preserving order.
func FilterConfidence(anns []Annotation, floor float64) ([]Annotation, error) {
	if floor <= 0 {
		return cleanAnnotations(anns)
	}
	kept := make([]Annotation, 0, len(anns))
	for _, a := range anns {
		if a.Confidence >= floor {
			kept = append(kept, a)
		}
	}
	return cleanAnnotations(kept)
}

type result[T any] struct {
	val T
	err error
}

func run[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- result[T]{val: v, err: err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && !errors.Is(r.err, ErrTimeout) {
			return zero, fmt.Errorf("%w: %v", ErrTimeout, r.err)
		}
		return r.val, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return zero, ctx.Err()
	}
}
