package imaging

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"

	"github.com/anthonynsimon/bild/convolution"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// ErrEnhancement is returned when preprocessing fails on a decodable image.
var ErrEnhancement = errors.New("image enhancement failed")

// UpscaleFactor is the fixed enlargement applied before OCR.
const UpscaleFactor = 2.0

// DenoiseMode selects the noise filter applied after upscaling.
type DenoiseMode string

const (
	// DenoiseBilateral is an edge-preserving filter that weighs neighbours by
	// their CIE-Lab colour distance. It is the default for colour photographs.
	DenoiseBilateral DenoiseMode = "bilateral"

	// DenoiseMedian replaces each pixel with the median of its neighbourhood.
	DenoiseMedian DenoiseMode = "median"

	// DenoiseNone skips denoising.
	DenoiseNone DenoiseMode = "none"
)

// sharpenKernel is the fixed 3x3 sharpening convolution: center 5, the four
// direct neighbours -1, corners 0. The weights sum to 1 so flat regions keep
// their brightness.
var sharpenKernel = []float64{
	0, -1, 0,
	-1, 5, -1,
	0, -1, 0,
}

// Options configures an Enhancer.
type Options struct {
	// MaxDimension caps the longest side of the input before upscaling.
	// Zero disables the cap.
	MaxDimension int

	// Denoise selects the noise filter.
	Denoise DenoiseMode

	// Radius is the denoise neighbourhood radius in pixels.
	Radius int

	// SpatialSigma is the bilateral spatial falloff in pixels.
	SpatialSigma float64

	// RangeSigma is the bilateral colour falloff in Lab ΔE units.
	RangeSigma float64

	// Workers bounds the goroutines used by the bilateral filter.
	Workers int
}

// DefaultOptions returns the settings tuned for photographed ID documents.
func DefaultOptions() Options {
	return Options{
		MaxDimension: 1600,
		Denoise:      DenoiseBilateral,
		Radius:       2,
		SpatialSigma: 1.5,
		RangeSigma:   12,
		Workers:      runtime.GOMAXPROCS(0),
	}
}

// Enhancer prepares document photographs for OCR.
//
// The pipeline is fixed:
//
//  1. Fit the input within MaxDimension (only if larger)
//  2. Upscale by UpscaleFactor with a Lanczos filter
//  3. Denoise (bilateral in Lab space, median, or none)
//  4. Sharpen with the 3x3 kernel [0 -1 0; -1 5 -1; 0 -1 0]
//
// Enhancer is safe for concurrent use.
type Enhancer struct {
	opts Options
}

// NewEnhancer creates an Enhancer, filling zero-valued options from
// DefaultOptions.
func NewEnhancer(opts Options) *Enhancer {
	def := DefaultOptions()
	if opts.Denoise == "" {
		opts.Denoise = def.Denoise
	}
	if opts.Radius <= 0 {
		opts.Radius = def.Radius
	}
	if opts.SpatialSigma <= 0 {
		opts.SpatialSigma = def.SpatialSigma
	}
	if opts.RangeSigma <= 0 {
		opts.RangeSigma = def.RangeSigma
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	return &Enhancer{opts: opts}
}

// Enhance runs the preprocessing pipeline.
//
// Returns an error wrapping ErrEnhancement if img is nil or empty, if the
// denoise mode is unknown, or if ctx is cancelled between stages. The caller
// must not fall back to OCR on the unenhanced image.
func (e *Enhancer) Enhance(ctx context.Context, img image.Image) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: no image", ErrEnhancement)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: zero-sized image", ErrEnhancement)
	}

	var out image.Image = img
	if limit := e.opts.MaxDimension; limit > 0 && (b.Dx() > limit || b.Dy() > limit) {
		out = imaging.Fit(out, limit, limit, imaging.Lanczos)
	}

	if err := stageDone(ctx, "fit"); err != nil {
		return nil, err
	}

	ob := out.Bounds()
	w := int(float64(ob.Dx()) * UpscaleFactor)
	h := int(float64(ob.Dy()) * UpscaleFactor)
	out = imaging.Resize(out, w, h, imaging.Lanczos)

	if err := stageDone(ctx, "upscale"); err != nil {
		return nil, err
	}

	switch e.opts.Denoise {
	case DenoiseBilateral:
		den, err := bilateral(ctx, out, e.opts)
		if err != nil {
			return nil, fmt.Errorf("%w: denoise: %w", ErrEnhancement, err)
		}
		out = den
	case DenoiseMedian:
		out = effect.Median(out, float64(e.opts.Radius))
	case DenoiseNone:
	default:
		return nil, fmt.Errorf("%w: unknown denoise mode %q", ErrEnhancement, e.opts.Denoise)
	}

	if err := stageDone(ctx, "denoise"); err != nil {
		return nil, err
	}

	return Sharpen(out), nil
}

// Sharpen applies the fixed 3x3 sharpening kernel. Alpha is preserved and
// borders are clamped rather than wrapped.
func Sharpen(img image.Image) *image.RGBA {
	k := convolution.NewKernel(3, 3)
	copy(k.Matrix, sharpenKernel)
	return convolution.Convolve(img, k, &convolution.Options{Bias: 0, Wrap: false, KeepAlpha: true})
}

func stageDone(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: cancelled after %s: %w", ErrEnhancement, stage, err)
	}
	return nil
}
