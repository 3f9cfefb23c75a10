package imaging

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// bilateral applies an edge-preserving bilateral filter.
//
// Each output pixel is the weighted mean of its (2r+1)² neighbourhood. The
// weight of a neighbour is the product of:
//
//   - a spatial Gaussian on pixel distance (SpatialSigma)
//   - a range Gaussian on CIE-Lab ΔE between the neighbour and the center
//     pixel (RangeSigma)
//
// Measuring colour difference in Lab rather than RGB keeps printed text on
// tinted card backgrounds sharp while smoothing sensor noise, which is what a
// colour-aware denoiser for photographs needs.
//
// Rows are split across opts.Workers goroutines. The context is checked once
// per row; a cancelled context returns ctx.Err().
func bilateral(ctx context.Context, img image.Image, opts Options) (*image.NRGBA, error) {
	src := imaging.Clone(img)
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	r := opts.Radius

	// Precompute Lab coordinates for every pixel.
	lab := make([][3]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := src.PixOffset(x, y)
			c := colorful.Color{
				R: float64(src.Pix[i]) / 255.0,
				G: float64(src.Pix[i+1]) / 255.0,
				B: float64(src.Pix[i+2]) / 255.0,
			}
			l, a, b := c.Lab()
			lab[y*w+x] = [3]float64{l * 100, a * 100, b * 100}
		}
	}

	// Spatial weights depend only on the offset.
	size := 2*r + 1
	spatial := make([]float64, size*size)
	s2 := 2 * opts.SpatialSigma * opts.SpatialSigma
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			spatial[(dy+r)*size+(dx+r)] = math.Exp(-float64(dx*dx+dy*dy) / s2)
		}
	}
	r2 := 2 * opts.RangeSigma * opts.RangeSigma

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))

	workers := opts.Workers
	if workers > h {
		workers = h
	}
	if workers < 1 {
		workers = 1
	}

	rows := make(chan int, h)
	for y := 0; y < h; y++ {
		rows <- y
	}
	close(rows)

	var wg sync.WaitGroup
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for y := range rows {
				if ctx.Err() != nil {
					return
				}
				for x := 0; x < w; x++ {
					center := lab[y*w+x]
					var sumR, sumG, sumB, sumW float64
					for dy := -r; dy <= r; dy++ {
						py := clamp(y+dy, 0, h-1)
						for dx := -r; dx <= r; dx++ {
							px := clamp(x+dx, 0, w-1)
							n := lab[py*w+px]
							dl, da, db := n[0]-center[0], n[1]-center[1], n[2]-center[2]
							wt := spatial[(dy+r)*size+(dx+r)] * math.Exp(-(dl*dl+da*da+db*db)/r2)
							i := src.PixOffset(px, py)
							sumR += wt * float64(src.Pix[i])
							sumG += wt * float64(src.Pix[i+1])
							sumB += wt * float64(src.Pix[i+2])
							sumW += wt
						}
					}
					a := src.Pix[src.PixOffset(x, y)+3]
					dst.SetNRGBA(x, y, color.NRGBA{
						R: toByte(sumR / sumW),
						G: toByte(sumG / sumW),
						B: toByte(sumB / sumW),
						A: a,
					})
				}
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return dst, nil
}

// clamp limits v to [lo, hi] so window reads near an edge reuse the border
// pixel.
func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func toByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
