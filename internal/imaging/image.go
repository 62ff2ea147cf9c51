// Package imaging provides the pixel-level primitives the finding-synthesis
// pipeline operates on: grayscale conversion, intensity statistics, tissue
// masking and activation-field handling.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sort"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"

	"github.com/mammo-screening-server/internal/domain"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Decode reads an encoded image from r. It returns the decoded image and the
// format name, or a domain.InputInvalid error for unreadable input.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", domain.InputInvalid(fmt.Sprintf("decode failed: %v", err))
	}
	return img, format, nil
}

// Grayscale is a float64 luminance buffer with values in [0, 255].
type Grayscale struct {
	Width  int
	Height int
	Pix    []float64
}

// NewGrayscale allocates a zeroed grayscale buffer.
func NewGrayscale(width, height int) *Grayscale {
	return &Grayscale{
		Width:  width,
		Height: height,
		Pix:    make([]float64, width*height),
	}
}

// FromImage converts any image to grayscale using standard luminance weights.
func FromImage(img image.Image) *Grayscale {
	bounds := img.Bounds()
	g := NewGrayscale(bounds.Dx(), bounds.Dy())

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			r, gr, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			lum := 0.299*float64(r) + 0.587*float64(gr) + 0.114*float64(b)
			g.Pix[y*g.Width+x] = lum / 257.0
		}
	}
	return g
}

// At returns the luminance at (x, y). Callers must stay in bounds.
func (g *Grayscale) At(x, y int) float64 {
	return g.Pix[y*g.Width+x]
}

// Set writes the luminance at (x, y).
func (g *Grayscale) Set(x, y int, v float64) {
	g.Pix[y*g.Width+x] = v
}

// Stats computes first-order intensity statistics. Returns an error for an
// empty buffer.
func (g *Grayscale) Stats() (domain.ImageStats, error) {
	if len(g.Pix) == 0 {
		return domain.ImageStats{}, fmt.Errorf("cannot compute statistics of empty image")
	}

	mean := stat.Mean(g.Pix, nil)
	std := stat.StdDev(g.Pix, nil)

	min, max := g.Pix[0], g.Pix[0]
	for _, v := range g.Pix {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	sorted := make([]float64, len(g.Pix))
	copy(sorted, g.Pix)
	sort.Float64s(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)

	return domain.ImageStats{
		MeanIntensity:   mean,
		StdIntensity:    std,
		MinIntensity:    min,
		MaxIntensity:    max,
		MedianIntensity: median,
		Brightness:      mean / 255.0 * 100.0,
		Contrast:        std / 255.0 * 100.0,
	}, nil
}

// TissueMask marks pixels brighter than threshold as tissue, separating the
// breast from the black background.
func (g *Grayscale) TissueMask(threshold float64) []bool {
	mask := make([]bool, len(g.Pix))
	for i, v := range g.Pix {
		mask[i] = v > threshold
	}
	return mask
}

// TissueFraction returns the fraction of pixels above threshold.
func (g *Grayscale) TissueFraction(threshold float64) float64 {
	if len(g.Pix) == 0 {
		return 0
	}
	count := 0
	for _, v := range g.Pix {
		if v > threshold {
			count++
		}
	}
	return float64(count) / float64(len(g.Pix))
}

// Resize scales the buffer to the given size with bilinear interpolation.
func (g *Grayscale) Resize(width, height int) *Grayscale {
	src := image.NewGray16(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			v := g.At(x, y)
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			src.SetGray16(x, y, color.Gray16{Y: uint16(v / 255.0 * 65535.0)})
		}
	}

	dst := image.NewGray16(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := NewGrayscale(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out.Set(x, y, float64(dst.Gray16At(x, y).Y)/65535.0*255.0)
		}
	}
	return out
}

// Normalized returns a copy scaled to [0, 1] by min-max normalization.
// A flat image normalizes to all zeros.
func (g *Grayscale) Normalized() []float64 {
	out := make([]float64, len(g.Pix))
	if len(g.Pix) == 0 {
		return out
	}
	min, max := g.Pix[0], g.Pix[0]
	for _, v := range g.Pix {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max > min {
		for i, v := range g.Pix {
			out[i] = (v - min) / (max - min)
		}
	}
	return out
}
