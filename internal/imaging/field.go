package imaging

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// Field is a 2-D activation/saliency grid with values in [0, 1]. It keeps the
// aspect ratio of its source image but may be a different resolution; Rescale
// resamples it on demand.
type Field struct {
	Width  int
	Height int
	Values []float64
}

// NewField allocates a zeroed field.
func NewField(width, height int) *Field {
	return &Field{
		Width:  width,
		Height: height,
		Values: make([]float64, width*height),
	}
}

// At returns the activation at (x, y). Callers must stay in bounds.
func (f *Field) At(x, y int) float64 {
	return f.Values[y*f.Width+x]
}

// Set writes the activation at (x, y).
func (f *Field) Set(x, y int, v float64) {
	f.Values[y*f.Width+x] = v
}

// Max returns the maximum activation value.
func (f *Field) Max() float64 {
	max := 0.0
	for _, v := range f.Values {
		if v > max {
			max = v
		}
	}
	return max
}

// Mean returns the mean activation value.
func (f *Field) Mean() float64 {
	if len(f.Values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range f.Values {
		sum += v
	}
	return sum / float64(len(f.Values))
}

// Range returns max minus min. A near-zero range marks a degenerate field.
func (f *Field) Range() float64 {
	if len(f.Values) == 0 {
		return 0
	}
	min, max := f.Values[0], f.Values[0]
	for _, v := range f.Values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return max - min
}

// HighFraction returns the fraction of cells strictly above threshold.
func (f *Field) HighFraction(threshold float64) float64 {
	if len(f.Values) == 0 {
		return 0
	}
	count := 0
	for _, v := range f.Values {
		if v > threshold {
			count++
		}
	}
	return float64(count) / float64(len(f.Values))
}

// Normalized returns a min-max normalized copy in [0, 1]. A flat field
// normalizes to all zeros.
func (f *Field) Normalized() *Field {
	out := NewField(f.Width, f.Height)
	if len(f.Values) == 0 {
		return out
	}
	min, max := f.Values[0], f.Values[0]
	for _, v := range f.Values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	if max > min {
		for i, v := range f.Values {
			out.Values[i] = (v - min) / (max - min)
		}
	}
	return out
}

// Rescale resamples the field to the given size with bilinear interpolation.
func (f *Field) Rescale(width, height int) *Field {
	if width == f.Width && height == f.Height {
		out := NewField(width, height)
		copy(out.Values, f.Values)
		return out
	}

	src := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			v := f.At(x, y)
			if v < 0 {
				v = 0
			}
			if v > 1 {
				v = 1
			}
			src.SetGray16(x, y, color.Gray16{Y: uint16(v * 65535.0)})
		}
	}

	dst := image.NewGray16(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := NewField(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out.Set(x, y, float64(dst.Gray16At(x, y).Y)/65535.0)
		}
	}
	return out
}

// MaskedBy zeroes cells where mask is false. The mask must be sampled at the
// field's own resolution.
func (f *Field) MaskedBy(mask []bool) *Field {
	out := NewField(f.Width, f.Height)
	for i, v := range f.Values {
		if i < len(mask) && mask[i] {
			out.Values[i] = v
		}
	}
	return out
}

// IntensityField builds a smoothed, contrast-boosted activation substitute
// from raw image intensity. Used for rendering when the classifier's
// activation field is degenerate: bright areas are the likeliest lesions.
func IntensityField(g *Grayscale) *Field {
	f := NewField(g.Width, g.Height)
	copy(f.Values, g.Normalized())

	f = gaussianBlur(f, 3.0)

	for i, v := range f.Values {
		f.Values[i] = math.Pow(v, 0.7)
	}
	return f.Normalized()
}

// gaussianBlur applies a separable Gaussian kernel.
func gaussianBlur(f *Field, sigma float64) *Field {
	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	horiz := NewField(f.Width, f.Height)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			acc := 0.0
			for k, w := range kernel {
				sx := x + k - radius
				if sx < 0 {
					sx = 0
				}
				if sx >= f.Width {
					sx = f.Width - 1
				}
				acc += w * f.At(sx, y)
			}
			horiz.Set(x, y, acc)
		}
	}

	out := NewField(f.Width, f.Height)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			acc := 0.0
			for k, w := range kernel {
				sy := y + k - radius
				if sy < 0 {
					sy = 0
				}
				if sy >= f.Height {
					sy = f.Height - 1
				}
				acc += w * horiz.At(x, sy)
			}
			out.Set(x, y, acc)
		}
	}
	return out
}
