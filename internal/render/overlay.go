// Package render produces the annotated image variants returned alongside an
// analysis: heatmap overlay, standalone heatmap, numbered bounding boxes and
// type-labeled boxes, each encoded as base64 PNG.
package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mammo-screening-server/internal/domain"
	"github.com/mammo-screening-server/internal/imaging"
	"github.com/mammo-screening-server/internal/service"
)

// Variants holds the encoded image set for one analysis.
type Variants struct {
	Original      string `json:"original"`
	Overlay       string `json:"overlay"`
	Heatmap       string `json:"heatmap"`
	BoundingBoxes string `json:"bounding_boxes"`
	TypeAnnotated string `json:"type_annotated"`
}

var severityColors = map[domain.Severity]color.RGBA{
	domain.SeverityHigh:   {0xDC, 0x26, 0x26, 0xFF},
	domain.SeverityMedium: {0xF5, 0x9E, 0x0B, 0xFF},
	domain.SeverityLow:    {0x10, 0xB9, 0x81, 0xFF},
}

var boxRed = color.RGBA{0xFF, 0x00, 0x00, 0xFF}

// Render produces all image variants for one completed analysis.
func Render(a *service.Analysis) (Variants, error) {
	base := toRGBA(a.Gray)
	regions := a.Result.Findings.Regions

	var v Variants
	var err error

	if v.Original, err = EncodePNGBase64(base); err != nil {
		return Variants{}, fmt.Errorf("failed to encode original: %w", err)
	}
	if v.Overlay, err = EncodePNGBase64(Overlay(a.Gray, a.Field, a.TissueMask, 0.5)); err != nil {
		return Variants{}, fmt.Errorf("failed to encode overlay: %w", err)
	}
	if v.Heatmap, err = EncodePNGBase64(HeatmapOnly(a.Field, a.Gray.Width, a.Gray.Height)); err != nil {
		return Variants{}, fmt.Errorf("failed to encode heatmap: %w", err)
	}
	if v.BoundingBoxes, err = EncodePNGBase64(AnnotateBoxes(a.Gray, regions)); err != nil {
		return Variants{}, fmt.Errorf("failed to encode bounding boxes: %w", err)
	}
	if v.TypeAnnotated, err = EncodePNGBase64(AnnotateTypes(a.Gray, regions)); err != nil {
		return Variants{}, fmt.Errorf("failed to encode type annotations: %w", err)
	}
	return v, nil
}

// Overlay blends the jet-colored activation field over the source image.
// Background pixels outside the tissue mask keep their original value so the
// heatmap never paints the black surround.
func Overlay(g *imaging.Grayscale, field *imaging.Field, tissueMask []bool, alpha float64) image.Image {
	resized := field.Rescale(g.Width, g.Height)
	out := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))

	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			i := y*g.Width + x
			base := clamp255(g.At(x, y))

			if i >= len(tissueMask) || !tissueMask[i] {
				out.SetRGBA(x, y, color.RGBA{base, base, base, 0xFF})
				continue
			}

			// Gamma lift for visibility of mid-range activations.
			v := math.Pow(resized.At(x, y), 0.5)
			hot := jetColor(v)
			out.SetRGBA(x, y, color.RGBA{
				R: blend(base, hot.R, alpha),
				G: blend(base, hot.G, alpha),
				B: blend(base, hot.B, alpha),
				A: 0xFF,
			})
		}
	}
	return out
}

// HeatmapOnly renders the activation field alone through the jet colormap.
func HeatmapOnly(field *imaging.Field, width, height int) image.Image {
	resized := field.Rescale(width, height)
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out.SetRGBA(x, y, jetColor(resized.At(x, y)))
		}
	}
	return out
}

// AnnotateBoxes draws numbered red boxes with confidence labels.
func AnnotateBoxes(g *imaging.Grayscale, regions []domain.Region) image.Image {
	out := toRGBA(g)
	for _, r := range regions {
		drawRect(out, r.BBox, boxRed, 4)
		label := fmt.Sprintf("Region %d: %.1f%%", r.ID, r.Confidence)
		drawLabel(out, r.BBox, label, boxRed)
	}
	return out
}

// AnnotateTypes draws severity-colored boxes labeled with the abnormality
// category.
func AnnotateTypes(g *imaging.Grayscale, regions []domain.Region) image.Image {
	out := toRGBA(g)
	for _, r := range regions {
		c, ok := severityColors[r.Severity]
		if !ok {
			c = boxRed
		}
		drawRect(out, r.BBox, c, 4)
		label := fmt.Sprintf("%s - %.0f%%", r.CancerType, r.Confidence)
		drawLabel(out, r.BBox, label, c)
	}
	return out
}

// EncodePNGBase64 encodes an image as a base64 PNG string.
func EncodePNGBase64(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func toRGBA(g *imaging.Grayscale) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, g.Width, g.Height))
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			v := clamp255(g.At(x, y))
			out.SetRGBA(x, y, color.RGBA{v, v, v, 0xFF})
		}
	}
	return out
}

// jetColor maps [0,1] through the blue-cyan-yellow-red jet colormap.
func jetColor(v float64) color.RGBA {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	r := clampUnit(1.5 - math.Abs(4*v-3))
	g := clampUnit(1.5 - math.Abs(4*v-2))
	b := clampUnit(1.5 - math.Abs(4*v-1))
	return color.RGBA{
		R: uint8(r * 255),
		G: uint8(g * 255),
		B: uint8(b * 255),
		A: 0xFF,
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clamp255(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func blend(base, hot uint8, alpha float64) uint8 {
	v := (1-alpha)*float64(base) + alpha*float64(hot)
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// drawRect strokes a rectangle outline of the given line width, clipped to
// the image bounds.
func drawRect(img *image.RGBA, bbox domain.BoundingBox, c color.RGBA, width int) {
	bounds := img.Bounds()
	for w := 0; w < width; w++ {
		x1, y1 := bbox.X1+w, bbox.Y1+w
		x2, y2 := bbox.X2-w, bbox.Y2-w
		for x := x1; x <= x2; x++ {
			setClipped(img, bounds, x, y1, c)
			setClipped(img, bounds, x, y2, c)
		}
		for y := y1; y <= y2; y++ {
			setClipped(img, bounds, x1, y, c)
			setClipped(img, bounds, x2, y, c)
		}
	}
}

func setClipped(img *image.RGBA, bounds image.Rectangle, x, y int, c color.RGBA) {
	if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
		img.SetRGBA(x, y, c)
	}
}

// drawLabel places the label above the box when there is room, otherwise
// inside at the top-left, on a solid background strip.
func drawLabel(img *image.RGBA, bbox domain.BoundingBox, label string, bg color.RGBA) {
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, label).Ceil()
	textHeight := face.Metrics().Height.Ceil()
	padding := 3

	stripH := textHeight + padding*2
	var stripY int
	if bbox.Y1 >= stripH+2 {
		stripY = bbox.Y1 - stripH - 2
	} else {
		stripY = bbox.Y1 + 5
	}
	stripX := bbox.X1

	bounds := img.Bounds()
	for y := stripY; y < stripY+stripH; y++ {
		for x := stripX; x < stripX+textWidth+padding*2; x++ {
			setClipped(img, bounds, x, y, bg)
		}
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot: fixed.P(
			stripX+padding,
			stripY+padding+face.Metrics().Ascent.Ceil(),
		),
	}
	d.DrawString(label)
}
