package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mammo-screening-server/internal/domain"
)

func grayImage(width, height int, fill uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: fill})
		}
	}
	return img
}

func TestDecode_PNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, grayImage(8, 8, 128)))

	img, format, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestDecode_InvalidBytes(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte("not an image")))
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrInputInvalid))
}

func TestFromImage_Luminance(t *testing.T) {
	g := FromImage(grayImage(4, 4, 100))
	assert.Equal(t, 4, g.Width)
	assert.Equal(t, 4, g.Height)
	for _, v := range g.Pix {
		assert.InDelta(t, 100.0, v, 0.5)
	}
}

func TestGrayscale_Stats(t *testing.T) {
	g := NewGrayscale(2, 2)
	g.Pix = []float64{0, 100, 100, 200}

	stats, err := g.Stats()
	require.NoError(t, err)

	assert.InDelta(t, 100.0, stats.MeanIntensity, 0.001)
	assert.InDelta(t, 0.0, stats.MinIntensity, 0.001)
	assert.InDelta(t, 200.0, stats.MaxIntensity, 0.001)
	assert.InDelta(t, 100.0, stats.MedianIntensity, 0.001)
	assert.InDelta(t, 100.0/255.0*100.0, stats.Brightness, 0.001)
	assert.Greater(t, stats.Contrast, 0.0)
}

func TestGrayscale_Stats_Empty(t *testing.T) {
	g := &Grayscale{}
	_, err := g.Stats()
	assert.Error(t, err)
}

func TestGrayscale_TissueMask(t *testing.T) {
	g := NewGrayscale(2, 2)
	g.Pix = []float64{0, 10, 20, 200}

	mask := g.TissueMask(15)
	assert.Equal(t, []bool{false, false, true, true}, mask)
	assert.InDelta(t, 0.5, g.TissueFraction(15), 0.001)
}

func TestGrayscale_Resize(t *testing.T) {
	g := NewGrayscale(8, 8)
	for i := range g.Pix {
		g.Pix[i] = 128
	}

	out := g.Resize(4, 4)
	assert.Equal(t, 4, out.Width)
	assert.Equal(t, 4, out.Height)
	for _, v := range out.Pix {
		assert.InDelta(t, 128.0, v, 1.0)
	}
}

func TestGrayscale_Normalized(t *testing.T) {
	g := NewGrayscale(2, 2)
	g.Pix = []float64{0, 50, 100, 200}

	norm := g.Normalized()
	assert.InDelta(t, 0.0, norm[0], 0.001)
	assert.InDelta(t, 0.25, norm[1], 0.001)
	assert.InDelta(t, 1.0, norm[3], 0.001)
}

func TestGrayscale_Normalized_Flat(t *testing.T) {
	g := NewGrayscale(2, 2)
	g.Pix = []float64{77, 77, 77, 77}

	for _, v := range g.Normalized() {
		assert.Equal(t, 0.0, v)
	}
}
