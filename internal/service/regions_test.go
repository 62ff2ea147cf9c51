package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mammo-screening-server/internal/domain"
	"github.com/mammo-screening-server/internal/imaging"
)

func defaultPipelineConfig() domain.PipelineConfig {
	return domain.PipelineConfig{
		ActivationThreshold: 0.5,
		MinAreaFraction:     0.001,
		MaxRegions:          10,
		TissueThreshold:     15,
	}
}

func allTissue(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}
	return mask
}

// blobField paints a rectangular blob of the given value onto a zero field.
func blobField(w, h, x1, y1, x2, y2 int, value float64) *imaging.Field {
	f := imaging.NewField(w, h)
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			f.Set(x, y, value)
		}
	}
	return f
}

func TestDetect_UniformField_NoRegions(t *testing.T) {
	d := NewRegionDetector(defaultPipelineConfig())
	f := imaging.NewField(20, 20)

	regions := d.Detect(f, allTissue(400), 200, 200)
	assert.Empty(t, regions)
}

func TestDetect_SingleComponent(t *testing.T) {
	d := NewRegionDetector(defaultPipelineConfig())

	// 3x4 blob on a 20x20 field, 3% of cells, peak 0.82
	f := blobField(20, 20, 8, 8, 11, 12, 0.8)
	f.Set(9, 9, 0.82)

	regions := d.Detect(f, allTissue(400), 200, 200)
	require.Len(t, regions, 1)

	r := regions[0]
	assert.InDelta(t, 82.0, r.Confidence(), 0.001)
	assert.Equal(t, 12, r.AreaCells)
	assert.Equal(t, 80, r.BBox.X1)
	assert.Equal(t, 80, r.BBox.Y1)
	assert.Equal(t, 110, r.BBox.X2)
	assert.Equal(t, 120, r.BBox.Y2)
	assert.Greater(t, r.AreaPercentage, 0.0)
}

func TestDetect_OrderedByPeakDescending(t *testing.T) {
	d := NewRegionDetector(defaultPipelineConfig())

	f := blobField(30, 30, 2, 2, 6, 6, 0.6)
	for y := 20; y < 24; y++ {
		for x := 20; x < 24; x++ {
			f.Set(x, y, 0.95)
		}
	}

	regions := d.Detect(f, allTissue(900), 300, 300)
	require.Len(t, regions, 2)
	assert.Greater(t, regions[0].Peak, regions[1].Peak)
	assert.InDelta(t, 95.0, regions[0].Confidence(), 0.001)
	assert.InDelta(t, 60.0, regions[1].Confidence(), 0.001)
}

func TestDetect_MinAreaFilter(t *testing.T) {
	cfg := defaultPipelineConfig()
	cfg.MinAreaFraction = 0.05 // 20 cells on a 20x20 field
	d := NewRegionDetector(cfg)

	f := blobField(20, 20, 5, 5, 7, 7, 0.9) // 4 cells, below minimum
	regions := d.Detect(f, allTissue(400), 200, 200)
	assert.Empty(t, regions)
}

func TestDetect_BackgroundComponentDropped(t *testing.T) {
	d := NewRegionDetector(defaultPipelineConfig())

	f := blobField(20, 20, 5, 5, 9, 9, 0.9)
	// no tissue anywhere under the component
	mask := make([]bool, 400)

	regions := d.Detect(f, mask, 200, 200)
	assert.Empty(t, regions)
}

func TestDetect_CapsRegionCount(t *testing.T) {
	cfg := defaultPipelineConfig()
	cfg.MaxRegions = 3
	d := NewRegionDetector(cfg)

	// five separated single-cell components, min area disabled
	f := imaging.NewField(20, 20)
	for i := 0; i < 5; i++ {
		f.Set(2+i*3, 2, 0.6+float64(i)*0.05)
	}

	regions := d.Detect(f, allTissue(400), 200, 200)
	assert.Len(t, regions, 3)
}

func TestDetect_DiagonalConnectivity(t *testing.T) {
	d := NewRegionDetector(defaultPipelineConfig())

	// two cells touching only diagonally form one 8-connected component
	f := imaging.NewField(20, 20)
	f.Set(5, 5, 0.8)
	f.Set(6, 6, 0.7)

	regions := d.Detect(f, allTissue(400), 200, 200)
	require.Len(t, regions, 1)
	assert.Equal(t, 2, regions[0].AreaCells)
}
