package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mammo-screening-server/internal/domain"
	"github.com/mammo-screening-server/internal/imaging"
)

func filledGray(w, h int, value float64) *imaging.Grayscale {
	g := imaging.NewGrayscale(w, h)
	for i := range g.Pix {
		g.Pix[i] = value
	}
	return g
}

func TestSynthesize_NilOnEmptyImage(t *testing.T) {
	p := NewProfileSynthesizer(15)
	assert.Nil(t, p.Synthesize(nil, nil))
	assert.Nil(t, p.Synthesize(&imaging.Grayscale{}, nil))
}

func TestBreastDensity_Categories(t *testing.T) {
	p := NewProfileSynthesizer(15)

	tests := []struct {
		intensity float64
		category  string
	}{
		{200, "D"},
		{160, "C"},
		{120, "B"},
		{80, "A"},
	}
	for _, tt := range tests {
		profile := p.Synthesize(filledGray(10, 10, tt.intensity), nil)
		require.NotNil(t, profile, "intensity %.0f", tt.intensity)
		require.NotNil(t, profile.BreastDensity, "intensity %.0f", tt.intensity)
		assert.Equal(t, tt.category, profile.BreastDensity.Category, "intensity %.0f", tt.intensity)
	}
}

func TestSynthesize_DarkImageOmitsTissueProfiles(t *testing.T) {
	p := NewProfileSynthesizer(15)

	// every pixel below the tissue threshold
	profile := p.Synthesize(filledGray(10, 10, 5), nil)
	require.NotNil(t, profile)

	assert.Nil(t, profile.BreastDensity)
	assert.Nil(t, profile.TissueTexture)
	// flat halves carry no variation to correlate
	assert.Nil(t, profile.Symmetry)
}

func TestSymmetry_MirroredImageScoresHigh(t *testing.T) {
	p := NewProfileSynthesizer(15)

	// row intensity varies with y but is identical across halves
	g := imaging.NewGrayscale(20, 20)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			g.Set(x, y, float64(40+y*10))
		}
	}

	profile := p.Synthesize(g, nil)
	require.NotNil(t, profile)
	require.NotNil(t, profile.Symmetry)
	assert.Equal(t, "Symmetric", profile.Symmetry.Assessment)
	assert.GreaterOrEqual(t, profile.Symmetry.SymmetryScore, 85)
}

func TestTissueTexture_Patterns(t *testing.T) {
	p := NewProfileSynthesizer(15)

	// uniform tissue has near-zero coefficient of variation
	profile := p.Synthesize(filledGray(10, 10, 150), nil)
	require.NotNil(t, profile.TissueTexture)
	assert.Equal(t, "Homogeneous", profile.TissueTexture.Pattern)
	assert.Equal(t, 92, profile.TissueTexture.UniformityScore)

	// alternating bright and dim tissue drives the variation up
	g := imaging.NewGrayscale(10, 10)
	for i := range g.Pix {
		if i%2 == 0 {
			g.Pix[i] = 60
		} else {
			g.Pix[i] = 240
		}
	}
	profile = p.Synthesize(g, nil)
	require.NotNil(t, profile.TissueTexture)
	assert.Equal(t, "Heterogeneous", profile.TissueTexture.Pattern)
}

func TestCalcification_NotDetected(t *testing.T) {
	p := NewProfileSynthesizer(15)

	profile := p.Synthesize(filledGray(10, 10, 100), nil)
	require.NotNil(t, profile.Calcification)
	assert.False(t, profile.Calcification.Detected)
	assert.Equal(t, 0, profile.Calcification.Count)
	assert.Equal(t, "None", profile.Calcification.Distribution)
}

func TestCalcification_FromRegions(t *testing.T) {
	p := NewProfileSynthesizer(15)
	regions := []domain.Region{{
		CancerType:    domain.TypeCalcification,
		Calcification: &domain.CalcificationDetails{Morphology: "Punctate/Round", Distribution: "Clustered"},
	}}

	profile := p.Synthesize(filledGray(10, 10, 100), regions)
	require.NotNil(t, profile.Calcification)
	assert.True(t, profile.Calcification.Detected)
	assert.Equal(t, "2", profile.Calcification.BIRADSCategory)
}

func TestCalcification_FromSpecks(t *testing.T) {
	p := NewProfileSynthesizer(15)

	// isolated bright maxima on a dark background
	g := imaging.NewGrayscale(20, 20)
	for _, pos := range [][2]int{{2, 2}, {6, 2}, {10, 2}, {14, 2}, {2, 10}, {6, 10}, {10, 10}} {
		g.Set(pos[0], pos[1], 255)
	}

	profile := p.Synthesize(g, nil)
	require.NotNil(t, profile.Calcification)
	assert.True(t, profile.Calcification.Detected)
	assert.GreaterOrEqual(t, profile.Calcification.Count, 6)
}

func TestImageQuality_Score(t *testing.T) {
	p := NewProfileSynthesizer(15)

	profile := p.Synthesize(filledGray(10, 10, 100), nil)
	require.NotNil(t, profile.ImageQuality)
	assert.GreaterOrEqual(t, profile.ImageQuality.OverallScore, 0)
	assert.LessOrEqual(t, profile.ImageQuality.OverallScore, 95)
	assert.NotEmpty(t, profile.ImageQuality.Positioning)
	assert.NotEmpty(t, profile.ImageQuality.TechnicalAdequacy)
}

func TestSkinNipple_EscalatesOnHighSeverityRegion(t *testing.T) {
	p := NewProfileSynthesizer(15)

	plain := p.Synthesize(filledGray(40, 40, 100), nil)
	require.NotNil(t, plain.SkinNipple)
	assert.Contains(t, plain.SkinNipple.Recommendation, "routine self-examination")

	escalated := p.Synthesize(filledGray(40, 40, 100), []domain.Region{{Severity: domain.SeverityHigh}})
	require.NotNil(t, escalated.SkinNipple)
	assert.Contains(t, escalated.SkinNipple.Recommendation, "Clinical breast examination")
}
