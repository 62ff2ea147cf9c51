package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mammo-screening-server/internal/domain"
	"github.com/mammo-screening-server/internal/imaging"
)

func uniformField(w, h int, value float64) *imaging.Field {
	f := imaging.NewField(w, h)
	for i := range f.Values {
		f.Values[i] = value
	}
	return f
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		confidence float64
		want       domain.Severity
	}{
		{82, domain.SeverityHigh},
		{70.1, domain.SeverityHigh},
		{70, domain.SeverityMedium}, // exact threshold stays in the lower band
		{51, domain.SeverityMedium},
		{50, domain.SeverityLow},
		{12, domain.SeverityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, severityFor(tt.confidence), "confidence %.1f", tt.confidence)
	}
}

func TestMarginFor(t *testing.T) {
	tests := []struct {
		confidence float64
		marginType string
		risk       domain.MarginRisk
	}{
		{85, "Spiculated", domain.MarginRiskHigh},
		{80, "Irregular/Indistinct", domain.MarginRiskModerate},
		{65, "Irregular/Indistinct", domain.MarginRiskModerate},
		{60, "Circumscribed", domain.MarginRiskLow},
		{30, "Circumscribed", domain.MarginRiskLow},
	}
	for _, tt := range tests {
		m := marginFor(tt.confidence)
		assert.Equal(t, tt.marginType, m.Type, "confidence %.1f", tt.confidence)
		assert.Equal(t, tt.risk, m.RiskLevel, "confidence %.1f", tt.confidence)
	}
}

func TestBiradsForRegion(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		severity   domain.Severity
		marginRisk domain.MarginRisk
		want       string
	}{
		{"very high confidence", 95, domain.SeverityHigh, domain.MarginRiskHigh, "5"},
		{"high severity spiculated combo", 72, domain.SeverityHigh, domain.MarginRiskHigh, "5"},
		{"high confidence", 80, domain.SeverityHigh, domain.MarginRiskModerate, "4C"},
		{"moderate confidence", 62, domain.SeverityMedium, domain.MarginRiskModerate, "4B"},
		{"borderline", 47, domain.SeverityLow, domain.MarginRiskLow, "4A"},
		{"probably benign", 35, domain.SeverityMedium, domain.MarginRiskLow, "4A"},
		{"low confidence", 20, domain.SeverityLow, domain.MarginRiskLow, "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, biradsForRegion(tt.confidence, tt.severity, tt.marginRisk))
		})
	}
}

func TestLocateRegion(t *testing.T) {
	loc := locateRegion(domain.BoundingBox{X1: 10, Y1: 10, X2: 30, Y2: 30}, 100, 100)
	assert.Equal(t, "upper-lateral", loc.Position)
	assert.Equal(t, "upper-outer quadrant", loc.Quadrant)
	assert.Contains(t, loc.Description, "upper lateral region")

	loc = locateRegion(domain.BoundingBox{X1: 70, Y1: 70, X2: 90, Y2: 90}, 100, 100)
	assert.Equal(t, "lower-medial", loc.Position)
	assert.Equal(t, "lower-inner quadrant", loc.Quadrant)

	loc = locateRegion(domain.BoundingBox{X1: 40, Y1: 40, X2: 60, Y2: 60}, 100, 100)
	assert.Equal(t, "mid-central", loc.Position)
}

func TestCharacterize_MicrocalcificationRegion(t *testing.T) {
	c := NewRegionCharacterizer()
	field := uniformField(10, 10, 0.95)

	raw := RawRegion{
		BBox:           domain.BoundingBox{X1: 20, Y1: 20, X2: 40, Y2: 40},
		Peak:           0.95,
		Mean:           0.95,
		AreaCells:      4,
		AreaPercentage: 0.2,
	}

	region, err := c.Characterize(raw, field, 100, 100, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, region.ID)
	assert.InDelta(t, 95.0, region.Confidence, 0.001)
	assert.Equal(t, domain.SeverityHigh, region.Severity)
	assert.Equal(t, domain.TypeCalcification, region.CancerType)
	assert.Equal(t, "Microcalcifications", region.CancerSubtype)
	assert.Equal(t, "Spiculated", region.Margin.Type)
	assert.Equal(t, "5", region.BIRADSRegion)
	assert.Contains(t, region.ClinicalSignificance, "Highly suspicious")
	assert.Contains(t, region.RecommendedAction, "Urgent biopsy")
	require.NotNil(t, region.Calcification)
	assert.Equal(t, "Punctate/Round", region.Calcification.Morphology)
	assert.Equal(t, "Clustered", region.Calcification.Distribution)
}

func TestCharacterize_Deterministic(t *testing.T) {
	c := NewRegionCharacterizer()
	field := uniformField(10, 10, 0.7)

	raw := RawRegion{
		BBox:           domain.BoundingBox{X1: 10, Y1: 10, X2: 50, Y2: 50},
		Peak:           0.7,
		Mean:           0.65,
		AreaCells:      16,
		AreaPercentage: 1.6,
	}

	first, err := c.Characterize(raw, field, 100, 100, 2)
	require.NoError(t, err)
	second, err := c.Characterize(raw, field, 100, 100, 2)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestCharacterize_PatchOutsideField(t *testing.T) {
	c := NewRegionCharacterizer()
	field := uniformField(3, 3, 0.8)

	// bbox spans under one field cell after scaling and clamps to nothing
	raw := RawRegion{
		BBox: domain.BoundingBox{X1: 0, Y1: 0, X2: 50, Y2: 50},
		Peak: 0.8,
	}

	_, err := c.Characterize(raw, field, 300, 300, 1)
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ErrRegionSamplingOOB))
}

func TestClassifyType_FallbackRotation(t *testing.T) {
	ps := patchStats{mean: 0.55, max: 0.55, std: 0.05, pattern: "homogeneous"}
	size := domain.RegionSize{WidthPx: 10, HeightPx: 10, AreaPercentage: 0.1}

	t1, _ := classifyType(ps, size, "roughly circular", 1)
	t2, _ := classifyType(ps, size, "roughly circular", 2)
	t1Again, _ := classifyType(ps, size, "roughly circular", 1)

	assert.Equal(t, t1, t1Again)
	assert.NotEqual(t, t1, t2)
}

func TestPatternFor(t *testing.T) {
	assert.Equal(t, "homogeneous", patternFor(0.05))
	assert.Equal(t, "slightly heterogeneous", patternFor(0.15))
	assert.Equal(t, "heterogeneous", patternFor(0.3))
}
