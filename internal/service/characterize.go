package service

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/mammo-screening-server/internal/domain"
	"github.com/mammo-screening-server/internal/imaging"
)

// RegionCharacterizer turns a raw detection into a full Region record by
// sampling the component's activation patch and applying deterministic
// classification rules.
type RegionCharacterizer struct{}

// NewRegionCharacterizer creates a characterizer.
func NewRegionCharacterizer() *RegionCharacterizer {
	return &RegionCharacterizer{}
}

// patchStats describes the activation distribution inside one region patch.
type patchStats struct {
	mean    float64
	max     float64
	std     float64
	pattern string
}

// Characterize builds the Region record for one raw detection. The region id
// is assigned by the caller from the confidence-ordered position. A patch
// that clamps to nothing returns a RegionSamplingOOB error and the region is
// dropped by the caller.
func (c *RegionCharacterizer) Characterize(raw RawRegion, field *imaging.Field, imgWidth, imgHeight, id int) (domain.Region, error) {
	ps, err := c.samplePatch(raw.BBox, field, imgWidth, imgHeight)
	if err != nil {
		return domain.Region{}, err
	}

	confidence := raw.Confidence()
	severity := severityFor(confidence)

	location := locateRegion(raw.BBox, imgWidth, imgHeight)
	size := domain.RegionSize{
		WidthPx:        raw.BBox.Width(),
		HeightPx:       raw.BBox.Height(),
		AreaPercentage: round2(raw.AreaPercentage),
	}

	shape := shapeFor(raw.BBox)
	cancerType, subtype := classifyType(ps, size, shape, id)

	morphology := morphologyFor(shape)
	margin := marginFor(confidence)
	density := densityFor(ps.mean)
	vascularity := vascularityFor(ps.pattern)
	tissue := tissueCompositionFor(cancerType, raw.AreaPercentage, ps.pattern)

	birads := biradsForRegion(confidence, severity, margin.RiskLevel)

	region := domain.Region{
		ID:                   id,
		Confidence:           round2(confidence),
		Severity:             severity,
		CancerType:           cancerType,
		CancerSubtype:        subtype,
		Location:             location,
		Size:                 size,
		BBox:                 raw.BBox,
		Morphology:           morphology,
		Margin:               margin,
		Density:              density,
		Vascularity:          vascularity,
		TissueComposition:    tissue,
		BIRADSRegion:         birads,
		ClinicalSignificance: clinicalSignificance(birads),
		RecommendedAction:    recommendedAction(birads, cancerType, raw.AreaPercentage),
	}

	if cancerType == domain.TypeCalcification {
		region.Calcification = calcificationDetailsFor(subtype)
	}

	return region, nil
}

// samplePatch reads the activation patch under the region's bounding box.
func (c *RegionCharacterizer) samplePatch(bbox domain.BoundingBox, field *imaging.Field, imgWidth, imgHeight int) (patchStats, error) {
	scaleX := float64(imgWidth) / float64(field.Width)
	scaleY := float64(imgHeight) / float64(field.Height)

	fx1 := int(float64(bbox.X1) / scaleX)
	fy1 := int(float64(bbox.Y1) / scaleY)
	fx2 := int(float64(bbox.X2) / scaleX)
	fy2 := int(float64(bbox.Y2) / scaleY)

	if fx1 < 0 {
		fx1 = 0
	}
	if fy1 < 0 {
		fy1 = 0
	}
	if fx2 > field.Width {
		fx2 = field.Width
	}
	if fy2 > field.Height {
		fy2 = field.Height
	}

	if fx2 <= fx1 || fy2 <= fy1 {
		return patchStats{}, domain.NewPipelineError(
			domain.ErrRegionSamplingOOB,
			"region patch falls outside usable bounds",
			fmt.Sprintf("bbox (%d,%d)-(%d,%d) clamps to empty patch in %dx%d field",
				bbox.X1, bbox.Y1, bbox.X2, bbox.Y2, field.Width, field.Height),
			"",
		)
	}

	patch := make([]float64, 0, (fx2-fx1)*(fy2-fy1))
	max := 0.0
	for y := fy1; y < fy2; y++ {
		for x := fx1; x < fx2; x++ {
			v := field.At(x, y)
			patch = append(patch, v)
			if v > max {
				max = v
			}
		}
	}

	mean := stat.Mean(patch, nil)
	std := 0.0
	if len(patch) > 1 {
		std = stat.StdDev(patch, nil)
	}

	return patchStats{
		mean:    mean,
		max:     max,
		std:     std,
		pattern: patternFor(std),
	}, nil
}

// severityFor maps confidence to the three severity bands. Exact threshold
// values stay in the lower band.
func severityFor(confidence float64) domain.Severity {
	switch {
	case confidence > 70:
		return domain.SeverityHigh
	case confidence > 50:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func patternFor(std float64) string {
	switch {
	case std < 0.1:
		return "homogeneous"
	case std < 0.2:
		return "slightly heterogeneous"
	default:
		return "heterogeneous"
	}
}

// locateRegion names the region's position within the image using center
// thirds for position and halves for quadrant.
func locateRegion(bbox domain.BoundingBox, imgWidth, imgHeight int) domain.RegionLocation {
	centerX := float64(bbox.X1+bbox.X2) / 2
	centerY := float64(bbox.Y1+bbox.Y2) / 2
	w := float64(imgWidth)
	h := float64(imgHeight)

	var hPos string
	switch {
	case centerX < w*0.33:
		hPos = "lateral"
	case centerX > w*0.67:
		hPos = "medial"
	default:
		hPos = "central"
	}

	var vPos string
	switch {
	case centerY < h*0.33:
		vPos = "upper"
	case centerY > h*0.67:
		vPos = "lower"
	default:
		vPos = "mid"
	}

	var quadrant string
	switch {
	case centerX < w*0.5 && centerY < h*0.5:
		quadrant = "upper-outer quadrant"
	case centerX >= w*0.5 && centerY < h*0.5:
		quadrant = "upper-inner quadrant"
	case centerX < w*0.5:
		quadrant = "lower-outer quadrant"
	default:
		quadrant = "lower-inner quadrant"
	}

	return domain.RegionLocation{
		Position:    fmt.Sprintf("%s-%s", vPos, hPos),
		Quadrant:    quadrant,
		Description: fmt.Sprintf("%s %s region (%s)", vPos, hPos, quadrant),
	}
}

func shapeFor(bbox domain.BoundingBox) string {
	aspect := 1.0
	if bbox.Height() > 0 {
		aspect = float64(bbox.Width()) / float64(bbox.Height())
	}
	switch {
	case aspect >= 0.8 && aspect <= 1.2:
		return "roughly circular"
	case aspect > 1.2:
		return "horizontally elongated"
	default:
		return "vertically elongated"
	}
}

// classifyType assigns an abnormality category from size, intensity, shape
// and pattern. Rules are ordered by priority; the fallback rotates through a
// fixed option list keyed by region id so dense multi-region images do not
// collapse into a single label.
func classifyType(ps patchStats, size domain.RegionSize, shape string, id int) (domain.CancerType, string) {
	area := size.AreaPercentage
	aspect := 1.0
	if size.HeightPx > 0 {
		aspect = float64(size.WidthPx) / float64(size.HeightPx)
	}

	isVerySmall := area < 0.3
	isSmall := area >= 0.3 && area < 0.8
	isMedium := area >= 0.8 && area < 2.5
	isLarge := area >= 2.5

	isVeryHigh := ps.max > 0.9
	isHigh := ps.max > 0.75 && ps.max <= 0.9
	isModerate := ps.max > 0.5 && ps.max <= 0.75

	isRound := aspect >= 0.85 && aspect <= 1.15
	isIrregular := aspect < 0.6 || aspect > 1.4
	isHeterogeneous := strings.Contains(ps.pattern, "heterogeneous")

	severity := severityFor(ps.max * 100)

	switch {
	case isVerySmall && isVeryHigh:
		return domain.TypeCalcification, "Microcalcifications"
	case isSmall && (isVeryHigh || isHigh):
		return domain.TypeCalcification, "Clustered Calcifications"
	case (isMedium || isLarge) && (isHigh || isVeryHigh) && isRound:
		return domain.TypeMass, "Suspicious Mass"
	case (isMedium || isLarge) && isIrregular && (isHigh || isModerate):
		return domain.TypeMass, "Irregular Mass"
	case isIrregular && isHeterogeneous && severity != domain.SeverityLow:
		return domain.TypeDistortion, "Tissue Distortion"
	case isMedium && isModerate && !isRound:
		return domain.TypeAsymmetry, "Asymmetric Density"
	case isLarge && ps.max < 0.6:
		return domain.TypeSkinChange, "Surface Changes"
	case isMedium && severity == domain.SeverityMedium:
		return domain.TypeBreastTissue, "Tissue Abnormality"
	}

	fallbacks := []struct {
		t domain.CancerType
		s string
	}{
		{domain.TypeMass, "Focal Lesion"},
		{domain.TypeCalcification, "Scattered Calcifications"},
		{domain.TypeAsymmetry, "Density Asymmetry"},
		{domain.TypeBreastTissue, "Abnormal Tissue"},
	}
	f := fallbacks[id%len(fallbacks)]
	return f.t, f.s
}

func morphologyFor(shape string) domain.Morphology {
	var morphShape string
	switch {
	case shape == "roughly circular":
		morphShape = "Round/Oval"
	case strings.Contains(shape, "elongated"):
		morphShape = "Irregular"
	default:
		morphShape = "Lobular"
	}
	return domain.Morphology{
		Shape:       morphShape,
		Description: fmt.Sprintf("%s lesion", morphShape),
	}
}

// marginFor maps confidence to margin morphology and its implied suspicion.
func marginFor(confidence float64) domain.Margin {
	var marginType string
	var risk domain.MarginRisk
	switch {
	case confidence > 80:
		marginType = "Spiculated"
		risk = domain.MarginRiskHigh
	case confidence > 60:
		marginType = "Irregular/Indistinct"
		risk = domain.MarginRiskModerate
	default:
		marginType = "Circumscribed"
		risk = domain.MarginRiskLow
	}
	return domain.Margin{
		Type:        marginType,
		RiskLevel:   risk,
		Description: fmt.Sprintf("%s margins suggest %s suspicion", marginType, strings.ToLower(string(risk))),
	}
}

func densityFor(meanIntensity float64) domain.RegionDensity {
	var level string
	switch {
	case meanIntensity > 0.8:
		level = "High density"
	case meanIntensity > 0.5:
		level = "Equal density"
	default:
		level = "Low density"
	}
	relative := "Similar to surrounding tissue"
	if meanIntensity > 0.6 {
		relative = "Higher than surrounding tissue"
	}
	return domain.RegionDensity{Level: level, RelativeToTissue: relative}
}

func vascularityFor(pattern string) domain.Vascularity {
	switch pattern {
	case "heterogeneous":
		return domain.Vascularity{Assessment: "Increased", Significance: "May indicate active lesion"}
	case "slightly heterogeneous":
		return domain.Vascularity{Assessment: "Moderate", Significance: "Normal perfusion pattern"}
	default:
		return domain.Vascularity{Assessment: "Normal", Significance: "Normal perfusion pattern"}
	}
}

func tissueCompositionFor(cancerType domain.CancerType, areaPercentage float64, pattern string) domain.TissueComposition {
	var tissueType string
	switch {
	case cancerType == domain.TypeCalcification:
		tissueType = "Calcified"
	case areaPercentage > 2:
		tissueType = "Fibroglandular"
	default:
		tissueType = "Mixed density"
	}
	return domain.TissueComposition{Type: tissueType, Heterogeneity: pattern}
}

// calcificationDetailsFor describes the calcification signature for regions
// the type classifier labeled as calcifications.
func calcificationDetailsFor(subtype string) *domain.CalcificationDetails {
	distribution := "Clustered"
	if strings.Contains(subtype, "Scattered") {
		distribution = "Scattered"
	}
	return &domain.CalcificationDetails{
		Morphology:   "Punctate/Round",
		Distribution: distribution,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
