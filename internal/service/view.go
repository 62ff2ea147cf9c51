package service

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mammo-screening-server/internal/domain"
	"github.com/mammo-screening-server/internal/imaging"
)

// ViewClassifier determines the acquisition view and laterality for one
// image. Filename tokens are the primary signal; a geometric heuristic over
// the image itself is the fallback.
type ViewClassifier struct {
	tissueThreshold float64
}

// NewViewClassifier creates a classifier using the given tissue threshold.
func NewViewClassifier(tissueThreshold float64) *ViewClassifier {
	if tissueThreshold == 0 {
		tissueThreshold = 15
	}
	return &ViewClassifier{tissueThreshold: tissueThreshold}
}

// viewTokens is the filename vocabulary in precedence order. Sided codes are
// checked before the generic families so "LMLO" never matches as plain "MLO".
var viewTokens = []struct {
	token string
	code  domain.ViewCode
}{
	{"LMLO", domain.ViewLMLO},
	{"RMLO", domain.ViewRMLO},
	{"LCC", domain.ViewLCC},
	{"RCC", domain.ViewRCC},
	{"MLO", domain.ViewGenericMLO},
	{"CC", domain.ViewGenericCC},
}

// Classify determines view and laterality and assembles the per-view
// narrative. Exactly one of the MLO or CC field sets is populated, keyed by
// the resolved view family.
func (v *ViewClassifier) Classify(filename string, g *imaging.Grayscale, score domain.ClassScore, regions []domain.Region, quality *domain.ImageQualityProfile) *domain.ViewAnalysis {
	code, fromFilename := v.fromFilename(filename)
	if !fromFilename {
		code = v.fromGeometry(g)
	}

	laterality := code.Laterality()
	family := code.Family()

	analysis := &domain.ViewAnalysis{
		ViewCode:       code,
		Laterality:     laterality,
		LateralityCode: laterality.Code(),
		FromFilename:   fromFilename,
	}

	if family == domain.FamilyMLO {
		analysis.ViewType = "MLO (Medio-Lateral Oblique)"
		analysis.MLO = &domain.MLOFindings{
			AxillaryFindings:         "No suspicious axillary lymphadenopathy",
			PectoralMuscleVisibility: "Adequately visualized",
			ArchitecturalDistortion:  distortionNarrative(regions),
			InframammaryFold:         "Inframammary fold included",
		}
	} else {
		analysis.ViewType = "CC (Cranio-Caudal)"
		analysis.CC = &domain.CCFindings{
			Asymmetry:         asymmetryNarrative(regions),
			SkinNippleChanges: "No skin or nipple abnormalities",
			MedialCoverage:    "Medial tissue adequately included",
			LateralCoverage:   "Lateral tissue adequately included",
		}
	}

	analysis.Masses = massNarrative(regions)
	analysis.Calcifications = calcificationNarrative(regions)

	if quality != nil {
		score := quality.OverallScore
		analysis.QualityScore = &score
		if score >= 50 {
			analysis.ImageQuality = "Acceptable - Adequate for interpretation"
		} else {
			analysis.ImageQuality = "Suboptimal - Consider repeat imaging"
		}
	} else {
		analysis.ImageQuality = "Not assessed"
	}

	v.assessSuspicion(analysis, score, regions)
	return analysis
}

// fromFilename matches the cleaned uppercase filename against the token
// vocabulary, first match wins.
func (v *ViewClassifier) fromFilename(filename string) (domain.ViewCode, bool) {
	if filename == "" {
		return "", false
	}

	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	name = strings.ToUpper(name)
	name = strings.NewReplacer("-", "", "_", "", " ", "").Replace(name)

	for _, t := range viewTokens {
		if strings.Contains(name, t.token) {
			return t.code, true
		}
	}
	return "", false
}

// fromGeometry guesses the view family from aspect ratio and laterality from
// which half carries more tissue. MLO acquisitions run taller than wide; the
// breast cone opens toward the chest-wall edge of the frame.
func (v *ViewClassifier) fromGeometry(g *imaging.Grayscale) domain.ViewCode {
	if g == nil || g.Width == 0 || g.Height == 0 {
		return domain.ViewGenericCC
	}

	isMLO := float64(g.Height)/float64(g.Width) > 1.3

	var leftMass, rightMass float64
	half := g.Width / 2
	for y := 0; y < g.Height; y++ {
		for x := 0; x < half; x++ {
			if g.At(x, y) > v.tissueThreshold {
				leftMass++
			}
			if g.At(g.Width-1-x, y) > v.tissueThreshold {
				rightMass++
			}
		}
	}

	leftBreast := leftMass > rightMass
	switch {
	case isMLO && leftBreast:
		return domain.ViewLMLO
	case isMLO:
		return domain.ViewRMLO
	case leftBreast:
		return domain.ViewLCC
	default:
		return domain.ViewRCC
	}
}

// assessSuspicion sets the view-level suspicion, impression and BI-RADS
// narrative from the class score and region count.
func (v *ViewClassifier) assessSuspicion(analysis *domain.ViewAnalysis, score domain.ClassScore, regions []domain.Region) {
	prob := score.MalignantProbability
	switch {
	case prob >= 0.75 || len(regions) >= 3:
		analysis.SuspicionLevel = domain.SuspicionHigh
		analysis.Impression = "Multiple suspicious findings requiring immediate workup"
		analysis.BIRADSCategory = "BI-RADS 4C/5 - Highly suspicious"
	case prob >= 0.5 || len(regions) >= 1:
		analysis.SuspicionLevel = domain.SuspicionIntermediate
		analysis.Impression = "Findings present that warrant further evaluation"
		analysis.BIRADSCategory = "BI-RADS 4A/4B - Suspicious abnormality"
	default:
		analysis.SuspicionLevel = domain.SuspicionLow
		analysis.Impression = "No suspicious abnormality detected"
		analysis.BIRADSCategory = "BI-RADS 1/2 - Negative/Benign"
	}
	analysis.ConfidenceScore = fmt.Sprintf("%.1f%%", prob*100)
}

func massNarrative(regions []domain.Region) string {
	count := 0
	for _, r := range regions {
		if r.CancerType == domain.TypeMass {
			count++
		}
	}
	if count == 0 {
		return "No masses identified"
	}
	return fmt.Sprintf("%d mass(es) detected", count)
}

func calcificationNarrative(regions []domain.Region) string {
	for _, r := range regions {
		if r.HasCalcification() {
			return "Calcifications present, see region findings"
		}
	}
	return "No suspicious calcifications"
}

func distortionNarrative(regions []domain.Region) string {
	for _, r := range regions {
		if r.CancerType == domain.TypeDistortion {
			return "Architectural distortion identified, see region findings"
		}
	}
	return "No architectural distortion identified"
}

func asymmetryNarrative(regions []domain.Region) string {
	for _, r := range regions {
		if r.CancerType == domain.TypeAsymmetry {
			return "Focal asymmetry identified, see region findings"
		}
	}
	return "No significant asymmetry"
}
