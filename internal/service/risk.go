package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mammo-screening-server/internal/domain"
)

// RiskBand maps a malignant probability percentage to its fixed risk band.
// Boundaries are closed on the lower end: [0,10) Very Low, [10,25) Low,
// [25,50) Moderate, [50,75) High, [75,100] Very High. The bands never move
// with the configurable operating threshold.
func RiskBand(malignantPct float64) domain.RiskLevel {
	switch {
	case malignantPct >= 75:
		return domain.RiskVeryHigh
	case malignantPct >= 50:
		return domain.RiskHigh
	case malignantPct >= 25:
		return domain.RiskModerate
	case malignantPct >= 10:
		return domain.RiskLow
	default:
		return domain.RiskVeryLow
	}
}

// RiskPresentation returns the icon and color paired with a risk band.
func RiskPresentation(level domain.RiskLevel) (icon, color string) {
	switch level {
	case domain.RiskVeryHigh:
		return "🔴", "#DC2626"
	case domain.RiskHigh:
		return "🟠", "#EA580C"
	case domain.RiskModerate:
		return "🟡", "#F59E0B"
	case domain.RiskLow:
		return "🟢", "#84CC16"
	default:
		return "🟢", "#10B981"
	}
}

// ResultLabel classifies the sample against the configurable operating
// threshold. Independent of RiskBand: the two may disagree near the boundary
// when the threshold is not 0.5.
func ResultLabel(malignantProbability, threshold float64) string {
	if malignantProbability >= threshold {
		return "Malignant"
	}
	return "Benign"
}

// FindingsSummary renders the narrative headline for a findings record.
func FindingsSummary(regions []domain.Region, malignantProbability float64) string {
	switch len(regions) {
	case 0:
		if malignantProbability > 0.5 {
			return "Diffuse abnormal patterns detected across the tissue without distinct focal masses."
		}
		return "No distinct suspicious regions identified. Tissue appears uniform and normal."
	case 1:
		r := regions[0]
		return fmt.Sprintf(
			"Single suspicious region detected in the %s with %.1f%% confidence. The lesion shows %s density pattern.",
			r.Location.Description, r.Confidence, r.TissueComposition.Heterogeneity,
		)
	default:
		quadrants := make(map[string]struct{})
		for _, r := range regions {
			quadrants[r.Location.Quadrant] = struct{}{}
		}
		names := make([]string, 0, len(quadrants))
		for q := range quadrants {
			names = append(names, q)
		}
		sort.Strings(names)
		return fmt.Sprintf(
			"Multiple suspicious regions (%d) detected across %s. This multi-focal pattern warrants immediate clinical evaluation.",
			len(regions), strings.Join(names, ", "),
		)
	}
}
