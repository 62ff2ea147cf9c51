package service

import (
	"strings"

	"github.com/mammo-screening-server/internal/domain"
)

// Narrative text is generated by pure lookups so identical region attributes
// always produce identical wording.

var significanceByBIRADS = map[string]string{
	"5":  "Highly suspicious for malignancy - immediate intervention required",
	"4C": "High suspicion for malignancy - strong recommendation for biopsy",
	"4B": "Intermediate suspicion - malignancy possible, tissue diagnosis indicated",
	"4A": "Low suspicion for malignancy - biopsy should be considered",
	"3":  "Probably benign finding - short interval follow-up suggested",
	"2":  "Benign finding - routine screening recommended",
}

// clinicalSignificance returns the narrative for a region's assessment code.
func clinicalSignificance(birads string) string {
	if s, ok := significanceByBIRADS[birads]; ok {
		return s
	}
	return significanceByBIRADS["2"]
}

// recommendedAction returns the follow-up narrative for a region. Large 4B
// lesions and calcified 4A lesions get sampling-specific wording.
func recommendedAction(birads string, cancerType domain.CancerType, areaPercentage float64) string {
	switch birads {
	case "5":
		return "Urgent biopsy (core needle or surgical) and oncology referral"
	case "4C":
		return "Tissue diagnosis via core needle biopsy within 1-2 weeks"
	case "4B":
		if areaPercentage > 2 {
			return "Core needle biopsy recommended - larger lesion requires sampling"
		}
		return "Core needle biopsy or short-interval (3-6 month) follow-up"
	case "4A":
		if strings.Contains(strings.ToLower(string(cancerType)), "calcification") {
			return "Consider stereotactic biopsy for calcifications"
		}
		return "Biopsy consideration or 6-month short-interval follow-up"
	case "3":
		return "Short-interval follow-up mammogram in 6 months"
	default:
		return "Continue routine annual screening"
	}
}

// biradsForRegion maps region attributes to a BI-RADS assessment code.
// Confidence thresholds take precedence; severity and margin combinations
// fill in the borderline cases.
func biradsForRegion(confidence float64, severity domain.Severity, marginRisk domain.MarginRisk) string {
	switch {
	case confidence >= 90 || (severity == domain.SeverityHigh && marginRisk == domain.MarginRiskHigh):
		return "5"
	case confidence >= 75 || (severity == domain.SeverityHigh && (marginRisk == domain.MarginRiskHigh || marginRisk == domain.MarginRiskModerate)):
		return "4C"
	case confidence >= 60 || (severity == domain.SeverityMedium && marginRisk == domain.MarginRiskModerate):
		return "4B"
	case confidence >= 45 || (severity == domain.SeverityMedium && marginRisk == domain.MarginRiskLow):
		return "4A"
	case confidence >= 30 || severity == domain.SeverityLow:
		return "3"
	default:
		return "2"
	}
}
