// Package domain contains core business entities and types for mammogram
// finding synthesis: risk stratification, region characterization and
// view/laterality determination.
//
// BI-RADS (Breast Imaging Reporting and Data System) terms are used as label
// vocabulary only; this software does not implement the clinical standard and
// is not a diagnostic device.
package domain

import "errors"

// RiskLevel represents the overall risk stratification band derived from the
// classifier's malignant probability. Band boundaries are fixed and closed on
// the lower end, so every probability maps to exactly one band.
type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "Very Low Risk"
	RiskLow      RiskLevel = "Low Risk"
	RiskModerate RiskLevel = "Moderate Risk"
	RiskHigh     RiskLevel = "High Risk"
	RiskVeryHigh RiskLevel = "Very High Risk"
)

// Severity represents the per-region severity band derived from region
// confidence. An exact threshold value stays in the lower band.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// MarginRisk represents the suspicion level implied by a region's margin
// morphology, independent of region confidence.
type MarginRisk string

const (
	MarginRiskLow      MarginRisk = "Low"
	MarginRiskModerate MarginRisk = "Moderate"
	MarginRiskHigh     MarginRisk = "High"
)

// SuspicionLevel represents the view-level suspicion assessment.
type SuspicionLevel string

const (
	SuspicionLow          SuspicionLevel = "Low"
	SuspicionIntermediate SuspicionLevel = "Intermediate"
	SuspicionHigh         SuspicionLevel = "High"
)

// ViewCode identifies the mammography acquisition view and, where known, the
// laterality. The closed set mirrors the filename token vocabulary.
type ViewCode string

const (
	ViewLMLO       ViewCode = "L-MLO"
	ViewRMLO       ViewCode = "R-MLO"
	ViewLCC        ViewCode = "LCC"
	ViewRCC        ViewCode = "RCC"
	ViewGenericMLO ViewCode = "MLO"
	ViewGenericCC  ViewCode = "CC"
)

// ViewFamily is the acquisition view family. It gates which narrative fields
// a ViewAnalysis carries: the MLO and CC field sets are mutually exclusive
// variants, not a shared record with nullable fields.
type ViewFamily string

const (
	FamilyMLO ViewFamily = "MLO"
	FamilyCC  ViewFamily = "CC"
)

// Laterality identifies which breast was imaged.
type Laterality string

const (
	LateralityLeft  Laterality = "Left"
	LateralityRight Laterality = "Right"
)

// CancerType labels the abnormality category assigned to a detected region.
type CancerType string

const (
	TypeMass          CancerType = "Mass"
	TypeCalcification CancerType = "Calcifications"
	TypeDistortion    CancerType = "Architectural distortion"
	TypeAsymmetry     CancerType = "Focal/breast asymmetry"
	TypeSkinChange    CancerType = "Skin thickening"
	TypeBreastTissue  CancerType = "Breast tissue"
)

// Validation errors for pipeline data integrity.
var (
	ErrInvalidRiskLevel  = errors.New("invalid risk level")
	ErrInvalidSeverity   = errors.New("invalid severity")
	ErrInvalidViewCode   = errors.New("invalid view code")
	ErrInvalidLaterality = errors.New("invalid laterality")
)

// IsValid reports whether the risk level is one of the five fixed bands.
func (r RiskLevel) IsValid() bool {
	switch r {
	case RiskVeryLow, RiskLow, RiskModerate, RiskHigh, RiskVeryHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the risk level.
func (r RiskLevel) String() string {
	return string(r)
}

// IsValid reports whether the severity is one of the three bands.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// IsValid reports whether the margin risk is one of the known levels.
func (m MarginRisk) IsValid() bool {
	switch m {
	case MarginRiskLow, MarginRiskModerate, MarginRiskHigh:
		return true
	default:
		return false
	}
}

// IsValid reports whether the suspicion level is one of the known levels.
func (s SuspicionLevel) IsValid() bool {
	switch s {
	case SuspicionLow, SuspicionIntermediate, SuspicionHigh:
		return true
	default:
		return false
	}
}

// IsValid reports whether the view code is one of the closed enum values.
func (v ViewCode) IsValid() bool {
	switch v {
	case ViewLMLO, ViewRMLO, ViewLCC, ViewRCC, ViewGenericMLO, ViewGenericCC:
		return true
	default:
		return false
	}
}

// Family returns the acquisition view family for the code.
func (v ViewCode) Family() ViewFamily {
	switch v {
	case ViewLMLO, ViewRMLO, ViewGenericMLO:
		return FamilyMLO
	default:
		return FamilyCC
	}
}

// Laterality derives laterality mechanically from the view code: a code
// containing "L" without "R" resolves to Left, anything else to Right. A code
// carrying both letters therefore resolves to Right; this precedence is a
// known ambiguity inherited from observed filename conventions, not a
// validated clinical policy.
func (v ViewCode) Laterality() Laterality {
	hasL := false
	hasR := false
	for _, c := range v {
		switch c {
		case 'L':
			hasL = true
		case 'R':
			hasR = true
		}
	}
	if hasL && !hasR {
		return LateralityLeft
	}
	return LateralityRight
}

// Code returns the single-letter laterality code.
func (l Laterality) Code() string {
	if l == LateralityLeft {
		return "L"
	}
	return "R"
}

// IsValid reports whether the laterality is one of the two known sides.
func (l Laterality) IsValid() bool {
	return l == LateralityLeft || l == LateralityRight
}

// IsValid reports whether the cancer type is one of the known categories.
func (c CancerType) IsValid() bool {
	switch c {
	case TypeMass, TypeCalcification, TypeDistortion, TypeAsymmetry, TypeSkinChange, TypeBreastTissue:
		return true
	default:
		return false
	}
}

// String returns the string representation of the cancer type.
func (c CancerType) String() string {
	return string(c)
}
