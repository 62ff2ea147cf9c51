// Package report synthesizes a structured clinical-style document from a
// completed analysis. Layout and typesetting are left to the consumer; this
// package only assembles the section content in reading order.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/mammo-screening-server/internal/domain"
)

// Document is the report-ready projection of one analysis.
type Document struct {
	ReportNumber string          `json:"report_number"`
	GeneratedAt  time.Time       `json:"generated_at"`
	Title        string          `json:"title"`
	Subtitle     string          `json:"subtitle"`
	Examination  Examination     `json:"examination"`
	AIAnalysis   AIAnalysis      `json:"ai_analysis"`
	Regions      []RegionFinding `json:"regions"`
	Profile      []ProfileLine   `json:"profile,omitempty"`
	Impression   string          `json:"impression"`
	Suggestion   string          `json:"suggestion"`
	Note         string          `json:"note"`
}

// Examination summarizes the study parameters.
type Examination struct {
	Filename     string `json:"filename"`
	View         string `json:"view"`
	Laterality   string `json:"laterality"`
	ImageQuality string `json:"image_quality"`
	BreastSide   string `json:"breast_side_code"`
	ImageSize    string `json:"image_size"`
	FileFormat   string `json:"file_format"`
}

// AIAnalysis summarizes the classifier verdict.
type AIAnalysis struct {
	Result         string  `json:"result"`
	Confidence     float64 `json:"confidence"`
	MalignantProb  float64 `json:"malignant_prob"`
	BenignProb     float64 `json:"benign_prob"`
	RiskLevel      string  `json:"risk_level"`
	BIRADSCategory string  `json:"birads_category"`
	SuspicionLevel string  `json:"suspicion_level"`
	Summary        string  `json:"summary"`
}

// RegionFinding is one region rendered as report narrative.
type RegionFinding struct {
	ID             int     `json:"id"`
	Heading        string  `json:"heading"`
	Location       string  `json:"location"`
	Size           string  `json:"size"`
	Confidence     float64 `json:"confidence"`
	Severity       string  `json:"severity"`
	BIRADS         string  `json:"birads"`
	Morphology     string  `json:"morphology"`
	Margin         string  `json:"margin"`
	Significance   string  `json:"significance"`
	Recommendation string  `json:"recommendation"`
}

// ProfileLine is one whole-image descriptor rendered as a label/value pair.
type ProfileLine struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Note  string `json:"note,omitempty"`
}

// Build assembles the document for one analysis result.
func Build(result *domain.AnalysisResult) *Document {
	now := time.Now().UTC()
	doc := &Document{
		ReportNumber: fmt.Sprintf("MAM-%s-%s", now.Format("20060102"), shortID(result.ID)),
		GeneratedAt:  now,
		Title:        "MAMMOGRAPHY REPORT",
		Subtitle:     "Mammogram and AI-Assisted Breast Analysis",
		Examination:  buildExamination(result),
		AIAnalysis:   buildAIAnalysis(result),
		Regions:      buildRegions(result),
		Profile:      buildProfile(result),
		Impression:   buildImpression(result),
		Suggestion:   buildSuggestion(result),
		Note: "This report was generated with AI assistance and is intended to support, " +
			"not replace, interpretation by a qualified radiologist.",
	}
	return doc
}

func shortID(id string) string {
	clean := strings.ReplaceAll(id, "-", "")
	if len(clean) > 8 {
		clean = clean[:8]
	}
	return strings.ToUpper(clean)
}

func buildExamination(result *domain.AnalysisResult) Examination {
	exam := Examination{
		Filename:   result.Filename,
		ImageSize:  fmt.Sprintf("%dx%d", result.ImageSize.Width, result.ImageSize.Height),
		FileFormat: result.FileFormat,
	}
	if v := result.ViewAnalysis; v != nil {
		exam.View = v.ViewType
		exam.Laterality = string(v.Laterality)
		exam.BreastSide = v.LateralityCode
		exam.ImageQuality = v.ImageQuality
	}
	return exam
}

func buildAIAnalysis(result *domain.AnalysisResult) AIAnalysis {
	ai := AIAnalysis{
		Result:        result.Result,
		Confidence:    result.Confidence,
		MalignantProb: result.MalignantProb,
		BenignProb:    result.BenignProb,
		RiskLevel:     result.RiskLevel.String(),
	}
	if result.Findings != nil {
		ai.Summary = result.Findings.Summary
	}
	if v := result.ViewAnalysis; v != nil {
		ai.BIRADSCategory = v.BIRADSCategory
		ai.SuspicionLevel = string(v.SuspicionLevel)
	}
	return ai
}

func buildRegions(result *domain.AnalysisResult) []RegionFinding {
	if result.Findings == nil {
		return nil
	}
	findings := make([]RegionFinding, 0, len(result.Findings.Regions))
	for _, r := range result.Findings.Regions {
		findings = append(findings, RegionFinding{
			ID:             r.ID,
			Heading:        fmt.Sprintf("Region %d: %s", r.ID, r.CancerType),
			Location:       r.Location.Description,
			Size:           fmt.Sprintf("%dx%d px (%.2f%% of image)", r.Size.WidthPx, r.Size.HeightPx, r.Size.AreaPercentage),
			Confidence:     r.Confidence,
			Severity:       r.Severity.String(),
			BIRADS:         r.BIRADSRegion,
			Morphology:     r.Morphology.Description,
			Margin:         r.Margin.Description,
			Significance:   r.ClinicalSignificance,
			Recommendation: r.RecommendedAction,
		})
	}
	return findings
}

func buildProfile(result *domain.AnalysisResult) []ProfileLine {
	if result.Findings == nil || result.Findings.Comprehensive == nil {
		return nil
	}
	p := result.Findings.Comprehensive

	var lines []ProfileLine
	if p.BreastDensity != nil {
		lines = append(lines, ProfileLine{
			Label: "Breast Density",
			Value: fmt.Sprintf("ACR Category %s (%d%%)", p.BreastDensity.Category, p.BreastDensity.DensityPercentage),
			Note:  p.BreastDensity.Recommendation,
		})
	}
	if p.TissueTexture != nil {
		lines = append(lines, ProfileLine{
			Label: "Tissue Texture",
			Value: p.TissueTexture.Pattern,
			Note:  p.TissueTexture.Distribution,
		})
	}
	if p.Symmetry != nil {
		lines = append(lines, ProfileLine{
			Label: "Symmetry",
			Value: fmt.Sprintf("%s (score %d)", p.Symmetry.Assessment, p.Symmetry.SymmetryScore),
			Note:  p.Symmetry.Recommendation,
		})
	}
	if p.SkinNipple != nil {
		lines = append(lines, ProfileLine{
			Label: "Skin / Nipple",
			Value: p.SkinNipple.SkinStatus,
			Note:  p.SkinNipple.Recommendation,
		})
	}
	if p.VascularPatterns != nil {
		lines = append(lines, ProfileLine{
			Label: "Vascular Patterns",
			Value: p.VascularPatterns.Pattern,
			Note:  p.VascularPatterns.ClinicalNote,
		})
	}
	if p.ImageQuality != nil {
		lines = append(lines, ProfileLine{
			Label: "Image Quality",
			Value: fmt.Sprintf("%d/100, %s", p.ImageQuality.OverallScore, p.ImageQuality.TechnicalAdequacy),
		})
	}
	if p.Calcification != nil {
		value := "Not detected"
		if p.Calcification.Detected {
			value = fmt.Sprintf("%d, %s", p.Calcification.Count, p.Calcification.Distribution)
		}
		lines = append(lines, ProfileLine{
			Label: "Calcifications",
			Value: value,
			Note:  p.Calcification.Recommendation,
		})
	}
	return lines
}

func buildImpression(result *domain.AnalysisResult) string {
	if v := result.ViewAnalysis; v != nil && v.Impression != "" {
		return v.Impression
	}
	if result.Findings != nil {
		return result.Findings.Summary
	}
	return "No impression available"
}

func buildSuggestion(result *domain.AnalysisResult) string {
	if result.Findings == nil || len(result.Findings.Regions) == 0 {
		return "Continue routine screening per guidelines."
	}
	// The highest-confidence region drives the headline suggestion.
	return result.Findings.Regions[0].RecommendedAction
}
