package domain

import "time"

// ClassScore holds the classifier's output probabilities for one sample.
// Invariant: MalignantProbability + BenignProbability == 1 within floating
// tolerance. Derived once per sample and immutable thereafter.
type ClassScore struct {
	MalignantProbability float64 `json:"malignant_probability"`
	BenignProbability    float64 `json:"benign_probability"`
}

// BoundingBox is a region's bounding geometry in source-image pixels.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the box width in pixels.
func (b BoundingBox) Width() int { return b.X2 - b.X1 }

// Height returns the box height in pixels.
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

// RegionLocation describes where a region sits within the breast image.
type RegionLocation struct {
	Position    string `json:"position"`
	Quadrant    string `json:"quadrant"`
	Description string `json:"description"`
}

// RegionSize describes a region's extent.
type RegionSize struct {
	WidthPx        int     `json:"width_px"`
	HeightPx       int     `json:"height_px"`
	AreaPercentage float64 `json:"area_percentage"`
}

// Morphology describes the lesion shape.
type Morphology struct {
	Shape       string `json:"shape"`
	Description string `json:"description"`
}

// Margin describes the lesion margin and its implied suspicion level.
type Margin struct {
	Type        string     `json:"type"`
	RiskLevel   MarginRisk `json:"risk_level"`
	Description string     `json:"description"`
}

// RegionDensity describes lesion density relative to surrounding tissue.
type RegionDensity struct {
	Level            string `json:"level"`
	RelativeToTissue string `json:"relative_to_tissue"`
}

// Vascularity describes the perfusion assessment for a region.
type Vascularity struct {
	Assessment   string `json:"assessment"`
	Significance string `json:"significance"`
}

// TissueComposition describes what the region tissue consists of.
type TissueComposition struct {
	Type          string `json:"type"`
	Heterogeneity string `json:"heterogeneity"`
}

// CalcificationDetails is populated only when the calcification-pattern
// detector fires on the region's local patch. Absence means "not present",
// never unknown.
type CalcificationDetails struct {
	Morphology   string `json:"morphology"`
	Distribution string `json:"distribution"`
}

// Region is one suspicious area promoted from the activation field to a
// structured finding. Regions are created once per request by the detection
// and characterization stages and never mutated afterwards; ids are 1-based
// and ordered by non-increasing confidence.
type Region struct {
	ID                   int                   `json:"id"`
	Confidence           float64               `json:"confidence"`
	Severity             Severity              `json:"severity"`
	CancerType           CancerType            `json:"cancer_type"`
	CancerSubtype        string                `json:"cancer_subtype,omitempty"`
	Location             RegionLocation        `json:"location"`
	Size                 RegionSize            `json:"size"`
	BBox                 BoundingBox           `json:"bbox"`
	Morphology           Morphology            `json:"morphology"`
	Margin               Margin                `json:"margin"`
	Density              RegionDensity         `json:"density"`
	Vascularity          Vascularity           `json:"vascularity"`
	TissueComposition    TissueComposition     `json:"tissue_composition"`
	Calcification        *CalcificationDetails `json:"calcification_details,omitempty"`
	BIRADSRegion         string                `json:"birads_region,omitempty"`
	ClinicalSignificance string                `json:"clinical_significance"`
	RecommendedAction    string                `json:"recommended_action"`
}

// HasCalcification reports whether the calcification-pattern detector fired
// for this region.
func (r *Region) HasCalcification() bool {
	return r.Calcification != nil
}

// BreastDensityProfile categorizes overall breast density (ACR A-D).
type BreastDensityProfile struct {
	Category          string `json:"category"`
	DensityPercentage int    `json:"density_percentage"`
	Sensitivity       string `json:"sensitivity"`
	MaskingRisk       string `json:"masking_risk"`
	Description       string `json:"description"`
	Recommendation    string `json:"recommendation"`
}

// TissueTextureProfile describes the parenchymal texture pattern.
type TissueTextureProfile struct {
	Pattern                string `json:"pattern"`
	UniformityScore        int    `json:"uniformity_score"`
	CoefficientOfVariation int    `json:"coefficient_of_variation"`
	Distribution           string `json:"distribution"`
	ClinicalNote           string `json:"clinical_note"`
}

// SymmetryProfile describes left/right density symmetry within the image.
type SymmetryProfile struct {
	Assessment           string `json:"assessment"`
	SymmetryScore        int    `json:"symmetry_score"`
	ClinicalSignificance string `json:"clinical_significance"`
	Recommendation       string `json:"recommendation"`
}

// SkinNippleProfile describes skin-line and nipple status.
type SkinNippleProfile struct {
	SkinStatus       string `json:"skin_status"`
	SkinConcernLevel string `json:"skin_concern_level"`
	NippleRetraction string `json:"nipple_retraction"`
	Recommendation   string `json:"recommendation"`
}

// VascularProfile describes the vascular pattern prominence.
type VascularProfile struct {
	Pattern       string `json:"pattern"`
	VascularScore int    `json:"vascular_score"`
	ClinicalNote  string `json:"clinical_note"`
}

// ImageQualityProfile scores technical adequacy of the acquisition.
type ImageQualityProfile struct {
	OverallScore      int    `json:"overall_score"`
	Positioning       string `json:"positioning"`
	TechnicalAdequacy string `json:"technical_adequacy"`
}

// CalcificationAnalysis is the whole-image calcification assessment.
// Detected is the OR of any region's calcification signature and an
// independent whole-image speck-density check.
type CalcificationAnalysis struct {
	Detected             bool   `json:"detected"`
	Count                int    `json:"count"`
	Distribution         string `json:"distribution"`
	Morphology           string `json:"morphology"`
	BIRADSCategory       string `json:"birads_category"`
	ClinicalSignificance string `json:"clinical_significance"`
	Recommendation       string `json:"recommendation"`
}

// ComprehensiveProfile holds whole-image descriptors computed independently
// of region detection. Each sub-profile is optional: when its underlying
// statistic cannot be computed the key is omitted, never defaulted to a
// fabricated value.
type ComprehensiveProfile struct {
	BreastDensity    *BreastDensityProfile  `json:"breast_density,omitempty"`
	TissueTexture    *TissueTextureProfile  `json:"tissue_texture,omitempty"`
	Symmetry         *SymmetryProfile       `json:"symmetry,omitempty"`
	SkinNipple       *SkinNippleProfile     `json:"skin_nipple,omitempty"`
	VascularPatterns *VascularProfile       `json:"vascular_patterns,omitempty"`
	ImageQuality     *ImageQualityProfile   `json:"image_quality,omitempty"`
	Calcification    *CalcificationAnalysis `json:"calcification_analysis,omitempty"`
}

// MLOFindings carries narrative fields specific to the mediolateral oblique
// view. Present only when the view family is MLO.
type MLOFindings struct {
	AxillaryFindings         string `json:"axillary_findings"`
	PectoralMuscleVisibility string `json:"pectoral_muscle_visibility"`
	ArchitecturalDistortion  string `json:"architectural_distortion"`
	InframammaryFold         string `json:"inframammary_fold"`
}

// CCFindings carries narrative fields specific to the craniocaudal view.
// Present only when the view family is CC.
type CCFindings struct {
	Asymmetry         string `json:"asymmetry"`
	SkinNippleChanges string `json:"skin_nipple_changes"`
	MedialCoverage    string `json:"medial_coverage"`
	LateralCoverage   string `json:"lateral_coverage"`
}

// ViewAnalysis is the view and laterality determination for one image.
// Exactly one of MLO or CC is populated, keyed by the view family.
type ViewAnalysis struct {
	ViewCode        ViewCode       `json:"view_code"`
	ViewType        string         `json:"view_type"`
	Laterality      Laterality     `json:"laterality"`
	LateralityCode  string         `json:"laterality_code"`
	FromFilename    bool           `json:"from_filename"`
	ImageQuality    string         `json:"image_quality"`
	QualityScore    *int           `json:"quality_score"`
	MLO             *MLOFindings   `json:"mlo,omitempty"`
	CC              *CCFindings    `json:"cc,omitempty"`
	Masses          string         `json:"masses"`
	Calcifications  string         `json:"calcifications"`
	BreastDensity   string         `json:"breast_density,omitempty"`
	Impression      string         `json:"impression"`
	BIRADSCategory  string         `json:"birads_category"`
	SuspicionLevel  SuspicionLevel `json:"suspicion_level"`
	ConfidenceScore string         `json:"confidence_score"`
}

// Findings is the aggregate findings record for one analysis request.
// All fields are write-once; the pipeline never caches or mutates results
// across requests.
type Findings struct {
	Summary                 string                `json:"summary"`
	Regions                 []Region              `json:"regions"`
	NumRegions              int                   `json:"num_regions"`
	HighAttentionPercentage float64               `json:"high_attention_percentage"`
	MaxActivation           float64               `json:"max_activation"`
	OverallActivation       float64               `json:"overall_activation"`
	Comprehensive           *ComprehensiveProfile `json:"comprehensive_analysis,omitempty"`
}

// ImageStats holds first-order intensity statistics for the source image.
type ImageStats struct {
	MeanIntensity   float64 `json:"mean_intensity"`
	StdIntensity    float64 `json:"std_intensity"`
	MinIntensity    float64 `json:"min_intensity"`
	MaxIntensity    float64 `json:"max_intensity"`
	MedianIntensity float64 `json:"median_intensity"`
	Brightness      float64 `json:"brightness"`
	Contrast        float64 `json:"contrast"`
}

// ImageSize records the source image dimensions.
type ImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AnalysisResult is the full record returned to callers for one request.
type AnalysisResult struct {
	ID            string        `json:"id"`
	Filename      string        `json:"filename,omitempty"`
	Result        string        `json:"result"`
	Probability   float64       `json:"probability"`
	Confidence    float64       `json:"confidence"`
	Threshold     float64       `json:"threshold"`
	BenignProb    float64       `json:"benign_prob"`
	MalignantProb float64       `json:"malignant_prob"`
	RiskLevel     RiskLevel     `json:"risk_level"`
	RiskIcon      string        `json:"risk_icon"`
	RiskColor     string        `json:"risk_color"`
	Stats         ImageStats    `json:"stats"`
	ImageSize     ImageSize     `json:"image_size"`
	FileFormat    string        `json:"file_format"`
	Findings      *Findings     `json:"findings"`
	ViewAnalysis  *ViewAnalysis `json:"view_analysis"`
	AnalyzedAt    time.Time     `json:"analyzed_at"`
}

// ModelStatus describes classifier availability for liveness checks.
type ModelStatus struct {
	State     string `json:"state"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	Error     string `json:"error,omitempty"`
}
