package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/mammo-screening-server/internal/domain"
	"github.com/mammo-screening-server/internal/imaging"
)

// Predictor is the classifier boundary: one forward pass in, class score and
// activation field out. The production implementation is the inference pool;
// tests substitute a stub.
type Predictor interface {
	Predict(ctx context.Context, g *imaging.Grayscale) (domain.ClassScore, *imaging.Field, error)
	Status() domain.ModelStatus
}

// Analysis bundles the structured result with the pixel artifacts the
// rendering layer consumes. One Analysis is produced per request and never
// mutated afterwards.
type Analysis struct {
	Result     *domain.AnalysisResult
	Gray       *imaging.Grayscale
	Field      *imaging.Field
	TissueMask []bool
}

// Analyzer runs the full finding-synthesis pipeline for one image. It holds
// no per-request state; the only shared resources are the read-only predictor
// and the result cache.
type Analyzer struct {
	predictor     Predictor
	detector      *RegionDetector
	characterizer *RegionCharacterizer
	profiler      *ProfileSynthesizer
	viewer        *ViewClassifier
	cfg           domain.PipelineConfig
	cache         *lru.Cache[[32]byte, *Analysis]
	logger        *logrus.Logger
}

// NewAnalyzer wires the pipeline stages. cacheSize 0 disables result caching.
func NewAnalyzer(predictor Predictor, cfg domain.PipelineConfig, cacheSize int, logger *logrus.Logger) (*Analyzer, error) {
	if cfg.ClassifyThreshold == 0 {
		cfg.ClassifyThreshold = 0.5
	}
	if cfg.TissueThreshold == 0 {
		cfg.TissueThreshold = 15
	}

	a := &Analyzer{
		predictor:     predictor,
		detector:      NewRegionDetector(cfg),
		characterizer: NewRegionCharacterizer(),
		profiler:      NewProfileSynthesizer(cfg.TissueThreshold),
		viewer:        NewViewClassifier(cfg.TissueThreshold),
		cfg:           cfg,
		logger:        logger,
	}

	if cacheSize > 0 {
		cache, err := lru.New[[32]byte, *Analysis](cacheSize)
		if err != nil {
			return nil, err
		}
		a.cache = cache
	}
	return a, nil
}

// ModelStatus exposes classifier availability for health checks.
func (a *Analyzer) ModelStatus() domain.ModelStatus {
	return a.predictor.Status()
}

// Analyze runs the pipeline on one encoded image. The pipeline is atomic per
// image: it completes whole or fails whole, partial findings are never
// returned. Identical input bytes yield identical findings.
func (a *Analyzer) Analyze(ctx context.Context, data []byte, filename string) (*Analysis, error) {
	key := sha256.Sum256(data)
	if a.cache != nil {
		if cached, ok := a.cache.Get(key); ok {
			a.logger.WithField("filename", filename).Debug("Analysis cache hit")
			return cached, nil
		}
	}

	img, format, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	gray := imaging.FromImage(img)

	stats, err := gray.Stats()
	if err != nil {
		return nil, domain.InputInvalid(err.Error())
	}

	score, field, err := a.predictor.Predict(ctx, gray)
	if err != nil {
		return nil, err
	}

	// A flat activation field carries no localization signal; fall back to
	// the intensity heatmap so rendering and detection still have structure.
	if field == nil || field.Range() < 0.01 {
		a.logger.WithField("filename", filename).Warn("Degenerate activation field, using intensity fallback")
		size := 64
		if field != nil && field.Width > 0 {
			size = field.Width
		}
		field = imaging.IntensityField(gray.Resize(size, size))
	}

	smallGray := gray.Resize(field.Width, field.Height)
	fieldMask := smallGray.TissueMask(a.cfg.TissueThreshold)
	masked := field.MaskedBy(fieldMask)

	raw := a.detector.Detect(masked, fieldMask, gray.Width, gray.Height)

	regions := make([]domain.Region, 0, len(raw))
	for _, r := range raw {
		region, err := a.characterizer.Characterize(r, masked, gray.Width, gray.Height, len(regions)+1)
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"filename": filename,
				"error":    err.Error(),
			}).Warn("Dropping unsampleable region")
			continue
		}
		regions = append(regions, region)
	}

	profile := a.profiler.Synthesize(gray, regions)

	findings := &domain.Findings{
		Summary:                 FindingsSummary(regions, score.MalignantProbability),
		Regions:                 regions,
		NumRegions:              len(regions),
		HighAttentionPercentage: round2(masked.HighFraction(0.5) * 100),
		MaxActivation:           masked.Max(),
		OverallActivation:       masked.Mean(),
		Comprehensive:           profile,
	}

	var quality *domain.ImageQualityProfile
	if profile != nil {
		quality = profile.ImageQuality
	}
	view := a.viewer.Classify(filename, gray, score, regions, quality)

	malignantPct := score.MalignantProbability * 100
	level := RiskBand(malignantPct)
	icon, color := RiskPresentation(level)

	result := &domain.AnalysisResult{
		ID:            uuid.New().String(),
		Filename:      filename,
		Result:        ResultLabel(score.MalignantProbability, a.cfg.ClassifyThreshold),
		Probability:   score.MalignantProbability,
		Confidence:    round2(malignantPct),
		Threshold:     a.cfg.ClassifyThreshold,
		BenignProb:    round2(score.BenignProbability * 100),
		MalignantProb: round2(malignantPct),
		RiskLevel:     level,
		RiskIcon:      icon,
		RiskColor:     color,
		Stats:         stats,
		ImageSize:     domain.ImageSize{Width: gray.Width, Height: gray.Height},
		FileFormat:    format,
		Findings:      findings,
		ViewAnalysis:  view,
		AnalyzedAt:    time.Now().UTC(),
	}

	analysis := &Analysis{
		Result:     result,
		Gray:       gray,
		Field:      masked,
		TissueMask: gray.TissueMask(a.cfg.TissueThreshold),
	}

	a.logger.WithFields(logrus.Fields{
		"filename":    filename,
		"result":      result.Result,
		"risk_level":  result.RiskLevel.String(),
		"num_regions": findings.NumRegions,
		"view_code":   string(view.ViewCode),
	}).Info("Analysis complete")

	if a.cache != nil {
		a.cache.Add(key, analysis)
	}
	return analysis, nil
}
