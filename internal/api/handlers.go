package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mammo-screening-server/internal/domain"
	"github.com/mammo-screening-server/internal/history"
	"github.com/mammo-screening-server/internal/render"
	"github.com/mammo-screening-server/internal/report"
	"github.com/mammo-screening-server/internal/service"
)

const serverVersion = "1.2.0"

// analyzeResponse pairs the structured result with the rendered image set.
type analyzeResponse struct {
	*domain.AnalysisResult
	Images render.Variants `json:"images"`
}

// handleHealth reports server and classifier liveness.
func (s *Server) handleHealth(c *gin.Context) {
	status := s.analyzer.ModelStatus()
	httpStatus := http.StatusOK
	overall := "healthy"
	if status.State != "loaded" {
		httpStatus = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(httpStatus, gin.H{
		"status":    overall,
		"model":     status,
		"timestamp": time.Now().UTC(),
		"version":   serverVersion,
	})
}

// handleAnalyze runs the full pipeline on an uploaded image and returns the
// findings together with the rendered image variants.
func (s *Server) handleAnalyze(c *gin.Context) {
	data, filename, ok := s.readUpload(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.Server.AnalysisTimeout)
	defer cancel()

	analysis, err := s.analyzer.Analyze(ctx, data, filename)
	if err != nil {
		s.writeError(c, err)
		return
	}

	images, err := render.Render(analysis)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.saveHistory(c, analysis)

	c.JSON(http.StatusOK, analyzeResponse{
		AnalysisResult: analysis.Result,
		Images:         images,
	})
}

// handleReport runs the same pipeline and returns the synthesized report
// document instead of the raw findings.
func (s *Server) handleReport(c *gin.Context) {
	data, filename, ok := s.readUpload(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.Server.AnalysisTimeout)
	defer cancel()

	analysis, err := s.analyzer.Analyze(ctx, data, filename)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.saveHistory(c, analysis)

	c.JSON(http.StatusOK, report.Build(analysis.Result))
}

// handleHistoryList returns stored analysis summaries, newest first.
func (s *Server) handleHistoryList(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "History is disabled"})
		return
	}

	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)
	if limit < 1 || limit > 200 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.store.List(c.Request.Context(), limit, offset)
	if err != nil {
		s.writeError(c, domain.NewPipelineError(domain.ErrHistoryStore, "failed to list history", err.Error(), c.GetString("correlation_id")))
		return
	}
	total, err := s.store.Count(c.Request.Context())
	if err != nil {
		s.writeError(c, domain.NewPipelineError(domain.ErrHistoryStore, "failed to count history", err.Error(), c.GetString("correlation_id")))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analyses": records,
		"count":    len(records),
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// handleHistoryGet returns one stored summary by analysis id.
func (s *Server) handleHistoryGet(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "History is disabled"})
		return
	}

	rec, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, domain.NewPipelineError(domain.ErrHistoryStore, "failed to read history", err.Error(), c.GetString("correlation_id")))
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Analysis not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// readUpload extracts the "file" multipart part. On failure it writes the
// error response and returns ok=false.
func (s *Server) readUpload(c *gin.Context) (data []byte, filename string, ok bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		s.writeError(c, domain.InputInvalid("multipart field \"file\" is required"))
		return nil, "", false
	}

	f, err := fileHeader.Open()
	if err != nil {
		s.writeError(c, domain.InputInvalid("uploaded file could not be opened"))
		return nil, "", false
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		s.writeError(c, domain.InputInvalid("uploaded file could not be read"))
		return nil, "", false
	}
	return data, fileHeader.Filename, true
}

// saveHistory persists the analysis summary. Store failures are logged, not
// surfaced; history is best-effort.
func (s *Server) saveHistory(c *gin.Context, analysis *service.Analysis) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(c.Request.Context(), history.FromResult(analysis.Result)); err != nil {
		s.logger.WithFields(logrus.Fields{
			"analysis_id": analysis.Result.ID,
			"error":       err.Error(),
		}).Error("Failed to save analysis history")
	}
}

// writeError maps pipeline errors to HTTP responses.
func (s *Server) writeError(c *gin.Context, err error) {
	correlationID := c.GetString("correlation_id")

	if errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"error":          "Analysis timed out",
			"correlation_id": correlationID,
		})
		return
	}

	code := domain.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case domain.ErrInputInvalid:
		status = http.StatusBadRequest
	case domain.ErrInferenceUnavailable:
		status = http.StatusServiceUnavailable
	case domain.ErrHistoryStore:
		status = http.StatusInternalServerError
	}

	var pe *domain.PipelineError
	if errors.As(err, &pe) {
		if pe.RequestID == "" {
			pe.RequestID = correlationID
		}
		c.JSON(status, gin.H{"error": pe})
		return
	}

	s.logger.WithFields(logrus.Fields{
		"correlation_id": correlationID,
		"error":          err.Error(),
	}).Error("Unhandled request error")
	c.JSON(status, gin.H{
		"error":          "Internal server error",
		"correlation_id": correlationID,
	})
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
