package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mammo-screening-server/internal/domain"
	"github.com/mammo-screening-server/internal/history"
	"github.com/mammo-screening-server/internal/imaging"
	"github.com/mammo-screening-server/internal/service"
)

type stubAnalyzer struct {
	analysis *service.Analysis
	err      error
	status   domain.ModelStatus
}

func (s *stubAnalyzer) Analyze(ctx context.Context, data []byte, filename string) (*service.Analysis, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.analysis, nil
}

func (s *stubAnalyzer) ModelStatus() domain.ModelStatus { return s.status }

type memoryStore struct {
	records map[string]*history.Record
	order   []string
	saveErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string]*history.Record{}}
}

func (m *memoryStore) Save(ctx context.Context, rec *history.Record) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.records[rec.ID]; !ok {
		m.order = append(m.order, rec.ID)
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *memoryStore) Get(ctx context.Context, id string) (*history.Record, error) {
	return m.records[id], nil
}

func (m *memoryStore) List(ctx context.Context, limit, offset int) ([]*history.Record, error) {
	var out []*history.Record
	for i := offset; i < len(m.order) && len(out) < limit; i++ {
		out = append(out, m.records[m.order[i]])
	}
	return out, nil
}

func (m *memoryStore) Count(ctx context.Context) (int64, error) {
	return int64(len(m.records)), nil
}

func testConfig() *domain.Config {
	return &domain.Config{
		Server: domain.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			AnalysisTimeout: 10 * time.Second,
			RateLimit:       1000,
			RateBurst:       1000,
			MaxUploadBytes:  20 << 20,
		},
		Logging: domain.LoggingConfig{Level: "error", Format: "json"},
	}
}

func stubAnalysis() *service.Analysis {
	gray := imaging.NewGrayscale(16, 16)
	for i := range gray.Pix {
		gray.Pix[i] = 160
	}
	field := imaging.NewField(16, 16)
	field.Set(5, 5, 0.9)

	result := &domain.AnalysisResult{
		ID:            "11111111-2222-3333-4444-555555555555",
		Filename:      "scan_lmlo.png",
		Result:        "Malignant",
		Probability:   0.82,
		Confidence:    82.0,
		MalignantProb: 82.0,
		BenignProb:    18.0,
		RiskLevel:     domain.RiskVeryHigh,
		ImageSize:     domain.ImageSize{Width: 16, Height: 16},
		FileFormat:    "png",
		AnalyzedAt:    time.Now().UTC(),
		Findings: &domain.Findings{
			Summary:    "Single suspicious region detected",
			NumRegions: 1,
			Regions: []domain.Region{{
				ID:         1,
				Confidence: 90.0,
				Severity:   domain.SeverityHigh,
				CancerType: domain.TypeMass,
				BBox:       domain.BoundingBox{X1: 4, Y1: 4, X2: 8, Y2: 8},
			}},
		},
		ViewAnalysis: &domain.ViewAnalysis{
			ViewCode:       domain.ViewLMLO,
			SuspicionLevel: domain.SuspicionHigh,
		},
	}

	return &service.Analysis{
		Result:     result,
		Gray:       gray,
		Field:      field,
		TissueMask: gray.TissueMask(15),
	}
}

func newTestServer(t *testing.T, analyzer AnalysisService, store HistoryStore) *Server {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewServer(testConfig(), analyzer, store, logger)
}

// multipartBody builds an upload request body carrying one small PNG.
func multipartBody(t *testing.T, fieldName string) (*bytes.Buffer, string) {
	t.Helper()

	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	var encoded bytes.Buffer
	require.NoError(t, png.Encode(&encoded, img))

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(fieldName, "scan_lmlo.png")
	require.NoError(t, err)
	_, err = part.Write(encoded.Bytes())
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func TestHandleHealth(t *testing.T) {
	analyzer := &stubAnalyzer{status: domain.ModelStatus{State: "loaded", Path: "model.weights", SizeBytes: 100}}
	server := newTestServer(t, analyzer, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, serverVersion, body["version"])
}

func TestHandleHealth_Degraded(t *testing.T) {
	analyzer := &stubAnalyzer{status: domain.ModelStatus{State: "missing"}}
	server := newTestServer(t, analyzer, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestHandleAnalyze(t *testing.T) {
	analyzer := &stubAnalyzer{analysis: stubAnalysis()}
	store := newMemoryStore()
	server := newTestServer(t, analyzer, store)

	body, contentType := multipartBody(t, "file")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		ID     string `json:"id"`
		Result string `json:"result"`
		Images struct {
			Original string `json:"original"`
			Heatmap  string `json:"heatmap"`
		} `json:"images"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "11111111-2222-3333-4444-555555555555", resp.ID)
	assert.Equal(t, "Malignant", resp.Result)
	assert.NotEmpty(t, resp.Images.Original)
	assert.NotEmpty(t, resp.Images.Heatmap)

	// the summary was persisted to history
	assert.Len(t, store.records, 1)
}

func TestHandleAnalyze_MissingFile(t *testing.T) {
	analyzer := &stubAnalyzer{analysis: stubAnalysis()}
	server := newTestServer(t, analyzer, nil)

	body, contentType := multipartBody(t, "wrong_field")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrInputInvalid)
}

func TestHandleAnalyze_InferenceUnavailable(t *testing.T) {
	analyzer := &stubAnalyzer{err: domain.InferenceUnavailable("weights at model.weights", "nothing")}
	server := newTestServer(t, analyzer, nil)

	body, contentType := multipartBody(t, "file")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", body)
	req.Header.Set("Content-Type", contentType)
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrInferenceUnavailable)
}

func TestHandleReport(t *testing.T) {
	analyzer := &stubAnalyzer{analysis: stubAnalysis()}
	server := newTestServer(t, analyzer, nil)

	body, contentType := multipartBody(t, "file")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/report", body)
	req.Header.Set("Content-Type", contentType)
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var doc struct {
		ReportNumber string `json:"report_number"`
		Title        string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Contains(t, doc.ReportNumber, "MAM-")
	assert.Equal(t, "MAMMOGRAPHY REPORT", doc.Title)
}

func TestHandleHistoryList(t *testing.T) {
	store := newMemoryStore()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Save(context.Background(), &history.Record{ID: fmt.Sprintf("analysis-%d", i)}))
	}
	server := newTestServer(t, &stubAnalyzer{}, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/history?limit=2", nil)
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Analyses []*history.Record `json:"analyses"`
		Count    int               `json:"count"`
		Total    int64             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Analyses, 2)
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, int64(3), body.Total)
}

func TestHandleHistoryGet(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.Save(context.Background(), &history.Record{ID: "analysis-1", Result: "Benign"}))
	server := newTestServer(t, &stubAnalyzer{}, store)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/history/analysis-1", nil)
	server.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "analysis-1")

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/history/absent", nil)
	server.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleHistory_Disabled(t *testing.T) {
	server := newTestServer(t, &stubAnalyzer{}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	server.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "History is disabled")
}

func TestCorrelationIDHeader(t *testing.T) {
	analyzer := &stubAnalyzer{status: domain.ModelStatus{State: "loaded"}}
	server := newTestServer(t, analyzer, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.Router().ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}
