package history

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mammo-screening-server/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(id string) *Record {
	return &Record{
		ID:             id,
		Filename:       "patient_L-MLO_01.png",
		Result:         "Malignant",
		MalignantProb:  82.5,
		BenignProb:     17.5,
		RiskLevel:      "Very High Risk",
		NumRegions:     2,
		ViewCode:       "L-MLO",
		SuspicionLevel: "High",
		Summary:        "Multiple suspicious regions (2) detected",
		AnalyzedAt:     time.Now().UTC(),
	}
}

func TestSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRecord("analysis-1")))

	rec, err := store.Get(ctx, "analysis-1")
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, "analysis-1", rec.ID)
	assert.Equal(t, "Malignant", rec.Result)
	assert.InDelta(t, 82.5, rec.MalignantProb, 0.001)
	assert.Equal(t, "Very High Risk", rec.RiskLevel)
	assert.Equal(t, 2, rec.NumRegions)
	assert.Equal(t, "L-MLO", rec.ViewCode)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestGet_Missing(t *testing.T) {
	store := newTestStore(t)

	rec, err := store.Get(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSave_IdempotentPerID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := testRecord("analysis-1")
	require.NoError(t, store.Save(ctx, rec))

	// re-saving the same id keeps the original row
	changed := testRecord("analysis-1")
	changed.Result = "Benign"
	require.NoError(t, store.Save(ctx, changed))

	stored, err := store.Get(ctx, "analysis-1")
	require.NoError(t, err)
	assert.Equal(t, "Malignant", stored.Result)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestList_Pagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Save(ctx, testRecord(fmt.Sprintf("analysis-%d", i))))
	}

	page, err := store.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := store.List(ctx, 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 3)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRecord("analysis-1")))
	require.NoError(t, store.Delete(ctx, "analysis-1"))

	rec, err := store.Get(ctx, "analysis-1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestExportJSON(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testRecord("analysis-1")))
	require.NoError(t, store.Save(ctx, testRecord("analysis-2")))

	var buf bytes.Buffer
	require.NoError(t, store.ExportJSON(ctx, &buf))

	var export Export
	require.NoError(t, json.Unmarshal(buf.Bytes(), &export))
	assert.Equal(t, "1.0", export.Version)
	assert.Equal(t, 2, export.Count)
	assert.Len(t, export.Analyses, 2)
}

func TestFromResult(t *testing.T) {
	result := &domain.AnalysisResult{
		ID:            "analysis-1",
		Filename:      "scan.png",
		Result:        "Malignant",
		MalignantProb: 82.5,
		BenignProb:    17.5,
		RiskLevel:     domain.RiskVeryHigh,
		AnalyzedAt:    time.Now().UTC(),
		Findings: &domain.Findings{
			NumRegions: 3,
			Summary:    "Multiple suspicious regions (3) detected",
		},
		ViewAnalysis: &domain.ViewAnalysis{
			ViewCode:       domain.ViewLMLO,
			SuspicionLevel: domain.SuspicionHigh,
		},
	}

	rec := FromResult(result)
	assert.Equal(t, "analysis-1", rec.ID)
	assert.Equal(t, "Very High Risk", rec.RiskLevel)
	assert.Equal(t, 3, rec.NumRegions)
	assert.Equal(t, "L-MLO", rec.ViewCode)
	assert.Equal(t, "High", rec.SuspicionLevel)
}

func TestFromResult_MinimalResult(t *testing.T) {
	rec := FromResult(&domain.AnalysisResult{ID: "analysis-1", Result: "Benign", RiskLevel: domain.RiskVeryLow})
	assert.Equal(t, 0, rec.NumRegions)
	assert.Empty(t, rec.ViewCode)
}
