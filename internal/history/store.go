// Package history persists per-analysis summary records in SQLite so callers
// can list prior results. Only the summary projection is stored; rendered
// images and full findings stay request-scoped.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mammo-screening-server/internal/domain"
)

// Record is one stored analysis summary.
type Record struct {
	ID             string    `json:"id"`
	Filename       string    `json:"filename"`
	Result         string    `json:"result"`
	MalignantProb  float64   `json:"malignant_prob"`
	BenignProb     float64   `json:"benign_prob"`
	RiskLevel      string    `json:"risk_level"`
	NumRegions     int       `json:"num_regions"`
	ViewCode       string    `json:"view_code"`
	SuspicionLevel string    `json:"suspicion_level"`
	Summary        string    `json:"summary"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// FromResult projects an analysis result into a history record.
func FromResult(result *domain.AnalysisResult) *Record {
	rec := &Record{
		ID:            result.ID,
		Filename:      result.Filename,
		Result:        result.Result,
		MalignantProb: result.MalignantProb,
		BenignProb:    result.BenignProb,
		RiskLevel:     result.RiskLevel.String(),
		AnalyzedAt:    result.AnalyzedAt,
	}
	if result.Findings != nil {
		rec.NumRegions = result.Findings.NumRegions
		rec.Summary = result.Findings.Summary
	}
	if result.ViewAnalysis != nil {
		rec.ViewCode = string(result.ViewAnalysis.ViewCode)
		rec.SuspicionLevel = string(result.ViewAnalysis.SuspicionLevel)
	}
	return rec
}

// SQLiteStore implements analysis-history persistence over SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens the database at dbPath, creating the file and schema
// if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		filename TEXT DEFAULT '',
		result TEXT NOT NULL,
		malignant_prob REAL NOT NULL,
		benign_prob REAL NOT NULL,
		risk_level TEXT NOT NULL,
		num_regions INTEGER NOT NULL DEFAULT 0,
		view_code TEXT DEFAULT '',
		suspicion_level TEXT DEFAULT '',
		summary TEXT DEFAULT '',
		analyzed_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);
	CREATE INDEX IF NOT EXISTS idx_analyses_risk_level ON analyses(risk_level);
	`
	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*Record, error) {
	rec := &Record{}
	err := s.Scan(
		&rec.ID, &rec.Filename, &rec.Result,
		&rec.MalignantProb, &rec.BenignProb, &rec.RiskLevel,
		&rec.NumRegions, &rec.ViewCode, &rec.SuspicionLevel,
		&rec.Summary, &rec.AnalyzedAt, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Save inserts one analysis record. Re-saving the same analysis id is a
// no-op since results are immutable per request.
func (s *SQLiteStore) Save(ctx context.Context, rec *Record) error {
	rec.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO analyses (
			id, filename, result, malignant_prob, benign_prob, risk_level,
			num_regions, view_code, suspicion_level, summary, analyzed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.Filename, rec.Result,
		rec.MalignantProb, rec.BenignProb, rec.RiskLevel,
		rec.NumRegions, rec.ViewCode, rec.SuspicionLevel,
		rec.Summary, rec.AnalyzedAt, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}
	return nil
}

// Get retrieves one record by analysis id. Returns nil when absent.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, result, malignant_prob, benign_prob, risk_level,
			num_regions, view_code, suspicion_level, summary, analyzed_at, created_at
		FROM analyses
		WHERE id = ?
		LIMIT 1
	`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return rec, nil
}

// List returns records newest-first with pagination.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, result, malignant_prob, benign_prob, risk_level,
			num_regions, view_code, suspicion_level, summary, analyzed_at, created_at
		FROM analyses
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

// Count returns the total number of stored analyses.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analyses").Scan(&count)
	return count, err
}

// Delete removes one record by analysis id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM analyses WHERE id = ?", id)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// Export is the JSON envelope produced by ExportJSON.
type Export struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Analyses   []*Record `json:"analyses"`
}

// ExportJSON writes all stored records as indented JSON.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list analyses: %w", err)
	}

	export := &Export{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Analyses:   all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
