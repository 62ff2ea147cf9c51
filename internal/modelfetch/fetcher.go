// Package modelfetch retrieves the classifier weight file on startup when it
// is not already on disk.
package modelfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/mammo-screening-server/internal/domain"
)

// Fetcher downloads model weights over HTTP with rate limiting, retries and
// a circuit breaker around the remote host.
type Fetcher struct {
	cfg        domain.ModelConfig
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// NewFetcher creates a fetcher for the configured weight source.
func NewFetcher(cfg domain.ModelConfig, logger *logrus.Logger) *Fetcher {
	if cfg.DownloadTimeout == 0 {
		cfg.DownloadTimeout = 5 * time.Minute
	}
	if cfg.RetryCount == 0 {
		cfg.RetryCount = 3
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ModelDownload",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &Fetcher{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.DownloadTimeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		breaker:   breaker,
		logger:    logger,
	}
}

// Ensure makes the weight file present at the configured path. If the file
// already exists and passes the size check it is left untouched. Without a
// download URL a missing file is a hard error.
func (f *Fetcher) Ensure(ctx context.Context) error {
	if ok, _ := f.verify(f.cfg.Path); ok {
		f.logger.WithField("path", f.cfg.Path).Info("Model weights present")
		return nil
	}

	if f.cfg.DownloadURL == "" {
		return domain.InferenceUnavailable(
			fmt.Sprintf("weight file at %s", f.cfg.Path),
			"file missing and no download URL configured",
		)
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.RetryCount; attempt++ {
		if err := f.rateLimit.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait failed: %w", err)
		}

		f.logger.WithFields(logrus.Fields{
			"url":     f.cfg.DownloadURL,
			"attempt": attempt,
		}).Info("Downloading model weights")

		_, err := f.breaker.Execute(func() (interface{}, error) {
			return nil, f.download(ctx)
		})
		if err == nil {
			return nil
		}
		lastErr = err

		if err == gobreaker.ErrOpenState {
			return domain.InferenceUnavailable(
				"reachable model download host",
				"download circuit breaker open",
			)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		f.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err.Error(),
		}).Warn("Model download failed")
	}

	return domain.InferenceUnavailable(
		fmt.Sprintf("downloadable weight file from %s", f.cfg.DownloadURL),
		fmt.Sprintf("all %d attempts failed: %v", f.cfg.RetryCount, lastErr),
	)
}

// download streams the remote file to a temp path, verifies it, then renames
// it into place so a partial download never shadows the real file.
func (f *Fetcher) download(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.DownloadURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(f.cfg.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.cfg.Path), ".weights-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, err := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err != nil {
		return fmt.Errorf("download interrupted after %d bytes: %w", written, err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to flush temp file: %w", closeErr)
	}

	if ok, detail := f.verify(tmpPath); !ok {
		return fmt.Errorf("downloaded file failed verification: %s", detail)
	}

	if err := os.Rename(tmpPath, f.cfg.Path); err != nil {
		return fmt.Errorf("failed to move weights into place: %w", err)
	}

	f.logger.WithFields(logrus.Fields{
		"path":  f.cfg.Path,
		"bytes": written,
	}).Info("Model weights downloaded")
	return nil
}

// verify checks that the file at path exists and meets the minimum size.
func (f *Fetcher) verify(path string) (bool, string) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Sprintf("stat failed: %v", err)
	}
	if f.cfg.MinSizeBytes > 0 && info.Size() < f.cfg.MinSizeBytes {
		return false, fmt.Sprintf("size %d below minimum %d", info.Size(), f.cfg.MinSizeBytes)
	}
	return true, ""
}
