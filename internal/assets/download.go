// Package assets downloads model checkpoints and other large files the detectors need.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/go-units"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 5 * time.Minute
)

// ErrEmptyURL is returned when a download is needed but no URL is configured.
var ErrEmptyURL = errors.New("no download URL configured")

// Downloader fetches model checkpoints over HTTP.
type Downloader struct {
	Client     *http.Client
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// NewDownloader returns a downloader with 3 attempts, a 2s retry delay and a 5 minute
// timeout per attempt.
func NewDownloader() *Downloader {
	return &Downloader{
		Client:     http.DefaultClient,
		MaxRetries: defaultMaxRetries,
		RetryDelay: defaultRetryDelay,
		Timeout:    defaultTimeout,
	}
}

// Download fetches url into path with the default downloader.
func Download(ctx context.Context, url, path string, force bool) (string, error) {
	return NewDownloader().Download(ctx, url, path, force)
}

// Download fetches url into path unless the file already exists and force is false.
// It returns path. The body is written to a temporary file in the same directory and
// renamed into place, so an interrupted download never leaves a partial file at path.
func (d *Downloader) Download(ctx context.Context, url, path string, force bool) (string, error) {
	if !force {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			slog.Info("Model found, skipping download", "path", path, "size", units.HumanSize(float64(info.Size())))
			return path, nil
		}
	}
	if url == "" {
		return "", fmt.Errorf("%w for %s", ErrEmptyURL, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	retries := max(1, d.MaxRetries)
	var lastErr error
	for attempt := range retries {
		if attempt > 0 {
			slog.Info("Retrying download", "url", url, "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("download canceled: %w", ctx.Err())
			case <-time.After(d.RetryDelay):
			}
		} else {
			slog.Info("Downloading model", "url", url, "path", path)
		}

		n, err := d.fetch(ctx, url, path)
		if err == nil {
			slog.Info("Model downloaded successfully", "path", path, "size", units.HumanSize(float64(n)), "attempt", attempt+1)
			return path, nil
		}

		lastErr = err
		slog.Error("Failed to download model", "url", url, "attempt", attempt+1, "error", err)

		if ctx.Err() != nil {
			return "", fmt.Errorf("download canceled: %w", err)
		}
	}

	return "", fmt.Errorf("download %s failed after %d attempts: %w", url, retries, lastErr)
}

func (d *Downloader) fetch(ctx context.Context, url, path string) (int64, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("failed to move download into place: %w", err)
	}
	return n, nil
}
