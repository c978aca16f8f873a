package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDownloader() *Downloader {
	d := NewDownloader()
	d.RetryDelay = time.Millisecond
	d.Timeout = 5 * time.Second
	return d
}

func TestDownload_FetchesMissingFile(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("weights"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "models", "model.onnx")
	got, err := testDownloader().Download(context.Background(), srv.URL, path, false)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "weights", string(data))
	assert.Equal(t, int32(1), hits.Load())

	// Present file is not fetched again.
	_, err = testDownloader().Download(context.Background(), srv.URL, path, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestDownload_Force(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("new"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	_, err := testDownloader().Download(context.Background(), srv.URL, path, true)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestDownload_RetriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "model.onnx")
	_, err := testDownloader().Download(context.Background(), srv.URL, path, false)
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
}

func TestDownload_FailsAfterRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "model.onnx")
	_, err := testDownloader().Download(context.Background(), srv.URL, path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(defaultMaxRetries), hits.Load())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no partial file should be left behind")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownload_EmptyURL(t *testing.T) {
	_, err := testDownloader().Download(context.Background(), "", filepath.Join(t.TempDir(), "m.onnx"), false)
	assert.ErrorIs(t, err, ErrEmptyURL)
}

func TestDownload_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testDownloader().Download(ctx, srv.URL, filepath.Join(t.TempDir(), "m.onnx"), false)
	assert.ErrorIs(t, err, context.Canceled)
}
