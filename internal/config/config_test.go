package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/vision-explain/internal/envvar"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Equal(t, BackendContour, cfg.Model.Backend)
	assert.Equal(t, 91, cfg.Model.NumClasses)
	assert.Equal(t, 0.5, cfg.Model.ScoreThreshold)
	assert.Equal(t, []string{"boxes", "labels", "scores"}, cfg.Model.ONNX.OutputNames)
	assert.Equal(t, 25, cfg.DRISE.NumMasks)
	assert.Equal(t, []int{4, 4}, cfg.DRISE.MaskRes)
	assert.Equal(t, "jet", cfg.Render.Colormap)
	assert.NotEmpty(t, cfg.Storage.ModelsDir)
}

func TestDefaultValidatesAgainstSchema(t *testing.T) {
	data, err := Marshal(Default())
	require.NoError(t, err)

	cfg, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
version: "1"
model:
  backend: onnx
  path: /models/frcnn.onnx
  num_classes: 2
drise:
  num_masks: 100
  mask_res: [8, 6]
render:
  max_figures: 3
`))
	require.NoError(t, err)

	assert.Equal(t, BackendONNX, cfg.Model.Backend)
	assert.Equal(t, "/models/frcnn.onnx", cfg.Model.Path)
	assert.Equal(t, 2, cfg.Model.NumClasses)
	assert.Equal(t, 100, cfg.DRISE.NumMasks)
	assert.Equal(t, []int{8, 6}, cfg.DRISE.MaskRes)
	assert.Equal(t, 3, cfg.Render.MaxFigures)

	// Untouched values keep their defaults.
	assert.Equal(t, 0.5, cfg.DRISE.KeepProbability)
	assert.Equal(t, "images", cfg.Model.ONNX.InputName)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "model: [unclosed"},
		{"unknown backend", "model:\n  backend: yolo\n"},
		{"unknown field", "extra: true\n"},
		{"keep probability out of range", "drise:\n  keep_probability: 1.5\n"},
		{"mask res length", "drise:\n  mask_res: [4]\n"},
		{"negative figures", "render:\n  max_figures: -1\n"},
		{"fractional class count", "model:\n  num_classes: 2.5\n"},
		{"zero class count", "model:\n  num_classes: 0\n"},
		{"named box color", "render:\n  box_color: green\n"},
		{"bad log level", "log:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, BackendContour, cfg.Model.Backend)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(envvar.VisionExplainLogLevel, "debug")
	t.Setenv(envvar.VisionExplainModelPath, "/tmp/model.onnx")

	path := writeConfig(t, t.TempDir(), "log:\n  level: warn\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/model.onnx", cfg.Model.Path)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "model:\n  backend: yolo\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestModelPath(t *testing.T) {
	cfg := Default()
	cfg.Storage.ModelsDir = "/var/models"

	cfg.Model.Path = "frcnn.onnx"
	assert.Equal(t, filepath.Join("/var/models", "frcnn.onnx"), cfg.ModelPath())

	cfg.Model.Path = "/abs/frcnn.onnx"
	assert.Equal(t, "/abs/frcnn.onnx", cfg.ModelPath())

	cfg.Model.Path = ""
	assert.Equal(t, "", cfg.ModelPath())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "models"), ExpandPath("~/models"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/abs", ExpandPath("/abs"))
	assert.Equal(t, "~user/x", ExpandPath("~user/x"))
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_CACHE_HOME", "/xdg/cache")

	if !strings.Contains(DefaultConfigPath(), "vision-explain") {
		t.Errorf("DefaultConfigPath() = %s", DefaultConfigPath())
	}
	if !strings.Contains(DefaultModelsPath(), filepath.Join("vision-explain", "models")) {
		t.Errorf("DefaultModelsPath() = %s", DefaultModelsPath())
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "drise:\n  num_masks: 10\n")

	var calls atomic.Int32
	w, err := NewWatcher(path, func(cfg *Config, err error) {
		if err == nil {
			calls.Add(1)
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	assert.Equal(t, 10, w.Snapshot().DRISE.NumMasks)

	require.NoError(t, os.WriteFile(path, []byte("drise:\n  num_masks: 42\n"), 0o644))

	require.Eventually(t, func() bool {
		return w.Snapshot().DRISE.NumMasks == 42
	}, 5*time.Second, 50*time.Millisecond)
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	assert.GreaterOrEqual(t, w.ReloadCount(), uint32(1))
}

func TestWatcher_InvalidInitialConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "render:\n  colormap: rainbow\n")
	_, err := NewWatcher(path, nil)
	assert.Error(t, err)
}

func TestWatcher_CloseTwice(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "")
	w, err := NewWatcher(path, nil)
	require.NoError(t, err)

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestWatcher_ReloadUncleanPath(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "drise:\n  num_masks: 10\n")
	unclean := dir + string(filepath.Separator) + "." + string(filepath.Separator) + "config.yaml"

	w, err := NewWatcher(unclean, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("drise:\n  num_masks: 7\n"), 0o644))

	require.Eventually(t, func() bool {
		return w.Snapshot().DRISE.NumMasks == 7
	}, 5*time.Second, 50*time.Millisecond)
}
