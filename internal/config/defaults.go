package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// CurrentVersion is the config file format version.
	CurrentVersion = "1"

	// DefaultConfigFile is the config file name inside DefaultConfigPath.
	DefaultConfigFile = "config.yaml"
)

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Storage: StorageConfig{
			ModelsDir: DefaultModelsPath(),
		},
		Model: ModelConfig{
			Backend:        BackendContour,
			Path:           "fasterrcnn_resnet50_fpn.onnx",
			NumClasses:     91,
			ScoreThreshold: 0.5,
			ONNX: ONNXConfig{
				InputName:   "images",
				OutputNames: []string{"boxes", "labels", "scores"},
				InputWidth:  800,
				InputHeight: 800,
				PoolSize:    2,
			},
			OCR: OCRConfig{
				Language: "eng",
			},
		},
		DRISE: DRISEConfig{
			NumMasks:        25,
			MaskRes:         []int{4, 4},
			KeepProbability: 0.5,
		},
		Render: RenderConfig{
			Alpha:       0.5,
			JPEGQuality: 90,
			Colormap:    "jet",
			BoxColor:    "#00FF00",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultConfigPath returns the default path for the vision-explain config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "vision-explain", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "vision-explain")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "vision-explain")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "vision-explain")
		}
		return filepath.Join(home, ".config", "vision-explain")
	}
}

// DefaultModelsPath returns the default path for the vision-explain models directory.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "vision-explain", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "vision-explain", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "vision-explain", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "vision-explain", "models")
		}
		return filepath.Join(home, ".cache", "vision-explain", "models")
	}
}

// ExpandPath replaces a leading "~" with the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ModelPath returns the model file location. Relative paths resolve under storage.models_dir.
func (c *Config) ModelPath() string {
	p := ExpandPath(c.Model.Path)
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ExpandPath(c.Storage.ModelsDir), p)
}
