// Package config loads, validates and watches the vision-explain YAML configuration.
package config

// Backend names accepted in model.backend.
const (
	BackendContour = "contour"
	BackendONNX    = "onnx"
	BackendOCR     = "ocr"
)

// Config holds the main configuration for the application.
type Config struct {
	Version string        `json:"version"           yaml:"version"`
	Storage StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`
	Model   ModelConfig   `json:"model"             yaml:"model"`
	DRISE   DRISEConfig   `json:"drise"             yaml:"drise"`
	Render  RenderConfig  `json:"render"            yaml:"render"`
	Log     LogConfig     `json:"log"               yaml:"log"`
}

// StorageConfig holds where downloaded models are kept.
type StorageConfig struct {
	ModelsDir string `json:"models_dir,omitempty" yaml:"models_dir,omitempty"`
}

// ModelConfig selects and configures the default detector.
type ModelConfig struct {
	Backend        string     `json:"backend"                  yaml:"backend"`
	Path           string     `json:"path,omitempty"           yaml:"path,omitempty"`
	URL            string     `json:"url,omitempty"            yaml:"url,omitempty"`
	ForceDownload  bool       `json:"force_download,omitempty" yaml:"force_download,omitempty"`
	NumClasses     int        `json:"num_classes"              yaml:"num_classes"`
	LabelsFile     string     `json:"labels_file,omitempty"    yaml:"labels_file,omitempty"`
	ScoreThreshold float64    `json:"score_threshold"          yaml:"score_threshold"`
	ONNX           ONNXConfig `json:"onnx"                     yaml:"onnx"`
	OCR            OCRConfig  `json:"ocr"                      yaml:"ocr"`
}

// ONNXConfig holds ONNX Runtime settings for the onnx backend.
type ONNXConfig struct {
	SharedLibrary string   `json:"shared_library,omitempty" yaml:"shared_library,omitempty"`
	InputName     string   `json:"input_name"               yaml:"input_name"`
	OutputNames   []string `json:"output_names"             yaml:"output_names"`
	InputWidth    int      `json:"input_width"              yaml:"input_width"`
	InputHeight   int      `json:"input_height"             yaml:"input_height"`
	PoolSize      int      `json:"pool_size"                yaml:"pool_size"`
}

// OCRConfig holds Tesseract settings for the ocr backend.
type OCRConfig struct {
	Language string `json:"language" yaml:"language"`
}

// DRISEConfig holds mask sampling settings.
type DRISEConfig struct {
	NumMasks        int     `json:"num_masks"        yaml:"num_masks"`
	MaskRes         []int   `json:"mask_res"         yaml:"mask_res"` // [columns, rows]
	MaskPadding     int     `json:"mask_padding"     yaml:"mask_padding"`
	KeepProbability float64 `json:"keep_probability" yaml:"keep_probability"`
	Workers         int     `json:"workers"          yaml:"workers"` // 0 = one per CPU
	Seed            int64   `json:"seed"             yaml:"seed"`    // 0 = time based
}

// RenderConfig holds figure rendering settings.
type RenderConfig struct {
	Alpha       float64 `json:"alpha"        yaml:"alpha"`
	MaxFigures  int     `json:"max_figures"  yaml:"max_figures"` // 0 = all
	JPEGQuality int     `json:"jpeg_quality" yaml:"jpeg_quality"`
	Colormap    string  `json:"colormap"     yaml:"colormap"`
	BoxColor    string  `json:"box_color"    yaml:"box_color"` // #RRGGBB or #RRGGBBAA
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `json:"level"          yaml:"level"`
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
}
