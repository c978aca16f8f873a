package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"

	"github.com/ironsheep/vision-explain/internal/envvar"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "config.v1.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// Schema returns the compiled config schema.
func Schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled, compileErr = jsonschema.CompileString(schemaURL, schemaJSON)
	})
	return compiled, compileErr
}

// Load reads the config at path. A missing file yields Default().
// Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg, err := LoadAndValidate(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("Config file not found, using defaults", "path", path)
		cfg = Default()
		err = nil
	}
	if err != nil {
		return nil, err
	}

	ApplyEnv(cfg)
	return cfg, nil
}

// LoadAndValidate loads and validates the configuration.
// Values absent from the file keep their Default() value.
func LoadAndValidate(path string) (*Config, error) {
	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse validates YAML data against the schema and decodes it over Default().
func Parse(data []byte) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if raw == nil {
		return Default(), nil
	}

	doc, err := toJSONValue(raw)
	if err != nil {
		return nil, fmt.Errorf("config: failed to convert YAML: %w", err)
	}

	schema, err := Schema()
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("config: config validation failed: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	return config, nil
}

// toJSONValue converts a YAML document to the value model the schema validator expects.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ApplyEnv overrides config values from VISION_EXPLAIN_* environment variables.
func ApplyEnv(cfg *Config) {
	if level := os.Getenv(envvar.VisionExplainLogLevel); level != "" {
		cfg.Log.Level = level
	}
	if path := os.Getenv(envvar.VisionExplainModelPath); path != "" {
		cfg.Model.Path = path
	}
	if lib := os.Getenv(envvar.OnnxRuntimeLib); lib != "" && cfg.Model.ONNX.SharedLibrary == "" {
		cfg.Model.ONNX.SharedLibrary = lib
	}
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
