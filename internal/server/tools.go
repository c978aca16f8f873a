package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ironsheep/vision-explain/internal/config"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var pathProperty = map[string]interface{}{
	"type":        "string",
	"minLength":   1,
	"description": "Absolute path to the image file",
}

var backendProperty = map[string]interface{}{
	"type":        "string",
	"enum":        []string{config.BackendContour, config.BackendONNX, config.BackendOCR},
	"description": "Detector backend. Defaults to the configured backend",
}

var numClassesProperty = map[string]interface{}{
	"type":        "integer",
	"minimum":     1,
	"description": "Length of the class-score vector for single-label detectors",
}

var scoreThresholdProperty = map[string]interface{}{
	"type":        "number",
	"minimum":     0,
	"maximum":     1,
	"description": "Minimum detection score. Defaults to the configured threshold; 0 keeps every detection",
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions and format. The image stays cached for later calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "detect_objects",
			Description: "Run an object detector on an image and list the detections above the score threshold, strongest first.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":        pathProperty,
					"backend":     backendProperty,
					"num_classes": numClassesProperty,
					"score_threshold": scoreThresholdProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "drise_saliency",
			Description: "Explain the detector's output with DRISE: render one saliency heatmap per detection, optionally saving them as prefix0.jpg, prefix1.jpg, ...",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":        pathProperty,
					"backend":     backendProperty,
					"num_classes": numClassesProperty,
					"score_threshold": scoreThresholdProperty,
					"save_prefix": map[string]interface{}{
						"type":        "string",
						"description": "Output path prefix. Figure i is written to prefix + i + \".jpg\"",
					},
					"max_figures": map[string]interface{}{
						"type":        "integer",
						"minimum":     0,
						"description": "Maximum number of detections to explain. 0 means all",
					},
					"num_masks": map[string]interface{}{
						"type":        "integer",
						"minimum":     1,
						"description": "Number of random masks",
					},
					"seed": map[string]interface{}{
						"type":        "integer",
						"description": "Mask sampling seed. 0 picks one",
					},
					"include_images": map[string]interface{}{
						"type":        "boolean",
						"description": "Return the figures as base64 PNG",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "crop_detection",
			Description: "Crop a detection box, grown by padding pixels, and return it as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"x1": map[string]interface{}{
						"type":        "integer",
						"description": "Left edge X coordinate (0-based)",
					},
					"y1": map[string]interface{}{
						"type":        "integer",
						"description": "Top edge Y coordinate (0-based)",
					},
					"x2": map[string]interface{}{
						"type":        "integer",
						"description": "Right edge X coordinate (exclusive)",
					},
					"y2": map[string]interface{}{
						"type":        "integer",
						"description": "Bottom edge Y coordinate (exclusive)",
					},
					"padding": map[string]interface{}{
						"type":        "integer",
						"minimum":     0,
						"description": "Pixels added on every side. Default 0",
						"default":     0,
					},
					"scale": map[string]interface{}{
						"type":             "number",
						"exclusiveMinimum": 0,
						"description":      "Optional scale factor (e.g., 2.0 to double size). Default 1.0",
						"default":          1.0,
					},
				},
				"required": []string{"path", "x1", "y1", "x2", "y2"},
			},
		},
	}
}

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

// toolSchemas compiles every tool's input schema once.
func toolSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiled := make(map[string]*jsonschema.Schema)
		for _, tool := range GetToolDefinitions() {
			data, err := json.Marshal(tool.InputSchema)
			if err != nil {
				schemasErr = fmt.Errorf("tool %s: %w", tool.Name, err)
				return
			}
			url := "tools/" + tool.Name + ".json"
			if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
				schemasErr = fmt.Errorf("tool %s: %w", tool.Name, err)
				return
			}
			schema, err := compiler.Compile(url)
			if err != nil {
				schemasErr = fmt.Errorf("tool %s: %w", tool.Name, err)
				return
			}
			compiled[tool.Name] = schema
		}
		schemas = compiled
	})
	return schemas, schemasErr
}

// validateArgs checks args against the input schema of the named tool.
// Tools without a schema pass.
func validateArgs(name string, args json.RawMessage) error {
	all, err := toolSchemas()
	if err != nil {
		return err
	}
	schema, ok := all[name]
	if !ok {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return err
	}
	return schema.Validate(v)
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
