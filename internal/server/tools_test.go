package server

import (
	"context"
	"encoding/json"
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"image_load",
		"detect_objects",
		"drise_saliency",
		"crop_detection",
	}

	if len(tools) != len(expectedTools) {
		t.Fatalf("expected %d tools, got %d", len(expectedTools), len(tools))
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		toolMap[tool.Name] = tool
	}
	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("missing description")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("schema type: got %v", tool.InputSchema["type"])
			}

			required, ok := tool.InputSchema["required"].([]string)
			if !ok {
				t.Fatal("required should be []string")
			}
			hasPath := false
			for _, r := range required {
				if r == "path" {
					hasPath = true
				}
			}
			if !hasPath {
				t.Error("path should be required")
			}
		})
	}
}

func TestToolSchemas_Compile(t *testing.T) {
	all, err := toolSchemas()
	if err != nil {
		t.Fatalf("toolSchemas: %v", err)
	}
	if len(all) != len(GetToolDefinitions()) {
		t.Errorf("compiled %d schemas, want %d", len(all), len(GetToolDefinitions()))
	}
}

func TestValidateArgs(t *testing.T) {
	tests := []struct {
		name    string
		tool    string
		args    string
		wantErr bool
	}{
		{"load ok", "image_load", `{"path":"/tmp/a.png"}`, false},
		{"load missing path", "image_load", `{}`, true},
		{"load empty path", "image_load", `{"path":""}`, true},
		{"detect ok", "detect_objects", `{"path":"/a.png","backend":"onnx","num_classes":91}`, false},
		{"detect bad backend", "detect_objects", `{"path":"/a.png","backend":"yolo"}`, true},
		{"detect threshold too big", "detect_objects", `{"path":"/a.png","score_threshold":1.5}`, true},
		{"saliency ok", "drise_saliency", `{"path":"/a.png","num_masks":100,"max_figures":0,"include_images":true}`, false},
		{"saliency fractional masks", "drise_saliency", `{"path":"/a.png","num_masks":2.5}`, true},
		{"saliency zero masks", "drise_saliency", `{"path":"/a.png","num_masks":0}`, true},
		{"crop ok", "crop_detection", `{"path":"/a.png","x1":0,"y1":0,"x2":5,"y2":5,"padding":2}`, false},
		{"crop missing corner", "crop_detection", `{"path":"/a.png","x1":0,"y1":0,"x2":5}`, true},
		{"crop negative padding", "crop_detection", `{"path":"/a.png","x1":0,"y1":0,"x2":5,"y2":5,"padding":-1}`, true},
		{"crop zero scale", "crop_detection", `{"path":"/a.png","x1":0,"y1":0,"x2":5,"y2":5,"scale":0}`, true},
		{"unknown tool passes", "nope", `{"anything":1}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateArgs(tt.tool, json.RawMessage(tt.args))
			if (err != nil) != tt.wantErr {
				t.Errorf("validateArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandleToolsList(t *testing.T) {
	resp := New(nil).handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/list"})
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	data, err := json.Marshal(resp.Result)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	var decoded struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if len(decoded.Tools) != 4 {
		t.Errorf("expected 4 tools, got %d", len(decoded.Tools))
	}
	for _, tool := range decoded.Tools {
		if _, ok := tool.InputSchema["properties"]; !ok {
			t.Errorf("%s: schema without properties", tool.Name)
		}
	}
}
