package server

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"math"
	"time"

	"github.com/ironsheep/vision-explain/internal/detection"
	"github.com/ironsheep/vision-explain/internal/explain"
	"github.com/ironsheep/vision-explain/internal/imaging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "drise_saliency").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Arguments that fail the tool's input schema return -32602. Tool execution errors
// return -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}
	if len(params.Arguments) == 0 {
		params.Arguments = json.RawMessage("{}")
	}
	if err := validateArgs(params.Name, params.Arguments); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid arguments", err.Error())
	}

	start := time.Now()
	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		slog.Warn("Tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}
	slog.Debug("Tool completed", "tool", params.Name, "elapsed", time.Since(start))

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_load":
		return s.handleImageLoad(args)
	case "detect_objects":
		return s.handleDetectObjects(ctx, args)
	case "drise_saliency":
		return s.handleSaliency(ctx, args)
	case "crop_detection":
		return s.handleCropDetection(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

// detectionInfo is a detection as reported to the client. The class-score vector
// is left out.
type detectionInfo struct {
	Index  int              `json:"index"`
	Label  string           `json:"label"`
	Class  int              `json:"class"`
	Score  float64          `json:"score"`
	Bounds detection.Bounds `json:"bounds"`
}

func describe(dets []detection.Detection, labels []string) []detectionInfo {
	out := make([]detectionInfo, len(dets))
	for i, d := range dets {
		out[i] = detectionInfo{
			Index:  i,
			Label:  detection.LabelName(labels, d.Class),
			Class:  d.Class,
			Score:  round(d.Score),
			Bounds: d.Bounds,
		}
	}
	return out
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}

type detectObjectsArgs struct {
	Path           string   `json:"path"`
	Backend        string   `json:"backend"`
	NumClasses     int      `json:"num_classes"`
	ScoreThreshold *float64 `json:"score_threshold"`
}

type detectObjectsResult struct {
	Detector   string          `json:"detector"`
	Count      int             `json:"count"`
	Detections []detectionInfo `json:"detections"`
}

func (s *Server) handleDetectObjects(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a detectObjectsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	ex := s.current()
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	det, err := ex.Detector(ctx, a.Backend, a.NumClasses)
	if err != nil {
		return nil, err
	}
	defer det.Close()

	labels, err := ex.Labels(det, nil)
	if err != nil {
		return nil, err
	}

	dets, err := det.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	threshold := ex.Config().Model.ScoreThreshold
	if a.ScoreThreshold != nil {
		threshold = *a.ScoreThreshold
	}
	dets = detection.FilterByScore(dets, threshold)
	detection.SortByScore(dets)

	return &detectObjectsResult{
		Detector:   det.Name(),
		Count:      len(dets),
		Detections: describe(dets, labels),
	}, nil
}

type saliencyArgs struct {
	Path           string   `json:"path"`
	Backend        string   `json:"backend"`
	NumClasses     int      `json:"num_classes"`
	ScoreThreshold *float64 `json:"score_threshold"`
	SavePrefix     string   `json:"save_prefix"`
	MaxFigures     int      `json:"max_figures"`
	NumMasks       int      `json:"num_masks"`
	Seed           int64    `json:"seed"`
	IncludeImages  bool     `json:"include_images"`
}

type figureInfo struct {
	detectionInfo
	Path        string `json:"path,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
}

type saliencyResult struct {
	SavePrefix string       `json:"save_prefix"`
	Labels     []string     `json:"labels"`
	Seed       int64        `json:"seed"`
	Masks      int          `json:"masks"`
	WallTime   string       `json:"wall_time"`
	Figures    []figureInfo `json:"figures"`
}

func (s *Server) handleSaliency(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a saliencyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}

	ex := s.current()
	req := explain.Request{
		ImagePath:      a.Path,
		NumClasses:     a.NumClasses,
		ScoreThreshold: a.ScoreThreshold,
		SavePrefix:     a.SavePrefix,
		MaxFigures:     a.MaxFigures,
		NumMasks:       a.NumMasks,
		Seed:           a.Seed,
	}
	if a.Backend != "" {
		det, err := ex.Detector(ctx, a.Backend, a.NumClasses)
		if err != nil {
			return nil, err
		}
		defer det.Close()
		req.Detector = det
	}

	res, err := ex.GetSaliencyMap(ctx, req)
	if err != nil {
		return nil, err
	}

	out := &saliencyResult{
		SavePrefix: res.SavePrefix,
		Labels:     res.Labels,
		Seed:       res.Seed,
		Masks:      res.Stats.Masks,
		WallTime:   res.Stats.WallTime.String(),
		Figures:    make([]figureInfo, len(res.Figures)),
	}
	for i, fig := range res.Figures {
		info := figureInfo{
			detectionInfo: detectionInfo{
				Index:  fig.Index,
				Label:  fig.Label,
				Class:  fig.Detection.Class,
				Score:  round(fig.Detection.Score),
				Bounds: fig.Detection.Bounds,
			},
		}
		if i < len(res.Paths) {
			info.Path = res.Paths[i]
		}
		if a.IncludeImages {
			encoded, err := fig.PNGBase64()
			if err != nil {
				return nil, fmt.Errorf("failed to encode figure %d: %w", i, err)
			}
			info.ImageBase64 = encoded
			info.MimeType = "image/png"
		}
		out.Figures[i] = info
	}
	return out, nil
}

type cropDetectionArgs struct {
	Path    string  `json:"path"`
	X1      int     `json:"x1"`
	Y1      int     `json:"y1"`
	X2      int     `json:"x2"`
	Y2      int     `json:"y2"`
	Padding int     `json:"padding"`
	Scale   float64 `json:"scale"`
}

func (s *Server) handleCropDetection(args json.RawMessage) (interface{}, error) {
	var a cropDetectionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.CropPadded(img, image.Rect(a.X1, a.Y1, a.X2, a.Y2), a.Padding, a.Scale)
}
