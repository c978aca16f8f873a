// Package server implements the MCP (Model Context Protocol) server for detector
// explanations.
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load image and get metadata
//   - detect_objects: Run a detector and list its detections
//   - drise_saliency: Render (and optionally save) one DRISE heatmap per detection
//   - crop_detection: Extract a padded detection box as PNG
//
// Tool arguments are validated against each tool's input schema before the tool
// runs.
//
// # Image Caching
//
// Images are cached by path and reused across tool calls. The cache survives
// configuration reloads.
//
// # Error Handling
//
// Errors are returned as JSON-RPC error responses with:
//   - code: -32602 (arguments rejected by the schema), -32000 (tool execution
//     failure) or -32601 (unknown method)
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// # Usage
//
//	srv := server.New(cfg).WithVersion(version)
//	if err := srv.Run(ctx); err != nil {
//	    slog.Error("server stopped", "error", err)
//	}
package server
