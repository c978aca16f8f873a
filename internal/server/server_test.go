package server

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ironsheep/vision-explain/internal/config"
)

func TestNew(t *testing.T) {
	s := New(nil)
	if s == nil {
		t.Fatal("New() returned nil")
	}
	if s.cache == nil {
		t.Fatal("New() did not initialize cache")
	}
	if s.current() == nil {
		t.Fatal("New() did not create an explainer")
	}
}

func TestMCPRequest_Unmarshal(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantID     interface{}
		wantMethod string
	}{
		{
			"string id",
			`{"jsonrpc":"2.0","id":"test-1","method":"tools/list"}`,
			"test-1",
			"tools/list",
		},
		{
			"number id",
			`{"jsonrpc":"2.0","id":42,"method":"ping"}`,
			float64(42), // JSON numbers decode as float64
			"ping",
		},
		{
			"null id",
			`{"jsonrpc":"2.0","id":null,"method":"initialize"}`,
			nil,
			"initialize",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req MCPRequest
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("Failed to unmarshal: %v", err)
			}

			if req.ID != tt.wantID {
				t.Errorf("ID: got %v (%T), want %v (%T)", req.ID, req.ID, tt.wantID, tt.wantID)
			}
			if req.Method != tt.wantMethod {
				t.Errorf("Method: got %s, want %s", req.Method, tt.wantMethod)
			}
		})
	}
}

func TestMCPResponse_OmitsEmptyFields(t *testing.T) {
	resp := New(nil).errorResponse(7, codeMethodNotFound, "Method not found: x", "")

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	s := string(data)
	if strings.Contains(s, `"result"`) {
		t.Errorf("error response should not carry a result: %s", s)
	}
	if strings.Contains(s, `"data"`) {
		t.Errorf("empty data should be omitted: %s", s)
	}
	if !strings.Contains(s, `"code":-32601`) {
		t.Errorf("missing error code: %s", s)
	}
}

func TestHandleRequest_Initialize(t *testing.T) {
	s := New(nil).WithVersion("1.2.3")
	resp := s.handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "initialize"})

	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}

	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	if result["protocolVersion"] != protocolVersion {
		t.Errorf("protocolVersion: got %v", result["protocolVersion"])
	}

	serverInfo, ok := result["serverInfo"].(map[string]interface{})
	if !ok {
		t.Fatal("serverInfo should be a map")
	}
	if serverInfo["name"] != "vision-explain" {
		t.Errorf("serverInfo.name: got %v", serverInfo["name"])
	}
	if serverInfo["version"] != "1.2.3" {
		t.Errorf("serverInfo.version: got %v", serverInfo["version"])
	}
}

func TestHandleRequest_Ping(t *testing.T) {
	resp := New(nil).handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: "p", Method: "ping"})
	if resp == nil || resp.Error != nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.ID != "p" {
		t.Errorf("ID: got %v", resp.ID)
	}
}

func TestHandleRequest_NotificationsInitialized(t *testing.T) {
	resp := New(nil).handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", Method: "notifications/initialized"})
	if resp != nil {
		t.Errorf("notification should not get a response, got %+v", resp)
	}
}

func TestHandleRequest_MethodNotFound(t *testing.T) {
	resp := New(nil).handleRequest(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 3, Method: "resources/list"})
	if resp == nil || resp.Error == nil {
		t.Fatal("expected error response")
	}
	if resp.Error.Code != codeMethodNotFound {
		t.Errorf("Code: got %d, want %d", resp.Error.Code, codeMethodNotFound)
	}
}

func TestServe(t *testing.T) {
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		``,
		`not json`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
	}, "\n")

	var out bytes.Buffer
	if err := New(nil).Serve(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 responses, got %d: %q", len(lines), out.String())
	}
	for i, line := range lines {
		var resp MCPResponse
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("response %d: %v", i, err)
		}
		if resp.ID != float64(i+1) {
			t.Errorf("response %d: ID %v", i, resp.ID)
		}
	}
}

func TestServe_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := New(nil).Serve(ctx, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), &out)
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("no response expected after cancel, got %q", out.String())
	}
}

func TestSetConfig(t *testing.T) {
	s := New(nil)
	before := s.current()

	cfg := config.Default()
	cfg.Model.ScoreThreshold = 0.9
	s.SetConfig(cfg)

	if s.current() == before {
		t.Fatal("explainer not replaced")
	}
	if got := s.current().Config().Model.ScoreThreshold; got != 0.9 {
		t.Errorf("ScoreThreshold: got %v", got)
	}
}
