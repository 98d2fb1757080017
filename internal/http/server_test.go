package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/gomemory/internal/mcp"
	"github.com/nextlevelbuilder/gomemory/internal/memory"
	"github.com/nextlevelbuilder/gomemory/internal/store/memstore"
	"github.com/nextlevelbuilder/gomemory/internal/tools"
	"github.com/nextlevelbuilder/gomemory/pkg/protocol"
)

const testToken = "s3cret-token"

func newTestServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := memory.NewEngine(memory.Options{Store: memstore.New(), Logger: logger})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { engine.Close(context.Background()) })

	reg := tools.NewRegistry(logger)
	tools.RegisterMemoryTools(reg, engine)
	srv := NewServer("", token, reg, mcp.NewServer(reg, "test", logger), logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, ts *httptest.Server, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("%s %s: body is not JSON: %v", method, path, err)
	}
	return resp, out
}

func TestHealthzNeedsNoToken(t *testing.T) {
	ts := newTestServer(t, testToken)
	resp, body := do(t, ts, http.MethodGet, "/healthz", "", "")
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz = %d %v", resp.StatusCode, body)
	}
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, testToken)
	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"valid", testToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := do(t, ts, http.MethodGet, "/v1/tools", tt.token, "")
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestToolsList(t *testing.T) {
	ts := newTestServer(t, "")
	_, body := do(t, ts, http.MethodGet, "/v1/tools", "", "")
	list, _ := body["tools"].([]any)
	if len(list) != 9 {
		t.Fatalf("got %d tools, want 9", len(list))
	}
	first := list[0].(map[string]any)
	if first["name"] != protocol.ToolCalculateSimilarity || first["readOnly"] != true {
		t.Errorf("first tool = %v", first)
	}
}

func TestToolsInvoke(t *testing.T) {
	ts := newTestServer(t, "")

	resp, body := do(t, ts, http.MethodPost, "/v1/tools/invoke", "",
		`{"tool":"create_memory","args":{"content":"likes green tea","tags":["drinks"]}}`)
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("create = %d %v", resp.StatusCode, body)
	}
	id := body["data"].(map[string]any)["id"].(string)

	_, body = do(t, ts, http.MethodPost, "/v1/tools/invoke", "",
		`{"tool":"read_memories","args":{"tags":["drinks"]}}`)
	recs, _ := body["data"].([]any)
	if len(recs) != 1 || recs[0].(map[string]any)["id"] != id {
		t.Fatalf("read = %v", body)
	}

	resp, body = do(t, ts, http.MethodPost, "/v1/tools/invoke", "",
		`{"tool":"delete_memory","args":{"id":"does-not-exist"}}`)
	if resp.StatusCode != http.StatusNotFound || body["code"] != protocol.ErrNotFound {
		t.Errorf("delete missing = %d %v", resp.StatusCode, body)
	}

	resp, body = do(t, ts, http.MethodPost, "/v1/tools/invoke", "",
		`{"tool":"semantic_search","args":{"query":"tea"}}`)
	if resp.StatusCode != http.StatusServiceUnavailable || body["code"] != protocol.ErrUnavailable {
		t.Errorf("search without provider = %d %v", resp.StatusCode, body)
	}
}

func TestToolsInvoke_BadRequests(t *testing.T) {
	ts := newTestServer(t, "")
	tests := []struct {
		name   string
		method string
		body   string
		want   int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"not json", http.MethodPost, "{", http.StatusBadRequest},
		{"no tool", http.MethodPost, `{"args":{}}`, http.StatusBadRequest},
		{"unknown tool", http.MethodPost, `{"tool":"forget_everything"}`, http.StatusNotFound},
		{"dry run", http.MethodPost, `{"tool":"create_memory","dryRun":true}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := do(t, ts, tt.method, "/v1/tools/invoke", "", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}
