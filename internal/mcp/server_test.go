package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/nextlevelbuilder/gomemory/internal/memory"
	"github.com/nextlevelbuilder/gomemory/internal/store/memstore"
	"github.com/nextlevelbuilder/gomemory/internal/tools"
	"github.com/nextlevelbuilder/gomemory/pkg/protocol"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestSchemaFromMap(t *testing.T) {
	m := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "Search query"},
		},
		"required": []string{"query"},
	}

	schema := schemaFromMap(m)
	if schema.Type != "object" {
		t.Errorf("type = %q", schema.Type)
	}
	if _, ok := schema.Properties["query"]; !ok {
		t.Error("expected 'query' in properties")
	}
	if len(schema.Required) != 1 || schema.Required[0] != "query" {
		t.Errorf("required = %v", schema.Required)
	}

	if empty := schemaFromMap(map[string]any{}); empty.Type != "object" || empty.Properties == nil {
		t.Errorf("empty schema = %+v", empty)
	}
}

func newClient(t *testing.T) *mcpclient.Client {
	t.Helper()
	ctx := context.Background()

	engine, err := memory.NewEngine(memory.Options{Store: memstore.New(), Logger: quietLogger})
	if err != nil {
		t.Fatal(err)
	}
	reg := tools.NewRegistry(quietLogger)
	tools.RegisterMemoryTools(reg, engine)
	srv := NewServer(reg, "test", quietLogger)

	c, err := mcpclient.NewInProcessClient(srv.MCPServer())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "test-client", Version: "0"}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		t.Fatal(err)
	}
	return c
}

func callTool(t *testing.T, c *mcpclient.Client, name string, args map[string]any) (map[string]any, bool) {
	t.Helper()
	req := mcpgo.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := c.CallTool(context.Background(), req)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(extractTextContent(res)), &out); err != nil {
		t.Fatalf("%s: result is not JSON: %v", name, err)
	}
	return out, res.IsError
}

func TestServer_ListsTools(t *testing.T) {
	c := newClient(t)
	res, err := c.ListTools(context.Background(), mcpgo.ListToolsRequest{})
	if err != nil {
		t.Fatal(err)
	}
	byName := make(map[string]mcpgo.Tool, len(res.Tools))
	for _, tool := range res.Tools {
		byName[tool.Name] = tool
	}
	if len(byName) != 9 {
		t.Errorf("got %d tools", len(byName))
	}
	search, ok := byName[protocol.ToolSemanticSearch]
	if !ok {
		t.Fatal("semantic_search missing")
	}
	if len(search.InputSchema.Required) != 1 || search.InputSchema.Required[0] != "query" {
		t.Errorf("required = %v", search.InputSchema.Required)
	}
	if hint := search.Annotations.ReadOnlyHint; hint == nil || !*hint {
		t.Error("semantic_search should be read-only")
	}
}

func TestServer_CallTools(t *testing.T) {
	c := newClient(t)

	out, isErr := callTool(t, c, protocol.ToolCreateMemory, map[string]any{
		"content": "I am learning programming", "tags": []any{"programming"},
	})
	if isErr || out["success"] != true {
		t.Fatalf("create = %v", out)
	}

	out, _ = callTool(t, c, protocol.ToolReadMemories, map[string]any{"type": "GLOBAL"})
	if data := out["data"].([]any); len(data) != 1 {
		t.Errorf("read = %v", out)
	}

	out, isErr = callTool(t, c, protocol.ToolSemanticSearch, map[string]any{"query": "learning"})
	if !isErr || out["code"] != protocol.ErrUnavailable {
		t.Errorf("semantic search without provider = %v (isError %v)", out, isErr)
	}
}

// extractTextContent concatenates all text content from a CallToolResult.
func extractTextContent(result *mcpgo.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	var parts []string
	for _, c := range result.Content {
		switch v := c.(type) {
		case mcpgo.TextContent:
			parts = append(parts, v.Text)
		case *mcpgo.TextContent:
			parts = append(parts, v.Text)
		default:
			parts = append(parts, fmt.Sprintf("[non-text content: %T]", c))
		}
	}
	return strings.Join(parts, "\n")
}
