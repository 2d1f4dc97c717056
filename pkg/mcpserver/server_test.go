package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"pkt.systems/pslog"

	"github.com/seqgpt/helper-mcp/pkg/backend"
	"github.com/seqgpt/helper-mcp/pkg/backendclient"
	"github.com/seqgpt/helper-mcp/pkg/blob"
	"github.com/seqgpt/helper-mcp/pkg/dataset"
)

func newToolTestServer(t *testing.T) *server {
	t.Helper()
	catalog, err := dataset.Open(context.Background(), "sqlite::memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = catalog.Close() })
	if err := catalog.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	be, err := backend.New(backend.Options{
		Store:   blob.NewMemoryStore("datasets"),
		Catalog: catalog,
		Logger:  pslog.NewStructured(io.Discard),
		NewRand: func() *rand.Rand { return rand.New(rand.NewSource(7)) },
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(be.Handler())
	t.Cleanup(ts.Close)

	cfg := Config{BackendURL: ts.URL}
	applyDefaults(&cfg)
	client, err := backendclient.New(cfg.BackendURL)
	if err != nil {
		t.Fatal(err)
	}
	logger := pslog.NewStructured(io.Discard)
	return &server{
		cfg:          cfg,
		logger:       logger,
		lifecycleLog: logger,
		toolLog:      logger,
		backend:      client,
		newRand:      func() *rand.Rand { return rand.New(rand.NewSource(7)) },
	}
}

func connectMCPClientSession(t *testing.T, s *server) (*mcpsdk.ClientSession, func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	mcpSrv := s.buildMCPServer()
	t1, t2 := mcpsdk.NewInMemoryTransports()
	ss, err := mcpSrv.Connect(ctx, t1, nil)
	if err != nil {
		cancel()
		t.Fatalf("server connect: %v", err)
	}
	cs, err := client.Connect(ctx, t2, nil)
	if err != nil {
		_ = ss.Close()
		cancel()
		t.Fatalf("client connect: %v", err)
	}
	return cs, func() {
		_ = cs.Close()
		_ = ss.Close()
		cancel()
	}
}

func callTool(t *testing.T, cs *mcpsdk.ClientSession, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	return res
}

func structured(t *testing.T, res *mcpsdk.CallToolResult) map[string]any {
	t.Helper()
	if res.IsError {
		t.Fatalf("unexpected tool error: %v", res.Content)
	}
	raw, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	return out
}

func extractToolErrorObject(t *testing.T, res *mcpsdk.CallToolResult) map[string]any {
	t.Helper()
	if !res.IsError {
		t.Fatalf("expected isError=true")
	}
	if len(res.Content) == 0 {
		t.Fatalf("expected error content entry")
	}
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	var content map[string]any
	if err := json.Unmarshal([]byte(text.Text), &content); err != nil {
		t.Fatalf("expected json error envelope, got %q: %v", text.Text, err)
	}
	errObj, ok := content["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected structured error object, got %#v", content)
	}
	return errObj
}

func TestTableGenerateTool(t *testing.T) {
	t.Parallel()
	s := newToolTestServer(t)
	cs, closeFn := connectMCPClientSession(t, s)
	defer closeFn()

	out := structured(t, callTool(t, cs, toolTableGenerate, map[string]any{
		"num_rows": 4,
		"columns":  []string{"ID", "Score"},
	}))
	if out["summary"] != "Generated table with 4 rows and 2 columns" {
		t.Fatalf("summary=%q", out["summary"])
	}
	rows, ok := out["rows"].([]any)
	if !ok || len(rows) != 4 {
		t.Fatalf("rows=%#v", out["rows"])
	}
	first, _ := rows[0].(map[string]any)
	if first["ID"] != float64(1) {
		t.Fatalf("first row=%v", first)
	}
}

func TestTableGenerateToolRejectsBadRange(t *testing.T) {
	t.Parallel()
	s := newToolTestServer(t)
	cs, closeFn := connectMCPClientSession(t, s)
	defer closeFn()

	res := callTool(t, cs, toolTableGenerate, map[string]any{
		"value_min": 10,
		"value_max": 1,
	})
	errObj := extractToolErrorObject(t, res)
	if errObj["error_code"] != "bad_value_range" {
		t.Fatalf("error_code=%v", errObj["error_code"])
	}
	if errObj["category"] != "validation" {
		t.Fatalf("category=%v", errObj["category"])
	}
}

func TestCSVCreatePreviewQueryTools(t *testing.T) {
	t.Parallel()
	s := newToolTestServer(t)
	cs, closeFn := connectMCPClientSession(t, s)
	defer closeFn()

	created := structured(t, callTool(t, cs, toolCSVCreate, map[string]any{
		"num_rows": 6,
		"columns":  []string{"ID", "Value"},
	}))
	url, _ := created["url"].(string)
	if !strings.HasPrefix(url, "s3://datasets/csv/") {
		t.Fatalf("url=%q", url)
	}

	preview := structured(t, callTool(t, cs, toolCSVPreview, map[string]any{
		"url":   url,
		"lines": 3,
	}))
	if preview["lines_returned"] != float64(3) {
		t.Fatalf("preview=%v", preview)
	}

	query := structured(t, callTool(t, cs, toolCSVQuery, map[string]any{
		"url": url,
		"sql": "SELECT COUNT(*) AS n FROM df",
	}))
	rows, _ := query["rows"].([]any)
	if len(rows) != 1 {
		t.Fatalf("rows=%v", query["rows"])
	}
	if row, _ := rows[0].(map[string]any); row["n"] != float64(6) {
		t.Fatalf("row=%v", rows[0])
	}
}

func TestCSVPreviewToolRejectsBadURLBeforeNetwork(t *testing.T) {
	t.Parallel()
	s := newToolTestServer(t)
	// Point the client at a dead address so a network call would fail loudly.
	deadClient, err := backendclient.New("http://127.0.0.1:1")
	if err != nil {
		t.Fatal(err)
	}
	s.backend = deadClient
	cs, closeFn := connectMCPClientSession(t, s)
	defer closeFn()

	res := callTool(t, cs, toolCSVPreview, map[string]any{"url": "gs://bucket/key.csv"})
	errObj := extractToolErrorObject(t, res)
	if errObj["error_code"] != "invalid_object_url" {
		t.Fatalf("error_code=%v", errObj["error_code"])
	}
}

func TestCSVQueryToolSurfacesBackendErrors(t *testing.T) {
	t.Parallel()
	s := newToolTestServer(t)
	cs, closeFn := connectMCPClientSession(t, s)
	defer closeFn()

	res := callTool(t, cs, toolCSVQuery, map[string]any{
		"url": "s3://datasets/csv/missing.csv",
		"sql": "SELECT 1",
	})
	errObj := extractToolErrorObject(t, res)
	if errObj["error_code"] != "not_found" {
		t.Fatalf("error_code=%v", errObj["error_code"])
	}
	if errObj["http_status"] != float64(404) {
		t.Fatalf("http_status=%v", errObj["http_status"])
	}
}

func TestFileUploadTool(t *testing.T) {
	t.Parallel()
	s := newToolTestServer(t)
	cs, closeFn := connectMCPClientSession(t, s)
	defer closeFn()

	path := filepath.Join(t.TempDir(), "sample.txt")
	if err := os.WriteFile(path, []byte("upload me\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out := structured(t, callTool(t, cs, toolFileUpload, map[string]any{
		"path":         path,
		"content_type": "text/plain",
	}))
	if out["filename"] != "sample.txt" {
		t.Fatalf("filename=%v", out["filename"])
	}
	if out["size_bytes"] != float64(10) {
		t.Fatalf("size_bytes=%v", out["size_bytes"])
	}
}

func TestFileUploadToolMissingFile(t *testing.T) {
	t.Parallel()
	s := newToolTestServer(t)
	cs, closeFn := connectMCPClientSession(t, s)
	defer closeFn()

	res := callTool(t, cs, toolFileUpload, map[string]any{
		"path": filepath.Join(t.TempDir(), "nope.txt"),
	})
	errObj := extractToolErrorObject(t, res)
	if errObj["error_code"] != "file_not_found" {
		t.Fatalf("error_code=%v", errObj["error_code"])
	}
	detail, _ := errObj["detail"].(string)
	if !strings.HasPrefix(detail, "File not found:") {
		t.Fatalf("detail=%q", detail)
	}
}

func TestHelloResource(t *testing.T) {
	t.Parallel()
	s := newToolTestServer(t)
	cs, closeFn := connectMCPClientSession(t, s)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := cs.ReadResource(ctx, &mcpsdk.ReadResourceParams{URI: helloHelperURI})
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if len(res.Contents) != 1 || !strings.Contains(res.Contents[0].Text, "Hello from the helper MCP server") {
		t.Fatalf("contents=%#v", res.Contents)
	}
}

func TestDocResourceNotFound(t *testing.T) {
	t.Parallel()
	s := newToolTestServer(t)
	_, err := s.handleDocResource(context.Background(), &mcpsdk.ReadResourceRequest{
		Params: &mcpsdk.ReadResourceParams{URI: "resource://docs/missing.md"},
	})
	if err == nil {
		t.Fatalf("expected resource not found error")
	}
}

func TestBuildToolsListResponse(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := BuildToolsListResponse(ctx, Config{})
	if err != nil {
		t.Fatalf("build tools list: %v", err)
	}
	want := []string{toolCSVCreate, toolCSVPreview, toolCSVQuery, toolFileUpload, toolTableGenerate}
	if len(resp.Result.Tools) != len(want) {
		t.Fatalf("tools=%d want %d", len(resp.Result.Tools), len(want))
	}
	seen := map[string]bool{}
	for _, tool := range resp.Result.Tools {
		seen[tool.Name] = true
		if tool.Description == "" {
			t.Fatalf("tool %s has no description", tool.Name)
		}
	}
	for _, name := range want {
		if !seen[name] {
			t.Fatalf("missing tool %s", name)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()
	if _, err := NewServer(NewServerRequest{Config: Config{Transport: "carrier-pigeon"}}); err == nil {
		t.Fatal("expected transport error")
	}
	if _, err := NewServer(NewServerRequest{Config: Config{MCPPath: "mcp"}}); err == nil {
		t.Fatal("expected mcp path error")
	}
}
