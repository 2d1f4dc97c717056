// Package smoke runs end-to-end checks against a live helper backend plus
// in-process MCP checks (tool registry, hello resource, client-side upload
// rejection). It is wired to the smoke subcommand and used against both
// local and hosted deployments.
package smoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"pkt.systems/pslog"

	"github.com/seqgpt/helper-mcp/pkg/api"
	"github.com/seqgpt/helper-mcp/pkg/backendclient"
	"github.com/seqgpt/helper-mcp/pkg/mcpserver"
)

// Check outcome states.
const (
	StatusPass = "pass"
	StatusFail = "fail"
	StatusSkip = "skip"
)

// Result is the outcome of one named check.
type Result struct {
	Name     string
	Status   string
	Detail   string
	Duration time.Duration
}

// Runner executes the smoke checks in order.
type Runner struct {
	backend *backendclient.Client
	logger  pslog.Logger
}

// New builds a runner for the backend at backendURL.
func New(backendURL string, logger pslog.Logger) (*Runner, error) {
	client, err := backendclient.New(backendURL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		return nil, errors.New("smoke: logger is required")
	}
	return &Runner{backend: client, logger: logger.With("subsystem", "smoke")}, nil
}

type check struct {
	name string
	run  func(context.Context) error
}

func (r *Runner) backendChecks() []check {
	return []check{
		{"backend.health", r.checkHealth},
		{"backend.create_random_csv", r.checkCreate},
		{"backend.create_then_preview", r.checkCreatePreview},
		{"backend.create_then_query", r.checkCreateQuery},
		{"backend.upload_round_trip", r.checkUpload},
		{"backend.preview_invalid_url_rejected", r.checkPreviewInvalidURL},
		{"backend.preview_missing_object_rejected", r.checkPreviewMissing},
	}
}

func (r *Runner) mcpChecks() []check {
	return []check{
		{"mcp.tool_registry", r.checkToolRegistry},
		{"mcp.hello_resource", r.checkHelloResource},
		{"mcp.upload_missing_path_rejected", r.checkUploadMissingPath},
	}
}

// Run executes every check. If the health check fails, the remaining
// backend checks are skipped; the in-process MCP checks still run since
// none of them touch the backend.
func (r *Runner) Run(ctx context.Context) []Result {
	var results []Result
	unreachable := false
	for _, c := range r.backendChecks() {
		if unreachable {
			results = append(results, Result{Name: c.name, Status: StatusSkip, Detail: "backend unreachable"})
			continue
		}
		res := r.runOne(ctx, c)
		if c.name == "backend.health" && res.Status == StatusFail {
			unreachable = true
		}
		results = append(results, res)
	}
	for _, c := range r.mcpChecks() {
		results = append(results, r.runOne(ctx, c))
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, c check) Result {
	start := time.Now()
	err := c.run(ctx)
	res := Result{Name: c.name, Status: StatusPass, Duration: time.Since(start)}
	if err != nil {
		res.Status = StatusFail
		res.Detail = err.Error()
	}
	r.logger.Info("smoke.check", "name", res.Name, "status", res.Status, "duration_ms", res.Duration.Milliseconds(), "detail", res.Detail)
	return res
}

// Failed reports whether any check failed. Skipped checks do not fail
// the run.
func Failed(results []Result) bool {
	for _, res := range results {
		if res.Status == StatusFail {
			return true
		}
	}
	return false
}

func (r *Runner) checkHealth(ctx context.Context) error { return r.backend.Health(ctx) }

func (r *Runner) checkCreate(ctx context.Context) error {
	resp, err := r.backend.CreateRandomCSV(ctx, api.CreateRandomCSVRequest{
		NumRows: 5,
		Columns: []string{"ID", "Name", "Value"},
	})
	if err != nil {
		return err
	}
	if resp.NumRows != 5 {
		return fmt.Errorf("num_rows=%d want 5", resp.NumRows)
	}
	if !strings.HasPrefix(resp.URL, "s3://") {
		return fmt.Errorf("url %q is not an s3 object url", resp.URL)
	}
	return nil
}

func (r *Runner) checkCreatePreview(ctx context.Context) error {
	created, err := r.backend.CreateRandomCSV(ctx, api.CreateRandomCSVRequest{NumRows: 8})
	if err != nil {
		return err
	}
	preview, err := r.backend.PreviewCSV(ctx, api.PreviewCSVRequest{URL: created.URL, Lines: 5})
	if err != nil {
		return err
	}
	if preview.LinesReturned != 5 {
		return fmt.Errorf("lines_returned=%d want 5", preview.LinesReturned)
	}
	if len(preview.Columns) == 0 {
		return errors.New("preview returned no header")
	}
	return nil
}

func (r *Runner) checkCreateQuery(ctx context.Context) error {
	created, err := r.backend.CreateRandomCSV(ctx, api.CreateRandomCSVRequest{NumRows: 7})
	if err != nil {
		return err
	}
	res, err := r.backend.CSVQuery(ctx, api.CSVQueryRequest{
		URL: created.URL,
		SQL: "SELECT COUNT(*) AS n FROM df",
	})
	if err != nil {
		return err
	}
	if res.RowCount != 1 {
		return fmt.Errorf("row_count=%d want 1", res.RowCount)
	}
	n, ok := res.Rows[0]["n"].(float64)
	if !ok || n != 7 {
		return fmt.Errorf("count=%v want 7", res.Rows[0]["n"])
	}
	return nil
}

func (r *Runner) checkUpload(ctx context.Context) error {
	payload := "This is a test file for upload functionality.\n"
	resp, err := r.backend.Upload(ctx, "smoke-upload.txt", "text/plain", strings.NewReader(payload))
	if err != nil {
		return err
	}
	if resp.SizeBytes != int64(len(payload)) {
		return fmt.Errorf("size_bytes=%d want %d", resp.SizeBytes, len(payload))
	}
	if resp.Filename != "smoke-upload.txt" {
		return fmt.Errorf("filename=%q", resp.Filename)
	}
	return nil
}

func (r *Runner) checkPreviewInvalidURL(ctx context.Context) error {
	_, err := r.backend.PreviewCSV(ctx, api.PreviewCSVRequest{URL: "invalid-url"})
	return expectAPIError(err, 400, "invalid_object_url")
}

func (r *Runner) checkPreviewMissing(ctx context.Context) error {
	_, err := r.backend.PreviewCSV(ctx, api.PreviewCSVRequest{URL: "s3://datasets/csv/does-not-exist.csv"})
	// Bucket names vary per deployment; unknown_bucket is as conclusive
	// as not_found here.
	if expectAPIError(err, 404, "not_found") == nil {
		return nil
	}
	return expectAPIError(err, 400, "unknown_bucket")
}

func (r *Runner) checkToolRegistry(ctx context.Context) error {
	resp, err := mcpserver.BuildToolsListResponse(ctx, mcpserver.Config{BackendURL: r.backend.BaseURL()})
	if err != nil {
		return err
	}
	if len(resp.Result.Tools) == 0 {
		return errors.New("tool registry is empty")
	}
	names := make(map[string]bool, len(resp.Result.Tools))
	for _, tool := range resp.Result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"table.generate", "csv.create_random", "csv.preview", "csv.query", "file.upload"} {
		if !names[want] {
			return fmt.Errorf("missing tool %s", want)
		}
	}
	return nil
}

func (r *Runner) checkHelloResource(ctx context.Context) error {
	sess, err := r.openMCPSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	res, err := sess.Session.ReadResource(ctx, &mcpsdk.ReadResourceParams{URI: "hello://helper"})
	if err != nil {
		return err
	}
	if len(res.Contents) == 0 {
		return errors.New("hello resource returned no contents")
	}
	if !strings.Contains(res.Contents[0].Text, "Hello from the helper MCP server") {
		return fmt.Errorf("unexpected hello text %q", res.Contents[0].Text)
	}
	return nil
}

func (r *Runner) checkUploadMissingPath(ctx context.Context) error {
	sess, err := r.openMCPSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()
	// A path that cannot exist; the tool must reject it before any
	// backend call.
	path := filepath.Join(os.TempDir(), fmt.Sprintf("helper-smoke-missing-%d.txt", time.Now().UnixNano()))
	res, err := sess.Session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      "file.upload",
		Arguments: map[string]any{"path": path},
	})
	if err != nil {
		return err
	}
	if !res.IsError {
		return errors.New("expected the upload to fail")
	}
	if len(res.Content) == 0 {
		return errors.New("error result carried no content")
	}
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		return fmt.Errorf("error content is %T, want text", res.Content[0])
	}
	var env struct {
		Error struct {
			ErrorCode string `json:"error_code"`
			Detail    string `json:"detail"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(text.Text), &env); err != nil {
		return fmt.Errorf("decode error envelope: %w", err)
	}
	if env.Error.ErrorCode != "file_not_found" {
		return fmt.Errorf("error_code=%q want file_not_found", env.Error.ErrorCode)
	}
	if !strings.HasPrefix(env.Error.Detail, "File not found:") {
		return fmt.Errorf("detail=%q", env.Error.Detail)
	}
	return nil
}

func (r *Runner) openMCPSession(ctx context.Context) (*mcpserver.InProcessSession, error) {
	return mcpserver.NewInProcessSession(ctx, mcpserver.Config{BackendURL: r.backend.BaseURL()})
}

func expectAPIError(err error, status int, code string) error {
	if err == nil {
		return errors.New("expected the call to fail")
	}
	var apiErr *backendclient.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("expected a backend api error, got: %w", err)
	}
	if apiErr.Status != status || apiErr.Code != code {
		return fmt.Errorf("expected %d/%s, got %d/%s", status, code, apiErr.Status, apiErr.Code)
	}
	return nil
}
