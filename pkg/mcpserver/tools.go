package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/seqgpt/helper-mcp/pkg/api"
	"github.com/seqgpt/helper-mcp/pkg/blob"
	"github.com/seqgpt/helper-mcp/pkg/csvquery"
	"github.com/seqgpt/helper-mcp/pkg/errmodel"
	"github.com/seqgpt/helper-mcp/pkg/tablegen"
)

const (
	toolTableGenerate  = "table.generate"
	toolCSVCreate      = "csv.create_random"
	toolCSVPreview     = "csv.preview"
	toolCSVQuery       = "csv.query"
	toolFileUpload     = "file.upload"
	maxUploadPathBytes = 64 << 20
)

func buildToolDescriptions() map[string]string {
	return map[string]string{
		toolTableGenerate: fmt.Sprintf("Generate a random data table inline, without storing it. The first column and any column named id/index/row holds 1-based row numbers; other columns hold uniform random values rounded to two decimals. Limits: %d rows, %d columns.", tablegen.MaxRows, tablegen.MaxColumns),
		toolCSVCreate:     "Generate a random CSV on the backend and store it in object storage. Returns an s3://bucket/key URL for use with csv.preview and csv.query.",
		toolCSVPreview:    "Return the header and first N rows of a stored CSV, addressed by its s3://bucket/key URL.",
		toolCSVQuery:      fmt.Sprintf("Run a single SELECT statement over a stored CSV loaded as table %s. Returns at most %d rows.", csvquery.TableName, csvquery.MaxResultRows),
		toolFileUpload:    "Upload a local file to backend object storage. The path must exist on the machine running this server.",
	}
}

func (s *server) registerTools(srv *mcpsdk.Server) {
	descriptions := buildToolDescriptions()
	desc := func(name string) string {
		description, ok := descriptions[name]
		if !ok {
			panic(fmt.Sprintf("missing MCP tool description for %q", name))
		}
		return description
	}

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolTableGenerate,
		Description: desc(toolTableGenerate),
	}, withStructuredToolErrors(s.handleTableGenerateTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolCSVCreate,
		Description: desc(toolCSVCreate),
	}, withStructuredToolErrors(s.handleCSVCreateTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolCSVPreview,
		Description: desc(toolCSVPreview),
	}, withStructuredToolErrors(s.handleCSVPreviewTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolCSVQuery,
		Description: desc(toolCSVQuery),
		InputSchema: csvQueryInputSchema(),
	}, withStructuredToolErrors(s.handleCSVQueryTool))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolFileUpload,
		Description: desc(toolFileUpload),
	}, withStructuredToolErrors(s.handleFileUploadTool))
}

// csvQueryInputSchema spells out the csv.query contract instead of relying
// on struct inference, so hosts see the df table convention up front.
func csvQueryInputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"url": {
				Type:        "string",
				Description: "Object URL of the CSV, s3://bucket/key",
			},
			"sql": {
				Type:        "string",
				Description: "A single SELECT statement over table " + csvquery.TableName,
			},
		},
		Required: []string{"url", "sql"},
	}
}

type tableGenerateToolInput struct {
	NumRows  int      `json:"num_rows,omitempty" jsonschema:"Number of rows (default 10, max 10000)"`
	Columns  []string `json:"columns,omitempty" jsonschema:"Column names (default ID, Value A, Value B, Value C)"`
	ValueMin float64  `json:"value_min,omitempty" jsonschema:"Lower bound for random values"`
	ValueMax float64  `json:"value_max,omitempty" jsonschema:"Upper bound for random values (default 100)"`
}

type tableGenerateToolOutput struct {
	Summary string           `json:"summary"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	NumRows int              `json:"num_rows"`
}

func (s *server) handleTableGenerateTool(_ context.Context, _ *mcpsdk.CallToolRequest, input tableGenerateToolInput) (*mcpsdk.CallToolResult, tableGenerateToolOutput, error) {
	table, err := tablegen.Generate(tablegen.Spec{
		NumRows:  input.NumRows,
		Columns:  input.Columns,
		ValueMin: input.ValueMin,
		ValueMax: input.ValueMax,
	}, s.newRand())
	if err != nil {
		return nil, tableGenerateToolOutput{}, err
	}
	s.toolLog.Info("mcp.tool.table_generate", "rows", len(table.Rows), "columns", len(table.Columns))
	return nil, tableGenerateToolOutput{
		Summary: table.Summary(),
		Columns: table.Columns,
		Rows:    table.Records(),
		NumRows: len(table.Rows),
	}, nil
}

type csvCreateToolInput struct {
	NumRows  int      `json:"num_rows,omitempty" jsonschema:"Number of rows (default 10, max 10000)"`
	Columns  []string `json:"columns,omitempty" jsonschema:"Column names (default ID, Value A, Value B, Value C)"`
	ValueMin float64  `json:"value_min,omitempty" jsonschema:"Lower bound for random values"`
	ValueMax float64  `json:"value_max,omitempty" jsonschema:"Upper bound for random values (default 100)"`
}

func (s *server) handleCSVCreateTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input csvCreateToolInput) (*mcpsdk.CallToolResult, api.CreateRandomCSVResponse, error) {
	resp, err := s.backend.CreateRandomCSV(ctx, api.CreateRandomCSVRequest{
		NumRows:  input.NumRows,
		Columns:  input.Columns,
		ValueMin: input.ValueMin,
		ValueMax: input.ValueMax,
	})
	if err != nil {
		return nil, api.CreateRandomCSVResponse{}, err
	}
	s.toolLog.Info("mcp.tool.csv_create_random", "dataset_id", resp.DatasetID, "url", resp.URL)
	return nil, resp, nil
}

type csvPreviewToolInput struct {
	URL   string `json:"url" jsonschema:"Object URL of the CSV, s3://bucket/key"`
	Lines int    `json:"lines,omitempty" jsonschema:"Rows to return after the header (default 10, max 1000)"`
}

func (s *server) handleCSVPreviewTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input csvPreviewToolInput) (*mcpsdk.CallToolResult, api.PreviewCSVResponse, error) {
	if err := checkObjectURL(input.URL); err != nil {
		return nil, api.PreviewCSVResponse{}, err
	}
	resp, err := s.backend.PreviewCSV(ctx, api.PreviewCSVRequest{URL: input.URL, Lines: input.Lines})
	if err != nil {
		return nil, api.PreviewCSVResponse{}, err
	}
	return nil, resp, nil
}

type csvQueryToolInput struct {
	URL string `json:"url"`
	SQL string `json:"sql"`
}

func (s *server) handleCSVQueryTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input csvQueryToolInput) (*mcpsdk.CallToolResult, api.CSVQueryResponse, error) {
	if err := checkObjectURL(input.URL); err != nil {
		return nil, api.CSVQueryResponse{}, err
	}
	if strings.TrimSpace(input.SQL) == "" {
		return nil, api.CSVQueryResponse{}, errmodel.Validation("empty_sql", "sql is required", nil)
	}
	resp, err := s.backend.CSVQuery(ctx, api.CSVQueryRequest{URL: input.URL, SQL: input.SQL})
	if err != nil {
		return nil, api.CSVQueryResponse{}, err
	}
	s.toolLog.Info("mcp.tool.csv_query", "url", input.URL, "row_count", resp.RowCount)
	return nil, resp, nil
}

type fileUploadToolInput struct {
	Path        string `json:"path" jsonschema:"Local file path to upload"`
	ContentType string `json:"content_type,omitempty" jsonschema:"MIME type of the file (default application/octet-stream)"`
}

func (s *server) handleFileUploadTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input fileUploadToolInput) (*mcpsdk.CallToolResult, api.UploadResponse, error) {
	path := strings.TrimSpace(input.Path)
	if path == "" {
		return nil, api.UploadResponse{}, errmodel.Validation("empty_path", "path is required", nil)
	}
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, api.UploadResponse{}, errmodel.Validation("file_not_found",
			fmt.Sprintf("File not found: %s", path), nil)
	}
	if err != nil {
		return nil, api.UploadResponse{}, errmodel.System("stat_failed", err.Error(), nil)
	}
	if fi.IsDir() {
		return nil, api.UploadResponse{}, errmodel.Validation("path_is_directory",
			fmt.Sprintf("%s is a directory, not a file", path), nil)
	}
	if fi.Size() > maxUploadPathBytes {
		return nil, api.UploadResponse{}, errmodel.Validation("file_too_large",
			fmt.Sprintf("%s exceeds the %d byte upload limit", path, maxUploadPathBytes), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, api.UploadResponse{}, errmodel.System("open_failed", err.Error(), nil)
	}
	defer f.Close()

	resp, err := s.backend.Upload(ctx, filepath.Base(path), strings.TrimSpace(input.ContentType), f)
	if err != nil {
		return nil, api.UploadResponse{}, err
	}
	s.toolLog.Info("mcp.tool.file_upload", "path", path, "url", resp.URL, "size_bytes", resp.SizeBytes)
	return nil, resp, nil
}

// checkObjectURL rejects malformed object URLs before any backend call.
func checkObjectURL(rawURL string) error {
	if _, _, err := blob.ParseURL(rawURL); err != nil {
		return errmodel.Validation("invalid_object_url",
			fmt.Sprintf("object URL must look like s3://bucket/key, got %q", rawURL), nil)
	}
	return nil
}
