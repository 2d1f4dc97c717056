// Package backendclient is the typed HTTP client for the helper backend
// service. The MCP tools and the smoke checks both go through it.
package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/seqgpt/helper-mcp/pkg/api"
	"github.com/seqgpt/helper-mcp/pkg/dataset"
)

// DefaultTimeout bounds a single backend call.
const DefaultTimeout = 60 * time.Second

// APIError is a non-2xx backend response, decoded from the error envelope.
type APIError struct {
	Status   int
	Category string
	Code     string
	Message  string
	TraceID  string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend: %s/%s: %s (http %d)", e.Category, e.Code, e.Message, e.Status)
	}
	return fmt.Sprintf("backend: http %d: %s", e.Status, e.Message)
}

// Client talks to one backend base URL.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpc = hc }
}

// New builds a client for baseURL, e.g. http://127.0.0.1:8000.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backendclient: base url is empty")
	}
	c := &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("backendclient: health: %w", err)
	}
	defer drain(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	return nil
}

// CreateRandomCSV generates a random CSV on the backend and stores it.
func (c *Client) CreateRandomCSV(ctx context.Context, req api.CreateRandomCSVRequest) (api.CreateRandomCSVResponse, error) {
	var out api.CreateRandomCSVResponse
	err := c.postJSON(ctx, "/create-random-csv", req, &out)
	return out, err
}

// PreviewCSV returns the header and first rows of a stored CSV.
func (c *Client) PreviewCSV(ctx context.Context, req api.PreviewCSVRequest) (api.PreviewCSVResponse, error) {
	var out api.PreviewCSVResponse
	err := c.postJSON(ctx, "/preview-csv", req, &out)
	return out, err
}

// CSVQuery runs a SELECT over a stored CSV loaded as table df.
func (c *Client) CSVQuery(ctx context.Context, req api.CSVQueryRequest) (api.CSVQueryResponse, error) {
	var out api.CSVQueryResponse
	err := c.postJSON(ctx, "/csv-sql", req, &out)
	return out, err
}

// ListDatasets returns the cataloged objects, newest first.
func (c *Client) ListDatasets(ctx context.Context) ([]dataset.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/datasets", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backendclient: list datasets: %w", err)
	}
	defer drain(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}
	var out struct {
		Datasets []dataset.Record `json:"datasets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("backendclient: decode datasets: %w", err)
	}
	return out.Datasets, nil
}

// Upload sends file content as a multipart POST /upload. An empty
// contentType falls back to application/octet-stream.
func (c *Client) Upload(ctx context.Context, filename, contentType string, content io.Reader) (api.UploadResponse, error) {
	var out api.UploadResponse
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	partHeader.Set("Content-Type", contentType)
	fw, err := mw.CreatePart(partHeader)
	if err != nil {
		return out, fmt.Errorf("backendclient: multipart: %w", err)
	}
	if _, err := io.Copy(fw, content); err != nil {
		return out, fmt.Errorf("backendclient: read upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return out, fmt.Errorf("backendclient: multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.httpc.Do(req)
	if err != nil {
		return out, fmt.Errorf("backendclient: upload: %w", err)
	}
	defer drain(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return out, decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("backendclient: decode upload response: %w", err)
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, dst any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("backendclient: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("backendclient: POST %s: %w", path, err)
	}
	defer drain(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("backendclient: decode response for %s: %w", path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		apiErr.Message = err.Error()
		return apiErr
	}
	var env api.ErrorEnvelope
	if jsonErr := json.Unmarshal(raw, &env); jsonErr == nil && env.Error != nil {
		apiErr.Category = env.Error.Category
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.TraceID = env.TraceID
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	return apiErr
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	_ = body.Close()
}
