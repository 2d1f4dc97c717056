// Package api holds the wire types shared by the backend service and its
// clients.
package api

import "github.com/seqgpt/helper-mcp/pkg/errmodel"

// CreateRandomCSVRequest is the body of POST /create-random-csv.
type CreateRandomCSVRequest struct {
	NumRows  int      `json:"num_rows,omitempty"`
	Columns  []string `json:"columns,omitempty"`
	ValueMin float64  `json:"value_min,omitempty"`
	ValueMax float64  `json:"value_max,omitempty"`
}

// CreateRandomCSVResponse describes the stored CSV object.
type CreateRandomCSVResponse struct {
	DatasetID string   `json:"dataset_id"`
	URL       string   `json:"url"`
	Bucket    string   `json:"bucket"`
	Key       string   `json:"key"`
	NumRows   int      `json:"num_rows"`
	Columns   []string `json:"columns"`
	SizeBytes int64    `json:"size_bytes"`
}

// PreviewCSVRequest is the body of POST /preview-csv.
type PreviewCSVRequest struct {
	URL   string `json:"url"`
	Lines int    `json:"lines,omitempty"`
}

// PreviewCSVResponse returns the head of a stored CSV.
type PreviewCSVResponse struct {
	URL            string     `json:"url"`
	Columns        []string   `json:"columns"`
	Rows           [][]string `json:"rows"`
	LinesRequested int        `json:"lines_requested"`
	LinesReturned  int        `json:"lines_returned"`
}

// CSVQueryRequest is the body of POST /csv-sql.
type CSVQueryRequest struct {
	URL string `json:"url"`
	SQL string `json:"sql"`
}

// CSVQueryResponse returns the rows produced by a SELECT over table df.
type CSVQueryResponse struct {
	URL      string           `json:"url"`
	SQL      string           `json:"sql"`
	Columns  []string         `json:"columns"`
	Rows     []map[string]any `json:"rows"`
	RowCount int              `json:"row_count"`
}

// UploadResponse describes an uploaded object.
type UploadResponse struct {
	DatasetID string `json:"dataset_id"`
	URL       string `json:"url"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
}

// ErrorEnvelope is the error body written by the backend.
type ErrorEnvelope struct {
	Error   *errmodel.Error `json:"error"`
	TraceID string          `json:"trace_id,omitempty"`
}
