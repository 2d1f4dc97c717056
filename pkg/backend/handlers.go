package backend

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/seqgpt/helper-mcp/pkg/api"
	"github.com/seqgpt/helper-mcp/pkg/blob"
	"github.com/seqgpt/helper-mcp/pkg/csvquery"
	"github.com/seqgpt/helper-mcp/pkg/dataset"
	"github.com/seqgpt/helper-mcp/pkg/errmodel"
	"github.com/seqgpt/helper-mcp/pkg/tablegen"
)

const (
	maxBodyBytes     = 1 << 20
	maxUploadBytes   = 64 << 20
	defaultPreviewN  = 10
	maxPreviewLines  = 1000
	csvContentType   = "text/csv"
	uploadFormField  = "file"
	datasetKeyPrefix = "csv/"
	uploadKeyPrefix  = "uploads/"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleCreateRandomCSV(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRandomCSVRequest
	if err := s.decodeBody(r, "create-random-csv", &req); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	spec := tablegen.Spec{
		NumRows:  req.NumRows,
		Columns:  req.Columns,
		ValueMin: req.ValueMin,
		ValueMax: req.ValueMax,
	}
	table, err := tablegen.Generate(spec, s.newRand())
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	raw, err := table.EncodeCSV()
	if err != nil {
		errmodel.WriteHTTP(w, r, errmodel.System("csv_encode", err.Error(), nil))
		return
	}

	id := uuid.NewString()
	key := datasetKeyPrefix + id + ".csv"
	info, err := s.store.Put(r.Context(), key, bytes.NewReader(raw), int64(len(raw)), csvContentType)
	if err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Storage("put_failed", err.Error(), map[string]any{"key": key}))
		return
	}
	s.catalogInsert(r, dataset.Record{
		ID:         id,
		Bucket:     info.Bucket,
		Key:        info.Key,
		URL:        info.URL(),
		NumRows:    len(table.Rows),
		NumColumns: len(table.Columns),
		SizeBytes:  info.Size,
	})
	s.writeJSON(w, http.StatusOK, api.CreateRandomCSVResponse{
		DatasetID: id,
		URL:       info.URL(),
		Bucket:    info.Bucket,
		Key:       info.Key,
		NumRows:   len(table.Rows),
		Columns:   table.Columns,
		SizeBytes: info.Size,
	})
}

func (s *Server) handlePreviewCSV(w http.ResponseWriter, r *http.Request) {
	var req api.PreviewCSVRequest
	if err := s.decodeBody(r, "preview-csv", &req); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	if req.Lines == 0 {
		req.Lines = defaultPreviewN
	}
	if req.Lines > maxPreviewLines {
		req.Lines = maxPreviewLines
	}
	body, err := s.openObject(r, req.URL)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	defer body.Close()

	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("bad_csv", fmt.Sprintf("read csv header: %v", err), nil))
		return
	}
	rows := make([][]string, 0, req.Lines)
	for len(rows) < req.Lines {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errmodel.WriteHTTP(w, r, errmodel.Validation("bad_csv", fmt.Sprintf("read csv row: %v", err), nil))
			return
		}
		rows = append(rows, rec)
	}
	s.writeJSON(w, http.StatusOK, api.PreviewCSVResponse{
		URL:            req.URL,
		Columns:        header,
		Rows:           rows,
		LinesRequested: req.Lines,
		LinesReturned:  len(rows),
	})
}

func (s *Server) handleCSVSQL(w http.ResponseWriter, r *http.Request) {
	var req api.CSVQueryRequest
	if err := s.decodeBody(r, "csv-sql", &req); err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	body, err := s.openObject(r, req.URL)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	defer body.Close()

	res, err := csvquery.Query(r.Context(), body, req.SQL)
	if err != nil {
		errmodel.WriteHTTP(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CSVQueryResponse{
		URL:      req.URL,
		SQL:      req.SQL,
		Columns:  res.Columns,
		Rows:     res.Rows,
		RowCount: res.RowCount,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("missing_file",
			fmt.Sprintf("multipart field %q is required: %v", uploadFormField, err), nil))
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	id := uuid.NewString()
	key := uploadKeyPrefix + id + "-" + filename
	info, err := s.store.Put(r.Context(), key, file, header.Size, detectContentType(header))
	if err != nil {
		errmodel.WriteHTTP(w, r, errmodel.Storage("put_failed", err.Error(), map[string]any{"key": key}))
		return
	}
	s.catalogInsert(r, dataset.Record{
		ID:        id,
		Bucket:    info.Bucket,
		Key:       info.Key,
		URL:       info.URL(),
		Filename:  filename,
		SizeBytes: info.Size,
	})
	s.writeJSON(w, http.StatusOK, api.UploadResponse{
		DatasetID: id,
		URL:       info.URL(),
		Bucket:    info.Bucket,
		Key:       info.Key,
		Filename:  filename,
		SizeBytes: info.Size,
	})
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		errmodel.WriteHTTP(w, r, errmodel.Validation("catalog_disabled", "dataset catalog is not configured", nil))
		return
	}
	recs, err := s.catalog.List(r.Context(), 100)
	if err != nil {
		errmodel.WriteHTTP(w, r, errmodel.System("catalog_list", err.Error(), nil))
		return
	}
	if recs == nil {
		recs = []dataset.Record{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"datasets": recs})
}

// openObject resolves an s3://bucket/key URL against the configured store.
func (s *Server) openObject(r *http.Request, rawURL string) (io.ReadCloser, error) {
	bucket, key, err := blob.ParseURL(rawURL)
	if err != nil {
		return nil, errmodel.Validation("invalid_object_url",
			fmt.Sprintf("object URL must look like s3://bucket/key, got %q", rawURL), nil)
	}
	if bucket != s.store.Bucket() {
		return nil, errmodel.Validation("unknown_bucket",
			fmt.Sprintf("bucket %q is not served by this backend", bucket), nil)
	}
	body, _, err := s.store.Get(r.Context(), key)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, errmodel.Storage("not_found", fmt.Sprintf("object %s does not exist", rawURL), nil)
	}
	if err != nil {
		return nil, errmodel.Storage("get_failed", err.Error(), map[string]any{"key": key})
	}
	return body, nil
}

func (s *Server) decodeBody(r *http.Request, endpoint string, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errmodel.Validation("bad_body", err.Error(), nil)
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	v, ok := s.validators[endpoint]
	if !ok {
		return errmodel.System("missing_validator", endpoint, nil)
	}
	return v.decodeAndValidate(body, dst)
}

func (s *Server) catalogInsert(r *http.Request, rec dataset.Record) {
	if s.catalog == nil {
		return
	}
	if err := s.catalog.Insert(r.Context(), rec); err != nil {
		// The object exists either way; listing just won't see it.
		s.logger.Warn("backend.catalog.insert_failed", "dataset_id", rec.ID, "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("backend.response.encode_failed", "error", err)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "upload.bin"
	}
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func detectContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
