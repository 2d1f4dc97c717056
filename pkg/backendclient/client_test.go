package backendclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pkt.systems/pslog"

	"github.com/seqgpt/helper-mcp/pkg/api"
	"github.com/seqgpt/helper-mcp/pkg/backend"
	"github.com/seqgpt/helper-mcp/pkg/blob"
	"github.com/seqgpt/helper-mcp/pkg/dataset"
)

func newBackend(t *testing.T) *Client {
	t.Helper()
	catalog, err := dataset.Open(context.Background(), "sqlite::memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = catalog.Close() })
	if err := catalog.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	srv, err := backend.New(backend.Options{
		Store:   blob.NewMemoryStore("datasets"),
		Catalog: catalog,
		Logger:  pslog.NewStructured(io.Discard),
		NewRand: func() *rand.Rand { return rand.New(rand.NewSource(42)) },
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	c, err := New(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestHealth(t *testing.T) {
	c := newBackend(t)
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}

func TestCreatePreviewQuery(t *testing.T) {
	c := newBackend(t)
	ctx := context.Background()

	created, err := c.CreateRandomCSV(ctx, api.CreateRandomCSVRequest{
		NumRows: 6,
		Columns: []string{"ID", "Score"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.NumRows != 6 || !strings.HasPrefix(created.URL, "s3://datasets/") {
		t.Fatalf("created=%+v", created)
	}

	preview, err := c.PreviewCSV(ctx, api.PreviewCSVRequest{URL: created.URL, Lines: 4})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.LinesReturned != 4 || preview.Columns[0] != "ID" {
		t.Fatalf("preview=%+v", preview)
	}

	res, err := c.CSVQuery(ctx, api.CSVQueryRequest{URL: created.URL, SQL: "SELECT COUNT(*) AS n FROM df"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if n := res.Rows[0]["n"]; n != float64(6) {
		t.Fatalf("count=%v", n)
	}
}

func TestUploadAndList(t *testing.T) {
	c := newBackend(t)
	ctx := context.Background()

	up, err := c.Upload(ctx, "hello.txt", "text/plain", strings.NewReader("hello world\n"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if up.Filename != "hello.txt" || up.SizeBytes != 12 {
		t.Fatalf("upload=%+v", up)
	}

	recs, err := c.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != up.DatasetID {
		t.Fatalf("recs=%+v", recs)
	}
}

func TestUploadSetsPartContentType(t *testing.T) {
	tests := []struct {
		give string
		want string
	}{
		{"text/csv", "text/csv"},
		{"", "application/octet-stream"},
	}
	for _, tc := range tests {
		var got string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f, hdr, err := r.FormFile("file")
			if err != nil {
				t.Errorf("form file: %v", err)
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			defer f.Close()
			got = hdr.Header.Get("Content-Type")
			_ = json.NewEncoder(w).Encode(api.UploadResponse{
				Filename:  hdr.Filename,
				SizeBytes: hdr.Size,
				URL:       "s3://datasets/uploads/x.csv",
			})
		}))
		c, err := New(ts.URL)
		if err != nil {
			ts.Close()
			t.Fatal(err)
		}
		if _, err := c.Upload(context.Background(), "x.csv", tc.give, strings.NewReader("a,b\n1,2\n")); err != nil {
			ts.Close()
			t.Fatalf("upload: %v", err)
		}
		ts.Close()
		if got != tc.want {
			t.Errorf("content type %q want %q", got, tc.want)
		}
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	c := newBackend(t)
	ctx := context.Background()

	_, err := c.PreviewCSV(ctx, api.PreviewCSVRequest{URL: "not-a-url"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err=%T %v", err, err)
	}
	if apiErr.Status != 400 || apiErr.Code != "invalid_object_url" || apiErr.Category != "validation" {
		t.Fatalf("apiErr=%+v", apiErr)
	}
	if !strings.Contains(apiErr.Error(), "invalid_object_url") {
		t.Fatalf("message=%q", apiErr.Error())
	}

	_, err = c.PreviewCSV(ctx, api.PreviewCSVRequest{URL: "s3://datasets/csv/missing.csv"})
	if !errors.As(err, &apiErr) || apiErr.Status != 404 || apiErr.Code != "not_found" {
		t.Fatalf("err=%v", err)
	}
}

func TestNewRejectsEmptyURL(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatal("expected error")
	}
}
