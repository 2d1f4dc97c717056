package errmodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFromPassthrough(t *testing.T) {
	orig := Validation("bad_input", "num_rows must be positive", map[string]any{"num_rows": -1})
	wrapped := fmt.Errorf("handler: %w", orig)
	got := From(wrapped)
	if got != orig {
		t.Fatalf("expected passthrough, got %#v", got)
	}
}

func TestFromUnknownErrorIsSystem(t *testing.T) {
	got := From(errors.New("boom"))
	if got.Category != CategorySystem || got.Code != "internal" {
		t.Fatalf("category=%s code=%s", got.Category, got.Code)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"nil", nil, http.StatusInternalServerError},
		{"validation", Validation("bad_input", "x", nil), http.StatusBadRequest},
		{"storage not found", Storage("not_found", "x", nil), http.StatusNotFound},
		{"storage other", Storage("put_failed", "x", nil), http.StatusBadGateway},
		{"query", Query("invalid_sql", "x", nil), http.StatusBadRequest},
		{"network", New(CategoryNetwork, "unreachable", "x", nil), http.StatusBadGateway},
		{"system", System("internal", "x", nil), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := HTTPStatus(tc.err); got != tc.want {
				t.Fatalf("status=%d want %d", got, tc.want)
			}
		})
	}
}

func TestWriteHTTPEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/csv-sql", nil)
	WriteHTTP(rec, req, Query("invalid_sql", "only SELECT statements are allowed", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rec.Code)
	}
	var body struct {
		Error   *Error `json:"error"`
		TraceID string `json:"trace_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error == nil || body.Error.Code != "invalid_sql" {
		t.Fatalf("body=%s", rec.Body.String())
	}
}

func TestMessageTruncation(t *testing.T) {
	long := make([]byte, 2048)
	for i := range long {
		long[i] = 'a'
	}
	e := System("internal", string(long), nil)
	if len(e.Message) != maxMessageLen {
		t.Fatalf("len=%d want %d", len(e.Message), maxMessageLen)
	}
}
