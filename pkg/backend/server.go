// Package backend implements the HTTP data service behind the helper-mcp
// tools: it materializes random CSV files into object storage, catalogs
// them, and answers preview and SQL queries over stored CSVs.
package backend

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"pkt.systems/pslog"

	"github.com/seqgpt/helper-mcp/pkg/blob"
	"github.com/seqgpt/helper-mcp/pkg/dataset"
)

// Options wires the server's collaborators.
type Options struct {
	Store   blob.Store
	Catalog *dataset.Catalog
	Logger  pslog.Logger
	// NewRand returns a fresh rng per generation request. Defaults to a
	// time-seeded source; tests inject a fixed seed.
	NewRand func() *rand.Rand
}

// Server is the backend HTTP service.
type Server struct {
	store   blob.Store
	catalog *dataset.Catalog
	logger  pslog.Logger
	newRand func() *rand.Rand

	validators map[string]*requestValidator
}

// New constructs a Server. Store and Logger are required; Catalog is
// optional (no listing, no persistence of metadata).
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("backend: store is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("backend: logger is required")
	}
	if opts.NewRand == nil {
		opts.NewRand = func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	}
	s := &Server{
		store:   opts.Store,
		catalog: opts.Catalog,
		logger:  opts.Logger.With("subsystem", "backend"),
		newRand: opts.NewRand,
	}
	validators, err := compileRequestValidators()
	if err != nil {
		return nil, err
	}
	s.validators = validators
	return s, nil
}

// Handler returns the full HTTP handler, traced and request-logged.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /create-random-csv", s.handleCreateRandomCSV)
	mux.HandleFunc("POST /preview-csv", s.handlePreviewCSV)
	mux.HandleFunc("POST /csv-sql", s.handleCSVSQL)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /datasets", s.handleListDatasets)
	return otelhttp.NewHandler(s.requestLogging(mux), "helper-backend")
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("backend.listening", "addr", listen)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("backend.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
