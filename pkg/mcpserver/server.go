// Package mcpserver exposes the helper tool surface over the Model
// Context Protocol. It serves a local table generator plus CSV tools
// backed by the helper backend service, over stdio for desktop hosts or
// streamable HTTP for remote ones.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"pkt.systems/pslog"

	"github.com/seqgpt/helper-mcp/internal/version"
	"github.com/seqgpt/helper-mcp/pkg/backendclient"
)

// Transport selection for Run.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

const serverName = "helper-mcp"

// Config controls helper MCP server runtime behavior.
type Config struct {
	// BackendURL is the helper backend base URL the CSV tools call.
	BackendURL string
	// Transport is "stdio" (default) or "http".
	Transport string
	// Listen is the HTTP listen address, used when Transport is "http".
	Listen string
	// MCPPath is the HTTP path serving the MCP endpoint.
	MCPPath string
	// HTTPTimeout bounds a single backend call.
	HTTPTimeout time.Duration
}

// Server is the helper MCP service contract.
type Server interface {
	Run(context.Context) error
}

// NewServerRequest wraps constructor inputs.
type NewServerRequest struct {
	Config Config
	Logger pslog.Logger
}

type server struct {
	cfg          Config
	logger       pslog.Logger
	lifecycleLog pslog.Logger
	toolLog      pslog.Logger
	backend      *backendclient.Client
	newRand      func() *rand.Rand
}

// NewServer constructs the helper MCP service.
func NewServer(req NewServerRequest) (Server, error) {
	cfg := req.Config
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logger := req.Logger
	if logger == nil {
		logger = pslog.NewStructured(os.Stderr).With("app", serverName)
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		lifecycleLog: logger.With("subsystem", "mcp.lifecycle"),
		toolLog:      logger.With("subsystem", "mcp.tools"),
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
	backend, err := backendclient.New(cfg.BackendURL,
		backendclient.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
	if err != nil {
		return nil, err
	}
	s.backend = backend
	return s, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.BackendURL) == "" {
		cfg.BackendURL = "http://127.0.0.1:8000"
	}
	if strings.TrimSpace(cfg.Transport) == "" {
		cfg.Transport = TransportStdio
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = ":8765"
	}
	if strings.TrimSpace(cfg.MCPPath) == "" {
		cfg.MCPPath = "/mcp"
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = backendclient.DefaultTimeout
	}
}

func validateConfig(cfg Config) error {
	switch cfg.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("mcpserver: unknown transport %q (want %q or %q)", cfg.Transport, TransportStdio, TransportHTTP)
	}
	if !strings.HasPrefix(cfg.MCPPath, "/") {
		return fmt.Errorf("mcpserver: mcp path must start with /, got %q", cfg.MCPPath)
	}
	return nil
}

func (s *server) buildMCPServer() *mcpsdk.Server {
	mcpSrv := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    serverName,
		Version: version.Version,
	}, &mcpsdk.ServerOptions{
		Instructions: defaultServerInstructions(s.cfg),
	})
	s.registerResources(mcpSrv)
	s.registerTools(mcpSrv)
	return mcpSrv
}

func (s *server) Run(ctx context.Context) error {
	s.lifecycleLog.Info("starting helper MCP server",
		"transport", s.cfg.Transport,
		"backend_url", s.cfg.BackendURL,
	)
	mcpSrv := s.buildMCPServer()

	if s.cfg.Transport == TransportStdio {
		return mcpSrv.Run(ctx, &mcpsdk.StdioTransport{})
	}

	streamable := mcpsdk.NewStreamableHTTPHandler(func(_ *http.Request) *mcpsdk.Server {
		return mcpSrv
	}, nil)
	mux := http.NewServeMux()
	mux.Handle(s.cfg.MCPPath, streamable)

	httpServer := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.lifecycleLog.Info("mcp.http.listening", "addr", s.cfg.Listen, "path", s.cfg.MCPPath)
		errCh <- httpServer.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
