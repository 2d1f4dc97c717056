package mcpserver

import (
	"context"
	"io"
	"math/rand"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"pkt.systems/pslog"

	"github.com/seqgpt/helper-mcp/internal/version"
	"github.com/seqgpt/helper-mcp/pkg/backendclient"
)

// InProcessSession is a client session connected to a helper MCP server
// over in-memory transports. No listener is started; backend calls made
// through the CSV tools still go over the network.
type InProcessSession struct {
	Session *mcpsdk.ClientSession

	serverSession *mcpsdk.ServerSession
}

// NewInProcessSession builds the server for cfg and connects a client to
// it in-process. The caller must Close the session.
func NewInProcessSession(ctx context.Context, cfg Config) (*InProcessSession, error) {
	applyDefaults(&cfg)

	logger := pslog.NewStructured(io.Discard).With("app", serverName)
	backend, err := backendclient.New(cfg.BackendURL)
	if err != nil {
		return nil, err
	}
	s := &server{
		cfg:          cfg,
		logger:       logger,
		lifecycleLog: logger,
		toolLog:      logger,
		backend:      backend,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{
		Name:    "helper-mcp-inprocess",
		Version: version.Version,
	}, nil)
	mcpSrv := s.buildMCPServer()

	t1, t2 := mcpsdk.NewInMemoryTransports()
	ss, err := mcpSrv.Connect(ctx, t1, nil)
	if err != nil {
		return nil, err
	}
	cs, err := client.Connect(ctx, t2, nil)
	if err != nil {
		_ = ss.Close()
		return nil, err
	}
	return &InProcessSession{Session: cs, serverSession: ss}, nil
}

// Close tears down both ends of the session.
func (p *InProcessSession) Close() {
	_ = p.Session.Close()
	_ = p.serverSession.Close()
}
