package main

import (
	"testing"

	"github.com/seqgpt/helper-mcp/pkg/mcpserver"
)

func TestResolveTransport(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", mcpserver.TransportStdio},
		{"stdio", mcpserver.TransportStdio},
		{"http", mcpserver.TransportHTTP},
		{"streamable-http", mcpserver.TransportHTTP},
		{"Streamable_HTTP", mcpserver.TransportHTTP},
		{"carrier-pigeon", "carrier-pigeon"},
	}
	for _, tc := range tests {
		if got := resolveTransport(tc.raw); got != tc.want {
			t.Errorf("resolveTransport(%q)=%q want %q", tc.raw, got, tc.want)
		}
	}
}

func TestResolveTransportHonorsHostEnv(t *testing.T) {
	t.Setenv("MCP_TRANSPORT", "streamable-http")
	if got := resolveTransport(""); got != mcpserver.TransportHTTP {
		t.Fatalf("got %q", got)
	}
	// Explicit values win over the host environment.
	if got := resolveTransport("stdio"); got != mcpserver.TransportStdio {
		t.Fatalf("got %q", got)
	}
}
