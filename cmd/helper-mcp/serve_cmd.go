package main

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"pkt.systems/pslog"

	"github.com/seqgpt/helper-mcp/pkg/mcpserver"
)

const (
	serveBackendURLKey = "serve.backend_url"
	serveTransportKey  = "serve.transport"
	serveListenKey     = "serve.listen"
	serveMCPPathKey    = "serve.mcp_path"
)

func newServeCommand(baseLogger pslog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the helper MCP server (stdio by default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := serveConfigFromViper()
			svc, err := mcpserver.NewServer(mcpserver.NewServerRequest{
				Config: cfg,
				Logger: baseLogger,
			})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return svc.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.String("backend-url", "http://127.0.0.1:8000", "helper backend base URL")
	flags.String("transport", "", "MCP transport: stdio or http (default stdio)")
	flags.StringP("listen", "l", ":8765", "listen address when transport is http")
	flags.String("mcp-path", "/mcp", "HTTP path for the MCP streamable endpoint")

	mustBindFlag(serveBackendURLKey, "HELPER_MCP_BACKEND_URL", flags.Lookup("backend-url"))
	mustBindFlag(serveTransportKey, "HELPER_MCP_TRANSPORT", flags.Lookup("transport"))
	mustBindFlag(serveListenKey, "HELPER_MCP_LISTEN", flags.Lookup("listen"))
	mustBindFlag(serveMCPPathKey, "HELPER_MCP_PATH", flags.Lookup("mcp-path"))

	return cmd
}

func serveConfigFromViper() mcpserver.Config {
	return mcpserver.Config{
		BackendURL: strings.TrimSpace(viper.GetString(serveBackendURLKey)),
		Transport:  resolveTransport(viper.GetString(serveTransportKey)),
		Listen:     strings.TrimSpace(viper.GetString(serveListenKey)),
		MCPPath:    strings.TrimSpace(viper.GetString(serveMCPPathKey)),
	}
}

// resolveTransport also honors MCP_TRANSPORT, the variable desktop
// extension hosts set. The flag and HELPER_MCP_TRANSPORT win over it.
func resolveTransport(raw string) string {
	transport := strings.ToLower(strings.TrimSpace(raw))
	if transport == "" {
		transport = strings.ToLower(strings.TrimSpace(os.Getenv("MCP_TRANSPORT")))
	}
	switch transport {
	case "streamable-http", "streamable_http", "http":
		return mcpserver.TransportHTTP
	case "", "stdio":
		return mcpserver.TransportStdio
	default:
		return transport
	}
}
