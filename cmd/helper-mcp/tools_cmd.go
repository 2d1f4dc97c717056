package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/seqgpt/helper-mcp/pkg/mcpserver"
)

func newToolsCommand() *cobra.Command {
	var backendURL string
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the MCP tools/list payload without starting a server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out, err := mcpserver.BuildToolsListResponseJSON(ctx, mcpserver.Config{
				BackendURL: backendURL,
			})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&backendURL, "backend-url", "http://127.0.0.1:8000", "helper backend base URL (shown in tool descriptions only)")
	return cmd
}
