package mcpserver

import (
	"context"
	"encoding/json"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolsListResponse mirrors a canonical JSON-RPC tools/list result payload.
type ToolsListResponse struct {
	ID      int                 `json:"id"`
	JSONRPC string              `json:"jsonrpc"`
	Result  ToolsListResultBody `json:"result"`
}

// ToolsListResultBody is the JSON-RPC "result" object for tools/list.
type ToolsListResultBody struct {
	Tools      []*mcpsdk.Tool `json:"tools"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// BuildToolsListResponse builds a canonical tools/list payload in-process.
// No listener is started and the backend is never contacted; this only
// materializes the tool registry.
func BuildToolsListResponse(ctx context.Context, cfg Config) (ToolsListResponse, error) {
	sess, err := NewInProcessSession(ctx, cfg)
	if err != nil {
		return ToolsListResponse{}, err
	}
	defer sess.Close()

	list, err := sess.Session.ListTools(ctx, &mcpsdk.ListToolsParams{})
	if err != nil {
		return ToolsListResponse{}, err
	}

	return ToolsListResponse{
		ID:      1,
		JSONRPC: "2.0",
		Result: ToolsListResultBody{
			Tools:      list.Tools,
			NextCursor: list.NextCursor,
		},
	}, nil
}

// BuildToolsListResponseJSON returns the pretty-printed tools/list payload.
func BuildToolsListResponseJSON(ctx context.Context, cfg Config) ([]byte, error) {
	resp, err := BuildToolsListResponse(ctx, cfg)
	if err != nil {
		return nil, err
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
