package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/seqgpt/helper-mcp/pkg/backendclient"
	"github.com/seqgpt/helper-mcp/pkg/errmodel"
)

type toolErrorEnvelope struct {
	ErrorCode  string `json:"error_code"`
	Category   string `json:"category,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Retryable  bool   `json:"retryable"`
	HTTPStatus int    `json:"http_status,omitempty"`
}

// withStructuredToolErrors converts handler errors into a JSON envelope so
// hosts see a machine-readable error_code instead of free text.
func withStructuredToolErrors[In, Out any](h mcpsdk.ToolHandlerFor[In, Out]) mcpsdk.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, Out, error) {
		res, out, err := h(ctx, req, input)
		if err == nil {
			return res, out, nil
		}
		var zero Out
		return nil, zero, toolError{Envelope: classifyToolError(err)}
	}
}

type toolError struct {
	Envelope toolErrorEnvelope
}

func (e toolError) Error() string {
	envelope := map[string]any{"error": e.Envelope}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return `{"error":{"error_code":"tool_error","detail":"failed to encode error envelope"}}`
	}
	return string(encoded)
}

func classifyToolError(err error) toolErrorEnvelope {
	env := toolErrorEnvelope{ErrorCode: "tool_error", Detail: strings.TrimSpace(err.Error())}

	var apiErr *backendclient.APIError
	if errors.As(err, &apiErr) {
		env.HTTPStatus = apiErr.Status
		env.Category = apiErr.Category
		if apiErr.Message != "" {
			env.Detail = apiErr.Message
		}
		code := strings.TrimSpace(apiErr.Code)
		if code == "" {
			code = "http_" + strconv.Itoa(apiErr.Status)
		}
		env.ErrorCode = code
		if apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500 {
			env.Retryable = true
		}
		return env
	}

	var ce *errmodel.Error
	if errors.As(err, &ce) {
		env.ErrorCode = ce.Code
		env.Category = ce.Category
		env.Detail = ce.Message
		return env
	}

	lower := strings.ToLower(env.Detail)
	switch {
	case strings.Contains(lower, "required"),
		strings.Contains(lower, "must be"),
		strings.Contains(lower, "invalid"):
		env.ErrorCode = "invalid_argument"
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "deadline"):
		env.ErrorCode = "timeout"
		env.Retryable = true
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "no such host"):
		env.ErrorCode = "backend_unreachable"
		env.Category = errmodel.CategoryNetwork
		env.Retryable = true
	}
	return env
}
