package tool

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPTool issues outbound HTTP requests on behalf of a tool node. Inputs:
// "method" (default GET), "url" (required), "headers" (map), "body"
// (string, sent whenever non-empty). Output: status_code, headers, body.
type HTTPTool struct {
	client      *http.Client
	permissions []string
}

// NewHTTPTool builds an HTTP tool with a bounded per-request timeout.
// permissions are the capability strings this tool declares to the
// permission gate (spec §4.7), typically []string{"net.http"}.
func NewHTTPTool(timeout time.Duration, permissions []string) *HTTPTool {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTool{client: &http.Client{Timeout: timeout}, permissions: permissions}
}

// Permissions satisfies component.PermissionSource.
func (h *HTTPTool) Permissions() []string { return h.permissions }

func (h *HTTPTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	urlStr, ok := input["url"].(string)
	if !ok || urlStr == "" {
		return nil, fmt.Errorf("http_request: \"url\" is required")
	}

	method := "GET"
	if v, ok := input["method"].(string); ok && v != "" {
		method = strings.ToUpper(v)
	}
	switch method {
	case "GET", "POST", "PUT", "PATCH", "DELETE":
	default:
		return nil, fmt.Errorf("http_request: unsupported method %q", method)
	}

	var body io.Reader
	if bodyStr, ok := input["body"].(string); ok && bodyStr != "" {
		body = bytes.NewBufferString(bodyStr)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("http_request: building request: %w", err)
	}
	if headers, ok := input["headers"].(map[string]interface{}); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http_request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http_request: reading response: %w", err)
	}

	headers := make(map[string]interface{}, len(resp.Header))
	for k, v := range resp.Header {
		headers[k] = strings.Join(v, ", ")
	}

	return map[string]interface{}{
		"status_code": resp.StatusCode,
		"headers":     headers,
		"body":        string(respBody),
	}, nil
}
