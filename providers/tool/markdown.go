package tool

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const (
	defaultFetchTimeout = 30 * time.Second
	defaultUserAgent    = "flowgraph-webfetch/1.0"
	maxFetchBodyBytes   = 10 * 1024 * 1024
)

// WebFetchTool retrieves a web page and converts its HTML body to Markdown.
// Inputs: "url" (required, partial URLs get an https:// prefix),
// "timeout_seconds" (optional), "user_agent" (optional). Output: "url" (the
// final URL after redirects), "markdown".
type WebFetchTool struct {
	permissions []string
}

// NewWebFetchTool builds a web-page markdown extraction tool. permissions
// are the capability strings declared to the permission gate, typically
// []string{"net.http"}.
func NewWebFetchTool(permissions []string) *WebFetchTool {
	return &WebFetchTool{permissions: permissions}
}

// Permissions satisfies component.PermissionSource.
func (t *WebFetchTool) Permissions() []string { return t.permissions }

func (t *WebFetchTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	url := strings.TrimSpace(toString(input["url"]))
	if url == "" {
		return nil, fmt.Errorf("web_fetch: \"url\" is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	timeout := defaultFetchTimeout
	if secs, ok := input["timeout_seconds"].(int); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	} else if secs, ok := input["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctxTimeout, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("web_fetch: building request: %w", err)
	}
	userAgent := defaultUserAgent
	if ua := toString(input["user_agent"]); ua != "" {
		userAgent = ua
	}
	req.Header.Set("User-Agent", userAgent)

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects (>10)")
			}
			return nil
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web_fetch: fetching %q: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web_fetch: unexpected status %d %s", resp.StatusCode, resp.Status)
	}

	htmlBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("web_fetch: reading response: %w", err)
	}
	if len(htmlBytes) > maxFetchBodyBytes {
		return nil, fmt.Errorf("web_fetch: response exceeds maximum size of %d bytes", maxFetchBodyBytes)
	}

	markdown, err := htmltomarkdown.ConvertString(string(htmlBytes))
	if err != nil {
		return nil, fmt.Errorf("web_fetch: converting to markdown: %w", err)
	}

	finalURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return map[string]interface{}{
		"url":      finalURL,
		"markdown": markdown,
	}, nil
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}
