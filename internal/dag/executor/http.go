package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPExecutor issues an HTTP request described by params and returns the
// response's status code, body, and headers.
type HTTPExecutor struct {
	client *resty.Client
}

// NewHTTPExecutor returns an HTTPExecutor with sane request timeouts.
func NewHTTPExecutor() *HTTPExecutor {
	return &HTTPExecutor{client: resty.New().SetTimeout(30 * time.Second)}
}

// Execute implements Executor. params must carry "url" (string) and may
// carry "method" (default GET), "body" (string), and "headers"
// (map[string]any).
func (e *HTTPExecutor) Execute(ctx context.Context, params map[string]any, ctxValues map[string]any) (map[string]any, error) {
	url, ok := params["url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("http executor: params.url is required")
	}

	method, _ := params["method"].(string)
	if method == "" {
		method = "GET"
	}

	req := e.client.R().SetContext(ctx)
	if body, ok := params["body"].(string); ok && body != "" {
		req.SetBody(body)
	}
	if headers, ok := params["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.SetHeader(k, s)
			}
		}
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("http executor: request failed: %w", err)
	}

	headerMap := make(map[string]any, len(resp.Header()))
	for k, v := range resp.Header() {
		if len(v) > 0 {
			headerMap[k] = v[0]
		}
	}

	return map[string]any{
		"status_code": resp.StatusCode(),
		"body":        string(resp.Body()),
		"headers":     headerMap,
	}, nil
}
