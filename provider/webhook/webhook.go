// Package webhook proxies an external chat backend (an n8n-style workflow)
// that already speaks the newline-delimited JSON event format. The response
// body is handed to the aggregator unchanged.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chrisgscott/ellen/provider"
)

type Backend struct {
	url        string
	httpClient *http.Client
}

// New builds a webhook backend posting to url.
func New(url string, timeout time.Duration) *Backend {
	return &Backend{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// OpenStream POSTs the request and returns the streaming response body.
func (b *Backend) OpenStream(ctx context.Context, req provider.ChatRequest) (io.ReadCloser, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat backend unreachable: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("chat backend returned status %d: %s", resp.StatusCode, detail)
	}
	return resp.Body, nil
}
