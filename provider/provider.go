// Package provider defines the chat backend contract: something that turns
// a user message into a live stream of newline-delimited JSON event records
// (see internal/stream for the wire format).
package provider

import (
	"context"
	"io"
)

// ChatRequest carries one user turn to a backend.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	// DocumentName optionally pins retrieval to one uploaded document.
	DocumentName string `json:"document_name,omitempty"`
}

// ChatBackend opens the event stream for one request. The returned reader
// is the live wire; the consumer owns closing it exactly once. Opening the
// stream is a hard-fail path: an error here surfaces to the user.
type ChatBackend interface {
	OpenStream(ctx context.Context, req ChatRequest) (io.ReadCloser, error)
}
