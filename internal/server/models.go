package server

import (
	"github.com/chrisgscott/ellen/internal/docsearch"
	"github.com/chrisgscott/ellen/internal/newsindex"
	"github.com/chrisgscott/ellen/models"
)

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// ChatRequest is one user turn submitted to the chat endpoint.
type ChatRequest struct {
	SessionID    string `json:"session_id"`
	Message      string `json:"message"`
	DocumentName string `json:"document_name,omitempty"`
}

// ChatDoneEvent is the final SSE record of a chat exchange, carrying the
// reconciled thread that replaces the client's optimistic placeholder.
type ChatDoneEvent struct {
	Thread *models.Thread `json:"thread"`
}

// SearchRequest queries the uploaded-document chunks.
type SearchRequest struct {
	SessionID    string `json:"session_id"`
	Query        string `json:"query"`
	DocumentName string `json:"document_name,omitempty"`
}

// SearchResponse wraps a docsearch result.
type SearchResponse struct {
	Result docsearch.Result `json:"result"`
}

// RelatedResponse carries the related-article list for one news item.
type RelatedResponse struct {
	Items []models.NewsItem `json:"items"`
}

// NewsSearchResponse carries full-text headline search hits.
type NewsSearchResponse struct {
	Hits []newsindex.Hit `json:"hits"`
}

// MaterialResponse wraps one materials-catalog lookup.
type MaterialResponse struct {
	Material models.Material `json:"material"`
}
