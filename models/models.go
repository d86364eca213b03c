package models

import (
	"errors"
	"time"
)

// ErrSessionNotFound is returned when a session is not found
var ErrSessionNotFound = errors.New("session not found")

// ErrThreadNotFound is returned when a thread is not found
var ErrThreadNotFound = errors.New("thread not found")

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session groups the threads of one conversation.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one side of a question/answer exchange.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Source is a citation attached to an assistant response. Identity is
// structural: dedupe, when needed, is by URL.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Material is a row from the materials reference catalog. The chat core only
// looks materials up, it never creates them.
type Material struct {
	Name            string  `json:"name"`
	Symbol          string  `json:"symbol,omitempty"`
	Summary         string  `json:"summary,omitempty"`
	Color           string  `json:"color,omitempty"`
	SupplyRiskScore float64 `json:"supply_risk_score,omitempty"`
	DemandScore     float64 `json:"demand_score,omitempty"`
}

// Thread is the unit of a single question/answer exchange. During an active
// stream the assistant message grows monotonically and the source/material/
// suggestion lists are replaced wholesale on each event; once the stream
// terminates the thread is immutable.
type Thread struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	UserMessage Message    `json:"user_message"`
	Assistant   Message    `json:"assistant_message"`
	Sources     []Source   `json:"sources"`
	Materials   []Material `json:"materials"`
	Suggestions []string   `json:"suggested_questions"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewsItem is a ranking input. Immutable once fetched.
type NewsItem struct {
	ID               string    `json:"id"`
	Headline         string    `json:"headline"`
	Source           string    `json:"source"`
	URL              string    `json:"url,omitempty"`
	PublishedAt      time.Time `json:"published_at"`
	GeographicFocus  string    `json:"geographic_focus"`
	InterestCluster  string    `json:"interest_cluster"`
	Type             string    `json:"type"`
	RelatedMaterials []string  `json:"related_materials"`
}

// Document is an uploaded file whose chunks feed the keyword search.
type Document struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id,omitempty"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// DocumentChunk is one fragment of an uploaded document, produced by an
// external chunking pipeline and consumed read-only by the keyword ranker.
type DocumentChunk struct {
	ID         string                 `json:"id"`
	DocumentID string                 `json:"document_id"`
	Content    string                 `json:"content"`
	ChunkIndex int                    `json:"chunk_index"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}
