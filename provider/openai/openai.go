// Package openai_provider implements the chat backend against OpenAI's
// streaming chat-completions API. It performs the retrieval step itself
// (document chunks for context, materials catalog for mentions), emits the
// resulting sources/materials events, then re-emits the model's token
// deltas as stream events, and closes with a suggestions event.
package openai_provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/chrisgscott/ellen/internal/docsearch"
	"github.com/chrisgscott/ellen/internal/stream"
	"github.com/chrisgscott/ellen/models"
	"github.com/chrisgscott/ellen/provider"
)

const maxMentionLookups = 8

// MaterialCatalog is the lookup surface this backend needs; both the store
// and its redis cache satisfy it.
type MaterialCatalog interface {
	LookupMaterial(ctx context.Context, name string) (models.Material, bool, error)
}

type Backend struct {
	apiKey          string
	baseURL         string
	completionModel string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
	searcher        *docsearch.Searcher
	catalog         MaterialCatalog
	logger          *log.Logger
}

// New builds an OpenAI-backed chat backend. searcher and catalog may be nil
// for a pure-completion setup without retrieval.
func New(apiKey, baseURL, completionModel string, temperature float64, maxTokens int, timeout time.Duration,
	searcher *docsearch.Searcher, catalog MaterialCatalog, logger *log.Logger) *Backend {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Backend{
		apiKey:          apiKey,
		baseURL:         strings.TrimRight(baseURL, "/"),
		completionModel: completionModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
		httpClient:      &http.Client{Timeout: timeout},
		searcher:        searcher,
		catalog:         catalog,
		logger:          logger,
	}
}

// OpenStream produces the event wire for one request. Production runs in a
// goroutine writing to a pipe; the consumer reads the pipe like any network
// stream. Retrieval failures degrade to a context-free completion; model
// failures surface as an in-band error event.
func (b *Backend) OpenStream(ctx context.Context, req provider.ChatRequest) (io.ReadCloser, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("message required")
	}
	pr, pw := io.Pipe()
	go b.produce(ctx, req, pw)
	return pr, nil
}

func (b *Backend) produce(ctx context.Context, req provider.ChatRequest, pw *io.PipeWriter) {
	defer pw.Close()
	w := &eventWriter{w: pw}

	var contextText string
	if b.searcher != nil {
		result, err := b.searcher.Search(ctx, req.SessionID, req.DocumentName, req.Message)
		if err != nil {
			b.logger.Printf("openai backend: document search failed, continuing without context: %v", err)
		} else if !result.NoDocuments {
			sources := make([]models.Source, 0, len(result.Hits))
			var ctxParts []string
			for _, hit := range result.Hits {
				sources = append(sources, sourceForChunk(hit.Chunk))
				ctxParts = append(ctxParts, hit.Chunk.Content)
			}
			contextText = strings.Join(ctxParts, "\n---\n")
			if err := w.emit(stream.NewSourcesEvent(sources)); err != nil {
				return
			}
		}
	}

	var materials []models.Material
	if b.catalog != nil {
		materials = b.lookupMentions(ctx, req.Message)
		if len(materials) > 0 {
			if err := w.emit(stream.NewMaterialsEvent(materials)); err != nil {
				return
			}
		}
	}

	if err := b.streamCompletion(ctx, req.Message, contextText, w); err != nil {
		b.logger.Printf("openai backend: completion stream: %v", err)
		_ = w.emit(stream.NewErrorEvent(err.Error()))
		return
	}

	if qs := suggestedQuestions(req.Message, materials); len(qs) > 0 {
		_ = w.emit(stream.NewSuggestionsEvent(qs))
	}
}

// lookupMentions resolves capitalized tokens of the message against the
// materials catalog, capped to keep lookup fan-out bounded.
func (b *Backend) lookupMentions(ctx context.Context, message string) []models.Material {
	var out []models.Material
	seen := make(map[string]struct{})
	lookups := 0
	for _, tok := range strings.Fields(message) {
		tok = strings.Trim(tok, ".,;:!?\"'()")
		if len(tok) < 3 {
			continue
		}
		runes := []rune(tok)
		if !unicode.IsUpper(runes[0]) {
			continue
		}
		key := strings.ToLower(tok)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if lookups >= maxMentionLookups {
			break
		}
		lookups++
		m, ok, err := b.catalog.LookupMaterial(ctx, tok)
		if err != nil {
			b.logger.Printf("openai backend: material lookup %q: %v", tok, err)
			continue
		}
		if ok {
			out = append(out, m)
		}
	}
	return out
}

// chatMessage mirrors the OpenAI message shape.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// streamCompletion runs one streaming completion, translating each SSE
// delta into a token event.
func (b *Backend) streamCompletion(ctx context.Context, message, contextText string, w *eventWriter) error {
	systemPrompt := "You are Ellen, a materials-intelligence assistant. Answer concisely and cite facts from the provided context when it is relevant."
	userPrompt := message
	if contextText != "" {
		userPrompt = fmt.Sprintf("CONTEXT:\n%s\n\nQUESTION: %s", contextText, message)
	}
	body, err := json.Marshal(chatRequest{
		Model: b.completionModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: b.temperature,
		MaxTokens:   b.maxTokens,
		Stream:      true,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, detail)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}
		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			b.logger.Printf("openai backend: skipping malformed SSE chunk: %v", err)
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		if err := w.emit(stream.NewTokenEvent(chunk.Choices[0].Delta.Content)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func sourceForChunk(chunk models.DocumentChunk) models.Source {
	title := chunk.DocumentID
	if name, ok := chunk.Metadata["filename"].(string); ok && name != "" {
		title = name
	}
	snippet := chunk.Content
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return models.Source{Title: title, URL: "", Snippet: snippet}
}

// suggestedQuestions derives follow-up prompts from the matched materials.
func suggestedQuestions(message string, materials []models.Material) []string {
	var qs []string
	for _, m := range materials {
		qs = append(qs, fmt.Sprintf("What is the supply outlook for %s?", m.Name))
		if len(qs) >= 2 {
			break
		}
	}
	if len(qs) < 3 {
		qs = append(qs, "Which recent news items are most relevant to this topic?")
	}
	return qs
}

// eventWriter serializes events onto the pipe, one JSON record per line.
type eventWriter struct {
	w io.Writer
}

func (e *eventWriter) emit(ev stream.Event) error {
	line, err := ev.Marshal()
	if err != nil {
		return err
	}
	if _, err := e.w.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}
