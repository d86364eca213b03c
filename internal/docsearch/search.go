// Package docsearch ranks uploaded document chunks against a free-text
// query using keyword-frequency density. It is a primary feature path:
// store failures propagate to the caller, but an empty result is a success
// with an explicit no-documents indicator, never an error.
package docsearch

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/chrisgscott/ellen/models"
)

const (
	// DefaultLimit caps the number of returned hits.
	DefaultLimit = 5
	// DefaultDocLimit caps how many candidate documents the filename
	// fallback considers, most recently uploaded first.
	DefaultDocLimit = 3
)

// ChunkStore is the read-only view of the chunk collection the searcher
// needs. The three methods mirror the three fallback scopes.
type ChunkStore interface {
	ChunksBySession(ctx context.Context, sessionID string) ([]models.DocumentChunk, error)
	ChunksByDocumentName(ctx context.Context, filename string) ([]models.DocumentChunk, error)
	// ChunksByFilenameKeyword returns chunks of documents whose filename
	// matches keyword, most recently uploaded documents first, at most
	// docLimit documents.
	ChunksByFilenameKeyword(ctx context.Context, keyword string, docLimit int) ([]models.DocumentChunk, error)
}

// Hit is one ranked chunk.
type Hit struct {
	Chunk models.DocumentChunk `json:"chunk"`
	Score float64              `json:"score"`
}

// Result is a successful search outcome. NoDocuments distinguishes "nothing
// matched" from a failure; callers render it as an explicit empty state.
type Result struct {
	Hits        []Hit  `json:"hits"`
	Scope       string `json:"scope"`
	NoDocuments bool   `json:"no_documents"`
}

// Searcher scores chunks against queries. Construct with NewSearcher.
type Searcher struct {
	chunks   ChunkStore
	logger   *log.Logger
	limit    int
	docLimit int
}

// NewSearcher builds a searcher over store. limit and docLimit fall back to
// the package defaults when <= 0; logger may be nil.
func NewSearcher(store ChunkStore, logger *log.Logger, limit, docLimit int) *Searcher {
	if logger == nil {
		logger = log.Default()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if docLimit <= 0 {
		docLimit = DefaultDocLimit
	}
	return &Searcher{chunks: store, logger: logger, limit: limit, docLimit: docLimit}
}

// Search resolves the chunk scope and ranks it against query.
//
// Scope fallback, in order: chunks of the active session; chunks of an
// explicitly named document when the caller supplied one; chunks of recent
// documents whose filename matches a keyword derived from the query. The
// fallback exists because a search can race the session-document
// association created by an optimistic thread; the searcher tolerates that
// gap rather than failing.
func (s *Searcher) Search(ctx context.Context, sessionID, documentName, query string) (Result, error) {
	chunks, scope, err := s.resolveScope(ctx, sessionID, documentName, query)
	if err != nil {
		return Result{}, err
	}
	if len(chunks) == 0 {
		return Result{Hits: []Hit{}, Scope: scope, NoDocuments: true}, nil
	}
	hits := rank(chunks, query, s.limit)
	if len(hits) == 0 {
		return Result{Hits: []Hit{}, Scope: scope, NoDocuments: true}, nil
	}
	return Result{Hits: hits, Scope: scope}, nil
}

func (s *Searcher) resolveScope(ctx context.Context, sessionID, documentName, query string) ([]models.DocumentChunk, string, error) {
	if sessionID != "" {
		chunks, err := s.chunks.ChunksBySession(ctx, sessionID)
		if err != nil {
			return nil, "", err
		}
		if len(chunks) > 0 {
			return chunks, "session", nil
		}
	}
	if documentName != "" {
		chunks, err := s.chunks.ChunksByDocumentName(ctx, documentName)
		if err != nil {
			return nil, "", err
		}
		if len(chunks) > 0 {
			return chunks, "document", nil
		}
	}
	keyword := QueryKeyword(query)
	if keyword == "" {
		return nil, "none", nil
	}
	s.logger.Printf("docsearch: no session/document scope, falling back to filename keyword %q", keyword)
	chunks, err := s.chunks.ChunksByFilenameKeyword(ctx, keyword, s.docLimit)
	if err != nil {
		return nil, "", err
	}
	return chunks, "filename", nil
}

// QueryKeyword derives the filename-fallback keyword from a query: the
// first all-caps token of length >= 2 (acronyms like NDPR or REE name the
// document they came from), otherwise the longest token.
func QueryKeyword(query string) string {
	longest := ""
	for _, tok := range strings.Fields(query) {
		tok = strings.Trim(tok, ".,;:!?\"'()")
		if len(tok) >= 2 && tok == strings.ToUpper(tok) && tok != strings.ToLower(tok) {
			return tok
		}
		if len(tok) > len(longest) {
			longest = tok
		}
	}
	return longest
}

// rank admits chunks containing the query (case-insensitive) and scores
// them by keyword density: occurrences divided by content length, scaled by
// 1000. Short chunks with many hits beat long chunks with proportionally
// fewer.
func rank(chunks []models.DocumentChunk, query string, limit int) []Hit {
	needle := strings.ToLower(query)
	if needle == "" {
		return nil
	}
	var hits []Hit
	for _, chunk := range chunks {
		if len(chunk.Content) == 0 {
			continue
		}
		haystack := strings.ToLower(chunk.Content)
		count := strings.Count(haystack, needle)
		if count == 0 {
			continue
		}
		score := float64(count) / float64(len(chunk.Content)) * 1000
		hits = append(hits, Hit{Chunk: chunk, Score: score})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
