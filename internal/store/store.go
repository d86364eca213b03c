package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/chrisgscott/ellen/models"
)

// Store wraps the Postgres connection. All methods take a context and
// return explicit errors; not-found conditions use the models sentinels or
// a (value, ok, err) triple so callers can branch without string matching.
type Store struct {
	DB *sql.DB
}

// New wraps an existing connection (tests inject sqlmock here).
func New(db *sql.DB) *Store { return &Store{DB: db} }

// NewWithDSN opens a Postgres connection and verifies it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

// ---- users ----

func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1,$2,$3)`,
		uuid.NewString(), email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return id, hash, err
}

// ---- sessions ----

func (s *Store) CreateSession(ctx context.Context, userID, title string) (models.Session, error) {
	sess := models.Session{ID: uuid.NewString(), UserID: userID, Title: title}
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO sessions (id, user_id, title) VALUES ($1,$2,$3)
RETURNING created_at, updated_at
`, sess.ID, sess.UserID, sess.Title).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, id string) (models.Session, error) {
	var sess models.Session
	err := s.DB.QueryRowContext(ctx, `
SELECT id, user_id, title, created_at, updated_at FROM sessions WHERE id=$1
`, id).Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, models.ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, err
	}
	return sess, nil
}

func (s *Store) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, user_id, title, created_at, updated_at FROM sessions
WHERE user_id=$1 ORDER BY updated_at DESC
`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Session
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// ---- threads ----

// CreateThread persists a completed (or partially streamed) thread and
// returns the server-assigned identifier. The caller swaps its optimistic
// placeholder for the returned thread wholesale.
func (s *Store) CreateThread(ctx context.Context, t *models.Thread) (string, error) {
	sourcesB, err := json.Marshal(t.Sources)
	if err != nil {
		return "", fmt.Errorf("marshal sources: %w", err)
	}
	materialsB, err := json.Marshal(t.Materials)
	if err != nil {
		return "", fmt.Errorf("marshal materials: %w", err)
	}
	id := uuid.NewString()
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO threads (id, session_id, user_message, assistant_message, sources, materials, suggested_questions)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, id, t.SessionID, t.UserMessage.Content, t.Assistant.Content, sourcesB, materialsB, pq.Array(t.Suggestions))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetThread(ctx context.Context, id string) (models.Thread, error) {
	var (
		t          models.Thread
		userMsg    string
		assistant  sql.NullString
		sourcesB   []byte
		materialsB []byte
	)
	t.Suggestions = []string{}
	err := s.DB.QueryRowContext(ctx, `
SELECT id, session_id, user_message, assistant_message, sources, materials, suggested_questions, created_at
FROM threads WHERE id=$1
`, id).Scan(&t.ID, &t.SessionID, &userMsg, &assistant, &sourcesB, &materialsB, pq.Array(&t.Suggestions), &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, models.ErrThreadNotFound
	}
	if err != nil {
		return models.Thread{}, err
	}
	t.UserMessage = models.Message{Role: models.RoleUser, Content: userMsg}
	t.Assistant = models.Message{Role: models.RoleAssistant, Content: assistant.String}
	if err := json.Unmarshal(sourcesB, &t.Sources); err != nil {
		return models.Thread{}, fmt.Errorf("unmarshal sources: %w", err)
	}
	if err := json.Unmarshal(materialsB, &t.Materials); err != nil {
		return models.Thread{}, fmt.Errorf("unmarshal materials: %w", err)
	}
	return t, nil
}

func (s *Store) ListThreadsBySession(ctx context.Context, sessionID string) ([]models.Thread, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, session_id, user_message, assistant_message, sources, materials, suggested_questions, created_at
FROM threads WHERE session_id=$1 ORDER BY created_at ASC
`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Thread
	for rows.Next() {
		var (
			t          models.Thread
			userMsg    string
			assistant  sql.NullString
			sourcesB   []byte
			materialsB []byte
		)
		t.Suggestions = []string{}
		if err := rows.Scan(&t.ID, &t.SessionID, &userMsg, &assistant, &sourcesB, &materialsB, pq.Array(&t.Suggestions), &t.CreatedAt); err != nil {
			return nil, err
		}
		t.UserMessage = models.Message{Role: models.RoleUser, Content: userMsg}
		t.Assistant = models.Message{Role: models.RoleAssistant, Content: assistant.String}
		if err := json.Unmarshal(sourcesB, &t.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
		if err := json.Unmarshal(materialsB, &t.Materials); err != nil {
			return nil, fmt.Errorf("unmarshal materials: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ---- materials catalog ----

// LookupMaterial resolves a material by exact case-insensitive name first,
// then by partial match. The catalog is reference data: the chat core only
// reads it.
func (s *Store) LookupMaterial(ctx context.Context, name string) (models.Material, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Material{}, false, nil
	}
	m, ok, err := s.scanMaterial(ctx, `
SELECT name, symbol, summary, color, supply_risk_score, demand_score
FROM materials WHERE LOWER(name)=LOWER($1)
`, name)
	if err != nil || ok {
		return m, ok, err
	}
	return s.scanMaterial(ctx, `
SELECT name, symbol, summary, color, supply_risk_score, demand_score
FROM materials WHERE name ILIKE '%' || $1 || '%' ORDER BY name ASC LIMIT 1
`, name)
}

func (s *Store) scanMaterial(ctx context.Context, query, name string) (models.Material, bool, error) {
	var (
		m       models.Material
		symbol  sql.NullString
		summary sql.NullString
		color   sql.NullString
		risk    sql.NullFloat64
		demand  sql.NullFloat64
	)
	err := s.DB.QueryRowContext(ctx, query, name).Scan(&m.Name, &symbol, &summary, &color, &risk, &demand)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Material{}, false, nil
	}
	if err != nil {
		return models.Material{}, false, err
	}
	m.Symbol = symbol.String
	m.Summary = summary.String
	m.Color = color.String
	m.SupplyRiskScore = risk.Float64
	m.DemandScore = demand.Float64
	return m, true, nil
}

// ---- news ----

func (s *Store) GetNewsItem(ctx context.Context, id string) (models.NewsItem, bool, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, headline, source, url, published_at, geographic_focus, interest_cluster, type, related_materials
FROM news_items WHERE id=$1
`, id)
	item, err := scanNewsItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewsItem{}, false, nil
	}
	if err != nil {
		return models.NewsItem{}, false, err
	}
	return item, true, nil
}

// ListNews returns news filtered by any non-empty cluster/geography/type,
// newest first.
func (s *Store) ListNews(ctx context.Context, cluster, geography, newsType string, limit int) ([]models.NewsItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
SELECT id, headline, source, url, published_at, geographic_focus, interest_cluster, type, related_materials
FROM news_items WHERE 1=1`
	args := []interface{}{}
	if cluster != "" {
		args = append(args, cluster)
		query += fmt.Sprintf(" AND interest_cluster=$%d", len(args))
	}
	if geography != "" {
		args = append(args, geography)
		query += fmt.Sprintf(" AND geographic_focus=$%d", len(args))
	}
	if newsType != "" {
		args = append(args, newsType)
		query += fmt.Sprintf(" AND type=$%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY published_at DESC LIMIT $%d", len(args))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.NewsItem
	for rows.Next() {
		item, err := scanNewsItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNewsItem(row rowScanner) (models.NewsItem, error) {
	var (
		item      models.NewsItem
		url       sql.NullString
		geography sql.NullString
		cluster   sql.NullString
		newsType  sql.NullString
	)
	item.RelatedMaterials = []string{}
	err := row.Scan(&item.ID, &item.Headline, &item.Source, &url, &item.PublishedAt,
		&geography, &cluster, &newsType, pq.Array(&item.RelatedMaterials))
	if err != nil {
		return models.NewsItem{}, err
	}
	item.URL = url.String
	item.GeographicFocus = geography.String
	item.InterestCluster = cluster.String
	item.Type = newsType.String
	return item, nil
}

// ---- document chunks (docsearch.ChunkStore) ----

func (s *Store) ChunksBySession(ctx context.Context, sessionID string) ([]models.DocumentChunk, error) {
	return s.queryChunks(ctx, `
SELECT c.id, c.document_id, c.content, c.chunk_index, c.metadata
FROM document_chunks c
JOIN documents d ON d.id = c.document_id
WHERE d.session_id=$1
ORDER BY c.document_id, c.chunk_index
`, sessionID)
}

func (s *Store) ChunksByDocumentName(ctx context.Context, filename string) ([]models.DocumentChunk, error) {
	return s.queryChunks(ctx, `
SELECT c.id, c.document_id, c.content, c.chunk_index, c.metadata
FROM document_chunks c
JOIN documents d ON d.id = c.document_id
WHERE LOWER(d.filename)=LOWER($1)
ORDER BY c.chunk_index
`, filename)
}

func (s *Store) ChunksByFilenameKeyword(ctx context.Context, keyword string, docLimit int) ([]models.DocumentChunk, error) {
	if docLimit <= 0 {
		docLimit = 3
	}
	return s.queryChunks(ctx, `
SELECT c.id, c.document_id, c.content, c.chunk_index, c.metadata
FROM document_chunks c
JOIN (
  SELECT id FROM documents WHERE filename ILIKE '%' || $1 || '%'
  ORDER BY uploaded_at DESC LIMIT $2
) d ON d.id = c.document_id
ORDER BY c.document_id, c.chunk_index
`, keyword, docLimit)
}

func (s *Store) queryChunks(ctx context.Context, query string, args ...interface{}) ([]models.DocumentChunk, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.DocumentChunk
	for rows.Next() {
		var (
			chunk models.DocumentChunk
			metaB []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.ChunkIndex, &metaB); err != nil {
			return nil, err
		}
		if len(metaB) > 0 {
			if err := json.Unmarshal(metaB, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		out = append(out, chunk)
	}
	return out, rows.Err()
}

// TouchSession bumps a session's updated_at when a new thread lands in it.
func (s *Store) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE sessions SET updated_at=$2 WHERE id=$1`, id, at)
	return err
}
