package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chrisgscott/ellen/internal/stream"
	"github.com/chrisgscott/ellen/models"
)

const optimisticPrefix = "temp-"

// NewOptimisticThread synthesizes a placeholder thread the instant a user
// submits a message, before any round-trip completes. The identifier is
// time-based plus a random suffix: practically unique within a process for
// reconciliation purposes, not cryptographically guaranteed. The placeholder
// is never persisted; it is replaced wholesale once the canonical thread
// exists.
func NewOptimisticThread(sessionID, message string) *models.Thread {
	return &models.Thread{
		ID:          fmt.Sprintf("%s%d-%s", optimisticPrefix, time.Now().UnixMilli(), uuid.NewString()[:8]),
		SessionID:   sessionID,
		UserMessage: models.Message{Role: models.RoleUser, Content: message},
		Assistant:   models.Message{Role: models.RoleAssistant},
		Sources:     []models.Source{},
		Materials:   []models.Material{},
		Suggestions: []string{},
		CreatedAt:   time.Now(),
	}
}

// IsOptimisticID reports whether id was minted by NewOptimisticThread.
func IsOptimisticID(id string) bool { return strings.HasPrefix(id, optimisticPrefix) }

// BindThread wraps next so that every event also mutates t: tokens grow the
// assistant message, list events replace the corresponding list wholesale
// ("latest known complete set", not an accumulating log). Materials are
// deduplicated by case-insensitive name. The thread is owned exclusively by
// the stream driving these callbacks.
func BindThread(t *models.Thread, next stream.Handler) stream.Handler {
	return stream.Handler{
		OnToken: func(fullText string) {
			t.Assistant.Content = fullText
			if next.OnToken != nil {
				next.OnToken(fullText)
			}
		},
		OnSources: func(sources []models.Source) {
			t.Sources = sources
			if next.OnSources != nil {
				next.OnSources(sources)
			}
		},
		OnMaterials: func(materials []models.Material) {
			t.Materials = dedupeMaterials(materials)
			if next.OnMaterials != nil {
				next.OnMaterials(materials)
			}
		},
		OnSuggestions: func(questions []string) {
			t.Suggestions = questions
			if next.OnSuggestions != nil {
				next.OnSuggestions(questions)
			}
		},
		OnError: next.OnError,
	}
}

func dedupeMaterials(in []models.Material) []models.Material {
	seen := make(map[string]struct{}, len(in))
	out := make([]models.Material, 0, len(in))
	for _, m := range in {
		key := strings.ToLower(m.Name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}
