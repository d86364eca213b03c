// Package related scores news items against a focal article and returns the
// most relevant neighbours. Ranking is a soft enhancement: callers degrade
// fetch failures to an empty list rather than failing the article view.
package related

import (
	"sort"
	"strings"
	"time"

	"github.com/chrisgscott/ellen/models"
)

// Scoring weights. Shared materials dominate: the bonus applies per shared
// material name, not once.
const (
	WeightSharedMaterial = 5
	WeightSameCluster    = 3
	WeightSameGeography  = 2
	WeightSameType       = 1

	RecencyWithinWeek  = 3
	RecencyWithinMonth = 2
	RecencyOlder       = 1

	// DefaultLimit caps the related list.
	DefaultLimit = 6
)

// Scored pairs a candidate with its relevance score.
type Scored struct {
	Item  models.NewsItem
	Score int
}

// Score computes the additive relevance of candidate to focal. Recency is
// measured against now, not against the focal item's publish time: related
// content ranks by freshness relative to the reader, not the article.
func Score(now time.Time, focal, candidate models.NewsItem) int {
	score := sharedMaterialCount(focal.RelatedMaterials, candidate.RelatedMaterials) * WeightSharedMaterial
	if candidate.InterestCluster != "" && candidate.InterestCluster == focal.InterestCluster {
		score += WeightSameCluster
	}
	if candidate.GeographicFocus != "" && candidate.GeographicFocus == focal.GeographicFocus {
		score += WeightSameGeography
	}
	if candidate.Type != "" && candidate.Type == focal.Type {
		score += WeightSameType
	}
	age := now.Sub(candidate.PublishedAt)
	switch {
	case age <= 7*24*time.Hour:
		score += RecencyWithinWeek
	case age <= 30*24*time.Hour:
		score += RecencyWithinMonth
	default:
		score += RecencyOlder
	}
	return score
}

// Rank scores every candidate against focal and returns the top matches,
// capped at limit (DefaultLimit when limit <= 0). The focal item is excluded
// by identity before scoring. Ties break toward the newer publish time.
// There is no minimum-score floor: with a small pool, weak matches surface.
func Rank(now time.Time, focal models.NewsItem, pool []models.NewsItem, limit int) []Scored {
	if limit <= 0 {
		limit = DefaultLimit
	}
	scored := make([]Scored, 0, len(pool))
	for _, cand := range pool {
		if cand.ID == focal.ID {
			continue
		}
		scored = append(scored, Scored{Item: cand, Score: Score(now, focal, cand)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Item.PublishedAt.After(scored[j].Item.PublishedAt)
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func sharedMaterialCount(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, name := range a {
		set[strings.ToLower(name)] = struct{}{}
	}
	count := 0
	seen := make(map[string]struct{}, len(b))
	for _, name := range b {
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := set[key]; ok {
			count++
		}
	}
	return count
}
