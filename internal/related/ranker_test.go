package related

import (
	"fmt"
	"testing"
	"time"

	"github.com/chrisgscott/ellen/models"
)

var now = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func item(id string, published time.Time) models.NewsItem {
	return models.NewsItem{ID: id, Headline: id, PublishedAt: published}
}

func TestScoreWeights(t *testing.T) {
	focal := models.NewsItem{
		ID:               "focal",
		RelatedMaterials: []string{"Lithium", "Cobalt"},
		InterestCluster:  "battery",
		GeographicFocus:  "Chile",
		Type:             "market",
	}
	cand := models.NewsItem{
		ID:               "cand",
		RelatedMaterials: []string{"lithium", "cobalt", "nickel"},
		InterestCluster:  "battery",
		GeographicFocus:  "Chile",
		Type:             "market",
		PublishedAt:      now.Add(-24 * time.Hour),
	}
	// 2 shared materials (case-insensitive) ×5 + cluster 3 + geo 2 + type 1 + week recency 3
	if got := Score(now, focal, cand); got != 19 {
		t.Fatalf("expected 19, got %d", got)
	}
}

func TestScoreRecencyBuckets(t *testing.T) {
	focal := models.NewsItem{ID: "focal"}
	cases := []struct {
		age  time.Duration
		want int
	}{
		{24 * time.Hour, RecencyWithinWeek},
		{6 * 24 * time.Hour, RecencyWithinWeek},
		{10 * 24 * time.Hour, RecencyWithinMonth},
		{45 * 24 * time.Hour, RecencyOlder},
	}
	for _, tc := range cases {
		cand := item("c", now.Add(-tc.age))
		if got := Score(now, focal, cand); got != tc.want {
			t.Fatalf("age %v: expected %d, got %d", tc.age, tc.want, got)
		}
	}
}

func TestRankMaterialAndClusterBeatGeographyOnly(t *testing.T) {
	focal := models.NewsItem{
		ID:               "focal",
		RelatedMaterials: []string{"Lithium"},
		InterestCluster:  "battery",
		GeographicFocus:  "Australia",
	}
	var pool []models.NewsItem
	// 3 candidates sharing Lithium and the battery cluster.
	for i := 0; i < 3; i++ {
		pool = append(pool, models.NewsItem{
			ID:               fmt.Sprintf("strong-%d", i),
			RelatedMaterials: []string{"Lithium"},
			InterestCluster:  "battery",
			PublishedAt:      now.Add(-60 * 24 * time.Hour),
		})
	}
	// 7 candidates sharing only geography, all fresher.
	for i := 0; i < 7; i++ {
		pool = append(pool, models.NewsItem{
			ID:              fmt.Sprintf("weak-%d", i),
			GeographicFocus: "Australia",
			PublishedAt:     now.Add(-time.Hour),
		})
	}

	ranked := Rank(now, focal, pool, 0)
	if len(ranked) != DefaultLimit {
		t.Fatalf("expected cap at %d, got %d", DefaultLimit, len(ranked))
	}
	for i := 0; i < 3; i++ {
		if got := ranked[i].Item.ID; len(got) < 6 || got[:6] != "strong" {
			t.Fatalf("position %d: expected material+cluster candidate, got %s", i, got)
		}
	}
	for _, sc := range ranked {
		if sc.Item.ID == "focal" {
			t.Fatalf("focal item leaked into its own related list")
		}
	}
}

func TestRankExcludesFocalByIdentity(t *testing.T) {
	focal := item("focal", now)
	ranked := Rank(now, focal, []models.NewsItem{focal, item("other", now)}, 0)
	if len(ranked) != 1 || ranked[0].Item.ID != "other" {
		t.Fatalf("expected only the other item, got %+v", ranked)
	}
}

func TestRankTieBreaksByNewerPublishTime(t *testing.T) {
	focal := models.NewsItem{ID: "focal"}
	older := item("older", now.Add(-3*time.Hour))
	newer := item("newer", now.Add(-1*time.Hour))
	ranked := Rank(now, focal, []models.NewsItem{older, newer}, 0)
	if ranked[0].Item.ID != "newer" {
		t.Fatalf("tie must break toward newer publish time: %+v", ranked)
	}
}

func TestRankNoMinimumScoreFloor(t *testing.T) {
	focal := models.NewsItem{ID: "focal"}
	ranked := Rank(now, focal, []models.NewsItem{item("stale", now.Add(-365*24*time.Hour))}, 0)
	if len(ranked) != 1 {
		t.Fatalf("low-relevance items must still appear in a small pool")
	}
	if ranked[0].Score != RecencyOlder {
		t.Fatalf("expected bare recency score, got %d", ranked[0].Score)
	}
}
