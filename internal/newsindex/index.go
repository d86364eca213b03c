// Package newsindex maintains an in-memory bleve full-text index over news
// headlines, backing the free-text news search endpoint. The index is
// rebuilt from the store at startup and kept current as items arrive.
package newsindex

import (
	"strings"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/chrisgscott/ellen/models"
)

// indexedItem is the projection of a NewsItem that gets tokenised.
type indexedItem struct {
	Headline  string   `json:"headline"`
	Source    string   `json:"source"`
	Cluster   string   `json:"cluster"`
	Materials []string `json:"materials"`
}

// Hit is one search match.
type Hit struct {
	Item  models.NewsItem `json:"item"`
	Score float64         `json:"score"`
}

// Index is a thread-safe headline index.
type Index struct {
	mu    sync.RWMutex
	idx   bleve.Index
	items map[string]models.NewsItem
}

// New builds an empty in-memory index.
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{idx: idx, items: make(map[string]models.NewsItem)}, nil
}

// Add indexes or re-indexes one item.
func (n *Index) Add(item models.NewsItem) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items[item.ID] = item
	return n.idx.Index(item.ID, indexedItem{
		Headline:  item.Headline,
		Source:    item.Source,
		Cluster:   item.InterestCluster,
		Materials: item.RelatedMaterials,
	})
}

// AddAll indexes a batch, stopping at the first failure.
func (n *Index) AddAll(items []models.NewsItem) error {
	for _, item := range items {
		if err := n.Add(item); err != nil {
			return err
		}
	}
	return nil
}

// Search runs a query-string search and returns up to k hits, best first.
func (n *Index) Search(q string, k int) ([]Hit, error) {
	if strings.TrimSpace(q) == "" {
		return nil, nil
	}
	if k <= 0 || k > 50 {
		k = 10
	}
	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(q), k, 0, false)

	n.mu.RLock()
	defer n.mu.RUnlock()
	res, err := n.idx.Search(req)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, match := range res.Hits {
		item, ok := n.items[match.ID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{Item: item, Score: match.Score})
	}
	return hits, nil
}
