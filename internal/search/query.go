package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Hit is one matching chunk with a highlighted fragment.
type Hit struct {
	ASIN     string   `json:"asin"`
	ChunkID  string   `json:"chunkId"`
	Provider string   `json:"provider"`
	Score    float64  `json:"score"`
	Excerpts []string `json:"excerpts,omitempty"`
}

// Result is a chunk text search response.
type Result struct {
	Query string `json:"query"`
	Total uint64 `json:"total"`
	Hits  []Hit  `json:"hits"`
}

const defaultLimit = 20

// Search runs a full-text query over chunk text, scoped to one book when
// asin is non-empty.
func (s *Index) Search(queryText, asin string, limit int) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = defaultLimit
	}

	textQuery := bleve.NewMatchQuery(queryText)
	textQuery.SetField("text")

	var q query.Query = textQuery
	if asin != "" {
		asinQuery := bleve.NewTermQuery(asin)
		asinQuery.SetField("asin")
		q = bleve.NewConjunctionQuery(textQuery, asinQuery)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"asin", "chunk_id", "provider"}
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Highlight.AddField("text")

	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	out := &Result{
		Query: queryText,
		Total: res.Total,
		Hits:  make([]Hit, 0, len(res.Hits)),
	}
	for _, hit := range res.Hits {
		h := Hit{Score: hit.Score}
		if v, ok := hit.Fields["asin"].(string); ok {
			h.ASIN = v
		}
		if v, ok := hit.Fields["chunk_id"].(string); ok {
			h.ChunkID = v
		}
		if v, ok := hit.Fields["provider"].(string); ok {
			h.Provider = v
		}
		if fragments, ok := hit.Fragments["text"]; ok {
			h.Excerpts = fragments
		}
		out.Hits = append(out.Hits, h)
	}
	return out, nil
}
