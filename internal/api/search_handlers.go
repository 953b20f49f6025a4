package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pagevoice/pagevoice-server/internal/errors"
	"github.com/pagevoice/pagevoice-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchChunks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{asin}/search",
		Summary:     "Search narrated text",
		Description: "Full-text search over the book's recognized chunk text",
		Tags:        []string{"Search"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearchChunks)
}

// === DTOs ===

// SearchInput is the query for a chunk text search.
type SearchInput struct {
	ASIN  string `path:"asin" maxLength:"32" doc:"Book ASIN"`
	Query string `query:"q" minLength:"1" maxLength:"256" doc:"Search terms"`
	Limit int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum hits to return"`
}

// SearchOutput wraps the search result for Huma.
type SearchOutput struct {
	Body search.Result
}

// === Handlers ===

func (s *Server) handleSearchChunks(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	if _, err := s.requireSession(ctx); err != nil {
		return nil, err
	}

	if s.services.Search == nil {
		return nil, errors.Internal("search index not configured")
	}

	result, err := s.services.Search.Search(input.Query, input.ASIN, input.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchOutput{Body: *result}, nil
}
