package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/pagevoice/pagevoice-server/internal/domain"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns the reader account's book list, memoized per session",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{asin}",
		Summary:     "Get book details",
		Description: "Returns full book metadata with a markdown description and cover blurhash",
		Tags:        []string{"Books"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "getCoverage",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{asin}/coverage",
		Summary:     "Get narration coverage",
		Description: "Returns the book's processed position ranges and their artifacts",
		Tags:        []string{"Coverage"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetCoverage)
}

// === DTOs ===

// BookListResponse contains the session's book list.
type BookListResponse struct {
	Books []domain.BookSummary `json:"books" doc:"Books on the reader account"`
}

// BookListOutput wraps the book list for Huma.
type BookListOutput struct {
	Body BookListResponse
}

// BookInput identifies one book.
type BookInput struct {
	ASIN string `path:"asin" maxLength:"32" doc:"Book ASIN"`
}

// BookDetailsOutput wraps book details for Huma.
type BookDetailsOutput struct {
	Body domain.BookDetails
}

// CoverageOutput wraps the coverage document for Huma.
type CoverageOutput struct {
	Body domain.RendererCoverageMetadata
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, _ *struct{}) (*BookListOutput, error) {
	sess, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}

	books, err := s.services.Books.ListBooks(ctx, sess)
	if err != nil {
		return nil, err
	}

	return &BookListOutput{Body: BookListResponse{Books: books}}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *BookInput) (*BookDetailsOutput, error) {
	sess, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}

	details, err := s.services.Books.GetBook(ctx, sess, input.ASIN)
	if err != nil {
		return nil, err
	}

	return &BookDetailsOutput{Body: *details}, nil
}

func (s *Server) handleGetCoverage(ctx context.Context, input *BookInput) (*CoverageOutput, error) {
	if _, err := s.requireSession(ctx); err != nil {
		return nil, err
	}

	meta, err := s.services.Tracker.Coverage(input.ASIN)
	if err != nil {
		return nil, err
	}

	return &CoverageOutput{Body: *meta}, nil
}
