// Package service provides the business logic layer between HTTP handlers
// and the reader, pipeline, and storage components.
package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/media/images"
	"github.com/pagevoice/pagevoice-server/internal/reader"
	"github.com/pagevoice/pagevoice-server/internal/session"
)

// coverFetchTimeout bounds the cover download used for blurhash computation.
const coverFetchTimeout = 10 * time.Second

// BookService serves book listings and details through an authenticated
// session, memoizing per-session since the upstream catalog rarely changes
// within a session's lifetime.
type BookService struct {
	reader reader.Client
	http   *http.Client
	logger *slog.Logger
}

// NewBookService creates a book service.
func NewBookService(readerClient reader.Client, logger *slog.Logger) *BookService {
	return &BookService{
		reader: readerClient,
		http:   &http.Client{Timeout: coverFetchTimeout},
		logger: logger,
	}
}

// ListBooks returns the session's book catalog.
func (s *BookService) ListBooks(ctx context.Context, sess *session.Session) ([]domain.BookSummary, error) {
	if books, ok := sess.CachedBookList(); ok {
		return books, nil
	}

	books, err := s.reader.FetchBookList(ctx, sess.Handle)
	if err != nil {
		return nil, err
	}
	sess.SetBookList(books)
	return books, nil
}

// GetBook returns one book's details, with the description converted from
// the reader's HTML to markdown and a blurhash placeholder computed from the
// cover.
func (s *BookService) GetBook(ctx context.Context, sess *session.Session, asin string) (*domain.BookDetails, error) {
	if details, ok := sess.CachedBookDetails(asin); ok {
		return details, nil
	}

	details, err := s.reader.FetchBookDetails(ctx, sess.Handle, asin)
	if err != nil {
		return nil, err
	}

	if details.Description != "" {
		if md, err := htmltomarkdown.ConvertString(details.Description); err == nil {
			details.Description = md
		} else if s.logger != nil {
			s.logger.Warn("description conversion failed", "asin", asin, "error", err)
		}
	}

	if details.CoverURL != "" {
		// Blurhash is a progressive-loading nicety; failures never block details.
		if hash := s.coverBlurHash(ctx, details.CoverURL); hash != "" {
			details.CoverBlurHash = hash
		}
	}

	sess.SetBookDetails(asin, details)
	return details, nil
}

func (s *BookService) coverBlurHash(ctx context.Context, coverURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return ""
	}
	resp, err := s.http.Do(req)
	if err != nil {
		if s.logger != nil {
			s.logger.Debug("cover fetch failed", "url", coverURL, "error", err)
		}
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return ""
	}
	hash, err := images.ComputeBlurHash(data)
	if err != nil {
		if s.logger != nil {
			s.logger.Debug("blurhash computation failed", "url", coverURL, "error", err)
		}
		return ""
	}
	return hash
}
