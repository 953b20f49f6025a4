// Package reader defines the narrow capability interface to the remote
// book-reader service: login, page-range fetch, and book metadata. The core
// pipeline only sees this interface, so tests substitute fakes.
package reader

import (
	"context"

	"github.com/pagevoice/pagevoice-server/internal/domain"
)

// Credentials authenticates against the remote reader service.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Handle is an authenticated connection handle to the reader service.
// It is owned exclusively by the session store; everything else borrows it
// for the duration of a call.
type Handle struct {
	Token string `json:"-"`
}

// Page is one rendered page image within a fetched position range.
type Page struct {
	Index       int    `json:"index"`
	Image       []byte `json:"image"`
	RawPosition string `json:"rawPosition,omitempty"`
}

// Client is the capability surface the core consumes.
// Implementations return SESSION_EXPIRED when the underlying credential is
// stale, INVALID_CREDENTIALS on failed login, and PROVIDER on upstream
// failures.
type Client interface {
	Login(ctx context.Context, creds Credentials) (Handle, error)
	FetchPageRange(ctx context.Context, h Handle, asin string, startID, endID int64) ([]Page, error)
	FetchBookList(ctx context.Context, h Handle) ([]domain.BookSummary, error)
	FetchBookDetails(ctx context.Context, h Handle, asin string) (*domain.BookDetails, error)
}
