// Package session owns the lifetime of authenticated reader connections.
// Each session maps an opaque id to the remote connection handle plus typed
// per-session caches, and is evicted after the configured idle TTL.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
	"github.com/pagevoice/pagevoice-server/internal/id"
	"github.com/pagevoice/pagevoice-server/internal/reader"
)

// DefaultTTL is the idle timeout applied when none is configured.
const DefaultTTL = 30 * time.Minute

// Session is one authenticated connection to the reader service.
// The handle is owned by the store; callers borrow it per request.
type Session struct {
	ID             string
	Handle         reader.Handle
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// Typed memoization caches. A closed set of cache kinds (book list,
	// book details) rather than an open-ended key-value map.
	cacheMu     sync.Mutex
	bookList    []domain.BookSummary
	hasBookList bool
	bookDetails map[string]*domain.BookDetails
}

// CachedBookList returns the memoized book list, if one was stored.
func (s *Session) CachedBookList() ([]domain.BookSummary, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.bookList, s.hasBookList
}

// SetBookList memoizes the book list for this session.
func (s *Session) SetBookList(books []domain.BookSummary) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.bookList = books
	s.hasBookList = true
}

// CachedBookDetails returns memoized details for one ASIN, if stored.
func (s *Session) CachedBookDetails(asin string) (*domain.BookDetails, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	details, ok := s.bookDetails[asin]
	return details, ok
}

// SetBookDetails memoizes details for one ASIN.
func (s *Session) SetBookDetails(asin string, details *domain.BookDetails) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.bookDetails == nil {
		s.bookDetails = make(map[string]*domain.BookDetails)
	}
	s.bookDetails[asin] = details
}

// Store is the process-wide session registry. A single mutex guards the map;
// contention is low and the critical sections are tiny.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	client reader.Client
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// New creates a session store backed by the given reader client.
func New(client reader.Client, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions: make(map[string]*Session),
		client:   client,
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Create logs in against the reader service and registers a fresh session.
// The login round trip happens outside the lock; only registration is
// serialized.
func (s *Store) Create(ctx context.Context, creds reader.Credentials) (*Session, error) {
	handle, err := s.client.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	sessionID, err := id.Generate("sess")
	if err != nil {
		return nil, errors.Internal("generate session id").WithCause(err)
	}

	now := s.now()
	sess := &Session{
		ID:             sessionID,
		Handle:         handle,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	s.mu.Lock()
	s.sessions[sessionID] = sess
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Info("session created", "session_id", sessionID)
	}
	return sess, nil
}

// Get returns the session if it has not idled out, refreshing its
// last-accessed time. Reads extend lifetime on purpose: a session in active
// use stays warm. Expired entries are evicted lazily here.
func (s *Store) Get(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.Unauthorized("unknown session")
	}

	now := s.now()
	if now.Sub(sess.LastAccessedAt) > s.ttl {
		delete(s.sessions, sessionID)
		return nil, errors.SessionExpired("session idled out")
	}

	sess.LastAccessedAt = now
	return sess, nil
}

// Touch refreshes the session's last-accessed time without returning it.
// Cheap keep-alive for clients that poll.
func (s *Store) Touch(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return errors.Unauthorized("unknown session")
	}

	now := s.now()
	if now.Sub(sess.LastAccessedAt) > s.ttl {
		delete(s.sessions, sessionID)
		return errors.SessionExpired("session idled out")
	}

	sess.LastAccessedAt = now
	return nil
}

// Delete removes a session, e.g. on logout or detected credential failure.
// Idempotent.
func (s *Store) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// GC sweeps every session whose idle time exceeds the TTL and returns the
// eviction count. Safe to run concurrently with request handling.
func (s *Store) GC() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for sessionID, sess := range s.sessions {
		if now.Sub(sess.LastAccessedAt) > s.ttl {
			delete(s.sessions, sessionID)
			count++
		}
	}

	if count > 0 && s.logger != nil {
		s.logger.Info("session sweep completed", "evicted", count)
	}
	return count
}

// Len returns the number of live sessions (expired-but-unswept included).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
