package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
	"github.com/pagevoice/pagevoice-server/internal/reader"
)

// fakeReader satisfies reader.Client for store tests.
type fakeReader struct {
	loginErr error
}

func (f *fakeReader) Login(_ context.Context, creds reader.Credentials) (reader.Handle, error) {
	if f.loginErr != nil {
		return reader.Handle{}, f.loginErr
	}
	return reader.Handle{Token: "tok-" + creds.Email}, nil
}

func (f *fakeReader) FetchPageRange(context.Context, reader.Handle, string, int64, int64) ([]reader.Page, error) {
	return nil, nil
}

func (f *fakeReader) FetchBookList(context.Context, reader.Handle) ([]domain.BookSummary, error) {
	return nil, nil
}

func (f *fakeReader) FetchBookDetails(context.Context, reader.Handle, string) (*domain.BookDetails, error) {
	return nil, nil
}

// setupTestStore returns a store with a controllable clock.
func setupTestStore(t *testing.T, ttl time.Duration) (*Store, *time.Time) {
	t.Helper()
	st := New(&fakeReader{}, ttl, nil)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }
	return st, &now
}

func TestCreateAndGet(t *testing.T) {
	st, _ := setupTestStore(t, time.Minute)

	sess, err := st.Create(context.Background(), reader.Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "tok-a@b.c", sess.Handle.Token)
	assert.Equal(t, sess.CreatedAt, sess.LastAccessedAt)

	got, err := st.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)
}

func TestCreate_LoginFailure(t *testing.T) {
	st := New(&fakeReader{loginErr: errors.InvalidCredentials("nope")}, time.Minute, nil)

	_, err := st.Create(context.Background(), reader.Credentials{Email: "a@b.c", Password: "bad"})
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
	assert.Equal(t, 0, st.Len())
}

func TestGet_UnknownSession(t *testing.T) {
	st, _ := setupTestStore(t, time.Minute)
	_, err := st.Get("sess-missing")
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))
}

func TestTTLVisibilityWindow(t *testing.T) {
	ttl := time.Minute
	st, now := setupTestStore(t, ttl)

	sess, err := st.Create(context.Background(), reader.Credentials{Email: "a@b.c"})
	require.NoError(t, err)

	// Visible at exactly t = TTL.
	*now = now.Add(ttl)
	_, err = st.Get(sess.ID)
	require.NoError(t, err)

	// The get above refreshed lastAccessedAt, so another full TTL is allowed.
	*now = now.Add(ttl)
	_, err = st.Get(sess.ID)
	require.NoError(t, err)

	// One tick past the TTL with no touches: expired and evicted.
	*now = now.Add(ttl + time.Second)
	_, err = st.Get(sess.ID)
	assert.True(t, errors.Is(err, errors.ErrSessionExpired))
	assert.Equal(t, 0, st.Len())
}

func TestTouchExtendsLifetime(t *testing.T) {
	ttl := time.Minute
	st, now := setupTestStore(t, ttl)

	sess, err := st.Create(context.Background(), reader.Credentials{Email: "a@b.c"})
	require.NoError(t, err)

	*now = now.Add(30 * time.Second)
	require.NoError(t, st.Touch(sess.ID))

	// Would have expired relative to creation, but the touch reset the clock.
	*now = now.Add(45 * time.Second)
	_, err = st.Get(sess.ID)
	require.NoError(t, err)
}

func TestTouch_Expired(t *testing.T) {
	st, now := setupTestStore(t, time.Minute)

	sess, err := st.Create(context.Background(), reader.Credentials{Email: "a@b.c"})
	require.NoError(t, err)

	*now = now.Add(2 * time.Minute)
	err = st.Touch(sess.ID)
	assert.True(t, errors.Is(err, errors.ErrSessionExpired))
}

func TestDelete(t *testing.T) {
	st, _ := setupTestStore(t, time.Minute)

	sess, err := st.Create(context.Background(), reader.Credentials{Email: "a@b.c"})
	require.NoError(t, err)

	st.Delete(sess.ID)
	_, err = st.Get(sess.ID)
	assert.True(t, errors.Is(err, errors.ErrUnauthorized))

	// Idempotent.
	st.Delete(sess.ID)
}

func TestGC(t *testing.T) {
	st, now := setupTestStore(t, time.Minute)

	stale, err := st.Create(context.Background(), reader.Credentials{Email: "old@b.c"})
	require.NoError(t, err)

	*now = now.Add(45 * time.Second)
	fresh, err := st.Create(context.Background(), reader.Credentials{Email: "new@b.c"})
	require.NoError(t, err)

	*now = now.Add(30 * time.Second)
	evicted := st.GC()
	assert.Equal(t, 1, evicted)

	_, err = st.Get(fresh.ID)
	assert.NoError(t, err)
	_, err = st.Get(stale.ID)
	assert.Error(t, err)
}

func TestTypedCaches(t *testing.T) {
	st, _ := setupTestStore(t, time.Minute)

	sess, err := st.Create(context.Background(), reader.Credentials{Email: "a@b.c"})
	require.NoError(t, err)

	_, ok := sess.CachedBookList()
	assert.False(t, ok)

	books := []domain.BookSummary{{ASIN: "B00X", Title: "Moby-Dick"}}
	sess.SetBookList(books)
	got, ok := sess.CachedBookList()
	require.True(t, ok)
	assert.Equal(t, books, got)

	_, ok = sess.CachedBookDetails("B00X")
	assert.False(t, ok)

	details := &domain.BookDetails{ASIN: "B00X", Title: "Moby-Dick", Length: 100000}
	sess.SetBookDetails("B00X", details)
	gotDetails, ok := sess.CachedBookDetails("B00X")
	require.True(t, ok)
	assert.Same(t, details, gotDetails)
}
