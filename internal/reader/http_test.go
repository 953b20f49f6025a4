package reader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagevoice/pagevoice-server/internal/errors"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/login", r.URL.Path)
		w.Write([]byte(`{"token":"tok-123"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	defer c.Close()

	h, err := c.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "tok-123", h.Token)
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	defer c.Close()

	_, err := c.Login(context.Background(), Credentials{Email: "a@b.c", Password: "wrong"})
	assert.True(t, errors.Is(err, errors.ErrInvalidCredentials))
}

func TestFetchPageRange_StaleCredential(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	defer c.Close()

	_, err := c.FetchPageRange(context.Background(), Handle{Token: "stale"}, "B00X", 0, 100)
	assert.True(t, errors.Is(err, errors.ErrSessionExpired))
}

func TestFetchPageRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/books/B00X/pages", r.URL.Path)
		assert.Equal(t, "100", r.URL.Query().Get("start"))
		assert.Equal(t, "200", r.URL.Query().Get("end"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"pages":[{"index":0,"image":"cGFnZQ=="}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	defer c.Close()

	pages, err := c.FetchPageRange(context.Background(), Handle{Token: "tok"}, "B00X", 100, 200)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, []byte("page"), pages[0].Image)
}

func TestFetchBookDetails_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	defer c.Close()

	_, err := c.FetchBookDetails(context.Background(), Handle{Token: "tok"}, "B00X")
	assert.True(t, errors.Is(err, errors.ErrProvider))
}
