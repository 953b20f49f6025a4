package ocr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagevoice/pagevoice-server/internal/errors"
)

func TestRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("apikey"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "eng", r.FormValue("language"))
		assert.Equal(t, "false", r.FormValue("isOverlayRequired"))

		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		w.Write([]byte(`{"ParsedResults":[{"ParsedText":"Call me Ishmael."}],"IsErroredOnProcessing":false}`))
	}))
	defer srv.Close()

	c := NewSpaceClient("test-key", nil, WithEndpoint(srv.URL))
	defer c.Close()

	text, err := c.Recognize(context.Background(), []byte("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "Call me Ishmael.", text)
}

func TestRecognize_ProcessingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"ParsedResults":[],"IsErroredOnProcessing":true,"ErrorMessage":["image too large"]}`))
	}))
	defer srv.Close()

	c := NewSpaceClient("test-key", nil, WithEndpoint(srv.URL))
	defer c.Close()

	_, err := c.Recognize(context.Background(), []byte("png-bytes"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProvider))
	assert.Contains(t, err.Error(), "image too large")
}

func TestRecognize_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewSpaceClient("test-key", nil, WithEndpoint(srv.URL))
	defer c.Close()

	_, err := c.Recognize(context.Background(), []byte("png-bytes"))
	assert.True(t, errors.Is(err, errors.ErrProvider))
}

func TestRecognize_EmptyImage(t *testing.T) {
	c := NewSpaceClient("test-key", nil)
	defer c.Close()

	_, err := c.Recognize(context.Background(), nil)
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestRecognize_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"ParsedResults":[],"IsErroredOnProcessing":false}`))
	}))
	defer srv.Close()

	c := NewSpaceClient("test-key", nil, WithEndpoint(srv.URL))
	defer c.Close()

	_, err := c.Recognize(context.Background(), []byte("png-bytes"))
	assert.True(t, errors.Is(err, errors.ErrProvider))
}
