package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/reader"
	"github.com/pagevoice/pagevoice-server/internal/session"
)

type fakeReader struct {
	listCalls    atomic.Int32
	detailsCalls atomic.Int32
	details      domain.BookDetails
}

func (f *fakeReader) Login(context.Context, reader.Credentials) (reader.Handle, error) {
	return reader.Handle{Token: "tok"}, nil
}

func (f *fakeReader) FetchPageRange(context.Context, reader.Handle, string, int64, int64) ([]reader.Page, error) {
	return nil, nil
}

func (f *fakeReader) FetchBookList(context.Context, reader.Handle) ([]domain.BookSummary, error) {
	f.listCalls.Add(1)
	return []domain.BookSummary{{ASIN: "B00X", Title: "Moby-Dick"}}, nil
}

func (f *fakeReader) FetchBookDetails(_ context.Context, _ reader.Handle, asin string) (*domain.BookDetails, error) {
	f.detailsCalls.Add(1)
	d := f.details
	d.ASIN = asin
	return &d, nil
}

func newTestSession(t *testing.T, client reader.Client) *session.Session {
	t.Helper()
	st := session.New(client, time.Minute, nil)
	sess, err := st.Create(context.Background(), reader.Credentials{Email: "a@b.c"})
	require.NoError(t, err)
	return sess
}

func coverPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestListBooks_CachesPerSession(t *testing.T) {
	fr := &fakeReader{}
	svc := NewBookService(fr, nil)
	sess := newTestSession(t, fr)

	books, err := svc.ListBooks(context.Background(), sess)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Moby-Dick", books[0].Title)

	_, err = svc.ListBooks(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fr.listCalls.Load())
}

func TestGetBook_ConvertsDescriptionAndComputesBlurHash(t *testing.T) {
	cover := coverPNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write(cover)
	}))
	defer srv.Close()

	fr := &fakeReader{details: domain.BookDetails{
		Title:       "Moby-Dick",
		Description: "<p>Call me <b>Ishmael</b>.</p>",
		CoverURL:    srv.URL + "/cover.png",
	}}
	svc := NewBookService(fr, nil)
	sess := newTestSession(t, fr)

	details, err := svc.GetBook(context.Background(), sess, "B00X")
	require.NoError(t, err)

	assert.Equal(t, "B00X", details.ASIN)
	assert.Contains(t, details.Description, "**Ishmael**")
	assert.NotContains(t, details.Description, "<p>")
	assert.NotEmpty(t, details.CoverBlurHash)
}

func TestGetBook_CachesPerSession(t *testing.T) {
	fr := &fakeReader{details: domain.BookDetails{Title: "Moby-Dick"}}
	svc := NewBookService(fr, nil)
	sess := newTestSession(t, fr)

	_, err := svc.GetBook(context.Background(), sess, "B00X")
	require.NoError(t, err)
	_, err = svc.GetBook(context.Background(), sess, "B00X")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fr.detailsCalls.Load())
}

func TestGetBook_CoverFetchFailureIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	fr := &fakeReader{details: domain.BookDetails{Title: "Moby-Dick", CoverURL: srv.URL + "/missing.png"}}
	svc := NewBookService(fr, nil)
	sess := newTestSession(t, fr)

	details, err := svc.GetBook(context.Background(), sess, "B00X")
	require.NoError(t, err)
	assert.Empty(t, details.CoverBlurHash)
}
