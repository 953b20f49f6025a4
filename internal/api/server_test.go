package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/pagevoice/pagevoice-server/internal/artifacts"
	"github.com/pagevoice/pagevoice-server/internal/benchmark"
	"github.com/pagevoice/pagevoice-server/internal/coverage"
	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
	"github.com/pagevoice/pagevoice-server/internal/pipeline"
	"github.com/pagevoice/pagevoice-server/internal/reader"
	"github.com/pagevoice/pagevoice-server/internal/search"
	"github.com/pagevoice/pagevoice-server/internal/service"
	"github.com/pagevoice/pagevoice-server/internal/session"
	"github.com/pagevoice/pagevoice-server/internal/store"
	"github.com/pagevoice/pagevoice-server/internal/tts"
)

// testEnvelope mirrors the response envelope for decoding in tests.
type testEnvelope[T any] struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
}

// testErrorEnvelope mirrors the coded error envelope.
type testErrorEnvelope struct {
	Version int               `json:"v"`
	Success bool              `json:"success"`
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Hint    string            `json:"hint"`
	Details map[string]string `json:"details"`
}

// fakeReaderClient is an in-memory reader service for handler tests.
type fakeReaderClient struct {
	password string
	books    []domain.BookSummary
	details  map[string]*domain.BookDetails
}

func newFakeReaderClient() *fakeReaderClient {
	return &fakeReaderClient{
		password: "hunter2hunter2",
		books: []domain.BookSummary{
			{ASIN: "B00WHALE00", Title: "Moby-Dick", Authors: []string{"Herman Melville"}},
			{ASIN: "B00WHARF00", Title: "Typee"},
		},
		details: map[string]*domain.BookDetails{
			"B00WHALE00": {
				ASIN:        "B00WHALE00",
				Title:       "Moby-Dick",
				Authors:     []string{"Herman Melville"},
				Description: "<p>A <b>whale</b> of a tale.</p>",
				Length:      250000,
			},
		},
	}
}

func (f *fakeReaderClient) Login(_ context.Context, creds reader.Credentials) (reader.Handle, error) {
	if creds.Password != f.password {
		return reader.Handle{}, errors.InvalidCredentials("email or password incorrect")
	}
	return reader.Handle{Token: "tok-" + creds.Email}, nil
}

func (f *fakeReaderClient) FetchPageRange(_ context.Context, _ reader.Handle, _ string, _, _ int64) ([]reader.Page, error) {
	return []reader.Page{
		{Index: 0, Image: []byte("page-one")},
		{Index: 1, Image: []byte("page-two")},
	}, nil
}

func (f *fakeReaderClient) FetchBookList(context.Context, reader.Handle) ([]domain.BookSummary, error) {
	return f.books, nil
}

func (f *fakeReaderClient) FetchBookDetails(_ context.Context, _ reader.Handle, asin string) (*domain.BookDetails, error) {
	details, ok := f.details[asin]
	if !ok {
		return nil, errors.NotFoundf("book %s not found", asin)
	}
	copied := *details
	return &copied, nil
}

// fakeRecognizer maps the fake reader's page images to fixed text.
type fakeRecognizer struct{}

func (fakeRecognizer) Recognize(_ context.Context, image []byte) (string, error) {
	switch string(image) {
	case "page-one":
		return "Call me Ishmael.", nil
	case "page-two":
		return "Some years ago.", nil
	default:
		return "", errors.Provider("unknown page")
	}
}

// fakeSynthesizer emits word-per-half-second alignments.
type fakeSynthesizer struct{}

func (fakeSynthesizer) Name() string { return "cartesia" }

func (fakeSynthesizer) Synthesize(_ context.Context, req tts.SpeechRequest) (*tts.SpeechResult, error) {
	words := strings.Fields(req.Text)
	alignment := domain.WordAlignment{Words: words}
	for i := range words {
		alignment.WordStartTimes = append(alignment.WordStartTimes, float64(i)*0.5)
		alignment.WordEndTimes = append(alignment.WordEndTimes, float64(i)*0.5+0.4)
	}
	return &tts.SpeechResult{Audio: []byte("mp3-bytes"), Alignment: alignment}, nil
}

// testServer wraps the API server with its collaborators for tests.
type testServer struct {
	*Server
	api       humatest.TestAPI
	reader    *fakeReaderClient
	artifacts *artifacts.Store
	search    *search.Index
}

func setupTestServer(t *testing.T) *testServer {
	return setupTestServerTTL(t, 30*time.Minute)
}

func setupTestServerTTL(t *testing.T, sessionTTL time.Duration) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	art, err := artifacts.New(t.TempDir(), logger)
	require.NoError(t, err)

	db, err := store.New(t.TempDir(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	idx, err := search.NewIndex(search.Options{DataPath: t.TempDir(), Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	readerClient := newFakeReaderClient()
	sessions := session.New(readerClient, sessionTTL, logger)
	tracker := coverage.New(art, logger)
	runner := pipeline.New(
		readerClient, fakeRecognizer{}, tts.NewRegistry(fakeSynthesizer{}),
		art, tracker, db,
		benchmark.NewAligner(5), idx, logger,
	)

	services := &Services{
		Sessions: sessions,
		Books:    service.NewBookService(readerClient, logger),
		Runner:   runner,
		Tracker:  tracker,
		Search:   idx,
	}

	s := NewServer(services, db, art, "cartesia", logger)

	return &testServer{
		Server:    s,
		api:       humatest.Wrap(t, s.api),
		reader:    readerClient,
		artifacts: art,
		search:    idx,
	}
}

// login creates a session through the API and returns its id.
func (ts *testServer) login(t *testing.T) string {
	t.Helper()

	resp := ts.api.Post("/api/v1/auth/login", map[string]any{
		"email":    "ishmael@pequod.sea",
		"password": "hunter2hunter2",
	})
	require.Equal(t, http.StatusOK, resp.Code, "login failed: %s", resp.Body.String())

	var envelope testEnvelope[SessionResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	require.NotEmpty(t, envelope.Data.SessionID)
	return envelope.Data.SessionID
}

// narrate runs one narration through the API and returns the response.
func (ts *testServer) narrate(t *testing.T, sessionID, asin string, body map[string]any) NarrationResponse {
	t.Helper()

	resp := ts.api.Post("/api/v1/books/"+asin+"/narration",
		"Authorization: Bearer "+sessionID, body)
	require.Equal(t, http.StatusOK, resp.Code, "narration failed: %s", resp.Body.String())

	var envelope testEnvelope[NarrationResponse]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Data
}

func decodeErrorEnvelope(t *testing.T, body []byte) testErrorEnvelope {
	t.Helper()
	var envelope testErrorEnvelope
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope
}
