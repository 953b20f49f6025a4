package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/pagevoice/pagevoice-server/internal/benchmark"
	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
)

func (s *Server) registerChunkRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getChunkBenchmarks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{asin}/chunks/{chunkID}/benchmarks",
		Summary:     "Get benchmark timeline",
		Description: "Returns the chunk's time-to-position benchmark payload",
		Tags:        []string{"Chunks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetBenchmarks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getChunkPosition",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{asin}/chunks/{chunkID}/position",
		Summary:     "Look up position at playback time",
		Description: "Returns the benchmark checkpoint for a playback timestamp (scrub-to-position)",
		Tags:        []string{"Chunks"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetPosition)

	// Audio bypasses the JSON envelope: http.ServeFile gives us Range
	// requests and conditional caching for free.
	s.router.Get("/api/v1/books/{asin}/chunks/{chunkID}/audio", s.handleGetAudio)
}

// === DTOs ===

// ChunkInput identifies one chunk artifact set.
type ChunkInput struct {
	ASIN     string `path:"asin" maxLength:"32" doc:"Book ASIN"`
	ChunkID  string `path:"chunkID" maxLength:"64" doc:"Chunk identifier"`
	Provider string `query:"provider" enum:"cartesia,elevenlabs," doc:"TTS provider; server default when omitted"`
}

// PositionInput identifies a playback timestamp within a chunk.
type PositionInput struct {
	ASIN     string  `path:"asin" maxLength:"32" doc:"Book ASIN"`
	ChunkID  string  `path:"chunkID" maxLength:"64" doc:"Chunk identifier"`
	Provider string  `query:"provider" enum:"cartesia,elevenlabs," doc:"TTS provider; server default when omitted"`
	Time     float64 `query:"time" doc:"Playback time in seconds"`
}

// BenchmarksOutput wraps the benchmark payload for Huma.
type BenchmarksOutput struct {
	Body domain.BenchmarkPayload
}

// PositionResponse is the checkpoint for a playback timestamp.
type PositionResponse struct {
	TimeSeconds float64               `json:"time_seconds" doc:"Queried playback time"`
	Checkpoint  domain.BenchmarkEntry `json:"checkpoint" doc:"Nearest checkpoint at or before the query"`
}

// PositionOutput wraps the position response for Huma.
type PositionOutput struct {
	Body PositionResponse
}

// === Handlers ===

func (s *Server) handleGetBenchmarks(ctx context.Context, input *ChunkInput) (*BenchmarksOutput, error) {
	if _, err := s.requireSession(ctx); err != nil {
		return nil, err
	}

	payload, err := s.readBenchmarks(input.ASIN, input.ChunkID, input.Provider)
	if err != nil {
		return nil, err
	}

	return &BenchmarksOutput{Body: *payload}, nil
}

func (s *Server) handleGetPosition(ctx context.Context, input *PositionInput) (*PositionOutput, error) {
	if _, err := s.requireSession(ctx); err != nil {
		return nil, err
	}

	payload, err := s.readBenchmarks(input.ASIN, input.ChunkID, input.Provider)
	if err != nil {
		return nil, err
	}

	timeline, err := benchmark.NewTimeline(payload)
	if err != nil {
		return nil, err
	}

	return &PositionOutput{
		Body: PositionResponse{
			TimeSeconds: input.Time,
			Checkpoint:  timeline.CheckpointAt(input.Time),
		},
	}, nil
}

// handleGetAudio streams a chunk's audio file with HTTP Range support.
func (s *Server) handleGetAudio(w http.ResponseWriter, r *http.Request) {
	if _, err := s.requireSession(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}

	asin := chi.URLParam(r, "asin")
	chunkID := chi.URLParam(r, "chunkID")
	provider := s.resolveProvider(r.URL.Query().Get("provider"))

	path := s.artifacts.AudioPath(asin, chunkID, provider)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		s.writeError(w, errors.NotFoundf("audio for chunk %s (%s) not found", chunkID, provider))
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	// Chunk audio is immutable once committed.
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeFile(w, r, path)
}

// === Helpers ===

func (s *Server) resolveProvider(provider string) string {
	if provider == "" {
		return s.defaultProvider
	}
	return provider
}

func (s *Server) readBenchmarks(asin, chunkID, provider string) (*domain.BenchmarkPayload, error) {
	if _, err := domain.ParseChunkID(chunkID); err != nil {
		return nil, err
	}
	return s.artifacts.ReadBenchmarks(asin, chunkID, s.resolveProvider(provider))
}

// writeError renders a domain error as an enveloped JSON response for routes
// that bypass huma.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	apiErr := &APIError{status: http.StatusInternalServerError, Code: statusToCode(http.StatusInternalServerError), Message: err.Error()}

	var domainErr *errors.Error
	if errors.As(err, &domainErr) {
		apiErr = &APIError{
			status:  domainErr.HTTPStatus(),
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
			Hint:    domainErr.Hint,
			Details: domainErr.Details,
		}
	}

	envelope := APIErrorEnvelope{
		Version: EnvelopeVersion,
		Success: false,
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Hint:    apiErr.Hint,
		Details: apiErr.Details,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.status)
	if data, marshalErr := json.Marshal(envelope); marshalErr == nil {
		_, _ = w.Write(data)
	}
}
