package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/pipeline"
	"github.com/pagevoice/pagevoice-server/internal/tts"
)

// defaultNarrationSpan is the position-id span narrated when the request
// omits an ending position. Roughly a dozen rendered pages.
const defaultNarrationSpan = 2000

func (s *Server) registerNarrationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "narrate",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{asin}/narration",
		Summary:     "Narrate a position range",
		Description: "Runs the narration pipeline for the requested range, reusing already-covered spans",
		Tags:        []string{"Narration"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleNarrate)
}

// === DTOs ===

// NarrationOptions tune a single narration request.
type NarrationOptions struct {
	Voice              string  `json:"voice,omitempty" validate:"omitempty,max=100" doc:"Provider voice id override"`
	Speed              float64 `json:"speed,omitempty" validate:"omitempty,gt=0,lte=3" doc:"Playback-rate multiplier"`
	SkipNormalization  bool    `json:"skip_normalization,omitempty" doc:"Send text to the provider verbatim"`
	MaxDurationSeconds float64 `json:"max_duration_seconds,omitempty" validate:"omitempty,gt=0" doc:"Cap synthesized audio length"`
	PinnedStart        *string `json:"pinned_start_position,omitempty" doc:"Interpolation start override when resuming a partial chunk"`
}

// NarrationRequest is the request body for a narration run.
type NarrationRequest struct {
	StartingPosition string           `json:"starting_position" validate:"required,max=32" doc:"Start position, plain id or major;minor form"`
	EndingPosition   string           `json:"ending_position,omitempty" validate:"omitempty,max=32" doc:"End position; defaults to start plus a standard span"`
	AudioProvider    string           `json:"audio_provider,omitempty" validate:"omitempty,oneof=cartesia elevenlabs" doc:"TTS provider; server default when omitted"`
	Options          NarrationOptions `json:"options,omitempty" doc:"Synthesis options"`
}

// NarrationInput wraps the narration request for Huma.
type NarrationInput struct {
	ASIN string `path:"asin" maxLength:"32" doc:"Book ASIN"`
	Body NarrationRequest
}

// NarrationChunk describes one produced or reused chunk in the response.
type NarrationChunk struct {
	ChunkID         string   `json:"chunk_id" doc:"Deterministic chunk identifier"`
	StagesCompleted []string `json:"stages_completed" doc:"Pipeline stages completed, in order"`
	DurationSeconds float64  `json:"duration_seconds" doc:"Synthesized audio length"`
	AudioURL        string   `json:"audio_url" doc:"Download URL for the audio"`
	BenchmarksURL   string   `json:"benchmarks_url" doc:"Download URL for the benchmark timeline"`
	Reused          bool     `json:"reused" doc:"Whether the chunk came from existing coverage"`
}

// NarrationResponse is the outcome of one narration run.
type NarrationResponse struct {
	RunID           string           `json:"run_id" doc:"Unique id for this run"`
	ASIN            string           `json:"asin" doc:"Book ASIN"`
	StartPositionID int64            `json:"start_position_id" doc:"Normalized start position id"`
	EndPositionID   int64            `json:"end_position_id" doc:"Normalized end position id"`
	FullyReused     bool             `json:"fully_reused" doc:"Whether no new audio had to be produced"`
	Chunks          []NarrationChunk `json:"chunks" doc:"Per-chunk results"`
}

// NarrationOutput wraps the narration response for Huma.
type NarrationOutput struct {
	Body NarrationResponse
}

// === Handlers ===

func (s *Server) handleNarrate(ctx context.Context, input *NarrationInput) (*NarrationOutput, error) {
	sess, err := s.requireSession(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	start, err := domain.NormalizePosition(input.Body.StartingPosition)
	if err != nil {
		return nil, err
	}

	end := start + defaultNarrationSpan
	if input.Body.EndingPosition != "" {
		end, err = domain.NormalizePosition(input.Body.EndingPosition)
		if err != nil {
			return nil, err
		}
	}

	provider := input.Body.AudioProvider
	if provider == "" {
		provider = s.defaultProvider
	}

	req := pipeline.Request{
		ASIN:     input.ASIN,
		Range:    domain.PositionRange{Start: start, End: end},
		Provider: provider,
		Handle:   sess.Handle,
		Options: tts.SpeechOptions{
			Voice:              input.Body.Options.Voice,
			Speed:              input.Body.Options.Speed,
			SkipNormalization:  input.Body.Options.SkipNormalization,
			MaxDurationSeconds: input.Body.Options.MaxDurationSeconds,
		},
	}

	if input.Body.Options.PinnedStart != nil {
		pinned, err := domain.NormalizePosition(*input.Body.Options.PinnedStart)
		if err != nil {
			return nil, err
		}
		req.PinnedStart = &pinned
	}

	result, err := s.services.Runner.Narrate(ctx, req)
	if err != nil {
		return nil, err
	}

	resp := NarrationResponse{
		RunID:           result.RunID,
		ASIN:            result.ASIN,
		StartPositionID: result.Range.Start,
		EndPositionID:   result.Range.End,
		FullyReused:     result.FullyReused,
		Chunks:          make([]NarrationChunk, 0, len(result.Chunks)),
	}
	for _, chunk := range result.Chunks {
		resp.Chunks = append(resp.Chunks, NarrationChunk{
			ChunkID:         chunk.ChunkID,
			StagesCompleted: chunk.StagesCompleted,
			DurationSeconds: chunk.DurationSeconds,
			AudioURL:        chunkURL(result.ASIN, chunk.ChunkID, "audio", provider),
			BenchmarksURL:   chunkURL(result.ASIN, chunk.ChunkID, "benchmarks", provider),
			Reused:          chunk.Reused,
		})
	}

	return &NarrationOutput{Body: resp}, nil
}

// chunkURL builds the download URL for a chunk artifact endpoint.
func chunkURL(asin, chunkID, kind, provider string) string {
	return fmt.Sprintf("/api/v1/books/%s/chunks/%s/%s?provider=%s", asin, chunkID, kind, provider)
}
