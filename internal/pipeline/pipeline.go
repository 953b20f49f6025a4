// Package pipeline orchestrates narration production for position ranges:
// page extraction, OCR, text combination, speech synthesis, benchmark
// alignment, and the final coverage commit. Identical in-flight requests are
// deduplicated; interrupted runs resume from whatever artifacts already
// exist on disk.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pagevoice/pagevoice-server/internal/artifacts"
	"github.com/pagevoice/pagevoice-server/internal/benchmark"
	"github.com/pagevoice/pagevoice-server/internal/coverage"
	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
	"github.com/pagevoice/pagevoice-server/internal/ocr"
	"github.com/pagevoice/pagevoice-server/internal/reader"
	"github.com/pagevoice/pagevoice-server/internal/store"
	"github.com/pagevoice/pagevoice-server/internal/tts"
)

// Stage names, in pipeline order.
const (
	StageRequested    = "requested"
	StageExtracted    = "extracted"
	StageRecognized   = "recognized"
	StageTextCombined = "text_combined"
	StageSynthesized  = "synthesized"
	StageAligned      = "aligned"
	StageBenchmarked  = "benchmarked"
	StageCommitted    = "committed"
)

const (
	// Extraction retry policy for transient reader failures.
	maxExtractAttempts = 3
	baseBackoff        = 250 * time.Millisecond

	// Bounded fan-out for per-page OCR.
	ocrConcurrency = 4
)

// Indexer receives each chunk's combined text for full-text search. Optional.
type Indexer interface {
	IndexChunk(ctx context.Context, asin, chunkID, provider, text string) error
}

// Request is one narration job for a position range of a book.
type Request struct {
	ASIN     string
	Range    domain.PositionRange
	Provider string
	Handle   reader.Handle
	Options  tts.SpeechOptions

	// PinnedStart overrides the interpolation start position id when resuming
	// a partially generated chunk. Nil uses each gap's own start.
	PinnedStart *int64
}

// ChunkResult records the outcome for one produced or reused chunk.
type ChunkResult struct {
	ChunkID         string   `json:"chunkId"`
	StagesCompleted []string `json:"stagesCompleted"`
	DurationSeconds float64  `json:"durationSeconds"`
	AudioPath       string   `json:"audioPath"`
	BenchmarksPath  string   `json:"benchmarksPath"`
	Reused          bool     `json:"reused"`
}

// Result is the outcome of one narration run.
type Result struct {
	RunID       string               `json:"runId"`
	ASIN        string               `json:"asin"`
	Range       domain.PositionRange `json:"range"`
	FullyReused bool                 `json:"fullyReused"`
	Chunks      []ChunkResult        `json:"chunks"`
}

// Runner executes narration pipelines.
type Runner struct {
	reader    reader.Client
	ocr       ocr.Recognizer
	tts       *tts.Registry
	artifacts *artifacts.Store
	tracker   *coverage.Tracker
	store     *store.Store
	aligner   *benchmark.Aligner
	indexer   Indexer
	logger    *slog.Logger

	group singleflight.Group
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a pipeline runner. indexer may be nil.
func New(
	readerClient reader.Client,
	recognizer ocr.Recognizer,
	registry *tts.Registry,
	artifactStore *artifacts.Store,
	tracker *coverage.Tracker,
	db *store.Store,
	aligner *benchmark.Aligner,
	indexer Indexer,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		reader:    readerClient,
		ocr:       recognizer,
		tts:       registry,
		artifacts: artifactStore,
		tracker:   tracker,
		store:     db,
		aligner:   aligner,
		indexer:   indexer,
		logger:    logger,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Narrate produces audio for the requested range. Already-covered spans are
// reused; each uncovered gap runs the full pipeline and is committed to the
// coverage registry as it completes.
func (r *Runner) Narrate(ctx context.Context, req Request) (*Result, error) {
	if req.ASIN == "" {
		return nil, errors.Validation("asin is required")
	}
	if err := req.Range.Validate(); err != nil {
		return nil, err
	}
	if _, err := r.tts.Resolve(req.Provider); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	res, err := r.tracker.Resolve(req.ASIN, req.Range)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:       runID,
		ASIN:        req.ASIN,
		Range:       req.Range,
		FullyReused: res.FullyCovered(),
	}

	if r.logger != nil {
		r.logger.Info("narration run started",
			"run_id", runID,
			"asin", req.ASIN,
			"range", req.Range.String(),
			"provider", req.Provider,
			"gaps", len(res.Gaps),
			"reusable", len(res.Reusable),
		)
	}

	for _, span := range res.Reusable {
		chunks, err := r.reuseChunks(ctx, req, span)
		if err != nil {
			return nil, err
		}
		result.Chunks = append(result.Chunks, chunks...)
	}

	for _, gap := range res.Gaps {
		chunk, err := r.produceChunk(ctx, req, gap)
		if err != nil {
			return nil, err
		}
		result.Chunks = append(result.Chunks, chunk)
	}

	return result, nil
}

// reuseChunks materializes results for an already-covered span. Coverage
// ranges merge as gaps fill, so the span may be backed by several stored
// chunks; reuse resolves against the per-chunk summaries, never against a
// chunk id derived from the merged range. A constituent missing this
// provider's audio is produced over its own range, resuming from the
// combined text already on disk.
func (r *Runner) reuseChunks(ctx context.Context, req Request, span coverage.ReusableSpan) ([]ChunkResult, error) {
	summaries, err := r.store.ListChunkSummaries(ctx, req.ASIN)
	if err != nil {
		return nil, err
	}

	type constituent struct {
		span  domain.PositionRange
		match *domain.ChunkAudioSummary
	}
	byChunk := make(map[string]*constituent)
	var order []string
	for i := range summaries {
		s := &summaries[i]
		if s.EndPositionID < span.Span.Start || s.StartPositionID > span.Span.End {
			continue
		}
		c, ok := byChunk[s.ChunkID]
		if !ok {
			c = &constituent{span: domain.PositionRange{Start: s.StartPositionID, End: s.EndPositionID}}
			byChunk[s.ChunkID] = c
			order = append(order, s.ChunkID)
		}
		if s.TTSProvider == req.Provider {
			c.match = s
		}
	}

	if len(order) == 0 {
		// The registry covers the span but no summary survives in the store.
		// Re-produce the covering range; artifact-presence resume skips
		// whatever still exists on disk.
		chunk, err := r.produceChunk(ctx, req, span.Source.Range())
		if err != nil {
			return nil, err
		}
		return []ChunkResult{chunk}, nil
	}

	sort.Slice(order, func(i, j int) bool {
		return byChunk[order[i]].span.Start < byChunk[order[j]].span.Start
	})

	out := make([]ChunkResult, 0, len(order))
	for _, chunkID := range order {
		c := byChunk[chunkID]
		if c.match == nil {
			// Text coverage exists but this provider's audio does not.
			// Producing the constituent's own range lands the new audio in
			// the existing chunk directory without re-extracting text.
			chunk, err := r.produceChunk(ctx, req, c.span)
			if err != nil {
				return nil, err
			}
			out = append(out, chunk)
			continue
		}
		out = append(out, ChunkResult{
			ChunkID:         c.match.ChunkID,
			StagesCompleted: []string{StageRequested, StageCommitted},
			DurationSeconds: c.match.TotalDurationSeconds,
			AudioPath:       c.match.AudioPath,
			BenchmarksPath:  c.match.BenchmarksPath,
			Reused:          true,
		})
	}
	return out, nil
}

// produceChunk runs the pipeline for one gap. Concurrent identical requests
// share a single execution.
func (r *Runner) produceChunk(ctx context.Context, req Request, gap domain.PositionRange) (ChunkResult, error) {
	key := req.ASIN + "|" + gap.ChunkID() + "|" + req.Provider
	v, err, shared := r.group.Do(key, func() (any, error) {
		return r.runStages(ctx, req, gap)
	})
	if err != nil {
		return ChunkResult{}, err
	}
	chunk := v.(ChunkResult)
	if shared && r.logger != nil {
		r.logger.Debug("narration request deduplicated", "key", key)
	}
	return chunk, nil
}

func (r *Runner) runStages(ctx context.Context, req Request, gap domain.PositionRange) (ChunkResult, error) {
	chunkID := gap.ChunkID()
	chunk := ChunkResult{
		ChunkID:         chunkID,
		StagesCompleted: []string{StageRequested},
	}

	text, pageCount, err := r.extractText(ctx, req, gap, &chunk)
	if err != nil {
		return ChunkResult{}, err
	}

	speechText := text
	if !req.Options.SkipNormalization {
		speechText = normalizeForSpeech(text)
	}
	if req.Options.MaxDurationSeconds > 0 {
		speechText = capForDuration(speechText, req.Options.MaxDurationSeconds)
	}

	synth, err := r.resolveSynthesizer(req.Provider)
	if err != nil {
		return ChunkResult{}, err
	}

	audioPath, alignment, err := r.synthesize(ctx, synth, req, chunkID, speechText, &chunk)
	if err != nil {
		return ChunkResult{}, err
	}
	chunk.AudioPath = audioPath

	payload, benchmarksPath, err := r.buildBenchmarks(req, chunkID, gap, speechText, alignment, &chunk)
	if err != nil {
		return ChunkResult{}, err
	}
	chunk.BenchmarksPath = benchmarksPath
	chunk.DurationSeconds = payload.TotalDurationSeconds

	if err := r.commit(ctx, req, gap, chunkID, text, speechText, pageCount, payload, audioPath, benchmarksPath); err != nil {
		return ChunkResult{}, err
	}
	chunk.StagesCompleted = append(chunk.StagesCompleted, StageCommitted)

	if r.logger != nil {
		r.logger.Info("chunk produced",
			"asin", req.ASIN,
			"chunk_id", chunkID,
			"provider", req.Provider,
			"duration_seconds", payload.TotalDurationSeconds,
		)
	}
	return chunk, nil
}

// extractText yields the chunk's combined text, fetching and recognizing
// pages unless a previous run already left the combined text on disk.
func (r *Runner) extractText(ctx context.Context, req Request, gap domain.PositionRange, chunk *ChunkResult) (string, int, error) {
	chunkID := gap.ChunkID()

	if r.artifacts.HasCombinedText(req.ASIN, chunkID) {
		text, err := r.artifacts.ReadCombinedText(req.ASIN, chunkID)
		if err != nil {
			return "", 0, err
		}
		if r.logger != nil {
			r.logger.Debug("combined text resumed from disk", "asin", req.ASIN, "chunk_id", chunkID)
		}
		chunk.StagesCompleted = append(chunk.StagesCompleted, StageExtracted, StageRecognized, StageTextCombined)
		return text, 0, nil
	}

	pages, err := r.fetchPagesWithRetry(ctx, req, gap)
	if err != nil {
		return "", 0, err
	}
	if len(pages) == 0 {
		return "", 0, errors.Providerf("reader returned no pages for %s", gap.String())
	}
	for _, page := range pages {
		if _, err := r.artifacts.WritePage(req.ASIN, chunkID, page.Index, page.Image); err != nil {
			return "", 0, err
		}
	}
	chunk.StagesCompleted = append(chunk.StagesCompleted, StageExtracted)

	texts, err := r.recognizePages(ctx, pages)
	if err != nil {
		return "", 0, err
	}
	chunk.StagesCompleted = append(chunk.StagesCompleted, StageRecognized)

	text := strings.TrimSpace(strings.Join(texts, "\n\n"))
	if text == "" {
		return "", 0, errors.Provider("ocr produced no text for any page")
	}
	if _, err := r.artifacts.WriteCombinedText(req.ASIN, chunkID, text); err != nil {
		return "", 0, err
	}
	chunk.StagesCompleted = append(chunk.StagesCompleted, StageTextCombined)

	return text, len(pages), nil
}

// fetchPagesWithRetry calls the reader with exponential backoff on transient
// failures. A stale session aborts immediately; retrying cannot fix it.
func (r *Runner) fetchPagesWithRetry(ctx context.Context, req Request, gap domain.PositionRange) ([]reader.Page, error) {
	var lastErr error
	for attempt := 0; attempt < maxExtractAttempts; attempt++ {
		if attempt > 0 {
			delay := baseBackoff << (attempt - 1)
			if r.logger != nil {
				r.logger.Warn("page extraction retry",
					"asin", req.ASIN,
					"attempt", attempt+1,
					"delay", delay,
					"error", lastErr,
				)
			}
			if err := r.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		pages, err := r.reader.FetchPageRange(ctx, req.Handle, req.ASIN, gap.Start, gap.End)
		if err == nil {
			return pages, nil
		}
		if errors.Is(err, errors.ErrSessionExpired) || !errors.IsTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("page extraction failed after %d attempts: %w", maxExtractAttempts, lastErr)
}

// recognizePages runs OCR across pages with bounded concurrency, preserving
// page order in the output.
func (r *Runner) recognizePages(ctx context.Context, pages []reader.Page) ([]string, error) {
	texts := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ocrConcurrency)

	for i, page := range pages {
		g.Go(func() error {
			text, err := r.ocr.Recognize(gctx, page.Image)
			if err != nil {
				return fmt.Errorf("recognize page %d: %w", page.Index, err)
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}

func (r *Runner) resolveSynthesizer(provider string) (tts.Synthesizer, error) {
	return r.tts.Resolve(provider)
}

// synthesize produces audio and word alignment, reusing both when a prior run
// already wrote them.
func (r *Runner) synthesize(ctx context.Context, synth tts.Synthesizer, req Request, chunkID, text string, chunk *ChunkResult) (string, domain.WordAlignment, error) {
	asin := req.ASIN
	if r.artifacts.HasAudio(asin, chunkID, synth.Name()) {
		alignment, err := r.artifacts.ReadAlignment(asin, chunkID, synth.Name())
		if err != nil {
			return "", domain.WordAlignment{}, err
		}
		if r.logger != nil {
			r.logger.Debug("audio resumed from disk", "asin", asin, "chunk_id", chunkID, "provider", synth.Name())
		}
		chunk.StagesCompleted = append(chunk.StagesCompleted, StageSynthesized, StageAligned)
		return r.artifacts.AudioPath(asin, chunkID, synth.Name()), alignment, nil
	}

	speech, err := synth.Synthesize(ctx, tts.SpeechRequest{Text: text, Options: req.Options})
	if err != nil {
		return "", domain.WordAlignment{}, err
	}
	audioPath, err := r.artifacts.WriteAudio(asin, chunkID, synth.Name(), speech.Audio)
	if err != nil {
		return "", domain.WordAlignment{}, err
	}
	chunk.StagesCompleted = append(chunk.StagesCompleted, StageSynthesized)

	if _, err := r.artifacts.WriteAlignment(asin, chunkID, synth.Name(), speech.Alignment); err != nil {
		return "", domain.WordAlignment{}, err
	}
	chunk.StagesCompleted = append(chunk.StagesCompleted, StageAligned)

	return audioPath, speech.Alignment, nil
}

// buildBenchmarks derives the checkpoint timeline, reusing a previously
// persisted payload when present.
func (r *Runner) buildBenchmarks(req Request, chunkID string, gap domain.PositionRange, text string, alignment domain.WordAlignment, chunk *ChunkResult) (*domain.BenchmarkPayload, string, error) {
	if r.artifacts.HasBenchmarks(req.ASIN, chunkID, req.Provider) {
		payload, err := r.artifacts.ReadBenchmarks(req.ASIN, chunkID, req.Provider)
		if err != nil {
			return nil, "", err
		}
		chunk.StagesCompleted = append(chunk.StagesCompleted, StageBenchmarked)
		return payload, r.artifacts.BenchmarksPath(req.ASIN, chunkID, req.Provider), nil
	}

	span := gap
	if req.PinnedStart != nil {
		span.Start = *req.PinnedStart
	}
	payload, err := r.aligner.Build(text, alignment, span, req.Provider)
	if err != nil {
		return nil, "", err
	}
	benchmarksPath, err := r.artifacts.WriteBenchmarks(req.ASIN, chunkID, req.Provider, payload)
	if err != nil {
		return nil, "", err
	}
	chunk.StagesCompleted = append(chunk.StagesCompleted, StageBenchmarked)
	return payload, benchmarksPath, nil
}

// speechCharsPerSecond is the narration rate assumed when capping text length
// to a requested maximum duration. Roughly 180 words per minute.
const speechCharsPerSecond = 15.0

// normalizeForSpeech collapses whitespace runs so page breaks and layout
// artifacts do not read as pauses.
func normalizeForSpeech(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// capForDuration truncates text at a word boundary so the synthesized audio
// stays under the requested duration.
func capForDuration(text string, seconds float64) string {
	limit := int(seconds * speechCharsPerSecond)
	if limit <= 0 || len(text) <= limit {
		return text
	}
	if cut := strings.LastIndexByte(text[:limit], ' '); cut > 0 {
		return text[:cut]
	}
	// No word boundary before the limit. Back up to a rune boundary so the
	// cut never splits a multi-byte character.
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	return text[:limit]
}

// commit persists the durable summary, registers the range in the coverage
// registry, and feeds the search index. The summary records the length of
// speechText, the text the benchmarks' character offsets index into.
// Coverage is committed last so a crash mid-commit never registers a range
// whose artifacts are missing.
func (r *Runner) commit(ctx context.Context, req Request, gap domain.PositionRange, chunkID, text, speechText string, pageCount int, payload *domain.BenchmarkPayload, audioPath, benchmarksPath string) error {
	summary := r.aligner.Summary(payload, req.ASIN, chunkID, gap, len(speechText),
		audioPath,
		r.artifacts.AlignmentPath(req.ASIN, chunkID, req.Provider),
		benchmarksPath,
		r.artifacts.CombinedTextPath(req.ASIN, chunkID),
	)
	if err := r.store.SaveChunkSummary(ctx, &summary); err != nil {
		return err
	}

	covered := domain.CoverageRange{
		Start: domain.PositionBound{PositionID: gap.Start},
		End:   domain.PositionBound{PositionID: gap.End},
		Pages: domain.PageSummary{Count: pageCount},
		Artifacts: domain.ArtifactSet{
			PagesDir:         r.artifacts.PagesDir(req.ASIN, chunkID),
			CombinedTextPath: r.artifacts.CombinedTextPath(req.ASIN, chunkID),
			Audio: map[string]domain.AudioArtifacts{
				req.Provider: {
					AudioPath:      audioPath,
					AlignmentPath:  r.artifacts.AlignmentPath(req.ASIN, chunkID, req.Provider),
					BenchmarksPath: benchmarksPath,
				},
			},
		},
	}
	if err := r.tracker.Commit(req.ASIN, covered); err != nil {
		return err
	}

	if r.indexer != nil {
		if err := r.indexer.IndexChunk(ctx, req.ASIN, chunkID, req.Provider, text); err != nil {
			// Search is best-effort; a failed index update must not fail the run.
			if r.logger != nil {
				r.logger.Warn("chunk index update failed", "asin", req.ASIN, "chunk_id", chunkID, "error", err)
			}
		}
	}
	return nil
}
