// Package benchmark turns provider word timings into the fixed-interval
// checkpoint timeline persisted next to each chunk's audio, and answers
// time-to-position lookups against a built timeline.
package benchmark

import (
	"math"
	"strings"

	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
)

// DefaultIntervalSeconds is the checkpoint spacing used when none is
// configured. Five seconds keeps seek resolution useful without bloating the
// persisted document.
const DefaultIntervalSeconds = 5.0

// Aligner builds benchmark timelines at a fixed sample interval.
type Aligner struct {
	interval float64
}

// NewAligner creates an aligner. A non-positive interval falls back to the
// default.
func NewAligner(intervalSeconds float64) *Aligner {
	if intervalSeconds <= 0 {
		intervalSeconds = DefaultIntervalSeconds
	}
	return &Aligner{interval: intervalSeconds}
}

// Build produces the benchmark payload for one synthesized chunk. Words are
// bucketed by start time into interval slots; each occupied slot becomes one
// entry whose character window spans the slot's first and last word, and whose
// position-id bounds are linearly interpolated from character offsets across
// the chunk's position range.
func (a *Aligner) Build(text string, alignment domain.WordAlignment, span domain.PositionRange, provider string) (*domain.BenchmarkPayload, error) {
	if provider == "" {
		return nil, errors.Validation("tts provider is required")
	}
	if err := span.Validate(); err != nil {
		return nil, err
	}
	if len(alignment.Words) == 0 {
		return nil, errors.Validation("word alignment is empty")
	}
	if len(alignment.Words) != len(alignment.WordStartTimes) || len(alignment.Words) != len(alignment.WordEndTimes) {
		return nil, errors.DataIntegrity("word alignment arrays have mismatched lengths")
	}

	offsets, err := wordOffsets(text, alignment.Words)
	if err != nil {
		return nil, err
	}

	totalChars := len(text)
	payload := &domain.BenchmarkPayload{
		TotalDurationSeconds:     alignment.Duration(),
		BenchmarkIntervalSeconds: a.interval,
		TTSProvider:              provider,
	}

	slot := -1
	for i := range alignment.Words {
		wordSlot := int(alignment.WordStartTimes[i] / a.interval)
		if wordSlot == slot {
			// Extend the current entry to cover this word.
			last := &payload.Benchmarks[len(payload.Benchmarks)-1]
			last.CharIndexEnd = offsets[i].end
			continue
		}

		slot = wordSlot
		payload.Benchmarks = append(payload.Benchmarks, domain.BenchmarkEntry{
			TimeSeconds:    float64(wordSlot) * a.interval,
			CharIndexStart: offsets[i].start,
			CharIndexEnd:   offsets[i].end,
		})
	}

	for i := range payload.Benchmarks {
		e := &payload.Benchmarks[i]
		e.TextOriginal = text[e.CharIndexStart:e.CharIndexEnd]
		e.TextNormalized = NormalizeText(e.TextOriginal)
		e.KindlePositionIDStart = interpolatePosition(e.CharIndexStart, totalChars, span)
		e.KindlePositionIDEnd = interpolatePosition(e.CharIndexEnd, totalChars, span)
	}
	return payload, nil
}

// Summary builds the durable result record for a finished synthesis run.
func (a *Aligner) Summary(payload *domain.BenchmarkPayload, asin, chunkID string, span domain.PositionRange, textLength int, audioPath, alignmentPath, benchmarksPath, sourceTextPath string) domain.ChunkAudioSummary {
	return domain.ChunkAudioSummary{
		ASIN:                     asin,
		ChunkID:                  chunkID,
		AudioPath:                audioPath,
		AlignmentPath:            alignmentPath,
		BenchmarksPath:           benchmarksPath,
		SourceTextPath:           sourceTextPath,
		TextLength:               textLength,
		TotalDurationSeconds:     payload.TotalDurationSeconds,
		BenchmarkIntervalSeconds: payload.BenchmarkIntervalSeconds,
		TTSProvider:              payload.TTSProvider,
		StartPositionID:          span.Start,
		EndPositionID:            span.End,
	}
}

type charWindow struct {
	start int
	end   int
}

// wordOffsets locates each aligned word in the source text, scanning forward
// from the previous match. Providers echo the words in order, so a simple
// cursor walk suffices; a word the text does not contain is a provider
// contract violation.
func wordOffsets(text string, words []string) ([]charWindow, error) {
	offsets := make([]charWindow, len(words))
	cursor := 0
	for i, word := range words {
		idx := strings.Index(text[cursor:], word)
		if idx < 0 {
			return nil, errors.Providerf("aligned word %q not found in source text", word)
		}
		start := cursor + idx
		offsets[i] = charWindow{start: start, end: start + len(word)}
		cursor = offsets[i].end
	}
	return offsets, nil
}

// interpolatePosition maps a character offset to a position id by linear
// interpolation across the chunk's closed position range.
func interpolatePosition(charIndex, totalChars int, span domain.PositionRange) int64 {
	if totalChars <= 0 {
		return span.Start
	}
	frac := float64(charIndex) / float64(totalChars)
	if frac > 1 {
		frac = 1
	}
	return span.Start + int64(math.Round(frac*float64(span.End-span.Start)))
}
