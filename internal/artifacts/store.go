// Package artifacts persists pipeline outputs (rendered pages, combined text,
// audio, alignment, benchmark timelines, coverage metadata) under a
// deterministic on-disk layout keyed by ASIN, chunk, and TTS provider.
package artifacts

import (
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
)

// Store reads and writes pipeline artifacts under a single root directory.
// Absent artifacts surface as NOT_FOUND; malformed persisted JSON surfaces as
// DATA_INTEGRITY and is never repaired or defaulted.
type Store struct {
	root   string
	logger *slog.Logger
}

// New creates an artifact store rooted at path, creating the root if needed.
func New(root string, logger *slog.Logger) (*Store, error) {
	if root == "" {
		return nil, errors.Validation("artifact root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact root: %w", err)
	}
	if logger != nil {
		logger.Info("artifact store ready", "root", root)
	}
	return &Store{root: root, logger: logger}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// WritePage writes one rendered page image for a chunk.
func (s *Store) WritePage(asin, chunkID string, index int, data []byte) (string, error) {
	path := s.PagePath(asin, chunkID, index)
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// WriteCombinedText writes the combined OCR text for a chunk.
func (s *Store) WriteCombinedText(asin, chunkID, text string) (string, error) {
	path := s.CombinedTextPath(asin, chunkID)
	if err := writeFile(path, []byte(text)); err != nil {
		return "", err
	}
	return path, nil
}

// ReadCombinedText reads the combined OCR text for a chunk.
func (s *Store) ReadCombinedText(asin, chunkID string) (string, error) {
	data, err := os.ReadFile(s.CombinedTextPath(asin, chunkID))
	if os.IsNotExist(err) {
		return "", errors.NotFoundf("combined text for chunk %s not found", chunkID)
	}
	if err != nil {
		return "", fmt.Errorf("read combined text: %w", err)
	}
	return string(data), nil
}

// HasCombinedText reports whether the combined text artifact exists.
func (s *Store) HasCombinedText(asin, chunkID string) bool {
	return fileExists(s.CombinedTextPath(asin, chunkID))
}

// WriteAudio writes synthesized audio for a provider.
func (s *Store) WriteAudio(asin, chunkID, provider string, audio []byte) (string, error) {
	path := s.AudioPath(asin, chunkID, provider)
	if err := writeFile(path, audio); err != nil {
		return "", err
	}
	return path, nil
}

// ReadAudio reads synthesized audio for a provider.
func (s *Store) ReadAudio(asin, chunkID, provider string) ([]byte, error) {
	data, err := os.ReadFile(s.AudioPath(asin, chunkID, provider))
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("audio for chunk %s (%s) not found", chunkID, provider)
	}
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	return data, nil
}

// HasAudio reports whether both the audio and alignment artifacts exist for a
// provider, meaning the synthesis stage completed.
func (s *Store) HasAudio(asin, chunkID, provider string) bool {
	return fileExists(s.AudioPath(asin, chunkID, provider)) &&
		fileExists(s.AlignmentPath(asin, chunkID, provider))
}

// WriteAlignment writes the provider-native word alignment.
func (s *Store) WriteAlignment(asin, chunkID, provider string, alignment domain.WordAlignment) (string, error) {
	path := s.AlignmentPath(asin, chunkID, provider)
	data, err := json.Marshal(alignment)
	if err != nil {
		return "", fmt.Errorf("marshal alignment: %w", err)
	}
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// ReadAlignment reads the provider-native word alignment. The parallel arrays
// must be equal length; anything else is a data integrity failure.
func (s *Store) ReadAlignment(asin, chunkID, provider string) (domain.WordAlignment, error) {
	var alignment domain.WordAlignment
	data, err := os.ReadFile(s.AlignmentPath(asin, chunkID, provider))
	if os.IsNotExist(err) {
		return alignment, errors.NotFoundf("alignment for chunk %s (%s) not found", chunkID, provider)
	}
	if err != nil {
		return alignment, fmt.Errorf("read alignment: %w", err)
	}
	if err := json.Unmarshal(data, &alignment); err != nil {
		return alignment, errors.DataIntegrity("alignment JSON is malformed").WithCause(err)
	}
	if len(alignment.Words) != len(alignment.WordStartTimes) || len(alignment.Words) != len(alignment.WordEndTimes) {
		return alignment, errors.DataIntegrityf("alignment arrays disagree: %d words, %d starts, %d ends",
			len(alignment.Words), len(alignment.WordStartTimes), len(alignment.WordEndTimes))
	}
	return alignment, nil
}

// WriteBenchmarks writes the benchmark timeline payload for a provider.
func (s *Store) WriteBenchmarks(asin, chunkID, provider string, payload *domain.BenchmarkPayload) (string, error) {
	path := s.BenchmarksPath(asin, chunkID, provider)
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal benchmarks: %w", err)
	}
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// HasBenchmarks reports whether the benchmark payload exists for a provider.
func (s *Store) HasBenchmarks(asin, chunkID, provider string) bool {
	return fileExists(s.BenchmarksPath(asin, chunkID, provider))
}

// rawBenchmarkPayload mirrors BenchmarkPayload with pointer fields so missing
// required keys are detectable instead of silently defaulting to zero.
type rawBenchmarkPayload struct {
	TotalDurationSeconds     *float64                `json:"totalDurationSeconds"`
	BenchmarkIntervalSeconds *float64                `json:"benchmarkIntervalSeconds"`
	Benchmarks               []domain.BenchmarkEntry `json:"benchmarks"`
	TTSProvider              *string                 `json:"ttsProvider"`
}

// ReadBenchmarks reads and strictly validates the benchmark payload for a
// provider. Missing required numeric or array fields are a DATA_INTEGRITY
// failure; the payload is never synthesized or defaulted.
func (s *Store) ReadBenchmarks(asin, chunkID, provider string) (*domain.BenchmarkPayload, error) {
	data, err := os.ReadFile(s.BenchmarksPath(asin, chunkID, provider))
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("benchmarks for chunk %s (%s) not found", chunkID, provider)
	}
	if err != nil {
		return nil, fmt.Errorf("read benchmarks: %w", err)
	}
	return ParseBenchmarkPayload(data)
}

// ParseBenchmarkPayload strictly decodes a benchmark payload document.
func ParseBenchmarkPayload(data []byte) (*domain.BenchmarkPayload, error) {
	var raw rawBenchmarkPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.DataIntegrity("benchmark JSON is malformed").WithCause(err)
	}
	if raw.TotalDurationSeconds == nil {
		return nil, errors.DataIntegrity("benchmark payload missing totalDurationSeconds")
	}
	if raw.BenchmarkIntervalSeconds == nil {
		return nil, errors.DataIntegrity("benchmark payload missing benchmarkIntervalSeconds")
	}
	if raw.Benchmarks == nil {
		return nil, errors.DataIntegrity("benchmark payload missing benchmarks array")
	}
	if raw.TTSProvider == nil || *raw.TTSProvider == "" {
		return nil, errors.DataIntegrity("benchmark payload missing ttsProvider")
	}
	if *raw.TotalDurationSeconds < 0 || *raw.BenchmarkIntervalSeconds <= 0 {
		return nil, errors.DataIntegrityf("benchmark payload has invalid durations: total=%v interval=%v",
			*raw.TotalDurationSeconds, *raw.BenchmarkIntervalSeconds)
	}
	for i, entry := range raw.Benchmarks {
		if entry.CharIndexEnd < entry.CharIndexStart {
			return nil, errors.DataIntegrityf("benchmark entry %d has charIndexEnd < charIndexStart", i)
		}
		if entry.KindlePositionIDEnd < entry.KindlePositionIDStart {
			return nil, errors.DataIntegrityf("benchmark entry %d has positionIdEnd < positionIdStart", i)
		}
		if i > 0 && entry.TimeSeconds < raw.Benchmarks[i-1].TimeSeconds {
			return nil, errors.DataIntegrityf("benchmark entries not sorted at index %d", i)
		}
	}
	return &domain.BenchmarkPayload{
		TotalDurationSeconds:     *raw.TotalDurationSeconds,
		BenchmarkIntervalSeconds: *raw.BenchmarkIntervalSeconds,
		Benchmarks:               raw.Benchmarks,
		TTSProvider:              *raw.TTSProvider,
	}, nil
}

// ReadCoverage reads the per-ASIN coverage metadata document. Returns
// NOT_FOUND when no document exists yet; malformed or invariant-violating
// documents are DATA_INTEGRITY failures, never silently repaired.
func (s *Store) ReadCoverage(asin string) (*domain.RendererCoverageMetadata, error) {
	data, err := os.ReadFile(s.CoveragePath(asin))
	if os.IsNotExist(err) {
		return nil, errors.NotFoundf("no coverage metadata for %s", asin)
	}
	if err != nil {
		return nil, fmt.Errorf("read coverage: %w", err)
	}

	var meta domain.RendererCoverageMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.DataIntegrity("coverage JSON is malformed").WithCause(err)
	}
	if meta.ASIN != asin {
		return nil, errors.DataIntegrityf("coverage document is for %q, expected %q", meta.ASIN, asin)
	}
	if err := validateCoverageRanges(meta.Ranges); err != nil {
		return nil, err
	}
	return &meta, nil
}

// WriteCoverage atomically replaces the per-ASIN coverage document.
// Temp-file-and-rename so a crash mid-write never leaves a torn document.
func (s *Store) WriteCoverage(meta *domain.RendererCoverageMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal coverage: %w", err)
	}

	path := s.CoveragePath(meta.ASIN)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create book dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write coverage temp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace coverage: %w", err)
	}
	return nil
}

// validateCoverageRanges enforces the sorted, disjoint, non-touching
// registry invariant on a persisted range list.
func validateCoverageRanges(ranges []domain.CoverageRange) error {
	for i, r := range ranges {
		if r.End.PositionID < r.Start.PositionID {
			return errors.DataIntegrityf("coverage range %d is inverted: %d > %d", i, r.Start.PositionID, r.End.PositionID)
		}
		if i > 0 {
			prev := ranges[i-1]
			// Adjacent ranges must have been merged; a gap of at least one
			// position id is required between stored ranges.
			if r.Start.PositionID <= prev.End.PositionID+1 {
				return errors.DataIntegrityf("coverage ranges %d and %d overlap or touch", i-1, i)
			}
		}
	}
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
