package artifacts

import (
	"encoding/json/v2"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	return s
}

func TestLayoutPaths(t *testing.T) {
	s := setupTestStore(t)

	asin := "B00TESTASIN"
	chunkID := "chunk_pid_100_200"

	assert.Equal(t, filepath.Join(s.Root(), asin, "coverage.json"), s.CoveragePath(asin))
	assert.Equal(t,
		filepath.Join(s.Root(), asin, "chunks", chunkID, "pages", "page_0003.png"),
		s.PagePath(asin, chunkID, 3))
	assert.Equal(t,
		filepath.Join(s.Root(), asin, "chunks", chunkID, "full-content.txt"),
		s.CombinedTextPath(asin, chunkID))
	assert.Equal(t,
		filepath.Join(s.Root(), asin, "chunks", chunkID, "audio", "cartesia.mp3"),
		s.AudioPath(asin, chunkID, "cartesia"))
	assert.Equal(t,
		filepath.Join(s.Root(), asin, "chunks", chunkID, "audio", "elevenlabs-benchmarks.json"),
		s.BenchmarksPath(asin, chunkID, "elevenlabs"))
}

func TestCombinedTextRoundTrip(t *testing.T) {
	s := setupTestStore(t)

	assert.False(t, s.HasCombinedText("B00X", "chunk_pid_0_10"))

	path, err := s.WriteCombinedText("B00X", "chunk_pid_0_10", "page one\n\npage two")
	require.NoError(t, err)
	assert.True(t, s.HasCombinedText("B00X", "chunk_pid_0_10"))
	assert.FileExists(t, path)

	text, err := s.ReadCombinedText("B00X", "chunk_pid_0_10")
	require.NoError(t, err)
	assert.Equal(t, "page one\n\npage two", text)
}

func TestReadCombinedText_NotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.ReadCombinedText("B00X", "chunk_pid_0_10")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestBenchmarkPayloadRoundTrip(t *testing.T) {
	s := setupTestStore(t)

	payload := &domain.BenchmarkPayload{
		TotalDurationSeconds:     12.5,
		BenchmarkIntervalSeconds: 5,
		TTSProvider:              "cartesia",
		Benchmarks: []domain.BenchmarkEntry{
			{TimeSeconds: 0, CharIndexStart: 0, CharIndexEnd: 40, KindlePositionIDStart: 100, KindlePositionIDEnd: 140, TextOriginal: "Call me Ishmael.", TextNormalized: "call me ishmael."},
			{TimeSeconds: 5, CharIndexStart: 40, CharIndexEnd: 90, KindlePositionIDStart: 140, KindlePositionIDEnd: 190, TextOriginal: "Some years ago", TextNormalized: "some years ago"},
		},
	}

	_, err := s.WriteBenchmarks("B00X", "chunk_pid_100_200", "cartesia", payload)
	require.NoError(t, err)

	got, err := s.ReadBenchmarks("B00X", "chunk_pid_100_200", "cartesia")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestParseBenchmarkPayload_MissingTotalDuration(t *testing.T) {
	data := []byte(`{"benchmarkIntervalSeconds": 5, "benchmarks": [], "ttsProvider": "cartesia"}`)
	_, err := ParseBenchmarkPayload(data)
	assert.True(t, errors.Is(err, errors.ErrDataIntegrity))
}

func TestParseBenchmarkPayload_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{]`},
		{"missing interval", `{"totalDurationSeconds": 1, "benchmarks": [], "ttsProvider": "x"}`},
		{"missing benchmarks", `{"totalDurationSeconds": 1, "benchmarkIntervalSeconds": 5, "ttsProvider": "x"}`},
		{"missing provider", `{"totalDurationSeconds": 1, "benchmarkIntervalSeconds": 5, "benchmarks": []}`},
		{"zero interval", `{"totalDurationSeconds": 1, "benchmarkIntervalSeconds": 0, "benchmarks": [], "ttsProvider": "x"}`},
		{"unsorted entries", `{"totalDurationSeconds": 10, "benchmarkIntervalSeconds": 5, "ttsProvider": "x",
			"benchmarks": [{"timeSeconds": 5}, {"timeSeconds": 0}]}`},
		{"inverted char window", `{"totalDurationSeconds": 10, "benchmarkIntervalSeconds": 5, "ttsProvider": "x",
			"benchmarks": [{"timeSeconds": 0, "charIndexStart": 9, "charIndexEnd": 2}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBenchmarkPayload([]byte(tt.data))
			assert.True(t, errors.Is(err, errors.ErrDataIntegrity), "got %v", err)
		})
	}
}

func TestCoverageRoundTrip(t *testing.T) {
	s := setupTestStore(t)

	meta := &domain.RendererCoverageMetadata{
		ASIN:      "B00X",
		UpdatedAt: time.Now().UTC().Truncate(time.Second),
		Ranges: []domain.CoverageRange{
			{Start: domain.PositionBound{PositionID: 0}, End: domain.PositionBound{PositionID: 100}},
			{Start: domain.PositionBound{PositionID: 150}, End: domain.PositionBound{PositionID: 300}},
		},
	}
	require.NoError(t, s.WriteCoverage(meta))

	got, err := s.ReadCoverage("B00X")
	require.NoError(t, err)
	assert.Equal(t, meta.ASIN, got.ASIN)
	require.Len(t, got.Ranges, 2)
	assert.Equal(t, int64(100), got.Ranges[0].End.PositionID)

	// No stray temp file left behind.
	_, err = os.Stat(s.CoveragePath("B00X") + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestReadCoverage_NotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.ReadCoverage("B00MISSING")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestReadCoverage_OverlappingRangesRejected(t *testing.T) {
	s := setupTestStore(t)

	meta := domain.RendererCoverageMetadata{
		ASIN: "B00X",
		Ranges: []domain.CoverageRange{
			{Start: domain.PositionBound{PositionID: 0}, End: domain.PositionBound{PositionID: 100}},
			{Start: domain.PositionBound{PositionID: 50}, End: domain.PositionBound{PositionID: 150}},
		},
	}
	data, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(s.BookDir("B00X"), 0o755))
	require.NoError(t, os.WriteFile(s.CoveragePath("B00X"), data, 0o644))

	_, err = s.ReadCoverage("B00X")
	assert.True(t, errors.Is(err, errors.ErrDataIntegrity))
}

func TestReadCoverage_TouchingRangesRejected(t *testing.T) {
	s := setupTestStore(t)

	// [0,100] and [101,200] touch and must have been merged on commit.
	meta := domain.RendererCoverageMetadata{
		ASIN: "B00X",
		Ranges: []domain.CoverageRange{
			{Start: domain.PositionBound{PositionID: 0}, End: domain.PositionBound{PositionID: 100}},
			{Start: domain.PositionBound{PositionID: 101}, End: domain.PositionBound{PositionID: 200}},
		},
	}
	data, err := json.Marshal(meta)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(s.BookDir("B00X"), 0o755))
	require.NoError(t, os.WriteFile(s.CoveragePath("B00X"), data, 0o644))

	_, err = s.ReadCoverage("B00X")
	assert.True(t, errors.Is(err, errors.ErrDataIntegrity))
}

func TestAlignmentRoundTrip(t *testing.T) {
	s := setupTestStore(t)

	alignment := domain.WordAlignment{
		Words:          []string{"Call", "me", "Ishmael."},
		WordStartTimes: []float64{0, 0.4, 0.7},
		WordEndTimes:   []float64{0.35, 0.65, 1.4},
	}
	_, err := s.WriteAlignment("B00X", "chunk_pid_0_10", "elevenlabs", alignment)
	require.NoError(t, err)

	got, err := s.ReadAlignment("B00X", "chunk_pid_0_10", "elevenlabs")
	require.NoError(t, err)
	assert.Equal(t, alignment, got)
	assert.InDelta(t, 1.4, got.Duration(), 1e-9)
}

func TestReadAlignment_MismatchedArrays(t *testing.T) {
	s := setupTestStore(t)

	path := s.AlignmentPath("B00X", "chunk_pid_0_10", "cartesia")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"words":["a","b"],"wordStartTimes":[0],"wordEndTimes":[1]}`), 0o644))

	_, err := s.ReadAlignment("B00X", "chunk_pid_0_10", "cartesia")
	assert.True(t, errors.Is(err, errors.ErrDataIntegrity))
}

func TestAudioArtifactPresence(t *testing.T) {
	s := setupTestStore(t)

	assert.False(t, s.HasAudio("B00X", "chunk_pid_0_10", "cartesia"))

	_, err := s.WriteAudio("B00X", "chunk_pid_0_10", "cartesia", []byte{0xff, 0xfb})
	require.NoError(t, err)
	// Audio alone is not enough; alignment must exist too.
	assert.False(t, s.HasAudio("B00X", "chunk_pid_0_10", "cartesia"))

	_, err = s.WriteAlignment("B00X", "chunk_pid_0_10", "cartesia", domain.WordAlignment{})
	require.NoError(t, err)
	assert.True(t, s.HasAudio("B00X", "chunk_pid_0_10", "cartesia"))

	audio, err := s.ReadAudio("B00X", "chunk_pid_0_10", "cartesia")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xfb}, audio)
}

func TestWritePage(t *testing.T) {
	s := setupTestStore(t)

	path, err := s.WritePage("B00X", "chunk_pid_0_10", 0, []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, s.PagePath("B00X", "chunk_pid_0_10", 0), path)
	assert.FileExists(t, path)
}
