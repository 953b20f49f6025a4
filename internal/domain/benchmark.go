package domain

// BenchmarkEntry is one checkpoint on a chunk's playback timeline. It maps a
// sample time to the character window spoken at that time and the
// interpolated position-id bounds for that window.
//
// Character offsets are the primary key; position ids are derived by linear
// interpolation and are approximate.
type BenchmarkEntry struct {
	TimeSeconds           float64 `json:"timeSeconds"`
	CharIndexStart        int     `json:"charIndexStart"`
	CharIndexEnd          int     `json:"charIndexEnd"`
	KindlePositionIDStart int64   `json:"kindlePositionIdStart"`
	KindlePositionIDEnd   int64   `json:"kindlePositionIdEnd"`
	TextNormalized        string  `json:"textNormalized"`
	TextOriginal          string  `json:"textOriginal"`
}

// BenchmarkPayload is the persisted `<provider>-benchmarks.json` document for
// one (asin, chunk, provider) tuple. Benchmarks are sorted by non-decreasing
// TimeSeconds. The shape must stay stable; existing artifact trees depend on
// it.
type BenchmarkPayload struct {
	TotalDurationSeconds     float64          `json:"totalDurationSeconds"`
	BenchmarkIntervalSeconds float64          `json:"benchmarkIntervalSeconds"`
	Benchmarks               []BenchmarkEntry `json:"benchmarks"`
	TTSProvider              string           `json:"ttsProvider"`
}

// WordAlignment is provider-native word timing output: parallel arrays of
// word tokens with their start and end times in seconds.
type WordAlignment struct {
	Words          []string  `json:"words"`
	WordStartTimes []float64 `json:"wordStartTimes"`
	WordEndTimes   []float64 `json:"wordEndTimes"`
}

// Duration returns the end time of the last word, or zero when empty.
func (a WordAlignment) Duration() float64 {
	if len(a.WordEndTimes) == 0 {
		return 0
	}
	return a.WordEndTimes[len(a.WordEndTimes)-1]
}

// ChunkAudioSummary is the durable result record for one synthesis run,
// persisted alongside the artifact files it references.
type ChunkAudioSummary struct {
	ASIN                     string  `json:"asin"`
	ChunkID                  string  `json:"chunkId"`
	AudioPath                string  `json:"audioPath"`
	AlignmentPath            string  `json:"alignmentPath"`
	BenchmarksPath           string  `json:"benchmarksPath"`
	SourceTextPath           string  `json:"sourceTextPath"`
	TextLength               int     `json:"textLength"`
	TotalDurationSeconds     float64 `json:"totalDurationSeconds"`
	BenchmarkIntervalSeconds float64 `json:"benchmarkIntervalSeconds"`
	TTSProvider              string  `json:"ttsProvider"`
	StartPositionID          int64   `json:"startPositionId"`
	EndPositionID            int64   `json:"endPositionId"`
}
