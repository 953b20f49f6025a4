package benchmark

import (
	"sort"

	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
)

// Timeline answers checkpoint lookups against one chunk's benchmark payload.
// Entries are kept sorted by TimeSeconds, so lookups are a binary search.
type Timeline struct {
	entries []domain.BenchmarkEntry
}

// NewTimeline wraps a payload's entries. Payloads loaded through the artifact
// store are already validated as sorted; payloads from any other source are
// re-checked here.
func NewTimeline(payload *domain.BenchmarkPayload) (*Timeline, error) {
	if payload == nil || len(payload.Benchmarks) == 0 {
		return nil, errors.Validation("benchmark payload has no entries")
	}
	entries := payload.Benchmarks
	if !sort.SliceIsSorted(entries, func(i, j int) bool {
		return entries[i].TimeSeconds < entries[j].TimeSeconds
	}) {
		return nil, errors.DataIntegrity("benchmark entries are not sorted by time")
	}
	return &Timeline{entries: entries}, nil
}

// CheckpointAt returns the entry with the greatest TimeSeconds not exceeding
// the query. Queries before the first entry clamp to the first; queries past
// the last clamp to the last.
func (t *Timeline) CheckpointAt(seconds float64) domain.BenchmarkEntry {
	// First index whose time is strictly greater than the query.
	idx := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].TimeSeconds > seconds
	})
	if idx == 0 {
		return t.entries[0]
	}
	return t.entries[idx-1]
}

// PositionAt returns the interpolated position-id window at the given
// playback time.
func (t *Timeline) PositionAt(seconds float64) (start, end int64) {
	e := t.CheckpointAt(seconds)
	return e.KindlePositionIDStart, e.KindlePositionIDEnd
}

// Len returns the number of checkpoints.
func (t *Timeline) Len() int {
	return len(t.entries)
}
