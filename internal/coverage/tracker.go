// Package coverage maintains the per-ASIN registry of already-produced
// position ranges. It resolves requested ranges into reusable spans and
// uncovered gaps, and merges freshly produced ranges back in.
package coverage

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pagevoice/pagevoice-server/internal/artifacts"
	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
)

// ReusableSpan is the part of a requested range already covered by a stored
// range. Span is the overlap; Source carries the artifacts to reuse.
type ReusableSpan struct {
	Span   domain.PositionRange  `json:"span"`
	Source domain.CoverageRange  `json:"source"`
}

// Resolution partitions a requested range into covered and uncovered parts.
type Resolution struct {
	Reusable []ReusableSpan         `json:"reusable"`
	Gaps     []domain.PositionRange `json:"gaps"`
}

// FullyCovered reports whether the request needs no pipeline work.
func (r Resolution) FullyCovered() bool {
	return len(r.Gaps) == 0
}

// Tracker owns every ASIN's coverage registry. Registries are persisted as
// per-ASIN coverage documents in the artifact store and cached in memory.
// All registry access is serialized per ASIN, so two gap-fills for the same
// book always commit in program order.
type Tracker struct {
	store  *artifacts.Store
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex // guards locks and cache maps only
	locks map[string]*sync.Mutex
	cache map[string]*domain.RendererCoverageMetadata
}

// New creates a tracker backed by the given artifact store.
func New(store *artifacts.Store, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
		cache:  make(map[string]*domain.RendererCoverageMetadata),
	}
}

// lockFor returns the per-ASIN mutex, creating it on first use.
func (t *Tracker) lockFor(asin string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[asin]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[asin] = lock
	}
	return lock
}

// load returns the registry for an ASIN, reading it from disk on first
// access. A missing document means an empty registry; a malformed one is a
// DATA_INTEGRITY failure surfaced to the caller. Caller must hold the ASIN
// lock.
func (t *Tracker) load(asin string) (*domain.RendererCoverageMetadata, error) {
	t.mu.Lock()
	meta, ok := t.cache[asin]
	t.mu.Unlock()
	if ok {
		return meta, nil
	}

	meta, err := t.store.ReadCoverage(asin)
	if errors.Is(err, errors.ErrNotFound) {
		meta = &domain.RendererCoverageMetadata{ASIN: asin}
	} else if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.cache[asin] = meta
	t.mu.Unlock()
	return meta, nil
}

// Coverage returns the current registry document for an ASIN. An ASIN with
// no produced ranges yields an empty document, not an error.
func (t *Tracker) Coverage(asin string) (*domain.RendererCoverageMetadata, error) {
	lock := t.lockFor(asin)
	lock.Lock()
	defer lock.Unlock()
	return t.load(asin)
}

// Resolve partitions requested into reusable spans and minimal maximal gaps.
// Closed-interval semantics: a requested boundary equal to a stored boundary
// is covered, never re-extracted. Resolve has no side effects, so repeated
// calls without an intervening Commit return identical results.
func (t *Tracker) Resolve(asin string, requested domain.PositionRange) (Resolution, error) {
	if asin == "" {
		return Resolution{}, errors.Validation("asin is required")
	}
	if err := requested.Validate(); err != nil {
		return Resolution{}, err
	}

	lock := t.lockFor(asin)
	lock.Lock()
	defer lock.Unlock()

	meta, err := t.load(asin)
	if err != nil {
		return Resolution{}, err
	}

	var res Resolution
	cursor := requested.Start
	for _, stored := range meta.Ranges {
		r := stored.Range()
		if r.End < requested.Start || r.Start > requested.End {
			continue
		}

		overlap := domain.PositionRange{
			Start: max(requested.Start, r.Start),
			End:   min(requested.End, r.End),
		}
		if overlap.Start > cursor {
			res.Gaps = append(res.Gaps, domain.PositionRange{Start: cursor, End: overlap.Start - 1})
		}
		res.Reusable = append(res.Reusable, ReusableSpan{Span: overlap, Source: stored})
		cursor = overlap.End + 1
	}
	if cursor <= requested.End {
		res.Gaps = append(res.Gaps, domain.PositionRange{Start: cursor, End: requested.End})
	}
	return res, nil
}

// Commit inserts a freshly produced range and merges it with any overlapping
// or immediately adjacent stored ranges, then persists the registry. The
// classic interval merge: sort by start, fold while next.start <= current.end+1.
// Artifact sets union on merge with the newer range winning key collisions.
func (t *Tracker) Commit(asin string, newRange domain.CoverageRange) error {
	if asin == "" {
		return errors.Validation("asin is required")
	}
	if err := newRange.Range().Validate(); err != nil {
		return err
	}

	lock := t.lockFor(asin)
	lock.Lock()
	defer lock.Unlock()

	meta, err := t.load(asin)
	if err != nil {
		return err
	}

	now := t.now().UTC()
	if newRange.CreatedAt.IsZero() {
		newRange.CreatedAt = now
	}
	newRange.UpdatedAt = now

	candidates := make([]domain.CoverageRange, 0, len(meta.Ranges)+1)
	candidates = append(candidates, meta.Ranges...)
	candidates = append(candidates, newRange)
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Start.PositionID < candidates[j].Start.PositionID
	})

	merged := make([]domain.CoverageRange, 0, len(candidates))
	current := candidates[0]
	for _, next := range candidates[1:] {
		if next.Start.PositionID <= current.End.PositionID+1 {
			current = mergeRanges(current, next)
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)

	updated := &domain.RendererCoverageMetadata{
		ASIN:      asin,
		UpdatedAt: now,
		Ranges:    merged,
	}
	if err := t.store.WriteCoverage(updated); err != nil {
		return err
	}

	t.mu.Lock()
	t.cache[asin] = updated
	t.mu.Unlock()

	if t.logger != nil {
		t.logger.Info("coverage committed",
			"asin", asin,
			"range", newRange.Range().String(),
			"total_ranges", len(merged),
		)
	}
	return nil
}

// mergeRanges folds b into a. Caller guarantees the intervals overlap or
// touch. The later-updated range's artifacts win key collisions.
func mergeRanges(a, b domain.CoverageRange) domain.CoverageRange {
	merged := domain.CoverageRange{
		Start: domain.PositionBound{PositionID: min(a.Start.PositionID, b.Start.PositionID)},
		End:   domain.PositionBound{PositionID: max(a.End.PositionID, b.End.PositionID)},
	}

	older, newer := a, b
	if b.UpdatedAt.Before(a.UpdatedAt) {
		older, newer = b, a
	}
	merged.Artifacts = older.Artifacts
	merged.Artifacts.Merge(newer.Artifacts)

	merged.Pages = mergePages(a.Pages, b.Pages)

	merged.CreatedAt = a.CreatedAt
	if b.CreatedAt.Before(a.CreatedAt) {
		merged.CreatedAt = b.CreatedAt
	}
	merged.UpdatedAt = newer.UpdatedAt
	return merged
}

func mergePages(a, b domain.PageSummary) domain.PageSummary {
	merged := domain.PageSummary{Count: a.Count + b.Count}
	merged.FirstIndex = minIndex(a.FirstIndex, b.FirstIndex)
	merged.LastIndex = maxIndex(a.LastIndex, b.LastIndex)
	return merged
}

func minIndex(a, b *int) *int {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *a <= *b:
		return a
	default:
		return b
	}
}

func maxIndex(a, b *int) *int {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *a >= *b:
		return a
	default:
		return b
	}
}
