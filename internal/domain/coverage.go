package domain

import "time"

// PositionBound wraps a position id at one edge of a coverage range.
// The nesting mirrors the persisted coverage document schema.
type PositionBound struct {
	PositionID int64 `json:"positionId"`
}

// PageSummary describes the rendered pages backing a coverage range.
type PageSummary struct {
	Count      int  `json:"count"`
	FirstIndex *int `json:"firstIndex,omitempty"`
	LastIndex  *int `json:"lastIndex,omitempty"`
}

// AudioArtifacts holds the per-provider artifact paths for one chunk.
type AudioArtifacts struct {
	AudioPath      string `json:"audioPath"`
	AlignmentPath  string `json:"alignmentPath"`
	BenchmarksPath string `json:"benchmarksPath"`
}

// ArtifactSet records every on-disk artifact a coverage range references.
// Audio artifacts are keyed by TTS provider name.
type ArtifactSet struct {
	PagesDir         string                    `json:"pagesDir,omitempty"`
	CombinedTextPath string                    `json:"combinedTextPath,omitempty"`
	Audio            map[string]AudioArtifacts `json:"audio,omitempty"`
}

// Merge folds other into the set. Incoming artifacts win on key collision.
func (a *ArtifactSet) Merge(other ArtifactSet) {
	if other.PagesDir != "" {
		a.PagesDir = other.PagesDir
	}
	if other.CombinedTextPath != "" {
		a.CombinedTextPath = other.CombinedTextPath
	}
	if len(other.Audio) > 0 {
		if a.Audio == nil {
			a.Audio = make(map[string]AudioArtifacts, len(other.Audio))
		}
		for provider, artifacts := range other.Audio {
			a.Audio[provider] = artifacts
		}
	}
}

// CoverageRange is a closed position-id interval already fully processed for
// an ASIN, together with its page summary and artifact paths.
type CoverageRange struct {
	Start     PositionBound `json:"start"`
	End       PositionBound `json:"end"`
	Pages     PageSummary   `json:"pages"`
	Artifacts ArtifactSet   `json:"artifacts"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Range returns the interval as a PositionRange.
func (c CoverageRange) Range() PositionRange {
	return PositionRange{Start: c.Start.PositionID, End: c.End.PositionID}
}

// RendererCoverageMetadata is the per-ASIN coverage document persisted to
// disk. Ranges are disjoint, non-touching, and sorted by start position id.
type RendererCoverageMetadata struct {
	ASIN      string          `json:"asin"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Ranges    []CoverageRange `json:"ranges"`
}
