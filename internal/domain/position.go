// Package domain contains the core types shared across the PageVoice server:
// book positions, coverage metadata, benchmark timelines, and book summaries.
package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pagevoice/pagevoice-server/internal/errors"
)

// chunkIDPrefix addresses chunks by their position-id bounds.
// The format is load-bearing: existing artifact trees use it.
const chunkIDPrefix = "chunk_pid_"

// NormalizePosition converts a raw reader position string into a numeric
// position id. Positions arrive either as a plain integer ("4521") or in
// "major;minor" form ("4521;7"), which collapses to the major digits followed
// by the minor component zero-padded to three digits ("4521007").
func NormalizePosition(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.Validation("position is required")
	}

	if major, minor, found := strings.Cut(raw, ";"); found {
		majorN, err := strconv.ParseInt(major, 10, 64)
		if err != nil || majorN < 0 {
			return 0, errors.Validationf("invalid position %q", raw)
		}
		minorN, err := strconv.ParseInt(minor, 10, 64)
		if err != nil || minorN < 0 || minorN > 999 {
			return 0, errors.Validationf("invalid position %q", raw)
		}
		return majorN*1000 + minorN, nil
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, errors.Validationf("invalid position %q", raw)
	}
	return n, nil
}

// PositionRange is a closed interval of position ids within one book.
type PositionRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Validate checks the range is well-formed.
func (r PositionRange) Validate() error {
	if r.Start < 0 {
		return errors.Validationf("range start %d is negative", r.Start)
	}
	if r.End < r.Start {
		return errors.Validationf("range end %d precedes start %d", r.End, r.Start)
	}
	return nil
}

// Contains reports whether pos falls inside the closed interval.
func (r PositionRange) Contains(pos int64) bool {
	return pos >= r.Start && pos <= r.End
}

// Length returns the number of position ids the closed interval spans.
func (r PositionRange) Length() int64 {
	return r.End - r.Start + 1
}

func (r PositionRange) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

// ChunkID returns the deterministic chunk identifier for a range.
func (r PositionRange) ChunkID() string {
	return fmt.Sprintf("%s%d_%d", chunkIDPrefix, r.Start, r.End)
}

// ParseChunkID recovers the position bounds from a chunk identifier.
func ParseChunkID(chunkID string) (PositionRange, error) {
	rest, ok := strings.CutPrefix(chunkID, chunkIDPrefix)
	if !ok {
		return PositionRange{}, errors.Validationf("invalid chunk id %q", chunkID)
	}
	startStr, endStr, found := strings.Cut(rest, "_")
	if !found {
		return PositionRange{}, errors.Validationf("invalid chunk id %q", chunkID)
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return PositionRange{}, errors.Validationf("invalid chunk id %q", chunkID)
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil {
		return PositionRange{}, errors.Validationf("invalid chunk id %q", chunkID)
	}
	r := PositionRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return PositionRange{}, err
	}
	return r, nil
}
