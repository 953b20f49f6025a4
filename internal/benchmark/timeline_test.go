package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagevoice/pagevoice-server/internal/domain"
	"github.com/pagevoice/pagevoice-server/internal/errors"
)

func timelineFixture(t *testing.T) *Timeline {
	t.Helper()
	tl, err := NewTimeline(&domain.BenchmarkPayload{
		TotalDurationSeconds:     12,
		BenchmarkIntervalSeconds: 5,
		TTSProvider:              "cartesia",
		Benchmarks: []domain.BenchmarkEntry{
			{TimeSeconds: 0, KindlePositionIDStart: 100, KindlePositionIDEnd: 140},
			{TimeSeconds: 5, KindlePositionIDStart: 140, KindlePositionIDEnd: 180},
			{TimeSeconds: 10, KindlePositionIDStart: 180, KindlePositionIDEnd: 200},
		},
	})
	require.NoError(t, err)
	return tl
}

func TestCheckpointAt(t *testing.T) {
	tl := timelineFixture(t)

	tests := []struct {
		name  string
		query float64
		want  float64
	}{
		{"between checkpoints floors down", 7, 5},
		{"exact hit", 5, 5},
		{"before first clamps to first", -1, 0},
		{"past last clamps to last", 100, 10},
		{"zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tl.CheckpointAt(tt.query).TimeSeconds)
		})
	}
}

func TestPositionAt(t *testing.T) {
	tl := timelineFixture(t)

	start, end := tl.PositionAt(7)
	assert.Equal(t, int64(140), start)
	assert.Equal(t, int64(180), end)
}

func TestNewTimeline_Errors(t *testing.T) {
	_, err := NewTimeline(nil)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = NewTimeline(&domain.BenchmarkPayload{})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	_, err = NewTimeline(&domain.BenchmarkPayload{
		Benchmarks: []domain.BenchmarkEntry{
			{TimeSeconds: 5},
			{TimeSeconds: 0},
		},
	})
	assert.True(t, errors.Is(err, errors.ErrDataIntegrity))
}
