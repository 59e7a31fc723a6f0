package detector

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreCandidate(t *testing.T) {
	w := DefaultScoreWeights()

	tests := []struct {
		name string
		c    Candidate
		want float64
	}{
		{
			name: "bottom button saturates size",
			c:    Candidate{Region: Region{Y: 900, Area: 10000}, BlueRatio: 1.0},
			want: 0.5 + 0.25 + 0.2,
		},
		{
			name: "top of screen",
			c:    Candidate{Region: Region{Y: 0, Area: 2500}, BlueRatio: 0.6},
			want: 0.3 + 0 + 0.1,
		},
		{
			name: "middle of screen",
			c:    Candidate{Region: Region{Y: 540, Area: 5000}, BlueRatio: 0.8},
			want: 0.4 + 0.15 + 0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreCandidate(tt.c, 1080, w), 1e-9)
		})
	}
}

func TestScoreCandidate_NotClamped(t *testing.T) {
	c := Candidate{Region: Region{Y: 1000, Area: 20000}, BlueRatio: 1.0}
	got := ScoreCandidate(c, 1080, ScoreWeights{Color: 1, Position: 1, Size: 1})
	assert.Greater(t, got, 1.0)
}

func TestScoreCandidate_ZeroFrameHeight(t *testing.T) {
	c := Candidate{Region: Region{Y: 10, Area: 5000}, BlueRatio: 1.0}
	assert.InDelta(t, 0.7, ScoreCandidate(c, 0, DefaultScoreWeights()), 1e-9)
}

func TestSelectBest(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, ok := SelectBest(nil)
		assert.False(t, ok)
	})

	t.Run("highest wins", func(t *testing.T) {
		cs := []Candidate{
			{Region: Region{X: 1}, Score: 0.4},
			{Region: Region{X: 2}, Score: 0.9},
			{Region: Region{X: 3}, Score: 0.7},
		}
		best, ok := SelectBest(cs)
		assert.True(t, ok)
		assert.Equal(t, 2, best.X)
	})

	t.Run("tie goes to first", func(t *testing.T) {
		cs := []Candidate{
			{Region: Region{X: 1}, Score: 0.5},
			{Region: Region{X: 2}, Score: 0.8},
			{Region: Region{X: 3}, Score: 0.8},
		}
		best, ok := SelectBest(cs)
		assert.True(t, ok)
		assert.Equal(t, 2, best.X)
	})
}

func TestRegion_Geometry(t *testing.T) {
	r := Region{X: 860, Y: 900, Width: 200, Height: 50}
	assert.Equal(t, image.Pt(960, 925), r.Center())
	assert.Equal(t, image.Rect(860, 900, 1060, 950), r.Bounds())

	odd := Region{X: 10, Y: 10, Width: 5, Height: 3}
	assert.Equal(t, image.Pt(12, 11), odd.Center())
}
