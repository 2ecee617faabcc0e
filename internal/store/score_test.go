package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentScore(t *testing.T) {
	tests := []struct {
		cosine float64
		want   int
	}{
		{1.0, 100},
		{-1.0, 0},
		{0.0, 50},
		{0.73, 86},
		{0.5, 75},
		{-0.999, 0},
		{0.999, 99},
		{1.00005, 100},
		{-1.00005, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PercentScore(tt.cosine), "cosine %v", tt.cosine)
	}
}

func TestParseScoreMode(t *testing.T) {
	mode, err := ParseScoreMode("")
	require.NoError(t, err)
	assert.Equal(t, ScorePercent, mode)

	mode, err = ParseScoreMode("cosine")
	require.NoError(t, err)
	assert.Equal(t, ScoreCosine, mode)

	_, err = ParseScoreMode("raw")
	var optErr *InvalidOptionsError
	assert.ErrorAs(t, err, &optErr)
}

func TestClassify(t *testing.T) {
	candidates := []Candidate{{Cosine: 0.4}, {Cosine: 0.2}}

	res := &MatchResult{Candidates: candidates}
	classify(res, nil)
	assert.False(t, res.Unknown)
	assert.Same(t, &res.Candidates[0], res.Top)

	res = &MatchResult{Candidates: candidates}
	classify(res, ptr(0.4))
	assert.False(t, res.Unknown, "equal to the threshold is a match")

	res = &MatchResult{Candidates: candidates}
	classify(res, ptr(0.41))
	assert.True(t, res.Unknown)
	assert.Nil(t, res.Top)
	assert.Len(t, res.Candidates, 2)
}
