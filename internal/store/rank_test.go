package store

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank(t *testing.T) {
	tests := []struct {
		name string
		sims []float64
		k    int
		want []Match
	}{
		{
			name: "Simple",
			sims: []float64{0.1, 0.9, 0.5},
			k:    2,
			want: []Match{{1, 0.9}, {2, 0.5}},
		},
		{
			name: "ClampToN",
			sims: []float64{0.2, -0.4},
			k:    10,
			want: []Match{{0, 0.2}, {1, -0.4}},
		},
		{
			name: "DefaultK",
			sims: []float64{0.1, 0.2, 0.3, 0.4, 0.5},
			k:    0,
			want: []Match{{4, 0.5}, {3, 0.4}, {2, 0.3}},
		},
		{
			name: "TiesByIndex",
			sims: []float64{0.7, 0.9, 0.7, 0.9, 0.7},
			k:    4,
			want: []Match{{1, 0.9}, {3, 0.9}, {0, 0.7}, {2, 0.7}},
		},
		{
			name: "TieAtCutoffKeepsEarlierRow",
			sims: []float64{0.5, 0.5, 0.5},
			k:    1,
			want: []Match{{0, 0.5}},
		},
		{
			name: "Empty",
			sims: nil,
			k:    3,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rank(tt.sims, tt.k))
		})
	}
}

func TestRankMatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(300)
		sims := make([]float64, n)
		for i := range sims {
			// coarse values so ties are common
			sims[i] = float64(rng.Intn(21)-10) / 10
		}
		k := 1 + rng.Intn(20)

		want := make([]Match, n)
		for i, s := range sims {
			want[i] = Match{Index: i, Score: s}
		}
		sort.SliceStable(want, func(i, j int) bool { return want[i].Score > want[j].Score })
		want = want[:min(k, n)]

		got := Rank(sims, k)
		require.Len(t, got, min(k, n))
		assert.Equal(t, want, got, "trial %d", trial)
		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
		}
	}
}

func TestMinHeapKeepsWeakestAtRoot(t *testing.T) {
	h := make(MinHeap, 0, 4)
	for _, m := range []Match{{0, 0.5}, {1, 0.1}, {2, 0.9}, {3, 0.1}} {
		h.Push(m)
	}
	assert.Equal(t, Match{3, 0.1}, h[0])

	h.Replace(Match{4, 0.7})
	assert.Equal(t, Match{1, 0.1}, h[0])
	assert.Equal(t, 4, h.Len())
}
