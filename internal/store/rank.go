package store

import "slices"

// Rank returns the k best rows of sims, best first. Ties go to the lower row
// index. k <= 0 selects DefaultTopK and k is capped at len(sims).
func Rank(sims []float64, k int) []Match {
	if k <= 0 {
		k = DefaultTopK
	}
	k = min(k, len(sims))
	if k == 0 {
		return nil
	}

	heap := make(MinHeap, 0, k)
	for i, score := range sims {
		m := Match{Index: i, Score: score}
		if heap.Len() < k {
			heap.Push(m)
		} else if worse(heap[0], m) {
			heap.Replace(m)
		}
	}

	out := []Match(heap)
	slices.SortFunc(out, func(a, b Match) int {
		switch {
		case worse(b, a):
			return -1
		case worse(a, b):
			return 1
		default:
			return 0
		}
	})
	return out
}
