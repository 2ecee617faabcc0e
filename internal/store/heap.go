package store

// Match is one ranked catalog row.
type Match struct {
	Index int
	Score float64
}

// worse reports whether a ranks below b: lower similarity, or equal
// similarity and a later catalog row.
func worse(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Index > b.Index
}

// MinHeap keeps the weakest retained match at the root so it can be evicted
// in O(log k) when a better one arrives.
type MinHeap []Match

func (h *MinHeap) Len() int { return len(*h) }

func (h *MinHeap) Push(m Match) {
	*h = append(*h, m)
	h.up(len(*h) - 1)
}

// Replace swaps the root for m and restores heap order.
func (h *MinHeap) Replace(m Match) {
	(*h)[0] = m
	h.down(0, len(*h))
}

func (h *MinHeap) up(j int) {
	for {
		i := (j - 1) / 2
		if i == j || !worse((*h)[j], (*h)[i]) {
			break
		}
		(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
		j = i
	}
}

func (h *MinHeap) down(i0, n int) {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && worse((*h)[j2], (*h)[j1]) {
			j = j2
		}
		if !worse((*h)[j], (*h)[i]) {
			break
		}
		(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
		i = j
	}
}
