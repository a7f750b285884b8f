package matcher

import (
	"container/heap"
	"sort"
)

type rankedMatch struct {
	match Match
	seq   int
}

// rankedLess orders by ascending distance, then by arrival. Equal-distance
// matches therefore keep their insertion order, exactly like a stable
// ascending sort.
func rankedLess(a, b rankedMatch) bool {
	if a.match.Distance != b.match.Distance {
		return a.match.Distance < b.match.Distance
	}
	return a.seq < b.seq
}

// rankedHeap is a max-heap under rankedLess, so the root is always the
// weakest retained match and the next to be evicted.
type rankedHeap []rankedMatch

func (h rankedHeap) Len() int           { return len(h) }
func (h rankedHeap) Less(i, j int) bool { return rankedLess(h[j], h[i]) }
func (h rankedHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *rankedHeap) Push(x any) { *h = append(*h, x.(rankedMatch)) }

func (h *rankedHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topK retains the k lowest-distance matches seen so far without holding
// more than k entries at a time. k <= 0 disables the cap.
type topK struct {
	k    int
	seq  int
	heap rankedHeap
}

func newTopK(k int) *topK { return &topK{k: k} }

func (t *topK) Add(m Match) {
	rm := rankedMatch{match: m, seq: t.seq}
	t.seq++
	if t.k > 0 && len(t.heap) == t.k {
		if !rankedLess(rm, t.heap[0]) {
			return
		}
		t.heap[0] = rm
		heap.Fix(&t.heap, 0)
		return
	}
	heap.Push(&t.heap, rm)
}

// Sorted returns the retained matches ordered by ascending distance,
// ties by arrival.
func (t *topK) Sorted() []Match {
	ranked := make([]rankedMatch, len(t.heap))
	copy(ranked, t.heap)
	sort.Slice(ranked, func(i, j int) bool { return rankedLess(ranked[i], ranked[j]) })
	out := make([]Match, len(ranked))
	for i, rm := range ranked {
		out[i] = rm.match
	}
	return out
}
