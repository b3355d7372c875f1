package routing

import "math"

const (
	noNode = ^uint32(0)
	inf    = uint32(math.MaxUint32)
)

// MinHeap is a concrete-typed binary min-heap keyed by distance.
// It avoids the interface boxing of container/heap.
type MinHeap struct {
	items []PQItem
}

// PQItem is a priority queue entry.
type PQItem struct {
	Node uint32
	Dist uint32
}

func (h *MinHeap) Len() int { return len(h.items) }

func (h *MinHeap) Push(node, dist uint32) {
	h.items = append(h.items, PQItem{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *MinHeap) Pop() PQItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *MinHeap) PeekDist() uint32 {
	if len(h.items) == 0 {
		return inf
	}
	return h.items[0].Dist
}

func (h *MinHeap) Reset() {
	h.items = h.items[:0]
}

func (h *MinHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].Dist >= h.items[parent].Dist {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *MinHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		if l := 2*i + 1; l < n && h.items[l].Dist < h.items[smallest].Dist {
			smallest = l
		}
		if r := 2*i + 2; r < n && h.items[r].Dist < h.items[smallest].Dist {
			smallest = r
		}
		if smallest == i {
			return
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// searchState is the per-query scratch space of a one-to-one Dijkstra.
// Only touched entries are reset, so states are cheap to reuse.
type searchState struct {
	dist    []uint32
	pred    []uint32
	touched []uint32
	pq      MinHeap
}

func newSearchState(n uint32) *searchState {
	s := &searchState{
		dist:    make([]uint32, n),
		pred:    make([]uint32, n),
		touched: make([]uint32, 0, 1024),
		pq:      MinHeap{items: make([]PQItem, 0, 256)},
	}
	for i := range s.dist {
		s.dist[i] = inf
		s.pred[i] = noNode
	}
	return s
}

func (s *searchState) reset() {
	for _, u := range s.touched {
		s.dist[u] = inf
		s.pred[u] = noNode
	}
	s.touched = s.touched[:0]
	s.pq.Reset()
}

// relax lowers the tentative distance of u, recording pred.
func (s *searchState) relax(u, d, pred uint32) bool {
	if d >= s.dist[u] {
		return false
	}
	if s.dist[u] == inf {
		s.touched = append(s.touched, u)
	}
	s.dist[u] = d
	s.pred[u] = pred
	s.pq.Push(u, d)
	return true
}
