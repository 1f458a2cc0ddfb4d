package router

import "math"

const noNode = ^uint32(0)

// minHeap is a concrete-typed min-heap for Dijkstra's priority queue,
// avoiding interface-boxing overhead. Ported from
// azybler-map_router/pkg/routing/dijkstra.go.
type minHeap struct {
	items []pqItem
}

type pqItem struct {
	Node uint32
	Dist uint32
}

func (h *minHeap) Len() int { return len(h.items) }

func (h *minHeap) Push(node, dist uint32) {
	h.items = append(h.items, pqItem{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *minHeap) Pop() pqItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *minHeap) PeekDist() uint32 {
	if len(h.items) == 0 {
		return math.MaxUint32
	}
	return h.items[0].Dist
}

func (h *minHeap) Reset() { h.items = h.items[:0] }

func (h *minHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].Dist >= h.items[parent].Dist {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *minHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].Dist < h.items[smallest].Dist {
			smallest = left
		}
		if right < n && h.items[right].Dist < h.items[smallest].Dist {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// queryState holds per-query state for bidirectional CH Dijkstra, reused via
// a sync.Pool across concurrent route requests the way the teacher's Engine
// reused QueryState.
type queryState struct {
	DistFwd []uint32
	DistBwd []uint32
	PredFwd []uint32
	PredBwd []uint32
	Touched []uint32
	FwdPQ   minHeap
	BwdPQ   minHeap
}

func newQueryState(n uint32) *queryState {
	distFwd := make([]uint32, n)
	distBwd := make([]uint32, n)
	predFwd := make([]uint32, n)
	predBwd := make([]uint32, n)
	for i := range distFwd {
		distFwd[i] = math.MaxUint32
		distBwd[i] = math.MaxUint32
		predFwd[i] = noNode
		predBwd[i] = noNode
	}
	return &queryState{
		DistFwd: distFwd, DistBwd: distBwd, PredFwd: predFwd, PredBwd: predBwd,
		Touched: make([]uint32, 0, 1024),
		FwdPQ:   minHeap{items: make([]pqItem, 0, 256)},
		BwdPQ:   minHeap{items: make([]pqItem, 0, 256)},
	}
}

func (qs *queryState) Reset() {
	for _, node := range qs.Touched {
		qs.DistFwd[node] = math.MaxUint32
		qs.DistBwd[node] = math.MaxUint32
		qs.PredFwd[node] = noNode
		qs.PredBwd[node] = noNode
	}
	qs.Touched = qs.Touched[:0]
	qs.FwdPQ.Reset()
	qs.BwdPQ.Reset()
}

func (qs *queryState) touchFwd(node, dist uint32) {
	if qs.DistFwd[node] == math.MaxUint32 && qs.DistBwd[node] == math.MaxUint32 {
		qs.Touched = append(qs.Touched, node)
	}
	qs.DistFwd[node] = dist
}

func (qs *queryState) touchBwd(node, dist uint32) {
	if qs.DistFwd[node] == math.MaxUint32 && qs.DistBwd[node] == math.MaxUint32 {
		qs.Touched = append(qs.Touched, node)
	}
	qs.DistBwd[node] = dist
}
