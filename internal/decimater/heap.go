package decimater

import (
	"container/heap"

	"github.com/ecopia-map/vdpm/internal/mesh"
)

type heapEntry struct {
	vertex   mesh.VertexHandle
	priority float64
}

// vertexHeap is a min-heap of vertices keyed by the priority of their best collapse.
// pos tracks where each vertex sits so entries can be fixed or removed in place.
type vertexHeap struct {
	entries []heapEntry
	pos     []int
}

func newVertexHeap(n int) *vertexHeap {
	h := &vertexHeap{pos: make([]int, n)}
	for i := range h.pos {
		h.pos[i] = -1
	}
	return h
}

func (h *vertexHeap) Len() int { return len(h.entries) }

func (h *vertexHeap) Less(i, j int) bool {
	if h.entries[i].priority != h.entries[j].priority {
		return h.entries[i].priority < h.entries[j].priority
	}
	return h.entries[i].vertex < h.entries[j].vertex
}

func (h *vertexHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.pos[h.entries[i].vertex] = i
	h.pos[h.entries[j].vertex] = j
}

func (h *vertexHeap) Push(x any) {
	e := x.(heapEntry)
	h.pos[e.vertex] = len(h.entries)
	h.entries = append(h.entries, e)
}

func (h *vertexHeap) Pop() any {
	n := len(h.entries)
	e := h.entries[n-1]
	h.entries = h.entries[:n-1]
	h.pos[e.vertex] = -1
	return e
}

func (h *vertexHeap) update(v mesh.VertexHandle, priority float64) {
	if i := h.pos[v]; i >= 0 {
		h.entries[i].priority = priority
		heap.Fix(h, i)
		return
	}
	heap.Push(h, heapEntry{vertex: v, priority: priority})
}

func (h *vertexHeap) remove(v mesh.VertexHandle) {
	if i := h.pos[v]; i >= 0 {
		heap.Remove(h, i)
	}
}

func (h *vertexHeap) popMin() heapEntry {
	return heap.Pop(h).(heapEntry)
}
