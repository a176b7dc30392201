package vdpm

import "fmt"

// Window is a bitmap of the active node handles, kept only over the byte range
// [bufferMin, bufferMax) that the active front currently spans.
type Window struct {
	hierarchy *Hierarchy

	buffer               []byte
	bufferMin, bufferMax int
	windowMin, windowMax int
}

func NewWindow(h *Hierarchy) *Window {
	return &Window{hierarchy: h}
}

// Init activates the roots and nothing else.
func (w *Window) Init(nRoots int) {
	w.bufferMin = 0
	w.bufferMax = (nRoots + 7) / 8
	w.buffer = make([]byte, w.bufferMax)
	w.windowMin, w.windowMax = 0, 0
	for i := 0; i < nRoots; i++ {
		w.Activate(NodeHandle(i))
	}
}

func (w *Window) BufferSize() int { return w.bufferMax - w.bufferMin }
func (w *Window) WindowSize() int { return w.windowMax - w.windowMin }

func (w *Window) underflow(n NodeHandle) bool { return int(n) < 8*w.bufferMin }
func (w *Window) overflow(n NodeHandle) bool  { return int(n) >= 8*w.bufferMax }

func (w *Window) IsActive(n NodeHandle) bool {
	if w.underflow(n) || w.overflow(n) {
		return false
	}
	pos := int(n) - 8*w.bufferMin
	return w.buffer[pos>>3]&(1<<(pos&7)) != 0
}

func (w *Window) Activate(n NodeHandle) {
	w.UpdateBuffer(n)
	pos := int(n) - 8*w.bufferMin
	w.buffer[pos>>3] |= 1 << (pos & 7)
}

func (w *Window) Inactivate(n NodeHandle) {
	if w.underflow(n) || w.overflow(n) {
		return
	}
	pos := int(n) - 8*w.bufferMin
	w.buffer[pos>>3] &^= 1 << (pos & 7)
}

// UpdateBuffer widens the buffer until it covers n, keeping the occupied bytes. It
// reports whether the buffer was reallocated.
func (w *Window) UpdateBuffer(n NodeHandle) bool {
	if !w.underflow(n) && !w.overflow(n) {
		return false
	}
	if !n.IsValid() || int(n) >= w.hierarchy.NumNodes() {
		panic(fmt.Sprintf("vdpm: node %d outside a hierarchy of %d nodes", n, w.hierarchy.NumNodes()))
	}

	lo, hi := 0, len(w.buffer)
	for hi > 0 && w.buffer[hi-1] == 0 {
		hi--
	}
	for lo < hi && w.buffer[lo] == 0 {
		lo++
	}
	if lo == hi {
		w.bufferMin = int(n) / 8
		w.bufferMax = w.bufferMin + 1
		w.windowMin, w.windowMax = w.bufferMin, w.bufferMin
		w.buffer = make([]byte, 1)
		return true
	}
	w.windowMin = w.bufferMin + lo
	w.windowMax = w.bufferMin + hi

	for w.underflow(n) {
		w.bufferMin /= 2
	}
	limit := 1 + w.hierarchy.NumNodes()/8
	for w.overflow(n) {
		w.bufferMax = max(2*w.bufferMax, 1)
		if w.bufferMax > w.hierarchy.NumNodes()/8 {
			w.bufferMax = limit
		}
	}

	buffer := make([]byte, w.bufferMax-w.bufferMin)
	copy(buffer[w.windowMin-w.bufferMin:], w.buffer[lo:hi])
	w.buffer = buffer
	return true
}

// UpdateWithVSplit replaces the active parent by its two children.
func (w *Window) UpdateWithVSplit(parent NodeHandle) {
	l, r := w.hierarchy.LChild(parent), w.hierarchy.RChild(parent)
	if !l.IsValid() || !w.IsActive(parent) || w.IsActive(l) || w.IsActive(r) {
		panic(fmt.Sprintf("vdpm: vsplit of node %d: parent must be active, children inactive", parent))
	}
	w.Inactivate(parent)
	w.Activate(r)
	w.Activate(l)
}

// UpdateWithECol replaces the two active children by their parent.
func (w *Window) UpdateWithECol(parent NodeHandle) {
	l, r := w.hierarchy.LChild(parent), w.hierarchy.RChild(parent)
	if !l.IsValid() || w.IsActive(parent) || !w.IsActive(l) || !w.IsActive(r) {
		panic(fmt.Sprintf("vdpm: ecol of node %d: children must be active, parent inactive", parent))
	}
	w.Activate(parent)
	w.Inactivate(r)
	w.Inactivate(l)
}
