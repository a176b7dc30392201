package vdpm

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// VFront is the ordered list of active nodes. Adding appends at the tail; removing the
// node under the cursor moves the cursor to its successor.
type VFront struct {
	next, prev []NodeHandle
	in         []bool
	head, tail NodeHandle
	cursor     NodeHandle
	n          int
}

func NewVFront(numNodes int) *VFront {
	f := &VFront{
		next: make([]NodeHandle, numNodes),
		prev: make([]NodeHandle, numNodes),
		in:   make([]bool, numNodes),
	}
	f.clear()
	return f
}

func (f *VFront) clear() {
	for i := range f.in {
		f.in[i] = false
	}
	f.head, f.tail, f.cursor = InvalidNode, InvalidNode, InvalidNode
	f.n = 0
}

// Init makes the front exactly the given nodes.
func (f *VFront) Init(nodes []NodeHandle) {
	f.clear()
	for _, n := range nodes {
		f.Add(n)
	}
}

func (f *VFront) Len() int                   { return f.n }
func (f *VFront) Contains(n NodeHandle) bool { return f.in[n] }

func (f *VFront) Add(n NodeHandle) {
	if f.in[n] {
		panic(fmt.Sprintf("vdpm: node %d already in the front", n))
	}
	f.in[n] = true
	f.prev[n], f.next[n] = f.tail, InvalidNode
	if f.tail.IsValid() {
		f.next[f.tail] = n
	} else {
		f.head = n
	}
	f.tail = n
	f.n++
}

func (f *VFront) Remove(n NodeHandle) {
	if !f.in[n] {
		panic(fmt.Sprintf("vdpm: node %d not in the front", n))
	}
	p, nx := f.prev[n], f.next[n]
	if p.IsValid() {
		f.next[p] = nx
	} else {
		f.head = nx
	}
	if nx.IsValid() {
		f.prev[nx] = p
	} else {
		f.tail = p
	}
	if f.cursor == n {
		f.cursor = nx
	}
	f.in[n] = false
	f.n--
}

// Begin puts the cursor on the first node.
func (f *VFront) Begin()              { f.cursor = f.head }
func (f *VFront) End() bool           { return !f.cursor.IsValid() }
func (f *VFront) Next()               { f.cursor = f.next[f.cursor] }
func (f *VFront) Current() NodeHandle { return f.cursor }

// Nodes lists the front from head to tail.
func (f *VFront) Nodes() []NodeHandle {
	nodes := make([]NodeHandle, 0, f.n)
	for n := f.head; n.IsValid(); n = f.next[n] {
		nodes = append(nodes, n)
	}
	return nodes
}

// Snapshot returns the active handles as a bitmap.
func (f *VFront) Snapshot() *roaring.Bitmap {
	bm := roaring.New()
	for n := f.head; n.IsValid(); n = f.next[n] {
		bm.Add(uint32(n))
	}
	return bm
}
