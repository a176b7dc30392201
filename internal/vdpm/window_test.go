package vdpm_test

import (
	"math/rand"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/ecopia-map/vdpm/internal/mesh/meshtest"
	"github.com/ecopia-map/vdpm/internal/vdpm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hierarchy(t *testing.T) *vdpm.Hierarchy {
	t.Helper()
	h, err := vdpm.BuildHierarchy(decimate(t, meshtest.Icosphere(2)))
	require.NoError(t, err)
	return h
}

func TestWindowMatchesReferenceSet(t *testing.T) {
	h := hierarchy(t)
	n := h.NumNodes()
	w := vdpm.NewWindow(h)
	w.Init(0)
	ref := roaring.New()

	rng := rand.New(rand.NewSource(7))
	for step := 0; step < 3000; step++ {
		node := vdpm.NodeHandle(rng.Intn(n))
		// drift the hot range across the handle space like a moving front
		if step%500 < 250 {
			node = vdpm.NodeHandle(rng.Intn(n/4) + (step/500)*n/8)
		}
		if rng.Intn(3) > 0 {
			w.Activate(node)
			ref.Add(uint32(node))
		} else {
			w.Inactivate(node)
			ref.Remove(uint32(node))
		}
		assert.LessOrEqual(t, w.BufferSize(), 1+n/8)

		if step%100 == 0 {
			for k := 0; k < n; k++ {
				require.Equal(t, ref.Contains(uint32(k)), w.IsActive(vdpm.NodeHandle(k)), "step %d node %d", step, k)
			}
		}
	}
	for k := 0; k < n; k++ {
		assert.Equal(t, ref.Contains(uint32(k)), w.IsActive(vdpm.NodeHandle(k)))
	}
}

func TestWindowInitAndGrowth(t *testing.T) {
	h := hierarchy(t)
	w := vdpm.NewWindow(h)
	w.Init(h.NumRoots())
	assert.Equal(t, (h.NumRoots()+7)/8, w.BufferSize())
	for _, r := range h.Roots() {
		assert.True(t, w.IsActive(r))
	}
	last := vdpm.NodeHandle(h.NumNodes() - 1)
	assert.False(t, w.IsActive(last), "queries outside the buffer do not grow it")
	size := w.BufferSize()
	assert.False(t, w.UpdateBuffer(0))

	w.Activate(last)
	assert.True(t, w.IsActive(last))
	assert.Greater(t, w.BufferSize(), size)
	for _, r := range h.Roots() {
		assert.True(t, w.IsActive(r))
	}
	assert.Panics(t, func() { w.Activate(vdpm.NodeHandle(h.NumNodes() + 100)) })
}

func TestWindowPreconditions(t *testing.T) {
	h := hierarchy(t)
	w := vdpm.NewWindow(h)
	w.Init(h.NumRoots())

	var internal vdpm.NodeHandle = -1
	for _, r := range h.Roots() {
		if !h.IsLeaf(r) {
			internal = r
			break
		}
	}
	require.True(t, internal.IsValid())

	assert.Panics(t, func() { w.UpdateWithECol(internal) }, "children are not active")
	w.UpdateWithVSplit(internal)
	assert.False(t, w.IsActive(internal))
	assert.True(t, w.IsActive(h.LChild(internal)))
	assert.True(t, w.IsActive(h.RChild(internal)))
	assert.Panics(t, func() { w.UpdateWithVSplit(internal) }, "parent is not active")

	w.UpdateWithECol(internal)
	assert.True(t, w.IsActive(internal))
	assert.False(t, w.IsActive(h.LChild(internal)))
}

func TestVFrontCursor(t *testing.T) {
	f := vdpm.NewVFront(10)
	f.Init([]vdpm.NodeHandle{0, 1, 2, 3})
	assert.Equal(t, 4, f.Len())

	var seen []vdpm.NodeHandle
	for f.Begin(); !f.End(); {
		n := f.Current()
		seen = append(seen, n)
		if n == 1 {
			// replace 1 by 7 and 8 while standing on it
			f.Remove(1)
			f.Add(7)
			f.Add(8)
			continue
		}
		f.Next()
	}
	assert.Equal(t, []vdpm.NodeHandle{0, 1, 2, 3, 7, 8}, seen)
	assert.Equal(t, []vdpm.NodeHandle{0, 2, 3, 7, 8}, f.Nodes())
	assert.True(t, f.Contains(7))
	assert.False(t, f.Contains(1))
	assert.Equal(t, []uint32{0, 2, 3, 7, 8}, f.Snapshot().ToArray())

	f.Remove(8)
	f.Remove(0)
	assert.Equal(t, []vdpm.NodeHandle{2, 3, 7}, f.Nodes())
	assert.Panics(t, func() { f.Remove(0) })
	assert.Panics(t, func() { f.Add(2) })
}

// checkAntichain verifies that every leaf has exactly one active node on its root path and
// that the window and the front agree.
func checkAntichain(t *testing.T, h *vdpm.Hierarchy, w *vdpm.Window, f *vdpm.VFront) {
	t.Helper()
	active := roaring.New()
	for n := 0; n < h.NumNodes(); n++ {
		if w.IsActive(vdpm.NodeHandle(n)) {
			active.Add(uint32(n))
		}
	}
	require.True(t, active.Equals(f.Snapshot()), "window and front disagree")

	for n := vdpm.NodeHandle(0); int(n) < h.NumNodes(); n++ {
		if !h.IsLeaf(n) {
			continue
		}
		count := 0
		for p := n; p.IsValid(); p = h.Parent(p) {
			if w.IsActive(p) {
				count++
			}
		}
		require.Equal(t, 1, count, "leaf %d", n)
	}
}

func TestFrontUpdatesKeepAntichain(t *testing.T) {
	h := hierarchy(t)
	w := vdpm.NewWindow(h)
	f := vdpm.NewVFront(h.NumNodes())
	w.Init(h.NumRoots())
	f.Init(h.Roots())
	checkAntichain(t, h, w, f)

	vsplit := func(p vdpm.NodeHandle) {
		w.UpdateWithVSplit(p)
		f.Remove(p)
		f.Add(h.LChild(p))
		f.Add(h.RChild(p))
	}
	ecol := func(p vdpm.NodeHandle) {
		w.UpdateWithECol(p)
		f.Remove(h.LChild(p))
		f.Remove(h.RChild(p))
		f.Add(p)
	}

	rng := rand.New(rand.NewSource(11))
	for step := 0; step < 600; step++ {
		nodes := f.Nodes()
		n := nodes[rng.Intn(len(nodes))]
		refine := rng.Intn(3) > 0
		switch {
		case refine && !h.IsLeaf(n):
			vsplit(n)
		case !h.IsRoot(n):
			p := h.Parent(n)
			if w.IsActive(h.LChild(p)) && w.IsActive(h.RChild(p)) {
				before := f.Snapshot()
				ecol(p)
				if step%2 == 0 {
					// ecol then vsplit restores the active set
					vsplit(p)
					require.True(t, before.Equals(f.Snapshot()))
				}
			}
		}
		checkAntichain(t, h, w, f)
	}
}
