// Package vdpm rebuilds the vertex hierarchy of a progressive mesh and keeps an active
// front of it refined for a viewpoint.
package vdpm

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/ecopia-map/vdpm/internal/decimater"
	"github.com/ecopia-map/vdpm/internal/mesh"
	"github.com/ecopia-map/vdpm/internal/progmesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Node is one vertex of the hierarchy. An internal node splits into LChild, which keeps
// the vertex, and RChild, the vertex the split creates.
type Node struct {
	Index                  NodeIndex
	Parent, LChild, RChild NodeHandle

	Position r3.Vec
	Normal   Vec3

	// Radius bounds the positions of every descendant.
	Radius float32

	// SinSquare is sin² of the normal cone half angle, 1 when the cone is wider than a hemisphere.
	SinSquare float32

	// MueSquare and SigmaSquare bound the deviation of the descendants from this node,
	// in any direction and along Normal.
	MueSquare, SigmaSquare float32

	// FundLCut and FundRCut are the leaves cornering the faces left and right of the split
	// edge at full resolution, outside this node's subtree.
	FundLCut, FundRCut NodeIndex
}

// Hierarchy is an append-only forest. Roots are handles 0..NumRoots()-1, in base mesh order.
type Hierarchy struct {
	nodes      []Node
	nRoots     int
	treeIDBits int
	byIndex    map[NodeIndex]NodeHandle
}

func (h *Hierarchy) NumNodes() int           { return len(h.nodes) }
func (h *Hierarchy) NumRoots() int           { return h.nRoots }
func (h *Hierarchy) TreeIDBits() int         { return h.treeIDBits }
func (h *Hierarchy) Node(n NodeHandle) *Node { return &h.nodes[n] }

func (h *Hierarchy) Roots() []NodeHandle {
	roots := make([]NodeHandle, h.nRoots)
	for i := range roots {
		roots[i] = NodeHandle(i)
	}
	return roots
}

func (h *Hierarchy) IsRoot(n NodeHandle) bool { return !h.nodes[n].Parent.IsValid() }
func (h *Hierarchy) IsLeaf(n NodeHandle) bool { return !h.nodes[n].LChild.IsValid() }

func (h *Hierarchy) Parent(n NodeHandle) NodeHandle { return h.nodes[n].Parent }
func (h *Hierarchy) LChild(n NodeHandle) NodeHandle { return h.nodes[n].LChild }
func (h *Hierarchy) RChild(n NodeHandle) NodeHandle { return h.nodes[n].RChild }
func (h *Hierarchy) Index(n NodeHandle) NodeIndex   { return h.nodes[n].Index }

func (h *Hierarchy) NodeHandleOf(i NodeIndex) (NodeHandle, bool) {
	n, ok := h.byIndex[i]
	return n, ok
}

// IsAncestor reports whether a is b or an ancestor of b.
func (h *Hierarchy) IsAncestor(a, b NodeIndex) bool {
	return isAncestorIndex(a, b, h.treeIDBits)
}

func (h *Hierarchy) newNode(index NodeIndex, parent NodeHandle, p r3.Vec) NodeHandle {
	n := NodeHandle(len(h.nodes))
	h.nodes = append(h.nodes, Node{
		Index:    index,
		Parent:   parent,
		LChild:   InvalidNode,
		RChild:   InvalidNode,
		Position: p,
	})
	h.byIndex[index] = n
	return n
}

// split remembers the faces a split created; their corners at full resolution give the
// fundamental cuts.
type split struct {
	node   NodeHandle
	fl, fr mesh.FaceHandle
}

// Builder grows a hierarchy one split record at a time, the way a streaming client
// receives them.
type Builder struct {
	h      *Hierarchy
	mesh   *mesh.TriMesh
	leaf   []NodeHandle // current leaf of every vertex
	splits []split
	nBase  int
}

// NewBuilder starts a hierarchy whose roots are the vertices of the base mesh of pm.
// The splits of pm are not applied.
func NewBuilder(pm *progmesh.ProgMesh) (*Builder, error) {
	m, err := progmesh.BaseMesh(pm)
	if err != nil {
		return nil, err
	}
	nRoots := pm.NBaseVertices()
	h := &Hierarchy{
		nodes:      make([]Node, 0, nRoots+2*len(pm.Splits)),
		nRoots:     nRoots,
		treeIDBits: decimater.BitsForRoots(nRoots),
		byIndex:    make(map[NodeIndex]NodeHandle, nRoots+2*len(pm.Splits)),
	}
	b := &Builder{h: h, mesh: m, nBase: nRoots, leaf: make([]NodeHandle, nRoots, pm.NVertices())}
	for i := 0; i < nRoots; i++ {
		b.leaf[i] = h.newNode(NewNodeIndex(uint32(i), 1, h.treeIDBits), InvalidNode, pm.Positions[i])
	}
	return b, nil
}

// Applied is the number of records attached so far.
func (b *Builder) Applied() int { return len(b.splits) }

// Apply attaches the next split record: the leaf of V1 gets two children.
func (b *Builder) Apply(r progmesh.Record) error {
	i := len(b.splits)
	n := int32(len(b.leaf))
	if r.V1 < 0 || r.V1 >= n {
		return &CorruptionError{Record: i, Parent: r.V1}
	}
	if r.VL < 0 || r.VL >= n || r.VR < 0 || r.VR >= n {
		return &CorruptionError{Record: i, Parent: r.V1, Err: fmt.Errorf("bounding vertices (%d, %d) out of range", r.VL, r.VR)}
	}
	parent := b.leaf[r.V1]
	if !b.h.IsLeaf(parent) {
		return &CorruptionError{Record: i, Parent: r.V1}
	}

	bits := b.h.treeIDBits
	idx := b.h.nodes[parent].Index
	childID := uint64(idx.NodeID(bits)) << 1
	if childID|1 > nodeIDMask(bits) {
		return fmt.Errorf("%w: split %d below node %#x", ErrIndexOverflow, i, uint32(idx))
	}

	h01, err := b.mesh.VertexSplit(r.P0, mesh.VertexHandle(r.V1), mesh.VertexHandle(r.VL), mesh.VertexHandle(r.VR))
	if err != nil {
		return &CorruptionError{Record: i, Parent: r.V1, Err: err}
	}
	if v0 := b.mesh.FromVertex(h01); int(v0) != len(b.leaf) {
		return &CorruptionError{Record: i, Parent: r.V1, Err: fmt.Errorf("split created vertex %d", v0)}
	}

	treeID := idx.TreeID(bits)
	p1 := b.h.nodes[parent].Position
	l := b.h.newNode(NewNodeIndex(treeID, uint32(childID), bits), parent, p1)
	rc := b.h.newNode(NewNodeIndex(treeID, uint32(childID|1), bits), parent, r.P0)
	b.h.nodes[parent].LChild = l
	b.h.nodes[parent].RChild = rc

	b.leaf[r.V1] = l
	b.leaf = append(b.leaf, rc)
	b.splits = append(b.splits, split{
		node: parent,
		fl:   b.mesh.FaceOf(h01),
		fr:   b.mesh.FaceOf(h01.Opposite()),
	})
	return nil
}

// Finish resolves the fundamental cuts against the full resolution mesh and computes the
// bounds of every node. The builder must not be used afterwards.
func (b *Builder) Finish() (*Hierarchy, error) {
	h := b.h
	for i, s := range b.splits {
		lcut, ok := b.outsideCorner(s.node, s.fl)
		if !ok {
			return nil, &CorruptionError{Record: i, Err: fmt.Errorf("no left cut vertex")}
		}
		rcut, ok := b.outsideCorner(s.node, s.fr)
		if !ok {
			return nil, &CorruptionError{Record: i, Err: fmt.Errorf("no right cut vertex")}
		}
		h.nodes[s.node].FundLCut = lcut
		h.nodes[s.node].FundRCut = rcut
	}

	for v, n := range b.leaf {
		h.nodes[n].Normal = Vec3Of(b.mesh.VertexNormal(mesh.VertexHandle(v)))
	}
	computeBounds(h)
	return h, nil
}

func (b *Builder) outsideCorner(node NodeHandle, f mesh.FaceHandle) (NodeIndex, bool) {
	idx := b.h.nodes[node].Index
	for _, v := range b.mesh.FaceVertices(f) {
		leaf := b.h.nodes[b.leaf[v]].Index
		if !b.h.IsAncestor(idx, leaf) {
			return leaf, true
		}
	}
	return InvalidNodeIndex, false
}

// BuildHierarchy applies every split of pm.
func BuildHierarchy(pm *progmesh.ProgMesh) (*Hierarchy, error) {
	b, err := NewBuilder(pm)
	if err != nil {
		return nil, err
	}
	for _, r := range pm.Splits {
		if err := b.Apply(r); err != nil {
			return nil, err
		}
	}
	return b.Finish()
}

// computeBounds walks the arena backwards, children always follow their parent.
func computeBounds(h *Hierarchy) {
	cone := make([]float32, len(h.nodes))
	for n := len(h.nodes) - 1; n >= 0; n-- {
		node := &h.nodes[n]
		if !node.LChild.IsValid() {
			continue
		}
		l, r := &h.nodes[node.LChild], &h.nodes[node.RChild]
		p := Vec3Of(node.Position)

		normal := l.Normal.Add(r.Normal).Normalized()
		if normal.LengthSquared() == 0 {
			normal = l.Normal
		}
		node.Normal = normal

		var theta, radius, mue, sigma float32
		for _, c := range [2]NodeHandle{node.LChild, node.RChild} {
			child := &h.nodes[c]
			d := Vec3Of(child.Position).Sub(p)
			dist := d.Length()
			theta = math32.Max(theta, angle(normal, child.Normal)+cone[c])
			radius = math32.Max(radius, dist+child.Radius)
			mue = math32.Max(mue, math32.Sqrt(child.MueSquare)+dist)
			sigma = math32.Max(sigma, math32.Sqrt(child.SigmaSquare)+math32.Abs(d.Dot(normal)))
		}
		cone[n] = theta
		if theta >= math32.Pi/2 {
			node.SinSquare = 1
		} else {
			s := math32.Sin(theta)
			node.SinSquare = s * s
		}
		node.Radius = radius
		node.MueSquare = mue * mue
		node.SigmaSquare = sigma * sigma
	}
}
