package vdpm

import (
	"fmt"

	"github.com/ecopia-map/vdpm/internal/mesh"
	"github.com/ecopia-map/vdpm/internal/progmesh"
	"github.com/golang/glog"
)

type RefinerConfig struct {
	// NodeBudget caps the splits and collapses of one refinement pass. Zero means no cap.
	NodeBudget int
	// Debug logs every split and collapse through glog.V(2).
	Debug bool
}

func DefaultRefinerConfig() RefinerConfig {
	return RefinerConfig{NodeBudget: 1 << 16}
}

// Stats counts the work of one refinement pass.
type Stats struct {
	VSplits, ECols int
}

// ActiveVertex pairs an active node with the mesh vertex standing for it.
type ActiveVertex struct {
	Node   NodeIndex
	Vertex mesh.VertexHandle
}

// Refiner owns the runtime mesh of a hierarchy and keeps its active front adapted to the
// viewing parameters. It is not safe for concurrent use.
type Refiner struct {
	hierarchy *Hierarchy
	mesh      *mesh.TriMesh
	window    *Window
	front     *VFront
	params    *ViewingParameters
	cfg       RefinerConfig

	nodeVertex []mesh.VertexHandle
	vertexNode []NodeHandle
	forcing    []bool

	stats Stats
}

// NewRefiner starts from the base mesh of pm with every root active.
func NewRefiner(h *Hierarchy, pm *progmesh.ProgMesh, cfg RefinerConfig) (*Refiner, error) {
	if pm.NBaseVertices() != h.NumRoots() {
		return nil, fmt.Errorf("vdpm: %d base vertices for %d roots", pm.NBaseVertices(), h.NumRoots())
	}
	m, err := progmesh.BaseMesh(pm)
	if err != nil {
		return nil, err
	}
	r := &Refiner{
		hierarchy:  h,
		mesh:       m,
		window:     NewWindow(h),
		front:      NewVFront(h.NumNodes()),
		params:     NewViewingParameters(),
		cfg:        cfg,
		nodeVertex: make([]mesh.VertexHandle, h.NumNodes()),
		vertexNode: make([]NodeHandle, m.VertexSlots(), pm.NVertices()),
		forcing:    make([]bool, h.NumNodes()),
	}
	for i := range r.nodeVertex {
		r.nodeVertex[i] = mesh.InvalidVertex
	}
	roots := h.Roots()
	for _, n := range roots {
		r.nodeVertex[n] = mesh.VertexHandle(n)
		r.vertexNode[n] = n
	}
	r.window.Init(len(roots))
	r.front.Init(roots)
	return r, nil
}

func (r *Refiner) Mesh() *mesh.TriMesh        { return r.mesh }
func (r *Refiner) Hierarchy() *Hierarchy      { return r.hierarchy }
func (r *Refiner) Window() *Window            { return r.window }
func (r *Refiner) Front() *VFront             { return r.front }
func (r *Refiner) Params() *ViewingParameters { return r.params }

// Totals counts every split and collapse since the refiner was created.
func (r *Refiner) Totals() Stats { return r.stats }

// NodeOf is the active node a live vertex stands for.
func (r *Refiner) NodeOf(v mesh.VertexHandle) NodeHandle { return r.vertexNode[v] }

// VertexOf is the vertex of an active node, InvalidVertex for inactive nodes.
func (r *Refiner) VertexOf(n NodeHandle) mesh.VertexHandle { return r.nodeVertex[n] }

// ActiveFront lists the active nodes with their vertices, in front order.
func (r *Refiner) ActiveFront() []ActiveVertex {
	nodes := r.front.Nodes()
	out := make([]ActiveVertex, len(nodes))
	for i, n := range nodes {
		out[i] = ActiveVertex{Node: r.hierarchy.Index(n), Vertex: r.nodeVertex[n]}
	}
	return out
}

// Update installs fresh viewing parameters and refines for them.
func (r *Refiner) Update(vp *ViewingParameters) Stats {
	r.params = vp
	return r.AdaptiveRefinement()
}

// AdaptiveRefinement makes one pass over the front, splitting nodes whose projected error
// is too large and collapsing siblings whose parent is accurate enough, until the pass ends
// or the node budget is spent.
func (r *Refiner) AdaptiveRefinement() Stats {
	start := r.stats
	h := r.hierarchy
	for r.front.Begin(); !r.front.End(); {
		if r.cfg.NodeBudget > 0 && r.stats.VSplits+r.stats.ECols-start.VSplits-start.ECols >= r.cfg.NodeBudget {
			break
		}
		n := r.front.Current()
		if r.QRefine(n) {
			if h.IsLeaf(n) || !r.ForceVSplit(n) {
				r.front.Next()
			}
			continue
		}
		if !h.IsRoot(n) {
			parent := h.Parent(n)
			if v0v1, ok := r.ECOLLegal(parent); ok && !r.QRefine(parent) {
				r.ECol(parent, v0v1)
				continue
			}
		}
		r.front.Next()
	}
	stats := Stats{VSplits: r.stats.VSplits - start.VSplits, ECols: r.stats.ECols - start.ECols}
	if r.cfg.Debug {
		glog.V(2).Infof("refinement: %d vsplits, %d ecols, front %d", stats.VSplits, stats.ECols, r.front.Len())
	}
	return stats
}

// QRefine reports whether n is visible and too coarse for the current view.
func (r *Refiner) QRefine(n NodeHandle) bool {
	node := r.hierarchy.Node(n)
	p := Vec3Of(node.Position)
	if r.params.OutsideViewFrustum(p, node.Radius) {
		return false
	}
	toNode := p.Sub(r.params.Eye)
	distanceSquare := toNode.LengthSquared()
	product := toNode.Dot(node.Normal)
	if OrientedAway(node.SinSquare, distanceSquare, product) {
		return false
	}
	return ScreenSpaceError(node.MueSquare, node.SigmaSquare, distanceSquare, product, r.params.KappaSquare())
}

// activeCuts finds the neighbours of the vertex of n that stand for its fundamental cuts.
// missing is a cut leaf without an active neighbour, InvalidNodeIndex when both were found.
func (r *Refiner) activeCuts(n NodeHandle) (vl, vr mesh.VertexHandle, missing NodeIndex) {
	node := r.hierarchy.Node(n)
	vl, vr = mesh.InvalidVertex, mesh.InvalidVertex
	for _, w := range r.mesh.VertexVertices(r.nodeVertex[n]) {
		idx := r.hierarchy.Index(r.vertexNode[w])
		if r.hierarchy.IsAncestor(idx, node.FundLCut) {
			vl = w
		}
		if r.hierarchy.IsAncestor(idx, node.FundRCut) {
			vr = w
		}
	}
	switch {
	case !vl.IsValid():
		missing = node.FundLCut
	case !vr.IsValid():
		missing = node.FundRCut
	}
	return vl, vr, missing
}

// activeAncestor is the active node on the path from the root down to leaf.
func (r *Refiner) activeAncestor(leaf NodeIndex) NodeHandle {
	n, ok := r.hierarchy.NodeHandleOf(leaf)
	if !ok {
		return InvalidNode
	}
	for n.IsValid() && !r.window.IsActive(n) {
		n = r.hierarchy.Parent(n)
	}
	return n
}

// ForceVSplit splits n, first splitting whatever active nodes keep its cut vertices from
// being neighbours of its vertex. It returns false when the cuts cannot be produced.
func (r *Refiner) ForceVSplit(n NodeHandle) bool {
	if r.forcing[n] {
		return false
	}
	r.forcing[n] = true
	defer func() { r.forcing[n] = false }()
	for {
		vl, vr, missing := r.activeCuts(n)
		if missing == InvalidNodeIndex && vl != vr {
			r.VSplit(n, vl, vr)
			return true
		}
		var blocker NodeHandle
		if missing != InvalidNodeIndex {
			blocker = r.activeAncestor(missing)
		} else {
			blocker = r.vertexNode[vl]
		}
		if !blocker.IsValid() || blocker == n || r.hierarchy.IsLeaf(blocker) {
			return false
		}
		if !r.ForceVSplit(blocker) {
			return false
		}
	}
}

// VSplit splits the active node n with the given cut vertices. It panics when the split
// is not possible.
func (r *Refiner) VSplit(n NodeHandle, vl, vr mesh.VertexHandle) {
	h := r.hierarchy
	l, rc := h.LChild(n), h.RChild(n)
	v1 := r.nodeVertex[n]
	h01, err := r.mesh.VertexSplit(h.Node(rc).Position, v1, vl, vr)
	if err != nil {
		panic(fmt.Sprintf("vdpm: vsplit of node %d: %v", n, err))
	}
	v0 := r.mesh.FromVertex(h01)
	for int(v0) >= len(r.vertexNode) {
		r.vertexNode = append(r.vertexNode, InvalidNode)
	}

	r.window.UpdateWithVSplit(n)
	r.nodeVertex[n] = mesh.InvalidVertex
	r.nodeVertex[l], r.nodeVertex[rc] = v1, v0
	r.vertexNode[v1], r.vertexNode[v0] = l, rc
	r.front.Remove(n)
	r.front.Add(l)
	r.front.Add(rc)
	r.stats.VSplits++
	if r.cfg.Debug {
		glog.V(2).Infof("vsplit node %#x: vertex %d splits off %d", uint32(h.Index(n)), v1, v0)
	}
}

// ECOLLegal reports whether the two active children of parent can be collapsed in the
// current mesh, and returns the halfedge from the right child's vertex to the left one's.
func (r *Refiner) ECOLLegal(parent NodeHandle) (mesh.HalfedgeHandle, bool) {
	h := r.hierarchy
	l, rc := h.LChild(parent), h.RChild(parent)
	if !l.IsValid() || !r.window.IsActive(l) || !r.window.IsActive(rc) {
		return mesh.InvalidHalfedge, false
	}
	v0v1 := r.mesh.FindHalfedge(r.nodeVertex[rc], r.nodeVertex[l])
	if !v0v1.IsValid() || r.mesh.IsBoundaryEdge(v0v1.Edge()) {
		return mesh.InvalidHalfedge, false
	}
	vl := r.mesh.ToVertex(r.mesh.Next(v0v1))
	vr := r.mesh.ToVertex(r.mesh.Next(v0v1.Opposite()))
	node := h.Node(parent)
	if !h.IsAncestor(h.Index(r.vertexNode[vl]), node.FundLCut) ||
		!h.IsAncestor(h.Index(r.vertexNode[vr]), node.FundRCut) {
		return mesh.InvalidHalfedge, false
	}
	if !r.mesh.IsCollapseOK(v0v1) {
		return mesh.InvalidHalfedge, false
	}
	return v0v1, true
}

// ECol collapses the children of parent along v0v1, as returned by ECOLLegal.
func (r *Refiner) ECol(parent NodeHandle, v0v1 mesh.HalfedgeHandle) {
	h := r.hierarchy
	l, rc := h.LChild(parent), h.RChild(parent)
	v0, v1 := r.mesh.FromVertex(v0v1), r.mesh.ToVertex(v0v1)
	if v0 != r.nodeVertex[rc] || v1 != r.nodeVertex[l] {
		panic(fmt.Sprintf("vdpm: ecol of node %d along a foreign edge %d -> %d", parent, v0, v1))
	}

	r.window.UpdateWithECol(parent)
	r.mesh.Collapse(v0v1)
	r.nodeVertex[l], r.nodeVertex[rc] = mesh.InvalidVertex, mesh.InvalidVertex
	r.nodeVertex[parent] = v1
	r.vertexNode[v1] = parent
	r.vertexNode[v0] = InvalidNode
	r.front.Remove(l)
	r.front.Remove(rc)
	r.front.Add(parent)
	r.stats.ECols++
	if r.cfg.Debug {
		glog.V(2).Infof("ecol node %#x: vertex %d -> %d", uint32(h.Index(parent)), v0, v1)
	}
}
