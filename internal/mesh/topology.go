package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// IsCollapseOK reports whether collapsing h (its from-vertex v0 into its to-vertex v1)
// keeps the mesh a manifold. Boundary vertices are never removed, so v0 must be interior.
func (m *TriMesh) IsCollapseOK(h HalfedgeHandle) bool {
	if !h.IsValid() || int(h) >= len(m.halfedges) || m.edgeStatus[h.Edge()].Deleted() {
		return false
	}
	o := h.Opposite()
	v0 := m.halfedges[o].to
	v1 := m.halfedges[h].to
	if m.vertices[v0].status.Deleted() || m.vertices[v1].status.Deleted() {
		return false
	}
	if m.IsBoundaryVertex(v0) {
		return false
	}

	vl := m.halfedges[m.halfedges[h].next].to
	vr := m.halfedges[m.halfedges[o].next].to
	if vl == vr {
		return false
	}

	// link condition: v0 and v1 may only share vl and vr
	ring0 := m.VertexVertices(v0)
	for _, w := range m.VertexVertices(v1) {
		if w == vl || w == vr {
			continue
		}
		for _, u := range ring0 {
			if u == w {
				return false
			}
		}
	}

	// collapsing an edge of a tetrahedron
	if m.FindHalfedge(vl, vr).IsValid() && m.Valence(vl) == 3 && m.Valence(vr) == 3 {
		return false
	}
	return true
}

// Collapse removes the from-vertex v0 of h, moving its edges onto v1, and deletes the two
// faces adjacent to h. The caller checks IsCollapseOK first.
func (m *TriMesh) Collapse(h HalfedgeHandle) {
	h1 := m.halfedges[h].next
	o := h.Opposite()
	o1 := m.halfedges[o].next

	m.collapseEdge(h)

	if m.halfedges[m.halfedges[h1].next].next == h1 {
		m.collapseLoop(m.halfedges[h1].next)
	}
	if m.halfedges[m.halfedges[o1].next].next == o1 {
		m.collapseLoop(o1)
	}
}

func (m *TriMesh) collapseEdge(h HalfedgeHandle) {
	hn := m.halfedges[h].next
	hp := m.halfedges[h].prev
	o := h.Opposite()
	on := m.halfedges[o].next
	op := m.halfedges[o].prev
	fh := m.halfedges[h].face
	fo := m.halfedges[o].face
	v1 := m.halfedges[h].to
	v0 := m.halfedges[o].to

	for _, out := range m.Outgoing(v0) {
		m.halfedges[out.Opposite()].to = v1
	}

	m.setNext(hp, hn)
	m.setNext(op, on)

	if fh.IsValid() {
		m.faces[fh].halfedge = hn
	}
	if fo.IsValid() {
		m.faces[fo].halfedge = on
	}

	if m.vertices[v1].halfedge == o {
		m.vertices[v1].halfedge = hn
	}
	m.adjustOutgoing(v1)
	m.vertices[v0].halfedge = InvalidHalfedge

	m.deleteEdge(h.Edge())
	m.deleteVertex(v0)
}

// collapseLoop removes the two-halfedge loop starting at h0 left behind by collapseEdge.
func (m *TriMesh) collapseLoop(h0 HalfedgeHandle) {
	h1 := m.halfedges[h0].next
	o0 := h0.Opposite()
	o1 := h1.Opposite()
	v0 := m.halfedges[h0].to
	v1 := m.halfedges[h1].to
	fh := m.halfedges[h0].face
	fo := m.halfedges[o0].face

	m.setNext(h1, m.halfedges[o0].next)
	m.setNext(m.halfedges[o0].prev, h1)
	m.halfedges[h1].face = fo

	m.vertices[v0].halfedge = h1
	m.adjustOutgoing(v0)
	m.vertices[v1].halfedge = o1
	m.adjustOutgoing(v1)

	if fo.IsValid() && m.faces[fo].halfedge == o0 {
		m.faces[fo].halfedge = h1
	}

	if fh.IsValid() {
		m.faces[fh].halfedge = InvalidHalfedge
		m.deleteFace(fh)
	}
	m.deleteEdge(h0.Edge())
}

func (m *TriMesh) deleteVertex(v VertexHandle) {
	m.vertices[v].status.set(StatusDeleted, true)
	m.freeVertices = append(m.freeVertices, v)
}

func (m *TriMesh) deleteEdge(e EdgeHandle) {
	m.edgeStatus[e].set(StatusDeleted, true)
	m.freeEdges = append(m.freeEdges, e)
}

func (m *TriMesh) deleteFace(f FaceHandle) {
	m.faces[f].status.set(StatusDeleted, true)
	m.freeFaces = append(m.freeFaces, f)
}

// VertexSplit is the inverse of Collapse. It adds a vertex v0 at p0, connects it to v1, vl
// and vr, and hands it the faces of v1 lying counter-clockwise between vl and vr.
// It returns the new halfedge v0 -> v1.
func (m *TriMesh) VertexSplit(p0 r3.Vec, v1, vl, vr VertexHandle) (HalfedgeHandle, error) {
	if !m.IsValidVertex(v1) || !m.IsValidVertex(vl) || !m.IsValidVertex(vr) {
		return InvalidHalfedge, fmt.Errorf("%w: split (%d, %d, %d)", ErrInvalidHandle, v1, vl, vr)
	}
	if vl == vr || vl == v1 || vr == v1 {
		return InvalidHalfedge, fmt.Errorf("%w: split (%d, %d, %d)", ErrNotAdjacent, v1, vl, vr)
	}
	hl := m.FindHalfedge(v1, vl)
	hr := m.FindHalfedge(v1, vr)
	if !hl.IsValid() || !hr.IsValid() {
		return InvalidHalfedge, fmt.Errorf("%w: split (%d, %d, %d)", ErrNotAdjacent, v1, vl, vr)
	}

	var fan []HalfedgeHandle
	for h := hl; ; {
		if !m.halfedges[h].face.IsValid() {
			return InvalidHalfedge, fmt.Errorf("%w: split (%d, %d, %d) crosses the boundary", ErrNotAdjacent, v1, vl, vr)
		}
		h = m.CCWRotated(h)
		if h == hr {
			break
		}
		fan = append(fan, h)
	}

	ohr := hr.Opposite()
	nl, pl := m.halfedges[hl].next, m.halfedges[hl].prev
	nr, pr := m.halfedges[ohr].next, m.halfedges[ohr].prev
	faceA := m.halfedges[hl].face
	faceB := m.halfedges[ohr].face

	v0 := m.newVertex(p0)
	a := m.newEdge(v0, vl)
	b := m.newEdge(v0, vr)
	h01 := m.newEdge(v0, v1)
	fl := m.newFace()
	fr := m.newFace()
	ao, bo, h10 := a.Opposite(), b.Opposite(), h01.Opposite()

	for _, h := range fan {
		m.halfedges[h.Opposite()].to = v0
	}

	// a takes the place of hl in the first face of the fan, bo the place of ohr in the last
	m.halfedges[a].face = faceA
	m.halfedges[bo].face = faceB
	m.setNext(a, nl)
	if pl == ohr {
		m.setNext(bo, a)
	} else {
		m.setNext(pl, a)
		m.setNext(bo, nr)
	}
	m.setNext(pr, bo)
	m.faces[faceA].halfedge = a
	m.faces[faceB].halfedge = bo

	for _, h := range [3]HalfedgeHandle{h01, hl, ao} {
		m.halfedges[h].face = fl
	}
	m.setNext(h01, hl)
	m.setNext(hl, ao)
	m.setNext(ao, h01)
	m.faces[fl].halfedge = h01

	for _, h := range [3]HalfedgeHandle{h10, b, ohr} {
		m.halfedges[h].face = fr
	}
	m.setNext(h10, b)
	m.setNext(b, ohr)
	m.setNext(ohr, h10)
	m.faces[fr].halfedge = h10

	m.vertices[v0].halfedge = h01
	if m.halfedges[m.vertices[v1].halfedge.Opposite()].to == v0 {
		m.vertices[v1].halfedge = h10
	}
	m.adjustOutgoing(v1)

	return h01, nil
}

// GarbageCollection compacts the arrays, dropping deleted elements. The returned slice maps
// every old vertex handle to its new one, InvalidVertex for removed vertices.
func (m *TriMesh) GarbageCollection() []VertexHandle {
	vmap := make([]VertexHandle, len(m.vertices))
	vertices := make([]vertex, 0, m.NVertices())
	for i := range m.vertices {
		if m.vertices[i].status.Deleted() {
			vmap[i] = InvalidVertex
			continue
		}
		vmap[i] = VertexHandle(len(vertices))
		vertices = append(vertices, m.vertices[i])
	}

	emap := make([]EdgeHandle, len(m.edgeStatus))
	edgeStatus := make([]Status, 0, m.NEdges())
	for i := range m.edgeStatus {
		if m.edgeStatus[i].Deleted() {
			emap[i] = InvalidEdge
			continue
		}
		emap[i] = EdgeHandle(len(edgeStatus))
		edgeStatus = append(edgeStatus, m.edgeStatus[i])
	}

	fmap := make([]FaceHandle, len(m.faces))
	faces := make([]face, 0, m.NFaces())
	for i := range m.faces {
		if m.faces[i].status.Deleted() {
			fmap[i] = InvalidFace
			continue
		}
		fmap[i] = FaceHandle(len(faces))
		faces = append(faces, m.faces[i])
	}

	hmap := func(h HalfedgeHandle) HalfedgeHandle {
		if !h.IsValid() {
			return h
		}
		e := emap[h.Edge()]
		if !e.IsValid() {
			return InvalidHalfedge
		}
		return e.Halfedge(int(h & 1))
	}
	fmapOf := func(f FaceHandle) FaceHandle {
		if !f.IsValid() {
			return f
		}
		return fmap[f]
	}

	halfedges := make([]halfedge, 2*len(edgeStatus))
	for i := range m.edgeStatus {
		if !emap[i].IsValid() {
			continue
		}
		for k := 0; k < 2; k++ {
			old := m.halfedges[EdgeHandle(i).Halfedge(k)]
			halfedges[emap[i].Halfedge(k)] = halfedge{
				to:   vmap[old.to],
				next: hmap(old.next),
				prev: hmap(old.prev),
				face: fmapOf(old.face),
			}
		}
	}
	for i := range vertices {
		vertices[i].halfedge = hmap(vertices[i].halfedge)
	}
	for i := range faces {
		faces[i].halfedge = hmap(faces[i].halfedge)
	}

	m.vertices, m.halfedges, m.edgeStatus, m.faces = vertices, halfedges, edgeStatus, faces
	m.freeVertices, m.freeEdges, m.freeFaces = nil, nil, nil
	return vmap
}
