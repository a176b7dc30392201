package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

type vertex struct {
	pos      r3.Vec
	halfedge HalfedgeHandle // outgoing, a boundary one if the vertex is on the boundary
	status   Status
}

type halfedge struct {
	to   VertexHandle
	next HalfedgeHandle
	prev HalfedgeHandle
	face FaceHandle
}

type face struct {
	halfedge HalfedgeHandle
	status   Status
}

// TriMesh is a manifold triangle mesh stored as a halfedge structure over flat arrays.
// Removed elements are only marked deleted; their slots are recycled by later splits.
type TriMesh struct {
	vertices   []vertex
	halfedges  []halfedge
	edgeStatus []Status
	faces      []face

	freeVertices []VertexHandle
	freeEdges    []EdgeHandle
	freeFaces    []FaceHandle
}

// Builder collects vertices and triangles and links them into a TriMesh.
type Builder struct {
	positions []r3.Vec
	faces     [][3]VertexHandle
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) AddVertex(p r3.Vec) VertexHandle {
	b.positions = append(b.positions, p)
	return VertexHandle(len(b.positions) - 1)
}

func (b *Builder) AddFace(v0, v1, v2 VertexHandle) error {
	n := VertexHandle(len(b.positions))
	for _, v := range [3]VertexHandle{v0, v1, v2} {
		if v < 0 || v >= n {
			return fmt.Errorf("%w: vertex %d", ErrInvalidHandle, v)
		}
	}
	if v0 == v1 || v1 == v2 || v2 == v0 {
		return fmt.Errorf("%w: (%d, %d, %d)", ErrDegenerateFace, v0, v1, v2)
	}
	b.faces = append(b.faces, [3]VertexHandle{v0, v1, v2})
	return nil
}

// Build links the collected faces. Inconsistently oriented or non-manifold input is rejected.
func (b *Builder) Build() (*TriMesh, error) {
	m := &TriMesh{vertices: make([]vertex, len(b.positions))}
	for i, p := range b.positions {
		m.vertices[i] = vertex{pos: p, halfedge: InvalidHalfedge}
	}

	edgeOf := make(map[[2]VertexHandle]EdgeHandle, len(b.faces)*3/2)
	halfedgeFor := func(from, to VertexHandle) HalfedgeHandle {
		key := [2]VertexHandle{from, to}
		if to < from {
			key = [2]VertexHandle{to, from}
		}
		e, ok := edgeOf[key]
		if !ok {
			e = m.newEdge(key[0], key[1]).Edge()
			edgeOf[key] = e
		}
		h := e.Halfedge(0)
		if m.halfedges[h].to != to {
			h = h.Opposite()
		}
		return h
	}

	for i, f := range b.faces {
		fh := m.newFace()
		var hs [3]HalfedgeHandle
		for k := 0; k < 3; k++ {
			hs[k] = halfedgeFor(f[k], f[(k+1)%3])
			if m.halfedges[hs[k]].face.IsValid() {
				return nil, fmt.Errorf("%w: face %d reuses edge (%d, %d)", ErrComplexEdge, i, f[k], f[(k+1)%3])
			}
		}
		for k := 0; k < 3; k++ {
			m.halfedges[hs[k]].face = fh
			m.setNext(hs[k], hs[(k+1)%3])
			m.vertices[f[k]].halfedge = hs[k]
		}
		m.faces[fh].halfedge = hs[0]
	}

	boundaryOut := make(map[VertexHandle]HalfedgeHandle)
	boundaryIn := make(map[VertexHandle]int)
	degree := make([]int, len(m.vertices))
	for i := range m.halfedges {
		h := HalfedgeHandle(i)
		from := m.FromVertex(h)
		degree[from]++
		if m.halfedges[h].face.IsValid() {
			continue
		}
		if _, dup := boundaryOut[from]; dup {
			return nil, fmt.Errorf("%w: vertex %d", ErrComplexVertex, from)
		}
		boundaryOut[from] = h
		boundaryIn[m.halfedges[h].to]++
	}
	for v, h := range boundaryOut {
		if boundaryIn[v] != 1 {
			return nil, fmt.Errorf("%w: vertex %d", ErrComplexVertex, v)
		}
		next, ok := boundaryOut[m.halfedges[h].to]
		if !ok {
			return nil, fmt.Errorf("%w: vertex %d", ErrComplexVertex, m.halfedges[h].to)
		}
		m.setNext(h, next)
		m.vertices[v].halfedge = h
	}

	for i := range m.vertices {
		v := VertexHandle(i)
		if !m.vertices[v].halfedge.IsValid() {
			continue
		}
		if n := len(m.Outgoing(v)); n != degree[v] {
			return nil, fmt.Errorf("%w: vertex %d has %d fans", ErrComplexVertex, v, degree[v]-n+1)
		}
	}
	return m, nil
}

func (m *TriMesh) newVertex(p r3.Vec) VertexHandle {
	if n := len(m.freeVertices); n > 0 {
		v := m.freeVertices[n-1]
		m.freeVertices = m.freeVertices[:n-1]
		m.vertices[v] = vertex{pos: p, halfedge: InvalidHalfedge}
		return v
	}
	m.vertices = append(m.vertices, vertex{pos: p, halfedge: InvalidHalfedge})
	return VertexHandle(len(m.vertices) - 1)
}

// newEdge returns the halfedge from -> to of a fresh, unlinked edge.
func (m *TriMesh) newEdge(from, to VertexHandle) HalfedgeHandle {
	var e EdgeHandle
	if n := len(m.freeEdges); n > 0 {
		e = m.freeEdges[n-1]
		m.freeEdges = m.freeEdges[:n-1]
		m.edgeStatus[e] = 0
	} else {
		e = EdgeHandle(len(m.edgeStatus))
		m.edgeStatus = append(m.edgeStatus, 0)
		m.halfedges = append(m.halfedges, halfedge{}, halfedge{})
	}
	h := e.Halfedge(0)
	m.halfedges[h] = halfedge{to: to, next: InvalidHalfedge, prev: InvalidHalfedge, face: InvalidFace}
	m.halfedges[h.Opposite()] = halfedge{to: from, next: InvalidHalfedge, prev: InvalidHalfedge, face: InvalidFace}
	return h
}

func (m *TriMesh) newFace() FaceHandle {
	if n := len(m.freeFaces); n > 0 {
		f := m.freeFaces[n-1]
		m.freeFaces = m.freeFaces[:n-1]
		m.faces[f] = face{halfedge: InvalidHalfedge}
		return f
	}
	m.faces = append(m.faces, face{halfedge: InvalidHalfedge})
	return FaceHandle(len(m.faces) - 1)
}

func (m *TriMesh) setNext(h, next HalfedgeHandle) {
	m.halfedges[h].next = next
	m.halfedges[next].prev = h
}

// AddVertex appends an isolated vertex.
func (m *TriMesh) AddVertex(p r3.Vec) VertexHandle {
	return m.newVertex(p)
}

// NVertices, NEdges and NFaces count live elements.
func (m *TriMesh) NVertices() int { return len(m.vertices) - len(m.freeVertices) }
func (m *TriMesh) NEdges() int    { return len(m.edgeStatus) - len(m.freeEdges) }
func (m *TriMesh) NFaces() int    { return len(m.faces) - len(m.freeFaces) }

// VertexSlots, EdgeSlots and FaceSlots are the array sizes, deleted elements included.
// Per element properties are sized by them.
func (m *TriMesh) VertexSlots() int { return len(m.vertices) }
func (m *TriMesh) EdgeSlots() int   { return len(m.edgeStatus) }
func (m *TriMesh) FaceSlots() int   { return len(m.faces) }

func (m *TriMesh) IsValidVertex(v VertexHandle) bool {
	return v >= 0 && int(v) < len(m.vertices) && !m.vertices[v].status.Deleted()
}

func (m *TriMesh) Position(v VertexHandle) r3.Vec       { return m.vertices[v].pos }
func (m *TriMesh) SetPosition(v VertexHandle, p r3.Vec) { m.vertices[v].pos = p }

// Halfedge returns the outgoing halfedge stored at v.
func (m *TriMesh) Halfedge(v VertexHandle) HalfedgeHandle   { return m.vertices[v].halfedge }
func (m *TriMesh) ToVertex(h HalfedgeHandle) VertexHandle   { return m.halfedges[h].to }
func (m *TriMesh) FromVertex(h HalfedgeHandle) VertexHandle { return m.halfedges[h^1].to }
func (m *TriMesh) Next(h HalfedgeHandle) HalfedgeHandle     { return m.halfedges[h].next }
func (m *TriMesh) Prev(h HalfedgeHandle) HalfedgeHandle     { return m.halfedges[h].prev }
func (m *TriMesh) FaceOf(h HalfedgeHandle) FaceHandle       { return m.halfedges[h].face }
func (m *TriMesh) FaceHalfedge(f FaceHandle) HalfedgeHandle { return m.faces[f].halfedge }

// CWRotated and CCWRotated step around the from-vertex of h.
func (m *TriMesh) CWRotated(h HalfedgeHandle) HalfedgeHandle  { return m.halfedges[h^1].next }
func (m *TriMesh) CCWRotated(h HalfedgeHandle) HalfedgeHandle { return m.halfedges[h].prev ^ 1 }

func (m *TriMesh) VertexStatus(v VertexHandle) Status { return m.vertices[v].status }
func (m *TriMesh) EdgeStatus(e EdgeHandle) Status     { return m.edgeStatus[e] }
func (m *TriMesh) FaceStatus(f FaceHandle) Status     { return m.faces[f].status }

func (m *TriMesh) SetLocked(v VertexHandle, on bool) { m.vertices[v].status.set(StatusLocked, on) }
func (m *TriMesh) SetFeatureVertex(v VertexHandle, on bool) {
	m.vertices[v].status.set(StatusFeature, on)
}
func (m *TriMesh) SetFeatureEdge(e EdgeHandle, on bool) { m.edgeStatus[e].set(StatusFeature, on) }

func (m *TriMesh) IsBoundaryHalfedge(h HalfedgeHandle) bool { return !m.halfedges[h].face.IsValid() }

func (m *TriMesh) IsBoundaryEdge(e EdgeHandle) bool {
	return m.IsBoundaryHalfedge(e.Halfedge(0)) || m.IsBoundaryHalfedge(e.Halfedge(1))
}

// IsBoundaryVertex is true for isolated vertices too.
func (m *TriMesh) IsBoundaryVertex(v VertexHandle) bool {
	h := m.vertices[v].halfedge
	return !h.IsValid() || !m.halfedges[h].face.IsValid()
}

// Outgoing lists the halfedges leaving v in counter-clockwise order.
func (m *TriMesh) Outgoing(v VertexHandle) []HalfedgeHandle {
	start := m.vertices[v].halfedge
	if !start.IsValid() {
		return nil
	}
	var out []HalfedgeHandle
	h := start
	for {
		out = append(out, h)
		h = m.CCWRotated(h)
		if h == start || len(out) > len(m.halfedges) {
			return out
		}
	}
}

func (m *TriMesh) VertexVertices(v VertexHandle) []VertexHandle {
	out := m.Outgoing(v)
	vs := make([]VertexHandle, len(out))
	for i, h := range out {
		vs[i] = m.halfedges[h].to
	}
	return vs
}

func (m *TriMesh) VertexFaces(v VertexHandle) []FaceHandle {
	var fs []FaceHandle
	for _, h := range m.Outgoing(v) {
		if f := m.halfedges[h].face; f.IsValid() {
			fs = append(fs, f)
		}
	}
	return fs
}

func (m *TriMesh) FaceVertices(f FaceHandle) [3]VertexHandle {
	h := m.faces[f].halfedge
	n := m.halfedges[h].next
	return [3]VertexHandle{m.FromVertex(h), m.halfedges[h].to, m.halfedges[n].to}
}

func (m *TriMesh) Valence(v VertexHandle) int {
	return len(m.Outgoing(v))
}

// FindHalfedge returns the halfedge from -> to, or InvalidHalfedge.
func (m *TriMesh) FindHalfedge(from, to VertexHandle) HalfedgeHandle {
	for _, h := range m.Outgoing(from) {
		if m.halfedges[h].to == to {
			return h
		}
	}
	return InvalidHalfedge
}

// LiveVertices and LiveFaces list the non-deleted handles in increasing order.
func (m *TriMesh) LiveVertices() []VertexHandle {
	vs := make([]VertexHandle, 0, m.NVertices())
	for i := range m.vertices {
		if !m.vertices[i].status.Deleted() {
			vs = append(vs, VertexHandle(i))
		}
	}
	return vs
}

func (m *TriMesh) LiveFaces() []FaceHandle {
	fs := make([]FaceHandle, 0, m.NFaces())
	for i := range m.faces {
		if !m.faces[i].status.Deleted() {
			fs = append(fs, FaceHandle(i))
		}
	}
	return fs
}

func (m *TriMesh) LiveEdges() []EdgeHandle {
	es := make([]EdgeHandle, 0, m.NEdges())
	for i := range m.edgeStatus {
		if !m.edgeStatus[i].Deleted() {
			es = append(es, EdgeHandle(i))
		}
	}
	return es
}

// adjustOutgoing makes a boundary vertex store its boundary halfedge.
func (m *TriMesh) adjustOutgoing(v VertexHandle) {
	start := m.vertices[v].halfedge
	if !start.IsValid() {
		return
	}
	h := start
	for {
		if !m.halfedges[h].face.IsValid() {
			m.vertices[v].halfedge = h
			return
		}
		h = m.CCWRotated(h)
		if h == start {
			return
		}
	}
}
