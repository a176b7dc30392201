package progmesh

import (
	"fmt"

	"github.com/ecopia-map/vdpm/internal/decimater"
	"github.com/ecopia-map/vdpm/internal/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

type collapse struct {
	v0, v1, vl, vr mesh.VertexHandle
	p0             r3.Vec
}

// ModProgMesh is a binary module that records every collapse. It only vetoes collapses
// that could not be written as a split with two bounding vertices.
type ModProgMesh struct {
	mesh      *mesh.TriMesh
	collapses []collapse
	levels    []int
	maxLevel  int

	vertexMap []int32
}

func NewModProgMesh() *ModProgMesh {
	return &ModProgMesh{}
}

func (p *ModProgMesh) Name() string   { return "ProgMesh" }
func (p *ModProgMesh) IsBinary() bool { return true }

func (p *ModProgMesh) Initialize(e *decimater.Engine) error {
	p.mesh = e.Mesh()
	p.collapses = p.collapses[:0]
	p.levels = make([]int, p.mesh.VertexSlots())
	p.maxLevel = 0
	p.vertexMap = nil
	return nil
}

func (p *ModProgMesh) CollapsePriority(ci *decimater.CollapseInfo) float64 {
	if !ci.VL.IsValid() || !ci.VR.IsValid() {
		return decimater.Illegal
	}
	return decimater.Legal
}

func (p *ModProgMesh) PostprocessCollapse(ci *decimater.CollapseInfo) {
	p.collapses = append(p.collapses, collapse{v0: ci.V0, v1: ci.V1, vl: ci.VL, vr: ci.VR, p0: ci.P0})
	level := max(p.levels[ci.V0], p.levels[ci.V1]) + 1
	p.levels[ci.V1] = level
	p.maxLevel = max(p.maxLevel, level)
}

// Collapses is the number of collapses recorded so far.
func (p *ModProgMesh) Collapses() int { return len(p.collapses) }

// Finish renumbers the vertices and returns the progressive mesh. Base vertices keep their
// relative order; the vertex removed by the last collapse is created by the first split.
func (p *ModProgMesh) Finish() (*ProgMesh, error) {
	if p.mesh == nil {
		return nil, ErrNotFinished
	}
	m := p.mesh
	live := m.LiveVertices()
	nBase := len(live)
	n := len(p.collapses)

	vmap := make([]int32, m.VertexSlots())
	for i := range vmap {
		vmap[i] = -1
	}
	for i, v := range live {
		vmap[v] = int32(i)
	}
	for k, c := range p.collapses {
		if vmap[c.v0] >= 0 {
			return nil, fmt.Errorf("progmesh: vertex %d removed twice", c.v0)
		}
		vmap[c.v0] = int32(nBase + n - 1 - k)
	}

	pm := &ProgMesh{
		Positions:    make([]r3.Vec, nBase),
		Faces:        make([][3]uint32, 0, m.NFaces()),
		Splits:       make([]Record, n),
		BitsForRoots: uint32(decimater.BitsForRoots(nBase)),
		MaxLevel:     uint32(p.maxLevel),
	}
	for i, v := range live {
		pm.Positions[i] = m.Position(v)
	}
	for _, f := range m.LiveFaces() {
		vs := m.FaceVertices(f)
		pm.Faces = append(pm.Faces, [3]uint32{uint32(vmap[vs[0]]), uint32(vmap[vs[1]]), uint32(vmap[vs[2]])})
	}
	for i := range pm.Splits {
		c := p.collapses[n-1-i]
		pm.Splits[i] = Record{P0: c.p0, V1: vmap[c.v1], VL: vmap[c.vl], VR: vmap[c.vr]}
	}
	p.vertexMap = vmap
	return pm, nil
}

// VertexMap maps the handles of the decimated mesh to progressive mesh indices. It is
// available after Finish.
func (p *ModProgMesh) VertexMap() []int32 {
	return p.vertexMap
}
