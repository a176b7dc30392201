package decimater

import (
	"errors"

	"gonum.org/v1/gonum/spatial/r3"
)

// ModQuadric costs a collapse by the squared distance of P1 to the planes of the faces
// that used to meet at V0 and V1.
type ModQuadric struct {
	// MaxError makes collapses above it illegal. Zero means no limit.
	MaxError float64

	quadrics []Quadric
}

func NewModQuadric() *ModQuadric {
	return &ModQuadric{}
}

func (q *ModQuadric) Name() string   { return "Quadric" }
func (q *ModQuadric) IsBinary() bool { return false }

func (q *ModQuadric) Initialize(e *Engine) error {
	m := e.Mesh()
	if m.NFaces() == 0 {
		return errors.New("mesh has no faces")
	}
	q.quadrics = make([]Quadric, m.VertexSlots())
	for _, f := range m.LiveFaces() {
		vs := m.FaceVertices(f)
		n := m.FaceNormal(f)
		plane := PlaneQuadric(n, -r3.Dot(n, m.Position(vs[0])))
		for _, v := range vs {
			q.quadrics[v].Add(plane)
		}
	}
	return nil
}

// Error is the quadric error of the collapse, never negative.
func (q *ModQuadric) Error(ci *CollapseInfo) float64 {
	sum := q.quadrics[ci.V0]
	sum.Add(q.quadrics[ci.V1])
	if err := sum.Value(ci.P1); err > 0 {
		return err
	}
	return 0
}

func (q *ModQuadric) CollapsePriority(ci *CollapseInfo) float64 {
	err := q.Error(ci)
	if q.MaxError > 0 && err > q.MaxError {
		return Illegal
	}
	return err
}

func (q *ModQuadric) PostprocessCollapse(ci *CollapseInfo) {
	q.quadrics[ci.V1].Add(q.quadrics[ci.V0])
}
