package decimater

import (
	"math"

	"github.com/ecopia-map/vdpm/internal/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// ModNormalFlipping vetoes collapses that turn a surviving face around V0 by more than
// MaxNormalDeviation degrees.
type ModNormalFlipping struct {
	MaxNormalDeviation float64

	mesh   *mesh.TriMesh
	minCos float64
}

func NewModNormalFlipping(maxDeviation float64) *ModNormalFlipping {
	return &ModNormalFlipping{MaxNormalDeviation: maxDeviation}
}

func (n *ModNormalFlipping) Name() string   { return "NormalFlipping" }
func (n *ModNormalFlipping) IsBinary() bool { return true }

func (n *ModNormalFlipping) Initialize(e *Engine) error {
	n.mesh = e.Mesh()
	deviation := n.MaxNormalDeviation
	if deviation <= 0 {
		deviation = 90
	}
	n.minCos = math.Cos(deviation * math.Pi / 180)
	return nil
}

func (n *ModNormalFlipping) CollapsePriority(ci *CollapseInfo) float64 {
	for _, f := range n.mesh.VertexFaces(ci.V0) {
		if f == ci.FL || f == ci.FR {
			continue
		}
		vs := n.mesh.FaceVertices(f)
		var p [3]r3.Vec
		for i, v := range vs {
			if v == ci.V0 {
				p[i] = ci.P1
			} else {
				p[i] = n.mesh.Position(v)
			}
		}
		after := mesh.TriangleNormal(p[0], p[1], p[2])
		if r3.Dot(n.mesh.FaceNormal(f), after) < n.minCos {
			return Illegal
		}
	}
	return Legal
}

func (n *ModNormalFlipping) PostprocessCollapse(*CollapseInfo) {}
