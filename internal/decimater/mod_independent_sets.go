package decimater

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/ecopia-map/vdpm/internal/mesh"
)

// ModIndependentSets allows only collapses whose neighbourhoods do not overlap within one
// pass. A collapse locks the surviving vertex and its one-ring until ResetPass.
type ModIndependentSets struct {
	mesh   *mesh.TriMesh
	locked *roaring.Bitmap
}

func NewModIndependentSets() *ModIndependentSets {
	return &ModIndependentSets{locked: roaring.New()}
}

func (s *ModIndependentSets) Name() string   { return "IndependentSets" }
func (s *ModIndependentSets) IsBinary() bool { return true }

func (s *ModIndependentSets) Initialize(e *Engine) error {
	s.mesh = e.Mesh()
	s.locked.Clear()
	return nil
}

func (s *ModIndependentSets) ResetPass() {
	s.locked.Clear()
}

func (s *ModIndependentSets) CollapsePriority(ci *CollapseInfo) float64 {
	if s.locked.Contains(uint32(ci.V0)) || s.locked.Contains(uint32(ci.V1)) {
		return Illegal
	}
	return Legal
}

func (s *ModIndependentSets) PostprocessCollapse(ci *CollapseInfo) {
	s.locked.Add(uint32(ci.V1))
	for _, v := range s.mesh.VertexVertices(ci.V1) {
		s.locked.Add(uint32(v))
	}
}

// Locked is the number of vertices locked in the current pass.
func (s *ModIndependentSets) Locked() uint64 {
	return s.locked.GetCardinality()
}
