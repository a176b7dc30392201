package progmesh

import (
	"fmt"

	"github.com/ecopia-map/vdpm/internal/mesh"
)

// BaseMesh links the base vertices and faces. Vertex i of the result is base vertex i.
func BaseMesh(pm *ProgMesh) (*mesh.TriMesh, error) {
	b := mesh.NewBuilder()
	for _, p := range pm.Positions {
		b.AddVertex(p)
	}
	for _, f := range pm.Faces {
		if err := b.AddFace(mesh.VertexHandle(f[0]), mesh.VertexHandle(f[1]), mesh.VertexHandle(f[2])); err != nil {
			return nil, fmt.Errorf("progmesh: base mesh: %w", err)
		}
	}
	m, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("progmesh: base mesh: %w", err)
	}
	return m, nil
}

// Apply performs split i on m, which must hold exactly the base mesh and the splits before i.
func Apply(m *mesh.TriMesh, pm *ProgMesh, i int) error {
	if err := pm.checkRecord(i); err != nil {
		return err
	}
	r := pm.Splits[i]
	h, err := m.VertexSplit(r.P0, mesh.VertexHandle(r.V1), mesh.VertexHandle(r.VL), mesh.VertexHandle(r.VR))
	if err != nil {
		return fmt.Errorf("%w: split %d: %v", ErrCorruptRecord, i, err)
	}
	if v0 := m.FromVertex(h); int(v0) != pm.NBaseVertices()+i {
		return fmt.Errorf("%w: split %d created vertex %d", ErrCorruptRecord, i, v0)
	}
	return nil
}

// Replay builds the base mesh and applies the first nSplits splits, all of them when
// nSplits is negative or too large.
func Replay(pm *ProgMesh, nSplits int) (*mesh.TriMesh, error) {
	if nSplits < 0 || nSplits > len(pm.Splits) {
		nSplits = len(pm.Splits)
	}
	m, err := BaseMesh(pm)
	if err != nil {
		return nil, err
	}
	for i := 0; i < nSplits; i++ {
		if err := Apply(m, pm, i); err != nil {
			return nil, err
		}
	}
	return m, nil
}
