package vdpm_test

import (
	"errors"
	"testing"

	"github.com/ecopia-map/vdpm/internal/decimater"
	"github.com/ecopia-map/vdpm/internal/mesh/meshtest"
	"github.com/ecopia-map/vdpm/internal/progmesh"
	"github.com/ecopia-map/vdpm/internal/vdpm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// decimate records a balanced progressive mesh of the fixture.
func decimate(t *testing.T, fixture meshtest.Triangles) *progmesh.ProgMesh {
	t.Helper()
	m := fixture.MustBuild()
	recorder := progmesh.NewModProgMesh()
	e := decimater.New(m, decimater.DefaultConfig())
	e.Add(decimater.NewModBalancer())
	e.Add(recorder)
	require.NoError(t, e.Initialize())
	_, err := e.Decimate(0)
	require.NoError(t, err)
	pm, err := recorder.Finish()
	require.NoError(t, err)
	return pm
}

func TestNodeIndex(t *testing.T) {
	i := vdpm.NewNodeIndex(3, 5, 4)
	assert.Equal(t, uint32(3), i.TreeID(4))
	assert.Equal(t, uint32(5), i.NodeID(4))

	single := vdpm.NewNodeIndex(0, 6, 0)
	assert.Equal(t, uint32(0), single.TreeID(0))
	assert.Equal(t, uint32(6), single.NodeID(0))
}

func TestBuildHierarchy(t *testing.T) {
	pm := decimate(t, meshtest.Icosphere(2))
	h, err := vdpm.BuildHierarchy(pm)
	require.NoError(t, err)

	nRoots := pm.NBaseVertices()
	bits := h.TreeIDBits()
	assert.Equal(t, nRoots, h.NumRoots())
	assert.Equal(t, decimater.BitsForRoots(nRoots), bits)
	assert.Equal(t, nRoots+2*len(pm.Splits), h.NumNodes())

	leaves := 0
	for n := vdpm.NodeHandle(0); int(n) < h.NumNodes(); n++ {
		node := h.Node(n)
		got, ok := h.NodeHandleOf(node.Index)
		require.True(t, ok)
		assert.Equal(t, n, got)

		if int(n) < nRoots {
			assert.True(t, h.IsRoot(n))
			assert.Equal(t, uint32(n), node.Index.TreeID(bits))
			assert.Equal(t, uint32(1), node.Index.NodeID(bits))
		}
		if h.IsLeaf(n) {
			leaves++
			assert.Zero(t, node.Radius)
			continue
		}

		l, r := h.LChild(n), h.RChild(n)
		assert.Equal(t, n, h.Parent(l))
		assert.Equal(t, n, h.Parent(r))
		assert.Equal(t, 2*node.Index.NodeID(bits), h.Index(l).NodeID(bits))
		assert.Equal(t, 2*node.Index.NodeID(bits)+1, h.Index(r).NodeID(bits))
		assert.True(t, h.IsAncestor(node.Index, h.Index(r)))
		assert.False(t, h.IsAncestor(h.Index(l), h.Index(r)))
		assert.Equal(t, node.Position, h.Node(l).Position, "the left child keeps the vertex")

		for _, cut := range []vdpm.NodeIndex{node.FundLCut, node.FundRCut} {
			c, ok := h.NodeHandleOf(cut)
			require.True(t, ok)
			assert.True(t, h.IsLeaf(c))
			assert.False(t, h.IsAncestor(node.Index, cut))
		}

		assert.GreaterOrEqual(t, node.SinSquare, float32(0))
		assert.LessOrEqual(t, node.SinSquare, float32(1))
		for _, c := range []vdpm.NodeHandle{l, r} {
			child := h.Node(c)
			d := vdpm.Vec3Of(child.Position).Sub(vdpm.Vec3Of(node.Position)).Length()
			assert.GreaterOrEqual(t, node.Radius, d+child.Radius-1e-5)
			assert.GreaterOrEqual(t, node.MueSquare, child.MueSquare*(1-1e-5))
			assert.GreaterOrEqual(t, node.SigmaSquare, child.SigmaSquare*(1-1e-5))
		}
	}
	assert.Equal(t, pm.NVertices(), leaves)
}

func TestBuilderStreamsRecords(t *testing.T) {
	pm := decimate(t, meshtest.Grid(6))
	b, err := vdpm.NewBuilder(pm)
	require.NoError(t, err)
	for i, r := range pm.Splits {
		require.NoError(t, b.Apply(r), "split %d", i)
	}
	assert.Equal(t, len(pm.Splits), b.Applied())
	h, err := b.Finish()
	require.NoError(t, err)
	assert.Equal(t, pm.NBaseVertices()+2*len(pm.Splits), h.NumNodes())
}

func TestBuilderRejectsCorruptRecords(t *testing.T) {
	pm := decimate(t, meshtest.Icosphere(2))
	require.NotEmpty(t, pm.Splits)

	b, err := vdpm.NewBuilder(pm)
	require.NoError(t, err)
	bad := pm.Splits[0]
	bad.V1 = int32(pm.NVertices())
	err = b.Apply(bad)
	assert.ErrorIs(t, err, vdpm.ErrStructuralCorruption)
	var ce *vdpm.CorruptionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 0, ce.Record)

	bad = pm.Splits[0]
	bad.VL = bad.V1
	assert.ErrorIs(t, b.Apply(bad), vdpm.ErrStructuralCorruption)
	assert.Equal(t, 0, b.Applied())

	require.NoError(t, b.Apply(pm.Splits[0]))
	assert.Equal(t, 1, b.Applied())
}

// chain splits vertex 0 of a tetrahedron n times, always between vertices 1 and 2.
func chain(n int) *progmesh.ProgMesh {
	tet := meshtest.Tetrahedron()
	pm := &progmesh.ProgMesh{Positions: tet.Positions}
	for _, f := range tet.Faces {
		pm.Faces = append(pm.Faces, [3]uint32{uint32(f[0]), uint32(f[1]), uint32(f[2])})
	}
	for i := 0; i < n; i++ {
		pm.Splits = append(pm.Splits, progmesh.Record{P0: r3.Vec{X: 1, Y: 1, Z: 1 - 0.01*float64(i+1)}, V1: 0, VL: 1, VR: 2})
	}
	return pm
}

func TestBuildHierarchyIndexOverflow(t *testing.T) {
	// four roots leave 30 bits for node ids, the 30th split of one vertex needs 31
	_, err := vdpm.BuildHierarchy(chain(29))
	require.NoError(t, err)
	_, err = vdpm.BuildHierarchy(chain(30))
	assert.ErrorIs(t, err, vdpm.ErrIndexOverflow)
}
