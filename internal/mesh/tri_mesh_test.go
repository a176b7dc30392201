package mesh_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ecopia-map/vdpm/internal/mesh"
	"github.com/ecopia-map/vdpm/internal/mesh/meshtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestBuildCounts(t *testing.T) {
	tests := []struct {
		name     string
		fixture  meshtest.Triangles
		v, e, f  int
		boundary int
	}{
		{"cube", meshtest.Cube(), 8, 18, 12, 0},
		{"tetrahedron", meshtest.Tetrahedron(), 4, 6, 4, 0},
		{"icosphere", meshtest.Icosphere(1), 42, 120, 80, 0},
		{"grid", meshtest.Grid(3), 16, 33, 18, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := tt.fixture.Build()
			require.NoError(t, err)
			assert.Equal(t, tt.v, m.NVertices())
			assert.Equal(t, tt.e, m.NEdges())
			assert.Equal(t, tt.f, m.NFaces())
			assert.Empty(t, meshtest.CheckConsistency(m))

			boundary := 0
			for _, v := range m.LiveVertices() {
				if m.IsBoundaryVertex(v) {
					boundary++
				}
			}
			assert.Equal(t, tt.boundary, boundary)
		})
	}
}

func TestBuildRejectsComplexInput(t *testing.T) {
	b := mesh.NewBuilder()
	for i := 0; i < 4; i++ {
		b.AddVertex(r3.Vec{X: float64(i)})
	}
	require.NoError(t, b.AddFace(0, 1, 2))
	require.NoError(t, b.AddFace(0, 1, 3)) // same orientation of edge 0-1 twice
	_, err := b.Build()
	assert.ErrorIs(t, err, mesh.ErrComplexEdge)

	assert.ErrorIs(t, b.AddFace(0, 0, 1), mesh.ErrDegenerateFace)
	assert.ErrorIs(t, b.AddFace(0, 1, 9), mesh.ErrInvalidHandle)
}

func TestBuildRejectsBowtie(t *testing.T) {
	// two triangles touching in vertex 0 only
	b := mesh.NewBuilder()
	for i := 0; i < 5; i++ {
		b.AddVertex(r3.Vec{X: float64(i)})
	}
	require.NoError(t, b.AddFace(0, 1, 2))
	require.NoError(t, b.AddFace(0, 3, 4))
	_, err := b.Build()
	assert.ErrorIs(t, err, mesh.ErrComplexVertex)
}

func TestNeighbourhoods(t *testing.T) {
	m := meshtest.Cube().MustBuild()
	// corner 0 touches 1, 2, 3, 4, 5, 6 through the face diagonals of the fixture
	assert.ElementsMatch(t, []mesh.VertexHandle{1, 2, 3, 4, 5, 6}, m.VertexVertices(0))
	assert.Equal(t, 6, m.Valence(0))
	assert.Len(t, m.VertexFaces(0), 6)

	h := m.FindHalfedge(0, 3)
	require.True(t, h.IsValid())
	assert.Equal(t, mesh.VertexHandle(0), m.FromVertex(h))
	assert.Equal(t, mesh.VertexHandle(3), m.ToVertex(h))
	assert.Equal(t, h, m.FindHalfedge(3, 0).Opposite())
	assert.False(t, m.FindHalfedge(0, 7).IsValid())

	n := m.FaceNormal(m.FaceOf(h))
	assert.InDelta(t, -1.0, n.Z, 1e-12)
}

func TestCollapseOKRules(t *testing.T) {
	tet := meshtest.Tetrahedron().MustBuild()
	for _, e := range tet.LiveEdges() {
		assert.False(t, tet.IsCollapseOK(e.Halfedge(0)))
		assert.False(t, tet.IsCollapseOK(e.Halfedge(1)))
	}

	grid := meshtest.Grid(3).MustBuild()
	for _, e := range grid.LiveEdges() {
		for k := 0; k < 2; k++ {
			h := e.Halfedge(k)
			if grid.IsBoundaryVertex(grid.FromVertex(h)) {
				assert.False(t, grid.IsCollapseOK(h), "boundary vertex %d removed", grid.FromVertex(h))
			}
		}
	}
	// interior vertex 5 = (1,1) can go to its neighbour 6 = (2,1)
	assert.True(t, grid.IsCollapseOK(grid.FindHalfedge(5, 6)))
}

func TestCollapseThenSplitRestoresMesh(t *testing.T) {
	fixture := meshtest.Icosphere(1)
	ref := fixture.MustBuild()
	before := meshtest.CanonicalFaces(ref, nil)

	tried := 0
	for _, e := range ref.LiveEdges() {
		for k := 0; k < 2; k++ {
			m := fixture.MustBuild()
			h := e.Halfedge(k)
			require.True(t, m.IsCollapseOK(h))

			v0, v1 := m.FromVertex(h), m.ToVertex(h)
			vl := m.ToVertex(m.Next(h))
			vr := m.ToVertex(m.Next(h.Opposite()))
			p0 := m.Position(v0)

			m.Collapse(h)
			assert.Equal(t, 41, m.NVertices())
			assert.Equal(t, 117, m.NEdges())
			assert.Equal(t, 78, m.NFaces())
			assert.True(t, m.VertexStatus(v0).Deleted())
			require.Empty(t, meshtest.CheckConsistency(m))

			h01, err := m.VertexSplit(p0, v1, vl, vr)
			require.NoError(t, err)
			assert.Equal(t, v0, m.FromVertex(h01), "the freed slot is reused")
			assert.Equal(t, v1, m.ToVertex(h01))
			require.Empty(t, meshtest.CheckConsistency(m))
			assert.Equal(t, before, meshtest.CanonicalFaces(m, nil))
			tried++
		}
		if tried >= 40 {
			break
		}
	}
}

func TestCollapseNearBoundary(t *testing.T) {
	fixture := meshtest.Grid(4)
	ref := fixture.MustBuild()
	before := meshtest.CanonicalFaces(ref, nil)

	for _, e := range ref.LiveEdges() {
		for k := 0; k < 2; k++ {
			m := fixture.MustBuild()
			h := e.Halfedge(k)
			if !m.IsCollapseOK(h) {
				continue
			}
			v0, v1 := m.FromVertex(h), m.ToVertex(h)
			vl := m.ToVertex(m.Next(h))
			vr := m.ToVertex(m.Next(h.Opposite()))
			p0 := m.Position(v0)

			m.Collapse(h)
			require.Empty(t, meshtest.CheckConsistency(m))
			_, err := m.VertexSplit(p0, v1, vl, vr)
			require.NoError(t, err)
			require.Empty(t, meshtest.CheckConsistency(m))
			assert.Equal(t, before, meshtest.CanonicalFaces(m, nil))
			assert.Equal(t, m.IsBoundaryVertex(v1), ref.IsBoundaryVertex(v1))
		}
	}
}

func TestVertexSplitRejectsNonNeighbours(t *testing.T) {
	m := meshtest.Cube().MustBuild()
	_, err := m.VertexSplit(r3.Vec{}, 0, 7, 3)
	assert.ErrorIs(t, err, mesh.ErrNotAdjacent)
	_, err = m.VertexSplit(r3.Vec{}, 0, 3, 3)
	assert.ErrorIs(t, err, mesh.ErrNotAdjacent)
	_, err = m.VertexSplit(r3.Vec{}, 0, 42, 3)
	assert.ErrorIs(t, err, mesh.ErrInvalidHandle)
	assert.Equal(t, 8, m.NVertices())
}

func TestGarbageCollection(t *testing.T) {
	m := meshtest.Icosphere(1).MustBuild()
	h := m.Outgoing(0)[0]
	require.True(t, m.IsCollapseOK(h))
	m.Collapse(h)

	faces := meshtest.CanonicalFaces(m, nil)
	vmap := m.GarbageCollection()
	assert.Equal(t, mesh.InvalidVertex, vmap[0])
	assert.Equal(t, 41, m.VertexSlots())
	assert.Equal(t, 117, m.EdgeSlots())
	assert.Equal(t, 78, m.FaceSlots())
	require.Empty(t, meshtest.CheckConsistency(m))

	inverse := make([]int, m.VertexSlots())
	for old, v := range vmap {
		if v.IsValid() {
			inverse[v] = old
		}
	}
	assert.Equal(t, faces, meshtest.CanonicalFaces(m, func(v mesh.VertexHandle) int { return inverse[v] }))
}

func TestOFFRoundTrip(t *testing.T) {
	m := meshtest.Icosphere(1).MustBuild()
	var buf bytes.Buffer
	require.NoError(t, mesh.WriteOFF(&buf, m))

	back, err := mesh.ReadOFF(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.NVertices(), back.NVertices())
	assert.Equal(t, m.NFaces(), back.NFaces())
	assert.Equal(t, meshtest.CanonicalFaces(m, nil), meshtest.CanonicalFaces(back, nil))
	for _, v := range m.LiveVertices() {
		assert.Equal(t, m.Position(v), back.Position(v))
	}
}

func TestReadOFFPolygonsAndComments(t *testing.T) {
	src := `OFF
# a unit cube made of quads
8 6 12
0 0 0
1 0 0
0 1 0
1 1 0
0 0 1
1 0 1
0 1 1
1 1 1
4 0 2 3 1
4 4 5 7 6
4 0 1 5 4
4 2 6 7 3
4 0 4 6 2
4 1 3 7 5 255 0 0
`
	m, err := mesh.ReadOFF(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 8, m.NVertices())
	assert.Equal(t, 18, m.NEdges())
	assert.Equal(t, 12, m.NFaces())
}

func TestReadOFFErrors(t *testing.T) {
	for name, src := range map[string]string{
		"header":    "PLY\n",
		"counts":    "OFF\nx y z\n",
		"truncated": "OFF\n3 1 0\n0 0 0\n1 0 0\n",
		"face":      "OFF\n3 1 0\n0 0 0\n1 0 0\n0 1 0\n2 0 1\n",
		"index":     "OFF\n3 1 0\n0 0 0\n1 0 0\n0 1 0\n3 0 1 7\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := mesh.ReadOFF(strings.NewReader(src))
			assert.ErrorIs(t, err, mesh.ErrMalformedInput)
		})
	}
}

func TestLoadFileRejectsUnknownExtension(t *testing.T) {
	_, err := mesh.LoadFile("model.ply")
	assert.ErrorIs(t, err, mesh.ErrUnsupportedFormat)
}

func TestRegisterFormat(t *testing.T) {
	cube := meshtest.Cube().MustBuild()
	loaded := 0
	mesh.RegisterFormat(mesh.Format{
		Ext: ".Cube",
		Load: func(path string) (*mesh.TriMesh, error) {
			loaded++
			return cube, nil
		},
	})

	assert.True(t, mesh.Supported("a/b.cube"))
	assert.True(t, mesh.Supported("model.OFF"))
	assert.False(t, mesh.Supported("model.ply"))
	assert.Contains(t, mesh.Extensions(), ".off")

	m, err := mesh.LoadFile("solid.CUBE")
	require.NoError(t, err)
	assert.Same(t, cube, m)
	assert.Equal(t, 1, loaded)

	err = mesh.SaveFile("solid.cube", cube)
	assert.ErrorIs(t, err, mesh.ErrUnsupportedFormat)
	assert.ErrorIs(t, mesh.SaveFile("solid.stl", cube), mesh.ErrUnsupportedFormat)
}

func TestBoundingBox(t *testing.T) {
	box := meshtest.Cube().MustBuild().BoundingBox()
	assert.Equal(t, r3.Vec{}, box.Min)
	assert.Equal(t, r3.Vec{X: 1, Y: 1, Z: 1}, box.Max)

	assert.Equal(t, r3.Box{}, mesh.Bounds(nil))
	box = mesh.Bounds([]r3.Vec{{X: 2, Y: -1}, {X: -3, Y: 4, Z: 1}, {Z: -2}})
	assert.Equal(t, r3.Vec{X: -3, Y: -1, Z: -2}, box.Min)
	assert.Equal(t, r3.Vec{X: 2, Y: 4, Z: 1}, box.Max)
	assert.Equal(t, r3.Vec{X: -0.5, Y: 1.5, Z: -0.5}, box.Center())
}
