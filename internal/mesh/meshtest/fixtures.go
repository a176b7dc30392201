// Package meshtest builds small meshes shared by the tests of the mesh, decimater,
// progmesh and vdpm packages.
package meshtest

import (
	"math"

	"github.com/ecopia-map/vdpm/internal/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Triangles is a plain indexed triangle list.
type Triangles struct {
	Positions []r3.Vec
	Faces     [][3]int
}

func (t Triangles) Build() (*mesh.TriMesh, error) {
	b := mesh.NewBuilder()
	for _, p := range t.Positions {
		b.AddVertex(p)
	}
	for _, f := range t.Faces {
		if err := b.AddFace(mesh.VertexHandle(f[0]), mesh.VertexHandle(f[1]), mesh.VertexHandle(f[2])); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// MustBuild panics on error; fixtures are known to be valid.
func (t Triangles) MustBuild() *mesh.TriMesh {
	m, err := t.Build()
	if err != nil {
		panic(err)
	}
	return m
}

// Cube is the unit cube split into 12 outward facing triangles.
// Vertex i sits at (i&1, i>>1&1, i>>2&1).
func Cube() Triangles {
	t := Triangles{Faces: [][3]int{
		{0, 2, 3}, {0, 3, 1}, // z = 0
		{4, 5, 7}, {4, 7, 6}, // z = 1
		{0, 1, 5}, {0, 5, 4}, // y = 0
		{2, 6, 7}, {2, 7, 3}, // y = 1
		{0, 4, 6}, {0, 6, 2}, // x = 0
		{1, 3, 7}, {1, 7, 5}, // x = 1
	}}
	for i := 0; i < 8; i++ {
		t.Positions = append(t.Positions, r3.Vec{X: float64(i & 1), Y: float64(i >> 1 & 1), Z: float64(i >> 2 & 1)})
	}
	return t
}

func Tetrahedron() Triangles {
	return Triangles{
		Positions: []r3.Vec{{X: 1, Y: 1, Z: 1}, {X: 1, Y: -1, Z: -1}, {X: -1, Y: 1, Z: -1}, {X: -1, Y: -1, Z: 1}},
		Faces:     [][3]int{{0, 1, 2}, {0, 3, 1}, {0, 2, 3}, {1, 3, 2}},
	}
}

// Icosphere is a unit sphere made by subdividing an icosahedron. Level s has
// 10*4^s+2 vertices and 20*4^s faces.
func Icosphere(s int) Triangles {
	g := (1 + math.Sqrt(5)) / 2
	t := Triangles{
		Positions: []r3.Vec{
			{X: -1, Y: g}, {X: 1, Y: g}, {X: -1, Y: -g}, {X: 1, Y: -g},
			{Y: -1, Z: g}, {Y: 1, Z: g}, {Y: -1, Z: -g}, {Y: 1, Z: -g},
			{X: g, Z: -1}, {X: g, Z: 1}, {X: -g, Z: -1}, {X: -g, Z: 1},
		},
		Faces: [][3]int{
			{0, 11, 5}, {0, 5, 1}, {0, 1, 7}, {0, 7, 10}, {0, 10, 11},
			{1, 5, 9}, {5, 11, 4}, {11, 10, 2}, {10, 7, 6}, {7, 1, 8},
			{3, 9, 4}, {3, 4, 2}, {3, 2, 6}, {3, 6, 8}, {3, 8, 9},
			{4, 9, 5}, {2, 4, 11}, {6, 2, 10}, {8, 6, 7}, {9, 8, 1},
		},
	}
	for i := range t.Positions {
		t.Positions[i] = r3.Unit(t.Positions[i])
	}

	for ; s > 0; s-- {
		mid := make(map[[2]int]int)
		midpoint := func(a, b int) int {
			key := [2]int{a, b}
			if b < a {
				key = [2]int{b, a}
			}
			if i, ok := mid[key]; ok {
				return i
			}
			p := r3.Unit(r3.Scale(0.5, r3.Add(t.Positions[a], t.Positions[b])))
			t.Positions = append(t.Positions, p)
			mid[key] = len(t.Positions) - 1
			return mid[key]
		}
		faces := make([][3]int, 0, 4*len(t.Faces))
		for _, f := range t.Faces {
			ab, bc, ca := midpoint(f[0], f[1]), midpoint(f[1], f[2]), midpoint(f[2], f[0])
			faces = append(faces,
				[3]int{f[0], ab, ca},
				[3]int{f[1], bc, ab},
				[3]int{f[2], ca, bc},
				[3]int{ab, bc, ca},
			)
		}
		t.Faces = faces
	}
	return t
}

// Grid is an open n x n quad grid over [0,1]^2, each quad split in two, with a gentle
// height field so no two collapses cost the same.
func Grid(n int) Triangles {
	var t Triangles
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			x, y := float64(i)/float64(n), float64(j)/float64(n)
			t.Positions = append(t.Positions, r3.Vec{X: x, Y: y, Z: 0.1 * math.Sin(3*x+0.3) * math.Cos(2*y+0.1)})
		}
	}
	at := func(i, j int) int { return j*(n+1) + i }
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			t.Faces = append(t.Faces,
				[3]int{at(i, j), at(i+1, j), at(i+1, j+1)},
				[3]int{at(i, j), at(i+1, j+1), at(i, j+1)},
			)
		}
	}
	return t
}

// CanonicalFaces returns the oriented faces of m rotated so the smallest index comes
// first, with vertex handles passed through remap (identity when nil), as a set.
func CanonicalFaces(m *mesh.TriMesh, remap func(mesh.VertexHandle) int) map[[3]int]bool {
	if remap == nil {
		remap = func(v mesh.VertexHandle) int { return int(v) }
	}
	set := make(map[[3]int]bool, m.NFaces())
	for _, f := range m.LiveFaces() {
		vs := m.FaceVertices(f)
		tri := [3]int{remap(vs[0]), remap(vs[1]), remap(vs[2])}
		for tri[0] > tri[1] || tri[0] > tri[2] {
			tri = [3]int{tri[1], tri[2], tri[0]}
		}
		set[tri] = true
	}
	return set
}

// CheckConsistency walks every live element and returns a description of the first broken
// link, or "" when the mesh is consistent.
func CheckConsistency(m *mesh.TriMesh) string {
	for _, f := range m.LiveFaces() {
		h := m.FaceHalfedge(f)
		for k := 0; k < 3; k++ {
			if m.FaceOf(h) != f {
				return "face halfedge loop leaves its face"
			}
			if m.Prev(m.Next(h)) != h {
				return "next/prev mismatch"
			}
			if m.EdgeStatus(h.Edge()).Deleted() {
				return "face uses a deleted edge"
			}
			if m.VertexStatus(m.ToVertex(h)).Deleted() {
				return "face uses a deleted vertex"
			}
			h = m.Next(h)
		}
		if h != m.FaceHalfedge(f) {
			return "face is not a triangle"
		}
	}
	for _, v := range m.LiveVertices() {
		for _, h := range m.Outgoing(v) {
			if m.FromVertex(h) != v {
				return "outgoing halfedge starts elsewhere"
			}
		}
		if m.Halfedge(v).IsValid() && m.FaceOf(m.Halfedge(v)).IsValid() {
			for _, h := range m.Outgoing(v) {
				if !m.FaceOf(h).IsValid() {
					return "boundary vertex does not store its boundary halfedge"
				}
			}
		}
	}
	// Euler characteristic of a closed or open manifold surface is at most 2
	if chi := m.NVertices() - m.NEdges() + m.NFaces(); chi > 2 {
		return "euler characteristic above 2"
	}
	return ""
}
