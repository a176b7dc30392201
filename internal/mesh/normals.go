package mesh

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// FaceNormal is the unit normal of f following its orientation; zero for degenerate faces.
func (m *TriMesh) FaceNormal(f FaceHandle) r3.Vec {
	vs := m.FaceVertices(f)
	return TriangleNormal(m.vertices[vs[0]].pos, m.vertices[vs[1]].pos, m.vertices[vs[2]].pos)
}

// VertexNormal averages the normals of the faces around v.
func (m *TriMesh) VertexNormal(v VertexHandle) r3.Vec {
	var n r3.Vec
	for _, f := range m.VertexFaces(v) {
		n = r3.Add(n, m.FaceNormal(f))
	}
	return unitOrZero(n)
}

// FaceArea is half the cross product length.
func (m *TriMesh) FaceArea(f FaceHandle) float64 {
	vs := m.FaceVertices(f)
	p0 := m.vertices[vs[0]].pos
	c := r3.Cross(r3.Sub(m.vertices[vs[1]].pos, p0), r3.Sub(m.vertices[vs[2]].pos, p0))
	return 0.5 * r3.Norm(c)
}

// BoundingBox of the live vertices.
func (m *TriMesh) BoundingBox() r3.Box {
	points := make([]r3.Vec, 0, m.NVertices())
	for _, v := range m.LiveVertices() {
		points = append(points, m.vertices[v].pos)
	}
	return Bounds(points)
}

// Bounds is the smallest box holding points, the zero box when there are none.
func Bounds(points []r3.Vec) r3.Box {
	if len(points) == 0 {
		return r3.Box{}
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	zs := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i], zs[i] = p.X, p.Y, p.Z
	}
	return r3.NewBox(floats.Min(xs), floats.Min(ys), floats.Min(zs), floats.Max(xs), floats.Max(ys), floats.Max(zs))
}

func TriangleNormal(p0, p1, p2 r3.Vec) r3.Vec {
	return unitOrZero(r3.Cross(r3.Sub(p1, p0), r3.Sub(p2, p0)))
}

func unitOrZero(v r3.Vec) r3.Vec {
	if r3.Norm2(v) == 0 {
		return r3.Vec{}
	}
	return r3.Unit(v)
}
