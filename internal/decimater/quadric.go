package decimater

import "gonum.org/v1/gonum/spatial/r3"

// Quadric is the symmetric 4x4 matrix of the squared distance to a set of planes,
// stored as its upper triangle.
type Quadric struct {
	a2, ab, ac, ad float64
	b2, bc, bd     float64
	c2, cd         float64
	d2             float64
}

// PlaneQuadric measures the squared distance to the plane n.p + d = 0, n of unit length.
func PlaneQuadric(n r3.Vec, d float64) Quadric {
	a, b, c := n.X, n.Y, n.Z
	return Quadric{
		a2: a * a, ab: a * b, ac: a * c, ad: a * d,
		b2: b * b, bc: b * c, bd: b * d,
		c2: c * c, cd: c * d,
		d2: d * d,
	}
}

func (q *Quadric) Add(o Quadric) {
	q.a2 += o.a2
	q.ab += o.ab
	q.ac += o.ac
	q.ad += o.ad
	q.b2 += o.b2
	q.bc += o.bc
	q.bd += o.bd
	q.c2 += o.c2
	q.cd += o.cd
	q.d2 += o.d2
}

// Value evaluates the quadric form at p.
func (q Quadric) Value(p r3.Vec) float64 {
	x, y, z := p.X, p.Y, p.Z
	return x*(x*q.a2+2*(y*q.ab+z*q.ac+q.ad)) +
		y*(y*q.b2+2*(z*q.bc+q.bd)) +
		z*(z*q.c2+2*q.cd) +
		q.d2
}
