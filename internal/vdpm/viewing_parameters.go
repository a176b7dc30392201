package vdpm

import "github.com/chewxy/math32"

// plane through the eye; inside is where Normal points.
type plane struct {
	Normal Vec3
	Eye    Vec3
}

func (p plane) signedDistance(x Vec3) float32 {
	return p.Normal.Dot(x.Sub(p.Eye))
}

// ViewingParameters describe the camera a refinement pass is run for. Call Update after
// changing any field.
type ViewingParameters struct {
	Eye, Direction, Up Vec3

	// FovY is the vertical field of view in degrees.
	FovY           float32
	Aspect         float32
	ViewportHeight float32

	// Tolerance is the screen space error allowed, in pixels.
	Tolerance float32

	planes      [4]plane
	kappaSquare float32
}

func NewViewingParameters() *ViewingParameters {
	vp := &ViewingParameters{
		Direction:      Vec3{Z: -1},
		Up:             Vec3{Y: 1},
		FovY:           45,
		Aspect:         1,
		ViewportHeight: 480,
		Tolerance:      1,
	}
	vp.Update()
	return vp
}

// LookAt points the camera from eye at target.
func (vp *ViewingParameters) LookAt(eye, target, up Vec3) {
	vp.Eye = eye
	vp.Direction = target.Sub(eye).Normalized()
	vp.Up = up
	vp.Update()
}

// Update derives the four side planes of the view frustum and kappa².
func (vp *ViewingParameters) Update() {
	f := vp.Direction.Normalized()
	r := f.Cross(vp.Up).Normalized()
	u := r.Cross(f)

	tanY := math32.Tan(vp.FovY * math32.Pi / 360)
	tanX := vp.Aspect * tanY
	vp.planes = [4]plane{
		{Normal: r.Add(f.Scale(tanX)).Normalized(), Eye: vp.Eye},           // left
		{Normal: r.Scale(-1).Add(f.Scale(tanX)).Normalized(), Eye: vp.Eye}, // right
		{Normal: u.Add(f.Scale(tanY)).Normalized(), Eye: vp.Eye},           // bottom
		{Normal: u.Scale(-1).Add(f.Scale(tanY)).Normalized(), Eye: vp.Eye}, // top
	}

	k := 2 * tanY * vp.Tolerance / vp.ViewportHeight
	vp.kappaSquare = k * k
}

func (vp *ViewingParameters) KappaSquare() float32 { return vp.kappaSquare }

// OutsideViewFrustum is true when the sphere around p lies fully outside one side plane.
func (vp *ViewingParameters) OutsideViewFrustum(p Vec3, radius float32) bool {
	for _, pl := range vp.planes {
		if pl.signedDistance(p) < -radius {
			return true
		}
	}
	return false
}

// OrientedAway is true when every normal in the cone faces away from the eye.
// product is the dot of the eye-to-node vector with the cone axis.
func OrientedAway(sinSquare, distanceSquare, product float32) bool {
	return product > 0 && product*product > distanceSquare*sinSquare
}

// ScreenSpaceError is true when the projected deviation exceeds the tolerance.
func ScreenSpaceError(mueSquare, sigmaSquare, distanceSquare, product, kappaSquare float32) bool {
	return mueSquare >= kappaSquare*distanceSquare ||
		sigmaSquare*(distanceSquare-product*product) >= kappaSquare*distanceSquare*distanceSquare
}
