package decimater

import (
	"github.com/ecopia-map/vdpm/internal/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// CollapseInfo describes the candidate collapse of V0 into V1 along V0V1.
// VL and VR are the tips of the faces FL (left of V0V1) and FR (right of it).
type CollapseInfo struct {
	V0V1, V1V0 mesh.HalfedgeHandle
	V1VL, VLV0 mesh.HalfedgeHandle
	V0VR, VRV1 mesh.HalfedgeHandle

	V0, V1, VL, VR mesh.VertexHandle
	FL, FR         mesh.FaceHandle

	P0, P1 r3.Vec
}

func NewCollapseInfo(m *mesh.TriMesh, h mesh.HalfedgeHandle) CollapseInfo {
	ci := CollapseInfo{
		V0V1: h,
		V1V0: h.Opposite(),
		V1VL: mesh.InvalidHalfedge, VLV0: mesh.InvalidHalfedge,
		V0VR: mesh.InvalidHalfedge, VRV1: mesh.InvalidHalfedge,
		VL: mesh.InvalidVertex, VR: mesh.InvalidVertex,
	}
	ci.V0 = m.ToVertex(ci.V1V0)
	ci.V1 = m.ToVertex(ci.V0V1)
	ci.P0 = m.Position(ci.V0)
	ci.P1 = m.Position(ci.V1)
	ci.FL = m.FaceOf(ci.V0V1)
	ci.FR = m.FaceOf(ci.V1V0)

	if ci.FL.IsValid() {
		ci.V1VL = m.Next(ci.V0V1)
		ci.VLV0 = m.Next(ci.V1VL)
		ci.VL = m.ToVertex(ci.V1VL)
	}
	if ci.FR.IsValid() {
		ci.V0VR = m.Next(ci.V1V0)
		ci.VRV1 = m.Next(ci.V0VR)
		ci.VR = m.ToVertex(ci.V0VR)
	}
	return ci
}
