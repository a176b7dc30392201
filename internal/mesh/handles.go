package mesh

type VertexHandle int32
type HalfedgeHandle int32
type EdgeHandle int32
type FaceHandle int32

const (
	InvalidVertex   VertexHandle   = -1
	InvalidHalfedge HalfedgeHandle = -1
	InvalidEdge     EdgeHandle     = -1
	InvalidFace     FaceHandle     = -1
)

func (v VertexHandle) IsValid() bool   { return v >= 0 }
func (h HalfedgeHandle) IsValid() bool { return h >= 0 }
func (e EdgeHandle) IsValid() bool     { return e >= 0 }
func (f FaceHandle) IsValid() bool     { return f >= 0 }

// Opposite returns the other halfedge of the same edge. Edge e owns halfedges 2e and 2e+1.
func (h HalfedgeHandle) Opposite() HalfedgeHandle { return h ^ 1 }

func (h HalfedgeHandle) Edge() EdgeHandle { return EdgeHandle(h >> 1) }

func (e EdgeHandle) Halfedge(i int) HalfedgeHandle {
	return HalfedgeHandle(int32(e)<<1 | int32(i&1))
}

// Status is the per element bit set kept by the mesh.
type Status uint8

const (
	StatusDeleted Status = 1 << iota
	StatusLocked
	StatusFeature
)

func (s Status) Deleted() bool { return s&StatusDeleted != 0 }
func (s Status) Locked() bool  { return s&StatusLocked != 0 }
func (s Status) Feature() bool { return s&StatusFeature != 0 }

func (s *Status) set(bit Status, on bool) {
	if on {
		*s |= bit
	} else {
		*s &^= bit
	}
}
