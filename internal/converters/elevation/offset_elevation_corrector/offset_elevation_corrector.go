package offset_elevation_corrector

import (
	"github.com/ecopia-map/vdpm/internal/converters"
	"gonum.org/v1/gonum/spatial/r3"
)

// OffsetElevationCorrector lifts every vertex by Offset along the z axis of the input
// coordinate system, before any reprojection.
type OffsetElevationCorrector struct {
	Offset float64
}

func NewOffsetElevationCorrector(offset float64) converters.ElevationCorrector {
	return &OffsetElevationCorrector{
		Offset: offset,
	}
}

func (c *OffsetElevationCorrector) CorrectVertex(p r3.Vec) r3.Vec {
	p.Z += c.Offset
	return p
}
