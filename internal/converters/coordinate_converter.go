package converters

import (
	"fmt"

	"github.com/ecopia-map/vdpm/internal/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Geocentric is the EPSG code of WGS84 earth centred cartesian coordinates.
const Geocentric = 4978

type CoordinateConverter interface {
	ConvertCoordinateSrid(sourceSrid int, targetSrid int, coord r3.Vec) (r3.Vec, error)
	ConvertToWGS84Cartesian(coord r3.Vec, sourceSrid int) (r3.Vec, error)
	Cleanup()
}

// ElevationCorrector adjusts the height of a vertex given in the input coordinates.
type ElevationCorrector interface {
	CorrectVertex(p r3.Vec) r3.Vec
}

// TransformMesh corrects the elevation of every vertex of m and, when srid is not zero,
// moves it to geocentric coordinates. Either collaborator may be nil.
func TransformMesh(m *mesh.TriMesh, srid int, converter CoordinateConverter, corrector ElevationCorrector) error {
	for _, v := range m.LiveVertices() {
		p := m.Position(v)
		if corrector != nil {
			p = corrector.CorrectVertex(p)
		}
		if srid != 0 && converter != nil {
			out, err := converter.ConvertToWGS84Cartesian(p, srid)
			if err != nil {
				return fmt.Errorf("vertex %d: %w", v, err)
			}
			p = out
		}
		m.SetPosition(v, p)
	}
	return nil
}
