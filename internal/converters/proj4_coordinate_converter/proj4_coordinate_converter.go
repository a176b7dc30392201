package proj4_coordinate_converter

import (
	"fmt"
	"math"
	"sync"

	"github.com/ecopia-map/vdpm/internal/converters"
	proj "github.com/xeonx/proj4"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	toRadians = math.Pi / 180
	toDegrees = 180 / math.Pi
)

type epsgProjection struct {
	EpsgCode   int
	Proj4      string
	Projection *proj.Proj
}

// proj4CoordinateConverter initialises each projection the first time it is used and keeps
// it until Cleanup.
type proj4CoordinateConverter struct {
	sync.Mutex
	EpsgDatabase map[int]*epsgProjection
}

func NewProj4CoordinateConverter() converters.CoordinateConverter {
	return &proj4CoordinateConverter{
		EpsgDatabase: map[int]*epsgProjection{
			4326: {EpsgCode: 4326, Proj4: "+proj=longlat +datum=WGS84 +no_defs"},
			4978: {EpsgCode: 4978, Proj4: "+proj=geocent +datum=WGS84 +units=m +no_defs"},
			3857: {EpsgCode: 3857, Proj4: "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +wktext +no_defs"},
			3395: {EpsgCode: 3395, Proj4: "+proj=merc +lon_0=0 +k=1 +x_0=0 +y_0=0 +datum=WGS84 +units=m +no_defs"},
		},
	}
}

// Converts the given coordinate from the given source Srid to the given target srid.
func (cc *proj4CoordinateConverter) ConvertCoordinateSrid(sourceSrid int, targetSrid int, coord r3.Vec) (r3.Vec, error) {
	if sourceSrid == targetSrid {
		return coord, nil
	}

	cc.Lock()
	defer cc.Unlock()

	src, err := cc.initProjection(sourceSrid)
	if err != nil {
		return coord, err
	}
	dst, err := cc.initProjection(targetSrid)
	if err != nil {
		return coord, err
	}
	return executeConversion(coord, src, dst)
}

// Converts the input coordinate from the given srid to EPSG:4978 (X,Y,Z) in metres.
func (cc *proj4CoordinateConverter) ConvertToWGS84Cartesian(coord r3.Vec, sourceSrid int) (r3.Vec, error) {
	if sourceSrid == converters.Geocentric {
		return coord, nil
	}
	return cc.ConvertCoordinateSrid(sourceSrid, converters.Geocentric, coord)
}

// Releases all projection objects from memory
func (cc *proj4CoordinateConverter) Cleanup() {
	cc.Lock()
	defer cc.Unlock()
	for _, val := range cc.EpsgDatabase {
		if val.Projection != nil {
			val.Projection.Close()
			val.Projection = nil
		}
	}
}

func executeConversion(coord r3.Vec, sourceProj *epsgProjection, destinationProj *epsgProjection) (r3.Vec, error) {
	x, y, z := []float64{coord.X}, []float64{coord.Y}, []float64{coord.Z}
	if sourceProj.Projection.IsLatLong() {
		x[0] *= toRadians
		y[0] *= toRadians
	}

	if err := proj.Transform3(sourceProj.Projection, destinationProj.Projection, x, y, z); err != nil {
		return coord, fmt.Errorf("epsg %d to %d: %w", sourceProj.EpsgCode, destinationProj.EpsgCode, err)
	}

	out := r3.Vec{X: x[0], Y: y[0], Z: z[0]}
	if destinationProj.Projection.IsLatLong() {
		out.X *= toDegrees
		out.Y *= toDegrees
	}
	return out, nil
}

// Returns the projection corresponding to the given EPSG code, storing it in the relevant EpsgDatabase entry for caching
func (cc *proj4CoordinateConverter) initProjection(code int) (*epsgProjection, error) {
	val, ok := cc.EpsgDatabase[code]
	if !ok {
		return nil, fmt.Errorf("epsg code %d not found", code)
	}

	if val.Projection == nil {
		projection, err := proj.InitPlus(val.Proj4)
		if err != nil {
			return nil, fmt.Errorf("epsg %d: %w", code, err)
		}
		val.Projection = projection
	}

	return val, nil
}
