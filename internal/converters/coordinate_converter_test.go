package converters_test

import (
	"errors"
	"testing"

	"github.com/ecopia-map/vdpm/internal/converters"
	"github.com/ecopia-map/vdpm/internal/converters/elevation/offset_elevation_corrector"
	"github.com/ecopia-map/vdpm/internal/mesh/meshtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// scaleConverter stands in for a projection: it scales coordinates by the source srid.
type scaleConverter struct {
	calls int
	fail  bool
}

func (c *scaleConverter) ConvertCoordinateSrid(sourceSrid int, targetSrid int, coord r3.Vec) (r3.Vec, error) {
	return c.ConvertToWGS84Cartesian(coord, sourceSrid)
}

func (c *scaleConverter) ConvertToWGS84Cartesian(coord r3.Vec, sourceSrid int) (r3.Vec, error) {
	c.calls++
	if c.fail {
		return coord, errors.New("no projection")
	}
	return r3.Scale(float64(sourceSrid), coord), nil
}

func (c *scaleConverter) Cleanup() {}

func TestTransformMesh(t *testing.T) {
	m := meshtest.Cube().MustBuild()
	conv := &scaleConverter{}
	corrector := offset_elevation_corrector.NewOffsetElevationCorrector(1)

	require.NoError(t, converters.TransformMesh(m, 2, conv, corrector))
	assert.Equal(t, 8, conv.calls)
	assert.Equal(t, r3.Vec{Z: 2}, m.Position(0))
	assert.Equal(t, r3.Vec{X: 2, Y: 2, Z: 4}, m.Position(7))
}

func TestTransformMeshWithoutSrid(t *testing.T) {
	m := meshtest.Cube().MustBuild()
	conv := &scaleConverter{}
	require.NoError(t, converters.TransformMesh(m, 0, conv, offset_elevation_corrector.NewOffsetElevationCorrector(-0.5)))
	assert.Zero(t, conv.calls)
	assert.Equal(t, r3.Vec{X: 1, Y: 1, Z: 0.5}, m.Position(7))

	conv.fail = true
	assert.Error(t, converters.TransformMesh(m, 4326, conv, nil))
}
