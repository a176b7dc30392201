package std_algorithm_manager

import (
	"github.com/ecopia-map/vdpm/internal/converters"
	"github.com/ecopia-map/vdpm/internal/converters/elevation/offset_elevation_corrector"
	"github.com/ecopia-map/vdpm/internal/converters/proj4_coordinate_converter"
	"github.com/ecopia-map/vdpm/internal/mesh"
	"github.com/ecopia-map/vdpm/internal/pmtool"
	"github.com/ecopia-map/vdpm/pkg/algorithm_manager"
)

type StandardAlgorithmManager struct {
	options             *pmtool.Options
	coordinateConverter converters.CoordinateConverter
	elevationCorrector  converters.ElevationCorrector
}

func NewAlgorithmManager(opts *pmtool.Options) algorithm_manager.AlgorithmManager {
	m := &StandardAlgorithmManager{options: opts}
	if opts.Srid != 0 {
		m.coordinateConverter = proj4_coordinate_converter.NewProj4CoordinateConverter()
	}
	if opts.ZOffset != 0 {
		m.elevationCorrector = offset_elevation_corrector.NewOffsetElevationCorrector(opts.ZOffset)
	}
	return m
}

// GetElevationCorrectionAlgorithm is nil when no offset was requested.
func (m *StandardAlgorithmManager) GetElevationCorrectionAlgorithm() converters.ElevationCorrector {
	return m.elevationCorrector
}

// GetCoordinateConverterAlgorithm is nil when the input is not reprojected.
func (m *StandardAlgorithmManager) GetCoordinateConverterAlgorithm() converters.CoordinateConverter {
	return m.coordinateConverter
}

func (m *StandardAlgorithmManager) GetDecimater(tm *mesh.TriMesh, progress func(remaining int)) *algorithm_manager.Decimater {
	return algorithm_manager.NewDecimater(tm, m.options, progress)
}
