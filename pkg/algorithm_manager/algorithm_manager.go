package algorithm_manager

import (
	"github.com/ecopia-map/vdpm/internal/converters"
	"github.com/ecopia-map/vdpm/internal/decimater"
	"github.com/ecopia-map/vdpm/internal/mesh"
	"github.com/ecopia-map/vdpm/internal/pmtool"
	"github.com/ecopia-map/vdpm/internal/progmesh"
)

// Decimater is an engine with the modules a balanced progressive mesh needs. IndependentSets
// and NormalFlipping are nil when disabled.
type Decimater struct {
	Engine          *decimater.Engine
	Recorder        *progmesh.ModProgMesh
	Balancer        *decimater.ModBalancer
	NormalFlipping  *decimater.ModNormalFlipping
	IndependentSets *decimater.ModIndependentSets
}

type AlgorithmManager interface {
	GetElevationCorrectionAlgorithm() converters.ElevationCorrector
	GetCoordinateConverterAlgorithm() converters.CoordinateConverter
	GetDecimater(m *mesh.TriMesh, progress func(remaining int)) *Decimater
}

// NewDecimater installs, in this order, the progressive mesh recorder, the balancer and the
// optional normal flipping and independent sets modules, as configured by the build or
// verify options of opts.
func NewDecimater(m *mesh.TriMesh, opts *pmtool.Options, progress func(remaining int)) *Decimater {
	cfg := decimater.DefaultConfig()
	cfg.Progress = progress

	var normalDeviation float64
	var independentSets bool
	switch {
	case opts.BuildOptions != nil:
		cfg.FeatureAngle = opts.BuildOptions.FeatureAngle
		normalDeviation = opts.BuildOptions.NormalDeviation
		independentSets = opts.BuildOptions.IndependentSets
	case opts.VerifyOptions != nil:
		cfg.FeatureAngle = opts.VerifyOptions.FeatureAngle
	}

	d := &Decimater{
		Engine:   decimater.New(m, cfg),
		Recorder: progmesh.NewModProgMesh(),
		Balancer: decimater.NewModBalancer(),
	}
	d.Engine.Add(d.Recorder)
	d.Engine.Add(d.Balancer)
	if normalDeviation > 0 {
		d.NormalFlipping = decimater.NewModNormalFlipping(normalDeviation)
		d.Engine.Add(d.NormalFlipping)
	}
	if independentSets {
		d.IndependentSets = decimater.NewModIndependentSets()
		d.Engine.Add(d.IndependentSets)
	}
	return d
}
