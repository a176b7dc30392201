package pkg

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ecopia-map/vdpm/internal/converters"
	"github.com/ecopia-map/vdpm/internal/converters/elevation/offset_elevation_corrector"
	"github.com/ecopia-map/vdpm/internal/mesh"
	"github.com/ecopia-map/vdpm/internal/mesh/meshtest"
	"github.com/ecopia-map/vdpm/internal/pmtool"
	"github.com/ecopia-map/vdpm/internal/progmesh"
	"github.com/ecopia-map/vdpm/pkg/algorithm_manager"
	"github.com/ecopia-map/vdpm/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testManager never reprojects, so the tests do not need libproj.
type testManager struct {
	opts      *pmtool.Options
	corrector converters.ElevationCorrector
}

func newTestManager(opts *pmtool.Options) algorithm_manager.AlgorithmManager {
	m := &testManager{opts: opts}
	if opts.ZOffset != 0 {
		m.corrector = offset_elevation_corrector.NewOffsetElevationCorrector(opts.ZOffset)
	}
	return m
}

func (m *testManager) GetElevationCorrectionAlgorithm() converters.ElevationCorrector {
	return m.corrector
}

func (m *testManager) GetCoordinateConverterAlgorithm() converters.CoordinateConverter {
	return nil
}

func (m *testManager) GetDecimater(tm *mesh.TriMesh, progress func(int)) *algorithm_manager.Decimater {
	return algorithm_manager.NewDecimater(tm, m.opts, progress)
}

func TestMain(m *testing.M) {
	tools.DisableLogger()
	os.Exit(m.Run())
}

func writeOFF(t *testing.T, dir, name string, fixture meshtest.Triangles) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, mesh.SaveFile(path, fixture.MustBuild()))
	return path
}

func buildOptions(input string) *pmtool.Options {
	return &pmtool.Options{
		Input:   input,
		Command: tools.CommandBuild,
		BuildOptions: &pmtool.BuildOptions{
			FeatureAngle: 60,
			Compression:  progmesh.CompressionZstd,
			Workers:      1,
		},
	}
}

func runBuild(t *testing.T, opts *pmtool.Options) {
	t.Helper()
	err := NewPMBuilder(tools.NewStandardFileFinder(), newTestManager(opts)).Run(context.Background(), opts)
	require.NoError(t, err)
}

func verifyOptions(input, pm string) *pmtool.Options {
	return &pmtool.Options{
		Input:         input,
		Command:       tools.CommandVerify,
		VerifyOptions: &pmtool.VerifyOptions{ProgMesh: pm, FeatureAngle: 60},
	}
}

func TestBuildThenVerifyFile(t *testing.T) {
	dir := t.TempDir()
	input := writeOFF(t, dir, "sphere.off", meshtest.Icosphere(2))

	runBuild(t, buildOptions(input))
	output := filepath.Join(dir, "sphere.pm")
	require.FileExists(t, output)

	pm, err := progmesh.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, 162, pm.NVertices())
	assert.NotEmpty(t, pm.Splits)

	opts := verifyOptions(input, output)
	assert.NoError(t, NewPMVerifier(newTestManager(opts)).Run(context.Background(), opts))
}

func TestBuildRespectsMaxCollapses(t *testing.T) {
	dir := t.TempDir()
	input := writeOFF(t, dir, "grid.off", meshtest.Grid(6))

	opts := buildOptions(input)
	opts.BuildOptions.MaxCollapses = 5
	opts.BuildOptions.Output = filepath.Join(dir, "out", "limited.off")
	runBuild(t, opts)

	pm, err := progmesh.ReadFile(filepath.Join(dir, "out", "limited.pm"))
	require.NoError(t, err)
	assert.Len(t, pm.Splits, 5)
	assert.Equal(t, 49-5, pm.NBaseVertices())
}

func TestBuildWithOptionalModules(t *testing.T) {
	dir := t.TempDir()
	input := writeOFF(t, dir, "sphere.off", meshtest.Icosphere(2))

	opts := buildOptions(input)
	opts.BuildOptions.IndependentSets = true
	opts.BuildOptions.NormalDeviation = 60
	opts.BuildOptions.Compression = progmesh.CompressionLZ4
	runBuild(t, opts)

	opts = verifyOptions(input, filepath.Join(dir, "sphere.pm"))
	assert.NoError(t, NewPMVerifier(newTestManager(opts)).Run(context.Background(), opts))
}

func TestBuildFolder(t *testing.T) {
	dir := t.TempDir()
	writeOFF(t, dir, "a.off", meshtest.Icosphere(1))
	writeOFF(t, dir, "b.off", meshtest.Grid(4))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0644))

	opts := buildOptions(dir)
	opts.FolderProcessing = true
	opts.BuildOptions.Workers = 2
	opts.BuildOptions.Output = filepath.Join(dir, "out")
	runBuild(t, opts)

	assert.FileExists(t, filepath.Join(dir, "out", "a.pm"))
	assert.FileExists(t, filepath.Join(dir, "out", "b.pm"))
	assert.NoFileExists(t, filepath.Join(dir, "out", "notes.pm"))
}

func TestBuildWithoutFiles(t *testing.T) {
	opts := buildOptions(t.TempDir())
	opts.FolderProcessing = true
	err := NewPMBuilder(tools.NewStandardFileFinder(), newTestManager(opts)).Run(context.Background(), opts)
	assert.ErrorIs(t, err, ErrNoInputFiles)
}

func TestBuildRejectsBrokenInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "broken.off")
	require.NoError(t, os.WriteFile(input, []byte("OFF\n3 1 0\n0 0 0\n"), 0644))

	opts := buildOptions(input)
	err := NewPMBuilder(tools.NewStandardFileFinder(), newTestManager(opts)).Run(context.Background(), opts)
	assert.ErrorIs(t, err, mesh.ErrMalformedInput)
	assert.NoFileExists(t, filepath.Join(dir, "broken.pm"))
}

func TestVerifyInMemory(t *testing.T) {
	dir := t.TempDir()
	for name, fixture := range map[string]meshtest.Triangles{
		"sphere.off": meshtest.Icosphere(2),
		"grid.off":   meshtest.Grid(6),
	} {
		t.Run(name, func(t *testing.T) {
			input := writeOFF(t, dir, name, fixture)
			for _, n := range []int{0, 7} {
				opts := verifyOptions(input, "")
				opts.VerifyOptions.MaxCollapses = n
				assert.NoError(t, NewPMVerifier(newTestManager(opts)).Run(context.Background(), opts))
			}
		})
	}
}

func TestVerifyDetectsMismatch(t *testing.T) {
	dir := t.TempDir()
	sphere := writeOFF(t, dir, "sphere.off", meshtest.Icosphere(2))
	other := writeOFF(t, dir, "other.off", meshtest.Icosphere(1))
	runBuild(t, buildOptions(sphere))

	opts := verifyOptions(other, filepath.Join(dir, "sphere.pm"))
	err := NewPMVerifier(newTestManager(opts)).Run(context.Background(), opts)
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestLoadMeshAppliesOffset(t *testing.T) {
	dir := t.TempDir()
	input := writeOFF(t, dir, "cube.off", meshtest.Cube())

	opts := buildOptions(input)
	opts.ZOffset = 10
	m, err := loadMesh(input, opts, newTestManager(opts))
	require.NoError(t, err)
	box := m.BoundingBox()
	assert.InDelta(t, 10, box.Min.Z, 1e-12)
	assert.InDelta(t, 11, box.Max.Z, 1e-12)
}

func TestRefineRun(t *testing.T) {
	dir := t.TempDir()
	input := writeOFF(t, dir, "sphere.off", meshtest.Icosphere(2))
	runBuild(t, buildOptions(input))

	output := filepath.Join(dir, "view", "refined.off")
	opts := &pmtool.Options{
		Input:   filepath.Join(dir, "sphere.pm"),
		Command: tools.CommandRefine,
		RefineOptions: &pmtool.RefineOptions{
			Output:         output,
			Eye:            [3]float64{0, 0, 3},
			FovY:           60,
			Tolerance:      0.5,
			ViewportHeight: 480,
		},
	}
	require.NoError(t, NewPMRefiner().Run(context.Background(), opts))

	refined, err := mesh.LoadFile(output)
	require.NoError(t, err)
	pm, err := progmesh.ReadFile(opts.Input)
	require.NoError(t, err)
	assert.Greater(t, refined.NVertices(), pm.NBaseVertices())
	assert.LessOrEqual(t, refined.NVertices(), pm.NVertices())
}

func TestRefineCancelled(t *testing.T) {
	dir := t.TempDir()
	input := writeOFF(t, dir, "sphere.off", meshtest.Icosphere(2))
	runBuild(t, buildOptions(input))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := &pmtool.Options{
		Input: filepath.Join(dir, "sphere.pm"),
		RefineOptions: &pmtool.RefineOptions{
			Eye:            [3]float64{0, 0, 3},
			FovY:           60,
			ViewportHeight: 480,
			NodeBudget:     1,
		},
	}
	assert.ErrorIs(t, NewPMRefiner().Run(ctx, opts), context.Canceled)
}

func TestBoundsCenter(t *testing.T) {
	m := meshtest.Cube().MustBuild()
	d := algorithm_manager.NewDecimater(m, buildOptions(""), nil)
	pm, err := buildProgMesh(d, 0)
	require.NoError(t, err)
	c := boundsCenter(pm)
	assert.InDelta(t, 0.5, c.X, 1e-6)
	assert.InDelta(t, 0.5, c.Y, 1e-6)
	assert.InDelta(t, 0.5, c.Z, 1e-6)
}

func TestRefineRejectsEyeAtTarget(t *testing.T) {
	dir := t.TempDir()
	input := writeOFF(t, dir, "sphere.off", meshtest.Icosphere(2))
	runBuild(t, buildOptions(input))

	opts := &pmtool.Options{
		Input: filepath.Join(dir, "sphere.pm"),
		RefineOptions: &pmtool.RefineOptions{
			Eye:            [3]float64{0, 0, 0},
			FovY:           60,
			ViewportHeight: 480,
		},
	}
	assert.ErrorIs(t, NewPMRefiner().Run(context.Background(), opts), ErrDegenerateView)

	opts.RefineOptions.Eye = [3]float64{0, 0, 3}
	opts.RefineOptions.Output = filepath.Join(dir, "sphere.stl")
	assert.ErrorIs(t, NewPMRefiner().Run(context.Background(), opts), mesh.ErrUnsupportedFormat)
	assert.NoFileExists(t, opts.RefineOptions.Output)
}

func TestModuleSummary(t *testing.T) {
	m := meshtest.Icosphere(1).MustBuild()
	d := algorithm_manager.NewDecimater(m, buildOptions(""), nil)
	assert.Equal(t, []string{
		"w/  progressive mesh module",
		"w/  balancer module",
		"w/o normal flipping module",
		"w/o independent sets module",
	}, moduleSummary(d, 0))

	opts := buildOptions("")
	opts.BuildOptions.NormalDeviation = 45
	opts.BuildOptions.IndependentSets = true
	d = algorithm_manager.NewDecimater(meshtest.Icosphere(1).MustBuild(), opts, nil)
	summary := moduleSummary(d, 45)
	assert.Contains(t, summary, "w/  normal flipping module (max. normal deviation: 45)")
	assert.Contains(t, summary, "w/  independent sets module")
}
