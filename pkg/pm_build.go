package pkg

import (
	"context"
	"errors"
	"fmt"
	goio "io"
	"path/filepath"
	"runtime"

	"github.com/ecopia-map/vdpm/internal/converters"
	"github.com/ecopia-map/vdpm/internal/io"
	"github.com/ecopia-map/vdpm/internal/mesh"
	"github.com/ecopia-map/vdpm/internal/pmtool"
	"github.com/ecopia-map/vdpm/internal/progmesh"
	"github.com/ecopia-map/vdpm/internal/store"
	"github.com/ecopia-map/vdpm/pkg/algorithm_manager"
	"github.com/ecopia-map/vdpm/tools"
	"github.com/golang/glog"
)

var ErrNoInputFiles = errors.New("no mesh files to process")

type IRunner interface {
	Run(ctx context.Context, opts *pmtool.Options) error
}

// PMBuilder decimates every input mesh into a balanced progressive mesh.
type PMBuilder struct {
	fileFinder       tools.FileFinder
	algorithmManager algorithm_manager.AlgorithmManager
	verbose          bool
}

func NewPMBuilder(fileFinder tools.FileFinder, algorithmManager algorithm_manager.AlgorithmManager) IRunner {
	return &PMBuilder{
		fileFinder:       fileFinder,
		algorithmManager: algorithmManager,
	}
}

// Starts the build of the progressive meshes
func (b *PMBuilder) Run(ctx context.Context, opts *pmtool.Options) error {
	tools.LogOutput("Preparing list of files to process...")
	files, err := b.fileFinder.GetMeshFilesToProcess(opts)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return ErrNoInputFiles
	}
	for i, filePath := range files {
		glog.V(1).Infof("mesh file %d [%s]", i, filePath)
	}
	defer cleanup(b.algorithmManager)

	publisher, err := newPublisher(ctx, opts.BuildOptions)
	if err != nil {
		return err
	}

	numConsumers := opts.BuildOptions.Workers
	if numConsumers <= 0 {
		numConsumers = runtime.NumCPU()
	}
	numConsumers = min(numConsumers, len(files))
	// interleaved progress lines of concurrent builds are unreadable
	b.verbose = numConsumers == 1

	consumers := make([]io.Consumer, numConsumers)
	for i := range consumers {
		consumers[i] = io.NewStandardConsumer(b, publisher)
	}
	producer := io.NewStandardProducer(files, opts)
	return io.Run(ctx, producer, consumers, numConsumers*5)
}

// Process builds the progressive mesh of one work unit.
func (b *PMBuilder) Process(ctx context.Context, work *io.WorkUnit) error {
	tools.LogOutput("Processing", filepath.Base(work.Input))
	m, err := loadMesh(work.Input, work.Opts, b.algorithmManager)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	pm, err := b.decimate(m, work.Opts)
	if err != nil {
		return err
	}

	tools.LogOutput("Write progressive mesh data to file", work.Output)
	return tools.WriteFileAtomic(work.Output, func(w goio.Writer) error {
		return progmesh.Write(w, pm, work.Opts.BuildOptions.Compression)
	})
}

func (b *PMBuilder) decimate(m *mesh.TriMesh, opts *pmtool.Options) (*progmesh.ProgMesh, error) {
	var progress func(int)
	if b.verbose {
		nv := m.NVertices()
		progress = func(remaining int) {
			tools.LogProgress("%d (-%d)", remaining, nv-remaining)
		}
	}
	d := b.algorithmManager.GetDecimater(m, progress)
	printModules(d, opts.BuildOptions.NormalDeviation)

	pm, err := buildProgMesh(d, opts.BuildOptions.MaxCollapses)
	if err != nil {
		return nil, err
	}
	tools.LogOutput(fmt.Sprintf("Bits for <tree-id, node-id>: <%d, %d>", d.Balancer.BitsForRoots(), d.Balancer.MaxLevel()))
	tools.LogOutput(fmt.Sprintf("Maximum level reached: %d", d.Balancer.MaxLevel()))
	return pm, nil
}

// buildProgMesh initializes d and decimates in passes until no collapse is left or
// maxCollapses collapses were done. Zero means no limit.
func buildProgMesh(d *algorithm_manager.Decimater, maxCollapses int) (*progmesh.ProgMesh, error) {
	m := d.Engine.Mesh()

	tools.LogOutput("Initialize decimater")
	timer := tools.StartTimer()
	if err := d.Engine.Initialize(); err != nil {
		return nil, fmt.Errorf("initialization failed: %w", err)
	}
	tools.LogOutput(" ", timer.Done())

	nv := m.NVertices()
	tools.LogOutput(fmt.Sprintf("Begin decimation (#V %d)", nv))
	timer = tools.StartTimer()
	remaining := maxCollapses
	for {
		rc, err := d.Engine.Decimate(remaining)
		if err != nil {
			return nil, err
		}
		nv -= rc
		glog.V(1).Infof("pass: %d (-%d)", nv, rc)
		if rc == 0 {
			break
		}
		if maxCollapses > 0 {
			if remaining -= rc; remaining <= 0 {
				break
			}
		}
	}
	tools.LogOutput(" ", timer.Done(), "-", fmt.Sprintf("%d vertices left,", nv), tools.FmtRatio(d.Recorder.Collapses(), m.NVertices()+d.Recorder.Collapses()), "collapsed")

	return d.Recorder.Finish()
}

func printModules(d *algorithm_manager.Decimater, normalDeviation float64) {
	for _, line := range moduleSummary(d, normalDeviation) {
		tools.LogOutput(line)
	}
}

// moduleSummary lists the installed decimation modules, one line each.
func moduleSummary(d *algorithm_manager.Decimater, normalDeviation float64) []string {
	lines := []string{"w/  progressive mesh module", "w/  balancer module"}
	if d.NormalFlipping != nil {
		lines = append(lines, fmt.Sprintf("w/  normal flipping module (max. normal deviation: %g)", normalDeviation))
	} else {
		lines = append(lines, "w/o normal flipping module")
	}
	if d.IndependentSets != nil {
		return append(lines, "w/  independent sets module")
	}
	return append(lines, "w/o independent sets module")
}

// loadMesh reads path and moves its vertices to the working coordinate system.
func loadMesh(path string, opts *pmtool.Options, am algorithm_manager.AlgorithmManager) (*mesh.TriMesh, error) {
	tools.LogOutput("> reading mesh from", filepath.Base(path))
	m, err := mesh.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error loading mesh: %w", err)
	}
	tools.LogOutput(fmt.Sprintf("  %d vertices, %d faces", m.NVertices(), m.NFaces()))

	converter := am.GetCoordinateConverterAlgorithm()
	corrector := am.GetElevationCorrectionAlgorithm()
	if corrector != nil || (opts.Srid != 0 && converter != nil) {
		if err := converters.TransformMesh(m, opts.Srid, converter, corrector); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func newPublisher(ctx context.Context, opts *pmtool.BuildOptions) (store.Publisher, error) {
	if opts.Publish == "" {
		return nil, nil
	}
	publisher, err := store.NewMinioPublisherFromURL(opts.S3Endpoint, opts.Publish, opts.S3Secure)
	if err != nil {
		return nil, err
	}
	if err := publisher.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return publisher, nil
}

func cleanup(am algorithm_manager.AlgorithmManager) {
	if converter := am.GetCoordinateConverterAlgorithm(); converter != nil {
		converter.Cleanup()
	}
}
