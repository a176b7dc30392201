package pkg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/ecopia-map/vdpm/internal/mesh"
	"github.com/ecopia-map/vdpm/internal/pmtool"
	"github.com/ecopia-map/vdpm/internal/progmesh"
	"github.com/ecopia-map/vdpm/internal/vdpm"
	"github.com/ecopia-map/vdpm/pkg/algorithm_manager"
	"github.com/ecopia-map/vdpm/tools"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrVerificationFailed = errors.New("verification failed")

// PMVerifier checks that replaying every split of a progressive mesh gives back its input.
type PMVerifier struct {
	algorithmManager algorithm_manager.AlgorithmManager
}

func NewPMVerifier(algorithmManager algorithm_manager.AlgorithmManager) IRunner {
	return &PMVerifier{algorithmManager: algorithmManager}
}

// Run verifies the file given with the pm option against the input mesh, or decimates the
// input in memory and verifies the result when no file is given.
func (v *PMVerifier) Run(ctx context.Context, opts *pmtool.Options) error {
	defer cleanup(v.algorithmManager)
	m, err := loadMesh(opts.Input, opts, v.algorithmManager)
	if err != nil {
		return err
	}

	var replayed *mesh.TriMesh
	var remap func(mesh.VertexHandle) int
	if opts.VerifyOptions.ProgMesh != "" {
		replayed, remap, err = v.replayFile(opts.VerifyOptions.ProgMesh, m)
	} else {
		replayed, remap, err = v.replayInMemory(ctx, m, opts)
	}
	if err != nil {
		return err
	}

	if err := compareMeshes(m, replayed, remap); err != nil {
		return err
	}
	tools.LogOutput("Verification succeeded:", filepath.Base(opts.Input))
	return nil
}

// replayInMemory decimates a copy of m, round-trips the result through the stream format
// and replays it. The returned remap sends replayed vertices to the handles of m.
func (v *PMVerifier) replayInMemory(ctx context.Context, m *mesh.TriMesh, opts *pmtool.Options) (*mesh.TriMesh, func(mesh.VertexHandle) int, error) {
	work, err := copyMesh(m)
	if err != nil {
		return nil, nil, err
	}
	d := v.algorithmManager.GetDecimater(work, nil)
	pm, err := buildProgMesh(d, opts.VerifyOptions.MaxCollapses)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	if err := progmesh.Write(&buf, pm, progmesh.CompressionZstd); err != nil {
		return nil, nil, err
	}
	size := buf.Len()
	pm, err = progmesh.Read(&buf)
	if err != nil {
		return nil, nil, err
	}
	tools.LogOutput(fmt.Sprintf("  stream: %d bytes for %d base vertices and %d splits", size, pm.NBaseVertices(), len(pm.Splits)))

	replayed, err := replay(pm)
	if err != nil {
		return nil, nil, err
	}

	vmap := d.Recorder.VertexMap()
	inverse := make([]int, pm.NVertices())
	for i := range inverse {
		inverse[i] = -1
	}
	for handle, index := range vmap {
		if index >= 0 {
			inverse[index] = handle
		}
	}
	return replayed, func(vh mesh.VertexHandle) int { return inverse[vh] }, nil
}

// replayFile replays the progressive mesh at path. Its vertices are matched to those of m
// by their single precision positions, which must therefore be distinct.
func (v *PMVerifier) replayFile(path string, m *mesh.TriMesh) (*mesh.TriMesh, func(mesh.VertexHandle) int, error) {
	tools.LogOutput("> reading progressive mesh from", filepath.Base(path))
	pm, err := progmesh.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	replayed, err := replay(pm)
	if err != nil {
		return nil, nil, err
	}

	byPosition := make(map[[3]float32]mesh.VertexHandle, m.NVertices())
	for _, vh := range m.LiveVertices() {
		key := positionKey(m.Position(vh))
		if other, ok := byPosition[key]; ok {
			return nil, nil, fmt.Errorf("vertices %d and %d share position %v, match them by replaying in memory instead", other, vh, key)
		}
		byPosition[key] = vh
	}
	remap := func(vh mesh.VertexHandle) int {
		if orig, ok := byPosition[positionKey(replayed.Position(vh))]; ok {
			return int(orig)
		}
		return -1
	}
	return replayed, remap, nil
}

// replay applies every split of pm and checks that its vertex hierarchy can be built.
func replay(pm *progmesh.ProgMesh) (*mesh.TriMesh, error) {
	timer := tools.StartTimer()
	replayed, err := progmesh.Replay(pm, -1)
	if err != nil {
		return nil, err
	}
	h, err := vdpm.BuildHierarchy(pm)
	if err != nil {
		return nil, err
	}
	tools.LogOutput(fmt.Sprintf("  replayed %d splits, hierarchy of %d nodes, %s", len(pm.Splits), h.NumNodes(), timer.Done()))
	return replayed, nil
}

// compareMeshes checks that replayed, seen through remap, has the vertices and oriented
// faces of want. Positions only have to agree to single precision.
func compareMeshes(want, replayed *mesh.TriMesh, remap func(mesh.VertexHandle) int) error {
	if want.NVertices() != replayed.NVertices() || want.NFaces() != replayed.NFaces() {
		return fmt.Errorf("%w: %d vertices and %d faces replayed, %d and %d expected", ErrVerificationFailed,
			replayed.NVertices(), replayed.NFaces(), want.NVertices(), want.NFaces())
	}
	for _, vh := range replayed.LiveVertices() {
		orig := remap(vh)
		if orig < 0 || !want.IsValidVertex(mesh.VertexHandle(orig)) {
			return fmt.Errorf("%w: replayed vertex %d has no counterpart", ErrVerificationFailed, vh)
		}
		if d := r3.Norm(r3.Sub(want.Position(mesh.VertexHandle(orig)), replayed.Position(vh))); d > positionTolerance(want.Position(mesh.VertexHandle(orig))) {
			return fmt.Errorf("%w: vertex %d moved by %g", ErrVerificationFailed, orig, d)
		}
	}

	wantFaces := faceSet(want, func(vh mesh.VertexHandle) int { return int(vh) })
	gotFaces := faceSet(replayed, remap)
	for f := range gotFaces {
		if !wantFaces[f] {
			return fmt.Errorf("%w: replayed face %v is not in the input", ErrVerificationFailed, f)
		}
	}
	if len(gotFaces) != len(wantFaces) {
		return fmt.Errorf("%w: %d distinct faces replayed, %d expected", ErrVerificationFailed, len(gotFaces), len(wantFaces))
	}
	return nil
}

// faceSet holds the oriented faces of m, each rotated to start at its smallest index.
func faceSet(m *mesh.TriMesh, remap func(mesh.VertexHandle) int) map[[3]int]bool {
	set := make(map[[3]int]bool, m.NFaces())
	for _, f := range m.LiveFaces() {
		vs := m.FaceVertices(f)
		tri := [3]int{remap(vs[0]), remap(vs[1]), remap(vs[2])}
		for tri[0] > tri[1] || tri[0] > tri[2] {
			tri = [3]int{tri[1], tri[2], tri[0]}
		}
		set[tri] = true
	}
	return set
}

func positionKey(p r3.Vec) [3]float32 {
	return [3]float32{float32(p.X), float32(p.Y), float32(p.Z)}
}

// positionTolerance covers the rounding of p to single precision.
func positionTolerance(p r3.Vec) float64 {
	return 1e-6 * (1 + math.Max(math.Abs(p.X), math.Max(math.Abs(p.Y), math.Abs(p.Z))))
}

// copyMesh rebuilds the live part of m with dense handles. Handles of m without garbage are
// preserved.
func copyMesh(m *mesh.TriMesh) (*mesh.TriMesh, error) {
	b := mesh.NewBuilder()
	index := make([]mesh.VertexHandle, m.VertexSlots())
	for _, vh := range m.LiveVertices() {
		index[vh] = b.AddVertex(m.Position(vh))
	}
	for _, f := range m.LiveFaces() {
		vs := m.FaceVertices(f)
		if err := b.AddFace(index[vs[0]], index[vs[1]], index[vs[2]]); err != nil {
			return nil, err
		}
	}
	return b.Build()
}
