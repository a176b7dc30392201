package pkg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/ecopia-map/vdpm/internal/mesh"
	"github.com/ecopia-map/vdpm/internal/pmtool"
	"github.com/ecopia-map/vdpm/internal/progmesh"
	"github.com/ecopia-map/vdpm/internal/vdpm"
	"github.com/ecopia-map/vdpm/tools"
	"gonum.org/v1/gonum/spatial/r3"
)

var ErrDegenerateView = errors.New("eye and target coincide")

// maxRefinementPasses bounds the passes run for a single view.
const maxRefinementPasses = 256

// PMRefiner loads a progressive mesh, builds its hierarchy and adapts the mesh to one view.
type PMRefiner struct{}

func NewPMRefiner() IRunner {
	return &PMRefiner{}
}

func (p *PMRefiner) Run(ctx context.Context, opts *pmtool.Options) error {
	ro := opts.RefineOptions

	tools.LogOutput("> reading progressive mesh from", filepath.Base(opts.Input))
	timer := tools.StartTimer()
	pm, err := progmesh.ReadFile(opts.Input)
	if err != nil {
		return err
	}
	tools.LogOutput(fmt.Sprintf("  %d base vertices, %d splits, %s", pm.NBaseVertices(), len(pm.Splits), timer.Done()))

	tools.LogOutput("> building vertex hierarchy...")
	timer = tools.StartTimer()
	h, err := vdpm.BuildHierarchy(pm)
	if err != nil {
		return err
	}
	tools.LogOutput(fmt.Sprintf("  %d nodes, %d roots, %d tree-id bits, %s", h.NumNodes(), h.NumRoots(), h.TreeIDBits(), timer.Done()))

	cfg := vdpm.DefaultRefinerConfig()
	cfg.NodeBudget = ro.NodeBudget
	r, err := vdpm.NewRefiner(h, pm, cfg)
	if err != nil {
		return err
	}

	vp, err := viewingParameters(ro, pm)
	if err != nil {
		return err
	}
	tools.LogOutput(fmt.Sprintf("> refining for eye %v looking at %v", ro.Eye, vp.Eye.Add(vp.Direction)))
	timer = tools.StartTimer()
	passes, err := refine(ctx, r, vp)
	if err != nil {
		return err
	}
	totals := r.Totals()
	tools.LogOutput(fmt.Sprintf("  %d passes, %d vsplits, %d ecols, %s", passes, totals.VSplits, totals.ECols, timer.Done()))
	tools.LogOutput(fmt.Sprintf("  active front: %d nodes (%d in snapshot), %s of the full resolution",
		r.Front().Len(), r.Front().Snapshot().GetCardinality(), tools.FmtRatio(r.Front().Len(), pm.NVertices())))
	tools.LogOutput(fmt.Sprintf("  mesh: %d vertices, %d faces", r.Mesh().NVertices(), r.Mesh().NFaces()))

	if ro.Output == "" {
		return nil
	}
	tools.LogOutput("Write refined mesh to file", ro.Output)
	return saveMesh(ro.Output, r.Mesh())
}

// saveMesh writes OFF through a temporary file. Other registered formats write in place.
func saveMesh(path string, m *mesh.TriMesh) error {
	if !strings.EqualFold(filepath.Ext(path), ".off") {
		if err := tools.CreateDirectoryIfDoesNotExist(filepath.Dir(path)); err != nil {
			return err
		}
		return mesh.SaveFile(path, m)
	}
	return tools.WriteFileAtomic(path, func(w io.Writer) error {
		return mesh.WriteOFF(w, m)
	})
}

// refine runs passes until one of them changes nothing.
func refine(ctx context.Context, r *vdpm.Refiner, vp *vdpm.ViewingParameters) (int, error) {
	stats := r.Update(vp)
	passes := 1
	for (stats.VSplits > 0 || stats.ECols > 0) && passes < maxRefinementPasses {
		if err := ctx.Err(); err != nil {
			return passes, err
		}
		tools.LogProgress("pass %d: +%d -%d, front %d", passes, stats.VSplits, stats.ECols, r.Front().Len())
		stats = r.AdaptiveRefinement()
		passes++
	}
	return passes, nil
}

func viewingParameters(ro *pmtool.RefineOptions, pm *progmesh.ProgMesh) (*vdpm.ViewingParameters, error) {
	vp := vdpm.NewViewingParameters()
	vp.FovY = float32(ro.FovY)
	vp.Tolerance = float32(ro.Tolerance)
	vp.ViewportHeight = float32(ro.ViewportHeight)

	eye := r3.Vec{X: ro.Eye[0], Y: ro.Eye[1], Z: ro.Eye[2]}
	target := r3.Vec{X: ro.Target[0], Y: ro.Target[1], Z: ro.Target[2]}
	if !ro.HasTarget {
		target = boundsCenter(pm)
	}
	if r3.Norm(r3.Sub(target, eye)) <= 1e-9*(1+r3.Norm(target)) {
		return nil, fmt.Errorf("%w: eye %v is the target", ErrDegenerateView, ro.Eye)
	}
	up := r3.Vec{Y: 1}
	if dir := r3.Unit(r3.Sub(target, eye)); math.Abs(r3.Dot(dir, up)) > 0.999 {
		up = r3.Vec{Z: 1}
	}
	vp.LookAt(vdpm.Vec3Of(eye), vdpm.Vec3Of(target), vdpm.Vec3Of(up))
	return vp, nil
}

// boundsCenter is the centre of the bounding box of every vertex of pm.
func boundsCenter(pm *progmesh.ProgMesh) r3.Vec {
	points := append([]r3.Vec(nil), pm.Positions...)
	for _, s := range pm.Splits {
		points = append(points, s.P0)
	}
	return mesh.Bounds(points).Center()
}
