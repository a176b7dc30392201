// Package decimater simplifies a triangle mesh by repeated halfedge collapses, ordered by
// a cost that pluggable modules compute.
package decimater

import (
	"fmt"
	"math"

	"github.com/ecopia-map/vdpm/internal/mesh"
	"github.com/golang/glog"
	"gonum.org/v1/gonum/spatial/r3"
)

const progressInterval = 1000

type Config struct {
	// Debug logs every collapse through glog.V(2).
	Debug bool
	// FeatureAngle in degrees. Edges whose faces meet at a larger angle are preserved.
	// Zero or negative disables the feature test.
	FeatureAngle float64
	// Progress, when set, is called with the number of remaining vertices every
	// thousand collapses and once at the end of a pass.
	Progress func(remaining int)
}

func DefaultConfig() Config {
	return Config{FeatureAngle: 60}
}

// Engine drives the collapses. Modules are consulted in the order they were added.
type Engine struct {
	mesh     *mesh.TriMesh
	cfg      Config
	modules  []Module
	priority Module

	initialized bool
	heap        *vertexHeap
	targets     []mesh.HalfedgeHandle
}

func New(m *mesh.TriMesh, cfg Config) *Engine {
	return &Engine{mesh: m, cfg: cfg}
}

func (e *Engine) Mesh() *mesh.TriMesh { return e.mesh }

func (e *Engine) Config() Config { return e.cfg }

// Add installs a module. Modules added after Initialize are ignored until the next Initialize.
func (e *Engine) Add(m Module) {
	e.modules = append(e.modules, m)
	e.initialized = false
}

func (e *Engine) Modules() []Module {
	return e.modules
}

// Initialize marks feature edges and lets every module precompute its state.
func (e *Engine) Initialize() error {
	e.initialized = false
	e.priority = nil
	for _, m := range e.modules {
		if m.IsBinary() {
			continue
		}
		if e.priority != nil {
			return fmt.Errorf("%w: %s and %s", ErrMultiplePriorityModules, e.priority.Name(), m.Name())
		}
		e.priority = m
	}
	if e.priority == nil {
		return ErrNoPriorityModule
	}

	e.markFeatures()

	for _, m := range e.modules {
		if err := m.Initialize(e); err != nil {
			return &ModuleInitError{Module: m.Name(), Err: err}
		}
	}
	e.initialized = true
	return nil
}

func (e *Engine) markFeatures() {
	if e.cfg.FeatureAngle <= 0 {
		return
	}
	minCos := math.Cos(e.cfg.FeatureAngle * math.Pi / 180)
	for _, edge := range e.mesh.LiveEdges() {
		if e.mesh.IsBoundaryEdge(edge) {
			continue
		}
		n0 := e.mesh.FaceNormal(e.mesh.FaceOf(edge.Halfedge(0)))
		n1 := e.mesh.FaceNormal(e.mesh.FaceOf(edge.Halfedge(1)))
		e.mesh.SetFeatureEdge(edge, r3.Dot(n0, n1) < minCos)
	}
	for _, v := range e.mesh.LiveVertices() {
		features := 0
		for _, h := range e.mesh.Outgoing(v) {
			if e.mesh.EdgeStatus(h.Edge()).Feature() {
				features++
			}
		}
		switch {
		case features == 2:
			e.mesh.SetFeatureVertex(v, true)
		case features > 0:
			// corners and dangling feature lines stay where they are
			e.mesh.SetLocked(v, true)
		}
	}
}

// Decimate performs at most nCollapses collapses, as many as possible when nCollapses is 0.
// It returns the number of collapses performed; running out of legal collapses is not an error.
func (e *Engine) Decimate(nCollapses int) (int, error) {
	return e.decimate(nCollapses, 0)
}

// DecimateTo collapses until the mesh has at most nVertices vertices or nothing legal is left.
func (e *Engine) DecimateTo(nVertices int) (int, error) {
	if e.initialized && e.mesh.NVertices() <= nVertices {
		return 0, nil
	}
	return e.decimate(0, nVertices)
}

func (e *Engine) decimate(nCollapses, nVertices int) (int, error) {
	if !e.initialized {
		return 0, ErrNotInitialized
	}
	for _, m := range e.modules {
		if r, ok := m.(PassResetter); ok {
			r.ResetPass()
		}
	}

	e.heap = newVertexHeap(e.mesh.VertexSlots())
	e.targets = make([]mesh.HalfedgeHandle, e.mesh.VertexSlots())
	for _, v := range e.mesh.LiveVertices() {
		e.updateVertex(v)
	}

	count := 0
	for e.heap.Len() > 0 {
		if nCollapses > 0 && count >= nCollapses {
			break
		}
		if nVertices > 0 && e.mesh.NVertices() <= nVertices {
			break
		}

		top := e.heap.popMin()
		h := e.targets[top.vertex]
		if !e.isCollapseLegal(h) {
			e.updateVertex(top.vertex)
			continue
		}
		ci := NewCollapseInfo(e.mesh, h)
		if p := e.collapsePriority(&ci); p < 0 || p != top.priority {
			// neighbourhood changed since the entry was queued
			e.updateVertex(top.vertex)
			continue
		}

		support := e.mesh.VertexVertices(ci.V0)
		for _, m := range e.modules {
			if pre, ok := m.(Preprocessor); ok {
				pre.PreprocessCollapse(&ci)
			}
		}
		e.mesh.Collapse(h)
		for _, m := range e.modules {
			m.PostprocessCollapse(&ci)
		}
		count++

		if e.cfg.Debug {
			glog.V(2).Infof("collapse %d -> %d (priority %g), %d vertices left", ci.V0, ci.V1, top.priority, e.mesh.NVertices())
		}
		for _, v := range support {
			e.updateVertex(v)
		}
		if e.cfg.Progress != nil && count%progressInterval == 0 {
			e.cfg.Progress(e.mesh.NVertices())
		}
	}
	if e.cfg.Progress != nil {
		e.cfg.Progress(e.mesh.NVertices())
	}
	return count, nil
}

// isCollapseLegal applies the topological and feature rules shared by every module.
func (e *Engine) isCollapseLegal(h mesh.HalfedgeHandle) bool {
	if !h.IsValid() || !e.mesh.IsCollapseOK(h) {
		return false
	}
	st := e.mesh.VertexStatus(e.mesh.FromVertex(h))
	if st.Locked() {
		return false
	}
	if st.Feature() && !e.mesh.EdgeStatus(h.Edge()).Feature() {
		return false
	}
	return true
}

// collapsePriority lets every binary module veto first, then asks the priority module for the cost.
func (e *Engine) collapsePriority(ci *CollapseInfo) float64 {
	for _, m := range e.modules {
		if m.IsBinary() && m.CollapsePriority(ci) < 0 {
			return Illegal
		}
	}
	return e.priority.CollapsePriority(ci)
}

// updateVertex queues v with its cheapest legal outgoing collapse, or drops it from the queue.
func (e *Engine) updateVertex(v mesh.VertexHandle) {
	best := mesh.InvalidHalfedge
	bestPriority := math.Inf(1)
	if !e.mesh.VertexStatus(v).Deleted() {
		for _, h := range e.mesh.Outgoing(v) {
			if !e.isCollapseLegal(h) {
				continue
			}
			ci := NewCollapseInfo(e.mesh, h)
			if p := e.collapsePriority(&ci); p >= 0 && p < bestPriority {
				best, bestPriority = h, p
			}
		}
	}
	e.targets[v] = best
	if best.IsValid() {
		e.heap.update(v, bestPriority)
	} else {
		e.heap.remove(v)
	}
}
