package decimater

import (
	"math/bits"

	"github.com/ecopia-map/vdpm/internal/mesh"
)

// identifierBits is the width of a packed hierarchy node identifier.
const identifierBits = 32

// BitsForRoots is the number of bits needed to index n roots, ceil(log2 n).
func BitsForRoots(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// ModBalancer orders collapses by the level of the vertex they produce, so the collapse
// forest stays shallow enough for its node identifiers to fit in 32 bits. The quadric
// error only breaks ties inside a level.
type ModBalancer struct {
	ModQuadric

	levels       []int
	maxLevel     int
	nVertices    int
	bitsForRoots int
}

func NewModBalancer() *ModBalancer {
	return &ModBalancer{}
}

func (b *ModBalancer) Name() string { return "Balancer" }

func (b *ModBalancer) Initialize(e *Engine) error {
	if err := b.ModQuadric.Initialize(e); err != nil {
		return err
	}
	m := e.Mesh()
	b.levels = make([]int, m.VertexSlots())
	b.maxLevel = 0
	b.nVertices = m.NVertices()
	b.bitsForRoots = BitsForRoots(b.nVertices)
	return nil
}

func (b *ModBalancer) CollapsePriority(ci *CollapseInfo) float64 {
	level := max(b.levels[ci.V0], b.levels[ci.V1]) + 1
	if BitsForRoots(b.nVertices-1)+level >= identifierBits {
		return Illegal
	}
	err := b.ModQuadric.CollapsePriority(ci)
	if err < 0 {
		return Illegal
	}
	return float64(level) + err/(err+1)
}

func (b *ModBalancer) PostprocessCollapse(ci *CollapseInfo) {
	b.ModQuadric.PostprocessCollapse(ci)
	level := max(b.levels[ci.V0], b.levels[ci.V1]) + 1
	b.levels[ci.V1] = level
	b.maxLevel = max(b.maxLevel, level)
	b.nVertices--
	b.bitsForRoots = BitsForRoots(b.nVertices)
}

func (b *ModBalancer) Level(v mesh.VertexHandle) int { return b.levels[v] }

func (b *ModBalancer) MaxLevel() int { return b.maxLevel }

// BitsForRoots is the identifier bits the current vertex count needs for its roots.
func (b *ModBalancer) BitsForRoots() int { return b.bitsForRoots }
