// Package progmesh records the collapses of a decimation as a base mesh plus the vertex
// splits that undo them, and reads and writes that stream.
package progmesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Record is one vertex split: vertex V1 splits, a new vertex appears at P0 and takes the
// faces of V1 between VL and VR.
type Record struct {
	P0         r3.Vec
	V1, VL, VR int32
}

// ProgMesh is a base mesh and the splits that refine it back to full resolution.
// The i-th split creates vertex NBaseVertices()+i.
type ProgMesh struct {
	Positions []r3.Vec
	Faces     [][3]uint32
	Splits    []Record

	BitsForRoots uint32
	MaxLevel     uint32
}

func (pm *ProgMesh) NBaseVertices() int { return len(pm.Positions) }

// NVertices is the vertex count at full resolution.
func (pm *ProgMesh) NVertices() int { return len(pm.Positions) + len(pm.Splits) }

// Validate checks that every index refers to a vertex existing at the time it is used.
func (pm *ProgMesh) Validate() error {
	nBase := uint32(len(pm.Positions))
	for i, f := range pm.Faces {
		if f[0] >= nBase || f[1] >= nBase || f[2] >= nBase {
			return fmt.Errorf("progmesh: base face %d %v out of range", i, f)
		}
	}
	for i := range pm.Splits {
		if err := pm.checkRecord(i); err != nil {
			return err
		}
	}
	return nil
}

func (pm *ProgMesh) checkRecord(i int) error {
	r := pm.Splits[i]
	n := int32(len(pm.Positions) + i)
	for _, v := range [3]int32{r.V1, r.VL, r.VR} {
		if v < 0 || v >= n {
			return fmt.Errorf("%w: split %d refers to vertex %d of %d", ErrCorruptRecord, i, v, n)
		}
	}
	if r.V1 == r.VL || r.V1 == r.VR || r.VL == r.VR {
		return fmt.Errorf("%w: split %d repeats a vertex (%d, %d, %d)", ErrCorruptRecord, i, r.V1, r.VL, r.VR)
	}
	return nil
}
