package vdpm

import (
	"errors"
	"fmt"
)

var (
	ErrStructuralCorruption = errors.New("vdpm: structurally invalid split stream")
	ErrIndexOverflow        = errors.New("vdpm: hierarchy too deep for 32 bit node indices")
)

// CorruptionError reports the split record that could not be attached to the hierarchy.
type CorruptionError struct {
	Record int
	Parent int32
	Err    error
}

func (e *CorruptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vdpm: split %d of vertex %d: %v", e.Record, e.Parent, e.Err)
	}
	return fmt.Sprintf("vdpm: split %d of vertex %d: parent is not a materialized leaf", e.Record, e.Parent)
}

func (e *CorruptionError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrStructuralCorruption, e.Err}
	}
	return []error{ErrStructuralCorruption}
}
