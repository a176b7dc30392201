package mesh

import "errors"

var (
	ErrInvalidHandle     = errors.New("mesh: invalid handle")
	ErrDegenerateFace    = errors.New("mesh: degenerate face")
	ErrComplexEdge       = errors.New("mesh: complex edge")
	ErrComplexVertex     = errors.New("mesh: complex vertex")
	ErrNotAdjacent       = errors.New("mesh: split vertices are not adjacent")
	ErrMalformedInput    = errors.New("mesh: malformed input")
	ErrUnsupportedFormat = errors.New("mesh: unsupported file format")
)
