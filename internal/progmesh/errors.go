package progmesh

import "errors"

var (
	ErrBadMagic               = errors.New("progmesh: not a progressive mesh stream")
	ErrTruncated              = errors.New("progmesh: truncated stream")
	ErrUnsupportedCompression = errors.New("progmesh: unsupported compression")
	ErrCorruptRecord          = errors.New("progmesh: corrupt vertex split record")
	ErrNotFinished            = errors.New("progmesh: recorder has not been finished")
)
