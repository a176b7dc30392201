package io

import "github.com/ecopia-map/vdpm/internal/pmtool"

// Contains the minimal data needed to produce a single progressive mesh file
type WorkUnit struct {
	Input  string
	Output string
	Opts   *pmtool.Options
}
