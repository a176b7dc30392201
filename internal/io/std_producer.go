package io

import (
	"context"
	"path/filepath"

	"github.com/ecopia-map/vdpm/internal/pmtool"
)

type StandardProducer struct {
	files   []string
	options *pmtool.Options
}

func NewStandardProducer(files []string, options *pmtool.Options) *StandardProducer {
	return &StandardProducer{
		files:   files,
		options: options,
	}
}

// Submits one WorkUnit per input file to the work channel. Closes the channel when all work
// is submitted or the context is cancelled.
func (p *StandardProducer) Produce(ctx context.Context, work chan<- *WorkUnit) error {
	defer close(work)
	for _, file := range p.files {
		opts := p.options.Copy()
		opts.Input = file

		unit := &WorkUnit{
			Input:  file,
			Output: p.outputPath(file),
			Opts:   opts,
		}
		select {
		case work <- unit:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// In folder mode the output option names a folder, empty meaning next to each input.
func (p *StandardProducer) outputPath(file string) string {
	output := ""
	if p.options.BuildOptions != nil {
		output = p.options.BuildOptions.Output
	}
	if !p.options.FolderProcessing {
		return pmtool.OutputPath(file, output)
	}
	if output == "" {
		output = filepath.Dir(file)
	}
	return pmtool.OutputPathInFolder(file, output)
}
