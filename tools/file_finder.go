package tools

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ecopia-map/vdpm/internal/mesh"
	"github.com/ecopia-map/vdpm/internal/pmtool"
)

type FileFinder interface {
	GetMeshFilesToProcess(opts *pmtool.Options) ([]string, error)
}

type StandardFileFinder struct{}

func NewStandardFileFinder() FileFinder {
	return &StandardFileFinder{}
}

func (f *StandardFileFinder) GetMeshFilesToProcess(opts *pmtool.Options) ([]string, error) {
	// If folder processing is not enabled then the mesh file is given by -input flag, otherwise look for meshes in
	// -input folder eventually excluding nested folders if Recursive flag is disabled
	if !opts.FolderProcessing {
		return []string{opts.Input}, nil
	}

	return f.getMeshFilesFromInputFolder(opts)
}

func (f *StandardFileFinder) getMeshFilesFromInputFolder(opts *pmtool.Options) ([]string, error) {
	var meshFiles []string

	root := filepath.Clean(opts.Input)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		// hidden files include the temporaries of WriteFileAtomic
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if mesh.Supported(d.Name()) {
			meshFiles = append(meshFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(meshFiles)
	return meshFiles, nil
}
