package pmtool

import (
	"path/filepath"
	"strings"

	"github.com/ecopia-map/vdpm/internal/progmesh"
)

const Extension = ".pm"

// Contains the options shared by every command
type Options struct {
	Input            string  // Input mesh file/folder
	FolderProcessing bool    // Enables the processing of all mesh files in folder
	Recursive        bool    // Recursive lookup of mesh files in subfolders
	Srid             int     // EPSG code of the input coordinates, 0 keeps them as they are
	ZOffset          float64 // Z Offset to apply to the vertices after loading

	Command       string
	BuildOptions  *BuildOptions
	RefineOptions *RefineOptions
	VerifyOptions *VerifyOptions
}

type BuildOptions struct {
	Output          string               // Output .pm file or folder
	MaxCollapses    int                  // Maximum number of collapses, 0 decimates as much as possible
	FeatureAngle    float64              // Dihedral angle in degrees above which edges are kept
	NormalDeviation float64              // Max normal deviation in degrees, 0 disables the normal flipping module
	IndependentSets bool                 // Decimate in passes of independent collapses
	Compression     progmesh.Compression // Compression of the record block
	Workers         int                  // Number of meshes decimated concurrently

	Publish    string // s3://bucket/prefix the written files are uploaded to
	S3Endpoint string
	S3Secure   bool
}

type RefineOptions struct {
	Output         string // Writes the refined mesh as OFF when set
	Eye            [3]float64
	Target         [3]float64
	HasTarget      bool // false aims at the centre of the bounding box
	FovY           float64
	Tolerance      float64
	ViewportHeight int
	NodeBudget     int
}

type VerifyOptions struct {
	ProgMesh     string // Replays this file instead of decimating the input in memory
	MaxCollapses int
	FeatureAngle float64
}

func (opt *Options) Copy() *Options {
	newOpt := &Options{
		Input:            opt.Input,
		FolderProcessing: opt.FolderProcessing,
		Recursive:        opt.Recursive,
		Srid:             opt.Srid,
		ZOffset:          opt.ZOffset,
		Command:          opt.Command,
	}

	if opt.BuildOptions != nil {
		buildOpt := *opt.BuildOptions
		newOpt.BuildOptions = &buildOpt
	}

	if opt.RefineOptions != nil {
		refineOpt := *opt.RefineOptions
		newOpt.RefineOptions = &refineOpt
	}

	if opt.VerifyOptions != nil {
		verifyOpt := *opt.VerifyOptions
		newOpt.VerifyOptions = &verifyOpt
	}

	return newOpt
}

// OutputPath is where the progressive mesh of input goes. An empty output writes next to the
// input, "." and ".." name a folder, and the extension always becomes .pm.
func OutputPath(input, output string) string {
	if output == "." || output == ".." {
		output = filepath.Join(output, filepath.Base(input))
	}
	name := output
	if name == "" {
		name = input
	}
	return ReplaceExtension(name, Extension)
}

// OutputPathInFolder names the .pm of input inside folder.
func OutputPathInFolder(input, folder string) string {
	return ReplaceExtension(filepath.Join(folder, filepath.Base(input)), Extension)
}

func ReplaceExtension(name, ext string) string {
	base := filepath.Base(name)
	if dot := strings.LastIndexByte(base, '.'); dot > 0 {
		return name[:len(name)-len(base)+dot] + ext
	}
	return name + ext
}
