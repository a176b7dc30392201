package tools

import (
	"flag"
)

const (
	CommandBuild  = "build"
	CommandRefine = "refine"
	CommandVerify = "verify"
)

type FlagsGlobal struct {
	Help    *bool `json:"help"`
	Version *bool `json:"version"`
}

type InputFlags struct {
	Input                     *string  `json:"input"`
	Srid                      *int     `json:"srid"`
	ZOffset                   *float64 `json:"zoffset"`
	FolderProcessing          *bool    `json:"folder"`
	RecursiveFolderProcessing *bool    `json:"recursive"`
}

type CommonFlags struct {
	Silent       *bool
	LogTimestamp *bool
	Help         *bool
}

type FlagsForCommandBuild struct {
	InputFlags
	CommonFlags
	Output          *string  `json:"output"`
	MaxCollapses    *int     `json:"n"`
	FeatureAngle    *float64 `json:"feature_angle"`
	NormalDeviation *float64 `json:"normal_deviation"`
	IndependentSets *bool    `json:"independent_sets"`
	Compression     *string  `json:"compress"`
	Workers         *int     `json:"workers"`
	Publish         *string  `json:"publish"`
	S3Endpoint      *string  `json:"s3_endpoint"`
	S3Secure        *bool    `json:"s3_secure"`
}

type FlagsForCommandRefine struct {
	InputFlags
	CommonFlags
	Output     *string  `json:"output"`
	Eye        *string  `json:"eye"`
	Target     *string  `json:"target"`
	FovY       *float64 `json:"fov"`
	Tolerance  *float64 `json:"tolerance"`
	Viewport   *int     `json:"viewport"`
	NodeBudget *int     `json:"budget"`
}

type FlagsForCommandVerify struct {
	InputFlags
	CommonFlags
	ProgMesh     *string  `json:"pm"`
	MaxCollapses *int     `json:"n"`
	FeatureAngle *float64 `json:"feature_angle"`
}

func ParseFlagsGlobal() FlagsGlobal {
	help := defineBoolFlag("help", "h", false, "Displays this help.")
	version := defineBoolFlag("version", "version", false, "Displays the version of vdpm.")

	flag.Parse()

	return FlagsGlobal{
		Help:    help,
		Version: version,
	}
}

func defineInputFlags(flagCommand *flag.FlagSet, inputUsage string) InputFlags {
	return InputFlags{
		Input:                     defineStringFlagCommand(flagCommand, "input", "i", "", inputUsage),
		Srid:                      defineIntFlagCommand(flagCommand, "srid", "e", 0, "EPSG srid code of the input vertices. When set, vertices are converted to geocentric coordinates (EPSG:4978) before processing."),
		ZOffset:                   defineFloat64FlagCommand(flagCommand, "zoffset", "z", 0, "Vertical offset to apply to the vertices, in input units."),
		FolderProcessing:          defineBoolFlagCommand(flagCommand, "folder", "f", false, "Enables processing of all .off files from input folder. Input must be a folder if specified"),
		RecursiveFolderProcessing: defineBoolFlagCommand(flagCommand, "recursive", "r", false, "Enables recursive lookup for all .off files inside the subfolders"),
	}
}

func defineCommonFlags(flagCommand *flag.FlagSet) CommonFlags {
	return CommonFlags{
		Silent:       defineBoolFlagCommand(flagCommand, "silent", "s", false, "Use to suppress all the non-error messages."),
		LogTimestamp: defineBoolFlagCommand(flagCommand, "timestamp", "t", false, "Adds timestamp to log messages."),
		Help:         defineBoolFlagCommand(flagCommand, "help", "h", false, "Displays this help."),
	}
}

func ParseFlagsForCommandBuild(args []string) (FlagsForCommandBuild, error) {
	flagCommand := flag.NewFlagSet("command-build", flag.ContinueOnError)

	flags := FlagsForCommandBuild{
		InputFlags:      defineInputFlags(flagCommand, "Specifies the input mesh file/folder."),
		CommonFlags:     defineCommonFlags(flagCommand),
		Output:          defineStringFlagCommand(flagCommand, "output", "o", "", "Output .pm file, or folder in folder mode. '.' and '..' write <folder>/<input>.pm. Default is the input with the .pm extension."),
		MaxCollapses:    defineIntFlagCommand(flagCommand, "max-collapses", "n", 0, "Maximum number of decimation steps. Decimates as much as possible if zero."),
		FeatureAngle:    defineFloat64FlagCommand(flagCommand, "feature-angle", "a", 60, "Dihedral angle in degrees above which edges are treated as features. Zero disables the feature test."),
		NormalDeviation: defineFloat64FlagCommand(flagCommand, "normal-deviation", "N", 0, "Enables normal flipping with the given maximum normal deviation in degrees."),
		IndependentSets: defineBoolFlagCommand(flagCommand, "independent-sets", "I", false, "Enables independent sets: each pass collapses disjoint neighbourhoods only."),
		Compression:     defineStringFlagCommand(flagCommand, "compress", "c", "none", "Compression of the split records, can be 'none', 'lz4' or 'zstd'."),
		Workers:         defineIntFlagCommand(flagCommand, "workers", "w", 0, "Number of meshes decimated concurrently. Default is the number of CPUs."),
		Publish:         defineStringFlagCommand(flagCommand, "publish", "p", "", "Uploads every written file to s3://bucket/prefix. Credentials are read from VDPM_S3_ACCESS_KEY and VDPM_S3_SECRET_KEY."),
		S3Endpoint:      defineStringFlagCommand(flagCommand, "s3-endpoint", "", "localhost:9000", "Endpoint of the S3 compatible storage used by -publish."),
		S3Secure:        defineBoolFlagCommand(flagCommand, "s3-secure", "", false, "Uses HTTPS to reach -s3-endpoint."),
	}

	err := flagCommand.Parse(args)
	useFirstArgAsInput(flagCommand, flags.InputFlags)
	return flags, err
}

func ParseFlagsForCommandRefine(args []string) (FlagsForCommandRefine, error) {
	flagCommand := flag.NewFlagSet("command-refine", flag.ContinueOnError)

	flags := FlagsForCommandRefine{
		InputFlags:  defineInputFlags(flagCommand, "Specifies the input .pm file."),
		CommonFlags: defineCommonFlags(flagCommand),
		Output:      defineStringFlagCommand(flagCommand, "output", "o", "", "Writes the refined mesh to this .off file."),
		Eye:         defineStringFlagCommand(flagCommand, "eye", "", "0,0,10", "Camera position as x,y,z."),
		Target:      defineStringFlagCommand(flagCommand, "target", "", "", "Point the camera looks at as x,y,z. Default is the centre of the mesh bounding box."),
		FovY:        defineFloat64FlagCommand(flagCommand, "fov", "", 45, "Vertical field of view in degrees."),
		Tolerance:   defineFloat64FlagCommand(flagCommand, "tolerance", "", 1, "Allowed screen space error in pixels."),
		Viewport:    defineIntFlagCommand(flagCommand, "viewport", "", 480, "Viewport height in pixels."),
		NodeBudget:  defineIntFlagCommand(flagCommand, "budget", "b", 1<<16, "Maximum number of splits and collapses of one refinement pass. Zero means no limit."),
	}

	err := flagCommand.Parse(args)
	useFirstArgAsInput(flagCommand, flags.InputFlags)
	return flags, err
}

func ParseFlagsForCommandVerify(args []string) (FlagsForCommandVerify, error) {
	flagCommand := flag.NewFlagSet("command-verify", flag.ContinueOnError)

	flags := FlagsForCommandVerify{
		InputFlags:   defineInputFlags(flagCommand, "Specifies the input mesh file."),
		CommonFlags:  defineCommonFlags(flagCommand),
		ProgMesh:     defineStringFlagCommand(flagCommand, "pm", "", "", "Replays this .pm file and compares it with the input instead of decimating the input in memory."),
		MaxCollapses: defineIntFlagCommand(flagCommand, "max-collapses", "n", 0, "Maximum number of decimation steps of the in memory round trip."),
		FeatureAngle: defineFloat64FlagCommand(flagCommand, "feature-angle", "a", 60, "Feature angle of the in memory round trip."),
	}

	err := flagCommand.Parse(args)
	useFirstArgAsInput(flagCommand, flags.InputFlags)
	return flags, err
}

// The input may also be given as the first positional argument, as in "build bunny.off".
func useFirstArgAsInput(flagCommand *flag.FlagSet, flags InputFlags) {
	if *flags.Input == "" && flagCommand.NArg() > 0 {
		*flags.Input = flagCommand.Arg(0)
	}
}

func defineBoolFlag(name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flag.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name {
		flag.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineStringFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue string, usage string) *string {
	var output string
	flagCommand.StringVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.StringVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineIntFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue int, usage string) *int {
	var output int
	flagCommand.IntVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.IntVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineFloat64FlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue float64, usage string) *float64 {
	var output float64
	flagCommand.Float64Var(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.Float64Var(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineBoolFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flagCommand.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}
