/*
 * This file is part of the Go Cesium Point Cloud Tiler distribution (https://github.com/mfbonfigli/gocesiumtiler).
 * Copyright (c) 2019 Massimo Federico Bonfigli - m.federico.bonfigli@gmail.com
 *
 * This program is free software; you can redistribute it and/or modify it
 * under the terms of the GNU Lesser General Public License Version 3 as
 * published by the Free Software Foundation;
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
 * Lesser General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public License
 * along with this program. If not, see <http://www.gnu.org/licenses/>.
 *
 * This software also uses third party components. You can find information
 * on their credits and licensing in the file LICENSE-3RD-PARTIES.md that
 * you should have received togheter with the source code.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/ecopia-map/vdpm/internal/mesh"
	_ "github.com/ecopia-map/vdpm/internal/mesh/plyio"
	"github.com/ecopia-map/vdpm/internal/pmtool"
	"github.com/ecopia-map/vdpm/internal/progmesh"
	"github.com/ecopia-map/vdpm/pkg"
	"github.com/ecopia-map/vdpm/pkg/algorithm_manager/std_algorithm_manager"
	"github.com/ecopia-map/vdpm/tools"
	"github.com/golang/glog"
)

const VERSION = "0.4.0"

const logo = `
            _
 __   ____| |_ __  _ __ ___
 \ \ / / _  | '_ \| '_   _ \
  \ V / (_| | |_) | | | | | |
   \_/ \__,_| .__/|_| |_| |_|
            |_| View dependent progressive meshes written in golang
               Copyright YYYY - Ecopia Map
`

func main() {
	log.SetPrefix("[vdpm] ")
	log.SetFlags(log.LUTC | log.Ldate | log.Lmicroseconds)

	flagsGlobal := tools.ParseFlagsGlobal()
	defer glog.Flush()

	if *flagsGlobal.Help {
		showHelp()
		return
	}
	if *flagsGlobal.Version {
		printVersion()
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Please specify a subcommand [build|refine|verify].")
		exit(1)
	}
	cmd, args := args[0], args[1:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd {
	case tools.CommandBuild:
		err = mainCommandBuild(ctx, args)
	case tools.CommandRefine:
		err = mainCommandRefine(ctx, args)
	case tools.CommandVerify:
		err = mainCommandVerify(ctx, args)
	default:
		err = fmt.Errorf("unrecognized command [%q]. Command must be one of [build|refine|verify]", cmd)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		exit(1)
	}
}

// exit flushes the logs, deferred calls do not run on os.Exit.
func exit(code int) {
	glog.Flush()
	os.Exit(code)
}

func mainCommandBuild(ctx context.Context, args []string) error {
	flags, err := tools.ParseFlagsForCommandBuild(args)
	if err != nil {
		return err
	}
	if *flags.Help {
		showHelp()
		return nil
	}
	setupLogger(flags.CommonFlags)
	glog.V(1).Info("flags ", tools.FmtJSONString(flags))

	compression, err := progmesh.ParseCompression(*flags.Compression)
	if err != nil {
		return err
	}

	opts := inputOptions(flags.InputFlags, tools.CommandBuild)
	opts.BuildOptions = &pmtool.BuildOptions{
		Output:          *flags.Output,
		MaxCollapses:    *flags.MaxCollapses,
		FeatureAngle:    *flags.FeatureAngle,
		NormalDeviation: *flags.NormalDeviation,
		IndependentSets: *flags.IndependentSets,
		Compression:     compression,
		Workers:         *flags.Workers,
		Publish:         *flags.Publish,
		S3Endpoint:      *flags.S3Endpoint,
		S3Secure:        *flags.S3Secure,
	}

	// Validate Options
	if msg, res := validateOptionsForCommandBuild(opts); !res {
		return fmt.Errorf("error parsing input parameters: %s", msg)
	}

	defer timeTrack(time.Now(), "build")
	err = pkg.NewPMBuilder(tools.NewStandardFileFinder(), std_algorithm_manager.NewAlgorithmManager(opts)).Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("error while building: %w", err)
	}
	tools.LogOutput("Build Completed")
	return nil
}

// Validates the input options provided to the command line tool checking
// that input files exist and numeric options are in range
func validateOptionsForCommandBuild(opts *pmtool.Options) (string, bool) {
	if msg, res := validateInput(opts); !res {
		return msg, res
	}
	bo := opts.BuildOptions
	if bo.MaxCollapses < 0 {
		return "max-collapses cannot be negative", false
	}
	if bo.NormalDeviation < 0 || bo.NormalDeviation > 180 {
		return "normal-deviation must be between 0 and 180 degrees", false
	}
	if bo.FeatureAngle > 180 {
		return "feature-angle cannot exceed 180 degrees", false
	}
	if bo.Publish != "" && !strings.HasPrefix(bo.Publish, "s3://") {
		return "publish must be an s3://bucket/prefix url", false
	}
	return "", true
}

func mainCommandRefine(ctx context.Context, args []string) error {
	flags, err := tools.ParseFlagsForCommandRefine(args)
	if err != nil {
		return err
	}
	if *flags.Help {
		showHelp()
		return nil
	}
	setupLogger(flags.CommonFlags)
	glog.V(1).Info("flags ", tools.FmtJSONString(flags))

	opts := inputOptions(flags.InputFlags, tools.CommandRefine)
	opts.RefineOptions = &pmtool.RefineOptions{
		Output:         *flags.Output,
		FovY:           *flags.FovY,
		Tolerance:      *flags.Tolerance,
		ViewportHeight: *flags.Viewport,
		NodeBudget:     *flags.NodeBudget,
	}
	if opts.RefineOptions.Eye, err = tools.ParseVec3(*flags.Eye); err != nil {
		return fmt.Errorf("eye: %w", err)
	}
	if *flags.Target != "" {
		if opts.RefineOptions.Target, err = tools.ParseVec3(*flags.Target); err != nil {
			return fmt.Errorf("target: %w", err)
		}
		opts.RefineOptions.HasTarget = true
	}

	if msg, res := validateOptionsForCommandRefine(opts); !res {
		return fmt.Errorf("error parsing input parameters: %s", msg)
	}

	defer timeTrack(time.Now(), "refine")
	if err := pkg.NewPMRefiner().Run(ctx, opts); err != nil {
		return fmt.Errorf("error while refining: %w", err)
	}
	tools.LogOutput("Refinement Completed")
	return nil
}

func validateOptionsForCommandRefine(opts *pmtool.Options) (string, bool) {
	if _, err := os.Stat(opts.Input); err != nil {
		return "Input file not found", false
	}
	if opts.FolderProcessing {
		return "refine works on a single .pm file", false
	}
	ro := opts.RefineOptions
	if ro.FovY <= 0 || ro.FovY >= 180 {
		return "fov must be between 0 and 180 degrees", false
	}
	if ro.Tolerance < 0 {
		return "tolerance cannot be negative", false
	}
	if ro.ViewportHeight <= 0 {
		return "viewport must be positive", false
	}
	if ro.NodeBudget < 0 {
		return "budget cannot be negative", false
	}
	if ro.HasTarget && ro.Target == ro.Eye {
		return "target must differ from eye", false
	}
	if ro.Output != "" && !mesh.Supported(ro.Output) {
		return "output must be one of " + strings.Join(mesh.Extensions(), ", "), false
	}
	return "", true
}

func mainCommandVerify(ctx context.Context, args []string) error {
	flags, err := tools.ParseFlagsForCommandVerify(args)
	if err != nil {
		return err
	}
	if *flags.Help {
		showHelp()
		return nil
	}
	setupLogger(flags.CommonFlags)
	glog.V(1).Info("flags ", tools.FmtJSONString(flags))

	opts := inputOptions(flags.InputFlags, tools.CommandVerify)
	opts.VerifyOptions = &pmtool.VerifyOptions{
		ProgMesh:     *flags.ProgMesh,
		MaxCollapses: *flags.MaxCollapses,
		FeatureAngle: *flags.FeatureAngle,
	}

	if msg, res := validateOptionsForCommandVerify(opts); !res {
		return fmt.Errorf("error parsing input parameters: %s", msg)
	}

	defer timeTrack(time.Now(), "verify")
	if err := pkg.NewPMVerifier(std_algorithm_manager.NewAlgorithmManager(opts)).Run(ctx, opts); err != nil {
		return fmt.Errorf("error while verifying: %w", err)
	}
	return nil
}

func validateOptionsForCommandVerify(opts *pmtool.Options) (string, bool) {
	if _, err := os.Stat(opts.Input); err != nil {
		return "Input file not found", false
	}
	if opts.FolderProcessing {
		return "verify works on a single mesh file", false
	}
	vo := opts.VerifyOptions
	if vo.ProgMesh != "" {
		if _, err := os.Stat(vo.ProgMesh); err != nil {
			return "pm file not found", false
		}
	}
	if vo.MaxCollapses < 0 {
		return "max-collapses cannot be negative", false
	}
	return "", true
}

func validateInput(opts *pmtool.Options) (string, bool) {
	if opts.Input == "" {
		return "Input file/folder not specified", false
	}
	info, err := os.Stat(opts.Input)
	if os.IsNotExist(err) {
		return "Input file/folder not found", false
	}
	if err == nil && opts.FolderProcessing != info.IsDir() {
		if opts.FolderProcessing {
			return "Input must be a folder in folder mode", false
		}
		return "Input is a folder, use -folder to process it", false
	}
	if !opts.FolderProcessing && !mesh.Supported(opts.Input) {
		return "Input mesh must be one of " + strings.Join(mesh.Extensions(), ", "), false
	}
	return "", true
}

func inputOptions(flags tools.InputFlags, command string) *pmtool.Options {
	return &pmtool.Options{
		Input:            *flags.Input,
		FolderProcessing: *flags.FolderProcessing,
		Recursive:        *flags.RecursiveFolderProcessing,
		Srid:             *flags.Srid,
		ZOffset:          *flags.ZOffset,
		Command:          command,
	}
}

// set logging and timestamp logging
func setupLogger(flags tools.CommonFlags) {
	if *flags.Silent {
		tools.DisableLogger()
	} else {
		printLogo()
	}
	if !*flags.LogTimestamp {
		tools.DisableLoggerTimestamp()
	}
}

func timeTrack(start time.Time, name string) {
	elapsed := time.Since(start)
	tools.LogOutput(fmt.Sprintf("%s took %s", name, elapsed))
}

func printLogo() {
	fmt.Println(strings.ReplaceAll(logo, "YYYY", strconv.Itoa(time.Now().Year())))
}

func showHelp() {
	printLogo()
	fmt.Println("***")
	fmt.Println("vdpm decimates triangle meshes into balanced progressive meshes and refines them for a view.")
	printVersion()
	fmt.Println("***")
	fmt.Println("")
	fmt.Println("Usage: vdpm [global flags] build|refine|verify [command flags] <input>")
	fmt.Println("")
	fmt.Println("Global flags: ")
	flag.CommandLine.SetOutput(os.Stdout)
	flag.PrintDefaults()
}

func printVersion() {
	fmt.Println("v." + VERSION)
}
