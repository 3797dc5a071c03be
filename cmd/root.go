package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-uvf/internal/config"
	"github.com/deploymenttheory/go-uvf/internal/iomanager"
	"github.com/deploymenttheory/go-uvf/internal/logging"
)

var (
	// Global flags
	configFile   string
	tempDir      string
	maxBrickSize uint64
	brickOverlap uint64
	quantize8    bool
)

var rootCmd = &cobra.Command{
	Use:   "go-uvf",
	Short: "Volumetric data I/O manager and conversion pipeline",
	Long: `go-uvf ingests heterogeneous 3D scalar-volume formats (DICOM series,
stacked 2D images, NRRD, Analyze, BOV, QVis) plus polygonal mesh formats,
normalizes them into the bricked multi-resolution Universal Volume Format,
and exports back to native formats.

Commands:
  convert     Convert volume files or slice stacks to UVF or native formats
  scan        List the slice stacks found in a directory
  merge       Merge co-registered volumes voxel-wise (sum or maximum) into one
  rebrick     Re-brick an existing UVF with new brick parameters
  export      Export one LOD of a UVF to a native format
  isosurface  Extract an isosurface into a mesh file
  eval        Evaluate a voxel expression across several volumes
  formats     List the supported import and export formats`,
	Version: "0.1.0-dev",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a settings file")
	rootCmd.PersistentFlags().StringVar(&tempDir, "temp-dir", "", "directory for intermediate files")
	rootCmd.PersistentFlags().Uint64Var(&maxBrickSize, "max-brick-size", 0, "maximum brick edge length in voxels")
	rootCmd.PersistentFlags().Uint64Var(&brickOverlap, "brick-overlap", 0, "brick overlap in voxels")
	rootCmd.PersistentFlags().BoolVar(&quantize8, "quantize-8bit", false, "quantize output volumes to 8 bit")
}

// newManager builds an IOManager from the settings file and flag overrides.
func newManager() (*iomanager.Manager, error) {
	settings, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if tempDir != "" {
		settings.TempDir = tempDir
	}
	if maxBrickSize != 0 && !settings.SetMaxBrickSize(maxBrickSize) {
		return nil, fmt.Errorf("max brick size %d conflicts with overlap %d",
			maxBrickSize, settings.BrickOverlap)
	}
	if brickOverlap != 0 && !settings.SetBrickOverlap(brickOverlap) {
		return nil, fmt.Errorf("brick overlap %d conflicts with brick size %d",
			brickOverlap, settings.MaxBrickSize)
	}
	return iomanager.New(logging.New(), settings), nil
}
