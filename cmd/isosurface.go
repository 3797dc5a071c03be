package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-uvf/internal/types"
)

var (
	isoValue float64
	isoLOD   uint64
	isoColor []float32
)

var isosurfaceCmd = &cobra.Command{
	Use:   "isosurface <source.uvf> <target-mesh>",
	Short: "Extract an isosurface into a mesh file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		color := types.Color{R: 1, G: 1, B: 1, A: 1}
		if len(isoColor) == 4 {
			color = types.Color{R: isoColor[0], G: isoColor[1], B: isoColor[2], A: isoColor[3]}
		}
		return m.ExtractIsosurface(args[0], isoLOD, isoValue, color,
			args[1], m.Settings().TempDir)
	},
}

func init() {
	isosurfaceCmd.Flags().Float64Var(&isoValue, "isovalue", 0, "surface threshold value")
	isosurfaceCmd.Flags().Uint64Var(&isoLOD, "lod", 0, "level of detail to extract from")
	isosurfaceCmd.Flags().Float32SliceVar(&isoColor, "color", nil, "RGBA surface color, components in [0,1]")
	rootCmd.AddCommand(isosurfaceCmd)
}
