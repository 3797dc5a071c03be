package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	mergeScales []float64
	mergeBiases []float64
	mergeUseMax bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source>... <target>",
	Short: "Merge co-registered volumes into one",
	Long: `Merge several volumes of identical geometry and type into one volume,
applying a per-source scale and bias. The default combines additively;
--max keeps the per-voxel maximum instead.`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		sources, target := args[:len(args)-1], args[len(args)-1]

		scales := mergeScales
		if len(scales) == 0 {
			scales = make([]float64, len(sources))
			for i := range scales {
				scales[i] = 1
			}
		}
		biases := mergeBiases
		if len(biases) == 0 {
			biases = make([]float64, len(sources))
		}
		if len(scales) != len(sources) || len(biases) != len(sources) {
			return fmt.Errorf("need one scale and bias per source")
		}

		return m.MergeDatasets(sources, scales, biases, target,
			m.Settings().TempDir, mergeUseMax, true)
	},
}

func init() {
	mergeCmd.Flags().Float64SliceVar(&mergeScales, "scale", nil, "per-source scale factors")
	mergeCmd.Flags().Float64SliceVar(&mergeBiases, "bias", nil, "per-source bias values")
	mergeCmd.Flags().BoolVar(&mergeUseMax, "max", false, "keep the per-voxel maximum instead of the sum")
	rootCmd.AddCommand(mergeCmd)
}
