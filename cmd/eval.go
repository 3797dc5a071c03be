package cmd

import (
	"github.com/spf13/cobra"
)

var evalExpression string

var evalCmd = &cobra.Command{
	Use:   "eval <volume.uvf>... <target.uvf>",
	Short: "Evaluate a voxel expression across several volumes",
	Long: `Evaluate an arithmetic expression over voxel variables v0..vn-1, where
vi is the i-th volume argument. All volumes must share geometry. The result
is written as a new UVF.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		volumes, target := args[:len(args)-1], args[len(args)-1]
		return m.EvaluateExpression(evalExpression, volumes, target)
	},
}

func init() {
	evalCmd.Flags().StringVarP(&evalExpression, "expression", "e", "v0",
		"voxel expression, e.g. \"(v0+v1)/2\"")
	rootCmd.AddCommand(evalCmd)
}
