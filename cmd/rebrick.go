package cmd

import (
	"github.com/spf13/cobra"
)

var rebrickCmd = &cobra.Command{
	Use:   "rebrick <source.uvf> <target.uvf>",
	Short: "Re-brick an existing UVF with new brick parameters",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		s := m.Settings()
		return m.RebrickDataset(args[0], args[1], s.TempDir,
			s.MaxBrickSize, s.BrickOverlap, quantize8)
	},
}

func init() {
	rootCmd.AddCommand(rebrickCmd)
}
