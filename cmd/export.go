package cmd

import (
	"github.com/spf13/cobra"
)

var exportLOD uint64

var exportCmd = &cobra.Command{
	Use:   "export <source.uvf> <target>",
	Short: "Export one LOD of a UVF to a native format",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		return m.ExportDataset(args[0], exportLOD, args[1], m.Settings().TempDir)
	},
}

func init() {
	exportCmd.Flags().Uint64Var(&exportLOD, "lod", 0, "level of detail to export (0 = full resolution)")
	rootCmd.AddCommand(exportCmd)
}
