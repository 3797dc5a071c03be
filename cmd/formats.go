package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the supported import and export formats",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		fmt.Println("Volume formats:")
		for _, f := range m.GetFormatList() {
			rw := "read"
			if f.CanExport {
				rw = "read/write"
			}
			fmt.Printf("  .%-6s %-32s %s\n", f.Extension, f.Description, rw)
		}
		fmt.Println("Geometry formats:")
		for _, f := range m.GetGeoFormatList() {
			rw := "read"
			if f.CanExport {
				rw = "read/write"
			}
			fmt.Printf("  .%-6s %-32s %s\n", f.Extension, f.Description, rw)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}
