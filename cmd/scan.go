package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan <directory>",
	Short: "List the slice stacks found in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		stacks, err := m.ScanDirectory(args[0])
		if err != nil {
			return err
		}
		for i, d := range stacks {
			fmt.Printf("%d: %s  %dx%d, %d slices, %d bit, %d component(s)\n",
				i, d.Description, d.Width, d.Height, d.SliceCount(),
				d.Allocated, d.Components)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
