package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var convertStacks bool

var convertCmd = &cobra.Command{
	Use:   "convert <source>... <target>",
	Short: "Convert volume files or slice stacks",
	Long: `Convert one or more source volumes into the target file. A .uvf target
accepts any supported source, including multiple files for converters that
assemble time series. Other targets accept a single source.

With --stacks the sources are directories, scanned for DICOM series and
image stacks; every stack found is converted into a numbered target.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		s := m.Settings()
		sources, target := args[:len(args)-1], args[len(args)-1]

		if convertStacks {
			for _, dir := range sources {
				stacks, err := m.ScanDirectory(dir)
				if err != nil {
					return err
				}
				for i, d := range stacks {
					out := target
					if len(stacks) > 1 {
						out = fmt.Sprintf("%s.%d", target, i)
					}
					if err := m.ConvertStack(d, out, s.TempDir,
						s.MaxBrickSize, s.BrickOverlap, quantize8); err != nil {
						return err
					}
				}
			}
			return nil
		}

		return m.ConvertFiles(sources, target, s.TempDir, true,
			s.MaxBrickSize, s.BrickOverlap, quantize8)
	},
}

func init() {
	convertCmd.Flags().BoolVar(&convertStacks, "stacks", false,
		"treat sources as directories of slice stacks")
	rootCmd.AddCommand(convertCmd)
}
