// Package merge combines co-dimensional raw streams into one volume,
// voxel by voxel, in max or additive mode.
package merge

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/types"
	"github.com/deploymenttheory/go-uvf/internal/uvf"
)

// Input is one raw intermediate feeding a merge: where it lives, how many
// header bytes to skip, its per-source transfer function, and whether the
// facade owns removing it afterwards.
type Input struct {
	Path       string
	HeaderSkip uint64
	Scale      float64
	Bias       float64
	Delete     bool
}

// windowValues is the number of scalar values processed per streaming step.
const windowValues = 1 << 20

// Merge writes max_i(scale_i*x_i + bias_i) or the sum over i, per value,
// for totalValues values of the given type. It streams window-sized chunks
// and never holds a whole volume in memory. On any failure the partial
// output is removed.
func Merge(bus *logging.Bus, inputs []Input, outPath string,
	totalValues uint64, vt types.VoxelType, useMax bool) (err error) {
	if len(inputs) == 0 {
		return fmt.Errorf("nothing to merge")
	}
	if vt.IsFloat() && !vt.IsSigned() {
		return fmt.Errorf("don't know how to handle unsigned float data")
	}
	if vt == types.VoxelUnknown {
		return fmt.Errorf("unknown voxel type")
	}

	readers := make([]*bufio.Reader, len(inputs))
	files := make([]*os.File, len(inputs))
	defer func() {
		for _, f := range files {
			if f != nil {
				f.Close()
			}
		}
	}()
	for i, in := range inputs {
		f, err := os.Open(in.Path)
		if err != nil {
			return fmt.Errorf("failed to open merge input %s: %w", in.Path, err)
		}
		files[i] = f
		if _, err := f.Seek(int64(in.HeaderSkip), io.SeekStart); err != nil {
			return fmt.Errorf("failed to skip header of %s: %w", in.Path, err)
		}
		readers[i] = bufio.NewReaderSize(f, windowValues)
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create merge output %s: %w", outPath, err)
	}
	w := bufio.NewWriter(out)
	fail := func(err error) error {
		out.Close()
		os.Remove(outPath)
		return err
	}

	vsize := vt.Size()
	combined := make([]float64, 0, windowValues)
	chunk := make([]byte, windowValues*vsize)
	done := uint64(0)
	for done < totalValues {
		n := uint64(windowValues)
		if totalValues-done < n {
			n = totalValues - done
		}
		combined = combined[:n]
		for i, r := range readers {
			buf := chunk[:n*uint64(vsize)]
			if _, err := io.ReadFull(r, buf); err != nil {
				return fail(fmt.Errorf("failed to read %s: %w", inputs[i].Path, err))
			}
			vals := uvf.DecodeFloats(buf, vt)
			for k, v := range vals {
				v = inputs[i].Scale*v + inputs[i].Bias
				if i == 0 {
					combined[k] = v
				} else if useMax {
					if v > combined[k] {
						combined[k] = v
					}
				} else {
					combined[k] += v
				}
			}
		}
		if _, err := w.Write(uvf.EncodeFloats(combined, vt)); err != nil {
			return fail(fmt.Errorf("failed to write merge output: %w", err))
		}
		done += n
		bus.Progress("Merging data sets", int(done/windowValues), int(totalValues/windowValues)+1)
	}

	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("failed to flush merge output: %w", err))
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return fmt.Errorf("failed to close merge output: %w", err)
	}
	return nil
}
