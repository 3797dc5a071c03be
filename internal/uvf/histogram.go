package uvf

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/deploymenttheory/go-uvf/internal/types"
)

const (
	hist1DMaxBins   = 4096
	hist2DGradBins  = 256
	histFloat1DBins = 256
)

// ComputeHistogram1D bins the full-resolution raster of the first component.
// 8 bit data gets one bin per value; wider integer data is capped at 4096
// bins; float data is normalized into 256 bins over its value range.
func ComputeHistogram1D(rdb *RasterDataBlock) ([]uint64, error) {
	raw, err := rdb.ExportLOD(0)
	if err != nil {
		return nil, err
	}
	vals, err := componentValues(raw, rdb.VoxelType, rdb.Components)
	if err != nil {
		return nil, err
	}

	if rdb.VoxelType.IsFloat() {
		kept := vals[:0]
		for _, v := range vals {
			if !math.IsNaN(v) {
				kept = append(kept, v)
			}
		}
		vals = kept
	}
	mn, mx := minMaxFloats(vals)
	lo, hi, bins := histLayout(rdb.VoxelType, mn, mx)
	if hi <= lo {
		hist := make([]uint64, bins)
		hist[0] = uint64(len(vals))
		return hist, nil
	}

	dividers := make([]float64, bins+1)
	floats := make([]float64, bins)
	for i := range dividers {
		dividers[i] = lo + (hi-lo)*float64(i)/float64(bins)
	}
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	sort.Float64s(vals)
	stat.Histogram(floats, dividers, vals, nil)

	hist := make([]uint64, bins)
	for i, f := range floats {
		hist[i] = uint64(f)
	}
	return hist, nil
}

// histLayout picks the binning interval and bin count. Integer data bins
// with integer-aligned bin edges so narrow values map one bin per value;
// wider integer data is capped at 4096 bins; float data gets 256 bins over
// its own range.
func histLayout(vt types.VoxelType, mn, mx float64) (lo, hi float64, bins int) {
	if vt.IsFloat() {
		if mx <= mn {
			return mn, mn, histFloat1DBins
		}
		return mn, mx, histFloat1DBins
	}
	if vt.Size() == 1 {
		if vt.IsSigned() {
			return -128, 128, 256
		}
		return 0, 256, 256
	}
	lo = 0
	if mn < 0 {
		lo = mn
	}
	span := mx - lo + 1
	if span < 2 {
		span = 2
	}
	bins = int(span)
	if bins > hist1DMaxBins {
		bins = hist1DMaxBins
	}
	return lo, lo + span, bins
}

// ComputeHistogram2D bins value against gradient magnitude over the
// full-resolution raster. The abscissa bin count comes from the 1D
// histogram; maxValue bounds the value axis.
func ComputeHistogram2D(rdb *RasterDataBlock, valueBins int, maxValue float64) ([][]uint64, error) {
	raw, err := rdb.ExportLOD(0)
	if err != nil {
		return nil, err
	}
	vals, err := componentValues(raw, rdb.VoxelType, rdb.Components)
	if err != nil {
		return nil, err
	}
	domain := rdb.Levels[0].Domain

	hist := make([][]uint64, valueBins)
	for i := range hist {
		hist[i] = make([]uint64, hist2DGradBins)
	}

	grads := gradientMagnitudes(vals, domain)
	_, gradMax := minMaxFloats(grads)
	if gradMax <= 0 {
		gradMax = 1
	}
	if maxValue <= 0 {
		maxValue = 1
	}
	for i, v := range vals {
		vb := int(v / maxValue * float64(valueBins-1))
		if vb < 0 {
			vb = 0
		}
		if vb >= valueBins {
			vb = valueBins - 1
		}
		gb := int(grads[i] / gradMax * float64(hist2DGradBins-1))
		if gb < 0 {
			gb = 0
		}
		if gb >= hist2DGradBins {
			gb = hist2DGradBins - 1
		}
		hist[vb][gb]++
	}
	return hist, nil
}

// componentValues decodes the first component of every voxel.
func componentValues(raw []byte, vt types.VoxelType, components uint64) ([]float64, error) {
	switch vt {
	case types.VoxelInt64, types.VoxelUint64:
		return nil, fmt.Errorf("64 bit integer voxels are unsupported in histograms")
	case types.VoxelUnknown:
		return nil, fmt.Errorf("unknown voxel type")
	}
	n := len(raw) / (vt.Size() * int(components))
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		vals[i] = decodeAt(raw, vt, i*int(components))
	}
	return vals, nil
}

// gradientMagnitudes computes central-difference gradient magnitude per
// voxel of a scalar field.
func gradientMagnitudes(vals []float64, domain types.Vec3) []float64 {
	out := make([]float64, len(vals))
	at := func(x, y, z uint64) float64 {
		return vals[(z*domain.Y+y)*domain.X+x]
	}
	for z := uint64(0); z < domain.Z; z++ {
		for y := uint64(0); y < domain.Y; y++ {
			for x := uint64(0); x < domain.X; x++ {
				var dx, dy, dz float64
				if x+1 < domain.X && x > 0 {
					dx = (at(x+1, y, z) - at(x-1, y, z)) / 2
				}
				if y+1 < domain.Y && y > 0 {
					dy = (at(x, y+1, z) - at(x, y-1, z)) / 2
				}
				if z+1 < domain.Z && z > 0 {
					dz = (at(x, y, z+1) - at(x, y, z-1)) / 2
				}
				out[(z*domain.Y+y)*domain.X+x] = math.Sqrt(dx*dx + dy*dy + dz*dz)
			}
		}
	}
	return out
}
