package uvf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/deploymenttheory/go-uvf/internal/types"
)

// BrickStats holds the scalar and gradient extrema of one brick component.
// Gradient extrema are reserved; they stay at (-Inf,+Inf) until a gradient
// pass exists.
type BrickStats struct {
	Min, Max         float64
	GradMin, GradMax float64
}

// MaxMinBlock accumulates per-brick statistics, preserving per-component
// grouping: StartNewValue opens a brick record, MergeData appends the
// component stats for that brick.
type MaxMinBlock struct {
	Components uint64
	Values     []BrickStats
}

// NewMaxMinBlock creates an empty accumulator for the given component count.
func NewMaxMinBlock(components uint64) *MaxMinBlock {
	return &MaxMinBlock{Components: components}
}

// StartNewValue begins the record of the next brick.
func (m *MaxMinBlock) StartNewValue() {}

// MergeData appends one brick's per-component stats.
func (m *MaxMinBlock) MergeData(stats []BrickStats) error {
	if uint64(len(stats)) != m.Components {
		return fmt.Errorf("got %d component stats, want %d", len(stats), m.Components)
	}
	m.Values = append(m.Values, stats...)
	return nil
}

// BrickCount returns the number of bricks recorded so far.
func (m *MaxMinBlock) BrickCount() int {
	if m.Components == 0 {
		return 0
	}
	return len(m.Values) / int(m.Components)
}

type number interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~float32 | ~float64
}

func scanMinMax[T number](n int, at func(int) T) (float64, float64) {
	mn, mx := math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i++ {
		v := float64(at(i))
		if math.IsNaN(v) {
			continue
		}
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	return mn, mx
}

// componentMinMax computes the extrema of one component across a brick
// payload with the statically known voxel type.
func componentMinMax(data []byte, vt types.VoxelType, components, comp uint64) (float64, float64, error) {
	n := len(data) / (vt.Size() * int(components))
	stride, off := int(components), int(comp)
	var mn, mx float64
	switch vt {
	case types.VoxelInt8:
		mn, mx = scanMinMax(n, func(i int) int8 { return int8(data[i*stride+off]) })
	case types.VoxelUint8:
		mn, mx = scanMinMax(n, func(i int) uint8 { return data[i*stride+off] })
	case types.VoxelInt16:
		mn, mx = scanMinMax(n, func(i int) int16 {
			return int16(binary.LittleEndian.Uint16(data[(i*stride+off)*2:]))
		})
	case types.VoxelUint16:
		mn, mx = scanMinMax(n, func(i int) uint16 {
			return binary.LittleEndian.Uint16(data[(i*stride+off)*2:])
		})
	case types.VoxelInt32:
		mn, mx = scanMinMax(n, func(i int) int32 {
			return int32(binary.LittleEndian.Uint32(data[(i*stride+off)*4:]))
		})
	case types.VoxelUint32:
		mn, mx = scanMinMax(n, func(i int) uint32 {
			return binary.LittleEndian.Uint32(data[(i*stride+off)*4:])
		})
	case types.VoxelFloat32:
		mn, mx = scanMinMax(n, func(i int) float32 {
			return math.Float32frombits(binary.LittleEndian.Uint32(data[(i*stride+off)*4:]))
		})
	case types.VoxelFloat64:
		mn, mx = scanMinMax(n, func(i int) float64 {
			return math.Float64frombits(binary.LittleEndian.Uint64(data[(i*stride+off)*8:]))
		})
	case types.VoxelInt64, types.VoxelUint64:
		return 0, 0, fmt.Errorf("64 bit integer voxels are unsupported in brick statistics")
	default:
		return 0, 0, fmt.Errorf("unsupported voxel type %s", vt)
	}
	return mn, mx, nil
}

// ComputeMaxMin walks every (LOD, brick) pair of a raster block and builds
// the accumulated min/max block. It also returns the global maximum scalar,
// which bounds the value axis of the 2D histogram.
func ComputeMaxMin(rdb *RasterDataBlock) (*MaxMinBlock, float64, error) {
	mm := NewMaxMinBlock(rdb.Components)
	globalMax := math.Inf(-1)
	for lod := uint64(0); lod < rdb.LODCount(); lod++ {
		n, err := rdb.BrickCount(lod)
		if err != nil {
			return nil, 0, err
		}
		for idx := uint64(0); idx < n; idx++ {
			data, err := rdb.BrickData(BrickKey{LOD: lod, Index: idx})
			if err != nil {
				return nil, 0, err
			}
			mm.StartNewValue()
			stats := make([]BrickStats, rdb.Components)
			for c := uint64(0); c < rdb.Components; c++ {
				mn, mx, err := componentMinMax(data, rdb.VoxelType, rdb.Components, c)
				if err != nil {
					return nil, 0, err
				}
				stats[c] = BrickStats{
					Min: mn, Max: mx,
					GradMin: math.Inf(-1), GradMax: math.Inf(1),
				}
				if mx > globalMax {
					globalMax = mx
				}
			}
			if err := mm.MergeData(stats); err != nil {
				return nil, 0, err
			}
		}
	}
	return mm, globalMax, nil
}
