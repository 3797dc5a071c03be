package uvf

import (
	"encoding/binary"
	"math"

	"github.com/deploymenttheory/go-uvf/internal/types"
)

// decodeAt reads component i of a little-endian payload as float64.
func decodeAt(data []byte, vt types.VoxelType, i int) float64 {
	switch vt {
	case types.VoxelInt8:
		return float64(int8(data[i]))
	case types.VoxelUint8:
		return float64(data[i])
	case types.VoxelInt16:
		return float64(int16(binary.LittleEndian.Uint16(data[i*2:])))
	case types.VoxelUint16:
		return float64(binary.LittleEndian.Uint16(data[i*2:]))
	case types.VoxelInt32:
		return float64(int32(binary.LittleEndian.Uint32(data[i*4:])))
	case types.VoxelUint32:
		return float64(binary.LittleEndian.Uint32(data[i*4:]))
	case types.VoxelInt64:
		return float64(int64(binary.LittleEndian.Uint64(data[i*8:])))
	case types.VoxelUint64:
		return float64(binary.LittleEndian.Uint64(data[i*8:]))
	case types.VoxelFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	case types.VoxelFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return 0
}

// encodeAt writes component i of a little-endian payload, clamping integer
// targets to their representable range.
func encodeAt(data []byte, vt types.VoxelType, i int, v float64) {
	switch vt {
	case types.VoxelInt8:
		data[i] = byte(int8(clamp(v, math.MinInt8, math.MaxInt8)))
	case types.VoxelUint8:
		data[i] = byte(uint8(clamp(v, 0, math.MaxUint8)))
	case types.VoxelInt16:
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(clamp(v, math.MinInt16, math.MaxInt16))))
	case types.VoxelUint16:
		binary.LittleEndian.PutUint16(data[i*2:], uint16(clamp(v, 0, math.MaxUint16)))
	case types.VoxelInt32:
		binary.LittleEndian.PutUint32(data[i*4:], uint32(int32(clamp(v, math.MinInt32, math.MaxInt32))))
	case types.VoxelUint32:
		binary.LittleEndian.PutUint32(data[i*4:], uint32(clamp(v, 0, math.MaxUint32)))
	case types.VoxelInt64:
		binary.LittleEndian.PutUint64(data[i*8:], uint64(int64(clamp(v, math.MinInt64, math.MaxInt64))))
	case types.VoxelUint64:
		binary.LittleEndian.PutUint64(data[i*8:], uint64(clamp(v, 0, math.MaxUint64)))
	case types.VoxelFloat32:
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(float32(v)))
	case types.VoxelFloat64:
		binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return math.Round(v)
}

// DecodeFloats expands a little-endian payload into float64 values.
func DecodeFloats(data []byte, vt types.VoxelType) []float64 {
	n := len(data) / vt.Size()
	out := make([]float64, n)
	for i := range out {
		out[i] = decodeAt(data, vt, i)
	}
	return out
}

// EncodeFloats packs float64 values into a little-endian payload of the
// given type, clamping integer targets.
func EncodeFloats(vals []float64, vt types.VoxelType) []byte {
	out := make([]byte, len(vals)*vt.Size())
	for i, v := range vals {
		encodeAt(out, vt, i, v)
	}
	return out
}

// SwapEndianness reverses the byte order of every word of the given size,
// in place. A word size of one is a no-op.
func SwapEndianness(data []byte, wordSize int) {
	if wordSize <= 1 {
		return
	}
	for i := 0; i+wordSize <= len(data); i += wordSize {
		for a, b := i, i+wordSize-1; a < b; a, b = a+1, b-1 {
			data[a], data[b] = data[b], data[a]
		}
	}
}

// minMaxFloats scans decoded voxel values. NaNs are skipped.
func minMaxFloats(vals []float64) (mn, mx float64) {
	mn, mx = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
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
