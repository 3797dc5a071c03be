// Package converters holds the volume format plugins and the shared
// raw-to-UVF build path they all funnel through.
package converters

import (
	"fmt"
	"os"

	"github.com/deploymenttheory/go-uvf/internal/interfaces"
	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/types"
	"github.com/deploymenttheory/go-uvf/internal/uvf"
)

// BuildUVFFromRaw turns a raw intermediate stream plus its geometry
// metadata into a bricked multi-LOD UVF file. The stream is normalized to
// host byte order, optionally quantized to 8 bit, bricked with the given
// parameters, and finished with min/max and histogram blocks.
func BuildUVFFromRaw(bus *logging.Bus, rawPath string, headerSkip uint64,
	meta types.VolumeMeta, target string, maxBrickSize, brickOverlap uint64,
	quantizeTo8Bit bool) error {
	if err := meta.Validate(); err != nil {
		return fmt.Errorf("invalid volume metadata: %w", err)
	}

	raw, err := os.ReadFile(rawPath)
	if err != nil {
		return fmt.Errorf("failed to read raw stream %s: %w", rawPath, err)
	}
	if uint64(len(raw)) < headerSkip+meta.RawSize() {
		return fmt.Errorf("raw stream %s is %d bytes, need %d after %d header bytes",
			rawPath, len(raw), meta.RawSize(), headerSkip)
	}
	raw = raw[headerSkip : headerSkip+meta.RawSize()]

	if meta.SwapEndian {
		bus.Messagef("normalizing byte order of %s", rawPath)
		uvf.SwapEndianness(raw, int(meta.BitWidth/8))
		meta.SwapEndian = false
	}

	vt, err := meta.VoxelType()
	if err != nil {
		return err
	}

	if quantizeTo8Bit && vt != types.VoxelUint8 {
		bus.Messagef("quantizing %s data to 8 bit", vt)
		raw, vt = quantizeToByte(raw, vt)
		meta.BitWidth = 8
		meta.Signed = false
		meta.Float = false
	}

	rdb, err := uvf.NewRasterDataBlock(vt, meta.Components, meta.Domain,
		meta.Aspect, maxBrickSize, brickOverlap)
	if err != nil {
		return err
	}
	rdb.Semantic = meta.Semantic
	rdb.Title = meta.Title
	rdb.Source = meta.Source
	if err := rdb.FillFromRaw(raw); err != nil {
		return err
	}
	bus.Messagef("bricked %s into %d LOD levels", meta.Domain, rdb.LODCount())

	return uvf.Create(target, rdb, nil, bus)
}

// quantizeToByte linearly maps the dynamic range of the input onto the
// unsigned byte range.
func quantizeToByte(raw []byte, vt types.VoxelType) ([]byte, types.VoxelType) {
	vals := uvf.DecodeFloats(raw, vt)
	var mn, mx float64
	if len(vals) > 0 {
		mn, mx = vals[0], vals[0]
	}
	for _, v := range vals {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	out := make([]byte, len(vals))
	if mx > mn {
		scale := 255 / (mx - mn)
		for i, v := range vals {
			out[i] = byte((v - mn) * scale)
		}
	}
	return out, types.VoxelUint8
}

// ToUVF runs a converter's direct UVF path when it has one; otherwise it
// falls back to the raw intermediate route. Multiple inputs require a
// converter that implements the multi-file shortcut itself.
func ToUVF(bus *logging.Bus, c interfaces.VolumeConverter, paths []string,
	target, tempDir string, noUserInteraction bool,
	maxBrickSize, brickOverlap uint64, quantizeTo8Bit bool) error {
	if w, ok := c.(interfaces.UVFWriter); ok {
		return w.ConvertToUVF(paths, target, tempDir, noUserInteraction,
			maxBrickSize, brickOverlap, quantizeTo8Bit)
	}
	if len(paths) != 1 {
		return fmt.Errorf("converter %s cannot assemble %d files into one volume",
			c.Description(), len(paths))
	}
	info, err := c.ConvertToRAW(paths[0], tempDir, noUserInteraction)
	if err != nil {
		return err
	}
	defer func() {
		if info.Delete {
			os.Remove(info.Path)
		}
	}()
	return BuildUVFFromRaw(bus, info.Path, info.HeaderSkip, info.Meta, target,
		maxBrickSize, brickOverlap, quantizeTo8Bit)
}
