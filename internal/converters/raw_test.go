package converters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/types"
	"github.com/deploymenttheory/go-uvf/internal/uvf"
)

func writeRaw(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestBuildUVFFromRaw(t *testing.T) {
	domain := types.Vec3{X: 4, Y: 4, Z: 4}
	raw := make([]byte, domain.Volume())
	for i := range raw {
		raw[i] = byte(i)
	}
	src := writeRaw(t, "cube.raw", raw)
	target := filepath.Join(t.TempDir(), "cube.uvf")

	meta := types.VolumeMeta{
		BitWidth:   8,
		Components: 1,
		Domain:     domain,
		Aspect:     types.AspectRatio{X: 1, Y: 1, Z: 1},
	}
	require.NoError(t, BuildUVFFromRaw(logging.Nop(), src, 0, meta, target, 8, 2, false))

	ds, err := uvf.Open(target)
	require.NoError(t, err)
	got, err := ds.Raster.ExportLOD(0)
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestBuildUVFFromRawHeaderSkip(t *testing.T) {
	domain := types.Vec3{X: 2, Y: 2, Z: 2}
	payload := []byte{9, 8, 7, 6, 5, 4, 3, 2}
	src := writeRaw(t, "skip.raw", append([]byte("HDRHDR"), payload...))
	target := filepath.Join(t.TempDir(), "skip.uvf")

	meta := types.VolumeMeta{
		BitWidth:   8,
		Components: 1,
		Domain:     domain,
		Aspect:     types.AspectRatio{X: 1, Y: 1, Z: 1},
	}
	require.NoError(t, BuildUVFFromRaw(logging.Nop(), src, 6, meta, target, 8, 2, false))

	ds, err := uvf.Open(target)
	require.NoError(t, err)
	got, err := ds.Raster.ExportLOD(0)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestBuildUVFFromRawEndianFlip(t *testing.T) {
	// A single big endian 16 bit voxel 0x1234 must land host native: on a
	// little endian host the container payload reads back as 0x1234 after
	// the swap, i.e. bytes 34 12.
	domain := types.Vec3{X: 1, Y: 1, Z: 1}
	src := writeRaw(t, "be.raw", []byte{0x12, 0x34})
	target := filepath.Join(t.TempDir(), "be.uvf")

	meta := types.VolumeMeta{
		BitWidth:   16,
		Components: 1,
		SwapEndian: true,
		Domain:     domain,
		Aspect:     types.AspectRatio{X: 1, Y: 1, Z: 1},
	}
	require.NoError(t, BuildUVFFromRaw(logging.Nop(), src, 0, meta, target, 8, 2, false))

	ds, err := uvf.Open(target)
	require.NoError(t, err)
	got, err := ds.Raster.ExportLOD(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x34, 0x12}, got)

	vals := uvf.DecodeFloats(got, types.VoxelUint16)
	assert.Equal(t, float64(0x1234), vals[0])
}

func TestBuildUVFFromRawQuantize(t *testing.T) {
	domain := types.Vec3{X: 2, Y: 1, Z: 1}
	// 16 bit values 0 and 1000 quantize to 0 and 255.
	src := writeRaw(t, "q.raw", []byte{0x00, 0x00, 0xE8, 0x03})
	target := filepath.Join(t.TempDir(), "q.uvf")

	meta := types.VolumeMeta{
		BitWidth:   16,
		Components: 1,
		Domain:     domain,
		Aspect:     types.AspectRatio{X: 1, Y: 1, Z: 1},
	}
	require.NoError(t, BuildUVFFromRaw(logging.Nop(), src, 0, meta, target, 8, 2, true))

	ds, err := uvf.Open(target)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), ds.BitWidth())
	got, err := ds.Raster.ExportLOD(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 255}, got)
}

func TestBuildUVFFromRawShortStream(t *testing.T) {
	src := writeRaw(t, "short.raw", []byte{1, 2, 3})
	meta := types.VolumeMeta{
		BitWidth:   8,
		Components: 1,
		Domain:     types.Vec3{X: 4, Y: 4, Z: 4},
		Aspect:     types.AspectRatio{X: 1, Y: 1, Z: 1},
	}
	err := BuildUVFFromRaw(logging.Nop(), src, 0, meta,
		filepath.Join(t.TempDir(), "short.uvf"), 8, 2, false)
	assert.Error(t, err)
}
