package uvf

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/types"
)

func buildTestBlock(t *testing.T, vt types.VoxelType, domain types.Vec3) *RasterDataBlock {
	t.Helper()
	rdb, err := NewRasterDataBlock(vt, 1, domain,
		types.AspectRatio{X: 1, Y: 2, Z: 3}, 8, 2)
	require.NoError(t, err)
	raw := make([]byte, domain.Volume()*uint64(vt.Size()))
	for i := uint64(0); i < domain.Volume(); i++ {
		switch vt {
		case types.VoxelUint8:
			raw[i] = byte(i)
		case types.VoxelUint16:
			binary.LittleEndian.PutUint16(raw[i*2:], uint16(i*3))
		}
	}
	require.NoError(t, rdb.FillFromRaw(raw))
	rdb.Title = "test volume"
	rdb.Source = "synthetic"
	return rdb
}

func TestCreateOpenRoundTrip(t *testing.T) {
	domain := types.Vec3{X: 6, Y: 5, Z: 4}
	rdb := buildTestBlock(t, types.VoxelUint16, domain)
	path := filepath.Join(t.TempDir(), "roundtrip.uvf")

	require.NoError(t, Create(path, rdb, nil, logging.Nop()))

	ds, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(16), ds.BitWidth())
	assert.Equal(t, uint64(1), ds.ComponentCount())
	assert.False(t, ds.IsSigned())
	assert.False(t, ds.IsFloat())
	assert.Equal(t, "test volume", ds.Raster.Title)
	assert.Equal(t, types.AspectRatio{X: 1, Y: 2, Z: 3}, ds.Scale())

	got, err := ds.Raster.ExportLOD(0)
	require.NoError(t, err)
	want, err := rdb.ExportLOD(0)
	require.NoError(t, err)
	assert.Equal(t, want, got, "LOD 0 voxels survive the container round trip")

	mn, mx := ds.Range()
	assert.Equal(t, float64(0), mn)
	assert.Equal(t, float64((domain.Volume()-1)*3), mx)

	assert.NotEmpty(t, ds.Hist1D)
	assert.NotEmpty(t, ds.Hist2D)
	assert.Equal(t, len(ds.Hist1D), len(ds.Hist2D))
}

func TestSniffHeader(t *testing.T) {
	rdb := buildTestBlock(t, types.VoxelUint8, types.Vec3{X: 2, Y: 2, Z: 2})
	path := filepath.Join(t.TempDir(), "sniff.uvf")
	require.NoError(t, Create(path, rdb, nil, logging.Nop()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	data := make([]byte, 512)
	n, err := f.Read(data)
	require.NoError(t, err)
	assert.True(t, SniffHeader(data[:n]))
	assert.False(t, SniffHeader([]byte("NRRD0001")))
}

func TestMergeable(t *testing.T) {
	a := buildTestBlock(t, types.VoxelUint8, types.Vec3{X: 6, Y: 6, Z: 6})
	b := buildTestBlock(t, types.VoxelUint16, types.Vec3{X: 6, Y: 6, Z: 6})
	c := buildTestBlock(t, types.VoxelUint8, types.Vec3{X: 6, Y: 6, Z: 5})

	dsA := &Dataset{Raster: a}
	dsB := &Dataset{Raster: b}
	dsC := &Dataset{Raster: c}

	assert.True(t, dsA.Mergeable(dsB), "type may differ when geometry matches")
	assert.False(t, dsA.Mergeable(dsC), "different domains are unmergeable")
}

func TestRoundTripWithMesh(t *testing.T) {
	rdb := buildTestBlock(t, types.VoxelUint8, types.Vec3{X: 4, Y: 4, Z: 4})
	mesh := &types.Mesh{Name: "tri"}
	mesh.AddTriangle(
		[3]types.Vertex{{X: 0}, {X: 1}, {Y: 1}},
		[3]types.Vertex{{Z: 1}, {Z: 1}, {Z: 1}},
		types.Color{R: 1, A: 1})

	path := filepath.Join(t.TempDir(), "withmesh.uvf")
	require.NoError(t, Create(path, rdb, []*types.Mesh{mesh}, logging.Nop()))

	ds, err := Open(path)
	require.NoError(t, err)
	require.Len(t, ds.Meshes, 1)
	assert.Equal(t, "tri", ds.Meshes[0].Name)
	assert.Equal(t, 1, ds.Meshes[0].TriangleCount())
	assert.Equal(t, mesh.Vertices, ds.Meshes[0].Vertices)
}
