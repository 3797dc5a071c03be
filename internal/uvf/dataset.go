package uvf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-uvf/internal/types"
)

// Dataset is an opened UVF file.
type Dataset struct {
	Path   string
	ID     uuid.UUID
	Raster *RasterDataBlock
	MaxMin *MaxMinBlock
	Hist1D []uint64
	Hist2D [][]uint64
	Meshes []*types.Mesh
}

// SniffHeader reports whether the first bytes of a file carry the UVF magic.
func SniffHeader(first512 []byte) bool {
	return len(first512) >= 4 && bytes.Equal(first512[:4], magic[:])
}

// Open reads a complete UVF file.
func Open(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	ds, err := readContainer(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	ds.Path = path
	return ds, nil
}

type fieldReader struct {
	r   *bufio.Reader
	err error
}

func (fr *fieldReader) read(v any) {
	if fr.err != nil {
		return
	}
	fr.err = binary.Read(fr.r, binary.LittleEndian, v)
}

func (fr *fieldReader) readString() string {
	var n uint32
	fr.read(&n)
	if fr.err != nil {
		return ""
	}
	buf := make([]byte, n)
	_, fr.err = io.ReadFull(fr.r, buf)
	return string(buf)
}

func (fr *fieldReader) readVec() types.Vec3 {
	var v types.Vec3
	fr.read(&v.X)
	fr.read(&v.Y)
	fr.read(&v.Z)
	return v
}

func readContainer(r *bufio.Reader) (*Dataset, error) {
	fr := &fieldReader{r: r}

	var m [4]byte
	fr.read(&m)
	if fr.err != nil {
		return nil, fr.err
	}
	if m != magic {
		return nil, fmt.Errorf("bad magic %q", m[:])
	}
	var version, flags uint16
	fr.read(&version)
	fr.read(&flags)
	if fr.err == nil && version != formatVersion {
		return nil, fmt.Errorf("unsupported container version %d", version)
	}

	ds := &Dataset{Raster: &RasterDataBlock{}}
	rdb := ds.Raster
	fr.read(&ds.ID)
	var vt, comps uint8
	var semantic uint32
	fr.read(&vt)
	fr.read(&comps)
	fr.read(&semantic)
	rdb.VoxelType = types.VoxelType(vt)
	rdb.Components = uint64(comps)
	rdb.Semantic = types.ElementSemantic(semantic)
	fr.read(&rdb.MaxBrickSize)
	fr.read(&rdb.BrickOverlap)
	fr.read(&rdb.Timesteps)
	fr.read(&rdb.Aspect.X)
	fr.read(&rdb.Aspect.Y)
	fr.read(&rdb.Aspect.Z)
	rdb.Title = fr.readString()
	rdb.Source = fr.readString()

	var lodCount uint32
	fr.read(&lodCount)
	for i := uint32(0); i < lodCount && fr.err == nil; i++ {
		lvl := lodLevel{Domain: fr.readVec(), BrickCount: fr.readVec()}
		lvl.Bricks = make([][]byte, lvl.BrickCount.Volume())
		rdb.Levels = append(rdb.Levels, lvl)
	}
	for li := range rdb.Levels {
		for bi := range rdb.Levels[li].Bricks {
			var n uint64
			fr.read(&n)
			if fr.err != nil {
				return nil, fr.err
			}
			buf := make([]byte, n)
			if _, err := io.ReadFull(fr.r, buf); err != nil {
				return nil, err
			}
			rdb.Levels[li].Bricks[bi] = buf
		}
	}

	var mmCount uint64
	fr.read(&mmCount)
	ds.MaxMin = NewMaxMinBlock(rdb.Components)
	for i := uint64(0); i < mmCount && fr.err == nil; i++ {
		var s BrickStats
		fr.read(&s.Min)
		fr.read(&s.Max)
		fr.read(&s.GradMin)
		fr.read(&s.GradMax)
		ds.MaxMin.Values = append(ds.MaxMin.Values, s)
	}

	var bins uint64
	fr.read(&bins)
	ds.Hist1D = make([]uint64, bins)
	for i := range ds.Hist1D {
		fr.read(&ds.Hist1D[i])
	}

	var rows, cols uint64
	fr.read(&rows)
	fr.read(&cols)
	ds.Hist2D = make([][]uint64, rows)
	for i := range ds.Hist2D {
		ds.Hist2D[i] = make([]uint64, cols)
		for j := range ds.Hist2D[i] {
			fr.read(&ds.Hist2D[i][j])
		}
	}

	var meshCount uint32
	fr.read(&meshCount)
	for i := uint32(0); i < meshCount && fr.err == nil; i++ {
		mesh := &types.Mesh{Name: fr.readString()}
		var nVerts uint64
		fr.read(&nVerts)
		mesh.Vertices = make([]types.Vertex, nVerts)
		for j := range mesh.Vertices {
			fr.read(&mesh.Vertices[j].X)
			fr.read(&mesh.Vertices[j].Y)
			fr.read(&mesh.Vertices[j].Z)
		}
		mesh.Normals = make([]types.Vertex, nVerts)
		for j := range mesh.Normals {
			fr.read(&mesh.Normals[j].X)
			fr.read(&mesh.Normals[j].Y)
			fr.read(&mesh.Normals[j].Z)
		}
		mesh.Colors = make([]types.Color, nVerts)
		for j := range mesh.Colors {
			fr.read(&mesh.Colors[j].R)
			fr.read(&mesh.Colors[j].G)
			fr.read(&mesh.Colors[j].B)
			fr.read(&mesh.Colors[j].A)
		}
		var nIdx uint64
		fr.read(&nIdx)
		mesh.Triangles = make([]uint32, nIdx)
		for j := range mesh.Triangles {
			fr.read(&mesh.Triangles[j])
		}
		ds.Meshes = append(ds.Meshes, mesh)
	}

	if fr.err != nil {
		return nil, fr.err
	}
	return ds, nil
}

// BitWidth returns the component width in bits.
func (d *Dataset) BitWidth() uint64 { return d.Raster.VoxelType.BitWidth() }

// ComponentCount returns the per-voxel component count.
func (d *Dataset) ComponentCount() uint64 { return d.Raster.Components }

// IsSigned reports signed voxel data.
func (d *Dataset) IsSigned() bool { return d.Raster.VoxelType.IsSigned() }

// IsFloat reports floating point voxel data.
func (d *Dataset) IsFloat() bool { return d.Raster.VoxelType.IsFloat() }

// IsSameEndianness reports whether payloads match host order. Payloads are
// normalized to little-endian at write time, so this is host-dependent only
// on big-endian machines.
func (d *Dataset) IsSameEndianness() bool { return HostIsLittleEndian() }

// HostIsLittleEndian reports the byte order of the running host.
func HostIsLittleEndian() bool {
	buf := make([]byte, 2)
	binary.NativeEndian.PutUint16(buf, 1)
	return buf[0] == 1
}

// DomainSize returns the voxel extent of a level.
func (d *Dataset) DomainSize(lod uint64) (types.Vec3, error) {
	return d.Raster.DomainSize(lod)
}

// Scale returns the aspect ratio.
func (d *Dataset) Scale() types.AspectRatio { return d.Raster.Aspect }

// Meta assembles a VolumeMeta for the highest resolution level.
func (d *Dataset) Meta() types.VolumeMeta {
	domain, _ := d.Raster.DomainSize(0)
	return types.VolumeMeta{
		BitWidth:   d.BitWidth(),
		Components: d.ComponentCount(),
		Signed:     d.IsSigned(),
		Float:      d.IsFloat(),
		SwapEndian: !d.IsSameEndianness(),
		Domain:     domain,
		Aspect:     d.Raster.Aspect,
		Semantic:   d.Raster.Semantic,
		Title:      d.Raster.Title,
		Source:     d.Raster.Source,
	}
}

// Range computes the global scalar range from the min/max block.
func (d *Dataset) Range() (float64, float64) {
	mn, mx := math.Inf(1), math.Inf(-1)
	for _, s := range d.MaxMin.Values {
		if s.Min < mn {
			mn = s.Min
		}
		if s.Max > mx {
			mx = s.Max
		}
	}
	return mn, mx
}

// BrickKeys lists every brick of one level in iteration order.
func (d *Dataset) BrickKeys(lod uint64) ([]BrickKey, error) {
	n, err := d.Raster.BrickCount(lod)
	if err != nil {
		return nil, err
	}
	keys := make([]BrickKey, n)
	for i := uint64(0); i < n; i++ {
		keys[i] = BrickKey{LOD: lod, Index: i}
	}
	return keys, nil
}

// ExportLOD writes one level as a contiguous raw file.
func (d *Dataset) ExportLOD(lod uint64, rawPath string) error {
	raw, err := d.Raster.ExportLOD(lod)
	if err != nil {
		return err
	}
	if err := os.WriteFile(rawPath, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rawPath, err)
	}
	return nil
}

// Mergeable reports whether two datasets can be combined voxel-wise:
// identical component count, brick overlap, LOD count, timestep count, and
// per-level domain size and brick count.
func (d *Dataset) Mergeable(o *Dataset) bool {
	if d.ComponentCount() != o.ComponentCount() ||
		d.Raster.BrickOverlap != o.Raster.BrickOverlap ||
		d.Raster.Timesteps != o.Raster.Timesteps ||
		d.Raster.LODCount() != o.Raster.LODCount() {
		return false
	}
	for lod := uint64(0); lod < d.Raster.LODCount(); lod++ {
		da, _ := d.Raster.DomainSize(lod)
		db, _ := o.Raster.DomainSize(lod)
		ca, _ := d.Raster.BrickCount(lod)
		cb, _ := o.Raster.BrickCount(lod)
		if !da.Equals(db) || ca != cb {
			return false
		}
	}
	return true
}
