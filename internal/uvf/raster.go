// Package uvf implements the Universal Volume Format container: a bricked
// multi-resolution raster block plus min/max, histogram and optional
// geometry blocks. Payloads are stored little-endian regardless of host.
package uvf

import (
	"fmt"

	"github.com/deploymenttheory/go-uvf/internal/types"
)

// BrickKey addresses one brick: a level of detail and a 1D brick index
// within that level. The 1D index is z-major (x varies fastest).
type BrickKey struct {
	LOD   uint64
	Index uint64
}

// lodLevel is one resolution level of a raster block.
type lodLevel struct {
	Domain     types.Vec3
	BrickCount types.Vec3
	Bricks     [][]byte // z-major 1D order, little-endian payloads
}

// RasterDataBlock is a bricked multi-LOD scalar volume. Brick cores tile the
// domain; each stored brick extends into its neighbors by the overlap where
// the domain allows.
type RasterDataBlock struct {
	VoxelType    types.VoxelType
	Components   uint64
	Semantic     types.ElementSemantic
	Aspect       types.AspectRatio
	MaxBrickSize uint64
	BrickOverlap uint64
	Timesteps    uint64
	Title        string
	Source       string
	Levels       []lodLevel
}

// NewRasterDataBlock lays out the LOD pyramid and brick grid for a volume of
// the given geometry. Brick payloads start empty.
func NewRasterDataBlock(vt types.VoxelType, components uint64, domain types.Vec3,
	aspect types.AspectRatio, maxBrickSize, brickOverlap uint64) (*RasterDataBlock, error) {
	if maxBrickSize <= 2*brickOverlap {
		return nil, fmt.Errorf("brick size %d leaves no core after overlap %d",
			maxBrickSize, brickOverlap)
	}
	if vt == types.VoxelUnknown {
		return nil, fmt.Errorf("unknown voxel type")
	}
	rdb := &RasterDataBlock{
		VoxelType:    vt,
		Components:   components,
		Aspect:       aspect,
		MaxBrickSize: maxBrickSize,
		BrickOverlap: brickOverlap,
		Timesteps:    1,
	}
	for d := domain; ; d = halve(d) {
		lvl := lodLevel{Domain: d, BrickCount: rdb.brickGrid(d)}
		lvl.Bricks = make([][]byte, lvl.BrickCount.Volume())
		rdb.Levels = append(rdb.Levels, lvl)
		if d.X <= maxBrickSize && d.Y <= maxBrickSize && d.Z <= maxBrickSize {
			break
		}
	}
	return rdb, nil
}

func halve(d types.Vec3) types.Vec3 {
	h := func(n uint64) uint64 {
		if n <= 1 {
			return 1
		}
		return (n + 1) / 2
	}
	return types.Vec3{X: h(d.X), Y: h(d.Y), Z: h(d.Z)}
}

// coreSize is the stride between brick cores along one axis.
func (r *RasterDataBlock) coreSize() uint64 {
	return r.MaxBrickSize - 2*r.BrickOverlap
}

func (r *RasterDataBlock) brickGrid(domain types.Vec3) types.Vec3 {
	count := func(n uint64) uint64 {
		if n <= r.MaxBrickSize {
			return 1
		}
		core := r.coreSize()
		return (n + core - 1) / core
	}
	return types.Vec3{X: count(domain.X), Y: count(domain.Y), Z: count(domain.Z)}
}

// LODCount returns the number of resolution levels.
func (r *RasterDataBlock) LODCount() uint64 { return uint64(len(r.Levels)) }

// DomainSize returns the voxel extent of a level.
func (r *RasterDataBlock) DomainSize(lod uint64) (types.Vec3, error) {
	if lod >= r.LODCount() {
		return types.Vec3{}, fmt.Errorf("no LOD %d in %d level block", lod, r.LODCount())
	}
	return r.Levels[lod].Domain, nil
}

// BrickCount returns the number of bricks at a level.
func (r *RasterDataBlock) BrickCount(lod uint64) (uint64, error) {
	if lod >= r.LODCount() {
		return 0, fmt.Errorf("no LOD %d in %d level block", lod, r.LODCount())
	}
	return r.Levels[lod].BrickCount.Volume(), nil
}

// NDBrickIndex expands a 1D brick index into its (x,y,z) grid coordinates
// using the per-LOD brick counts.
func (r *RasterDataBlock) NDBrickIndex(key BrickKey) (types.Vec3, error) {
	if key.LOD >= r.LODCount() {
		return types.Vec3{}, fmt.Errorf("no LOD %d in %d level block", key.LOD, r.LODCount())
	}
	counts := r.Levels[key.LOD].BrickCount
	if key.Index >= counts.Volume() {
		return types.Vec3{}, fmt.Errorf("brick %d out of range at LOD %d", key.Index, key.LOD)
	}
	idx := key.Index
	z := idx / (counts.X * counts.Y)
	idx %= counts.X * counts.Y
	y := idx / counts.X
	x := idx % counts.X
	return types.Vec3{X: x, Y: y, Z: z}, nil
}

// brickRegion returns the stored voxel range of a brick along one axis:
// the half-open interval [start,end) and the offset of the core within it.
func (r *RasterDataBlock) brickRegion(domain, count, i uint64) (start, end, coreStart, coreEnd uint64) {
	if count == 1 {
		return 0, domain, 0, domain
	}
	core := r.coreSize()
	coreStart = i * core
	coreEnd = coreStart + core
	if coreEnd > domain {
		coreEnd = domain
	}
	start = 0
	if coreStart > r.BrickOverlap {
		start = coreStart - r.BrickOverlap
	}
	end = coreEnd + r.BrickOverlap
	if end > domain {
		end = domain
	}
	return start, end, coreStart, coreEnd
}

// BrickExtent returns the stored voxel dimensions of a brick.
func (r *RasterDataBlock) BrickExtent(key BrickKey) (types.Vec3, error) {
	nd, err := r.NDBrickIndex(key)
	if err != nil {
		return types.Vec3{}, err
	}
	lvl := r.Levels[key.LOD]
	sx, ex, _, _ := r.brickRegion(lvl.Domain.X, lvl.BrickCount.X, nd.X)
	sy, ey, _, _ := r.brickRegion(lvl.Domain.Y, lvl.BrickCount.Y, nd.Y)
	sz, ez, _, _ := r.brickRegion(lvl.Domain.Z, lvl.BrickCount.Z, nd.Z)
	return types.Vec3{X: ex - sx, Y: ey - sy, Z: ez - sz}, nil
}

// BrickStart returns the first voxel of the stored region of a brick in
// level coordinates.
func (r *RasterDataBlock) BrickStart(key BrickKey) (types.Vec3, error) {
	nd, err := r.NDBrickIndex(key)
	if err != nil {
		return types.Vec3{}, err
	}
	lvl := r.Levels[key.LOD]
	sx, _, _, _ := r.brickRegion(lvl.Domain.X, lvl.BrickCount.X, nd.X)
	sy, _, _, _ := r.brickRegion(lvl.Domain.Y, lvl.BrickCount.Y, nd.Y)
	sz, _, _, _ := r.brickRegion(lvl.Domain.Z, lvl.BrickCount.Z, nd.Z)
	return types.Vec3{X: sx, Y: sy, Z: sz}, nil
}

// BrickCore returns the half-open core interval of a brick in level
// coordinates: the region it contributes exclusively, without overlap.
func (r *RasterDataBlock) BrickCore(key BrickKey) (start, end types.Vec3, err error) {
	nd, err := r.NDBrickIndex(key)
	if err != nil {
		return types.Vec3{}, types.Vec3{}, err
	}
	lvl := r.Levels[key.LOD]
	_, _, cx0, cx1 := r.brickRegion(lvl.Domain.X, lvl.BrickCount.X, nd.X)
	_, _, cy0, cy1 := r.brickRegion(lvl.Domain.Y, lvl.BrickCount.Y, nd.Y)
	_, _, cz0, cz1 := r.brickRegion(lvl.Domain.Z, lvl.BrickCount.Z, nd.Z)
	return types.Vec3{X: cx0, Y: cy0, Z: cz0}, types.Vec3{X: cx1, Y: cy1, Z: cz1}, nil
}

// BrickData returns the stored payload of a brick.
func (r *RasterDataBlock) BrickData(key BrickKey) ([]byte, error) {
	if key.LOD >= r.LODCount() {
		return nil, fmt.Errorf("no LOD %d in %d level block", key.LOD, r.LODCount())
	}
	lvl := r.Levels[key.LOD]
	if key.Index >= uint64(len(lvl.Bricks)) {
		return nil, fmt.Errorf("brick %d out of range at LOD %d", key.Index, key.LOD)
	}
	if lvl.Bricks[key.Index] == nil {
		return nil, fmt.Errorf("brick %d at LOD %d has no data", key.Index, key.LOD)
	}
	return lvl.Bricks[key.Index], nil
}

// SetBrickData stores a brick payload under the given key. The payload
// length must match the brick extent.
func (r *RasterDataBlock) SetBrickData(key BrickKey, data []byte) error {
	ext, err := r.BrickExtent(key)
	if err != nil {
		return err
	}
	want := ext.Volume() * r.Components * uint64(r.VoxelType.Size())
	if uint64(len(data)) != want {
		return fmt.Errorf("brick %v payload is %d bytes, want %d", key, len(data), want)
	}
	r.Levels[key.LOD].Bricks[key.Index] = data
	return nil
}

// FillFromRaw bricks a full-resolution little-endian raw volume into LOD 0
// and builds the coarser levels by factor-two averaging.
func (r *RasterDataBlock) FillFromRaw(raw []byte) error {
	want := r.Levels[0].Domain.Volume() * r.Components * uint64(r.VoxelType.Size())
	if uint64(len(raw)) != want {
		return fmt.Errorf("raw volume is %d bytes, want %d", len(raw), want)
	}
	level := raw
	for lod := uint64(0); lod < r.LODCount(); lod++ {
		if err := r.fillLevel(lod, level); err != nil {
			return err
		}
		if lod+1 < r.LODCount() {
			level = downsample(level, r.VoxelType, r.Components,
				r.Levels[lod].Domain, r.Levels[lod+1].Domain)
		}
	}
	return nil
}

func (r *RasterDataBlock) fillLevel(lod uint64, raw []byte) error {
	lvl := r.Levels[lod]
	vsize := r.Components * uint64(r.VoxelType.Size())
	n, err := r.BrickCount(lod)
	if err != nil {
		return err
	}
	for idx := uint64(0); idx < n; idx++ {
		key := BrickKey{LOD: lod, Index: idx}
		nd, err := r.NDBrickIndex(key)
		if err != nil {
			return err
		}
		sx, ex, _, _ := r.brickRegion(lvl.Domain.X, lvl.BrickCount.X, nd.X)
		sy, ey, _, _ := r.brickRegion(lvl.Domain.Y, lvl.BrickCount.Y, nd.Y)
		sz, ez, _, _ := r.brickRegion(lvl.Domain.Z, lvl.BrickCount.Z, nd.Z)
		brick := make([]byte, (ex-sx)*(ey-sy)*(ez-sz)*vsize)
		row := (ex - sx) * vsize
		for z := sz; z < ez; z++ {
			for y := sy; y < ey; y++ {
				src := ((z*lvl.Domain.Y+y)*lvl.Domain.X + sx) * vsize
				dst := ((z-sz)*(ey-sy) + (y - sy)) * row
				copy(brick[dst:dst+row], raw[src:src+row])
			}
		}
		if err := r.SetBrickData(key, brick); err != nil {
			return err
		}
	}
	return nil
}

// ExportLOD reassembles one level into a contiguous little-endian raw
// volume by copying each brick's core region.
func (r *RasterDataBlock) ExportLOD(lod uint64) ([]byte, error) {
	if lod >= r.LODCount() {
		return nil, fmt.Errorf("no LOD %d in %d level block", lod, r.LODCount())
	}
	lvl := r.Levels[lod]
	vsize := r.Components * uint64(r.VoxelType.Size())
	out := make([]byte, lvl.Domain.Volume()*vsize)
	n := lvl.BrickCount.Volume()
	for idx := uint64(0); idx < n; idx++ {
		key := BrickKey{LOD: lod, Index: idx}
		data, err := r.BrickData(key)
		if err != nil {
			return nil, err
		}
		nd, _ := r.NDBrickIndex(key)
		sx, ex, cx0, cx1 := r.brickRegion(lvl.Domain.X, lvl.BrickCount.X, nd.X)
		sy, ey, cy0, cy1 := r.brickRegion(lvl.Domain.Y, lvl.BrickCount.Y, nd.Y)
		sz, _, cz0, cz1 := r.brickRegion(lvl.Domain.Z, lvl.BrickCount.Z, nd.Z)
		bw, bh := ex-sx, ey-sy
		row := (cx1 - cx0) * vsize
		for z := cz0; z < cz1; z++ {
			for y := cy0; y < cy1; y++ {
				src := (((z-sz)*bh+(y-sy))*bw + (cx0 - sx)) * vsize
				dst := ((z*lvl.Domain.Y+y)*lvl.Domain.X + cx0) * vsize
				copy(out[dst:dst+row], data[src:src+row])
			}
		}
	}
	return out, nil
}

// downsample halves a volume along each axis by averaging the contributing
// voxels per component.
func downsample(raw []byte, vt types.VoxelType, components uint64,
	src, dst types.Vec3) []byte {
	out := make([]byte, dst.Volume()*components*uint64(vt.Size()))
	for z := uint64(0); z < dst.Z; z++ {
		for y := uint64(0); y < dst.Y; y++ {
			for x := uint64(0); x < dst.X; x++ {
				for c := uint64(0); c < components; c++ {
					var sum float64
					var cnt int
					for dz := uint64(0); dz < 2; dz++ {
						for dy := uint64(0); dy < 2; dy++ {
							for dx := uint64(0); dx < 2; dx++ {
								px, py, pz := 2*x+dx, 2*y+dy, 2*z+dz
								if px >= src.X || py >= src.Y || pz >= src.Z {
									continue
								}
								i := ((pz*src.Y+py)*src.X + px) * components
								sum += decodeAt(raw, vt, int(i+c))
								cnt++
							}
						}
					}
					j := ((z*dst.Y+y)*dst.X + x) * components
					encodeAt(out, vt, int(j+c), sum/float64(cnt))
				}
			}
		}
	}
	return out
}
