package iso

import (
	"fmt"

	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/types"
	"github.com/deploymenttheory/go-uvf/internal/uvf"
)

// Extract streams every brick of one LOD through the marching kernel and
// collects the resulting triangles with the supplied color. The isovalue is
// first converted to the source voxel type so comparison happens with the
// precision the data actually has. Only scalar volumes are supported.
func Extract(bus *logging.Bus, ds *uvf.Dataset, lod uint64, isovalue float64,
	color types.Color) (*types.Mesh, error) {
	if ds.ComponentCount() != 1 {
		return nil, fmt.Errorf("isosurface extraction only supported for scalar volumes")
	}
	rdb := ds.Raster
	if _, err := rdb.DomainSize(lod); err != nil {
		return nil, err
	}
	vt := rdb.VoxelType

	// Round-trip through the voxel type.
	iso := uvf.DecodeFloats(uvf.EncodeFloats([]float64{isovalue}, vt), vt)[0]

	mesh := &types.Mesh{Name: fmt.Sprintf("isosurface %g", isovalue)}
	aspect := rdb.Aspect
	emit := func(a, b, c types.Vertex) {
		mesh.AddTriangle([3]types.Vertex{a, b, c}, [3]types.Vertex{}, color)
	}

	n, err := rdb.BrickCount(lod)
	if err != nil {
		return nil, err
	}
	for idx := uint64(0); idx < n; idx++ {
		key := uvf.BrickKey{LOD: lod, Index: idx}
		if err := marchBrick(rdb, key, iso, aspect, emit); err != nil {
			return nil, err
		}
		bus.Progress("Extracting isosurface", int(idx+1), int(n))
	}
	mesh.RecomputeNormals()
	return mesh, nil
}

// marchBrick walks the cells whose base voxel lies in the brick's core, so
// neighboring bricks never emit the same cell twice. The brick overlap
// supplies the neighbor voxels of the last core cells.
func marchBrick(rdb *uvf.RasterDataBlock, key uvf.BrickKey, iso float64,
	aspect types.AspectRatio, emit func(a, b, c types.Vertex)) error {
	data, err := rdb.BrickData(key)
	if err != nil {
		return err
	}
	vals := uvf.DecodeFloats(data, rdb.VoxelType)
	ext, err := rdb.BrickExtent(key)
	if err != nil {
		return err
	}
	start, err := rdb.BrickStart(key)
	if err != nil {
		return err
	}
	core0, core1, err := rdb.BrickCore(key)
	if err != nil {
		return err
	}

	at := func(x, y, z uint64) float64 {
		return vals[(z*ext.Y+y)*ext.X+x]
	}
	for gz := core0.Z; gz < core1.Z; gz++ {
		for gy := core0.Y; gy < core1.Y; gy++ {
			for gx := core0.X; gx < core1.X; gx++ {
				// Local cell base; the +1 corners must be stored too.
				lx, ly, lz := gx-start.X, gy-start.Y, gz-start.Z
				if lx+1 >= ext.X || ly+1 >= ext.Y || lz+1 >= ext.Z {
					continue
				}
				var corners [8]types.Vertex
				var values [8]float64
				for ci, off := range cubeCorners {
					values[ci] = at(lx+off[0], ly+off[1], lz+off[2])
					corners[ci] = types.Vertex{
						X: float32(gx+off[0]) * aspect.X,
						Y: float32(gy+off[1]) * aspect.Y,
						Z: float32(gz+off[2]) * aspect.Z,
					}
				}
				crossed := false
				for _, v := range values {
					if (v < iso) != (values[0] < iso) {
						crossed = true
						break
					}
				}
				if crossed {
					marchCell(corners, values, iso, emit)
				}
			}
		}
	}
	return nil
}
