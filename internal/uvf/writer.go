package uvf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/types"
)

// Create writes a complete UVF file from a filled raster block: the raster
// itself, the accumulated min/max block, and the 1D/2D histograms. The 1D
// histogram is computed first; its bin count feeds the 2D histogram's
// abscissa range.
func Create(path string, rdb *RasterDataBlock, meshes []*types.Mesh, bus *logging.Bus) error {
	mm, globalMax, err := ComputeMaxMin(rdb)
	if err != nil {
		return fmt.Errorf("brick statistics failed: %w", err)
	}
	bus.Messagef("found %d brick min/maxes...", mm.BrickCount())

	hist1d, err := ComputeHistogram1D(rdb)
	if err != nil {
		return fmt.Errorf("1D histogram failed: %w", err)
	}
	hist2d, err := ComputeHistogram2D(rdb, len(hist1d), globalMax)
	if err != nil {
		return fmt.Errorf("2D histogram failed: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	if err := writeContainer(w, rdb, mm, hist1d, hist2d, meshes); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

type fieldWriter struct {
	w   *bufio.Writer
	err error
}

func (fw *fieldWriter) write(v any) {
	if fw.err != nil {
		return
	}
	fw.err = binary.Write(fw.w, binary.LittleEndian, v)
}

func (fw *fieldWriter) writeString(s string) {
	fw.write(uint32(len(s)))
	if fw.err == nil {
		_, fw.err = fw.w.WriteString(s)
	}
}

func (fw *fieldWriter) writeVec(v types.Vec3) {
	fw.write(v.X)
	fw.write(v.Y)
	fw.write(v.Z)
}

func writeContainer(w *bufio.Writer, rdb *RasterDataBlock, mm *MaxMinBlock,
	hist1d []uint64, hist2d [][]uint64, meshes []*types.Mesh) error {
	fw := &fieldWriter{w: w}

	id := uuid.New()
	fw.write(magic)
	fw.write(formatVersion)
	fw.write(uint16(0)) // flags: payload is little-endian
	fw.write(id)
	fw.write(uint8(rdb.VoxelType))
	fw.write(uint8(rdb.Components))
	fw.write(uint32(rdb.Semantic))
	fw.write(rdb.MaxBrickSize)
	fw.write(rdb.BrickOverlap)
	fw.write(rdb.Timesteps)
	fw.write(rdb.Aspect.X)
	fw.write(rdb.Aspect.Y)
	fw.write(rdb.Aspect.Z)
	fw.writeString(rdb.Title)
	fw.writeString(rdb.Source)

	fw.write(uint32(len(rdb.Levels)))
	for _, lvl := range rdb.Levels {
		fw.writeVec(lvl.Domain)
		fw.writeVec(lvl.BrickCount)
	}
	for li, lvl := range rdb.Levels {
		for bi, brick := range lvl.Bricks {
			if brick == nil {
				return fmt.Errorf("brick %d at LOD %d was never filled", bi, li)
			}
			fw.write(uint64(len(brick)))
			if fw.err == nil {
				_, fw.err = fw.w.Write(brick)
			}
		}
	}

	fw.write(uint64(len(mm.Values)))
	for _, s := range mm.Values {
		fw.write(s.Min)
		fw.write(s.Max)
		fw.write(s.GradMin)
		fw.write(s.GradMax)
	}

	fw.write(uint64(len(hist1d)))
	for _, c := range hist1d {
		fw.write(c)
	}

	rows := uint64(len(hist2d))
	cols := uint64(0)
	if rows > 0 {
		cols = uint64(len(hist2d[0]))
	}
	fw.write(rows)
	fw.write(cols)
	for _, row := range hist2d {
		for _, c := range row {
			fw.write(c)
		}
	}

	fw.write(uint32(len(meshes)))
	for _, m := range meshes {
		fw.writeString(m.Name)
		fw.write(uint64(len(m.Vertices)))
		for _, v := range m.Vertices {
			fw.write(v.X)
			fw.write(v.Y)
			fw.write(v.Z)
		}
		// Normals and colors are stored dense, padded when absent.
		for i := range m.Vertices {
			var n types.Vertex
			if i < len(m.Normals) {
				n = m.Normals[i]
			}
			fw.write(n.X)
			fw.write(n.Y)
			fw.write(n.Z)
		}
		for i := range m.Vertices {
			c := types.Color{R: 1, G: 1, B: 1, A: 1}
			if i < len(m.Colors) {
				c = m.Colors[i]
			}
			fw.write(c.R)
			fw.write(c.G)
			fw.write(c.B)
			fw.write(c.A)
		}
		fw.write(uint64(len(m.Triangles)))
		for _, t := range m.Triangles {
			fw.write(t)
		}
	}
	return fw.err
}
