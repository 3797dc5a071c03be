package iomanager

import (
	"fmt"
	"math"

	"github.com/deploymenttheory/go-uvf/internal/expr"
	"github.com/deploymenttheory/go-uvf/internal/types"
	"github.com/deploymenttheory/go-uvf/internal/uvf"
)

// widestType identifies the widest voxel type utilized in a series of
// datasets: the componentwise maximum bit width, with floatness and
// signedness OR'd together.
func widestType(datasets []*uvf.Dataset) (types.VoxelType, error) {
	var bitWidth uint64
	var isFloat, isSigned bool
	for _, ds := range datasets {
		if ds.BitWidth() > bitWidth {
			bitWidth = ds.BitWidth()
		}
		isFloat = isFloat || ds.IsFloat()
		isSigned = isSigned || ds.IsSigned()
	}
	return types.VoxelTypeFrom(bitWidth, isSigned, isFloat)
}

// EvaluateExpression parses a voxel expression over volumes v0..vn-1 and
// streams brick-by-brick evaluation of the mergeable inputs into a new UVF.
// The output raster is emitted as 16 bit unsigned regardless of the
// computed widest type.
func (m *Manager) EvaluateExpression(expression string, volumes []string, target string) error {
	if len(volumes) == 0 {
		return fmt.Errorf("no volumes to evaluate over")
	}

	tree, err := expr.Parse(expression)
	if err != nil {
		return err
	}

	datasets := make([]*uvf.Dataset, 0, len(volumes))
	for _, v := range volumes {
		ds, err := uvf.Open(v)
		if err != nil {
			return err
		}
		datasets = append(datasets, ds)
	}
	for _, ds := range datasets[1:] {
		if !datasets[0].Mergeable(ds) {
			return fmt.Errorf("%w: %s and %s", ErrIncompatibleInputs,
				datasets[0].Path, ds.Path)
		}
	}
	if maxVar := tree.MaxVariable(); maxVar >= len(datasets) {
		return fmt.Errorf("expression references v%d but only %d volumes were given",
			maxVar, len(datasets))
	}

	wide, err := widestType(datasets)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	switch wide {
	case types.VoxelFloat64:
		return fmt.Errorf("%w: double format data not supported", ErrUnsupportedType)
	case types.VoxelInt32, types.VoxelUint32, types.VoxelInt64, types.VoxelUint64:
		return fmt.Errorf("%w: %s data not supported in expression evaluation",
			ErrUnsupportedType, wide)
	}
	m.bus.Messagef("widest common type across inputs: %s", wide)

	src := datasets[0].Raster
	domain, err := src.DomainSize(0)
	if err != nil {
		return err
	}
	out, err := uvf.NewRasterDataBlock(types.VoxelUint16, src.Components,
		domain, src.Aspect, src.MaxBrickSize, src.BrickOverlap)
	if err != nil {
		return err
	}
	out.Semantic = types.SemanticRed
	out.Title = "expression result"
	out.Source = expression

	// Co-iterate brick keys: every input yields the same-keyed brick.
	for lod := uint64(0); lod < src.LODCount(); lod++ {
		keys, err := datasets[0].BrickKeys(lod)
		if err != nil {
			return err
		}
		for bi, key := range keys {
			involumes := make([][]float64, len(datasets))
			for i, ds := range datasets {
				m.bus.Messagef("Brick %d (file %03d/%03d)...", bi, i+1, len(datasets))
				vals, err := typedRead(ds, key, wide)
				if err != nil {
					return err
				}
				involumes[i] = vals
			}
			m.bus.Messagef("Evaluating expression ...")
			result := make([]float64, len(involumes[0]))
			if err := expr.EvaluateBricks(tree, involumes, result); err != nil {
				return err
			}
			m.bus.Messagef("Writing ...")
			if err := out.SetBrickData(key, uvf.EncodeFloats(result, types.VoxelUint16)); err != nil {
				return err
			}
		}
	}

	return uvf.Create(target, out, nil, m.bus)
}

// typedRead reads a brick expanded into the destination type. When the
// stored type already matches, or the destination is a float type, values
// pass through; otherwise they are linearly rescaled from the dataset's
// dynamic range onto the full range of the destination type, clamped.
func typedRead(ds *uvf.Dataset, key uvf.BrickKey, dst types.VoxelType) ([]float64, error) {
	data, err := ds.Raster.BrickData(key)
	if err != nil {
		return nil, err
	}
	vals := uvf.DecodeFloats(data, ds.Raster.VoxelType)
	if ds.Raster.VoxelType == dst || dst.IsFloat() {
		return vals, nil
	}

	mn, mx := ds.Range()
	if mx <= mn {
		return vals, nil
	}
	var dstMax float64
	switch dst {
	case types.VoxelInt8:
		dstMax = math.MaxInt8
	case types.VoxelUint8:
		dstMax = math.MaxUint8
	case types.VoxelInt16:
		dstMax = math.MaxInt16
	case types.VoxelUint16:
		dstMax = math.MaxUint16
	default:
		return nil, fmt.Errorf("cannot expand into %s", dst)
	}
	factor := dstMax / (mx - mn)
	out := make([]float64, len(vals))
	for i, v := range vals {
		r := (v - mn) * factor
		if r < 0 {
			r = 0
		}
		if r > dstMax {
			r = dstMax
		}
		out[i] = r
	}
	return out, nil
}
