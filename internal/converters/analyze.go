package converters

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/types"
)

const analyzeHeaderSize = 348

// Analyze 7.5 datatype codes.
const (
	analyzeUnsignedChar = 2
	analyzeSignedShort  = 4
	analyzeSignedInt    = 8
	analyzeFloat        = 16
	analyzeDouble       = 64
)

// AnalyzeConverter reads and writes Analyze 7.5 hdr/img pairs.
type AnalyzeConverter struct {
	bus *logging.Bus
}

func NewAnalyzeConverter(bus *logging.Bus) *AnalyzeConverter {
	return &AnalyzeConverter{bus: bus}
}

func (c *AnalyzeConverter) Description() string { return "Analyze 7.5 Data" }

func (c *AnalyzeConverter) Extensions() []string { return []string{"HDR"} }

func (c *AnalyzeConverter) CanExport() bool { return true }

// CanRead checks the header-length field, which is 348 in either byte order.
func (c *AnalyzeConverter) CanRead(path string, first512 []byte) bool {
	if len(first512) < 4 {
		return false
	}
	le := binary.LittleEndian.Uint32(first512)
	be := binary.BigEndian.Uint32(first512)
	return le == analyzeHeaderSize || be == analyzeHeaderSize
}

func (c *AnalyzeConverter) ConvertToRAW(path, tempDir string, noUserInteraction bool) (*types.RawInfo, error) {
	hdr, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(hdr) < analyzeHeaderSize {
		return nil, fmt.Errorf("%s is %d bytes, Analyze headers are %d", path, len(hdr), analyzeHeaderSize)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if binary.LittleEndian.Uint32(hdr) != analyzeHeaderSize {
		if binary.BigEndian.Uint32(hdr) != analyzeHeaderSize {
			return nil, fmt.Errorf("%s is not an Analyze header", path)
		}
		order = binary.BigEndian
	}

	dims := [8]uint16{}
	for i := range dims {
		dims[i] = order.Uint16(hdr[40+i*2:])
	}
	if dims[0] < 3 {
		return nil, fmt.Errorf("Analyze volume in %s has %d dimensions, need 3", path, dims[0])
	}
	datatype := order.Uint16(hdr[70:])
	pixdim := [3]float32{}
	for i := range pixdim {
		bits := order.Uint32(hdr[76+4+i*4:])
		pixdim[i] = math.Float32frombits(bits)
	}

	meta := types.VolumeMeta{
		Components: 1,
		Domain:     types.Vec3{X: uint64(dims[1]), Y: uint64(dims[2]), Z: uint64(dims[3])},
		Aspect:     types.AspectRatio{X: pixdim[0], Y: pixdim[1], Z: pixdim[2]},
		Title:      "Analyze data",
		Source:     filepath.Base(path),
	}
	if meta.Aspect.X == 0 || meta.Aspect.Y == 0 || meta.Aspect.Z == 0 {
		meta.Aspect = types.AspectRatio{X: 1, Y: 1, Z: 1}
	}
	switch datatype {
	case analyzeUnsignedChar:
		meta.BitWidth = 8
	case analyzeSignedShort:
		meta.BitWidth, meta.Signed = 16, true
	case analyzeSignedInt:
		meta.BitWidth, meta.Signed = 32, true
	case analyzeFloat:
		meta.BitWidth, meta.Signed, meta.Float = 32, true, true
	case analyzeDouble:
		meta.BitWidth, meta.Signed, meta.Float = 64, true, true
	default:
		return nil, fmt.Errorf("unsupported Analyze datatype %d", datatype)
	}
	meta.SwapEndian = (order == binary.BigEndian) == hostLittleEndian()

	img := strings.TrimSuffix(path, filepath.Ext(path)) + ".img"
	if _, err := os.Stat(img); err != nil {
		return nil, fmt.Errorf("Analyze image file %s is missing: %w", img, err)
	}
	return &types.RawInfo{Path: img, HeaderSkip: 0, Meta: meta}, nil
}

func (c *AnalyzeConverter) ConvertToNative(rawPath, target string, headerSkip uint64,
	meta types.VolumeMeta, noUserInteraction, quantizeTo8Bit bool) error {
	if meta.Components != 1 {
		return fmt.Errorf("Analyze stores scalar data only, got %d components", meta.Components)
	}
	raw, err := readRawPayload(rawPath, headerSkip, meta)
	if err != nil {
		return err
	}
	if quantizeTo8Bit && meta.BitWidth != 8 {
		vt, err := meta.VoxelType()
		if err != nil {
			return err
		}
		raw, _ = quantizeToByte(raw, vt)
		meta.BitWidth, meta.Signed, meta.Float = 8, false, false
	}

	var datatype uint16
	switch {
	case meta.Float && meta.BitWidth == 32:
		datatype = analyzeFloat
	case meta.Float && meta.BitWidth == 64:
		datatype = analyzeDouble
	case meta.BitWidth == 8 && !meta.Signed:
		datatype = analyzeUnsignedChar
	case meta.BitWidth == 16 && meta.Signed:
		datatype = analyzeSignedShort
	case meta.BitWidth == 32 && meta.Signed:
		datatype = analyzeSignedInt
	default:
		return fmt.Errorf("Analyze cannot store %d bit signed=%t data", meta.BitWidth, meta.Signed)
	}

	hdr := make([]byte, analyzeHeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:], analyzeHeaderSize)
	hdr[38] = 'r' // regular
	binary.LittleEndian.PutUint16(hdr[40:], 4) // dim count
	binary.LittleEndian.PutUint16(hdr[42:], uint16(meta.Domain.X))
	binary.LittleEndian.PutUint16(hdr[44:], uint16(meta.Domain.Y))
	binary.LittleEndian.PutUint16(hdr[46:], uint16(meta.Domain.Z))
	binary.LittleEndian.PutUint16(hdr[48:], 1)
	binary.LittleEndian.PutUint16(hdr[70:], datatype)
	binary.LittleEndian.PutUint16(hdr[72:], uint16(meta.BitWidth))
	binary.LittleEndian.PutUint32(hdr[80:], math.Float32bits(meta.Aspect.X))
	binary.LittleEndian.PutUint32(hdr[84:], math.Float32bits(meta.Aspect.Y))
	binary.LittleEndian.PutUint32(hdr[88:], math.Float32bits(meta.Aspect.Z))

	hdrTarget := target
	if !strings.EqualFold(filepath.Ext(target), ".hdr") {
		hdrTarget = strings.TrimSuffix(target, filepath.Ext(target)) + ".hdr"
	}
	imgTarget := strings.TrimSuffix(hdrTarget, filepath.Ext(hdrTarget)) + ".img"

	if err := os.WriteFile(hdrTarget, hdr, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", hdrTarget, err)
	}
	if err := os.WriteFile(imgTarget, raw, 0o644); err != nil {
		os.Remove(hdrTarget)
		return fmt.Errorf("failed to write %s: %w", imgTarget, err)
	}
	return nil
}
