package converters

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/types"
)

// BOVConverter handles "brick of values" descriptors: a text header naming
// a headerless raw data file.
type BOVConverter struct {
	bus *logging.Bus
}

func NewBOVConverter(bus *logging.Bus) *BOVConverter {
	return &BOVConverter{bus: bus}
}

func (c *BOVConverter) Description() string { return "Brick of Values" }

func (c *BOVConverter) Extensions() []string { return []string{"BOV"} }

func (c *BOVConverter) CanExport() bool { return true }

func (c *BOVConverter) CanRead(path string, first512 []byte) bool {
	return bytes.Contains(first512, []byte("DATA_FILE")) ||
		bytes.Contains(first512, []byte("DATA FILE"))
}

func (c *BOVConverter) ConvertToRAW(path, tempDir string, noUserInteraction bool) (*types.RawInfo, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	meta := types.VolumeMeta{
		Components: 1,
		Aspect:     types.AspectRatio{X: 1, Y: 1, Z: 1},
		Title:      "BOV data",
		Source:     filepath.Base(path),
	}
	var dataFile string
	var bigEndian bool
	for _, line := range strings.Split(string(text), "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(key), " ", "_"))
		value = strings.TrimSpace(value)
		switch key {
		case "DATA_FILE":
			dataFile = value
		case "DATA_SIZE":
			dims, err := parseUints(value, 3)
			if err != nil {
				return nil, fmt.Errorf("bad DATA_SIZE %q: %w", value, err)
			}
			meta.Domain = types.Vec3{X: dims[0], Y: dims[1], Z: dims[2]}
		case "DATA_FORMAT":
			switch strings.ToUpper(value) {
			case "BYTE", "CHAR":
				meta.BitWidth = 8
			case "SHORT":
				meta.BitWidth, meta.Signed = 16, true
			case "INT":
				meta.BitWidth, meta.Signed = 32, true
			case "FLOAT":
				meta.BitWidth, meta.Signed, meta.Float = 32, true, true
			case "DOUBLE":
				meta.BitWidth, meta.Signed, meta.Float = 64, true, true
			default:
				return nil, fmt.Errorf("unsupported DATA_FORMAT %q", value)
			}
		case "DATA_ENDIAN":
			bigEndian = strings.EqualFold(value, "BIG")
		}
	}

	if dataFile == "" || meta.Domain.Volume() == 0 || meta.BitWidth == 0 {
		return nil, fmt.Errorf("incomplete BOV descriptor %s", path)
	}
	meta.SwapEndian = bigEndian == hostLittleEndian()
	if !filepath.IsAbs(dataFile) {
		dataFile = filepath.Join(filepath.Dir(path), dataFile)
	}
	return &types.RawInfo{Path: dataFile, HeaderSkip: 0, Meta: meta}, nil
}

func (c *BOVConverter) ConvertToNative(rawPath, target string, headerSkip uint64,
	meta types.VolumeMeta, noUserInteraction, quantizeTo8Bit bool) error {
	if meta.Components != 1 {
		return fmt.Errorf("BOV stores scalar data only, got %d components", meta.Components)
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

	var format string
	switch {
	case meta.Float && meta.BitWidth == 32:
		format = "FLOAT"
	case meta.Float && meta.BitWidth == 64:
		format = "DOUBLE"
	case meta.BitWidth == 8:
		format = "BYTE"
	case meta.BitWidth == 16:
		format = "SHORT"
	case meta.BitWidth == 32:
		format = "INT"
	default:
		return fmt.Errorf("BOV cannot store %d bit data", meta.BitWidth)
	}

	rawName := strings.TrimSuffix(filepath.Base(target), filepath.Ext(target)) + ".raw"
	rawTarget := filepath.Join(filepath.Dir(target), rawName)
	if err := os.WriteFile(rawTarget, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rawTarget, err)
	}

	var hdr strings.Builder
	fmt.Fprintf(&hdr, "DATA_FILE: %s\n", rawName)
	fmt.Fprintf(&hdr, "DATA_SIZE: %d %d %d\n", meta.Domain.X, meta.Domain.Y, meta.Domain.Z)
	fmt.Fprintf(&hdr, "DATA_FORMAT: %s\n", format)
	fmt.Fprintf(&hdr, "DATA_ENDIAN: %s\n", strings.ToUpper(hostEndianName()))
	fmt.Fprintf(&hdr, "BRICK_SIZE: %g %g %g\n",
		float32(meta.Domain.X)*meta.Aspect.X,
		float32(meta.Domain.Y)*meta.Aspect.Y,
		float32(meta.Domain.Z)*meta.Aspect.Z)
	fmt.Fprintf(&hdr, "CENTERING: zonal\n")
	if err := os.WriteFile(target, []byte(hdr.String()), 0o644); err != nil {
		os.Remove(rawTarget)
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}
