package converters

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/types"
)

// QVISConverter handles QVis dat/raw pairs: a small text descriptor next to
// a headerless raw payload.
type QVISConverter struct {
	bus *logging.Bus
}

func NewQVISConverter(bus *logging.Bus) *QVISConverter {
	return &QVISConverter{bus: bus}
}

func (c *QVISConverter) Description() string { return "QVis Data" }

func (c *QVISConverter) Extensions() []string { return []string{"DAT"} }

func (c *QVISConverter) CanExport() bool { return true }

func (c *QVISConverter) CanRead(path string, first512 []byte) bool {
	return bytes.Contains(first512, []byte("ObjectFileName"))
}

func (c *QVISConverter) ConvertToRAW(path, tempDir string, noUserInteraction bool) (*types.RawInfo, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	meta := types.VolumeMeta{
		Components: 1,
		Aspect:     types.AspectRatio{X: 1, Y: 1, Z: 1},
		Title:      "QVis data",
		Source:     filepath.Base(path),
	}
	var rawFile string
	for _, line := range strings.Split(string(text), "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "objectfilename":
			rawFile = value
		case "resolution":
			dims, err := parseUints(value, 3)
			if err != nil {
				return nil, fmt.Errorf("bad resolution %q: %w", value, err)
			}
			meta.Domain = types.Vec3{X: dims[0], Y: dims[1], Z: dims[2]}
		case "slicethickness":
			sp := strings.Fields(value)
			if len(sp) == 3 {
				fx, _ := strconv.ParseFloat(sp[0], 32)
				fy, _ := strconv.ParseFloat(sp[1], 32)
				fz, _ := strconv.ParseFloat(sp[2], 32)
				meta.Aspect = types.AspectRatio{X: float32(fx), Y: float32(fy), Z: float32(fz)}
			}
		case "format":
			switch strings.ToUpper(value) {
			case "CHAR":
				meta.BitWidth, meta.Signed = 8, true
			case "UCHAR", "BYTE":
				meta.BitWidth = 8
			case "SHORT":
				meta.BitWidth, meta.Signed = 16, true
			case "USHORT":
				meta.BitWidth = 16
			case "FLOAT":
				meta.BitWidth, meta.Signed, meta.Float = 32, true, true
			case "UCHAR4":
				meta.BitWidth, meta.Components = 8, 4
			default:
				return nil, fmt.Errorf("unsupported QVis format %q", value)
			}
		}
	}

	if rawFile == "" || meta.Domain.Volume() == 0 || meta.BitWidth == 0 {
		return nil, fmt.Errorf("incomplete QVis descriptor %s", path)
	}
	if !filepath.IsAbs(rawFile) {
		rawFile = filepath.Join(filepath.Dir(path), rawFile)
	}
	return &types.RawInfo{Path: rawFile, HeaderSkip: 0, Meta: meta}, nil
}

func (c *QVISConverter) ConvertToNative(rawPath, target string, headerSkip uint64,
	meta types.VolumeMeta, noUserInteraction, quantizeTo8Bit bool) error {
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
	case meta.Float:
		format = "FLOAT"
	case meta.BitWidth == 8 && meta.Components == 4:
		format = "UCHAR4"
	case meta.BitWidth == 8 && meta.Signed:
		format = "CHAR"
	case meta.BitWidth == 8:
		format = "UCHAR"
	case meta.BitWidth == 16 && meta.Signed:
		format = "SHORT"
	case meta.BitWidth == 16:
		format = "USHORT"
	default:
		return fmt.Errorf("QVis cannot store %d bit data", meta.BitWidth)
	}

	rawName := strings.TrimSuffix(filepath.Base(target), filepath.Ext(target)) + ".raw"
	rawTarget := filepath.Join(filepath.Dir(target), rawName)
	if err := os.WriteFile(rawTarget, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rawTarget, err)
	}

	var hdr strings.Builder
	fmt.Fprintf(&hdr, "ObjectFileName: %s\n", rawName)
	fmt.Fprintf(&hdr, "TaggedFileName: ---\n")
	fmt.Fprintf(&hdr, "Resolution: %d %d %d\n", meta.Domain.X, meta.Domain.Y, meta.Domain.Z)
	fmt.Fprintf(&hdr, "SliceThickness: %g %g %g\n", meta.Aspect.X, meta.Aspect.Y, meta.Aspect.Z)
	fmt.Fprintf(&hdr, "Format: %s\n", format)
	fmt.Fprintf(&hdr, "ObjectModel: RGBA\n")
	if err := os.WriteFile(target, []byte(hdr.String()), 0o644); err != nil {
		os.Remove(rawTarget)
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}
