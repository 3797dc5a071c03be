package converters

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/types"
	"github.com/deploymenttheory/go-uvf/internal/uvf"
)

// NRRDConverter reads and writes Nearly Raw Raster Data files with raw
// encoding, attached or detached headers. It doubles as the neutral
// intermediate format for rebricking.
type NRRDConverter struct {
	bus *logging.Bus
}

func NewNRRDConverter(bus *logging.Bus) *NRRDConverter {
	return &NRRDConverter{bus: bus}
}

func (c *NRRDConverter) Description() string { return "Nearly Raw Raster Data" }

func (c *NRRDConverter) Extensions() []string { return []string{"NRRD", "NHDR"} }

func (c *NRRDConverter) CanExport() bool { return true }

func (c *NRRDConverter) CanRead(path string, first512 []byte) bool {
	return bytes.HasPrefix(first512, []byte("NRRD"))
}

var nrrdTypes = map[string]struct {
	bitWidth uint64
	signed   bool
	float    bool
}{
	"signed char": {8, true, false}, "int8": {8, true, false}, "int8_t": {8, true, false},
	"uchar": {8, false, false}, "unsigned char": {8, false, false}, "uint8": {8, false, false}, "uint8_t": {8, false, false},
	"short": {16, true, false}, "short int": {16, true, false}, "int16": {16, true, false}, "int16_t": {16, true, false},
	"ushort": {16, false, false}, "unsigned short": {16, false, false}, "uint16": {16, false, false}, "uint16_t": {16, false, false},
	"int": {32, true, false}, "int32": {32, true, false}, "int32_t": {32, true, false},
	"uint": {32, false, false}, "unsigned int": {32, false, false}, "uint32": {32, false, false}, "uint32_t": {32, false, false},
	"float":  {32, true, true},
	"double": {64, true, true},
}

func (c *NRRDConverter) ConvertToRAW(path, tempDir string, noUserInteraction bool) (*types.RawInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line, err := r.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, "NRRD") {
		return nil, fmt.Errorf("%s is not a NRRD file", path)
	}

	meta := types.VolumeMeta{
		Components: 1,
		Aspect:     types.AspectRatio{X: 1, Y: 1, Z: 1},
		Title:      "NRRD data",
		Source:     filepath.Base(path),
	}
	var dataFile string
	var bigEndian bool
	encoding := "raw"
	offset := uint64(len(line))

	for {
		line, err = r.ReadString('\n')
		offset += uint64(len(line))
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read NRRD header: %w", err)
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, value, found := strings.Cut(trimmed, ":")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch key {
		case "type":
			t, ok := nrrdTypes[strings.ToLower(value)]
			if !ok {
				return nil, fmt.Errorf("unsupported NRRD type %q", value)
			}
			meta.BitWidth, meta.Signed, meta.Float = t.bitWidth, t.signed, t.float
		case "dimension":
			if value != "3" {
				return nil, fmt.Errorf("only 3 dimensional NRRDs are supported, got %s", value)
			}
		case "sizes":
			dims, err := parseUints(value, 3)
			if err != nil {
				return nil, fmt.Errorf("bad NRRD sizes %q: %w", value, err)
			}
			meta.Domain = types.Vec3{X: dims[0], Y: dims[1], Z: dims[2]}
		case "spacings":
			sp := strings.Fields(value)
			if len(sp) == 3 {
				fx, _ := strconv.ParseFloat(sp[0], 32)
				fy, _ := strconv.ParseFloat(sp[1], 32)
				fz, _ := strconv.ParseFloat(sp[2], 32)
				meta.Aspect = types.AspectRatio{X: float32(fx), Y: float32(fy), Z: float32(fz)}
			}
		case "endian":
			bigEndian = strings.EqualFold(value, "big")
		case "encoding":
			encoding = strings.ToLower(value)
		case "data file", "datafile":
			dataFile = value
		}
		if err == io.EOF {
			break
		}
	}

	if encoding != "raw" {
		return nil, fmt.Errorf("unsupported NRRD encoding %q", encoding)
	}
	if meta.BitWidth == 0 || meta.Domain.Volume() == 0 {
		return nil, fmt.Errorf("NRRD header in %s is missing type or sizes", path)
	}
	meta.SwapEndian = bigEndian == hostLittleEndian()

	if dataFile != "" {
		// Detached header: payload lives next to it.
		if !filepath.IsAbs(dataFile) {
			dataFile = filepath.Join(filepath.Dir(path), dataFile)
		}
		return &types.RawInfo{Path: dataFile, HeaderSkip: 0, Meta: meta}, nil
	}
	return &types.RawInfo{Path: path, HeaderSkip: offset, Meta: meta}, nil
}

func (c *NRRDConverter) ConvertToNative(rawPath, target string, headerSkip uint64,
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

	var typeName string
	switch {
	case meta.Float && meta.BitWidth == 32:
		typeName = "float"
	case meta.Float && meta.BitWidth == 64:
		typeName = "double"
	case meta.Signed:
		typeName = fmt.Sprintf("int%d", meta.BitWidth)
	default:
		typeName = fmt.Sprintf("uint%d", meta.BitWidth)
	}

	var hdr strings.Builder
	hdr.WriteString("NRRD0001\n")
	fmt.Fprintf(&hdr, "type: %s\n", typeName)
	fmt.Fprintf(&hdr, "dimension: 3\n")
	fmt.Fprintf(&hdr, "sizes: %d %d %d\n", meta.Domain.X, meta.Domain.Y, meta.Domain.Z)
	fmt.Fprintf(&hdr, "spacings: %g %g %g\n", meta.Aspect.X, meta.Aspect.Y, meta.Aspect.Z)
	if meta.BitWidth > 8 {
		fmt.Fprintf(&hdr, "endian: %s\n", hostEndianName())
	}
	hdr.WriteString("encoding: raw\n")
	hdr.WriteString("\n")

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := out.WriteString(hdr.String()); err != nil {
		out.Close()
		os.Remove(target)
		return fmt.Errorf("failed to write NRRD header: %w", err)
	}
	if _, err := out.Write(raw); err != nil {
		out.Close()
		os.Remove(target)
		return fmt.Errorf("failed to write NRRD payload: %w", err)
	}
	return out.Close()
}

func parseUints(s string, n int) ([]uint64, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(fields))
	}
	out := make([]uint64, n)
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// readRawPayload loads the voxel payload of a raw intermediate, skipping
// header bytes and truncating trailing garbage.
func readRawPayload(rawPath string, headerSkip uint64, meta types.VolumeMeta) ([]byte, error) {
	raw, err := os.ReadFile(rawPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read raw stream %s: %w", rawPath, err)
	}
	want := meta.RawSize()
	if uint64(len(raw)) < headerSkip+want {
		return nil, fmt.Errorf("raw stream %s is %d bytes, need %d after %d header bytes",
			rawPath, len(raw), want, headerSkip)
	}
	return raw[headerSkip : headerSkip+want], nil
}

func hostLittleEndian() bool {
	return hostEndianName() == "little"
}

func hostEndianName() string {
	if uvf.HostIsLittleEndian() {
		return "little"
	}
	return "big"
}
