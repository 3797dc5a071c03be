// Package stack scans directories for slice stacks (DICOM series and
// stacked 2D images) and assembles them into contiguous raw streams.
package stack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-uvf/internal/types"
)

// Transfer syntaxes with uncompressed payloads. Everything else is treated
// as an encapsulated JPEG family syntax.
const (
	syntaxImplicitLittle = "1.2.840.10008.1.2"
	syntaxExplicitLittle = "1.2.840.10008.1.2.1"
	syntaxExplicitBig    = "1.2.840.10008.1.2.2"
)

type dicomTag struct {
	group, element uint16
}

var (
	tagModality        = dicomTag{0x0008, 0x0060}
	tagSeriesDesc      = dicomTag{0x0008, 0x103E}
	tagSliceThickness  = dicomTag{0x0018, 0x0050}
	tagSeriesUID       = dicomTag{0x0020, 0x000E}
	tagInstanceNumber  = dicomTag{0x0020, 0x0013}
	tagSamplesPerPixel = dicomTag{0x0028, 0x0002}
	tagRows            = dicomTag{0x0028, 0x0010}
	tagColumns         = dicomTag{0x0028, 0x0011}
	tagPixelSpacing    = dicomTag{0x0028, 0x0030}
	tagBitsAllocated   = dicomTag{0x0028, 0x0100}
	tagBitsStored      = dicomTag{0x0028, 0x0101}
	tagPixelData       = dicomTag{0x7FE0, 0x0010}
)

// dicomFile is the slice-relevant subset of one DICOM file.
type dicomFile struct {
	path          string
	seriesUID     string
	modality      string
	description   string
	instance      int
	rows, cols    uint64
	samples       uint64
	allocated     uint64
	stored        uint64
	spacingX      float32
	spacingY      float32
	thickness     float32
	bigEndian     bool
	jpegEncoded   bool
	payloadOffset int64
	payloadSize   uint32
}

// isDICOM checks the "DICM" marker behind the 128 byte preamble.
func isDICOM(first512 []byte) bool {
	return len(first512) >= 132 && bytes.Equal(first512[128:132], []byte("DICM"))
}

// parseDICOMFile walks the element stream of one file and collects the tags
// the stack scanner needs. VRs with explicit 32 bit lengths and sequences
// are skipped structurally.
func parseDICOMFile(path string) (*dicomFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !isDICOM(data) {
		return nil, fmt.Errorf("%s has no DICM marker", path)
	}

	df := &dicomFile{path: path, samples: 1}

	// File meta group is always explicit VR little endian.
	pos := 132
	syntax := syntaxExplicitLittle
	metaEnd := len(data)
	for pos+8 <= len(data) {
		group := binary.LittleEndian.Uint16(data[pos:])
		if group != 0x0002 {
			break
		}
		element := binary.LittleEndian.Uint16(data[pos+2:])
		vr := string(data[pos+4 : pos+6])
		var length int
		var hdr int
		if longVR(vr) {
			length = int(binary.LittleEndian.Uint32(data[pos+8:]))
			hdr = 12
		} else {
			length = int(binary.LittleEndian.Uint16(data[pos+6:]))
			hdr = 8
		}
		if pos+hdr+length > len(data) {
			return nil, fmt.Errorf("truncated meta element in %s", path)
		}
		if group == 0x0002 && element == 0x0010 {
			syntax = strings.TrimRight(string(data[pos+hdr:pos+hdr+length]), "\x00 ")
		}
		pos += hdr + length
		metaEnd = pos
	}
	pos = metaEnd

	explicit := syntax != syntaxImplicitLittle
	var order binary.ByteOrder = binary.LittleEndian
	if syntax == syntaxExplicitBig {
		order = binary.BigEndian
		df.bigEndian = true
	}
	switch syntax {
	case syntaxImplicitLittle, syntaxExplicitLittle, syntaxExplicitBig:
	default:
		df.jpegEncoded = true
	}

	for pos+8 <= len(data) {
		group := order.Uint16(data[pos:])
		element := order.Uint16(data[pos+2:])
		tag := dicomTag{group, element}

		var vr string
		var length int
		var hdr int
		if explicit {
			vr = string(data[pos+4 : pos+6])
			if longVR(vr) {
				length = int(order.Uint32(data[pos+8:]))
				hdr = 12
			} else {
				length = int(order.Uint16(data[pos+6:]))
				hdr = 8
			}
		} else {
			vr = ""
			length = int(order.Uint32(data[pos+4:]))
			hdr = 8
		}

		if tag == tagPixelData {
			df.payloadOffset = int64(pos + hdr)
			if length == -1 || uint32(length) == 0xFFFFFFFF {
				// Encapsulated payload: first fragment after the basic
				// offset table carries the codestream.
				off, size, err := firstFragment(data, pos+hdr, order)
				if err != nil {
					return nil, fmt.Errorf("bad encapsulated pixel data in %s: %w", path, err)
				}
				df.payloadOffset = int64(off)
				df.payloadSize = size
				df.jpegEncoded = true
			} else {
				df.payloadSize = uint32(length)
			}
			break
		}

		if length < 0 || pos+hdr+length > len(data) {
			// Sequences with undefined length are not tag soup we can
			// skip linearly; give up on the remainder.
			break
		}
		value := data[pos+hdr : pos+hdr+length]
		df.applyTag(tag, vr, value, order)
		pos += hdr + length
	}

	if df.rows == 0 || df.cols == 0 || df.allocated == 0 || df.payloadSize == 0 {
		return nil, fmt.Errorf("%s carries no image slice", path)
	}
	return df, nil
}

func longVR(vr string) bool {
	switch vr {
	case "OB", "OW", "OF", "SQ", "UT", "UN":
		return true
	}
	return false
}

func (df *dicomFile) applyTag(tag dicomTag, vr string, value []byte, order binary.ByteOrder) {
	str := func() string { return strings.TrimSpace(strings.TrimRight(string(value), "\x00")) }
	u16 := func() uint64 {
		if len(value) >= 2 {
			return uint64(order.Uint16(value))
		}
		return 0
	}
	switch tag {
	case tagModality:
		df.modality = str()
	case tagSeriesDesc:
		df.description = str()
	case tagSeriesUID:
		df.seriesUID = str()
	case tagInstanceNumber:
		n, _ := strconv.Atoi(str())
		df.instance = n
	case tagSamplesPerPixel:
		df.samples = u16()
	case tagRows:
		df.rows = u16()
	case tagColumns:
		df.cols = u16()
	case tagBitsAllocated:
		df.allocated = u16()
	case tagBitsStored:
		df.stored = u16()
	case tagSliceThickness:
		f, _ := strconv.ParseFloat(str(), 32)
		df.thickness = float32(f)
	case tagPixelSpacing:
		parts := strings.Split(str(), "\\")
		if len(parts) == 2 {
			fx, _ := strconv.ParseFloat(strings.TrimSpace(parts[0]), 32)
			fy, _ := strconv.ParseFloat(strings.TrimSpace(parts[1]), 32)
			df.spacingX, df.spacingY = float32(fx), float32(fy)
		}
	}
}

// firstFragment walks an encapsulated pixel data item list and returns the
// offset and size of the first real fragment.
func firstFragment(data []byte, pos int, order binary.ByteOrder) (int, uint32, error) {
	skippedOffsetTable := false
	for pos+8 <= len(data) {
		group := order.Uint16(data[pos:])
		element := order.Uint16(data[pos+2:])
		length := order.Uint32(data[pos+4:])
		if group != 0xFFFE || element != 0xE000 {
			return 0, 0, fmt.Errorf("expected item tag, got (%04X,%04X)", group, element)
		}
		if !skippedOffsetTable {
			skippedOffsetTable = true
			pos += 8 + int(length)
			continue
		}
		if pos+8+int(length) > len(data) {
			return 0, 0, fmt.Errorf("fragment extends past file end")
		}
		return pos + 8, length, nil
	}
	return 0, 0, fmt.Errorf("no fragment found")
}

// groupDICOMStacks buckets parsed files into stacks sharing series and
// geometry, ordered by instance number.
func groupDICOMStacks(files []*dicomFile) []*Descriptor {
	type key struct {
		uid        string
		rows, cols uint64
		allocated  uint64
		samples    uint64
		big        bool
		jpeg       bool
	}
	buckets := make(map[key][]*dicomFile)
	var order []key
	for _, df := range files {
		k := key{df.seriesUID, df.rows, df.cols, df.allocated, df.samples, df.bigEndian, df.jpegEncoded}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], df)
	}

	var stacks []*Descriptor
	for _, k := range order {
		group := buckets[k]
		sort.Slice(group, func(i, j int) bool { return group[i].instance < group[j].instance })
		first := group[0]
		aspect := first.spacing()
		d := &Descriptor{
			FileType:    FileTypeDICOM,
			Width:       first.cols,
			Height:      first.rows,
			Allocated:   first.allocated,
			Stored:      first.stored,
			Components:  first.samples,
			BigEndian:   first.bigEndian,
			JPEGEncoded: first.jpegEncoded,
			Aspect:      aspect,
			Description: fmt.Sprintf("DICOM Stack: %s", first.description),
			Modality:    first.modality,
		}
		for _, df := range group {
			d.Elements = append(d.Elements, &dicomElement{
				path:   df.path,
				offset: df.payloadOffset,
				size:   df.payloadSize,
			})
		}
		stacks = append(stacks, d)
	}
	return stacks
}

func (df *dicomFile) spacing() types.AspectRatio {
	sx, sy, sz := df.spacingX, df.spacingY, df.thickness
	if sx == 0 {
		sx = 1
	}
	if sy == 0 {
		sy = 1
	}
	if sz == 0 {
		sz = 1
	}
	return types.AspectRatio{X: sx, Y: sy, Z: sz}
}

// dicomElement reads the raw payload of one slice at a byte offset.
type dicomElement struct {
	path   string
	offset int64
	size   uint32
}

func (e *dicomElement) Path() string { return e.path }

func (e *dicomElement) Offset() int64 { return e.offset }

func (e *dicomElement) Payload() ([]byte, error) {
	f, err := os.Open(e.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", e.path, err)
	}
	defer f.Close()
	buf := make([]byte, e.size)
	if _, err := f.ReadAt(buf, e.offset); err != nil {
		return nil, fmt.Errorf("failed to read payload of %s: %w", e.path, err)
	}
	return buf, nil
}
