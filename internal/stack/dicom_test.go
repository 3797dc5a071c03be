package stack

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// writeElement appends one explicit VR little endian element.
func writeElement(buf *bytes.Buffer, group, element uint16, vr string, value []byte) {
	if len(value)%2 == 1 {
		value = append(value, 0x00)
	}
	binary.Write(buf, binary.LittleEndian, group)
	binary.Write(buf, binary.LittleEndian, element)
	buf.WriteString(vr)
	if longVR(vr) {
		buf.Write([]byte{0, 0})
		binary.Write(buf, binary.LittleEndian, uint32(len(value)))
	} else {
		binary.Write(buf, binary.LittleEndian, uint16(len(value)))
	}
	buf.Write(value)
}

func u16le(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// writeTestDICOM builds a minimal explicit VR little endian DICOM slice.
func writeTestDICOM(t *testing.T, path, seriesUID string, instance string, payload []byte) {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(make([]byte, 128))
	buf.WriteString("DICM")
	writeElement(&buf, 0x0002, 0x0010, "UI", []byte(syntaxExplicitLittle))
	writeElement(&buf, 0x0008, 0x0060, "CS", []byte("CT"))
	writeElement(&buf, 0x0008, 0x103E, "LO", []byte("test series"))
	writeElement(&buf, 0x0018, 0x0050, "DS", []byte("2.5"))
	writeElement(&buf, 0x0020, 0x000E, "UI", []byte(seriesUID))
	writeElement(&buf, 0x0020, 0x0013, "IS", []byte(instance))
	writeElement(&buf, 0x0028, 0x0002, "US", u16le(1))
	writeElement(&buf, 0x0028, 0x0010, "US", u16le(2))
	writeElement(&buf, 0x0028, 0x0011, "US", u16le(2))
	writeElement(&buf, 0x0028, 0x0030, "DS", []byte("1.5\\1.5"))
	writeElement(&buf, 0x0028, 0x0100, "US", u16le(8))
	writeElement(&buf, 0x0028, 0x0101, "US", u16le(8))
	writeElement(&buf, 0x7FE0, 0x0010, "OB", payload)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestParseDICOMFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slice.dcm")
	payload := []byte{10, 20, 30, 40}
	writeTestDICOM(t, path, "1.2.3.4", "7", payload)

	df, err := parseDICOMFile(path)
	if err != nil {
		t.Fatalf("parseDICOMFile failed: %v", err)
	}
	if df.seriesUID != "1.2.3.4" {
		t.Errorf("seriesUID = %q", df.seriesUID)
	}
	if df.modality != "CT" {
		t.Errorf("modality = %q", df.modality)
	}
	if df.instance != 7 {
		t.Errorf("instance = %d", df.instance)
	}
	if df.rows != 2 || df.cols != 2 {
		t.Errorf("geometry = %dx%d, want 2x2", df.cols, df.rows)
	}
	if df.allocated != 8 || df.stored != 8 {
		t.Errorf("bits = %d (%d)", df.allocated, df.stored)
	}
	if df.spacingX != 1.5 || df.spacingY != 1.5 || df.thickness != 2.5 {
		t.Errorf("spacing = %g %g %g", df.spacingX, df.spacingY, df.thickness)
	}
	if df.bigEndian || df.jpegEncoded {
		t.Error("plain little endian slice misclassified")
	}

	el := &dicomElement{path: path, offset: df.payloadOffset, size: df.payloadSize}
	got, err := el.Payload()
	if err != nil {
		t.Fatalf("Payload failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %v, want %v", got, payload)
	}
}

func TestGroupDICOMStacks(t *testing.T) {
	dir := t.TempDir()
	writeTestDICOM(t, filepath.Join(dir, "b.dcm"), "series-a", "2", []byte{4, 5, 6, 7})
	writeTestDICOM(t, filepath.Join(dir, "a.dcm"), "series-a", "1", []byte{0, 1, 2, 3})
	writeTestDICOM(t, filepath.Join(dir, "c.dcm"), "series-b", "1", []byte{9, 9, 9, 9})

	var files []*dicomFile
	for _, name := range []string{"b.dcm", "a.dcm", "c.dcm"} {
		df, err := parseDICOMFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		files = append(files, df)
	}

	stacks := groupDICOMStacks(files)
	if len(stacks) != 2 {
		t.Fatalf("got %d stacks, want 2", len(stacks))
	}
	if stacks[0].SliceCount() != 2 || stacks[1].SliceCount() != 1 {
		t.Errorf("slice counts = %d, %d; want 2, 1",
			stacks[0].SliceCount(), stacks[1].SliceCount())
	}
	// Elements ordered by instance number, not scan order.
	if filepath.Base(stacks[0].Elements[0].Path()) != "a.dcm" {
		t.Errorf("first element = %s, want a.dcm", stacks[0].Elements[0].Path())
	}
	if stacks[0].Modality != "CT" || stacks[0].FileType != FileTypeDICOM {
		t.Errorf("stack misdescribed: %+v", stacks[0])
	}
}
