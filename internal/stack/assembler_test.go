package stack

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/types"
)

// memElement is a stack element backed by an in-memory payload.
type memElement struct {
	name string
	data []byte
}

func (e *memElement) Path() string { return e.name }

func (e *memElement) Offset() int64 { return 0 }

func (e *memElement) Payload() ([]byte, error) { return e.data, nil }

func TestAssembleRGBPadding(t *testing.T) {
	// A 4x4x1 stack of 3 component voxels (1,2,3) assembles into 64 bytes
	// of 01 02 03 FF groups.
	slice := make([]byte, 4*4*3)
	for i := 0; i < 16; i++ {
		slice[i*3] = 1
		slice[i*3+1] = 2
		slice[i*3+2] = 3
	}
	d := &Descriptor{
		FileType:   FileTypeDICOM,
		Width:      4,
		Height:     4,
		Allocated:  8,
		Stored:     8,
		Components: 3,
		Aspect:     types.AspectRatio{X: 1, Y: 1, Z: 1},
		Elements:   []Element{&memElement{name: "s0", data: slice}},
	}

	tmp := filepath.Join(t.TempDir(), "rgba.raw")
	meta, err := Assemble(logging.Nop(), d, tmp)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}

	raw, err := os.ReadFile(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 64 {
		t.Fatalf("raw stream is %d bytes, want 64", len(raw))
	}
	for i := 0; i < 16; i++ {
		if !bytes.Equal(raw[i*4:i*4+4], []byte{1, 2, 3, 255}) {
			t.Fatalf("voxel %d = %v, want [1 2 3 255]", i, raw[i*4:i*4+4])
		}
	}
	if meta.Components != 4 {
		t.Errorf("meta components = %d, want 4", meta.Components)
	}
	if !meta.Domain.Equals(types.Vec3{X: 4, Y: 4, Z: 1}) {
		t.Errorf("meta domain = %s", meta.Domain)
	}
}

func TestAssembleEndianFlip(t *testing.T) {
	// A big endian 16 bit voxel 0x1234 lands host native in the stream.
	d := &Descriptor{
		FileType:   FileTypeDICOM,
		Width:      1,
		Height:     1,
		Allocated:  16,
		Stored:     16,
		Components: 1,
		BigEndian:  true,
		Aspect:     types.AspectRatio{X: 1, Y: 1, Z: 1},
		Elements:   []Element{&memElement{name: "s0", data: []byte{0x12, 0x34}}},
	}

	tmp := filepath.Join(t.TempDir(), "be.raw")
	if _, err := Assemble(logging.Nop(), d, tmp); err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	raw, err := os.ReadFile(tmp)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(raw, []byte{0x34, 0x12}) {
		t.Errorf("raw stream = %x, want 3412", raw)
	}
}

func TestAssembleSignHeuristic(t *testing.T) {
	mk := func(allocated uint64, force *bool) types.VolumeMeta {
		d := &Descriptor{
			FileType:   FileTypeDICOM,
			Width:      1,
			Height:     1,
			Allocated:  allocated,
			Components: 1,
			Aspect:     types.AspectRatio{X: 1, Y: 1, Z: 1},
			ForceSigned: force,
			Elements: []Element{&memElement{
				name: "s0", data: make([]byte, allocated/8)}},
		}
		meta, err := Assemble(logging.Nop(), d, filepath.Join(t.TempDir(), "s.raw"))
		if err != nil {
			t.Fatalf("Assemble failed: %v", err)
		}
		return meta
	}

	if mk(16, nil).Signed {
		t.Error("16 bit stack assumed signed")
	}
	if !mk(32, nil).Signed {
		t.Error("32 bit stack not assumed signed")
	}
	forced := false
	if mk(32, &forced).Signed {
		t.Error("caller override ignored")
	}
}

func TestAssembleEmptyStack(t *testing.T) {
	d := &Descriptor{FileType: FileTypeDICOM}
	if _, err := Assemble(logging.Nop(), d, filepath.Join(t.TempDir(), "x.raw")); err == nil {
		t.Error("empty stack accepted")
	}
}
