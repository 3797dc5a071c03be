package converters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/types"
)

func TestNRRDCanRead(t *testing.T) {
	c := NewNRRDConverter(logging.Nop())
	if !c.CanRead("x.nrrd", []byte("NRRD0001\n")) {
		t.Error("NRRD magic rejected")
	}
	if c.CanRead("x.nrrd", []byte("DATA_FILE: x")) {
		t.Error("BOV header accepted")
	}
}

func TestNRRDAttachedHeaderRoundTrip(t *testing.T) {
	c := NewNRRDConverter(logging.Nop())
	dir := t.TempDir()

	payload := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	meta := types.VolumeMeta{
		BitWidth:   8,
		Components: 1,
		Domain:     types.Vec3{X: 2, Y: 2, Z: 2},
		Aspect:     types.AspectRatio{X: 1, Y: 1, Z: 1},
	}
	raw := filepath.Join(dir, "in.raw")
	if err := os.WriteFile(raw, payload, 0o644); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(dir, "out.nrrd")
	if err := c.ConvertToNative(raw, target, 0, meta, true, false); err != nil {
		t.Fatalf("ConvertToNative failed: %v", err)
	}

	info, err := c.ConvertToRAW(target, dir, true)
	if err != nil {
		t.Fatalf("ConvertToRAW failed: %v", err)
	}
	if info.Meta.BitWidth != 8 || info.Meta.Signed || info.Meta.Float {
		t.Errorf("round trip type = %d/%t/%t, want 8/false/false",
			info.Meta.BitWidth, info.Meta.Signed, info.Meta.Float)
	}
	if !info.Meta.Domain.Equals(meta.Domain) {
		t.Errorf("round trip domain = %s, want %s", info.Meta.Domain, meta.Domain)
	}
	if info.Meta.SwapEndian {
		t.Error("same host round trip must not require an endian swap")
	}

	got, err := os.ReadFile(info.Path)
	if err != nil {
		t.Fatal(err)
	}
	data := got[info.HeaderSkip:]
	if len(data) != len(payload) {
		t.Fatalf("payload is %d bytes, want %d", len(data), len(payload))
	}
	for i := range payload {
		if data[i] != payload[i] {
			t.Fatalf("payload[%d] = %d, want %d", i, data[i], payload[i])
		}
	}
}

func TestNRRDDetachedHeader(t *testing.T) {
	c := NewNRRDConverter(logging.Nop())
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "vol.raw"),
		make([]byte, 3*3*3*2), 0o644); err != nil {
		t.Fatal(err)
	}
	hdr := "NRRD0001\n" +
		"type: ushort\n" +
		"dimension: 3\n" +
		"sizes: 3 3 3\n" +
		"endian: big\n" +
		"encoding: raw\n" +
		"data file: vol.raw\n"
	nhdr := filepath.Join(dir, "vol.nhdr")
	if err := os.WriteFile(nhdr, []byte(hdr), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := c.ConvertToRAW(nhdr, dir, true)
	if err != nil {
		t.Fatalf("ConvertToRAW failed: %v", err)
	}
	if info.Path != filepath.Join(dir, "vol.raw") {
		t.Errorf("payload path = %s", info.Path)
	}
	if info.HeaderSkip != 0 {
		t.Errorf("detached header skip = %d, want 0", info.HeaderSkip)
	}
	if !info.Meta.SwapEndian {
		t.Error("big endian payload on a little endian host needs a swap")
	}
	if info.Delete {
		t.Error("converter must not pass ownership of the user's data file")
	}
}

func TestNRRDRejectsUnsupportedEncoding(t *testing.T) {
	c := NewNRRDConverter(logging.Nop())
	dir := t.TempDir()
	hdr := "NRRD0001\ntype: uchar\ndimension: 3\nsizes: 2 2 2\nencoding: gzip\n\n"
	path := filepath.Join(dir, "z.nrrd")
	if err := os.WriteFile(path, []byte(hdr), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ConvertToRAW(path, dir, true); err == nil {
		t.Error("gzip encoding accepted")
	}
}
