package stack

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/deploymenttheory/go-uvf/internal/logging"
)

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestScanDirectory(t *testing.T) {
	dir := t.TempDir()

	// Two DICOM series of 2 and 3 slices plus a stack of 3 images.
	writeTestDICOM(t, filepath.Join(dir, "a1.dcm"), "series-a", "1", []byte{1, 1, 1, 1})
	writeTestDICOM(t, filepath.Join(dir, "a2.dcm"), "series-a", "2", []byte{2, 2, 2, 2})
	writeTestDICOM(t, filepath.Join(dir, "b1.dcm"), "series-b", "1", []byte{3, 3, 3, 3})
	writeTestDICOM(t, filepath.Join(dir, "b2.dcm"), "series-b", "2", []byte{4, 4, 4, 4})
	writeTestDICOM(t, filepath.Join(dir, "b3.dcm"), "series-b", "3", []byte{5, 5, 5, 5})
	for _, name := range []string{"s1.png", "s2.png", "s3.png"} {
		writeTestPNG(t, filepath.Join(dir, name), 4, 4)
	}
	// A stray unrelated file is ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	stacks, err := NewScanner(logging.Nop()).ScanDirectory(dir)
	if err != nil {
		t.Fatalf("ScanDirectory failed: %v", err)
	}
	if len(stacks) != 3 {
		t.Fatalf("got %d stacks, want 3", len(stacks))
	}

	counts := map[string][]int{}
	for _, d := range stacks {
		counts[d.FileType] = append(counts[d.FileType], d.SliceCount())
	}
	if len(counts[FileTypeDICOM]) != 2 {
		t.Errorf("got %d DICOM stacks, want 2", len(counts[FileTypeDICOM]))
	}
	got := map[int]bool{}
	for _, n := range counts[FileTypeDICOM] {
		got[n] = true
	}
	if !got[2] || !got[3] {
		t.Errorf("DICOM slice counts = %v, want {2,3}", counts[FileTypeDICOM])
	}
	if len(counts[FileTypeImage]) != 1 || counts[FileTypeImage][0] != 3 {
		t.Errorf("image stacks = %v, want one of 3 slices", counts[FileTypeImage])
	}
}

func TestScanDirectoryEmpty(t *testing.T) {
	stacks, err := NewScanner(logging.Nop()).ScanDirectory(t.TempDir())
	if err != nil {
		t.Fatalf("ScanDirectory failed: %v", err)
	}
	if len(stacks) != 0 {
		t.Errorf("got %d stacks from an empty directory", len(stacks))
	}
}
