package stack

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/types"
)

const (
	FileTypeDICOM = "DICOM"
	FileTypeImage = "IMAGE"
)

// Element is one slice of a stack: a file, a byte offset to its payload,
// and an operation yielding the flat payload buffer.
type Element interface {
	Path() string
	Offset() int64
	Payload() ([]byte, error)
}

// Descriptor is an ordered file list describing the slices of one logical
// volume. All elements share the geometry and encoding recorded here.
type Descriptor struct {
	FileType    string
	Width       uint64
	Height      uint64
	Allocated   uint64
	Stored      uint64
	Components  uint64
	BigEndian   bool
	JPEGEncoded bool
	Aspect      types.AspectRatio
	Description string
	Modality    string

	// ForceSigned overrides the "allocated width >= 32 implies signed"
	// heuristic applied to DICOM stacks during assembly.
	ForceSigned *bool

	Elements []Element
}

// SliceCount returns the number of slices in the stack.
func (d *Descriptor) SliceCount() int { return len(d.Elements) }

// Scanner walks directories and produces stack descriptors.
type Scanner struct {
	bus *logging.Bus
}

func NewScanner(bus *logging.Bus) *Scanner {
	return &Scanner{bus: bus}
}

// ScanDirectory finds DICOM series and image stacks under dir. DICOM stacks
// with JPEG payloads are probed slice by slice; a single undecodable slice
// drops the whole containing stack, since a stack with missing slices has
// no meaningful geometry.
func (s *Scanner) ScanDirectory(dir string) ([]*Descriptor, error) {
	s.bus.Messagef("Scanning directory %s", dir)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	var dicomFiles []*dicomFile
	var imageFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		first, err := readFirstBlock(path)
		if err != nil {
			continue
		}
		switch {
		case isDICOM(first):
			df, err := parseDICOMFile(path)
			if err != nil {
				s.bus.Warnf("Skipping DICOM file %s: %v", path, err)
				continue
			}
			dicomFiles = append(dicomFiles, df)
		case isStackImage(first):
			imageFiles = append(imageFiles, path)
		}
	}

	stacks := groupDICOMStacks(dicomFiles)
	stacks = s.dropBrokenJPEGStacks(stacks)
	if len(stacks) == 1 {
		s.bus.Messagef("  found a single DICOM stack")
	} else {
		s.bus.Messagef("  found %d DICOM stacks", len(stacks))
	}

	imageStacks, err := groupImageStacks(imageFiles)
	if err != nil {
		return nil, err
	}
	if len(imageStacks) == 1 {
		s.bus.Messagef("  found a single image stack")
	} else {
		s.bus.Messagef("  found %d image stacks", len(imageStacks))
	}
	stacks = append(stacks, imageStacks...)

	s.bus.Messagef("  scan complete")
	return stacks, nil
}

// dropBrokenJPEGStacks probes every element of JPEG encoded stacks and
// removes stacks with any invalid payload.
func (s *Scanner) dropBrokenJPEGStacks(stacks []*Descriptor) []*Descriptor {
	kept := stacks[:0]
	for si, d := range stacks {
		if !d.JPEGEncoded {
			kept = append(kept, d)
			continue
		}
		valid := true
		for i, el := range d.Elements {
			payload, err := el.Payload()
			if err == nil {
				_, err = jpeg.DecodeConfig(bytes.NewReader(payload))
			}
			if err != nil {
				s.bus.Warnf("Can't load JPEG in stack %d, element %d!", si, i)
				valid = false
				break
			}
		}
		if valid {
			kept = append(kept, d)
		}
	}
	return kept
}

// readFirstBlock reads up to the first 512 bytes of a file.
func readFirstBlock(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if n == 0 && err != nil {
		return nil, err
	}
	return buf[:n], nil
}
