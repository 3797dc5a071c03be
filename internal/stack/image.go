package stack

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/tiff"

	"github.com/deploymenttheory/go-uvf/internal/types"
)

// imageSignatures are the magic prefixes of the supported slice formats.
var imageSignatures = [][]byte{
	{0x89, 'P', 'N', 'G'},
	{0xFF, 0xD8, 0xFF},       // JPEG
	{'I', 'I', 0x2A, 0x00},   // TIFF little endian
	{'M', 'M', 0x00, 0x2A},   // TIFF big endian
}

func isStackImage(first512 []byte) bool {
	for _, sig := range imageSignatures {
		if bytes.HasPrefix(first512, sig) {
			return true
		}
	}
	return false
}

// imageGeometry classifies a decoded slice.
type imageGeometry struct {
	width, height uint64
	allocated     uint64
	components    uint64
	bigEndian     bool
}

func classifyImage(path string) (*imageGeometry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, err
	}
	g := &imageGeometry{width: uint64(cfg.Width), height: uint64(cfg.Height)}
	switch cfg.ColorModel {
	case color.GrayModel:
		g.allocated, g.components = 8, 1
	case color.Gray16Model:
		// Gray16 decodes big endian.
		g.allocated, g.components, g.bigEndian = 16, 1, true
	default:
		g.allocated, g.components = 8, 4
	}
	return g, nil
}

// groupImageStacks buckets image files by geometry into stacks, ordered by
// file name.
func groupImageStacks(paths []string) ([]*Descriptor, error) {
	sort.Strings(paths)

	type key struct {
		width, height uint64
		allocated     uint64
		components    uint64
		big           bool
		ext           string
	}
	buckets := make(map[key][]string)
	geoms := make(map[key]*imageGeometry)
	var order []key
	for _, path := range paths {
		g, err := classifyImage(path)
		if err != nil {
			continue
		}
		k := key{g.width, g.height, g.allocated, g.components, g.bigEndian,
			strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
			geoms[k] = g
		}
		buckets[k] = append(buckets[k], path)
	}

	var stacks []*Descriptor
	for _, k := range order {
		g := geoms[k]
		d := &Descriptor{
			FileType:    FileTypeImage,
			Width:       g.width,
			Height:      g.height,
			Allocated:   g.allocated,
			Stored:      g.allocated,
			Components:  g.components,
			BigEndian:   g.bigEndian,
			Aspect:      types.AspectRatio{X: 1, Y: 1, Z: 1},
			Description: fmt.Sprintf("IMAGE Stack: %s", k.ext),
		}
		for _, path := range buckets[k] {
			d.Elements = append(d.Elements, &imageElement{path: path, geom: *g})
		}
		stacks = append(stacks, d)
	}
	return stacks, nil
}

// imageElement decodes one 2D slice into a flat payload buffer matching the
// stack geometry: 8 bit gray, 16 bit gray (big endian, as decoded), or
// 8 bit RGBA.
type imageElement struct {
	path string
	geom imageGeometry
}

func (e *imageElement) Path() string { return e.path }

func (e *imageElement) Offset() int64 { return 0 }

func (e *imageElement) Payload() ([]byte, error) {
	f, err := os.Open(e.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", e.path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", e.path, err)
	}
	return flattenImage(img, e.geom)
}

func flattenImage(img image.Image, g imageGeometry) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if uint64(w) != g.width || uint64(h) != g.height {
		return nil, fmt.Errorf("slice is %dx%d, stack is %dx%d", w, h, g.width, g.height)
	}

	switch {
	case g.components == 1 && g.allocated == 8:
		out := make([]byte, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, gg, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				// Rec. 601 luma when the source is not already gray.
				out[y*w+x] = byte(((299*r + 587*gg + 114*bb) / 1000) >> 8)
			}
		}
		return out, nil
	case g.components == 1 && g.allocated == 16:
		out := make([]byte, w*h*2)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, _, _, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				// Big endian, matching the decoded Gray16 layout.
				out[(y*w+x)*2] = byte(r >> 8)
				out[(y*w+x)*2+1] = byte(r)
			}
		}
		return out, nil
	case g.components == 4 && g.allocated == 8:
		out := make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, gg, bb, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				i := (y*w + x) * 4
				out[i] = byte(r >> 8)
				out[i+1] = byte(gg >> 8)
				out[i+2] = byte(bb >> 8)
				out[i+3] = byte(a >> 8)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported slice geometry: %d components at %d bit",
		g.components, g.allocated)
}
