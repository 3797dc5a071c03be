package stack

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/types"
	"github.com/deploymenttheory/go-uvf/internal/uvf"
)

// Assemble concatenates every element of a stack into one contiguous raw
// stream at tmpPath, in slice-major order, and returns the metadata of the
// assembled volume. JPEG payloads are decoded (the effective allocated
// width becomes the JPEG sample width), byte order is normalized to the
// host, and 3 component data is rewritten to 4 components with an opaque
// alpha.
func Assemble(bus *logging.Bus, d *Descriptor, tmpPath string) (types.VolumeMeta, error) {
	var meta types.VolumeMeta
	if d.SliceCount() == 0 {
		return meta, fmt.Errorf("stack has no elements")
	}

	f, err := os.Create(tmpPath)
	if err != nil {
		return meta, fmt.Errorf("could not create temp file %s: %w", tmpPath, err)
	}
	w := bufio.NewWriter(f)

	allocated := d.Allocated
	components := d.Components
	for j, el := range d.Elements {
		data, err := el.Payload()
		if err != nil {
			f.Close()
			return meta, fmt.Errorf("failed to read stack element %d: %w", j, err)
		}

		if d.JPEGEncoded {
			data, allocated, components, err = decodeJPEGSlice(data)
			if err != nil {
				f.Close()
				return meta, fmt.Errorf("'%s' reports an embedded JPEG, but the JPEG is invalid: %w",
					el.Path(), err)
			}
		}

		if d.BigEndian == uvf.HostIsLittleEndian() {
			uvf.SwapEndianness(data, int(allocated/8))
		}

		// 3 component data is padded to 4 components so the bricked
		// container only ever sees power-of-two component counts.
		if components == 3 {
			data = padRGBA(data)
		}

		if _, err := w.Write(data); err != nil {
			f.Close()
			return meta, fmt.Errorf("failed to append stack element %d: %w", j, err)
		}
		bus.Progress(fmt.Sprintf("Creating intermediate file %s", tmpPath), j, d.SliceCount())
	}
	if components == 3 {
		components = 4
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return meta, fmt.Errorf("failed to flush %s: %w", tmpPath, err)
	}
	if err := f.Close(); err != nil {
		return meta, fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	bus.Messagef("    done creating intermediate file %s", tmpPath)

	signed := false
	if d.FileType == FileTypeDICOM {
		// DICOM carries no usable sign bit here; wide allocations are
		// assumed signed unless the caller overrides.
		signed = allocated >= 32
		if d.ForceSigned != nil {
			signed = *d.ForceSigned
		}
	}

	first := filepath.Base(d.Elements[0].Path())
	last := filepath.Base(d.Elements[d.SliceCount()-1].Path())
	meta = types.VolumeMeta{
		BitWidth:   allocated,
		Components: components,
		Signed:     signed,
		Float:      false,
		SwapEndian: false, // normalized above
		Domain: types.Vec3{
			X: d.Width,
			Y: d.Height,
			Z: uint64(d.SliceCount()),
		},
		Aspect: d.Aspect,
		Title:  fmt.Sprintf("%s stack", d.FileType),
		Source: first + " to " + last,
	}
	return meta, nil
}

// decodeJPEGSlice decompresses an embedded JPEG payload into flat samples.
func decodeJPEGSlice(data []byte) (out []byte, allocated, components uint64, err error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if g, ok := img.(*image.Gray); ok {
		out = make([]byte, w*h)
		for y := 0; y < h; y++ {
			copy(out[y*w:(y+1)*w], g.Pix[y*g.Stride:y*g.Stride+w])
		}
		return out, 8, 1, nil
	}
	out = make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, gg, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			i := (y*w + x) * 3
			out[i] = byte(r >> 8)
			out[i+1] = byte(gg >> 8)
			out[i+2] = byte(bb >> 8)
		}
	}
	return out, 8, 3, nil
}

// padRGBA expands 3 byte voxels to 4 byte voxels with alpha 255.
func padRGBA(data []byte) []byte {
	n := len(data) / 3
	out := make([]byte, n*4)
	for k := 0; k < n; k++ {
		out[k*4] = data[k*3]
		out[k*4+1] = data[k*3+1]
		out[k*4+2] = data[k*3+2]
		out[k*4+3] = 255
	}
	return out
}
