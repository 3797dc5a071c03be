package interfaces

import (
	"github.com/deploymenttheory/go-uvf/internal/types"
)

// VolumeConverter is the capability record a volume format plugin provides.
// Dispatch is by content sniffing or extension match, never by concrete type.
type VolumeConverter interface {
	// Description returns a human-readable format name.
	Description() string

	// Extensions returns the file extensions the converter handles,
	// upper-case without the leading dot.
	Extensions() []string

	// CanExport reports whether ConvertToNative is implemented.
	CanExport() bool

	// CanRead sniffs the first 512 bytes of a file plus its path and
	// reports whether the converter accepts it.
	CanRead(path string, first512 []byte) bool

	// ConvertToRAW materializes the source as a raw intermediate stream.
	// The returned RawInfo says where the stream lives, how many header
	// bytes to skip, and whether the caller owns deleting it.
	ConvertToRAW(path, tempDir string, noUserInteraction bool) (*types.RawInfo, error)

	// ConvertToNative writes a raw stream out in the converter's format.
	ConvertToNative(rawPath, target string, headerSkip uint64,
		meta types.VolumeMeta, noUserInteraction, quantizeTo8Bit bool) error
}

// UVFWriter is the optional direct-to-UVF shortcut. Converters that accept
// multi-file assembly (time series) take more than one source path.
type UVFWriter interface {
	ConvertToUVF(paths []string, target, tempDir string,
		noUserInteraction bool, maxBrickSize, brickOverlap uint64,
		quantizeTo8Bit bool) error
}

// Analyzer is the optional pre-conversion inspection capability.
type Analyzer interface {
	Analyze(path, tempDir string, noUserInteraction bool) (*types.RangeInfo, error)
}
