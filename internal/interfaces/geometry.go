package interfaces

import (
	"github.com/deploymenttheory/go-uvf/internal/types"
)

// MeshConverter is the capability record a geometry format plugin provides.
type MeshConverter interface {
	// Description returns a human-readable format name.
	Description() string

	// Extensions returns the handled extensions, upper-case without dot.
	Extensions() []string

	// CanExport reports whether ConvertToNative is implemented.
	CanExport() bool

	// CanRead reports whether the converter accepts the file.
	CanRead(path string) bool

	// ConvertToMesh loads the geometry file.
	ConvertToMesh(path string) (*types.Mesh, error)

	// ConvertToNative serializes a mesh in the converter's format.
	ConvertToNative(mesh *types.Mesh, target string) error
}
