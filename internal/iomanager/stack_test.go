package iomanager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-uvf/internal/stack"
	"github.com/deploymenttheory/go-uvf/internal/types"
	"github.com/deploymenttheory/go-uvf/internal/uvf"
)

type sliceElement struct {
	name string
	data []byte
}

func (e *sliceElement) Path() string { return e.name }

func (e *sliceElement) Offset() int64 { return 0 }

func (e *sliceElement) Payload() ([]byte, error) { return e.data, nil }

func TestConvertStack(t *testing.T) {
	m := newTestManager(t)
	dir := t.TempDir()

	d := &stack.Descriptor{
		FileType:   stack.FileTypeDICOM,
		Width:      2,
		Height:     2,
		Allocated:  8,
		Stored:     8,
		Components: 1,
		Aspect:     types.AspectRatio{X: 1, Y: 1, Z: 2},
		Elements: []stack.Element{
			&sliceElement{name: "s0", data: []byte{0, 1, 2, 3}},
			&sliceElement{name: "s1", data: []byte{4, 5, 6, 7}},
		},
	}

	target := filepath.Join(dir, "stack.uvf")
	require.NoError(t, m.ConvertStack(d, target, m.Settings().TempDir, 8, 2, false))

	ds, err := uvf.Open(target)
	require.NoError(t, err)
	domain, err := ds.DomainSize(0)
	require.NoError(t, err)
	assert.Equal(t, types.Vec3{X: 2, Y: 2, Z: 2}, domain)
	assert.Equal(t, types.AspectRatio{X: 1, Y: 1, Z: 2}, ds.Scale())

	raw, err := ds.Raster.ExportLOD(0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7}, raw,
		"elements concatenate in slice-major order")

	requireEmptyDir(t, m.Settings().TempDir)
}

type failingElement struct{}

func (e *failingElement) Path() string { return "broken" }

func (e *failingElement) Offset() int64 { return 0 }

func (e *failingElement) Payload() ([]byte, error) { return nil, os.ErrNotExist }

func TestConvertStackCleansUpOnFailure(t *testing.T) {
	m := newTestManager(t)
	d := &stack.Descriptor{
		FileType:   stack.FileTypeDICOM,
		Width:      2,
		Height:     2,
		Allocated:  8,
		Components: 1,
		Aspect:     types.AspectRatio{X: 1, Y: 1, Z: 1},
		Elements:   []stack.Element{&failingElement{}},
	}

	err := m.ConvertStack(d, filepath.Join(t.TempDir(), "x.uvf"),
		m.Settings().TempDir, 8, 2, false)
	require.Error(t, err)
	requireEmptyDir(t, m.Settings().TempDir)
}
