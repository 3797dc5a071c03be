// Package iomanager is the facade over the conversion pipeline: it owns the
// converter registries and orchestrates identification, raw
// materialization, bricking, merging, isosurface extraction, and expression
// evaluation. A Manager is owned by a single goroutine; the registries are
// only mutated through the registration surface during setup.
package iomanager

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-uvf/internal/config"
	"github.com/deploymenttheory/go-uvf/internal/converters"
	"github.com/deploymenttheory/go-uvf/internal/geo"
	"github.com/deploymenttheory/go-uvf/internal/interfaces"
	"github.com/deploymenttheory/go-uvf/internal/iso"
	"github.com/deploymenttheory/go-uvf/internal/logging"
	"github.com/deploymenttheory/go-uvf/internal/merge"
	"github.com/deploymenttheory/go-uvf/internal/stack"
	"github.com/deploymenttheory/go-uvf/internal/types"
	"github.com/deploymenttheory/go-uvf/internal/uvf"
)

// Manager holds the converter registries and pipeline settings.
type Manager struct {
	bus      *logging.Bus
	settings *config.Settings

	converters     []interfaces.VolumeConverter
	geoConverters  []interfaces.MeshConverter
	finalConverter interfaces.VolumeConverter
}

// New creates a Manager with the built-in converters registered.
func New(bus *logging.Bus, settings *config.Settings) *Manager {
	m := &Manager{bus: bus, settings: settings}

	m.RegisterGeoConverter(geo.NewPLYConverter())
	m.RegisterGeoConverter(geo.NewOBJConverter())

	m.RegisterConverter(converters.NewQVISConverter(bus))
	m.RegisterConverter(converters.NewNRRDConverter(bus))
	m.RegisterConverter(converters.NewBOVConverter(bus))
	m.RegisterConverter(converters.NewAnalyzeConverter(bus))
	return m
}

// Bus returns the message bus the manager reports through.
func (m *Manager) Bus() *logging.Bus { return m.bus }

// Settings returns the pipeline settings.
func (m *Manager) Settings() *config.Settings { return m.settings }

// RegisterConverter appends a converter to the registry. Identification
// order is registration order.
func (m *Manager) RegisterConverter(c interfaces.VolumeConverter) {
	m.converters = append(m.converters, c)
}

// RegisterFinalConverter sets the fallback tried when no ordinary converter
// accepts a file.
func (m *Manager) RegisterFinalConverter(c interfaces.VolumeConverter) {
	m.finalConverter = c
}

// RegisterGeoConverter appends a mesh converter to the registry.
func (m *Manager) RegisterGeoConverter(c interfaces.MeshConverter) {
	m.geoConverters = append(m.geoConverters, c)
}

// readFirstBlock reads exactly the first 512 bytes of a file (less when the
// file is shorter).
func readFirstBlock(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if n == 0 && err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return buf[:n], nil
}

// Identify offers the first 512 bytes of the file to every registered
// converter and returns all that accept, in registration order. Several
// formats share extensions; sniffing the prefix is a cheap disambiguator,
// and returning every acceptor lets the pipeline retry successors when the
// first plugin accepts but fails mid-conversion.
func (m *Manager) Identify(path string) ([]interfaces.VolumeConverter, error) {
	block, err := readFirstBlock(path)
	if err != nil {
		return nil, err
	}
	var accepted []interfaces.VolumeConverter
	for _, c := range m.converters {
		m.bus.Messagef("Attempting converter '%s'", c.Description())
		if c.CanRead(path, block) {
			m.bus.Messagef("Converter '%s' can read '%s'!", c.Description(), path)
			accepted = append(accepted, c)
		}
	}
	return accepted, nil
}

// ConverterForExt returns the first converter handling the extension,
// case-insensitively. ext carries no leading dot.
func (m *Manager) ConverterForExt(ext string, mustExport bool) interfaces.VolumeConverter {
	ext = strings.ToUpper(ext)
	for _, c := range m.converters {
		if mustExport && !c.CanExport() {
			continue
		}
		for _, e := range c.Extensions() {
			if strings.ToUpper(e) == ext {
				return c
			}
		}
	}
	return nil
}

// GeoConverterForExt returns the first mesh converter handling the
// extension, case-insensitively.
func (m *Manager) GeoConverterForExt(ext string, mustExport bool) interfaces.MeshConverter {
	ext = strings.ToUpper(ext)
	for _, c := range m.geoConverters {
		if mustExport && !c.CanExport() {
			continue
		}
		for _, e := range c.Extensions() {
			if strings.ToUpper(e) == ext {
				return c
			}
		}
	}
	return nil
}

func fileExt(path string) string {
	return strings.ToUpper(strings.TrimPrefix(filepath.Ext(path), "."))
}

// ScanDirectory delegates to the stack scanner.
func (m *Manager) ScanDirectory(dir string) ([]*stack.Descriptor, error) {
	return stack.NewScanner(m.bus).ScanDirectory(dir)
}

// ConvertStack assembles a slice stack into a temp raw stream and bricks it
// into a UVF. The temp file is removed on every exit path.
func (m *Manager) ConvertStack(d *stack.Descriptor, target, tempDir string,
	maxBrickSize, brickOverlap uint64, quantizeTo8Bit bool) error {
	m.bus.Messagef("Request to convert stack of %s files to %s received",
		d.Description, target)

	tmp := filepath.Join(tempDir, filepath.Base(target)+"~")
	m.bus.Messagef("Creating intermediate file %s", tmp)
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			m.bus.Warnf("Unable to remove temp file %s", tmp)
		}
	}()

	meta, err := stack.Assemble(m.bus, d, tmp)
	if err != nil {
		return fmt.Errorf("stack assembly failed: %w", err)
	}
	return converters.BuildUVFFromRaw(m.bus, tmp, 0, meta, target,
		maxBrickSize, brickOverlap, quantizeTo8Bit)
}

// ConvertFile converts a single source file.
func (m *Manager) ConvertFile(path, target, tempDir string,
	noUserInteraction bool, maxBrickSize, brickOverlap uint64,
	quantizeTo8Bit bool) error {
	return m.ConvertFiles([]string{path}, target, tempDir, noUserInteraction,
		maxBrickSize, brickOverlap, quantizeTo8Bit)
}

// ConvertFiles converts one or more sources into the target format. A UVF
// target runs the identified converters' direct UVF paths in order, then
// the final converter. Any other target takes a single source through a raw
// intermediate into the extension-matched converter.
func (m *Manager) ConvertFiles(paths []string, target, tempDir string,
	noUserInteraction bool, maxBrickSize, brickOverlap uint64,
	quantizeTo8Bit bool) error {
	if len(paths) == 0 {
		return fmt.Errorf("no files to convert")
	}
	m.bus.Messagef("Request to convert %d dataset(s) to %s received", len(paths), target)

	if fileExt(target) == uvf.Extension {
		accepted, err := m.Identify(paths[0])
		if err != nil {
			return err
		}
		for _, c := range accepted {
			err := converters.ToUVF(m.bus, c, paths, target, tempDir,
				noUserInteraction, maxBrickSize, brickOverlap, quantizeTo8Bit)
			if err == nil {
				return nil
			}
			m.bus.Warnf("Converter %s can read files, but conversion failed: %v",
				c.Description(), err)
		}
		m.bus.Messagef("No suitable automatic converter found!")
		if m.finalConverter != nil {
			m.bus.Messagef("Attempting fallback converter.")
			return converters.ToUVF(m.bus, m.finalConverter, paths, target,
				tempDir, noUserInteraction, maxBrickSize, brickOverlap,
				quantizeTo8Bit)
		}
		return fmt.Errorf("%w: %s", ErrNoConverter, paths[0])
	}

	if len(paths) > 1 {
		return ErrMultiInputToNative
	}
	return m.convertToNative(paths[0], target, tempDir, noUserInteraction, quantizeTo8Bit)
}

// materializeRaw turns a source file into a raw intermediate, using the
// UVF export path for UVF sources and the converter chain otherwise.
func (m *Manager) materializeRaw(path, tempDir string, noUserInteraction bool) (*types.RawInfo, error) {
	if fileExt(path) == uvf.Extension {
		ds, err := uvf.Open(path)
		if err != nil {
			return nil, err
		}
		raw := filepath.Join(tempDir, filepath.Base(path)+".raw")
		// Always extract the highest quality level.
		if err := ds.ExportLOD(0, raw); err != nil {
			if _, statErr := os.Stat(raw); statErr == nil {
				os.Remove(raw)
			}
			return nil, err
		}
		return &types.RawInfo{Path: raw, Delete: true, Meta: ds.Meta()}, nil
	}

	accepted, err := m.Identify(path)
	if err != nil {
		return nil, err
	}
	for _, c := range accepted {
		info, err := c.ConvertToRAW(path, tempDir, noUserInteraction)
		if err == nil {
			m.bus.Messagef("Conversion using '%s' succeeded!", c.Description())
			return info, nil
		}
		m.bus.Warnf("Converter %s can read the file, but conversion failed: %v",
			c.Description(), err)
	}
	if m.finalConverter != nil {
		m.bus.Messagef("No converter can read the data. Trying fallback converter.")
		return m.finalConverter.ConvertToRAW(path, tempDir, noUserInteraction)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoConverter, path)
}

func (m *Manager) convertToNative(path, target, tempDir string,
	noUserInteraction, quantizeTo8Bit bool) error {
	info, err := m.materializeRaw(path, tempDir, noUserInteraction)
	if err != nil {
		return err
	}
	defer func() {
		if info.Delete {
			os.Remove(info.Path)
		}
	}()

	extTarget := fileExt(target)
	tried := false
	for _, c := range m.converters {
		if !matchesExt(c, extTarget) {
			continue
		}
		tried = true
		err := c.ConvertToNative(info.Path, target, info.HeaderSkip, info.Meta,
			noUserInteraction, quantizeTo8Bit)
		if err == nil {
			return nil
		}
		m.bus.Warnf("%s said it could convert to native, but failed: %v",
			c.Description(), err)
	}
	if !tried {
		return fmt.Errorf("%w: no converter writes .%s files", ErrNoConverter,
			strings.ToLower(extTarget))
	}
	return fmt.Errorf("all converters for .%s failed", strings.ToLower(extTarget))
}

func matchesExt(c interfaces.VolumeConverter, ext string) bool {
	for _, e := range c.Extensions() {
		if strings.ToUpper(e) == ext {
			return true
		}
	}
	return false
}

// MergeDatasets combines co-dimensional volumes into one. All inputs must
// share bit width, component count, endianness delta, signedness, floatness
// and domain size; aspect mismatches warn but do not fail. Every
// intermediate is removed on every exit path.
func (m *Manager) MergeDatasets(sources []string, scales, biases []float64,
	target, tempDir string, useMaxMode, noUserInteraction bool) (err error) {
	if len(sources) == 0 || len(sources) != len(scales) || len(sources) != len(biases) {
		return fmt.Errorf("need matching sources, scales and biases")
	}
	m.bus.Messagef("Request to merge multiple data sets into %s received.", target)

	var metaG types.VolumeMeta
	var inputs []merge.Input
	defer func() {
		for _, in := range inputs {
			if in.Delete {
				if _, statErr := os.Stat(in.Path); statErr == nil {
					os.Remove(in.Path)
				}
			}
		}
	}()

	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = filepath.Base(src)
		m.bus.Messagef("Reading data set %s...", src)

		var info *types.RawInfo
		if fileExt(src) == uvf.Extension {
			ds, err := uvf.Open(src)
			if err != nil {
				return fmt.Errorf("could not open '%s': %w", src, err)
			}
			raw := filepath.Join(tempDir,
				filepath.Base(src)+uuid.NewString()+".raw")
			if err := ds.ExportLOD(0, raw); err != nil {
				if _, statErr := os.Stat(raw); statErr == nil {
					os.Remove(raw)
				}
				return err
			}
			info = &types.RawInfo{Path: raw, Delete: true, Meta: ds.Meta()}
		} else {
			var err error
			info, err = m.materializeRaw(src, tempDir, noUserInteraction)
			if err != nil {
				return err
			}
		}

		inputs = append(inputs, merge.Input{
			Path:       info.Path,
			HeaderSkip: info.HeaderSkip,
			Scale:      scales[i],
			Bias:       biases[i],
			Delete:     info.Delete,
		})

		if i == 0 {
			metaG = info.Meta
			continue
		}
		got := info.Meta
		if metaG.BitWidth != got.BitWidth ||
			metaG.Components != got.Components ||
			metaG.SwapEndian != got.SwapEndian ||
			metaG.Signed != got.Signed ||
			metaG.Float != got.Float ||
			!metaG.Domain.Equals(got.Domain) {
			return fmt.Errorf("%w: %s does not match %s", ErrIncompatibleInputs,
				src, sources[0])
		}
		if !metaG.Aspect.Equals(got.Aspect) {
			m.bus.Warnf("Different aspect ratios found.")
		}
	}

	vt, err := metaG.VoxelType()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}

	merged := filepath.Join(tempDir, "merged.raw")
	defer func() {
		if _, statErr := os.Stat(merged); statErr == nil {
			os.Remove(merged)
		}
	}()
	totalValues := metaG.Domain.Volume() * metaG.Components
	if err := merge.Merge(m.bus, inputs, merged, totalValues, vt, useMaxMode); err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	metaG.Title = "Merged data from multiple files"
	metaG.Source = strings.Join(names, " ")
	metaG.SwapEndian = false

	if fileExt(target) == uvf.Extension {
		return converters.BuildUVFFromRaw(m.bus, merged, 0, metaG, target,
			m.settings.MaxBrickSize, m.settings.BrickOverlap, false)
	}
	extTarget := fileExt(target)
	for _, c := range m.converters {
		if !matchesExt(c, extTarget) {
			continue
		}
		if err := c.ConvertToNative(merged, target, 0, metaG,
			noUserInteraction, false); err == nil {
			return nil
		} else {
			m.bus.Warnf("%s said it could convert to native, but failed: %v",
				c.Description(), err)
		}
	}
	return fmt.Errorf("%w: no converter writes .%s files", ErrNoConverter,
		strings.ToLower(extTarget))
}

// RebrickDataset re-bricks a UVF in two phases through a neutral NRRD
// intermediate.
func (m *Manager) RebrickDataset(source, target, tempDir string,
	maxBrickSize, brickOverlap uint64, quantizeTo8Bit bool) error {
	m.bus.Messagef("Rebricking (Phase 1/2)...")

	base := filepath.Base(source)
	tmp := filepath.Join(tempDir,
		strings.TrimSuffix(base, filepath.Ext(base))+".nrrd")
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			m.bus.Warnf("Unable to delete temp file %s", tmp)
		}
	}()

	if err := m.ConvertFile(source, tmp, tempDir, true,
		m.settings.MaxBrickSize, m.settings.BrickOverlap, false); err != nil {
		return fmt.Errorf("unable to extract raw data from %s: %w", source, err)
	}

	m.bus.Messagef("Rebricking (Phase 2/2)...")
	if err := m.ConvertFile(tmp, target, tempDir, true,
		maxBrickSize, brickOverlap, quantizeTo8Bit); err != nil {
		return fmt.Errorf("unable to build new UVF %s: %w", target, err)
	}
	return nil
}

// ExportDataset writes one LOD of a UVF out in the format matching the
// target extension.
func (m *Manager) ExportDataset(source string, lod uint64, target, tempDir string) error {
	ds, err := uvf.Open(source)
	if err != nil {
		return err
	}
	extTarget := fileExt(target)
	exporter := m.ConverterForExt(extTarget, true)
	if exporter == nil {
		return fmt.Errorf("%w: unknown file extension %s", ErrNoConverter, extTarget)
	}

	tmp := filepath.Join(tempDir, filepath.Base(target)+".tmp_raw")
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			m.bus.Warnf("Unable to remove temp file %s", tmp)
		}
	}()
	if err := ds.ExportLOD(lod, tmp); err != nil {
		return fmt.Errorf("unable to write temp file %s: %w", tmp, err)
	}

	m.bus.Messagef("Writing Target Dataset")
	meta := ds.Meta()
	meta.Domain, _ = ds.DomainSize(lod)
	if err := exporter.ConvertToNative(tmp, target, 0, meta, false, false); err != nil {
		return fmt.Errorf("unable to write target file %s: %w", target, err)
	}
	m.bus.Messagef("Done!")
	return nil
}

// ExtractIsosurface streams the source LOD through the marching kernel and
// serializes the mesh via the converter matching the target extension.
func (m *Manager) ExtractIsosurface(source string, lod uint64, isovalue float64,
	color types.Color, target, tempDir string) error {
	ds, err := uvf.Open(source)
	if err != nil {
		return err
	}
	conv := m.GeoConverterForExt(fileExt(target), true)
	if conv == nil {
		return fmt.Errorf("%w: unknown mesh format", ErrNoConverter)
	}
	mesh, err := iso.Extract(m.bus, ds, lod, isovalue, color)
	if err != nil {
		return err
	}
	if err := conv.ConvertToNative(mesh, target); err != nil {
		if _, statErr := os.Stat(target); statErr == nil {
			os.Remove(target)
		}
		return err
	}
	return nil
}

// LoadMesh tries every mesh converter in order and loads the first that
// accepts the file.
func (m *Manager) LoadMesh(path string) (*types.Mesh, error) {
	m.bus.Messagef("Opening Mesh File ...")
	for _, c := range m.geoConverters {
		m.bus.Messagef("Attempting converter '%s'", c.Description())
		if c.CanRead(path) {
			m.bus.Messagef("Converter '%s' can read '%s'!", c.Description(), path)
			return c.ConvertToMesh(path)
		}
	}
	return nil, fmt.Errorf("%w: no converter for geometry file %s", ErrNoConverter, path)
}

// ExportMesh serializes a mesh in the format matching the target extension.
func (m *Manager) ExportMesh(mesh *types.Mesh, target string) error {
	conv := m.GeoConverterForExt(fileExt(target), true)
	if conv == nil {
		return fmt.Errorf("%w: unknown mesh format", ErrNoConverter)
	}
	return conv.ConvertToNative(mesh, target)
}

// AddMeshToUVF copies a UVF and appends a geometry block holding the mesh,
// recomputing normals when the mesh has none.
func (m *Manager) AddMeshToUVF(sourceUVF, meshFile, targetUVF string) error {
	mesh, err := m.LoadMesh(meshFile)
	if err != nil {
		return err
	}
	if len(mesh.Normals) == 0 {
		mesh.RecomputeNormals()
	}
	ds, err := uvf.Open(sourceUVF)
	if err != nil {
		return err
	}
	m.bus.Messagef("Adding triangle soup block...")
	return uvf.Create(targetUVF, ds.Raster, append(ds.Meshes, mesh), m.bus)
}

// AnalyzeDataset inspects a dataset without converting it.
func (m *Manager) AnalyzeDataset(path, tempDir string) (*types.RangeInfo, error) {
	if fileExt(path) == uvf.Extension {
		ds, err := uvf.Open(path)
		if err != nil {
			return nil, err
		}
		if ds.ComponentCount() != 1 {
			return nil, fmt.Errorf("%w: only scalar data supported", ErrUnsupportedType)
		}
		mn, mx := ds.Range()
		info := &types.RangeInfo{
			Range:         [2]float64{mn, mx},
			Aspect:        ds.Scale(),
			ComponentSize: ds.BitWidth(),
		}
		info.Domain, _ = ds.DomainSize(0)
		switch {
		case ds.IsFloat():
			info.ValueType = 0
		case ds.IsSigned():
			info.ValueType = 1
		default:
			info.ValueType = 2
		}
		return info, nil
	}

	ext := fileExt(path)
	for _, c := range m.converters {
		if !matchesExt(c, ext) {
			continue
		}
		if a, ok := c.(interfaces.Analyzer); ok {
			if info, err := a.Analyze(path, tempDir, false); err == nil {
				return info, nil
			}
		}
	}
	if a, ok := m.finalConverter.(interfaces.Analyzer); ok && m.finalConverter != nil {
		return a.Analyze(path, tempDir, false)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoConverter, path)
}

// NeedsConversion reports whether no registered dataset reader can load the
// file directly.
func (m *Manager) NeedsConversion(path string) bool {
	_, err := m.reader(path)
	return err != nil
}

// Verify runs the reader's consistency check. Unknown formats report an
// explicit error instead of asserting a reader exists.
func (m *Manager) Verify(path string) error {
	ds, err := m.reader(path)
	if err != nil {
		return err
	}
	// Re-walk the container; structural damage surfaces as a read error.
	_, err = uvf.Open(ds.Path)
	return err
}

// reader resolves the dataset reader handle for a file. The handle may
// report dropped when the backing reader has gone away.
func (m *Manager) reader(path string) (*uvf.Dataset, error) {
	block, err := readFirstBlock(path)
	if err != nil {
		return nil, err
	}
	if !uvf.SniffHeader(block) {
		return nil, fmt.Errorf("%w: %s", ErrReaderDropped, path)
	}
	return uvf.Open(path)
}
