package iomanager

import (
	"strings"
)

// FormatEntry describes one importable or exportable format.
type FormatEntry struct {
	Extension   string
	Description string
	CanExport   bool
}

// GetFormatList enumerates every known volume format, the canonical
// container first.
func (m *Manager) GetFormatList() []FormatEntry {
	v := []FormatEntry{{Extension: "uvf", Description: "Universal Volume Format", CanExport: true}}
	for _, c := range m.converters {
		for _, ext := range c.Extensions() {
			v = append(v, FormatEntry{
				Extension:   strings.ToLower(ext),
				Description: c.Description(),
				CanExport:   c.CanExport(),
			})
		}
	}
	return v
}

// GetGeoFormatList enumerates every known geometry format.
func (m *Manager) GetGeoFormatList() []FormatEntry {
	var v []FormatEntry
	for _, c := range m.geoConverters {
		for _, ext := range c.Extensions() {
			v = append(v, FormatEntry{
				Extension:   strings.ToLower(ext),
				Description: c.Description(),
				CanExport:   c.CanExport(),
			})
		}
	}
	return v
}

// GetLoadDialogString builds the file dialog filter for loadable volumes:
// "All known Files (*.a *.b );;Name (*.a);;...;;All Files (*)".
func (m *Manager) GetLoadDialogString() string {
	var b strings.Builder
	b.WriteString("All known Files (")
	seen := map[string]bool{}
	b.WriteString("*.uvf ")
	seen["uvf"] = true
	for _, c := range m.converters {
		for _, ext := range c.Extensions() {
			e := strings.ToLower(ext)
			if !seen[e] {
				seen[e] = true
				b.WriteString("*." + e + " ")
			}
		}
	}
	b.WriteString(");;")

	b.WriteString("Universal Volume Format (*.uvf);;")
	for _, c := range m.converters {
		b.WriteString(c.Description() + " (")
		exts := c.Extensions()
		for i, ext := range exts {
			b.WriteString("*." + strings.ToLower(ext))
			if i < len(exts)-1 {
				b.WriteString(" ")
			}
		}
		b.WriteString(");;")
	}

	b.WriteString("All Files (*)")
	return b.String()
}

// GetExportDialogString builds the filter for exportable volume formats.
func (m *Manager) GetExportDialogString() string {
	var b strings.Builder
	for _, c := range m.converters {
		if !c.CanExport() {
			continue
		}
		for _, ext := range c.Extensions() {
			b.WriteString(c.Description() + " (*." + strings.ToLower(ext) + ");;")
		}
	}
	return b.String()
}

// GetLoadGeoDialogString builds the filter for loadable geometry.
func (m *Manager) GetLoadGeoDialogString() string {
	var b strings.Builder
	b.WriteString("All known Geometry Files (")
	seen := map[string]bool{}
	for _, c := range m.geoConverters {
		for _, ext := range c.Extensions() {
			e := strings.ToLower(ext)
			if !seen[e] {
				seen[e] = true
				b.WriteString("*." + e + " ")
			}
		}
	}
	b.WriteString(");;")
	for _, c := range m.geoConverters {
		b.WriteString(c.Description() + " (")
		exts := c.Extensions()
		for i, ext := range exts {
			b.WriteString("*." + strings.ToLower(ext))
			if i < len(exts)-1 {
				b.WriteString(" ")
			}
		}
		b.WriteString(");;")
	}
	b.WriteString("All Files (*)")
	return b.String()
}

// GetGeoExportDialogString builds the filter for exportable geometry.
func (m *Manager) GetGeoExportDialogString() string {
	var b strings.Builder
	for _, c := range m.geoConverters {
		if !c.CanExport() {
			continue
		}
		for _, ext := range c.Extensions() {
			b.WriteString(c.Description() + " (*." + strings.ToLower(ext) + ");;")
		}
	}
	return b.String()
}
