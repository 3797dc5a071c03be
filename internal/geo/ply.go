// Package geo holds the mesh format plugins.
package geo

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/deploymenttheory/go-uvf/internal/types"
)

// PLYConverter reads and writes ascii Stanford PLY meshes.
type PLYConverter struct{}

func NewPLYConverter() *PLYConverter { return &PLYConverter{} }

func (c *PLYConverter) Description() string { return "Stanford Polygon File Format" }

func (c *PLYConverter) Extensions() []string { return []string{"PLY"} }

func (c *PLYConverter) CanExport() bool { return true }

func (c *PLYConverter) CanRead(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".ply")
}

func (c *PLYConverter) ConvertToMesh(path string) (*types.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "ply" {
		return nil, fmt.Errorf("%s is not a PLY file", path)
	}

	var nVerts, nFaces int
	var props []string
	inVertex := false
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 || fields[1] != "ascii" {
				return nil, fmt.Errorf("only ascii PLY is supported")
			}
		case "element":
			if len(fields) == 3 && fields[1] == "vertex" {
				nVerts, _ = strconv.Atoi(fields[2])
				inVertex = true
			} else {
				if len(fields) == 3 && fields[1] == "face" {
					nFaces, _ = strconv.Atoi(fields[2])
				}
				inVertex = false
			}
		case "property":
			if inVertex && len(fields) == 3 {
				props = append(props, fields[2])
			}
		case "end_header":
			goto body
		}
	}
	return nil, fmt.Errorf("PLY header in %s never ended", path)

body:
	mesh := &types.Mesh{Name: filepath.Base(path)}
	col := func(name string) int {
		for i, p := range props {
			if p == name {
				return i
			}
		}
		return -1
	}
	xi, ni, ci := col("x"), col("nx"), col("red")
	if xi < 0 {
		return nil, fmt.Errorf("PLY vertex element has no position")
	}
	for i := 0; i < nVerts; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("PLY file %s is missing vertices", path)
		}
		fields := strings.Fields(sc.Text())
		vals := make([]float64, len(fields))
		for j, fstr := range fields {
			vals[j], _ = strconv.ParseFloat(fstr, 64)
		}
		mesh.Vertices = append(mesh.Vertices, types.Vertex{
			X: float32(vals[xi]), Y: float32(vals[xi+1]), Z: float32(vals[xi+2])})
		if ni >= 0 && ni+2 < len(vals) {
			mesh.Normals = append(mesh.Normals, types.Vertex{
				X: float32(vals[ni]), Y: float32(vals[ni+1]), Z: float32(vals[ni+2])})
		}
		if ci >= 0 && ci+3 < len(vals) {
			mesh.Colors = append(mesh.Colors, types.Color{
				R: float32(vals[ci] / 255), G: float32(vals[ci+1] / 255),
				B: float32(vals[ci+2] / 255), A: float32(vals[ci+3] / 255)})
		}
	}
	for i := 0; i < nFaces; i++ {
		if !sc.Scan() {
			return nil, fmt.Errorf("PLY file %s is missing faces", path)
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		n, _ := strconv.Atoi(fields[0])
		idx := make([]uint32, 0, n)
		for _, fstr := range fields[1 : 1+n] {
			v, _ := strconv.Atoi(fstr)
			idx = append(idx, uint32(v))
		}
		// Triangulate as a fan.
		for k := 1; k+1 < len(idx); k++ {
			mesh.Triangles = append(mesh.Triangles, idx[0], idx[k], idx[k+1])
		}
	}
	return mesh, nil
}

func (c *PLYConverter) ConvertToNative(mesh *types.Mesh, target string) error {
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	w := bufio.NewWriter(f)

	hasNormals := len(mesh.Normals) == len(mesh.Vertices)
	hasColors := len(mesh.Colors) == len(mesh.Vertices)

	fmt.Fprintln(w, "ply")
	fmt.Fprintln(w, "format ascii 1.0")
	fmt.Fprintf(w, "element vertex %d\n", len(mesh.Vertices))
	fmt.Fprintln(w, "property float x")
	fmt.Fprintln(w, "property float y")
	fmt.Fprintln(w, "property float z")
	if hasNormals {
		fmt.Fprintln(w, "property float nx")
		fmt.Fprintln(w, "property float ny")
		fmt.Fprintln(w, "property float nz")
	}
	if hasColors {
		fmt.Fprintln(w, "property uchar red")
		fmt.Fprintln(w, "property uchar green")
		fmt.Fprintln(w, "property uchar blue")
		fmt.Fprintln(w, "property uchar alpha")
	}
	fmt.Fprintf(w, "element face %d\n", mesh.TriangleCount())
	fmt.Fprintln(w, "property list uchar int vertex_indices")
	fmt.Fprintln(w, "end_header")

	for i, v := range mesh.Vertices {
		fmt.Fprintf(w, "%g %g %g", v.X, v.Y, v.Z)
		if hasNormals {
			n := mesh.Normals[i]
			fmt.Fprintf(w, " %g %g %g", n.X, n.Y, n.Z)
		}
		if hasColors {
			cc := mesh.Colors[i]
			fmt.Fprintf(w, " %d %d %d %d",
				int(cc.R*255), int(cc.G*255), int(cc.B*255), int(cc.A*255))
		}
		fmt.Fprintln(w)
	}
	for t := 0; t+2 < len(mesh.Triangles); t += 3 {
		fmt.Fprintf(w, "3 %d %d %d\n",
			mesh.Triangles[t], mesh.Triangles[t+1], mesh.Triangles[t+2])
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(target)
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return f.Close()
}
