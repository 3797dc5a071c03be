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

// OBJConverter reads and writes Wavefront OBJ meshes. Faces with more than
// three vertices are triangulated as fans; material statements are ignored.
type OBJConverter struct{}

func NewOBJConverter() *OBJConverter { return &OBJConverter{} }

func (c *OBJConverter) Description() string { return "Wavefront Object" }

func (c *OBJConverter) Extensions() []string { return []string{"OBJ"} }

func (c *OBJConverter) CanExport() bool { return true }

func (c *OBJConverter) CanRead(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".obj")
}

func (c *OBJConverter) ConvertToMesh(path string) (*types.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	mesh := &types.Mesh{Name: filepath.Base(path)}
	var normals []types.Vertex
	normalOf := make(map[uint32]int)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "v":
			if len(fields) < 4 {
				continue
			}
			x, _ := strconv.ParseFloat(fields[1], 32)
			y, _ := strconv.ParseFloat(fields[2], 32)
			z, _ := strconv.ParseFloat(fields[3], 32)
			mesh.Vertices = append(mesh.Vertices,
				types.Vertex{X: float32(x), Y: float32(y), Z: float32(z)})
		case "vn":
			if len(fields) < 4 {
				continue
			}
			x, _ := strconv.ParseFloat(fields[1], 32)
			y, _ := strconv.ParseFloat(fields[2], 32)
			z, _ := strconv.ParseFloat(fields[3], 32)
			normals = append(normals,
				types.Vertex{X: float32(x), Y: float32(y), Z: float32(z)})
		case "f":
			var idx []uint32
			for _, fstr := range fields[1:] {
				parts := strings.Split(fstr, "/")
				v, err := strconv.Atoi(parts[0])
				if err != nil {
					continue
				}
				if v < 0 {
					v = len(mesh.Vertices) + 1 + v
				}
				vi := uint32(v - 1)
				idx = append(idx, vi)
				if len(parts) == 3 && parts[2] != "" {
					if n, err := strconv.Atoi(parts[2]); err == nil {
						normalOf[vi] = n - 1
					}
				}
			}
			for k := 1; k+1 < len(idx); k++ {
				mesh.Triangles = append(mesh.Triangles, idx[0], idx[k], idx[k+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if len(normals) > 0 {
		mesh.Normals = make([]types.Vertex, len(mesh.Vertices))
		for vi, ni := range normalOf {
			if int(vi) < len(mesh.Normals) && ni < len(normals) {
				mesh.Normals[vi] = normals[ni]
			}
		}
	}
	return mesh, nil
}

func (c *OBJConverter) ConvertToNative(mesh *types.Mesh, target string) error {
	f, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	w := bufio.NewWriter(f)

	fmt.Fprintf(w, "# %s\n", mesh.Name)
	for _, v := range mesh.Vertices {
		fmt.Fprintf(w, "v %g %g %g\n", v.X, v.Y, v.Z)
	}
	hasNormals := len(mesh.Normals) == len(mesh.Vertices)
	if hasNormals {
		for _, n := range mesh.Normals {
			fmt.Fprintf(w, "vn %g %g %g\n", n.X, n.Y, n.Z)
		}
	}
	for t := 0; t+2 < len(mesh.Triangles); t += 3 {
		a, b, cc := mesh.Triangles[t]+1, mesh.Triangles[t+1]+1, mesh.Triangles[t+2]+1
		if hasNormals {
			fmt.Fprintf(w, "f %d//%d %d//%d %d//%d\n", a, a, b, b, cc, cc)
		} else {
			fmt.Fprintf(w, "f %d %d %d\n", a, b, cc)
		}
	}

	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(target)
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return f.Close()
}
