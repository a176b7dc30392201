//go:build plyfile

package plyio

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"unsafe"

	plyfile "github.com/cobaltgray/go-plyfile"
	"github.com/ecopia-map/vdpm/internal/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

const Ext = ".ply"

func init() {
	mesh.RegisterFormat(mesh.Format{Ext: Ext, Load: Load, Save: Save})
}

// vertex and face are laid out without padding, as the C reader fills them byte by byte.
type vertex struct {
	X, Y, Z float32
}

type face struct {
	Count   byte
	Indices [8]byte // address of the index list
}

var (
	vertexProps = []plyfile.PlyProperty{
		{Name: "x", External_type: plyfile.PLY_FLOAT, Internal_type: plyfile.PLY_FLOAT, Offset: int(unsafe.Offsetof(vertex{}.X))},
		{Name: "y", External_type: plyfile.PLY_FLOAT, Internal_type: plyfile.PLY_FLOAT, Offset: int(unsafe.Offsetof(vertex{}.Y))},
		{Name: "z", External_type: plyfile.PLY_FLOAT, Internal_type: plyfile.PLY_FLOAT, Offset: int(unsafe.Offsetof(vertex{}.Z))},
	}
	faceProp = plyfile.PlyProperty{
		Name:           "vertex_indices",
		External_type:  plyfile.PLY_INT,
		Internal_type:  plyfile.PLY_INT,
		Offset:         int(unsafe.Offsetof(face{}.Indices)),
		Is_list:        plyfile.PLY_LIST,
		Count_external: plyfile.PLY_UCHAR,
		Count_internal: plyfile.PLY_UCHAR,
		Count_offset:   int(unsafe.Offsetof(face{}.Count)),
	}
)

// checkHeader rejects what the C reader cannot open, as it does not report errors.
func checkHeader(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	line, err := bufio.NewReader(file).ReadString('\n')
	if err != nil || (line != "ply\n" && line != "ply\r\n") {
		return fmt.Errorf("%s: %w: missing ply header", path, mesh.ErrMalformedInput)
	}
	return nil
}

// Load reads the vertex positions and the polygons of a PLY file. Polygons are split into
// triangle fans.
func Load(path string) (*mesh.TriMesh, error) {
	if err := checkHeader(path); err != nil {
		return nil, err
	}
	ply, names := plyfile.PlyOpenForReading(path)
	defer plyfile.PlyClose(ply)

	var positions []r3.Vec
	var polygons [][]int32
	for _, name := range names {
		props, n, _ := plyfile.PlyGetElementDescription(ply, name)
		switch name {
		case "vertex":
			for _, p := range vertexProps {
				plyfile.PlyGetProperty(ply, name, p)
			}
			positions = make([]r3.Vec, n)
			for i := range positions {
				var v vertex
				plyfile.PlyGetElement(ply, &v, unsafe.Sizeof(v))
				positions[i] = r3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
			}
		case "face":
			prop := faceProp
			for _, p := range props {
				if p.Name == "vertex_index" {
					prop.Name = p.Name
				}
			}
			plyfile.PlyGetProperty(ply, name, prop)
			polygons = make([][]int32, n)
			for i := range polygons {
				var f face
				plyfile.PlyGetElement(ply, &f, unsafe.Sizeof(f))
				// the list is allocated by the C reader and stays owned by it
				list := plyfile.ByteSliceToPointer(f.Indices[:])
				polygons[i] = append([]int32(nil), unsafe.Slice((*int32)(unsafe.Pointer(list)), int(f.Count))...)
			}
		default:
			var skip [1]byte
			for i := 0; i < n; i++ {
				plyfile.PlyGetElement(ply, &skip, unsafe.Sizeof(skip))
			}
		}
	}

	b := mesh.NewBuilder()
	for _, p := range positions {
		b.AddVertex(p)
	}
	for i, poly := range polygons {
		if len(poly) < 3 {
			return nil, fmt.Errorf("%s: %w: face %d has %d vertices", path, mesh.ErrMalformedInput, i, len(poly))
		}
		for _, v := range poly {
			if v < 0 || int(v) >= len(positions) {
				return nil, fmt.Errorf("%s: %w: face %d references vertex %d", path, mesh.ErrMalformedInput, i, v)
			}
		}
		for k := 1; k+1 < len(poly); k++ {
			if err := b.AddFace(mesh.VertexHandle(poly[0]), mesh.VertexHandle(poly[k]), mesh.VertexHandle(poly[k+1])); err != nil {
				return nil, fmt.Errorf("%s: face %d: %w", path, i, err)
			}
		}
	}
	return b.Build()
}

// Save writes the live part of m as a binary little endian PLY file.
func Save(path string, m *mesh.TriMesh) error {
	// the C writer does not report a failed open
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	names := []string{"vertex", "face"}
	var version float32
	ply := plyfile.PlyOpenForWriting(path, len(names), names, plyfile.PLY_BINARY_LE, &version)

	vertices := m.LiveVertices()
	faces := m.LiveFaces()
	plyfile.PlyElementCount(ply, "vertex", len(vertices))
	for _, p := range vertexProps {
		plyfile.PlyDescribeProperty(ply, "vertex", p)
	}
	plyfile.PlyElementCount(ply, "face", len(faces))
	plyfile.PlyDescribeProperty(ply, "face", faceProp)
	plyfile.PlyHeaderComplete(ply)

	index := make([]int32, m.VertexSlots())
	plyfile.PlyPutElementSetup(ply, "vertex")
	for i, vh := range vertices {
		index[vh] = int32(i)
		p := m.Position(vh)
		plyfile.PlyPutElement(ply, vertex{X: float32(p.X), Y: float32(p.Y), Z: float32(p.Z)})
	}

	// the writer dereferences the list addresses, so the lists must outlive the calls
	lists := make([][3]int32, len(faces))
	plyfile.PlyPutElementSetup(ply, "face")
	for i, fh := range faces {
		vs := m.FaceVertices(fh)
		lists[i] = [3]int32{index[vs[0]], index[vs[1]], index[vs[2]]}
		f := face{Count: 3}
		copy(f.Indices[:], plyfile.PointerToByteSlice(uintptr(unsafe.Pointer(&lists[i]))))
		plyfile.PlyPutElement(ply, f)
	}
	plyfile.PlyClose(ply)
	runtime.KeepAlive(lists)
	return nil
}
