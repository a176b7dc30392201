package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/spatial/r3"
)

func loadOFF(path string) (*TriMesh, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	m, err := ReadOFF(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

func saveOFF(path string, m *TriMesh) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(file)
	if err := WriteOFF(w, m); err != nil {
		file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

type offScanner struct {
	sc   *bufio.Scanner
	line int
}

// fields returns the next non-empty line split on whitespace, comments stripped.
func (s *offScanner) fields() ([]string, error) {
	for s.sc.Scan() {
		s.line++
		text := s.sc.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		if f := strings.Fields(text); len(f) > 0 {
			return f, nil
		}
	}
	if err := s.sc.Err(); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: unexpected end of file after line %d", ErrMalformedInput, s.line)
}

func (s *offScanner) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformedInput, s.line, fmt.Sprintf(format, args...))
}

// ReadOFF parses an OFF file. Polygons are fan triangulated.
func ReadOFF(r io.Reader) (*TriMesh, error) {
	s := &offScanner{sc: bufio.NewScanner(r)}
	s.sc.Buffer(make([]byte, 64*1024), 1024*1024)

	f, err := s.fields()
	if err != nil {
		return nil, err
	}
	if f[0] != "OFF" {
		return nil, s.errorf("missing OFF header")
	}
	counts := f[1:]
	if len(counts) == 0 {
		if counts, err = s.fields(); err != nil {
			return nil, err
		}
	}
	if len(counts) < 2 {
		return nil, s.errorf("missing element counts")
	}
	nv, err1 := strconv.Atoi(counts[0])
	nf, err2 := strconv.Atoi(counts[1])
	if err1 != nil || err2 != nil || nv < 0 || nf < 0 {
		return nil, s.errorf("bad element counts %q", counts)
	}

	b := NewBuilder()
	for i := 0; i < nv; i++ {
		f, err := s.fields()
		if err != nil {
			return nil, err
		}
		if len(f) < 3 {
			return nil, s.errorf("vertex %d has %d coordinates", i, len(f))
		}
		var p [3]float64
		for k := 0; k < 3; k++ {
			if p[k], err = strconv.ParseFloat(f[k], 64); err != nil {
				return nil, s.errorf("vertex %d: %v", i, err)
			}
		}
		b.AddVertex(r3.Vec{X: p[0], Y: p[1], Z: p[2]})
	}

	for i := 0; i < nf; i++ {
		f, err := s.fields()
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(f[0])
		if err != nil || n < 3 || len(f) < n+1 {
			return nil, s.errorf("face %d is not a polygon", i)
		}
		idx := make([]VertexHandle, n)
		for k := 0; k < n; k++ {
			v, err := strconv.Atoi(f[k+1])
			if err != nil {
				return nil, s.errorf("face %d: %v", i, err)
			}
			idx[k] = VertexHandle(v)
		}
		for k := 1; k+1 < n; k++ {
			if err := b.AddFace(idx[0], idx[k], idx[k+1]); err != nil {
				return nil, s.errorf("face %d: %v", i, err)
			}
		}
	}
	return b.Build()
}

// WriteOFF writes the live part of m, renumbering vertices densely.
func WriteOFF(w io.Writer, m *TriMesh) error {
	index := make([]int, m.VertexSlots())
	live := m.LiveVertices()
	for i, v := range live {
		index[v] = i
	}
	faces := m.LiveFaces()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "OFF\n%d %d %d\n", len(live), len(faces), m.NEdges())
	for _, v := range live {
		p := m.Position(v)
		fmt.Fprintf(bw, "%s %s %s\n", formatCoord(p.X), formatCoord(p.Y), formatCoord(p.Z))
	}
	for _, f := range faces {
		vs := m.FaceVertices(f)
		fmt.Fprintf(bw, "3 %d %d %d\n", index[vs[0]], index[vs[1]], index[vs[2]])
	}
	return bw.Flush()
}

func formatCoord(x float64) string {
	return decimal.NewFromFloat(x).String()
}
