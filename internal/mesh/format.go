package mesh

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Format loads and saves the meshes of one file extension.
type Format struct {
	Ext  string
	Load func(path string) (*TriMesh, error)
	Save func(path string, m *TriMesh) error
}

var (
	formatsMu sync.RWMutex
	formats   = map[string]Format{}
)

func init() {
	RegisterFormat(Format{Ext: ".off", Load: loadOFF, Save: saveOFF})
}

// RegisterFormat makes f available to LoadFile and SaveFile. A later registration of the
// same extension replaces the earlier one.
func RegisterFormat(f Format) {
	formatsMu.Lock()
	defer formatsMu.Unlock()
	formats[strings.ToLower(f.Ext)] = f
}

// Supported reports whether path has the extension of a registered format.
func Supported(path string) bool {
	_, err := formatOf(path)
	return err == nil
}

// Extensions lists the registered extensions in order.
func Extensions() []string {
	formatsMu.RLock()
	defer formatsMu.RUnlock()
	exts := make([]string, 0, len(formats))
	for ext := range formats {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func formatOf(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	formatsMu.RLock()
	f, ok := formats[ext]
	formatsMu.RUnlock()
	if !ok {
		return Format{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return f, nil
}

// LoadFile reads a mesh in the format its extension names.
func LoadFile(path string) (*TriMesh, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	return f.Load(path)
}

// SaveFile writes m in the format the extension of path names.
func SaveFile(path string, m *TriMesh) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}
	if f.Save == nil {
		return fmt.Errorf("%w: %q is read only", ErrUnsupportedFormat, f.Ext)
	}
	return f.Save(path, m)
}
