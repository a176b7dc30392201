package tools

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/ecopia-map/vdpm/internal/pmtool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFmtRatio(t *testing.T) {
	assert.Equal(t, "50.00%", FmtRatio(1, 2))
	assert.Equal(t, "33.33%", FmtRatio(1, 3))
	assert.Equal(t, "0.00%", FmtRatio(3, 0))
}

func TestParseVec3(t *testing.T) {
	v, err := ParseVec3("1, -2.5,3e2")
	require.NoError(t, err)
	assert.Equal(t, [3]float64{1, -2.5, 300}, v)

	_, err = ParseVec3("1,2")
	assert.Error(t, err)
	_, err = ParseVec3("1,2,z")
	assert.Error(t, err)
}

func TestFileFinder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.off", "b.OFF", "c.ply", ".partial.off", filepath.Join("sub", "d.off")} {
		path := filepath.Join(dir, name)
		require.NoError(t, CreateDirectoryIfDoesNotExist(filepath.Dir(path)))
		require.NoError(t, os.WriteFile(path, []byte("OFF\n0 0 0\n"), 0o644))
	}
	finder := NewStandardFileFinder()

	files, err := finder.GetMeshFilesToProcess(&pmtool.Options{Input: dir, FolderProcessing: true})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.off"), filepath.Join(dir, "b.OFF")}, files)

	files, err = finder.GetMeshFilesToProcess(&pmtool.Options{Input: dir, FolderProcessing: true, Recursive: true})
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = finder.GetMeshFilesToProcess(&pmtool.Options{Input: "x.off"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x.off"}, files)

	_, err = finder.GetMeshFilesToProcess(&pmtool.Options{Input: filepath.Join(dir, "missing"), FolderProcessing: true})
	assert.Error(t, err)
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.txt")
	require.NoError(t, WriteFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "hello")
		return err
	}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	failed := errors.New("boom")
	err = WriteFileAtomic(path, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return failed
	})
	assert.ErrorIs(t, err, failed)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
