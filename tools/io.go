package tools

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
)

// CreateDirectoryIfDoesNotExist creates directory and its parents. "" and "." are no-ops.
func CreateDirectoryIfDoesNotExist(directory string) error {
	if directory == "" || directory == "." {
		return nil
	}
	return os.MkdirAll(directory, 0777)
}

// WriteFileAtomic creates the folder of path, lets write fill a temporary file next to it
// and renames it into place, so readers never see a partial file.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := CreateDirectoryIfDoesNotExist(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
