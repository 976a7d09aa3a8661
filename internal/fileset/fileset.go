// Package fileset holds the on-disk layout and filesystem primitives of
// contest file sets. It does no locking; callers serialize access.
package fileset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jjudge-oj/contestd/types"
)

// ErrInvalidFilename is returned for names that would escape the file set directory.
var ErrInvalidFilename = errors.New("invalid filename")

// Layout maps file sets to paths under an upload root:
//
//	<root>/<kind>/<contest id>/
//	<root>/<kind>-archive/<contest id><suffix>
type Layout struct {
	Root string
}

// Dir is the directory holding the files of a set.
func (l Layout) Dir(kind types.FileSetKind, contestID int) string {
	return filepath.Join(l.Root, string(kind), strconv.Itoa(contestID))
}

// ArchivePath is the fixed location of the set's archive.
func (l Layout) ArchivePath(kind types.FileSetKind, contestID int) string {
	return filepath.Join(l.Root, filepath.FromSlash(ArchiveKey(kind, contestID)))
}

// ArchiveKey is the archive location relative to the root, with forward
// slashes. It doubles as the object key of the mirrored copy.
func ArchiveKey(kind types.FileSetKind, contestID int) string {
	return path.Join(string(kind)+"-archive", strconv.Itoa(contestID)+kind.ArchiveSuffix())
}

// ValidateFilename rejects empty names, dot entries and anything containing
// a path separator.
func ValidateFilename(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}

// List returns the regular files of dir sorted by name. exists is false
// when dir does not exist.
func List(dir string) (files []types.FileInfo, exists bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}

	files = make([]types.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || IsTempName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, true, err
		}
		files = append(files, types.FileInfo{Filename: entry.Name(), Size: info.Size()})
	}
	return files, true, nil
}

// StatArchive reports the archive at path, or nil when there is none.
func StatArchive(path string) (*types.ArchiveInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, nil
	}
	size := info.Size()
	return &types.ArchiveInfo{Size: &size}, nil
}

// Remove deletes path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
