package types

import "fmt"

// FileSetKind names one of the two file collections of a contest.
type FileSetKind string

const (
	// FileSetDownfile holds files handed out to contestants.
	FileSetDownfile FileSetKind = "downfile"

	// FileSetSolution holds reference solutions published after the contest.
	FileSetSolution FileSetKind = "solution"
)

// ParseFileSetKind validates a kind taken from user input.
func ParseFileSetKind(raw string) (FileSetKind, error) {
	switch k := FileSetKind(raw); k {
	case FileSetDownfile, FileSetSolution:
		return k, nil
	default:
		return "", fmt.Errorf("unknown file set %q", raw)
	}
}

// ArchiveSuffix is the fixed file name suffix of the kind's archive.
func (k FileSetKind) ArchiveSuffix() string {
	if k == FileSetSolution {
		return "_sol.zip"
	}
	return "_down.zip"
}

// FileInfo describes one stored file.
type FileInfo struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// ArchiveInfo describes the cached archive of a file set.
type ArchiveInfo struct {
	// Size is nil when the archive exists but its size could not be read back.
	Size *int64 `json:"size"`

	// ObjectKey is set when a copy was mirrored to object storage.
	ObjectKey string `json:"object_key,omitempty"`
}

// FileListing is the content of one file set.
type FileListing struct {
	// Exists is false when the file set has never been written to.
	Exists bool       `json:"exists"`
	Files  []FileInfo `json:"files"`

	// Archive is nil when no archive is cached.
	Archive *ArchiveInfo `json:"archive"`
}

// TotalSize sums the sizes of all files except the excluded name.
func (l FileListing) TotalSize(exclude string) int64 {
	var total int64
	for _, f := range l.Files {
		if f.Filename != exclude {
			total += f.Size
		}
	}
	return total
}

// Has reports whether filename is present.
func (l FileListing) Has(filename string) bool {
	for _, f := range l.Files {
		if f.Filename == filename {
			return true
		}
	}
	return false
}
