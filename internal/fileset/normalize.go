package fileset

import (
	"bytes"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

var crlf = []byte("\r\n")

// NormalizeLineEndings rewrites CRLF line endings of a text file to LF.
// Files not detected as text are left alone. It reports whether the file
// was rewritten.
func NormalizeLineEndings(path string) (bool, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return false, err
	}
	if !isText(mtype) {
		return false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	if !bytes.Contains(data, crlf) {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	tmp, err := TempPath(path)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(tmp, bytes.ReplaceAll(data, crlf, []byte("\n")), info.Mode().Perm()); err != nil {
		_ = os.Remove(tmp)
		return false, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return false, err
	}
	return true, nil
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
