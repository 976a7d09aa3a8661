package fileset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jjudge-oj/contestd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	l := Layout{Root: "/srv/uploads"}

	assert.Equal(t, filepath.Join("/srv/uploads", "downfile", "12"), l.Dir(types.FileSetDownfile, 12))
	assert.Equal(t, filepath.Join("/srv/uploads", "solution", "12"), l.Dir(types.FileSetSolution, 12))
	assert.Equal(t, filepath.Join("/srv/uploads", "downfile-archive", "12_down.zip"), l.ArchivePath(types.FileSetDownfile, 12))
	assert.Equal(t, filepath.Join("/srv/uploads", "solution-archive", "12_sol.zip"), l.ArchivePath(types.FileSetSolution, 12))
	assert.Equal(t, "solution-archive/12_sol.zip", ArchiveKey(types.FileSetSolution, 12))
}

func TestValidateFilename(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", `a\b`, "../x", "a\x00"} {
		assert.ErrorIs(t, ValidateFilename(name), ErrInvalidFilename, name)
	}
	for _, name := range []string{"data.in", ".hidden", "a..b", "sample 1.txt"} {
		assert.NoError(t, ValidateFilename(name), name)
	}
}

func TestListMissingDirectory(t *testing.T) {
	files, exists, err := List(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, files)
}

func TestListRegularFilesOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("12345"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("1"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	files, exists, err := List(dir)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []types.FileInfo{
		{Filename: "a.txt", Size: 1},
		{Filename: "b.txt", Size: 5},
	}, files)
}

func TestStatArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "1_down.zip")

	info, err := StatArchive(path)
	require.NoError(t, err)
	assert.Nil(t, info)

	require.NoError(t, os.WriteFile(path, []byte("zipbytes"), 0o644))
	info, err = StatArchive(path)
	require.NoError(t, err)
	require.NotNil(t, info)
	require.NotNil(t, info.Size)
	assert.Equal(t, int64(8), *info.Size)
}

func TestRemoveMissingIsFine(t *testing.T) {
	require.NoError(t, Remove(filepath.Join(t.TempDir(), "gone")))
}

func TestMoveOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "upload")
	dst := filepath.Join(dir, "data.in")
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))

	require.NoError(t, Move(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
}

func TestMoveMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := Move(filepath.Join(dir, "missing"), filepath.Join(dir, "dst"))
	assert.True(t, os.IsNotExist(err))
}

func TestCopyIntoLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	require.NoError(t, copyInto(src, dst))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dst", entries[0].Name())
}

func TestNormalizeLineEndings(t *testing.T) {
	dir := t.TempDir()

	text := filepath.Join(dir, "input.txt")
	require.NoError(t, os.WriteFile(text, []byte("1 2\r\n3 4\r\n"), 0o640))
	changed, err := NormalizeLineEndings(text)
	require.NoError(t, err)
	assert.True(t, changed)
	got, err := os.ReadFile(text)
	require.NoError(t, err)
	assert.Equal(t, "1 2\n3 4\n", string(got))
	info, err := os.Stat(text)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	changed, err = NormalizeLineEndings(text)
	require.NoError(t, err)
	assert.False(t, changed)

	binary := filepath.Join(dir, "blob.bin")
	payload := []byte{0x00, 0x01, '\r', '\n', 0xff, 0x00}
	require.NoError(t, os.WriteFile(binary, payload, 0o644))
	changed, err = NormalizeLineEndings(binary)
	require.NoError(t, err)
	assert.False(t, changed)
	got, err = os.ReadFile(binary)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	_, err = NormalizeLineEndings(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestListSkipsInterruptedWrites(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "data.txt")
	require.NoError(t, os.WriteFile(target, []byte("ok"), 0o644))
	tmp, err := TempPath(target)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tmp, []byte("partial"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".notes.tmp"), []byte("n"), 0o644))

	files, exists, err := List(dir)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, []types.FileInfo{{Filename: ".notes.tmp", Size: 1}, {Filename: "data.txt", Size: 2}}, files)

	assert.True(t, IsTempName(filepath.Base(tmp)))
	assert.False(t, IsTempName("data.txt"))
	assert.False(t, IsTempName(".notes.tmp"))
}
