package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestCRC32EmptyFile(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "empty.txt", nil)

	crc, err := CRC32(p)
	require.NoError(t, err)
	assert.Equal(t, EmptyCRC, crc)
}

func TestCRC32KnownValue(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "hi.txt", []byte("hi"))

	crc, err := CRC32(p)
	require.NoError(t, err)
	assert.Equal(t, "0xd8932aac", crc)
}

func TestFilesEqual(t *testing.T) {
	dir := t.TempDir()
	a := writeTemp(t, dir, "a.txt", []byte("same"))
	b := writeTemp(t, dir, "b.txt", []byte("same"))
	c := writeTemp(t, dir, "c.txt", []byte("different"))

	eq, err := FilesEqual(a, b)
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = FilesEqual(a, c)
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestFilesEqualEmptyFilesAreEqual(t *testing.T) {
	dir := t.TempDir()
	a := writeTemp(t, dir, "a.txt", nil)
	b := writeTemp(t, dir, "b.txt", nil)

	eq, err := FilesEqual(a, b)
	require.NoError(t, err)
	assert.True(t, eq)
}
