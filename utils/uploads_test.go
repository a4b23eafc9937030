package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterializeUpload_RoundTrip(t *testing.T) {
	base := t.TempDir()
	content := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0xff}

	f, err := MaterializeUpload(base, "req-1", "shirt.png", bytes.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, "shirt.png", filepath.Base(f.Path))
	assert.Equal(t, int64(len(content)), f.Size)
	got, err := os.ReadFile(f.Path)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	ref := f.Ref()
	assert.Equal(t, "shirt.png", ref.Name)
	assert.Equal(t, f.Path, ref.Path)
}

func TestMaterializeUpload_SameNameDoesNotCollide(t *testing.T) {
	base := t.TempDir()

	a, err := MaterializeUpload(base, "req-1", "shirt.png", bytes.NewReader([]byte("first")))
	require.NoError(t, err)
	b, err := MaterializeUpload(base, "req-1", "shirt.png", bytes.NewReader([]byte("second")))
	require.NoError(t, err)

	assert.NotEqual(t, a.Path, b.Path)
	gotA, _ := os.ReadFile(a.Path)
	gotB, _ := os.ReadFile(b.Path)
	assert.Equal(t, "first", string(gotA))
	assert.Equal(t, "second", string(gotB))
}

func TestMaterializeUpload_CleanupRemovesFile(t *testing.T) {
	base := t.TempDir()

	f, err := MaterializeUpload(base, "req-2", "person.jpg", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	require.NoError(t, f.Cleanup())

	_, err = os.Stat(f.Path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, f.Cleanup())
}

func TestMaterializeUpload_StripsDirectories(t *testing.T) {
	base := t.TempDir()

	f, err := MaterializeUpload(base, "../evil", "../../etc/passwd", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	defer f.Cleanup()

	assert.Equal(t, "passwd", filepath.Base(f.Path))
	rel, err := filepath.Rel(base, f.Path)
	require.NoError(t, err)
	assert.NotContains(t, rel, "..")

	_, err = MaterializeUpload(base, "req", "", bytes.NewReader(nil))
	assert.Error(t, err)
}
