package blob

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "blob-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	s, err := NewStore(tmpDir, "/attachments")
	require.NoError(t, err)
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := setupTestStore(t)

	saved, err := s.Save("att-001", "receipt.pdf", []byte("%PDF-1.4 fake"))
	require.NoError(t, err)
	assert.Equal(t, "att-001.pdf", saved.StoredName)
	assert.Equal(t, "/attachments/att-001.pdf", saved.URL)
	assert.EqualValues(t, 13, saved.Size)

	data, err := s.Get(saved.StoredName)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 fake"), data)
}

func TestSave_SniffsMimeType(t *testing.T) {
	s := setupTestStore(t)

	saved, err := s.Save("att-001", "photo.png", testPNG(t))
	require.NoError(t, err)
	assert.Equal(t, "image/png", saved.MimeType)
}

func TestSave_SanitizesExtension(t *testing.T) {
	s := setupTestStore(t)

	tests := []struct {
		filename string
		want     string
	}{
		{"notes.txt", "att-x.txt"},
		{"no-extension", "att-x"},
		{"weird.t!x", "att-x"},
		{"../../etc/passwd", "att-x"},
	}

	for _, tt := range tests {
		saved, err := s.Save("att-x", tt.filename, []byte("data"))
		require.NoError(t, err)
		assert.Equal(t, tt.want, saved.StoredName, "filename %q", tt.filename)
	}
}

func TestDelete(t *testing.T) {
	s := setupTestStore(t)

	saved, err := s.Save("att-001", "a.txt", []byte("data"))
	require.NoError(t, err)
	require.True(t, s.Exists(saved.StoredName))

	require.NoError(t, s.Delete(saved.StoredName))
	assert.False(t, s.Exists(saved.StoredName))

	// Deleting again is fine.
	require.NoError(t, s.Delete(saved.StoredName))
}

func TestStoredNameFromURL(t *testing.T) {
	assert.Equal(t, "att-001.png", StoredNameFromURL("/attachments/att-001.png"))
	assert.Equal(t, "att-002", StoredNameFromURL("att-002"))
}

func TestComputeBlurHash(t *testing.T) {
	hash, err := ComputeBlurHash(testPNG(t))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
}

func TestComputeBlurHash_NotAnImage(t *testing.T) {
	_, err := ComputeBlurHash([]byte("plain text"))
	assert.Error(t, err)
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("image/png"))
	assert.True(t, IsImage("image/webp"))
	assert.False(t, IsImage("image/svg+xml"))
	assert.False(t, IsImage("application/pdf"))
}

// testPNG renders a tiny gradient PNG.
func testPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := range 8 {
		for x := range 8 {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
