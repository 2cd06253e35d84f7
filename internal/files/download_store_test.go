package files

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadStoreSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s, err := NewDownloadStore(dir)
	require.NoError(t, err)

	p1, err := s.Save("Entrada_Ana_Gómez.pdf", []byte("%PDF-1"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Entrada_Ana_Gómez.pdf"), p1)

	p2, err := s.Save("Entrada_Ana_Gómez.pdf", []byte("%PDF-2"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Entrada_Ana_Gómez (1).pdf"), p2)

	data, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1", string(data))
	data, err = os.ReadFile(p2)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-2", string(data))
}

func TestDownloadStoreRejectsPaths(t *testing.T) {
	s, err := NewDownloadStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../escape.pdf", "sub/dir.pdf"} {
		_, err := s.Save(name, []byte("x"))
		assert.Error(t, err, name)
	}
}

func TestMemoryStore(t *testing.T) {
	var m MemoryStore
	_, ok := m.Last()
	assert.False(t, ok)

	buf := []byte("abc")
	_, err := m.Save("a.pdf", buf)
	require.NoError(t, err)
	buf[0] = 'z'

	doc, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, "a.pdf", doc.Name)
	assert.Equal(t, "abc", string(doc.Data))
	assert.Len(t, m.Documents(), 1)
}
