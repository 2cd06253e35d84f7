package files

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DownloadStore writes generated documents into a directory the way a
// browser download would: an existing name gets a " (n)" suffix instead of
// being overwritten.
type DownloadStore struct {
	dir string
	mu  sync.Mutex
}

// NewDownloadStore creates dir if needed.
func NewDownloadStore(dir string) (*DownloadStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &DownloadStore{dir: dir}, nil
}

// Save stores data under name and returns the path actually written.
func (s *DownloadStore) Save(name string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 0; ; n++ {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
		}
		path := filepath.Join(s.dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", err
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", err
		}
		return path, nil
	}
}

// Document is a file kept in memory instead of on disk.
type Document struct {
	Name string
	Data []byte
}

// MemoryStore collects saved documents. The console uses it to hand the
// PDF back in the HTTP response.
type MemoryStore struct {
	mu   sync.Mutex
	docs []Document
}

func (m *MemoryStore) Save(name string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, Document{Name: name, Data: append([]byte(nil), data...)})
	return name, nil
}

func (m *MemoryStore) Documents() []Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Document(nil), m.docs...)
}

// Last returns the most recently saved document.
func (m *MemoryStore) Last() (Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.docs) == 0 {
		return Document{}, false
	}
	return m.docs[len(m.docs)-1], true
}
