package scanner

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

var frameExts = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true}

// DirSource serves image files dropped into Dir by a capture process, oldest
// first. Each file is served once.
type DirSource struct {
	Dir string

	mu     sync.Mutex
	seen   map[string]bool
	closed bool
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{Dir: dir, seen: make(map[string]bool)}
}

func (d *DirSource) Next(ctx context.Context) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrReleased
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.Dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}
	type frame struct {
		name string
		mod  int64
	}
	var pending []frame
	for _, e := range entries {
		if e.IsDir() || d.seen[e.Name()] || !frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		pending = append(pending, frame{e.Name(), info.ModTime().UnixNano()})
	}
	if len(pending) == 0 {
		return nil, ErrNoFrame
	}
	sort.Slice(pending, func(i, j int) bool {
		if pending[i].mod == pending[j].mod {
			return pending[i].name < pending[j].name
		}
		return pending[i].mod < pending[j].mod
	})

	name := pending[0].name
	d.seen[name] = true
	img, err := imaging.Open(filepath.Join(d.Dir, name))
	if err != nil {
		// half-written or not an image; skip it
		return nil, ErrNoFrame
	}
	return img, nil
}

func (d *DirSource) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrReleased
	}
	d.closed = true
	return nil
}

// SnapshotSource polls the still-image endpoint most IP cameras expose.
type SnapshotSource struct {
	URL    string
	Client *http.Client

	mu     sync.Mutex
	closed bool
}

func NewSnapshotSource(url string, client *http.Client) *SnapshotSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &SnapshotSource{URL: url, Client: client}
}

func (s *SnapshotSource) Next(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrReleased
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: camera returned %d", ErrNoFrame, resp.StatusCode)
	}
	img, err := imaging.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFrame, err)
	}
	return img, nil
}

func (s *SnapshotSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrReleased
	}
	s.closed = true
	s.Client.CloseIdleConnections()
	return nil
}
