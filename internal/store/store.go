package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/google/renameio/v2"
)

// ErrCaptureExists is returned when a save would overwrite an existing capture.
var ErrCaptureExists = errors.New("capture already exists")

// Ext is the image extension of every capture. Frames arrive from the decoder as JPEG.
const Ext = "jpg"

var captureName = regexp.MustCompile(`^screenshot_([1-9][0-9]*)\.` + Ext + `$`)

// Capture describes one saved frame on disk.
type Capture struct {
	Index   int
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// Store manages the flat output directory of numbered captures.
type Store struct {
	dir string
}

// New ensures the output directory exists (idempotent) and returns a Store rooted at it.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Open returns a Store rooted at dir without touching the filesystem. Read-only callers use it
// so that listing a directory never creates one.
func Open(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the output directory.
func (s *Store) Dir() string {
	return s.dir
}

// FileName returns the capture name for index n, e.g. screenshot_3.jpg.
func FileName(n int) string {
	return fmt.Sprintf("screenshot_%d.%s", n, Ext)
}

// Save durably writes frame data as capture number n. The write is atomic: either the complete
// file appears under its final name or nothing does. Existing captures are never overwritten.
func (s *Store) Save(n int, data []byte) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("invalid capture index %d", n)
	}
	path := filepath.Join(s.dir, FileName(n))
	if _, err := os.Lstat(path); err == nil {
		return "", fmt.Errorf("%w: %s", ErrCaptureExists, path)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	// renameio handles: temp file creation, fsync, atomic rename, cleanup on error
	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0644))
	if err != nil {
		return "", fmt.Errorf("create pending capture file: %w", err)
	}
	defer pending.Cleanup() //nolint:errcheck // no-op once committed

	if _, err := pending.Write(data); err != nil {
		return "", fmt.Errorf("write capture data: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("commit capture %s: %w", path, err)
	}
	return path, nil
}

// List returns all captures in the output directory ordered by index.
// A missing directory yields an empty list.
func (s *Store) List() ([]Capture, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Capture
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := captureName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, Capture{
			Index:   idx,
			Name:    e.Name(),
			Path:    filepath.Join(s.dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// Count returns the number of captures present.
func (s *Store) Count() (int, error) {
	caps, err := s.List()
	return len(caps), err
}

// Reset deletes every capture and returns how many were removed. Other files are left alone.
func (s *Store) Reset() (int, error) {
	caps, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, c := range caps {
		if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s: %w", c.Path, err)
		}
		removed++
	}
	return removed, nil
}
