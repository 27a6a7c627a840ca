// Package content stores uploaded audio files on disk. Recording metadata
// (filename, path) lives in the session store; raw bytes only ever pass
// through here.
package content

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskStore writes audio files under a single root directory. Full-session
// recordings land in the root; partial recordings in a "partial" subdirectory
// so the two can never be confused for the same session key.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(abs, "partial"), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dirs: %w", err)
	}
	return &DiskStore{root: abs}, nil
}

// SaveFull stores a completed-session recording and returns its filename and
// server-local path.
func (s *DiskStore) SaveFull(sessionID string, r io.Reader) (filename, path string, err error) {
	filename = fmt.Sprintf("recording_%s_%d.wav", sanitize(sessionID), time.Now().UnixMilli())
	path = filepath.Join(s.root, filename)
	if err := writeFile(path, r); err != nil {
		return "", "", err
	}
	return filename, path, nil
}

// SavePartial stores a recording cut short at the given deck index.
func (s *DiskStore) SavePartial(sessionID string, index int, r io.Reader) (filename, path string, err error) {
	filename = fmt.Sprintf("partial_recording_%s_index_%d_%d.wav", sanitize(sessionID), index, time.Now().UnixMilli())
	path = filepath.Join(s.root, "partial", filename)
	if err := writeFile(path, r); err != nil {
		return "", "", err
	}
	return filename, path, nil
}

// Open returns the stored file at path. Paths outside the store root are
// refused so a tampered metadata record cannot read arbitrary files.
func (s *DiskStore) Open(path string) (io.ReadCloser, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if abs != s.root && !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return nil, fmt.Errorf("path %q escapes content root", path)
	}
	return os.Open(abs)
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// sanitize keeps session keys path-safe. Keys are client-generated, so
// anything outside a conservative character set becomes an underscore.
func sanitize(id string) string {
	if id == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
