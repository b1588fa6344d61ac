// Package sink provides the destinations compiled artifacts are written to.
// Emitters never touch the filesystem; the compiler hands their output to
// an OutputSink.
package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// OutputSink receives artifact content. Implementations must be safe for
// concurrent calls.
type OutputSink interface {
	// WriteFile writes content to a slash separated path relative to the
	// sink's root.
	WriteFile(ctx context.Context, path string, content []byte) error
}

// FilesystemSink writes below a root directory. Each file is written to a
// temp file in the destination directory and renamed into place, so readers
// never observe a partially written artifact.
type FilesystemSink struct {
	Root string
	Mode os.FileMode
}

// NewFilesystemSink returns a sink rooted at root.
func NewFilesystemSink(root string) *FilesystemSink {
	return &FilesystemSink{Root: root, Mode: 0o644}
}

func (s *FilesystemSink) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".apispecc-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	_, werr := tmp.Write(content)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp %s: %w", path, errors.Join(werr, cerr))
	}
	mode := s.Mode
	if mode == 0 {
		mode = 0o644
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, full); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func (s *FilesystemSink) resolve(path string) (string, error) {
	absRoot, err := filepath.Abs(s.Root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	full := filepath.Join(absRoot, filepath.FromSlash(path))
	if !strings.HasPrefix(full, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes root directory: %q", path)
	}
	return full, nil
}

// MemorySink keeps artifacts in memory. It backs dry runs and tests.
type MemorySink struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

func (s *MemorySink) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := append([]byte(nil), content...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = cp
	return nil
}

// Files returns a copy of everything written so far.
func (s *MemorySink) Files() map[string][]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.files))
	for p, c := range s.files {
		out[p] = append([]byte(nil), c...)
	}
	return out
}

// Get returns the content written to path, or nil.
func (s *MemorySink) Get(path string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.files[path]
	if !ok {
		return nil
	}
	return append([]byte(nil), c...)
}

// Paths returns the written paths in sorted order.
func (s *MemorySink) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Drift describes one artifact whose committed copy is out of date.
type Drift struct {
	Path   string
	Reason string // "missing", "differs" or "unexpected"
}

func (d Drift) String() string { return d.Path + ": " + d.Reason }

// CheckSink compares artifacts with the files already present under Root
// and records differences instead of writing. Files under Root that no
// artifact claimed are reported as unexpected; dot files and directories
// are ignored.
type CheckSink struct {
	Root string

	mu      sync.Mutex
	drift   []Drift
	written map[string]bool
}

func NewCheckSink(root string) *CheckSink {
	return &CheckSink{Root: root, written: map[string]bool{}}
}

func (s *CheckSink) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.written[path] = true
	s.mu.Unlock()
	existing, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(path)))
	var reason string
	switch {
	case errors.Is(err, fs.ErrNotExist):
		reason = "missing"
	case err != nil:
		return fmt.Errorf("read %s: %w", path, err)
	case !bytes.Equal(existing, content):
		reason = "differs"
	default:
		return nil
	}
	s.mu.Lock()
	s.drift = append(s.drift, Drift{Path: path, Reason: reason})
	s.mu.Unlock()
	return nil
}

// Drift returns the recorded differences plus the unexpected files under
// Root, sorted by path. Call it once every artifact has been written.
func (s *CheckSink) Drift() []Drift {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]Drift(nil), s.drift...)
	_ = filepath.WalkDir(s.Root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p != s.Root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !s.written[rel] {
			out = append(out, Drift{Path: rel, Reason: "unexpected"})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ValidatePath checks that path is relative, slash separated, clean and
// free of traversal.
func ValidatePath(path string) error {
	if path == "" {
		return errors.New("path is empty")
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return errors.New("absolute paths not allowed")
	}
	if len(path) >= 2 && path[1] == ':' {
		return errors.New("absolute paths not allowed")
	}
	for _, elem := range strings.Split(path, "/") {
		if elem == ".." {
			return errors.New("path traversal not allowed")
		}
	}
	if cleaned := filepath.ToSlash(filepath.Clean(path)); cleaned != path {
		return fmt.Errorf("path is not clean (expected %q)", cleaned)
	}
	return nil
}

// PrepareDir makes sure dir can receive output. A non-empty existing
// directory is refused unless force is set.
func PrepareDir(dir string, force bool) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	st, err := os.Stat(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return os.MkdirAll(abs, 0o755)
	case err != nil:
		return fmt.Errorf("stat out dir: %w", err)
	case !st.IsDir():
		return fmt.Errorf("output path %q is not a directory", abs)
	}
	if force {
		return nil
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return fmt.Errorf("read out dir: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("output directory %q is not empty (use --force to overwrite)", abs)
	}
	return nil
}
