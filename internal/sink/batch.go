package sink

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Batch stages writes in memory until they are flushed to another sink.
type Batch struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (b *Batch) WriteFile(ctx context.Context, path string, content []byte) error {
	if err := ValidatePath(path); err != nil {
		return fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.files == nil {
		b.files = make(map[string][]byte)
	}
	b.files[path] = append([]byte(nil), content...)
	return nil
}

// Len returns the number of staged files.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.files)
}

func (b *Batch) flush(ctx context.Context, dst OutputSink) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	paths := make([]string, 0, len(b.files))
	for p := range b.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := dst.WriteFile(ctx, p, b.files[p]); err != nil {
			return fmt.Errorf("flush %s: %w", p, err)
		}
	}
	b.files = nil
	return nil
}

// WithBatch runs fn against a fresh Batch and flushes it to dst in path
// order only when fn returns nil. When fn fails, every staged write is
// discarded and dst is left untouched.
func WithBatch(ctx context.Context, dst OutputSink, fn func(OutputSink) error) (err error) {
	b := &Batch{}
	defer func() {
		if err != nil {
			b.mu.Lock()
			b.files = nil
			b.mu.Unlock()
		}
	}()
	if err := fn(b); err != nil {
		return err
	}
	return b.flush(ctx, dst)
}
