// Package emitter defines the capability every output target implements.
// Targets live in sub-packages and are chosen by name at invocation time.
package emitter

import (
	"context"
	"os"

	"github.com/mark3labs/apispecc/internal/ir"
	"github.com/mark3labs/apispecc/internal/resolve"
)

// Artifact is one rendered output file.
type Artifact struct {
	Path    string // slash separated, relative to the output root
	Content []byte
}

// Emitter renders validated operations and shared types for one target.
// Implementations must be deterministic and must not perform I/O; the same
// input always yields byte-identical artifacts.
type Emitter interface {
	Name() string
	RenderOperation(ctx context.Context, op *ir.Operation, types *resolve.Table) (Artifact, error)
	RenderType(ctx context.Context, def *ir.TypeDef, types *resolve.Table) (Artifact, error)
}

// Indexer is implemented by targets that also render one summary artifact
// over everything emitted in a run. ops and defs are sorted by name.
type Indexer interface {
	RenderIndex(ctx context.Context, ops []*ir.Operation, defs []*ir.TypeDef, types *resolve.Table) (Artifact, error)
}

// PlannedFile describes an artifact handed to the sink.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Plan describes the sink write for a.
func Plan(a Artifact) PlannedFile {
	return PlannedFile{RelPath: a.Path, Size: len(a.Content), Mode: 0o644}
}
