// Package compiler drives one compile run: resolve the corpus, then
// normalize, annotate, validate and emit every operation concurrently.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/apispecc/internal/annotate"
	"github.com/mark3labs/apispecc/internal/corpus"
	"github.com/mark3labs/apispecc/internal/diag"
	"github.com/mark3labs/apispecc/internal/emitter"
	"github.com/mark3labs/apispecc/internal/ir"
	"github.com/mark3labs/apispecc/internal/metrics"
	"github.com/mark3labs/apispecc/internal/normalize"
	"github.com/mark3labs/apispecc/internal/resolve"
	"github.com/mark3labs/apispecc/internal/sink"
	"github.com/mark3labs/apispecc/internal/validate"
)

// Options tunes a run. The zero value is usable.
type Options struct {
	// Workers bounds concurrent operations. Defaults to GOMAXPROCS.
	Workers int
	// Select filters operations by name before any work is done. nil keeps all.
	Select *normalize.Selector
	Logger *slog.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
	// WarnUnknownTags reports documentation markers outside the known
	// vocabulary as warnings.
	WarnUnknownTags bool
}

// OperationResult is the outcome for one declared operation.
type OperationResult struct {
	Name string
	File string
	// Operation is the enriched record. It is nil for duplicates.
	Operation  *ir.Operation
	Violations []error
	Warnings   []diag.Warning
	Artifacts  []emitter.PlannedFile
}

// Emitted reports whether the operation passed validation and was written.
func (r OperationResult) Emitted() bool {
	return len(r.Violations) == 0 && len(r.Artifacts) > 0
}

// Report summarizes a run. Operations keep corpus order.
type Report struct {
	Target     string
	Operations []OperationResult
	// Filtered names the operations the selector dropped.
	Filtered []string
	// CorpusErrors are problems not owned by any operation: load failures,
	// duplicate types and unresolved references inside type definitions.
	CorpusErrors []error
	Warnings     []diag.Warning
	// Artifacts lists every file handed to the sink, sorted by path.
	Artifacts []emitter.PlannedFile
}

// Failed reports whether any violation was found.
func (r *Report) Failed() bool {
	if len(r.CorpusErrors) > 0 {
		return true
	}
	for _, op := range r.Operations {
		if len(op.Violations) > 0 {
			return true
		}
	}
	return false
}

// Violations returns every corpus and operation violation in report order.
func (r *Report) Violations() []error {
	out := append([]error(nil), r.CorpusErrors...)
	for _, op := range r.Operations {
		out = append(out, op.Violations...)
	}
	diag.Sort(out)
	return out
}

// Counts returns how many operations were emitted and rejected.
func (r *Report) Counts() (emitted, rejected int) {
	for _, op := range r.Operations {
		if len(op.Violations) > 0 {
			rejected++
		} else {
			emitted++
		}
	}
	return emitted, rejected
}

// Run compiles c with em and writes artifacts to dst. Authoring problems
// never abort the run; they are reported per operation and block only that
// operation's artifacts. The returned error is reserved for failures of the
// run itself: cancellation, a failing emitter or sink.
func Run(ctx context.Context, c *corpus.Corpus, em emitter.Emitter, dst sink.OutputSink, opts Options) (*Report, error) {
	if c == nil {
		return nil, errors.New("compiler: nil corpus")
	}
	if em == nil || dst == nil {
		return nil, errors.New("compiler: emitter and sink are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	m := opts.Metrics

	rep := &Report{Target: em.Name()}
	rep.CorpusErrors = append(rep.CorpusErrors, c.Errors...)

	// The table is complete before any operation is looked at and is only
	// read afterwards.
	stop := m.Stage("resolve")
	table, errs := resolve.Build(c)
	stop()
	for _, err := range errs {
		var v diag.Violation
		if errors.As(err, &v) && v.OperationName() != "" {
			// owned by an operation; validation reports it there
			continue
		}
		rep.CorpusErrors = append(rep.CorpusErrors, err)
	}
	logger.Debug("type table built", "types", len(table.Defs()), "corpus_errors", len(rep.CorpusErrors))

	files := selectOperations(c, opts.Select, rep, m)
	results := make([]OperationResult, len(files))
	var planned plannedSet

	stop = m.Stage("operations")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, w := range files {
		if w.dup != nil {
			results[i] = OperationResult{Name: w.name, File: w.file.Path, Violations: []error{w.dup}}
			continue
		}
		g.Go(func() error {
			res, err := compileOperation(gctx, w.file, table, em, dst, opts.WarnUnknownTags)
			if err != nil {
				return fmt.Errorf("operation %s: %w", w.name, err)
			}
			planned.add(res.Artifacts...)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		stop()
		return nil, err
	}
	stop()

	var emitted []*ir.Operation
	for _, res := range results {
		if len(res.Violations) == 0 {
			emitted = append(emitted, res.Operation)
			m.Operation(metrics.StatusEmitted)
			logger.Debug("operation emitted", "operation", res.Name, "artifacts", len(res.Artifacts))
		} else {
			m.Operation(metrics.StatusRejected)
			logger.Info("operation rejected", "operation", res.Name, "file", res.File, "violations", len(res.Violations))
		}
		rep.Warnings = append(rep.Warnings, res.Warnings...)
	}
	rep.Operations = results

	stop = m.Stage("types")
	defs, err := emitTypes(ctx, table, em, dst, &planned, logger)
	stop()
	if err != nil {
		return nil, err
	}

	if ix, ok := em.(emitter.Indexer); ok {
		sort.Slice(emitted, func(i, j int) bool { return emitted[i].Name < emitted[j].Name })
		err := sink.WithBatch(ctx, dst, func(s sink.OutputSink) error {
			art, err := ix.RenderIndex(ctx, emitted, defs, table)
			if err != nil {
				return err
			}
			planned.add(emitter.Plan(art))
			return s.WriteFile(ctx, art.Path, art.Content)
		})
		if err != nil {
			return nil, fmt.Errorf("index: %w", err)
		}
	}

	rep.Artifacts = planned.sorted()
	diag.SortWarnings(rep.Warnings)
	for _, err := range rep.Violations() {
		m.Violation(string(diag.KindOf(err)))
	}
	m.Artifact(em.Name(), len(rep.Artifacts))
	return rep, nil
}

type work struct {
	name string
	file *corpus.File
	dup  error
}

// selectOperations applies the selector and flags repeated operation names.
// The first declaration of a name wins.
func selectOperations(c *corpus.Corpus, sel *normalize.Selector, rep *Report, m *metrics.Metrics) []work {
	var out []work
	first := map[string]*corpus.File{}
	for _, f := range c.Operations() {
		name := annotate.OperationName(f)
		if !sel.Allow(name) {
			rep.Filtered = append(rep.Filtered, name)
			m.Operation(metrics.StatusFiltered)
			continue
		}
		w := work{name: name, file: f}
		if prev, ok := first[name]; ok {
			w.dup = &diag.DuplicateOperationError{
				Name:   name,
				First:  diag.Location{File: prev.Path, Line: prev.Operation.Line, Path: "operation"},
				Second: diag.Location{File: f.Path, Line: f.Operation.Line, Path: "operation"},
			}
		} else {
			first[name] = f
		}
		out = append(out, w)
	}
	return out
}

// compileOperation runs the per-operation stages. Authoring problems land in
// the result; only run failures are returned as errors.
func compileOperation(ctx context.Context, f *corpus.File, table *resolve.Table, em emitter.Emitter, dst sink.OutputSink, warnUnknown bool) (OperationResult, error) {
	if err := ctx.Err(); err != nil {
		return OperationResult{}, err
	}
	op, errs := normalize.Operation(f, table)
	res := OperationResult{Name: annotate.OperationName(f), File: f.Path, Operation: op}
	if op == nil {
		res.Violations = errs
		return res, nil
	}
	errs = append(errs, annotate.Operation(op)...)
	vr := validate.Operation(op, table)
	res.Violations = append(errs, vr.Violations...)
	res.Warnings = vr.Warnings
	if warnUnknown {
		for _, marker := range annotate.Parse(op.Doc).Unknown() {
			res.Warnings = append(res.Warnings, diag.Warning{
				Operation: op.Name,
				Message:   fmt.Sprintf("unknown documentation tag @%s", marker),
				At:        op.Loc(),
			})
		}
	}
	diag.Sort(res.Violations)
	diag.SortWarnings(res.Warnings)
	if len(res.Violations) > 0 {
		return res, nil
	}

	err := sink.WithBatch(ctx, dst, func(s sink.OutputSink) error {
		art, err := em.RenderOperation(ctx, op, table)
		if err != nil {
			return err
		}
		res.Artifacts = append(res.Artifacts, emitter.Plan(art))
		return s.WriteFile(ctx, art.Path, art.Content)
	})
	if err != nil {
		return OperationResult{}, err
	}
	return res, nil
}

// emitTypes renders every declared type whose references all resolve and
// returns the definitions that were emitted.
func emitTypes(ctx context.Context, table *resolve.Table, em emitter.Emitter, dst sink.OutputSink, planned *plannedSet, logger *slog.Logger) ([]*ir.TypeDef, error) {
	var out []*ir.TypeDef
	for _, def := range table.Defs() {
		if table.TypeBroken(def.Name) {
			logger.Debug("type skipped", "type", def.Name, "reason", "unresolved reference")
			continue
		}
		err := sink.WithBatch(ctx, dst, func(s sink.OutputSink) error {
			art, err := em.RenderType(ctx, def, table)
			if err != nil {
				return err
			}
			planned.add(emitter.Plan(art))
			return s.WriteFile(ctx, art.Path, art.Content)
		})
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", def.Name, err)
		}
		out = append(out, def)
	}
	return out, nil
}

type plannedSet struct {
	mu    sync.Mutex
	files []emitter.PlannedFile
}

func (p *plannedSet) add(files ...emitter.PlannedFile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.files = append(p.files, files...)
}

func (p *plannedSet) sorted() []emitter.PlannedFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := append([]emitter.PlannedFile(nil), p.files...)
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out
}
