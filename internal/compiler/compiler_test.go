package compiler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mark3labs/apispecc/internal/corpus"
	"github.com/mark3labs/apispecc/internal/diag"
	"github.com/mark3labs/apispecc/internal/emitter"
	"github.com/mark3labs/apispecc/internal/emitter/goemitter"
	"github.com/mark3labs/apispecc/internal/emitter/mdemitter"
	"github.com/mark3labs/apispecc/internal/emitter/oasemitter"
	"github.com/mark3labs/apispecc/internal/metrics"
	"github.com/mark3labs/apispecc/internal/normalize"
	"github.com/mark3labs/apispecc/internal/sink"
)

func loadSample(t *testing.T) *corpus.Corpus {
	t.Helper()
	c, err := corpus.Load(context.Background(), filepath.Join("..", "..", "testdata", "corpus"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return c
}

func writeCorpus(t *testing.T, files map[string]string) *corpus.Corpus {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	c, err := corpus.Load(context.Background(), root)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Errors) > 0 {
		t.Fatalf("corpus errors: %v", c.Errors)
	}
	return c
}

const okOperation = `operation:
  doc: |
    Ping the cluster.
    @rest_spec_name demo.ping
    @availability stack since=1.0.0
  urls:
    - path: /_demo/ping
      methods: [HEAD]
`

func resultFor(t *testing.T, rep *Report, name string) OperationResult {
	t.Helper()
	for _, r := range rep.Operations {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("no result for %s", name)
	return OperationResult{}
}

func TestRun_SampleCorpus(t *testing.T) {
	t.Parallel()
	c := loadSample(t)
	mem := sink.NewMemorySink()
	m := metrics.New()
	rep, err := Run(context.Background(), c, goemitter.New(goemitter.Options{}), mem, Options{Metrics: m})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Failed() {
		t.Fatalf("sample corpus must compile cleanly: %v", rep.Violations())
	}
	emitted, rejected := rep.Counts()
	if emitted != 3 || rejected != 0 {
		t.Errorf("counts: emitted=%d rejected=%d", emitted, rejected)
	}
	for _, want := range []string{
		"api.cat.templates.go",
		"api.ingest.delete_geoip_database.go",
		"api.text_structure.find_message_structure.go",
		"types.field_mapping.go",
		"client.go",
	} {
		if mem.Get(want) == nil {
			t.Errorf("missing artifact %s (have %v)", want, mem.Paths())
		}
	}
	var planned []string
	for _, p := range rep.Artifacts {
		planned = append(planned, p.RelPath)
	}
	if diff := cmp.Diff(mem.Paths(), planned); diff != "" {
		t.Errorf("planned artifacts differ from written ones (-written +planned):\n%s", diff)
	}

	// an explicit boolean false survives every stage
	cat := resultFor(t, rep, "cat.templates")
	for _, p := range cat.Operation.QueryParams {
		if p.Name == "local" {
			if p.Default == nil || p.Default.Value != false {
				t.Errorf("local default: %+v", p.Default)
			}
		}
	}
}

func TestRun_Deterministic(t *testing.T) {
	t.Parallel()
	c := loadSample(t)
	targets := []emitter.Emitter{
		goemitter.New(goemitter.Options{}),
		mdemitter.New(mdemitter.Options{}),
		oasemitter.New(oasemitter.Options{}),
	}
	for _, em := range targets {
		a, b := sink.NewMemorySink(), sink.NewMemorySink()
		if _, err := Run(context.Background(), c, em, a, Options{Workers: 1}); err != nil {
			t.Fatalf("%s: %v", em.Name(), err)
		}
		if _, err := Run(context.Background(), c, em, b, Options{Workers: 8}); err != nil {
			t.Fatalf("%s: %v", em.Name(), err)
		}
		if diff := cmp.Diff(a.Files(), b.Files()); diff != "" {
			t.Errorf("%s: output depends on scheduling (-1 worker +8 workers):\n%s", em.Name(), diff)
		}
	}
}

func TestRun_DuplicateParameterReportedOnce(t *testing.T) {
	t.Parallel()
	c := writeCorpus(t, map[string]string{
		"demo/search.yaml": `operation:
  doc: |
    Search.
    @rest_spec_name demo.search
    @availability stack
  query_parameters:
    - name: size
      type: integer
      optional: true
    - name: from
      type: integer
      optional: true
    - name: size
      type: integer
      optional: true
`,
		"demo/ping.yaml": okOperation,
	})
	mem := sink.NewMemorySink()
	rep, err := Run(context.Background(), c, mdemitter.New(mdemitter.Options{}), mem, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	res := resultFor(t, rep, "demo.search")
	if len(res.Violations) != 1 {
		t.Fatalf("want exactly one violation, got %v", res.Violations)
	}
	var dup *diag.DuplicateParameterError
	if !errors.As(res.Violations[0], &dup) {
		t.Fatalf("want DuplicateParameterError, got %T", res.Violations[0])
	}
	var paths []string
	for _, l := range dup.Locations {
		paths = append(paths, l.Path)
	}
	if diff := cmp.Diff([]string{"query_parameters[0]", "query_parameters[2]"}, paths); diff != "" {
		t.Errorf("locations (-want +got):\n%s", diff)
	}
	if mem.Get("operations/demo.search.md") != nil {
		t.Errorf("rejected operation must not be emitted")
	}
	if mem.Get("operations/demo.ping.md") == nil {
		t.Errorf("valid operation must still be emitted")
	}
}

func TestRun_MissingAvailabilityIsolated(t *testing.T) {
	t.Parallel()
	c := writeCorpus(t, map[string]string{
		"demo/ping.yaml": okOperation,
		"demo/stats.yaml": `operation:
  doc: |
    Stats.
    @rest_spec_name demo.stats
`,
	})
	mem := sink.NewMemorySink()
	rep, err := Run(context.Background(), c, goemitter.New(goemitter.Options{}), mem, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !rep.Failed() {
		t.Fatalf("run must fail")
	}
	got := rep.Violations()
	if len(got) != 1 || diag.KindOf(got[0]) != diag.KindMissingMetadata {
		t.Fatalf("want one MissingMetadataError, got %v", got)
	}
	if got[0].(*diag.MissingMetadataError).Operation != "demo.stats" {
		t.Errorf("wrong operation: %v", got[0])
	}
	if !resultFor(t, rep, "demo.ping").Emitted() {
		t.Errorf("demo.ping must be emitted")
	}
	if mem.Get("api.demo.stats.go") != nil {
		t.Errorf("demo.stats must not be emitted")
	}
	if !strings.Contains(string(mem.Get("client.go")), `"demo.ping"`) || strings.Contains(string(mem.Get("client.go")), `"demo.stats"`) {
		t.Errorf("index must list only emitted operations:\n%s", mem.Get("client.go"))
	}
}

func TestRun_UnresolvedReference(t *testing.T) {
	t.Parallel()
	c := writeCorpus(t, map[string]string{
		"demo/ping.yaml": okOperation,
		"demo/get.yaml": `operation:
  doc: |
    Get.
    @rest_spec_name demo.get
    @availability stack
  path_parts:
    - name: id
      type: DocumentId
  response: GetResponse
types:
  - name: GetResponse
    kind: object
    properties:
      - name: found
        type: boolean
  - name: Broken
    kind: alias
    type: Nowhere
`,
	})
	mem := sink.NewMemorySink()
	rep, err := Run(context.Background(), c, oasemitter.New(oasemitter.Options{}), mem, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	res := resultFor(t, rep, "demo.get")
	if len(res.Violations) != 1 {
		t.Fatalf("violations: %v", res.Violations)
	}
	var ute *diag.UnresolvedTypeError
	if !errors.As(res.Violations[0], &ute) {
		t.Fatalf("want UnresolvedTypeError, got %T", res.Violations[0])
	}
	if ute.Operation != "demo.get" || ute.Field != "path_parts.id" || ute.TypeName != "DocumentId" {
		t.Errorf("unresolved: %+v", ute)
	}

	// the type-level problem is a corpus error and only that type is skipped
	if len(rep.CorpusErrors) != 1 || diag.KindOf(rep.CorpusErrors[0]) != diag.KindUnresolvedType {
		t.Errorf("corpus errors: %v", rep.CorpusErrors)
	}
	if mem.Get("schemas/Broken.json") != nil {
		t.Errorf("broken type must not be emitted")
	}
	if mem.Get("schemas/GetResponse.json") == nil {
		t.Errorf("resolvable type must be emitted")
	}
	if mem.Get("paths/demo.ping.json") == nil {
		t.Errorf("run must continue past the unresolved reference")
	}
}

func TestRun_DuplicateOperation(t *testing.T) {
	t.Parallel()
	c := writeCorpus(t, map[string]string{
		"a/ping.yaml": okOperation,
		"b/ping.yaml": okOperation,
	})
	rep, err := Run(context.Background(), c, goemitter.New(goemitter.Options{}), sink.NewMemorySink(), Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	got := rep.Violations()
	if len(got) != 1 {
		t.Fatalf("violations: %v", got)
	}
	var dup *diag.DuplicateOperationError
	if !errors.As(got[0], &dup) || dup.First.File != "a/ping.yaml" || dup.Second.File != "b/ping.yaml" {
		t.Errorf("duplicate: %v", got[0])
	}
}

func TestRun_SelectorAndUnknownTags(t *testing.T) {
	t.Parallel()
	c := writeCorpus(t, map[string]string{
		"demo/ping.yaml": okOperation,
		"other/thing.yaml": `operation:
  doc: |
    Thing.
    @rest_spec_name other.thing
    @availability stack
    @codegen_name thing
`,
	})
	sel := normalize.NewSelector(normalize.WithExcludeNamespaces([]string{"demo"}))
	rep, err := Run(context.Background(), c, mdemitter.New(mdemitter.Options{}), sink.NewMemorySink(), Options{Select: sel, WarnUnknownTags: true})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]string{"demo.ping"}, rep.Filtered); diff != "" {
		t.Errorf("filtered (-want +got):\n%s", diff)
	}
	if len(rep.Operations) != 1 || rep.Operations[0].Name != "other.thing" {
		t.Errorf("operations: %+v", rep.Operations)
	}
	if len(rep.Warnings) != 1 || !strings.Contains(rep.Warnings[0].Message, "@codegen_name") {
		t.Errorf("warnings: %v", rep.Warnings)
	}
}

type failingSink struct {
	sink.OutputSink
	path string
}

func (s failingSink) WriteFile(ctx context.Context, path string, content []byte) error {
	if path == s.path {
		return errors.New("disk full")
	}
	return s.OutputSink.WriteFile(ctx, path, content)
}

func TestRun_SinkFailureAborts(t *testing.T) {
	t.Parallel()
	c := loadSample(t)
	dst := failingSink{OutputSink: sink.NewMemorySink(), path: "operations/cat.templates.md"}
	_, err := Run(context.Background(), c, mdemitter.New(mdemitter.Options{}), dst, Options{})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("want sink failure, got %v", err)
	}
}

func TestRun_Canceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, loadSample(t), goemitter.New(goemitter.Options{}), sink.NewMemorySink(), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}
