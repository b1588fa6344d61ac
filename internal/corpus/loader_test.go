package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(strings.TrimLeft(content, "\n")), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestLoad_SampleCorpus(t *testing.T) {
	t.Parallel()
	c, err := Load(context.Background(), filepath.Join("..", "..", "testdata", "corpus"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Errors) != 0 {
		t.Fatalf("unexpected file errors: %v", c.Errors)
	}
	var paths []string
	for _, f := range c.Files {
		paths = append(paths, f.Path)
	}
	want := "_types/common.yaml,cat/templates.yaml,ingest/delete_geoip_database.yaml,text_structure/find_message_structure.yaml"
	if strings.Join(paths, ",") != want {
		t.Fatalf("files: got %v", paths)
	}
	if n := len(c.Operations()); n != 3 {
		t.Fatalf("operations: got %d", n)
	}

	cat := c.Files[1].Operation
	if cat.Line == 0 {
		t.Errorf("operation line not recorded")
	}
	if len(cat.QueryParameters) != 3 || cat.QueryParameters[1].Name != "local" {
		t.Fatalf("query parameters: %+v", cat.QueryParameters)
	}
	local := cat.QueryParameters[1]
	if !local.Optional || local.Expr.String() != "boolean" || local.Line == 0 {
		t.Errorf("local param decoded wrong: %+v", local)
	}
	if cat.ResponseExpr == nil || cat.ResponseExpr.String() != "CatTemplatesResponse" {
		t.Errorf("response: %+v", cat.ResponseExpr)
	}
	if cat.HasBody {
		t.Errorf("cat.templates declares no body")
	}
}

func TestLoad_ExplicitDefaultKeepsYAMLType(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "op.yaml", `
operation:
  name: x.y
  query_parameters:
    - name: flag
      type: boolean
      optional: true
      default: false
  body: []
`)
	c, err := Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Errors) != 0 {
		t.Fatalf("errors: %v", c.Errors)
	}
	op := c.Files[0].Operation
	if v, ok := op.QueryParameters[0].Default.(bool); !ok || v {
		t.Fatalf("default: got %#v", op.QueryParameters[0].Default)
	}
	if !op.HasBody {
		t.Fatalf("an empty body list still declares a body")
	}
}

func TestLoad_SchemaErrorsSkipOnlyTheBadFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "good.yaml", `
types:
  - name: Name
    kind: alias
    type: string
`)
	writeFile(t, dir, "bad.yaml", `
operation:
  name: bad.op
  query_parmeters: []
`)
	c, err := Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Files) != 1 || c.Files[0].Path != "good.yaml" {
		t.Fatalf("expected only good.yaml to load, got %+v", c.Files)
	}
	if len(c.Errors) == 0 {
		t.Fatalf("expected schema error for bad.yaml")
	}
	var ce *CorpusError
	if !errors.As(c.Errors[0], &ce) || ce.Code != SchemaError {
		t.Fatalf("expected SchemaError, got %v", c.Errors[0])
	}
	if ce.Location != "bad.yaml" {
		t.Errorf("location: %q", ce.Location)
	}
}

func TestLoad_BadTypeExpression(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "op.yaml", `
operation:
  name: a.b
  path_parts:
    - name: index
      type: "Name["
`)
	c, err := Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Errors) != 1 {
		t.Fatalf("errors: %v", c.Errors)
	}
	var ce *CorpusError
	if !errors.As(c.Errors[0], &ce) || ce.Code != ParseError {
		t.Fatalf("expected ParseError, got %v", c.Errors[0])
	}
	if ce.Pointer != "operation.path_parts.0.type" || !strings.HasPrefix(ce.Location, "op.yaml:") {
		t.Fatalf("pointer/location: %q %q", ce.Pointer, ce.Location)
	}
}

func TestLoad_MissingRoot(t *testing.T) {
	t.Parallel()
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope"))
	var ce *CorpusError
	if !errors.As(err, &ce) || ce.Code != InputError {
		t.Fatalf("expected InputError, got %v", err)
	}
	if _, err := Load(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoad_SkipsHiddenAndForeignFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, ".git/config.yaml", "types: [{name: X, kind: alias, type: string}]\n")
	writeFile(t, dir, "README.md", "# not a declaration\n")
	writeFile(t, dir, "empty.yaml", "")
	writeFile(t, dir, "t.json", `{"types": [{"name": "Y", "kind": "enum", "members": ["a"]}]}`)
	c, err := Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Errors) != 0 {
		t.Fatalf("errors: %v", c.Errors)
	}
	if len(c.Files) != 1 || c.Files[0].Path != "t.json" {
		t.Fatalf("files: %+v", c.Files)
	}
}

func TestLoad_SingleFileRoot(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "only.yml", "types: [{name: X, kind: union, of: [string, long]}]\n")
	c, err := Load(context.Background(), filepath.Join(dir, "only.yml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Files) != 1 || c.Files[0].Path != "only.yml" {
		t.Fatalf("files: %+v", c.Files)
	}
	if got := len(c.Files[0].Types[0].Variants); got != 2 {
		t.Fatalf("variants: %d", got)
	}
}

func TestLoad_DuplicateEnumMember(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "level.yaml", `
types:
  - name: Level
    kind: enum
    members: [low, high, low]
`)
	c, err := Load(context.Background(), dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(c.Files) != 0 {
		t.Errorf("file with a repeated enum member must be skipped, got %d files", len(c.Files))
	}
	if len(c.Errors) != 1 {
		t.Fatalf("errors: %v", c.Errors)
	}
	var ce *CorpusError
	if !errors.As(c.Errors[0], &ce) || ce.Code != ParseError {
		t.Fatalf("expected ParseError, got %v", c.Errors[0])
	}
	if ce.Pointer != "types.0.members.2" || !strings.Contains(ce.Message, `"low" is declared more than once`) {
		t.Errorf("pointer/message: %q %q", ce.Pointer, ce.Message)
	}
}
