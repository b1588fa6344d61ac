package annotate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mark3labs/apispecc/internal/corpus"
	"github.com/mark3labs/apispecc/internal/diag"
	"github.com/mark3labs/apispecc/internal/ir"
)

const catDoc = `Get index template information.

Get information about the index templates in a cluster.
@rest_spec_name cat.templates
@availability stack since=5.2.0 stability=stable
@availability serverless stability=experimental visibility=private
@doc_id cat-templates
@cluster_privileges monitor, manage
@index_privileges read
@future_marker something new
` + "```" + `
@not_a_tag inside a fence
` + "```"

func TestParse(t *testing.T) {
	t.Parallel()
	doc := Parse(catDoc)
	if doc.Summary != "Get index template information." {
		t.Errorf("summary: %q", doc.Summary)
	}
	if len(doc.Tags) != 7 {
		t.Fatalf("tags: got %d: %+v", len(doc.Tags), doc.Tags)
	}
	av := doc.All(TagAvailability)
	if len(av) != 2 || av[0].Arg(0) != "stack" || av[0].Field("since") != "5.2.0" {
		t.Fatalf("availability tags: %+v", av)
	}
	if diff := cmp.Diff([]string{"future_marker"}, doc.Unknown()); diff != "" {
		t.Errorf("unknown markers (-want +got):\n%s", diff)
	}
	want := "Get index template information.\n\nGet information about the index templates in a cluster.\n```\n@not_a_tag inside a fence\n```"
	if doc.Description != want {
		t.Errorf("description:\n%s", doc.Description)
	}
}

func TestParse_NotTags(t *testing.T) {
	t.Parallel()
	for _, line := range []string{"@", "@@x", "email me@example.com", "@foo-bar baz"} {
		if got := Parse(line).Tags; len(got) != 0 {
			t.Errorf("%q parsed as tag: %+v", line, got)
		}
	}
}

func TestOperation(t *testing.T) {
	t.Parallel()
	op := &ir.Operation{
		Name: "cat.templates",
		File: "cat/templates.yaml",
		Line: 1,
		Doc:  catDoc,
		QueryParams: []ir.Parameter{{
			Name: "old",
			Doc:  "Old flag.\n@deprecated 7.0.0 use new instead\n@since 6.1.0\n@availability stack",
		}},
	}
	if errs := Operation(op); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if op.Family != "cat.templates" || op.DocID != "cat-templates" {
		t.Errorf("family/doc id: %q %q", op.Family, op.DocID)
	}
	got := op.Availability
	want := []ir.AvailabilityRecord{
		{Flavor: ir.SelfManaged, Since: "5.2.0", Stability: ir.Stable, Visibility: "public"},
		{Flavor: ir.ManagedCloud, Stability: ir.Experimental, Visibility: "private"},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(ir.AvailabilityRecord{}, "At")); diff != "" {
		t.Errorf("availability (-want +got):\n%s", diff)
	}
	if op.Stability != ir.Stable || op.Visibility != "public" {
		t.Errorf("stability/visibility: %q %q", op.Stability, op.Visibility)
	}
	wantPriv := []ir.Privilege{
		{Kind: ir.ClusterPrivilege, Name: "monitor"},
		{Kind: ir.ClusterPrivilege, Name: "manage"},
		{Kind: ir.IndexPrivilege, Name: "read"},
	}
	if diff := cmp.Diff(wantPriv, op.Privileges); diff != "" {
		t.Errorf("privileges (-want +got):\n%s", diff)
	}
	if op.Metadata.Get("future_marker") != "something new" {
		t.Errorf("unknown markers must stay in the bag: %v", op.Metadata)
	}

	p := op.QueryParams[0]
	if p.Deprecated == nil || p.Deprecated.Version != "7.0.0" || p.Deprecated.Description != "use new instead" {
		t.Errorf("deprecation: %+v", p.Deprecated)
	}
	if p.Since != "6.1.0" || p.Description != "Old flag." || len(p.Availability) != 1 {
		t.Errorf("param: %+v", p)
	}
}

func TestOperation_MissingRequiredTags(t *testing.T) {
	t.Parallel()
	op := &ir.Operation{Name: "x.y", File: "x/y.yaml", Line: 3, Doc: "Nothing tagged here."}
	errs := Operation(op)
	if len(errs) != 2 {
		t.Fatalf("want 2 errors, got %v", errs)
	}
	var tags []string
	for _, err := range errs {
		var mm *diag.MissingMetadataError
		if !errors.As(err, &mm) {
			t.Fatalf("unexpected error type %T", err)
		}
		if mm.Operation != "x.y" || mm.At.File != "x/y.yaml" {
			t.Errorf("bad error: %+v", mm)
		}
		tags = append(tags, mm.Tag)
	}
	if diff := cmp.Diff([]string{TagRestSpecName, TagAvailability}, tags); diff != "" {
		t.Errorf("tags (-want +got):\n%s", diff)
	}
}

func TestNormalizeFlavor(t *testing.T) {
	t.Parallel()
	cases := map[string]ir.Flavor{
		"stack":         ir.SelfManaged,
		"Serverless":    ir.ManagedCloud,
		"managed-cloud": ir.ManagedCloud,
		"on-prem":       "on-prem",
	}
	for in, want := range cases {
		if got := NormalizeFlavor(in); got != want {
			t.Errorf("%q: got %q want %q", in, got, want)
		}
	}
}

func TestOperationName(t *testing.T) {
	t.Parallel()
	cases := []struct {
		file *corpus.File
		want string
	}{
		{&corpus.File{Path: "a/b.yaml", Operation: &corpus.RawOperation{Name: "explicit"}}, "explicit"},
		{&corpus.File{Path: "a/b.yaml", Operation: &corpus.RawOperation{Doc: "x\n@rest_spec_name fam.op"}}, "fam.op"},
		{&corpus.File{Path: "cat/templates.yaml", Operation: &corpus.RawOperation{}}, "cat.templates"},
		{&corpus.File{Path: "types.yaml"}, ""},
	}
	for _, tc := range cases {
		if got := OperationName(tc.file); got != tc.want {
			t.Errorf("%s: got %q want %q", tc.file.Path, got, tc.want)
		}
	}
}
