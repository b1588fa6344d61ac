package oasemitter

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi2"
)

func TestSwagger_RenderIndex(t *testing.T) {
	t.Parallel()
	ops, table := sampleOps(t)
	e := NewSwagger(Options{Title: "Elasticsearch", Version: "9.0.0"})
	art, err := e.RenderIndex(context.Background(), ops, table.Defs(), table)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if art.Path != SwaggerIndexPath {
		t.Errorf("path = %s", art.Path)
	}
	var doc openapi2.T
	if err := json.Unmarshal(art.Content, &doc); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, art.Content)
	}
	if doc.Swagger != "2.0" {
		t.Errorf("swagger = %q", doc.Swagger)
	}
	if doc.Info.Title != "Elasticsearch" || doc.Info.Version != "9.0.0" {
		t.Errorf("info = %+v", doc.Info)
	}
	if _, ok := doc.Definitions["FieldMapping"]; !ok {
		t.Errorf("FieldMapping definition missing")
	}
	if !strings.Contains(string(art.Content), "#/definitions/EcsCompatibilityType") {
		t.Errorf("expected definition refs:\n%s", art.Content)
	}
}

func TestSwagger_RenderOperationAndType(t *testing.T) {
	t.Parallel()
	ops, table := sampleOps(t)
	e := NewSwagger(Options{})
	if e.Name() != "swagger" {
		t.Errorf("name = %s", e.Name())
	}
	for _, op := range ops {
		art, err := e.RenderOperation(context.Background(), op, table)
		if err != nil {
			t.Fatalf("%s: %v", op.Name, err)
		}
		if art.Path != "paths/"+op.Name+".json" {
			t.Errorf("path = %s", art.Path)
		}
		var paths map[string]json.RawMessage
		if err := json.Unmarshal(art.Content, &paths); err != nil || len(paths) == 0 {
			t.Errorf("%s: fragment %s (%v)", op.Name, art.Content, err)
		}
	}
	def, ok := table.Lookup("FindMessageStructureResponse")
	if !ok {
		t.Fatalf("FindMessageStructureResponse missing from table")
	}
	art, err := e.RenderType(context.Background(), def, table)
	if err != nil {
		t.Fatalf("render type: %v", err)
	}
	if art.Path != "definitions/FindMessageStructureResponse.json" || !strings.Contains(string(art.Content), "#/definitions/EcsCompatibilityType") {
		t.Errorf("type artifact %s:\n%s", art.Path, art.Content)
	}
}
