package oasemitter

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"

	"github.com/mark3labs/apispecc/internal/emitter"
	"github.com/mark3labs/apispecc/internal/ir"
	"github.com/mark3labs/apispecc/internal/resolve"
)

// SwaggerIndexPath is the merged Swagger 2.0 document.
const SwaggerIndexPath = "swagger.json"

// SwaggerEmitter is the "swagger" target. It builds the same OpenAPI 3
// documents as Emitter and downgrades them with openapi2conv. Constructs
// Swagger 2.0 has no equivalent for (oneOf unions, nullable) are
// dropped by the conversion.
type SwaggerEmitter struct {
	base *Emitter
}

func NewSwagger(opts Options) *SwaggerEmitter {
	return &SwaggerEmitter{base: New(opts)}
}

func (e *SwaggerEmitter) Name() string { return "swagger" }

func SwaggerOperationPath(name string) string { return "paths/" + name + ".json" }
func SwaggerTypePath(name string) string      { return "definitions/" + name + ".json" }

func (e *SwaggerEmitter) RenderOperation(ctx context.Context, op *ir.Operation, types *resolve.Table) (emitter.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return emitter.Artifact{}, err
	}
	path := SwaggerOperationPath(op.Name)
	doc, err := e.convert(path, []*ir.Operation{op}, nil, types)
	if err != nil {
		return emitter.Artifact{}, err
	}
	return marshal(path, doc.Paths)
}

func (e *SwaggerEmitter) RenderType(ctx context.Context, def *ir.TypeDef, types *resolve.Table) (emitter.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return emitter.Artifact{}, err
	}
	path := SwaggerTypePath(def.Name)
	doc, err := e.convert(path, nil, []*ir.TypeDef{def}, types)
	if err != nil {
		return emitter.Artifact{}, err
	}
	return marshal(path, doc.Definitions[def.Name])
}

func (e *SwaggerEmitter) RenderIndex(ctx context.Context, ops []*ir.Operation, defs []*ir.TypeDef, types *resolve.Table) (emitter.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return emitter.Artifact{}, err
	}
	doc, err := e.convert(SwaggerIndexPath, ops, defs, types)
	if err != nil {
		return emitter.Artifact{}, err
	}
	return marshal(SwaggerIndexPath, doc)
}

func (e *SwaggerEmitter) convert(path string, ops []*ir.Operation, defs []*ir.TypeDef, types *resolve.Table) (*openapi2.T, error) {
	doc, err := openapi2conv.FromV3(e.base.document(ops, defs, types))
	if err != nil {
		return nil, fmt.Errorf("oasemitter: convert %s to swagger 2.0: %w", path, err)
	}
	return doc, nil
}
