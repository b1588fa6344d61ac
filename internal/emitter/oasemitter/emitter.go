// Package oasemitter renders operations and types as OpenAPI 3 documents
// built with kin-openapi. Every operation gets a standalone paths fragment
// and the index merges them into openapi.json.
package oasemitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/apispecc/internal/emitter"
	"github.com/mark3labs/apispecc/internal/ir"
	"github.com/mark3labs/apispecc/internal/resolve"
)

// IndexPath is the merged document.
const IndexPath = "openapi.json"

const openAPIVersion = "3.0.3"

// Options controls the OpenAPI emitter.
type Options struct {
	Title   string // info.title, defaults to "API"
	Version string // info.version, defaults to "0.0.0"
}

// Emitter is the "openapi" target.
type Emitter struct {
	title   string
	version string
}

func New(opts Options) *Emitter {
	e := &Emitter{title: strings.TrimSpace(opts.Title), version: strings.TrimSpace(opts.Version)}
	if e.title == "" {
		e.title = "API"
	}
	if e.version == "" {
		e.version = "0.0.0"
	}
	return e
}

func (e *Emitter) Name() string { return "openapi" }

func OperationPath(name string) string { return "paths/" + name + ".json" }
func TypePath(name string) string      { return "schemas/" + name + ".json" }

// RenderOperation renders the path items of a single operation.
func (e *Emitter) RenderOperation(ctx context.Context, op *ir.Operation, types *resolve.Table) (emitter.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return emitter.Artifact{}, err
	}
	paths := openapi3.NewPaths()
	addOperation(paths, op, types)
	return marshal(OperationPath(op.Name), paths)
}

// RenderType renders the component schema of def.
func (e *Emitter) RenderType(ctx context.Context, def *ir.TypeDef, types *resolve.Table) (emitter.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return emitter.Artifact{}, err
	}
	return marshal(TypePath(def.Name), defSchema(def, types))
}

// RenderIndex merges all operations and definitions into one document.
// When two operations claim the same path and method the one whose name
// sorts first keeps it.
func (e *Emitter) RenderIndex(ctx context.Context, ops []*ir.Operation, defs []*ir.TypeDef, types *resolve.Table) (emitter.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return emitter.Artifact{}, err
	}
	return marshal(IndexPath, e.document(ops, defs, types))
}

func (e *Emitter) document(ops []*ir.Operation, defs []*ir.TypeDef, types *resolve.Table) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: openAPIVersion,
		Info:    &openapi3.Info{Title: e.title, Version: e.version},
		Paths:   openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{},
		},
	}
	sorted := append([]*ir.Operation(nil), ops...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	namespaces := map[string]struct{}{}
	for _, op := range sorted {
		addOperation(doc.Paths, op, types)
		namespaces[op.Namespace()] = struct{}{}
	}
	names := make([]string, 0, len(namespaces))
	for ns := range namespaces {
		names = append(names, ns)
	}
	sort.Strings(names)
	for _, ns := range names {
		doc.Tags = append(doc.Tags, &openapi3.Tag{Name: ns})
	}
	for _, def := range defs {
		if def.Builtin {
			continue
		}
		doc.Components.Schemas[def.Name] = defSchema(def, types)
	}
	return doc
}

func marshal(path string, v any) (emitter.Artifact, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return emitter.Artifact{}, fmt.Errorf("oasemitter: marshal %s: %w", path, err)
	}
	return emitter.Artifact{Path: path, Content: append(data, '\n')}, nil
}

// endpoint is one (path, method) pair an operation is served on.
type endpoint struct {
	path   string
	method string
}

// endpoints lists the operation's URLs. Operations without URLs get a path
// derived from their name, with a placeholder per path parameter, and POST
// when they take a body.
func endpoints(op *ir.Operation) []endpoint {
	var out []endpoint
	for _, u := range op.URLs {
		methods := u.Methods
		if len(methods) == 0 {
			methods = []string{defaultMethod(op)}
		}
		for _, m := range methods {
			out = append(out, endpoint{path: u.Path, method: strings.ToUpper(m)})
		}
	}
	if len(out) > 0 {
		return out
	}
	path := "/" + strings.ReplaceAll(op.Name, ".", "/")
	for _, p := range op.PathParams {
		path += "/{" + p.Name + "}"
	}
	return []endpoint{{path: path, method: defaultMethod(op)}}
}

func defaultMethod(op *ir.Operation) string {
	if op.Body != nil {
		return http.MethodPost
	}
	return http.MethodGet
}

func addOperation(paths *openapi3.Paths, op *ir.Operation, types *resolve.Table) {
	for i, ep := range endpoints(op) {
		item := paths.Value(ep.path)
		if item == nil {
			item = &openapi3.PathItem{}
			paths.Set(ep.path, item)
		}
		if item.GetOperation(ep.method) != nil {
			continue
		}
		o := operation(op, ep.path, types)
		if i > 0 {
			// operationId must be unique across the document
			o.OperationID = fmt.Sprintf("%s-%d", op.Name, i)
		}
		item.SetOperation(ep.method, o)
	}
}

func operation(op *ir.Operation, path string, types *resolve.Table) *openapi3.Operation {
	o := openapi3.NewOperation()
	o.OperationID = op.Name
	o.Summary = op.Summary
	o.Description = op.Description
	o.Tags = []string{op.Namespace()}
	o.Deprecated = op.Stability == ir.Deprecated
	if op.DocURL != "" {
		o.ExternalDocs = &openapi3.ExternalDocs{URL: op.DocURL}
	}
	o.Extensions = extensions(op)

	for _, p := range op.PathParams {
		// a path template only binds the placeholders it spells out
		if !strings.Contains(path, "{"+p.Name+"}") {
			continue
		}
		prm := openapi3.NewPathParameter(p.Name).WithDescription(p.Description)
		prm.Schema = schemaRef(p.Type, types)
		prm.Deprecated = p.Deprecated != nil
		o.AddParameter(prm)
	}
	for _, p := range op.QueryParams {
		prm := openapi3.NewQueryParameter(p.Name).WithDescription(p.Description)
		prm.Required = p.Required
		prm.Deprecated = p.Deprecated != nil
		prm.Schema = schemaRef(p.Type, types)
		if p.Default != nil && prm.Schema.Ref == "" {
			prm.Schema.Value.Default = p.Default.Value
		}
		o.AddParameter(prm)
	}

	if op.Body != nil {
		body := openapi3.NewObjectSchema()
		body.Properties = openapi3.Schemas{}
		for _, p := range op.Body {
			body.Properties[p.Name] = describe(schemaRef(p.Type, types), p.Description)
			if p.Required {
				body.Required = append(body.Required, p.Name)
			}
		}
		o.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().WithRequired(op.HasRequiredBody()).WithJSONSchema(body),
		}
	}

	o.Responses = openapi3.NewResponses()
	o.Responses.Delete("default")
	resp := openapi3.NewResponse().WithDescription("Success")
	if op.Response != nil {
		resp = resp.WithJSONSchemaRef(schemaRef(*op.Response, types))
	}
	o.Responses.Set("200", &openapi3.ResponseRef{Value: resp})
	return o
}

// extensions carries the availability, privileges and doc anchors that
// OpenAPI has no field for.
func extensions(op *ir.Operation) map[string]any {
	ext := map[string]any{}
	if len(op.Availability) > 0 {
		avail := map[string]any{}
		for _, r := range op.Availability {
			rec := map[string]any{"stability": string(r.Stability), "visibility": r.Visibility}
			if r.Since != "" {
				rec["since"] = r.Since
			}
			avail[string(r.Flavor)] = rec
		}
		ext["x-availability"] = avail
	}
	if len(op.Privileges) > 0 {
		privs := map[string][]string{}
		for _, p := range op.Privileges {
			privs[string(p.Kind)] = append(privs[string(p.Kind)], p.Name)
		}
		ext["x-privileges"] = privs
	}
	if op.DocID != "" {
		ext["x-doc-id"] = op.DocID
	}
	if op.ExtDocID != "" {
		ext["x-ext-doc-id"] = op.ExtDocID
	}
	if len(ext) == 0 {
		return nil
	}
	return ext
}
