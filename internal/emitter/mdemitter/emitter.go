// Package mdemitter renders reference documentation as Markdown pages.
package mdemitter

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/mark3labs/apispecc/internal/annotate"
	"github.com/mark3labs/apispecc/internal/emitter"
	"github.com/mark3labs/apispecc/internal/ir"
	"github.com/mark3labs/apispecc/internal/resolve"
)

// Options controls the Markdown emitter.
type Options struct {
	// Title heads the README index. Defaults to "API reference".
	Title string
}

// Emitter is the "markdown" target.
type Emitter struct {
	title string
	tmpl  *template.Template
}

func New(opts Options) *Emitter {
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "API reference"
	}
	return &Emitter{title: title, tmpl: templates}
}

func (e *Emitter) Name() string { return "markdown" }

func OperationPath(name string) string { return "operations/" + name + ".md" }
func TypePath(name string) string      { return "types/" + name + ".md" }

type paramRow struct {
	Name        string
	Type        string
	TypeLink    string
	Required    bool
	Default     string
	Description string
	Deprecated  string
}

type operationPage struct {
	Op      *ir.Operation
	Methods []string
	Path    []paramRow
	Query   []paramRow
	Body    []paramRow
	HasBody bool
	Resp    string
	Extra   []string // unrecognized metadata, "key: value"
}

func (e *Emitter) RenderOperation(ctx context.Context, op *ir.Operation, types *resolve.Table) (emitter.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return emitter.Artifact{}, err
	}
	page := operationPage{
		Op:      op,
		Methods: op.Methods(),
		Path:    rows(op.PathParams, types),
		Query:   rows(op.QueryParams, types),
		Body:    rows(op.Body, types),
		HasBody: op.Body != nil,
	}
	if op.Response != nil {
		page.Resp = typeLink(*op.Response, types, "../types/")
	}
	for _, k := range op.Metadata.Keys() {
		if annotate.Known(k) {
			continue
		}
		for _, v := range op.Metadata[k] {
			page.Extra = append(page.Extra, k+": "+v)
		}
	}
	return e.render("operation", OperationPath(op.Name), page)
}

func (e *Emitter) RenderType(ctx context.Context, def *ir.TypeDef, types *resolve.Table) (emitter.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return emitter.Artifact{}, err
	}
	data := struct {
		Def      *ir.TypeDef
		Target   string
		Variants []string
		Props    []paramRow
	}{Def: def}
	if def.Target != nil {
		data.Target = typeLink(*def.Target, types, "")
	}
	for _, v := range def.Variants {
		data.Variants = append(data.Variants, typeLink(v, types, ""))
	}
	for _, p := range def.Properties {
		data.Props = append(data.Props, paramRow{
			Name:        p.Name,
			TypeLink:    typeLink(p.Type, types, ""),
			Required:    p.Required,
			Description: p.Description,
		})
	}
	return e.render("type", TypePath(def.Name), data)
}

func (e *Emitter) RenderIndex(ctx context.Context, ops []*ir.Operation, defs []*ir.TypeDef, _ *resolve.Table) (emitter.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return emitter.Artifact{}, err
	}
	type nsGroup struct {
		Name string
		Ops  []*ir.Operation
	}
	var groups []nsGroup
	for _, op := range sortedOps(ops) {
		if n := len(groups); n == 0 || groups[n-1].Name != op.Namespace() {
			groups = append(groups, nsGroup{Name: op.Namespace()})
		}
		groups[len(groups)-1].Ops = append(groups[len(groups)-1].Ops, op)
	}
	data := struct {
		Title  string
		Groups []nsGroup
		Defs   []*ir.TypeDef
	}{Title: e.title, Groups: groups, Defs: defs}
	return e.render("index", "README.md", data)
}

func (e *Emitter) render(name, path string, data any) (emitter.Artifact, error) {
	var buf bytes.Buffer
	if err := e.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return emitter.Artifact{}, fmt.Errorf("mdemitter: render %s: %w", path, err)
	}
	return emitter.Artifact{Path: path, Content: buf.Bytes()}, nil
}

func rows(ps []ir.Parameter, types *resolve.Table) []paramRow {
	out := make([]paramRow, 0, len(ps))
	for _, p := range ps {
		r := paramRow{
			Name:        p.Name,
			Type:        p.Type.String(),
			TypeLink:    typeLink(p.Type, types, "../types/"),
			Required:    p.Required,
			Description: p.Description,
		}
		if p.Default != nil {
			r.Default = p.Default.Raw
		}
		if p.Deprecated != nil {
			r.Deprecated = strings.TrimSpace(p.Deprecated.Version + " " + p.Deprecated.Description)
		}
		out = append(out, r)
	}
	return out
}

// typeLink renders e with every corpus-defined name linked to its page.
func typeLink(e ir.TypeExpr, types *resolve.Table, prefix string) string {
	switch e.Kind {
	case ir.ExprNamed:
		if def, ok := types.Lookup(e.Name); ok && !def.Builtin {
			return fmt.Sprintf("[%s](%s%s.md)", e.Name, prefix, e.Name)
		}
		return "`" + e.Name + "`"
	case ir.ExprArray:
		if e.Elem == nil {
			return "`[]`"
		}
		inner := typeLink(*e.Elem, types, prefix)
		if e.Elem.Kind == ir.ExprUnion {
			inner = "(" + inner + ")"
		}
		return inner + "[]"
	case ir.ExprUnion:
		parts := make([]string, 0, len(e.Members))
		for _, m := range e.Members {
			parts = append(parts, typeLink(m, types, prefix))
		}
		return strings.Join(parts, " \\| ")
	case ir.ExprDictionary:
		var k, v string
		if e.Key != nil {
			k = typeLink(*e.Key, types, prefix)
		}
		if e.Value != nil {
			v = typeLink(*e.Value, types, prefix)
		}
		return "Dictionary&lt;" + k + ", " + v + "&gt;"
	}
	return "`" + e.String() + "`"
}

func sortedOps(ops []*ir.Operation) []*ir.Operation {
	out := append([]*ir.Operation(nil), ops...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// cell makes text safe inside a Markdown table cell.
func cell(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "<br>")
}
