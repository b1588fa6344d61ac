// Package resolve builds the corpus-wide type table. Build runs once, on a
// single goroutine, before any per-operation work; the returned Table is
// read-only afterwards and safe for concurrent use.
package resolve

import (
	"fmt"
	"sort"

	"github.com/mark3labs/apispecc/internal/annotate"
	"github.com/mark3labs/apispecc/internal/corpus"
	"github.com/mark3labs/apispecc/internal/diag"
	"github.com/mark3labs/apispecc/internal/ir"
)

// Table maps type names to their definitions.
type Table struct {
	defs   map[string]*ir.TypeDef
	byFile map[string][]error // operation-level unresolved references, keyed by file
	broken map[string]bool    // types with at least one unresolved reference
}

// Build interns every type declared in c and checks every reference made
// by operations and type definitions. All problems are returned; the table
// is usable even when errors were found.
func Build(c *corpus.Corpus) (*Table, []error) {
	t := &Table{
		defs:   make(map[string]*ir.TypeDef),
		byFile: make(map[string][]error),
		broken: make(map[string]bool),
	}
	for _, name := range ir.BuiltinNames() {
		t.defs[name] = &ir.TypeDef{Name: name, Kind: ir.KindScalar, Builtin: true}
	}

	var errs []error
	var declared []*ir.TypeDef
	for _, f := range c.Files {
		for i, rt := range f.Types {
			if rt == nil {
				continue
			}
			def := convert(f.Path, i, rt)
			if prev, ok := t.defs[def.Name]; ok && !prev.Builtin {
				errs = append(errs, &diag.DuplicateTypeError{Name: def.Name, First: prev.At, Second: def.At})
				continue
			}
			t.defs[def.Name] = def
			declared = append(declared, def)
		}
	}

	for _, def := range declared {
		for _, ref := range typeRefs(def) {
			for _, name := range ref.expr.Names() {
				if _, ok := t.defs[name]; ok {
					continue
				}
				t.broken[def.Name] = true
				errs = append(errs, &diag.UnresolvedTypeError{Field: ref.field, TypeName: name, At: ref.at})
			}
		}
	}

	for _, f := range c.Operations() {
		opName := annotate.OperationName(f)
		for _, ref := range operationRefs(f) {
			for _, name := range ref.expr.Names() {
				if _, ok := t.defs[name]; ok {
					continue
				}
				err := &diag.UnresolvedTypeError{Operation: opName, Field: ref.field, TypeName: name, At: ref.at}
				t.byFile[f.Path] = append(t.byFile[f.Path], err)
				errs = append(errs, err)
			}
		}
	}
	return t, errs
}

func convert(file string, idx int, rt *corpus.RawType) *ir.TypeDef {
	at := diag.Location{File: file, Line: rt.Line, Path: fmt.Sprintf("types[%d]", idx)}
	def := &ir.TypeDef{
		Name:        rt.Name,
		Kind:        ir.TypeKind(rt.Kind),
		Description: annotate.Parse(rt.Doc).Description,
		At:          at,
	}
	switch def.Kind {
	case ir.KindAlias:
		def.Target = rt.Target
	case ir.KindEnum:
		def.Members = append([]string(nil), rt.Members...)
	case ir.KindUnion:
		def.Variants = append([]ir.TypeExpr(nil), rt.Variants...)
	case ir.KindObject:
		for j, p := range rt.Properties {
			if p == nil {
				continue
			}
			def.Properties = append(def.Properties, ir.Property{
				Name:        p.Name,
				Type:        p.Expr,
				Required:    !p.Optional,
				Description: annotate.Parse(p.Doc).Description,
				At:          diag.Location{File: file, Line: p.Line, Path: fmt.Sprintf("types[%d].properties[%d]", idx, j)},
			})
		}
	}
	return def
}

type reference struct {
	field string
	expr  ir.TypeExpr
	at    diag.Location
}

func typeRefs(def *ir.TypeDef) []reference {
	var out []reference
	switch def.Kind {
	case ir.KindAlias:
		if def.Target != nil {
			out = append(out, reference{field: def.Name + ".type", expr: *def.Target, at: def.At})
		}
	case ir.KindUnion:
		for i, v := range def.Variants {
			out = append(out, reference{field: fmt.Sprintf("%s.of[%d]", def.Name, i), expr: v, at: def.At})
		}
	case ir.KindObject:
		for _, p := range def.Properties {
			out = append(out, reference{field: def.Name + ".properties." + p.Name, expr: p.Type, at: p.At})
		}
	}
	return out
}

func operationRefs(f *corpus.File) []reference {
	op := f.Operation
	var out []reference
	add := func(section string, ps []*corpus.RawParam) {
		for i, p := range ps {
			if p == nil {
				continue
			}
			out = append(out, reference{
				field: section + "." + p.Name,
				expr:  p.Expr,
				at:    diag.Location{File: f.Path, Line: p.Line, Path: fmt.Sprintf("%s[%d]", section, i)},
			})
		}
	}
	add("path_parts", op.PathParts)
	add("query_parameters", op.QueryParameters)
	add("body", op.Body)
	if op.ResponseExpr != nil {
		out = append(out, reference{
			field: "response",
			expr:  *op.ResponseExpr,
			at:    diag.Location{File: f.Path, Line: op.Line, Path: "response"},
		})
	}
	return out
}

// Lookup returns the definition of name. It performs exactly one level of
// lookup; named references inside the definition are not followed.
func (t *Table) Lookup(name string) (*ir.TypeDef, bool) {
	def, ok := t.defs[name]
	return def, ok
}

// Has reports whether name is defined.
func (t *Table) Has(name string) bool {
	_, ok := t.defs[name]
	return ok
}

// Names returns every defined name, builtins included, sorted.
func (t *Table) Names() []string {
	out := make([]string, 0, len(t.defs))
	for n := range t.defs {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Defs returns the corpus-declared definitions sorted by name.
func (t *Table) Defs() []*ir.TypeDef {
	var out []*ir.TypeDef
	for _, d := range t.defs {
		if !d.Builtin {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Underlying follows alias chains starting at e until it reaches an
// expression that is not a named alias. Alias cycles stop at the first
// repeated name.
func (t *Table) Underlying(e ir.TypeExpr) ir.TypeExpr {
	seen := map[string]bool{}
	for e.Kind == ir.ExprNamed && !seen[e.Name] {
		seen[e.Name] = true
		def, ok := t.defs[e.Name]
		if !ok || def.Kind != ir.KindAlias || def.Target == nil {
			return e
		}
		e = *def.Target
	}
	return e
}

// Resolve returns the definition e ultimately names after following
// aliases, when e resolves to a single named type.
func (t *Table) Resolve(e ir.TypeExpr) (*ir.TypeDef, bool) {
	u := t.Underlying(e)
	if u.Kind != ir.ExprNamed {
		return nil, false
	}
	return t.Lookup(u.Name)
}

// UnresolvedFor returns the unresolved references made by the operation
// declared in file.
func (t *Table) UnresolvedFor(file string) []error {
	return append([]error(nil), t.byFile[file]...)
}

// TypeBroken reports whether the definition of name references a type that
// does not exist.
func (t *Table) TypeBroken(name string) bool { return t.broken[name] }
