// Package normalize converts raw operation declarations into the ir model.
package normalize

import (
	"fmt"
	"strings"

	"github.com/mark3labs/apispecc/internal/annotate"
	"github.com/mark3labs/apispecc/internal/corpus"
	"github.com/mark3labs/apispecc/internal/diag"
	"github.com/mark3labs/apispecc/internal/ir"
	"github.com/mark3labs/apispecc/internal/resolve"
)

// Operation builds the ir record for the operation declared in f. It has
// no side effects. Parameters without an optional marker are required. A
// default comes from the explicit default key, else from an
// @server_default tag, and is coerced through the parameter's resolved
// type; a value that does not coerce is kept as declared for validation to
// reject. A name used both as a path part and a body field is reported as a
// DuplicateParameterError.
func Operation(f *corpus.File, types *resolve.Table) (*ir.Operation, []error) {
	if f == nil || f.Operation == nil {
		return nil, []error{fmt.Errorf("normalize: file declares no operation")}
	}
	raw := f.Operation
	op := &ir.Operation{
		Name:     annotate.OperationName(f),
		File:     f.Path,
		Line:     raw.Line,
		Doc:      raw.Doc,
		Response: raw.ResponseExpr,
	}
	for _, u := range raw.URLs {
		url := ir.URL{Path: u.Path}
		for _, m := range u.Methods {
			url.Methods = append(url.Methods, strings.ToUpper(strings.TrimSpace(m)))
		}
		op.URLs = append(op.URLs, url)
	}

	op.PathParams = parameters(f.Path, ir.Path, "path_parts", raw.PathParts, types)
	op.QueryParams = parameters(f.Path, ir.Query, "query_parameters", raw.QueryParameters, types)
	if raw.HasBody {
		op.Body = parameters(f.Path, ir.Body, "body", raw.Body, types)
		if op.Body == nil {
			op.Body = []ir.Parameter{}
		}
	}

	var errs []error
	for _, b := range op.Body {
		for _, p := range op.PathParams {
			if p.Name == b.Name {
				errs = append(errs, &diag.DuplicateParameterError{
					Operation: op.Name,
					Name:      b.Name,
					Category:  "path/body",
					Locations: []diag.Location{p.At, b.At},
				})
				break
			}
		}
	}
	return op, errs
}

func parameters(file string, cat ir.Category, section string, raws []*corpus.RawParam, types *resolve.Table) []ir.Parameter {
	var out []ir.Parameter
	for i, rp := range raws {
		if rp == nil {
			continue
		}
		doc := annotate.Parse(rp.Doc)
		p := ir.Parameter{
			Name:        rp.Name,
			Category:    cat,
			Type:        rp.Expr,
			Required:    !rp.Optional,
			Doc:         rp.Doc,
			Description: doc.Description,
			At:          diag.Location{File: file, Line: rp.Line, Path: fmt.Sprintf("%s[%d]", section, i)},
		}
		p.Default = defaultValue(rp, doc, types)
		out = append(out, p)
	}
	return out
}

func defaultValue(rp *corpus.RawParam, doc annotate.Doc, types *resolve.Table) *ir.DefaultValue {
	var declared any
	switch {
	case rp.Default != nil:
		declared = rp.Default
	default:
		t, ok := doc.First(annotate.TagServerDefault)
		if !ok || t.Raw == "" {
			return nil
		}
		declared = t.Raw
	}
	dv := &ir.DefaultValue{Raw: rawText(declared), Value: declared}
	if types == nil {
		return dv
	}
	if v, err := types.Coerce(declared, rp.Expr); err == nil {
		dv.Value = v
	}
	return dv
}

func rawText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if list, ok := v.([]any); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, rawText(item))
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}
