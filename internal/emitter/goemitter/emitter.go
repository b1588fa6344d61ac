// Package goemitter renders Go client bindings: one file per operation with
// a request struct and a typed method on Client, one file per shared type,
// and a client.go index declaring Client and the Transport it delegates to.
package goemitter

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/mark3labs/apispecc/internal/emitter"
	"github.com/mark3labs/apispecc/internal/ir"
	"github.com/mark3labs/apispecc/internal/resolve"
)

// Options controls how the Go emitter renders.
type Options struct {
	PackageName string // defaults to "client"
}

// Emitter is the "go" target.
type Emitter struct {
	pkg string
}

var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// New returns a Go emitter. An invalid package name falls back to "client".
func New(opts Options) *Emitter {
	pkg := strings.TrimSpace(opts.PackageName)
	if !identRe.MatchString(pkg) {
		pkg = "client"
	}
	return &Emitter{pkg: pkg}
}

func (e *Emitter) Name() string { return "go" }

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// OperationPath is the artifact path of op.
func OperationPath(name string) string {
	return "api." + unsafeFileChars.ReplaceAllString(name, "_") + ".go"
}

// TypePath is the artifact path of the type called name.
func TypePath(name string) string {
	return "types." + emitter.SnakeCase(name) + ".go"
}

func (e *Emitter) RenderOperation(ctx context.Context, op *ir.Operation, types *resolve.Table) (emitter.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return emitter.Artifact{}, err
	}
	path := OperationPath(op.Name)
	src := e.renderOperation(op, typeMapper{types: types})
	out, err := format(path, src)
	if err != nil {
		return emitter.Artifact{}, fmt.Errorf("goemitter: operation %s: %w", op.Name, err)
	}
	return emitter.Artifact{Path: path, Content: out}, nil
}

func (e *Emitter) RenderType(ctx context.Context, def *ir.TypeDef, types *resolve.Table) (emitter.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return emitter.Artifact{}, err
	}
	path := TypePath(def.Name)
	src := e.renderType(def, typeMapper{types: types})
	out, err := format(path, src)
	if err != nil {
		return emitter.Artifact{}, fmt.Errorf("goemitter: type %s: %w", def.Name, err)
	}
	return emitter.Artifact{Path: path, Content: out}, nil
}

func (e *Emitter) RenderIndex(ctx context.Context, ops []*ir.Operation, _ []*ir.TypeDef, _ *resolve.Table) (emitter.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return emitter.Artifact{}, err
	}
	src := e.renderClient(ops)
	out, err := format("client.go", src)
	if err != nil {
		return emitter.Artifact{}, fmt.Errorf("goemitter: client.go: %w", err)
	}
	return emitter.Artifact{Path: "client.go", Content: out}, nil
}

func format(filename string, src string) ([]byte, error) {
	out, err := imports.Process(filename, []byte(src), &imports.Options{
		Comments:  true,
		TabIndent: true,
		TabWidth:  8,
	})
	if err != nil {
		return nil, fmt.Errorf("format: %w", err)
	}
	return out, nil
}

const header = "// Code generated by apispecc. DO NOT EDIT.\n\n"

func (e *Emitter) renderOperation(op *ir.Operation, m typeMapper) string {
	method := emitter.PascalCase(op.Name)
	reqType := method + "Request"
	bodyType := method + "RequestBody"

	var b strings.Builder
	b.WriteString(header)
	fmt.Fprintf(&b, "package %s\n\n", e.pkg)
	b.WriteString("import (\n\t\"context\"\n\t\"net/url\"\n)\n\n")

	// request struct
	fmt.Fprintf(&b, "// %s holds the parameters of %s.\n", reqType, op.Name)
	fmt.Fprintf(&b, "type %s struct {\n", reqType)
	pathFields, queryFields := requestFields(op)
	for i, p := range op.PathParams {
		writeField(&b, pathFields[i], p, m, fmt.Sprintf("`path:%q`", p.Name))
	}
	for i, p := range op.QueryParams {
		writeField(&b, queryFields[i], p, m, fmt.Sprintf("`query:%q`", p.Name))
	}
	if op.Body != nil {
		b.WriteString("\n\t// Body is sent as the JSON request body.\n")
		fmt.Fprintf(&b, "\tBody *%s `json:\"-\"`\n", bodyType)
	}
	b.WriteString("}\n\n")

	if op.Body != nil {
		fmt.Fprintf(&b, "// %s is the request body of %s.\n", bodyType, op.Name)
		fmt.Fprintf(&b, "type %s struct {\n", bodyType)
		names := make([]string, 0, len(op.Body))
		for _, p := range op.Body {
			names = append(names, p.Name)
		}
		bodyFields := propertyFields(names)
		for i, p := range op.Body {
			tag := p.Name
			if !p.Required {
				tag += ",omitempty"
			}
			writeField(&b, bodyFields[i], p, m, fmt.Sprintf("`json:%q`", tag))
		}
		b.WriteString("}\n\n")
	}

	// method
	if op.Summary != "" {
		fmt.Fprintf(&b, "// %s %s\n", method, lowerFirst(op.Summary))
	} else {
		fmt.Fprintf(&b, "// %s calls %s.\n", method, op.Name)
	}
	if rest := strings.TrimSpace(strings.TrimPrefix(op.Description, op.Summary)); rest != "" {
		b.WriteString("//\n")
		comment(&b, "", rest)
	}
	if len(op.URLs) > 0 {
		b.WriteString("//\n")
		for _, u := range op.URLs {
			fmt.Fprintf(&b, "//\t%s %s\n", strings.Join(u.Methods, "|"), u.Path)
		}
	}
	if op.Stability == ir.Experimental {
		b.WriteString("//\n// This API is experimental.\n")
	}
	if op.Stability == ir.Deprecated {
		b.WriteString("//\n// Deprecated: this API is deprecated.\n")
	}

	respType := ""
	if op.Response != nil {
		respType = m.goType(*op.Response)
		fmt.Fprintf(&b, "func (c *Client) %s(ctx context.Context, req *%s) (*%s, error) {\n", method, reqType, respType)
	} else {
		fmt.Fprintf(&b, "func (c *Client) %s(ctx context.Context, req *%s) error {\n", method, reqType)
	}
	fmt.Fprintf(&b, "\tif req == nil {\n\t\treq = &%s{}\n\t}\n", reqType)
	b.WriteString("\tcall := &Call{\n")
	fmt.Fprintf(&b, "\t\tOperation: %q,\n", op.Name)
	fmt.Fprintf(&b, "\t\tMethods: %s,\n", stringSlice(op.Methods()))
	paths := make([]string, 0, len(op.URLs))
	for _, u := range op.URLs {
		paths = append(paths, u.Path)
	}
	fmt.Fprintf(&b, "\t\tPaths: %s,\n", stringSlice(paths))
	b.WriteString("\t\tPathParams: map[string]string{},\n")
	b.WriteString("\t\tQuery: url.Values{},\n")
	b.WriteString("\t}\n")
	for i, p := range op.PathParams {
		writeAssign(&b, pathFields[i], p, m, "call.PathParams[%q] = %s")
	}
	for i, p := range op.QueryParams {
		writeAssign(&b, queryFields[i], p, m, "call.Query.Set(%q, %s)")
	}
	if op.Body != nil {
		b.WriteString("\tif req.Body != nil {\n\t\tcall.Body = req.Body\n\t}\n")
	}
	if respType != "" {
		fmt.Fprintf(&b, "\tvar resp %s\n", respType)
		b.WriteString("\tif err := c.transport.Perform(ctx, call, &resp); err != nil {\n\t\treturn nil, err\n\t}\n")
		b.WriteString("\treturn &resp, nil\n")
	} else {
		b.WriteString("\treturn c.transport.Perform(ctx, call, nil)\n")
	}
	b.WriteString("}\n")
	return b.String()
}

func writeField(b *strings.Builder, field string, p ir.Parameter, m typeMapper, tag string) {
	b.WriteString("\n")
	comment(b, "\t", p.Description)
	if p.Default != nil {
		if p.Description != "" {
			b.WriteString("\t//\n")
		}
		fmt.Fprintf(b, "\t// Server default: %s.\n", p.Default.Raw)
	}
	if p.Deprecated != nil {
		if p.Description != "" || p.Default != nil {
			b.WriteString("\t//\n")
		}
		var parts []string
		if p.Deprecated.Version != "" {
			parts = append(parts, "since "+p.Deprecated.Version+".")
		}
		if p.Deprecated.Description != "" {
			parts = append(parts, p.Deprecated.Description)
		}
		if len(parts) == 0 {
			parts = append(parts, "do not use.")
		}
		fmt.Fprintf(b, "\t// Deprecated: %s\n", strings.Join(parts, " "))
	}
	fmt.Fprintf(b, "\t%s %s %s\n", field, m.fieldType(p.Type, !p.Required), tag)
}

func writeAssign(b *strings.Builder, name string, p ir.Parameter, m typeMapper, stmt string) {
	field := "req." + name
	ft := m.fieldType(p.Type, !p.Required)
	switch {
	case strings.HasPrefix(ft, "*"):
		fmt.Fprintf(b, "\tif %s != nil {\n\t\t"+stmt+"\n\t}\n", field, p.Name, "formatParam(*"+field+")")
	case m.nilable(p.Type):
		fmt.Fprintf(b, "\tif %s != nil {\n\t\t"+stmt+"\n\t}\n", field, p.Name, "formatParam("+field+")")
	default:
		fmt.Fprintf(b, "\t"+stmt+"\n", p.Name, "formatParam("+field+")")
	}
}

func stringSlice(ss []string) string {
	if len(ss) == 0 {
		return "nil"
	}
	q := make([]string, 0, len(ss))
	for _, s := range ss {
		q = append(q, strconv.Quote(s))
	}
	return "[]string{" + strings.Join(q, ", ") + "}"
}

func (e *Emitter) renderType(def *ir.TypeDef, m typeMapper) string {
	name := emitter.PascalCase(def.Name)
	var b strings.Builder
	b.WriteString(header)
	fmt.Fprintf(&b, "package %s\n\n", e.pkg)

	if def.Description != "" {
		comment(&b, "", name+" "+lowerFirst(def.Description))
	} else {
		fmt.Fprintf(&b, "// %s mirrors the %s type.\n", name, def.Name)
	}

	switch def.Kind {
	case ir.KindAlias:
		target := "any"
		if def.Target != nil {
			target = m.goType(*def.Target)
		}
		fmt.Fprintf(&b, "type %s %s\n", name, target)
	case ir.KindEnum:
		fmt.Fprintf(&b, "type %s string\n\n", name)
		b.WriteString("const (\n")
		consts := newFieldNamer()
		for _, member := range def.Members {
			fmt.Fprintf(&b, "\t%s %s = %q\n", name+consts.name(member, ""), name, member)
		}
		b.WriteString(")\n\n")
		fmt.Fprintf(&b, "// Valid reports whether v is a known %s value.\n", name)
		fmt.Fprintf(&b, "func (v %s) Valid() bool {\n\tswitch v {\n\tcase ", name)
		idents := make([]string, 0, len(def.Members))
		for _, member := range def.Members {
			idents = append(idents, strconv.Quote(member))
		}
		b.WriteString(strings.Join(idents, ", "))
		b.WriteString(":\n\t\treturn true\n\t}\n\treturn false\n}\n")
	case ir.KindObject:
		fmt.Fprintf(&b, "type %s struct {\n", name)
		names := make([]string, 0, len(def.Properties))
		for _, p := range def.Properties {
			names = append(names, p.Name)
		}
		fields := propertyFields(names)
		for i, p := range def.Properties {
			b.WriteString("\n")
			comment(&b, "\t", p.Description)
			tag := p.Name
			if !p.Required {
				tag += ",omitempty"
			}
			fmt.Fprintf(&b, "\t%s %s `json:%q`\n", fields[i], m.fieldType(p.Type, !p.Required), tag)
		}
		b.WriteString("}\n")
	case ir.KindUnion:
		variants := make([]string, 0, len(def.Variants))
		for _, v := range def.Variants {
			variants = append(variants, v.String())
		}
		fmt.Fprintf(&b, "//\n// It holds one of: %s.\n", strings.Join(variants, ", "))
		fmt.Fprintf(&b, "type %s any\n", name)
	default:
		fmt.Fprintf(&b, "type %s any\n", name)
	}
	return b.String()
}

func (e *Emitter) renderClient(ops []*ir.Operation) string {
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, op.Name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(header)
	fmt.Fprintf(&b, "// Package %s is a typed client for the compiled API surface.\n", e.pkg)
	fmt.Fprintf(&b, "package %s\n\n", e.pkg)
	b.WriteString(clientSource)
	b.WriteString("\n// Operations lists the name of every operation this client exposes.\n")
	b.WriteString("var Operations = []string{\n")
	for _, n := range names {
		fmt.Fprintf(&b, "\t%q,\n", n)
	}
	b.WriteString("}\n")
	return b.String()
}

const clientSource = `import (
	"context"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// Call describes one request. Transport picks the method and path
// template that fit the parameters present.
type Call struct {
	Operation  string
	Methods    []string
	Paths      []string
	PathParams map[string]string
	Query      url.Values
	Body       any
}

// Transport performs calls. Implementations decode the response into out
// when out is non-nil.
type Transport interface {
	Perform(ctx context.Context, call *Call, out any) error
}

// Client exposes one method per operation.
type Client struct {
	transport Transport
}

// New returns a Client that sends every call through t.
func New(t Transport) *Client {
	return &Client{transport: t}
}

// formatParam renders a parameter value for a path or query string. Lists
// are joined with commas.
func formatParam(v any) string {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return ""
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = formatParam(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.Invalid:
		return ""
	}
	return fmt.Sprint(rv.Interface())
}
`
