package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/apispecc/internal/ir"
)

// ErrorCode categorizes loader errors.
type ErrorCode string

const (
	InputError  ErrorCode = "InputError"
	ParseError  ErrorCode = "ParseError"
	SchemaError ErrorCode = "SchemaError"
)

// CorpusError is a structured load error with an optional location and
// field pointer.
type CorpusError struct {
	Code     ErrorCode
	Message  string
	Location string // file path, with :line when known
	Pointer  string // e.g. "operation.query_parameters.1"
	Cause    error
}

func (e *CorpusError) Error() string {
	msg := e.Message
	if e.Pointer != "" {
		msg = fmt.Sprintf("%s (at %s)", msg, e.Pointer)
	}
	if e.Location != "" {
		return e.Location + ": " + msg
	}
	return msg
}

func (e *CorpusError) Unwrap() error { return e.Cause }

// Settings configures loader behavior.
type Settings struct {
	// Extensions are the file suffixes treated as declarations.
	Extensions []string
	// SchemaCheck validates each document against the declaration schema
	// before decoding.
	SchemaCheck bool
}

// DefaultSettings returns recommended defaults.
func DefaultSettings() Settings {
	return Settings{
		Extensions:  []string{".yaml", ".yml", ".json"},
		SchemaCheck: true,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithExtensions(exts ...string) Option { return func(s *Settings) { s.Extensions = exts } }
func WithSchemaCheck(on bool) Option       { return func(s *Settings) { s.SchemaCheck = on } }

// Load reads every declaration file under root (or root itself when it is
// a file). A missing or unreadable root is returned as an error; problems in
// individual files are collected in Corpus.Errors and the file is skipped.
func Load(ctx context.Context, root string, opts ...Option) (*Corpus, error) {
	if strings.TrimSpace(root) == "" {
		return nil, &CorpusError{Code: InputError, Message: "corpus: path is empty"}
	}
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, &CorpusError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: root, Cause: err}
	}
	st, err := os.Stat(abs)
	if err != nil {
		return nil, &CorpusError{Code: InputError, Message: fmt.Sprintf("corpus: %v", err), Location: abs, Cause: err}
	}

	base := abs
	var paths []string
	if st.IsDir() {
		paths, err = collectFiles(ctx, abs, settings.Extensions)
		if err != nil {
			return nil, &CorpusError{Code: InputError, Message: fmt.Sprintf("walk corpus: %v", err), Location: abs, Cause: err}
		}
	} else {
		base = filepath.Dir(abs)
		paths = []string{abs}
	}

	c := &Corpus{Root: abs}
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			rel = p
		}
		rel = filepath.ToSlash(rel)

		data, err := os.ReadFile(p)
		if err != nil {
			c.Errors = append(c.Errors, &CorpusError{Code: InputError, Message: fmt.Sprintf("read file: %v", err), Location: rel, Cause: err})
			continue
		}
		f, errs := Parse(rel, data, settings)
		if len(errs) > 0 {
			c.Errors = append(c.Errors, errs...)
			continue
		}
		if f != nil {
			c.Files = append(c.Files, f)
		}
	}
	return c, nil
}

func collectFiles(ctx context.Context, root string, exts []string) ([]string, error) {
	want := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		want[strings.ToLower(e)] = struct{}{}
	}
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if _, ok := want[strings.ToLower(filepath.Ext(name))]; ok {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// Parse decodes one declaration document. It returns a nil File and no
// errors for an empty document.
func Parse(rel string, data []byte, settings Settings) (*File, []error) {
	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, []error{&CorpusError{Code: ParseError, Message: fmt.Sprintf("parse: %v", err), Location: rel, Cause: err}}
	}
	if generic == nil {
		return nil, nil
	}

	if settings.SchemaCheck {
		if errs := checkSchema(rel, generic); len(errs) > 0 {
			return nil, errs
		}
	}

	f := &File{Path: rel}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, []error{&CorpusError{Code: ParseError, Message: fmt.Sprintf("decode: %v", err), Location: rel, Cause: err}}
	}
	if errs := parseExpressions(f); len(errs) > 0 {
		return nil, errs
	}
	return f, nil
}

func checkSchema(rel string, doc any) []error {
	schema, err := declarationSchema()
	if err != nil {
		return []error{&CorpusError{Code: SchemaError, Message: fmt.Sprintf("compile declaration schema: %v", err), Cause: err}}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return []error{&CorpusError{Code: ParseError, Message: fmt.Sprintf("check structure: %v", err), Location: rel, Cause: err}}
	}
	if result.Valid() {
		return nil
	}
	var errs []error
	for _, desc := range result.Errors() {
		errs = append(errs, &CorpusError{
			Code:     SchemaError,
			Message:  desc.Description(),
			Location: rel,
			Pointer:  desc.Field(),
		})
	}
	return errs
}

func parseExpressions(f *File) []error {
	var errs []error
	bad := func(line int, pointer string, err error) {
		errs = append(errs, &CorpusError{
			Code:     ParseError,
			Message:  err.Error(),
			Location: fmt.Sprintf("%s:%d", f.Path, line),
			Pointer:  pointer,
			Cause:    err,
		})
	}
	params := func(prefix string, ps []*RawParam) {
		for i, p := range ps {
			if p == nil {
				continue
			}
			e, err := ir.ParseTypeExpr(p.Type)
			if err != nil {
				bad(p.Line, fmt.Sprintf("%s.%d.type", prefix, i), err)
				continue
			}
			p.Expr = e
		}
	}

	if op := f.Operation; op != nil {
		params("operation.path_parts", op.PathParts)
		params("operation.query_parameters", op.QueryParameters)
		params("operation.body", op.Body)
		if strings.TrimSpace(op.Response) != "" {
			e, err := ir.ParseTypeExpr(op.Response)
			if err != nil {
				bad(op.Line, "operation.response", err)
			} else {
				op.ResponseExpr = &e
			}
		}
	}

	for i, t := range f.Types {
		if t == nil {
			continue
		}
		prefix := fmt.Sprintf("types.%d", i)
		switch t.Kind {
		case "alias":
			e, err := ir.ParseTypeExpr(t.Type)
			if err != nil {
				bad(t.Line, prefix+".type", err)
				continue
			}
			t.Target = &e
		case "union":
			if len(t.Of) == 0 {
				bad(t.Line, prefix+".of", errors.New("union declares no variants"))
			}
			for j, v := range t.Of {
				e, err := ir.ParseTypeExpr(v)
				if err != nil {
					bad(t.Line, fmt.Sprintf("%s.of.%d", prefix, j), err)
					continue
				}
				t.Variants = append(t.Variants, e)
			}
		case "object":
			params(prefix+".properties", t.Properties)
		case "enum":
			if len(t.Members) == 0 {
				bad(t.Line, prefix+".members", errors.New("enum declares no members"))
			}
			seen := make(map[string]bool, len(t.Members))
			for j, m := range t.Members {
				if seen[m] {
					bad(t.Line, fmt.Sprintf("%s.members.%d", prefix, j), fmt.Errorf("enum member %q is declared more than once", m))
				}
				seen[m] = true
			}
		}
	}
	return errs
}
