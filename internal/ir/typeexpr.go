package ir

import (
	"fmt"
	"strings"
)

// ExprKind is the shape of a type expression.
type ExprKind string

const (
	ExprNamed      ExprKind = "named"
	ExprArray      ExprKind = "array"
	ExprUnion      ExprKind = "union"
	ExprDictionary ExprKind = "dictionary"
)

// TypeExpr is a symbolic type reference as written in the corpus. Named
// expressions point into the resolved type table; they are never inlined.
type TypeExpr struct {
	Kind    ExprKind
	Name    string     // named
	Elem    *TypeExpr  // array
	Members []TypeExpr // union
	Key     *TypeExpr  // dictionary
	Value   *TypeExpr  // dictionary
}

// Named returns a named expression.
func Named(name string) TypeExpr { return TypeExpr{Kind: ExprNamed, Name: name} }

// ArrayOf returns an array expression.
func ArrayOf(elem TypeExpr) TypeExpr { return TypeExpr{Kind: ExprArray, Elem: &elem} }

// String renders the canonical form of e, which ParseTypeExpr accepts.
func (e TypeExpr) String() string {
	switch e.Kind {
	case ExprNamed:
		return e.Name
	case ExprArray:
		if e.Elem == nil {
			return "[]"
		}
		if e.Elem.Kind == ExprUnion {
			return "(" + e.Elem.String() + ")[]"
		}
		return e.Elem.String() + "[]"
	case ExprUnion:
		parts := make([]string, 0, len(e.Members))
		for _, m := range e.Members {
			parts = append(parts, m.String())
		}
		return strings.Join(parts, " | ")
	case ExprDictionary:
		var k, v string
		if e.Key != nil {
			k = e.Key.String()
		}
		if e.Value != nil {
			v = e.Value.String()
		}
		return "Dictionary<" + k + ", " + v + ">"
	}
	return ""
}

// Names returns every type name referenced by e in first-seen order.
func (e TypeExpr) Names() []string {
	var out []string
	seen := map[string]bool{}
	e.walk(func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	})
	return out
}

func (e TypeExpr) walk(fn func(string)) {
	switch e.Kind {
	case ExprNamed:
		fn(e.Name)
	case ExprArray:
		if e.Elem != nil {
			e.Elem.walk(fn)
		}
	case ExprUnion:
		for _, m := range e.Members {
			m.walk(fn)
		}
	case ExprDictionary:
		if e.Key != nil {
			e.Key.walk(fn)
		}
		if e.Value != nil {
			e.Value.walk(fn)
		}
	}
}

// Scalar classes of the builtin types.
const (
	ScalarString  = "string"
	ScalarBoolean = "boolean"
	ScalarInteger = "integer"
	ScalarNumber  = "number"
	ScalarNull    = "null"
	ScalarAny     = "any"
)

// builtinScalars maps builtin type names to their scalar class.
var builtinScalars = map[string]string{
	"string":  ScalarString,
	"boolean": ScalarBoolean,
	"integer": ScalarInteger,
	"long":    ScalarInteger,
	"short":   ScalarInteger,
	"byte":    ScalarInteger,
	"uint":    ScalarInteger,
	"ulong":   ScalarInteger,
	"float":   ScalarNumber,
	"double":  ScalarNumber,
	"number":  ScalarNumber,
	"null":    ScalarNull,
	"any":     ScalarAny,
}

// BuiltinNames returns the builtin scalar names in sorted order.
func BuiltinNames() []string {
	return []string{"any", "boolean", "byte", "double", "float", "integer", "long", "null", "number", "short", "string", "uint", "ulong"}
}

// ScalarClass returns the scalar class of a builtin name and whether name is
// a builtin.
func ScalarClass(name string) (string, bool) {
	c, ok := builtinScalars[name]
	return c, ok
}

// ParseTypeExpr parses the corpus type expression grammar:
//
//	expr    = term { "|" term }
//	term    = primary { "[" "]" }
//	primary = ident [ "<" expr "," expr ">" ] | "(" expr ")"
//
// The only generic is Dictionary<K, V>.
func ParseTypeExpr(s string) (TypeExpr, error) {
	p := &exprParser{src: s}
	p.next()
	if p.tok.kind == tokEOF {
		return TypeExpr{}, fmt.Errorf("empty type expression")
	}
	e, err := p.expr()
	if err != nil {
		return TypeExpr{}, fmt.Errorf("type expression %q: %w", s, err)
	}
	if p.tok.kind != tokEOF {
		return TypeExpr{}, fmt.Errorf("type expression %q: unexpected %q at offset %d", s, p.tok.text, p.tok.pos)
	}
	return e, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokPunct
)

type token struct {
	kind tokKind
	text string
	pos  int
}

type exprParser struct {
	src string
	off int
	tok token
}

func (p *exprParser) next() {
	for p.off < len(p.src) && (p.src[p.off] == ' ' || p.src[p.off] == '\t') {
		p.off++
	}
	if p.off >= len(p.src) {
		p.tok = token{kind: tokEOF, pos: p.off}
		return
	}
	start := p.off
	c := p.src[p.off]
	if isIdentStart(c) {
		for p.off < len(p.src) && isIdentPart(p.src[p.off]) {
			p.off++
		}
		p.tok = token{kind: tokIdent, text: p.src[start:p.off], pos: start}
		return
	}
	p.off++
	p.tok = token{kind: tokPunct, text: string(c), pos: start}
}

func (p *exprParser) expect(punct string) error {
	if p.tok.kind != tokPunct || p.tok.text != punct {
		if p.tok.kind == tokEOF {
			return fmt.Errorf("expected %q, got end of input", punct)
		}
		return fmt.Errorf("expected %q at offset %d, got %q", punct, p.tok.pos, p.tok.text)
	}
	p.next()
	return nil
}

func (p *exprParser) is(punct string) bool {
	return p.tok.kind == tokPunct && p.tok.text == punct
}

func (p *exprParser) expr() (TypeExpr, error) {
	first, err := p.term()
	if err != nil {
		return TypeExpr{}, err
	}
	if !p.is("|") {
		return first, nil
	}
	u := TypeExpr{Kind: ExprUnion, Members: []TypeExpr{first}}
	for p.is("|") {
		p.next()
		m, err := p.term()
		if err != nil {
			return TypeExpr{}, err
		}
		u.Members = append(u.Members, m)
	}
	return u, nil
}

func (p *exprParser) term() (TypeExpr, error) {
	e, err := p.primary()
	if err != nil {
		return TypeExpr{}, err
	}
	for p.is("[") {
		p.next()
		if err := p.expect("]"); err != nil {
			return TypeExpr{}, err
		}
		e = ArrayOf(e)
	}
	return e, nil
}

func (p *exprParser) primary() (TypeExpr, error) {
	switch {
	case p.is("("):
		p.next()
		e, err := p.expr()
		if err != nil {
			return TypeExpr{}, err
		}
		if err := p.expect(")"); err != nil {
			return TypeExpr{}, err
		}
		return e, nil
	case p.tok.kind == tokIdent:
		name := p.tok.text
		p.next()
		if !p.is("<") {
			return Named(name), nil
		}
		if name != "Dictionary" {
			return TypeExpr{}, fmt.Errorf("unsupported generic %q", name)
		}
		p.next()
		k, err := p.expr()
		if err != nil {
			return TypeExpr{}, err
		}
		if err := p.expect(","); err != nil {
			return TypeExpr{}, err
		}
		v, err := p.expr()
		if err != nil {
			return TypeExpr{}, err
		}
		if err := p.expect(">"); err != nil {
			return TypeExpr{}, err
		}
		return TypeExpr{Kind: ExprDictionary, Key: &k, Value: &v}, nil
	case p.tok.kind == tokEOF:
		return TypeExpr{}, fmt.Errorf("unexpected end of input")
	default:
		return TypeExpr{}, fmt.Errorf("unexpected %q at offset %d", p.tok.text, p.tok.pos)
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '.' || (c >= '0' && c <= '9')
}
