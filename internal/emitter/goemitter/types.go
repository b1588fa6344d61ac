package goemitter

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mark3labs/apispecc/internal/emitter"
	"github.com/mark3labs/apispecc/internal/ir"
	"github.com/mark3labs/apispecc/internal/resolve"
)

var builtinGo = map[string]string{
	"string":  "string",
	"boolean": "bool",
	"integer": "int",
	"short":   "int",
	"byte":    "int",
	"uint":    "int",
	"long":    "int64",
	"ulong":   "int64",
	"float":   "float32",
	"double":  "float64",
	"number":  "float64",
	"null":    "any",
	"any":     "any",
}

// typeMapper turns type expressions into Go type syntax.
type typeMapper struct {
	types *resolve.Table
}

func (m typeMapper) goType(e ir.TypeExpr) string {
	switch e.Kind {
	case ir.ExprNamed:
		if def, ok := m.types.Lookup(e.Name); ok && def.Builtin {
			return builtinGo[e.Name]
		}
		return emitter.PascalCase(e.Name)
	case ir.ExprArray:
		if e.Elem == nil {
			return "[]any"
		}
		return "[]" + m.fieldType(*e.Elem, false)
	case ir.ExprDictionary:
		key := "string"
		if e.Key != nil && m.stringKey(*e.Key) {
			key = m.goType(*e.Key)
		}
		val := "any"
		if e.Value != nil {
			val = m.fieldType(*e.Value, false)
		}
		return fmt.Sprintf("map[%s]%s", key, val)
	}
	return "any"
}

// fieldType is goType plus the pointer rules for struct fields: optional
// values that have no nil state get a pointer, and object types are always
// referenced through a pointer so recursive definitions stay finite.
func (m typeMapper) fieldType(e ir.TypeExpr, optional bool) string {
	t := m.goType(e)
	if m.isObject(e) {
		return "*" + t
	}
	if optional && !m.nilable(e) {
		return "*" + t
	}
	return t
}

// nilable reports whether the Go rendering of e already has a nil value.
func (m typeMapper) nilable(e ir.TypeExpr) bool {
	for depth := 0; depth < 32; depth++ {
		switch e.Kind {
		case ir.ExprArray, ir.ExprDictionary, ir.ExprUnion:
			return true
		}
		def, ok := m.types.Lookup(e.Name)
		if !ok {
			return true
		}
		switch def.Kind {
		case ir.KindScalar:
			return builtinGo[def.Name] == "any"
		case ir.KindUnion:
			return true
		case ir.KindAlias:
			if def.Target == nil {
				return true
			}
			e = *def.Target
			continue
		}
		return false
	}
	return true
}

func (m typeMapper) isObject(e ir.TypeExpr) bool {
	if e.Kind != ir.ExprNamed {
		return false
	}
	def, ok := m.types.Lookup(e.Name)
	return ok && def.Kind == ir.KindObject
}

// stringKey reports whether e can be a Go map key rendered as its own type.
func (m typeMapper) stringKey(e ir.TypeExpr) bool {
	u := m.types.Underlying(e)
	if u.Kind != ir.ExprNamed {
		return false
	}
	def, ok := m.types.Lookup(u.Name)
	if !ok {
		return false
	}
	switch def.Kind {
	case ir.KindEnum:
		return true
	case ir.KindScalar:
		return def.Builtin && builtinGo[def.Name] == "string"
	}
	return false
}

// comment renders text as a Go line comment block, or nothing.
func comment(b *strings.Builder, indent, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			b.WriteString(indent + "//\n")
			continue
		}
		b.WriteString(indent + "// " + line + "\n")
	}
}

// lowerFirst makes the first rune of a sentence lower case so it reads
// after an identifier: "Name gets ...".
func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsUpper(r) {
		return s
	}
	if next, _ := utf8.DecodeRuneInString(s[n:]); unicode.IsUpper(next) {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}
