package resolve

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/apispecc/internal/ir"
)

// Coerce converts a declared default value to the Go representation of
// type e: bool for boolean, int64 for integer-like scalars, float64 for
// floating scalars, string for strings and enum members, []any for arrays.
// Unions take the first variant that accepts v. References to names the
// table does not know return v unchanged with no error, since the resolver
// has already reported them.
func (t *Table) Coerce(v any, e ir.TypeExpr) (any, error) {
	return t.coerce(v, e, map[string]bool{})
}

func (t *Table) coerce(v any, e ir.TypeExpr, active map[string]bool) (any, error) {
	switch e.Kind {
	case ir.ExprArray:
		if e.Elem == nil {
			return nil, fmt.Errorf("array has no element type")
		}
		if list, ok := v.([]any); ok {
			out := make([]any, 0, len(list))
			for i, item := range list {
				x, err := t.coerce(item, *e.Elem, active)
				if err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
				out = append(out, x)
			}
			return out, nil
		}
		x, err := t.coerce(v, *e.Elem, active)
		if err != nil {
			return nil, err
		}
		return []any{x}, nil
	case ir.ExprUnion:
		return t.coerceVariants(v, e.Members, e.String(), active)
	case ir.ExprDictionary:
		return nil, fmt.Errorf("dictionary types take no default")
	case ir.ExprNamed:
		def, ok := t.defs[e.Name]
		if !ok {
			return v, nil
		}
		switch def.Kind {
		case ir.KindScalar:
			class, _ := ir.ScalarClass(def.Name)
			return coerceScalar(v, class)
		case ir.KindAlias:
			if active[def.Name] || def.Target == nil {
				return v, nil
			}
			active[def.Name] = true
			defer delete(active, def.Name)
			return t.coerce(v, *def.Target, active)
		case ir.KindEnum:
			s, ok := scalarText(v)
			if !ok {
				return nil, fmt.Errorf("want one of %s", strings.Join(def.Members, ", "))
			}
			for _, m := range def.Members {
				if m == s {
					return s, nil
				}
			}
			return nil, fmt.Errorf("%q is not a member of %s (%s)", s, def.Name, strings.Join(def.Members, ", "))
		case ir.KindUnion:
			if active[def.Name] {
				return v, nil
			}
			active[def.Name] = true
			defer delete(active, def.Name)
			return t.coerceVariants(v, def.Variants, def.Name, active)
		case ir.KindObject:
			return nil, fmt.Errorf("object type %s takes no default", def.Name)
		}
	}
	return nil, fmt.Errorf("unsupported type %s", e)
}

func (t *Table) coerceVariants(v any, variants []ir.TypeExpr, label string, active map[string]bool) (any, error) {
	for _, m := range variants {
		if x, err := t.coerce(v, m, active); err == nil {
			return x, nil
		}
	}
	return nil, fmt.Errorf("matches no variant of %s", label)
}

func coerceScalar(v any, class string) (any, error) {
	switch class {
	case ir.ScalarAny:
		return v, nil
	case ir.ScalarNull:
		if v == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("want null")
	}
	if v == nil {
		return nil, fmt.Errorf("null is not a %s", class)
	}

	switch class {
	case ir.ScalarBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			switch x {
			case "true":
				return true, nil
			case "false":
				return false, nil
			}
		}
		return nil, fmt.Errorf("want true or false")
	case ir.ScalarInteger:
		switch x := v.(type) {
		case int:
			return int64(x), nil
		case int64:
			return x, nil
		case uint64:
			if x > math.MaxInt64 {
				return nil, fmt.Errorf("%d overflows int64", x)
			}
			return int64(x), nil
		case float64:
			if x != math.Trunc(x) || math.IsInf(x, 0) {
				break
			}
			// float64(math.MaxInt64) rounds up to 2^63, so that bound is exclusive
			if x < math.MinInt64 || x >= math.MaxInt64 {
				return nil, fmt.Errorf("%s overflows int64", strconv.FormatFloat(x, 'g', -1, 64))
			}
			return int64(x), nil
		case string:
			n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
			if err == nil {
				return n, nil
			}
			if errors.Is(err, strconv.ErrRange) {
				return nil, fmt.Errorf("%s overflows int64", strings.TrimSpace(x))
			}
		}
		return nil, fmt.Errorf("want an integer")
	case ir.ScalarNumber:
		switch x := v.(type) {
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case uint64:
			return float64(x), nil
		case float64:
			return x, nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f, nil
			}
		}
		return nil, fmt.Errorf("want a number")
	case ir.ScalarString:
		if s, ok := scalarText(v); ok {
			return s, nil
		}
		return nil, fmt.Errorf("want a string")
	}
	return nil, fmt.Errorf("unknown scalar class %q", class)
}

// scalarText renders a YAML scalar as the text it was written as.
func scalarText(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), true
	}
	return "", false
}
