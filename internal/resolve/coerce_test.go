package resolve

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mark3labs/apispecc/internal/ir"
)

func TestCoerce(t *testing.T) {
	t.Parallel()
	c := corpusOf(t, map[string]string{
		"types.yaml": `
types:
  - {name: Duration, kind: alias, type: string}
  - {name: Level, kind: enum, members: [cluster, indices, shards]}
  - {name: Levels, kind: alias, type: "Level | Level[]"}
  - {name: Id, kind: union, of: [long, string]}
  - {name: Obj, kind: object, properties: [{name: a, type: string}]}
`,
	})
	table, errs := Build(c)
	if len(errs) != 0 {
		t.Fatalf("errors: %v", errs)
	}

	ok := []struct {
		typ  string
		in   any
		want any
	}{
		{"boolean", false, false},
		{"boolean", "false", false},
		{"boolean", "true", true},
		{"integer", 5, int64(5)},
		{"long", "42", int64(42)},
		{"long", -9.223372036854775808e18, int64(math.MinInt64)},
		{"double", 1, float64(1)},
		{"float", "0.5", 0.5},
		{"string", "x", "x"},
		{"string", 30, "30"},
		{"Duration", "30s", "30s"},
		{"Level", "indices", "indices"},
		{"Levels", "shards", "shards"},
		{"Levels", []any{"cluster", "shards"}, []any{"cluster", "shards"}},
		{"string[]", "a", []any{"a"}},
		{"Id", "7", int64(7)},
		{"Id", "abc", "abc"},
		{"any", map[string]any{"k": 1}, map[string]any{"k": 1}},
		{"Unknown", "kept", "kept"},
	}
	for _, tc := range ok {
		e, err := ir.ParseTypeExpr(tc.typ)
		if err != nil {
			t.Fatalf("%s: %v", tc.typ, err)
		}
		got, err := table.Coerce(tc.in, e)
		if err != nil {
			t.Errorf("%s <- %#v: unexpected error %v", tc.typ, tc.in, err)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("%s <- %#v (-want +got):\n%s", tc.typ, tc.in, diff)
		}
	}

	bad := []struct {
		typ string
		in  any
	}{
		{"boolean", "yes"},
		{"boolean", 0},
		{"integer", "1.5"},
		{"integer", 2.5},
		{"double", "fast"},
		{"Level", "nodes"},
		{"Levels", []any{"cluster", "nodes"}},
		{"Obj", "x"},
		{"Dictionary<string, string>", "x"},
		{"string", nil},
		{"long", 1e20},
		{"long", -1e20},
		{"long", 9.223372036854775808e18},
		{"long", "99999999999999999999"},
	}
	for _, tc := range bad {
		e, err := ir.ParseTypeExpr(tc.typ)
		if err != nil {
			t.Fatalf("%s: %v", tc.typ, err)
		}
		if got, err := table.Coerce(tc.in, e); err == nil {
			t.Errorf("%s <- %#v: expected error, got %#v", tc.typ, tc.in, got)
		}
	}

	e, _ := ir.ParseTypeExpr("long")
	if _, err := table.Coerce(1e20, e); err == nil || !strings.Contains(err.Error(), "1e+20 overflows int64") {
		t.Errorf("overflow message: %v", err)
	}
}
