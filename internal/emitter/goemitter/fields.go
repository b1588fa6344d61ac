package goemitter

import (
	"strconv"

	"github.com/mark3labs/apispecc/internal/emitter"
	"github.com/mark3labs/apispecc/internal/ir"
)

// fieldNamer hands out Go field names unique within one struct. A name
// already taken gets the category suffix, then a counter. Wire names stay
// in the struct tags.
type fieldNamer struct {
	used map[string]bool
}

func newFieldNamer(reserved ...string) *fieldNamer {
	n := &fieldNamer{used: map[string]bool{}}
	for _, r := range reserved {
		n.used[r] = true
	}
	return n
}

func (n *fieldNamer) name(wire, suffix string) string {
	base := emitter.PascalCase(wire)
	name := base
	if n.used[name] {
		name = base + suffix
	}
	for i := 2; n.used[name]; i++ {
		name = base + suffix + strconv.Itoa(i)
	}
	n.used[name] = true
	return name
}

// requestFields names the path and query fields of op's request struct.
// Path parts are named first, so a query parameter sharing a path part's
// name is the one that gets the Query suffix. Body is reserved for the
// request body.
func requestFields(op *ir.Operation) (path, query []string) {
	var n *fieldNamer
	if op.Body != nil {
		n = newFieldNamer("Body")
	} else {
		n = newFieldNamer()
	}
	for _, p := range op.PathParams {
		path = append(path, n.name(p.Name, "Path"))
	}
	for _, p := range op.QueryParams {
		query = append(query, n.name(p.Name, "Query"))
	}
	return path, query
}

func propertyFields(names []string) []string {
	n := newFieldNamer()
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, n.name(name, "Field"))
	}
	return out
}

