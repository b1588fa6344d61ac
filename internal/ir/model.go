package ir

// Intermediate representation shared by the normalizer, the metadata
// extractor, the validator and the emitters.

import (
	"sort"
	"strings"

	"github.com/mark3labs/apispecc/internal/diag"
)

// Category is the part of a request a parameter travels in.
type Category string

const (
	Path  Category = "path"
	Query Category = "query"
	Body  Category = "body"
)

// Flavor is a deployment context an operation can be available in.
type Flavor string

const (
	SelfManaged  Flavor = "self-managed"
	ManagedCloud Flavor = "managed-cloud"
)

// Flavors lists the closed set of known flavors in report order.
var Flavors = []Flavor{SelfManaged, ManagedCloud}

// Stability classifies how settled an API surface is.
type Stability string

const (
	Stable       Stability = "stable"
	Experimental Stability = "experimental"
	Deprecated   Stability = "deprecated"
)

// Stabilities lists the closed set of known stability values.
var Stabilities = []Stability{Stable, Experimental, Deprecated}

// PrivilegeKind says which privilege family a requirement belongs to.
type PrivilegeKind string

const (
	ClusterPrivilege PrivilegeKind = "cluster"
	IndexPrivilege   PrivilegeKind = "index"
)

type Operation struct {
	Name        string
	Family      string // value of @rest_spec_name
	File        string
	Line        int
	Doc         string // raw documentation text, tags included
	Summary     string
	Description string

	URLs        []URL
	PathParams  []Parameter
	QueryParams []Parameter
	Body        []Parameter // nil when the operation declares no body
	Response    *TypeExpr

	Availability []AvailabilityRecord
	Privileges   []Privilege
	DocID        string
	DocURL       string
	ExtDocID     string
	Stability    Stability
	Visibility   string
	Metadata     Metadata
}

// Loc is the location of the operation declaration.
func (o *Operation) Loc() diag.Location {
	return diag.Location{File: o.File, Line: o.Line, Path: "operation"}
}

// Namespace is the namespace of the operation name.
func (o *Operation) Namespace() string { return NamespaceOf(o.Name) }

// NamespaceOf returns the dotted prefix of an operation name ("cat" for
// "cat.templates"), or "_global" for undotted names.
func NamespaceOf(name string) string {
	if i := strings.Index(name, "."); i > 0 {
		return name[:i]
	}
	return "_global"
}

// Params returns path, query and body parameters in that order.
func (o *Operation) Params() []Parameter {
	out := make([]Parameter, 0, len(o.PathParams)+len(o.QueryParams)+len(o.Body))
	out = append(out, o.PathParams...)
	out = append(out, o.QueryParams...)
	out = append(out, o.Body...)
	return out
}

// HasRequiredBody reports whether any body field is required.
func (o *Operation) HasRequiredBody() bool {
	for _, p := range o.Body {
		if p.Required {
			return true
		}
	}
	return false
}

// Methods returns the distinct HTTP methods of all URLs, sorted.
func (o *Operation) Methods() []string {
	set := map[string]struct{}{}
	for _, u := range o.URLs {
		for _, m := range u.Methods {
			set[strings.ToUpper(m)] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// URL is one HTTP path template an operation is served on.
type URL struct {
	Path    string
	Methods []string
}

type Parameter struct {
	Name         string
	Category     Category
	Type         TypeExpr
	Required     bool
	Default      *DefaultValue
	Doc          string
	Description  string
	Deprecated   *Deprecation
	Since        string
	Availability []AvailabilityRecord
	At           diag.Location
}

// DefaultValue is the declared default of a parameter. Value holds the
// value coerced to the declared type (bool, int64, float64, string or
// []any); when coercion failed it holds the declared value unchanged.
type DefaultValue struct {
	Raw   string
	Value any
}

type Deprecation struct {
	Version     string
	Description string
}

// AvailabilityRecord tells where and since when something is available.
type AvailabilityRecord struct {
	Flavor     Flavor
	Since      string
	Stability  Stability
	Visibility string
	At         diag.Location
}

type Privilege struct {
	Kind PrivilegeKind
	Name string
}

// Metadata is the open key/value bag of documentation tags. Keys are tag
// markers without the leading '@'; every occurrence is kept in order.
type Metadata map[string][]string

// Add appends a value for key.
func (m Metadata) Add(key, value string) {
	m[key] = append(m[key], value)
}

// Get returns the first value for key.
func (m Metadata) Get(key string) string {
	if vs := m[key]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Has reports whether key was tagged at least once.
func (m Metadata) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Keys returns the tag markers in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// TypeKind is the shape of a named type definition.
type TypeKind string

const (
	KindScalar TypeKind = "scalar"
	KindAlias  TypeKind = "alias"
	KindEnum   TypeKind = "enum"
	KindObject TypeKind = "object"
	KindUnion  TypeKind = "union"
)

type TypeDef struct {
	Name        string
	Kind        TypeKind
	Builtin     bool
	Description string

	Target     *TypeExpr  // alias
	Members    []string   // enum
	Properties []Property // object
	Variants   []TypeExpr // union

	At diag.Location
}

type Property struct {
	Name        string
	Type        TypeExpr
	Required    bool
	Description string
	At          diag.Location
}
