// Package diag defines the corpus-authoring diagnostics reported by the
// compiler. Every stage collects these values instead of returning on the
// first problem, so one run surfaces the whole defect list.
package diag

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind names a class of corpus-authoring error.
type Kind string

const (
	KindUnresolvedType        Kind = "UnresolvedTypeError"
	KindDuplicateParameter    Kind = "DuplicateParameterError"
	KindDuplicateType         Kind = "DuplicateTypeError"
	KindDuplicateOperation    Kind = "DuplicateOperationError"
	KindMissingMetadata       Kind = "MissingMetadataError"
	KindInvalidDefault        Kind = "InvalidDefaultValueError"
	KindUnknownEnumValue      Kind = "UnknownEnumValueError"
	KindDuplicateAvailability Kind = "DuplicateAvailabilityError"
)

// Location points at a declaration inside the corpus.
type Location struct {
	File string // slash separated, relative to the corpus root
	Line int
	Path string // e.g. query_parameters[1]
}

func (l Location) String() string {
	var b strings.Builder
	b.WriteString(l.File)
	if l.Line > 0 {
		fmt.Fprintf(&b, ":%d", l.Line)
	}
	if l.Path != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(l.Path)
	}
	return b.String()
}

// Violation is implemented by every error in this package.
type Violation interface {
	error
	Kind() Kind
	// OperationName is empty for corpus-level problems (shared types).
	OperationName() string
	Loc() Location
}

// UnresolvedTypeError reports a reference to a type name that no file defines.
type UnresolvedTypeError struct {
	Operation string
	Field     string
	TypeName  string
	At        Location
}

func (e *UnresolvedTypeError) Error() string {
	owner := "shared type"
	if e.Operation != "" {
		owner = fmt.Sprintf("operation %q", e.Operation)
	}
	return fmt.Sprintf("%s: unresolved type %q referenced by %s field %q", e.At, e.TypeName, owner, e.Field)
}
func (e *UnresolvedTypeError) Kind() Kind            { return KindUnresolvedType }
func (e *UnresolvedTypeError) OperationName() string { return e.Operation }
func (e *UnresolvedTypeError) Loc() Location         { return e.At }

// DuplicateParameterError reports one parameter name declared more than
// once. Locations lists every declaration, in corpus order.
type DuplicateParameterError struct {
	Operation string
	Name      string
	Category  string // "path", "query", "body" or "path/body"
	Locations []Location
}

func (e *DuplicateParameterError) Error() string {
	locs := make([]string, 0, len(e.Locations))
	for _, l := range e.Locations {
		locs = append(locs, l.String())
	}
	return fmt.Sprintf("operation %q: duplicate %s parameter %q declared at %s", e.Operation, e.Category, e.Name, strings.Join(locs, " and "))
}
func (e *DuplicateParameterError) Kind() Kind            { return KindDuplicateParameter }
func (e *DuplicateParameterError) OperationName() string { return e.Operation }
func (e *DuplicateParameterError) Loc() Location {
	if len(e.Locations) == 0 {
		return Location{}
	}
	return e.Locations[0]
}

// DuplicateTypeError reports a type name defined by more than one file.
// The first definition stays in the type table.
type DuplicateTypeError struct {
	Name   string
	First  Location
	Second Location
}

func (e *DuplicateTypeError) Error() string {
	return fmt.Sprintf("%s: type %q already defined at %s", e.Second, e.Name, e.First)
}
func (e *DuplicateTypeError) Kind() Kind            { return KindDuplicateType }
func (e *DuplicateTypeError) OperationName() string { return "" }
func (e *DuplicateTypeError) Loc() Location         { return e.Second }

// DuplicateOperationError reports two files declaring the same operation.
type DuplicateOperationError struct {
	Name   string
	First  Location
	Second Location
}

func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("%s: operation %q already declared at %s", e.Second, e.Name, e.First)
}
func (e *DuplicateOperationError) Kind() Kind            { return KindDuplicateOperation }
func (e *DuplicateOperationError) OperationName() string { return e.Name }
func (e *DuplicateOperationError) Loc() Location         { return e.Second }

// MissingMetadataError reports a required documentation tag that is absent.
type MissingMetadataError struct {
	Operation string
	Tag       string
	At        Location
}

func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("%s: operation %q is missing required tag @%s", e.At, e.Operation, e.Tag)
}
func (e *MissingMetadataError) Kind() Kind            { return KindMissingMetadata }
func (e *MissingMetadataError) OperationName() string { return e.Operation }
func (e *MissingMetadataError) Loc() Location         { return e.At }

// InvalidDefaultValueError reports a default whose shape does not fit the
// declared type of its parameter.
type InvalidDefaultValueError struct {
	Operation string
	Parameter string
	Type      string
	Value     string
	Reason    string
	At        Location
}

func (e *InvalidDefaultValueError) Error() string {
	return fmt.Sprintf("%s: operation %q parameter %q: default %q is not a valid %s: %s", e.At, e.Operation, e.Parameter, e.Value, e.Type, e.Reason)
}
func (e *InvalidDefaultValueError) Kind() Kind            { return KindInvalidDefault }
func (e *InvalidDefaultValueError) OperationName() string { return e.Operation }
func (e *InvalidDefaultValueError) Loc() Location         { return e.At }

// UnknownEnumValueError reports a value outside a closed vocabulary, such as
// an availability flavor or stability.
type UnknownEnumValueError struct {
	Operation string
	Field     string
	Value     string
	Allowed   []string
	At        Location
}

func (e *UnknownEnumValueError) Error() string {
	return fmt.Sprintf("%s: operation %q: unknown %s %q (allowed: %s)", e.At, e.Operation, e.Field, e.Value, strings.Join(e.Allowed, ", "))
}
func (e *UnknownEnumValueError) Kind() Kind            { return KindUnknownEnumValue }
func (e *UnknownEnumValueError) OperationName() string { return e.Operation }
func (e *UnknownEnumValueError) Loc() Location         { return e.At }

// DuplicateAvailabilityError reports two availability records for the same
// flavor on one operation or parameter.
type DuplicateAvailabilityError struct {
	Operation string
	Flavor    string
	At        Location
}

func (e *DuplicateAvailabilityError) Error() string {
	return fmt.Sprintf("%s: operation %q: more than one availability record for flavor %q", e.At, e.Operation, e.Flavor)
}
func (e *DuplicateAvailabilityError) Kind() Kind            { return KindDuplicateAvailability }
func (e *DuplicateAvailabilityError) OperationName() string { return e.Operation }
func (e *DuplicateAvailabilityError) Loc() Location         { return e.At }

// Warning is a finding that does not block emission.
type Warning struct {
	Operation string
	Message   string
	At        Location
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: operation %q: %s", w.At, w.Operation, w.Message)
}

// KindOf returns the kind of err, or "" when err is not a Violation.
func KindOf(err error) Kind {
	var v Violation
	if errors.As(err, &v) {
		return v.Kind()
	}
	return ""
}

// Sort orders errors by operation, file, line, kind and message so that
// reports do not depend on the order workers finished in.
func Sort(errs []error) {
	sort.SliceStable(errs, func(i, j int) bool {
		return less(keyOf(errs[i]), keyOf(errs[j]))
	})
}

// SortWarnings orders warnings the same way Sort orders errors.
func SortWarnings(ws []Warning) {
	sort.SliceStable(ws, func(i, j int) bool {
		a := sortKey{op: ws[i].Operation, file: ws[i].At.File, line: ws[i].At.Line, msg: ws[i].Message}
		b := sortKey{op: ws[j].Operation, file: ws[j].At.File, line: ws[j].At.Line, msg: ws[j].Message}
		return less(a, b)
	})
}

type sortKey struct {
	op   string
	file string
	line int
	kind Kind
	msg  string
}

func keyOf(err error) sortKey {
	var v Violation
	if errors.As(err, &v) {
		loc := v.Loc()
		return sortKey{op: v.OperationName(), file: loc.File, line: loc.Line, kind: v.Kind(), msg: err.Error()}
	}
	return sortKey{msg: err.Error()}
}

func less(a, b sortKey) bool {
	if a.op != b.op {
		return a.op < b.op
	}
	if a.file != b.file {
		return a.file < b.file
	}
	if a.line != b.line {
		return a.line < b.line
	}
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	return a.msg < b.msg
}
