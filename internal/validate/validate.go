// Package validate checks an enriched operation for internal consistency.
//
// Every check runs regardless of what earlier checks found, so a single
// call returns the complete violation list for the operation.
package validate

import (
	"fmt"
	"strings"

	"github.com/mark3labs/apispecc/internal/annotate"
	"github.com/mark3labs/apispecc/internal/diag"
	"github.com/mark3labs/apispecc/internal/ir"
	"github.com/mark3labs/apispecc/internal/resolve"
)

// Result is the outcome of validating one operation. The operation is
// valid when Violations is empty; warnings never block emission.
type Result struct {
	Violations []error
	Warnings   []diag.Warning
}

// OK reports whether no violation was found.
func (r Result) OK() bool { return len(r.Violations) == 0 }

type check func(op *ir.Operation, types *resolve.Table, r *Result)

var checks = []check{
	duplicateParameters,
	defaults,
	references,
	availability,
	bodyOnBodilessMethods,
	pathPartsInURLs,
}

// Operation runs every check against op.
func Operation(op *ir.Operation, types *resolve.Table) Result {
	var r Result
	for _, c := range checks {
		c(op, types, &r)
	}
	return r
}

func duplicateParameters(op *ir.Operation, _ *resolve.Table, r *Result) {
	groups := []struct {
		cat    ir.Category
		params []ir.Parameter
	}{
		{ir.Path, op.PathParams},
		{ir.Query, op.QueryParams},
		{ir.Body, op.Body},
	}
	for _, g := range groups {
		var order []string
		seen := map[string][]diag.Location{}
		for _, p := range g.params {
			if _, ok := seen[p.Name]; !ok {
				order = append(order, p.Name)
			}
			seen[p.Name] = append(seen[p.Name], p.At)
		}
		for _, name := range order {
			if locs := seen[name]; len(locs) > 1 {
				r.Violations = append(r.Violations, &diag.DuplicateParameterError{
					Operation: op.Name,
					Name:      name,
					Category:  string(g.cat),
					Locations: locs,
				})
			}
		}
	}
}

func defaults(op *ir.Operation, types *resolve.Table, r *Result) {
	for _, p := range op.Params() {
		if p.Default == nil || types == nil {
			continue
		}
		if _, err := types.Coerce(p.Default.Value, p.Type); err != nil {
			r.Violations = append(r.Violations, &diag.InvalidDefaultValueError{
				Operation: op.Name,
				Parameter: p.Name,
				Type:      p.Type.String(),
				Value:     p.Default.Raw,
				Reason:    err.Error(),
				At:        p.At,
			})
		}
	}
}

func references(op *ir.Operation, types *resolve.Table, r *Result) {
	if types == nil {
		return
	}
	r.Violations = append(r.Violations, types.UnresolvedFor(op.File)...)
}

func availability(op *ir.Operation, _ *resolve.Table, r *Result) {
	checkRecords(op.Name, op.Availability, r)
	for _, p := range op.Params() {
		checkRecords(op.Name, p.Availability, r)
	}
	if op.Metadata.Has(annotate.TagStability) && !knownStability(op.Stability) {
		r.Violations = append(r.Violations, &diag.UnknownEnumValueError{
			Operation: op.Name,
			Field:     "stability",
			Value:     string(op.Stability),
			Allowed:   stabilityNames(),
			At:        op.Loc(),
		})
	}
}

func checkRecords(opName string, recs []ir.AvailabilityRecord, r *Result) {
	seen := map[ir.Flavor]bool{}
	for _, rec := range recs {
		if !knownFlavor(rec.Flavor) {
			r.Violations = append(r.Violations, &diag.UnknownEnumValueError{
				Operation: opName,
				Field:     "availability flavor",
				Value:     string(rec.Flavor),
				Allowed:   flavorNames(),
				At:        rec.At,
			})
		} else if seen[rec.Flavor] {
			r.Violations = append(r.Violations, &diag.DuplicateAvailabilityError{
				Operation: opName,
				Flavor:    string(rec.Flavor),
				At:        rec.At,
			})
		}
		seen[rec.Flavor] = true
		if !knownStability(rec.Stability) {
			r.Violations = append(r.Violations, &diag.UnknownEnumValueError{
				Operation: opName,
				Field:     "availability stability",
				Value:     string(rec.Stability),
				Allowed:   stabilityNames(),
				At:        rec.At,
			})
		}
	}
}

var bodiless = map[string]bool{"GET": true, "HEAD": true, "DELETE": true}

func bodyOnBodilessMethods(op *ir.Operation, _ *resolve.Table, r *Result) {
	methods := op.Methods()
	if len(methods) == 0 || !op.HasRequiredBody() {
		return
	}
	for _, m := range methods {
		if !bodiless[m] {
			return
		}
	}
	r.Warnings = append(r.Warnings, diag.Warning{
		Operation: op.Name,
		Message:   fmt.Sprintf("body has required fields but every method (%s) is sent without a body", strings.Join(methods, ", ")),
		At:        op.Loc(),
	})
}

func pathPartsInURLs(op *ir.Operation, _ *resolve.Table, r *Result) {
	if len(op.URLs) == 0 {
		return
	}
	for _, p := range op.PathParams {
		placeholder := "{" + p.Name + "}"
		found := false
		for _, u := range op.URLs {
			if strings.Contains(u.Path, placeholder) {
				found = true
				break
			}
		}
		if !found {
			r.Warnings = append(r.Warnings, diag.Warning{
				Operation: op.Name,
				Message:   fmt.Sprintf("path part %q does not appear in any url", p.Name),
				At:        p.At,
			})
		}
	}
}

func knownFlavor(f ir.Flavor) bool {
	for _, k := range ir.Flavors {
		if f == k {
			return true
		}
	}
	return false
}

func knownStability(s ir.Stability) bool {
	for _, k := range ir.Stabilities {
		if s == k {
			return true
		}
	}
	return false
}

func flavorNames() []string {
	out := make([]string, 0, len(ir.Flavors))
	for _, f := range ir.Flavors {
		out = append(out, string(f))
	}
	return out
}

func stabilityNames() []string {
	out := make([]string, 0, len(ir.Stabilities))
	for _, s := range ir.Stabilities {
		out = append(out, string(s))
	}
	return out
}
