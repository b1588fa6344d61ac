package annotate

import (
	"fmt"
	"strings"

	"github.com/mark3labs/apispecc/internal/diag"
	"github.com/mark3labs/apispecc/internal/ir"
)

var flavorAliases = map[string]ir.Flavor{
	"stack":         ir.SelfManaged,
	"self-managed":  ir.SelfManaged,
	"serverless":    ir.ManagedCloud,
	"managed-cloud": ir.ManagedCloud,
}

// NormalizeFlavor maps corpus flavor spellings onto ir flavors. Unknown
// spellings are returned unchanged so validation can reject them.
func NormalizeFlavor(s string) ir.Flavor {
	if f, ok := flavorAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f
	}
	return ir.Flavor(strings.TrimSpace(s))
}

// Operation enriches op from its documentation text: summary and
// description, family name, availability, privileges, doc anchors,
// stability, visibility and the open metadata bag. Parameters are
// enriched too. It returns a MissingMetadataError for each required tag
// that is absent.
//
// op must not yet be shared with other goroutines.
func Operation(op *ir.Operation) []error {
	doc := Parse(op.Doc)
	op.Summary = doc.Summary
	op.Description = doc.Description

	op.Metadata = ir.Metadata{}
	for _, t := range doc.Tags {
		op.Metadata.Add(t.Marker, t.Raw)
	}

	var errs []error
	if t, ok := doc.First(TagRestSpecName); ok && t.Arg(0) != "" {
		op.Family = t.Arg(0)
	} else {
		errs = append(errs, &diag.MissingMetadataError{Operation: op.Name, Tag: TagRestSpecName, At: op.Loc()})
	}

	op.Availability = availability(doc, op.Loc())
	if len(op.Availability) == 0 {
		errs = append(errs, &diag.MissingMetadataError{Operation: op.Name, Tag: TagAvailability, At: op.Loc()})
	}

	op.Privileges = nil
	for _, t := range doc.All(TagClusterPrivileges) {
		op.Privileges = append(op.Privileges, privileges(ir.ClusterPrivilege, t.Raw)...)
	}
	for _, t := range doc.All(TagIndexPrivileges) {
		op.Privileges = append(op.Privileges, privileges(ir.IndexPrivilege, t.Raw)...)
	}

	op.DocID = firstArg(doc, TagDocID)
	op.DocURL = firstArg(doc, TagDocURL)
	op.ExtDocID = firstArg(doc, TagExtDocID)

	op.Stability = ir.Stability(firstArg(doc, TagStability))
	op.Visibility = firstArg(doc, TagVisibility)
	if rec, ok := primary(op.Availability); ok {
		if op.Stability == "" {
			op.Stability = rec.Stability
		}
		if op.Visibility == "" {
			op.Visibility = rec.Visibility
		}
	}

	for i := range op.PathParams {
		Parameter(&op.PathParams[i])
	}
	for i := range op.QueryParams {
		Parameter(&op.QueryParams[i])
	}
	for i := range op.Body {
		Parameter(&op.Body[i])
	}
	return errs
}

// Parameter fills description, availability, deprecation and since from
// the parameter's documentation.
func Parameter(p *ir.Parameter) {
	doc := Parse(p.Doc)
	if p.Description == "" {
		p.Description = doc.Description
	}
	p.Availability = availability(doc, p.At)
	if t, ok := doc.First(TagDeprecated); ok {
		dep := &ir.Deprecation{Version: t.Arg(0)}
		if dep.Version != "" {
			dep.Description = strings.TrimSpace(strings.TrimPrefix(t.Raw, dep.Version))
		}
		p.Deprecated = dep
	}
	if s := firstArg(doc, TagSince); s != "" {
		p.Since = s
	}
}

func availability(doc Doc, at diag.Location) []ir.AvailabilityRecord {
	var out []ir.AvailabilityRecord
	for _, t := range doc.All(TagAvailability) {
		flavor := t.Arg(0)
		if f := t.Field("flavor"); f != "" {
			flavor = f
		}
		rec := ir.AvailabilityRecord{
			Flavor:     NormalizeFlavor(flavor),
			Since:      t.Field("since"),
			Stability:  ir.Stability(t.Field("stability")),
			Visibility: t.Field("visibility"),
			At:         at,
		}
		if rec.Stability == "" {
			rec.Stability = ir.Stable
		}
		if rec.Visibility == "" {
			rec.Visibility = "public"
		}
		rec.At.Path = joinPath(at.Path, fmt.Sprintf("@availability line %d", t.Line))
		out = append(out, rec)
	}
	return out
}

// primary returns the self-managed record when there is one, else the
// first record.
func primary(recs []ir.AvailabilityRecord) (ir.AvailabilityRecord, bool) {
	for _, r := range recs {
		if r.Flavor == ir.SelfManaged {
			return r, true
		}
	}
	if len(recs) > 0 {
		return recs[0], true
	}
	return ir.AvailabilityRecord{}, false
}

func privileges(kind ir.PrivilegeKind, raw string) []ir.Privilege {
	var out []ir.Privilege
	for _, name := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' }) {
		out = append(out, ir.Privilege{Kind: kind, Name: name})
	}
	return out
}

func firstArg(doc Doc, marker string) string {
	if t, ok := doc.First(marker); ok {
		return t.Arg(0)
	}
	return ""
}

func joinPath(base, elem string) string {
	if base == "" {
		return elem
	}
	return base + " " + elem
}
