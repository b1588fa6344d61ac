// Package annotate parses the structured tags embedded in corpus
// documentation text and turns them into operation metadata.
//
// A tag is a documentation line of the form:
//
//	@availability stack since=8.15.0 stability=stable
//	@cluster_privileges monitor, manage
//	@server_default 30s
//
// The marker is the word after '@'. The remaining tokens are either
// key=value pairs or positional arguments. Markers this package does not
// know are kept in the operation's metadata bag and otherwise ignored.
package annotate

import (
	"sort"
	"strings"

	"github.com/mark3labs/apispecc/internal/corpus"
)

// Recognized tag markers.
const (
	TagRestSpecName      = "rest_spec_name"
	TagAvailability      = "availability"
	TagDocID             = "doc_id"
	TagDocURL            = "doc_url"
	TagExtDocID          = "ext_doc_id"
	TagClusterPrivileges = "cluster_privileges"
	TagIndexPrivileges   = "index_privileges"
	TagServerDefault     = "server_default"
	TagDeprecated        = "deprecated"
	TagSince             = "since"
	TagStability         = "stability"
	TagVisibility        = "visibility"
	TagDocTag            = "doc_tag"
	TagCategory          = "category"
)

var known = map[string]bool{
	TagRestSpecName:      true,
	TagAvailability:      true,
	TagDocID:             true,
	TagDocURL:            true,
	TagExtDocID:          true,
	TagClusterPrivileges: true,
	TagIndexPrivileges:   true,
	TagServerDefault:     true,
	TagDeprecated:        true,
	TagSince:             true,
	TagStability:         true,
	TagVisibility:        true,
	TagDocTag:            true,
	TagCategory:          true,
}

// Known reports whether marker is part of the recognized vocabulary.
func Known(marker string) bool { return known[marker] }

// Tag is one parsed tag line.
type Tag struct {
	Marker     string
	Raw        string // everything after the marker, trimmed
	Positional []string
	Fields     map[string]string
	Line       int // 1-based line within the documentation text
}

// Field returns the value of key, or "" when the tag does not set it.
func (t Tag) Field(key string) string { return t.Fields[key] }

// Arg returns the i-th positional argument or "".
func (t Tag) Arg(i int) string {
	if i < len(t.Positional) {
		return t.Positional[i]
	}
	return ""
}

// Doc is documentation text split into prose and tags.
type Doc struct {
	// Summary is the first line of the description.
	Summary string
	// Description is the prose with tag lines removed.
	Description string
	Tags        []Tag
}

// All returns every tag with the given marker, in order.
func (d Doc) All(marker string) []Tag {
	var out []Tag
	for _, t := range d.Tags {
		if t.Marker == marker {
			out = append(out, t)
		}
	}
	return out
}

// First returns the first tag with the given marker.
func (d Doc) First(marker string) (Tag, bool) {
	for _, t := range d.Tags {
		if t.Marker == marker {
			return t, true
		}
	}
	return Tag{}, false
}

// Unknown returns the distinct markers outside the recognized vocabulary,
// sorted.
func (d Doc) Unknown() []string {
	set := map[string]struct{}{}
	for _, t := range d.Tags {
		if !known[t.Marker] {
			set[t.Marker] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Parse splits documentation text into description and tags. Lines inside
// fenced code blocks are never treated as tags.
func Parse(text string) Doc {
	var (
		doc   Doc
		prose []string
		fence bool
	)
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			fence = !fence
			prose = append(prose, strings.TrimRight(line, " \t"))
			continue
		}
		if !fence {
			if tag, ok := parseTag(trimmed); ok {
				tag.Line = i + 1
				doc.Tags = append(doc.Tags, tag)
				continue
			}
		}
		prose = append(prose, strings.TrimRight(line, " \t"))
	}

	doc.Description = strings.TrimSpace(strings.Join(prose, "\n"))
	if doc.Description != "" {
		doc.Summary = strings.TrimSpace(strings.SplitN(doc.Description, "\n", 2)[0])
	}
	return doc
}

func parseTag(line string) (Tag, bool) {
	if len(line) < 2 || line[0] != '@' {
		return Tag{}, false
	}
	end := 1
	for end < len(line) && isMarkerByte(line[end]) {
		end++
	}
	if end == 1 || (end < len(line) && line[end] != ' ' && line[end] != '\t') {
		return Tag{}, false
	}
	t := Tag{
		Marker: line[1:end],
		Raw:    strings.TrimSpace(line[end:]),
	}
	for _, tok := range strings.Fields(t.Raw) {
		if k, v, ok := strings.Cut(tok, "="); ok && k != "" {
			if t.Fields == nil {
				t.Fields = map[string]string{}
			}
			t.Fields[k] = strings.Trim(v, `"`)
			continue
		}
		t.Positional = append(t.Positional, tok)
	}
	return t, true
}

func isMarkerByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// OperationName returns the identity of the operation declared by f: the
// explicit name, else the @rest_spec_name tag, else the file path without
// its extension with '/' replaced by '.'.
func OperationName(f *corpus.File) string {
	if f == nil || f.Operation == nil {
		return ""
	}
	if n := strings.TrimSpace(f.Operation.Name); n != "" {
		return n
	}
	if t, ok := Parse(f.Operation.Doc).First(TagRestSpecName); ok && t.Arg(0) != "" {
		return t.Arg(0)
	}
	p := f.Path
	if i := strings.LastIndex(p, "."); i > strings.LastIndex(p, "/") {
		p = p[:i]
	}
	return strings.ReplaceAll(p, "/", ".")
}
