package corpus

import (
	"gopkg.in/yaml.v3"

	"github.com/mark3labs/apispecc/internal/ir"
)

// Corpus is the set of declaration files loaded from one root.
type Corpus struct {
	Root  string
	Files []*File
	// Errors holds per-file load failures. Files that failed are not in Files.
	Errors []error
}

// File is one declaration file. It may declare an operation, shared types,
// or both.
type File struct {
	Path      string        `yaml:"-"` // slash separated, relative to Root
	Operation *RawOperation `yaml:"operation"`
	Types     []*RawType    `yaml:"types"`
}

// Operations returns the files that declare an operation, in corpus order.
func (c *Corpus) Operations() []*File {
	var out []*File
	for _, f := range c.Files {
		if f.Operation != nil {
			out = append(out, f)
		}
	}
	return out
}

type RawOperation struct {
	Name            string      `yaml:"name"`
	Doc             string      `yaml:"doc"`
	URLs            []RawURL    `yaml:"urls"`
	PathParts       []*RawParam `yaml:"path_parts"`
	QueryParameters []*RawParam `yaml:"query_parameters"`
	Body            []*RawParam `yaml:"body"`
	HasBody         bool        `yaml:"-"`
	Response        string      `yaml:"response"`

	ResponseExpr *ir.TypeExpr `yaml:"-"`
	Line         int          `yaml:"-"`
}

func (o *RawOperation) UnmarshalYAML(value *yaml.Node) error {
	type plain RawOperation
	if err := value.Decode((*plain)(o)); err != nil {
		return err
	}
	o.Line = value.Line
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "body" {
			o.HasBody = true
		}
	}
	return nil
}

type RawURL struct {
	Path    string   `yaml:"path"`
	Methods []string `yaml:"methods"`
}

// RawParam is a parameter, body field or object property.
type RawParam struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Optional bool   `yaml:"optional"`
	Default  any    `yaml:"default"`
	Doc      string `yaml:"doc"`

	Expr ir.TypeExpr `yaml:"-"`
	Line int         `yaml:"-"`
}

func (p *RawParam) UnmarshalYAML(value *yaml.Node) error {
	type plain RawParam
	if err := value.Decode((*plain)(p)); err != nil {
		return err
	}
	p.Line = value.Line
	return nil
}

type RawType struct {
	Name       string      `yaml:"name"`
	Kind       string      `yaml:"kind"`
	Doc        string      `yaml:"doc"`
	Type       string      `yaml:"type"`
	Members    []string    `yaml:"members"`
	Properties []*RawParam `yaml:"properties"`
	Of         []string    `yaml:"of"`

	Target   *ir.TypeExpr  `yaml:"-"`
	Variants []ir.TypeExpr `yaml:"-"`
	Line     int           `yaml:"-"`
}

func (t *RawType) UnmarshalYAML(value *yaml.Node) error {
	type plain RawType
	if err := value.Decode((*plain)(t)); err != nil {
		return err
	}
	t.Line = value.Line
	return nil
}
