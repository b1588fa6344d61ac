package oasemitter

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/apispecc/internal/ir"
	"github.com/mark3labs/apispecc/internal/resolve"
)

const componentPrefix = "#/components/schemas/"

func componentRef(name string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Ref: componentPrefix + name}
}

// scalarSchema maps a builtin scalar name onto an inline schema.
func scalarSchema(name string) *openapi3.Schema {
	switch name {
	case "string":
		return openapi3.NewStringSchema()
	case "boolean":
		return openapi3.NewBoolSchema()
	case "integer", "short", "byte", "uint":
		return openapi3.NewIntegerSchema()
	case "long", "ulong":
		return openapi3.NewInt64Schema()
	case "float":
		return openapi3.NewFloat64Schema().WithFormat("float")
	case "double":
		return openapi3.NewFloat64Schema().WithFormat("double")
	case "number":
		return openapi3.NewFloat64Schema()
	case "null":
		s := openapi3.NewSchema()
		s.Nullable = true
		return s
	}
	return openapi3.NewSchema()
}

// schemaRef renders e. Corpus types become component references so
// recursive object graphs stay finite.
func schemaRef(e ir.TypeExpr, types *resolve.Table) *openapi3.SchemaRef {
	switch e.Kind {
	case ir.ExprNamed:
		if def, ok := types.Lookup(e.Name); ok {
			if def.Builtin {
				return openapi3.NewSchemaRef("", scalarSchema(def.Name))
			}
			return componentRef(def.Name)
		}
		return openapi3.NewSchemaRef("", openapi3.NewSchema())
	case ir.ExprArray:
		s := openapi3.NewArraySchema()
		if e.Elem != nil {
			s.Items = schemaRef(*e.Elem, types)
		}
		return openapi3.NewSchemaRef("", s)
	case ir.ExprUnion:
		s := openapi3.NewSchema()
		for _, m := range e.Members {
			s.OneOf = append(s.OneOf, schemaRef(m, types))
		}
		return openapi3.NewSchemaRef("", s)
	case ir.ExprDictionary:
		s := openapi3.NewObjectSchema()
		if e.Value != nil {
			s.AdditionalProperties = openapi3.AdditionalProperties{Schema: schemaRef(*e.Value, types)}
		}
		return openapi3.NewSchemaRef("", s)
	}
	return openapi3.NewSchemaRef("", openapi3.NewSchema())
}

// defSchema renders a named definition for components.schemas.
func defSchema(def *ir.TypeDef, types *resolve.Table) *openapi3.SchemaRef {
	switch def.Kind {
	case ir.KindAlias:
		if def.Target == nil {
			break
		}
		ref := schemaRef(*def.Target, types)
		if ref.Ref != "" {
			// a $ref ignores sibling keywords, so wrap it to keep the description
			if def.Description == "" {
				return ref
			}
			s := openapi3.NewSchema()
			s.AllOf = openapi3.SchemaRefs{ref}
			s.Description = def.Description
			return openapi3.NewSchemaRef("", s)
		}
		ref.Value.Description = def.Description
		return ref
	case ir.KindEnum:
		s := openapi3.NewStringSchema()
		for _, m := range def.Members {
			s.Enum = append(s.Enum, m)
		}
		s.Description = def.Description
		return openapi3.NewSchemaRef("", s)
	case ir.KindObject:
		s := openapi3.NewObjectSchema()
		s.Description = def.Description
		s.Properties = openapi3.Schemas{}
		for _, p := range def.Properties {
			s.Properties[p.Name] = describe(schemaRef(p.Type, types), p.Description)
			if p.Required {
				s.Required = append(s.Required, p.Name)
			}
		}
		return openapi3.NewSchemaRef("", s)
	case ir.KindUnion:
		s := openapi3.NewSchema()
		s.Description = def.Description
		for _, v := range def.Variants {
			s.OneOf = append(s.OneOf, schemaRef(v, types))
		}
		return openapi3.NewSchemaRef("", s)
	case ir.KindScalar:
		return openapi3.NewSchemaRef("", scalarSchema(def.Name))
	}
	s := openapi3.NewSchema()
	s.Description = def.Description
	return openapi3.NewSchemaRef("", s)
}

// describe attaches a description to inline schemas. References are
// returned as is.
func describe(ref *openapi3.SchemaRef, desc string) *openapi3.SchemaRef {
	if desc != "" && ref.Ref == "" && ref.Value != nil {
		ref.Value.Description = desc
	}
	return ref
}
