package corpus

import (
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// fileSchema is the structural schema every declaration file must satisfy
// before it is decoded.
const fileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "operation": { "$ref": "#/definitions/operation" },
    "types": { "type": "array", "items": { "$ref": "#/definitions/type" } }
  },
  "definitions": {
    "param": {
      "type": "object",
      "required": ["name", "type"],
      "additionalProperties": false,
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "type": { "type": "string", "minLength": 1 },
        "optional": { "type": "boolean" },
        "default": {},
        "doc": { "type": "string" }
      }
    },
    "params": { "type": "array", "items": { "$ref": "#/definitions/param" } },
    "operation": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "name": { "type": "string" },
        "doc": { "type": "string" },
        "urls": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["path"],
            "additionalProperties": false,
            "properties": {
              "path": { "type": "string", "pattern": "^/" },
              "methods": { "type": "array", "items": { "type": "string" } }
            }
          }
        },
        "path_parts": { "$ref": "#/definitions/params" },
        "query_parameters": { "$ref": "#/definitions/params" },
        "body": { "$ref": "#/definitions/params" },
        "response": { "type": "string" }
      }
    },
    "type": {
      "type": "object",
      "required": ["name", "kind"],
      "additionalProperties": false,
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "kind": { "enum": ["alias", "enum", "object", "union"] },
        "doc": { "type": "string" },
        "type": { "type": "string" },
        "members": { "type": "array", "items": { "type": "string" } },
        "properties": { "$ref": "#/definitions/params" },
        "of": { "type": "array", "items": { "type": "string" }, "minItems": 1 }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func declarationSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(fileSchema))
	})
	return compiledSchema, schemaErr
}
