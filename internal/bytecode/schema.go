// This file derives a JSON Schema (Draft 2020-12) from a Semantic Type and
// compiles/validates host-supplied values against it before they reach the
// VM (spec §6 "Inputs": "a typed tree of values matching input_type"),
// grounded on the teacher's types.ParamSchema.ToJSONSchema /
// Validator.compileSchema pair.
package bytecode

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vikkkko/zinc/internal/types"
)

// maxSafeIntegerBits is the widest integer a JSON number can represent
// without silent precision loss (2^53, the float64 mantissa). Zinc integers
// run up to 248 bits and Field values are larger still, so anything wider
// than this is represented as a decimal-digit string in the schema instead
// of a JSON number — a deliberate simplification over a true big-integer
// JSON extension (see DESIGN.md).
const maxSafeIntegerBits = 53

// ToJSONSchema derives the JSON Schema a host-supplied value of Semantic
// Type t must satisfy.
func ToJSONSchema(t types.Type) map[string]any {
	switch t.Kind {
	case types.Unit:
		return map[string]any{"type": "null"}
	case types.Bool:
		return map[string]any{"type": "boolean"}
	case types.UInt, types.SInt:
		if t.Bitlen <= maxSafeIntegerBits {
			lo, hi := types.IntBounds(t.Kind == types.SInt, t.Bitlen)
			return map[string]any{
				"type":    "integer",
				"minimum": lo.Int64(),
				"maximum": hi.Int64(),
			}
		}
		pattern := `^[0-9]+$`
		if t.Kind == types.SInt {
			pattern = `^-?[0-9]+$`
		}
		return map[string]any{"type": "string", "pattern": pattern}
	case types.Field:
		return map[string]any{"type": "string", "pattern": `^[0-9]+$`}
	case types.String:
		return map[string]any{"type": "string"}
	case types.Range, types.RangeInclusive:
		elem := ToJSONSchema(*t.Elem)
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"start": elem,
				"end":   elem,
			},
			"required": []any{"start", "end"},
		}
	case types.Array:
		return map[string]any{
			"type":     "array",
			"items":    ToJSONSchema(*t.Elem),
			"minItems": t.Len,
			"maxItems": t.Len,
		}
	case types.Tuple:
		prefix := make([]any, len(t.Elems))
		for i, e := range t.Elems {
			prefix[i] = ToJSONSchema(e)
		}
		return map[string]any{
			"type":        "array",
			"prefixItems": prefix,
			"minItems":    len(prefix),
			"maxItems":    len(prefix),
			"items":       false,
		}
	case types.Struct, types.Contract:
		props := make(map[string]any, len(t.Fields))
		required := make([]any, 0, len(t.Fields))
		for _, f := range t.Fields {
			props[f.Name] = ToJSONSchema(*f.Type)
			required = append(required, f.Name)
		}
		return map[string]any{
			"type":                 "object",
			"properties":           props,
			"required":             required,
			"additionalProperties": false,
		}
	case types.Enum:
		names := make([]any, len(t.Values))
		for i, v := range t.Values {
			names[i] = v.Name
		}
		return map[string]any{"type": "string", "enum": names}
	default:
		return map[string]any{}
	}
}

// CompileSchema compiles a derived JSON Schema into a validator, the same
// NewCompiler/Draft2020/AddResource/Compile sequence the teacher's
// compileSchema performs, minus the caching and custom-format layers this
// package has no use for.
func CompileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshaling schema: %w", err)
	}
	const url = "schema://zinc-input.json"
	if err := compiler.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("bytecode: adding schema resource: %w", err)
	}
	return compiler.Compile(url)
}

// ValidateAgainstType derives t's schema, compiles it, and validates value
// (typically the result of json.Unmarshal into interface{}) against it.
func ValidateAgainstType(t types.Type, value any) error {
	schema, err := CompileSchema(ToJSONSchema(t))
	if err != nil {
		return err
	}
	return schema.Validate(value)
}
