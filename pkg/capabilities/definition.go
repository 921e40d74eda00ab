package capabilities

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Handler executes a capability with already parsed arguments.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Definition is a named side-effecting action that agents may invoke.
type Definition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
	Handler     Handler            `json:"-"`
}

// Spec is the part of a Definition that is shown to the reasoning service.
type Spec struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

func (d Definition) Spec() Spec {
	return Spec{Name: d.Name, Description: d.Description, Parameters: d.Parameters}
}

// New builds a Definition whose arguments are decoded into T.
//
// The parameter schema is reflected from T once, using its json tags. Fields
// without omitempty are required.
func New[T any](name, description string, fn func(ctx context.Context, in T) (any, error)) Definition {
	var zero T
	return Definition{
		Name:        name,
		Description: description,
		Parameters:  SchemaFor(zero),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			var in T
			if err := DecodeArgs(args, &in); err != nil {
				return nil, NewCapabilityError(name, ErrorTypeValidation, "%s", err.Error())
			}
			return fn(ctx, in)
		},
	}
}

// SchemaFor reflects a JSON schema from v, expanding definitions inline.
func SchemaFor(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := reflector.Reflect(v)
	schema.Version = ""
	if schema.Type == "" && schema.Ref == "" {
		schema.Type = "object"
	}
	return schema
}

// DecodeArgs decodes a generic argument map into out using json tag names.
func DecodeArgs(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(args)
}

// ParseArguments parses raw JSON arguments into a map. Empty input yields an empty map.
func ParseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, errors.Wrap(err, "arguments are not a JSON object")
	}
	return args, nil
}

// checkRequired reports the first required property missing from args.
func checkRequired(schema *jsonschema.Schema, args map[string]any) (string, bool) {
	if schema == nil {
		return "", true
	}
	for _, name := range schema.Required {
		if _, ok := args[name]; !ok {
			return name, false
		}
	}
	return "", true
}
