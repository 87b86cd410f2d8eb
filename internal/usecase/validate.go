package usecase

import (
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ticketbridge/ticketbridge/internal/domain"
)

// validationFailure is the internal result of a failed argument check,
// carrying the offending field for the envelope.
type validationFailure struct {
	Field   string
	Message string
}

// validateArguments checks raw wire arguments against the tool's schema and
// returns the map the handler will receive.
//
// Policy: unknown fields are dropped, not rejected. LLM callers routinely
// hallucinate extra arguments, and the original wire contract tolerated
// them; rejecting would fail otherwise-valid calls.
//
// Steps, in order:
//  1. keep only declared fields (null values count as absent)
//  2. every required field must be present
//  3. the compiled JSON Schema validates types and enum membership
//  4. integral float64s are narrowed to int64 for integer parameters
//  5. defaults fill in absent optional parameters
func validateArguments(tool *RegisteredTool, rawArgs map[string]any) (map[string]any, *validationFailure) {
	schema := tool.Descriptor.InputSchema

	args := make(map[string]any, len(rawArgs))
	for name, value := range rawArgs {
		if _, declared := schema.Get(name); !declared {
			continue
		}
		if value == nil {
			continue
		}
		args[name] = value
	}

	for _, name := range schema.Required() {
		if _, ok := args[name]; !ok {
			return nil, &validationFailure{
				Field:   name,
				Message: fmt.Sprintf("missing required argument %q", name),
			}
		}
	}

	if tool.Validator != nil {
		if err := tool.Validator.Validate(toJSONValue(args)); err != nil {
			return nil, describeSchemaError(err)
		}
	}

	for _, p := range schema.Parameters {
		value, present := args[p.Name]
		if present {
			if p.Type == domain.ParamInteger {
				if f, ok := value.(float64); ok {
					args[p.Name] = int64(f)
				}
			}
			continue
		}
		if p.Default != nil {
			args[p.Name] = p.Default
		}
	}

	return args, nil
}

// toJSONValue normalizes the argument map into the shape the jsonschema
// library expects (the result of a plain json.Unmarshal). Arguments arriving
// over the wire already have that shape; this keeps programmatic callers
// passing Go ints working too.
func toJSONValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSONValue(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}

// describeSchemaError extracts the most specific cause of a schema
// validation error and attributes it to a field.
func describeSchemaError(err error) *validationFailure {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &validationFailure{Message: err.Error()}
	}
	leaf := verr
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	if i := strings.IndexByte(field, '/'); i >= 0 {
		field = field[:i]
	}
	return &validationFailure{
		Field:   field,
		Message: leaf.Message,
	}
}

// asHandlerError reports whether err carries a domain.HandlerError.
func asHandlerError(err error, target **domain.HandlerError) bool {
	return errors.As(err, target)
}
