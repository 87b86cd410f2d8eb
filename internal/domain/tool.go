package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParamType enumerates the primitive types a tool parameter may declare.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
	ParamArray   ParamType = "array"
)

// Parameter describes a single named input of a tool.
// An enum parameter is declared as ParamString with a non-empty Enum list.
type Parameter struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	// Default is applied by the executor when an optional parameter is absent.
	// Nil means no default.
	Default any
	// Enum restricts a string parameter to a fixed set of values.
	Enum []string
	// Items is the element type for ParamArray parameters.
	Items ParamType
}

// InputSchema is an ordered list of parameter specifications.
// Order is insertion order; it carries no semantics but keeps wire
// serialization deterministic.
type InputSchema struct {
	Parameters []Parameter
}

// Get returns the parameter with the given name, if declared.
func (s InputSchema) Get(name string) (Parameter, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Required returns the names of all required parameters, in declaration order.
func (s InputSchema) Required() []string {
	var req []string
	for _, p := range s.Parameters {
		if p.Required {
			req = append(req, p.Name)
		}
	}
	return req
}

// ToolDescriptor describes one callable tool: its unique name, a description
// for the deciding caller (typically an LLM), and the input schema.
// Descriptors are immutable after registration.
type ToolDescriptor struct {
	Name        string
	Description string
	InputSchema InputSchema
}

// MarshalJSON emits the MCP wire form:
//
//	{"name": ..., "description": ..., "input_schema":
//	  {"type": "object", "properties": {...}, "required": [...]}}
//
// Properties are written in declaration order.
func (t ToolDescriptor) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeJSONField(&buf, "name", t.Name)
	buf.WriteByte(',')
	writeJSONField(&buf, "description", t.Description)
	buf.WriteString(`,"input_schema":`)
	schema, err := t.InputSchema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	buf.Write(schema)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON serializes the schema as a JSON Schema object with properties
// in declaration order.
func (s InputSchema) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"type":"object","properties":{`)
	for i, p := range s.Parameters {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		prop, err := marshalProperty(p)
		if err != nil {
			return nil, err
		}
		buf.Write(prop)
	}
	buf.WriteByte('}')
	if req := s.Required(); len(req) > 0 {
		buf.WriteString(`,"required":`)
		reqJSON, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}
		buf.Write(reqJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// property is the wire form of a single schema property.
type property struct {
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Enum        []string       `json:"enum,omitempty"`
	Default     any            `json:"default,omitempty"`
	Items       *propertyItems `json:"items,omitempty"`
}

type propertyItems struct {
	Type string `json:"type"`
}

func marshalProperty(p Parameter) ([]byte, error) {
	prop := property{
		Type:        string(p.Type),
		Description: p.Description,
		Enum:        p.Enum,
		Default:     p.Default,
	}
	if p.Type == ParamArray {
		itemType := p.Items
		if itemType == "" {
			itemType = ParamString
		}
		prop.Items = &propertyItems{Type: string(itemType)}
	}
	return json.Marshal(prop)
}

// UnmarshalJSON decodes the wire form back into a descriptor, preserving the
// property order of the incoming document so a client reconstructs exactly
// what the server advertised.
func (t *ToolDescriptor) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		InputSchema json.RawMessage `json:"input_schema"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Name = raw.Name
	t.Description = raw.Description
	if len(raw.InputSchema) == 0 {
		t.InputSchema = InputSchema{}
		return nil
	}
	return t.InputSchema.UnmarshalJSON(raw.InputSchema)
}

// UnmarshalJSON decodes a JSON Schema object. A plain map would lose the
// property order, so the properties object is walked with a token decoder.
func (s *InputSchema) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type       string          `json:"type"`
		Properties json.RawMessage `json:"properties"`
		Required   []string        `json:"required"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	required := make(map[string]bool, len(raw.Required))
	for _, name := range raw.Required {
		required[name] = true
	}

	s.Parameters = nil
	if len(raw.Properties) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw.Properties))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("input_schema properties: expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("input_schema properties: expected key, got %v", keyTok)
		}
		var prop property
		if err := dec.Decode(&prop); err != nil {
			return fmt.Errorf("input_schema property %q: %w", name, err)
		}
		param := Parameter{
			Name:        name,
			Type:        ParamType(prop.Type),
			Description: prop.Description,
			Required:    required[name],
			Default:     prop.Default,
			Enum:        prop.Enum,
		}
		if prop.Items != nil {
			param.Items = ParamType(prop.Items.Type)
		}
		s.Parameters = append(s.Parameters, param)
	}
	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

func writeJSONField(buf *bytes.Buffer, key, value string) {
	k, _ := json.Marshal(key)
	v, _ := json.Marshal(value)
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
}
