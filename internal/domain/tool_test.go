package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketbridge/ticketbridge/internal/domain"
)

func sampleDescriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "create_ticket",
		Description: "Create a new incident ticket",
		InputSchema: domain.InputSchema{Parameters: []domain.Parameter{
			{Name: "title", Type: domain.ParamString, Description: "Ticket title", Required: true},
			{Name: "description", Type: domain.ParamString, Description: "Details", Required: true},
			{Name: "priority", Type: domain.ParamString, Description: "Priority", Enum: []string{"low", "medium", "high", "critical"}, Default: "medium"},
			{Name: "tags", Type: domain.ParamArray, Description: "Tags", Items: domain.ParamString},
		}},
	}
}

func TestToolDescriptor_MarshalJSON_WireShape(t *testing.T) {
	data, err := json.Marshal(sampleDescriptor())
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))

	assert.Equal(t, "create_ticket", wire["name"])
	assert.Equal(t, "Create a new incident ticket", wire["description"])

	schema, ok := wire["input_schema"].(map[string]any)
	require.True(t, ok, "input_schema must be an object")
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []any{"title", "description"}, schema["required"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Len(t, props, 4)

	priority, ok := props["priority"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", priority["type"])
	assert.Equal(t, []any{"low", "medium", "high", "critical"}, priority["enum"])
	assert.Equal(t, "medium", priority["default"])

	tags, ok := props["tags"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"type": "string"}, tags["items"])
}

func TestToolDescriptor_MarshalJSON_Deterministic(t *testing.T) {
	desc := sampleDescriptor()
	first, err := json.Marshal(desc)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := json.Marshal(desc)
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again), "serialization must be stable across calls")
	}
}

func TestToolDescriptor_RoundTrip_PreservesOrder(t *testing.T) {
	desc := sampleDescriptor()
	data, err := json.Marshal(desc)
	require.NoError(t, err)

	var decoded domain.ToolDescriptor
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, desc.Name, decoded.Name)
	assert.Equal(t, desc.Description, decoded.Description)
	require.Len(t, decoded.InputSchema.Parameters, len(desc.InputSchema.Parameters))
	for i, p := range desc.InputSchema.Parameters {
		got := decoded.InputSchema.Parameters[i]
		assert.Equal(t, p.Name, got.Name, "parameter order must survive the round trip")
		assert.Equal(t, p.Type, got.Type)
		assert.Equal(t, p.Required, got.Required)
		assert.Equal(t, p.Enum, got.Enum)
	}

	// The re-serialized form must match the original byte-for-byte.
	again, err := json.Marshal(decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestInputSchema_NoParameters(t *testing.T) {
	desc := domain.ToolDescriptor{Name: "get_ticket_analytics", Description: "Analytics"}
	data, err := json.Marshal(desc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"properties":{}`)
	assert.NotContains(t, string(data), `"required"`)
}

func TestInvocationResult_ExactlyOneOfResultError(t *testing.T) {
	ok := domain.Succeed(map[string]any{"id": 1})
	assert.True(t, ok.Success)
	assert.NotNil(t, ok.Result)
	assert.Nil(t, ok.Error)
	assert.False(t, ok.Timestamp.IsZero())

	fail := domain.FailTool(domain.ErrKindUnknownTool, "no such tool", "nope")
	assert.False(t, fail.Success)
	assert.Nil(t, fail.Result)
	require.NotNil(t, fail.Error)
	assert.Equal(t, domain.ErrKindUnknownTool, fail.Error.Type)
	assert.Equal(t, "nope", fail.Error.Tool)
}

func TestInvocationResult_JSONOmitsAbsentSide(t *testing.T) {
	data, err := json.Marshal(domain.Fail(domain.ErrKindValidation, "bad"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"result"`)

	data, err = json.Marshal(domain.Succeed("payload"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"error"`)
}
