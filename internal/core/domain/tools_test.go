package domain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(name string) *Tool {
	return &Tool{
		Name:        name,
		Description: "echoes its input",
		Parameters: ToolParameters{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{"type": "string"},
			},
			Required: []string{"text"},
		},
		Execute: func(ctx context.Context, params map[string]interface{}) (string, error) {
			return params["text"].(string), nil
		},
	}
}

func TestToolRegistry_Execute(t *testing.T) {
	reg := NewToolRegistry()
	require.NoError(t, reg.Register(echoTool("echo")))

	out, err := reg.Execute(context.Background(), "echo", map[string]interface{}{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestToolRegistry_ValidatesRequiredParams(t *testing.T) {
	reg := NewToolRegistry()
	require.NoError(t, reg.Register(echoTool("echo")))

	_, err := reg.Execute(context.Background(), "echo", map[string]interface{}{})
	assert.ErrorContains(t, err, "missing required parameter")

	_, err = reg.Execute(context.Background(), "echo", map[string]interface{}{"text": ""})
	assert.ErrorContains(t, err, "is empty")
}

func TestToolRegistry_UnknownTool(t *testing.T) {
	reg := NewToolRegistry()
	_, err := reg.Execute(context.Background(), "nope", nil)
	assert.ErrorContains(t, err, "tool not found")
}

func TestToolRegistry_RejectsInvalidTools(t *testing.T) {
	reg := NewToolRegistry()
	assert.Error(t, reg.Register(&Tool{Name: ""}))
	assert.Error(t, reg.Register(&Tool{Name: "no-exec"}))
}

func TestToolRegistry_FilterByNames(t *testing.T) {
	reg := NewToolRegistry()
	require.NoError(t, reg.Register(echoTool("a")))
	require.NoError(t, reg.Register(echoTool("b")))

	filtered := reg.FilterByNames([]string{"a"})
	_, ok := filtered.GetTool("a")
	assert.True(t, ok)
	_, ok = filtered.GetTool("b")
	assert.False(t, ok)
	assert.Len(t, reg.ListTools(), 2)
}
