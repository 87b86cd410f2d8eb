package toolregistry_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ticketbridge/ticketbridge/internal/adapter/outbound/toolregistry"
	"github.com/ticketbridge/ticketbridge/internal/domain"
	"github.com/ticketbridge/ticketbridge/internal/usecase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func noopHandler(context.Context, map[string]any) (any, error) {
	return "ok", nil
}

func descriptor(name string) domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        name,
		Description: "test tool " + name,
		InputSchema: domain.InputSchema{Parameters: []domain.Parameter{
			{Name: "value", Type: domain.ParamString, Required: true},
		}},
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := toolregistry.New(testLogger())

	require.NoError(t, reg.Register(descriptor("echo"), noopHandler))

	tool, err := reg.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", tool.Descriptor.Name)
	assert.NotNil(t, tool.Handler)
	assert.NotNil(t, tool.Validator, "schema must be compiled at registration")
}

func TestRegistry_DuplicateName(t *testing.T) {
	reg := toolregistry.New(testLogger())

	require.NoError(t, reg.Register(descriptor("echo"), noopHandler))
	err := reg.Register(descriptor("echo"), noopHandler)
	require.Error(t, err)
	assert.ErrorIs(t, err, usecase.ErrDuplicateTool)

	// The original registration must be untouched.
	tool, err := reg.Get("echo")
	require.NoError(t, err)
	assert.Equal(t, "test tool echo", tool.Descriptor.Description)
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg := toolregistry.New(testLogger())

	_, err := reg.Get("missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, usecase.ErrToolNotFound)
}

func TestRegistry_RejectsEmptyNameAndNilHandler(t *testing.T) {
	reg := toolregistry.New(testLogger())

	assert.Error(t, reg.Register(domain.ToolDescriptor{}, noopHandler))
	assert.Error(t, reg.Register(descriptor("echo"), nil))
	assert.Empty(t, reg.List())
}

func TestRegistry_ListPreservesRegistrationOrder(t *testing.T) {
	reg := toolregistry.New(testLogger())

	names := []string{"zulu", "alpha", "mike", "bravo"}
	for _, name := range names {
		require.NoError(t, reg.Register(descriptor(name), noopHandler))
	}

	list := reg.List()
	require.Len(t, list, len(names))
	for i, name := range names {
		assert.Equal(t, name, list[i].Name)
	}
}

func TestRegistry_ConcurrentLookups(t *testing.T) {
	reg := toolregistry.New(testLogger())
	for i := 0; i < 10; i++ {
		require.NoError(t, reg.Register(descriptor(fmt.Sprintf("tool_%d", i)), noopHandler))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, err := reg.Get(fmt.Sprintf("tool_%d", j%10))
				assert.NoError(t, err)
				assert.Len(t, reg.List(), 10)
			}
		}()
	}
	wg.Wait()
}
