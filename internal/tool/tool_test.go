package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidate(t *testing.T) {
	s := Schema{Params: map[string]Param{
		"path":  {Type: TypeString, Required: true},
		"count": {Type: TypeInt},
		"flag":  {Type: TypeBool},
		"items": {Type: TypeList},
	}}

	require.NoError(t, s.Validate("fs.read", map[string]any{"path": "a.txt"}))
	require.NoError(t, s.Validate("fs.read", map[string]any{
		"path": "a.txt", "count": float64(2), "flag": true, "items": []any{"x"},
	}))

	err := s.Validate("fs.read", map[string]any{})
	var argErr *ArgError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "path", argErr.Param)

	err = s.Validate("fs.read", map[string]any{"path": "a.txt", "bogus": 1})
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "bogus", argErr.Param)

	err = s.Validate("fs.read", map[string]any{"path": 42})
	assert.ErrorAs(t, err, &argErr)

	err = s.Validate("fs.read", map[string]any{"path": "a", "count": 1.5})
	assert.ErrorAs(t, err, &argErr)
}

func TestRegistryDispatchUnknownTool(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Dispatch(context.Background(), CallRequest{Name: "nope"})
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistryDispatchValidates(t *testing.T) {
	reg := NewRegistry()
	called := false
	reg.Register(Definition{
		Name:   "echo",
		Schema: Schema{Params: map[string]Param{"text": {Type: TypeString, Required: true}}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			called = true
			return args["text"], nil
		},
	})

	_, err := reg.Dispatch(context.Background(), CallRequest{Name: "echo", Args: map[string]any{}})
	var argErr *ArgError
	require.ErrorAs(t, err, &argErr)
	assert.False(t, called, "handler must not run on invalid arguments")

	out, err := reg.Dispatch(context.Background(), CallRequest{Name: "echo", Args: map[string]any{"text": "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
	assert.True(t, called)
}

func TestRegistryDuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	def := Definition{Name: "x", Handler: func(ctx context.Context, args map[string]any) (any, error) { return nil, nil }}
	reg.Register(def)
	assert.Panics(t, func() { reg.Register(def) })
}

func TestDefinitionsSorted(t *testing.T) {
	reg := NewRegistry()
	ws := NewWorkspace(t.TempDir(), nil)
	RegisterAll(reg, ws)

	defs := reg.Definitions()
	require.NotEmpty(t, defs)
	for i := 1; i < len(defs); i++ {
		assert.Less(t, defs[i-1].Name, defs[i].Name)
	}

	// spot-check the sensitivity split
	byName := map[string]Definition{}
	for _, d := range defs {
		byName[d.Name] = d
	}
	assert.False(t, byName["fs.read"].Sensitive)
	assert.False(t, byName["web.search"].Sensitive)
	assert.True(t, byName["fs.write"].Sensitive)
	assert.True(t, byName["shell.exec"].Sensitive)
	assert.True(t, byName["git.commit"].Sensitive)
}

func TestCallRequestString(t *testing.T) {
	c := CallRequest{Name: "fs.write", Args: map[string]any{"path": "a.txt", "content": "x"}}
	assert.Equal(t, "fs.write(content=x, path=a.txt)", c.String())
	assert.Equal(t, "git.status", CallRequest{Name: "git.status"}.String())
}
