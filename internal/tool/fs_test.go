package tool

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	root := t.TempDir()
	reg := NewRegistry()
	ws := NewWorkspace(root, []string{"echo", "true"})
	RegisterFS(reg, ws)
	RegisterEdit(reg, ws)
	RegisterShell(reg, ws)
	return reg, root
}

func dispatch(t *testing.T, reg *Registry, name string, args map[string]any) any {
	t.Helper()
	out, err := reg.Dispatch(context.Background(), CallRequest{Name: name, Args: args})
	require.NoError(t, err)
	return out
}

func TestFSWriteThenRead(t *testing.T) {
	reg, root := newTestRegistry(t)

	out := dispatch(t, reg, "fs.write", map[string]any{"path": "notes/hello.txt", "content": "olá mundo"})
	wr := out.(WriteResult)
	assert.Equal(t, filepath.Join(root, "notes", "hello.txt"), wr.Path)

	out = dispatch(t, reg, "fs.read", map[string]any{"path": "notes/hello.txt"})
	rd := out.(ReadResult)
	assert.Equal(t, "olá mundo", rd.Content)
	assert.False(t, rd.Truncated)
}

func TestFSReadTruncates(t *testing.T) {
	reg, root := newTestRegistry(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.txt"), []byte(strings.Repeat("a", 100)), 0o644))

	out := dispatch(t, reg, "fs.read", map[string]any{"path": "big.txt", "max_bytes": float64(10)})
	rd := out.(ReadResult)
	assert.Len(t, rd.Content, 10)
	assert.True(t, rd.Truncated)
}

func TestFSReadMissingFile(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Dispatch(context.Background(), CallRequest{Name: "fs.read", Args: map[string]any{"path": "no.txt"}})
	assert.EqualError(t, err, "file not found")
}

func TestFSAppend(t *testing.T) {
	reg, _ := newTestRegistry(t)
	dispatch(t, reg, "fs.append", map[string]any{"path": "log.txt", "content": "one\n"})
	dispatch(t, reg, "fs.append", map[string]any{"path": "log.txt", "content": "two\n"})

	out := dispatch(t, reg, "fs.read", map[string]any{"path": "log.txt"})
	assert.Equal(t, "one\ntwo\n", out.(ReadResult).Content)
}

func TestFSListAndGlob(t *testing.T) {
	reg, root := newTestRegistry(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "c.txt"), nil, 0o644))

	out := dispatch(t, reg, "fs.list", map[string]any{})
	ls := out.(ListResult)
	assert.Len(t, ls.Items, 3)

	out = dispatch(t, reg, "fs.list", map[string]any{"glob": "*.go"})
	ls = out.(ListResult)
	require.Len(t, ls.Items, 2)
	assert.Contains(t, ls.Items, filepath.Join(root, "sub", "b.go"))
}

func TestFSSearch(t *testing.T) {
	reg, root := newTestRegistry(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "x.txt"), []byte("alpha\nneedle here\nomega\n"), 0o644))

	out := dispatch(t, reg, "fs.search", map[string]any{"query": "needle"})
	sr := out.(SearchResult)
	assert.Contains(t, sr.Matches, "x.txt:2:needle here")
}

func TestFSCopy(t *testing.T) {
	reg, root := newTestRegistry(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "src.txt"), []byte("data"), 0o644))

	dispatch(t, reg, "fs.copy", map[string]any{"src": "src.txt", "dest": "out/dst.txt"})
	data, err := os.ReadFile(filepath.Join(root, "out", "dst.txt"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestEditReplace(t *testing.T) {
	reg, root := newTestRegistry(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("foo bar foo baz foo"), 0o644))

	out := dispatch(t, reg, "edit.replace", map[string]any{"path": "f.txt", "find": "foo", "replace": "qux", "count": float64(2)})
	assert.Equal(t, 2, out.(ReplaceResult).Replaced)

	data, _ := os.ReadFile(filepath.Join(root, "f.txt"))
	assert.Equal(t, "qux bar qux baz foo", string(data))

	out = dispatch(t, reg, "edit.replace", map[string]any{"path": "f.txt", "find": "absent", "replace": "x"})
	assert.Zero(t, out.(ReplaceResult).Replaced)
}

func TestShellExecAllowlist(t *testing.T) {
	reg, _ := newTestRegistry(t)

	out := dispatch(t, reg, "shell.exec", map[string]any{"cmd": []any{"echo", "hi"}})
	assert.Equal(t, "hi\n", out.(ShellResult).Stdout)

	_, err := reg.Dispatch(context.Background(), CallRequest{
		Name: "shell.exec", Args: map[string]any{"cmd": []any{"rm", "-rf", "/"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")

	_, err = reg.Dispatch(context.Background(), CallRequest{
		Name: "shell.exec", Args: map[string]any{"cmd": []any{"echo", "a && b"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operators")
}

func TestWorkspaceResolve(t *testing.T) {
	ws := NewWorkspace("/work", nil)
	assert.Equal(t, "/work", ws.Resolve(""))
	assert.Equal(t, "/work", ws.Resolve("."))
	assert.Equal(t, "/work/a/b", ws.Resolve("a/b"))
	assert.Equal(t, "/etc/passwd", ws.Resolve("/etc/passwd"))
	assert.Equal(t, "/etc", ws.Resolve("../etc"))
}
