package tool

import (
	"context"
	"errors"
	"os"
	"strings"
)

// ReplaceResult is the payload of edit.replace.
type ReplaceResult struct {
	Path     string `json:"path"`
	Replaced int    `json:"replaced"`
}

// RegisterEdit registers the in-place edit tools.
func RegisterEdit(reg *Registry, ws Workspace) {
	reg.Register(Definition{
		Name:        "edit.replace",
		Description: "Replace literal occurrences of a string inside a file.",
		Schema: Schema{Params: map[string]Param{
			"path":    {Type: TypeString, Required: true},
			"find":    {Type: TypeString, Required: true},
			"replace": {Type: TypeString},
			"count":   {Type: TypeInt, Description: "replace at most this many occurrences; all when omitted"},
		}},
		Sensitive:  true,
		PathParams: []string{"path"},
		Handler:    editReplace(ws),
	})
}

func editReplace(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		p := ws.Resolve(stringArg(args, "path"))
		find := stringArg(args, "find")
		if find == "" {
			return nil, errors.New("find must not be empty")
		}
		replace := stringArg(args, "replace")
		count := intArg(args, "count", -1)

		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			return nil, errors.New("file not found")
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}

		text := string(data)
		n := strings.Count(text, find)
		if count >= 0 && n > count {
			n = count
		}
		if n > 0 {
			newText := strings.Replace(text, find, replace, n)
			if err := os.WriteFile(p, []byte(newText), info.Mode().Perm()); err != nil {
				return nil, err
			}
		}
		return ReplaceResult{Path: p, Replaced: n}, nil
	}
}
