package tool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ReadResult is the payload of fs.read.
type ReadResult struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
}

// WriteResult is the payload of fs.write and fs.append.
type WriteResult struct {
	Path  string `json:"path"`
	Bytes int    `json:"bytes"`
}

// ListResult is the payload of fs.list.
type ListResult struct {
	Directory string   `json:"directory"`
	Items     []string `json:"items"`
}

// SearchResult is the payload of fs.search.
type SearchResult struct {
	Matches string `json:"matches"`
}

// CopyResult is the payload of fs.copy.
type CopyResult struct {
	Src  string `json:"src"`
	Dest string `json:"dest"`
}

// RegisterFS registers the filesystem tools.
func RegisterFS(reg *Registry, ws Workspace) {
	reg.Register(Definition{
		Name:        "fs.read",
		Description: "Read a text file from the workspace.",
		Schema: Schema{Params: map[string]Param{
			"path":      {Type: TypeString, Required: true, Description: "file path, relative to the workspace root"},
			"max_bytes": {Type: TypeInt, Description: "read at most this many bytes"},
		}},
		ReadPathParams: []string{"path"},
		Handler:        fsRead(ws),
	})
	reg.Register(Definition{
		Name:        "fs.write",
		Description: "Write content to a file, replacing it if it exists.",
		Schema: Schema{Params: map[string]Param{
			"path":        {Type: TypeString, Required: true},
			"content":     {Type: TypeString, Required: true},
			"create_dirs": {Type: TypeBool, Description: "create parent directories (default true)"},
		}},
		Sensitive:  true,
		PathParams: []string{"path"},
		Handler:    fsWrite(ws),
	})
	reg.Register(Definition{
		Name:        "fs.append",
		Description: "Append content to a file, creating it if needed.",
		Schema: Schema{Params: map[string]Param{
			"path":    {Type: TypeString, Required: true},
			"content": {Type: TypeString, Required: true},
		}},
		Sensitive:  true,
		PathParams: []string{"path"},
		Handler:    fsAppend(ws),
	})
	reg.Register(Definition{
		Name:        "fs.list",
		Description: "List directory entries, optionally matching a glob recursively.",
		Schema: Schema{Params: map[string]Param{
			"directory": {Type: TypeString},
			"glob":      {Type: TypeString, Description: "recursive glob pattern"},
		}},
		ReadPathParams: []string{"directory"},
		Handler:        fsList(ws),
	})
	reg.Register(Definition{
		Name:        "fs.search",
		Description: "Search file contents for a literal string.",
		Schema: Schema{Params: map[string]Param{
			"query":     {Type: TypeString, Required: true},
			"directory": {Type: TypeString},
		}},
		ReadPathParams: []string{"directory"},
		Handler:        fsSearch(ws),
	})
	reg.Register(Definition{
		Name:        "fs.mkdir",
		Description: "Create a directory, including parents.",
		Schema: Schema{Params: map[string]Param{
			"path": {Type: TypeString, Required: true},
		}},
		Sensitive:  true,
		PathParams: []string{"path"},
		Handler:    fsMkdir(ws),
	})
	reg.Register(Definition{
		Name:        "fs.copy",
		Description: "Copy a file to a new location.",
		Schema: Schema{Params: map[string]Param{
			"src":  {Type: TypeString, Required: true},
			"dest": {Type: TypeString, Required: true},
		}},
		Sensitive:      true,
		ReadPathParams: []string{"src"},
		PathParams:     []string{"dest"},
		Handler:        fsCopy(ws),
	})
}

func fsRead(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		p := ws.Resolve(stringArg(args, "path"))
		maxBytes := int64(intArg(args, "max_bytes", int(ws.maxReadBytes())))

		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			return nil, errors.New("file not found")
		}

		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxBytes))
		if err != nil {
			return nil, err
		}
		return ReadResult{
			Path:      p,
			Content:   string(data),
			Truncated: info.Size() > maxBytes,
		}, nil
	}
}

func fsWrite(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		p := ws.Resolve(stringArg(args, "path"))
		content := stringArg(args, "content")
		if boolArg(args, "create_dirs", true) {
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return nil, err
			}
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return nil, err
		}
		return WriteResult{Path: p, Bytes: len(content)}, nil
	}
}

func fsAppend(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		p := ws.Resolve(stringArg(args, "path"))
		content := stringArg(args, "content")
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		n, err := f.WriteString(content)
		if err != nil {
			return nil, err
		}
		return WriteResult{Path: p, Bytes: n}, nil
	}
}

func fsList(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		d := ws.Resolve(stringArgDefault(args, "directory", "."))
		pattern := stringArg(args, "glob")

		info, err := os.Stat(d)
		if err != nil || !info.IsDir() {
			return nil, errors.New("directory not found")
		}

		var items []string
		if pattern != "" {
			err = filepath.WalkDir(d, func(path string, entry fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if len(items) >= maxListItems {
					return filepath.SkipAll
				}
				if ok, _ := filepath.Match(pattern, entry.Name()); ok {
					items = append(items, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else {
			entries, err := os.ReadDir(d)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				if len(items) >= maxListItems {
					break
				}
				items = append(items, filepath.Join(d, e.Name()))
			}
		}
		if items == nil {
			items = []string{}
		}
		return ListResult{Directory: d, Items: items}, nil
	}
}

func fsSearch(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		query := stringArg(args, "query")
		if strings.TrimSpace(query) == "" {
			return nil, errors.New("query must not be empty")
		}
		d := ws.Resolve(stringArgDefault(args, "directory", "."))
		if _, err := os.Stat(d); err != nil {
			return nil, errors.New("directory not found")
		}

		var b strings.Builder
		err := filepath.WalkDir(d, func(path string, entry fs.DirEntry, err error) error {
			if err != nil || entry.IsDir() {
				return nil
			}
			if b.Len() >= maxSearchChars {
				return filepath.SkipAll
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			for i, line := range strings.Split(string(data), "\n") {
				if strings.Contains(line, query) {
					fmt.Fprintf(&b, "%s:%d:%s\n", path, i+1, line)
				}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		matches := b.String()
		if len(matches) > maxSearchChars {
			matches = matches[:maxSearchChars]
		}
		return SearchResult{Matches: matches}, nil
	}
}

func fsMkdir(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		p := ws.Resolve(stringArg(args, "path"))
		if err := os.MkdirAll(p, 0o755); err != nil {
			return nil, err
		}
		return map[string]any{"path": p}, nil
	}
}

func fsCopy(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		src := ws.Resolve(stringArg(args, "src"))
		dest := ws.Resolve(stringArg(args, "dest"))

		in, err := os.Open(src)
		if err != nil {
			return nil, err
		}
		defer in.Close()

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, err
		}
		out, err := os.Create(dest)
		if err != nil {
			return nil, err
		}
		defer out.Close()

		if _, err := io.Copy(out, in); err != nil {
			return nil, err
		}
		return CopyResult{Src: src, Dest: dest}, nil
	}
}
