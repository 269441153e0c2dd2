package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// GitResult is the payload of a git invocation.
type GitResult struct {
	Stdout string `json:"stdout"`
	Code   int    `json:"code,omitempty"`
}

// RegisterGit registers the git tools. All commands run inside the workspace.
func RegisterGit(reg *Registry, ws Workspace) {
	reg.Register(Definition{
		Name:        "git.status",
		Description: "Show porcelain git status for the workspace.",
		Schema: Schema{Params: map[string]Param{
			"path": {Type: TypeString},
		}},
		ReadPathParams: []string{"path"},
		Handler:        gitStatus(ws),
	})
	reg.Register(Definition{
		Name:        "git.diff",
		Description: "Show the working tree diff, optionally staged or limited to files.",
		Schema: Schema{Params: map[string]Param{
			"path":   {Type: TypeString},
			"files":  {Type: TypeList},
			"staged": {Type: TypeBool},
		}},
		ReadPathParams: []string{"path"},
		Handler:        gitDiff(ws),
	})
	reg.Register(Definition{
		Name:        "git.commit",
		Description: "Stage files and create a commit.",
		Schema: Schema{Params: map[string]Param{
			"path":    {Type: TypeString},
			"message": {Type: TypeString, Required: true},
			"add_all": {Type: TypeBool},
			"files":   {Type: TypeList},
		}},
		Sensitive:      true,
		ReadPathParams: []string{"path"},
		Handler:        gitCommit(ws),
	})
	reg.Register(Definition{
		Name:        "git.branch",
		Description: "List, create, or switch branches.",
		Schema: Schema{Params: map[string]Param{
			"path":   {Type: TypeString},
			"action": {Type: TypeString, Description: "list | create | switch"},
			"name":   {Type: TypeString},
		}},
		Sensitive:      true,
		ReadPathParams: []string{"path"},
		Handler:        gitBranch(ws),
	})
	reg.Register(Definition{
		Name:        "git.restore",
		Description: "Restore files from HEAD, discarding local changes.",
		Schema: Schema{Params: map[string]Param{
			"path":   {Type: TypeString},
			"files":  {Type: TypeList, Required: true},
			"staged": {Type: TypeBool},
		}},
		Sensitive:      true,
		ReadPathParams: []string{"path"},
		Handler:        gitRestore(ws),
	})
}

func runGit(ctx context.Context, dir string, args ...string) (any, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-c", "color.ui=never"}, args...)...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("git exited %d: %s", exitErr.ExitCode(), out.String())
		}
		return nil, err
	}
	return GitResult{Stdout: out.String()}, nil
}

func stringList(args map[string]any, name string) []string {
	raw, _ := args[name].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, fmt.Sprint(v))
	}
	return out
}

func gitStatus(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		return runGit(ctx, ws.Resolve(stringArg(args, "path")), "status", "--porcelain=v1", "-u")
	}
}

func gitDiff(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		cmd := []string{"diff"}
		if boolArg(args, "staged", false) {
			cmd = append(cmd, "--staged")
		}
		cmd = append(cmd, stringList(args, "files")...)
		return runGit(ctx, ws.Resolve(stringArg(args, "path")), cmd...)
	}
}

func gitCommit(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		dir := ws.Resolve(stringArg(args, "path"))
		message := stringArg(args, "message")
		if message == "" {
			return nil, errors.New("commit message required")
		}

		if boolArg(args, "add_all", false) {
			if _, err := runGit(ctx, dir, "add", "-A"); err != nil {
				return nil, err
			}
		} else if files := stringList(args, "files"); len(files) > 0 {
			if _, err := runGit(ctx, dir, append([]string{"add"}, files...)...); err != nil {
				return nil, err
			}
		}
		return runGit(ctx, dir, "commit", "-m", message)
	}
}

func gitBranch(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		dir := ws.Resolve(stringArg(args, "path"))
		action := stringArgDefault(args, "action", "list")
		name := stringArg(args, "name")

		switch action {
		case "list":
			return runGit(ctx, dir, "branch", "--list")
		case "create":
			if name == "" {
				return nil, errors.New("branch name required")
			}
			return runGit(ctx, dir, "branch", name)
		case "switch", "checkout":
			if name == "" {
				return nil, errors.New("branch name required")
			}
			return runGit(ctx, dir, "switch", name)
		default:
			return nil, fmt.Errorf("unknown action: %s", action)
		}
	}
}

func gitRestore(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		dir := ws.Resolve(stringArg(args, "path"))
		files := stringList(args, "files")
		if len(files) == 0 {
			return nil, errors.New("files list required")
		}
		cmd := []string{"restore"}
		if boolArg(args, "staged", false) {
			cmd = append(cmd, "--staged")
		}
		cmd = append(cmd, files...)
		return runGit(ctx, dir, cmd...)
	}
}
