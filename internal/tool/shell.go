package tool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"slices"
	"strings"
)

// ShellResult is the payload of shell.exec.
type ShellResult struct {
	Stdout string `json:"stdout"`
	Code   int    `json:"code"`
}

// shellOperators break the one-command-per-call rule.
var shellOperators = []string{"&&", "||", ";", "|", ">", "<", "`", "$("}

// RegisterShell registers the shell execution tool. Commands run without a
// shell, one executable per call, restricted to the configured allowlist.
func RegisterShell(reg *Registry, ws Workspace) {
	reg.Register(Definition{
		Name:        "shell.exec",
		Description: "Run a single allowlisted command inside the workspace.",
		Schema: Schema{Params: map[string]Param{
			"cmd": {Type: TypeList, Required: true, Description: "command and arguments as a list"},
		}},
		Sensitive: true,
		Handler:   shellExec(ws),
	})
}

func shellExec(ws Workspace) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		cmd := stringList(args, "cmd")
		if len(cmd) == 0 {
			return nil, errors.New("empty cmd")
		}
		for _, part := range cmd {
			for _, op := range shellOperators {
				if strings.Contains(part, op) {
					return nil, errors.New("shell operators are not allowed; run one command per call")
				}
			}
		}

		allowAll := slices.Contains(ws.ShellAllow, "*")
		if !allowAll && !slices.Contains(ws.ShellAllow, cmd[0]) {
			return nil, fmt.Errorf("command not allowed: %s", cmd[0])
		}
		// rm -rf on root-ish targets stays blocked even fully open.
		if allowAll && cmd[0] == "rm" && (slices.Contains(cmd, "-rf") || slices.Contains(cmd, "-fr")) && slices.Contains(cmd, "/") {
			return nil, errors.New("dangerous rm blocked")
		}

		proc := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
		proc.Dir = ws.Root

		var out bytes.Buffer
		proc.Stdout = &out
		proc.Stderr = &out

		err := proc.Run()
		stdout := out.String()
		if len(stdout) > maxShellOutput {
			stdout = stdout[:maxShellOutput]
		}
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return nil, fmt.Errorf("command exited %d: %s", exitErr.ExitCode(), stdout)
			}
			return nil, err
		}
		return ShellResult{Stdout: stdout}, nil
	}
}
