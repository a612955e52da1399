package block

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"legacymod/internal/errs"
	"legacymod/internal/plan"
	"legacymod/internal/template"
)

// CommandRunner executes a shell-level command via
// exec.CommandContext, capturing stdout and stderr separately under
// the block's timeout.
type CommandRunner struct{}

func (CommandRunner) Describe(b *plan.Block, scope *template.Scope) string {
	rendered, _ := template.Render(b.Command, scope)
	return fmt.Sprintf("run: %s %s", rendered, strings.Join(b.Args, " "))
}

func (CommandRunner) Execute(ctx context.Context, b *plan.Block, scope *template.Scope) (Result, error) {
	command, err := template.Render(b.Command, scope)
	if err != nil {
		return Result{}, err
	}
	args := make([]string, len(b.Args))
	for i, a := range b.Args {
		rendered, err := template.Render(a, scope)
		if err != nil {
			return Result{}, err
		}
		args[i] = rendered
	}

	// A bare command string with no declared args runs through the
	// shell, so plan one-liners like "echo done" or pipelines work; an
	// explicit args list execs the binary directly.
	var cmd *exec.Cmd
	if len(args) == 0 {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	} else {
		cmd = exec.CommandContext(ctx, command, args...)
	}
	if b.WorkingDirectory != "" {
		wd, err := template.Render(b.WorkingDirectory, scope)
		if err != nil {
			return Result{}, err
		}
		cmd.Dir = wd
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil {
		if ctx.Err() != nil {
			return Result{Kind: string(plan.BlockCommand)}, errs.BlockFailureWrap(ctx.Err(), "command %q timed out", command)
		}
		return Result{Kind: string(plan.BlockCommand)}, errs.BlockFailureWrap(runErr, "command %q exited with error: %s", command, stderr.String())
	}

	return Result{
		Success:               true,
		Kind:                  string(plan.BlockCommand),
		Output:                strings.TrimRight(stdout.String(), "\n"),
		DefaultOutputVariable: "output",
	}, nil
}
