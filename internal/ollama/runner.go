// Package ollama drives the local model runtime through its CLI. The
// gateway only dispatches here after a request has been admitted; a slow
// or failing invocation never holds any quota lock.
package ollama

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner is the model-invocation collaborator.
type Runner interface {
	Chat(ctx context.Context, model, prompt string) (string, error)
	ListInstalled(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, model string) error
}

type cliRunner struct {
	cmd     string
	timeout time.Duration
}

// NewCLIRunner returns a Runner that shells out to the ollama CLI.
func NewCLIRunner(cmd string, timeout time.Duration) Runner {
	if cmd == "" {
		cmd = "ollama"
	}
	return &cliRunner{cmd: cmd, timeout: timeout}
}

func (r *cliRunner) Chat(ctx context.Context, model, prompt string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.cmd, "run", model)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("model invocation timed out: %w", ctx.Err())
		}
		return "", fmt.Errorf("model invocation failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

func (r *cliRunner) ListInstalled(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, r.cmd, "list")

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list installed models: %w", err)
	}

	var names []string
	for i, line := range strings.Split(string(out), "\n") {
		if i == 0 {
			// header row
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 0 {
			names = append(names, fields[0])
		}
	}
	return names, nil
}

func (r *cliRunner) Remove(ctx context.Context, model string) error {
	cmd := exec.CommandContext(ctx, r.cmd, "rm", model)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to remove model %q: %v: %s", model, err, strings.TrimSpace(string(out)))
	}
	return nil
}
