package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// maxStderrInError bounds how much pm2 stderr is copied into an error message.
const maxStderrInError = 512

// Runner executes a command and returns its standard output.
//
// Implementations must honour ctx cancellation.
type Runner interface {
	Run(ctx context.Context, binary string, args []string, env []string) ([]byte, error)
}

// Logger defines the logging interface for the inspector.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ExecRunner runs commands as child processes.
type ExecRunner struct{}

// Run starts binary with args, waits for it to exit and returns stdout.
// env entries (key=value) are appended to the parent environment.
func (ExecRunner) Run(ctx context.Context, binary string, args []string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec // Binary comes from validated config

	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s %s", ErrTimeout, binary, strings.Join(args, " "))
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > maxStderrInError {
			detail = detail[:maxStderrInError] + "..."
		}
		if detail != "" {
			return nil, fmt.Errorf("%w: %w: %s", ErrCommandFailed, err, detail)
		}
		return nil, fmt.Errorf("%w: %w", ErrCommandFailed, err)
	}

	return stdout.Bytes(), nil
}
