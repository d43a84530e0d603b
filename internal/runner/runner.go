// Package runner executes external commands and streams their output into
// the structured log. Detection and training both go through the Runner
// interface so tests can substitute a fake that never launches a process.
package runner

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// Runner launches an external command and waits for it to finish. A nil
// error means the process exited zero.
type Runner interface {
	Run(ctx context.Context, cmd string, args []string) error
}

// ExecRunner runs commands through os/exec. Stdout and stderr are forwarded
// line by line to the log so long inference runs stay observable.
type ExecRunner struct {
	Log zerolog.Logger
}

// NewExecRunner returns a runner logging through the given logger.
func NewExecRunner(log zerolog.Logger) *ExecRunner {
	return &ExecRunner{Log: log}
}

// Run starts the command and blocks until it exits. The context cancels
// the process.
func (r *ExecRunner) Run(ctx context.Context, cmd string, args []string) error {
	r.Log.Info().Str("cmd", cmd).Strs("args", args).Msg("Running external command")

	c := exec.CommandContext(ctx, cmd, args...)
	c.Stdout = &logWriter{log: r.Log, level: zerolog.InfoLevel}
	c.Stderr = &logWriter{log: r.Log, level: zerolog.WarnLevel}

	if err := c.Run(); err != nil {
		return fmt.Errorf("command %s failed: %w", cmd, err)
	}
	return nil
}

// Help runs the command with --help and returns whether it succeeded, for
// quick environment sanity checks.
func Help(ctx context.Context, r Runner, cmd string) error {
	return r.Run(ctx, cmd, []string{"--help"})
}

// logWriter forwards process output to the log, one write per event.
type logWriter struct {
	log   zerolog.Logger
	level zerolog.Level
}

func (w *logWriter) Write(p []byte) (int, error) {
	n := len(p)
	for n > 0 && (p[n-1] == '\n' || p[n-1] == '\r') {
		n--
	}
	if n > 0 {
		w.log.WithLevel(w.level).Msg(string(p[:n]))
	}
	return len(p), nil
}
