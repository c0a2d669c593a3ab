// Package executor runs a single shell command with a hard timeout and a
// bounded output capture. It performs no policy checks; callers decide
// what may run.
package executor

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"
)

// TimeoutExitCode mirrors timeout(1).
const TimeoutExitCode = 124

// Limits bound one command.
type Limits struct {
	Timeout  time.Duration
	MaxBytes int
	// WaitDelay is how long to wait for output pipes after the process is
	// killed. Zero means one second.
	WaitDelay time.Duration
}

type Result struct {
	Command   string
	Output    string
	ExitCode  int
	Truncated bool
	TimedOut  bool
	Duration  time.Duration
	Timestamp time.Time
}

// Runner executes commands. Shell is the production implementation.
type Runner interface {
	Run(ctx context.Context, command string, limits Limits) Result
}

// Shell runs commands through /bin/sh.
type Shell struct{}

func (Shell) Run(ctx context.Context, command string, limits Limits) Result {
	return Run(ctx, command, limits)
}

// Run executes command via /bin/sh -c with a minimal, locale-neutral
// environment. The timeout is detached from ctx cancellation: a caller
// going away does not kill a command that is already running.
func Run(ctx context.Context, command string, limits Limits) Result {
	if limits.Timeout <= 0 {
		limits.Timeout = 5 * time.Second
	}
	if limits.WaitDelay <= 0 {
		limits.WaitDelay = time.Second
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), limits.Timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.Env = minimalEnv()
	cmd.WaitDelay = limits.WaitDelay
	setProcessGroup(cmd)

	stdout := &cappedBuffer{max: limits.MaxBytes}
	stderr := &cappedBuffer{max: limits.MaxBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	duration := time.Since(start)

	// Prefer stdout; fall back to stderr so failing checks still explain
	// themselves.
	out := stdout
	if strings.TrimSpace(stdout.String()) == "" {
		out = stderr
	}

	res := Result{
		Command:   command,
		Output:    strings.TrimRight(out.String(), "\n"),
		Truncated: out.truncated,
		Duration:  duration,
		Timestamp: start,
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitCode = TimeoutExitCode
	case err != nil:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = 1
			if res.Output == "" {
				res.Output = err.Error()
			}
		}
	}

	return res
}

func minimalEnv() []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = "/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
	}
	return []string{
		"PATH=" + path,
		"LANG=C",
		"LC_ALL=C",
		"TERM=dumb",
		"SYSTEMD_PAGER=",
		"PAGER=cat",
	}
}

// cappedBuffer keeps the first max bytes and silently drops the rest, so
// a chatty command never blocks on a full pipe.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if c.max <= 0 {
		c.buf.Write(p)
		return len(p), nil
	}
	room := c.max - c.buf.Len()
	if room <= 0 {
		if len(p) > 0 {
			c.truncated = true
		}
		return len(p), nil
	}
	if len(p) > room {
		c.buf.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *cappedBuffer) String() string {
	return c.buf.String()
}
