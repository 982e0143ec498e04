package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fyrsmithlabs/fabled/internal/config"
)

const (
	// maxOutputBytes caps captured stdout/stderr per invocation.
	maxOutputBytes = 1 << 20 // 1MB

	// killGracePeriod is how long Wait may linger after the process
	// group was signalled before the pipes are forcibly closed.
	killGracePeriod = 5 * time.Second
)

// ExecProvider invokes an external executable per call, passing the
// prompt via argv or stdin and reading stdout as the result. Spawned
// processes get their own process group so a timeout or upstream
// cancellation kills children too; a leaked process is a defect.
// Concurrency is bounded by a shared semaphore since every call costs
// an OS process.
type ExecProvider struct {
	name string
	cfg  config.ProviderConfig
	sem  *semaphore.Weighted
}

// NewExecProvider creates a provider for the configured executable.
// sem bounds concurrent invocations across all exec providers.
func NewExecProvider(name string, cfg config.ProviderConfig, sem *semaphore.Weighted) *ExecProvider {
	return &ExecProvider{name: name, cfg: cfg, sem: sem}
}

// Generate runs the executable once and returns its cleaned output.
func (p *ExecProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.sem.Release(1)

	timeout := p.cfg.Timeout.Duration()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := expandArgs(p.cfg.Args, prompt, model, p.cfg.PromptVia)
	cmd := exec.CommandContext(ctx, p.cfg.Command, argv...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative pid signals the whole process group.
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = killGracePeriod

	stdout := &limitedBuffer{limit: maxOutputBytes}
	stderr := &limitedBuffer{limit: maxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if p.cfg.PromptVia == config.PromptViaStdin {
		cmd.Stdin = strings.NewReader(prompt)
	}

	runErr := cmd.Run()
	if runErr != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return "", fmt.Errorf("%w: %s after %s", ErrTimeout, p.name, timeout)
		case errors.Is(ctx.Err(), context.Canceled):
			return "", context.Canceled
		}

		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			// Some tools warn on stderr and exit non-zero while still
			// producing a usable answer on stdout.
			if text, perr := parseOutput(stdout.String(), p.cfg.Output); perr == nil {
				return text, nil
			}
			return "", fmt.Errorf("%w: %s exited %d: %s",
				ErrUnavailable, p.name, exitErr.ExitCode(), firstLine(stderr.String()))
		}
		return "", fmt.Errorf("%w: starting %s: %v", ErrUnavailable, p.cfg.Command, runErr)
	}

	text, err := parseOutput(stdout.String(), p.cfg.Output)
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, p.name)
	}
	return text, nil
}

// expandArgs substitutes the {prompt} and {model} placeholders. When
// model is empty, the {model} argument is dropped along with the flag
// preceding it. A prompt delivered via argv with no {prompt}
// placeholder is appended as the final argument.
func expandArgs(args []string, prompt, model, promptVia string) []string {
	out := make([]string, 0, len(args)+1)
	promptPlaced := false
	for _, a := range args {
		switch {
		case strings.Contains(a, "{prompt}"):
			out = append(out, strings.ReplaceAll(a, "{prompt}", prompt))
			promptPlaced = true
		case strings.Contains(a, "{model}"):
			if model == "" {
				if n := len(out); n > 0 && strings.HasPrefix(out[n-1], "-") {
					out = out[:n-1]
				}
				continue
			}
			out = append(out, strings.ReplaceAll(a, "{model}", model))
		default:
			out = append(out, a)
		}
	}
	if !promptPlaced && promptVia != config.PromptViaStdin {
		out = append(out, prompt)
	}
	return out
}

// firstLine returns the first non-empty line of s, for error messages.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// limitedBuffer is an io.Writer that silently discards bytes past its
// limit, so a runaway tool cannot exhaust memory.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	remaining := l.limit - l.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		_, _ = l.buf.Write(p[:remaining])
		return len(p), nil
	}
	return l.buf.Write(p)
}

func (l *limitedBuffer) String() string {
	return l.buf.String()
}
