package llm

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/semaphore"

	"github.com/fyrsmithlabs/fabled/internal/config"
)

// writeScript writes an executable shell script into dir and returns
// its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func execProvider(cfg config.ProviderConfig) *ExecProvider {
	cfg.Kind = config.ProviderKindExec
	if cfg.Timeout == 0 {
		cfg.Timeout = config.Duration(10 * time.Second)
	}
	return NewExecProvider("test", cfg, semaphore.NewWeighted(2))
}

func TestExecProvider_Generate(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "echo-args.sh", `echo "answer: $*"`)

	p := execProvider(config.ProviderConfig{
		Command: script,
		Args:    []string{"-p", "{prompt}"},
	})

	got, err := p.Generate(context.Background(), "why", "")
	require.NoError(t, err)
	assert.Equal(t, "answer: -p why", got)
}

func TestExecProvider_JSONOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "json.sh", `echo '{"result": "from json", "cost": 1}'`)

	p := execProvider(config.ProviderConfig{
		Command: script,
		Output:  config.OutputJSON,
	})

	got, err := p.Generate(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, "from json", got)
}

func TestExecProvider_StdinPrompt(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "cat.sh", `cat`)

	p := execProvider(config.ProviderConfig{
		Command:   script,
		PromptVia: config.PromptViaStdin,
	})

	got, err := p.Generate(context.Background(), "prompt on stdin", "")
	require.NoError(t, err)
	assert.Equal(t, "prompt on stdin", got)
}

func TestExecProvider_NonZeroExitWithOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "warn.sh", `echo "usable answer"
echo "warning: something" >&2
exit 1`)

	p := execProvider(config.ProviderConfig{Command: script})

	got, err := p.Generate(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, "usable answer", got)
}

func TestExecProvider_NonZeroExitNoOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "fail.sh", `echo "model not found" >&2
exit 2`)

	p := execProvider(config.ProviderConfig{Command: script})

	_, err := p.Generate(context.Background(), "q", "")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "model not found")
}

func TestExecProvider_MissingCommand(t *testing.T) {
	p := execProvider(config.ProviderConfig{
		Command: filepath.Join(t.TempDir(), "does-not-exist"),
	})

	_, err := p.Generate(context.Background(), "q", "")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestExecProvider_Timeout(t *testing.T) {
	dir := t.TempDir()
	childPID := filepath.Join(dir, "child.pid")
	// The script spawns a child and waits, so the kill must take out
	// the whole process group, not just the script.
	script := writeScript(t, dir, "hang.sh", `sleep 30 &
echo $! > `+childPID+`
wait`)

	p := execProvider(config.ProviderConfig{
		Command: script,
		Timeout: config.Duration(300 * time.Millisecond),
	})

	start := time.Now()
	_, err := p.Generate(context.Background(), "q", "")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, elapsed, 3*time.Second, "timeout must be enforced promptly")

	data, readErr := os.ReadFile(childPID)
	require.NoError(t, readErr)
	pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, convErr)

	// The child shares the process group and must be dead too.
	assert.Eventually(t, func() bool {
		return syscall.Kill(pid, 0) != nil
	}, 2*time.Second, 50*time.Millisecond, "child process leaked past the timeout")
}

func TestExecProvider_Cancellation(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "sleep.sh", `sleep 30`)

	p := execProvider(config.ProviderConfig{Command: script})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := p.Generate(ctx, "q", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecProvider_EmptyOutput(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "silent.sh", `exit 0`)

	p := execProvider(config.ProviderConfig{Command: script})

	_, err := p.Generate(context.Background(), "q", "")
	assert.ErrorIs(t, err, ErrEmptyOutput)
}
