package disasm

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh")
	}
}

func TestExecRunnerOutput(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(0)
	assert.Equal(t, DefaultTimeout, r.Timeout)

	out, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo hi; echo err 1>&2; exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(out.Stdout))
	assert.Equal(t, 3, out.ExitCode)
}

func TestExecRunnerMerged(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(time.Minute)
	m := merged(r)
	out, err := m.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo err 1>&2"}})
	require.NoError(t, err)
	assert.Equal(t, "err\n", string(out.Stdout))
	assert.False(t, r.MergeStderr)
}

func TestExecRunnerNotFound(t *testing.T) {
	r := NewExecRunner(time.Minute)
	_, err := r.Run(context.Background(), Command{Name: "perfasm-no-such-tool"})
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestExecRunnerTimeoutKills(t *testing.T) {
	requireShell(t)
	r := NewExecRunner(100 * time.Millisecond)
	start := time.Now()
	_, err := r.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "sleep 30"}})
	assert.ErrorIs(t, err, ErrToolTimedOut)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestExecRunnerCancelled(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewExecRunner(time.Minute)
	_, err := r.Run(ctx, Command{Name: "sh", Args: []string{"-c", "sleep 30"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrToolTimedOut)
}
