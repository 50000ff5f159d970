package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/dreamware/attest/internal/cluster"
)

// ExecRunner starts daemons as local child processes, one per node, with
// output redirected to the node's log file and the pid written under
// PidDir so a later Stop (even from another invocation) can find it.
type ExecRunner struct {
	PidDir string

	mu    sync.Mutex
	procs map[cluster.Node]*os.Process
}

// NewExecRunner creates a runner keeping pid files under dir.
func NewExecRunner(dir string) *ExecRunner {
	return &ExecRunner{
		PidDir: dir,
		procs:  make(map[cluster.Node]*os.Process),
	}
}

// Start launches name with args, redirecting combined output to logPath.
func (r *ExecRunner) Start(ctx context.Context, node cluster.Node, logPath string, name string, args ...string) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("start %s: %w", name, err)
	}
	// Reap the child when it exits so Stop never leaves a zombie
	go func() {
		_ = cmd.Wait()
		logFile.Close()
	}()

	if err := os.MkdirAll(r.PidDir, 0o755); err != nil {
		return fmt.Errorf("create pid dir: %w", err)
	}
	pid := cmd.Process.Pid
	if err := os.WriteFile(r.pidFile(node), []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}

	r.mu.Lock()
	r.procs[node] = cmd.Process
	r.mu.Unlock()
	return nil
}

// Stop terminates the node's daemon with SIGTERM and removes its pid
// file. Falls back to the pid file when the process was started by an
// earlier invocation.
func (r *ExecRunner) Stop(_ context.Context, node cluster.Node) error {
	r.mu.Lock()
	proc := r.procs[node]
	delete(r.procs, node)
	r.mu.Unlock()

	if proc == nil {
		data, err := os.ReadFile(r.pidFile(node))
		if err != nil {
			return fmt.Errorf("no process for %s: %w", node, err)
		}
		pid, err := strconv.Atoi(string(data))
		if err != nil {
			return fmt.Errorf("bad pid file for %s: %w", node, err)
		}
		proc, err = os.FindProcess(pid)
		if err != nil {
			return fmt.Errorf("find process for %s: %w", node, err)
		}
	}

	if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("stop %s: %w", node, err)
	}
	_ = os.Remove(r.pidFile(node))
	return nil
}

func (r *ExecRunner) pidFile(node cluster.Node) string {
	return filepath.Join(r.PidDir, string(node)+".pid")
}
