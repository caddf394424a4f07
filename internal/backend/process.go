package backend

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
)

// maxLineSize bounds a single output line from an agent.
const maxLineSize = 1024 * 1024

// newCommand creates an exec.Cmd with process group isolation.
// The Setpgid: true flag ensures the subprocess is in its own process group,
// allowing for clean termination of the entire subprocess tree.
func newCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	return cmd
}

// commandResult is the outcome of a finished subprocess.
type commandResult struct {
	output   string // stdout and stderr lines, in arrival order
	exitCode int
}

// streamCommand runs cmd and delivers every stdout/stderr line to onLine as it
// arrives. Both pipes are drained concurrently before cmd.Wait() so a chatty
// subprocess can never deadlock on a full pipe buffer.
//
// A non-zero exit is reported through exitCode, not err; err is reserved for
// failures to run the command at all (missing binary, cancelled context).
func streamCommand(ctx context.Context, cmd *exec.Cmd, pm *ProcessManager, onLine func(string)) (commandResult, error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return commandResult{}, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return commandResult{}, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return commandResult{}, fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}

	if pm != nil {
		pm.Track(cmd)
		defer pm.Untrack(cmd)
	}

	var (
		mu  sync.Mutex
		out strings.Builder
		wg  sync.WaitGroup
	)

	emit := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		out.WriteString(line)
		out.WriteByte('\n')
		if onLine != nil {
			onLine(line)
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdoutPipe, emit)
	}()
	go func() {
		defer wg.Done()
		scanLines(stderrPipe, emit)
	}()

	// Pipes must be fully drained before Wait closes them.
	wg.Wait()
	waitErr := cmd.Wait()

	res := commandResult{output: out.String()}

	if waitErr != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("command cancelled: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.exitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("command failed: %w", waitErr)
	}

	return res, nil
}

// scanLines reads r line by line until EOF.
func scanLines(r io.Reader, emit func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		emit(scanner.Text())
	}
	// Drain anything left (e.g. an over-long line) so the writer never blocks.
	io.Copy(io.Discard, r)
}

// killProcessGroup kills the entire process group associated with the command.
// This ensures all child processes are terminated, not just the immediate subprocess.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return fmt.Errorf("process not started")
	}

	// Negative PID targets the whole group.
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill process group: %w", err)
	}

	return nil
}

// ProcessManager tracks all running agent subprocesses so they can be
// terminated together on shutdown.
//
// Usage pattern (typically in main):
//
//	pm := NewProcessManager()
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer cancel()
//	go func() {
//		<-ctx.Done()
//		pm.KillAll()
//	}()
type ProcessManager struct {
	mu    sync.Mutex
	procs map[int]*exec.Cmd
}

// NewProcessManager creates a new ProcessManager.
func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		procs: make(map[int]*exec.Cmd),
	}
}

// Track registers a started subprocess.
func (pm *ProcessManager) Track(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.procs[cmd.Process.Pid] = cmd
}

// Untrack removes a subprocess after it has exited.
func (pm *ProcessManager) Untrack(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.procs, cmd.Process.Pid)
}

// KillAll terminates all tracked subprocesses.
func (pm *ProcessManager) KillAll() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var errs []error
	for pid, cmd := range pm.procs {
		if err := killProcessGroup(cmd); err != nil {
			errs = append(errs, fmt.Errorf("failed to kill process %d: %w", pid, err))
		}
	}

	return errors.Join(errs...)
}

// Count returns the number of currently tracked processes.
func (pm *ProcessManager) Count() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.procs)
}
