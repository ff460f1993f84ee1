package engine

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"
)

// Spec describes one subprocess invocation.
type Spec struct {
	Text string   // shell command line, run via sh -c
	Dir  string   // working directory; empty = inherit
	Env  []string // extra KEY=VALUE pairs appended to the environment
}

// Process is a running subprocess with independently readable output
// streams. Wait must be called exactly once, after both streams have been
// drained. Terminate requests cooperative shutdown and may be called at
// any time after Start returns.
type Process interface {
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() error
	Terminate() error
}

// Spawner starts subprocesses. The production implementation is
// ExecSpawner; tests substitute fakes.
type Spawner interface {
	Start(ctx context.Context, spec Spec) (Process, error)
}

// killGrace is how long Terminate waits after SIGTERM before escalating
// to SIGKILL.
const killGrace = 3 * time.Second

// ExecSpawner runs commands through the system shell with os/exec. Each
// child gets its own process group so Terminate can take down the whole
// tree, not just the shell.
type ExecSpawner struct {
	// Shell overrides the interpreter; defaults to "sh".
	Shell string
}

// Start launches sh -c spec.Text with piped stdout and stderr.
func (s *ExecSpawner) Start(ctx context.Context, spec Spec) (Process, error) {
	shell := s.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := exec.CommandContext(ctx, shell, "-c", spec.Text) //nolint:gosec // executing user-approved command text is the point
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(cmd.Environ(), spec.Env...)
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %q: %w", spec.Text, err)
	}

	return &execProcess{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		exited: make(chan struct{}),
	}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
	exited chan struct{}
}

func (p *execProcess) Stdout() io.Reader { return p.stdout }
func (p *execProcess) Stderr() io.Reader { return p.stderr }

// Wait reaps the child and unblocks any pending Terminate escalation.
func (p *execProcess) Wait() error {
	err := p.cmd.Wait()
	close(p.exited)
	return err
}

// Terminate sends SIGTERM to the child's process group and, if the
// process is still alive after the grace period, SIGKILL. It does not
// wait for exit; the caller's Wait observes the result.
func (p *execProcess) Terminate() error {
	proc := p.cmd.Process
	if proc == nil {
		return nil
	}
	pgid := proc.Pid
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		// Group already gone; best-effort direct kill.
		_ = proc.Kill()
		return nil //nolint:nilerr // SIGTERM failure means the process already exited
	}
	go func() {
		select {
		case <-p.exited:
		case <-time.After(killGrace):
			_ = syscall.Kill(-pgid, syscall.SIGKILL)
		}
	}()
	return nil
}
