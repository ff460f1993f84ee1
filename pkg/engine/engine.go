package engine

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"imthedev/pkg/events"

	"github.com/google/uuid"
)

// StateReader reports the autopilot setting read at proposal time.
// Satisfied by *state.Manager.
type StateReader interface {
	AutopilotEnabled() bool
}

// Checker classifies command text that must never skip the approval gate,
// even under autopilot. Satisfied by *security.Checker.
type Checker interface {
	Dangerous(text string) bool
}

// Engine owns the command records map and enforces the lifecycle state
// machine. All mutations happen under one mutex; events are published
// outside it so handlers may call back into the engine.
type Engine struct {
	bus     *events.Bus
	state   StateReader // nil = autopilot never applies
	guard   Checker     // nil = nothing is dangerous
	spawner Spawner

	mu       sync.Mutex
	commands map[uuid.UUID]*Command
	running  map[uuid.UUID]*execution
}

// execution is the engine-side record of one in-flight subprocess.
type execution struct {
	proc            Process
	cancelRequested bool
	done            chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithStateReader wires the autopilot source.
func WithStateReader(sr StateReader) Option {
	return func(e *Engine) { e.state = sr }
}

// WithChecker wires the danger policy consulted before auto-approval.
func WithChecker(c Checker) Option {
	return func(e *Engine) { e.guard = c }
}

// WithSpawner replaces the production ExecSpawner (used by tests).
func WithSpawner(s Spawner) Option {
	return func(e *Engine) { e.spawner = s }
}

// New creates an Engine publishing on bus.
func New(bus *events.Bus, opts ...Option) *Engine {
	e := &Engine{
		bus:      bus,
		spawner:  &ExecSpawner{},
		commands: make(map[uuid.UUID]*Command),
		running:  make(map[uuid.UUID]*execution),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Propose creates a command in Proposed and publishes CommandProposed.
// When autopilot is enabled at proposal time and the danger policy does
// not object, the engine approves the command itself immediately after.
func (e *Engine) Propose(ctx context.Context, projectID uuid.UUID, text, reasoning string) (Command, error) {
	if strings.TrimSpace(text) == "" {
		return Command{}, ErrEmptyCommand
	}

	cmd := &Command{
		ID:        uuid.New(),
		ProjectID: projectID,
		Text:      text,
		Reasoning: reasoning,
		Status:    StatusProposed,
		CreatedAt: time.Now(),
	}

	e.mu.Lock()
	e.commands[cmd.ID] = cmd
	snap := *cmd
	e.mu.Unlock()

	e.bus.Publish(ctx, events.New(events.CommandProposed, ProposedPayload{
		CommandID: cmd.ID,
		ProjectID: projectID,
		Text:      text,
		Reasoning: reasoning,
	}))

	if e.autopilot() && !e.dangerous(text) {
		if err := e.Approve(ctx, cmd.ID); err == nil {
			snap.Status = StatusApproved
		}
	}
	return snap, nil
}

// Approve transitions Proposed -> Approved and publishes CommandApproved.
func (e *Engine) Approve(ctx context.Context, id uuid.UUID) error {
	e.mu.Lock()
	cmd, ok := e.commands[id]
	if !ok {
		e.mu.Unlock()
		return ErrNotFound
	}
	if !cmd.Status.canTransition(StatusApproved) {
		from := cmd.Status
		e.mu.Unlock()
		return invalidTransition(id, from, StatusApproved)
	}
	cmd.Status = StatusApproved
	projectID := cmd.ProjectID
	e.mu.Unlock()

	e.bus.Publish(ctx, events.New(events.CommandApproved, ApprovedPayload{
		CommandID: id,
		ProjectID: projectID,
	}))
	return nil
}

// Reject transitions Proposed -> Rejected and publishes CommandRejected
// with the reason.
func (e *Engine) Reject(ctx context.Context, id uuid.UUID, reason string) error {
	e.mu.Lock()
	cmd, ok := e.commands[id]
	if !ok {
		e.mu.Unlock()
		return ErrNotFound
	}
	if !cmd.Status.canTransition(StatusRejected) {
		from := cmd.Status
		e.mu.Unlock()
		return invalidTransition(id, from, StatusRejected)
	}
	cmd.Status = StatusRejected
	cmd.RejectReason = reason
	cmd.CompletedAt = time.Now()
	projectID := cmd.ProjectID
	e.mu.Unlock()

	e.bus.Publish(ctx, events.New(events.CommandRejected, RejectedPayload{
		CommandID: id,
		ProjectID: projectID,
		Reason:    reason,
	}))
	return nil
}

// ExecOptions configures the subprocess for one execution. The zero
// value runs in the engine process's working directory with no extra
// environment and no deadline.
type ExecOptions struct {
	Dir     string        // working directory
	Env     []string      // extra KEY=VALUE pairs
	Timeout time.Duration // terminate the process after this long; 0 = never
}

// Execute transitions Approved -> Executing, publishes ExecutionStarted,
// and runs the subprocess in the background. The terminal outcome arrives
// as ExecutionCompleted, ExecutionFailed or ExecutionCancelled; use Wait
// to block on it.
func (e *Engine) Execute(ctx context.Context, id uuid.UUID) error {
	return e.ExecuteWith(ctx, id, ExecOptions{})
}

// ExecuteWith is Execute with per-execution subprocess options, typically
// derived from the command's project settings.
func (e *Engine) ExecuteWith(ctx context.Context, id uuid.UUID, opts ExecOptions) error {
	e.mu.Lock()
	cmd, ok := e.commands[id]
	if !ok {
		e.mu.Unlock()
		return ErrNotFound
	}
	if !cmd.Status.canTransition(StatusExecuting) {
		from := cmd.Status
		e.mu.Unlock()
		return invalidTransition(id, from, StatusExecuting)
	}
	cmd.Status = StatusExecuting
	cmd.StartedAt = time.Now()
	ex := &execution{done: make(chan struct{})}
	e.running[id] = ex
	projectID, text := cmd.ProjectID, cmd.Text
	e.mu.Unlock()

	e.bus.Publish(ctx, events.New(events.ExecutionStarted, StartedPayload{
		CommandID: id,
		ProjectID: projectID,
		Text:      text,
	}))

	go e.run(ctx, id, ex, opts)
	return nil
}

// Cancel requests termination of an Executing command. It is a no-op, not
// an error, on any non-Executing command, including terminal ones and
// repeated cancels. The transition to Cancelled is finalized by the
// execution goroutine once the process has actually exited, so a process
// that finishes before the termination takes effect keeps its natural
// Completed/Failed outcome.
func (e *Engine) Cancel(_ context.Context, id uuid.UUID) error {
	e.mu.Lock()
	cmd, ok := e.commands[id]
	if !ok {
		e.mu.Unlock()
		return ErrNotFound
	}
	if cmd.Status != StatusExecuting {
		e.mu.Unlock()
		return nil
	}
	ex := e.running[id]
	ex.cancelRequested = true
	proc := ex.proc
	e.mu.Unlock()

	if proc != nil {
		_ = proc.Terminate()
	}
	return nil
}

// Get returns a snapshot of one command.
func (e *Engine) Get(id uuid.UUID) (Command, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cmd, ok := e.commands[id]
	if !ok {
		return Command{}, ErrNotFound
	}
	return *cmd, nil
}

// Pending returns snapshots of all commands still awaiting a decision.
func (e *Engine) Pending() []Command {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []Command
	for _, cmd := range e.commands {
		if cmd.Status == StatusProposed {
			out = append(out, *cmd)
		}
	}
	return out
}

// Wait blocks until the command reaches a terminal state and returns its
// final snapshot. Commands already terminal return immediately; commands
// that have not started executing return ErrNotExecuting.
func (e *Engine) Wait(ctx context.Context, id uuid.UUID) (Command, error) {
	e.mu.Lock()
	cmd, ok := e.commands[id]
	if !ok {
		e.mu.Unlock()
		return Command{}, ErrNotFound
	}
	if cmd.Status.Terminal() {
		snap := *cmd
		e.mu.Unlock()
		return snap, nil
	}
	ex, ok := e.running[id]
	if !ok {
		e.mu.Unlock()
		return Command{}, ErrNotExecuting
	}
	e.mu.Unlock()

	select {
	case <-ctx.Done():
		return Command{}, ctx.Err()
	case <-ex.done:
	}
	return e.Get(id)
}

// run executes the subprocess for one command and finalizes its terminal
// state. It is the only goroutine that writes a terminal execution state,
// which serializes the cancel-versus-exit race.
func (e *Engine) run(ctx context.Context, id uuid.UUID, ex *execution, opts ExecOptions) {
	defer close(ex.done)

	e.mu.Lock()
	cmd := e.commands[id]
	spec := Spec{Text: cmd.Text, Dir: opts.Dir, Env: opts.Env}
	e.mu.Unlock()

	proc, err := e.spawner.Start(ctx, spec)
	if err != nil {
		e.finalize(ctx, id, ex, -1, err)
		return
	}

	e.mu.Lock()
	ex.proc = proc
	cancelled := ex.cancelRequested
	e.mu.Unlock()
	if cancelled {
		// Cancel arrived between Execute and Start.
		_ = proc.Terminate()
	}
	if opts.Timeout > 0 {
		// A timed-out process exits on the termination signal and
		// finalizes as Failed, like any other killed process.
		timer := time.AfterFunc(opts.Timeout, func() { _ = proc.Terminate() })
		defer timer.Stop()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go e.stream(ctx, id, StreamStdout, proc.Stdout(), &wg)
	go e.stream(ctx, id, StreamStderr, proc.Stderr(), &wg)
	wg.Wait()

	code, cause := exitStatus(proc.Wait())
	e.finalize(ctx, id, ex, code, cause)
}

// stream reads one output stream line by line, appending to the command's
// buffer and publishing a chunk per line. Chunk order within a stream
// follows production order; interleaving across streams is unspecified.
func (e *Engine) stream(ctx context.Context, id uuid.UUID, stream string, r io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		e.mu.Lock()
		cmd := e.commands[id]
		if stream == StreamStdout {
			cmd.Stdout += line + "\n"
		} else {
			cmd.Stderr += line + "\n"
		}
		e.mu.Unlock()

		e.bus.Publish(ctx, events.New(events.OutputChunk, OutputPayload{
			CommandID: id,
			Stream:    stream,
			Data:      line,
		}))
	}
}

// exitStatus maps a Wait error to (exit code, cause).
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), err
	}
	return -1, err
}

// finalize records the terminal state for an execution and publishes the
// matching event. A requested cancel wins over the process's own outcome
// if it arrives before this point.
func (e *Engine) finalize(ctx context.Context, id uuid.UUID, ex *execution, code int, cause error) {
	e.mu.Lock()
	cmd := e.commands[id]
	cmd.CompletedAt = time.Now()
	delete(e.running, id)

	var status Status
	switch {
	case ex.cancelRequested:
		status = StatusCancelled
	case code == 0 && cause == nil:
		status = StatusCompleted
	default:
		status = StatusFailed
	}
	cmd.Status = status
	cmd.ExitCode = code
	if cause != nil {
		cmd.FailureCause = cause.Error()
	}
	snap := *cmd
	e.mu.Unlock()

	switch status {
	case StatusCancelled:
		e.bus.Publish(ctx, events.New(events.ExecutionCancelled, CancelledPayload{
			CommandID: id,
			ProjectID: snap.ProjectID,
		}))
	case StatusCompleted:
		e.bus.Publish(ctx, events.New(events.ExecutionCompleted, CompletedPayload{
			CommandID: id,
			ProjectID: snap.ProjectID,
			ExitCode:  snap.ExitCode,
			Stdout:    snap.Stdout,
			Stderr:    snap.Stderr,
		}))
	default:
		e.bus.Publish(ctx, events.New(events.ExecutionFailed, FailedPayload{
			CommandID: id,
			ProjectID: snap.ProjectID,
			ExitCode:  snap.ExitCode,
			Cause:     snap.FailureCause,
		}))
	}
}

func (e *Engine) autopilot() bool {
	return e.state != nil && e.state.AutopilotEnabled()
}

func (e *Engine) dangerous(text string) bool {
	return e.guard != nil && e.guard.Dangerous(text)
}
