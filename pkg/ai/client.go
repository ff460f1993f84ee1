package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"imthedev/pkg/config"
)

// ErrNoProposal means the model's response contained no usable command.
var ErrNoProposal = errors.New("response contains no command proposal")

// Runner executes one prompt against an AI provider and returns the raw
// response text.
type Runner interface {
	Run(ctx context.Context, prompt string) (string, error)
}

// CLIRunner shells out to a provider CLI in non-interactive mode.
type CLIRunner struct {
	Binary  string
	Model   string
	Timeout time.Duration
}

func (r *CLIRunner) Run(ctx context.Context, prompt string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	args := []string{"-p", prompt}
	if r.Model != "" {
		args = append(args, "--model", r.Model)
	}
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("%s: %w: %s", r.Binary, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("%s: %w", r.Binary, err)
	}
	return string(out), nil
}

// Client is a Proposer backed by a Runner, with retry on transport
// errors.
type Client struct {
	runner  Runner
	retries int
	delay   time.Duration
}

// NewClient builds a Client from the AI config section. The default
// model name doubles as the CLI binary name.
func NewClient(cfg config.AI) *Client {
	return &Client{
		runner: &CLIRunner{
			Binary:  cfg.DefaultModel,
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		retries: cfg.MaxRetries,
		delay:   time.Duration(cfg.RetryDelaySecs * float64(time.Second)),
	}
}

// NewClientWithRunner is the test seam.
func NewClientWithRunner(r Runner, retries int, delay time.Duration) *Client {
	return &Client{runner: r, retries: retries, delay: delay}
}

func (c *Client) ProposeCommand(ctx context.Context, req Request) (Proposal, error) {
	resp, err := c.run(ctx, buildProposePrompt(req))
	if err != nil {
		return Proposal{}, err
	}
	return parseProposal(resp)
}

func (c *Client) AnalyzeResult(ctx context.Context, res Result) (string, error) {
	resp, err := c.run(ctx, buildAnalyzePrompt(res))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// run invokes the runner, retrying transport failures. Parse failures
// are not retried; they surface to the caller.
func (c *Client) run(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 && c.delay > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.delay):
			}
		}
		resp, err := c.runner.Run(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", lastErr
		}
	}
	return "", fmt.Errorf("ai request failed after %d attempts: %w", c.retries+1, lastErr)
}

func buildProposePrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are proposing a single shell command to advance an objective.\n\n")
	fmt.Fprintf(&b, "Objective: %s\n", req.Objective)
	if req.ProjectPath != "" {
		fmt.Fprintf(&b, "Working directory: %s\n", req.ProjectPath)
	}
	if len(req.History) > 0 {
		b.WriteString("\nRecent commands:\n")
		start := 0
		if len(req.History) > 5 {
			start = len(req.History) - 5
		}
		for _, h := range req.History[start:] {
			fmt.Fprintf(&b, "  %s\n", h)
		}
	}
	b.WriteString("\nRespond with a JSON object: {\"command\": \"...\", \"reasoning\": \"...\"}\n")
	b.WriteString("The command must be a single POSIX shell command line. No other text.\n")
	return b.String()
}

const outputPreviewLimit = 1000

func buildAnalyzePrompt(res Result) string {
	preview := res.Stdout
	if preview == "" {
		preview = res.Stderr
	}
	if len(preview) > outputPreviewLimit {
		preview = preview[:outputPreviewLimit]
	}
	var b strings.Builder
	b.WriteString("Analyze this command execution and summarize the outcome in a few sentences.\n\n")
	fmt.Fprintf(&b, "Command: %s\nExit code: %d\nOutput:\n%s\n", res.Command, res.ExitCode, preview)
	return b.String()
}

// parseProposal extracts the {"command","reasoning"} object from a
// model response, tolerating surrounding prose and markdown fences.
func parseProposal(resp string) (Proposal, error) {
	var p Proposal
	if err := json.Unmarshal([]byte(resp), &p); err != nil {
		obj := extractJSONObject(resp)
		if obj == "" {
			return Proposal{}, fmt.Errorf("%w: %s", ErrNoProposal, snippet(resp))
		}
		if err := json.Unmarshal([]byte(obj), &p); err != nil {
			return Proposal{}, fmt.Errorf("parse proposal: %w", err)
		}
	}
	p.Command = strings.TrimSpace(p.Command)
	if p.Command == "" {
		return Proposal{}, ErrNoProposal
	}
	return p, nil
}

// extractJSONObject returns the first balanced {...} block in s, or "".
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
