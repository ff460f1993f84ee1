// Package ai turns high-level objectives into concrete shell command
// proposals by delegating to an AI provider CLI. The core only sees
// the Proposer interface; the CLI transport and response parsing stay
// behind it.
package ai

import "context"

// Proposal is one suggested command with the model's reasoning.
type Proposal struct {
	Command   string `json:"command"`
	Reasoning string `json:"reasoning"`
}

// Request carries everything the model needs to propose a command.
type Request struct {
	// Objective is what the user wants accomplished.
	Objective string

	// ProjectPath is the working directory commands will run in.
	ProjectPath string

	// History holds recent command texts, oldest first.
	History []string
}

// Result is a finished execution handed back for analysis.
type Result struct {
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

// Proposer generates command proposals and interprets their outcomes.
type Proposer interface {
	ProposeCommand(ctx context.Context, req Request) (Proposal, error)
	AnalyzeResult(ctx context.Context, res Result) (string, error)
}
