// Package security decides whether a proposed shell command is safe to
// auto-approve. The autopilot path consults a Checker before skipping
// the human approval gate; a dangerous command always falls back to
// manual review.
package security

import (
	"path/filepath"
	"strings"

	"imthedev/pkg/config"
)

// Checker flags dangerous commands based on a configurable pattern list.
type Checker struct {
	patterns   []string
	allowDirs  []string
	blockDirs  []string
	requireApp bool
}

// NewChecker builds a Checker from the security section of the config.
func NewChecker(cfg config.Security) *Checker {
	return &Checker{
		patterns:   cfg.DangerousCommands,
		allowDirs:  cfg.AllowedDirectories,
		blockDirs:  cfg.BlockedDirectories,
		requireApp: cfg.RequireApproval,
	}
}

// RequireApproval reports whether the approval gate is mandatory even
// when autopilot is on.
func (c *Checker) RequireApproval() bool {
	return c.requireApp
}

// Dangerous reports whether the command text matches a dangerous
// pattern. A single-word pattern matches the first word of any command
// in the text (including after pipes, semicolons, and logical
// operators); a multi-word pattern matches anywhere as a substring.
func (c *Checker) Dangerous(text string) bool {
	words := commandWords(text)
	for _, p := range c.patterns {
		if strings.ContainsRune(p, ' ') {
			if strings.Contains(text, p) {
				return true
			}
			continue
		}
		for _, w := range words {
			if w == p {
				return true
			}
		}
	}
	return false
}

// DirAllowed reports whether commands may run in dir. Blocked
// directories always lose; when an allowlist is configured, only its
// members (and their subdirectories) win.
func (c *Checker) DirAllowed(dir string) bool {
	dir = filepath.Clean(dir)
	for _, b := range c.blockDirs {
		if underDir(dir, b) {
			return false
		}
	}
	if len(c.allowDirs) == 0 {
		return true
	}
	for _, a := range c.allowDirs {
		if underDir(dir, a) {
			return true
		}
	}
	return false
}

func underDir(dir, root string) bool {
	root = filepath.Clean(root)
	return dir == root || strings.HasPrefix(dir, root+string(filepath.Separator))
}

// commandWords returns the first word of each command in a shell line,
// splitting on pipes, command separators, and logical operators.
func commandWords(text string) []string {
	var words []string
	for _, seg := range splitCommands(text) {
		fields := strings.Fields(seg)
		if len(fields) == 0 {
			continue
		}
		w := fields[0]
		// Strip sudo so "sudo rm" style patterns can also be caught
		// by the bare command name.
		if w == "sudo" && len(fields) > 1 {
			words = append(words, fields[1])
		}
		words = append(words, w)
	}
	return words
}

func splitCommands(text string) []string {
	seps := []string{"&&", "||", ";", "|", "\n"}
	segs := []string{text}
	for _, sep := range seps {
		var next []string
		for _, s := range segs {
			next = append(next, strings.Split(s, sep)...)
		}
		segs = next
	}
	return segs
}
