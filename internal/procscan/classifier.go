package procscan

import "strings"

// Classifier decides which processes represent exclusive-access GPU
// workloads. Matching is substring-based on the full command line: literal
// patterns match exactly, keyword stems match case-insensitively.
//
// The stems are loose on purpose: "build" also matches a command line that
// mentions rebuild.sh. That mirrors the operational heuristic this daemon
// enforces; a stricter matcher (exact binary path, cgroup inspection) can be
// substituted without touching the state machine.
type Classifier struct {
	patterns []string
	stems    []string // lowercased at construction
}

// NewClassifier builds a classifier from literal patterns and keyword stems.
// Either list may be empty.
func NewClassifier(patterns, stems []string) *Classifier {
	c := &Classifier{
		patterns: append([]string(nil), patterns...),
		stems:    make([]string, 0, len(stems)),
	}
	for _, s := range stems {
		if s == "" {
			continue
		}
		c.stems = append(c.stems, strings.ToLower(s))
	}
	return c
}

// Classify returns the processes judged exclusive-access. The result is
// deterministic for a fixed input and preserves snapshot order; it never
// fails and has no side effects.
func (c *Classifier) Classify(procs []Process) []Process {
	var matched []Process
	for _, p := range procs {
		if c.matches(p.Cmdline) {
			matched = append(matched, p)
		}
	}
	return matched
}

func (c *Classifier) matches(cmdline string) bool {
	for _, pat := range c.patterns {
		if pat != "" && strings.Contains(cmdline, pat) {
			return true
		}
	}
	lower := strings.ToLower(cmdline)
	for _, stem := range c.stems {
		if strings.Contains(lower, stem) {
			return true
		}
	}
	return false
}

// Names returns the display names of procs, for event payloads.
func Names(procs []Process) []string {
	names := make([]string, 0, len(procs))
	for _, p := range procs {
		names = append(names, p.Name)
	}
	return names
}
