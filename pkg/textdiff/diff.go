/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package textdiff computes line-oriented differences between two snapshots
// of a file and renders them for humans.
package textdiff

import (
	"strings"

	"github.com/go-git/go-git/v5/utils/diff"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op classifies a run of lines.
type Op int

const (
	// Equal lines are present in both snapshots.
	Equal Op = iota
	// Insert lines are only present in the modified snapshot.
	Insert
	// Delete lines are only present in the original snapshot.
	Delete
)

func (o Op) String() string {
	switch o {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return "equal"
	}
}

// prefix is the marker rendered in front of each line of the run.
func (o Op) prefix() string {
	switch o {
	case Insert:
		return "+ "
	case Delete:
		return "- "
	default:
		return "  "
	}
}

// Run is a maximal sequence of consecutive lines sharing an Op.
type Run struct {
	Op    Op
	Lines []string
}

// Summary is the outcome of diffing two snapshots.
type Summary struct {
	// HasChanges is true iff at least one Insert or Delete run exists.
	HasChanges bool
	// Additions holds the inserted lines in order, without whitespace-only lines.
	Additions []string
	// Deletions holds the deleted lines in order, without whitespace-only lines.
	Deletions []string
	// Runs is the full decomposition of the two snapshots, in order.
	Runs []Run
	// Text is the annotated rendering of Runs.
	Text string
}

// Diff computes the line-level difference between original and modified.
//
// Blank lines never count as changed content in Additions and Deletions,
// but they are kept in Runs and Text.
func Diff(original, modified string) *Summary {
	s := &Summary{
		Additions: []string{},
		Deletions: []string{},
	}

	for _, d := range diff.Do(original, modified) {
		lines := splitLines(d.Text)
		if len(lines) == 0 {
			continue
		}
		run := Run{Op: opFor(d.Type), Lines: lines}
		s.Runs = append(s.Runs, run)

		switch run.Op {
		case Insert:
			s.HasChanges = true
			s.Additions = appendContent(s.Additions, lines)
		case Delete:
			s.HasChanges = true
			s.Deletions = appendContent(s.Deletions, lines)
		}
	}
	s.Text = Render(s.Runs)
	return s
}

// Render writes every line of runs, in order, prefixed with "+ ", "- " or
// two spaces and terminated by a newline.
func Render(runs []Run) string {
	var b strings.Builder
	for _, r := range runs {
		for _, l := range r.Lines {
			b.WriteString(r.Op.prefix())
			b.WriteString(l)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Added returns the number of inserted lines, blank lines included.
func (s *Summary) Added() int { return s.count(Insert) }

// Deleted returns the number of deleted lines, blank lines included.
func (s *Summary) Deleted() int { return s.count(Delete) }

func (s *Summary) count(op Op) int {
	n := 0
	for _, r := range s.Runs {
		if r.Op == op {
			n += len(r.Lines)
		}
	}
	return n
}

func opFor(t diffmatchpatch.Operation) Op {
	switch t {
	case diffmatchpatch.DiffInsert:
		return Insert
	case diffmatchpatch.DiffDelete:
		return Delete
	default:
		return Equal
	}
}

// splitLines splits text on line terminators, dropping the empty artifact
// that follows a trailing terminator. CRLF is rendered as LF: a change that
// only swaps line endings is still a change, but both sides display the
// same text.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func appendContent(dst, lines []string) []string {
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		dst = append(dst, l)
	}
	return dst
}
