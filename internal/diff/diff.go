// Package diff renders unified diffs between a generated file on disk and
// its freshly generated replacement. Line matching uses sergi/go-diff.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is the kind of a diff line.
type Op int

const (
	OpEqual Op = iota
	OpDelete
	OpInsert
)

func (o Op) prefix() string {
	switch o {
	case OpDelete:
		return "-"
	case OpInsert:
		return "+"
	}
	return " "
}

// Line is one line of a line-level diff.
type Line struct {
	Op   Op
	Text string
}

// Hunk is a run of changes with surrounding context.
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Lines computes a line-level diff of oldText and newText.
func Lines(oldText, newText string) []Line {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // exact result; generated files are small

	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var out []Line
	for _, d := range diffs {
		op := OpEqual
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		}
		for _, text := range strings.SplitAfter(d.Text, "\n") {
			if text == "" {
				continue
			}
			out = append(out, Line{Op: op, Text: strings.TrimSuffix(text, "\n")})
		}
	}
	return out
}

// Hunks groups changed lines, keeping context unchanged lines around each
// change. Changes closer than 2*context lines share a hunk.
func Hunks(lines []Line, context int) []Hunk {
	var changes []int
	for i, l := range lines {
		if l.Op != OpEqual {
			changes = append(changes, i)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	var hunks []Hunk
	first := changes[0]
	last := changes[0]
	flush := func() {
		start := max(0, first-context)
		end := min(len(lines), last+context+1)
		hunks = append(hunks, newHunk(lines, start, end))
	}
	for _, idx := range changes[1:] {
		if idx-last > 2*context {
			flush()
			first = idx
		}
		last = idx
	}
	flush()
	return hunks
}

func newHunk(lines []Line, start, end int) Hunk {
	var oldBefore, newBefore int
	for _, l := range lines[:start] {
		if l.Op != OpInsert {
			oldBefore++
		}
		if l.Op != OpDelete {
			newBefore++
		}
	}

	h := Hunk{Lines: lines[start:end]}
	for _, l := range h.Lines {
		if l.Op != OpInsert {
			h.OldCount++
		}
		if l.Op != OpDelete {
			h.NewCount++
		}
	}
	h.OldStart = oldBefore
	if h.OldCount > 0 {
		h.OldStart++
	}
	h.NewStart = newBefore
	if h.NewCount > 0 {
		h.NewStart++
	}
	return h
}

// Unified renders a unified diff with three lines of context. It returns
// "" when the texts are equal.
func Unified(oldPath, newPath, oldText, newText string) string {
	hunks := Hunks(Lines(oldText, newText), 3)
	if len(hunks) == 0 {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", oldPath, newPath)
	for _, h := range hunks {
		fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
		for _, l := range h.Lines {
			sb.WriteString(l.Op.prefix())
			sb.WriteString(l.Text)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
