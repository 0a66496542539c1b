package diff

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLines_SimpleAddition(t *testing.T) {
	lines := Lines("line1\nline2\nline3\n", "line1\nline2\nline2.5\nline3\n")

	want := []Line{
		{OpEqual, "line1"},
		{OpEqual, "line2"},
		{OpInsert, "line2.5"},
		{OpEqual, "line3"},
	}
	assert.Equal(t, want, lines)
}

func TestUnified_Identical(t *testing.T) {
	assert.Empty(t, Unified("a", "b", "same\n", "same\n"))
}

func TestUnified_NewFile(t *testing.T) {
	got := Unified("x_variants.go", "x_variants.go (generated)", "", "a\nb\n")
	assert.Equal(t, "--- x_variants.go\n+++ x_variants.go (generated)\n@@ -0,0 +1,2 @@\n+a\n+b\n", got)
}

func TestUnified_Replacement(t *testing.T) {
	old := "package p\n\nvar x = [2]T{\n\tA,\n\tB,\n}\n"
	updated := "package p\n\nvar x = [3]T{\n\tA,\n\tB,\n\tC,\n}\n"

	got := Unified("old", "new", old, updated)
	assert.Contains(t, got, "-var x = [2]T{\n+var x = [3]T{\n")
	assert.Contains(t, got, "+\tC,\n")
	assert.Equal(t, 1, strings.Count(got, "@@ -"))
}

func TestHunks_SeparatesDistantChanges(t *testing.T) {
	var old, updated []string
	for i := 0; i < 20; i++ {
		line := strings.Repeat("x", i+1)
		old = append(old, line)
		updated = append(updated, line)
	}
	updated[1] = "changed-top"
	updated[18] = "changed-bottom"

	hunks := Hunks(Lines(strings.Join(old, "\n")+"\n", strings.Join(updated, "\n")+"\n"), 3)
	require.Len(t, hunks, 2)

	assert.Equal(t, 1, hunks[0].OldStart)
	assert.Equal(t, 5, hunks[0].OldCount)
	assert.Equal(t, 5, hunks[0].NewCount)
	assert.Equal(t, 16, hunks[1].OldStart)
	assert.Equal(t, 5, hunks[1].OldCount)
}
