package driver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"variantgen/internal/codegen"
	"variantgen/internal/config"
	"variantgen/internal/parse"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const grammarSource = `package grammar

//variantgen:enumerate
type GrammarElements int

const (
	Expr GrammarElements = iota
	Factor
	Term
)
`

func newDriver(out *bytes.Buffer) *Driver {
	opts := OptionsFromConfig(config.DefaultConfig())
	opts.Workers = 2
	opts.Out = nil
	if out != nil {
		opts.Out = out
	}
	return New(opts)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDriver_GeneratesAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "grammar.go", grammarSource)
	d := newDriver(nil)

	report, err := d.Run(context.Background(), Request{Targets: []string{dir}})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	res := report.Results[0]
	assert.Equal(t, StateDone, res.State)
	require.Len(t, res.Files, 1)
	assert.Equal(t, StatusWritten, res.Files[0].Status)
	assert.Equal(t, []string{"GrammarElements"}, res.Files[0].Enums)

	outPath := filepath.Join(dir, "grammarelements_variants.go")
	assert.Equal(t, outPath, res.Files[0].Path)
	first, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(first), codegen.Header))
	assert.Contains(t, string(first), "[3]GrammarElements{\n\tExpr,\n\tFactor,\n\tTerm,\n}")

	report, err = d.Run(context.Background(), Request{Targets: []string{dir}})
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, report.Results[0].Files[0].Status)

	second, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDriver_ExplicitTypesAndGoFileTarget(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, dir, "grammar.go", strings.Replace(grammarSource, "//variantgen:enumerate\n", "", 1))

	report, err := newDriver(nil).Run(context.Background(), Request{
		Targets: []string{src},
		Types:   []string{"GrammarElements"},
	})
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.Results[0].State)
	assert.FileExists(t, filepath.Join(dir, "grammarelements_variants.go"))
}

func TestDriver_NotAnEnumWritesNothing(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "types.go", grammarSource+`
//variantgen:enumerate
type Point struct{ X, Y int }
`)

	report, err := newDriver(nil).Run(context.Background(), Request{Targets: []string{dir}})
	require.Error(t, err)

	var diagErr *DiagnosticsError
	require.True(t, errors.As(err, &diagErr))
	require.Len(t, diagErr.Diagnostics, 1)
	assert.Equal(t, path+":13:6: derive macro only works on enums", diagErr.Error())

	res := report.Results[0]
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, res.Files)
	assert.NoFileExists(t, filepath.Join(dir, "grammarelements_variants.go"))
	assert.NoFileExists(t, filepath.Join(dir, "point_variants.go"))
}

func TestDriver_Rust(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "main.rs", `#[derive(VariantEnumerator, Debug)]
enum GrammarElements {
    Expr,
    Factor,
    Term,
}
`)
	bad := writeFile(t, dir, "bad.rs", "#[derive(VariantEnumerator)]\nenum Bad {\n    A(i32),\n}\n")

	report, err := newDriver(nil).Run(context.Background(), Request{Targets: []string{bad, good}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variant(A) expects exactly 0 fields, got 1")
	assert.Contains(t, err.Error(), bad+":3:6")

	require.Len(t, report.Results, 2)
	assert.Equal(t, bad, report.Results[0].Target)
	assert.Equal(t, StateFailed, report.Results[0].State)
	assert.Equal(t, StateDone, report.Results[1].State)
	assert.NoFileExists(t, filepath.Join(dir, "bad_variants.rs"))

	out, err := os.ReadFile(filepath.Join(dir, "main_variants.rs"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "std::array::IntoIter<GrammarElements, 3>")
	assert.Contains(t, string(out), "[GrammarElements::Expr, GrammarElements::Factor, GrammarElements::Term].into_iter()")
}

func TestDriver_CheckMode(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "grammar.go", grammarSource)
	d := newDriver(nil)

	report, err := d.Run(context.Background(), Request{Targets: []string{dir}, Check: true})
	require.ErrorIs(t, err, ErrStale)
	assert.Equal(t, StatusStale, report.Results[0].Files[0].Status)
	assert.NotEmpty(t, report.Results[0].Files[0].Diff)
	assert.NoFileExists(t, filepath.Join(dir, "grammarelements_variants.go"))

	_, err = d.Run(context.Background(), Request{Targets: []string{dir}})
	require.NoError(t, err)

	report, err = d.Run(context.Background(), Request{Targets: []string{dir}, Check: true})
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, report.Results[0].Files[0].Status)
}

func TestDriver_Stdout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "grammar.go", grammarSource)
	var out bytes.Buffer

	report, err := newDriver(&out).Run(context.Background(), Request{Targets: []string{dir}, Stdout: true})
	require.NoError(t, err)
	assert.Equal(t, StatusPrinted, report.Results[0].Files[0].Status)
	assert.Contains(t, out.String(), "func (GrammarElements) EnumerateVariants()")
	assert.NoFileExists(t, filepath.Join(dir, "grammarelements_variants.go"))
}

func TestDriver_ManyTargetsKeepRequestOrder(t *testing.T) {
	var targets []string
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		dir := filepath.Join(t.TempDir(), name)
		require.NoError(t, os.MkdirAll(dir, 0755))
		writeFile(t, dir, "grammar.go", grammarSource)
		targets = append(targets, dir)
	}

	report, err := newDriver(nil).Run(context.Background(), Request{Targets: targets})
	require.NoError(t, err)
	require.Len(t, report.Results, len(targets))
	for i, res := range report.Results {
		assert.Equal(t, targets[i], res.Target)
		assert.Equal(t, StateDone, res.State)
	}
	assert.Equal(t, 5, report.Count(StateDone))
	assert.Len(t, report.Files(), 5)
	assert.Equal(t, "parsing=0 generating=0 done=5 failed=0", report.Summary())
}

func TestDriver_NonDiagnosticErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "grammar.go", grammarSource)

	report, err := newDriver(nil).Run(context.Background(), Request{
		Targets: []string{dir, filepath.Join(dir, "missing.rs")},
		Types:   []string{"Nope"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, parse.ErrTypeNotFound)

	var diagErr *DiagnosticsError
	assert.False(t, errors.As(err, &diagErr))
	assert.Equal(t, 2, report.Count(StateFailed))
}

func TestDriver_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "grammar.go", grammarSource)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newDriver(nil).Run(ctx, Request{Targets: []string{dir, dir}})
	require.ErrorIs(t, err, context.Canceled)
	for _, res := range report.Results {
		assert.Equal(t, StateFailed, res.State)
	}
	assert.NoFileExists(t, filepath.Join(dir, "grammarelements_variants.go"))
}

func TestDriver_Describe(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "grammar.go", grammarSource)
	rs := writeFile(t, dir, "shapes.rs", "#[derive(VariantEnumerator)]\nstruct NotEnum;\n")

	descs, err := newDriver(nil).Describe(context.Background(), []string{dir, rs}, nil)
	require.Error(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, []string{"Expr", "Factor", "Term"}, descs[0].Names())

	var diagErr *DiagnosticsError
	require.True(t, errors.As(err, &diagErr))
	assert.Equal(t, rs+":2:1: derive macro only works on enums", diagErr.Error())
}
