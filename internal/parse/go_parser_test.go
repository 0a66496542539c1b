package parse

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"variantgen/internal/enum"
)

func writePackage(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func newGoParser() *GoCodeParser {
	return NewGoCodeParser(DefaultOptions())
}

const grammarSource = `package grammar

type GrammarElements int

const (
	Expr GrammarElements = iota
	Factor
	Term
)
`

func TestGoCodeParser_ConstEnumKeepsDeclarationOrder(t *testing.T) {
	dir := writePackage(t, map[string]string{"grammar.go": grammarSource})

	descs, err := newGoParser().ParseDir(dir, []string{"GrammarElements"})
	require.NoError(t, err)
	require.Len(t, descs, 1)

	d := descs[0]
	assert.Equal(t, "GrammarElements", d.Name)
	assert.Equal(t, "grammar", d.Package)
	assert.Equal(t, enum.KindConst, d.Kind)
	assert.Equal(t, enum.LangGo, d.Lang)
	assert.Equal(t, []string{"Expr", "Factor", "Term"}, d.Names())
	assert.Equal(t, 3, d.Len())

	assert.Equal(t, filepath.Join(dir, "grammar.go"), d.Span.File)
	assert.Equal(t, 3, d.Span.Line)
	assert.Equal(t, 6, d.Span.Column)
	assert.Equal(t, 6, d.Variants[0].Span.Line)
	assert.Equal(t, "Term", d.Variants[2].Expr)
	require.NoError(t, d.Validate())
}

func TestGoCodeParser_ConstCollectionRules(t *testing.T) {
	dir := writePackage(t, map[string]string{
		"a_kind.go": `package kinds

type Kind uint8

const (
	_ Kind = iota
	KindA
	KindB
)

const Unrelated = 7

const (
	Other  = 1
	NotOne
)
`,
		"b_more.go": `package kinds

const KindC = Kind(10)

const (
	KindD Kind = 20
	KindE, KindF Kind = 21, 22
	plain = "x"
	still = "y"
)

var KindVar Kind = 3
`,
	})

	descs, err := newGoParser().ParseDir(dir, []string{"Kind"})
	require.NoError(t, err)
	require.Len(t, descs, 1)

	want := []string{"KindA", "KindB", "KindC", "KindD", "KindE", "KindF"}
	if diff := cmp.Diff(want, descs[0].Names()); diff != "" {
		t.Errorf("variants mismatch (-want +got):\n%s", diff)
	}
}

func TestGoCodeParser_StringAndNamedUnderlying(t *testing.T) {
	dir := writePackage(t, map[string]string{"str.go": `package str

type BaseStringEnum string
type StringEnum BaseStringEnum

const (
	FIRST  StringEnum = "first one"
	SECOND StringEnum = "one more"
)
`})

	descs, err := newGoParser().ParseDir(dir, []string{"StringEnum"})
	require.NoError(t, err)
	assert.Equal(t, []string{"FIRST", "SECOND"}, descs[0].Names())
}

func TestGoCodeParser_EmptyEnum(t *testing.T) {
	dir := writePackage(t, map[string]string{"empty.go": "package empty\n\ntype Nothing int\n"})

	descs, err := newGoParser().ParseDir(dir, []string{"Nothing"})
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, 0, descs[0].Len())
	assert.NotNil(t, descs[0].Variants)
}

func TestGoCodeParser_NotAnEnum(t *testing.T) {
	dir := writePackage(t, map[string]string{"types.go": `package types

type Point struct{ X, Y int }

type Handler func()

type Names []string

type Alias = int

type Box[T any] int

type Reader interface {
	Read() error
}

type Flag bool
`})

	for _, name := range []string{"Point", "Handler", "Names", "Alias", "Box", "Reader", "Flag"} {
		t.Run(name, func(t *testing.T) {
			descs, err := newGoParser().ParseDir(dir, []string{name})
			require.Error(t, err)
			assert.Empty(t, descs)

			var notEnum *enum.NotAnEnumError
			require.True(t, errors.As(err, &notEnum), "got %v", err)
			assert.Equal(t, name, notEnum.Name)
			assert.Equal(t, "derive macro only works on enums", err.Error())
			assert.True(t, notEnum.Span.IsValid())
		})
	}
}

func TestGoCodeParser_UnderlyingFromOtherPackage(t *testing.T) {
	dir := writePackage(t, map[string]string{"clock.go": `package clock

import (
	"time"

	tm "time"
)

type Wait time.Duration

type Month tm.Month

type Clock time.Timer

const (
	Short Wait = Wait(time.Second)
	Long  Wait = Wait(time.Minute)
)
`})

	descs, err := newGoParser().ParseDir(dir, []string{"Wait", "Month", "Clock"})
	require.Error(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, []string{"Short", "Long"}, descs[0].Names())
	assert.Equal(t, "Month", descs[1].Name)

	var notEnum *enum.NotAnEnumError
	require.True(t, errors.As(err, &notEnum), "got %v", err)
	assert.Equal(t, "Clock", notEnum.Name)
	assert.Equal(t, enum.MsgNotAnEnum, err.Error())
}

func TestGoCodeParser_UnresolvableImport(t *testing.T) {
	dir := writePackage(t, map[string]string{"x.go": `package x

type Opaque missing.Type
`})

	_, err := newGoParser().ParseDir(dir, []string{"Opaque"})
	require.Error(t, err)
	_, isDiag := enum.Diagnostics(err)
	assert.False(t, isDiag)
	assert.Contains(t, err.Error(), "missing.Type")
}

func TestGoCodeParser_HonorsBuildConstraints(t *testing.T) {
	other := "plan9"
	if runtime.GOOS == other {
		other = "windows"
	}
	current := "sig_" + runtime.GOOS + ".go"

	dir := writePackage(t, map[string]string{
		"sig.go": "package sig\n\ntype Sig int\n",
		current:  "package sig\n\nconst Hup Sig = 1\n",
		"sig_" + other + ".go": "package sig\n\nconst Hup Sig = 2\n",
		"tagged.go": "//go:build never\n\npackage sig\n\nconst Int Sig = 3\n",
		"gen.go":    "//go:build ignore\n\npackage main\n\nfunc main() {}\n",
	})

	descs, err := newGoParser().ParseDir(dir, []string{"Sig"})
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, []string{"Hup"}, descs[0].Names())
	assert.Equal(t, filepath.Join(dir, current), descs[0].Variants[0].Span.File)
	require.NoError(t, descs[0].Validate())
}

const shapeSource = `package geo

type Shape interface {
	isShape()
}

type Circle struct{}

type Square struct {
}

type Dot struct{}

func (Square) isShape() {}
func (Circle) isShape() {}
func (*Dot) isShape()   {}

type NotAVariant struct{}
`

func TestGoCodeParser_SealedSumType(t *testing.T) {
	dir := writePackage(t, map[string]string{"shape.go": shapeSource})

	descs, err := newGoParser().ParseDir(dir, []string{"Shape"})
	require.NoError(t, err)
	require.Len(t, descs, 1)

	d := descs[0]
	assert.Equal(t, enum.KindSealed, d.Kind)
	assert.Equal(t, []string{"Circle", "Square", "Dot"}, d.Names())

	exprs := make([]string, 0, d.Len())
	for _, v := range d.Variants {
		exprs = append(exprs, v.Expr)
	}
	assert.Equal(t, []string{"Circle{}", "Square{}", "&Dot{}"}, exprs)
}

func TestGoCodeParser_SealedVariantWithFields(t *testing.T) {
	tests := []struct {
		name    string
		variant string
		want    string
	}{
		{
			name:    "named fields",
			variant: "type Circle struct {\n\tR    float64\n\tX, Y int\n}\n",
			want:    "variant(Circle) expects exactly 0 fields, got 3",
		},
		{
			name:    "embedded field",
			variant: "type Circle struct {\n\tfmt.Stringer\n}\n",
			want:    "variant(Circle) expects exactly 0 fields, got 1",
		},
		{
			name:    "defined non-struct",
			variant: "type Circle float64\n",
			want:    "variant(Circle) expects exactly 0 fields, got 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "package geo\n\nimport \"fmt\"\n\nvar _ fmt.Stringer\n\ntype Shape interface{ isShape() }\n\n" +
				tt.variant + "\nfunc (Circle) isShape() {}\n"
			dir := writePackage(t, map[string]string{"shape.go": src})

			_, err := newGoParser().ParseDir(dir, []string{"Shape"})
			require.Error(t, err)

			var hasFields *enum.VariantHasFieldsError
			require.True(t, errors.As(err, &hasFields), "got %v", err)
			assert.Equal(t, "Circle", hasFields.Variant)
			assert.Equal(t, tt.want, err.Error())
			assert.Equal(t, 9, hasFields.Span.Line)
		})
	}
}

func TestGoCodeParser_DirectiveSelection(t *testing.T) {
	dir := writePackage(t, map[string]string{
		"a.go": `package sel

// Color is picked up.
//
//variantgen:enumerate
type Color int

const (
	Red Color = iota
	Green
)

type Ignored int

const IgnoredA Ignored = 0
`,
		"b.go": `package sel

type (
	// Size is picked up too.
	//variantgen:enumerate
	Size string
	Weight int
)

const Small Size = "s"
`,
	})

	descs, err := newGoParser().ParseDir(dir, nil)
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, "Color", descs[0].Name)
	assert.Equal(t, "Size", descs[1].Name)
	assert.Equal(t, []string{"Small"}, descs[1].Names())
}

func TestGoCodeParser_ParseFile(t *testing.T) {
	src := []byte("package one\n\n//variantgen:enumerate\ntype Level int\n\nconst (\n\tLow Level = iota\n\tHigh\n)\n")

	descs, err := newGoParser().ParseFile("level.go", src)
	require.NoError(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, []string{"Low", "High"}, descs[0].Names())
	assert.Equal(t, "level.go", descs[0].Span.File)
}

func TestGoCodeParser_SkipsTestsAndGeneratedFiles(t *testing.T) {
	dir := writePackage(t, map[string]string{
		"grammar.go":          grammarSource,
		"grammar_test.go":     "package grammar_test\n",
		"grammar_variants.go": "package grammar\n\nconst Bogus GrammarElements = 9\n",
		"README.md":           "# not go",
	})

	descs, err := newGoParser().ParseDir(dir, []string{"GrammarElements"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Expr", "Factor", "Term"}, descs[0].Names())
}

func TestGoCodeParser_Errors(t *testing.T) {
	t.Run("type not found", func(t *testing.T) {
		dir := writePackage(t, map[string]string{"grammar.go": grammarSource})
		_, err := newGoParser().ParseDir(dir, []string{"Missing"})
		assert.ErrorIs(t, err, ErrTypeNotFound)
	})

	t.Run("syntax", func(t *testing.T) {
		dir := writePackage(t, map[string]string{"bad.go": "package bad\n\ntype {\n"})
		_, err := newGoParser().ParseDir(dir, []string{"X"})
		assert.ErrorIs(t, err, ErrSyntax)
	})

	t.Run("no sources", func(t *testing.T) {
		_, err := newGoParser().ParseDir(t.TempDir(), nil)
		assert.ErrorIs(t, err, ErrNoSources)
	})

	t.Run("mixed packages", func(t *testing.T) {
		dir := writePackage(t, map[string]string{"a.go": "package a\n", "b.go": "package b\n"})
		_, err := newGoParser().ParseDir(dir, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "multiple packages")
	})
}

func TestGoCodeParser_ReportsEveryFailingDeclaration(t *testing.T) {
	dir := writePackage(t, map[string]string{"mixed.go": grammarSource + `
type Point struct{}

type Pair struct{ A, B int }
`})

	descs, err := newGoParser().ParseDir(dir, []string{"Point", "GrammarElements", "Pair"})
	require.Error(t, err)
	require.Len(t, descs, 1)
	assert.Equal(t, "GrammarElements", descs[0].Name)

	diags, ok := enum.Diagnostics(err)
	require.True(t, ok)
	require.Len(t, diags, 2)
	assert.Equal(t, 11, diags[0].Span.Line)
	assert.Equal(t, 13, diags[1].Span.Line)
}
