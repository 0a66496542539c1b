package codegen

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"variantgen/internal/enum"
	"variantgen/internal/logging"
)

const rustTemplate = `{{.Header}}
{{range .Enums}}
impl {{.Name}} {
    pub fn {{$.Method}}() -> std::array::IntoIter<{{.Name}}, {{.Len}}> {
        [{{join .Exprs ", "}}].into_iter()
    }
}
{{end}}`

type rustEnumData struct {
	Name  string
	Len   int
	Exprs []string
}

type rustFileData struct {
	Header string
	Method string
	Enums  []rustEnumData
}

// RustGenerator renders an inherent impl per enum returning a fixed-size
// array iterator. The output is meant to be pulled in with include!.
type RustGenerator struct {
	opts Options
	tmpl *template.Template
}

// NewRustGenerator creates a Rust generator.
func NewRustGenerator(opts Options) *RustGenerator {
	return &RustGenerator{
		opts: opts,
		tmpl: template.Must(template.New("rust").
			Funcs(template.FuncMap{"join": strings.Join}).
			Parse(rustTemplate)),
	}
}

// Language returns enum.LangRust.
func (g *RustGenerator) Language() enum.Lang {
	return enum.LangRust
}

// OutputName returns <stem><suffix>.rs for the file d was declared in, so
// every enum of one source file lands in the same output.
func (g *RustGenerator) OutputName(d *enum.Descriptor) string {
	stem := d.Package
	if d.Span.File != "" {
		base := filepath.Base(d.Span.File)
		stem = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return stem + g.opts.OutputSuffix + ".rs"
}

// Generate renders one impl block per descriptor.
func (g *RustGenerator) Generate(descs ...*enum.Descriptor) ([]byte, error) {
	if err := validateGroup(enum.LangRust, descs); err != nil {
		return nil, err
	}

	data := rustFileData{Header: Header, Method: g.opts.RustMethodName}
	for _, d := range descs {
		e := rustEnumData{Name: d.Name, Len: d.Len(), Exprs: make([]string, 0, d.Len())}
		for _, v := range d.Variants {
			e.Exprs = append(e.Exprs, v.Expr)
		}
		data.Enums = append(data.Enums, e)
		logging.CodegenDebug("RustGenerator: %s with %d variants", d.Name, d.Len())
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", descs[0].Name, err)
	}
	return buf.Bytes(), nil
}
