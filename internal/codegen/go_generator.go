package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"strings"
	"text/template"

	"variantgen/internal/enum"
	"variantgen/internal/logging"
)

const goTemplate = `{{.Header}}

package {{.Package}}
{{range .Enums}}
var _{{.Name}}_variants = [{{.Len}}]{{.Name}}{
{{- range .Exprs}}
	{{.}},
{{- end}}
}

const _{{.Name}}_variantCount = {{.Len}}

{{if .Sealed -}}
// {{.Accessor}} returns an iterator over every {{.Name}} variant in
// declaration order. The iterator is single-use.
func {{.Accessor}}() func(yield func({{.Name}}) bool) {
{{- else -}}
// {{.Accessor}} returns an iterator over every {{.Name}} value in
// declaration order. The iterator is single-use.
func ({{.Name}}) {{.Accessor}}() func(yield func({{.Name}}) bool) {
{{- end}}
	used := false
	return func(yield func({{.Name}}) bool) {
		if used {
			return
		}
		used = true
		for _, v := range _{{.Name}}_variants {
			if !yield(v) {
				return
			}
		}
	}
}
{{end}}`

type goEnumData struct {
	Name     string
	Accessor string
	Sealed   bool
	Len      int
	Exprs    []string
}

type goFileData struct {
	Header  string
	Package string
	Enums   []goEnumData
}

// GoGenerator renders Go enumerators. Const enums get a method on the type;
// sealed sum types get a package function since interfaces cannot carry
// methods.
type GoGenerator struct {
	opts Options
	tmpl *template.Template
}

// NewGoGenerator creates a Go generator.
func NewGoGenerator(opts Options) *GoGenerator {
	return &GoGenerator{
		opts: opts,
		tmpl: template.Must(template.New("go").Parse(goTemplate)),
	}
}

// Language returns enum.LangGo.
func (g *GoGenerator) Language() enum.Lang {
	return enum.LangGo
}

// OutputName returns the file name for d, e.g. shape_variants.go.
func (g *GoGenerator) OutputName(d *enum.Descriptor) string {
	return strings.ToLower(d.Name) + g.opts.OutputSuffix + ".go"
}

// Accessor returns the name of the generated accessor for d.
func (g *GoGenerator) Accessor(d *enum.Descriptor) string {
	if d.Kind == enum.KindSealed {
		return sealedAccessor(g.opts.MethodName, d.Name)
	}
	return g.opts.MethodName
}

// Generate renders one gofmt-ed file holding an enumerator per descriptor.
// All descriptors must belong to the same package.
func (g *GoGenerator) Generate(descs ...*enum.Descriptor) ([]byte, error) {
	if err := validateGroup(enum.LangGo, descs); err != nil {
		return nil, err
	}
	timer := logging.StartTimer(logging.CategoryCodegen, "GoGenerator.Generate")
	defer timer.Stop()

	data := goFileData{Header: Header, Package: descs[0].Package}
	for _, d := range descs {
		if d.Kind == enum.KindRustEnum {
			return nil, fmt.Errorf("%w: %s is a Rust enum", ErrInvalidDescriptor, d.Name)
		}
		e := goEnumData{
			Name:     d.Name,
			Accessor: g.Accessor(d),
			Sealed:   d.Kind == enum.KindSealed,
			Len:      d.Len(),
			Exprs:    make([]string, 0, d.Len()),
		}
		for _, v := range d.Variants {
			e.Exprs = append(e.Exprs, v.Expr)
		}
		data.Enums = append(data.Enums, e)
		logging.CodegenDebug("GoGenerator: %s.%s with %d variants", d.Package, d.Name, d.Len())
	}

	var buf bytes.Buffer
	if err := g.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", descs[0].Name, err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to format generated code for %s: %w", descs[0].Name, err)
	}
	return src, nil
}
