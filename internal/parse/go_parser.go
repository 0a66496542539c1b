package parse

import (
	"errors"
	"fmt"
	"go/ast"
	"go/build"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"variantgen/internal/enum"
	"variantgen/internal/logging"
)

// GoCodeParser implements CodeParser for Go source.
// Declarations are read with go/ast. Only underlying types declared in other
// packages are resolved with go/types, by importing that one package from
// source.
type GoCodeParser struct {
	directive    string
	outputSuffix string
	buildCtx     *build.Context
}

// NewGoCodeParser creates a Go parser. Files are selected with the default
// build context, as the go command would for the host platform.
func NewGoCodeParser(opts Options) *GoCodeParser {
	return &GoCodeParser{
		directive:    opts.Directive,
		outputSuffix: opts.OutputSuffix,
		buildCtx:     &build.Default,
	}
}

// Language returns enum.LangGo.
func (p *GoCodeParser) Language() enum.Lang {
	return enum.LangGo
}

// SupportedExtensions returns [".go"].
func (p *GoCodeParser) SupportedExtensions() []string {
	return []string{".go"}
}

// goPackage is the parsed view of one package directory.
type goPackage struct {
	name  string
	dir   string
	fset  *token.FileSet
	files []*ast.File // sorted by file name

	types  map[string]*ast.TypeSpec
	fileOf map[string]*ast.File // type name -> declaring file
	order  []string             // type names in declaration order

	importer types.ImporterFrom
	imported map[string]*types.Package
}

// ParseFile extracts directive-marked declarations from a single file.
func (p *GoCodeParser) ParseFile(path string, content []byte) ([]*enum.Descriptor, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	pkg := newGoPackage(fset, filepath.Dir(path), file.Name.Name, []*ast.File{file})
	return p.describe(pkg, nil)
}

// ParseDir parses every non-test, non-generated Go file in dir as one
// package and describes typeNames, or every directive-marked type when
// typeNames is empty. Descriptors are returned in the order requested, or in
// declaration order for directive selection.
func (p *GoCodeParser) ParseDir(dir string, typeNames []string) ([]*enum.Descriptor, error) {
	start := time.Now()
	pkg, err := p.loadDir(dir)
	if err != nil {
		return nil, err
	}
	logging.ParseDebug("GoCodeParser: package=%s files=%d types=%d in %s",
		pkg.name, len(pkg.files), len(pkg.order), dir)

	descs, err := p.describe(pkg, typeNames)
	logging.ParseDebug("GoCodeParser: described %d enums in %s (%v)", len(descs), dir, time.Since(start))
	return descs, err
}

func (p *GoCodeParser) loadDir(dir string) (*goPackage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read package dir: %w", err)
	}

	fset := token.NewFileSet()
	var files []*ast.File
	pkgName := ""
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !p.isSourceFile(name) {
			continue
		}
		match, err := p.buildCtx.MatchFile(dir, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read build constraints: %w", err)
		}
		if !match {
			logging.ParseDebug("GoCodeParser: %s excluded by build constraints", name)
			continue
		}
		path := filepath.Join(dir, name)
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		if pkgName == "" {
			pkgName = file.Name.Name
		} else if file.Name.Name != pkgName {
			return nil, fmt.Errorf("multiple packages in %s: %s and %s", dir, pkgName, file.Name.Name)
		}
		files = append(files, file)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s has no Go files", ErrNoSources, dir)
	}
	return newGoPackage(fset, dir, pkgName, files), nil
}

// isSourceFile skips tests, non-Go files and our own output.
func (p *GoCodeParser) isSourceFile(name string) bool {
	if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
		return false
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return false
	}
	return p.outputSuffix == "" || !strings.HasSuffix(name, p.outputSuffix+".go")
}

func newGoPackage(fset *token.FileSet, dir, name string, files []*ast.File) *goPackage {
	sort.SliceStable(files, func(i, j int) bool {
		return fset.Position(files[i].Pos()).Filename < fset.Position(files[j].Pos()).Filename
	})
	pkg := &goPackage{
		name:     name,
		dir:      dir,
		fset:     fset,
		files:    files,
		types:    make(map[string]*ast.TypeSpec),
		fileOf:   make(map[string]*ast.File),
		imported: make(map[string]*types.Package),
	}
	for _, file := range files {
		for _, decl := range file.Decls {
			genDecl, ok := decl.(*ast.GenDecl)
			if !ok || genDecl.Tok != token.TYPE {
				continue
			}
			for _, spec := range genDecl.Specs {
				ts := spec.(*ast.TypeSpec)
				// A lone type spec keeps its doc comment on the GenDecl.
				if ts.Doc == nil && genDecl.Lparen == 0 {
					ts.Doc = genDecl.Doc
				}
				if _, dup := pkg.types[ts.Name.Name]; !dup {
					pkg.order = append(pkg.order, ts.Name.Name)
				}
				pkg.types[ts.Name.Name] = ts
				pkg.fileOf[ts.Name.Name] = file
			}
		}
	}
	return pkg
}

func (pkg *goPackage) span(pos token.Pos) enum.Span {
	position := pkg.fset.Position(pos)
	return enum.Span{
		File:   position.Filename,
		Line:   position.Line,
		Column: position.Column,
		Offset: position.Offset,
	}
}

// describe builds descriptors for the selected types. Diagnostics from
// every failing declaration are joined; successful descriptors are still
// returned so callers can report them.
func (p *GoCodeParser) describe(pkg *goPackage, typeNames []string) ([]*enum.Descriptor, error) {
	selected := typeNames
	if len(selected) == 0 {
		selected = p.directiveTypes(pkg)
	}

	var descs []*enum.Descriptor
	var errs []error
	for _, name := range selected {
		ts, ok := pkg.types[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s in package %s", ErrTypeNotFound, name, pkg.name)
		}
		desc, err := p.describeType(pkg, ts)
		if err != nil {
			logging.ParseDebug("GoCodeParser: %s rejected: %v", name, err)
			errs = append(errs, err)
			continue
		}
		descs = append(descs, desc)
	}
	return descs, errors.Join(errs...)
}

// directiveTypes returns the types whose doc comment carries the directive.
func (p *GoCodeParser) directiveTypes(pkg *goPackage) []string {
	var names []string
	for _, name := range pkg.order {
		if hasDirective(pkg.types[name].Doc, p.directive) {
			names = append(names, name)
		}
	}
	return names
}

func hasDirective(doc *ast.CommentGroup, directive string) bool {
	if doc == nil || directive == "" {
		return false
	}
	want := "//" + directive
	for _, c := range doc.List {
		text := strings.TrimSpace(c.Text)
		if text == want || strings.HasPrefix(text, want+" ") {
			return true
		}
	}
	return false
}

func (p *GoCodeParser) describeType(pkg *goPackage, ts *ast.TypeSpec) (*enum.Descriptor, error) {
	name := ts.Name.Name
	notEnum := &enum.NotAnEnumError{Span: pkg.span(ts.Name.Pos()), Name: name}

	if ts.Assign.IsValid() || ts.TypeParams != nil {
		return nil, notEnum
	}

	desc := &enum.Descriptor{
		Span:    pkg.span(ts.Name.Pos()),
		Name:    name,
		Lang:    enum.LangGo,
		Package: pkg.name,
	}

	switch t := ast.Unparen(ts.Type).(type) {
	case *ast.Ident, *ast.SelectorExpr:
		ok, err := pkg.isConstUnderlying(t, pkg.fileOf[name], 0)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, notEnum
		}
		desc.Kind = enum.KindConst
		desc.Variants = pkg.constVariants(name)

	case *ast.InterfaceType:
		marker, ok := sealedMarker(t)
		if !ok {
			return nil, notEnum
		}
		desc.Kind = enum.KindSealed
		variants, err := pkg.sealedVariants(marker)
		if err != nil {
			return nil, err
		}
		desc.Variants = variants

	default:
		return nil, notEnum
	}

	logging.ParseDebug("GoCodeParser: %s.%s is a %s enum with %d variants", pkg.name, name, desc.Kind, desc.Len())
	return desc, nil
}

// basicKinds are the predeclared types a const enum may be built on.
var basicKinds = map[string]bool{
	"int": true, "int8": true, "int16": true, "int32": true, "int64": true,
	"uint": true, "uint8": true, "uint16": true, "uint32": true, "uint64": true, "uintptr": true,
	"float32": true, "float64": true,
	"string": true, "byte": true, "rune": true,
}

// isConstUnderlying reports whether a type expression can carry typed
// constants. file is the file the expression appears in, for import lookup.
func (pkg *goPackage) isConstUnderlying(expr ast.Expr, file *ast.File, depth int) (bool, error) {
	if depth > 8 {
		return false, nil
	}
	switch t := ast.Unparen(expr).(type) {
	case *ast.SelectorExpr:
		return pkg.isBasicSelector(t, file)
	case *ast.Ident:
		if basicKinds[t.Name] {
			return true, nil
		}
		if ts, ok := pkg.types[t.Name]; ok && ts.TypeParams == nil {
			return pkg.isConstUnderlying(ts.Type, pkg.fileOf[t.Name], depth+1)
		}
	}
	return false, nil
}

// isBasicSelector resolves pkg.Type from another package and reports whether
// its underlying type is a numeric or string basic type.
func (pkg *goPackage) isBasicSelector(sel *ast.SelectorExpr, file *ast.File) (bool, error) {
	x, ok := sel.X.(*ast.Ident)
	if !ok || file == nil {
		return false, nil
	}
	imported, err := pkg.importNamed(file, x.Name)
	if err != nil {
		return false, fmt.Errorf("failed to resolve %s.%s: %w", x.Name, sel.Sel.Name, err)
	}
	tn, ok := imported.Scope().Lookup(sel.Sel.Name).(*types.TypeName)
	if !ok {
		return false, nil
	}
	basic, ok := tn.Type().Underlying().(*types.Basic)
	if !ok {
		logging.ParseDebug("GoCodeParser: %s.%s has underlying %s", x.Name, sel.Sel.Name, tn.Type().Underlying())
		return false, nil
	}
	return basic.Info()&(types.IsInteger|types.IsFloat|types.IsString) != 0, nil
}

// importNamed imports the package that file refers to as name. Unnamed
// imports whose last path element matches are tried first.
func (pkg *goPackage) importNamed(file *ast.File, name string) (*types.Package, error) {
	var guessed, rest []string
	for _, spec := range file.Imports {
		importPath, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			continue
		}
		switch {
		case spec.Name != nil && spec.Name.Name == name:
			return pkg.importPath(importPath)
		case spec.Name != nil:
		case path.Base(importPath) == name:
			guessed = append(guessed, importPath)
		default:
			rest = append(rest, importPath)
		}
	}
	var lastErr error
	for _, importPath := range append(guessed, rest...) {
		imported, err := pkg.importPath(importPath)
		if err != nil {
			lastErr = err
			continue
		}
		if imported.Name() == name {
			return imported, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("no import named %s in %s", name, pkg.fset.Position(file.Pos()).Filename)
}

func (pkg *goPackage) importPath(importPath string) (*types.Package, error) {
	if imported, ok := pkg.imported[importPath]; ok {
		return imported, nil
	}
	if pkg.importer == nil {
		pkg.importer = importer.ForCompiler(pkg.fset, "source", nil).(types.ImporterFrom)
	}
	start := time.Now()
	imported, err := pkg.importer.ImportFrom(importPath, pkg.dir, 0)
	if err != nil {
		return nil, err
	}
	logging.ParseDebug("GoCodeParser: imported %s from source (%v)", importPath, time.Since(start))
	pkg.imported[importPath] = imported
	return imported, nil
}

// constVariants collects the package-level constants of the named type in
// declaration order. A spec counts when it names the type explicitly, when it
// is an untyped conversion T(...), or when it implicitly repeats a matching
// spec in the same const block.
func (pkg *goPackage) constVariants(typeName string) []enum.Variant {
	variants := []enum.Variant{}
	for _, file := range pkg.files {
		for _, decl := range file.Decls {
			genDecl, ok := decl.(*ast.GenDecl)
			if !ok || genDecl.Tok != token.CONST {
				continue
			}
			matches := false
			for _, spec := range genDecl.Specs {
				vs := spec.(*ast.ValueSpec)
				switch {
				case vs.Type != nil:
					matches = isIdentNamed(vs.Type, typeName)
				case len(vs.Values) > 0:
					matches = allConversions(vs.Values, typeName)
				}
				if !matches {
					continue
				}
				for _, ident := range vs.Names {
					if ident.Name == "_" {
						continue
					}
					variants = append(variants, enum.Variant{
						Span: pkg.span(ident.Pos()),
						Name: ident.Name,
						Expr: ident.Name,
					})
				}
			}
		}
	}
	return variants
}

func isIdentNamed(expr ast.Expr, name string) bool {
	ident, ok := ast.Unparen(expr).(*ast.Ident)
	return ok && ident.Name == name
}

func allConversions(values []ast.Expr, typeName string) bool {
	for _, v := range values {
		call, ok := ast.Unparen(v).(*ast.CallExpr)
		if !ok || len(call.Args) != 1 || !isIdentNamed(call.Fun, typeName) {
			return false
		}
	}
	return true
}

// sealedMarker returns the marker method name of an interface in sealed
// shape: exactly one method, unexported, no parameters and no results.
func sealedMarker(iface *ast.InterfaceType) (string, bool) {
	if iface.Methods == nil || len(iface.Methods.List) != 1 {
		return "", false
	}
	field := iface.Methods.List[0]
	if len(field.Names) != 1 || field.Names[0].IsExported() {
		return "", false
	}
	fn, ok := field.Type.(*ast.FuncType)
	if !ok || fn.TypeParams != nil || fn.Params.NumFields() != 0 || fn.Results.NumFields() != 0 {
		return "", false
	}
	return field.Names[0].Name, true
}

// sealedVariants finds the named types declaring the marker method and
// orders them by where the types are declared.
func (pkg *goPackage) sealedVariants(marker string) ([]enum.Variant, error) {
	pointer := make(map[string]bool)
	for _, file := range pkg.files {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv == nil || len(fn.Recv.List) == 0 || fn.Name.Name != marker {
				continue
			}
			recv, isPtr := receiverTypeName(fn.Recv.List[0].Type)
			if recv == "" {
				continue
			}
			pointer[recv] = isPtr
		}
	}

	variants := []enum.Variant{}
	for _, name := range pkg.order {
		isPtr, ok := pointer[name]
		if !ok {
			continue
		}
		ts := pkg.types[name]
		st, isStruct := ast.Unparen(ts.Type).(*ast.StructType)
		if !isStruct {
			// A defined non-struct type wraps exactly one value.
			return nil, &enum.VariantHasFieldsError{
				Span:    pkg.span(ts.Type.Pos()),
				Variant: name,
				Fields:  1,
			}
		}
		if n := countFields(st.Fields); n > 0 {
			return nil, &enum.VariantHasFieldsError{
				Span:    pkg.span(st.Fields.Pos()),
				Variant: name,
				Fields:  n,
			}
		}
		expr := name + "{}"
		if isPtr {
			expr = "&" + expr
		}
		variants = append(variants, enum.Variant{
			Span: pkg.span(ts.Name.Pos()),
			Name: name,
			Expr: expr,
		})
	}
	return variants, nil
}

// countFields counts each named field once and each embedded field once.
func countFields(fields *ast.FieldList) int {
	if fields == nil {
		return 0
	}
	n := 0
	for _, f := range fields.List {
		if len(f.Names) == 0 {
			n++
			continue
		}
		n += len(f.Names)
	}
	return n
}

// receiverTypeName extracts the type name and pointer-ness from a method
// receiver. Generic receivers yield "".
func receiverTypeName(expr ast.Expr) (typeName string, isPointer bool) {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name, false
	case *ast.StarExpr:
		name, _ := receiverTypeName(t.X)
		return name, true
	case *ast.ParenExpr:
		return receiverTypeName(t.X)
	}
	return "", false
}
