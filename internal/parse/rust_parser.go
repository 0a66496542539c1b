package parse

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"variantgen/internal/enum"
	"variantgen/internal/logging"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
)

// RustCodeParser implements CodeParser for Rust source files.
// It uses Tree-sitter for accurate AST parsing.
type RustCodeParser struct {
	derive string

	mu     sync.Mutex // sitter.Parser is not safe for concurrent use
	parser *sitter.Parser
}

// NewRustCodeParser creates a new Rust parser selecting items that derive
// opts.RustDerive.
func NewRustCodeParser(opts Options) *RustCodeParser {
	parser := sitter.NewParser()
	parser.SetLanguage(rust.GetLanguage())
	return &RustCodeParser{
		derive: opts.RustDerive,
		parser: parser,
	}
}

// Language returns enum.LangRust.
func (p *RustCodeParser) Language() enum.Lang {
	return enum.LangRust
}

// SupportedExtensions returns [".rs"].
func (p *RustCodeParser) SupportedExtensions() []string {
	return []string{".rs"}
}

// ParseFile extracts every item annotated with the configured derive.
func (p *RustCodeParser) ParseFile(path string, content []byte) ([]*enum.Descriptor, error) {
	start := time.Now()
	logging.ParseDebug("RustCodeParser: parsing file: %s", filepath.Base(path))

	p.mu.Lock()
	tree, err := p.parser.ParseCtx(context.Background(), nil, content)
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, p.describeSyntaxError(path, root))
	}

	w := &rustWalker{
		path:    path,
		content: content,
		derive:  p.derive,
		pkg:     strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
	}
	w.walk(root)

	logging.ParseDebug("RustCodeParser: parsed %s - %d enums, %d rejected in %v",
		filepath.Base(path), len(w.descs), len(w.errs), time.Since(start))
	return w.descs, errors.Join(w.errs...)
}

// describeSyntaxError locates the first ERROR or MISSING node.
func (p *RustCodeParser) describeSyntaxError(path string, root *sitter.Node) string {
	var find func(n *sitter.Node) *sitter.Node
	find = func(n *sitter.Node) *sitter.Node {
		if n.Type() == "ERROR" || n.IsMissing() {
			return n
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if found := find(n.Child(i)); found != nil {
				return found
			}
		}
		return nil
	}
	if bad := find(root); bad != nil {
		return fmt.Sprintf("%s:%d:%d: unexpected input", path, bad.StartPoint().Row+1, bad.StartPoint().Column+1)
	}
	return path
}

// rustWalker accumulates descriptors and diagnostics for one file.
type rustWalker struct {
	path    string
	content []byte
	derive  string
	pkg     string

	descs []*enum.Descriptor
	errs  []error
}

func (w *rustWalker) text(n *sitter.Node) string {
	return n.Content(w.content)
}

func (w *rustWalker) span(n *sitter.Node) enum.Span {
	point := n.StartPoint()
	return enum.Span{
		File:   w.path,
		Line:   int(point.Row) + 1,
		Column: int(point.Column) + 1,
		Offset: int(n.StartByte()),
	}
}

// walk visits the items of a source file, module body or block. Outer
// attributes are sibling attribute_item nodes preceding the item they
// annotate. Items nested in function bodies and other blocks are found too.
func (w *rustWalker) walk(node *sitter.Node) {
	var attrs []*sitter.Node
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)

		switch child.Type() {
		case "attribute_item":
			attrs = append(attrs, child)
			continue
		case "line_comment", "block_comment":
			continue
		}

		if w.derives(attrs) {
			w.visitItem(child)
		} else {
			w.walkNested(child)
		}
		attrs = nil
	}
}

// walkNested walks every block and item list below node.
func (w *rustWalker) walkNested(node *sitter.Node) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "block", "declaration_list":
			w.walk(child)
		default:
			w.walkNested(child)
		}
	}
}

var (
	attrBody = regexp.MustCompile(`(?s)^#\s*\[(.*)\]$`)
	metaList = regexp.MustCompile(`(?s)^([A-Za-z_][A-Za-z0-9_:]*)\s*\((.*)\)$`)
)

// derives reports whether any attribute derives the configured name, either
// bare or by path (my_crate::VariantEnumerator), possibly behind cfg_attr.
func (w *rustWalker) derives(attrs []*sitter.Node) bool {
	for _, attr := range attrs {
		m := attrBody.FindStringSubmatch(strings.TrimSpace(w.text(attr)))
		if m != nil && w.metaDerives(strings.TrimSpace(m[1])) {
			return true
		}
	}
	return false
}

func (w *rustWalker) metaDerives(meta string) bool {
	m := metaList.FindStringSubmatch(meta)
	if m == nil {
		return false
	}
	args := splitTopLevel(m[2])
	switch m[1] {
	case "derive":
		for _, arg := range args {
			if idx := strings.LastIndex(arg, "::"); idx >= 0 {
				arg = strings.TrimSpace(arg[idx+2:])
			}
			if arg == w.derive {
				return true
			}
		}
	case "cfg_attr":
		// cfg_attr(predicate, attr, ...)
		for i := 1; i < len(args); i++ {
			if w.metaDerives(args[i]) {
				return true
			}
		}
	}
	return false
}

// splitTopLevel splits s at commas outside brackets and string literals.
// Parts are trimmed; empty parts are dropped.
func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	inString, escaped := false, false
	add := func(part string) {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	for i, r := range s {
		switch {
		case inString:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
		case r == '"':
			inString = true
		case r == '(' || r == '[' || r == '{':
			depth++
		case r == ')' || r == ']' || r == '}':
			depth--
		case r == ',' && depth == 0:
			add(s[start:i])
			start = i + 1
		}
	}
	add(s[start:])
	return parts
}

func (w *rustWalker) visitItem(item *sitter.Node) {
	name := item.Type()
	if nameNode := item.ChildByFieldName("name"); nameNode != nil {
		name = w.text(nameNode)
	}

	if item.Type() != "enum_item" {
		logging.ParseDebug("RustCodeParser: %s (%s) is not an enum", name, item.Type())
		w.errs = append(w.errs, &enum.NotAnEnumError{Span: w.span(item), Name: name})
		return
	}

	desc, err := w.describeEnum(item, name)
	if err != nil {
		w.errs = append(w.errs, err)
		return
	}
	w.descs = append(w.descs, desc)
}

func (w *rustWalker) describeEnum(item *sitter.Node, name string) (*enum.Descriptor, error) {
	desc := &enum.Descriptor{
		Span:     w.span(item),
		Name:     name,
		Lang:     enum.LangRust,
		Kind:     enum.KindRustEnum,
		Package:  w.pkg,
		Variants: []enum.Variant{},
	}

	body := item.ChildByFieldName("body")
	if body == nil {
		return desc, nil
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		variant := body.NamedChild(i)
		if variant.Type() != "enum_variant" {
			continue
		}
		nameNode := variant.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		variantName := w.text(nameNode)
		expr := name + "::" + variantName

		if fields := variant.ChildByFieldName("body"); fields != nil {
			if n := w.countFields(fields); n > 0 {
				return nil, &enum.VariantHasFieldsError{
					Span:    w.span(fields),
					Variant: variantName,
					Fields:  n,
				}
			}
			// Empty field lists still need their delimiters to construct.
			if fields.Type() == "field_declaration_list" {
				expr += " {}"
			} else {
				expr += "()"
			}
		}

		desc.Variants = append(desc.Variants, enum.Variant{
			Span: w.span(variant),
			Name: variantName,
			Expr: expr,
		})
	}
	return desc, nil
}

// countFields counts named fields in { ... } lists and types in ( ... ) lists.
func (w *rustWalker) countFields(list *sitter.Node) int {
	n := 0
	for i := 0; i < int(list.NamedChildCount()); i++ {
		switch list.NamedChild(i).Type() {
		case "attribute_item", "visibility_modifier", "line_comment", "block_comment":
			continue
		case "field_declaration":
			n++
		default:
			if list.Type() == "ordered_field_declaration_list" {
				n++
			}
		}
	}
	return n
}
