package parse

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"variantgen/internal/enum"
	"variantgen/internal/logging"
)

// ParserFactory routes parse requests to the language parser registered
// for a file's extension.
type ParserFactory struct {
	mu      sync.RWMutex
	parsers map[string]CodeParser // extension -> parser
	goCode  *GoCodeParser
}

// NewParserFactory creates a factory with the Go and Rust parsers registered.
func NewParserFactory(opts Options) *ParserFactory {
	f := &ParserFactory{parsers: make(map[string]CodeParser)}
	f.goCode = NewGoCodeParser(opts)
	f.Register(f.goCode)
	f.Register(NewRustCodeParser(opts))
	return f
}

// Register adds a parser for its supported extensions.
// If a parser is already registered for an extension, it is replaced.
func (f *ParserFactory) Register(parser CodeParser) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ext := range parser.SupportedExtensions() {
		ext = normalizeExtension(ext)
		logging.ParseDebug("ParserFactory: registering %s parser for extension %s", parser.Language(), ext)
		f.parsers[ext] = parser
	}
}

// GetParser returns the parser for a given file path, or nil.
func (f *ParserFactory) GetParser(path string) CodeParser {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.parsers[normalizeExtension(filepath.Ext(path))]
}

// ParseTarget parses a package directory (Go) or a single source file.
// typeNames only applies to Go targets.
func (f *ParserFactory) ParseTarget(target string, typeNames []string) ([]*enum.Descriptor, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("failed to stat target: %w", err)
	}
	if info.IsDir() {
		return f.goCode.ParseDir(target, typeNames)
	}

	parser := f.GetParser(target)
	if parser == nil {
		return nil, fmt.Errorf("no parser registered for extension: %s", filepath.Ext(target))
	}
	if parser.Language() == enum.LangGo {
		// Constants may live in sibling files; parse the whole package.
		return f.goCode.ParseDir(filepath.Dir(target), typeNames)
	}
	content, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", target, err)
	}
	return parser.ParseFile(target, content)
}

// TargetLang reports the language a target resolves to.
func (f *ParserFactory) TargetLang(target string) (enum.Lang, error) {
	info, err := os.Stat(target)
	if err != nil {
		return "", fmt.Errorf("failed to stat target: %w", err)
	}
	if info.IsDir() {
		return enum.LangGo, nil
	}
	parser := f.GetParser(target)
	if parser == nil {
		return "", fmt.Errorf("no parser registered for extension: %s", filepath.Ext(target))
	}
	return parser.Language(), nil
}

func normalizeExtension(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
