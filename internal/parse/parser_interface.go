// Package parse turns enum declarations into validated descriptors.
//
// Two frontends are provided:
//   - GoCodeParser reads a Go package directory with go/ast and understands
//     const enums (named basic types with typed constants) and sealed sum types
//     (interfaces with a single unexported marker method).
//   - RustCodeParser reads Rust files with Tree-sitter and understands enum items
//     annotated with #[derive(VariantEnumerator)].
//
// Both report NotAnEnum and VariantHasFields as diagnostics (see package
// enum); every failing declaration is reported, joined with errors.Join.
package parse

import (
	"errors"

	"variantgen/internal/enum"
)

var (
	// ErrTypeNotFound is returned when a requested type is not declared.
	ErrTypeNotFound = errors.New("type not found")
	// ErrSyntax is returned when an input file cannot be parsed.
	ErrSyntax = errors.New("syntax error")
	// ErrNoSources is returned when a directory holds no usable source files.
	ErrNoSources = errors.New("no source files")
)

// CodeParser is implemented by each language frontend.
type CodeParser interface {
	// ParseFile extracts every annotated declaration from one file.
	// The path is used for spans; content is the file's bytes.
	ParseFile(path string, content []byte) ([]*enum.Descriptor, error)

	// SupportedExtensions returns the file extensions this parser handles,
	// including the leading dot.
	SupportedExtensions() []string

	// Language returns the source language of produced descriptors.
	Language() enum.Lang
}

// Options configures the frontends.
type Options struct {
	// Directive marks Go types for generation (without the leading //).
	Directive string
	// OutputSuffix identifies generated files, which are never parsed.
	OutputSuffix string
	// RustDerive is the derive name that selects Rust items.
	RustDerive string
}

// DefaultOptions mirrors config.DefaultConfig.
func DefaultOptions() Options {
	return Options{
		Directive:    "variantgen:enumerate",
		OutputSuffix: "_variants",
		RustDerive:   "VariantEnumerator",
	}
}
