// Package enum holds the parsed representation of an enumerated type:
// the descriptor handed from the parsers to the code generators.
package enum

import (
	"errors"
	"fmt"
	"strings"
)

// Lang identifies the source language a descriptor was parsed from.
type Lang string

const (
	LangGo   Lang = "go"
	LangRust Lang = "rust"
)

// Kind distinguishes the declaration shapes that count as an enum.
type Kind int

const (
	// KindConst is a named basic type whose variants are typed constants.
	KindConst Kind = iota
	// KindSealed is an interface with a single unexported marker method whose
	// variants are the package types declaring that method.
	KindSealed
	// KindRustEnum is a Rust enum item.
	KindRustEnum
)

func (k Kind) String() string {
	switch k {
	case KindConst:
		return "const"
	case KindSealed:
		return "sealed"
	case KindRustEnum:
		return "rust_enum"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText renders the kind for YAML and JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Span is a source location used to anchor diagnostics.
type Span struct {
	File   string `yaml:"file" json:"file"`
	Line   int    `yaml:"line" json:"line"`     // 1-based
	Column int    `yaml:"column" json:"column"` // 1-based, in bytes
	Offset int    `yaml:"offset" json:"offset"` // 0-based byte offset
}

// IsValid reports whether the span points at a real line.
func (s Span) IsValid() bool {
	return s.Line > 0
}

func (s Span) String() string {
	switch {
	case s.File == "" && !s.IsValid():
		return "-"
	case !s.IsValid():
		return s.File
	case s.File == "":
		return fmt.Sprintf("%d:%d", s.Line, s.Column)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// Variant is one declared alternative of an enum. Parsers only build
// variants that carry no fields.
type Variant struct {
	Span Span   `yaml:"span" json:"span"`
	Name string `yaml:"name" json:"name"`
	// Expr is the source expression that denotes the variant's value in
	// generated code, e.g. "Expr", "Circle{}" or "GrammarElements::Expr".
	Expr string `yaml:"expr" json:"expr"`
}

// Descriptor is a validated enum, ready for code generation.
type Descriptor struct {
	Span    Span   `yaml:"span" json:"span"`
	Name    string `yaml:"name" json:"name"`
	Lang    Lang   `yaml:"lang" json:"lang"`
	Kind    Kind   `yaml:"kind" json:"kind"`
	Package string `yaml:"package" json:"package"`
	// Variants are kept in declaration order.
	Variants []Variant `yaml:"variants" json:"variants"`
}

// Len returns the number of variants.
func (d *Descriptor) Len() int {
	return len(d.Variants)
}

// Names returns the variant names in declaration order.
func (d *Descriptor) Names() []string {
	names := make([]string, len(d.Variants))
	for i, v := range d.Variants {
		names[i] = v.Name
	}
	return names
}

// Validate checks the invariants the generators rely on.
func (d *Descriptor) Validate() error {
	var errs []error
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, errors.New("descriptor has no type name"))
	}
	if d.Lang == LangGo && d.Package == "" {
		errs = append(errs, fmt.Errorf("descriptor %s has no package", d.Name))
	}
	seen := make(map[string]bool, len(d.Variants))
	for i, v := range d.Variants {
		if v.Name == "" {
			errs = append(errs, fmt.Errorf("variant %d of %s has no name", i, d.Name))
			continue
		}
		if v.Expr == "" {
			errs = append(errs, fmt.Errorf("variant %s of %s has no value expression", v.Name, d.Name))
		}
		if seen[v.Name] {
			errs = append(errs, fmt.Errorf("variant %s of %s declared twice", v.Name, d.Name))
		}
		seen[v.Name] = true
	}
	return errors.Join(errs...)
}
