// Package codegen renders variant enumerators for parsed enum descriptors.
//
// Output is a pure function of the descriptors and Options: regenerating
// from unchanged input yields byte-identical files.
package codegen

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"variantgen/internal/enum"
)

// ErrInvalidDescriptor is returned for descriptors that fail enum.Descriptor
// Validate. Parsers never produce them; seeing one is a bug.
var ErrInvalidDescriptor = errors.New("invalid enum descriptor")

// Header is the first line of every generated file.
const Header = "// Code generated by variantgen; DO NOT EDIT."

// Generator renders one output file for a group of descriptors that share
// an OutputName.
type Generator interface {
	Language() enum.Lang
	OutputName(d *enum.Descriptor) string
	Generate(descs ...*enum.Descriptor) ([]byte, error)
}

// Options configures the generators.
type Options struct {
	MethodName     string // Go accessor, e.g. EnumerateVariants
	RustMethodName string // Rust associated function, e.g. enumerate_variants
	OutputSuffix   string // appended to the output file stem
}

// DefaultOptions mirrors config.DefaultConfig.
func DefaultOptions() Options {
	return Options{
		MethodName:     "EnumerateVariants",
		RustMethodName: "enumerate_variants",
		OutputSuffix:   "_variants",
	}
}

// ForLang returns the generator for descriptors of the given language.
func ForLang(lang enum.Lang, opts Options) (Generator, error) {
	switch lang {
	case enum.LangGo:
		return NewGoGenerator(opts), nil
	case enum.LangRust:
		return NewRustGenerator(opts), nil
	}
	return nil, fmt.Errorf("no generator for language %q", lang)
}

// validateGroup checks every descriptor and that all of them belong to the
// same package and language.
func validateGroup(lang enum.Lang, descs []*enum.Descriptor) error {
	if len(descs) == 0 {
		return fmt.Errorf("%w: no descriptors", ErrInvalidDescriptor)
	}
	var errs []error
	for _, d := range descs {
		if d == nil {
			errs = append(errs, errors.New("nil descriptor"))
			continue
		}
		if err := d.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name, err))
			continue
		}
		if d.Lang != lang {
			errs = append(errs, fmt.Errorf("%s: language %s, want %s", d.Name, d.Lang, lang))
		}
		if d.Package != descs[0].Package {
			errs = append(errs, fmt.Errorf("%s: package %s, want %s", d.Name, d.Package, descs[0].Package))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDescriptor, err)
	}
	return nil
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// sealedAccessor names the package-level accessor of a sealed sum type:
// EnumerateVariants on Shape becomes EnumerateShapeVariants.
func sealedAccessor(method, typeName string) string {
	typeName = upperFirst(typeName)
	if stem, ok := strings.CutSuffix(method, "Variants"); ok && stem != "" {
		return stem + typeName + "Variants"
	}
	return method + typeName
}
