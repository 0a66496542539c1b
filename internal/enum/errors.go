package enum

import (
	"errors"
	"fmt"
)

// MsgNotAnEnum is the diagnostic text for declarations that are not sum types.
const MsgNotAnEnum = "derive macro only works on enums"

// NotAnEnumError reports that an annotated declaration is not an enum.
type NotAnEnumError struct {
	Span Span
	Name string
}

func (e *NotAnEnumError) Error() string {
	return MsgNotAnEnum
}

// VariantHasFieldsError reports a variant that carries associated data.
type VariantHasFieldsError struct {
	Span    Span
	Variant string
	Fields  int
}

func (e *VariantHasFieldsError) Error() string {
	return fmt.Sprintf("variant(%s) expects exactly 0 fields, got %d", e.Variant, e.Fields)
}

// Diagnostic is a user-facing failure anchored at a source span.
type Diagnostic struct {
	Span    Span   `yaml:"span" json:"span"`
	Message string `yaml:"message" json:"message"`
	Err     error  `yaml:"-" json:"-"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Span, d.Message)
}

// AsDiagnostic converts a parse failure into a Diagnostic. It reports false
// for errors that are not user-facing diagnostics.
func AsDiagnostic(err error) (Diagnostic, bool) {
	var notEnum *NotAnEnumError
	if errors.As(err, &notEnum) {
		return Diagnostic{Span: notEnum.Span, Message: notEnum.Error(), Err: err}, true
	}
	var hasFields *VariantHasFieldsError
	if errors.As(err, &hasFields) {
		return Diagnostic{Span: hasFields.Span, Message: hasFields.Error(), Err: err}, true
	}
	return Diagnostic{}, false
}

// Diagnostics flattens err, including errors joined with errors.Join, into
// diagnostics. It reports false if any leaf error is not a diagnostic.
func Diagnostics(err error) ([]Diagnostic, bool) {
	if err == nil {
		return nil, true
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []Diagnostic
		for _, e := range joined.Unwrap() {
			diags, ok := Diagnostics(e)
			if !ok {
				return nil, false
			}
			out = append(out, diags...)
		}
		return out, true
	}
	diag, ok := AsDiagnostic(err)
	if !ok {
		return nil, false
	}
	return []Diagnostic{diag}, true
}
