// Package errortypes defines the error values returned by template
// compilation and rendering.
package errortypes

import (
	"fmt"
	"strings"
)

// TemplateLocation identifies where in the template source an error arose.
// Fields that could not be determined are left at their zero values.
type TemplateLocation struct {
	Filename     string
	TemplateName string // fully-qualified, when known
	Line         int    // 1-based
	Col          int    // 1-based
	Snippet      string // the offending source line
}

func (l *TemplateLocation) String() string {
	var b strings.Builder
	if l.Filename != "" {
		fmt.Fprintf(&b, "%s:", l.Filename)
	}
	if l.Line > 0 {
		fmt.Fprintf(&b, "%d:%d:", l.Line, l.Col)
	}
	if l.TemplateName != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "in template %s", l.TemplateName)
	}
	return b.String()
}

// CompileErrorKind classifies a compilation failure.
type CompileErrorKind int

const (
	ErrParse CompileErrorKind = iota
	ErrUndeclaredParameter
	ErrDuplicateParameter
	ErrTemplateCollision
)

func (k CompileErrorKind) String() string {
	switch k {
	case ErrParse:
		return "parse error"
	case ErrUndeclaredParameter:
		return "undeclared parameter"
	case ErrDuplicateParameter:
		return "duplicate parameter"
	case ErrTemplateCollision:
		return "template collision"
	}
	return "compile error"
}

// CompileError is returned when template sources fail to compile.
type CompileError struct {
	Kind     CompileErrorKind
	Name     string            // the parameter or template name at issue, if any
	Location *TemplateLocation // where the failure was detected, if known
	Cause    error             // underlying error, if any
}

func (e *CompileError) Error() string {
	var b strings.Builder
	if e.Location != nil {
		if loc := e.Location.String(); loc != "" {
			b.WriteString(loc)
			b.WriteString(" ")
		}
	}
	b.WriteString(e.Kind.String())
	if e.Name != "" {
		fmt.Fprintf(&b, ": %s", e.Name)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %s", e.Cause)
	}
	if e.Location != nil && e.Location.Snippet != "" {
		fmt.Fprintf(&b, "\n\t%s", e.Location.Snippet)
	}
	return b.String()
}

func (e *CompileError) Unwrap() error {
	return e.Cause
}

// RenderErrorKind classifies a rendering failure.
type RenderErrorKind int

const (
	ErrTemplateNotFound RenderErrorKind = iota
	ErrIo
	ErrUtf8
	ErrFieldNotFound
	ErrTypeMismatch
	ErrUnknownFunction
	ErrUnknownDirective
	ErrUndefinedGlobal
)

func (k RenderErrorKind) String() string {
	switch k {
	case ErrTemplateNotFound:
		return "template not found"
	case ErrIo:
		return "write error"
	case ErrUtf8:
		return "invalid utf-8 in rendered output"
	case ErrFieldNotFound:
		return "field not found"
	case ErrTypeMismatch:
		return "type mismatch"
	case ErrUnknownFunction:
		return "unknown function"
	case ErrUnknownDirective:
		return "unknown print directive"
	case ErrUndefinedGlobal:
		return "undefined global"
	}
	return "render error"
}

// RenderError is returned when rendering a compiled template fails.
type RenderError struct {
	Kind     RenderErrorKind
	Name     string            // the template, field, function, directive, or global at issue
	Location *TemplateLocation // where rendering failed, if known
	Cause    error
}

func (e *RenderError) Error() string {
	var b strings.Builder
	if e.Location != nil {
		if loc := e.Location.String(); loc != "" {
			b.WriteString(loc)
			b.WriteString(" ")
		}
	}
	b.WriteString(e.Kind.String())
	if e.Name != "" {
		fmt.Fprintf(&b, ": %s", e.Name)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %s", e.Cause)
	}
	return b.String()
}

func (e *RenderError) Unwrap() error {
	return e.Cause
}

// ToCompileError returns the *CompileError at the root of err's cause chain,
// or nil.
func ToCompileError(err error) *CompileError {
	if err == nil {
		return nil
	}
	err = rootCause(err)
	if ce, ok := err.(*CompileError); ok {
		return ce
	}
	return nil
}

// ToRenderError returns the *RenderError at the root of err's cause chain, or
// nil.
func ToRenderError(err error) *RenderError {
	if err == nil {
		return nil
	}
	err = rootCause(err)
	if re, ok := err.(*RenderError); ok {
		return re
	}
	return nil
}

func rootCause(err error) error {
	type causer interface {
		Cause() error
	}

	for {
		switch e := err.(type) {
		case *CompileError, *RenderError:
			return err
		case causer:
			if next := e.Cause(); next != nil {
				err = next
				continue
			}
			return err
		case interface{ Unwrap() error }:
			if next := e.Unwrap(); next != nil {
				err = next
				continue
			}
			return err
		default:
			return err
		}
	}
}
