package errortypes_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kcaffrey/soy/errortypes"
)

func TestCompileErrorMessage(t *testing.T) {
	var tests = []struct {
		name     string
		err      *errortypes.CompileError
		contains []string
	}{
		{
			name:     "parse with location",
			err:      &errortypes.CompileError{Kind: errortypes.ErrParse, Location: &errortypes.TemplateLocation{Filename: "file.soy", Line: 3, Col: 7, Snippet: "{1 +}"}, Cause: errors.New("unexpected }")},
			contains: []string{"file.soy:3:7:", "parse error", "unexpected }", "{1 +}"},
		},
		{
			name:     "undeclared parameter",
			err:      &errortypes.CompileError{Kind: errortypes.ErrUndeclaredParameter, Name: "name", Location: &errortypes.TemplateLocation{TemplateName: "examples.simple.hello"}},
			contains: []string{"in template examples.simple.hello", "undeclared parameter: name"},
		},
		{
			name:     "collision",
			err:      &errortypes.CompileError{Kind: errortypes.ErrTemplateCollision, Name: "ns.dup"},
			contains: []string{"template collision: ns.dup"},
		},
	}
	for _, test := range tests {
		var msg = test.err.Error()
		for _, want := range test.contains {
			if !strings.Contains(msg, want) {
				t.Errorf("%s: %q missing %q", test.name, msg, want)
			}
		}
	}
}

func TestToCompileError(t *testing.T) {
	var ce = &errortypes.CompileError{Kind: errortypes.ErrParse}
	var tests = []struct {
		name string
		in   error
		out  *errortypes.CompileError
	}{
		{name: "nil", in: nil, out: nil},
		{name: "plain", in: errors.New("an error"), out: nil},
		{name: "direct", in: ce, out: ce},
		{name: "wrapped", in: fmt.Errorf("compiling: %w", ce), out: ce},
	}
	for _, test := range tests {
		if got := errortypes.ToCompileError(test.in); got != test.out {
			t.Errorf("%s: got %v, expected %v", test.name, got, test.out)
		}
	}
}

func TestToRenderError(t *testing.T) {
	var re = &errortypes.RenderError{Kind: errortypes.ErrTemplateNotFound, Name: "ns.missing"}
	var tests = []struct {
		name string
		in   error
		out  *errortypes.RenderError
	}{
		{name: "nil", in: nil, out: nil},
		{name: "plain", in: errors.New("an error"), out: nil},
		{name: "direct", in: re, out: re},
		{name: "wrapped", in: fmt.Errorf("rendering: %w", re), out: re},
	}
	for _, test := range tests {
		if got := errortypes.ToRenderError(test.in); got != test.out {
			t.Errorf("%s: got %v, expected %v", test.name, got, test.out)
		}
	}
}

func TestRenderErrorMessage(t *testing.T) {
	var err = &errortypes.RenderError{
		Kind:     errortypes.ErrFieldNotFound,
		Name:     "bar",
		Location: &errortypes.TemplateLocation{Filename: "a.soy", TemplateName: "ns.a", Line: 10, Col: 4},
	}
	var msg = err.Error()
	for _, want := range []string{"a.soy:10:4:", "in template ns.a", "field not found: bar"} {
		if !strings.Contains(msg, want) {
			t.Errorf("%q missing %q", msg, want)
		}
	}
}
