package parsepasses

import (
	"testing"

	"github.com/kcaffrey/soy/errortypes"
	"github.com/kcaffrey/soy/parse"
	"github.com/kcaffrey/soy/template"
)

func buildRegistry(t *testing.T, files ...string) *template.Registry {
	t.Helper()
	var registry template.Registry
	for i, file := range files {
		tree, err := parse.SoyFile("test.soy", file)
		if err != nil {
			t.Fatalf("file %d: %s", i, err)
		}
		if err := registry.Add(tree); err != nil {
			t.Fatalf("file %d: %s", i, err)
		}
	}
	return &registry
}

func TestCheckDataRefs(t *testing.T) {
	var tests = []struct {
		name string
		body string
		ok   bool
	}{
		{"declared param", `{$name}`, true},
		{"optional param", `{$punctuation}`, true},
		{"param in expression", `{$name + ' and ' + $punctuation}`, true},
		{"param in data ref access", `{$name[0]?.first}`, true},
		{"injected is exempt", `{$ij.userId}`, true},
		{"param inside msg", `{msg desc="d"}Hi {$name}{/msg}`, true},
		{"undeclared", `{$undeclared}`, false},
		{"undeclared in expression", `{$name + $undeclared}`, false},
		{"undeclared in access expression", `{$name[$undeclared]}`, false},
		{"undeclared in plural", `{msg desc="d"}{plural $undeclared}{case 1}a{default}b{/plural}{/msg}`, false},
	}
	for _, test := range tests {
		var registry = buildRegistry(t, `{namespace test}

/**
 * @param name
 * @param? punctuation
 */
{template .main}
`+test.body+`
{/template}
`)
		var err = CheckDataRefs(registry)
		if test.ok && err != nil {
			t.Errorf("%s: unexpected error: %s", test.name, err)
		}
		if !test.ok {
			ce := errortypes.ToCompileError(err)
			if ce == nil || ce.Kind != errortypes.ErrUndeclaredParameter {
				t.Errorf("%s: expected ErrUndeclaredParameter, got %v", test.name, err)
				continue
			}
			if ce.Name != "undeclared" {
				t.Errorf("%s: got name %q", test.name, ce.Name)
			}
			if ce.Location == nil || ce.Location.TemplateName != "test.main" {
				t.Errorf("%s: got location %v", test.name, ce.Location)
			}
		}
	}
}

func TestCheckDataRefsScopedPerTemplate(t *testing.T) {
	// a parameter declared by one template does not leak into another.
	var registry = buildRegistry(t, `{namespace test}

/** @param name */
{template .first}
{$name}
{/template}

/** t */
{template .second}
{$name}
{/template}
`)
	var err = CheckDataRefs(registry)
	ce := errortypes.ToCompileError(err)
	if ce == nil || ce.Kind != errortypes.ErrUndeclaredParameter {
		t.Fatalf("expected ErrUndeclaredParameter, got %v", err)
	}
	if ce.Location == nil || ce.Location.TemplateName != "test.second" {
		t.Errorf("got location %v", ce.Location)
	}
}
