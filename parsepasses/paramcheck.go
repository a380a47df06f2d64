// Package parsepasses contains validation and annotation passes run on
// compiled templates before they are registered.
package parsepasses

import (
	"github.com/kcaffrey/soy/ast"
	"github.com/kcaffrey/soy/errortypes"
	"github.com/kcaffrey/soy/template"
)

// CheckDataRefs validates that every $var referenced within a template body
// was declared by the template's soydoc.  Injected references ($ij.*) are
// exempt; they are bound by the renderer, not by template parameters.
func CheckDataRefs(reg *template.Registry) error {
	for _, t := range reg.Templates {
		var declared = make(map[string]bool)
		for _, param := range t.Doc.Params {
			declared[param.Name] = true
		}
		if err := checkNode(reg, t, declared, t.Node.Body); err != nil {
			return err
		}
	}
	return nil
}

func checkNode(reg *template.Registry, t template.Template, declared map[string]bool, node ast.Node) error {
	if ref, ok := node.(*ast.DataRefNode); ok && !ref.Injected && !declared[ref.Key] {
		return &errortypes.CompileError{
			Kind:     errortypes.ErrUndeclaredParameter,
			Name:     ref.Key,
			Location: reg.Location(t.FullName(), ref.Position()),
		}
	}
	if parent, ok := node.(ast.ParentNode); ok {
		for _, child := range parent.Children() {
			if err := checkNode(reg, t, declared, child); err != nil {
				return err
			}
		}
	}
	return nil
}
