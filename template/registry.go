// Package template provides a registry of compiled templates, keyed by their
// fully-qualified "{namespace}.{templateName}".
package template

import (
	"fmt"
	"strings"

	"github.com/kcaffrey/soy/ast"
	"github.com/kcaffrey/soy/errortypes"
)

// Template is a Soy template's parse tree, including the relevant context
// (preceding soydoc, namespace, and delegate package).
type Template struct {
	Doc        *ast.SoyDocNode    // this template's SoyDoc
	Node       *ast.TemplateNode  // this template's node
	Namespace  *ast.NamespaceNode // this template's namespace
	Delpackage string             // delegate package of the enclosing file, or ""
}

// FullName returns the fully-qualified template name.
func (t Template) FullName() string {
	return t.Namespace.Name + "." + t.Node.Name
}

// ParamNames returns the names of the parameters the soydoc declares.
func (t Template) ParamNames() []string {
	var names []string
	for _, p := range t.Doc.Params {
		names = append(names, p.Name)
	}
	return names
}

// Registry holds the templates of one or more compiled source files.  Once
// built it is read-only and may be shared between renders.
type Registry struct {
	SoyFiles  []*ast.SoyFileNode
	Templates []Template

	byName map[string]int
	byFile map[string]*ast.SoyFileNode // template full name -> enclosing file
}

// Add registers the templates of a parsed soy file.  It fails on a
// fully-qualified name collision with a previously added file, or on a
// duplicated soydoc parameter.
func (r *Registry) Add(soyfile *ast.SoyFileNode) error {
	if r.byName == nil {
		r.byName = make(map[string]int)
		r.byFile = make(map[string]*ast.SoyFileNode)
	}

	var ns *ast.NamespaceNode
	var delpackage string
	for _, node := range soyfile.Body {
		switch node := node.(type) {
		case *ast.NamespaceNode:
			ns = node
		case *ast.DelpackageNode:
			delpackage = node.Name
		}
	}
	if ns == nil {
		return &errortypes.CompileError{
			Kind:     errortypes.ErrParse,
			Location: &errortypes.TemplateLocation{Filename: soyfile.Name},
			Cause:    fmt.Errorf("namespace is required"),
		}
	}

	r.SoyFiles = append(r.SoyFiles, soyfile)
	for i := 0; i < len(soyfile.Body); i++ {
		var tn, ok = soyfile.Body[i].(*ast.TemplateNode)
		if !ok {
			continue
		}

		// The parser guarantees soydoc immediately precedes each template.
		var sdn *ast.SoyDocNode
		if i > 0 {
			sdn, _ = soyfile.Body[i-1].(*ast.SoyDocNode)
		}
		if sdn == nil {
			return &errortypes.CompileError{
				Kind:     errortypes.ErrParse,
				Name:     ns.Name + "." + tn.Name,
				Location: r.nodeLocation(soyfile, ns.Name+"."+tn.Name, tn.Position()),
				Cause:    fmt.Errorf("template is missing its soydoc"),
			}
		}

		var fullName = ns.Name + "." + tn.Name
		if _, ok := r.byName[fullName]; ok {
			return &errortypes.CompileError{
				Kind:     errortypes.ErrTemplateCollision,
				Name:     fullName,
				Location: r.nodeLocation(soyfile, fullName, tn.Position()),
			}
		}

		var seen = make(map[string]bool)
		for _, param := range sdn.Params {
			if seen[param.Name] {
				return &errortypes.CompileError{
					Kind:     errortypes.ErrDuplicateParameter,
					Name:     param.Name,
					Location: r.nodeLocation(soyfile, fullName, param.Position()),
				}
			}
			seen[param.Name] = true
		}

		r.byName[fullName] = len(r.Templates)
		r.byFile[fullName] = soyfile
		r.Templates = append(r.Templates, Template{
			Doc:        sdn,
			Node:       tn,
			Namespace:  ns,
			Delpackage: delpackage,
		})
	}
	return nil
}

// Template returns the template with the given fully-qualified name.
func (r *Registry) Template(name string) (Template, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Template{}, false
	}
	return r.Templates[i], true
}

// Location describes the position of the given node within the named
// template, for error messages.  It degrades gracefully when the provenance
// is unknown.
func (r *Registry) Location(templateName string, pos ast.Pos) *errortypes.TemplateLocation {
	return r.nodeLocation(r.byFile[templateName], templateName, pos)
}

func (r *Registry) nodeLocation(file *ast.SoyFileNode, templateName string, pos ast.Pos) *errortypes.TemplateLocation {
	var loc = &errortypes.TemplateLocation{TemplateName: templateName}
	if file == nil || int(pos) > len(file.Text) {
		return loc
	}
	loc.Filename = file.Name
	loc.Line = 1 + strings.Count(file.Text[:pos], "\n")
	var lineStart = strings.LastIndex(file.Text[:pos], "\n") + 1
	loc.Col = int(pos) - lineStart + 1
	var lineEnd = strings.Index(file.Text[pos:], "\n")
	if lineEnd == -1 {
		lineEnd = len(file.Text)
	} else {
		lineEnd += int(pos)
	}
	loc.Snippet = strings.TrimRight(file.Text[lineStart:lineEnd], "\r")
	return loc
}
