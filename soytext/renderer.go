// Package soytext renders a compiled set of Soy to plain text.
package soytext

import (
	"errors"
	"io"

	"github.com/kcaffrey/soy/data"
	"github.com/kcaffrey/soy/errortypes"
	"github.com/kcaffrey/soy/soymsg"
)

// Renderer provides parameters to template execution.
type Renderer struct {
	tofu *Tofu    // a registry of all templates in a bundle
	name string   // fully-qualified name of the template to render
	ij   data.Map // data for the $ij map
	msgs soymsg.Bundle
}

// Inject sets the given data map as the $ij injected data.
func (r *Renderer) Inject(ij data.Map) *Renderer {
	r.ij = ij
	return r
}

// WithMessages provides a message bundle to use during execution.
func (r *Renderer) WithMessages(bundle soymsg.Bundle) *Renderer {
	r.msgs = bundle
	return r
}

// Execute applies a parsed template to the specified data object,
// and writes the output to wr.
func (r Renderer) Execute(wr io.Writer, obj data.Map) (err error) {
	if r.tofu == nil || r.tofu.registry == nil {
		return errors.New("template registry required")
	}
	if r.name == "" {
		return errors.New("template name required")
	}

	var tmpl, ok = r.tofu.registry.Template(r.name)
	if !ok {
		return &errortypes.RenderError{Kind: errortypes.ErrTemplateNotFound, Name: r.name}
	}

	if obj == nil {
		obj = make(data.Map)
	}

	state := &state{
		tmpl:       tmpl,
		registry:   r.tofu.registry,
		wr:         wr,
		params:     obj,
		ij:         r.ij,
		globals:    r.tofu.globals,
		funcs:      r.tofu.funcs,
		directives: r.tofu.directives,
		msgs:       r.msgs,
	}
	defer state.errRecover(&err)
	state.walk(tmpl.Node)
	return
}
