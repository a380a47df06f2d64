package soytext

import (
	"fmt"
	"io"
	"math"
	"runtime"
	"runtime/debug"

	"github.com/kcaffrey/soy/ast"
	"github.com/kcaffrey/soy/data"
	"github.com/kcaffrey/soy/errortypes"
	"github.com/kcaffrey/soy/soymsg"
	soyt "github.com/kcaffrey/soy/template"
)

// state represents the state of an execution.
type state struct {
	tmpl       soyt.Template
	wr         io.Writer
	node       ast.Node       // current node, for errors
	registry   *soyt.Registry // the entire bundle of templates
	val        data.Value     // temp value for expression being computed
	params     data.Map       // the parameter data the template was invoked with
	ij         data.Map       // injected data available via $ij
	globals    data.Map       // global values, resolved at render time
	funcs      map[string]Func
	directives map[string]PrintDirective
	msgs       soymsg.Bundle // replacement text for {msg} tags
}

// at marks the state to be on node n, for error reporting.
func (s *state) at(node ast.Node) {
	s.node = node
}

// errorf terminates processing with a render error of the given kind.
func (s *state) errorf(kind errortypes.RenderErrorKind, name, format string, args ...interface{}) {
	var err = &errortypes.RenderError{
		Kind: kind,
		Name: name,
	}
	if format != "" {
		err.Cause = fmt.Errorf(format, args...)
	}
	if s.node != nil {
		err.Location = s.registry.Location(s.tmpl.FullName(), s.node.Position())
	}
	panic(err)
}

// errRecover is the handler that turns panics into returns from the top
// level of Execute.
func (s *state) errRecover(errp *error) {
	if e := recover(); e != nil {
		switch e := e.(type) {
		case runtime.Error:
			*errp = fmt.Errorf("template %s: %v\n%v", s.tmpl.FullName(), e, string(debug.Stack()))
		case error:
			*errp = e
		default:
			*errp = fmt.Errorf("template %s: %v", s.tmpl.FullName(), e)
		}
	}
}

// write writes the given string to the output, converting failures into
// render errors.
func (s *state) write(str string) {
	if _, err := io.WriteString(s.wr, str); err != nil {
		var rerr = &errortypes.RenderError{Kind: errortypes.ErrIo, Cause: err}
		panic(rerr)
	}
}

// walk recursively goes through each node and executes the indicated logic and
// writes the output
func (s *state) walk(node ast.Node) {
	s.val = data.Undefined{}
	s.at(node)
	switch node := node.(type) {
	case *ast.TemplateNode:
		s.joinBlock(node.Body)
	case *ast.ListNode:
		s.joinBlock(node)

		// Values ----------
	case *ast.NullNode:
		s.val = data.Null{}
	case *ast.StringNode:
		s.val = data.String(node.Value)
	case *ast.IntNode:
		s.val = data.Int(node.Value)
	case *ast.FloatNode:
		s.val = data.Float(node.Value)
	case *ast.BoolNode:
		s.val = data.Bool(node.True)
	case *ast.GlobalNode:
		s.val = s.evalGlobal(node)
	case *ast.ListLiteralNode:
		var items = make(data.List, len(node.Items))
		for i, item := range node.Items {
			items[i] = s.eval(item)
		}
		s.val = data.List(items)
	case *ast.MapLiteralNode:
		var items = make(data.Map, len(node.Items))
		for k, v := range node.Items {
			items[k] = s.eval(v)
		}
		s.val = data.Map(items)
	case *ast.FunctionNode:
		s.val = s.evalFunc(node)
	case *ast.DataRefNode:
		s.val = s.evalDataRef(node)

		// Arithmetic operators ----------
	case *ast.NegateNode:
		switch arg := s.eval(node.Arg).(type) {
		case data.Int:
			s.val = data.Int(-arg)
		case data.Float:
			s.val = data.Float(-arg)
		default:
			s.errorf(errortypes.ErrTypeMismatch, "", "can not negate non-number: %q", arg.String())
		}
	case *ast.AddNode:
		var arg1, arg2 = s.eval(node.Arg1), s.eval(node.Arg2)
		switch {
		case isInt(arg1) && isInt(arg2):
			s.val = data.Int(arg1.(data.Int) + arg2.(data.Int))
		case isString(arg1) || isString(arg2):
			s.val = data.String(arg1.String() + arg2.String())
		default:
			s.val = data.Float(s.toFloat(arg1) + s.toFloat(arg2))
		}
	case *ast.SubNode:
		var arg1, arg2 = s.eval(node.Arg1), s.eval(node.Arg2)
		switch {
		case isInt(arg1) && isInt(arg2):
			s.val = data.Int(arg1.(data.Int) - arg2.(data.Int))
		default:
			s.val = data.Float(s.toFloat(arg1) - s.toFloat(arg2))
		}
	case *ast.MulNode:
		var arg1, arg2 = s.eval(node.Arg1), s.eval(node.Arg2)
		switch {
		case isInt(arg1) && isInt(arg2):
			s.val = data.Int(arg1.(data.Int) * arg2.(data.Int))
		default:
			s.val = data.Float(s.toFloat(arg1) * s.toFloat(arg2))
		}
	case *ast.DivNode:
		// division always yields a float.
		var arg1, arg2 = s.eval(node.Arg1), s.eval(node.Arg2)
		s.val = data.Float(s.toFloat(arg1) / s.toFloat(arg2))
	case *ast.ModNode:
		var arg1, arg2 = s.eval(node.Arg1), s.eval(node.Arg2)
		switch {
		case isInt(arg1) && isInt(arg2):
			s.val = data.Int(arg1.(data.Int) % arg2.(data.Int))
		default:
			s.val = data.Float(math.Mod(s.toFloat(arg1), s.toFloat(arg2)))
		}

		// Arithmetic comparisons ----------
	case *ast.EqNode:
		s.val = data.Bool(s.eval(node.Arg1).Equals(s.eval(node.Arg2)))
	case *ast.NotEqNode:
		s.val = data.Bool(!s.eval(node.Arg1).Equals(s.eval(node.Arg2)))
	case *ast.LtNode:
		s.val = data.Bool(s.toFloat(s.eval(node.Arg1)) < s.toFloat(s.eval(node.Arg2)))
	case *ast.LteNode:
		s.val = data.Bool(s.toFloat(s.eval(node.Arg1)) <= s.toFloat(s.eval(node.Arg2)))
	case *ast.GtNode:
		s.val = data.Bool(s.toFloat(s.eval(node.Arg1)) > s.toFloat(s.eval(node.Arg2)))
	case *ast.GteNode:
		s.val = data.Bool(s.toFloat(s.eval(node.Arg1)) >= s.toFloat(s.eval(node.Arg2)))

		// Boolean operators ----------
	case *ast.NotNode:
		s.val = data.Bool(!s.eval(node.Arg).Truthy())
	case *ast.AndNode:
		// and/or yield the deciding operand, not a coerced bool.
		var arg1 = s.eval(node.Arg1)
		if !arg1.Truthy() {
			s.val = arg1
		} else {
			s.val = s.eval(node.Arg2)
		}
	case *ast.OrNode:
		var arg1 = s.eval(node.Arg1)
		if arg1.Truthy() {
			s.val = arg1
		} else {
			s.val = s.eval(node.Arg2)
		}
	case *ast.ElvisNode:
		var arg1 = s.eval(node.Arg1)
		if arg1.Truthy() {
			s.val = arg1
		} else {
			s.val = s.eval(node.Arg2)
		}
	case *ast.TernNode:
		var arg1 = s.eval(node.Arg1)
		if arg1.Truthy() {
			s.val = s.eval(node.Arg2)
		} else {
			s.val = s.eval(node.Arg3)
		}

	default:
		s.errorf(errortypes.ErrTypeMismatch, "", "unknown node: %T", node)
	}
}

// joinBlock renders the statements of a block, joining the lines of raw text
// with single spaces.  A line break after a raw text segment or a tag becomes
// a pending space; the space is written only if raw text follows within the
// same block, so trailing breaks produce no output.  Each block keeps its own
// join state.
func (s *state) joinBlock(block *ast.ListNode) {
	var pending = false
	for _, node := range block.Nodes {
		s.at(node)
		switch node := node.(type) {
		case *ast.RawTextNode:
			if pending {
				s.write(" ")
			}
			s.write(node.Text)
			pending = node.Newline
		case *ast.SpecialCharNode:
			// special chars write verbatim and leave the join state alone.
			s.write(node.Text)
		case *ast.PrintNode:
			s.evalPrint(node)
			pending = node.Newline
		case *ast.MsgNode:
			s.evalMsg(node)
			pending = node.Newline
		case *ast.MsgPlaceholderNode:
			s.walkPlaceholder(node)
			if pn, ok := node.Body.(*ast.PrintNode); ok {
				pending = pn.Newline
			}
		case *ast.MsgPluralNode:
			s.evalPlural(node)
			pending = false
		default:
			s.errorf(errortypes.ErrTypeMismatch, "", "unexpected node in block: %T", node)
		}
	}
}

func isInt(v data.Value) bool {
	_, ok := v.(data.Int)
	return ok
}

func isString(v data.Value) bool {
	_, ok := v.(data.String)
	return ok
}

// toFloat returns the numeric value of v, for arithmetic and comparisons.
func (s *state) toFloat(v data.Value) float64 {
	switch v := v.(type) {
	case data.Int:
		return float64(v)
	case data.Float:
		return float64(v)
	}
	s.errorf(errortypes.ErrTypeMismatch, "", "not a number: %v (%T)", v, v)
	panic("unreachable")
}

func (s *state) evalPrint(node *ast.PrintNode) {
	s.walk(node.Arg)
	var result = s.val
	for _, directiveNode := range node.Directives {
		var directive, ok = s.directives[directiveNode.Name]
		if !ok {
			s.errorf(errortypes.ErrUnknownDirective, directiveNode.Name, "")
		}

		if !checkNumArgs(directive.ValidArgLengths, len(directiveNode.Args)) {
			s.errorf(errortypes.ErrTypeMismatch, directiveNode.Name,
				"print directive called with %v args, expected one of: %v",
				len(directiveNode.Args), directive.ValidArgLengths)
		}

		var args = make([]data.Value, len(directiveNode.Args))
		for i, arg := range directiveNode.Args {
			args[i] = s.eval(arg)
		}
		func() {
			defer func() {
				if err := recover(); err != nil {
					if rerr, ok := err.(*errortypes.RenderError); ok {
						panic(rerr)
					}
					s.errorf(errortypes.ErrTypeMismatch, directiveNode.Name,
						"panic in directive: %v\nexecuted: %v(%q, %v)\n%v",
						err, directiveNode.Name, result, args, string(debug.Stack()))
				}
			}()
			result = directive.Apply(result, args)
		}()
	}

	s.write(result.String())
}

// evalMsg renders a message, preferring a translation from the message bundle
// when one is available for the message's ID.
func (s *state) evalMsg(node *ast.MsgNode) {
	if s.msgs == nil {
		s.joinBlock(node.Body)
		return
	}

	var msg = s.msgs.Message(node.ID)
	if msg == nil {
		s.joinBlock(node.Body)
		return
	}

	s.renderMsgParts(msg.Parts, node)
}

// renderMsgParts writes a translated message, substituting the source
// message's placeholders and selecting a plural case via the bundle.
func (s *state) renderMsgParts(parts []soymsg.Part, node *ast.MsgNode) {
	for _, part := range parts {
		switch part := part.(type) {
		case soymsg.RawTextPart:
			s.write(part.Text)
		case soymsg.PlaceholderPart:
			var phnode = node.Placeholder(part.Name)
			if phnode == nil {
				s.errorf(errortypes.ErrTypeMismatch, part.Name,
					"failed to find placeholder in %v", soymsg.PlaceholderString(node))
			}
			s.walkPlaceholder(phnode)
		case soymsg.PluralPart:
			var pluralNode = msgPluralNode(node)
			if pluralNode == nil {
				s.errorf(errortypes.ErrTypeMismatch, "",
					"translation has a plural, but the message does not: %v",
					soymsg.PlaceholderString(node))
			}
			var n = s.evalPluralValue(pluralNode)
			var caseIdx = s.msgs.PluralCase(int(n))
			if caseIdx >= len(part.Cases) {
				s.errorf(errortypes.ErrTypeMismatch, "",
					"plural case index out of range: %v >= %v", caseIdx, len(part.Cases))
			}
			s.renderMsgParts(part.Cases[caseIdx].Parts, node)
		}
	}
}

func msgPluralNode(node *ast.MsgNode) *ast.MsgPluralNode {
	if len(node.Body.Nodes) > 0 {
		if plural, ok := node.Body.Nodes[0].(*ast.MsgPluralNode); ok {
			return plural
		}
	}
	return nil
}

// walkPlaceholder renders the content a message placeholder stands in for.
func (s *state) walkPlaceholder(node *ast.MsgPlaceholderNode) {
	switch body := node.Body.(type) {
	case *ast.PrintNode:
		s.evalPrint(body)
	default:
		s.walk(body)
	}
}

// evalPluralValue evaluates the plural expression, which must yield an
// integer.
func (s *state) evalPluralValue(node *ast.MsgPluralNode) int64 {
	s.at(node)
	var v = s.eval(node.Value)
	n, ok := v.(data.Int)
	if !ok {
		s.errorf(errortypes.ErrTypeMismatch, node.Value.String(),
			"plural expression must be an integer, got %T", v)
	}
	return int64(n)
}

// evalPlural renders the source-language plural block: the first case whose
// value matches exactly, else the default.
func (s *state) evalPlural(node *ast.MsgPluralNode) {
	var n = s.evalPluralValue(node)
	for _, c := range node.Cases {
		if c.Value == n {
			s.joinBlock(c.Body)
			return
		}
	}
	s.joinBlock(node.Default)
}

func checkNumArgs(allowedNumArgs []int, numArgs int) bool {
	for _, length := range allowedNumArgs {
		if numArgs == length {
			return true
		}
	}
	return false
}

func (s *state) evalFunc(node *ast.FunctionNode) data.Value {
	var fn, ok = s.funcs[node.Name]
	if !ok {
		s.errorf(errortypes.ErrUnknownFunction, node.Name, "")
	}
	if !checkNumArgs(fn.ValidArgLengths, len(node.Args)) {
		s.errorf(errortypes.ErrTypeMismatch, node.Name,
			"function called with %v args, expected: %v", len(node.Args), fn.ValidArgLengths)
	}

	var args = make([]data.Value, len(node.Args))
	for i, arg := range node.Args {
		args[i] = s.eval(arg)
	}
	defer func() {
		if err := recover(); err != nil {
			if rerr, ok := err.(*errortypes.RenderError); ok {
				panic(rerr)
			}
			s.errorf(errortypes.ErrTypeMismatch, node.Name,
				"panic in %s(%v): %v\n%v", node.Name, args, err, string(debug.Stack()))
		}
	}()
	r := fn.Apply(args)
	if r == nil {
		return data.Null{}
	}
	return r
}

// evalGlobal resolves a global reference against the globals map.  Globals
// are bound at render time; referencing one that was never provided is an
// error.
func (s *state) evalGlobal(node *ast.GlobalNode) data.Value {
	var v = s.globals.Key(node.Name)
	if _, ok := v.(data.Undefined); ok {
		s.errorf(errortypes.ErrUndefinedGlobal, node.Name, "")
	}
	return v
}

func (s *state) evalDataRef(node *ast.DataRefNode) data.Value {
	// get the initial value.  a missing top-level variable is null, not an
	// error; failures only arise from navigating into values.
	var ref data.Value
	if node.Injected {
		ref = s.ij.Key(node.Key)
	} else {
		ref = s.params.Key(node.Key)
	}
	if _, ok := ref.(data.Undefined); ok {
		ref = data.Null{}
	}
	if len(node.Access) == 0 {
		return ref
	}

	// handle the accesses
	for i, accessNode := range node.Access {
		// resolve the index or key to look up.
		var (
			index = -1
			key   string
			isKey bool
		)
		switch node := accessNode.(type) {
		case *ast.DataRefIndexNode:
			index = node.Index
		case *ast.DataRefKeyNode:
			key, isKey = node.Key, true
		case *ast.DataRefExprNode:
			switch keyRef := s.eval(node.Arg).(type) {
			case data.Int:
				index = int(keyRef)
			default:
				key, isKey = keyRef.String(), true
			}
		default:
			s.errorf(errortypes.ErrTypeMismatch, "", "unexpected access node: %T", accessNode)
		}

		// use the key/index, depending on the data type we're accessing.
		switch obj := ref.(type) {
		case data.Undefined, data.Null:
			// a null-safe step on null short-circuits the whole chain.
			if isNullSafeAccess(accessNode) {
				return data.Null{}
			}
			s.errorf(errortypes.ErrTypeMismatch, refString(node, i),
				"reference is null or undefined")
		case data.List:
			if isKey {
				s.errorf(errortypes.ErrTypeMismatch, refString(node, i),
					"reference is a list, but was accessed with key %q", key)
			}
			ref = obj.Index(index)
		case data.Map:
			if !isKey {
				s.errorf(errortypes.ErrTypeMismatch, refString(node, i),
					"reference is a map, but was accessed with index %d", index)
			}
			ref = obj.Key(key)
		default:
			s.errorf(errortypes.ErrTypeMismatch, refString(node, i),
				"reference is a %T, not a collection", obj)
		}

		if _, ok := ref.(data.Undefined); ok {
			if isNullSafeAccess(accessNode) {
				return data.Null{}
			}
			s.errorf(errortypes.ErrFieldNotFound, accessString(accessNode),
				"%q has no such member", refString(node, i))
		}
	}

	return ref
}

// refString formats the portion of a data ref up to (not including) access i,
// for error messages.
func refString(node *ast.DataRefNode, i int) string {
	return (&ast.DataRefNode{Pos: node.Pos, Injected: node.Injected, Key: node.Key, Access: node.Access[:i]}).String()
}

func accessString(n ast.Node) string {
	switch node := n.(type) {
	case *ast.DataRefIndexNode:
		return fmt.Sprintf("%d", node.Index)
	case *ast.DataRefKeyNode:
		return node.Key
	}
	return n.String()
}

// isNullSafeAccess returns true if the data ref access node is a nullsafe
// access.
func isNullSafeAccess(n ast.Node) bool {
	switch node := n.(type) {
	case *ast.DataRefIndexNode:
		return node.NullSafe
	case *ast.DataRefKeyNode:
		return node.NullSafe
	case *ast.DataRefExprNode:
		return node.NullSafe
	}
	panic("unexpected")
}

func (s *state) eval(n ast.Node) data.Value {
	var prev = s.node
	s.walk(n)
	s.node = prev
	return s.val
}
