// Package ast contains definitions for the in-memory representation of a Soy
// template.
package ast

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Node represents any singular piece of a soy template.  For example, a
// sequence of raw text or a print tag.
type Node interface {
	String() string // String returns the soy source representation of this node.
	Position() Pos  // byte position of start of node in full original input string
}

// ParentNode is any Node that has descendent nodes.  For example, the Children
// of a AddNode are the two nodes that should be added.
type ParentNode interface {
	Node
	Children() []Node
}

// Pos represents a byte position in the original input text from which this
// template was parsed.  It is useful to construct helpful error messages.
type Pos int

// Position returns this position.  It is implemented as a method so that Nodes
// may embed a Pos and fulfill this part of the Node interface for free.
func (p Pos) Position() Pos {
	return p
}

// SoyFileNode represents a soy file.  Body holds, in source order, an
// optional DelpackageNode, a NamespaceNode, any AliasNodes, and alternating
// SoyDocNode/TemplateNode pairs.
type SoyFileNode struct {
	Name string
	Text string
	Body []Node
}

func (n SoyFileNode) Position() Pos {
	return 0
}

func (n SoyFileNode) Children() []Node {
	return n.Body
}

func (n SoyFileNode) String() string {
	var b bytes.Buffer
	for _, n := range n.Body {
		fmt.Fprint(&b, n)
	}
	return b.String()
}

// NamespaceNode declares the namespace qualifying every template in the file.
type NamespaceNode struct {
	Pos
	Name  string
	Attrs map[string]string
}

func (n *NamespaceNode) String() string {
	var expr = "{namespace " + n.Name
	for k, v := range n.Attrs {
		expr += fmt.Sprintf(" %s=%q", k, v)
	}
	return expr + "}"
}

// AliasNode abbreviates a namespace for the rest of the file.  {alias a.b.c}
// makes "c" stand for "a.b.c"; {alias a.b.c as d} uses "d" instead.
type AliasNode struct {
	Pos
	From string
	As   string // empty unless the "as" form was used
}

func (n *AliasNode) String() string {
	if n.As == "" {
		return "{alias " + n.From + "}"
	}
	return "{alias " + n.From + " as " + n.As + "}"
}

// DelpackageNode names the delegate package this file belongs to.
type DelpackageNode struct {
	Pos
	Name string
}

func (n *DelpackageNode) String() string {
	return "{delpackage " + n.Name + "}"
}

// TemplateNode holds a template body.  Name is the local name; the enclosing
// file's namespace qualifies it.
type TemplateNode struct {
	Pos
	Name string
	Body *ListNode
}

func (n *TemplateNode) String() string {
	return fmt.Sprintf("{template .%s}%s{/template}", n.Name, n.Body)
}

func (n *TemplateNode) Children() []Node {
	return []Node{n.Body}
}

// SoyDocNode holds a template's documentation block and declares its params.
// e.g.
//  /**
//   * Says hello to the person
//   * @param name The name of the person to say hello to.
//   */
type SoyDocNode struct {
	Pos
	Params []*SoyDocParamNode
}

func (n *SoyDocNode) String() string {
	if len(n.Params) == 0 {
		return "\n/** */\n"
	}
	var expr = "\n/**"
	for _, param := range n.Params {
		expr += "\n * " + param.String()
	}
	return expr + "\n */\n"
}

func (n *SoyDocNode) Children() []Node {
	var nodes []Node
	for _, param := range n.Params {
		nodes = append(nodes, param)
	}
	return nodes
}

// SoyDocParamNode declares a single input parameter of a template.
type SoyDocParamNode struct {
	Pos
	Name     string // e.g. "name"
	Optional bool   // true for @param?
}

func (n *SoyDocParamNode) String() string {
	var expr = "@param"
	if n.Optional {
		expr += "?"
	}
	return expr + " " + n.Name
}

// ListNode holds a sequence of nodes.
type ListNode struct {
	Pos
	Nodes []Node // The element nodes in lexical order.
}

func (l *ListNode) String() string {
	b := new(bytes.Buffer)
	for _, n := range l.Nodes {
		fmt.Fprint(b, n)
	}
	return b.String()
}

func (l *ListNode) Children() []Node {
	return l.Nodes
}

// RawTextNode is a segment of literal template text, never spanning a line
// break.  Newline records that a source line break (or a comment) followed
// the segment; the renderer folds line breaks between content into a single
// join space.
type RawTextNode struct {
	Pos
	Text    string
	Newline bool
}

func (t *RawTextNode) String() string {
	return t.Text
}

// SpecialCharNode is one of the fixed character substitutions like {sp} or
// {nil}.  It takes no part in whitespace joining.
type SpecialCharNode struct {
	Pos
	Tag  string // the command name, e.g. "sp"
	Text string // the substituted text, e.g. " "
}

func (n *SpecialCharNode) String() string {
	return "{" + n.Tag + "}"
}

// PrintNode prints the value of an expression, transformed by any directives.
type PrintNode struct {
	Pos
	Arg        Node
	Directives []*PrintDirectiveNode
	Newline    bool // a source line break or comment followed this tag
}

func (n *PrintNode) String() string {
	var expr = "{" + n.Arg.String()
	for _, d := range n.Directives {
		expr += d.String()
	}
	return expr + "}"
}

func (n *PrintNode) Children() []Node {
	var nodes = []Node{n.Arg}
	for _, child := range n.Directives {
		nodes = append(nodes, child)
	}
	return nodes
}

// PrintDirectiveNode is a named transform applied to a printed value.
type PrintDirectiveNode struct {
	Pos
	Name string
	Args []Node
}

func (n *PrintDirectiveNode) String() string {
	if len(n.Args) == 0 {
		return "|" + n.Name
	}
	var args = make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.String()
	}
	return "|" + n.Name + ":" + strings.Join(args, ",")
}

func (n *PrintDirectiveNode) Children() []Node {
	return n.Args
}

// MsgNode is a translatable message.  Its body is either an ordinary content
// block or a single MsgPluralNode.
type MsgNode struct {
	Pos
	ID      uint64 // fingerprint of the message content. set by a parse pass.
	Meaning string
	Desc    string
	Body    *ListNode
	Newline bool // a source line break or comment followed the closing tag
}

func (n *MsgNode) String() string {
	return fmt.Sprintf("{msg desc=%q}%s{/msg}", n.Desc, n.Body)
}

func (n *MsgNode) Children() []Node {
	return []Node{n.Body}
}

// Placeholder returns the placeholder with the given name within this
// message, or nil.  Plural case bodies are searched too.
func (n *MsgNode) Placeholder(name string) *MsgPlaceholderNode {
	return placeholderIn(n.Body, name)
}

func placeholderIn(body *ListNode, name string) *MsgPlaceholderNode {
	for _, child := range body.Children() {
		switch child := child.(type) {
		case *MsgPlaceholderNode:
			if child.Name == name {
				return child
			}
		case *MsgPluralNode:
			for _, c := range child.Cases {
				if ph := placeholderIn(c.Body, name); ph != nil {
					return ph
				}
			}
			if ph := placeholderIn(child.Default, name); ph != nil {
				return ph
			}
		}
	}
	return nil
}

// MsgPlaceholderNode wraps a print tag within a message, standing in for
// content that is not part of the translatable text.
type MsgPlaceholderNode struct {
	Pos
	Name string // placeholder name, e.g. "NAME_2". set by a parse pass.
	Body Node
}

func (n *MsgPlaceholderNode) String() string {
	return n.Body.String()
}

func (n *MsgPlaceholderNode) Children() []Node {
	return []Node{n.Body}
}

// MsgPluralNode selects a message variant by the value of an expression.
type MsgPluralNode struct {
	Pos
	VarName string // name of the plural variable. set by a parse pass.
	Value   Node
	Cases   []*MsgPluralCaseNode
	Default *ListNode
}

func (n *MsgPluralNode) String() string {
	var expr = "{plural " + n.Value.String() + "}"
	for _, c := range n.Cases {
		expr += c.String()
	}
	return expr + "{default}" + n.Default.String() + "{/plural}"
}

func (n *MsgPluralNode) Children() []Node {
	var nodes = []Node{n.Value}
	for _, child := range n.Cases {
		nodes = append(nodes, child)
	}
	return append(nodes, n.Default)
}

// MsgPluralCaseNode is one explicit plural case.  The case value must be an
// integer literal.
type MsgPluralCaseNode struct {
	Pos
	Value int64
	Body  *ListNode
}

func (n *MsgPluralCaseNode) String() string {
	return fmt.Sprintf("{case %d}%s", n.Value, n.Body)
}

func (n *MsgPluralCaseNode) Children() []Node {
	return []Node{n.Body}
}

// Values ----------

type NullNode struct {
	Pos
}

func (s *NullNode) String() string {
	return "null"
}

type BoolNode struct {
	Pos
	True bool
}

func (b *BoolNode) String() string {
	if b.True {
		return "true"
	}
	return "false"
}

type IntNode struct {
	Pos
	Value int64
}

func (n *IntNode) String() string {
	return strconv.FormatInt(n.Value, 10)
}

type FloatNode struct {
	Pos
	Value float64
}

func (n *FloatNode) String() string {
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}

type StringNode struct {
	Pos
	Quoted string // e.g. 'hello\tworld'
	Value  string // e.g. hello	world
}

func (s *StringNode) String() string {
	return s.Quoted
}

// GlobalNode is a reference to a global constant.  It is resolved against the
// globals map at render time.
type GlobalNode struct {
	Pos
	Name string
}

func (n *GlobalNode) String() string {
	return n.Name
}

type FunctionNode struct {
	Pos
	Name string
	Args []Node
}

func (n *FunctionNode) String() string {
	var args = make([]string, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.String()
	}
	return n.Name + "(" + strings.Join(args, ",") + ")"
}

func (n *FunctionNode) Children() []Node {
	return n.Args
}

type ListLiteralNode struct {
	Pos
	Items []Node
}

func (n *ListLiteralNode) String() string {
	var items = make([]string, len(n.Items))
	for i, item := range n.Items {
		items[i] = item.String()
	}
	return "[" + strings.Join(items, ", ") + "]"
}

func (n *ListLiteralNode) Children() []Node {
	return n.Items
}

type MapLiteralNode struct {
	Pos
	Items map[string]Node
}

func (n *MapLiteralNode) String() string {
	if len(n.Items) == 0 {
		return "[:]"
	}
	var items = make([]string, 0, len(n.Items))
	for k, v := range n.Items {
		items = append(items, fmt.Sprintf("'%s': %s", k, v.String()))
	}
	return "[" + strings.Join(items, ", ") + "]"
}

func (n *MapLiteralNode) Children() []Node {
	var nodes []Node
	for _, v := range n.Items {
		nodes = append(nodes, v)
	}
	return nodes
}

// Data references ----------

// DataRefNode is a reference rooted at a render-data variable ($name), or at
// the injected-data context for $ij.name, followed by a chain of accesses in
// source order.
type DataRefNode struct {
	Pos
	Injected bool
	Key      string
	Access   []Node
}

func (n *DataRefNode) String() string {
	var expr = "$" + n.Key
	if n.Injected {
		expr = "$ij." + n.Key
	}
	for _, access := range n.Access {
		expr += access.String()
	}
	return expr
}

func (n *DataRefNode) Children() []Node {
	return n.Access
}

type DataRefKeyNode struct {
	Pos
	NullSafe bool
	Key      string
}

func (n *DataRefKeyNode) String() string {
	var expr = "."
	if n.NullSafe {
		expr = "?" + expr
	}
	return expr + n.Key
}

type DataRefIndexNode struct {
	Pos
	NullSafe bool
	Index    int
}

func (n *DataRefIndexNode) String() string {
	var expr = "."
	if n.NullSafe {
		expr = "?" + expr
	}
	return expr + strconv.Itoa(n.Index)
}

type DataRefExprNode struct {
	Pos
	NullSafe bool
	Arg      Node
}

func (n *DataRefExprNode) String() string {
	var expr = "["
	if n.NullSafe {
		expr = "?" + expr
	}
	return expr + n.Arg.String() + "]"
}

func (n *DataRefExprNode) Children() []Node {
	return []Node{n.Arg}
}

// Operators ----------

type NotNode struct {
	Pos
	Arg Node
}

func (n *NotNode) String() string {
	return "not " + n.Arg.String()
}

func (n *NotNode) Children() []Node {
	return []Node{n.Arg}
}

type NegateNode struct {
	Pos
	Arg Node
}

func (n *NegateNode) String() string {
	return "-" + n.Arg.String()
}

func (n *NegateNode) Children() []Node {
	return []Node{n.Arg}
}

type BinaryOpNode struct {
	Name string
	Pos
	Arg1, Arg2 Node
}

func (n *BinaryOpNode) String() string {
	return n.Arg1.String() + n.Name + n.Arg2.String()
}

func (n *BinaryOpNode) Children() []Node {
	return []Node{n.Arg1, n.Arg2}
}

type (
	MulNode   struct{ BinaryOpNode }
	DivNode   struct{ BinaryOpNode }
	ModNode   struct{ BinaryOpNode }
	AddNode   struct{ BinaryOpNode }
	SubNode   struct{ BinaryOpNode }
	EqNode    struct{ BinaryOpNode }
	NotEqNode struct{ BinaryOpNode }
	GtNode    struct{ BinaryOpNode }
	GteNode   struct{ BinaryOpNode }
	LtNode    struct{ BinaryOpNode }
	LteNode   struct{ BinaryOpNode }
	OrNode    struct{ BinaryOpNode }
	AndNode   struct{ BinaryOpNode }
	ElvisNode struct{ BinaryOpNode }
)

type TernNode struct {
	Pos
	Arg1, Arg2, Arg3 Node
}

func (n *TernNode) String() string {
	return n.Arg1.String() + "?" + n.Arg2.String() + ":" + n.Arg3.String()
}

func (n *TernNode) Children() []Node {
	return []Node{n.Arg1, n.Arg2, n.Arg3}
}
