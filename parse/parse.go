// Package parse converts a soy template into its in-memory representation (AST)
package parse

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"unicode"

	"github.com/kcaffrey/soy/ast"
	"github.com/kcaffrey/soy/errortypes"
)

// tree is the parsed representation of a single soy file.
type tree struct {
	name        string            // name provided for the input
	text        string            // the full input text
	lex         *lexer            // lexer provides a sequence of tokens
	token       [3]item           // three-token lookahead
	peekCount   int               // how many tokens have we backed up?
	namespace   string            // the current namespace, for error messages
	template    string            // the local name of the template being parsed
	aliases     map[string]string // map from alias to namespace e.g. {"c": "a.b.c"}
	trimLeading bool              // trim leading space on the next raw text run
}

// SoyFile parses the input into a SoyFileNode (the AST).
// Errors are returned as *errortypes.CompileError values.
func SoyFile(name, text string) (node *ast.SoyFileNode, err error) {
	var t = &tree{
		name:    name,
		text:    text,
		aliases: make(map[string]string),
		lex:     lex(name, text),
	}
	defer t.recover(&err)
	var body = t.parseRoot()
	t.lex = nil
	return &ast.SoyFileNode{
		Name: t.name,
		Text: t.text,
		Body: body,
	}, nil
}

// parseRoot processes the file level: an optional {delpackage}, the
// {namespace} declaration, {alias}es, and soydoc/template pairs.  Raw text is
// not allowed outside templates, and each of the three directives must be the
// last thing on its source line.
func (t *tree) parseRoot() []ast.Node {
	var (
		body        []ast.Node
		pendingDoc  *ast.SoyDocNode
		needNewline bool // set after a directive tag; cleared by a line break
		sawDelpack  bool
	)
	for {
		switch tok := t.next(); tok.typ {
		case itemEOF:
			if t.namespace == "" {
				t.errorf("missing namespace declaration")
			}
			if pendingDoc != nil {
				t.errorf("soydoc comment is not followed by a template")
			}
			return body
		case itemText:
			if !allSpace(tok.val) {
				t.errorf("unexpected raw text outside any template: %.20q", tok.val)
			}
			if strings.Contains(tok.val, "\n") {
				needNewline = false
			}
		case itemComment:
			if strings.HasPrefix(tok.val, "//") {
				needNewline = false
			}
		case itemSoyDocStart:
			if needNewline {
				t.errorf("a directive must be the last thing on its line")
			}
			if pendingDoc != nil {
				t.errorf("soydoc comment is not followed by a template")
			}
			pendingDoc = t.parseSoyDoc(tok)
			body = append(body, pendingDoc)
		case itemLeftDelim:
			if needNewline {
				t.errorf("a directive must be the last thing on its line")
			}
			switch cmd := t.next(); cmd.typ {
			case itemDelpackage:
				if sawDelpack {
					t.errorf("file may have only one delpackage declaration")
				}
				if t.namespace != "" {
					t.errorf("delpackage must come before the namespace declaration")
				}
				if pendingDoc != nil {
					t.errorf("soydoc comment is not followed by a template")
				}
				sawDelpack = true
				body = append(body, t.parseDelpackage(cmd))
				needNewline = true
			case itemNamespace:
				if pendingDoc != nil {
					t.errorf("soydoc comment is not followed by a template")
				}
				body = append(body, t.parseNamespace(cmd))
				needNewline = true
			case itemAlias:
				if pendingDoc != nil {
					t.errorf("soydoc comment is not followed by a template")
				}
				if t.namespace == "" {
					t.errorf("alias must come after the namespace declaration")
				}
				body = append(body, t.parseAlias(cmd))
				needNewline = true
			case itemTemplate:
				if t.namespace == "" {
					t.errorf("missing namespace declaration")
				}
				if pendingDoc == nil {
					t.errorf("template must be preceded by a soydoc comment declaring its parameters")
				}
				body = append(body, t.parseTemplate(cmd))
				pendingDoc = nil
			default:
				t.unexpected(cmd, "input")
			}
		default:
			t.unexpected(tok, "input")
		}
	}
}

// itemList:
//
//	textOrTag*
//
// Terminates when it comes across the given end tag.
func (t *tree) itemList(until ...itemType) *ast.ListNode {
	var list *ast.ListNode
	var last ast.Node // most recent node able to carry a Newline flag
	for {
		var token = t.next()
		if list == nil {
			list = &ast.ListNode{Pos: token.pos, Nodes: nil}
		}
		var nodes, halt = t.textOrTag(token, &last, until)
		if halt {
			return list
		}
		list.Nodes = append(list.Nodes, nodes...)
	}
}

// textOrTag reads raw text or recognizes the start of tags until the end tag.
func (t *tree) textOrTag(token item, last *ast.Node, until []itemType) (nodes []ast.Node, halt bool) {
	for token.typ == itemComment {
		// a comment ends the source line for joining purposes.
		markNewline(*last)
		t.trimLeading = true
		token = t.next()
	}

	// Two ways to end a list:
	// 1. We found the until token (e.g. EOF)
	if isOneOf(token.typ, until) {
		return nil, true
	}

	// 2. The until token is a command, e.g. {/template}
	var token2 = t.next()
	if token.typ == itemLeftDelim && isOneOf(token2.typ, until) {
		return nil, true
	}

	t.backup()
	switch token.typ {
	case itemText:
		var text = token.val
		var next item
		for {
			next = t.next()
			if next.typ != itemText {
				break
			}
			text += next.val
		}
		t.backup()
		var segs, leadingBreak = rawTextSegments(text, token.pos, t.trimLeading)
		t.trimLeading = false
		if leadingBreak {
			markNewline(*last)
		}
		for _, seg := range segs {
			nodes = append(nodes, seg)
		}
		if len(segs) > 0 {
			*last = segs[len(segs)-1]
		}
		return nodes, false
	case itemLeftDelim:
		t.trimLeading = false
		var node = t.beginTag()
		if node != nil {
			switch node.(type) {
			case *ast.SpecialCharNode:
				// specials take no part in whitespace joining.
				*last = nil
			default:
				*last = node
			}
			nodes = append(nodes, node)
		}
		return nodes, false
	default:
		t.unexpected(token, "template body")
	}
	return nil, false
}

// markNewline records that a source line break (or comment) followed the
// given node.  Trailing spaces left before a comment are dropped.
func markNewline(n ast.Node) {
	switch n := n.(type) {
	case *ast.RawTextNode:
		n.Text = strings.TrimRight(n.Text, " \t")
		n.Newline = true
	case *ast.PrintNode:
		n.Newline = true
	case *ast.MsgNode:
		n.Newline = true
	}
}

var specialChars = map[itemType]string{
	itemNil:            "",
	itemSpace:          " ",
	itemTab:            "\t",
	itemNewline:        "\n",
	itemCarriageReturn: "\r",
	itemLeftBrace:      "{",
	itemRightBrace:     "}",
}

// beginTag parses the contents of delimiters (within a template)
// The contents could be a command, variable, expression, etc.
// { already read.
func (t *tree) beginTag() ast.Node {
	switch token := t.next(); token.typ {
	case itemMsg:
		return t.parseMsg(token)
	case itemNil, itemSpace, itemTab, itemNewline, itemCarriageReturn, itemLeftBrace, itemRightBrace:
		t.expect(itemRightDelim, "special char")
		return &ast.SpecialCharNode{Pos: token.pos, Tag: token.val, Text: specialChars[token.typ]}
	case itemNamespace, itemAlias, itemDelpackage, itemTemplate:
		t.errorf("{%s} is only allowed at the top level of a file", token.val)
	case itemIdent, itemDollarIdent, itemNull, itemBool, itemFloat, itemInteger, itemString,
		itemNegate, itemNot, itemLeftBracket, itemLeftParen:
		// print is implicit, so the tag may also begin with any value type or unary op.
		t.backup()
		fallthrough
	case itemPrint:
		return t.parsePrint(token)
	default:
		t.unexpected(token, "tag")
	}
	return nil
}

// print has just been read (or inferred)
func (t *tree) parsePrint(token item) ast.Node {
	var expr = t.parseExpr(0)
	var directives []*ast.PrintDirectiveNode
	for {
		switch tok := t.next(); tok.typ {
		case itemRightDelim:
			return &ast.PrintNode{Pos: token.pos, Arg: expr, Directives: directives, Newline: false}
		case itemPipe:
			// read the directive name and see if there are arguments
			var id = t.expect(itemIdent, "print directive")
			var args []ast.Node
			for {
				// each argument is preceeded by a colon (first arg) or comma (subsequent)
				switch next := t.next(); next.typ {
				case itemColon, itemComma:
					args = append(args, t.parseExpr(0))
					continue
				}
				t.backup()
				directives = append(directives, &ast.PrintDirectiveNode{Pos: tok.pos, Name: id.val, Args: args})
				break
			}
		default:
			t.unexpected(tok, "print. (expected '|' or '}')")
		}
	}
}

// "delpackage" has just been read.
func (t *tree) parseDelpackage(token item) ast.Node {
	var name = t.expect(itemIdent, "delpackage").val
	t.expect(itemRightDelim, "delpackage")
	return &ast.DelpackageNode{Pos: token.pos, Name: name}
}

// parseAlias returns the alias node and records the abbreviation.
// "alias" has just been read.
func (t *tree) parseAlias(token item) ast.Node {
	var name = t.expect(itemIdent, "alias").val
	var lastSegment = name
	for {
		switch next := t.next(); next.typ {
		case itemDotIdent:
			name += next.val
			lastSegment = next.val[1:]
		case itemIdent:
			if next.val != "as" {
				t.unexpected(next, "alias. (expected 'as' or '}')")
			}
			var as = t.expect(itemIdent, "alias").val
			t.expect(itemRightDelim, "alias")
			t.aliases[as] = name
			return &ast.AliasNode{Pos: token.pos, From: name, As: as}
		case itemRightDelim:
			t.aliases[lastSegment] = name
			return &ast.AliasNode{Pos: token.pos, From: name, As: ""}
		default:
			t.unexpected(next, "alias. (expected '}')")
		}
	}
}

func (t *tree) parseSoyDoc(token item) *ast.SoyDocNode {
	var params []*ast.SoyDocParamNode
	for {
		var optional = false
		switch next := t.next(); next.typ {
		case itemSoyDocOptionalParam:
			optional = true
			fallthrough
		case itemSoyDocParam:
			var ident = t.expect(itemIdent, "soydoc param")
			params = append(params, &ast.SoyDocParamNode{Pos: next.pos, Name: ident.val, Optional: optional})
		case itemSoyDocEnd:
			return &ast.SoyDocNode{Pos: token.pos, Params: params}
		default:
			t.unexpected(next, "soydoc")
		}
	}
}

func inStringSlice(item string, group []string) bool {
	for _, x := range group {
		if x == item {
			return true
		}
	}
	return false
}

// parseAttrs reads quoted name="value" attribute pairs until the closing
// delimiter.  An empty allowedNames accepts any attribute name.
func (t *tree) parseAttrs(allowedNames ...string) map[string]string {
	var result = make(map[string]string)
	for {
		switch tok := t.next(); tok.typ {
		case itemIdent:
			if len(allowedNames) > 0 && !inStringSlice(tok.val, allowedNames) {
				t.unexpected(tok, fmt.Sprintf("attributes. allowed: %v", allowedNames))
			}
			t.expect(itemEquals, "attribute")
			var attrval = t.expect(itemString, "attribute")
			var value string
			var err error
			if attrval.val[0] == '"' {
				value, err = strconv.Unquote(attrval.val)
			} else {
				value, err = unquoteString(attrval.val)
			}
			if err != nil {
				t.error(err)
			}
			result[tok.val] = value
		case itemRightDelim, itemRightDelimEnd:
			t.backup()
			return result
		default:
			t.unexpected(tok, "attributes")
		}
	}
}

// "msg" has just been read.
func (t *tree) parseMsg(token item) ast.Node {
	const ctx = "msg"
	var attrs = t.parseAttrs("desc", "meaning", "hidden")
	if _, ok := attrs["desc"]; !ok {
		t.errorf("Tag 'msg' must have a 'desc' attribute")
	}
	t.expect(itemRightDelim, ctx)
	var node = &ast.MsgNode{Pos: token.pos, ID: 0, Meaning: attrs["meaning"], Desc: attrs["desc"], Body: nil, Newline: false}
	if plural := t.parseMsgPlural(); plural != nil {
		node.Body = &ast.ListNode{Pos: plural.Pos, Nodes: []ast.Node{plural}}
		// the plural block must be the entire message body.
		for {
			switch tok := t.next(); tok.typ {
			case itemText:
				if !allSpace(tok.val) {
					t.unexpected(tok, "msg with plural (no content allowed outside the plural block)")
				}
			case itemComment:
			case itemLeftDelim:
				t.expect(itemMsgEnd, ctx)
				t.expect(itemRightDelim, ctx)
				return node
			default:
				t.unexpected(tok, ctx)
			}
		}
	}
	node.Body = t.itemList(itemMsgEnd)
	t.expect(itemRightDelim, ctx)
	return node
}

// parseMsgPlural looks ahead for a {plural} block beginning the message body
// and parses it if found.  Returns nil for ordinary message content.
func (t *tree) parseMsgPlural() *ast.MsgPluralNode {
	var tok1 = t.next()
	if tok1.typ == itemText && allSpace(tok1.val) {
		var tok2 = t.next()
		if tok2.typ == itemLeftDelim {
			var tok3 = t.next()
			if tok3.typ == itemPlural {
				return t.parsePlural(tok3)
			}
			t.backup3(tok2, tok1)
			return nil
		}
		t.backup2(tok1)
		return nil
	}
	if tok1.typ == itemLeftDelim {
		var tok2 = t.next()
		if tok2.typ == itemPlural {
			return t.parsePlural(tok2)
		}
		t.backup2(tok1)
		return nil
	}
	t.backup()
	return nil
}

// "plural" has just been read.
func (t *tree) parsePlural(token item) *ast.MsgPluralNode {
	const ctx = "plural"
	var value = t.parseExpr(0)
	t.expect(itemRightDelim, ctx)
	var cases []*ast.MsgPluralCaseNode
	var def *ast.ListNode
	for {
		switch tok := t.next(); tok.typ {
		case itemLeftDelim:
		case itemText: // whitespace between cases is fine. content is not.
			if !allSpace(tok.val) {
				t.unexpected(tok, "between plural cases")
			}
		case itemComment:
		case itemCase:
			if def != nil {
				t.errorf("plural: {default} must come after all {case}s")
			}
			cases = append(cases, t.parsePluralCase(tok))
		case itemDefault:
			if def != nil {
				t.errorf("plural: multiple {default} cases")
			}
			t.expect(itemRightDelim, ctx)
			def = t.itemList(itemCase, itemDefault, itemPluralEnd)
			t.backup()
		case itemPluralEnd:
			if def == nil {
				t.errorf("plural requires a {default} case")
			}
			t.expect(itemRightDelim, ctx)
			return &ast.MsgPluralNode{Pos: token.pos, VarName: "", Value: value, Cases: cases, Default: def}
		default:
			t.unexpected(tok, ctx)
		}
	}
}

// "case" has just been read.
func (t *tree) parsePluralCase(token item) *ast.MsgPluralCaseNode {
	var expr = t.parseExpr(0)
	num, ok := expr.(*ast.IntNode)
	if !ok {
		t.errorf("plural case requires an integer literal")
	}
	t.expect(itemRightDelim, "plural case")
	var body = t.itemList(itemCase, itemDefault, itemPluralEnd)
	t.backup()
	return &ast.MsgPluralCaseNode{Pos: token.pos, Value: num.Value, Body: body}
}

func (t *tree) parseNamespace(token item) ast.Node {
	if t.namespace != "" {
		t.errorf("file may have only one namespace declaration")
	}
	const ctx = "namespace"
	var name = t.expect(itemIdent, ctx).val
	for {
		switch part := t.next(); part.typ {
		case itemDotIdent:
			name += part.val
		default:
			t.backup()
			var attrs = t.parseAttrs()
			t.expect(itemRightDelim, ctx)
			t.namespace = name
			return &ast.NamespaceNode{Pos: token.pos, Name: name, Attrs: attrs}
		}
	}
}

func (t *tree) parseTemplate(token item) ast.Node {
	const ctx = "template tag"
	var id = t.expect(itemDotIdent, ctx)
	t.expect(itemRightDelim, ctx)
	t.template = id.val[1:]
	t.trimLeading = false
	tmpl := &ast.TemplateNode{
		Pos:  token.pos,
		Name: id.val[1:],
		Body: t.itemList(itemTemplateEnd),
	}
	t.expect(itemRightDelim, ctx)
	t.template = ""
	return tmpl
}

// Expressions ----------

// Expr returns the parsed representation of the given soy expression.
// An expression is basically anything that you can put inside a print tag.
// For example, string, list or map literals, arithmetic, boolean operations, etc.
func Expr(str string) (node ast.Node, err error) {
	var t = &tree{name: "expression", text: str, lex: lexExpr("expression", str)}
	defer t.recover(&err)
	node = t.parseExpr(0)
	switch tok := t.next(); tok.typ {
	case itemEOF, itemError:
	default:
		t.unexpected(tok, "expression")
	}
	return node, err
}

// Operator precedence, tightest first:
//
//	unary - !    * / %    + -    < <= > >=    == !=    &&    ||    ?:
var precedence = map[itemType]int{
	itemNot:    7,
	itemNegate: 7,
	itemMul:    6,
	itemDiv:    6,
	itemMod:    6,
	itemAdd:    5,
	itemSub:    5,
	itemLt:     4,
	itemLte:    4,
	itemGt:     4,
	itemGte:    4,
	itemEq:     3,
	itemNotEq:  3,
	itemAnd:    2,
	itemOr:     1,
	itemElvis:  0,
}

// parseExpr parses an arbitrary expression involving function applications and
// arithmetic.
//
// For handling binary operators, we use the Precedence Climbing algorithm described in:
//
//	http://www.engr.mun.ca/~theo/Misc/exp_parsing.htm
func (t *tree) parseExpr(prec int) ast.Node {
	n := t.parseExprFirstTerm()
	var tok item
	for {
		tok = t.next()
		q := precedence[tok.typ]
		if !isBinaryOp(tok.typ) || q < prec {
			break
		}
		q++
		n = newBinaryOpNode(tok, n, t.parseExpr(q))
	}
	if prec == 0 && tok.typ == itemTernIf {
		return t.parseTernary(n)
	}
	t.backup()
	return n
}

// Primary ->   "(" Expr ")"
//
//	| u=UnaryOp PrecExpr(prec(u))
//	| FunctionCall | DataRef | Global | ListLiteral | MapLiteral | Primitive
func (t *tree) parseExprFirstTerm() ast.Node {
	switch tok := t.next(); {
	case isUnaryOp(tok):
		return newUnaryOpNode(tok, t.parseExpr(precedence[tok.typ]))
	case tok.typ == itemLeftParen:
		n := t.parseExpr(0)
		t.expect(itemRightParen, "soy expression")
		return n
	case isValue(tok):
		return t.newValueNode(tok)
	default:
		t.unexpected(tok, "soy expression")
	}
	return nil
}

// DataRef ->  ( "$ij." Ident | DollarIdent )
//
//	(   DotIdent | QuestionDotIdent | DotIndex | QuestionDotIndex
//	  | "[" Expr "]" | "?[" Expr "]" )*
func (t *tree) parseDataRef(tok item) ast.Node {
	var ref = &ast.DataRefNode{Pos: tok.pos, Injected: false, Key: tok.val[1:], Access: nil}
	if ref.Key == "ij" {
		// $ij is not a variable; it roots a reference into the injected data.
		var key = t.next()
		if key.typ != itemDotIdent {
			t.errorf("$ij must be followed by a key access, e.g. $ij.foo")
		}
		ref.Injected = true
		ref.Key = key.val[1:]
	}
	for {
		var accessNode ast.Node
		var nullsafe = 0
		switch tok := t.next(); tok.typ {
		case itemQuestionDotIdent:
			nullsafe = 1
			fallthrough
		case itemDotIdent:
			accessNode = &ast.DataRefKeyNode{Pos: tok.pos, NullSafe: nullsafe == 1, Key: tok.val[nullsafe+1:]}
		case itemQuestionDotIndex:
			nullsafe = 1
			fallthrough
		case itemDotIndex:
			index, err := strconv.ParseInt(tok.val[nullsafe+1:], 10, 0)
			if err != nil {
				t.error(err)
			}
			accessNode = &ast.DataRefIndexNode{Pos: tok.pos, NullSafe: nullsafe == 1, Index: int(index)}
		case itemQuestionKey:
			nullsafe = 1
			fallthrough
		case itemLeftBracket:
			accessNode = &ast.DataRefExprNode{Pos: tok.pos, NullSafe: nullsafe == 1, Arg: t.parseExpr(0)}
			t.expect(itemRightBracket, "dataref")
		default:
			t.backup()
			return ref
		}
		ref.Access = append(ref.Access, accessNode)
	}
}

// "[" has just been read
func (t *tree) parseListOrMap(token item) ast.Node {
	// check if it's empty
	switch t.next().typ {
	case itemColon:
		t.expect(itemRightBracket, "map literal")
		return &ast.MapLiteralNode{Pos: token.pos, Items: nil}
	case itemRightBracket:
		return &ast.ListLiteralNode{Pos: token.pos, Items: nil}
	}
	t.backup()

	// parse the first expression, and check the subsequent delimiter
	var firstExpr = t.parseExpr(0)
	switch tok := t.next(); tok.typ {
	case itemColon:
		return t.parseMapLiteral(token, firstExpr)
	case itemComma:
		return t.parseListLiteral(token, firstExpr)
	case itemRightBracket:
		return &ast.ListLiteralNode{Pos: token.pos, Items: []ast.Node{firstExpr}}
	default:
		t.unexpected(tok, "list/map literal")
	}
	return nil
}

// the first item in the list is provided.
// "," has just been read.
//
//	ListLiteral -> "[" [ Expr ( "," Expr )* [ "," ] ] "]"
func (t *tree) parseListLiteral(first item, expr ast.Node) ast.Node {
	var items []ast.Node
	items = append(items, expr)
	for {
		items = append(items, t.parseExpr(0))
		next := t.next()
		if next.typ == itemRightBracket {
			return &ast.ListLiteralNode{Pos: first.pos, Items: items}
		}
		if next.typ != itemComma {
			t.unexpected(next, "parsing value list")
		}
	}
}

// the first key in the map is provided
// ":" has just been read.
// MapLiteral -> "[" ( ":" | Expr ":" Expr ( "," Expr ":" Expr )* [ "," ] ) "]"
// Keys must be string literals.  A duplicated key takes its last value.
func (t *tree) parseMapLiteral(first item, expr ast.Node) ast.Node {
	firstKey, ok := expr.(*ast.StringNode)
	if !ok {
		t.errorf("expected a string as map key, got: %T", expr)
	}

	var items = make(map[string]ast.Node)
	var key = firstKey.Value
	for {
		items[key] = t.parseExpr(0)
		next := t.next()
		if next.typ == itemRightBracket {
			return &ast.MapLiteralNode{Pos: first.pos, Items: items}
		}
		if next.typ != itemComma {
			t.unexpected(next, "map literal")
		}
		tok := t.expect(itemString, "map literal")
		var err error
		key, err = unquoteString(tok.val)
		if err != nil {
			t.error(err)
		}
		t.expect(itemColon, "map literal")
	}
}

// parseTernary parses the ternary operator within an expression.
// itemTernIf has already been read, and the condition is provided.
func (t *tree) parseTernary(cond ast.Node) ast.Node {
	n1 := t.parseExpr(0)
	t.expect(itemColon, "ternary")
	n2 := t.parseExpr(0)
	result := &ast.TernNode{Pos: cond.Position(), Arg1: cond, Arg2: n1, Arg3: n2}
	if t.peek().typ == itemColon {
		t.next()
		return t.parseTernary(result)
	}
	return result
}

func isBinaryOp(typ itemType) bool {
	switch typ {
	case itemMul, itemDiv, itemMod,
		itemAdd, itemSub,
		itemEq, itemNotEq, itemGt, itemGte, itemLt, itemLte,
		itemOr, itemAnd, itemElvis:
		return true
	}
	return false
}

func isUnaryOp(t item) bool {
	switch t.typ {
	case itemNot, itemNegate:
		return true
	}
	return false
}

func isValue(t item) bool {
	switch t.typ {
	case itemNull, itemBool, itemInteger, itemFloat, itemDollarIdent, itemString:
		return true
	case itemIdent:
		return true // function / global returns a value
	case itemLeftBracket:
		return true // list or map literal
	}
	return false
}

func op(n ast.BinaryOpNode, name string) ast.BinaryOpNode {
	n.Name = name
	return n
}

func newBinaryOpNode(t item, n1, n2 ast.Node) ast.Node {
	var bin = ast.BinaryOpNode{Name: "", Pos: t.pos, Arg1: n1, Arg2: n2}
	switch t.typ {
	case itemMul:
		return &ast.MulNode{BinaryOpNode: op(bin, "*")}
	case itemDiv:
		return &ast.DivNode{BinaryOpNode: op(bin, "/")}
	case itemMod:
		return &ast.ModNode{BinaryOpNode: op(bin, "%")}
	case itemAdd:
		return &ast.AddNode{BinaryOpNode: op(bin, "+")}
	case itemSub:
		return &ast.SubNode{BinaryOpNode: op(bin, "-")}
	case itemEq:
		return &ast.EqNode{BinaryOpNode: op(bin, "==")}
	case itemNotEq:
		return &ast.NotEqNode{BinaryOpNode: op(bin, "!=")}
	case itemGt:
		return &ast.GtNode{BinaryOpNode: op(bin, ">")}
	case itemGte:
		return &ast.GteNode{BinaryOpNode: op(bin, ">=")}
	case itemLt:
		return &ast.LtNode{BinaryOpNode: op(bin, "<")}
	case itemLte:
		return &ast.LteNode{BinaryOpNode: op(bin, "<=")}
	case itemOr:
		return &ast.OrNode{BinaryOpNode: op(bin, " or ")}
	case itemAnd:
		return &ast.AndNode{BinaryOpNode: op(bin, " and ")}
	case itemElvis:
		return &ast.ElvisNode{BinaryOpNode: op(bin, "?:")}
	}
	panic("unimplemented")
}

func newUnaryOpNode(t item, n1 ast.Node) ast.Node {
	switch t.typ {
	case itemNot:
		return &ast.NotNode{Pos: t.pos, Arg: n1}
	case itemNegate:
		return &ast.NegateNode{Pos: t.pos, Arg: n1}
	}
	panic("unreachable")
}

func (t *tree) newValueNode(tok item) ast.Node {
	switch tok.typ {
	case itemNull:
		return &ast.NullNode{Pos: tok.pos}
	case itemBool:
		return &ast.BoolNode{Pos: tok.pos, True: tok.val == "true"}
	case itemInteger:
		// base 0 accepts the 0x hex form too.
		value, err := strconv.ParseInt(tok.val, 0, 64)
		if err != nil {
			t.error(err)
		}
		return &ast.IntNode{Pos: tok.pos, Value: value}
	case itemFloat:
		value, err := strconv.ParseFloat(tok.val, 64)
		if err != nil {
			t.error(err)
		}
		return &ast.FloatNode{Pos: tok.pos, Value: value}
	case itemString:
		if tok.val[0] == '"' {
			t.errorf("string literals must use single quotes, got: %s", tok.val)
		}
		s, err := unquoteString(tok.val)
		if err != nil {
			t.errorf("error unquoting %s: %s", tok.val, err)
		}
		return &ast.StringNode{Pos: tok.pos, Quoted: tok.val, Value: s}
	case itemLeftBracket:
		return t.parseListOrMap(tok)
	case itemDollarIdent:
		return t.parseDataRef(tok)
	case itemIdent:
		next := t.next()
		if next.typ != itemLeftParen {
			return t.newGlobalNode(tok, next)
		}
		return t.newFunctionNode(tok)
	}
	panic("unreachable")
}

// newGlobalNode returns a reference to a global constant.  An {alias} in
// effect replaces the leading name segment; the full name is resolved at
// render time against the globals the renderer was given.
func (t *tree) newGlobalNode(tok, next item) ast.Node {
	var name = tok.val
	for next.typ == itemDotIdent {
		name += next.val
		next = t.next()
	}
	t.backup()
	if full, ok := t.aliases[tok.val]; ok {
		name = full + name[len(tok.val):]
	}
	return &ast.GlobalNode{Pos: tok.pos, Name: name}
}

func (t *tree) newFunctionNode(tok item) ast.Node {
	node := &ast.FunctionNode{Pos: tok.pos, Name: tok.val, Args: nil}
	if t.peek().typ == itemRightParen {
		t.next()
		return node
	}
	for {
		node.Args = append(node.Args, t.parseExpr(0))
		switch tok := t.next(); tok.typ {
		case itemComma:
			// continue to get the next arg
		case itemRightParen:
			return node // all done
		case itemEOF:
			t.errorf("unexpected eof reading function params")
		default:
			t.unexpected(tok, "reading function params")
		}
	}
}

// Helpers ----------

// next returns the next token.
func (t *tree) next() item {
	if t.peekCount > 0 {
		t.peekCount--
	} else {
		t.token[0] = t.lex.nextItem()
	}
	return t.token[t.peekCount]
}

// backup backs the input stream up one token.
func (t *tree) backup() {
	t.peekCount++
}

// backup2 backs the input stream up two tokens.
// The zeroth token is already there.
func (t *tree) backup2(t1 item) {
	t.token[1] = t1
	t.peekCount = 2
}

// backup3 backs the input stream up three tokens.
// The zeroth token is already there.
func (t *tree) backup3(t2, t1 item) {
	t.token[1] = t2
	t.token[2] = t1
	t.peekCount = 3
}

// peek returns but does not consume the next token.
func (t *tree) peek() item {
	if t.peekCount > 0 {
		return t.token[t.peekCount-1]
	}
	t.peekCount = 1
	t.token[0] = t.lex.nextItem()
	return t.token[0]
}

// recover is the handler that turns panics into returns from the top level of Parse.
func (t *tree) recover(errp *error) {
	e := recover()
	if e == nil {
		return
	}
	if _, ok := e.(runtime.Error); ok {
		panic(e)
	}
	t.lex = nil
	switch e := e.(type) {
	case *errortypes.CompileError:
		*errp = e
	case error:
		*errp = e
	default:
		*errp = fmt.Errorf("%v", e)
	}
}

// expect consumes the next token and guarantees it has the required type.
func (t *tree) expect(expected itemType, context string) item {
	token := t.next()
	if token.typ != expected {
		t.unexpected(token, fmt.Sprintf("%v (expected %v)", context, expected.String()))
	}
	return token
}

// unexpected complains about the token and terminates processing.
func (t *tree) unexpected(token item, context string) {
	if token.typ == itemError {
		t.errorf("lexical error: %v", token)
	}
	t.errorf("unexpected %v in %s", token, context)
}

// errorf formats the error and terminates processing.
func (t *tree) errorf(format string, args ...interface{}) {
	// get current token (taking account of backups)
	var tok = t.token[0]
	if t.peekCount > 0 {
		tok = t.token[t.peekCount-1]
	}
	panic(&errortypes.CompileError{
		Kind:     errortypes.ErrParse,
		Location: t.location(tok.pos),
		Cause:    fmt.Errorf(format, args...),
	})
}

// error terminates processing.
func (t *tree) error(err error) {
	t.errorf("%s", err)
}

// location describes the given position for error reporting.
func (t *tree) location(pos ast.Pos) *errortypes.TemplateLocation {
	var loc = &errortypes.TemplateLocation{Filename: t.name}
	if t.template != "" {
		loc.TemplateName = t.namespace + "." + t.template
	}
	if t.lex != nil && int(pos) <= len(t.text) {
		loc.Line = t.lex.lineNumber(pos)
		loc.Col = t.lex.columnNumber(pos)
		loc.Snippet = lineAt(t.text, pos)
	}
	return loc
}

// lineAt returns the full source line containing the given byte position.
func lineAt(text string, pos ast.Pos) string {
	var begin = strings.LastIndex(text[:pos], "\n") + 1
	var end = strings.Index(text[pos:], "\n")
	if end == -1 {
		end = len(text)
	} else {
		end += int(pos)
	}
	return strings.TrimRight(text[begin:end], "\r")
}

func isOneOf(tocheck itemType, against []itemType) bool {
	for _, x := range against {
		if tocheck == x {
			return true
		}
	}
	return false
}

func allSpace(str string) bool {
	for _, ch := range str {
		if !unicode.IsSpace(ch) {
			return false
		}
	}
	return true
}
