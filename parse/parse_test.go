package parse

import (
	"testing"

	"github.com/andreyvit/diff"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/kcaffrey/soy/ast"
)

// positions are not interesting to compare.
var cmpOpts = []cmp.Option{
	cmpopts.IgnoreTypes(ast.Pos(0)),
	cmpopts.EquateEmpty(),
}

func intn(v int64) *ast.IntNode     { return &ast.IntNode{Pos: 0, Value: v} }
func strn(v string) *ast.StringNode { return &ast.StringNode{Pos: 0, Quoted: "'" + v + "'", Value: v} }
func varn(name string) *ast.DataRefNode {
	return &ast.DataRefNode{Pos: 0, Injected: false, Key: name, Access: nil}
}
func bin(name string, n1, n2 ast.Node) ast.BinaryOpNode {
	return ast.BinaryOpNode{Name: name, Pos: 0, Arg1: n1, Arg2: n2}
}

type exprTest struct {
	name     string
	input    string
	expected ast.Node
}

func runExprTests(t *testing.T, tests []exprTest) {
	for _, test := range tests {
		actual, err := Expr(test.input)
		if err != nil {
			t.Errorf("%s: %s", test.name, err)
			continue
		}
		if d := cmp.Diff(test.expected, actual, cmpOpts...); d != "" {
			t.Errorf("%s: unexpected tree (-want +got):\n%s", test.name, d)
		}
	}
}

func TestExprLiterals(t *testing.T) {
	runExprTests(t, []exprTest{
		{"int", "57", intn(57)},
		{"hex int", "0x1A", intn(26)},
		{"negative int", "-5", intn(-5)},
		{"float", "56.3", &ast.FloatNode{Pos: 0, Value: 56.3}},
		{"exp float", "4.1e27", &ast.FloatNode{Pos: 0, Value: 4.1e27}},
		{"string", "'foo'", strn("foo")},
		{"bool", "true", &ast.BoolNode{Pos: 0, True: true}},
		{"null", "null", &ast.NullNode{Pos: 0}},
		{"list", "[1, 'two']", &ast.ListLiteralNode{Pos: 0, Items: []ast.Node{intn(1), strn("two")}}},
		{"empty list", "[]", &ast.ListLiteralNode{Pos: 0, Items: nil}},
		{"map", "['a': 1]", &ast.MapLiteralNode{Pos: 0, Items: map[string]ast.Node{"a": intn(1)}}},
		{"empty map", "[:]", &ast.MapLiteralNode{Pos: 0, Items: nil}},
	})
}

func TestExprPrecedence(t *testing.T) {
	runExprTests(t, []exprTest{
		// ((5 * (4 - (3 / 1))) * 2)
		{"arithmetic", "5 * (4 - 3 / 1) * 2",
			&ast.MulNode{BinaryOpNode: bin("*",
				&ast.MulNode{BinaryOpNode: bin("*",
					intn(5),
					&ast.SubNode{BinaryOpNode: bin("-",
						intn(4),
						&ast.DivNode{BinaryOpNode: bin("/", intn(3), intn(1))})})},
				intn(2))}},

		// the ternary binds looser than comparison, which binds looser than *.
		{"ternary", "5 * $foo < 27 ? 'foo' : $baz + 'bar'",
			&ast.TernNode{Pos: 0,
				Arg1: &ast.LtNode{BinaryOpNode: bin("<",
					&ast.MulNode{BinaryOpNode: bin("*", intn(5), varn("foo"))},
					intn(27))},
				Arg2: strn("foo"),
				Arg3: &ast.AddNode{BinaryOpNode: bin("+", varn("baz"), strn("bar"))}}},

		{"not binds tighter than and", "not $a and $b",
			&ast.AndNode{BinaryOpNode: bin(" and ", &ast.NotNode{Pos: 0, Arg: varn("a")}, varn("b"))}},

		{"elvis", "$a ?: 'b'",
			&ast.ElvisNode{BinaryOpNode: bin("?:", varn("a"), strn("b"))}},

		{"negate group", "-(1 + 1)",
			&ast.NegateNode{Pos: 0, Arg: &ast.AddNode{BinaryOpNode: bin("+", intn(1), intn(1))}}},
	})
}

func TestExprDataRefs(t *testing.T) {
	runExprTests(t, []exprTest{
		{"simple", "$foo", varn("foo")},
		{"injected", "$ij.foo", &ast.DataRefNode{Pos: 0, Injected: true, Key: "foo", Access: nil}},
		{"key access", "$foo.bar", &ast.DataRefNode{Pos: 0, Injected: false, Key: "foo",
			Access: []ast.Node{&ast.DataRefKeyNode{Pos: 0, NullSafe: false, Key: "bar"}}}},
		{"index access", "$foo.2", &ast.DataRefNode{Pos: 0, Injected: false, Key: "foo",
			Access: []ast.Node{&ast.DataRefIndexNode{Pos: 0, NullSafe: false, Index: 2}}}},
		{"nullsafe key", "$foo?.bar", &ast.DataRefNode{Pos: 0, Injected: false, Key: "foo",
			Access: []ast.Node{&ast.DataRefKeyNode{Pos: 0, NullSafe: true, Key: "bar"}}}},
		{"nullsafe bracket", "$foo?[0]", &ast.DataRefNode{Pos: 0, Injected: false, Key: "foo",
			Access: []ast.Node{&ast.DataRefExprNode{Pos: 0, NullSafe: true, Arg: intn(0)}}}},
		{"expr access with chain", "$ij.foo[3 * $baz]?.bar",
			&ast.DataRefNode{Pos: 0, Injected: true, Key: "foo", Access: []ast.Node{
				&ast.DataRefExprNode{Pos: 0, NullSafe: false, Arg: &ast.MulNode{BinaryOpNode: bin("*", intn(3), varn("baz"))}},
				&ast.DataRefKeyNode{Pos: 0, NullSafe: true, Key: "bar"},
			}}},
	})
}

func TestExprFunctions(t *testing.T) {
	runExprTests(t, []exprTest{
		{"no args", "randomInt(10)", &ast.FunctionNode{Pos: 0, Name: "randomInt", Args: []ast.Node{intn(10)}}},
		{"nested", "min(1, max(2, 3))", &ast.FunctionNode{Pos: 0, Name: "min", Args: []ast.Node{
			intn(1),
			&ast.FunctionNode{Pos: 0, Name: "max", Args: []ast.Node{intn(2), intn(3)}},
		}}},
	})
}

func TestExprErrors(t *testing.T) {
	var inputs = []string{
		"5 +",
		"(1",
		"'unterminated",
		"$",
		"1 ? 2",
		"[1, ",
	}
	for _, input := range inputs {
		if _, err := Expr(input); err == nil {
			t.Errorf("%q: expected a parse error", input)
		}
	}
}

func TestParseFile(t *testing.T) {
	var input = `{namespace examples.simple}

/**
 * Says hello.
 * @param name
 * @param? punctuation
 */
{template .helloName}
Hello {$name|escapeHtml}{$punctuation ?: '!'}
{/template}
`
	actual, err := SoyFile("example.soy", input)
	if err != nil {
		t.Fatal(err)
	}
	var expected = &ast.SoyFileNode{Name: "example.soy", Text: input, Body: []ast.Node{
		&ast.NamespaceNode{Pos: 0, Name: "examples.simple", Attrs: nil},
		&ast.SoyDocNode{Pos: 0, Params: []*ast.SoyDocParamNode{
			{Pos: 0, Name: "name", Optional: false},
			{Pos: 0, Name: "punctuation", Optional: true},
		}},
		&ast.TemplateNode{Pos: 0, Name: "helloName", Body: &ast.ListNode{Pos: 0, Nodes: []ast.Node{
			&ast.RawTextNode{Pos: 0, Text: "Hello ", Newline: false},
			&ast.PrintNode{Pos: 0, Arg: varn("name"),
				Directives: []*ast.PrintDirectiveNode{{Pos: 0, Name: "escapeHtml", Args: nil}}, Newline: false},
			&ast.PrintNode{Pos: 0,
				Arg:        &ast.ElvisNode{BinaryOpNode: bin("?:", varn("punctuation"), strn("!"))},
				Directives: nil, Newline: true},
		}}},
	}}
	if d := cmp.Diff(expected, actual, cmpOpts...); d != "" {
		t.Errorf("unexpected tree (-want +got):\n%s", d)
	}
}

func TestParseMsgPlural(t *testing.T) {
	var input = `{namespace msgs}

/** @param n */
{template .itemCount}
{msg meaning="itemCount" desc="Number of items."}
{plural $n}
{case 1}one item
{default}{$n} items
{/plural}
{/msg}
{/template}
`
	actual, err := SoyFile("msgs.soy", input)
	if err != nil {
		t.Fatal(err)
	}
	var expected = &ast.SoyFileNode{Name: "msgs.soy", Text: input, Body: []ast.Node{
		&ast.NamespaceNode{Pos: 0, Name: "msgs", Attrs: nil},
		&ast.SoyDocNode{Pos: 0, Params: []*ast.SoyDocParamNode{{Pos: 0, Name: "n", Optional: false}}},
		&ast.TemplateNode{Pos: 0, Name: "itemCount", Body: &ast.ListNode{Pos: 0, Nodes: []ast.Node{
			&ast.MsgNode{Pos: 0, ID: 0, Meaning: "itemCount", Desc: "Number of items.", Body: &ast.ListNode{Pos: 0, Nodes: []ast.Node{
				&ast.MsgPluralNode{Pos: 0, VarName: "", Value: varn("n"),
					Cases: []*ast.MsgPluralCaseNode{
						{Pos: 0, Value: 1, Body: &ast.ListNode{Pos: 0, Nodes: []ast.Node{
							&ast.RawTextNode{Pos: 0, Text: "one item", Newline: true},
						}}},
					},
					Default: &ast.ListNode{Pos: 0, Nodes: []ast.Node{
						&ast.PrintNode{Pos: 0, Arg: varn("n"), Directives: nil, Newline: false},
						&ast.RawTextNode{Pos: 0, Text: " items", Newline: true},
					}}},
			}}, Newline: true},
		}}},
	}}
	if d := cmp.Diff(expected, actual, cmpOpts...); d != "" {
		t.Errorf("unexpected tree (-want +got):\n%s", d)
	}
}

func TestParseGlobalsAndAliases(t *testing.T) {
	var input = `{namespace test}
{alias app.shared as s}
{alias app.config}

/** t */
{template .main}
{GLOBAL_STR} {s.color} {config.port}
{/template}
`
	actual, err := SoyFile("globals.soy", input)
	if err != nil {
		t.Fatal(err)
	}
	var tmpl *ast.TemplateNode
	for _, n := range actual.Body {
		if tn, ok := n.(*ast.TemplateNode); ok {
			tmpl = tn
		}
	}
	if tmpl == nil {
		t.Fatal("no template parsed")
	}
	var expected = &ast.ListNode{Pos: 0, Nodes: []ast.Node{
		&ast.PrintNode{Pos: 0, Arg: &ast.GlobalNode{Pos: 0, Name: "GLOBAL_STR"}, Directives: nil, Newline: false},
		&ast.RawTextNode{Pos: 0, Text: " ", Newline: false},
		// aliases expand to the aliased namespace.
		&ast.PrintNode{Pos: 0, Arg: &ast.GlobalNode{Pos: 0, Name: "app.shared.color"}, Directives: nil, Newline: false},
		&ast.RawTextNode{Pos: 0, Text: " ", Newline: false},
		&ast.PrintNode{Pos: 0, Arg: &ast.GlobalNode{Pos: 0, Name: "app.config.port"}, Directives: nil, Newline: true},
	}}
	if d := cmp.Diff(expected, tmpl.Body, cmpOpts...); d != "" {
		t.Errorf("unexpected tree (-want +got):\n%s", d)
	}
}

func TestParseErrors(t *testing.T) {
	var tests = []struct {
		name  string
		input string
	}{
		{"template before namespace", "/** t */\n{template .main}hi{/template}"},
		{"template without soydoc", "{namespace a}\n{template .main}hi{/template}"},
		{"double namespace", "{namespace a}\n{namespace b}"},
		{"unclosed template", "{namespace a}\n/** t */\n{template .main}hi"},
		{"unclosed tag", "{namespace a}\n/** t */\n{template .main}{$foo{/template}"},
		{"stray close brace", "{namespace a}\n/** t */\n{template .main}\nhi}\n{/template}"},
		{"soydoc without template", "{namespace a}\n/** t */"},
		{"alias before namespace", "{alias a.b}\n{namespace a}"},
		{"plural without default", "{namespace a}\n/** @param n */\n{template .t}" +
			"{msg desc=\"d\"}{plural $n}{case 1}one{/plural}{/msg}{/template}"},
	}
	for _, test := range tests {
		if _, err := SoyFile(test.name, test.input); err == nil {
			t.Errorf("%s: expected a parse error", test.name)
		}
	}
}

// The parse tree of most expressions prints back to its source form.
func TestExprRoundTrip(t *testing.T) {
	var exprs = []string{
		"57",
		"'foo'",
		"$foo.bar",
		"$ij.num",
		"min(1,2)",
		"app.global.str",
	}
	for _, expr := range exprs {
		node, err := Expr(expr)
		if err != nil {
			t.Errorf("%s: %s", expr, err)
			continue
		}
		if actual := node.String(); actual != expr {
			t.Errorf("round trip mismatch:\n%s", diff.LineDiff(expr, actual))
		}
	}
}
