package pomsg

import (
	"fmt"
	"testing"

	"github.com/kcaffrey/soy/ast"
	"github.com/kcaffrey/soy/parse"
	"github.com/kcaffrey/soy/soymsg"
)

func TestValidate(t *testing.T) {
	type test struct {
		msg       *ast.MsgNode
		validates bool
	}
	var tests = []test{
		{msg(t, ""), true},
		{msg(t, "hello world"), true},
		{msg(t, "{plural $n}{case 1}one{default}other{/plural}"), true},
		{msg(t, "{plural $n}{default}other{/plural}"), false},
		{msg(t, "{plural $n}{case 2}two{default}other{/plural}"), false},
	}

	for _, test := range tests {
		var err = Validate(test.msg)
		switch {
		case test.validates && err != nil:
			t.Errorf("should validate, but got %v: %v", err, test.msg)
		case !test.validates && err == nil:
			t.Errorf("should fail, but didn't: %v", test.msg)
		}
	}
}

func TestMsgId(t *testing.T) {
	type test struct {
		msg         *ast.MsgNode
		msgid       string
		msgidPlural string
	}
	var tests = []test{
		{msg(t, ""), "", ""},
		{msg(t, "hello world"), "hello world", ""},
		{msg(t, "{plural length($users)}{case 1}one{default}other{/plural}"), "one", "other"},
		{msg(t, "{plural length($users)}{case 1}one{default}{length($users)} users{/plural}"),
			"one", "{XXX} users"},
	}

	for _, test := range tests {
		var (
			msgid       = Msgid(test.msg)
			msgidPlural = MsgidPlural(test.msg)
		)
		if msgid != test.msgid {
			t.Errorf("(actual) %v != %v (expected)", msgid, test.msgid)
		}
		if msgidPlural != test.msgidPlural {
			t.Errorf("(actual) %v != %v (expected)", msgidPlural, test.msgidPlural)
		}
	}
}

func msg(t *testing.T, body string) *ast.MsgNode {
	var src = fmt.Sprintf(`
{namespace test}
/** @param n @param users */
{template .main}
{msg desc=""}%s{/msg}
{/template}
`, body)
	var sf, err = parse.SoyFile("", src)
	if err != nil {
		t.Fatal(err)
	}
	for _, node := range sf.Body {
		tmpl, ok := node.(*ast.TemplateNode)
		if !ok {
			continue
		}
		for _, child := range tmpl.Body.Nodes {
			if msgnode, ok := child.(*ast.MsgNode); ok {
				soymsg.SetPlaceholdersAndID(msgnode)
				return msgnode
			}
		}
	}
	t.Fatal("no msg node found")
	return nil
}
