package soytext

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"text/template"
	"unicode/utf8"

	"github.com/kcaffrey/soy/data"
)

// PrintDirective represents a transformation applied when printing a value.
type PrintDirective struct {
	Apply           func(value data.Value, args []data.Value) data.Value
	ValidArgLengths []int
}

// DefaultPrintDirectives are the builtin print directives.
var DefaultPrintDirectives = map[string]PrintDirective{
	"insertWordBreaks":  {directiveInsertWordBreaks, []int{1}},
	"changeNewlineToBr": {directiveChangeNewlineToBr, []int{0}},
	"truncate":          {directiveTruncate, []int{1, 2}},
	"id":                {directiveIdentity, []int{0}},
	"escapeHtml":        {directiveEscapeHtml, []int{0}},
	"escapeUri":         {directiveEscapeUri, []int{0}},
	"escapeJsString":    {directiveEscapeJsString, []int{0}},
	"json":              {directiveJson, []int{0}},
}

func directiveInsertWordBreaks(value data.Value, args []data.Value) data.Value {
	var (
		input    = value.String()
		maxChars = int(args[0].(data.Int))
		chars    = 0
		output   *bytes.Buffer // create the buffer lazily
	)
	for i, ch := range input {
		switch {
		case ch == ' ':
			chars = 0
		case chars >= maxChars:
			if output == nil {
				output = bytes.NewBufferString(input[:i])
			}
			output.WriteString("<wbr>")
			chars = 1
		default:
			chars++
		}
		if output != nil {
			output.WriteRune(ch)
		}
	}
	if output == nil {
		return value
	}
	return data.String(output.String())
}

var newlinePattern = regexp.MustCompile(`\r\n|\r|\n`)

func directiveChangeNewlineToBr(value data.Value, _ []data.Value) data.Value {
	return data.String(newlinePattern.ReplaceAllString(value.String(), "<br>"))
}

func directiveTruncate(value data.Value, args []data.Value) data.Value {
	if !isInt(args[0]) {
		panic(fmt.Errorf("first parameter of '|truncate' is not an integer: %v", args[0]))
	}
	var maxLen = int(args[0].(data.Int))
	var str = value.String()
	if len(str) <= maxLen {
		return value
	}

	var ellipsis = data.Bool(true)
	if len(args) == 2 {
		var ok bool
		ellipsis, ok = args[1].(data.Bool)
		if !ok {
			panic(fmt.Errorf("second parameter of '|truncate' is not a bool: %v", args[1]))
		}
	}

	if ellipsis {
		if maxLen > 3 {
			maxLen -= 3
		} else {
			ellipsis = false
		}
	}

	for !utf8.RuneStart(str[maxLen]) {
		maxLen--
	}

	str = str[:maxLen]
	if ellipsis {
		str += "..."
	}
	return data.String(str)
}

func directiveIdentity(value data.Value, _ []data.Value) data.Value {
	return value
}

func directiveEscapeHtml(value data.Value, _ []data.Value) data.Value {
	return data.String(template.HTMLEscapeString(value.String()))
}

func directiveEscapeUri(value data.Value, _ []data.Value) data.Value {
	return data.String(url.QueryEscape(value.String()))
}

func directiveEscapeJsString(value data.Value, _ []data.Value) data.Value {
	return data.String(template.JSEscapeString(value.String()))
}

func directiveJson(value data.Value, _ []data.Value) data.Value {
	j, err := json.Marshal(value)
	if err != nil {
		panic(fmt.Errorf("error JSON encoding value: %v", err))
	}
	return data.String(j)
}
