package soy

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/kcaffrey/soy/ast"
	"github.com/kcaffrey/soy/data"
	"github.com/kcaffrey/soy/parse"
)

// ParseGlobals parses the given input, expecting the form:
//  <global_name> = <primitive_data>
//
// Furthermore:
//  - Empty lines and lines beginning with '//' are ignored.
//  - <primitive_data> must be a valid template expression literal for a primitive
//   type (null, boolean, integer, float, or string)
func ParseGlobals(input io.Reader) (data.Map, error) {
	var globals = make(data.Map)
	var scanner = bufio.NewScanner(input)
	for scanner.Scan() {
		var line = scanner.Text()
		if len(line) == 0 || strings.HasPrefix(line, "//") {
			continue
		}
		var eq = strings.Index(line, "=")
		if eq == -1 {
			return nil, fmt.Errorf("no equals on line: %q", line)
		}
		var (
			name = strings.TrimSpace(line[:eq])
			expr = strings.TrimSpace(line[eq+1:])
		)
		var node, err = parse.Expr(expr)
		if err != nil {
			return nil, err
		}
		value, err := evalLiteral(node)
		if err != nil {
			return nil, err
		}
		globals[name] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return globals, nil
}

// evalLiteral returns the value of a primitive literal expression node.
func evalLiteral(node ast.Node) (data.Value, error) {
	switch node := node.(type) {
	case *ast.NullNode:
		return data.Null{}, nil
	case *ast.BoolNode:
		return data.Bool(node.True), nil
	case *ast.IntNode:
		return data.Int(node.Value), nil
	case *ast.FloatNode:
		return data.Float(node.Value), nil
	case *ast.StringNode:
		return data.String(node.Value), nil
	case *ast.NegateNode:
		var val, err = evalLiteral(node.Arg)
		if err != nil {
			return nil, err
		}
		switch val := val.(type) {
		case data.Int:
			return -val, nil
		case data.Float:
			return -val, nil
		}
		return nil, fmt.Errorf("can not negate non-number: %v", val)
	}
	return nil, fmt.Errorf("globals must be primitive literals, got: %v", node)
}
