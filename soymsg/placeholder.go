package soymsg

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kcaffrey/soy/ast"
)

// setPlaceholdersAndVars rewrites the message body so that every variable
// part is represented by a named placeholder.  Print nodes are wrapped in
// placeholder nodes, plural nodes are given a variable name, and placeholder
// names are made unique within the message.
func setPlaceholdersAndVars(n *ast.MsgNode) {
	wrapPlaceholders(n.Body)
	setPlaceholderNames(n)
}

// wrapPlaceholders wraps each print node in the given message body in a
// placeholder node, recursing into plural cases.
func wrapPlaceholders(body *ast.ListNode) {
	for i, child := range body.Nodes {
		switch child := child.(type) {
		case *ast.PrintNode:
			body.Nodes[i] = &ast.MsgPlaceholderNode{Pos: child.Position(), Name: "", Body: child}
		case *ast.MsgPluralNode:
			child.VarName = genBasePlaceholderNameFromExpr(child.Value)
			for _, c := range child.Cases {
				wrapPlaceholders(c.Body)
			}
			wrapPlaceholders(child.Default)
		}
	}
}

// setPlaceholderNames generates the placeholder names for all placeholders in
// the given message node, setting the .Name property on them.
func setPlaceholderNames(n *ast.MsgNode) {
	// This follows the same algorithm as official Soy.
	// Nodes printing equal expressions share a name; nodes with the same base
	// name but different expressions get numeric suffixes.
	var (
		baseNameToRepNodes  = make(map[string][]*ast.MsgPlaceholderNode)
		equivNodeToRepNodes = make(map[*ast.MsgPlaceholderNode]*ast.MsgPlaceholderNode)
	)

	for _, node := range placeholderNodes(n.Body) {
		var baseName = genBasePlaceholderName(node.Body)
		if nodes, ok := baseNameToRepNodes[baseName]; !ok {
			baseNameToRepNodes[baseName] = []*ast.MsgPlaceholderNode{node}
		} else {
			var isNew = true
			var str = node.Body.String()
			for _, other := range nodes {
				if other.Body.String() == str {
					equivNodeToRepNodes[node] = other
					isNew = false
					break
				}
			}
			if isNew {
				baseNameToRepNodes[baseName] = append(nodes, node)
			}
		}
	}

	var phNameToRepNodes = make(map[string]*ast.MsgPlaceholderNode)
	for baseName, nodes := range baseNameToRepNodes {
		if len(nodes) == 1 {
			phNameToRepNodes[baseName] = nodes[0]
			continue
		}

		var nextSuffix = 1
		for _, node := range nodes {
			for {
				var newName = baseName + "_" + strconv.Itoa(nextSuffix)
				if _, ok := phNameToRepNodes[newName]; !ok {
					phNameToRepNodes[newName] = node
					break
				}
				nextSuffix++
			}
		}
	}

	for name, node := range phNameToRepNodes {
		node.Name = name
	}
	for node, repNode := range equivNodeToRepNodes {
		node.Name = repNode.Name
	}
}

// placeholderNodes returns the placeholder nodes in the given message body in
// source order, including those within plural cases.
func placeholderNodes(body *ast.ListNode) []*ast.MsgPlaceholderNode {
	var nodes []*ast.MsgPlaceholderNode
	for _, child := range body.Nodes {
		switch child := child.(type) {
		case *ast.MsgPlaceholderNode:
			nodes = append(nodes, child)
		case *ast.MsgPluralNode:
			for _, c := range child.Cases {
				nodes = append(nodes, placeholderNodes(c.Body)...)
			}
			nodes = append(nodes, placeholderNodes(child.Default)...)
		}
	}
	return nodes
}

func genBasePlaceholderName(node ast.Node) string {
	// TODO: user supplied placeholder (phname)
	switch part := node.(type) {
	case *ast.PrintNode:
		return genBasePlaceholderNameFromExpr(part.Arg)
	}
	return "XXX"
}

func genBasePlaceholderNameFromExpr(expr ast.Node) string {
	switch expr := expr.(type) {
	case *ast.GlobalNode:
		return toUpperUnderscore(expr.Name)
	case *ast.DataRefNode:
		if len(expr.Access) == 0 {
			return toUpperUnderscore(expr.Key)
		}
		var lastChild = expr.Access[len(expr.Access)-1]
		if lastChild, ok := lastChild.(*ast.DataRefKeyNode); ok {
			return toUpperUnderscore(lastChild.Key)
		}
	}
	return "XXX"
}

var (
	leadingOrTrailing_ = regexp.MustCompile("^_+|_+$")
	consecutive_       = regexp.MustCompile("__+")
	wordBoundary1      = regexp.MustCompile("([a-zA-Z])([A-Z][a-z])") // <letter>_<upper><lower>
	wordBoundary2      = regexp.MustCompile("([a-zA-Z])([0-9])")      // <letter>_<digit>
	wordBoundary3      = regexp.MustCompile("([0-9])([a-zA-Z])")      // <digit>_<letter>
)

func toUpperUnderscore(ident string) string {
	ident = leadingOrTrailing_.ReplaceAllString(ident, "")
	ident = consecutive_.ReplaceAllString(ident, "_")
	ident = wordBoundary1.ReplaceAllString(ident, "${1}_${2}")
	ident = wordBoundary2.ReplaceAllString(ident, "${1}_${2}")
	ident = wordBoundary3.ReplaceAllString(ident, "${1}_${2}")
	return strings.ToUpper(ident)
}
