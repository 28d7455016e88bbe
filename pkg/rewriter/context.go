package rewriter

import ts "github.com/tree-sitter/go-tree-sitter"

// Context is the naming state threaded down the walk. It is passed by value
// so a nested declaration never leaks its name into siblings.
type Context struct {
	// Name is the component name in effect; empty at the top level.
	Name string

	// Anchor is the node that direct factory calls must hang off to be
	// tagged: a declarator, function, return statement or default export.
	Anchor *ts.Node
}

// reanchor returns a copy of c anchored at n under name.
func (c Context) reanchor(name string, n *ts.Node) Context {
	return Context{Name: name, Anchor: n}
}

// deep reports whether any factory call reachable without crossing a
// function boundary qualifies, not just direct children of the anchor.
func (c Context) deep() bool {
	if c.Anchor == nil {
		return false
	}

	switch c.Anchor.Kind() {
	case "variable_declarator", "return_statement":
		return true
	case "arrow_function":
		body := c.Anchor.ChildByFieldName("body")
		return body != nil && body.Kind() != "statement_block"
	default:
		return false
	}
}
