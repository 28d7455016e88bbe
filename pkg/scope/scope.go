// Package scope resolves identifier references to the declarations that
// introduce them, using lexical scoping over a tree-sitter syntax tree.
//
// Only what a single file can tell is resolved: globals and cross-file
// references come back as nil, imports come back as the import statement.
package scope

import (
	ts "github.com/tree-sitter/go-tree-sitter"
)

// IsFunctionKind reports whether a node kind opens a new function scope.
func IsFunctionKind(kind string) bool {
	switch kind {
	case "function_declaration", "generator_function_declaration",
		"function_expression", "function", "generator_function",
		"arrow_function", "method_definition":
		return true
	}
	return false
}

// Lookup returns the node declaring name as seen from ref: a
// variable_declarator, function or class declaration, parameter, catch or
// loop binding, or import_statement. It returns nil for free variables.
func Lookup(ref *ts.Node, name string, source []byte) *ts.Node {
	if ref == nil || name == "" {
		return nil
	}

	for scope := ref.Parent(); scope != nil; scope = scope.Parent() {
		if decl := declaredIn(scope, name, source); decl != nil {
			return decl
		}
	}

	return nil
}

// declaredIn checks the bindings a single scope node introduces.
func declaredIn(scope *ts.Node, name string, source []byte) *ts.Node {
	kind := scope.Kind()

	switch {
	case kind == "program":
		if decl := blockDeclaration(scope, name, source); decl != nil {
			return decl
		}
		return hoistedVar(scope, name, source)

	case kind == "statement_block" || kind == "class_static_block":
		return blockDeclaration(scope, name, source)

	case kind == "switch_body":
		for i := uint(0); i < scope.NamedChildCount(); i++ {
			if decl := blockDeclaration(scope.NamedChild(i), name, source); decl != nil {
				return decl
			}
		}

	case IsFunctionKind(kind):
		return functionDeclaration(scope, name, source)

	case kind == "for_statement":
		if init := scope.ChildByFieldName("initializer"); init != nil {
			return declarationBinding(init, name, source)
		}

	case kind == "for_in_statement":
		if left := scope.ChildByFieldName("left"); left != nil && patternBinds(left, name, source) {
			return left
		}

	case kind == "catch_clause":
		if param := scope.ChildByFieldName("parameter"); param != nil && patternBinds(param, name, source) {
			return param
		}
	}

	return nil
}

// blockDeclaration scans the direct statements of a block for a binding.
func blockDeclaration(block *ts.Node, name string, source []byte) *ts.Node {
	for i := uint(0); i < block.NamedChildCount(); i++ {
		if decl := declarationBinding(block.NamedChild(i), name, source); decl != nil {
			return decl
		}
	}
	return nil
}

// declarationBinding returns the part of a statement that binds name.
func declarationBinding(stmt *ts.Node, name string, source []byte) *ts.Node {
	switch stmt.Kind() {
	case "lexical_declaration", "variable_declaration":
		for i := uint(0); i < stmt.NamedChildCount(); i++ {
			declarator := stmt.NamedChild(i)
			if declarator.Kind() != "variable_declarator" {
				continue
			}
			if id := declarator.ChildByFieldName("name"); id != nil && patternBinds(id, name, source) {
				return declarator
			}
		}

	case "function_declaration", "generator_function_declaration", "class_declaration":
		if id := stmt.ChildByFieldName("name"); id != nil && id.Utf8Text(source) == name {
			return stmt
		}

	case "export_statement":
		if decl := stmt.ChildByFieldName("declaration"); decl != nil {
			return declarationBinding(decl, name, source)
		}

	case "import_statement":
		if importBinds(stmt, name, source) {
			return stmt
		}
	}

	return nil
}

// functionDeclaration checks parameters, the name of a named function
// expression, and var declarations hoisted out of nested blocks.
func functionDeclaration(fn *ts.Node, name string, source []byte) *ts.Node {
	if param := fn.ChildByFieldName("parameter"); param != nil && patternBinds(param, name, source) {
		return param
	}

	if params := fn.ChildByFieldName("parameters"); params != nil {
		for i := uint(0); i < params.NamedChildCount(); i++ {
			param := params.NamedChild(i)
			if patternBinds(param, name, source) {
				return param
			}
		}
	}

	switch fn.Kind() {
	case "function_expression", "function", "generator_function":
		if id := fn.ChildByFieldName("name"); id != nil && id.Utf8Text(source) == name {
			return fn
		}
	}

	if body := fn.ChildByFieldName("body"); body != nil && body.Kind() == "statement_block" {
		return hoistedVar(body, name, source)
	}

	return nil
}

// hoistedVar finds a var declarator anywhere below root without crossing
// into a nested function.
func hoistedVar(root *ts.Node, name string, source []byte) *ts.Node {
	for i := uint(0); i < root.NamedChildCount(); i++ {
		child := root.NamedChild(i)
		kind := child.Kind()

		if IsFunctionKind(kind) || kind == "class_declaration" || kind == "class" {
			continue
		}
		if kind == "variable_declaration" {
			if decl := declarationBinding(child, name, source); decl != nil {
				return decl
			}
			continue
		}
		if decl := hoistedVar(child, name, source); decl != nil {
			return decl
		}
	}
	return nil
}

// patternBinds reports whether a binding pattern introduces name.
func patternBinds(pattern *ts.Node, name string, source []byte) bool {
	switch pattern.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		return pattern.Utf8Text(source) == name

	case "assignment_pattern", "object_assignment_pattern":
		if left := pattern.ChildByFieldName("left"); left != nil {
			return patternBinds(left, name, source)
		}

	case "pair_pattern":
		if value := pattern.ChildByFieldName("value"); value != nil {
			return patternBinds(value, name, source)
		}

	case "required_parameter", "optional_parameter":
		if inner := pattern.ChildByFieldName("pattern"); inner != nil {
			return patternBinds(inner, name, source)
		}

	case "object_pattern", "array_pattern", "rest_pattern":
		for i := uint(0); i < pattern.NamedChildCount(); i++ {
			if patternBinds(pattern.NamedChild(i), name, source) {
				return true
			}
		}
	}

	return false
}

// importBinds reports whether an import statement introduces name locally.
func importBinds(stmt *ts.Node, name string, source []byte) bool {
	var visit func(n *ts.Node) bool
	visit = func(n *ts.Node) bool {
		switch n.Kind() {
		case "string":
			return false
		case "import_specifier":
			local := n.ChildByFieldName("alias")
			if local == nil {
				local = n.ChildByFieldName("name")
			}
			return local != nil && local.Utf8Text(source) == name
		case "identifier":
			return n.Utf8Text(source) == name
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			if visit(n.NamedChild(i)) {
				return true
			}
		}
		return false
	}

	for i := uint(0); i < stmt.NamedChildCount(); i++ {
		child := stmt.NamedChild(i)
		if child.Kind() == "import_clause" && visit(child) {
			return true
		}
	}
	return false
}
