package rewriter

import (
	"log/slog"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/mtag/pkg/naming"
	"github.com/gnana997/mtag/pkg/scope"
)

// viewMember is the only object member treated as a component body.
const viewMember = "view"

// walker holds the per-source state of one rewrite.
type walker struct {
	source []byte
	config Config
	file   naming.FileDescriptor
	logger *slog.Logger

	edits editSet
	tags  []Tag

	// seen holds declarations and calls already processed, keyed by node id.
	seen map[uintptr]struct{}
}

func newWalker(source []byte, config Config, file naming.FileDescriptor, logger *slog.Logger) *walker {
	return &walker{
		source: source,
		config: config,
		file:   file,
		logger: logger,
		seen:   make(map[uintptr]struct{}),
	}
}

func (w *walker) walk(n *ts.Node, c Context) {
	if n == nil {
		return
	}

	switch kind := n.Kind(); {
	case kind == "variable_declarator":
		w.visitDeclarator(n, c)
	case kind == "method_definition":
		w.visitMethod(n, c)
	case scope.IsFunctionKind(kind):
		w.visitFunction(n, c)
	case isClassKind(kind):
		w.visitClass(n, c)
	case kind == "export_statement":
		w.visitExport(n, c)
	case kind == "expression_statement":
		w.walkChildren(n, c.reanchor(c.Name, n))
	case kind == "pair":
		w.visitPair(n, c)
	case kind == "return_statement":
		w.visitReturn(n, c)
	case kind == "call_expression":
		w.visitCall(n, c)
	default:
		w.walkChildren(n, c)
	}
}

func (w *walker) walkChildren(n *ts.Node, c Context) {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		w.walk(n.NamedChild(i), c)
	}
}

// visit marks n processed and reports whether it was new.
func (w *walker) visit(n *ts.Node) bool {
	id := n.Id()
	if _, done := w.seen[id]; done {
		return false
	}
	w.seen[id] = struct{}{}
	return true
}

func (w *walker) visitDeclarator(n *ts.Node, c Context) {
	if !w.visit(n) {
		return
	}

	value := n.ChildByFieldName("value")
	if value == nil {
		return
	}

	name := c.Name
	if name == "" {
		name = naming.Resolve(naming.Declaration{BindingName: w.identifier(n.ChildByFieldName("name"))}, "", w.file)
	}

	w.walk(value, c.reanchor(name, n))
}

func (w *walker) visitFunction(n *ts.Node, c Context) {
	if !w.visit(n) {
		return
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}

	name := naming.Resolve(w.declarationOf(n), c.Name, w.file)
	inner := c.reanchor(name, n)

	if body.Kind() == "statement_block" {
		w.walkChildren(body, inner)
		return
	}
	w.walk(body, inner)
}

// visitMethod handles class methods and object shorthand methods. In an
// object literal only view() is a component body.
func (w *walker) visitMethod(n *ts.Node, c Context) {
	if parent := n.Parent(); parent != nil && parent.Kind() == "object" && !w.isViewKey(n.ChildByFieldName("name")) {
		return
	}
	if !w.visit(n) {
		return
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}

	name := naming.Resolve(naming.Declaration{}, c.Name, w.file)
	w.walkChildren(body, c.reanchor(name, n))
}

func (w *walker) visitClass(n *ts.Node, c Context) {
	if !w.visit(n) {
		return
	}

	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}

	name := naming.Resolve(w.declarationOf(n), c.Name, w.file)
	w.walkChildren(body, c.reanchor(name, n))
}

// visitExport names anonymous default exports after the file.
func (w *walker) visitExport(n *ts.Node, c Context) {
	if !isDefaultExport(n) {
		w.walkChildren(n, c)
		return
	}
	w.walkChildren(n, c.reanchor(w.file.ComponentName(), n))
}

func (w *walker) visitPair(n *ts.Node, c Context) {
	if !w.isViewKey(n.ChildByFieldName("key")) {
		return
	}
	w.walk(n.ChildByFieldName("value"), c)
}

func (w *walker) visitReturn(n *ts.Node, c Context) {
	arg := firstExpression(n)
	if arg == nil {
		return
	}

	switch inner := unwrapParens(arg); inner.Kind() {
	case "identifier":
		w.chase(inner, c)
	case "object":
		w.walk(inner, c.reanchor(c.Name, n))
	default:
		w.walk(arg, c.reanchor(c.Name, n))
	}
}

// chase follows a returned identifier to its declaration in the same file.
func (w *walker) chase(ref *ts.Node, c Context) {
	name := ref.Utf8Text(w.source)

	decl := scope.Lookup(ref, name, w.source)
	if decl == nil {
		w.logger.Debug("returned identifier has no local binding",
			"identifier", name,
			"line", ref.StartPosition().Row+1)
		return
	}

	switch kind := decl.Kind(); {
	case kind == "variable_declarator", scope.IsFunctionKind(kind), isClassKind(kind):
		w.walk(decl, c)
	default:
		// Parameters, imports and loop bindings have no markup in this file.
	}
}

func (w *walker) visitCall(n *ts.Node, c Context) {
	if !w.isFactory(n.ChildByFieldName("function")) || !w.qualifies(n, c) {
		w.walkChildren(n, c)
		return
	}
	if !w.visit(n) {
		return
	}

	name := w.nameForCall(n, c)
	replaced := w.attach(n, name)

	// Children are not tagged under this name; nested functions re-resolve
	// their own.
	inner := c.reanchor(name, n)
	for _, arg := range w.arguments(n) {
		if replaced != nil && arg.Id() == replaced.Id() {
			continue
		}
		w.walk(arg, inner)
	}
}

func (w *walker) qualifies(call *ts.Node, c Context) bool {
	if c.deep() {
		return true
	}
	parent := call.Parent()
	return parent != nil && c.Anchor != nil && parent.Id() == c.Anchor.Id()
}

// nameForCall applies the compound rule: a call initialising a declarator
// whose identifier differs from the ambient name is tagged outer->inner.
func (w *walker) nameForCall(call *ts.Node, c Context) string {
	name := c.Name
	if name == "" {
		name = w.nameForAnonymousCall(call)
	}

	if parent := call.Parent(); parent != nil && parent.Kind() == "variable_declarator" {
		if binding := w.identifier(parent.ChildByFieldName("name")); binding != "" {
			return naming.Compound(name, binding)
		}
	}
	return name
}

// nameForAnonymousCall finds the nearest named function declaration around a
// call that has no name in context, falling back to the file.
func (w *walker) nameForAnonymousCall(call *ts.Node) string {
	for p := call.Parent(); p != nil; p = p.Parent() {
		switch p.Kind() {
		case "function_declaration", "generator_function_declaration":
			if name := w.identifier(p.ChildByFieldName("name")); name != "" {
				return name
			}
		}
	}
	return w.file.ComponentName()
}

// declarationOf collects the names a function or class could be known by.
func (w *walker) declarationOf(n *ts.Node) naming.Declaration {
	decl := naming.Declaration{OwnName: w.identifier(n.ChildByFieldName("name"))}

	if parent := n.Parent(); parent != nil && parent.Kind() == "variable_declarator" {
		if value := parent.ChildByFieldName("value"); value != nil && value.Id() == n.Id() {
			decl.BindingName = w.identifier(parent.ChildByFieldName("name"))
		}
	}
	return decl
}

// identifier returns the text of n if it is a plain name, "" otherwise.
// Destructuring patterns have no single name.
func (w *walker) identifier(n *ts.Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind() {
	case "identifier", "type_identifier":
		return n.Utf8Text(w.source)
	default:
		return ""
	}
}

func (w *walker) isViewKey(key *ts.Node) bool {
	return key != nil && key.Kind() == "property_identifier" && key.Utf8Text(w.source) == viewMember
}

func isClassKind(kind string) bool {
	switch kind {
	case "class_declaration", "class", "abstract_class_declaration":
		return true
	default:
		return false
	}
}

func isDefaultExport(n *ts.Node) bool {
	for i := uint(0); i < n.ChildCount(); i++ {
		if n.Child(i).Kind() == "default" {
			return true
		}
	}
	return false
}

// firstExpression returns the returned expression, skipping comments.
func firstExpression(n *ts.Node) *ts.Node {
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if child := n.NamedChild(i); child.Kind() != "comment" {
			return child
		}
	}
	return nil
}

func unwrapParens(n *ts.Node) *ts.Node {
	for n.Kind() == "parenthesized_expression" {
		inner := firstExpression(n)
		if inner == nil {
			return n
		}
		n = inner
	}
	return n
}
