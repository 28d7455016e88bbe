package rewriter

import (
	"fmt"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// Strategy is how a tagged call's options argument came to carry the
// attribute.
type Strategy int

const (
	// StrategyNone: the call has no arguments and is left alone.
	StrategyNone Strategy = iota
	// StrategyAppendArgument: only a tag was passed; an options object is appended.
	StrategyAppendArgument
	// StrategyInsertArgument: argument 1 is a child; an options object is inserted before it.
	StrategyInsertArgument
	// StrategyExtendObject: argument 1 is an object literal without the key.
	StrategyExtendObject
	// StrategyPreserveExisting: argument 1 already sets the key.
	StrategyPreserveExisting
	// StrategyMergeExpression: argument 1 is an attribute bag wrapped in Object.assign.
	StrategyMergeExpression
	// StrategyAlreadyMerged: argument 1 is an Object.assign whose first source sets the key.
	StrategyAlreadyMerged
)

var strategyNames = [...]string{
	StrategyNone:             "none",
	StrategyAppendArgument:   "append-argument",
	StrategyInsertArgument:   "insert-argument",
	StrategyExtendObject:     "extend-object",
	StrategyPreserveExisting: "preserve-existing",
	StrategyMergeExpression:  "merge-expression",
	StrategyAlreadyMerged:    "already-merged",
}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// MarshalText renders the strategy name in JSON and YAML reports.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a strategy name written by MarshalText.
func (s *Strategy) UnmarshalText(text []byte) error {
	for i, name := range strategyNames {
		if name == string(text) {
			*s = Strategy(i)
			return nil
		}
	}
	return fmt.Errorf("unknown strategy %q", text)
}

// Mutates reports whether the strategy edits the source.
func (s Strategy) Mutates() bool {
	switch s {
	case StrategyAppendArgument, StrategyInsertArgument, StrategyExtendObject, StrategyMergeExpression:
		return true
	default:
		return false
	}
}

// attach records the edit tagging call with name and returns the argument it
// replaced wholesale, if any.
func (w *walker) attach(call *ts.Node, name string) *ts.Node {
	args := w.arguments(call)
	strategy := w.strategyFor(args)

	var replaced *ts.Node
	switch strategy {
	case StrategyAppendArgument:
		w.edits.insert(args[0].EndByte(), ", "+w.config.object(name))

	case StrategyInsertArgument:
		w.edits.insert(args[1].StartByte(), w.config.object(name)+", ")

	case StrategyExtendObject:
		w.extendObject(args[1], name)

	case StrategyMergeExpression:
		replaced = args[1]
		w.edits.replace(replaced.StartByte(), replaced.EndByte(),
			"Object.assign("+w.config.object(name)+", "+replaced.Utf8Text(w.source)+")")
	}

	pos := call.StartPosition()
	w.tags = append(w.tags, Tag{
		Name:     name,
		Strategy: strategy,
		Line:     int(pos.Row) + 1,
		Column:   int(pos.Column) + 1,
	})

	w.logger.Debug("tagged factory call",
		"name", name,
		"strategy", strategy.String(),
		"line", pos.Row+1)

	return replaced
}

func (w *walker) strategyFor(args []*ts.Node) Strategy {
	switch len(args) {
	case 0:
		return StrategyNone
	case 1:
		return StrategyAppendArgument
	}

	opts := args[1]
	switch opts.Kind() {
	case "object":
		if w.setsAttribute(opts) {
			return StrategyPreserveExisting
		}
		return StrategyExtendObject

	case "identifier":
		return w.bagOrChild(opts.Utf8Text(w.source))

	case "member_expression":
		return w.bagOrChild(w.propertyName(opts))

	case "subscript_expression":
		if len(w.config.AttrsNames) == 0 {
			return StrategyMergeExpression
		}
		return StrategyInsertArgument

	case "call_expression":
		callee := opts.ChildByFieldName("function")
		switch {
		case w.isMergedAttributes(opts):
			return StrategyAlreadyMerged
		case w.isFactory(callee) || w.isFactoryMember(callee):
			return StrategyInsertArgument
		case callee != nil && callee.Kind() == "member_expression":
			return w.bagOrChild(w.propertyName(callee))
		case callee != nil && callee.Kind() == "identifier":
			return w.bagOrChild(callee.Utf8Text(w.source))
		default:
			return StrategyMergeExpression
		}

	default:
		return StrategyInsertArgument
	}
}

func (w *walker) bagOrChild(name string) Strategy {
	if w.config.isAttrsName(name) {
		return StrategyMergeExpression
	}
	return StrategyInsertArgument
}

// extendObject adds the attribute after the last member of obj, or replaces
// an empty literal outright.
func (w *walker) extendObject(obj *ts.Node, name string) {
	var last, comment *ts.Node
	for i := uint(0); i < obj.NamedChildCount(); i++ {
		member := obj.NamedChild(i)
		if member.Kind() == "comment" {
			comment = member
			continue
		}
		last = member
	}

	switch {
	case last != nil:
		w.edits.insert(last.EndByte(), ", "+w.config.property(name))
	case comment != nil:
		// Keep comments in an otherwise empty literal.
		w.edits.insert(obj.StartByte()+1, " "+w.config.property(name)+",")
	default:
		w.edits.replace(obj.StartByte(), obj.EndByte(), w.config.object(name))
	}
}

// setsAttribute reports whether an object literal has the attribute key.
func (w *walker) setsAttribute(obj *ts.Node) bool {
	for i := uint(0); i < obj.NamedChildCount(); i++ {
		member := obj.NamedChild(i)

		var key *ts.Node
		switch member.Kind() {
		case "pair":
			key = member.ChildByFieldName("key")
		case "method_definition":
			key = member.ChildByFieldName("name")
		case "shorthand_property_identifier":
			key = member
		default:
			continue
		}

		if w.keyText(key) == w.config.Attribute {
			return true
		}
	}
	return false
}

// keyText returns the static name of a property key, "" for computed keys.
func (w *walker) keyText(key *ts.Node) string {
	if key == nil {
		return ""
	}

	switch key.Kind() {
	case "property_identifier", "shorthand_property_identifier", "identifier":
		return key.Utf8Text(w.source)
	case "string":
		text := ""
		for i := uint(0); i < key.NamedChildCount(); i++ {
			part := key.NamedChild(i)
			if part.Kind() != "string_fragment" {
				// Escapes are rare in keys; fall back to the raw text.
				return trimQuotes(key.Utf8Text(w.source))
			}
			text += part.Utf8Text(w.source)
		}
		return text
	default:
		return ""
	}
}

// isMergedAttributes matches Object.assign({ 'data-component': ... }, ...),
// the output of StrategyMergeExpression.
func (w *walker) isMergedAttributes(call *ts.Node) bool {
	callee := call.ChildByFieldName("function")
	if callee == nil || callee.Kind() != "member_expression" {
		return false
	}

	object := callee.ChildByFieldName("object")
	if object == nil || object.Kind() != "identifier" || object.Utf8Text(w.source) != "Object" {
		return false
	}
	if w.propertyName(callee) != "assign" {
		return false
	}

	args := w.arguments(call)
	return len(args) > 0 && args[0].Kind() == "object" && w.setsAttribute(args[0])
}

// isFactory reports whether callee is the bare factory identifier.
func (w *walker) isFactory(callee *ts.Node) bool {
	return callee != nil && callee.Kind() == "identifier" && callee.Utf8Text(w.source) == w.config.Factory
}

// isFactoryMember matches helpers hanging off the factory (m.trust, m.fragment).
func (w *walker) isFactoryMember(callee *ts.Node) bool {
	if callee == nil || callee.Kind() != "member_expression" {
		return false
	}
	return w.isFactory(callee.ChildByFieldName("object"))
}

func (w *walker) propertyName(member *ts.Node) string {
	if prop := member.ChildByFieldName("property"); prop != nil {
		return prop.Utf8Text(w.source)
	}
	return ""
}

// arguments returns the call's argument expressions without comments. Tagged
// template calls have none.
func (w *walker) arguments(call *ts.Node) []*ts.Node {
	list := call.ChildByFieldName("arguments")
	if list == nil || list.Kind() != "arguments" {
		return nil
	}

	args := make([]*ts.Node, 0, list.NamedChildCount())
	for i := uint(0); i < list.NamedChildCount(); i++ {
		if arg := list.NamedChild(i); arg.Kind() != "comment" {
			args = append(args, arg)
		}
	}
	return args
}

func trimQuotes(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
