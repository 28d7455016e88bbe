// Package rewriter tags hyperscript element factory calls with the name of
// the component that declares them.
//
// Given `const Button = { view: () => m('button', vnode.attrs) }` the call is
// rewritten to carry `'data-component': 'Button'` in its options argument so
// rendered markup can be traced back to source. The rewrite is a set of
// byte-range edits against the original text; formatting outside the edited
// calls is untouched.
package rewriter

import (
	"errors"
	"fmt"
	"log/slog"

	ts "github.com/tree-sitter/go-tree-sitter"

	"github.com/gnana997/mtag/pkg/naming"
	"github.com/gnana997/mtag/pkg/parser"
)

var (
	// ErrSyntax is returned when the input does not parse cleanly.
	ErrSyntax = errors.New("syntax error")

	// ErrUnsupportedLanguage is returned for grammars mtag has no parser for.
	ErrUnsupportedLanguage = parser.ErrUnsupportedLanguage
)

// Options describe a single source being rewritten.
type Options struct {
	// Filename is used to pick the grammar and as the naming fallback.
	Filename string

	// Language overrides grammar detection from Filename.
	Language parser.Language

	// TSX selects the TSX grammar when Language is TypeScript.
	TSX bool
}

// Tag records one factory call the rewriter visited.
type Tag struct {
	Name     string   `json:"name"`
	Strategy Strategy `json:"strategy"`
	Line     int      `json:"line"`   // 1-based
	Column   int      `json:"column"` // 1-based
}

// Result is the outcome of rewriting one source.
type Result struct {
	Code    []byte `json:"-"`
	Tags    []Tag  `json:"tags"`
	Changed bool   `json:"changed"`

	// Dropped counts edits discarded because they overlapped an earlier one.
	Dropped int `json:"dropped,omitempty"`
}

// Rewriter applies the data-component rewrite to sources. It is safe for
// concurrent use; each call walks its own tree with its own state.
type Rewriter struct {
	parsers *parser.ParserManager
	config  Config
	logger  *slog.Logger
}

// New creates a Rewriter. The ParserManager stays owned by the caller.
func New(parsers *parser.ParserManager, config Config, logger *slog.Logger) *Rewriter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Rewriter{
		parsers: parsers,
		config:  config.withDefaults(),
		logger:  logger,
	}
}

// Config returns the effective configuration.
func (r *Rewriter) Config() Config {
	return r.config
}

// Rewrite parses source and returns it with every qualifying factory call
// tagged. Empty input yields an empty result. Input with syntax errors is
// rejected with ErrSyntax and never partially rewritten.
func (r *Rewriter) Rewrite(source []byte, opts Options) (*Result, error) {
	if len(source) == 0 {
		return &Result{}, nil
	}

	lang, isTSX := resolveLanguage(opts)

	tree, err := r.parsers.Parse(source, lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", displayName(opts.Filename), err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		bad := firstError(root)
		pos := bad.StartPosition()
		return nil, fmt.Errorf("%w in %s at line %d, column %d",
			ErrSyntax, displayName(opts.Filename), pos.Row+1, pos.Column+1)
	}

	w := newWalker(source, r.config, naming.Describe(opts.Filename), r.logger)
	w.walk(root, Context{})

	code, dropped := w.edits.apply(source)
	if dropped > 0 {
		r.logger.Warn("dropped overlapping edits",
			"file", displayName(opts.Filename),
			"dropped", dropped)
	}

	r.logger.Debug("rewrote source",
		"file", displayName(opts.Filename),
		"language", lang.String(),
		"calls", len(w.tags),
		"edits", w.edits.len()-dropped)

	return &Result{
		Code:    code,
		Tags:    w.tags,
		Changed: w.edits.len()-dropped > 0,
		Dropped: dropped,
	}, nil
}

// Transform is the string form of Rewrite.
func (r *Rewriter) Transform(source string, opts Options) (string, error) {
	if source == "" {
		return "", nil
	}

	result, err := r.Rewrite([]byte(source), opts)
	if err != nil {
		return "", err
	}
	return string(result.Code), nil
}

func resolveLanguage(opts Options) (parser.Language, bool) {
	lang := opts.Language
	if lang == parser.LanguageUnknown {
		lang = parser.DetectLanguage(opts.Filename)
	}
	if lang == parser.LanguageUnknown {
		lang = parser.LanguageJavaScript
	}
	isTSX := opts.TSX || parser.IsTSXFile(opts.Filename)
	return lang, isTSX && lang == parser.LanguageTypeScript
}

// firstError returns the first ERROR or MISSING node in document order.
func firstError(n *ts.Node) *ts.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.HasError() || child.IsMissing() {
			return firstError(child)
		}
	}
	return n
}

func displayName(filename string) string {
	if filename == "" {
		return "<input>"
	}
	return filename
}
