package rewriter

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/mtag/pkg/naming"
	"github.com/gnana997/mtag/pkg/parser"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRewriter(t *testing.T, config Config) *Rewriter {
	t.Helper()

	pm := parser.NewParserManager(testLogger())
	t.Cleanup(func() { pm.Close() })

	return New(pm, config, testLogger())
}

func TestTransform(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		input    string
		expected string
	}{
		{
			name:     "top-level declarator",
			input:    "const component = m('div');",
			expected: "const component = m('div', { 'data-component': 'component' });",
		},
		{
			name:     "returned identifier chases a hoisted function declaration",
			input:    "function A() { return B; function B() { return m('b'); } }",
			expected: "function A() { return B; function B() { return m('b', { 'data-component': 'B' }); } }",
		},
		{
			name:     "chased declarator is named by the function that reaches it first",
			input:    "function Page() { return header; }\nconst header = m('h1');",
			expected: "function Page() { return header; }\nconst header = m('h1', { 'data-component': 'Page->header' });",
		},
		{
			name:     "declarator walked before the function keeps its own name",
			input:    "const header = m('h1');\nfunction Page() { return header; }",
			expected: "const header = m('h1', { 'data-component': 'header' });\nfunction Page() { return header; }",
		},
		{
			name: "declarator inside named function gets compound name",
			input: `function MyComponent() {
  const markup = m('div', {});
  return markup;
}`,
			expected: `function MyComponent() {
  const markup = m('div', { 'data-component': 'MyComponent->markup' });
  return markup;
}`,
		},
		{
			name:     "attribute bag is merged",
			input:    "const a = m('b', vnode.attrs, vnode.children);",
			expected: "const a = m('b', Object.assign({ 'data-component': 'a' }, vnode.attrs), vnode.children);",
		},
		{
			name:     "existing key is preserved",
			input:    "const A = () => m('div', { 'data-component': 'custom', id: 'x' });",
			expected: "const A = () => m('div', { 'data-component': 'custom', id: 'x' });",
		},
		{
			name:     "object literal is extended after its last member",
			input:    "const Btn = () => m('button', { onclick: go, disabled }, 'Go');",
			expected: "const Btn = () => m('button', { onclick: go, disabled, 'data-component': 'Btn' }, 'Go');",
		},
		{
			name: "returns in block arrow branches",
			input: `const MyComponent = () => {
  if (true) {
    return m('div');
  } else {
    return m('span', 'nope');
  }
};`,
			expected: `const MyComponent = () => {
  if (true) {
    return m('div', { 'data-component': 'MyComponent' });
  } else {
    return m('span', { 'data-component': 'MyComponent' }, 'nope');
  }
};`,
		},
		{
			name: "factory child is not tagged",
			input: `const Comp2 = {};
const MyComponent = () => {
  return m('div', m(Comp2));
};`,
			expected: `const Comp2 = {};
const MyComponent = () => {
  return m('div', { 'data-component': 'MyComponent' }, m(Comp2));
};`,
		},
		{
			name:     "array children get a fresh options object",
			input:    "const List = () => m('ul', [m('li', 'a'), m('li', 'b')]);",
			expected: "const List = () => m('ul', { 'data-component': 'List' }, [m('li', 'a'), m('li', 'b')]);",
		},
		{
			name:     "view arrow in object component",
			input:    "const Card = { view: () => m('.card') };",
			expected: "const Card = { view: () => m('.card', { 'data-component': 'Card' }) };",
		},
		{
			name:     "members other than view are skipped",
			input:    "const Card = { oninit: () => m('div'), view: () => m('p') };",
			expected: "const Card = { oninit: () => m('div'), view: () => m('p', { 'data-component': 'Card' }) };",
		},
		{
			name:     "view method shorthand",
			input:    "const Card = { view() { return m('p'); } };",
			expected: "const Card = { view() { return m('p', { 'data-component': 'Card' }); } };",
		},
		{
			name:     "class methods inherit the class name",
			input:    "class Foo { view() { return m('div'); } }",
			expected: "class Foo { view() { return m('div', { 'data-component': 'Foo' }); } }",
		},
		{
			name: "closure component returning an object",
			input: `function Counter() {
  let count = 0;
  return {
    view: () => m('button', { onclick: () => count++ }, count),
  };
}`,
			expected: `function Counter() {
  let count = 0;
  return {
    view: () => m('button', { onclick: () => count++, 'data-component': 'Counter' }, count),
  };
}`,
		},
		{
			name: "returned identifier is chased to its declarator",
			input: `function Page() {
  const header = m('h1', 'Title');
  return header;
}`,
			expected: `function Page() {
  const header = m('h1', { 'data-component': 'Page->header' }, 'Title');
  return header;
}`,
		},
		{
			name: "returned declarator declared after the return",
			input: `function Page() {
  return body;
  var body = m('main');
}`,
			expected: `function Page() {
  return body;
  var body = m('main', { 'data-component': 'Page->body' });
}`,
		},
		{
			name:     "returned parameter stops silently",
			input:    "function Page(view) { return view; }",
			expected: "function Page(view) { return view; }",
		},
		{
			name:     "parenthesized return",
			input:    "function Row() { return (m('tr')); }",
			expected: "function Row() { return (m('tr', { 'data-component': 'Row' })); }",
		},
		{
			name:     "ternary in return tags both branches",
			input:    "function Flag(on) { return on ? m('b') : m('i'); }",
			expected: "function Flag(on) { return on ? m('b', { 'data-component': 'Flag' }) : m('i', { 'data-component': 'Flag' }); }",
		},
		{
			name:     "factory call inside non-factory call in block body is not tagged",
			input:    "function Mount(el) { m.render(el, m('div')); }",
			expected: "function Mount(el) { m.render(el, m('div')); }",
		},
		{
			name:     "zero arguments are left alone",
			input:    "const Empty = () => m();",
			expected: "const Empty = () => m();",
		},
		{
			name:     "other factories are ignored",
			input:    "const A = () => h('div'); const B = () => m.trust('<b>x</b>');",
			expected: "const A = () => h('div'); const B = () => m.trust('<b>x</b>');",
		},
		{
			name:     "comments between arguments",
			input:    "const A = () => m('div', /* opts */ { id: 'a' });",
			expected: "const A = () => m('div', /* opts */ { id: 'a', 'data-component': 'A' });",
		},
		{
			name:     "anonymous default export uses the file name",
			filename: "src/Widget.js",
			input:    "export default () => m('div');",
			expected: "export default () => m('div', { 'data-component': 'Widget' });",
		},
		{
			name:     "index file uses its directory",
			filename: "components/Panel/index.js",
			input:    "export default { view: () => m('div') };",
			expected: "export default { view: () => m('div', { 'data-component': 'Panel' }) };",
		},
		{
			name:     "named default export keeps its own name",
			filename: "src/Widget.js",
			input:    "export default function Header() { return m('header'); }",
			expected: "export default function Header() { return m('header', { 'data-component': 'Header' }); }",
		},
		{
			name:     "top-level statement falls back to the file",
			filename: "pages/About.js",
			input:    "m('div');",
			expected: "m('div', { 'data-component': 'About' });",
		},
		{
			name:     "unresolvable name writes the sentinel",
			input:    "export default () => m('div');",
			expected: "export default () => m('div', { 'data-component': '" + naming.Unresolved + "' });",
		},
		{
			name:     "typescript component",
			filename: "Button.tsx",
			input:    "export const Button = (props: Props) => m('button', props.attrs);",
			expected: "export const Button = (props: Props) => m('button', Object.assign({ 'data-component': 'Button' }, props.attrs));",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := newTestRewriter(t, Config{})

			output, err := rw.Transform(tt.input, Options{Filename: tt.filename})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, output)

			again, err := rw.Transform(output, Options{Filename: tt.filename})
			require.NoError(t, err)
			assert.Equal(t, output, again, "second pass must not change the output")
		})
	}
}

func TestTransform_EmptyInput(t *testing.T) {
	rw := newTestRewriter(t, Config{})

	output, err := rw.Transform("", Options{})
	require.NoError(t, err)
	assert.Empty(t, output)

	result, err := rw.Rewrite(nil, Options{})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Empty(t, result.Code)
}

func TestTransform_SyntaxError(t *testing.T) {
	rw := newTestRewriter(t, Config{})

	_, err := rw.Transform("const = ;", Options{Filename: "broken.js"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSyntax)
	assert.Contains(t, err.Error(), "broken.js")
}

func TestTransform_CustomConfig(t *testing.T) {
	rw := newTestRewriter(t, Config{Factory: "h", Attribute: "data-view", Quote: `"`})

	output, err := rw.Transform("const A = () => h('div'); const B = () => m('div');", Options{})
	require.NoError(t, err)
	assert.Equal(t, `const A = () => h('div', { "data-view": "A" }); const B = () => m('div');`, output)
}

func TestTransform_AttrsNames(t *testing.T) {
	rw := newTestRewriter(t, Config{AttrsNames: []string{"attrs"}})

	input := "const List = { view: (vnode) => m('ul', vnode.attrs.items.map((item) => m('li', item))) };"

	result, err := rw.Rewrite([]byte(input), Options{})
	require.NoError(t, err)

	assert.Equal(t,
		"const List = { view: (vnode) => m('ul', { 'data-component': 'List' }, vnode.attrs.items.map((item) => m('li', { 'data-component': 'List' }, item))) };",
		string(result.Code))

	require.Len(t, result.Tags, 2)
	for _, tag := range result.Tags {
		assert.Equal(t, "List", tag.Name)
		assert.Equal(t, StrategyInsertArgument, tag.Strategy)
	}

	merged, err := rw.Transform("const A = () => m('a', vnode.attrs);", Options{})
	require.NoError(t, err)
	assert.Equal(t, "const A = () => m('a', Object.assign({ 'data-component': 'A' }, vnode.attrs));", merged)
}

func TestRewrite_TagsEachCallOnce(t *testing.T) {
	rw := newTestRewriter(t, Config{})

	input := `function Page() {
  const header = m('h1', 'Title');
  const body = m('main', { id: 'body' });
  return header;
}
const Card = { view: () => m('.card', m('p', 'text')) };`

	result, err := rw.Rewrite([]byte(input), Options{Filename: "Page.js"})
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Zero(t, result.Dropped)

	names := make([]string, 0, len(result.Tags))
	for _, tag := range result.Tags {
		names = append(names, tag.Name)
	}
	assert.Equal(t, []string{"Page->header", "Page->body", "Card"}, names)

	assert.Equal(t, 2, result.Tags[0].Line)
	assert.Equal(t, 18, result.Tags[0].Column)
}

func TestRewrite_PreserveExistingIsUnchanged(t *testing.T) {
	rw := newTestRewriter(t, Config{})

	input := []byte("const A = () => m('div', { \"data-component\": 'Mine' });")

	result, err := rw.Rewrite(input, Options{})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, string(input), string(result.Code))
	require.Len(t, result.Tags, 1)
	assert.Equal(t, StrategyPreserveExisting, result.Tags[0].Strategy)
}

func TestRewrite_ArgumentCounts(t *testing.T) {
	rw := newTestRewriter(t, Config{})

	tests := []struct {
		input    string
		strategy Strategy
	}{
		{"const A = () => m();", StrategyNone},
		{"const A = () => m('a');", StrategyAppendArgument},
		{"const A = () => m('a', 'text');", StrategyInsertArgument},
		{"const A = () => m('a', {});", StrategyExtendObject},
		{"const A = () => m('a', attrs);", StrategyMergeExpression},
		{"const A = () => m('a', Object.assign({ 'data-component': 'A' }, attrs));", StrategyAlreadyMerged},
		{"const A = () => m('a', m.trust('<i>'));", StrategyInsertArgument},
	}

	for _, tt := range tests {
		t.Run(tt.strategy.String(), func(t *testing.T) {
			result, err := rw.Rewrite([]byte(tt.input), Options{})
			require.NoError(t, err)
			require.Len(t, result.Tags, 1)
			assert.Equal(t, tt.strategy, result.Tags[0].Strategy)
			assert.Equal(t, tt.strategy.Mutates(), result.Changed)
		})
	}
}

func TestRewrite_ExplicitLanguage(t *testing.T) {
	rw := newTestRewriter(t, Config{})

	result, err := rw.Rewrite([]byte("const A = (x: number) => m('a', x);"), Options{Language: parser.LanguageTypeScript})
	require.NoError(t, err)
	assert.True(t, result.Changed)

	_, err = rw.Rewrite([]byte("const A = (x: number) => m('a', x);"), Options{Language: parser.LanguageJavaScript})
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestStrategy_Text(t *testing.T) {
	assert.Equal(t, "merge-expression", StrategyMergeExpression.String())
	assert.Equal(t, "Strategy(42)", Strategy(42).String())

	data, err := json.Marshal(Tag{Name: "A", Strategy: StrategyExtendObject, Line: 1, Column: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"A","strategy":"extend-object","line":1,"column":2}`, string(data))

	var tag Tag
	require.NoError(t, json.Unmarshal(data, &tag))
	assert.Equal(t, StrategyExtendObject, tag.Strategy)

	var s Strategy
	assert.Error(t, s.UnmarshalText([]byte("rewrite-everything")))
}
