package parser

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleComponent = `
const Button = {
  view: (vnode) => m('button', vnode.attrs, vnode.children),
};
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestParseJavaScript(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	tree, err := manager.Parse([]byte(sampleComponent), LanguageJavaScript, false)
	require.NoError(t, err, "Parse should succeed")
	require.NotNil(t, tree)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "program", root.Kind(), "Root should be a program node")
	assert.False(t, root.HasError())
	assert.Contains(t, root.ToSexp(), "call_expression")
}

func TestParseTypeScriptAndTSX(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	tree, err := manager.Parse([]byte("const Title = (name: string) => m('h1', name);"), LanguageTypeScript, false)
	require.NoError(t, err)
	defer tree.Close()
	assert.False(t, tree.RootNode().HasError())

	tsx, err := manager.Parse([]byte("const App = () => <div>{m('span')}</div>;"), LanguageTypeScript, true)
	require.NoError(t, err)
	defer tsx.Close()
	assert.Contains(t, tsx.RootNode().ToSexp(), "jsx_element")
}

func TestParseFile(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	testCases := []struct {
		fileName string
		source   string
	}{
		{"button.js", sampleComponent},
		{"button.mjs", sampleComponent},
		{"button.ts", "const n: number = 1;"},
		{"button.tsx", "const el = <b />;"},
	}

	for _, tc := range testCases {
		t.Run(tc.fileName, func(t *testing.T) {
			tree, err := manager.ParseFile([]byte(tc.source), tc.fileName)
			require.NoError(t, err, "ParseFile should succeed for %s", tc.fileName)
			defer tree.Close()
			assert.Equal(t, "program", tree.RootNode().Kind())
		})
	}
}

func TestParseFile_Unsupported(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	tree, err := manager.ParseFile([]byte("body {}"), "style.css")
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	assert.Nil(t, tree)
}

func TestLazyInitialization(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	assert.Equal(t, 0, manager.GetStats().ParsersCreated, "Should start with 0 parsers")

	source := []byte("const x = 1;")
	tree, err := manager.Parse(source, LanguageJavaScript, false)
	require.NoError(t, err)
	tree.Close()

	stats := manager.GetStats()
	assert.Equal(t, 1, stats.ParsersCreated)
	assert.Equal(t, 1, stats.ParsesCalled)

	tree, err = manager.Parse(source, LanguageJavaScript, false)
	require.NoError(t, err)
	tree.Close()

	stats = manager.GetStats()
	assert.Equal(t, 1, stats.ParsersCreated, "Should reuse the pooled parser")
	assert.Equal(t, 2, stats.ParsesCalled)

	// JSX flag is ignored for JavaScript, so no new pool is created.
	tree, err = manager.Parse(source, LanguageJavaScript, true)
	require.NoError(t, err)
	tree.Close()
	assert.Equal(t, 1, manager.GetStats().ParsersCreated)

	tree, err = manager.Parse(source, LanguageTypeScript, false)
	require.NoError(t, err)
	tree.Close()
	assert.Equal(t, 2, manager.GetStats().ParsersCreated)
}

func TestLanguageDetection(t *testing.T) {
	testCases := []struct {
		filePath string
		expected Language
	}{
		{"file.ts", LanguageTypeScript},
		{"file.tsx", LanguageTypeScript},
		{"file.mts", LanguageTypeScript},
		{"file.js", LanguageJavaScript},
		{"file.jsx", LanguageJavaScript},
		{"file.mjs", LanguageJavaScript},
		{"file.cjs", LanguageJavaScript},
		{"FILE.JS", LanguageJavaScript},
		{"file.txt", LanguageUnknown},
		{"Makefile", LanguageUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.filePath, func(t *testing.T) {
			assert.Equal(t, tc.expected, DetectLanguage(tc.filePath))
			assert.Equal(t, tc.expected != LanguageUnknown, IsSourceFile(tc.filePath))
		})
	}
}

func TestIsTSXFile(t *testing.T) {
	assert.True(t, IsTSXFile("file.tsx"))
	assert.True(t, IsTSXFile("file.TSX"))
	assert.False(t, IsTSXFile("file.ts"))
	assert.False(t, IsTSXFile("file.jsx"))
}

func TestParseUnknownLanguage(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	tree, err := manager.Parse([]byte("some random text"), LanguageUnknown, false)
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
	assert.Nil(t, tree)
}

func TestParseInvalidSyntax(t *testing.T) {
	manager := NewParserManager(testLogger())
	defer manager.Close()

	tree, err := manager.Parse([]byte("const x = m('div', {;"), LanguageJavaScript, false)
	require.NoError(t, err, "Parse should not return error even for invalid syntax")
	defer tree.Close()

	assert.True(t, tree.RootNode().HasError())
}

func TestMemoryCleanup(t *testing.T) {
	manager := NewParserManager(testLogger())

	for _, lang := range SupportedLanguages() {
		tree, err := manager.Parse([]byte("const x = 1;"), lang, false)
		require.NoError(t, err)
		tree.Close()
	}

	assert.NoError(t, manager.Close())
	assert.Empty(t, manager.pools, "Pools map should be empty after Close")
}

func TestParseLanguageString(t *testing.T) {
	testCases := []struct {
		input    string
		expected Language
		tsx      bool
	}{
		{"typescript", LanguageTypeScript, false},
		{"TS", LanguageTypeScript, false},
		{"tsx", LanguageTypeScript, true},
		{"javascript", LanguageJavaScript, false},
		{"jsx", LanguageJavaScript, false},
		{"", LanguageUnknown, false},
		{"python", LanguageUnknown, false},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLanguageString(tc.input))
			assert.Equal(t, tc.tsx, IsTSXDialect(tc.input))
		})
	}
}

func TestLanguageString(t *testing.T) {
	assert.Equal(t, "typescript", LanguageTypeScript.String())
	assert.Equal(t, "javascript", LanguageJavaScript.String())
	assert.Equal(t, "unknown", LanguageUnknown.String())
}
