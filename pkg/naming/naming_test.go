package naming

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	testCases := []struct {
		path     string
		resolved bool
		dir      string
		stem     string
		name     string
	}{
		{"src/components/Widget.js", true, "components", "Widget", "Widget"},
		{"src/Widget/index.js", true, "Widget", "index", "Widget"},
		{"/abs/path/Nav.tsx", true, "path", "Nav", "Nav"},
		{`C:\app\Card\index.ts`, true, "Card", "index", "Card"},
		{"Widget.js", true, ".", "Widget", "Widget"},
		{"index.js", true, ".", "index", "index"},
		{"no-extension", true, ".", "no-extension", "no-extension"},
		{"", false, "", "", Unresolved},
		{"unknown", false, "", "", Unresolved},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			d := Describe(tc.path)
			assert.Equal(t, tc.resolved, d.Resolved())
			if tc.resolved {
				assert.Equal(t, tc.dir, d.Directory)
				assert.Equal(t, tc.stem, d.Stem)
			}
			assert.Equal(t, tc.name, d.ComponentName())
		})
	}
}

func TestUnresolvedIsNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, Unresolved)
	assert.NotEmpty(t, FileDescriptor{}.ComponentName())
}

func TestResolvePrecedence(t *testing.T) {
	file := Describe("src/Widget.js")

	testCases := []struct {
		name     string
		decl     Declaration
		ambient  string
		file     FileDescriptor
		expected string
	}{
		{"own name wins", Declaration{OwnName: "Foo", BindingName: "Bar"}, "Outer", file, "Foo"},
		{"binding beats ambient", Declaration{BindingName: "Bar"}, "Outer", file, "Bar"},
		{"ambient beats file", Declaration{}, "Outer", file, "Outer"},
		{"file fallback", Declaration{}, "", file, "Widget"},
		{"index uses directory", Declaration{}, "", Describe("Widget/index.js"), "Widget"},
		{"no path", Declaration{}, "", Describe(""), Unresolved},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Resolve(tc.decl, tc.ambient, tc.file))
		})
	}
}

func TestCompound(t *testing.T) {
	assert.Equal(t, "MyComponent->markup", Compound("MyComponent", "markup"))
	assert.Equal(t, "component", Compound("component", "component"))
	assert.Equal(t, "markup", Compound("", "markup"))
	assert.Equal(t, "Outer", Compound("Outer", ""))
}
