package rewriter

import (
	"slices"
	"strings"
)

// DefaultAttribute is the key injected into options objects.
const DefaultAttribute = "data-component"

// DefaultFactory is the conventional Mithril hyperscript function.
const DefaultFactory = "m"

// Config controls what the rewriter looks for and what it writes.
type Config struct {
	// Factory is the identifier of the element factory, "m" by default.
	Factory string `json:"factory" yaml:"factory" mapstructure:"factory"`

	// Attribute is the injected key, "data-component" by default.
	Attribute string `json:"attribute" yaml:"attribute" mapstructure:"attribute"`

	// Quote is the string delimiter for generated literals: ' or ".
	Quote string `json:"quote" yaml:"quote" mapstructure:"quote"`

	// AttrsNames narrows which identifier, member and call shapes in the
	// options position are merged as attribute bags. Empty means every such
	// shape is; otherwise an identifier, a member's property or a callee must
	// be named in the list, and other shapes get a fresh options object.
	AttrsNames []string `json:"attrs_names,omitempty" yaml:"attrs_names,omitempty" mapstructure:"attrs_names"`
}

// DefaultConfig returns the configuration matching Mithril conventions.
func DefaultConfig() Config {
	return Config{
		Factory:   DefaultFactory,
		Attribute: DefaultAttribute,
		Quote:     "'",
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Factory == "" {
		c.Factory = defaults.Factory
	}
	if c.Attribute == "" {
		c.Attribute = defaults.Attribute
	}
	if c.Quote != `"` {
		c.Quote = defaults.Quote
	}
	return c
}

// isAttrsName reports whether name may hold an attribute bag.
func (c Config) isAttrsName(name string) bool {
	return len(c.AttrsNames) == 0 || slices.Contains(c.AttrsNames, name)
}

// literal renders s as a string literal in the configured quote style.
func (c Config) literal(s string) string {
	escaper := strings.NewReplacer(`\`, `\\`, c.Quote, `\`+c.Quote, "\n", `\n`, "\r", `\r`)
	return c.Quote + escaper.Replace(s) + c.Quote
}

// property renders `'data-component': 'name'`.
func (c Config) property(name string) string {
	return c.literal(c.Attribute) + ": " + c.literal(name)
}

// object renders `{ 'data-component': 'name' }`.
func (c Config) object(name string) string {
	return "{ " + c.property(name) + " }"
}
