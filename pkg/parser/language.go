package parser

import (
	"path/filepath"
	"strings"
)

// Language identifies the grammar used to parse a source file.
type Language int

const (
	// LanguageUnknown is the zero value; callers detect from the file name.
	LanguageUnknown Language = iota
	// LanguageJavaScript covers .js, .jsx, .mjs and .cjs sources
	LanguageJavaScript
	// LanguageTypeScript covers .ts, .mts, .cts and .tsx sources
	LanguageTypeScript
)

// String returns the string representation of the language.
func (l Language) String() string {
	switch l {
	case LanguageTypeScript:
		return "typescript"
	case LanguageJavaScript:
		return "javascript"
	default:
		return "unknown"
	}
}

// DetectLanguage detects the grammar from a file path.
// Returns LanguageUnknown if the file extension is not recognized.
func DetectLanguage(filePath string) Language {
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".ts", ".mts", ".cts", ".tsx":
		return LanguageTypeScript
	case ".js", ".jsx", ".mjs", ".cjs":
		return LanguageJavaScript
	default:
		return LanguageUnknown
	}
}

// IsTSXFile checks if a file path represents a TSX file.
// TSX files use the TypeScript grammar with JSX support enabled.
func IsTSXFile(filePath string) bool {
	return strings.ToLower(filepath.Ext(filePath)) == ".tsx"
}

// IsSourceFile reports whether the path has an extension mtag can rewrite.
func IsSourceFile(filePath string) bool {
	return DetectLanguage(filePath) != LanguageUnknown
}

// ParseLanguageString converts a language string to a Language.
// "tsx" maps to TypeScript; use IsTSXDialect to tell the two apart.
func ParseLanguageString(lang string) Language {
	switch strings.ToLower(lang) {
	case "typescript", "ts", "tsx":
		return LanguageTypeScript
	case "javascript", "js", "jsx":
		return LanguageJavaScript
	default:
		return LanguageUnknown
	}
}

// IsTSXDialect reports whether a dialect string asks for the TSX grammar.
func IsTSXDialect(lang string) bool {
	return strings.EqualFold(lang, "tsx")
}

// SupportedLanguages returns a list of all supported languages.
func SupportedLanguages() []Language {
	return []Language{
		LanguageJavaScript,
		LanguageTypeScript,
	}
}
