package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"unsafe"

	ts "github.com/tree-sitter/go-tree-sitter"
	ts_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	ts_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// ErrUnsupportedLanguage is returned when no grammar exists for a language or file.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// poolKey uniquely identifies a parser pool (language + TSX variant)
type poolKey struct {
	lang  Language
	isTSX bool
}

// ParserManager manages tree-sitter parsers for JavaScript and TypeScript with
// lazy initialization and thread-safe concurrent access.
//
// Memory Management:
// - Parser pools are created lazily on first use per grammar
// - ParserManager owns parser pool instances and must be closed via Close()
// - Callers own Tree instances and must call tree.Close() after use
//
// Thread Safety:
// - Multiple goroutines can parse the same language simultaneously
// - Pool creation is synchronized with write locks
//
// Example:
//
//	manager := NewParserManager(logger)
//	defer manager.Close()
//
//	tree, err := manager.Parse([]byte("const x = m('div');"), LanguageJavaScript, false)
//	if err != nil {
//	    return err
//	}
//	defer tree.Close()
type ParserManager struct {
	// pools stores parser pools per grammar (lazily initialized)
	pools map[poolKey]*parserPool

	// poolSize caps the parsers created per grammar
	poolSize int

	mutex  sync.RWMutex
	logger *slog.Logger

	stats struct {
		parsesCalled int
	}
}

// NewParserManager creates a new ParserManager sized for the current machine.
//
// The returned manager must be closed via Close() to free resources.
func NewParserManager(logger *slog.Logger) *ParserManager {
	return NewParserManagerWithSize(logger, 0)
}

// NewParserManagerWithSize creates a ParserManager whose pools hold at most
// poolSize parsers each. Zero selects the CPU-based default, which must match
// the workspace worker count so workers never wait on parsers.
func NewParserManagerWithSize(logger *slog.Logger, poolSize int) *ParserManager {
	if logger == nil {
		logger = slog.Default()
	}

	return &ParserManager{
		pools:    make(map[poolKey]*parserPool),
		poolSize: getPoolSize(poolSize),
		logger:   logger,
	}
}

// Parse parses source code using the specified language grammar.
//
// The isTSX parameter is only relevant for TypeScript - it enables JSX support.
//
// Returns a Tree that MUST be closed by the caller via tree.Close(). Syntax
// errors do not fail the parse; tree-sitter returns a tree containing ERROR
// nodes and it is up to the caller to reject it.
func (pm *ParserManager) Parse(source []byte, lang Language, isTSX bool) (*ts.Tree, error) {
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("cannot parse: %w", ErrUnsupportedLanguage)
	}

	pm.mutex.Lock()
	pm.stats.parsesCalled++
	pm.mutex.Unlock()

	pool, err := pm.getOrCreatePool(lang, isTSX)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool for %s: %w", lang, err)
	}

	parser, err := pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire parser: %w", err)
	}

	tree := parser.Parse(source, nil)
	pool.release(parser)

	if tree == nil {
		return nil, fmt.Errorf("parser.Parse returned nil tree")
	}

	if tree.RootNode().HasError() {
		pm.logger.Debug("parse tree contains errors",
			"language", lang.String(),
			"tsx", isTSX)
	}

	return tree, nil
}

// ParseFile parses a file by detecting its grammar from the file path.
//
// Returns a Tree that MUST be closed by the caller via tree.Close().
func (pm *ParserManager) ParseFile(source []byte, filePath string) (*ts.Tree, error) {
	lang := DetectLanguage(filePath)
	if lang == LanguageUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, filePath)
	}

	return pm.Parse(source, lang, IsTSXFile(filePath))
}

// Close releases all parser pool resources.
//
// After Close(), the ParserManager cannot be used.
func (pm *ParserManager) Close() error {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	created := 0
	for key, pool := range pm.pools {
		if pool == nil {
			continue
		}
		created += pool.getCreatedCount()
		pool.close()
		pm.logger.Debug("closed parser pool",
			"language", key.lang.String(),
			"isTSX", key.isTSX)
	}

	pm.logger.Debug("closing ParserManager",
		"parsers_created", created,
		"parses_called", pm.stats.parsesCalled)

	pm.pools = make(map[poolKey]*parserPool)

	return nil
}

// getOrCreatePool returns an existing parser pool or creates a new one.
// Thread-safe using double-checked locking pattern.
func (pm *ParserManager) getOrCreatePool(lang Language, isTSX bool) (*parserPool, error) {
	// JSX is part of the JavaScript grammar; only TypeScript has a TSX variant.
	key := poolKey{lang: lang, isTSX: isTSX && lang == LanguageTypeScript}

	pm.mutex.RLock()
	pool, exists := pm.pools[key]
	pm.mutex.RUnlock()

	if exists {
		return pool, nil
	}

	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if pool, exists = pm.pools[key]; exists {
		return pool, nil
	}

	langPtr, err := languagePointer(key.lang, key.isTSX)
	if err != nil {
		return nil, err
	}

	pool = newParserPool(key.lang, langPtr, key.isTSX, pm.poolSize, pm.logger)
	pm.pools[key] = pool

	pm.logger.Debug("created new parser pool",
		"language", lang.String(),
		"isTSX", key.isTSX,
		"maxSize", pm.poolSize)

	return pool, nil
}

// languagePointer returns the tree-sitter grammar for a language.
func languagePointer(lang Language, isTSX bool) (unsafe.Pointer, error) {
	switch lang {
	case LanguageTypeScript:
		if isTSX {
			return ts_typescript.LanguageTSX(), nil
		}
		return ts_typescript.LanguageTypescript(), nil

	case LanguageJavaScript:
		return ts_javascript.Language(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang.String())
	}
}

// GetStats returns parser usage statistics.
func (pm *ParserManager) GetStats() ParserStats {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	totalParsers := 0
	for _, pool := range pm.pools {
		totalParsers += pool.getCreatedCount()
	}

	return ParserStats{
		ParsersCreated: totalParsers,
		ParsesCalled:   pm.stats.parsesCalled,
	}
}

// ParserStats contains parser usage statistics.
type ParserStats struct {
	// ParsersCreated is the total number of parser instances created
	ParsersCreated int

	// ParsesCalled is the total number of Parse() calls
	ParsesCalled int
}
