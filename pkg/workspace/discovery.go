package workspace

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gnana997/mtag/pkg/parser"
)

// DiscoverFiles walks root and returns the source files matching opts,
// sorted. Paths are joined onto root as given.
func DiscoverFiles(root string, opts Options, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	if err := validatePatterns(opts.Include); err != nil {
		return nil, err
	}
	if err := validatePatterns(opts.Exclude); err != nil {
		return nil, err
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Warn("walk error", "path", path, "error", err)
			return nil
		}

		rel := relativeSlash(root, path)

		if rel != "." && matchesAny(opts.Exclude, rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !parser.IsSourceFile(path) || !matchesAny(opts.Include, rel, false) {
			return nil
		}

		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(files)
	return files, nil
}

// Matches reports whether path under root passes the include and exclude
// patterns. The watcher uses it for single events.
func (o Options) Matches(root, path string) bool {
	o = o.withDefaults()
	rel := relativeSlash(root, path)
	return parser.IsSourceFile(path) &&
		!matchesAny(o.Exclude, rel, false) &&
		matchesAny(o.Include, rel, false)
}

// excludesDir reports whether the directory at path is excluded.
func (o Options) excludesDir(root, path string) bool {
	rel := relativeSlash(root, path)
	return rel != "." && matchesAny(o.Exclude, rel, true)
}

func validatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
		}
	}
	return nil
}

// matchesAny tests rel against patterns. Directories also match patterns
// meant for their contents, so "**/dist/**" prunes dist itself.
func matchesAny(patterns []string, rel string, isDir bool) bool {
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if isDir {
			if ok, _ := doublestar.Match(pattern, rel+"/_"); ok {
				return true
			}
		}
	}
	return false
}

func relativeSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}
