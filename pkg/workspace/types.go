// Package workspace runs the data-component rewrite over directory trees:
// file discovery, a parallel worker pool, in-place or mirrored writes, an
// index of where each component name was injected, and a watcher that
// re-tags files as they are saved.
package workspace

import (
	"errors"
	"time"

	"github.com/gnana997/mtag/pkg/rewriter"
)

// ErrInvalidPattern is returned when an include or exclude glob is malformed.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// Options configures a workspace run.
type Options struct {
	// Include patterns (doublestar syntax, relative to the root). Only files
	// with a JavaScript or TypeScript extension are considered regardless.
	Include []string `yaml:"include" json:"include" mapstructure:"include"`

	// Exclude patterns, matched against files and directories.
	Exclude []string `yaml:"exclude" json:"exclude" mapstructure:"exclude"`

	// OutDir mirrors rewritten files under this directory instead of
	// rewriting in place.
	OutDir string `yaml:"out_dir,omitempty" json:"out_dir,omitempty" mapstructure:"out_dir"`

	// DryRun rewrites in memory and reports without writing.
	DryRun bool `yaml:"-" json:"-" mapstructure:"-"`

	// Workers is the worker count; 0 matches the parser pool size.
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty" mapstructure:"workers"`
}

// DefaultInclude matches every source extension mtag parses.
var DefaultInclude = []string{"**/*.{js,jsx,mjs,cjs,ts,mts,cts,tsx}"}

// DefaultExclude skips dependency, build and VCS directories.
var DefaultExclude = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/coverage/**",
	"**/*.min.js",
}

// DefaultOptions returns the default include and exclude sets.
func DefaultOptions() Options {
	return Options{
		Include: append([]string(nil), DefaultInclude...),
		Exclude: append([]string(nil), DefaultExclude...),
	}
}

func (o Options) withDefaults() Options {
	if len(o.Include) == 0 {
		o.Include = append([]string(nil), DefaultInclude...)
	}
	return o
}

// FileOptions controls what RewriteFile does with its output.
type FileOptions struct {
	// Write stores the output. Unchanged output is never written.
	Write bool

	// OutPath is the destination when Write is set; empty means in place.
	OutPath string
}

// FileOutcome is the result of rewriting one file.
type FileOutcome struct {
	Path     string         `json:"path" yaml:"path"`
	OutPath  string         `json:"out_path,omitempty" yaml:"out_path,omitempty"`
	Changed  bool           `json:"changed" yaml:"changed"`
	Written  bool           `json:"written" yaml:"written"`
	Tags     []rewriter.Tag `json:"tags,omitempty" yaml:"tags,omitempty"`
	Bytes    int            `json:"bytes" yaml:"bytes"`
	Duration time.Duration  `json:"duration_ns" yaml:"duration_ns"`

	// Code is the rewritten source. Run drops it once the file is counted.
	Code []byte `json:"-" yaml:"-"`
}

// Mutated counts tags that edited the source.
func (fo *FileOutcome) Mutated() int {
	n := 0
	for _, tag := range fo.Tags {
		if tag.Strategy.Mutates() {
			n++
		}
	}
	return n
}

// RunStats summarizes a workspace run.
type RunStats struct {
	Root            string         `json:"root" yaml:"root"`
	FilesDiscovered int            `json:"files_discovered" yaml:"files_discovered"`
	FilesProcessed  int            `json:"files_processed" yaml:"files_processed"`
	FilesChanged    int            `json:"files_changed" yaml:"files_changed"`
	FilesWritten    int            `json:"files_written" yaml:"files_written"`
	FilesFailed     int            `json:"files_failed" yaml:"files_failed"`
	CallsTagged     int            `json:"calls_tagged" yaml:"calls_tagged"`
	BytesRead       int64          `json:"bytes_read" yaml:"bytes_read"`
	WorkerCount     int            `json:"workers" yaml:"workers"`
	Cancelled       bool           `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
	DiscoveryTime   time.Duration  `json:"discovery_ns" yaml:"discovery_ns"`
	TotalTime       time.Duration  `json:"total_ns" yaml:"total_ns"`
	Files           []*FileOutcome `json:"files" yaml:"files"`
	Errors          []FileError    `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// FilesPerSecond is the processing throughput.
func (rs *RunStats) FilesPerSecond() float64 {
	if rs.TotalTime <= 0 {
		return 0
	}
	return float64(rs.FilesProcessed) / rs.TotalTime.Seconds()
}

// FileError represents an error that occurred while processing a file.
type FileError struct {
	FilePath string `json:"path" yaml:"path"`
	Err      error  `json:"-" yaml:"-"`
	Message  string `json:"error" yaml:"error"`
}

func newFileError(path string, err error) FileError {
	return FileError{FilePath: path, Err: err, Message: err.Error()}
}

// ProgressCallback is called after each file completes.
type ProgressCallback func(done, total int, currentFile string)

// WatchOptions configures the watcher.
type WatchOptions struct {
	// Debounce groups rapid saves of one file into one rewrite.
	Debounce time.Duration

	// OnRewrite, if set, is called after each debounced rewrite attempt.
	OnRewrite func(outcome *FileOutcome, err error)
}

// DefaultDebounce is long enough to cover editors that write in two steps.
const DefaultDebounce = 200 * time.Millisecond

// DefaultWatchOptions returns recommended watch options.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{Debounce: DefaultDebounce}
}
