package workspace

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gnana997/mtag/pkg/rewriter"
	"github.com/gnana997/mtag/pkg/util"
)

// Runner rewrites files on disk. It owns no parsers; the Rewriter's
// ParserManager is shared by every worker.
type Runner struct {
	rewriter *rewriter.Rewriter
	cache    *util.SourceCache
	index    *TagIndex
	logger   *slog.Logger
}

// NewRunner creates a Runner. cache and index are required.
func NewRunner(rw *rewriter.Rewriter, cache *util.SourceCache, index *TagIndex, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		rewriter: rw,
		cache:    cache,
		index:    index,
		logger:   logger,
	}
}

// Index returns the tag index fed by every rewrite.
func (r *Runner) Index() *TagIndex {
	return r.index
}

// RewriteFile rewrites one file and records its tags in the index. Output
// identical to what is already at the destination is not written, which is
// what keeps the watcher from reacting to its own writes.
func (r *Runner) RewriteFile(path string, opts FileOptions) (*FileOutcome, error) {
	start := time.Now()

	source, err := r.cache.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	result, err := r.rewriter.Rewrite(source, rewriter.Options{Filename: path})
	if err != nil {
		return nil, err
	}

	r.index.Update(path, result.Tags)

	outcome := &FileOutcome{
		Path:    path,
		Changed: result.Changed,
		Tags:    result.Tags,
		Bytes:   len(source),
		Code:    result.Code,
	}
	if outcome.Code == nil {
		outcome.Code = source
	}

	if opts.Write {
		dest := opts.OutPath
		if dest == "" {
			dest = path
		}

		written, err := r.writeIfDifferent(path, dest, outcome.Code)
		if err != nil {
			return nil, err
		}
		outcome.OutPath = dest
		outcome.Written = written
	}

	outcome.Duration = time.Since(start)

	r.logger.Debug("rewrote file",
		"file", path,
		"changed", outcome.Changed,
		"written", outcome.Written,
		"tags", len(outcome.Tags))

	return outcome, nil
}

func (r *Runner) writeIfDifferent(source, dest string, code []byte) (bool, error) {
	if existing, err := r.cache.Read(dest); err == nil && bytes.Equal(existing, code) {
		return false, nil
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(source); err == nil {
		mode = info.Mode().Perm()
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, fmt.Errorf("create output directory: %w", err)
	}

	r.cache.Invalidate(dest)
	if err := os.WriteFile(dest, code, mode); err != nil {
		return false, fmt.Errorf("write %s: %w", dest, err)
	}
	return true, nil
}

// Run discovers the files under root and rewrites them in parallel.
//
// Per-file failures are collected in RunStats.Errors and do not stop the
// run. Cancelling ctx stops it early with RunStats.Cancelled set.
func (r *Runner) Run(ctx context.Context, root string, opts Options, progress ProgressCallback) (*RunStats, error) {
	start := time.Now()
	stats := &RunStats{Root: root}

	opts = opts.withDefaults()
	if opts.OutDir != "" {
		opts.Exclude = append(opts.Exclude, outDirExclusion(root, opts.OutDir)...)
	}

	files, err := DiscoverFiles(root, opts, r.logger)
	if err != nil {
		return nil, fmt.Errorf("file discovery failed: %w", err)
	}
	stats.FilesDiscovered = len(files)
	stats.DiscoveryTime = time.Since(start)

	r.logger.Info("file discovery complete",
		"root", root,
		"files_found", len(files),
		"duration", stats.DiscoveryTime)

	if len(files) == 0 {
		stats.TotalTime = time.Since(start)
		return stats, nil
	}

	numWorkers := util.GetOptimalPoolSizeWithOverride(opts.Workers)
	stats.WorkerCount = numWorkers

	pool := NewWorkerPool(ctx, numWorkers, func(job FileJob) (*FileOutcome, error) {
		return r.RewriteFile(job.FilePath, r.fileOptions(root, job.FilePath, opts))
	}, r.logger)
	pool.Start()
	defer pool.Stop()

	// The collector must be running before jobs are submitted: Submit blocks
	// once the queue is full.
	total := len(files)
	done := make(chan struct{})
	go func() {
		defer close(done)

		for finished := 0; finished < total; finished++ {
			if ctx.Err() != nil {
				stats.Cancelled = true
				return
			}

			select {
			case <-ctx.Done():
				stats.Cancelled = true
				return

			case result := <-pool.Results():
				r.record(stats, result.Outcome)
				if progress != nil {
					progress(finished+1, total, result.FilePath)
				}

			case fileErr := <-pool.Errors():
				stats.FilesFailed++
				stats.Errors = append(stats.Errors, fileErr)
				r.logger.Warn("file failed", "file", fileErr.FilePath, "error", fileErr.Err)
				if progress != nil {
					progress(finished+1, total, fileErr.FilePath)
				}
			}
		}
	}()

	for i, file := range files {
		if err := pool.Submit(FileJob{FilePath: file, JobID: i}); err != nil {
			break
		}
	}
	pool.FinishSubmitting()

	<-done

	stats.TotalTime = time.Since(start)

	r.logger.Info("workspace run complete",
		"files_processed", stats.FilesProcessed,
		"files_changed", stats.FilesChanged,
		"files_failed", stats.FilesFailed,
		"calls_tagged", stats.CallsTagged,
		"duration", stats.TotalTime,
		"cancelled", stats.Cancelled)

	return stats, nil
}

// record must only be called from the collector goroutine.
func (r *Runner) record(stats *RunStats, outcome *FileOutcome) {
	stats.FilesProcessed++
	stats.BytesRead += int64(outcome.Bytes)
	stats.CallsTagged += outcome.Mutated()
	if outcome.Changed {
		stats.FilesChanged++
	}
	if outcome.Written {
		stats.FilesWritten++
	}

	outcome.Code = nil
	stats.Files = append(stats.Files, outcome)
}

func (r *Runner) fileOptions(root, path string, opts Options) FileOptions {
	if opts.DryRun {
		return FileOptions{}
	}
	if opts.OutDir == "" {
		return FileOptions{Write: true}
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	return FileOptions{Write: true, OutPath: filepath.Join(opts.OutDir, rel)}
}

// outDirExclusion keeps a mirror inside the tree from being rewritten again.
func outDirExclusion(root, outDir string) []string {
	absRoot, err1 := filepath.Abs(root)
	absOut, err2 := filepath.Abs(outDir)
	if err1 != nil || err2 != nil {
		return nil
	}

	rel, err := filepath.Rel(absRoot, absOut)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	rel = filepath.ToSlash(rel)
	return []string{rel, rel + "/**"}
}
