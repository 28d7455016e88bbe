package util

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/edsrzf/mmap-go"
	lru "github.com/hashicorp/golang-lru/v2"
)

// SourceCache reads source files through memory-mapped regions kept in an
// LRU. Entries are revalidated against size and modification time on every
// read, so a file rewritten on disk is mapped again.
//
// Read returns a private copy of the contents. The mapping may be evicted and
// unmapped as soon as the cache lock is released, and rewritten files must
// not alias a region that is about to be truncated.
//
// Safe for concurrent use.
type SourceCache struct {
	mu     sync.Mutex
	files  *lru.Cache[string, *MappedFile]
	logger *slog.Logger
	stats  SourceCacheStats
}

// SourceCacheConfig controls SourceCache behavior.
type SourceCacheConfig struct {
	// MaxFiles bounds the mappings held open. Zero uses the default.
	MaxFiles int

	// Logger for mmap fallbacks and unmap failures. Nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultMaxCachedFiles keeps file descriptor use well under common ulimits.
const DefaultMaxCachedFiles = 512

// MappedFile is one cached source file.
type MappedFile struct {
	Path    string
	Data    mmap.MMap
	File    *os.File // nil for fallback reads and empty files
	Size    int64
	ModTime time.Time

	// mapped is false when Data came from os.ReadFile.
	mapped bool
}

// SourceCacheStats are cumulative counters except Cached.
type SourceCacheStats struct {
	Hits         int64
	Misses       int64
	Evictions    int64
	MmapFailures int64
	BytesRead    int64
	Cached       int
}

// NewSourceCache creates a SourceCache.
func NewSourceCache(config SourceCacheConfig) (*SourceCache, error) {
	if config.MaxFiles <= 0 {
		config.MaxFiles = DefaultMaxCachedFiles
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	sc := &SourceCache{logger: config.Logger}

	files, err := lru.NewWithEvict(config.MaxFiles, sc.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create source cache: %w", err)
	}
	sc.files = files

	return sc, nil
}

// Read returns the current contents of path.
func (sc *SourceCache) Read(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("read %q: is a directory", path)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if mf, ok := sc.files.Get(path); ok {
		if mf.Size == info.Size() && mf.ModTime.Equal(info.ModTime()) {
			sc.stats.Hits++
			return sc.copyOut(mf), nil
		}
		// Stale; the eviction callback releases the old mapping.
		sc.files.Remove(path)
	}

	sc.stats.Misses++

	mf, err := sc.load(path)
	if err != nil {
		return nil, err
	}
	sc.files.Add(path, mf)

	return sc.copyOut(mf), nil
}

// Invalidate drops path from the cache. Call it before writing to a file that
// may be mapped.
func (sc *SourceCache) Invalidate(path string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.files.Remove(path)
}

// Len returns the number of cached files.
func (sc *SourceCache) Len() int {
	return sc.files.Len()
}

// Stats returns a snapshot of the cache counters.
func (sc *SourceCache) Stats() SourceCacheStats {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	stats := sc.stats
	stats.Cached = sc.files.Len()
	return stats
}

// Close unmaps every cached file.
func (sc *SourceCache) Close() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.files.Purge()

	sc.logger.Debug("source cache closed",
		"hits", sc.stats.Hits,
		"misses", sc.stats.Misses,
		"evictions", sc.stats.Evictions,
		"mmap_failures", sc.stats.MmapFailures)

	return nil
}

// copyOut must be called with mu held.
func (sc *SourceCache) copyOut(mf *MappedFile) []byte {
	out := make([]byte, len(mf.Data))
	copy(out, mf.Data)
	sc.stats.BytesRead += int64(len(out))
	return out
}

// load maps path, falling back to os.ReadFile when mmap fails.
func (sc *SourceCache) load(path string) (*MappedFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}

	mf := &MappedFile{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}

	// Zero-length files cannot be mapped.
	if info.Size() == 0 {
		file.Close()
		return mf, nil
	}

	data, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		sc.stats.MmapFailures++
		sc.logger.Warn("mmap failed, reading file instead",
			"file", path,
			"size", info.Size(),
			"error", err)

		contents, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, errors.Join(fmt.Errorf("mmap %q: %w", path, err), readErr)
		}
		mf.Data = contents
		return mf, nil
	}

	mf.Data = data
	mf.File = file
	mf.mapped = true
	return mf, nil
}

// onEvict runs inside LRU operations, which are only issued with mu held.
func (sc *SourceCache) onEvict(path string, mf *MappedFile) {
	sc.stats.Evictions++

	if mf.mapped {
		if err := mf.Data.Unmap(); err != nil {
			sc.logger.Warn("failed to unmap file", "file", path, "error", err)
		}
	}
	if mf.File != nil {
		if err := mf.File.Close(); err != nil {
			sc.logger.Warn("failed to close file", "file", path, "error", err)
		}
	}
}
