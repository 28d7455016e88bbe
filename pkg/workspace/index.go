package workspace

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gnana997/mtag/pkg/rewriter"
)

// Location is one place a component name was injected.
type Location struct {
	File     string            `json:"file"`
	Line     int               `json:"line"`
	Column   int               `json:"column"`
	Strategy rewriter.Strategy `json:"strategy"`
}

// FileTags is the unit of caching in the TagIndex.
type FileTags struct {
	Path      string
	Tags      []rewriter.Tag
	IndexedAt time.Time
}

// TagIndex maps component names to the calls tagged with them, so rendered
// markup carrying data-component="X" can be traced to source.
//
// Files live in an LRU; evicting a file drops its names from the reverse
// index. Safe for concurrent use.
type TagIndex struct {
	mu     sync.RWMutex
	files  *lru.Cache[string, *FileTags]
	byName map[string]map[string]struct{} // name → files

	updates   atomic.Int64
	evictions atomic.Int64

	logger *slog.Logger
}

// DefaultIndexFiles bounds the index for very large trees.
const DefaultIndexFiles = 20000

// NewTagIndex creates an empty index holding at most maxFiles files.
func NewTagIndex(maxFiles int, logger *slog.Logger) (*TagIndex, error) {
	if maxFiles <= 0 {
		maxFiles = DefaultIndexFiles
	}
	if logger == nil {
		logger = slog.Default()
	}

	ti := &TagIndex{
		byName: make(map[string]map[string]struct{}),
		logger: logger,
	}

	files, err := lru.NewWithEvict(maxFiles, ti.onEvict)
	if err != nil {
		return nil, fmt.Errorf("create tag index: %w", err)
	}
	ti.files = files

	return ti, nil
}

// Update replaces the tags recorded for path.
func (ti *TagIndex) Update(path string, tags []rewriter.Tag) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	// Remove fires onEvict, which unlinks the old names.
	ti.files.Remove(path)

	entry := &FileTags{
		Path:      path,
		Tags:      append([]rewriter.Tag(nil), tags...),
		IndexedAt: time.Now(),
	}
	if evicted := ti.files.Add(path, entry); evicted {
		ti.evictions.Add(1)
	}

	for _, tag := range entry.Tags {
		files, ok := ti.byName[tag.Name]
		if !ok {
			files = make(map[string]struct{})
			ti.byName[tag.Name] = files
		}
		files[path] = struct{}{}
	}

	ti.updates.Add(1)
}

// Remove forgets path, for deleted or renamed files.
func (ti *TagIndex) Remove(path string) {
	ti.mu.Lock()
	defer ti.mu.Unlock()

	ti.files.Remove(path)
}

// Lookup returns every location tagged with name, ordered by file and line.
func (ti *TagIndex) Lookup(name string) []Location {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	var locations []Location
	for path := range ti.byName[name] {
		entry, ok := ti.files.Peek(path)
		if !ok {
			continue
		}
		for _, tag := range entry.Tags {
			if tag.Name != name {
				continue
			}
			locations = append(locations, Location{
				File:     path,
				Line:     tag.Line,
				Column:   tag.Column,
				Strategy: tag.Strategy,
			})
		}
	}

	sort.Slice(locations, func(i, j int) bool {
		if locations[i].File != locations[j].File {
			return locations[i].File < locations[j].File
		}
		return locations[i].Line < locations[j].Line
	})

	return locations
}

// File returns the tags recorded for path.
func (ti *TagIndex) File(path string) (*FileTags, bool) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	return ti.files.Get(path)
}

// Names returns all indexed component names, sorted.
func (ti *TagIndex) Names() []string {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	names := make([]string, 0, len(ti.byName))
	for name := range ti.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns index statistics.
func (ti *TagIndex) Stats() TagIndexStats {
	ti.mu.RLock()
	defer ti.mu.RUnlock()

	return TagIndexStats{
		Files:     ti.files.Len(),
		Names:     len(ti.byName),
		Updates:   ti.updates.Load(),
		Evictions: ti.evictions.Load(),
	}
}

// TagIndexStats contains tag index statistics.
type TagIndexStats struct {
	Files     int   `json:"files"`
	Names     int   `json:"names"`
	Updates   int64 `json:"updates"`
	Evictions int64 `json:"evictions"`
}

// onEvict unlinks a file from the reverse index. LRU operations are only
// issued with mu held for writing.
func (ti *TagIndex) onEvict(path string, entry *FileTags) {
	for _, tag := range entry.Tags {
		files := ti.byName[tag.Name]
		delete(files, path)
		if len(files) == 0 {
			delete(ti.byName, tag.Name)
		}
	}
}
