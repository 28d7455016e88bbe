package util

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, maxFiles int) *SourceCache {
	t.Helper()

	sc, err := NewSourceCache(SourceCacheConfig{
		MaxFiles: maxFiles,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { sc.Close() })

	return sc
}

func writeSource(t *testing.T, dir, name, contents string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestSourceCache_ReadAndHit(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "Button.js", "const Button = () => m('button');\n")

	sc := newTestCache(t, 0)

	data, err := sc.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "const Button = () => m('button');\n", string(data))

	again, err := sc.Read(path)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	stats := sc.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, stats.Cached)
	assert.Equal(t, int64(2*len(data)), stats.BytesRead)
}

func TestSourceCache_ReturnsPrivateCopy(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "a.js", "m('a');")

	sc := newTestCache(t, 0)

	data, err := sc.Read(path)
	require.NoError(t, err)
	data[0] = 'x'

	fresh, err := sc.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "m('a');", string(fresh))
}

func TestSourceCache_DetectsRewrite(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "a.js", "m('a');")

	sc := newTestCache(t, 0)

	_, err := sc.Read(path)
	require.NoError(t, err)

	sc.Invalidate(path)
	require.NoError(t, os.WriteFile(path, []byte("m('a', { 'data-component': 'a' });"), 0644))
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	data, err := sc.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "m('a', { 'data-component': 'a' });", string(data))
	assert.Equal(t, int64(2), sc.Stats().Misses)
}

func TestSourceCache_EvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	a := writeSource(t, dir, "a.js", "a")
	b := writeSource(t, dir, "b.js", "b")
	c := writeSource(t, dir, "c.js", "c")

	sc := newTestCache(t, 2)

	for _, path := range []string{a, b, c} {
		_, err := sc.Read(path)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, sc.Len())
	assert.Equal(t, int64(1), sc.Stats().Evictions)
}

func TestSourceCache_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "empty.js", "")

	sc := newTestCache(t, 0)

	data, err := sc.Read(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestSourceCache_Errors(t *testing.T) {
	dir := t.TempDir()
	sc := newTestCache(t, 0)

	_, err := sc.Read(filepath.Join(dir, "missing.js"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = sc.Read(dir)
	assert.Error(t, err)
}

func TestSourceCache_ConcurrentReads(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeSource(t, dir, "a.js", "const A = () => m('a');"),
		writeSource(t, dir, "b.js", "const B = () => m('b');"),
		writeSource(t, dir, "c.js", "const C = () => m('c');"),
	}

	sc := newTestCache(t, 2)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := paths[i%len(paths)]
			data, err := sc.Read(path)
			assert.NoError(t, err)
			assert.Len(t, data, len("const A = () => m('a');"))
		}(i)
	}
	wg.Wait()
}
