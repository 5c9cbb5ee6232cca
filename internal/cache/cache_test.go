package cache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mfgrecords/internal/logging"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type lookups struct{ hits, misses int }

func (l *lookups) ObserveLookup(hit bool) {
	if hit {
		l.hits++
		return
	}
	l.misses++
}

func newStore(t *testing.T, opts ...Option) (*FileStore, *fakeClock, *bytes.Buffer) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	var buf bytes.Buffer
	s, err := NewFileStore(t.TempDir(), logging.New(&buf, "dev", "debug"), append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	return s, clock, &buf
}

func TestFileStore_TTLExpiry(t *testing.T) {
	s, clock, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "test_cache_key", map[string]string{"test": "data"}, 60*time.Second))

	var got map[string]string
	require.True(t, s.Get(ctx, "test_cache_key", &got))
	assert.Equal(t, map[string]string{"test": "data"}, got)

	clock.Advance(59 * time.Second)
	got = nil
	assert.True(t, s.Get(ctx, "test_cache_key", &got))
	assert.Equal(t, "data", got["test"])

	clock.Advance(2 * time.Second)
	got = nil
	assert.False(t, s.Get(ctx, "test_cache_key", &got))
	assert.Nil(t, got)

	_, err := os.Stat(s.path("test_cache_key"))
	assert.NoError(t, err, "expired entries stay on disk until overwritten or cleared")
}

func TestFileStore_ExpiresExactlyAtTTL(t *testing.T) {
	s, clock, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", 1, time.Minute))
	clock.Advance(time.Minute)

	var n int
	assert.False(t, s.Get(ctx, "k", &n))
}

func TestFileStore_OverwriteRefreshesEntry(t *testing.T) {
	s, clock, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "user_1", "old", time.Minute))
	clock.Advance(2 * time.Minute)
	require.NoError(t, s.Set(ctx, "user_1", "new", time.Minute))

	var v string
	require.True(t, s.Get(ctx, "user_1", &v))
	assert.Equal(t, "new", v)
}

func TestFileStore_MissingAndNonPositiveTTL(t *testing.T) {
	s, _, buf := newStore(t)
	ctx := context.Background()

	var v string
	assert.False(t, s.Get(ctx, "never_set", &v))
	assert.Empty(t, buf.String(), "a plain miss is not logged")

	require.NoError(t, s.Set(ctx, "zero", "x", 0))
	assert.False(t, s.Get(ctx, "zero", &v))
}

func TestFileStore_CorruptEntryIsMiss(t *testing.T) {
	s, _, buf := newStore(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(s.path("broken"), []byte("{not json"), 0o600))

	var v string
	assert.False(t, s.Get(ctx, "broken", &v))
	assert.Contains(t, buf.String(), "cache entry corrupt")

	require.NoError(t, s.Set(ctx, "typed", "text", time.Minute))
	var n int
	assert.False(t, s.Get(ctx, "typed", &n))
	assert.Contains(t, buf.String(), "cache value undecodable")
}

func TestFileStore_MissLeavesDestinationUntouched(t *testing.T) {
	s, _, buf := newStore(t)
	ctx := context.Background()

	type part struct {
		Qty  int `json:"qty"`
		Code int `json:"code"`
	}
	require.NoError(t, s.Set(ctx, "part", map[string]any{"qty": 3, "code": "AB-1"}, time.Minute))

	got := part{Qty: 7, Code: 9}
	assert.False(t, s.Get(ctx, "part", &got))
	assert.Equal(t, part{Qty: 7, Code: 9}, got)
	assert.Contains(t, buf.String(), "cache value undecodable")

	var notPointer part
	assert.False(t, s.Get(ctx, "part", notPointer))
}

func TestFileStore_DeleteAndClear(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, s.Set(ctx, "b", 2, time.Minute))
	require.NoError(t, os.WriteFile(filepath.Join(s.dir, "README"), []byte("keep"), 0o600))

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))

	var n int
	assert.False(t, s.Get(ctx, "a", &n))
	assert.True(t, s.Get(ctx, "b", &n))

	require.NoError(t, s.Clear(ctx))
	assert.False(t, s.Get(ctx, "b", &n))
	_, err := os.Stat(filepath.Join(s.dir, "README"))
	assert.NoError(t, err)
}

func TestFileStore_KeysAreHashed(t *testing.T) {
	s, _, _ := newStore(t)
	p := s.path("../../etc/passwd")
	assert.Equal(t, s.dir, filepath.Dir(p))
	assert.Len(t, filepath.Base(p), 64+len(suffix))
	assert.NotEqual(t, s.path("production_cost_1"), s.path("production_cost_2"))
}

func TestFileStore_SetUnencodable(t *testing.T) {
	s, _, _ := newStore(t)
	err := s.Set(context.Background(), "ch", make(chan int), time.Minute)
	assert.Error(t, err)
}

func TestFileStore_Observer(t *testing.T) {
	obs := &lookups{}
	s, _, _ := newStore(t, WithObserver(obs))
	ctx := context.Background()

	var v string
	s.Get(ctx, "k", &v)
	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
	s.Get(ctx, "k", &v)
	assert.Equal(t, 1, obs.hits)
	assert.Equal(t, 1, obs.misses)
}

func TestNewDisabledReturnsNop(t *testing.T) {
	store, err := New(Config{Enabled: false, Dir: t.TempDir()}, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	var v string
	assert.False(t, store.Get(ctx, "k", &v))
	assert.NoError(t, store.Delete(ctx, "k"))
	assert.NoError(t, store.Clear(ctx))
}

func TestNewEnabled(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	store, err := New(Config{Enabled: true, Dir: dir}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)
	assert.DirExists(t, dir)

	_, err = New(Config{Enabled: true}, nil)
	assert.Error(t, err)
}

func TestRemember(t *testing.T) {
	s, clock, _ := newStore(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (float64, error) {
		calls++
		return 42.5, nil
	}

	for range 3 {
		v, err := Remember(ctx, s, "production_cost_7", 10*time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, 42.5, v)
	}
	assert.Equal(t, 1, calls)

	clock.Advance(11 * time.Minute)
	_, err := Remember(ctx, s, "production_cost_7", 10*time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRememberLoadError(t *testing.T) {
	s, _, _ := newStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := Remember(ctx, s, "k", time.Minute, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	var n int
	assert.False(t, s.Get(ctx, "k", &n), "failed loads are not cached")
}
