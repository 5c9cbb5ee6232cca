package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"mfgrecords/internal/logging"
)

const suffix = ".cache"

type envelope struct {
	TTL   time.Duration   `json:"ttl"`
	Value json.RawMessage `json:"value"`
}

// FileStore keeps one file per key under dir. The file's modification time
// is the entry's write time.
type FileStore struct {
	dir string
	log logging.Logger
	now func() time.Time
	obs Observer
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) { s.now = now }
}

// WithObserver reports hits and misses.
func WithObserver(o Observer) Option {
	return func(s *FileStore) { s.obs = o }
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, log logging.Logger, opts ...Option) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("cache: empty directory")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("cache: create dir: %w", err)
	}
	if log == nil {
		log = logging.Nop()
	}
	s := &FileStore{dir: dir, log: log.With("component", "cache"), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *FileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+suffix)
}

// Get decodes the entry for key into dst. Missing, expired and unreadable
// entries are all reported as a miss. Expired files are left in place.
func (s *FileStore) Get(ctx context.Context, key string, dst any) bool {
	hit := s.get(ctx, key, dst)
	if s.obs != nil {
		s.obs.ObserveLookup(hit)
	}
	return hit
}

func (s *FileStore) get(ctx context.Context, key string, dst any) bool {
	p := s.path(key)
	info, err := os.Stat(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn(ctx, "cache stat failed", "key", key, "err", err)
		}
		return false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		s.log.Warn(ctx, "cache read failed", "key", key, "err", err)
		return false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Warn(ctx, "cache entry corrupt", "key", key, "err", err)
		return false
	}
	if s.now().Sub(info.ModTime()) >= env.TTL {
		return false
	}
	if err := decodeInto(env.Value, dst); err != nil {
		s.log.Warn(ctx, "cache value undecodable", "key", key, "err", err)
		return false
	}
	return true
}

// decodeInto decodes raw into a fresh value of dst's element type and stores
// it in dst only on success, so a miss never leaves dst half written.
func decodeInto(raw json.RawMessage, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("cache: destination must be a non-nil pointer, got %T", dst)
	}
	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(raw, fresh.Interface()); err != nil {
		return err
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

// Set writes value unconditionally. A non-positive ttl stores an entry that
// is never valid.
func (s *FileStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		s.log.Error(ctx, "cache encode failed", "key", key, "err", err)
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	data, err := json.Marshal(envelope{TTL: ttl, Value: raw})
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}

	p := s.path(key)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		s.log.Error(ctx, "cache write failed", "key", key, "err", err)
		return fmt.Errorf("cache: write %q: %w", key, err)
	}
	now := s.now()
	if err := os.Chtimes(p, now, now); err != nil {
		s.log.Error(ctx, "cache touch failed", "key", key, "err", err)
		return fmt.Errorf("cache: touch %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry for key. Deleting a missing key is not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Error(ctx, "cache delete failed", "key", key, "err", err)
		return fmt.Errorf("cache: delete %q: %w", key, err)
	}
	return nil
}

// Clear removes every entry, valid or not. Other files in dir are untouched.
func (s *FileStore) Clear(ctx context.Context) error {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+suffix))
	if err != nil {
		return fmt.Errorf("cache: clear: %w", err)
	}
	var errs []error
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Error(ctx, "cache clear failed", "err", err)
		return fmt.Errorf("cache: clear: %w", err)
	}
	return nil
}
