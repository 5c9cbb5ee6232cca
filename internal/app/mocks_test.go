package app

import (
	"context"
	"sync"
	"time"

	"mfgrecords/internal/domain"
)

type mockUserRepo struct {
	getByUsernameFn func(ctx context.Context, username string) (*domain.User, error)
	getByIDFn       func(ctx context.Context, id int64) (*domain.User, error)
	createFn        func(ctx context.Context, u *domain.User) (*domain.User, error)
	countFn         func(ctx context.Context) (int, error)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) (*domain.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	created := *u
	created.ID = 1
	return &created, nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

// fakeSessionStore keeps sessions by value so tests observe exactly what was persisted.
type fakeSessionStore struct {
	mu      sync.Mutex
	data    map[string]domain.Session
	saves   int
	saveErr error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{data: make(map[string]domain.Session)}
}

func (f *fakeSessionStore) Get(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.data[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeSessionStore) Save(_ context.Context, s *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.data[s.ID] = *s
	return nil
}

func (f *fakeSessionStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, id)
	return nil
}

func (f *fakeSessionStore) DeleteIdle(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.data {
		if s.LastActivity.Before(before) {
			delete(f.data, id)
			n++
		}
	}
	return n, nil
}

type mockActivityRepo struct {
	appendFn     func(ctx context.Context, rec domain.ActivityRecord) (int64, error)
	listRecentFn func(ctx context.Context, limit int) ([]domain.ActivityRecord, error)
	appended     []domain.ActivityRecord
}

func (m *mockActivityRepo) Append(ctx context.Context, rec domain.ActivityRecord) (int64, error) {
	if m.appendFn != nil {
		return m.appendFn(ctx, rec)
	}
	m.appended = append(m.appended, rec)
	return int64(len(m.appended)), nil
}

func (m *mockActivityRepo) ListRecent(ctx context.Context, limit int) ([]domain.ActivityRecord, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, limit)
	}
	return m.appended, nil
}

// memCache is an in-memory CacheStore without expiry.
type memCache struct {
	data    map[string]any
	ttls    map[string]time.Duration
	gets    int
	deleted []string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]any), ttls: make(map[string]time.Duration)}
}

func (c *memCache) Get(_ context.Context, key string, dst any) bool {
	c.gets++
	v, ok := c.data[key]
	if !ok {
		return false
	}
	switch d := dst.(type) {
	case *float64:
		*d = v.(float64)
	case **domain.User:
		u := v.(*domain.User)
		*d = u
	default:
		return false
	}
	return true
}

func (c *memCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.deleted = append(c.deleted, key)
	delete(c.data, key)
	return nil
}

func (c *memCache) Clear(context.Context) error {
	c.data = make(map[string]any)
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
}
