package session

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type scored struct {
	member string
	at     time.Time
}

type zset struct {
	members   []scored
	expiresAt time.Time
}

// MemoryKV is a process-local KV with TTLs. Expired entries are invisible
// right away and swept by a background ticker.
type MemoryKV struct {
	mu      sync.Mutex
	entries map[string]*entry
	sets    map[string]*zset
	now     func() time.Time

	stopCleanup chan struct{}
	stopOnce    sync.Once
}

func NewMemoryKV(cleanupInterval time.Duration) *MemoryKV {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	kv := &MemoryKV{
		entries:     make(map[string]*entry),
		sets:        make(map[string]*zset),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go kv.cleanup(cleanupInterval)
	return kv
}

func (m *MemoryKV) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *MemoryKV) live(key string) (*entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return nil, false
	}
	return e, true
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return "", ErrMiss
	}
	return e.value, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = &entry{value: value, expiresAt: m.expiry(ttl)}
	return nil
}

func (m *MemoryKV) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return false, nil
	}
	m.entries[key] = &entry{value: value, expiresAt: m.expiry(ttl)}
	return true, nil
}

func (m *MemoryKV) CompareAndSet(_ context.Context, key, old, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok || e.value != old {
		return false, nil
	}
	e.value = value
	return true, nil
}

func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
		delete(m.sets, k)
	}
	return nil
}

func (m *MemoryKV) ZAdd(_ context.Context, key, member string, at time.Time, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.sets[key]
	if !ok || (!z.expiresAt.IsZero() && m.now().After(z.expiresAt)) {
		z = &zset{}
		m.sets[key] = z
	}
	replaced := false
	for i := range z.members {
		if z.members[i].member == member {
			z.members[i].at = at
			replaced = true
			break
		}
	}
	if !replaced {
		z.members = append(z.members, scored{member: member, at: at})
	}
	sort.SliceStable(z.members, func(i, j int) bool { return z.members[i].at.Before(z.members[j].at) })
	z.expiresAt = m.expiry(ttl)
	return nil
}

func (m *MemoryKV) ZSince(_ context.Context, key string, since time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.sets[key]
	if !ok {
		return nil, nil
	}
	if !z.expiresAt.IsZero() && m.now().After(z.expiresAt) {
		delete(m.sets, key)
		return nil, nil
	}
	kept := z.members[:0]
	for _, s := range z.members {
		if !s.at.Before(since) {
			kept = append(kept, s)
		}
	}
	z.members = kept
	if len(kept) == 0 {
		delete(m.sets, key)
		return nil, nil
	}
	out := make([]string, len(kept))
	for i, s := range kept {
		out[i] = s.member
	}
	return out, nil
}

func (m *MemoryKV) ZRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.sets[key]
	if !ok {
		return nil
	}
	z.members = slices.DeleteFunc(z.members, func(s scored) bool { return slices.Contains(members, s.member) })
	if len(z.members) == 0 {
		delete(m.sets, key)
	}
	return nil
}

// Close stops the background sweeper.
func (m *MemoryKV) Close() error {
	m.stopOnce.Do(func() { close(m.stopCleanup) })
	return nil
}

func (m *MemoryKV) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.removeExpired()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *MemoryKV) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
		}
	}
	for k, z := range m.sets {
		if !z.expiresAt.IsZero() && now.After(z.expiresAt) {
			delete(m.sets, k)
		}
	}
}
