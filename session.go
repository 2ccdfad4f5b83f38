package main

import (
	"context"
	"sync"
	"time"
)

// Session последний поиск пользователя и выбранный трек
type Session struct {
	Query     string        `json:"query"`
	Results   []SearchEntry `json:"results"`
	Picked    *int          `json:"picked,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Entry результат по индексу с нуля
func (s *Session) Entry(index int) (SearchEntry, bool) {
	if index < 0 || index >= len(s.Results) {
		return SearchEntry{}, false
	}
	return s.Results[index], true
}

func (s *Session) Find(id string) (SearchEntry, bool) {
	for _, e := range s.Results {
		if e.ID == id {
			return e, true
		}
	}
	return SearchEntry{}, false
}

func (s *Session) clone() *Session {
	c := *s
	c.Results = append([]SearchEntry(nil), s.Results...)
	if s.Picked != nil {
		p := *s.Picked
		c.Picked = &p
	}
	return &c
}

// SessionStore хранилище сессий по ID пользователя, Get возвращает ErrNoSession,
// если сессии нет или она истекла
type SessionStore interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Put(ctx context.Context, userID int64, session *Session) error
	Delete(ctx context.Context, userID int64) error
}

type memoryItem struct {
	session   *Session
	expiresAt time.Time
}

// MemorySessionStore хранит сессии в памяти процесса с TTL
type MemorySessionStore struct {
	mu    sync.RWMutex
	items map[int64]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		items: make(map[int64]memoryItem),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (m *MemorySessionStore) Get(_ context.Context, userID int64) (*Session, error) {
	m.mu.RLock()
	item, ok := m.items[userID]
	m.mu.RUnlock()
	if !ok || m.expired(item) {
		return nil, ErrNoSession
	}
	return item.session.clone(), nil
}

func (m *MemorySessionStore) Put(_ context.Context, userID int64, session *Session) error {
	s := session.clone()
	s.UpdatedAt = m.now()
	item := memoryItem{session: s}
	if m.ttl > 0 {
		item.expiresAt = s.UpdatedAt.Add(m.ttl)
	}
	m.mu.Lock()
	m.items[userID] = item
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.items, userID)
	m.mu.Unlock()
	return nil
}

// Sweep удаляет истёкшие сессии и возвращает их число
func (m *MemorySessionStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, item := range m.items {
		if m.expired(item) {
			delete(m.items, id)
			removed++
		}
	}
	return removed
}

// SweepWorker периодически очищает истёкшие сессии до отмены ctx
func (m *MemorySessionStore) SweepWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *MemorySessionStore) expired(item memoryItem) bool {
	return !item.expiresAt.IsZero() && m.now().After(item.expiresAt)
}
