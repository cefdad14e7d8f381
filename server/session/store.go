package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrNotFound = errors.New("session not found")

// Store holds sessions in memory. Entries expire after ttl without use and
// the least recently used entry is evicted when the store is full.
type Store struct {
	items   map[string]*entry
	mutex   sync.RWMutex
	maxSize int
	ttl     time.Duration
	logger  *zap.Logger
	cleanup *time.Ticker
	stopCh  chan struct{}
	once    sync.Once

	evicted int64
	expired int64
}

type entry struct {
	session   *Session
	expiresAt time.Time
	lastUsed  time.Time
}

type StoreStats struct {
	Sessions int   `json:"sessions"`
	MaxSize  int   `json:"max_size"`
	Evicted  int64 `json:"evicted"`
	Expired  int64 `json:"expired"`
}

func NewStore(maxSize int, ttl time.Duration, logger *zap.Logger) *Store {
	store := &Store{
		items:   make(map[string]*entry),
		maxSize: maxSize,
		ttl:     ttl,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	store.cleanup = time.NewTicker(cleanupInterval(ttl))
	go store.cleanupExpired()

	return store
}

func cleanupInterval(ttl time.Duration) time.Duration {
	interval := ttl / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}

func (s *Store) Put(sess *Session) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.items[sess.ID]; !exists && len(s.items) >= s.maxSize {
		s.evictLRU()
	}

	now := time.Now()
	s.items[sess.ID] = &entry{
		session:   sess,
		expiresAt: now.Add(s.ttl),
		lastUsed:  now,
	}
}

// Get returns the session and extends its lifetime.
func (s *Store) Get(id string) (*Session, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	item, exists := s.items[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	now := time.Now()
	if now.After(item.expiresAt) {
		delete(s.items, id)
		s.expired++
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	item.lastUsed = now
	item.expiresAt = now.Add(s.ttl)
	return item.session, nil
}

func (s *Store) Delete(id string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, exists := s.items[id]
	delete(s.items, id)
	return exists
}

func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.items)
}

func (s *Store) Stats() StoreStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return StoreStats{
		Sessions: len(s.items),
		MaxSize:  s.maxSize,
		Evicted:  s.evicted,
		Expired:  s.expired,
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (s *Store) Close() error {
	s.once.Do(func() {
		s.cleanup.Stop()
		close(s.stopCh)
	})
	return nil
}

func (s *Store) evictLRU() {
	var oldestKey string
	var oldestTime time.Time

	for key, item := range s.items {
		if oldestKey == "" || item.lastUsed.Before(oldestTime) {
			oldestKey = key
			oldestTime = item.lastUsed
		}
	}

	if oldestKey != "" {
		delete(s.items, oldestKey)
		s.evicted++
		s.logger.Debug("Evicted least recently used session", zap.String("session_id", oldestKey))
	}
}

func (s *Store) cleanupExpired() {
	for {
		select {
		case <-s.cleanup.C:
			s.removeExpired(time.Now())
		case <-s.stopCh:
			return
		}
	}
}

func (s *Store) removeExpired(now time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for key, item := range s.items {
		if now.After(item.expiresAt) {
			delete(s.items, key)
			removed++
		}
	}
	s.expired += int64(removed)

	if removed > 0 {
		s.logger.Debug("Removed expired sessions", zap.Int("count", removed))
	}
	return removed
}
