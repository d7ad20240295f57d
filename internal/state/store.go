// Package state implementa el StateStore: valores CSRF de un solo uso con TTL
// corto. Vive solo en memoria del proceso; nunca se persiste.
package state

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	tokens "github.com/dropDatabas3/lazyauth/internal/security/token"
)

const (
	// ValueBytes is the entropy of a state value (256 bits).
	ValueBytes = 32

	DefaultTTL             = 10 * time.Minute
	DefaultCleanupInterval = time.Minute
)

// Token is an issued state value.
type Token struct {
	Value     string
	Provider  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Options struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	// Now overrides the clock used for issue/expiry decisions (tests).
	Now func() time.Time
}

type entry struct {
	provider  string
	expiresAt time.Time
}

// Store is safe for concurrent use. Consume is serialized by mu so a value is
// redeemed at most once.
type Store struct {
	mu    sync.Mutex
	items *gocache.Cache
	ttl   time.Duration
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a store and starts its eviction loop. Call Close to stop it.
func New(opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Store{
		// janitor propio (abajo) para poder detenerlo en Close
		items: gocache.New(opts.TTL, 0),
		ttl:   opts.TTL,
		now:   opts.Now,
		stop:  make(chan struct{}),
	}

	s.wg.Add(1)
	go s.janitor(opts.CleanupInterval)
	return s
}

// TTL returns the lifetime of issued values.
func (s *Store) TTL() time.Duration { return s.ttl }

// Issue creates a fresh state value not bound to a provider.
func (s *Store) Issue() (Token, error) {
	return s.IssueFor("")
}

// IssueFor creates a fresh state value bound to provider.
func (s *Store) IssueFor(provider string) (Token, error) {
	v, err := tokens.GenerateOpaqueToken(ValueBytes)
	if err != nil {
		return Token{}, err
	}
	now := s.now()
	t := Token{
		Value:     v,
		Provider:  provider,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.items.Set(v, entry{provider: provider, expiresAt: t.ExpiresAt}, s.ttl)
	return t, nil
}

// Consume reports whether value was issued, unexpired and not yet consumed,
// removing it either way.
func (s *Store) Consume(value string) bool {
	_, ok := s.ConsumeFor(value)
	return ok
}

// ConsumeFor is Consume returning the provider the value was issued for.
func (s *Store) ConsumeFor(value string) (string, bool) {
	if value == "" {
		return "", false
	}

	s.mu.Lock()
	v, found := s.items.Get(value)
	if found {
		s.items.Delete(value)
	}
	s.mu.Unlock()

	if !found {
		return "", false
	}
	e, ok := v.(entry)
	if !ok {
		return "", false
	}
	if !s.now().Before(e.expiresAt) {
		return "", false
	}
	return e.provider, true
}

// Len returns the number of stored values, including expired ones not yet
// evicted.
func (s *Store) Len() int { return s.items.ItemCount() }

// Close stops the eviction loop. Safe to call more than once.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Store) janitor(every time.Duration) {
	defer s.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.evict()
		case <-s.stop:
			return
		}
	}
}

// evict drops entries expired by the store clock. go-cache's DeleteExpired
// covers wall-clock expiry; the loop below covers an injected clock.
func (s *Store) evict() {
	s.items.DeleteExpired()
	now := s.now()
	for k, it := range s.items.Items() {
		if e, ok := it.Object.(entry); ok && !now.Before(e.expiresAt) {
			s.mu.Lock()
			s.items.Delete(k)
			s.mu.Unlock()
		}
	}
}
