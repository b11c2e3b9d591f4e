package cart

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type entry struct {
	cart     *Cart
	lastUsed time.Time
}

// Service hands out one cart per session, hydrated from storage on first use.
type Service struct {
	mu      sync.Mutex
	carts   map[string]*entry
	limit   int
	storage Storage
	logger  *zerolog.Logger
	now     func() time.Time
}

func NewService(limit int, storage Storage, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "cart").Logger()
	return &Service{
		carts:   make(map[string]*entry),
		limit:   limit,
		storage: storage,
		logger:  &l,
		now:     time.Now,
	}
}

// Key returns the storage key of a session's cart.
func Key(sessionID string) string {
	return StorageKey + ":" + sessionID
}

// For returns the cart of sessionID. A cart whose storage could not be read
// is not cached, so the next call retries the load.
func (s *Service) For(ctx context.Context, sessionID string) (*Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.carts[sessionID]; ok {
		e.lastUsed = s.now()
		return e.cart, nil
	}
	c := New(Key(sessionID), s.limit, s.storage, s.logger)
	if err := c.Load(ctx); err != nil {
		s.logger.Error().Err(err).Str("session", sessionID).Msg("cart load failed")
		return nil, err
	}
	s.carts[sessionID] = &entry{cart: c, lastUsed: s.now()}
	return c, nil
}

// Forget drops the in-memory cart of sessionID; storage is left untouched.
func (s *Service) Forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sessionID)
}

// Cleanup drops in-memory carts not used since before. Stored carts stay and
// are hydrated again on the session's next request.
func (s *Service) Cleanup(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.carts {
		if e.lastUsed.Before(before) {
			delete(s.carts, id)
			removed++
		}
	}
	return removed
}

// Len is the number of carts held in memory.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.carts)
}

// Limit is the capacity applied to new carts.
func (s *Service) Limit() int {
	return s.limit
}
