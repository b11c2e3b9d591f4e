package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ConfirmedItem is an item as shown on the confirmation screen.
type ConfirmedItem struct {
	ID   string `json:"id"`
	IID  int    `json:"iid"`
	Name string `json:"name"`
}

// Confirmation is what the success view shows for a created reservation.
type Confirmation struct {
	ID        string          `json:"id"`
	Email     string          `json:"email"`
	Pickup    string          `json:"pickup"`
	Comments  string          `json:"comments,omitempty"`
	Items     []ConfirmedItem `json:"items"`
	CreatedAt time.Time       `json:"createdAt"`
}

// TokenStore hands out single-use confirmation tokens.
type TokenStore interface {
	Issue(ctx context.Context, conf Confirmation) (string, error)
	// Consume returns the confirmation and invalidates the token.
	Consume(ctx context.Context, token string) (*Confirmation, error)
}

type memoryEntry struct {
	conf    Confirmation
	expires time.Time
}

// MemoryTokenStore keeps tokens in process memory.
type MemoryTokenStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryTokenStore(ttl time.Duration) *MemoryTokenStore {
	return &MemoryTokenStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryTokenStore) Issue(_ context.Context, conf Confirmation) (string, error) {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = memoryEntry{conf: conf, expires: s.now().Add(s.ttl)}
	return token, nil
}

func (s *MemoryTokenStore) Consume(_ context.Context, token string) (*Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[token]
	if !ok {
		return nil, ErrTokenNotFound
	}
	delete(s.entries, token)
	if s.ttl > 0 && s.now().After(e.expires) {
		return nil, ErrTokenNotFound
	}
	return &e.conf, nil
}

// Cleanup removes expired tokens.
func (s *MemoryTokenStore) Cleanup() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for token, e := range s.entries {
		if now.After(e.expires) {
			delete(s.entries, token)
			removed++
		}
	}
	return removed
}

// RedisTokenStore keeps tokens in redis; GETDEL makes consumption atomic
// across instances.
type RedisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisTokenStore(client *redis.Client, ttl time.Duration) *RedisTokenStore {
	return &RedisTokenStore{client: client, ttl: ttl, prefix: "leihlokal-confirmation:"}
}

func (s *RedisTokenStore) Issue(ctx context.Context, conf Confirmation) (string, error) {
	data, err := json.Marshal(conf)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := s.client.Set(ctx, s.prefix+token, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store confirmation: %w", err)
	}
	return token, nil
}

func (s *RedisTokenStore) Consume(ctx context.Context, token string) (*Confirmation, error) {
	data, err := s.client.GetDel(ctx, s.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load confirmation: %w", err)
	}
	var conf Confirmation
	if err := json.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("decode confirmation: %w", err)
	}
	return &conf, nil
}
