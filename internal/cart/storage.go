package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"leihlokal/internal/database"
)

// MemoryStorage keeps carts in process memory.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string][]byte)}
}

func (s *MemoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.data[key]
	if !ok {
		return nil, ErrNoData
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStorage) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

// SQLStore is the subset of the database the sqlite backend uses.
type SQLStore interface {
	LoadCart(ctx context.Context, sessionID string) ([]byte, error)
	SaveCart(ctx context.Context, sessionID string, data []byte) error
}

// SQLiteStorage persists carts in the carts table.
type SQLiteStorage struct {
	db SQLStore
}

func NewSQLiteStorage(db SQLStore) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

func (s *SQLiteStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.db.LoadCart(ctx, key)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNoData
	}
	return data, err
}

func (s *SQLiteStorage) Save(ctx context.Context, key string, data []byte) error {
	return s.db.SaveCart(ctx, key, data)
}

// RedisStorage persists carts as plain string keys with an idle expiry.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStorage creates a redis backend; ttl 0 keeps carts forever.
func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, ttl: ttl}
}

func (s *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoData
	}
	return data, err
}

func (s *RedisStorage) Save(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, key, data, s.ttl).Err()
}
