// Package cart keeps the per-session set of items a visitor wants to borrow.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// StorageKey prefixes every persisted cart.
const StorageKey = "leihlokal-cart"

var (
	ErrCartFull = errors.New("cart is full")
	ErrNoData   = errors.New("no stored cart")
)

// Item is the part of a catalog item the cart needs.
type Item struct {
	ID      string  `json:"id"`
	IID     int     `json:"iid"`
	Name    string  `json:"name"`
	Deposit float64 `json:"deposit"`
}

// Storage persists serialized carts under a key.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// Cart is an insertion-ordered set of items keyed by ID, bounded by limit.
// A limit of 0 means unbounded. Safe for concurrent use.
type Cart struct {
	mu      sync.Mutex
	key     string
	limit   int
	items   []Item
	storage Storage
	logger  *zerolog.Logger
}

// New creates an empty cart persisted under key.
func New(key string, limit int, storage Storage, logger *zerolog.Logger) *Cart {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Cart{key: key, limit: limit, storage: storage, logger: logger}
}

// Load hydrates the cart from storage. Missing or unreadable data leaves
// the cart empty; any other storage error is returned and the cart must not
// be used, since saving it would overwrite the stored items.
func (c *Cart) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = nil
	if c.storage == nil {
		return nil
	}
	data, err := c.storage.Load(ctx, c.key)
	if errors.Is(err, ErrNoData) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cart %s: %w", c.key, err)
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		c.logger.Debug().Err(err).Str("key", c.key).Msg("discarding unreadable cart")
		return nil
	}
	c.items = dedupe(items)
	return nil
}

// Add inserts item unless an item with the same ID is present.
func (c *Cart) Add(ctx context.Context, item Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.indexOf(item.ID) >= 0 {
		return nil
	}
	if c.limit > 0 && len(c.items) >= c.limit {
		return ErrCartFull
	}
	prev := c.items
	c.items = append(append([]Item(nil), c.items...), item)
	return c.persist(ctx, prev)
}

// Remove drops the item with id; absent ids are ignored.
func (c *Cart) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(id)
	if i < 0 {
		return nil
	}
	prev := c.items
	next := make([]Item, 0, len(c.items)-1)
	next = append(next, c.items[:i]...)
	next = append(next, c.items[i+1:]...)
	c.items = next
	return c.persist(ctx, prev)
}

// Clear empties the cart.
func (c *Cart) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.items
	c.items = nil
	return c.persist(ctx, prev)
}

// Discard removes every item whose ID is in ids with a single save.
func (c *Cart) Discard(ctx context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	next := make([]Item, 0, len(c.items))
	for _, it := range c.items {
		if !drop[it.ID] {
			next = append(next, it)
		}
	}
	if len(next) == len(c.items) {
		return nil
	}
	prev := c.items
	c.items = next
	return c.persist(ctx, prev)
}

// Contains reports whether an item with id is in the cart.
func (c *Cart) Contains(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexOf(id) >= 0
}

// Items returns a copy of the items in insertion order.
func (c *Cart) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Item{}, c.items...)
}

// IDs returns the item IDs in insertion order.
func (c *Cart) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, len(c.items))
	for i, it := range c.items {
		ids[i] = it.ID
	}
	return ids
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Limit is the configured capacity, 0 when unbounded.
func (c *Cart) Limit() int {
	return c.limit
}

// IsFull reports whether another distinct item would be rejected.
func (c *Cart) IsFull() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limit > 0 && len(c.items) >= c.limit
}

func (c *Cart) indexOf(id string) int {
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// persist writes the current items; on failure the previous items are restored
// so memory never runs ahead of storage.
func (c *Cart) persist(ctx context.Context, prev []Item) error {
	if c.storage == nil {
		return nil
	}
	items := c.items
	if items == nil {
		items = []Item{}
	}
	data, err := json.Marshal(items)
	if err == nil {
		err = c.storage.Save(ctx, c.key, data)
	}
	if err != nil {
		c.items = prev
		return fmt.Errorf("save cart %s: %w", c.key, err)
	}
	return nil
}

func dedupe(items []Item) []Item {
	seen := make(map[string]bool, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.ID == "" || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
	}
	return out
}
