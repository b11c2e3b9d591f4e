package cart

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"leihlokal/internal/database"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Load(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockStorage) Save(ctx context.Context, key string, data []byte) error {
	args := m.Called(ctx, key, data)
	return args.Error(0)
}

func item(id string, iid int) Item {
	return Item{ID: id, IID: iid, Name: "Item " + id, Deposit: 10}
}

func TestAdd_Idempotent(t *testing.T) {
	ctx := context.Background()
	c := New("k", 10, NewMemoryStorage(), nil)

	require.NoError(t, c.Add(ctx, item("a", 1)))
	require.NoError(t, c.Add(ctx, item("a", 1)))

	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Contains("a"))
}

func TestAdd_Capacity(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	c := New("k", 2, storage, nil)

	require.NoError(t, c.Add(ctx, item("a", 1)))
	require.NoError(t, c.Add(ctx, item("b", 2)))
	assert.True(t, c.IsFull())

	err := c.Add(ctx, item("c", 3))
	assert.ErrorIs(t, err, ErrCartFull)
	assert.Equal(t, []string{"a", "b"}, c.IDs())

	// re-adding a present item is still allowed when full
	assert.NoError(t, c.Add(ctx, item("a", 1)))

	stored := New("k", 2, storage, nil)
	require.NoError(t, stored.Load(ctx))
	assert.Equal(t, []string{"a", "b"}, stored.IDs())
}

func TestAdd_ZeroLimitIsUnbounded(t *testing.T) {
	ctx := context.Background()
	c := New("k", 0, nil, nil)
	for i := 0; i < 50; i++ {
		require.NoError(t, c.Add(ctx, item(string(rune('A'+i)), i)))
	}
	assert.Equal(t, 50, c.Len())
	assert.False(t, c.IsFull())
}

func TestRemoveAndClear(t *testing.T) {
	ctx := context.Background()
	c := New("k", 0, NewMemoryStorage(), nil)
	require.NoError(t, c.Add(ctx, item("a", 1)))
	require.NoError(t, c.Add(ctx, item("b", 2)))
	require.NoError(t, c.Add(ctx, item("c", 3)))

	require.NoError(t, c.Remove(ctx, "b"))
	require.NoError(t, c.Remove(ctx, "missing"))
	assert.Equal(t, []string{"a", "c"}, c.IDs())

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Items())
}

func TestLoad_RoundTripKeepsOrder(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	c := New("k", 0, storage, nil)
	for _, id := range []string{"z", "a", "m"} {
		require.NoError(t, c.Add(ctx, item(id, 0)))
	}

	restored := New("k", 0, storage, nil)
	require.NoError(t, restored.Load(ctx))
	assert.Equal(t, c.Items(), restored.Items())
}

func TestLoad_BadDataYieldsEmptyCart(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"absent", nil, ErrNoData},
		{"garbage", []byte("not json"), nil},
		{"wrong shape", []byte(`{"id":"a"}`), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockStorage)
			m.On("Load", ctx, "k").Return(tt.data, tt.err)

			c := New("k", 0, m, nil)
			require.NoError(t, c.Load(ctx))
			assert.Equal(t, 0, c.Len())
			m.AssertExpectations(t)
		})
	}
}

func TestLoad_DropsDuplicates(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(ctx, "k", []byte(`[{"id":"a"},{"id":"b"},{"id":"a"},{"id":""}]`)))

	c := New("k", 0, storage, nil)
	require.NoError(t, c.Load(ctx))
	assert.Equal(t, []string{"a", "b"}, c.IDs())
}

func TestSaveFailureRestoresState(t *testing.T) {
	ctx := context.Background()
	m := new(MockStorage)
	m.On("Save", ctx, "k", []byte(`[{"id":"a","iid":1,"name":"Item a","deposit":10}]`)).Return(nil).Once()
	m.On("Save", ctx, "k", mock.Anything).Return(errors.New("write failed"))

	c := New("k", 0, m, nil)
	require.NoError(t, c.Add(ctx, item("a", 1)))

	assert.Error(t, c.Add(ctx, item("b", 2)))
	assert.Equal(t, []string{"a"}, c.IDs())

	assert.Error(t, c.Clear(ctx))
	assert.Equal(t, []string{"a"}, c.IDs())
}

func TestClearPersistsEmptyArray(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	c := New("k", 0, storage, nil)
	require.NoError(t, c.Add(ctx, item("a", 1)))
	require.NoError(t, c.Clear(ctx))

	data, err := storage.Load(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestConcurrentAddsRespectLimit(t *testing.T) {
	ctx := context.Background()
	c := New("k", 5, NewMemoryStorage(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Add(ctx, item(string(rune('a'+i)), i))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, c.Len())
}

func TestRedisStorage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	storage := NewRedisStorage(client, 0)
	_, err := storage.Load(ctx, Key("s1"))
	assert.ErrorIs(t, err, ErrNoData)

	c := New(Key("s1"), 10, storage, nil)
	require.NoError(t, c.Add(ctx, item("a", 1)))

	assert.True(t, mr.Exists("leihlokal-cart:s1"))

	restored := New(Key("s1"), 10, storage, nil)
	require.NoError(t, restored.Load(ctx))
	assert.Equal(t, []string{"a"}, restored.IDs())
}

func TestSQLiteStorage(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "cart.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	storage := NewSQLiteStorage(db)
	_, err = storage.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoData)

	c := New("k", 3, storage, nil)
	require.NoError(t, c.Add(ctx, item("x", 9)))
	require.NoError(t, c.Add(ctx, item("y", 8)))

	restored := New("k", 3, storage, nil)
	require.NoError(t, restored.Load(ctx))
	assert.Equal(t, c.Items(), restored.Items())
}

func TestLoad_StorageErrorIsReturned(t *testing.T) {
	ctx := context.Background()
	m := new(MockStorage)
	m.On("Load", ctx, "k").Return(nil, errors.New("i/o timeout"))

	c := New("k", 0, m, nil)
	err := c.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "i/o timeout")
	assert.Equal(t, 0, c.Len())
}

func TestDiscard_KeepsOtherItems(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	c := New("k", 0, storage, nil)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, c.Add(ctx, item(id, 0)))
	}

	require.NoError(t, c.Discard(ctx, []string{"a", "c", "missing"}))
	assert.Equal(t, []string{"b"}, c.IDs())

	restored := New("k", 0, storage, nil)
	require.NoError(t, restored.Load(ctx))
	assert.Equal(t, []string{"b"}, restored.IDs())
}

func TestService_PerSessionCarts(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	svc := NewService(2, storage, nil)

	a, err := svc.For(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, a.Add(ctx, item("1", 1)))
	again, err := svc.For(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, a, again)
	b, err := svc.For(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())

	svc.Forget("a")
	reloaded, err := svc.For(ctx, "a")
	require.NoError(t, err)
	assert.NotSame(t, a, reloaded)
	assert.Equal(t, []string{"1"}, reloaded.IDs())
	assert.Equal(t, 2, reloaded.Limit())
}

// flakyStorage fails the first failLoads loads and then reads from MemoryStorage.
type flakyStorage struct {
	*MemoryStorage
	failLoads int
}

func (f *flakyStorage) Load(ctx context.Context, key string) ([]byte, error) {
	if f.failLoads > 0 {
		f.failLoads--
		return nil, errors.New("i/o timeout")
	}
	return f.MemoryStorage.Load(ctx, key)
}

func TestService_LoadErrorKeepsStoredCart(t *testing.T) {
	ctx := context.Background()
	storage := &flakyStorage{MemoryStorage: NewMemoryStorage()}
	require.NoError(t, storage.Save(ctx, Key("s1"), []byte(`[{"id":"a"},{"id":"b"}]`)))
	storage.failLoads = 1

	svc := NewService(0, storage, nil)
	c, err := svc.For(ctx, "s1")
	require.Error(t, err)
	assert.Nil(t, c)
	assert.Equal(t, 0, svc.Len())

	c, err = svc.For(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, c.Add(ctx, item("c", 3)))

	restored := New(Key("s1"), 0, storage, nil)
	require.NoError(t, restored.Load(ctx))
	assert.Equal(t, []string{"a", "b", "c"}, restored.IDs())
}

func TestService_CleanupEvictsIdleCarts(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	svc := NewService(0, storage, nil)

	clock := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	for i := 0; i < 100; i++ {
		_, err := svc.For(ctx, fmt.Sprintf("visitor-%d", i))
		require.NoError(t, err)
	}
	kept, err := svc.For(ctx, "kept")
	require.NoError(t, err)
	require.NoError(t, kept.Add(ctx, item("a", 1)))

	clock = clock.Add(2 * time.Hour)
	_, err = svc.For(ctx, "kept")
	require.NoError(t, err)

	assert.Equal(t, 100, svc.Cleanup(clock.Add(-time.Hour)))
	assert.Equal(t, 1, svc.Len())

	assert.Equal(t, 1, svc.Cleanup(clock.Add(time.Minute)))
	reloaded, err := svc.For(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, reloaded.IDs())
}
