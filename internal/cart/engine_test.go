package cart

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// fakeStore — потокобезопасное хранилище в памяти с подсчётом записей.
type fakeStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	saveErr error
	loadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte)}
}

func (s *fakeStore) Load(_ context.Context, sessionID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return nil, s.loadErr
	}
	payload, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrCartSnapshotNotFound
	}
	return payload, nil
}

func (s *fakeStore) Save(_ context.Context, sessionID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data[sessionID] = append([]byte(nil), payload...)
	return nil
}

func (s *fakeStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, sessionID)
	return nil
}

func (s *fakeStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *fakeStore) stored(t *testing.T, sessionID string) []domain.CartLineItem {
	t.Helper()

	s.mu.Lock()
	payload, ok := s.data[sessionID]
	s.mu.Unlock()
	require.True(t, ok, "expected persisted snapshot for %s", sessionID)

	items, err := decodeSnapshot(payload)
	require.NoError(t, err)
	return items
}

func product(id string, price int64) domain.Product {
	return domain.Product{
		ID:         id,
		Name:       "Product " + id,
		Category:   "Rings",
		Material:   "Gold",
		PriceMinor: price,
		Image:      "https://img.example/" + id + ".jpg",
	}
}

func quantities(items []domain.CartLineItem) map[string]int {
	result := make(map[string]int, len(items))
	for _, item := range items {
		result[item.ProductID] = item.Quantity
	}
	return result
}

func assertTotals(t *testing.T, e *Engine) {
	t.Helper()

	snapshot := e.Snapshot()
	var (
		count int
		total int64
	)
	for _, item := range snapshot.Items {
		count += item.Quantity
		total += item.PriceMinor * int64(item.Quantity)
	}
	assert.Equal(t, count, snapshot.TotalItems)
	assert.Equal(t, total, snapshot.TotalPriceMinor)
	assert.Equal(t, count, e.TotalItems())
	assert.Equal(t, total, e.TotalPriceMinor())
}

func TestEngine_Scenario(t *testing.T) {
	e := NewEngine("session-1")
	a := product("A", 1000)
	b := product("B", 2500)

	e.AddItem(a)
	e.AddItem(a)
	e.AddItem(b)

	items := e.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "B", items[1].ProductID)
	assert.Equal(t, 1, items[1].Quantity)
	assert.Equal(t, 3, e.TotalItems())
	assert.Equal(t, int64(4500), e.TotalPriceMinor())

	e.UpdateQuantity("A", 5)
	items = e.Items()
	require.Len(t, items, 2)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 1, items[1].Quantity)
	assert.Equal(t, int64(7500), e.TotalPriceMinor())

	e.RemoveItem("B")
	items = e.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "A", items[0].ProductID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, int64(5000), e.TotalPriceMinor())

	e.ClearCart()
	assert.Empty(t, e.Items())
	assert.Equal(t, int64(0), e.TotalPriceMinor())
	assert.Equal(t, 0, e.TotalItems())
}

func TestEngine_AddItemUniquenessAndIncrement(t *testing.T) {
	e := NewEngine("session-1")
	catalog := []domain.Product{product("A", 100), product("B", 200), product("C", 300)}

	rng := rand.New(rand.NewSource(42))
	want := make(map[string]int)
	for i := 0; i < 200; i++ {
		p := catalog[rng.Intn(len(catalog))]
		e.AddItem(p)
		want[p.ID]++
	}

	items := e.Items()
	seen := make(map[string]bool)
	for _, item := range items {
		assert.False(t, seen[item.ProductID], "duplicate line for %s", item.ProductID)
		seen[item.ProductID] = true
	}
	assert.Equal(t, want, quantities(items))
	assertTotals(t, e)
}

func TestEngine_AddItemSnapshotsProductAtAddTime(t *testing.T) {
	e := NewEngine("session-1")
	p := product("A", 1000)

	e.AddItem(p)
	p.PriceMinor = 9999
	p.Name = "Renamed"
	e.AddItem(p)

	items := e.Items()
	require.Len(t, items, 1)
	assert.Equal(t, int64(1000), items[0].PriceMinor)
	assert.Equal(t, "Product A", items[0].Name)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestEngine_AddItems(t *testing.T) {
	e := NewEngine("session-1")
	var notifications int
	e.Subscribe(func(domain.CartSnapshot) { notifications++ })

	e.AddItems(product("A", 1000), 3)
	e.AddItems(product("A", 1000), 2)
	e.AddItems(product("B", 500), 0)
	e.AddItems(product("B", 500), -4)

	assert.Equal(t, map[string]int{"A": 5}, quantities(e.Items()))
	assert.Equal(t, 2, notifications, "one transition per AddItems call, none for non-positive qty")
}

func TestEngine_RemoveThenAddMovesToEnd(t *testing.T) {
	e := NewEngine("session-1")
	e.AddItem(product("A", 100))
	e.AddItem(product("B", 200))
	e.AddItem(product("C", 300))

	e.RemoveItem("A")
	e.AddItem(product("A", 100))

	items := e.Items()
	require.Len(t, items, 3)
	assert.Equal(t, []string{"B", "C", "A"}, []string{items[0].ProductID, items[1].ProductID, items[2].ProductID})
	assert.Equal(t, 1, items[2].Quantity)
}

func TestEngine_UpdateQuantityZeroRemovalRule(t *testing.T) {
	cases := []struct {
		name string
		qty  int
	}{
		{name: "zero", qty: 0},
		{name: "negative", qty: -5},
	}

	for _, tc := range cases {
		qty := tc.qty
		t.Run(tc.name, func(t *testing.T) {
			viaUpdate := NewEngine("update")
			viaRemove := NewEngine("remove")
			for _, e := range []*Engine{viaUpdate, viaRemove} {
				e.AddItem(product("A", 1000))
				e.AddItem(product("B", 2500))
			}

			viaUpdate.UpdateQuantity("A", qty)
			viaRemove.RemoveItem("A")

			assert.Equal(t, viaRemove.Items(), viaUpdate.Items())
			assert.Equal(t, viaRemove.TotalPriceMinor(), viaUpdate.TotalPriceMinor())
			assert.NotContains(t, quantities(viaUpdate.Items()), "A")
		})
	}
}

func TestEngine_UpdateQuantityIsAbsolute(t *testing.T) {
	e := NewEngine("session-1")
	e.AddItem(product("A", 1000))

	e.UpdateQuantity("A", 4)
	e.UpdateQuantity("A", 4)

	assert.Equal(t, map[string]int{"A": 4}, quantities(e.Items()))
	assertTotals(t, e)
}

func TestEngine_MissingProductIsNoop(t *testing.T) {
	e := NewEngine("session-1")
	e.AddItem(product("A", 1000))

	var notifications int
	e.Subscribe(func(domain.CartSnapshot) { notifications++ })
	before := e.Snapshot()

	e.RemoveItem("missing")
	e.UpdateQuantity("missing", 3)
	e.UpdateQuantity("missing", 0)

	assert.Equal(t, before, e.Snapshot())
	assert.Zero(t, notifications)
}

func TestEngine_IdempotentRemoval(t *testing.T) {
	once := NewEngine("once")
	twice := NewEngine("twice")
	for _, e := range []*Engine{once, twice} {
		e.AddItem(product("A", 1000))
		e.AddItem(product("B", 2500))
	}

	once.RemoveItem("A")
	twice.RemoveItem("A")
	twice.RemoveItem("A")

	assert.Equal(t, once.Items(), twice.Items())
	assert.Equal(t, once.Snapshot().Revision, twice.Snapshot().Revision)
}

func TestEngine_ClearCartKeepsDrawerState(t *testing.T) {
	for _, open := range []bool{true, false} {
		e := NewEngine("session-1")
		e.AddItem(product("A", 1000))
		e.SetDrawerOpen(open)

		e.ClearCart()

		assert.Empty(t, e.Items())
		assert.Zero(t, e.TotalItems())
		assert.Zero(t, e.TotalPriceMinor())
		assert.Equal(t, open, e.DrawerOpen())
	}
}

func TestEngine_SetDrawerOpenIsAbsolute(t *testing.T) {
	e := NewEngine("session-1")
	var seen []bool
	e.Subscribe(func(s domain.CartSnapshot) { seen = append(seen, s.DrawerOpen) })

	e.SetDrawerOpen(true)
	e.SetDrawerOpen(true)
	e.SetDrawerOpen(false)

	assert.Equal(t, []bool{true, true, false}, seen)
	assert.False(t, e.DrawerOpen())
}

func TestEngine_TotalsAfterEveryMutation(t *testing.T) {
	e := NewEngine("session-1")
	catalog := []domain.Product{product("A", 1000), product("B", 2500), product("C", 0), product("D", 199)}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 300; i++ {
		p := catalog[rng.Intn(len(catalog))]
		switch rng.Intn(5) {
		case 0, 1:
			e.AddItem(p)
		case 2:
			e.UpdateQuantity(p.ID, rng.Intn(8)-2)
		case 3:
			e.RemoveItem(p.ID)
		case 4:
			if rng.Intn(10) == 0 {
				e.ClearCart()
			}
		}
		assertTotals(t, e)
		for _, item := range e.Items() {
			require.GreaterOrEqual(t, item.Quantity, 1)
		}
	}
}

func TestEngine_SubscribeReceivesSnapshots(t *testing.T) {
	e := NewEngine("session-1")

	var order []string
	var last domain.CartSnapshot
	e.Subscribe(func(s domain.CartSnapshot) {
		order = append(order, "first")
		last = s
	})
	e.Subscribe(func(domain.CartSnapshot) { order = append(order, "second") })

	e.AddItem(product("A", 1000))
	e.AddItem(product("A", 1000))

	assert.Equal(t, []string{"first", "second", "first", "second"}, order)
	assert.Equal(t, 2, last.TotalItems)
	assert.Equal(t, int64(2000), last.TotalPriceMinor)
	assert.Equal(t, uint64(2), last.Revision)

	// Снимок подписчика не связан с состоянием движка.
	last.Items[0].Quantity = 100
	assert.Equal(t, 2, e.Items()[0].Quantity)
}

func TestEngine_Unsubscribe(t *testing.T) {
	e := NewEngine("session-1")

	var calls int
	unsubscribe := e.Subscribe(func(domain.CartSnapshot) { calls++ })
	e.AddItem(product("A", 1000))

	unsubscribe()
	unsubscribe()
	e.AddItem(product("A", 1000))
	e.SetDrawerOpen(true)

	assert.Equal(t, 1, calls)
}

func TestEngine_SubscriberMayReadEngine(t *testing.T) {
	e := NewEngine("session-1")

	var observed int
	e.Subscribe(func(domain.CartSnapshot) {
		observed = e.TotalItems()
	})
	e.AddItems(product("A", 1000), 3)

	assert.Equal(t, 3, observed)
}

func TestEngine_PersistsItemMutations(t *testing.T) {
	store := newFakeStore()
	e := NewEngine("session-1", WithStore(store))
	ctx := context.Background()

	e.AddItem(product("A", 1000))
	e.AddItem(product("B", 2500))
	e.UpdateQuantity("A", 3)
	require.NoError(t, e.Flush(ctx))

	stored := store.stored(t, "session-1")
	assert.Equal(t, map[string]int{"A": 3, "B": 1}, quantities(stored))
	assert.Equal(t, "A", stored[0].ProductID)

	e.ClearCart()
	require.NoError(t, e.Flush(ctx))
	assert.Empty(t, store.stored(t, "session-1"))

	require.NoError(t, e.Close(ctx))
}

func TestEngine_DrawerIsNotPersisted(t *testing.T) {
	store := newFakeStore()
	e := NewEngine("session-1", WithStore(store))

	e.SetDrawerOpen(true)
	e.SetDrawerOpen(false)
	require.NoError(t, e.Flush(context.Background()))

	assert.Zero(t, store.saveCount())
}

func TestEngine_NoopIsNotPersisted(t *testing.T) {
	store := newFakeStore()
	e := NewEngine("session-1", WithStore(store))

	e.RemoveItem("missing")
	e.UpdateQuantity("missing", 2)
	require.NoError(t, e.Flush(context.Background()))

	assert.Zero(t, store.saveCount())
}

func TestEngine_PersistenceFailureKeepsState(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("disk full")

	logger, hook := test.NewNullLogger()
	e := NewEngine("session-1", WithStore(store), WithLogger(log.NewEntry(logger)))

	e.AddItem(product("A", 1000))
	e.AddItem(product("A", 1000))
	require.NoError(t, e.Flush(context.Background()))

	assert.Equal(t, map[string]int{"A": 2}, quantities(e.Items()))
	assert.Equal(t, int64(2000), e.TotalPriceMinor())
	assert.GreaterOrEqual(t, store.saveCount(), 1)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.ErrorLevel, entry.Level)
	assert.Equal(t, "failed to persist cart snapshot", entry.Message)
}

func TestEngine_CloseFlushesPendingWrite(t *testing.T) {
	store := newFakeStore()
	e := NewEngine("session-1", WithStore(store))

	e.AddItems(product("A", 1000), 2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.Close(ctx))
	require.NoError(t, e.Close(ctx))
	require.NoError(t, e.Flush(ctx))

	assert.Equal(t, map[string]int{"A": 2}, quantities(store.stored(t, "session-1")))
}

func TestEngine_MutationAfterCloseIsReported(t *testing.T) {
	store := newFakeStore()
	logger, hook := test.NewNullLogger()
	e := NewEngine("session-1", WithStore(store), WithLogger(log.NewEntry(logger)))

	e.AddItem(product("A", 1000))
	require.NoError(t, e.Close(context.Background()))
	saves := store.saveCount()

	e.AddItem(product("B", 500))

	assert.Equal(t, map[string]int{"A": 1, "B": 1}, quantities(e.Items()))
	assert.Equal(t, saves, store.saveCount())
	assert.Equal(t, map[string]int{"A": 1}, quantities(store.stored(t, "session-1")))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, log.WarnLevel, entry.Level)
	assert.Equal(t, "cart writer is closed, snapshot not persisted", entry.Message)
}

func TestEngine_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("versioned snapshot", func(t *testing.T) {
		store := newFakeStore()
		payload, err := EncodeSnapshot([]domain.CartLineItem{
			{ProductID: "A", Name: "Ring", PriceMinor: 1000, Quantity: 2},
			{ProductID: "B", Name: "Chain", PriceMinor: 2500, Quantity: 1},
		})
		require.NoError(t, err)
		store.data["session-1"] = payload

		e := NewEngine("session-1", WithStore(store))
		require.NoError(t, e.Restore(ctx))

		assert.Equal(t, map[string]int{"A": 2, "B": 1}, quantities(e.Items()))
		assert.Equal(t, int64(4500), e.TotalPriceMinor())
		assert.False(t, e.DrawerOpen())
	})

	t.Run("legacy snapshot", func(t *testing.T) {
		store := newFakeStore()
		store.data["session-1"] = []byte(`[{"productId":"A","name":"Ring","price":1000,"image":"","category":"Rings","quantity":3}]`)

		e := NewEngine("session-1", WithStore(store))
		require.NoError(t, e.Restore(ctx))

		assert.Equal(t, map[string]int{"A": 3}, quantities(e.Items()))
	})

	t.Run("missing snapshot", func(t *testing.T) {
		e := NewEngine("session-1", WithStore(newFakeStore()))
		require.NoError(t, e.Restore(ctx))
		assert.Empty(t, e.Items())
	})

	t.Run("corrupt snapshot starts empty", func(t *testing.T) {
		store := newFakeStore()
		store.data["session-1"] = []byte(`{"version":1,"items":`)

		e := NewEngine("session-1", WithStore(store))
		err := e.Restore(ctx)
		require.Error(t, err)
		assert.True(t, domain.IsSnapshotUnreadable(err))
		assert.Empty(t, e.Items())
	})

	t.Run("load error starts empty", func(t *testing.T) {
		store := newFakeStore()
		store.loadErr = errors.New("connection refused")

		e := NewEngine("session-1", WithStore(store))
		require.Error(t, e.Restore(ctx))
		assert.Empty(t, e.Items())

		e.AddItem(product("A", 1000))
		assert.Equal(t, 1, e.TotalItems())
	})

	t.Run("without store", func(t *testing.T) {
		e := NewEngine("session-1")
		require.NoError(t, e.Restore(ctx))
		require.NoError(t, e.Flush(ctx))
		require.NoError(t, e.Close(ctx))
	})
}

func TestEngine_ConcurrentCommands(t *testing.T) {
	e := NewEngine("session-1", WithStore(newFakeStore()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.AddItem(product("A", 10))
				_ = e.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 400, e.TotalItems())
	assert.Equal(t, uint64(400), e.Snapshot().Revision)
	require.NoError(t, e.Close(context.Background()))
}
