package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sitsofe/pos-terminal/config"
	"github.com/sitsofe/pos-terminal/database"
	"github.com/sitsofe/pos-terminal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(&config.Configuration{CacheDriver: "sqlite", CacheDSN: dsn}, nil)
	require.NoError(t, err)
	return db
}

func strPtr(s string) *string { return &s }

func product(id, name string, barcode *string) models.Product {
	return models.Product{
		ID:       id,
		Name:     name,
		Price:    decimal.NewFromInt(10),
		Stock:    decimal.NewFromInt(1),
		Barcode:  barcode,
		SyncedAt: time.Now(),
	}
}

func TestUpsertOverwritesByID(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newTestDB(t))

	require.NoError(t, s.UpsertAll(ctx, []models.Product{product("A", "Aspirin", nil)}))
	updated := product("A", "Aspirin 500", strPtr("111"))
	updated.Price = decimal.RequireFromString("12.50")
	require.NoError(t, s.UpsertAll(ctx, []models.Product{updated}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := s.GetByIDs(ctx, []string{"A"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Aspirin 500", got[0].Name)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("12.5")))
}

func TestClearEmptiesStore(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newTestDB(t))
	require.NoError(t, s.UpsertAll(ctx, []models.Product{product("A", "a", nil), product("B", "b", nil)}))

	require.NoError(t, s.Clear(ctx))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGetByBarcode(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newTestDB(t))
	require.NoError(t, s.UpsertAll(ctx, []models.Product{
		product("B", "Second", strPtr("6001")),
		product("A", "First", strPtr("6001")),
		product("C", "Other", strPtr("7002")),
	}))

	t.Run("trims and prefers lowest id", func(t *testing.T) {
		got, err := s.GetByBarcode(ctx, "  6001\n")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "A", got.ID)
	})

	t.Run("miss", func(t *testing.T) {
		got, err := s.GetByBarcode(ctx, "999")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("blank", func(t *testing.T) {
		got, err := s.GetByBarcode(ctx, "   ")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestGetByIDsEmptyAndUnknown(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newTestDB(t))
	require.NoError(t, s.UpsertAll(ctx, []models.Product{product("A", "a", nil)}))

	got, err := s.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.GetByIDs(ctx, []string{"A", "ZZ"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].ID)
}

func TestFetchPageOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newTestDB(t))
	require.NoError(t, s.UpsertAll(ctx, []models.Product{
		product("1", "zinc tablets", nil),
		product("2", "Amoxicillin", strPtr("ABC-123")),
		product("3", "bandage 50%", nil),
		product("4", "Cough syrup", strPtr("xyz")),
	}))

	all, err := s.FetchPage(ctx, "", 0, 10)
	require.NoError(t, err)
	names := make([]string, 0, len(all))
	for _, p := range all {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Amoxicillin", "bandage 50%", "Cough syrup", "zinc tablets"}, names)

	byName, err := s.FetchPage(ctx, "AMOX", 0, 10)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "2", byName[0].ID)

	byBarcode, err := s.FetchPage(ctx, "abc-", 0, 10)
	require.NoError(t, err)
	require.Len(t, byBarcode, 1)
	assert.Equal(t, "2", byBarcode[0].ID)

	literalPercent, err := s.FetchPage(ctx, "%", 0, 10)
	require.NoError(t, err)
	require.Len(t, literalPercent, 1)
	assert.Equal(t, "3", literalPercent[0].ID)
}

func TestPagerLoadsAllInOrder(t *testing.T) {
	ctx := context.Background()
	s := NewProductStore(newTestDB(t))

	const total = PageSize*2 + 5
	records := make([]models.Product, 0, total)
	for i := 0; i < total; i++ {
		records = append(records, product(fmt.Sprintf("P%03d", i), fmt.Sprintf("item %03d", i), nil))
	}
	require.NoError(t, s.UpsertAll(ctx, records))

	p := s.PageQuery(ctx, "")
	for i := 0; i < total; i++ {
		rec, ok, err := p.Get(ctx, i)
		require.NoError(t, err)
		require.True(t, ok, "index %d", i)
		assert.Equal(t, fmt.Sprintf("P%03d", i), rec.ID)
	}
	_, ok, err := p.Get(ctx, total)
	require.NoError(t, err)
	assert.False(t, ok)

	p.Wait()
	assert.True(t, p.Exhausted())
	assert.Len(t, p.Loaded(), total)
}

func TestPagerPrefetchesNearTail(t *testing.T) {
	ctx := context.Background()
	calls := 0
	fetch := func(_ context.Context, _ string, offset, limit int) ([]models.Product, error) {
		calls++
		if offset >= PageSize*3 {
			return nil, nil
		}
		out := make([]models.Product, limit)
		for i := range out {
			out[i].ID = fmt.Sprintf("%d", offset+i)
		}
		return out, nil
	}

	p := NewPager(ctx, "", fetch)
	_, ok, err := p.Get(ctx, 0)
	require.NoError(t, err)
	require.True(t, ok)
	p.Wait()
	assert.Len(t, p.Loaded(), PageSize)

	_, ok, err = p.Get(ctx, PageSize-PrefetchDistance)
	require.NoError(t, err)
	require.True(t, ok)
	p.Wait()
	assert.Len(t, p.Loaded(), PageSize*2)
	assert.Equal(t, 2, calls)
}

func TestPagerWaitCoversEachPrefetch(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	fetch := func(_ context.Context, _ string, offset, limit int) ([]models.Product, error) {
		if offset >= PageSize {
			<-gate
		}
		out := make([]models.Product, limit)
		for i := range out {
			out[i].ID = fmt.Sprintf("%d", offset+i)
		}
		return out, nil
	}

	p := NewPager(ctx, "", fetch)
	_, ok, err := p.Get(ctx, PageSize-PrefetchDistance)
	require.NoError(t, err)
	require.True(t, ok)

	waited := make(chan struct{})
	go func() {
		p.Wait()
		close(waited)
	}()
	assert.Never(t, func() bool {
		select {
		case <-waited:
			return true
		default:
			return false
		}
	}, 50*time.Millisecond, 5*time.Millisecond)

	close(gate)
	require.Eventually(t, func() bool {
		select {
		case <-waited:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, p.Loaded(), PageSize*2)

	// the finished prefetch must not satisfy a Wait for the next one
	_, ok, err = p.Get(ctx, PageSize*2-PrefetchDistance)
	require.NoError(t, err)
	require.True(t, ok)
	p.Wait()
	assert.Len(t, p.Loaded(), PageSize*3)
}

func TestPagerStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPager(ctx, "x", func(context.Context, string, int, int) ([]models.Product, error) {
		t.Fatal("fetch after cancel")
		return nil, nil
	})
	cancel()

	_, ok, err := p.Get(context.Background(), 0)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCustomerStoreReplaceAll(t *testing.T) {
	ctx := context.Background()
	s := NewCustomerStore(newTestDB(t))

	require.NoError(t, s.ReplaceAll(ctx, []models.Customer{{ID: "1", Name: "zed", Phone: "555"}}))
	require.NoError(t, s.ReplaceAll(ctx, []models.Customer{
		{ID: "2", Name: "bob", Phone: "0244"},
		{ID: "3", Name: "Alice", Phone: "0201"},
	}))

	got, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got[0].Name)
	assert.Equal(t, "bob", got[1].Name)
}

func TestStorageErrorWraps(t *testing.T) {
	db := newTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = NewProductStore(db).Count(context.Background())
	require.Error(t, err)
	assert.True(t, IsStorage(err))
}
