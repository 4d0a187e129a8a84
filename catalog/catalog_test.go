package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"

	"github.com/sitsofe/pos-terminal/config"
	"github.com/sitsofe/pos-terminal/database"
	"github.com/sitsofe/pos-terminal/gateway"
	"github.com/sitsofe/pos-terminal/models"
	"github.com/sitsofe/pos-terminal/notify"
	"github.com/sitsofe/pos-terminal/store"
)

type fakeSource struct {
	mu       sync.Mutex
	products []gateway.RemoteProduct
	err      error
	gate     chan struct{}
	calls    atomic.Int32

	// when set, the catalog served is picked by the scope at request time
	scope    func() string
	catalogs map[string][]gateway.RemoteProduct
}

func (f *fakeSource) FetchAllProducts(ctx context.Context) ([]gateway.RemoteProduct, error) {
	f.calls.Add(1)
	var scope string
	if f.scope != nil {
		scope = f.scope()
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.scope != nil {
		return append([]gateway.RemoteProduct(nil), f.catalogs[scope]...), nil
	}
	return append([]gateway.RemoteProduct(nil), f.products...), nil
}

func (f *fakeSource) set(products []gateway.RemoteProduct, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products, f.err = products, err
}

func remote(id string, price int64) gateway.RemoteProduct {
	return gateway.RemoteProduct{ID: id, Name: "Product " + id, Price: decimal.NewFromInt(price)}
}

func newStore(t *testing.T) *store.ProductStore {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.Open(&config.Configuration{CacheDriver: "sqlite", CacheDSN: dsn}, nil)
	require.NoError(t, err)
	return store.NewProductStore(db)
}

func TestSyncIfEmptySeedsOnce(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{products: []gateway.RemoteProduct{remote("P1", 5), remote("P2", 7), remote("P3", 9)}}
	st := newStore(t)
	s := NewSynchronizer(src, st, &notify.Recorder{}, nil)

	res, err := s.SyncIfEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, res.Pulled)
	assert.EqualValues(t, 3, res.Count)

	src.set([]gateway.RemoteProduct{remote("X", 1)}, nil)
	for i := 0; i < 3; i++ {
		res, err = s.SyncIfEmpty(ctx)
		require.NoError(t, err)
		assert.False(t, res.Pulled)
	}

	assert.EqualValues(t, 1, src.calls.Load())
	got, err := st.GetByIDs(ctx, []string{"P1", "P2", "P3", "X"})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestConcurrentSyncPullsOnce(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{
		products: []gateway.RemoteProduct{remote("P1", 5)},
		gate:     make(chan struct{}),
	}
	s := NewSynchronizer(src, newStore(t), nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(force bool) {
			defer wg.Done()
			_, err := func() (SyncResult, error) {
				if force {
					return s.ForceRefresh(ctx)
				}
				return s.SyncIfEmpty(ctx)
			}()
			assert.NoError(t, err)
		}(i%2 == 0)
	}

	require.Eventually(t, func() bool { return s.Refreshing().Get() }, time.Second, 5*time.Millisecond)
	// give the other callers time to join the flight
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	assert.EqualValues(t, 1, src.calls.Load())
	assert.False(t, s.Refreshing().Get())
}

func TestForceRefreshAfterScopeChangePullsAgain(t *testing.T) {
	ctx := context.Background()
	var scope atomic.Value
	scope.Store("t1/s1")
	current := func() string { return scope.Load().(string) }

	src := &fakeSource{
		gate:  make(chan struct{}),
		scope: current,
		catalogs: map[string][]gateway.RemoteProduct{
			"t1/s1": {remote("S1-P1", 5)},
			"t1/s2": {remote("S2-P1", 6), remote("S2-P2", 7)},
		},
	}
	st := newStore(t)
	s := NewSynchronizer(src, st, nil, nil)
	s.SetScope(current)

	seeded := make(chan SyncResult, 1)
	go func() {
		res, err := s.SyncIfEmpty(ctx)
		assert.NoError(t, err)
		seeded <- res
	}()
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// the session moves on while the first pull is still fetching
	scope.Store("t1/s2")
	refreshed := make(chan SyncResult, 1)
	go func() {
		res, err := s.ForceRefresh(ctx)
		assert.NoError(t, err)
		refreshed <- res
	}()
	time.Sleep(50 * time.Millisecond)
	close(src.gate)

	assert.Equal(t, "t1/s1", (<-seeded).Scope)
	res := <-refreshed
	assert.Equal(t, "t1/s2", res.Scope)
	assert.True(t, res.Pulled)
	assert.EqualValues(t, 2, src.calls.Load())

	got, err := st.GetByIDs(ctx, []string{"S1-P1", "S2-P1", "S2-P2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, p := range got {
		assert.NotEqual(t, "S1-P1", p.ID)
	}
}

// stallingStore reports an empty cache once, then holds the next count until released.
type stallingStore struct {
	Store
	counts  atomic.Int32
	release chan struct{}
}

func (c *stallingStore) Count(ctx context.Context) (int64, error) {
	switch c.counts.Add(1) {
	case 1:
		return 0, nil
	case 2:
		<-c.release
	}
	return c.Store.Count(ctx)
}

func TestForceRefreshJoiningSkippedSyncPulls(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	require.NoError(t, st.UpsertAll(ctx, []models.Product{{ID: "OLD", Name: "Old"}}))

	src := &fakeSource{products: []gateway.RemoteProduct{remote("P1", 5)}}
	stalling := &stallingStore{Store: st, release: make(chan struct{})}
	s := NewSynchronizer(src, stalling, nil, nil)

	synced := make(chan SyncResult, 1)
	go func() {
		res, err := s.SyncIfEmpty(ctx)
		assert.NoError(t, err)
		synced <- res
	}()
	require.Eventually(t, func() bool { return stalling.counts.Load() == 2 }, time.Second, 5*time.Millisecond)

	refreshed := make(chan SyncResult, 1)
	go func() {
		res, err := s.ForceRefresh(ctx)
		assert.NoError(t, err)
		refreshed <- res
	}()
	time.Sleep(50 * time.Millisecond)
	close(stalling.release)

	assert.False(t, (<-synced).Pulled)
	res := <-refreshed
	assert.True(t, res.Pulled)
	assert.EqualValues(t, 1, src.calls.Load())

	got, err := st.GetByIDs(ctx, []string{"OLD", "P1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "P1", got[0].ID)
}

func TestForceRefreshReplacesWholeSet(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{products: []gateway.RemoteProduct{remote("OLD", 3), remote("P1", 5)}}
	st := newStore(t)
	s := NewSynchronizer(src, st, nil, nil)

	_, err := s.ForceRefresh(ctx)
	require.NoError(t, err)

	src.set([]gateway.RemoteProduct{remote("P1", 15), remote("P2", 7)}, nil)
	res, err := s.ForceRefresh(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Count)

	got, err := st.GetByIDs(ctx, []string{"OLD", "P1", "P2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, p := range got {
		assert.NotEqual(t, "OLD", p.ID)
		if p.ID == "P1" {
			assert.True(t, p.Price.Equal(decimal.NewFromInt(15)))
		}
	}
}

func TestPullSkipsInvalidAndDuplicateRecords(t *testing.T) {
	src := &fakeSource{products: []gateway.RemoteProduct{
		remote("P1", 5), remote("P1", 6), remote(" ", 1), remote("NEG", -1),
	}}
	s := NewSynchronizer(src, newStore(t), nil, nil)

	res, err := s.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Count)
	assert.Equal(t, 3, res.Skipped)
}

func TestFailedRefreshKeepsCache(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{products: []gateway.RemoteProduct{remote("P1", 5), remote("P2", 7)}}
	st := newStore(t)
	rec := &notify.Recorder{}
	s := NewSynchronizer(src, st, rec, nil)

	_, err := s.SyncIfEmpty(ctx)
	require.NoError(t, err)

	src.set(nil, &gateway.NetworkError{Op: "fetch products", Err: errors.New("timeout")})
	_, err = s.ForceRefresh(ctx)
	require.Error(t, err)
	assert.True(t, gateway.IsNetwork(err))

	n, err := st.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, []string{MsgShowingCached}, rec.Messages())
	assert.False(t, s.Refreshing().Get())
}

func TestFailedSeedOnEmptyCacheNotifies(t *testing.T) {
	src := &fakeSource{err: gateway.ErrNoSession}
	rec := &notify.Recorder{}
	s := NewSynchronizer(src, newStore(t), rec, nil)

	_, err := s.SyncIfEmpty(context.Background())
	assert.ErrorIs(t, err, gateway.ErrNoSession)
	assert.Equal(t, []string{MsgLoadFailed}, rec.Messages())
}

type countingStore struct {
	Store
	countErr error
}

func (c countingStore) Count(ctx context.Context) (int64, error) {
	if c.countErr != nil {
		return 0, c.countErr
	}
	return c.Store.Count(ctx)
}

func TestCountFailureTriggersSync(t *testing.T) {
	src := &fakeSource{products: []gateway.RemoteProduct{remote("P1", 5)}}
	st := countingStore{Store: newStore(t), countErr: &store.StorageError{Op: "count", Err: errors.New("disk")}}
	s := NewSynchronizer(src, st, nil, nil)

	res, err := s.SyncIfEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Pulled)
	assert.EqualValues(t, 1, src.calls.Load())
}

type recordingQuerier struct {
	mu       sync.Mutex
	searches []string
}

func (q *recordingQuerier) PageQuery(ctx context.Context, search string) *store.Pager {
	q.mu.Lock()
	q.searches = append(q.searches, search)
	q.mu.Unlock()
	return store.NewPager(ctx, search, func(context.Context, string, int, int) ([]models.Product, error) {
		return nil, nil
	})
}

func (q *recordingQuerier) Searches() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.searches...)
}

func TestSearcherDebouncesAndSupersedes(t *testing.T) {
	ctx := context.Background()
	q := &recordingQuerier{}
	s := NewSearcher(ctx, q, 30*time.Millisecond)
	defer s.Close()

	first := s.Current()
	assert.Equal(t, "", first.Search())

	s.SetText("p")
	s.SetText("pa")
	s.SetText("par ")

	require.Eventually(t, func() bool { return s.Current().Search() == "par" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"", "par"}, q.Searches())

	_, _, err := first.Get(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)

	// same text again does not restart the query
	s.SetText("par")
	time.Sleep(80 * time.Millisecond)
	assert.Len(t, q.Searches(), 2)
}

type fakeRefresher struct{ calls atomic.Int32 }

func (f *fakeRefresher) ForceRefresh(context.Context) (SyncResult, error) {
	if f.calls.Add(1) == 1 {
		panic("boom")
	}
	return SyncResult{Pulled: true}, nil
}

func TestRefreshWorkerTicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeRefresher{}
	done := make(chan struct{})
	go func() {
		NewRefreshWorker(f, 10*time.Millisecond, nil).Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return f.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWriteXLSX(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	src := &fakeSource{}
	var list []gateway.RemoteProduct
	for i := 0; i < store.PageSize+3; i++ {
		list = append(list, remote(fmt.Sprintf("P%02d", i), int64(i)))
	}
	src.set(list, nil)
	_, err := NewSynchronizer(src, st, nil, nil).ForceRefresh(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := WriteXLSX(ctx, st, &buf)
	require.NoError(t, err)
	assert.Equal(t, store.PageSize+3, n)

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	rows := f.Sheets[0].Rows
	require.Len(t, rows, store.PageSize+4)
	assert.Equal(t, "ID", rows[0].Cells[0].Value)
	assert.Equal(t, "P00", rows[1].Cells[0].Value)
	assert.Equal(t, "0.00", rows[1].Cells[2].Value)
}
