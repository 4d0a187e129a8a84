package store

import (
	"context"
	"sync"

	"github.com/sitsofe/pos-terminal/models"
)

// PageFunc loads one page of records for search.
type PageFunc func(ctx context.Context, search string, offset, limit int) ([]models.Product, error)

// Pager is a lazily loaded, finite sequence of records for one search text. Records are
// fetched PageSize at a time; once a reader gets within PrefetchDistance of the loaded
// tail the next page is fetched in the background.
type Pager struct {
	ctx    context.Context
	search string
	fetch  PageFunc

	mu        sync.RWMutex
	loaded    []models.Product
	exhausted bool
	err       error

	fetchMu sync.Mutex
	// inflight is non-nil while a background prefetch runs; guarded by mu
	inflight chan struct{}
}

func NewPager(ctx context.Context, search string, fetch PageFunc) *Pager {
	return &Pager{ctx: ctx, search: search, fetch: fetch}
}

// Search is the text this pager was created for.
func (p *Pager) Search() string { return p.search }

// Get returns the record at index, loading pages as needed. ok is false past the end.
func (p *Pager) Get(ctx context.Context, index int) (rec models.Product, ok bool, err error) {
	if index < 0 {
		return models.Product{}, false, nil
	}
	for {
		p.mu.RLock()
		n, done := len(p.loaded), p.exhausted
		p.mu.RUnlock()
		if index < n || done {
			break
		}
		if err := p.loadNext(ctx); err != nil {
			return models.Product{}, false, err
		}
	}

	p.mu.RLock()
	if index >= len(p.loaded) {
		p.mu.RUnlock()
		return models.Product{}, false, nil
	}
	rec = p.loaded[index]
	nearTail := !p.exhausted && len(p.loaded)-1-index < PrefetchDistance
	p.mu.RUnlock()

	if nearTail {
		p.prefetch()
	}
	return rec, true, nil
}

// Loaded returns a copy of what has been loaded so far.
func (p *Pager) Loaded() []models.Product {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]models.Product(nil), p.loaded...)
}

// Exhausted reports whether the last page has been loaded.
func (p *Pager) Exhausted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exhausted
}

// Err returns the last background load error, if any.
func (p *Pager) Err() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

// Wait blocks until an in-flight background prefetch finishes.
func (p *Pager) Wait() {
	p.mu.RLock()
	done := p.inflight
	p.mu.RUnlock()
	if done != nil {
		<-done
	}
}

func (p *Pager) prefetch() {
	p.mu.Lock()
	if p.inflight != nil {
		p.mu.Unlock()
		return
	}
	done := make(chan struct{})
	p.inflight = done
	p.mu.Unlock()

	go func() {
		err := p.loadNext(p.ctx)
		p.mu.Lock()
		if err != nil {
			p.err = err
		}
		p.inflight = nil
		p.mu.Unlock()
		close(done)
	}()
}

func (p *Pager) loadNext(ctx context.Context) error {
	p.fetchMu.Lock()
	defer p.fetchMu.Unlock()

	if err := p.ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	offset, done := len(p.loaded), p.exhausted
	p.mu.RUnlock()
	if done {
		return nil
	}

	page, err := p.fetch(ctx, p.search, offset, PageSize)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// another loader may have appended while we were fetching
	if len(p.loaded) != offset {
		return nil
	}
	p.loaded = append(p.loaded, page...)
	if len(page) < PageSize {
		p.exhausted = true
	}
	return nil
}
