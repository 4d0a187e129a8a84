package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sitsofe/pos-terminal/observable"
	"github.com/sitsofe/pos-terminal/store"
)

// SearchDebounce is how long the text must stay unchanged before a new query starts.
const SearchDebounce = 200 * time.Millisecond

// PageQuerier starts a paged query for a search text.
type PageQuerier interface {
	PageQuery(ctx context.Context, search string) *store.Pager
}

// Searcher turns a stream of search-text edits into one live Pager. The latest text wins:
// when a new query starts, the pager of the previous one is cancelled.
type Searcher struct {
	query PageQuerier
	delay time.Duration
	root  context.Context

	mu      sync.Mutex
	gen     uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	current *observable.Value[*store.Pager]
}

// NewSearcher starts with an unfiltered query. Every pager it creates is bound to ctx.
func NewSearcher(ctx context.Context, query PageQuerier, delay time.Duration) *Searcher {
	if delay <= 0 {
		delay = SearchDebounce
	}
	pctx, cancel := context.WithCancel(ctx)
	return &Searcher{
		query:   query,
		delay:   delay,
		root:    ctx,
		cancel:  cancel,
		current: observable.NewValue(query.PageQuery(pctx, "")),
	}
}

// SetText records a new search text; the query only starts once the text has been
// stable for the debounce delay.
func (s *Searcher) SetText(text string) {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() { s.apply(gen, text) })
}

// Current returns the pager for the most recently applied search text.
func (s *Searcher) Current() *store.Pager { return s.current.Get() }

// Pagers publishes each new pager as it replaces the previous one.
func (s *Searcher) Pagers() *observable.Value[*store.Pager] { return s.current }

// Reset restarts the current search from offset 0, e.g. after the catalog was replaced.
func (s *Searcher) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restart(s.current.Get().Search())
}

// Close stops any pending query and cancels the live pager.
func (s *Searcher) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()
}

func (s *Searcher) apply(gen uint64, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	if text == s.current.Get().Search() {
		return
	}
	s.restart(text)
}

func (s *Searcher) restart(text string) {
	s.cancel()
	pctx, cancel := context.WithCancel(s.root)
	s.cancel = cancel
	s.current.Set(s.query.PageQuery(pctx, text))
}
