package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/sitsofe/pos-terminal/gateway"
	"github.com/sitsofe/pos-terminal/models"
	"github.com/sitsofe/pos-terminal/notify"
	"github.com/sitsofe/pos-terminal/observable"
)

const (
	pullKey     = "pull"
	pullTimeout = 2 * time.Minute

	MsgShowingCached = "Showing cached data"
	MsgLoadFailed    = "Failed to load products"
)

// ProductSource is the remote side of a pull.
type ProductSource interface {
	FetchAllProducts(ctx context.Context) ([]gateway.RemoteProduct, error)
}

// Store is the part of the local cache a pull writes to.
type Store interface {
	Count(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
	UpsertAll(ctx context.Context, records []models.Product) error
}

// SyncResult describes what a sync call did.
type SyncResult struct {
	Pulled  bool  `json:"pulled"`
	Count   int64 `json:"count"`
	Skipped int   `json:"skipped"`
	// Scope is the session scope the pull ran under.
	Scope string `json:"scope,omitempty"`
}

// Synchronizer decides when to pull from the backend into the local cache. At most one
// pull runs at a time per Synchronizer; concurrent callers share its outcome.
type Synchronizer struct {
	source   ProductSource
	store    Store
	notifier notify.Notifier
	log      *logrus.Entry

	flight     singleflight.Group
	refreshing *observable.Value[bool]
	scope      func() string
	now        func() time.Time
}

func NewSynchronizer(source ProductSource, store Store, notifier notify.Notifier, log *logrus.Entry) *Synchronizer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Synchronizer{
		source:     source,
		store:      store,
		notifier:   notifier,
		log:        log,
		refreshing: observable.NewValue(false),
		now:        time.Now,
	}
}

// SetScope installs the function reporting the scope of the current session. A caller
// that joined a pull started under another scope pulls again once it ends.
func (s *Synchronizer) SetScope(fn func() string) { s.scope = fn }

func (s *Synchronizer) currentScope() string {
	if s.scope == nil {
		return ""
	}
	return s.scope()
}

// Refreshing is true while a pull is in flight.
func (s *Synchronizer) Refreshing() *observable.Value[bool] { return s.refreshing }

// Count returns the number of cached records, treating a failed read as zero.
func (s *Synchronizer) Count(ctx context.Context) int64 {
	n, err := s.store.Count(ctx)
	if err != nil {
		s.log.WithError(err).Warn("⚠️ [SYNC] count failed, assuming empty cache")
		return 0
	}
	return n
}

// SyncIfEmpty pulls the catalog only when the cache holds no records.
func (s *Synchronizer) SyncIfEmpty(ctx context.Context) (SyncResult, error) {
	if n := s.Count(ctx); n > 0 {
		s.log.WithField("count", n).Debug("[SYNC] products already cached, skipping initial sync")
		return SyncResult{Count: n}, nil
	}
	return s.run(ctx, false)
}

// ForceRefresh pulls the catalog regardless of what is cached.
func (s *Synchronizer) ForceRefresh(ctx context.Context) (SyncResult, error) {
	return s.run(ctx, true)
}

func (s *Synchronizer) run(ctx context.Context, force bool) (SyncResult, error) {
	want := s.currentScope()
	res, led, err := s.join(ctx, force)
	if led || ctx.Err() != nil {
		return res, err
	}
	switch {
	case res.Scope != want:
		s.log.WithFields(logrus.Fields{"joined": res.Scope, "scope": want}).
			Info("🔄 [SYNC] joined a pull for another scope, pulling again")
	case force && err == nil && !res.Pulled:
		s.log.Debug("[SYNC] joined a pull that did not fetch, pulling again")
	default:
		return res, err
	}
	res, _, err = s.join(ctx, true)
	return res, err
}

// join starts the shared pull or waits on the one in flight. led reports whether this
// caller's function ran.
func (s *Synchronizer) join(ctx context.Context, force bool) (SyncResult, bool, error) {
	led := false
	ch := s.flight.DoChan(pullKey, func() (interface{}, error) {
		led = true
		// the pull outlives any single caller; it is shared
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pullTimeout)
		defer cancel()

		scope := s.currentScope()
		if !force {
			// a pull that finished just before this flight started already seeded the cache
			if n := s.Count(pctx); n > 0 {
				return SyncResult{Count: n, Scope: scope}, nil
			}
		}
		res, err := s.pullAndReplace(pctx)
		res.Scope = scope
		return res, err
	})

	select {
	case <-ctx.Done():
		return SyncResult{}, false, ctx.Err()
	case res := <-ch:
		out, _ := res.Val.(SyncResult)
		return out, led, res.Err
	}
}

// pullAndReplace fetches the full remote list, normalizes it, then clears the cache and
// inserts the new set. A fetch failure leaves the cache untouched.
func (s *Synchronizer) pullAndReplace(ctx context.Context) (SyncResult, error) {
	s.refreshing.Set(true)
	defer s.refreshing.Set(false)

	started := s.now()
	remote, err := s.source.FetchAllProducts(ctx)
	if err != nil {
		s.fail(ctx, "fetch", err)
		return SyncResult{}, err
	}

	syncedAt := s.now()
	records := make([]models.Product, 0, len(remote))
	seen := make(map[string]struct{}, len(remote))
	skipped := 0
	for _, rp := range remote {
		if !rp.Valid() {
			skipped++
			continue
		}
		p := rp.ToProduct(syncedAt)
		if _, dup := seen[p.ID]; dup {
			skipped++
			continue
		}
		seen[p.ID] = struct{}{}
		records = append(records, p)
	}

	if err := s.store.Clear(ctx); err != nil {
		s.fail(ctx, "clear", err)
		return SyncResult{}, err
	}
	if err := s.store.UpsertAll(ctx, records); err != nil {
		s.fail(ctx, "upsert", err)
		return SyncResult{}, err
	}

	s.log.WithFields(logrus.Fields{
		"count":    len(records),
		"skipped":  skipped,
		"duration": s.now().Sub(started).String(),
	}).Info("✅ [SYNC] catalog replaced")
	return SyncResult{Pulled: true, Count: int64(len(records)), Skipped: skipped}, nil
}

func (s *Synchronizer) fail(ctx context.Context, stage string, err error) {
	entry := s.log.WithError(err).WithField("stage", stage)
	if errors.Is(err, gateway.ErrNoSession) {
		entry.Warn("⚠️ [SYNC] no session, pull skipped")
	} else {
		entry.Error("❌ [SYNC] failed to sync products")
	}
	if s.notifier == nil {
		return
	}
	if s.Count(ctx) > 0 {
		s.notifier.Warn(MsgShowingCached)
	} else {
		s.notifier.Error(MsgLoadFailed)
	}
}
