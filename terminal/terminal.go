// Package terminal wires the catalog cache, cart and checkout together and owns the one
// mutable session cell.
package terminal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sitsofe/pos-terminal/auth"
	"github.com/sitsofe/pos-terminal/cart"
	"github.com/sitsofe/pos-terminal/catalog"
	"github.com/sitsofe/pos-terminal/checkout"
	"github.com/sitsofe/pos-terminal/config"
	"github.com/sitsofe/pos-terminal/gateway"
	"github.com/sitsofe/pos-terminal/logger"
	"github.com/sitsofe/pos-terminal/notify"
	"github.com/sitsofe/pos-terminal/scanner"
	"github.com/sitsofe/pos-terminal/store"
)

var ErrRoleNotAllowed = errors.New("role is not allowed to operate the till")

// Terminal is the composition root. Business components never write the session; only
// Login and Logout do.
type Terminal struct {
	Config *config.Configuration

	Session   *auth.Holder
	Gateway   *gateway.Client
	Products  *store.ProductStore
	Customers *store.CustomerStore
	Sync      *catalog.Synchronizer
	Cart      *cart.Aggregator
	Scanner   *scanner.Ingestor
	Checkout  *checkout.Reconciler
	Directory *checkout.CustomerDirectory
	Notices   *notify.Center
	Refresher *catalog.RefreshWorker

	// scope of the last installed session; survives Logout because the cache does
	scopeMu   sync.Mutex
	lastScope string

	log    *logrus.Entry
	bg     context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds every component on top of db.
func New(cfg *config.Configuration, db *gorm.DB) (*Terminal, error) {
	holder := auth.NewHolder()
	client, err := gateway.NewClient(cfg.APIBaseURL, cfg.APITimeout, holder, logger.Component("gateway"))
	if err != nil {
		return nil, err
	}

	notices := notify.NewCenter()
	products := store.NewProductStore(db)
	customers := store.NewCustomerStore(db)
	syncer := catalog.NewSynchronizer(client, products, notices, logger.Component("sync"))
	syncer.SetScope(func() string {
		s, _ := holder.Current()
		return s.Scope()
	})
	agg := cart.NewAggregator(products)

	bg, cancel := context.WithCancel(context.Background())
	t := &Terminal{
		Config:    cfg,
		Session:   holder,
		Gateway:   client,
		Products:  products,
		Customers: customers,
		Sync:      syncer,
		Cart:      agg,
		Scanner:   scanner.NewIngestor(products, agg, notices, logger.Component("scanner")),
		Checkout:  checkout.NewReconciler(agg, client, notices, cfg.PaymentMethod, logger.Component("checkout")),
		Directory: checkout.NewCustomerDirectory(client, customers, notices, logger.Component("customers")),
		Notices:   notices,
		Refresher: catalog.NewRefreshWorker(syncer, cfg.RefreshInterval, logger.Component("refresh")),
		log:       logger.Component("terminal"),
		bg:        bg,
		cancel:    cancel,
	}
	return t, nil
}

// Start installs the boot session from config, if any, and runs background work until
// Close. The catalog is seeded when the cache is empty.
func (t *Terminal) Start() error {
	installed, err := t.InstallBootSession()
	if err != nil {
		return err
	}
	if installed {
		t.goBackground(func(ctx context.Context) { _, _ = t.Sync.SyncIfEmpty(ctx) })
	}

	t.goBackground(func(ctx context.Context) { t.Refresher.Start(ctx) })
	return nil
}

// InstallBootSession installs the session configured through SESSION_TOKEN without
// starting any background work. It reports whether a session was installed.
func (t *Terminal) InstallBootSession() (bool, error) {
	if t.Config.SessionToken == "" {
		return false, nil
	}
	s, err := auth.FromToken(t.Config.SessionToken, auth.Session{
		TenantID:     t.Config.TenantID,
		SubsidiaryID: t.Config.SubsidiaryID,
	})
	if err != nil {
		return false, err
	}
	// operator-provisioned tokens may carry no role claim
	if s.Role != "" && !s.Allowed() {
		return false, ErrRoleNotAllowed
	}
	t.Session.Set(s)
	t.claimScope(s.Scope())
	t.log.WithField("scope", s.Scope()).Info("🔐 [SESSION] boot session installed")
	return true, nil
}

// Login installs s as the current session. Switching to a different tenant or subsidiary
// than the last installed session, logged out or not, empties the cart and replaces the
// catalog; a first login only seeds an empty cache.
func (t *Terminal) Login(s auth.Session) error {
	if !s.Allowed() {
		return ErrRoleNotAllowed
	}
	t.Session.Set(s)
	prev := t.claimScope(s.Scope())

	entry := t.log.WithFields(logrus.Fields{"scope": s.Scope(), "role": s.Role})
	switch {
	case prev != "" && prev != s.Scope():
		entry.WithField("previous", prev).Info("🔐 [SESSION] scope changed, resetting cart and catalog")
		t.Cart.Clear()
		t.goBackground(func(ctx context.Context) { _, _ = t.Sync.ForceRefresh(ctx) })
	default:
		entry.Info("🔐 [SESSION] session installed")
		t.goBackground(func(ctx context.Context) { _, _ = t.Sync.SyncIfEmpty(ctx) })
	}
	return nil
}

// claimScope records scope as the one the cache serves and returns the previous one.
func (t *Terminal) claimScope(scope string) string {
	t.scopeMu.Lock()
	defer t.scopeMu.Unlock()
	prev := t.lastScope
	t.lastScope = scope
	return prev
}

// Logout drops the session and the cart. The catalog cache stays for offline browsing.
func (t *Terminal) Logout() {
	t.Session.Clear()
	t.Cart.Clear()
	t.log.Info("🔐 [SESSION] logged out")
}

// NewSearcher starts a search-text debouncer bound to ctx.
func (t *Terminal) NewSearcher(ctx context.Context) *catalog.Searcher {
	return catalog.NewSearcher(ctx, t.Products, catalog.SearchDebounce)
}

// Close stops background work and waits for it.
func (t *Terminal) Close() {
	t.cancel()
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.log.Warn("⚠️ [TERMINAL] background work still running at shutdown")
	}
}

func (t *Terminal) goBackground(fn func(ctx context.Context)) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn(t.bg)
	}()
}
