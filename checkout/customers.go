package checkout

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/sitsofe/pos-terminal/gateway"
	"github.com/sitsofe/pos-terminal/models"
	"github.com/sitsofe/pos-terminal/notify"
	"github.com/sitsofe/pos-terminal/observable"
)

const (
	MsgShowingCachedCustomers = "Showing cached customers"
	MsgCustomersFailed        = "Failed to load customers"

	phoneSuffixLen = 4
)

// CustomerSource is the remote customer list.
type CustomerSource interface {
	FetchCustomers(ctx context.Context) ([]gateway.RemoteCustomer, error)
}

// CustomerCache is the local copy of the customer list.
type CustomerCache interface {
	ReplaceAll(ctx context.Context, customers []models.Customer) error
	GetAll(ctx context.Context) ([]models.Customer, error)
}

// CustomerDirectory lists the customers a sale can be attributed to. The cached list is
// served first; a successful remote fetch then replaces it.
type CustomerDirectory struct {
	source   CustomerSource
	cache    CustomerCache
	notifier notify.Notifier
	log      *logrus.Entry

	flight singleflight.Group
	list   *observable.Value[[]models.Customer]
}

func NewCustomerDirectory(source CustomerSource, cache CustomerCache, notifier notify.Notifier, log *logrus.Entry) *CustomerDirectory {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CustomerDirectory{
		source:   source,
		cache:    cache,
		notifier: notifier,
		log:      log,
		list:     observable.NewValue[[]models.Customer](nil),
	}
}

// Customers publishes the list each time it changes.
func (d *CustomerDirectory) Customers() *observable.Value[[]models.Customer] { return d.list }

// Load refreshes the directory. Unless force is set, a non-empty cache is published
// before the remote fetch starts. A failed fetch keeps whatever was cached.
func (d *CustomerDirectory) Load(ctx context.Context, force bool) ([]models.Customer, error) {
	v, err, _ := d.flight.Do("load", func() (interface{}, error) {
		cached, cerr := d.cache.GetAll(ctx)
		if cerr != nil {
			d.log.WithError(cerr).Warn("⚠️ [CUSTOMERS] cache read failed")
			cached = nil
		}
		if len(cached) > 0 && !force {
			d.list.Set(cached)
		}

		remote, err := d.source.FetchCustomers(ctx)
		if err != nil {
			d.log.WithError(err).Error("❌ [CUSTOMERS] failed to load customers")
			if len(cached) == 0 {
				d.notifyError(MsgCustomersFailed)
			} else {
				d.list.Set(cached)
				d.notifyWarn(MsgShowingCachedCustomers)
			}
			return cached, err
		}

		fresh := make([]models.Customer, 0, len(remote))
		for _, rc := range remote {
			c := rc.ToCustomer()
			if c.ID == "" {
				continue
			}
			fresh = append(fresh, c)
		}
		d.list.Set(fresh)
		if err := d.cache.ReplaceAll(ctx, fresh); err != nil {
			d.log.WithError(err).Warn("⚠️ [CUSTOMERS] could not cache customers")
		}
		return fresh, nil
	})
	list, _ := v.([]models.Customer)
	return list, err
}

// Find returns the listed customer with id.
func (d *CustomerDirectory) Find(id string) (models.Customer, bool) {
	for _, c := range d.list.Get() {
		if c.ID == id {
			return c, true
		}
	}
	return models.Customer{}, false
}

// Search keeps the digits of query, at most four of them, and returns the customers whose
// last four phone digits contain them. A query without digits returns everyone.
func (d *CustomerDirectory) Search(query string) []models.Customer {
	return FilterByPhoneSuffix(d.list.Get(), query)
}

// NormalizeQuery keeps the first four digits of query.
func NormalizeQuery(query string) string {
	var b strings.Builder
	for _, r := range query {
		if b.Len() == phoneSuffixLen {
			break
		}
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func FilterByPhoneSuffix(customers []models.Customer, query string) []models.Customer {
	q := NormalizeQuery(query)
	if q == "" {
		return append([]models.Customer(nil), customers...)
	}
	var out []models.Customer
	for _, c := range customers {
		phone := strings.TrimSpace(c.Phone)
		if len(phone) > phoneSuffixLen {
			phone = phone[len(phone)-phoneSuffixLen:]
		}
		if strings.Contains(phone, q) {
			out = append(out, c)
		}
	}
	return out
}

func (d *CustomerDirectory) notifyError(msg string) {
	if d.notifier != nil {
		d.notifier.Error(msg)
	}
}

func (d *CustomerDirectory) notifyWarn(msg string) {
	if d.notifier != nil {
		d.notifier.Warn(msg)
	}
}
