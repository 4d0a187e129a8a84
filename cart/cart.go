// Package cart holds the active shopping session: product ids and quantities only.
// Prices and names are always looked up from the catalog cache when a line is shown or
// sold, so a catalog refresh can never leave the cart holding stale prices.
package cart

import (
	"context"
	"strings"
	"sync"

	"github.com/sitsofe/pos-terminal/models"
	"github.com/sitsofe/pos-terminal/observable"
)

// Resolver looks products up by id.
type Resolver interface {
	GetByIDs(ctx context.Context, ids []string) ([]models.Product, error)
}

// Entry is one cart line before it is priced.
type Entry struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Snapshot is an immutable view of the cart. Every mutation publishes a new Snapshot;
// an existing one is never modified.
type Snapshot struct {
	quantities map[string]int
	order      []string
	count      int
}

// Quantity returns the quantity of id, or 0 when it is not in the cart.
func (s Snapshot) Quantity(id string) int { return s.quantities[id] }

// Len is the number of distinct products.
func (s Snapshot) Len() int { return len(s.order) }

// Count is the sum of every quantity.
func (s Snapshot) Count() int { return s.count }

// Empty reports whether the cart has no lines.
func (s Snapshot) Empty() bool { return len(s.order) == 0 }

// IDs returns product ids in the order they were first added.
func (s Snapshot) IDs() []string { return append([]string(nil), s.order...) }

// Entries returns the lines in the order they were first added.
func (s Snapshot) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, Entry{ProductID: id, Quantity: s.quantities[id]})
	}
	return out
}

// Quantities returns a copy of the id to quantity mapping.
func (s Snapshot) Quantities() map[string]int {
	out := make(map[string]int, len(s.quantities))
	for id, q := range s.quantities {
		out[id] = q
	}
	return out
}

// Aggregator is the observable mapping of product id to quantity. Mutations are
// synchronous and never block on I/O.
type Aggregator struct {
	resolver Resolver

	mu    sync.Mutex
	state *observable.Value[Snapshot]
	total *observable.Value[int]
}

func NewAggregator(resolver Resolver) *Aggregator {
	return &Aggregator{
		resolver: resolver,
		state:    observable.NewValue(Snapshot{quantities: map[string]int{}}),
		total:    observable.NewValue(0),
	}
}

// Add changes the quantity of id by delta. A resulting quantity of zero or less removes
// the line.
func (a *Aggregator) Add(id string, delta int) Snapshot {
	id = strings.TrimSpace(id)
	if id == "" || delta == 0 {
		return a.Snapshot()
	}
	return a.mutate(func(prev Snapshot) Snapshot {
		next := Snapshot{
			quantities: make(map[string]int, len(prev.quantities)+1),
			order:      make([]string, 0, len(prev.order)+1),
		}
		q := prev.quantities[id] + delta
		for _, existing := range prev.order {
			if existing == id && q <= 0 {
				continue
			}
			next.order = append(next.order, existing)
			next.quantities[existing] = prev.quantities[existing]
		}
		if q > 0 {
			if _, had := prev.quantities[id]; !had {
				next.order = append(next.order, id)
			}
			next.quantities[id] = q
		}
		for _, n := range next.quantities {
			next.count += n
		}
		return next
	})
}

// Remove takes one unit of id out of the cart.
func (a *Aggregator) Remove(id string) Snapshot { return a.Add(id, -1) }

// Clear empties the cart.
func (a *Aggregator) Clear() {
	a.mutate(func(Snapshot) Snapshot {
		return Snapshot{quantities: map[string]int{}}
	})
}

// Snapshot returns the current cart.
func (a *Aggregator) Snapshot() Snapshot { return a.state.Get() }

// TotalCount is the sum of all quantities.
func (a *Aggregator) TotalCount() int { return a.total.Get() }

// Changes publishes every new snapshot.
func (a *Aggregator) Changes() *observable.Value[Snapshot] { return a.state }

// Totals publishes the running total count.
func (a *Aggregator) Totals() *observable.Value[int] { return a.total }

// Resolve looks the given ids up in the catalog cache.
func (a *Aggregator) Resolve(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	return a.resolver.GetByIDs(ctx, ids)
}

// Lines prices snap against the catalog cache, in cart order. Ids that no longer resolve
// are returned in dropped.
func (a *Aggregator) Lines(ctx context.Context, snap Snapshot) (lines []models.CartLine, dropped []string, err error) {
	products, err := a.Resolve(ctx, snap.order)
	if err != nil {
		return nil, nil, err
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	lines = make([]models.CartLine, 0, len(snap.order))
	for _, id := range snap.order {
		p, ok := byID[id]
		if !ok {
			dropped = append(dropped, id)
			continue
		}
		lines = append(lines, models.CartLine{Product: p, Quantity: snap.quantities[id]})
	}
	return lines, dropped, nil
}

func (a *Aggregator) mutate(fn func(Snapshot) Snapshot) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := a.state.Update(fn)
	a.total.Set(next.count)
	return next
}
