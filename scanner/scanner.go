// Package scanner turns raw strings from a barcode reader into cart additions.
package scanner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sitsofe/pos-terminal/cart"
	"github.com/sitsofe/pos-terminal/models"
	"github.com/sitsofe/pos-terminal/notify"
)

// DuplicateWindow is how long a repeat of the same code is treated as a double scan.
const DuplicateWindow = 800 * time.Millisecond

// Result of a single scan.
type Result string

const (
	ResultAdded     Result = "added"
	ResultDuplicate Result = "duplicate"
	ResultNotFound  Result = "not_found"
	ResultEmpty     Result = "empty"
)

// Lookup finds a cached product by barcode.
type Lookup interface {
	GetByBarcode(ctx context.Context, code string) (*models.Product, error)
}

// Cart receives the additions.
type Cart interface {
	Add(id string, delta int) cart.Snapshot
}

// Ingestor is the only path from the reader to the cart. A code identical to the previous
// one and arriving within DuplicateWindow of it is discarded before any lookup.
type Ingestor struct {
	lookup   Lookup
	cart     Cart
	notifier notify.Notifier
	log      *logrus.Entry
	window   time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastCode string
	lastAt   time.Time
}

func NewIngestor(lookup Lookup, c Cart, notifier notify.Notifier, log *logrus.Entry) *Ingestor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Ingestor{
		lookup:   lookup,
		cart:     c,
		notifier: notifier,
		log:      log,
		window:   DuplicateWindow,
		now:      time.Now,
	}
}

// Ingest handles one raw decoded string.
func (in *Ingestor) Ingest(ctx context.Context, raw string) (Result, *models.Product, error) {
	code := Normalize(raw)
	if code == "" {
		return ResultEmpty, nil, nil
	}
	if in.duplicate(code) {
		in.log.WithField("code", code).Debug("[SCAN] duplicate within window, ignored")
		return ResultDuplicate, nil, nil
	}

	p, err := in.lookup.GetByBarcode(ctx, code)
	if err != nil {
		in.log.WithError(err).WithField("code", code).Error("❌ [SCAN] barcode lookup failed")
		in.notifyf(notify.LevelError, "No product for barcode: %s", code)
		return ResultNotFound, nil, err
	}
	if p == nil {
		in.log.WithField("code", code).Info("[SCAN] no product for barcode")
		in.notifyf(notify.LevelWarning, "No product for barcode: %s", code)
		return ResultNotFound, nil, nil
	}

	in.cart.Add(p.ID, 1)
	in.notifyf(notify.LevelInfo, "%s (+1)", p.Name)
	return ResultAdded, p, nil
}

// Normalize strips whitespace and the CR/LF a keyboard-wedge reader appends.
func Normalize(raw string) string {
	return strings.TrimSpace(strings.TrimRight(raw, "\r\n"))
}

func (in *Ingestor) duplicate(code string) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	now := in.now()
	if code == in.lastCode && now.Sub(in.lastAt) < in.window {
		return true
	}
	in.lastCode, in.lastAt = code, now
	return false
}

func (in *Ingestor) notifyf(level notify.Level, format string, args ...interface{}) {
	if in.notifier == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch level {
	case notify.LevelError:
		in.notifier.Error(msg)
	case notify.LevelWarning:
		in.notifier.Warn(msg)
	default:
		in.notifier.Info(msg)
	}
}
