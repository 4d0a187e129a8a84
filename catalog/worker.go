package catalog

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Refresher is what the refresh worker calls on every tick.
type Refresher interface {
	ForceRefresh(ctx context.Context) (SyncResult, error)
}

// RefreshWorker re-pulls the catalog periodically.
type RefreshWorker struct {
	refresher Refresher
	interval  time.Duration
	log       *logrus.Entry
}

func NewRefreshWorker(refresher Refresher, interval time.Duration, log *logrus.Entry) *RefreshWorker {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &RefreshWorker{refresher: refresher, interval: interval, log: log}
}

// Start blocks until ctx is done. A non-positive interval disables the worker.
func (w *RefreshWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.log.Debug("[REFRESH] periodic refresh disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.WithField("interval", w.interval.String()).Info("🔄 [REFRESH] starting catalog refresh worker")

	for {
		select {
		case <-ctx.Done():
			w.log.Info("🔄 [REFRESH] catalog refresh worker stopped")
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *RefreshWorker) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.log.WithField("panic", r).Error("🔄 [REFRESH] panic during refresh, will retry next tick")
		}
	}()

	res, err := w.refresher.ForceRefresh(ctx)
	if err != nil {
		// already logged and surfaced by the synchronizer
		return
	}
	w.log.WithField("count", res.Count).Debug("[REFRESH] catalog refreshed")
}
