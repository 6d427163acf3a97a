package diskcache

import (
	"context"
	"sync"
	"time"

	"movieview/internal/logging"
)

// Sweeper runs Sweep on a fixed interval in the background.
type Sweeper struct {
	store    *Store
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	started  bool
	done     chan struct{}
}

// NewSweeper creates a sweeper for store.
func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins periodic sweeping. A non-positive interval disables it.
func (w *Sweeper) Start() {
	if w.interval <= 0 || w.started {
		return
	}
	w.started = true
	go w.loop()
}

// Stop ends sweeping and waits for an in-progress sweep to finish.
func (w *Sweeper) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	if w.started {
		<-w.done
	}
}

func (w *Sweeper) loop() {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			report := w.store.Sweep(context.Background())
			if len(report.Evicted) > 0 {
				logging.Debug("Background sweep evicted %d videos", len(report.Evicted))
			}
		case <-w.stopChan:
			return
		}
	}
}
