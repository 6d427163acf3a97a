package thumbnails

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"movieview/internal/logging"
	"movieview/internal/thumbnail"
	"movieview/internal/workers"
)

// Pauser blocks work while memory is under pressure. *memory.Monitor
// implements it.
type Pauser interface {
	WaitIfPaused() bool
}

// WarmResult is the outcome for one video.
type WarmResult struct {
	Path       string `json:"path"`
	Thumbnails int    `json:"thumbnails"`
	Err        error  `json:"-"`
}

// Warmer fills the caches for many videos in the background, one session
// per video, several videos at a time.
type Warmer struct {
	orch    *Orchestrator
	pauser  Pauser
	workers int
}

// NewWarmer creates a Warmer. workers of zero picks an I/O-bound default;
// pauser may be nil.
func NewWarmer(orch *Orchestrator, pauser Pauser, workerCount int) *Warmer {
	if workerCount <= 0 {
		workerCount = workers.ForIO(8)
	}
	return &Warmer{orch: orch, pauser: pauser, workers: workerCount}
}

// Warm runs a session for every path and returns one result per path, in
// input order. Per-video failures are reported in the results; only
// cancellation of ctx stops the whole run. onDone, if set, is called as
// each video finishes.
func (w *Warmer) Warm(ctx context.Context, paths []string, params thumbnail.Parameters, onDone func(WarmResult)) ([]WarmResult, error) {
	results := make([]WarmResult, len(paths))
	var doneMu sync.Mutex

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(w.workers)

	for i, path := range paths {
		if egCtx.Err() != nil {
			break
		}
		if w.pauser != nil && !w.pauser.WaitIfPaused() {
			logging.Info("Warm-up stopped: memory monitor shut down")
			break
		}

		eg.Go(func() error {
			session := w.orch.NewSession(path, params, SessionOptions{})
			produced, err := session.Run(egCtx)

			res := WarmResult{Path: path, Thumbnails: len(produced), Err: err}
			results[i] = res
			if onDone != nil {
				doneMu.Lock()
				onDone(res)
				doneMu.Unlock()
			}

			if err != nil && thumbnail.IsCancellation(err) && ctx.Err() != nil {
				return err
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	for i := range results {
		if results[i].Path == "" {
			results[i].Path = paths[i]
		}
	}
	return results, nil
}
