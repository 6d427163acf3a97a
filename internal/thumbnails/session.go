package thumbnails

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	platformerrors "github.com/jmgilman/go/errors"

	"movieview/internal/cachekey"
	"movieview/internal/logging"
	"movieview/internal/metrics"
	"movieview/internal/thumbnail"
)

// State is a session's lifecycle stage.
type State int32

const (
	StateIdle State = iota
	StateValidating
	StateExtracting
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateExtracting:
		return "extracting"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// Progress is how many of a session's timestamps have been processed.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Result is one produced thumbnail.
type Result struct {
	Key       string            `json:"key"`
	Timestamp float64           `json:"timestamp"`
	Quality   thumbnail.Quality `json:"quality"`
	Source    Source            `json:"source"`
	Image     image.Image       `json:"-"`
}

// SessionOptions tunes a single session.
type SessionOptions struct {
	// MaxThumbnails overrides the orchestrator's cap when positive.
	MaxThumbnails int

	// OnProgress is called after every processed timestamp, from the
	// session's goroutine.
	OnProgress func(Progress)
}

// Session generates every thumbnail of one video.
type Session struct {
	orch    *Orchestrator
	path    string
	params  thumbnail.Parameters
	options SessionOptions

	state     atomic.Int32
	cancelled atomic.Bool

	mu          sync.Mutex
	fingerprint string
	progress    Progress
	results     []Result
	err         error
}

// NewSession prepares a session for the video at path. Nothing happens
// until Run.
func (o *Orchestrator) NewSession(path string, params thumbnail.Parameters, opts SessionOptions) *Session {
	return &Session{
		orch:    o,
		path:    path,
		params:  o.normalize(params),
		options: opts,
	}
}

// State returns the current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Progress returns the current progress.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Results returns the thumbnails produced so far, in timestamp order.
func (s *Session) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.results...)
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Fingerprint returns the video's fingerprint once validated.
func (s *Session) Fingerprint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fingerprint
}

// Cancel asks the session to stop before its next thumbnail. Thumbnails
// already cached stay cached.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

func (s *Session) isCancelled(ctx context.Context) bool {
	return s.cancelled.Load() || ctx.Err() != nil
}

// Run validates the video and produces its thumbnails sequentially. It
// returns the thumbnails produced, which are kept even when Run fails or is
// cancelled part way. A session runs once.
func (s *Session) Run(ctx context.Context) ([]Result, error) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateValidating)) {
		return s.Results(), platformerrors.New(thumbnail.CodeOperationInProgress, "session already started")
	}

	start := time.Now()
	metrics.SessionsInProgress.Inc()
	defer func() {
		metrics.SessionsInProgress.Dec()
		metrics.SessionDuration.Observe(time.Since(start).Seconds())
		metrics.SessionsTotal.WithLabelValues(s.State().String()).Inc()
	}()

	if s.isCancelled(ctx) {
		return s.finish(StateCancelled, cancelledError(ctx))
	}

	id, err := cachekey.ForFile(s.path)
	if err != nil {
		return s.finish(StateFailed, err)
	}

	s.mu.Lock()
	s.fingerprint = id.Fingerprint
	s.mu.Unlock()

	if err := s.orch.acquire(s); err != nil {
		return s.finish(StateFailed, err)
	}
	defer s.orch.release(s)

	info, err := s.orch.prober.ProbeIdentity(ctx, id)
	if err != nil {
		if thumbnail.IsCancellation(err) || s.isCancelled(ctx) {
			return s.finish(StateCancelled, cancelledError(ctx))
		}
		return s.finish(StateFailed, err)
	}

	params := s.params
	maxSize := params.Quality.TargetSize()
	if params.Quality == thumbnail.QualityOriginal {
		maxSize = info.Size()
	}
	params.Size = maxSize

	maxThumbnails := s.orch.maxThumbnails
	if s.options.MaxThumbnails > 0 {
		maxThumbnails = s.options.MaxThumbnails
	}
	timestamps := thumbnail.Timestamps(info.Duration, thumbnail.Count(info.Duration, params.Density, maxThumbnails))

	s.mu.Lock()
	s.progress = Progress{Total: len(timestamps)}
	s.mu.Unlock()
	s.state.Store(int32(StateExtracting))

	logging.Debug("Session %s: %d thumbnails over %.1fs at %s/%s",
		id.Fingerprint, len(timestamps), info.Duration, params.Quality, params.Format)

	var lastErr error
	for _, ts := range timestamps {
		if s.isCancelled(ctx) {
			return s.finish(StateCancelled, cancelledError(ctx))
		}

		img, source, err := s.orch.fetch(ctx, id, ts, params, maxSize)
		if err != nil {
			if thumbnail.IsCancellation(err) || s.isCancelled(ctx) {
				return s.finish(StateCancelled, cancelledError(ctx))
			}
			logging.Warn("Skipping thumbnail at %.2fs of %s: %v", ts, s.path, err)
			lastErr = err
		} else {
			s.mu.Lock()
			s.results = append(s.results, Result{
				Key:       cachekey.ThumbnailKey(id.Fingerprint, ts, params.Quality),
				Timestamp: ts,
				Quality:   params.Quality,
				Source:    source,
				Image:     img,
			})
			s.mu.Unlock()
		}

		s.mu.Lock()
		s.progress.Done++
		p := s.progress
		s.mu.Unlock()
		if s.options.OnProgress != nil {
			s.options.OnProgress(p)
		}
	}

	if len(timestamps) > 0 && len(s.Results()) == 0 {
		return s.finish(StateFailed, platformerrors.WithContext(
			platformerrors.Wrap(lastErr, thumbnail.CodeInvalidSource, "no thumbnails could be extracted"),
			"path", s.path,
		))
	}
	return s.finish(StateCompleted, nil)
}

func (s *Session) finish(state State, err error) ([]Result, error) {
	s.mu.Lock()
	s.err = err
	results := append([]Result(nil), s.results...)
	s.mu.Unlock()

	s.state.Store(int32(state))
	if err != nil && state == StateFailed {
		logging.Warn("Thumbnail session for %s failed: %v", s.path, err)
	}
	return results, err
}

func cancelledError(ctx context.Context) error {
	cause := ctx.Err()
	if cause == nil {
		cause = context.Canceled
	}
	return platformerrors.Wrap(cause, thumbnail.CodeCancelled, "thumbnail generation cancelled")
}
