package thumbnails

import (
	"context"
	"errors"
	"testing"
	"time"

	platformerrors "github.com/jmgilman/go/errors"

	"movieview/internal/cachekey"
	"movieview/internal/thumbnail"
)

func TestSessionShortVideo(t *testing.T) {
	h := newHarness(t, 3)

	var seen []Progress
	s := h.orch.NewSession(h.video, standard, SessionOptions{
		OnProgress: func(p Progress) { seen = append(seen, p) },
	})
	results, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(results) != 4 {
		t.Fatalf("got %d thumbnails, want 4", len(results))
	}
	want := []float64{0, 1, 2, 3}
	for i, r := range results {
		if r.Timestamp != want[i] {
			t.Errorf("results[%d].Timestamp = %v, want %v", i, r.Timestamp, want[i])
		}
		if r.Source != SourceExtracted || r.Image == nil {
			t.Errorf("results[%d] = %+v", i, r)
		}
	}

	if s.State() != StateCompleted {
		t.Errorf("state = %s, want completed", s.State())
	}
	if len(seen) != 4 || seen[3] != (Progress{Done: 4, Total: 4}) {
		t.Errorf("progress = %v", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i].Done <= seen[i-1].Done {
			t.Errorf("progress not monotonic: %v", seen)
		}
	}
}

func TestSessionSecondRunHitsMemory(t *testing.T) {
	h := newHarness(t, 3)

	if _, err := h.orch.NewSession(h.video, standard, SessionOptions{}).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	results, err := h.orch.NewSession(h.video, standard, SessionOptions{}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Source != SourceMemory {
			t.Errorf("timestamp %v served from %s, want memory", r.Timestamp, r.Source)
		}
	}
	if h.frames.callCount() != 4 {
		t.Errorf("extractor calls = %d, want 4", h.frames.callCount())
	}
}

func TestSessionMaxThumbnails(t *testing.T) {
	h := newHarness(t, 3600)

	results, err := h.orch.NewSession(h.video, standard, SessionOptions{MaxThumbnails: 10}).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 10 {
		t.Errorf("got %d thumbnails, want 10", len(results))
	}
	if last := results[len(results)-1].Timestamp; last != 3600 {
		t.Errorf("last timestamp = %v, want 3600", last)
	}
}

func TestSessionSkipsFailedThumbnails(t *testing.T) {
	h := newHarness(t, 3)
	h.frames.fail[1] = errors.New("decode error")

	s := h.orch.NewSession(h.video, standard, SessionOptions{})
	results, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(results) != 3 {
		t.Errorf("got %d thumbnails, want 3", len(results))
	}
	for _, r := range results {
		if r.Timestamp == 1 {
			t.Error("failed timestamp should be skipped")
		}
	}
	if s.Progress() != (Progress{Done: 4, Total: 4}) {
		t.Errorf("progress = %+v", s.Progress())
	}
}

func TestSessionFailsWhenNothingExtracted(t *testing.T) {
	h := newHarness(t, 3)
	for _, ts := range []float64{0, 1, 2, 3} {
		h.frames.fail[ts] = errors.New("no such track")
	}

	s := h.orch.NewSession(h.video, standard, SessionOptions{})
	_, err := s.Run(context.Background())
	if s.State() != StateFailed {
		t.Errorf("state = %s, want failed", s.State())
	}
	if code := platformerrors.GetCode(err); code != thumbnail.CodeInvalidSource {
		t.Errorf("code = %s, want %s", code, thumbnail.CodeInvalidSource)
	}
	if s.Err() == nil {
		t.Error("Err() should report the failure")
	}
}

func TestSessionValidationFailures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		h := newHarness(t, 3)
		s := h.orch.NewSession(h.video+".missing", standard, SessionOptions{})
		_, err := s.Run(context.Background())
		if s.State() != StateFailed || platformerrors.GetCode(err) != thumbnail.CodeNotFound {
			t.Errorf("state=%s err=%v", s.State(), err)
		}
	})

	t.Run("probe failure", func(t *testing.T) {
		h := newHarness(t, 3)
		h.prober.err = platformerrors.New(thumbnail.CodeInvalidSource, "no video stream")
		s := h.orch.NewSession(h.video, standard, SessionOptions{})
		_, err := s.Run(context.Background())
		if s.State() != StateFailed || platformerrors.GetCode(err) != thumbnail.CodeInvalidSource {
			t.Errorf("state=%s err=%v", s.State(), err)
		}
		if h.frames.callCount() != 0 {
			t.Error("extractor should not run for an invalid video")
		}
	})
}

func TestSessionCancelBetweenThumbnails(t *testing.T) {
	h := newHarness(t, 3)
	id := h.identity(t)

	var s *Session
	s = h.orch.NewSession(h.video, standard, SessionOptions{
		OnProgress: func(p Progress) {
			if p.Done == 2 {
				s.Cancel()
			}
		},
	})
	results, err := s.Run(context.Background())

	if s.State() != StateCancelled {
		t.Errorf("state = %s, want cancelled", s.State())
	}
	if !thumbnail.IsCancellation(err) {
		t.Errorf("err = %v, want cancellation", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d partial results, want 2", len(results))
	}
	if h.frames.callCount() != 2 {
		t.Errorf("extractor calls = %d, want 2", h.frames.callCount())
	}

	// Thumbnails produced before the cancel stay cached.
	for _, ts := range []float64{0, 1} {
		if _, ok := h.memory.Retrieve(cachekey.ThumbnailKey(id.Fingerprint, ts, thumbnail.QualityStandard)); !ok {
			t.Errorf("thumbnail at %v missing from memory after cancel", ts)
		}
	}
	if _, stores := h.disk.counts(); stores != 2 {
		t.Errorf("disk stores = %d, want 2", stores)
	}
}

func TestSessionCancelledContext(t *testing.T) {
	h := newHarness(t, 3)
	h.frames.started = make(chan float64, 1)
	h.frames.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	s := h.orch.NewSession(h.video, standard, SessionOptions{})

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(ctx)
		done <- err
	}()

	<-h.frames.started
	cancel()

	select {
	case err := <-done:
		if !thumbnail.IsCancellation(err) {
			t.Errorf("err = %v, want cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop after cancel")
	}
	if s.State() != StateCancelled {
		t.Errorf("state = %s, want cancelled", s.State())
	}
}

func TestSessionOnePerVideo(t *testing.T) {
	h := newHarness(t, 3)
	h.frames.started = make(chan float64, 8)
	h.frames.release = make(chan struct{})

	first := h.orch.NewSession(h.video, standard, SessionOptions{})
	done := make(chan error, 1)
	go func() {
		_, err := first.Run(context.Background())
		done <- err
	}()
	<-h.frames.started

	second := h.orch.NewSession(h.video, standard, SessionOptions{})
	_, err := second.Run(context.Background())
	if code := platformerrors.GetCode(err); code != thumbnail.CodeOperationInProgress {
		t.Errorf("concurrent session code = %s, want %s", code, thumbnail.CodeOperationInProgress)
	}
	if second.State() != StateFailed {
		t.Errorf("second state = %s", second.State())
	}

	if !h.orch.CancelSession(first.Fingerprint()) {
		t.Error("CancelSession should find the running session")
	}
	close(h.frames.release)
	if err := <-done; !thumbnail.IsCancellation(err) {
		t.Errorf("first session err = %v, want cancellation", err)
	}

	// The slot is free again.
	h.frames.started = nil
	h.frames.release = nil
	if _, err := h.orch.NewSession(h.video, standard, SessionOptions{}).Run(context.Background()); err != nil {
		t.Errorf("session after release: %v", err)
	}
	if h.orch.CancelSession(first.Fingerprint()) {
		t.Error("no session should be running")
	}
}

func TestSessionRunsOnce(t *testing.T) {
	h := newHarness(t, 3)
	s := h.orch.NewSession(h.video, standard, SessionOptions{})
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
	if s.State() != StateCompleted {
		t.Errorf("state = %s", s.State())
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		want     string
		terminal bool
	}{
		{StateIdle, "idle", false},
		{StateValidating, "validating", false},
		{StateExtracting, "extracting", false},
		{StateCompleted, "completed", true},
		{StateCancelled, "cancelled", true},
		{StateFailed, "failed", true},
	}
	for _, tt := range tests {
		if tt.state.String() != tt.want || tt.state.Terminal() != tt.terminal {
			t.Errorf("%d: String()=%s Terminal()=%v", tt.state, tt.state.String(), tt.state.Terminal())
		}
	}
}
