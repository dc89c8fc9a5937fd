package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/julianstephens/habitsync/internal/constants"
	"github.com/julianstephens/habitsync/internal/logger"
)

// Probe reports whether the remote backend is reachable.
type Probe func(ctx context.Context) error

// Watcher polls a probe and emits connectivity changes. Only transitions are
// delivered; repeated identical results are suppressed.
type Watcher struct {
	probe    Probe
	interval time.Duration
	timeout  time.Duration
	onChange func(ctx context.Context, online bool)
	onSteady func(ctx context.Context, online bool)

	mu    sync.Mutex
	known bool
	state bool
}

// NewWatcher creates a watcher. If initial is non-nil, it is taken as the
// last known state so that the first probe only fires when it differs. A
// non-positive interval uses the default probe interval.
func NewWatcher(probe Probe, interval, timeout time.Duration, initial *bool, onChange func(ctx context.Context, online bool)) *Watcher {
	if interval <= 0 {
		interval = constants.DefaultProbeInterval
	}
	w := &Watcher{
		probe:    probe,
		interval: interval,
		timeout:  timeout,
		onChange: onChange,
	}
	if initial != nil {
		w.known = true
		w.state = *initial
	}
	return w
}

// OnSteady registers fn to run after every probe that did not change the
// state.
func (w *Watcher) OnSteady(fn func(ctx context.Context, online bool)) {
	w.onSteady = fn
}

// Check runs the probe once and reports the result, emitting a transition
// when the state changed.
func (w *Watcher) Check(ctx context.Context) bool {
	probeCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	err := w.probe(probeCtx)
	online := err == nil
	if err != nil {
		logger.Debug("Connectivity probe failed", "error", err)
	}

	w.mu.Lock()
	changed := !w.known || w.state != online
	w.known = true
	w.state = online
	w.mu.Unlock()

	switch {
	case changed:
		logger.Info("Connectivity changed", "online", online)
		if w.onChange != nil {
			w.onChange(ctx, online)
		}
	case w.onSteady != nil:
		w.onSteady(ctx, online)
	}
	return online
}

// Online returns the last observed state.
func (w *Watcher) Online() (online, known bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.known
}

// Run probes immediately and then on every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}
