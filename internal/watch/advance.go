package watch

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// advanceEngine decides when the current replay segment is finished. The
// embedded player has no reliable "ended" callback, so no single signal is
// trusted: a known duration with the position near the end advances, silence
// near the end advances (the final update may have been dropped), a segment
// with no duration metadata advances after a hard timeout, and an explicit
// ended message advances immediately. The latch guarantees at most one
// advance per segment even when signals co-occur.
type advanceEngine struct {
	clock clockwork.Clock
	cfg   Config

	duration     time.Duration // 0 means unknown
	startedAt    time.Time
	lastPosition time.Duration
	lastUpdateAt time.Time
	hasPosition  bool
	advanced     bool
}

// newAdvanceEngine starts detection for one segment. duration is zero when
// the asset has no duration metadata.
func newAdvanceEngine(clock clockwork.Clock, cfg Config, duration time.Duration) *advanceEngine {
	now := clock.Now()
	return &advanceEngine{
		clock:        clock,
		cfg:          cfg,
		duration:     duration,
		startedAt:    now,
		lastUpdateAt: now,
	}
}

// ObservePosition records a position update for the current segment.
func (e *advanceEngine) ObservePosition(pos time.Duration) {
	if e.advanced {
		return
	}
	e.lastPosition = pos
	e.hasPosition = true
	e.lastUpdateAt = e.clock.Now()
}

// ObserveEnded handles an explicit ended signal. It reports true exactly once
// per segment; later signals and ticks are swallowed by the latch.
func (e *advanceEngine) ObserveEnded() bool {
	return e.latch()
}

// Tick runs one detection pass and reports whether the segment just finished.
func (e *advanceEngine) Tick() bool {
	if e.advanced {
		return false
	}
	now := e.clock.Now()

	if e.duration > 0 {
		if e.hasPosition {
			remaining := e.duration - e.lastPosition
			if remaining <= e.cfg.NearEndThreshold {
				return e.latch()
			}
			if now.Sub(e.lastUpdateAt) > e.cfg.StallSilence && remaining < e.cfg.StallRemaining {
				return e.latch()
			}
		}
		return false
	}

	// No duration metadata: wall-clock timeout is the only exit.
	if now.Sub(e.startedAt) > e.cfg.UnknownDurationTimeout {
		return e.latch()
	}
	return false
}

func (e *advanceEngine) latch() bool {
	if e.advanced {
		return false
	}
	e.advanced = true
	return true
}
