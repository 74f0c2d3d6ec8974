package watch

import "time"

// PlaybackMode is the watch page's derived rendering state. It is recomputed
// from scratch on every snapshot refresh; only the sequential playback cursor
// survives refreshes, and only while the mode stays sequential.
type PlaybackMode string

const (
	ModeCountdown     PlaybackMode = "countdown"
	ModeWaiting       PlaybackMode = "waiting"
	ModeLive          PlaybackMode = "live"
	ModeProcessing    PlaybackMode = "processing"
	ModeLastRecording PlaybackMode = "last_recording"
	ModeSequential    PlaybackMode = "sequential"
	ModeEnded         PlaybackMode = "ended"
	ModeLimitExceeded PlaybackMode = "limit_exceeded"
)

// Config carries the watch page's policy constants and cadences. The
// thresholds are operational tuning values; defaults come from DefaultConfig.
type Config struct {
	// ProcessingGrace absorbs the platform's processing latency between a
	// stream disconnect and recording finalization: within this window an
	// empty replay renders as "processing" instead of flashing empty.
	ProcessingGrace time.Duration

	// InactivityCutoff distinguishes a brief broadcaster pause (resume the
	// last recording) from a finished session (full sequential replay).
	InactivityCutoff time.Duration

	// Poll cadences by mode.
	PollLive          time.Duration
	PollLastRecording time.Duration
	PollDefault       time.Duration

	// CountdownRefetch is the single follow-up fetch delay after the
	// countdown reaches zero.
	CountdownRefetch time.Duration

	// Sequential-advance detection thresholds.
	NearEndThreshold       time.Duration
	StallSilence           time.Duration
	StallRemaining         time.Duration
	UnknownDurationTimeout time.Duration

	// EmbedOrigin is the only message origin accepted from the player
	// telemetry channel. Empty accepts any origin (local development).
	EmbedOrigin string
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		ProcessingGrace:        10 * time.Minute,
		InactivityCutoff:       2 * time.Hour,
		PollLive:               120 * time.Second,
		PollLastRecording:      30 * time.Second,
		PollDefault:            60 * time.Second,
		CountdownRefetch:       5 * time.Second,
		NearEndThreshold:       time.Second,
		StallSilence:           10 * time.Second,
		StallRemaining:         5 * time.Second,
		UnknownDurationTimeout: 120 * time.Second,
	}
}

// withDefaults fills zero-valued fields so a partially-specified Config
// cannot disable a timer line.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.ProcessingGrace == 0 {
		c.ProcessingGrace = def.ProcessingGrace
	}
	if c.InactivityCutoff == 0 {
		c.InactivityCutoff = def.InactivityCutoff
	}
	if c.PollLive == 0 {
		c.PollLive = def.PollLive
	}
	if c.PollLastRecording == 0 {
		c.PollLastRecording = def.PollLastRecording
	}
	if c.PollDefault == 0 {
		c.PollDefault = def.PollDefault
	}
	if c.CountdownRefetch == 0 {
		c.CountdownRefetch = def.CountdownRefetch
	}
	if c.NearEndThreshold == 0 {
		c.NearEndThreshold = def.NearEndThreshold
	}
	if c.StallSilence == 0 {
		c.StallSilence = def.StallSilence
	}
	if c.StallRemaining == 0 {
		c.StallRemaining = def.StallRemaining
	}
	if c.UnknownDurationTimeout == 0 {
		c.UnknownDurationTimeout = def.UnknownDurationTimeout
	}
	return c
}

// Resolve maps a snapshot and the current time to a playback mode.
// Pure and total: every reachable snapshot shape yields a mode.
func Resolve(snap EventSnapshot, now time.Time, cfg Config) PlaybackMode {
	base := resolveBase(snap, now, cfg)
	if snap.LimitExceeded && (base == ModeLive || len(snap.ReadyRecordings()) > 0) {
		return ModeLimitExceeded
	}
	return base
}

func resolveBase(snap EventSnapshot, now time.Time, cfg Config) PlaybackMode {
	ready := snap.ReadyRecordings()

	switch {
	// A momentary ingest disconnect keeps the live embed; the controller
	// overlays a reconnect indicator instead of flapping modes.
	case snap.Status == StatusLive && (snap.StreamState == StreamActive || snap.StreamState == StreamDisconnected):
		return ModeLive

	case snap.Status == StatusEnded:
		if len(ready) > 0 {
			return ModeSequential
		}
		return ModeEnded

	case snap.Status == StatusReady:
		switch {
		case len(ready) == 0 && snap.HasRecentActivity(now, cfg.ProcessingGrace):
			return ModeProcessing
		case len(ready) == 0:
			return ModeWaiting
		case snap.HasRecentActivity(now, cfg.InactivityCutoff) && len(ready) == 1:
			return ModeLastRecording
		default:
			// Recent activity with several recordings, or a stale session:
			// either way the guest gets the full replay.
			return ModeSequential
		}

	case now.Before(snap.ScheduledAt):
		return ModeCountdown

	default:
		return ModeWaiting
	}
}
