package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Mode headlines and banners pushed through the renderer.
const (
	titleCountdown  = "Event starts soon"
	titleWaiting    = "Please stand by"
	titleLive       = "Live"
	titleProcessing = "Preparing video"
	titlePaused     = "Stream paused"
	titleReplay     = "Replay"
	titleEnded      = "This event has ended"
	titleLimit      = "Viewing limit reached"

	bannerStartingSoon = "Starting soon"
	bannerWaiting      = "Waiting for the broadcast"
	bannerProcessing   = "The video is being processed"
	bannerPaused       = "The stream is paused and playback will resume shortly"
	bannerEnded        = "No recording is available for this event"
	bannerLimit        = "This event is no longer available to watch"
	bannerLoadFailed   = "Could not load this event, please reload the page"
	bannerReplayDone   = "Replay finished"
)

// PlaybackSession owns one guest's watch-page state: it polls the event
// snapshot, resolves the playback mode, drives the renderer, and runs the
// sequential-advance sub-loop. Everything executes on the single Run
// goroutine; the poll timer, countdown ticker, advance ticker and telemetry
// channel are multiplexed through one select, so ordinary sequencing rather
// than locking provides mutual exclusion.
type PlaybackSession struct {
	source   SnapshotSource
	renderer Renderer
	clock    clockwork.Clock
	cfg      Config
	log      *slog.Logger

	messages  chan PlayerMessage
	restartCh chan struct{}

	snap EventSnapshot
	mode PlaybackMode

	// Sequential playback cursor. Persists across refreshes while the mode
	// stays sequential; reset on fresh entry and when the ready set shrinks
	// under it.
	playlist   []Recording
	cursor     int
	replayDone bool
	engine     *advanceEngine

	countdownTicker clockwork.Ticker
	advanceTicker   clockwork.Ticker
	refetchTimer    clockwork.Timer
	countdownFrozen bool
}

// NewPlaybackSession builds a session for one event. Zero-valued Config
// fields fall back to the production defaults.
func NewPlaybackSession(source SnapshotSource, renderer Renderer, cfg Config, log *slog.Logger) *PlaybackSession {
	return &PlaybackSession{
		source:    source,
		renderer:  renderer,
		clock:     clockwork.NewRealClock(),
		cfg:       cfg.withDefaults(),
		log:       log,
		messages:  make(chan PlayerMessage, 16),
		restartCh: make(chan struct{}, 1),
	}
}

// Messages returns the channel the telemetry bridge feeds player
// property-change messages into.
func (s *PlaybackSession) Messages() chan<- PlayerMessage {
	return s.messages
}

// Mode returns the currently rendered playback mode.
func (s *PlaybackSession) Mode() PlaybackMode {
	return s.mode
}

// RestartReplay requests replay-from-start after sequential playback has
// finished. Safe to call from any goroutine; the request is handled on the
// session loop and ignored outside the finished sub-state.
func (s *PlaybackSession) RestartReplay() {
	select {
	case s.restartCh <- struct{}{}:
	default:
	}
}

// Run fetches the initial snapshot and then loops until ctx is cancelled.
// The very first fetch failing is fatal (the guest must reload); every later
// failure only skips that tick.
func (s *PlaybackSession) Run(ctx context.Context) error {
	snap, err := s.source.Fetch(ctx)
	if err != nil {
		s.renderer.SetBanner(bannerLoadFailed)
		return fmt.Errorf("initial snapshot fetch: %w", err)
	}
	s.apply(snap)

	poll := s.clock.NewTimer(s.pollInterval())
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return nil

		case <-poll.Chan():
			// Single poll line, re-armed after each tick at the cadence of
			// whatever mode the fetch left us in.
			s.pollOnce(ctx)
			poll.Reset(s.pollInterval())

		case <-s.refetchChan():
			// The one follow-up fetch bridging countdown expiry and the next
			// regular poll. Restart the poll line only if the cadence moved.
			s.refetchTimer = nil
			before := s.pollInterval()
			s.pollOnce(ctx)
			if after := s.pollInterval(); after != before {
				stopAndDrainTimer(poll)
				poll.Reset(after)
			}

		case <-s.countdownChan():
			s.tickCountdown()

		case <-s.advanceChan():
			if s.engine != nil && s.engine.Tick() {
				s.advanceSegment()
			}

		case msg := <-s.messages:
			s.handleMessage(msg)

		case <-s.restartCh:
			s.handleRestart()
		}
	}
}

// pollOnce fetches a fresh snapshot and re-evaluates the mode. Transient
// fetch failures skip the tick and keep the previous render.
func (s *PlaybackSession) pollOnce(ctx context.Context) {
	snap, err := s.source.Fetch(ctx)
	if err != nil {
		s.log.Warn("snapshot fetch failed, keeping previous state", slog.String("error", err.Error()))
		return
	}
	s.apply(snap)
}

// apply installs a snapshot: resolve the mode, and either sync the current
// render (same mode, no teardown) or transition.
func (s *PlaybackSession) apply(snap EventSnapshot) {
	s.snap = snap
	now := s.clock.Now()
	mode := Resolve(snap, now, s.cfg)
	ready := snap.ReadyRecordings()

	// Never render an empty player: a sequential mode without playable
	// recordings falls back to processing/waiting.
	if mode == ModeSequential && len(ready) == 0 && snap.MergedVideoID == "" {
		if snap.HasRecentActivity(now, s.cfg.ProcessingGrace) {
			mode = ModeProcessing
		} else {
			mode = ModeWaiting
		}
	}

	if mode == s.mode {
		s.refresh(ready)
		return
	}

	prev := s.mode
	s.exitMode()
	s.mode = mode
	s.log.Info("playback mode changed", slog.String("from", string(prev)), slog.String("to", string(mode)))
	s.enterMode(ready)
}

// refresh syncs a re-fetch that kept the same mode. No teardown, no player
// reload; only the pieces that may legitimately drift are touched.
func (s *PlaybackSession) refresh(ready []Recording) {
	switch s.mode {
	case ModeLive:
		s.renderer.PlayLive(s.snap.LiveInputID)
		s.syncLiveOverlay()

	case ModeLastRecording:
		if rec, ok := s.snap.LatestReadyRecording(); ok {
			s.renderer.PlayAsset(rec.ID)
		}

	case ModeSequential:
		if s.snap.MergedVideoID != "" {
			// A merged asset can appear mid-replay; it supersedes the
			// segment loop.
			s.stopAdvanceTicker()
			s.engine = nil
			s.renderer.PlayAsset(s.snap.MergedVideoID)
			return
		}
		s.playlist = ready
		if s.replayDone {
			// New segments can land after the replay finished; resume.
			if s.cursor < len(ready) {
				s.replayDone = false
				s.loadCurrent()
				s.startAdvanceTicker()
			}
			return
		}
		if s.cursor >= len(ready) {
			// Ready set shrank under the cursor: start over.
			s.cursor = 0
			s.loadCurrent()
			return
		}
		s.renderer.SetBanner(s.progressBanner())
	}
}

// enterMode performs the one-time setup for a freshly entered mode.
func (s *PlaybackSession) enterMode(ready []Recording) {
	switch s.mode {
	case ModeCountdown:
		s.renderer.StopPlayback()
		s.renderer.SetTitle(titleCountdown)
		s.renderer.SetBanner("")
		s.countdownFrozen = false
		s.countdownTicker = s.clock.NewTicker(time.Second)
		s.renderer.SetCountdown(s.snap.ScheduledAt.Sub(s.clock.Now()))

	case ModeWaiting:
		s.renderer.StopPlayback()
		s.renderer.SetTitle(titleWaiting)
		s.renderer.SetBanner(bannerWaiting)

	case ModeProcessing:
		s.renderer.StopPlayback()
		s.renderer.SetTitle(titleProcessing)
		s.renderer.SetBanner(bannerProcessing)

	case ModeLive:
		s.renderer.SetTitle(titleLive)
		s.renderer.SetBanner("")
		s.renderer.PlayLive(s.snap.LiveInputID)
		s.syncLiveOverlay()

	case ModeLastRecording:
		s.renderer.SetTitle(titlePaused)
		if rec, ok := s.snap.LatestReadyRecording(); ok {
			s.renderer.PlayAsset(rec.ID)
		}
		s.renderer.SetBanner(bannerPaused)

	case ModeSequential:
		s.renderer.SetTitle(titleReplay)
		s.enterSequential(ready)

	case ModeEnded:
		s.renderer.StopPlayback()
		s.renderer.SetTitle(titleEnded)
		s.renderer.SetBanner(bannerEnded)

	case ModeLimitExceeded:
		s.renderer.StopPlayback()
		s.renderer.SetTitle(titleLimit)
		s.renderer.SetBanner(bannerLimit)
	}
}

// enterSequential starts replay from the first segment. A pre-merged replay
// asset plays as a single video with no advance loop.
func (s *PlaybackSession) enterSequential(ready []Recording) {
	s.replayDone = false
	s.cursor = 0
	if s.snap.MergedVideoID != "" {
		s.playlist = nil
		s.renderer.PlayAsset(s.snap.MergedVideoID)
		s.renderer.SetBanner("")
		return
	}
	s.playlist = ready
	s.loadCurrent()
	s.startAdvanceTicker()
}

// loadCurrent loads the segment at the cursor and restarts end-of-segment
// detection with fresh position tracking.
func (s *PlaybackSession) loadCurrent() {
	rec := s.playlist[s.cursor]
	s.renderer.PlayAsset(rec.ID)
	s.renderer.SetBanner(s.progressBanner())
	duration := time.Duration(rec.DurationSeconds * float64(time.Second))
	s.engine = newAdvanceEngine(s.clock, s.cfg, duration)
}

// advanceSegment moves to the next segment, or into the finished sub-state
// after the last one.
func (s *PlaybackSession) advanceSegment() {
	s.cursor++
	if s.cursor >= len(s.playlist) {
		s.log.Info("sequential replay finished", slog.Int("segments", len(s.playlist)))
		s.replayDone = true
		s.engine = nil
		s.stopAdvanceTicker()
		s.renderer.SetBanner(bannerReplayDone)
		return
	}
	s.log.Info("advancing to next segment",
		slog.Int("segment", s.cursor+1),
		slog.Int("total", len(s.playlist)))
	s.loadCurrent()
}

// handleMessage feeds validated telemetry into the advance engine. Telemetry
// only matters while a sequential segment is being watched.
func (s *PlaybackSession) handleMessage(msg PlayerMessage) {
	if !msg.valid(s.cfg.EmbedOrigin) {
		return
	}
	if s.mode != ModeSequential || s.engine == nil {
		return
	}
	switch msg.Property {
	case PropCurrentTime:
		s.engine.ObservePosition(time.Duration(msg.Value * float64(time.Second)))
	case PropEnded:
		if s.engine.ObserveEnded() {
			s.advanceSegment()
		}
	}
}

// handleRestart replays from the first segment after the finished sub-state.
func (s *PlaybackSession) handleRestart() {
	if s.mode != ModeSequential || !s.replayDone || len(s.playlist) == 0 {
		return
	}
	s.replayDone = false
	s.cursor = 0
	s.loadCurrent()
	s.startAdvanceTicker()
}

// tickCountdown updates the countdown display. At zero the display freezes,
// the "starting soon" banner shows, and exactly one follow-up fetch is
// scheduled to bridge the gap until the server leaves scheduled.
func (s *PlaybackSession) tickCountdown() {
	if s.countdownFrozen {
		return
	}
	remaining := s.snap.ScheduledAt.Sub(s.clock.Now())
	if remaining <= 0 {
		s.countdownFrozen = true
		s.renderer.SetCountdown(0)
		s.renderer.SetBanner(bannerStartingSoon)
		s.stopCountdownTicker()
		s.refetchTimer = s.clock.NewTimer(s.cfg.CountdownRefetch)
		return
	}
	s.renderer.SetCountdown(remaining)
}

// syncLiveOverlay shows the reconnect indicator during a momentary ingest
// disconnect without touching the live embed.
func (s *PlaybackSession) syncLiveOverlay() {
	if s.snap.StreamState == StreamDisconnected {
		s.renderer.SetOverlay(OverlayReconnecting)
	} else {
		s.renderer.SetOverlay(OverlayNone)
	}
}

// exitMode is the cancellation point for all mode-scoped async work: both
// advance detection lines, the countdown ticker, the pending follow-up
// fetch, and mode-specific chrome.
func (s *PlaybackSession) exitMode() {
	s.stopAdvanceTicker()
	s.stopCountdownTicker()
	if s.refetchTimer != nil {
		stopAndDrainTimer(s.refetchTimer)
		s.refetchTimer = nil
	}
	s.engine = nil
	s.renderer.SetOverlay(OverlayNone)
	s.renderer.SetBanner("")
}

func (s *PlaybackSession) teardown() {
	s.exitMode()
	s.renderer.StopPlayback()
}

// pollInterval returns the poll cadence for the current mode: live events
// poll slowly, the paused last-recording state polls tightly because the
// stream resuming is time-sensitive for the viewer.
func (s *PlaybackSession) pollInterval() time.Duration {
	switch s.mode {
	case ModeLive:
		return s.cfg.PollLive
	case ModeLastRecording:
		return s.cfg.PollLastRecording
	default:
		return s.cfg.PollDefault
	}
}

func (s *PlaybackSession) progressBanner() string {
	return fmt.Sprintf("video %d of %d", s.cursor+1, len(s.playlist))
}

func (s *PlaybackSession) startAdvanceTicker() {
	if s.advanceTicker == nil {
		s.advanceTicker = s.clock.NewTicker(time.Second)
	}
}

func (s *PlaybackSession) stopAdvanceTicker() {
	if s.advanceTicker != nil {
		s.advanceTicker.Stop()
		s.advanceTicker = nil
	}
}

func (s *PlaybackSession) stopCountdownTicker() {
	if s.countdownTicker != nil {
		s.countdownTicker.Stop()
		s.countdownTicker = nil
	}
}

// Nil channels for timer lines the current mode does not own: a nil channel
// never delivers, so the select simply ignores that line.

func (s *PlaybackSession) countdownChan() <-chan time.Time {
	if s.countdownTicker == nil {
		return nil
	}
	return s.countdownTicker.Chan()
}

func (s *PlaybackSession) advanceChan() <-chan time.Time {
	if s.advanceTicker == nil {
		return nil
	}
	return s.advanceTicker.Chan()
}

func (s *PlaybackSession) refetchChan() <-chan time.Time {
	if s.refetchTimer == nil {
		return nil
	}
	return s.refetchTimer.Chan()
}

// stopAndDrainTimer stops a timer and drains its channel so a fire that
// raced the stop cannot be consumed later as a stale tick.
func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
