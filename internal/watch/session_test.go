package watch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type fakeSource struct {
	snap  EventSnapshot
	err   error
	calls int
}

func (f *fakeSource) Fetch(ctx context.Context) (EventSnapshot, error) {
	f.calls++
	if f.err != nil {
		return EventSnapshot{}, f.err
	}
	return f.snap, nil
}

type fakeRenderer struct {
	title      string
	banner     string
	overlay    Overlay
	countdowns []time.Duration
	assets     []string
	lives      []string
	stops      int
}

func (r *fakeRenderer) SetTitle(text string)  { r.title = text }
func (r *fakeRenderer) SetBanner(text string) { r.banner = text }
func (r *fakeRenderer) SetOverlay(o Overlay)  { r.overlay = o }
func (r *fakeRenderer) SetCountdown(remaining time.Duration) {
	r.countdowns = append(r.countdowns, remaining)
}
func (r *fakeRenderer) PlayAsset(assetID string)    { r.assets = append(r.assets, assetID) }
func (r *fakeRenderer) PlayLive(liveInputID string) { r.lives = append(r.lives, liveInputID) }
func (r *fakeRenderer) StopPlayback()               { r.stops++ }

func (r *fakeRenderer) lastAsset() string {
	if len(r.assets) == 0 {
		return ""
	}
	return r.assets[len(r.assets)-1]
}

func newTestSession(t *testing.T) (*PlaybackSession, *fakeSource, *fakeRenderer, *clockwork.FakeClock) {
	t.Helper()
	src := &fakeSource{}
	ren := &fakeRenderer{}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewPlaybackSession(src, ren, Config{}, log)
	clock := clockwork.NewFakeClockAt(testNow)
	s.clock = clock
	return s, src, ren, clock
}

func replaySnap(recs ...Recording) EventSnapshot {
	return EventSnapshot{Status: StatusEnded, Recordings: recs}
}

func threeSegments() EventSnapshot {
	return replaySnap(
		readyRec("seg-1", testNow.Add(-3*time.Hour), 100),
		readyRec("seg-2", testNow.Add(-2*time.Hour), 200),
		readyRec("seg-3", testNow.Add(-time.Hour), 300),
	)
}

func endedMsg() PlayerMessage { return PlayerMessage{Property: PropEnded} }

func TestSession_countdown_entry(t *testing.T) {
	s, _, ren, _ := newTestSession(t)

	s.apply(EventSnapshot{Status: StatusScheduled, ScheduledAt: testNow.Add(10 * time.Minute)})

	if s.mode != ModeCountdown {
		t.Fatalf("expected countdown, got %s", s.mode)
	}
	if s.countdownTicker == nil {
		t.Error("expected countdown ticker running")
	}
	if len(ren.countdowns) != 1 || ren.countdowns[0] != 10*time.Minute {
		t.Errorf("expected initial countdown render of 10m, got %v", ren.countdowns)
	}
}

func TestSession_countdown_freezes_at_zero(t *testing.T) {
	s, _, ren, clock := newTestSession(t)

	s.apply(EventSnapshot{Status: StatusScheduled, ScheduledAt: testNow.Add(2 * time.Second)})

	clock.Advance(time.Second)
	s.tickCountdown()
	if s.countdownFrozen {
		t.Fatal("should not freeze with time remaining")
	}

	clock.Advance(2 * time.Second)
	s.tickCountdown()

	if !s.countdownFrozen {
		t.Fatal("expected countdown frozen at zero")
	}
	if ren.countdowns[len(ren.countdowns)-1] != 0 {
		t.Errorf("expected final render of zero, got %v", ren.countdowns)
	}
	if ren.banner != bannerStartingSoon {
		t.Errorf("expected starting-soon banner, got %q", ren.banner)
	}
	if s.countdownTicker != nil {
		t.Error("expected countdown ticker stopped")
	}
	if s.refetchTimer == nil {
		t.Error("expected one follow-up fetch scheduled")
	}

	// More ticks after the freeze must not move the display backwards.
	clock.Advance(time.Second)
	s.tickCountdown()
	if ren.countdowns[len(ren.countdowns)-1] != 0 {
		t.Error("frozen countdown must stay at zero")
	}
}

func TestSession_sequential_plays_in_order(t *testing.T) {
	s, _, ren, _ := newTestSession(t)

	s.apply(threeSegments())

	if s.mode != ModeSequential {
		t.Fatalf("expected sequential, got %s", s.mode)
	}
	if ren.lastAsset() != "seg-1" {
		t.Fatalf("expected first segment, got %q", ren.lastAsset())
	}
	if ren.banner != "video 1 of 3" {
		t.Errorf("expected progress banner, got %q", ren.banner)
	}

	s.handleMessage(endedMsg())
	if ren.lastAsset() != "seg-2" {
		t.Fatalf("expected second segment after ended, got %q", ren.lastAsset())
	}

	s.handleMessage(endedMsg())
	if ren.lastAsset() != "seg-3" {
		t.Fatalf("expected third segment, got %q", ren.lastAsset())
	}

	s.handleMessage(endedMsg())
	if !s.replayDone {
		t.Error("expected finished sub-state after the last segment")
	}
	if ren.banner != bannerReplayDone {
		t.Errorf("expected replay-finished banner, got %q", ren.banner)
	}
	if s.advanceTicker != nil {
		t.Error("expected advance ticker stopped after the last segment")
	}
}

func TestSession_restart_replay(t *testing.T) {
	s, _, ren, _ := newTestSession(t)

	s.apply(replaySnap(readyRec("seg-1", testNow.Add(-time.Hour), 100)))
	s.handleMessage(endedMsg())
	if !s.replayDone {
		t.Fatal("setup: expected finished replay")
	}

	s.handleRestart()

	if s.replayDone || s.cursor != 0 {
		t.Errorf("expected replay restarted at first segment, cursor=%d done=%v", s.cursor, s.replayDone)
	}
	if ren.lastAsset() != "seg-1" {
		t.Errorf("expected first segment reloaded, got %q", ren.lastAsset())
	}
}

func TestSession_restart_ignored_mid_replay(t *testing.T) {
	s, _, ren, _ := newTestSession(t)

	s.apply(threeSegments())
	s.handleMessage(endedMsg())
	loaded := len(ren.assets)

	s.handleRestart()

	if s.cursor != 1 || len(ren.assets) != loaded {
		t.Error("restart outside the finished sub-state must be a no-op")
	}
}

func TestSession_refresh_same_mode_keeps_cursor(t *testing.T) {
	s, _, ren, _ := newTestSession(t)

	snap := threeSegments()
	s.apply(snap)
	s.handleMessage(endedMsg())
	loaded := len(ren.assets)

	s.apply(snap)

	if s.cursor != 1 {
		t.Errorf("expected cursor preserved across refresh, got %d", s.cursor)
	}
	if len(ren.assets) != loaded {
		t.Error("refresh in the same mode must not reload the player")
	}
}

func TestSession_cursor_resets_when_ready_set_shrinks(t *testing.T) {
	s, _, ren, _ := newTestSession(t)

	s.apply(threeSegments())
	s.handleMessage(endedMsg())
	s.handleMessage(endedMsg())
	if s.cursor != 2 {
		t.Fatalf("setup: expected cursor at third segment, got %d", s.cursor)
	}

	s.apply(replaySnap(readyRec("seg-1", testNow.Add(-3*time.Hour), 100)))

	if s.cursor != 0 {
		t.Errorf("expected cursor reset after shrink, got %d", s.cursor)
	}
	if ren.lastAsset() != "seg-1" {
		t.Errorf("expected first segment reloaded, got %q", ren.lastAsset())
	}
}

func TestSession_new_segment_resumes_finished_replay(t *testing.T) {
	s, _, ren, _ := newTestSession(t)

	s.apply(replaySnap(readyRec("seg-1", testNow.Add(-2*time.Hour), 100)))
	s.handleMessage(endedMsg())
	if !s.replayDone {
		t.Fatal("setup: expected finished replay")
	}

	s.apply(replaySnap(
		readyRec("seg-1", testNow.Add(-2*time.Hour), 100),
		readyRec("seg-2", testNow.Add(-time.Hour), 100),
	))

	if s.replayDone {
		t.Error("expected replay resumed when a new segment arrived")
	}
	if ren.lastAsset() != "seg-2" {
		t.Errorf("expected playback of the new segment, got %q", ren.lastAsset())
	}
}

func TestSession_merged_replay_plays_single_asset(t *testing.T) {
	s, _, ren, _ := newTestSession(t)

	snap := threeSegments()
	snap.MergedVideoID = "merged-1"
	s.apply(snap)

	if ren.lastAsset() != "merged-1" {
		t.Fatalf("expected merged asset, got %q", ren.lastAsset())
	}
	if s.advanceTicker != nil || s.engine != nil {
		t.Error("merged replay must not run the advance loop")
	}
}

func TestSession_mode_change_cancels_sequential_state(t *testing.T) {
	s, _, ren, _ := newTestSession(t)

	s.apply(threeSegments())
	if s.advanceTicker == nil {
		t.Fatal("setup: expected advance ticker")
	}

	s.apply(EventSnapshot{Status: StatusLive, StreamState: StreamActive, LiveInputID: "in-1"})

	if s.mode != ModeLive {
		t.Fatalf("expected live, got %s", s.mode)
	}
	if s.advanceTicker != nil || s.engine != nil {
		t.Error("expected sequential machinery torn down")
	}
	if len(ren.lives) != 1 || ren.lives[0] != "in-1" {
		t.Errorf("expected live playback, got %v", ren.lives)
	}
}

func TestSession_live_disconnect_shows_overlay(t *testing.T) {
	s, _, ren, _ := newTestSession(t)

	s.apply(EventSnapshot{Status: StatusLive, StreamState: StreamActive, LiveInputID: "in-1"})
	if ren.overlay != OverlayNone {
		t.Fatalf("expected no overlay while active, got %q", ren.overlay)
	}

	s.apply(EventSnapshot{Status: StatusLive, StreamState: StreamDisconnected, LiveInputID: "in-1"})
	if s.mode != ModeLive {
		t.Fatalf("disconnect must not leave live, got %s", s.mode)
	}
	if ren.overlay != OverlayReconnecting {
		t.Errorf("expected reconnecting overlay, got %q", ren.overlay)
	}
	if len(ren.lives) != 2 {
		// PlayLive is re-issued but the renderer contract makes it a no-op.
		t.Errorf("expected idempotent live set, got %v", ren.lives)
	}

	s.apply(EventSnapshot{Status: StatusLive, StreamState: StreamActive, LiveInputID: "in-1"})
	if ren.overlay != OverlayNone {
		t.Errorf("expected overlay cleared on reconnect, got %q", ren.overlay)
	}
}

func TestSession_last_recording_resumes_latest(t *testing.T) {
	s, _, ren, _ := newTestSession(t)

	s.apply(EventSnapshot{
		Status:               StatusReady,
		LastStreamActivityAt: timePtr(testNow.Add(-time.Minute)),
		Recordings:           []Recording{readyRec("r1", testNow.Add(-10*time.Minute), 300)},
	})

	if s.mode != ModeLastRecording {
		t.Fatalf("expected last_recording, got %s", s.mode)
	}
	if ren.lastAsset() != "r1" {
		t.Errorf("expected latest recording playing, got %q", ren.lastAsset())
	}
	if ren.banner != bannerPaused {
		t.Errorf("expected paused banner, got %q", ren.banner)
	}
}

func TestSession_limit_preempts_replay(t *testing.T) {
	s, _, ren, _ := newTestSession(t)

	s.apply(threeSegments())
	snap := threeSegments()
	snap.LimitExceeded = true
	s.apply(snap)

	if s.mode != ModeLimitExceeded {
		t.Fatalf("expected limit_exceeded, got %s", s.mode)
	}
	if ren.stops == 0 {
		t.Error("expected playback stopped")
	}
	if ren.banner != bannerLimit {
		t.Errorf("expected limit banner, got %q", ren.banner)
	}
}

func TestSession_poll_interval_follows_mode(t *testing.T) {
	s, _, _, _ := newTestSession(t)

	s.apply(EventSnapshot{Status: StatusLive, StreamState: StreamActive})
	if got := s.pollInterval(); got != 120*time.Second {
		t.Errorf("live cadence: expected 120s, got %s", got)
	}

	s.apply(EventSnapshot{
		Status:               StatusReady,
		LastStreamActivityAt: timePtr(testNow.Add(-time.Minute)),
		Recordings:           []Recording{readyRec("r1", testNow.Add(-10*time.Minute), 300)},
	})
	if got := s.pollInterval(); got != 30*time.Second {
		t.Errorf("last_recording cadence: expected 30s, got %s", got)
	}

	s.apply(EventSnapshot{Status: StatusReady})
	if got := s.pollInterval(); got != 60*time.Second {
		t.Errorf("default cadence: expected 60s, got %s", got)
	}
}

func TestSession_telemetry_origin_filter(t *testing.T) {
	s, _, ren, _ := newTestSession(t)
	s.cfg.EmbedOrigin = "https://embed.example"

	s.apply(threeSegments())

	s.handleMessage(PlayerMessage{Origin: "https://evil.example", Property: PropEnded})
	if s.cursor != 0 {
		t.Fatal("message from a foreign origin must be dropped")
	}

	s.handleMessage(PlayerMessage{Origin: "https://embed.example", Property: PropEnded})
	if s.cursor != 1 || ren.lastAsset() != "seg-2" {
		t.Error("expected advance on message from the allowed origin")
	}
}

func TestSession_position_telemetry_drives_advance(t *testing.T) {
	s, _, ren, _ := newTestSession(t)

	s.apply(replaySnap(
		readyRec("seg-1", testNow.Add(-2*time.Hour), 100),
		readyRec("seg-2", testNow.Add(-time.Hour), 100),
	))

	s.handleMessage(PlayerMessage{Property: PropCurrentTime, Value: 99.5})
	if s.engine == nil || !s.engine.Tick() {
		t.Fatal("expected advance tick to fire near the end")
	}
	s.advanceSegment()

	if ren.lastAsset() != "seg-2" {
		t.Errorf("expected next segment, got %q", ren.lastAsset())
	}
}

func TestSession_poll_failure_keeps_state(t *testing.T) {
	s, src, ren, _ := newTestSession(t)

	s.apply(EventSnapshot{Status: StatusLive, StreamState: StreamActive, LiveInputID: "in-1"})
	lives := len(ren.lives)

	src.err = errors.New("connection refused")
	s.pollOnce(context.Background())

	if s.mode != ModeLive {
		t.Errorf("fetch failure must keep the previous mode, got %s", s.mode)
	}
	if len(ren.lives) != lives || ren.stops != 0 {
		t.Error("fetch failure must not touch the renderer")
	}
}

func TestSession_run_initial_fetch_failure_is_fatal(t *testing.T) {
	s, src, ren, _ := newTestSession(t)
	src.err = errors.New("api unreachable")

	err := s.Run(context.Background())

	if err == nil {
		t.Fatal("expected error from failed initial fetch")
	}
	if ren.banner != bannerLoadFailed {
		t.Errorf("expected load-failed banner, got %q", ren.banner)
	}
}

func TestSession_run_stops_on_cancel(t *testing.T) {
	s, src, ren, _ := newTestSession(t)
	src.snap = EventSnapshot{Status: StatusLive, StreamState: StreamActive, LiveInputID: "in-1"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("expected exactly the initial fetch, got %d", src.calls)
	}
	if ren.stops == 0 {
		t.Error("expected playback stopped on teardown")
	}
}
