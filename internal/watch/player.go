package watch

import (
	"log/slog"
	"time"
)

// Overlay identifies an indicator rendered on top of the player.
type Overlay string

const (
	OverlayNone         Overlay = ""
	OverlayReconnecting Overlay = "reconnecting"
)

// Renderer is the UI surface the session drives. Every setter is an
// "idempotent set": applying the same value twice must not cause a visible
// reload, and in particular re-setting the asset a player already has loaded
// must not restart playback.
type Renderer interface {
	// SetTitle sets the page headline for the current mode.
	SetTitle(text string)

	// SetBanner sets the informational banner. Empty text hides it.
	SetBanner(text string)

	// SetOverlay shows an indicator above the player. OverlayNone hides it.
	SetOverlay(o Overlay)

	// SetCountdown updates the ticking countdown display.
	SetCountdown(remaining time.Duration)

	// PlayAsset points the embedded player at a recorded asset.
	PlayAsset(assetID string)

	// PlayLive points the embedded player at the live ingest.
	PlayLive(liveInputID string)

	// StopPlayback tears the player down.
	StopPlayback()
}

// Player telemetry property names. The embedded player reports progress via
// asynchronous, unordered, possibly-dropped property-change messages; these
// are the only two properties the session listens to.
const (
	PropCurrentTime = "currentTime"
	PropEnded       = "ended"
)

// PlayerMessage is one property-change message from the embedded player,
// relayed through the telemetry bridge. Origin is stamped by the bridge from
// the relaying connection, never trusted from the payload.
type PlayerMessage struct {
	Origin   string  `json:"-"`
	Property string  `json:"property"`
	Value    float64 `json:"value"`
}

// valid reports whether the message passes the origin filter and the
// structural check. Malformed telemetry is dropped, never an error.
func (m PlayerMessage) valid(allowedOrigin string) bool {
	if allowedOrigin != "" && m.Origin != allowedOrigin {
		return false
	}
	return m.Property == PropCurrentTime || m.Property == PropEnded
}

// LogRenderer writes UI state to the log. It honors the idempotent-set
// contract by dropping repeated sets of the same value, so the log mirrors
// what a guest would actually see change.
type LogRenderer struct {
	log *slog.Logger

	title   string
	banner  string
	overlay Overlay
	asset   string
	live    string
	playing bool
	seconds int64
}

// NewLogRenderer returns a Renderer that logs state changes.
func NewLogRenderer(log *slog.Logger) *LogRenderer {
	return &LogRenderer{log: log, seconds: -1}
}

// SetTitle implements Renderer.SetTitle.
func (r *LogRenderer) SetTitle(text string) {
	if r.title == text {
		return
	}
	r.title = text
	r.log.Info("title", slog.String("text", text))
}

// SetBanner implements Renderer.SetBanner.
func (r *LogRenderer) SetBanner(text string) {
	if r.banner == text {
		return
	}
	r.banner = text
	if text == "" {
		r.log.Info("banner hidden")
		return
	}
	r.log.Info("banner", slog.String("text", text))
}

// SetOverlay implements Renderer.SetOverlay.
func (r *LogRenderer) SetOverlay(o Overlay) {
	if r.overlay == o {
		return
	}
	r.overlay = o
	r.log.Info("overlay", slog.String("kind", string(o)))
}

// SetCountdown implements Renderer.SetCountdown, deduplicated per second.
func (r *LogRenderer) SetCountdown(remaining time.Duration) {
	secs := int64(remaining / time.Second)
	if secs == r.seconds {
		return
	}
	r.seconds = secs
	r.log.Info("countdown", slog.Int64("seconds_remaining", secs))
}

// PlayAsset implements Renderer.PlayAsset.
func (r *LogRenderer) PlayAsset(assetID string) {
	if r.playing && r.asset == assetID {
		return
	}
	r.playing = true
	r.asset = assetID
	r.live = ""
	r.log.Info("player loading asset", slog.String("asset_id", assetID))
}

// PlayLive implements Renderer.PlayLive.
func (r *LogRenderer) PlayLive(liveInputID string) {
	if r.playing && r.live == liveInputID {
		return
	}
	r.playing = true
	r.live = liveInputID
	r.asset = ""
	r.log.Info("player loading live stream", slog.String("live_input_id", liveInputID))
}

// StopPlayback implements Renderer.StopPlayback.
func (r *LogRenderer) StopPlayback() {
	if !r.playing {
		return
	}
	r.playing = false
	r.asset = ""
	r.live = ""
	r.log.Info("player stopped")
}
