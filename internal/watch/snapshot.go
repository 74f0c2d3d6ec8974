package watch

import (
	"encoding/json"
	"sort"
	"time"
)

// EventStatus is the booking lifecycle state as served by the events API.
type EventStatus string

const (
	StatusScheduled EventStatus = "scheduled"
	StatusReady     EventStatus = "ready"
	StatusLive      EventStatus = "live"
	StatusEnded     EventStatus = "ended"
	StatusCancelled EventStatus = "cancelled"
)

// StreamState is the ingest-side state as served by the events API.
type StreamState string

const (
	StreamInactive     StreamState = "inactive"
	StreamActive       StreamState = "active"
	StreamDisconnected StreamState = "disconnected"
	StreamFinalized    StreamState = "finalized"
)

// Recording is a video segment as served by the events API. Only recordings
// with ReadyToStream true are playable; DurationSeconds may be absent or zero
// and the advance logic tolerates that.
type Recording struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	DurationSeconds float64   `json:"durationSeconds"`
	ReadyToStream   bool      `json:"readyToStream"`
}

// EventSnapshot is one poll's view of the event, replaced wholesale on each
// fetch. Unknown or missing fields default permissively: an absent recordings
// array is empty, an absent lastStreamActivityAt means no recent activity.
type EventSnapshot struct {
	Status               EventStatus `json:"status"`
	StreamState          StreamState `json:"streamState"`
	ScheduledAt          time.Time   `json:"scheduledAt"`
	LiveInputID          string      `json:"liveInputId"`
	LastStreamActivityAt *time.Time  `json:"lastStreamActivityAt"`
	Recordings           []Recording `json:"recordings"`
	MergedVideoID        string      `json:"mergedVideoId"`
	LimitExceeded        bool        `json:"limitExceeded"`
}

// DecodeSnapshot parses the events API response body.
func DecodeSnapshot(data []byte) (EventSnapshot, error) {
	var snap EventSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return EventSnapshot{}, err
	}
	if snap.Recordings == nil {
		snap.Recordings = []Recording{}
	}
	return snap, nil
}

// ReadyRecordings returns the playable recordings sorted ascending by
// creation time. The API does not guarantee order.
func (s EventSnapshot) ReadyRecordings() []Recording {
	ready := make([]Recording, 0, len(s.Recordings))
	for _, rec := range s.Recordings {
		if rec.ReadyToStream {
			ready = append(ready, rec)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})
	return ready
}

// LatestReadyRecording returns the most recently created playable recording.
func (s EventSnapshot) LatestReadyRecording() (Recording, bool) {
	ready := s.ReadyRecordings()
	if len(ready) == 0 {
		return Recording{}, false
	}
	return ready[len(ready)-1], true
}

// HasRecentActivity reports whether the last ingest activity was within the
// given window of now. No recorded activity counts as not recent.
func (s EventSnapshot) HasRecentActivity(now time.Time, within time.Duration) bool {
	if s.LastStreamActivityAt == nil {
		return false
	}
	return now.Sub(*s.LastStreamActivityAt) < within
}
