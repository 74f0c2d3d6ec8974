package event

import (
	"time"

	"github.com/google/uuid"
)

// Status is the booking lifecycle state of an event.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusReady     Status = "ready"
	StatusLive      Status = "live"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// StreamState is the ingest-side state reported by the video platform.
type StreamState string

const (
	StreamInactive     StreamState = "inactive"
	StreamActive       StreamState = "active"
	StreamDisconnected StreamState = "disconnected"
	StreamFinalized    StreamState = "finalized"
)

// Recording is a finalized video segment produced from an ingest session.
// Only recordings with ReadyToStream true are playable; DurationSeconds may
// be zero until the platform reports it.
type Recording struct {
	ID              string    `json:"id"`
	CreatedAt       time.Time `json:"createdAt"`
	DurationSeconds float64   `json:"durationSeconds,omitempty"`
	ReadyToStream   bool      `json:"readyToStream"`
}

// Event is a scheduled livestream booking with one ingest session and a
// resulting set of recordings.
type Event struct {
	ID                   uuid.UUID   `json:"id"`
	Slug                 string      `json:"slug"`
	Title                string      `json:"title"`
	Status               Status      `json:"status"`
	StreamState          StreamState `json:"streamState"`
	ScheduledAt          time.Time   `json:"scheduledAt"`
	LiveInputID          string      `json:"liveInputId"`
	LastStreamActivityAt *time.Time  `json:"lastStreamActivityAt,omitempty"`
	Recordings           []Recording `json:"recordings"`
	MergedVideoID        string      `json:"mergedVideoId,omitempty"`
	LimitExceeded        bool        `json:"limitExceeded"`
	CreatedAt            time.Time   `json:"createdAt"`
	UpdatedAt            time.Time   `json:"updatedAt"`
}

// Snapshot is the public watch-page view of an event, served by
// GET /events/{slug}. Guests poll this document; it never includes
// booking-internal fields.
type Snapshot struct {
	Slug                 string      `json:"slug"`
	Title                string      `json:"title"`
	Status               Status      `json:"status"`
	StreamState          StreamState `json:"streamState"`
	ScheduledAt          time.Time   `json:"scheduledAt"`
	LiveInputID          string      `json:"liveInputId,omitempty"`
	LastStreamActivityAt *time.Time  `json:"lastStreamActivityAt,omitempty"`
	Recordings           []Recording `json:"recordings"`
	MergedVideoID        string      `json:"mergedVideoId,omitempty"`
	LimitExceeded        bool        `json:"limitExceeded"`
}
