package event

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Stream lifecycle webhook types sent by the video platform.
const (
	HookStreamLive         = "stream.live"
	HookStreamDisconnected = "stream.disconnected"
	HookStreamFinalized    = "stream.finalized"
	HookRecordingCreated   = "recording.created"
	HookRecordingReady     = "recording.ready"
)

var (
	// ErrUnknownHook is returned for webhook types the service does not handle.
	ErrUnknownHook = errors.New("unknown webhook type")

	// ErrInvalidEvent is returned when a create request is missing required fields.
	ErrInvalidEvent = errors.New("slug, title and scheduledAt are required")
)

// StreamHook is an upstream lifecycle notification. Hooks are keyed by the
// live input identifier issued at event creation, not by slug.
type StreamHook struct {
	Type        string         `json:"type"`
	LiveInputID string         `json:"liveInputId"`
	Recording   *HookRecording `json:"recording,omitempty"`
	OccurredAt  time.Time      `json:"occurredAt,omitempty"`
}

// HookRecording is the recording payload carried by recording.* hooks.
type HookRecording struct {
	ID              string  `json:"id"`
	DurationSeconds float64 `json:"durationSeconds,omitempty"`
}

// CreateEventRequest is the input for creating a booking.
type CreateEventRequest struct {
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	ScheduledAt time.Time `json:"scheduledAt"`
}

// Service applies business rules (booking creation, webhook translation,
// snapshot assembly) and delegates storage to Repository.
type Service struct {
	repo  Repository
	clock clockwork.Clock
}

// NewService returns a Service that uses repo. Time comes from a real clock;
// tests replace it with a fake.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: clockwork.NewRealClock()}
}

// CreateEvent validates the request, mints identifiers and stores the booking.
// The returned event carries the ingest credential (live input identifier)
// the broadcaster streams to.
func (s *Service) CreateEvent(req CreateEventRequest) (*Event, error) {
	req.Slug = strings.TrimSpace(req.Slug)
	req.Title = strings.TrimSpace(req.Title)
	if req.Slug == "" || req.Title == "" || req.ScheduledAt.IsZero() {
		return nil, ErrInvalidEvent
	}

	now := s.clock.Now().UTC()
	ev := &Event{
		ID:          uuid.New(),
		Slug:        req.Slug,
		Title:       req.Title,
		Status:      StatusScheduled,
		StreamState: StreamInactive,
		ScheduledAt: req.ScheduledAt,
		LiveInputID: uuid.NewString(),
		Recordings:  []Recording{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Snapshot assembles the public watch-page view of an event.
func (s *Service) Snapshot(slug string) (Snapshot, error) {
	ev, err := s.repo.Get(slug)
	if err != nil {
		return Snapshot{}, err
	}
	recs := ev.Recordings
	if recs == nil {
		recs = []Recording{}
	}
	return Snapshot{
		Slug:                 ev.Slug,
		Title:                ev.Title,
		Status:               ev.Status,
		StreamState:          ev.StreamState,
		ScheduledAt:          ev.ScheduledAt,
		LiveInputID:          ev.LiveInputID,
		LastStreamActivityAt: ev.LastStreamActivityAt,
		Recordings:           recs,
		MergedVideoID:        ev.MergedVideoID,
		LimitExceeded:        ev.LimitExceeded,
	}, nil
}

// EndEvent marks the event ended on behalf of the host dashboard.
func (s *Service) EndEvent(slug string) error {
	return s.repo.End(slug)
}

// SetLimitExceeded flips the viewer-hour cap flag on behalf of the credit
// accounting collaborator.
func (s *Service) SetLimitExceeded(slug string, exceeded bool) error {
	return s.repo.SetLimitExceeded(slug, exceeded)
}

// ApplyStreamHook translates an upstream lifecycle notification into state
// updates. Hooks for unknown live inputs return ErrNotFound; callers decide
// whether that is fatal (the webhook handler treats it as ignorable).
func (s *Service) ApplyStreamHook(hook StreamHook) error {
	ev, err := s.repo.FindByLiveInput(hook.LiveInputID)
	if err != nil {
		return err
	}

	at := hook.OccurredAt
	if at.IsZero() {
		at = s.clock.Now().UTC()
	}

	switch hook.Type {
	case HookStreamLive:
		return s.repo.MarkLive(ev.Slug, at)
	case HookStreamDisconnected:
		return s.repo.MarkDisconnected(ev.Slug, at)
	case HookStreamFinalized:
		return s.repo.MarkFinalized(ev.Slug)
	case HookRecordingCreated:
		if hook.Recording == nil || hook.Recording.ID == "" {
			return fmt.Errorf("%s hook without recording payload", hook.Type)
		}
		return s.repo.AddRecording(ev.Slug, Recording{
			ID:              hook.Recording.ID,
			CreatedAt:       at,
			DurationSeconds: hook.Recording.DurationSeconds,
		})
	case HookRecordingReady:
		if hook.Recording == nil || hook.Recording.ID == "" {
			return fmt.Errorf("%s hook without recording payload", hook.Type)
		}
		return s.repo.MarkRecordingReady(ev.Slug, hook.Recording.ID, hook.Recording.DurationSeconds, at)
	default:
		return ErrUnknownHook
	}
}
