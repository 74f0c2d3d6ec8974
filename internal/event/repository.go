package event

import (
	"errors"
	"sync"
	"time"
)

// Repository defines the concurrency-safe contract for accessing and mutating
// event state.
type Repository interface {
	// Create stores a new event. The slug must be unused.
	Create(ev *Event) error

	// Get returns a copy of the event with the given slug.
	Get(slug string) (*Event, error)

	// FindByLiveInput returns a copy of the event whose ingest session uses
	// the given live input identifier. Webhooks are keyed by live input, not
	// by slug.
	FindByLiveInput(liveInputID string) (*Event, error)

	// MarkLive records that ingest went active: status becomes live, the
	// stream state active, and the activity timestamp is touched.
	MarkLive(slug string, at time.Time) error

	// MarkDisconnected records an ingest disconnect. The event enters the
	// post-broadcast window (status ready) and the activity timestamp is
	// touched so the watch page can distinguish a pause from a finished
	// session.
	MarkDisconnected(slug string, at time.Time) error

	// MarkFinalized records that the platform finished the ingest session:
	// stream state finalized, status ended.
	MarkFinalized(slug string) error

	// AddRecording registers a recording produced by the ingest session.
	// Re-registering an existing recording ID is a no-op.
	AddRecording(slug string, rec Recording) error

	// MarkRecordingReady flags a recording as ready to stream and records
	// its duration. Unknown recording IDs are created ready: the platform
	// may report readiness before (or instead of) creation.
	MarkRecordingReady(slug, recordingID string, durationSeconds float64, at time.Time) error

	// SetMergedVideo attaches the identifier of a pre-merged replay asset.
	SetMergedVideo(slug, videoID string) error

	// SetLimitExceeded flips the viewer-hour cap flag.
	SetLimitExceeded(slug string, exceeded bool) error

	// End marks the event ended. Ending an already-ended event is a no-op.
	End(slug string) error

	// ActiveLiveCount returns the number of events currently live.
	// Used for metrics.
	ActiveLiveCount() int
}

var (
	// ErrNotFound is returned when no event matches the given slug or live
	// input identifier.
	ErrNotFound = errors.New("event not found")

	// ErrSlugTaken is returned when creating an event with a slug that is
	// already in use.
	ErrSlugTaken = errors.New("slug already in use")
)

// LockedRepository is a concurrency-safe Repository backed by a Store.
type LockedRepository struct {
	mu    sync.RWMutex
	store Store
}

// NewRepository constructs a repository with a default in-memory store.
func NewRepository() *LockedRepository {
	return NewRepositoryWithStore(NewInMemoryStore())
}

// NewRepositoryWithStore constructs a repository that uses the given Store.
// Useful for testing or for plugging in the SQLite store.
func NewRepositoryWithStore(store Store) *LockedRepository {
	return &LockedRepository{store: store}
}

// Create implements Repository.Create.
func (r *LockedRepository) Create(ev *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists, err := r.store.Get(ev.Slug); err != nil {
		return err
	} else if exists {
		return ErrSlugTaken
	}
	return r.store.Put(ev)
}

// Get implements Repository.Get.
func (r *LockedRepository) Get(slug string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ev, ok, err := r.store.Get(slug)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return copyEvent(ev), nil
}

// FindByLiveInput implements Repository.FindByLiveInput.
func (r *LockedRepository) FindByLiveInput(liveInputID string) (*Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slugs, err := r.store.Slugs()
	if err != nil {
		return nil, err
	}
	for _, slug := range slugs {
		ev, ok, err := r.store.Get(slug)
		if err != nil {
			return nil, err
		}
		if ok && ev.LiveInputID == liveInputID {
			return copyEvent(ev), nil
		}
	}
	return nil, ErrNotFound
}

// MarkLive implements Repository.MarkLive.
func (r *LockedRepository) MarkLive(slug string, at time.Time) error {
	return r.update(slug, func(ev *Event) error {
		ev.Status = StatusLive
		ev.StreamState = StreamActive
		t := at
		ev.LastStreamActivityAt = &t
		return nil
	})
}

// MarkDisconnected implements Repository.MarkDisconnected.
func (r *LockedRepository) MarkDisconnected(slug string, at time.Time) error {
	return r.update(slug, func(ev *Event) error {
		ev.Status = StatusReady
		ev.StreamState = StreamDisconnected
		t := at
		ev.LastStreamActivityAt = &t
		return nil
	})
}

// MarkFinalized implements Repository.MarkFinalized.
func (r *LockedRepository) MarkFinalized(slug string) error {
	return r.update(slug, func(ev *Event) error {
		ev.Status = StatusEnded
		ev.StreamState = StreamFinalized
		return nil
	})
}

// AddRecording implements Repository.AddRecording.
func (r *LockedRepository) AddRecording(slug string, rec Recording) error {
	return r.update(slug, func(ev *Event) error {
		for _, existing := range ev.Recordings {
			if existing.ID == rec.ID {
				return nil
			}
		}
		ev.Recordings = append(ev.Recordings, rec)
		return nil
	})
}

// MarkRecordingReady implements Repository.MarkRecordingReady.
func (r *LockedRepository) MarkRecordingReady(slug, recordingID string, durationSeconds float64, at time.Time) error {
	return r.update(slug, func(ev *Event) error {
		for i := range ev.Recordings {
			if ev.Recordings[i].ID == recordingID {
				ev.Recordings[i].ReadyToStream = true
				ev.Recordings[i].DurationSeconds = durationSeconds
				return nil
			}
		}
		ev.Recordings = append(ev.Recordings, Recording{
			ID:              recordingID,
			CreatedAt:       at,
			DurationSeconds: durationSeconds,
			ReadyToStream:   true,
		})
		return nil
	})
}

// SetMergedVideo implements Repository.SetMergedVideo.
func (r *LockedRepository) SetMergedVideo(slug, videoID string) error {
	return r.update(slug, func(ev *Event) error {
		ev.MergedVideoID = videoID
		return nil
	})
}

// SetLimitExceeded implements Repository.SetLimitExceeded.
func (r *LockedRepository) SetLimitExceeded(slug string, exceeded bool) error {
	return r.update(slug, func(ev *Event) error {
		ev.LimitExceeded = exceeded
		return nil
	})
}

// End implements Repository.End.
func (r *LockedRepository) End(slug string) error {
	return r.update(slug, func(ev *Event) error {
		if ev.Status == StatusEnded {
			return nil
		}
		ev.Status = StatusEnded
		return nil
	})
}

// ActiveLiveCount implements Repository.ActiveLiveCount.
func (r *LockedRepository) ActiveLiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slugs, err := r.store.Slugs()
	if err != nil {
		return 0
	}
	n := 0
	for _, slug := range slugs {
		if ev, ok, err := r.store.Get(slug); err == nil && ok && ev.Status == StatusLive {
			n++
		}
	}
	return n
}

// update applies fn to the stored event under the write lock and persists the
// result, bumping UpdatedAt.
func (r *LockedRepository) update(slug string, fn func(*Event) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev, ok, err := r.store.Get(slug)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if err := fn(ev); err != nil {
		return err
	}
	ev.UpdatedAt = time.Now().UTC()
	return r.store.Put(ev)
}

// copyEvent returns a deep copy so callers never share the stored recordings
// slice or activity pointer.
func copyEvent(ev *Event) *Event {
	out := *ev
	if ev.LastStreamActivityAt != nil {
		t := *ev.LastStreamActivityAt
		out.LastStreamActivityAt = &t
	}
	out.Recordings = make([]Recording, len(ev.Recordings))
	copy(out.Recordings, ev.Recordings)
	return &out
}
