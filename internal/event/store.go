package event

// Store is the persistence abstraction for event state.
// Implementations can be in-memory or SQLite-backed; the Repository uses
// Store for all reads and writes and callers of Repository do not need to
// know which Store is used.
type Store interface {
	Get(slug string) (*Event, bool, error)
	Put(ev *Event) error
	Slugs() ([]string, error)
	Close() error
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	events map[string]*Event
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events: make(map[string]*Event),
	}
}

// Get implements Store.Get.
func (s *InMemoryStore) Get(slug string) (*Event, bool, error) {
	ev, ok := s.events[slug]
	return ev, ok, nil
}

// Put implements Store.Put.
func (s *InMemoryStore) Put(ev *Event) error {
	s.events[ev.Slug] = ev
	return nil
}

// Slugs implements Store.Slugs.
func (s *InMemoryStore) Slugs() ([]string, error) {
	slugs := make([]string, 0, len(s.events))
	for slug := range s.events {
		slugs = append(slugs, slug)
	}
	return slugs, nil
}

// Close implements Store.Close. The in-memory store has nothing to release.
func (s *InMemoryStore) Close() error {
	return nil
}
