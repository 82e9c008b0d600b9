package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

type Category string

const (
	Ports         Category = "port"
	Vessels       Category = "vessel"
	SavedSearches Category = "saved_searches"
)

func (c Category) Valid() bool {
	return c == Ports || c == Vessels || c == SavedSearches
}

func (c Category) Capacity() int {
	if c == SavedSearches {
		return 20
	}
	return 10
}

type Place struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Entry is either a search hit (port or vessel) or a saved search (reach or
// route). Search hits are identified by name, saved searches by id.
type Entry struct {
	ID      string  `json:"id,omitempty"`
	Type    string  `json:"type"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Country string  `json:"country,omitempty"`
	IMO     string  `json:"imo,omitempty"`
	Dwt     float64 `json:"dwt,omitempty"`
	Length  float64 `json:"length,omitempty"`
	Beam    float64 `json:"beam,omitempty"`

	Speed    float64 `json:"speed,omitempty"`
	Days     int     `json:"days,omitempty"`
	Distance string  `json:"distance,omitempty"`
	Origin   *Place  `json:"origin,omitempty"`
	Dest     *Place  `json:"dest,omitempty"`
	Mid      *Place  `json:"mid,omitempty"`
}

func (e Entry) key(c Category) string {
	if c == SavedSearches {
		return e.ID
	}
	return e.Name
}

// Backend persists whole lists. Save must replace the list atomically.
type Backend interface {
	Load(ctx context.Context, key string) ([]Entry, error)
	Save(ctx context.Context, key string, entries []Entry) error
}

type Store struct {
	backend   Backend
	namespace string
}

func NewStore(backend Backend, namespace string) *Store {
	return &Store{backend: backend, namespace: namespace}
}

// recording holds one mutex per list key. Stores of the same namespace
// share a list, so their read-modify-write cycles must not interleave.
// Processes sharing a redis backend are not covered.
var recording sync.Map

func lockList(key string) func() {
	v, _ := recording.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Store) listKey(c Category) string {
	return fmt.Sprintf("%s:history_%s", s.namespace, c)
}

// Record moves entry to the head of the category list, dropping any entry
// with the same key and the oldest ones past capacity. Saved searches
// without an id get a fresh one. It returns the stored list.
func (s *Store) Record(ctx context.Context, c Category, entry Entry) ([]Entry, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown history category %q", c)
	}
	if c == SavedSearches && entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	key := s.listKey(c)
	defer lockList(key)()

	current, err := s.backend.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s history: %w", c, err)
	}

	k := entry.key(c)
	list := make([]Entry, 0, len(current)+1)
	list = append(list, entry)
	for _, e := range current {
		if e.key(c) != k {
			list = append(list, e)
		}
	}
	if len(list) > c.Capacity() {
		list = list[:c.Capacity()]
	}

	if err := s.backend.Save(ctx, key, list); err != nil {
		return nil, fmt.Errorf("save %s history: %w", c, err)
	}
	return list, nil
}

func (s *Store) List(ctx context.Context, c Category) ([]Entry, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("unknown history category %q", c)
	}
	list, err := s.backend.Load(ctx, s.listKey(c))
	if err != nil {
		return nil, fmt.Errorf("load %s history: %w", c, err)
	}
	return list, nil
}
