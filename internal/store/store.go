package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Store persists the identifiers of messages that were already notified.
//
// Implementations assume a single notifier process owns the backing
// storage. Two processes sharing one store can both notify the same message
// and can lose each other's writes.
type Store interface {
	// Load returns every identifier recorded so far.
	Load(ctx context.Context) (IDSet, error)

	// Add records id and persists it before returning. Adding a known id is
	// a no-op.
	Add(ctx context.Context, id string) error

	Close() error
}

// Timestamped is implemented by stores that track their last write.
type Timestamped interface {
	LastUpdated(ctx context.Context) (time.Time, error)
}

// IDSet is a set of message identifiers.
type IDSet map[string]struct{}

// NewIDSet returns a set holding ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

func (s IDSet) Len() int {
	return len(s)
}

// Sorted returns the identifiers in lexical order.
func (s IDSet) Sorted() []string {
	ids := lo.Keys(s)
	sort.Strings(ids)
	return ids
}

// Open returns the store for a configured backend.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", BackendJSON:
		return NewJSONStore(path), nil
	case BackendSQLite:
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}
