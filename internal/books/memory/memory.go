// Package memory provides an in-memory books.Store. It is the default
// backend for local runs and the transactional oracle for tests: Apply
// holds one lock for the whole batch, so readers never observe a
// half-committed transaction.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tally/internal/books"
)

type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]books.Record
	subscribers []chan books.Change
	now         func() time.Time
}

var _ books.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: make(map[string]map[string]books.Record),
		now:         time.Now,
	}
}

// NewWithClock pins the createdAt clock, for tests.
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

// Subscribe returns a channel of committed changes and a cancel func.
// Events are dropped, not blocked on, when the subscriber lags.
func (s *Store) Subscribe(buffer int) (<-chan books.Change, func()) {
	ch := make(chan books.Change, buffer)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub == ch {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (s *Store) List(ctx context.Context, collection string) ([]books.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collections[collection]
	out := make([]books.Record, 0, len(coll))
	for _, r := range coll {
		out = append(out, r.Clone())
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (books.Record, error) {
	if id == "" {
		return nil, books.ErrMissingID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, books.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *Store) Create(ctx context.Context, collection string, r books.Record) (string, error) {
	changes, err := s.Apply(ctx, books.NewTransaction().Create(collection, r))
	if err != nil {
		return "", err
	}
	return changes[0].ID, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.Apply(ctx, books.NewTransaction().Update(collection, id, 0, fields))
	return err
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.Apply(ctx, books.NewTransaction().Delete(collection, id))
	return err
}

// Apply validates every op against current state, then commits them all
// under the same lock. Any rejection leaves the store untouched.
func (s *Store) Apply(ctx context.Context, tx *books.Transaction) ([]books.Change, error) {
	if tx.Empty() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validation pass: nothing is written until every op checks out.
	for _, op := range tx.Ops {
		switch op.Kind {
		case books.OpCreate:
			if op.Record == nil {
				return nil, fmt.Errorf("create in %s: nil record", op.Collection)
			}
		case books.OpUpdate, books.OpDelete:
			if op.ID == "" {
				return nil, fmt.Errorf("%s in %s: %w", op.Kind, op.Collection, books.ErrMissingID)
			}
			cur, ok := s.collections[op.Collection][op.ID]
			if !ok {
				return nil, fmt.Errorf("%s %s/%s: %w", op.Kind, op.Collection, op.ID, books.ErrNotFound)
			}
			if op.Kind == books.OpUpdate && op.ExpectedVersion != 0 && cur.Version() != op.ExpectedVersion {
				return nil, fmt.Errorf("%s/%s at version %d, expected %d: %w",
					op.Collection, op.ID, cur.Version(), op.ExpectedVersion, books.ErrConflict)
			}
		default:
			return nil, fmt.Errorf("unknown op kind %q", op.Kind)
		}
	}

	changes := make([]books.Change, 0, len(tx.Ops))
	for _, op := range tx.Ops {
		coll := s.collections[op.Collection]
		if coll == nil {
			coll = make(map[string]books.Record)
			s.collections[op.Collection] = coll
		}
		switch op.Kind {
		case books.OpCreate:
			r := op.Record.Clone()
			id := uuid.NewString()
			r[books.FieldID] = id
			r[books.FieldCreatedAt] = s.now().UTC().Format(time.RFC3339)
			r[books.FieldVersion] = int64(1)
			coll[id] = r
			changes = append(changes, books.Change{Collection: op.Collection, ID: id, Kind: books.OpCreate})
		case books.OpUpdate:
			r := coll[op.ID].Clone()
			for k, v := range op.Fields {
				if k == books.FieldID || k == books.FieldCreatedAt || k == books.FieldVersion {
					continue
				}
				r[k] = v
			}
			r[books.FieldVersion] = r.Version() + 1
			coll[op.ID] = r
			changes = append(changes, books.Change{Collection: op.Collection, ID: op.ID, Kind: books.OpUpdate})
		case books.OpDelete:
			delete(coll, op.ID)
			changes = append(changes, books.Change{Collection: op.Collection, ID: op.ID, Kind: books.OpDelete})
		}
	}

	s.notify(changes)
	return changes, nil
}

func (s *Store) Close() error { return nil }

// notify is called with the store lock held; sends never block.
func (s *Store) notify(changes []books.Change) {
	for _, ch := range changes {
		for _, sub := range s.subscribers {
			select {
			case sub <- ch:
			default:
			}
		}
	}
}

func sortNewestFirst(records []books.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		di, dj := records[i].Date(), records[j].Date()
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return records[i].CreatedAt().After(records[j].CreatedAt())
	})
}
