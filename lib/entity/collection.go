package entity

import (
	"errors"

	"github.com/veridian-dash/veridian/lib/lockmgr"
	"github.com/veridian-dash/veridian/lib/store"
)

// DefaultPageSize is used by List when no positive limit is given.
const DefaultPageSize = 20

// Page is one page of a listing. Next is nil once the listing is exhausted.
type Page[T any] struct {
	Items []T     `json:"items"`
	Next  *string `json:"next"`
}

// Collection is the indexed strategy: a Kind plus an ordered index of its ids and a set of
// seed records inserted once per store.
type Collection[T any] struct {
	kind  *Kind[T]
	index *index
	seed  []T
}

// NewCollection binds a schema and its seed records to a store.
func NewCollection[T any](s store.IStore, schema Schema[T], seed []T) *Collection[T] {
	return &Collection[T]{
		kind:  NewKind(s, schema),
		index: newIndex(s, schema.Name),
		seed:  seed,
	}
}

// Kind returns the single record view of the collection. Writes through it bypass the index.
func (c *Collection[T]) Kind() *Kind[T] {
	return c.kind
}

func (c *Collection[T]) Name() string { return c.kind.Name() }
func (c *Collection[T]) Exists(id string) (bool, error) { return c.kind.Exists(id) }
func (c *Collection[T]) Get(id string) (T, error) { return c.kind.Get(id) }
func (c *Collection[T]) Ref(id string) *Entity[T] { return c.kind.Ref(id) }

func (c *Collection[T]) Mutate(id string, fn func(T) (T, error)) (T, error) {
	return c.kind.Mutate(id, fn)
}

func (c *Collection[T]) MutateExclusive(id string, locks lockmgr.ILockManager, fn func(T) (T, error)) (T, error) {
	return c.kind.MutateExclusive(id, locks, fn)
}

// Create stores a new record and appends its id to the index. If the index cannot be
// updated the record is removed again.
func (c *Collection[T]) Create(state T) (T, error) {
	created, err := c.kind.Create(state)
	if err != nil {
		return created, err
	}
	id := c.kind.schema.ID(created)
	if err := c.index.add(id); err != nil {
		if _, derr := c.kind.Delete(id); derr != nil {
			log.Errorf("%s %q is stored but not indexed: %v", c.kind.Name(), id, derr)
		}
		return created, err
	}
	return created, nil
}

// Delete removes a record and its index entry and reports whether the record existed.
// The index entry is removed even if the record was already gone.
func (c *Collection[T]) Delete(id string) (bool, error) {
	removed, err := c.kind.Delete(id)
	if err != nil {
		return false, err
	}
	if err := c.index.remove(id); err != nil {
		return removed, err
	}
	return removed, nil
}

// DeleteMany removes every listed record and returns how many of them existed. Missing
// ids are skipped. It only fails if the store fails.
func (c *Collection[T]) DeleteMany(ids []string) (int, error) {
	ids = appendMissing(nil, ids...)

	count := 0
	for _, id := range ids {
		removed, err := c.kind.Delete(id)
		if err != nil {
			return count, err
		}
		if removed {
			count++
		}
	}
	if err := c.index.remove(ids...); err != nil {
		return count, err
	}
	return count, nil
}

// EnsureSeed inserts the seed records the first time it runs against a store and marks the
// index as seeded. Seeds whose id is already taken are skipped. Afterwards the call is a
// single index read.
//
// Two first callers racing may both insert; the inserts are idempotent.
func (c *Collection[T]) EnsureSeed() error {
	rec, err := c.index.load()
	if err != nil {
		return err
	}
	if rec.Seeded {
		return nil
	}

	ids := make([]string, 0, len(c.seed))
	for _, s := range c.seed {
		created, err := c.kind.Create(s)
		if err != nil && !isDuplicate(err) {
			return err
		}
		ids = append(ids, c.kind.schema.ID(created))
	}

	// reload, creates may have happened since the first read
	rec, err = c.index.load()
	if err != nil {
		return err
	}
	rec.IDs = appendMissing(rec.IDs, ids...)
	rec.Seeded = true
	if err := c.index.save(rec); err != nil {
		return err
	}
	log.Infof("seeded %d %s records", len(ids), c.kind.Name())
	return nil
}

// List returns up to limit records in index order, starting after cursor (empty for the
// first page).
func (c *Collection[T]) List(token string, limit int) (Page[T], error) {
	page := Page[T]{Items: []T{}}
	if limit <= 0 {
		limit = DefaultPageSize
	}

	rec, err := c.index.load()
	if err != nil {
		return page, err
	}

	start := 0
	if token != "" {
		cur, err := decodeCursor(token)
		if err != nil {
			return page, err
		}
		start = cur.start(rec.IDs)
	}
	end := min(start+limit, len(rec.IDs))

	for _, id := range rec.IDs[start:end] {
		state, ok, err := c.kind.load(id)
		if err != nil {
			return page, err
		}
		if !ok {
			log.Warningf("%s index lists %q without a stored record", c.kind.Name(), id)
			continue
		}
		page.Items = append(page.Items, state)
	}

	if end < len(rec.IDs) {
		next := cursor{ID: rec.IDs[end-1], Pos: end - 1}.encode()
		page.Next = &next
	}
	return page, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateID)
}
