package entity

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"

	"github.com/veridian-dash/veridian/lib/lockmgr"
	"github.com/veridian-dash/veridian/lib/store"
)

var log = logger.GetLogger("entity")

const (
	keySep      = ":"
	reserved    = "__"
	indexSuffix = "__index__"
	lockSuffix  = "__lock__"

	// LockTTL bounds how long an exclusive mutation may hold its lock.
	LockTTL = 5 * time.Second
)

// Schema describes how a record type is stored.
type Schema[T any] struct {
	// Name is the kind of the records and the prefix of their keys (<name>:<id>).
	Name string
	// Initial returns the state used by GetOrInitial for records that do not exist.
	Initial func() T
	// ID extracts the id from a state.
	ID func(T) string
	// SetID returns a copy of the state with the given id. Create uses it to assign a uuid
	// to states without an id.
	SetID func(T, string) T
}

// Kind is the single record strategy: one JSON encoded state per id, no index.
// A Kind holds no state of its own and is cheap to create per request.
type Kind[T any] struct {
	schema Schema[T]
	store  store.IStore
}

// NewKind binds a schema to a store.
func NewKind[T any](s store.IStore, schema Schema[T]) *Kind[T] {
	if schema.Name == "" || strings.Contains(schema.Name, keySep) {
		panic("entity: invalid kind name " + schema.Name)
	}
	return &Kind[T]{schema: schema, store: s}
}

// Name returns the kind name.
func (k *Kind[T]) Name() string {
	return k.schema.Name
}

func (k *Kind[T]) key(id string) string {
	return k.schema.Name + keySep + id
}

// validID rejects ids that would collide with the index or lock keys.
func validID(id string) bool {
	return id != "" && !strings.Contains(id, keySep) && !strings.HasPrefix(id, reserved)
}

func (k *Kind[T]) initial() T {
	if k.schema.Initial != nil {
		return k.schema.Initial()
	}
	var zero T
	return zero
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Exists reports whether a record with this id is stored.
func (k *Kind[T]) Exists(id string) (bool, error) {
	if !validID(id) {
		return false, nil
	}
	ok, err := k.store.Has(k.key(id))
	if err != nil {
		return false, internal("exists", k.key(id), err)
	}
	return ok, nil
}

// Create stores a new record. The id is taken from the state, an empty id is replaced by
// a fresh uuid. Fails with ErrDuplicateID if the id is already taken.
func (k *Kind[T]) Create(state T) (T, error) {
	id := k.schema.ID(state)
	if id == "" {
		if k.schema.SetID == nil {
			return state, NewError(RetCValidation, "%s: id required", k.schema.Name)
		}
		id = uuid.NewString()
		state = k.schema.SetID(state, id)
	}
	if !validID(id) {
		return state, NewError(RetCValidation, "%s: invalid id %q", k.schema.Name, id)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return state, internal("encode", k.key(id), err)
	}
	stored, err := k.store.SetIfUnset(k.key(id), data, 0)
	if err != nil {
		return state, internal("create", k.key(id), err)
	}
	if !stored {
		return state, NewError(RetCDuplicateID, "%s %q already exists", k.schema.Name, id)
	}
	return state, nil
}

// Get loads the state of a record. Fails with ErrNotFound if it is absent.
func (k *Kind[T]) Get(id string) (T, error) {
	state, ok, err := k.load(id)
	if err != nil {
		return state, err
	}
	if !ok {
		return state, NewError(RetCNotFound, "%s %q not found", k.schema.Name, id)
	}
	return state, nil
}

// GetOrInitial loads the state of a record or returns the initial state if it is absent.
func (k *Kind[T]) GetOrInitial(id string) (T, error) {
	state, ok, err := k.load(id)
	if err != nil {
		return state, err
	}
	if !ok {
		return k.initial(), nil
	}
	return state, nil
}

// Save writes the state of a record, creating it if needed.
func (k *Kind[T]) Save(id string, state T) error {
	if !validID(id) {
		return NewError(RetCValidation, "%s: invalid id %q", k.schema.Name, id)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return internal("encode", k.key(id), err)
	}
	if err := k.store.Set(k.key(id), data); err != nil {
		return internal("save", k.key(id), err)
	}
	return nil
}

// Mutate loads a record, applies fn and stores the result.
//
// The read and the write are two store operations. Two concurrent mutations of the same
// record may interleave and the later write wins, the other update is lost. Use
// MutateExclusive where that matters.
func (k *Kind[T]) Mutate(id string, fn func(T) (T, error)) (T, error) {
	state, err := k.Get(id)
	if err != nil {
		return state, err
	}
	next, err := fn(state)
	if err != nil {
		return state, err
	}
	if err := k.Save(id, next); err != nil {
		return state, err
	}
	return next, nil
}

// MutateExclusive is Mutate guarded by a lock on the record. If another writer holds the
// lock it fails with ErrBusy right away. Only writers that also use MutateExclusive are
// excluded.
func (k *Kind[T]) MutateExclusive(id string, locks lockmgr.ILockManager, fn func(T) (T, error)) (T, error) {
	var zero T
	if !validID(id) {
		return zero, NewError(RetCNotFound, "%s %q not found", k.schema.Name, id)
	}

	lockKey := k.key(id) + keySep + lockSuffix
	acquired, owner, err := locks.AcquireLock(lockKey, LockTTL)
	if err != nil {
		return zero, internal("lock", lockKey, err)
	}
	if !acquired {
		return zero, NewError(RetCBusy, "%s %q is locked", k.schema.Name, id)
	}
	defer func() {
		if released, err := locks.ReleaseLock(lockKey, owner); err != nil || !released {
			log.Warningf("release of %s failed (released=%t): %v", lockKey, released, err)
		}
	}()

	return k.Mutate(id, fn)
}

// Delete removes a record and reports whether it existed. Deleting a missing record is
// not an error.
func (k *Kind[T]) Delete(id string) (bool, error) {
	ok, err := k.Exists(id)
	if err != nil || !ok {
		return false, err
	}
	if err := k.store.Delete(k.key(id)); err != nil {
		return false, internal("delete", k.key(id), err)
	}
	return true, nil
}

// Ref returns a handle bound to one id.
func (k *Kind[T]) Ref(id string) *Entity[T] {
	return &Entity[T]{kind: k, id: id}
}

func (k *Kind[T]) load(id string) (T, bool, error) {
	var state T
	if !validID(id) {
		return state, false, nil
	}
	data, ok, err := k.store.Get(k.key(id))
	if err != nil {
		return state, false, internal("get", k.key(id), err)
	}
	if !ok {
		return state, false, nil
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, false, internal("decode", k.key(id), err)
	}
	return state, true, nil
}

// --------------------------------------------------------------------------
// Entity handle
// --------------------------------------------------------------------------

// Entity is a handle on one record of a kind. It does not cache the state, every call
// goes to the store.
type Entity[T any] struct {
	kind *Kind[T]
	id   string
}

func (e *Entity[T]) ID() string { return e.id }
func (e *Entity[T]) Kind() string { return e.kind.schema.Name }

func (e *Entity[T]) Exists() (bool, error) { return e.kind.Exists(e.id) }
func (e *Entity[T]) State() (T, error) { return e.kind.Get(e.id) }
func (e *Entity[T]) StateOrInitial() (T, error) { return e.kind.GetOrInitial(e.id) }
func (e *Entity[T]) Save(state T) error { return e.kind.Save(e.id, state) }
func (e *Entity[T]) Delete() (bool, error) { return e.kind.Delete(e.id) }

func (e *Entity[T]) Mutate(fn func(T) (T, error)) (T, error) {
	return e.kind.Mutate(e.id, fn)
}

func (e *Entity[T]) MutateExclusive(locks lockmgr.ILockManager, fn func(T) (T, error)) (T, error) {
	return e.kind.MutateExclusive(e.id, locks, fn)
}
