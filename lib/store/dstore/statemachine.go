package dstore

import (
	"fmt"
	"io"
	"time"

	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/veridian-dash/veridian/lib/db"
	"github.com/veridian-dash/veridian/lib/store"
	"github.com/veridian-dash/veridian/lib/store/dstore/internal"
)

// result data of a SetIfUnset entry
var (
	resultStored    = []byte{1}
	resultNotStored = []byte{0}
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// KVStateMachine is a state machine implementation for Dragonboat RAFT
type KVStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.KVDB
}

// CreateStateMachineFactory returns a function that can be used by dragonboat to create a new state machine for a node host
func CreateStateMachineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &KVStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  dbFactory(),
		}
	}
}

// Lookup handles read-only queries by mapping each lookup kind to the corresponding KVDB method.
func (fsm *KVStateMachine) Lookup(itf interface{}) (interface{}, error) {
	q, ok := itf.(internal.Lookup)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid lookup type: %T", itf))
	}

	switch q.Kind {
	case internal.LookupGet:
		if !fsm.database.SupportsFeature(db.FeatureGet) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
		}
		val, ok, err := fsm.database.Get(q.Key)
		if err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
		return internal.Value{Found: ok, Data: val}, nil
	case internal.LookupHas:
		if !fsm.database.SupportsFeature(db.FeatureHas) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "Has operation is not supported")
		}
		ok, err := fsm.database.Has(q.Key)
		if err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
		return ok, nil
	case internal.LookupDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown lookup: %s", q.Kind))
	}
}

// Update applies committed commands to the KVDB instance.
func (fsm *KVStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	start := time.Now()

	for idx, e := range entries {
		entries[idx].Result = fsm.apply(e.Cmd)
	}

	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		log.Infof("State machine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

func (fsm *KVStateMachine) apply(raw []byte) sm.Result {
	if len(raw) == 0 {
		return sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte("empty command ignored")}
	}

	cmd := internal.Command{}
	if err := cmd.Deserialize(raw); err != nil {
		return sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(fmt.Sprintf("failed to deserialize command: %v", err))}
	}

	feat, err := cmd.Type.ToDBFeature()
	if err != nil {
		return sm.Result{Value: uint64(store.RetCInvalidOperation), Data: []byte(fmt.Sprintf("unknown Command operation: %s", cmd.Type))}
	}
	if cmd.ExpiresAt != 0 {
		feat |= db.FeatureTTL
	}
	if !fsm.database.SupportsFeature(feat) {
		return sm.Result{Value: uint64(store.RetCUnsupportedOperation), Data: []byte(fmt.Sprintf("%s operation is not supported", cmd.Type))}
	}

	switch cmd.Type {
	case internal.CommandTSet:
		err = fsm.database.Set(cmd.Key, cmd.Value)
	case internal.CommandTSetIfUnset:
		var expiresAt time.Time
		if cmd.ExpiresAt != 0 {
			expiresAt = time.Unix(0, cmd.ExpiresAt)
		}
		var stored bool
		stored, err = fsm.database.SetIfUnsetAt(cmd.Key, cmd.Value, expiresAt, time.Unix(0, cmd.Now))
		if err == nil {
			if stored {
				return sm.Result{Value: uint64(store.RetCSuccess), Data: resultStored}
			}
			return sm.Result{Value: uint64(store.RetCSuccess), Data: resultNotStored}
		}
	case internal.CommandTDelete:
		err = fsm.database.Delete(cmd.Key)
	}

	if err != nil {
		return sm.Result{Value: uint64(store.RetCInternalError), Data: []byte(fmt.Sprintf("%s %s: %v", cmd.Type, cmd.Key, err))}
	}
	return sm.Result{Value: uint64(store.RetCSuccess)}
}

// PrepareSnapshot is not used. We don't need to prepare anything since we use fuzzy snapshotting
func (fsm *KVStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves a fuzzy db snapshot to the writer
func (fsm *KVStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("the used KVDB implementation does not support Save() operations")
	}
	return fsm.database.Save(writer)
}

// RecoverFromSnapshot replaces the db state with the snapshot.
func (fsm *KVStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used KVDB implementation does not support Load() operations")
	}
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *KVStateMachine) Close() error {
	return fsm.database.Close()
}
