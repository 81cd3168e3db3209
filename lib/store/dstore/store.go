package dstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/veridian-dash/veridian/lib/db"
	"github.com/veridian-dash/veridian/lib/store"
	"github.com/veridian-dash/veridian/lib/store/dstore/internal"
)

var (
	retries = 5
	log     = logger.GetLogger("store")
)

// storeImpl implements store.IStore on a Dragonboat NodeHost.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a store that proposes all writes to the given shard and reads linearizably.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IStore {
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      nh.GetNoOPSession(shardID),
		timeout: timeout,
	}
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write proposes the command and returns the result data of the applied entry.
func (s *storeImpl) write(cmd internal.Command) ([]byte, error) {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		res, err := s.nh.SyncPropose(ctx, s.cs, cmd.Serialize())
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}
		if err != nil {
			return nil, toStoreError(err)
		}
		if res.Value != uint64(store.RetCSuccess) {
			return nil, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return res.Data, nil
	}
	return nil, store.NewError(store.RetCTimeout, "system busy")
}

// read queries the state machine and converts the response into R.
// Linearizable reads use SyncRead, stale reads use StaleRead.
func read[R any](s *storeImpl, q internal.Lookup, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {
		var res interface{}
		var err error

		if stale {
			res, err = s.nh.StaleRead(s.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
			res, err = s.nh.SyncRead(ctx, s.shardID, q)
			cancel()
		}

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(s.timeout / 10)
			continue
		}
		if err != nil {
			return zero, toStoreError(err)
		}

		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCTimeout, "system busy")
}

func toStoreError(err error) error {
	var se *store.Error
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, dragonboat.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return store.NewError(store.RetCTimeout, err.Error())
	}
	return store.NewError(store.RetCInternalError, err.Error())
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	_, err := s.write(internal.Command{
		Type:  internal.CommandTSet,
		Key:   key,
		Value: value,
	})
	return err
}

func (s *storeImpl) SetIfUnset(key string, value []byte, ttl time.Duration) (bool, error) {
	cmd := internal.Command{
		Type:  internal.CommandTSetIfUnset,
		Key:   key,
		Value: value,
	}
	now := time.Now()
	cmd.Now = now.UnixNano()
	if ttl > 0 {
		cmd.ExpiresAt = now.Add(ttl).UnixNano()
	}
	data, err := s.write(cmd)
	if err != nil {
		return false, err
	}
	return bytes.Equal(data, resultStored), nil
}

func (s *storeImpl) Delete(key string) error {
	_, err := s.write(internal.Command{
		Type: internal.CommandTDelete,
		Key:  key,
	})
	return err
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	res, err := read[internal.Value](s, internal.Lookup{Kind: internal.LookupGet, Key: key}, false)
	if err != nil {
		return nil, false, err
	}
	return res.Data, res.Found, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	return read[bool](s, internal.Lookup{Kind: internal.LookupHas, Key: key}, false)
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](s, internal.Lookup{Kind: internal.LookupDBInfo}, true)
}

// Close stops the NodeHost and with it the replica of this node.
func (s *storeImpl) Close() error {
	s.nh.Close()
	return nil
}
