package lockmgr

import (
	"bytes"
	"time"

	"github.com/veridian-dash/veridian/lib/store"
)

type lockMgrImpl struct {
	store store.IStore
}

func NewLockManager(store store.IStore) ILockManager {
	return &lockMgrImpl{
		store: store,
	}
}

func (lm *lockMgrImpl) AcquireLock(key string, ttl time.Duration) (bool, []byte, error) {
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, nil, err
	}

	// only one caller can create the key
	stored, err := lm.store.SetIfUnset(key, ownerID, ttl)
	if err != nil {
		return false, nil, err
	}
	if !stored {
		return false, nil, nil
	}
	return true, ownerID, nil
}

func (lm *lockMgrImpl) ReleaseLock(key string, ownerID []byte) (bool, error) {
	value, ok, err := lm.store.Get(key)
	if err != nil || !ok {
		return err == nil, err
	}

	// the lock expired and was taken over by someone else
	if !bytes.Equal(ownerID, value) {
		return false, nil
	}

	err = lm.store.Delete(key)
	return err == nil, err
}
