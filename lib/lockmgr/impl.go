package lockmgr

import (
	"github.com/ValentinKolb/dStruct/lib/keys"
	"github.com/ValentinKolb/dStruct/lib/logging"
	"github.com/ValentinKolb/dStruct/lib/store"
)

var log = logging.GetLogger(logging.LockMgr)

type lockMgrImpl struct {
	store *store.Store
}

// NewLockManager creates a lock manager on s. The backend must support the
// Atomic capability, otherwise every call fails with store.ErrUnsupported.
func NewLockManager(s *store.Store) ILockManager {
	return &lockMgrImpl{
		store: s,
	}
}

// lockKey returns the encoded key of the lock record of key
func (lm *lockMgrImpl) lockKey(key string) ([]byte, error) {
	return lm.store.EncodeKey(keys.New(keys.LockPrefix, key))
}

func (lm *lockMgrImpl) AcquireLock(key string) (bool, []byte, error) {
	k, err := lm.lockKey(key)
	if err != nil {
		return false, nil, err
	}
	ownerID := generateOwnerID()

	// the record is created only if no one holds the lock (atomic CAS against "absent")
	ok, err := store.ConditionalUpdateRaw(lm.store, k, nil, ownerID)
	if err != nil || !ok {
		return false, nil, err
	}
	log.Debugf("lock %q acquired", key)
	return true, ownerID, nil
}

func (lm *lockMgrImpl) ReleaseLock(key string, ownerID []byte) (bool, error) {
	k, err := lm.lockKey(key)
	if err != nil {
		return false, err
	}

	// Check if the lock exists
	_, found, err := store.RawGet(lm.store, k)
	if err != nil || !found {
		return err == nil, err
	}

	// the record is removed only if it still carries our owner ID
	ok, err := store.ConditionalUpdateRaw(lm.store, k, ownerID, nil)
	if err != nil {
		return false, err
	}
	if ok {
		log.Debugf("lock %q released", key)
	} else {
		log.Warningf("lock %q is held by another owner", key)
	}
	return ok, nil
}
