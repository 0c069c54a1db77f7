package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// KV layers RLP encoding over a raw Database, satisfying the keyed-record
// contract the native modules persist through.
type KV struct {
	db Database
}

// NewKV wraps a database in the RLP record codec.
func NewKV(db Database) *KV {
	return &KV{db: db}
}

// KVGet decodes the record stored under key into out, reporting ok=false
// when the key is absent.
func (k *KV) KVGet(key []byte, out interface{}) (bool, error) {
	if k == nil || k.db == nil {
		return false, fmt.Errorf("storage: kv not initialised")
	}
	raw, err := k.db.Get(key)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("storage: decode record: %w", err)
	}
	return true, nil
}

// KVPut encodes value and stores it under key.
func (k *KV) KVPut(key []byte, value interface{}) error {
	if k == nil || k.db == nil {
		return fmt.Errorf("storage: kv not initialised")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("storage: encode record: %w", err)
	}
	return k.db.Put(key, encoded)
}
