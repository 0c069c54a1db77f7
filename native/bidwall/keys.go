package bidwall

import (
	"encoding/hex"

	"rampart/native/amm"
)

var (
	wallRecordPrefix = []byte("bidwall/wall/")
	paramsStateKey   = []byte("bidwall/params")
)

func wallKey(pool amm.PoolID) []byte {
	buf := make([]byte, len(wallRecordPrefix)+hex.EncodedLen(len(pool)))
	copy(buf, wallRecordPrefix)
	hex.Encode(buf[len(wallRecordPrefix):], pool[:])
	return buf
}
