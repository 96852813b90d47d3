package fridge

import (
	"encoding/binary"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Caller chosen key, the store never allocates keys
type Key int64

func ParseKey(s string) (Key, error) {
	k, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return Key(k), nil
}

func (k Key) String() string {
	return strconv.FormatInt(int64(k), 10)
}

// hash spreads neighbouring keys over the shards
func (k Key) hash() uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(k))
	return xxhash.Sum64(b[:])
}
