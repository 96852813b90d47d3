package fridge

import (
	"os"

	"kkv/store"
)

// Same bucket count as the syscall implementation, a prime keeps sequential
// keys from piling up in the same shard
const DefaultShards = 17

type Config struct {
	Backend  store.Type
	Shards   int
	MaxBytes int64  // Bound on stored value bytes, 0 disables it
	Dir      string // Scratch directory of the persisted backend
}

func DefaultConfig() Config {
	return Config{
		Backend: store.Memory,
		Shards:  DefaultShards,
		Dir:     os.TempDir(),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Backend != "" {
		c.Backend = source.Backend
	}
	if source.Shards > 0 {
		c.Shards = source.Shards
	}
	if source.MaxBytes > 0 {
		c.MaxBytes = source.MaxBytes
	}
	if source.Dir != "" {
		c.Dir = source.Dir
	}
}
