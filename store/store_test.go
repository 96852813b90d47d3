package store

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testKey int64

func (k testKey) String() string {
	return strconv.FormatInt(int64(k), 10)
}

func TestParseType(t *testing.T) {
	t.Parallel()

	for _, v := range []string{"memory", "persisted", "badger"} {
		typ, err := ParseType(v)
		require.NoError(t, err)
		assert.Equal(t, v, string(typ))
	}

	_, err := ParseType("redis")
	require.Error(t, err)
}

// Every backend must behave the same way through the Store interface.
func TestShards_Backends(t *testing.T) {
	t.Parallel()

	for _, typ := range allTypes {
		typ := typ
		t.Run(string(typ), func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			shards, err := OpenShards[testKey, []byte](Options{Type: typ, Shards: 3, Dir: dir, Name: "test"})
			require.NoError(t, err)
			require.Len(t, shards.Stores, 3)

			s0, s1 := shards.Stores[0], shards.Stores[1]

			_, err = s0.Get(1)
			require.ErrorIs(t, err, ErrKeyNotFound)

			require.NoError(t, s0.Put(1, []byte("orange")))
			require.NoError(t, s0.Put(1, []byte("apple")))
			require.NoError(t, s1.Put(1, []byte("banana")))
			require.NoError(t, s1.Put(-18, []byte{0, 1, 2}))

			got, err := s0.Get(1)
			require.NoError(t, err)
			assert.Equal(t, []byte("apple"), got)

			got, err = s1.Get(-18)
			require.NoError(t, err)
			assert.Equal(t, []byte{0, 1, 2}, got)

			n, err := s0.Count()
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			total, err := shards.Count()
			require.NoError(t, err)
			assert.Equal(t, 3, total)

			require.NoError(t, shards.Close())
		})
	}
}

func TestShards_PersistedFileRemovedOnClose(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	shards, err := OpenShards[testKey, []byte](Options{Type: Persisted, Shards: 2, Dir: dir, Name: "scratch"})
	require.NoError(t, err)

	path := filepath.Join(dir, "kkv-scratch.db")
	_, err = os.Stat(path)
	require.NoError(t, err, "bolt file must exist while the shards are open")

	require.NoError(t, shards.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "bolt file must be removed on close")
}

func TestOpenShards_Invalid(t *testing.T) {
	t.Parallel()

	_, err := OpenShards[testKey, []byte](Options{Type: Memory, Shards: 0})
	require.Error(t, err)

	_, err = OpenShards[testKey, []byte](Options{Type: "nope", Shards: 1})
	require.Error(t, err)

	_, err = OpenShards[testKey, []byte](Options{Type: Persisted, Shards: 1, Dir: filepath.Join(t.TempDir(), "missing"), Name: "x"})
	require.Error(t, err)
}

type nameKey string

func (k nameKey) String() string {
	return string(k)
}

// Put then read back key through every shard of a freshly opened table
func checkShardKey[TKey ShardKey](t *testing.T, typ Type, key TKey) {
	t.Helper()

	shards, err := OpenShards[TKey, string](Options{Type: typ, Shards: 2, Dir: t.TempDir(), Name: "keys"})
	require.NoError(t, err)
	defer shards.Close()

	for i, s := range shards.Stores {
		value := strconv.Itoa(i)
		require.NoError(t, s.Put(key, value))
		got, err := s.Get(key)
		require.NoError(t, err)
		assert.Equal(t, value, got)
	}
}

func TestShards_AnyShardKey(t *testing.T) {
	t.Parallel()

	for _, typ := range allTypes {
		typ := typ
		t.Run(string(typ), func(t *testing.T) {
			t.Parallel()

			checkShardKey[testKey](t, typ, 42)
			checkShardKey[nameKey](t, typ, "kiwi")
		})
	}
}
