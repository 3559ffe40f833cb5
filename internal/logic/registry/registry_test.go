package registry

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"dex-router/internal/logic/core"
	"dex-router/internal/types"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	execA = types.AddressFromHex("0x00000000000000000000000000000000000e0e01")
	execB = types.AddressFromHex("0x00000000000000000000000000000000000e0e02")
	eoa   = types.AddressFromHex("0x00000000000000000000000000000000000a11ce")
)

type codeSet map[types.Address]bool

func (c codeSet) HasCode(addr types.Address) bool { return c[addr] }

type recordingNotifier struct {
	mu      sync.Mutex
	changes []Change
}

func (n *recordingNotifier) NotifyRegistryChange(_ context.Context, change Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
	return nil
}

func TestAdmitRevoke(t *testing.T) {
	ctx := context.Background()
	n := &recordingNotifier{}
	r := New(codeSet{execA: true, execB: true}, nil, n)

	assert.False(t, r.IsExecutor(execA))
	require.NoError(t, r.Admit(ctx, execA))
	require.NoError(t, r.Admit(ctx, execB))
	assert.True(t, r.IsExecutor(execA))
	assert.Equal(t, []types.Address{execA, execB}, r.Members())

	require.NoError(t, r.Revoke(ctx, execA))
	assert.False(t, r.IsExecutor(execA))
	assert.Equal(t, 1, r.Len())

	require.Len(t, n.changes, 3)
	assert.Equal(t, ChangeAdmitted, n.changes[0].Kind)
	assert.Equal(t, execA, n.changes[0].Executor)
	assert.Equal(t, ChangeRevoked, n.changes[2].Kind)
}

func TestAdmitRequiresCode(t *testing.T) {
	n := &recordingNotifier{}
	r := New(codeSet{execA: true}, nil, n)

	err := r.Admit(context.Background(), eoa)
	assert.ErrorIs(t, err, core.ErrNotAContract)
	assert.False(t, r.IsExecutor(eoa))
	assert.Empty(t, n.changes)

	assert.ErrorIs(t, New(nil, nil, nil).Admit(context.Background(), execA), core.ErrNotAContract)
}

func TestDBStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "registry.db")

	store, err := OpenDBRegistryStore(path)
	require.NoError(t, err)
	r := New(codeSet{execA: true, execB: true}, store, nil)
	require.NoError(t, r.Admit(ctx, execA))
	require.NoError(t, r.Admit(ctx, execB))
	require.NoError(t, r.Revoke(ctx, execB))

	status, err := store.Status(ctx, execB)
	require.NoError(t, err)
	assert.Equal(t, ChangeRevoked, status)
	status, err = store.Status(ctx, eoa)
	require.NoError(t, err)
	assert.Equal(t, ChangeUnknown, status)
	require.NoError(t, store.Close())

	reopened, err := OpenDBRegistryStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	restored := New(codeSet{}, reopened, nil)
	n, err := restored.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, restored.IsExecutor(execA))
	assert.False(t, restored.IsExecutor(execB))
}

func TestOpenDBRegistryStoreRequiresPath(t *testing.T) {
	_, err := OpenDBRegistryStore("  ")
	assert.Error(t, err)
}

func newLayered(t *testing.T) (*LayeredStore, *RedisRegistryStore, *DBRegistryStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	db, err := OpenDBRegistryStore(filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cache := NewRedisRegistryStore(rdb, "test")
	return NewLayeredStore(cache, db), cache, db, mr
}

func TestLayeredStoreBackfillsRedis(t *testing.T) {
	ctx := context.Background()
	layered, cache, db, _ := newLayered(t)
	require.NoError(t, db.Add(ctx, execA))

	addrs, err := layered.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Address{execA}, addrs)
	cached, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Address{execA}, cached)

	require.NoError(t, layered.Remove(ctx, execA))
	cached, err = cache.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached)
}

func TestLayeredStoreIgnoresStaleCache(t *testing.T) {
	ctx := context.Background()
	layered, cache, db, _ := newLayered(t)
	require.NoError(t, db.Add(ctx, execA))
	require.NoError(t, cache.Replace(ctx, []types.Address{execB}))

	addrs, err := layered.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Address{execA}, addrs)
	cached, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Address{execA}, cached)
}

func TestLayeredStoreRedisWriteFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("admit", func(t *testing.T) {
		layered, cache, db, mr := newLayered(t)
		require.NoError(t, layered.Add(ctx, execA))

		mr.SetError("ERR cache unavailable")
		require.NoError(t, layered.Add(ctx, execB))
		mr.SetError("")

		addrs, err := layered.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []types.Address{execA, execB}, addrs)
		cached, err := cache.Load(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []types.Address{execA, execB}, cached)

		r := New(codeSet{}, layered, nil)
		n, err := r.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.True(t, r.IsExecutor(execB))

		status, err := db.Status(ctx, execB)
		require.NoError(t, err)
		assert.Equal(t, ChangeAdmitted, status)
	})

	t.Run("revoke", func(t *testing.T) {
		layered, cache, _, mr := newLayered(t)
		require.NoError(t, layered.Add(ctx, execA))
		require.NoError(t, layered.Add(ctx, execB))

		mr.SetError("ERR cache unavailable")
		require.NoError(t, layered.Remove(ctx, execB))
		mr.SetError("")

		r := New(codeSet{}, layered, nil)
		_, err := r.Load(ctx)
		require.NoError(t, err)
		assert.True(t, r.IsExecutor(execA))
		assert.False(t, r.IsExecutor(execB))
		cached, err := cache.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, []types.Address{execA}, cached)
	})
}

func TestLayeredStoreFallsBackToRedis(t *testing.T) {
	ctx := context.Background()
	layered, cache, db, _ := newLayered(t)
	require.NoError(t, cache.Replace(ctx, []types.Address{execA}))
	require.NoError(t, db.Close())

	addrs, err := layered.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Address{execA}, addrs)
}
