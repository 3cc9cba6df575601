package store_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/vigil/internal/config"
	"github.com/mrz1836/vigil/internal/store"
	vigilerr "github.com/mrz1836/vigil/pkg/errors"
)

type record struct {
	Path    string `json:"path"`
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

func backends(t *testing.T) map[string]store.Store {
	t.Helper()

	badgerStore, err := store.OpenBadgerInMemory(nil)
	require.NoError(t, err)

	fileStore, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	all := map[string]store.Store{
		"badger": badgerStore,
		"file":   fileStore,
		"memory": store.NewMemoryStore(),
	}
	t.Cleanup(func() {
		for _, s := range all {
			_ = s.Close()
		}
	})
	return all
}

func TestStoreContract(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var got []record
			found, err := s.Get(store.KeyAddressStatuses, &got)
			require.NoError(t, err)
			assert.False(t, found)

			want := []record{{Path: "m/0/0", Address: "bc1qa", Balance: 5000}, {Path: "m/0/1", Address: "bc1qb"}}
			require.NoError(t, s.Put(store.KeyAddressStatuses, want))

			found, err = s.Get(store.KeyAddressStatuses, &got)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, want, got)

			// Put replaces wholesale
			replacement := []record{{Path: "m/0/0", Address: "bc1qa"}}
			require.NoError(t, s.Put(store.KeyAddressStatuses, replacement))
			got = nil
			_, err = s.Get(store.KeyAddressStatuses, &got)
			require.NoError(t, err)
			assert.Equal(t, replacement, got)

			require.NoError(t, s.Delete(store.KeyAddressStatuses))
			found, err = s.Get(store.KeyAddressStatuses, &got)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Delete("never-written"))
		})
	}
}

func TestStoreNestedKeys(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.NoError(t, s.Put(store.KeyExternalAddresses, []string{"a", "b"}))
			require.NoError(t, s.Put(store.KeyInternalAddresses, []string{"c"}))

			var ext, in []string
			_, err := s.Get(store.KeyExternalAddresses, &ext)
			require.NoError(t, err)
			_, err = s.Get(store.KeyInternalAddresses, &in)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ext)
			assert.Equal(t, []string{"c"}, in)
		})
	}
}

func TestStoreRejectsEmptyKey(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := s.Put("", 1)
			require.ErrorIs(t, err, vigilerr.ErrStore)
		})
	}
}

func TestStoreEncodeFailure(t *testing.T) {
	t.Parallel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := s.Put(store.KeyTotalBalance, make(chan int))
			require.ErrorIs(t, err, vigilerr.ErrStore)
		})
	}
}

func TestFileStoreLayout(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := store.NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Put(store.KeyExternalAddresses, []string{"a"}))
	_, err = os.Stat(filepath.Join(dir, "addresses", "external.json"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "addresses"))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "temp file left behind: %s", e.Name())
	}
}

func TestFileStoreRejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside", "/etc/passwd", ".."} {
		err := s.Put(key, 1)
		require.ErrorIs(t, err, vigilerr.ErrStore, key)
	}
}

func TestFileStoreCorruptRecord(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := store.NewFileStore(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "total_balance.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	var v map[string]any
	found, err := s.Get(store.KeyTotalBalance, &v)
	require.ErrorIs(t, err, vigilerr.ErrStore)
	require.ErrorIs(t, err, store.ErrCorruptRecord)
	assert.False(t, found)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "corrupt file should be moved aside")

	found, err = s.Get(store.KeyTotalBalance, &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := store.OpenBadger(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(store.KeyXpub, "zpub-test"))
	require.NoError(t, s.Close())

	s, err = store.OpenBadger(dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	var xpub string
	found, err := s.Get(store.KeyXpub, &xpub)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "zpub-test", xpub)
}

func TestMemoryStoreConcurrent(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Put(store.KeyMempoolTotal, i)
			var v int
			_, _ = s.Get(store.KeyMempoolTotal, &v)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, []string{store.KeyMempoolTotal}, s.Keys())
}

func TestOpen(t *testing.T) {
	t.Parallel()

	cfg := config.Defaults()
	cfg.Home = t.TempDir()

	cfg.Store.Backend = config.StoreMemory
	s, err := store.Open(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, s)

	cfg.Store.Backend = config.StoreFile
	s, err = store.Open(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.FileStore{}, s)

	cfg.Store.Backend = config.StoreBadger
	s, err = store.Open(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.BadgerStore{}, s)
	require.NoError(t, s.Close())

	cfg.Store.Backend = "redis"
	_, err = store.Open(cfg, nil)
	require.ErrorIs(t, err, vigilerr.ErrConfigInvalid)
}
