package datastore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	N int `json:"n"`
}

func newStore(t *testing.T) (*DataStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "store.json")
	cfg := DefaultConfig(path)
	cfg.AutoSaveInterval = time.Hour
	ds, err := NewWithConfig(cfg)
	require.NoError(t, err)
	return ds, path
}

// put stores v under key through Update.
func put(ds *DataStore, key string, v any) error {
	return ds.Update(key, func([]byte) ([]byte, error) { return json.Marshal(v) })
}

func TestUpdateGetRoundTrip(t *testing.T) {
	ds, _ := newStore(t)
	defer ds.Close()

	require.NoError(t, put(ds, "a", counter{N: 3}))

	var got counter
	ok, err := ds.Get("a", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.N)

	ok, err = ds.Get("missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateIsAtomic(t *testing.T) {
	ds, _ := newStore(t)
	defer ds.Close()

	inc := func(cur []byte) ([]byte, error) {
		var c counter
		if cur != nil {
			if err := json.Unmarshal(cur, &c); err != nil {
				return nil, err
			}
		}
		c.N++
		return json.Marshal(c)
	}

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ds.Update("c", inc))
		}()
	}
	wg.Wait()

	var got counter
	_, err := ds.Get("c", &got)
	require.NoError(t, err)
	assert.Equal(t, 100, got.N)
}

func TestUpdateNoChangeAndError(t *testing.T) {
	ds, _ := newStore(t)
	defer ds.Close()

	require.NoError(t, ds.Update("k", func([]byte) ([]byte, error) { return nil, nil }))
	assert.Empty(t, ds.Keys())

	boom := errors.New("boom")
	assert.ErrorIs(t, ds.Update("k", func([]byte) ([]byte, error) { return nil, boom }), boom)
	assert.Error(t, ds.Update("k", func([]byte) ([]byte, error) { return []byte("{"), nil }))
}

func TestCloseSavesAndReloads(t *testing.T) {
	ds, path := newStore(t)
	require.NoError(t, put(ds, "guild:1", counter{N: 7}))
	require.NoError(t, ds.Close())
	require.NoError(t, ds.Close())

	_, err := ds.Get("guild:1", &counter{})
	assert.ErrorIs(t, err, ErrClosed)

	reopened, err := NewWithConfig(DefaultConfig(path))
	require.NoError(t, err)
	defer reopened.Close()

	var got counter
	ok, err := reopened.Get("guild:1", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 7, got.N)
	assert.Equal(t, []string{"guild:1"}, reopened.Keys())
}

func TestMemoryLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	cfg := DefaultConfig(path)
	cfg.MaxMemorySize = 16
	ds, err := NewWithConfig(cfg)
	require.NoError(t, err)
	defer ds.Close()

	require.NoError(t, put(ds, "a", "short"))
	assert.ErrorIs(t, put(ds, "b", "this value is far too long"), ErrMemoryExceeded)
}

func TestBackupsAreBounded(t *testing.T) {
	ds, path := newStore(t)
	defer ds.Close()

	for i := 0; i < 6; i++ {
		require.NoError(t, put(ds, "k", counter{N: i}))
		require.NoError(t, ds.saveToFile())
		time.Sleep(2 * time.Millisecond)
	}

	matches, err := filepath.Glob(path + ".backup.*")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(matches), 3)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
