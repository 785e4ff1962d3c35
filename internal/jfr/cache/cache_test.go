package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/arvindraghu/jfrstream/internal/jfr/metadata"
	"github.com/stretchr/testify/require"
)

func key(b byte, schemaHash uint64) Key {
	var fp metadata.Fingerprint
	fp[0] = b
	return Key{Fingerprint: fp, SchemaHash: schemaHash}
}

func TestStore_GetMissingReturnsFalse(t *testing.T) {
	s := NewStore()
	_, ok := s.Get(key(1, 1))
	require.False(t, ok)
}

func TestStore_GetOrInstall_BuildsOnce(t *testing.T) {
	s := NewStore()
	var builds atomic.Int32

	build := func() (any, error) {
		builds.Add(1)
		return "decoder-set", nil
	}

	v1, err := s.GetOrInstall(key(1, 1), build)
	require.NoError(t, err)
	v2, err := s.GetOrInstall(key(1, 1), build)
	require.NoError(t, err)

	require.Equal(t, "decoder-set", v1)
	require.Equal(t, v1, v2)
	require.Equal(t, int32(1), builds.Load())
}

func TestStore_DistinctKeysInstallIndependently(t *testing.T) {
	s := NewStore()
	v1, err := s.GetOrInstall(key(1, 1), func() (any, error) { return "a", nil })
	require.NoError(t, err)
	v2, err := s.GetOrInstall(key(2, 1), func() (any, error) { return "b", nil })
	require.NoError(t, err)

	require.Equal(t, "a", v1)
	require.Equal(t, "b", v2)
	require.Equal(t, 2, s.Len())
}

func TestStore_BuildErrorNotCached(t *testing.T) {
	s := NewStore()
	wantErr := errors.New("build failed")
	calls := 0
	build := func() (any, error) {
		calls++
		if calls == 1 {
			return nil, wantErr
		}
		return "ok", nil
	}

	_, err := s.GetOrInstall(key(1, 1), build)
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 0, s.Len())

	v, err := s.GetOrInstall(key(1, 1), build)
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, 1, s.Len())
}

func TestStore_ConcurrentInstallRaceBuildsOnce(t *testing.T) {
	s := NewStore()
	var builds atomic.Int32
	build := func() (any, error) {
		builds.Add(1)
		return "winner", nil
	}

	const n = 32
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			v, err := s.GetOrInstall(key(7, 7), build)
			require.NoError(t, err)
			require.Equal(t, "winner", v)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), builds.Load())
	require.Equal(t, 1, s.Len())
}

func TestStore_KeyEqualityRequiresBothFingerprintAndSchemaHash(t *testing.T) {
	s := NewStore()
	_, err := s.GetOrInstall(key(1, 100), func() (any, error) { return "a", nil })
	require.NoError(t, err)

	// Same fingerprint byte, different schema hash: distinct key.
	_, ok := s.Get(key(1, 200))
	require.False(t, ok)

	_, ok = s.Get(key(1, 100))
	require.True(t, ok)
}
