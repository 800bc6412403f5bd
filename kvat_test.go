package kvat

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/repixen/kvat/storage/memstorage"
)

// testConfig mirrors a small embedded store: enough pages to exercise
// multi-page chains without making the table-driven tests slow.
func testConfig() Config {
	return Config{
		FormatID:   DefaultFormatID,
		PageSize:   12,
		PageCount:  16,
		IndexStart: 0,
	}
}

func newTestEngine(t *testing.T) (*Engine, *memstorage.Storage) {
	t.Helper()
	cfg := testConfig()
	store := memstorage.New(cfg.StorageSize())
	eng := NewEngine(store, cfg)
	require.NoError(t, eng.Init())
	return eng, store
}

func TestInitFormatsFreshStorage(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.True(t, eng.initialized)
	require.Equal(t, DefaultFormatID, eng.index.FormatID)
}

func TestInitTwiceIsInvalidAccess(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.ErrorIs(t, eng.Init(), ErrInvalidAccess)
}

func TestInitPreservesExistingFormat(t *testing.T) {
	cfg := testConfig()
	store := memstorage.New(cfg.StorageSize())
	eng := NewEngine(store, cfg)
	require.NoError(t, eng.Init())
	require.NoError(t, eng.SaveString("k", "v"))

	snap := store.Snapshot()
	store2 := memstorage.FromBytes(snap)
	eng2 := NewEngine(store2, cfg)
	require.NoError(t, eng2.Init())

	val, err := eng2.RetrieveString("k")
	require.NoError(t, err)
	require.Equal(t, "v", val)
}
