package kvat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntryWriteReadRoundTrip(t *testing.T) {
	eng, _ := newTestEngine(t)
	ent := Entry{Metadata: metaActive, KeyPage: 2, ValuePage: 3, Remains: 7}
	require.NoError(t, eng.writeEntry(4, ent))

	got, err := eng.readEntry(4)
	require.NoError(t, err)
	require.Equal(t, ent, got)
}

func TestGetEmptyEntryNumberSkipsReservedAndActive(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.writeEntry(1, Entry{Metadata: metaActive}))
	require.NoError(t, eng.writeEntry(2, Entry{Metadata: metaOpen}))

	n, ok := eng.getEmptyEntryNumber()
	require.True(t, ok)
	require.Equal(t, uint8(3), n)
}

func TestGetEmptyEntryNumberFullTable(t *testing.T) {
	eng, _ := newTestEngine(t)
	for i := uint8(1); i < eng.cfg.PageCount; i++ {
		require.NoError(t, eng.writeEntry(i, Entry{Metadata: metaActive}))
	}
	_, ok := eng.getEmptyEntryNumber()
	require.False(t, ok)
}
