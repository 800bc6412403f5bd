package kvat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitmapFindFreeSkipsUsed(t *testing.T) {
	bm := newBitmap(16)
	require.True(t, bm.isUsed(0), "page 0 is reserved")

	first, ok := bm.findFree(true)
	require.True(t, ok)
	require.NotEqual(t, uint8(0), first)
	require.True(t, bm.isUsed(first))

	second, ok := bm.findFree(true)
	require.True(t, ok)
	require.NotEqual(t, first, second)
}

func TestBitmapFindFreeExhausted(t *testing.T) {
	bm := newBitmap(4)
	taken := map[uint8]bool{}
	for {
		n, ok := bm.findFree(true)
		if !ok {
			break
		}
		require.False(t, taken[n], "findFree must not repeat a page")
		taken[n] = true
	}
	require.Equal(t, 3, len(taken), "pages 1-3 are free, page 0 is reserved")
}

func TestBitmapMarkUnmark(t *testing.T) {
	bm := newBitmap(8)
	bm.mark(5, true)
	require.True(t, bm.isUsed(5))
	bm.mark(5, false)
	require.False(t, bm.isUsed(5))
}

func TestRebuildReflectsActiveEntries(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.SaveValue("alpha", []byte("a value long enough to span more than one page of this tiny store")))

	_, ent, found, err := eng.lookupByKey("alpha")
	require.NoError(t, err)
	require.True(t, found)
	require.True(t, eng.bmp.isUsed(ent.KeyPage))
	require.True(t, eng.bmp.isUsed(ent.ValuePage))

	require.NoError(t, eng.rebuild())
	require.True(t, eng.bmp.isUsed(ent.KeyPage))
	require.True(t, eng.bmp.isUsed(ent.ValuePage))
}

func TestRebuildResetsOpenNotActiveEntries(t *testing.T) {
	eng, _ := newTestEngine(t)
	slot, ok := eng.getEmptyEntryNumber()
	require.True(t, ok)
	require.NoError(t, eng.writeEntry(slot, Entry{Metadata: metaOpen, KeyPage: 1, ValuePage: 2}))

	require.NoError(t, eng.rebuild())

	ent, err := eng.readEntry(slot)
	require.NoError(t, err)
	require.True(t, ent.Empty(), "a crash mid-save must not leak the slot forever")
	require.False(t, eng.bmp.isUsed(1))
	require.False(t, eng.bmp.isUsed(2))
}
