package kvat

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteChainSinglePage(t *testing.T) {
	eng, _ := newTestEngine(t)
	data := []byte("short")
	first, multi, remains, err := eng.writeChain(data, 0, false)
	require.NoError(t, err)
	require.False(t, multi)
	require.Equal(t, uint8(eng.payloadPerPage(false))-uint8(len(data)), remains)

	got, err := eng.fetchChain(first, false, remains)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestWriteChainMultiPage(t *testing.T) {
	eng, _ := newTestEngine(t)
	payload := eng.payloadPerPage(true)
	usedInLastPage := 3
	data := bytes.Repeat([]byte{0x42}, int(payload)*2+usedInLastPage)

	first, multi, remains, err := eng.writeChain(data, 0, false)
	require.NoError(t, err)
	require.True(t, multi)
	require.Equal(t, uint8(int(payload)-usedInLastPage), remains, "remains is trailing unused bytes, not bytes used")

	got, err := eng.fetchChain(first, true, remains)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestWriteChainEmptyDataFreesPrevious(t *testing.T) {
	eng, _ := newTestEngine(t)
	payload := eng.payloadPerPage(true)
	data := bytes.Repeat([]byte{0x01}, int(payload)*2+1)
	first, multi, _, err := eng.writeChain(data, 0, false)
	require.NoError(t, err)
	require.True(t, eng.bmp.isUsed(first))

	newFirst, newMulti, newRemains, err := eng.writeChain(nil, first, multi)
	require.NoError(t, err)
	require.Equal(t, uint8(0), newFirst)
	require.False(t, newMulti)
	require.Equal(t, uint8(0), newRemains)
	require.False(t, eng.bmp.isUsed(first), "emptying a chain must free its pages")
}

func TestWriteChainReusesPreviousPages(t *testing.T) {
	eng, _ := newTestEngine(t)
	payload := eng.payloadPerPage(true)
	data := bytes.Repeat([]byte{0x07}, int(payload)*2+1)
	first, multi, _, err := eng.writeChain(data, 0, false)
	require.NoError(t, err)

	used := map[uint8]bool{}
	n := first
	for n != 0 {
		used[n] = true
		next, err := eng.readNext(n)
		require.NoError(t, err)
		if next == 0 {
			break
		}
		n = next
	}

	shrunk := bytes.Repeat([]byte{0x08}, int(payload)+1)
	newFirst, newMulti, newRemains, err := eng.writeChain(shrunk, first, multi)
	require.NoError(t, err)
	require.True(t, used[newFirst], "shrinking a chain should reuse its existing first page")

	got, err := eng.fetchChain(newFirst, newMulti, newRemains)
	require.NoError(t, err)
	require.Equal(t, shrunk, got)
}

func TestWriteChainInsufficientSpace(t *testing.T) {
	eng, _ := newTestEngine(t)
	payload := eng.payloadPerPage(true)
	huge := bytes.Repeat([]byte{0x09}, int(payload)*int(eng.cfg.PageCount)*2)

	before := make([]byte, len(eng.bmp.bits))
	copy(before, eng.bmp.bits)

	_, _, _, err := eng.writeChain(huge, 0, false)
	require.ErrorIs(t, err, ErrInsufficientSpace)
	require.Equal(t, before, eng.bmp.bits, "a failed write must unwind every page it tentatively took")
}
