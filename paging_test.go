package kvat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPageWriteReadRoundTrip(t *testing.T) {
	eng, _ := newTestEngine(t)
	data := make([]byte, eng.index.PageSize)
	for i := range data {
		data[i] = byte(i + 1)
	}
	require.NoError(t, eng.writePage(3, data))

	got, err := eng.readPage(3)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestReadNextReadsLinkByteOnly(t *testing.T) {
	eng, _ := newTestEngine(t)
	page := make([]byte, eng.index.PageSize)
	page[0] = 9
	for i := 1; i < len(page); i++ {
		page[i] = 0xAB
	}
	require.NoError(t, eng.writePage(5, page))

	next, err := eng.readNext(5)
	require.NoError(t, err)
	require.Equal(t, uint8(9), next)
}

func TestPayloadPerPage(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.Equal(t, eng.index.PageSize, eng.payloadPerPage(false))
	require.Equal(t, eng.index.PageSize-1, eng.payloadPerPage(true))
}
