package kvat

import "encoding/binary"

// sizeof(Index) and sizeof(Entry) on storage, both already 4-byte aligned.
const (
	indexSize = 16
	entrySize = 4
)

// Index is the fixed on-storage header at Config.IndexStart.
type Index struct {
	FormatID         uint16
	PageSize         uint32
	PageCount        uint8
	PageBeginAddress uint32
}

func encodeIndex(idx Index, buf []byte) {
	for i := range buf[:indexSize] {
		buf[i] = 0
	}
	binary.LittleEndian.PutUint16(buf[0:2], idx.FormatID)
	binary.LittleEndian.PutUint32(buf[4:8], idx.PageSize)
	buf[8] = idx.PageCount
	binary.LittleEndian.PutUint32(buf[12:16], idx.PageBeginAddress)
}

func decodeIndex(buf []byte) Index {
	return Index{
		FormatID:         binary.LittleEndian.Uint16(buf[0:2]),
		PageSize:         binary.LittleEndian.Uint32(buf[4:8]),
		PageCount:        buf[8],
		PageBeginAddress: binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// Metadata bit layout, lsb-first: ACTIVE OPEN KEY_MULTIPLE VALUE_MULTIPLE
// KEY_FORMAT(2 bits) reserved(2 bits). KEY_MULTIPLE set means the key
// chain is multi-page; this is the locked convention (see DESIGN.md).
const (
	metaActive          uint8 = 1 << 0
	metaOpen            uint8 = 1 << 1
	metaKeyMultiple     uint8 = 1 << 2
	metaValueMultiple   uint8 = 1 << 3
	metaKeyFormatMask   uint8 = 0b0011_0000
	metaKeyFormatString uint8 = 0
)

// Entry is one 4-byte row of the index table.
type Entry struct {
	Metadata  uint8
	KeyPage   uint8
	ValuePage uint8
	Remains   uint8
}

func (ent Entry) Active() bool        { return ent.Metadata&metaActive != 0 }
func (ent Entry) Open() bool          { return ent.Metadata&metaOpen != 0 }
func (ent Entry) KeyMultiple() bool   { return ent.Metadata&metaKeyMultiple != 0 }
func (ent Entry) ValueMultiple() bool { return ent.Metadata&metaValueMultiple != 0 }
func (ent Entry) Empty() bool         { return ent.Metadata == 0 }

func encodeEntry(ent Entry, buf []byte) {
	buf[0] = ent.Metadata
	buf[1] = ent.KeyPage
	buf[2] = ent.ValuePage
	buf[3] = ent.Remains
}

func decodeEntry(buf []byte) Entry {
	return Entry{Metadata: buf[0], KeyPage: buf[1], ValuePage: buf[2], Remains: buf[3]}
}
