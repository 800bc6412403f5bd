package kvat

// bitmap is the process-memory page occupancy record: one bit per page,
// rebuilt at Init by walking every active entry's chains. It is cache,
// not truth; truth lives in the entry table.
type bitmap struct {
	bits []byte
}

// newBitmap allocates a bitmap sized ceil(pageCount/8)+1 bytes and
// permanently marks page 0 and every out-of-range padding bit as used,
// so findFree never hands out a page the format doesn't have.
func newBitmap(pageCount uint8) bitmap {
	n := (int(pageCount)+7)/8 + 1
	bm := bitmap{bits: make([]byte, n)}
	for p := int(pageCount); p < n*8; p++ {
		bm.bits[p/8] |= 1 << (p % 8)
	}
	bm.mark(0, true)
	return bm
}

func (bm *bitmap) mark(n uint8, used bool) {
	idx, bit := n/8, n%8
	if used {
		bm.bits[idx] |= 1 << bit
	} else {
		bm.bits[idx] &^= 1 << bit
	}
}

func (bm *bitmap) isUsed(n uint8) bool {
	return bm.bits[n/8]&(1<<(n%8)) != 0
}

// findFree scans byte-wise for the first byte that isn't 0xFF, then bit
// by bit within it. If take is set, the bit is flipped atomically with
// the find, so there's no window where a second caller could observe
// the same free page even though the engine is single-threaded.
func (bm *bitmap) findFree(take bool) (uint8, bool) {
	for byteIdx, b := range bm.bits {
		if b == 0xFF {
			continue
		}
		for bit := uint(0); bit < 8; bit++ {
			if b&(1<<bit) == 0 {
				n := uint8(byteIdx)*8 + uint8(bit)
				if take {
					bm.mark(n, true)
				}
				return n, true
			}
		}
	}
	return 0, false
}

// followChainAndMark walks a chain from start, flipping each page's
// occupancy bit, bounded by PageCount hops as a defense against a
// corrupted cyclic chain.
func (e *Engine) followChainAndMark(start uint8, used bool, isMultiple bool) error {
	if start == 0 {
		return nil
	}
	n := start
	for hop := 0; hop < int(e.cfg.PageCount); hop++ {
		e.bmp.mark(n, used)
		if !isMultiple {
			return nil
		}
		next, err := e.readNext(n)
		if err != nil {
			return err
		}
		if next == 0 {
			return nil
		}
		n = next
	}
	return nil
}

// rebuild zeroes the bitmap, marks page 0 used, then walks every active
// entry's key and value chains. Entries left OPEN without ACTIVE by a
// crash mid-save are reset to Empty here rather than left to leak their
// slot and pages forever.
func (e *Engine) rebuild() error {
	e.bmp = newBitmap(e.cfg.PageCount)
	for i := uint8(1); i < e.cfg.PageCount; i++ {
		ent, err := e.readEntry(i)
		if err != nil {
			return err
		}
		if ent.Open() && !ent.Active() {
			if err := e.writeEntry(i, Entry{}); err != nil {
				return err
			}
			continue
		}
		if !ent.Active() {
			continue
		}
		if err := e.followChainAndMark(ent.KeyPage, true, ent.KeyMultiple()); err != nil {
			return err
		}
		if err := e.followChainAndMark(ent.ValuePage, true, ent.ValueMultiple()); err != nil {
			return err
		}
	}
	return nil
}
